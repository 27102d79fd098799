// Package critic 评审排序结果并决定是否重排。
//
// 评审由三层组成：推理服务的建议、规则文件中的 CEL 规则、内置的确定性检查。
// 三层产出相同结构的 Layer，由 Merge 按顺序合并，后合并的层优先，
// 内置检查最后合并，其结果不会被其他层覆盖。
package critic

import (
	"fmt"
	"strings"

	"github.com/rushteam/agentrec/core"
)

// Config 护栏配置
type Config struct {
	// TopK 参与评审的前 K 条
	TopK int

	// PopularityThreshold top-K 平均热度超过该值时提高新颖度系数
	PopularityThreshold float64
	// NoveltyLambda 当前配置的新颖度系数
	NoveltyLambda float64
	NoveltyStep    float64
	NoveltyCeiling float64

	// MinUniqueGenres top-K 不同类型数低于该值时请求多样性加权
	MinUniqueGenres int
	DiversityBoost  float64

	// ProtectedGenre 在 top-K 类型词中占比超过 ProtectedRatio，
	// 且查询不含 AllowKeywords 中任一词时，强制排除该类型
	ProtectedGenre string
	ProtectedRatio float64
	AllowKeywords  []string
}

// DefaultConfig 返回默认护栏配置。
func DefaultConfig() Config {
	return Config{
		TopK:                10,
		PopularityThreshold: 0.65,
		NoveltyLambda:       0.20,
		NoveltyStep:         0.10,
		NoveltyCeiling:      0.35,
		MinUniqueGenres:     4,
		DiversityBoost:      0.10,
		ProtectedGenre:      "Children",
		ProtectedRatio:      0.30,
		AllowKeywords:       []string{"kid", "kids", "family", "children", "child"},
	}
}

// Observation 是对 top-K 的统计，也是 CEL 规则的输入变量。
type Observation struct {
	TopK           int
	MeanPopularity float64
	UniqueGenres   int
	// GenreRatio 类型 → 在 top-K 全部类型词中的占比
	GenreRatio map[string]float64
}

// Vars 转为 CEL 变量。
func (o Observation) Vars(intent core.Intent, query string) map[string]any {
	ratio := make(map[string]any, len(o.GenreRatio))
	for g, r := range o.GenreRatio {
		ratio[g] = r
	}
	return map[string]any{
		"mean_popularity": o.MeanPopularity,
		"unique_genres":   int64(o.UniqueGenres),
		"genre_ratio":     ratio,
		"top_k":           int64(o.TopK),
		"intent":          string(intent),
		"query":           query,
	}
}

// Observe 统计 items 的前 topK 条；热度取 Signals.BaselinePopularity，
// stats 非 nil 时以 stats 为准。
func Observe(items []*core.Item, topK int, stats core.ItemStats) Observation {
	if topK > 0 && len(items) > topK {
		items = items[:topK]
	}
	obs := Observation{TopK: len(items), GenreRatio: map[string]float64{}}
	if len(items) == 0 {
		return obs
	}

	var popSum float64
	counts := make(map[string]int)
	tokens := 0
	for _, it := range items {
		pop := it.Signals.BaselinePopularity
		if stats != nil {
			pop = stats.Popularity(it.ID)
		}
		popSum += pop
		for _, g := range it.Genres {
			if g = strings.TrimSpace(g); g != "" {
				counts[g]++
				tokens++
			}
		}
	}
	obs.MeanPopularity = popSum / float64(len(items))
	obs.UniqueGenres = len(counts)
	for g, n := range counts {
		obs.GenreRatio[g] = float64(n) / float64(tokens)
	}
	return obs
}

// protectedRatio 返回受保护类型的占比，类型比较不区分大小写。
func (o Observation) protectedRatio(genre string) float64 {
	var r float64
	for g, v := range o.GenreRatio {
		if strings.EqualFold(g, genre) {
			r += v
		}
	}
	return r
}

// Check 执行内置确定性检查。
func Check(cfg Config, rctx *core.RecommendContext, obs Observation) Layer {
	layer := Layer{Name: "guardrails", Adjustments: core.Adjustments{}}

	if obs.MeanPopularity > cfg.PopularityThreshold {
		lambda := cfg.NoveltyLambda + cfg.NoveltyStep
		if lambda > cfg.NoveltyCeiling {
			lambda = cfg.NoveltyCeiling
		}
		layer.NeedsRerank = true
		layer.Adjustments[core.AdjustNoveltyLambda] = lambda
		layer.Trace = append(layer.Trace, fmt.Sprintf("top_%d_mean_popularity_too_high:%.2f", obs.TopK, obs.MeanPopularity))
	}

	if obs.UniqueGenres < cfg.MinUniqueGenres {
		layer.NeedsRerank = true
		layer.Adjustments[core.AdjustDiversityBoost] = cfg.DiversityBoost
		layer.Trace = append(layer.Trace, fmt.Sprintf("genre_diversity_too_low:unique_genres=%d", obs.UniqueGenres))
	}

	if cfg.ProtectedGenre != "" {
		ratio := obs.protectedRatio(cfg.ProtectedGenre)
		if ratio > cfg.ProtectedRatio && !allowed(rctx.Query, cfg.AllowKeywords) {
			layer.NeedsRerank = true
			layer.Adjustments[core.AdjustExcludeGenres] = []string{cfg.ProtectedGenre}
			layer.Trace = append(layer.Trace, fmt.Sprintf("hard_veto:%s_ratio=%.2f", strings.ToLower(cfg.ProtectedGenre), ratio))
		}
	}
	return layer
}

// allowed 判断查询是否包含任一放行关键词（子串匹配，不区分大小写）。
func allowed(query string, keywords []string) bool {
	q := strings.ToLower(query)
	for _, kw := range keywords {
		if kw != "" && strings.Contains(q, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
