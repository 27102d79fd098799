// Package rank 把各检索工具的候选融合为有序推荐列表。
//
// 两种策略：
//   - advantage（v2）：效用减去热度基线，再加新颖度奖励
//   - linear（v1 基线）：只做归一化线性融合
package rank

import (
	"sort"
	"strings"

	"github.com/rushteam/agentrec/core"
	"github.com/rushteam/agentrec/pkg/utils"
)

// Strategy 排序策略名
type Strategy string

const (
	StrategyAdvantage Strategy = "advantage"
	StrategyLinear    Strategy = "linear"
)

// Request 是一次融合排序的输入。
type Request struct {
	Behavioral []core.Candidate
	Semantic   []core.Candidate
	Plan       core.Plan

	// NoveltyLambda 非 nil 时覆盖配置的新颖度系数（重排使用）
	NoveltyLambda *float64
}

// Ranker 融合排序器。
//
// Score 返回完整的有序列表，Rank 截断到上限；
// 相同输入总是得到相同的顺序与分数。
type Ranker interface {
	Name() string
	Score(req Request) []*core.Item
	Rank(req Request) []*core.Item
	Limit() int
}

// row 是融合过程中单个物品的信号。
type row struct {
	id         int64
	behavioral float64
	semantic   float64
	sources    []string
}

// union 按 item_id 外连接两个候选集合，缺失的一侧分数为 0，再按各列最大值归一化。
// 返回的行按 ID 升序。
func union(behavioral, semantic []core.Candidate) []*row {
	byID := make(map[int64]*row, len(behavioral)+len(semantic))
	get := func(id int64) *row {
		r, ok := byID[id]
		if !ok {
			r = &row{id: id}
			byID[id] = r
		}
		return r
	}
	for _, c := range behavioral {
		r := get(c.ItemID)
		if c.Score > r.behavioral {
			r.behavioral = c.Score
		}
		r.addSource(string(core.SourceBehavioral))
	}
	for _, c := range semantic {
		r := get(c.ItemID)
		if c.Score > r.semantic {
			r.semantic = c.Score
		}
		r.addSource(string(core.SourceSemantic))
	}

	rows := make([]*row, 0, len(byID))
	var maxB, maxS float64
	for _, r := range byID {
		rows = append(rows, r)
		if r.behavioral > maxB {
			maxB = r.behavioral
		}
		if r.semantic > maxS {
			maxS = r.semantic
		}
	}
	for _, r := range rows {
		if maxB > 0 {
			r.behavioral /= maxB
		}
		if maxS > 0 {
			r.semantic /= maxS
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].id < rows[j].id })
	return rows
}

func (r *row) addSource(s string) {
	for _, have := range r.sources {
		if have == s {
			return
		}
	}
	r.sources = append(r.sources, s)
}

// newItem 填充目录信息与来源 label。未知物品标题为 "Unknown"。
func newItem(r *row, catalog core.ItemCatalog) *core.Item {
	it := core.NewItem(r.id)
	it.Title = "Unknown"
	if catalog != nil {
		if meta, ok := catalog.Lookup(r.id); ok {
			it.Title = meta.Title
			it.Genres = append([]string(nil), meta.Genres...)
		}
	}
	it.PutLabel("rank_source", utils.Label{Value: strings.Join(r.sources, ","), Source: "rank"})
	return it
}

// SortItems 按分数降序排列，同分按 ID 升序。
func SortItems(items []*core.Item) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		return items[i].ID < items[j].ID
	})
}

// truncate 截断到 limit，limit ≤ 0 表示不截断。
func truncate(items []*core.Item, limit int) []*core.Item {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
