package critic

import (
	"sort"
	"strings"

	"github.com/rushteam/agentrec/core"
	"github.com/rushteam/agentrec/pkg/conv"
)

// Sanitize 只保留已知的调整项并检查取值范围：
//
//	novelty_lambda            [0, ceiling]
//	diversity_boost           [0, 1]
//	exclude_genres            字符串列表
//	weight_behavioral_delta   [-1, 1]（兼容 weight_cf_delta）
//	weight_semantic_delta     [-1, 1]
//
// 其余键与越界值被丢弃，每个被丢弃的键产生一条 trace。
func Sanitize(in map[string]any, noveltyCeiling float64) (core.Adjustments, []string) {
	out := core.Adjustments{}
	var dropped []string

	keys := make([]string, 0, len(in))
	for k := range in {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v := in[k]
		ok := false
		switch k {
		case core.AdjustNoveltyLambda:
			ok = setFloat(out, k, v, 0, noveltyCeiling)
		case core.AdjustDiversityBoost:
			ok = setFloat(out, k, v, 0, 1)
		case core.AdjustWeightBehavioralDelta, core.AdjustWeightSemanticDelta:
			ok = setFloat(out, k, v, -1, 1)
		case "weight_cf_delta":
			ok = setFloat(out, core.AdjustWeightBehavioralDelta, v, -1, 1)
		case core.AdjustExcludeGenres:
			genres := make([]string, 0)
			for _, g := range conv.ToStringSlice(v) {
				if g = strings.TrimSpace(g); g != "" {
					genres = append(genres, g)
				}
			}
			if len(genres) > 0 {
				out[k] = genres
				ok = true
			}
		}
		if !ok {
			dropped = append(dropped, "dropped_adjustment:"+k)
		}
	}
	return out, dropped
}

func setFloat(out core.Adjustments, key string, v any, lo, hi float64) bool {
	f, ok := conv.ToFloat64(v)
	if !ok || f < lo || f > hi {
		return false
	}
	if _, exists := out[key]; !exists {
		out[key] = f
	}
	return true
}
