package rerank

import (
	"strconv"
	"strings"

	"github.com/rushteam/agentrec/core"
	"github.com/rushteam/agentrec/pkg/utils"
)

// Diversity 是类型冗余惩罚重排：贪心地依次选出
//
//	score − Boost × (已选类型覆盖的本物品类型数 / 本物品类型数)
//
// 最大的物品，使相同类型的物品往后排。无类型的物品不受惩罚。
type Diversity struct {
	Boost float64
}

func (d Diversity) Name() string { return "rerank.diversity" }

// Apply 返回重新排序后的前 limit 条（limit ≤ 0 表示全部），
// 选中物品的 Score 更新为惩罚后的分数。
func (d Diversity) Apply(items []*core.Item, limit int) []*core.Item {
	if d.Boost <= 0 || len(items) < 2 {
		return items
	}
	if limit <= 0 || limit > len(items) {
		limit = len(items)
	}

	remaining := append([]*core.Item(nil), items...)
	covered := make(map[string]struct{})
	out := make([]*core.Item, 0, limit)

	for len(out) < limit {
		best, bestScore, bestPenalty := -1, 0.0, 0.0
		for i, it := range remaining {
			penalty := d.Boost * redundancy(it, covered)
			s := it.Score - penalty
			// remaining 保持输入顺序（分数降序，同分 ID 升序），严格大于保证稳定
			if best < 0 || s > bestScore {
				best, bestScore, bestPenalty = i, s, penalty
			}
		}
		it := remaining[best]
		remaining = append(remaining[:best], remaining[best+1:]...)

		if bestPenalty > 0 {
			it.Score = bestScore
			it.PutLabel("diversity_penalty", utils.Label{Value: formatPenalty(bestPenalty), Source: "rerank"})
		}
		for _, g := range it.Genres {
			covered[strings.ToLower(g)] = struct{}{}
		}
		out = append(out, it)
	}
	return out
}

func redundancy(it *core.Item, covered map[string]struct{}) float64 {
	if len(it.Genres) == 0 || len(covered) == 0 {
		return 0
	}
	n := 0
	for _, g := range it.Genres {
		if _, ok := covered[strings.ToLower(g)]; ok {
			n++
		}
	}
	return float64(n) / float64(len(it.Genres))
}

func formatPenalty(p float64) string {
	return strconv.FormatFloat(p, 'f', 4, 64)
}
