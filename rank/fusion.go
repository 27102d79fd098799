package rank

import (
	"github.com/rushteam/agentrec/core"
)

// AdvantageRanker 是 advantage 融合排序（v2）：
//
//	utility   = wb·behavioral_norm + ws·semantic_norm
//	baseline  = popularity(item)
//	advantage = utility − alpha·baseline
//	novelty   = lambda·(1 − baseline)
//	final     = advantage + novelty
type AdvantageRanker struct {
	Alpha   float64
	Lambda  float64
	FinalK  int
	Stats   core.ItemStats
	Catalog core.ItemCatalog
}

func (r *AdvantageRanker) Name() string { return "rank.advantage" }
func (r *AdvantageRanker) Limit() int   { return r.FinalK }

func (r *AdvantageRanker) Score(req Request) []*core.Item {
	rows := union(req.Behavioral, req.Semantic)
	if len(rows) == 0 {
		return []*core.Item{}
	}
	lambda := r.Lambda
	if req.NoveltyLambda != nil {
		lambda = *req.NoveltyLambda
	}
	wb, ws := req.Plan.WeightBehavioral, req.Plan.WeightSemantic

	items := make([]*core.Item, 0, len(rows))
	for _, row := range rows {
		utility := wb*row.behavioral + ws*row.semantic
		baseline := core.NeutralPopularity
		if r.Stats != nil {
			baseline = r.Stats.Popularity(row.id)
		}
		advantage := utility - r.Alpha*baseline
		novelty := lambda * (1 - baseline)

		it := newItem(row, r.Catalog)
		it.Signals = core.Signals{
			Behavioral:         row.behavioral,
			Semantic:           row.semantic,
			Utility:            utility,
			BaselinePopularity: baseline,
			Advantage:          advantage,
			NoveltyBoost:       novelty,
		}
		it.Score = advantage + novelty
		items = append(items, it)
	}
	SortItems(items)
	return items
}

func (r *AdvantageRanker) Rank(req Request) []*core.Item {
	return truncate(r.Score(req), r.FinalK)
}
