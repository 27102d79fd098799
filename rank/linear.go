package rank

import "github.com/rushteam/agentrec/core"

// LinearRanker 是线性融合基线（v1）：final = utility，不做热度校正。
type LinearRanker struct {
	FinalK  int
	Catalog core.ItemCatalog
}

func (r *LinearRanker) Name() string { return "rank.linear" }
func (r *LinearRanker) Limit() int   { return r.FinalK }

func (r *LinearRanker) Score(req Request) []*core.Item {
	rows := union(req.Behavioral, req.Semantic)
	items := make([]*core.Item, 0, len(rows))
	for _, row := range rows {
		utility := req.Plan.WeightBehavioral*row.behavioral + req.Plan.WeightSemantic*row.semantic
		it := newItem(row, r.Catalog)
		it.Signals = core.Signals{
			Behavioral: row.behavioral,
			Semantic:   row.semantic,
			Utility:    utility,
		}
		it.Score = utility
		items = append(items, it)
	}
	SortItems(items)
	return items
}

func (r *LinearRanker) Rank(req Request) []*core.Item {
	return truncate(r.Score(req), r.FinalK)
}
