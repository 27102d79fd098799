package rerank

import "github.com/rushteam/agentrec/core"

// TopN 截取前 N 个物品。N <= 0 时不截断。
type TopN struct {
	N int
}

func (n TopN) Name() string { return "rerank.topn" }

func (n TopN) Apply(items []*core.Item) []*core.Item {
	if n.N <= 0 || len(items) <= n.N {
		return items
	}
	return items[:n.N]
}
