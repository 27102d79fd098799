package filter

import (
	"context"

	"github.com/rushteam/agentrec/core"
)

// Chain 组合多个过滤器，任何一个过滤器返回 true 该物品就会被移除。
// 过滤器返回错误时跳过该过滤器，不中断流程。
type Chain []Filter

// Apply 返回保留下来的物品（保持原顺序）以及各过滤器移除的数量。
func (c Chain) Apply(ctx context.Context, rctx *core.RecommendContext, items []*core.Item) ([]*core.Item, map[string]int) {
	removed := make(map[string]int)
	if len(c) == 0 {
		return items, removed
	}

	out := make([]*core.Item, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		reason := ""
		for _, f := range c {
			ok, err := f.ShouldFilter(ctx, rctx, item)
			if err != nil {
				continue
			}
			if ok {
				reason = f.Name()
				break
			}
		}
		if reason != "" {
			removed[reason]++
			continue
		}
		out = append(out, item)
	}
	return out, removed
}
