package filter

import (
	"context"

	"github.com/rushteam/agentrec/core"
)

// BlacklistFilter 是黑名单过滤器，过滤掉黑名单中的物品。
type BlacklistFilter struct {
	ids map[int64]struct{}
}

// NewBlacklistFilter 创建一个黑名单过滤器，可传入多组 ID（配置与存储中的合并）。
func NewBlacklistFilter(idLists ...[]int64) *BlacklistFilter {
	f := &BlacklistFilter{ids: make(map[int64]struct{})}
	for _, ids := range idLists {
		for _, id := range ids {
			f.ids[id] = struct{}{}
		}
	}
	return f
}

func (f *BlacklistFilter) Name() string { return "filter.blacklist" }

// Len 返回黑名单大小。
func (f *BlacklistFilter) Len() int { return len(f.ids) }

func (f *BlacklistFilter) ShouldFilter(_ context.Context, _ *core.RecommendContext, item *core.Item) (bool, error) {
	if item == nil {
		return true, nil
	}
	_, blocked := f.ids[item.ID]
	return blocked, nil
}
