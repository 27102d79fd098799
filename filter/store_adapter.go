package filter

import (
	"context"
	"fmt"

	json "github.com/goccy/go-json"

	"github.com/rushteam/agentrec/core"
)

// DefaultBlacklistKey 存储中黑名单的默认 key
const DefaultBlacklistKey = "agentrec:blocked_items"

// StoreAdapter 将 core.Store 适配为黑名单数据源。
type StoreAdapter struct {
	store core.Store
}

// NewStoreAdapter 创建一个 core.Store 适配器。
func NewStoreAdapter(s core.Store) *StoreAdapter {
	return &StoreAdapter{store: s}
}

// GetBlacklist 从 Store 读取黑名单，值为 JSON 数组（如 [1, 2, 3]）。
// key 不存在时返回空列表。
func (a *StoreAdapter) GetBlacklist(ctx context.Context, key string) ([]int64, error) {
	if key == "" {
		key = DefaultBlacklistKey
	}
	data, err := a.store.Get(ctx, key)
	if err != nil {
		if core.IsStoreNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get blacklist %s: %w", key, err)
	}

	var ids []int64
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, core.WrapDomainError(core.ModuleStore, core.ErrorCodeInvalidInput, "blacklist is not a JSON array of ids", err)
	}
	return ids, nil
}

// SetBlacklist 把黑名单写入 Store。
func (a *StoreAdapter) SetBlacklist(ctx context.Context, key string, ids []int64) error {
	if key == "" {
		key = DefaultBlacklistKey
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	return a.store.Set(ctx, key, data)
}
