package stats

import (
	"context"
	"fmt"
	"strconv"
	"time"

	json "github.com/goccy/go-json"

	"github.com/rushteam/agentrec/core"
)

// DefaultSnapshotKey 是快照在 KeyValueStore 中的哈希表名。
const DefaultSnapshotKey = "agentrec:item_stats"

// snapshotBatch 是单次批量写入的字段数。
const snapshotBatch = 500

// builtAtKey 是快照的时间标记，标记过期后快照视为不存在。
func builtAtKey(key string) string { return key + ":built_at" }

// SaveSnapshot 把统计写入哈希表：field 为物品 ID，value 为 JSON。
// 先清空旧哈希表，写完后设置时间标记；ttl <= 0 表示快照不过期。
func SaveSnapshot(ctx context.Context, kv core.KeyValueStore, key string, s *Stats, ttl time.Duration) error {
	if key == "" {
		key = DefaultSnapshotKey
	}
	if err := kv.Delete(ctx, key); err != nil {
		return fmt.Errorf("clear item stats in %s: %w", kv.Name(), err)
	}
	batch := make(map[string][]byte, snapshotBatch)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := kv.HSetMany(ctx, key, batch); err != nil {
			return fmt.Errorf("save item stats to %s: %w", kv.Name(), err)
		}
		batch = make(map[string][]byte, snapshotBatch)
		return nil
	}
	for id, e := range s.entries {
		b, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal item stats %d: %w", id, err)
		}
		batch[strconv.FormatInt(id, 10)] = b
		if len(batch) >= snapshotBatch {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := flush(); err != nil {
		return err
	}

	var seconds int
	if ttl > 0 {
		seconds = max(int(ttl/time.Second), 1)
	}
	stamp := []byte(time.Now().UTC().Format(time.RFC3339))
	if err := kv.Set(ctx, builtAtKey(key), stamp, seconds); err != nil {
		return fmt.Errorf("mark item stats in %s: %w", kv.Name(), err)
	}
	return nil
}

// LoadSnapshot 读取快照；时间标记缺失（过期）或哈希表为空时返回 NOT_FOUND 领域错误。
// 无法解析的字段会被跳过。
func LoadSnapshot(ctx context.Context, kv core.KeyValueStore, key string) (*Stats, error) {
	if key == "" {
		key = DefaultSnapshotKey
	}
	if _, err := kv.Get(ctx, builtAtKey(key)); err != nil {
		if core.IsStoreNotFound(err) {
			return nil, core.NewDomainError(core.ModuleStore, core.ErrorCodeNotFound, "item stats snapshot missing or expired: "+key)
		}
		return nil, fmt.Errorf("load item stats marker from %s: %w", kv.Name(), err)
	}
	raw, err := kv.HGetAll(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load item stats from %s: %w", kv.Name(), err)
	}
	if len(raw) == 0 {
		return nil, core.NewDomainError(core.ModuleStore, core.ErrorCodeNotFound, "item stats snapshot not found: "+key)
	}
	entries := make(map[int64]Entry, len(raw))
	for field, b := range raw {
		id, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			continue
		}
		var e Entry
		if err := json.Unmarshal(b, &e); err != nil {
			continue
		}
		entries[id] = e
	}
	return &Stats{entries: entries}, nil
}
