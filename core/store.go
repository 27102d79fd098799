package core

import "context"

// Store 是键值存储接口，由 store 包实现（MemoryStore / RedisStore）。
//
// 请求路径上不写存储：只在启动阶段读写物品统计快照与屏蔽列表。
type Store interface {
	Name() string

	// Get 读取单个 key，不存在时返回 ErrStoreNotFound
	Get(ctx context.Context, key string) ([]byte, error)

	// Set 写入单个 key，ttl 单位为秒
	Set(ctx context.Context, key string, value []byte, ttl ...int) error

	Delete(ctx context.Context, key string) error
	Close() error
}

// KeyValueStore 在 Store 之上增加哈希表操作。
// 物品统计快照以哈希表保存：key 为快照名，field 为物品 ID。
type KeyValueStore interface {
	Store

	HGet(ctx context.Context, key, field string) ([]byte, error)
	HSet(ctx context.Context, key, field string, value []byte) error

	// HSetMany 一次写入多个字段
	HSetMany(ctx context.Context, key string, fields map[string][]byte) error

	// HGetAll 读取整个哈希表，不存在时返回空 map
	HGetAll(ctx context.Context, key string) (map[string][]byte, error)
}

// ErrStoreNotFound 表示 key 或字段不存在。
var ErrStoreNotFound = NewDomainError(ModuleStore, ErrorCodeNotFound, "store: key not found")

// IsStoreNotFound 判断是否为存储层的 NOT_FOUND。
func IsStoreNotFound(err error) bool {
	domainErr := GetDomainError(err)
	return domainErr != nil && domainErr.Module == ModuleStore && domainErr.Code == ErrorCodeNotFound
}
