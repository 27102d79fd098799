package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rushteam/agentrec/core"
)

// RedisStore 是 Redis 实现的 KeyValueStore。
// 多实例部署时共享物品统计快照与屏蔽列表，避免每个实例都扫描评分文件。
type RedisStore struct {
	client *redis.Client
	addr   string
}

// RedisOptions Redis 连接参数
type RedisOptions struct {
	Addr     string
	Password string
	DB       int

	// DialTimeout 建连超时，0 使用 go-redis 默认值
	DialTimeout time.Duration
}

// NewRedisStore 建立连接并 PING，失败时返回 UNAVAILABLE。
func NewRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        opts.Addr,
		Password:    opts.Password,
		DB:          opts.DB,
		DialTimeout: opts.DialTimeout,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, core.WrapDomainError(core.ModuleStore, core.ErrorCodeUnavailable, fmt.Sprintf("redis %s unreachable", opts.Addr), err)
	}
	return &RedisStore{client: client, addr: opts.Addr}, nil
}

func (r *RedisStore) Name() string { return "redis" }

func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, r.wrap("get "+key, err)
	}
	return val, nil
}

// Set ttl 单位为秒，不传或 <=0 表示不过期。
func (r *RedisStore) Set(ctx context.Context, key string, value []byte, ttl ...int) error {
	var expiration time.Duration
	if len(ttl) > 0 && ttl[0] > 0 {
		expiration = time.Duration(ttl[0]) * time.Second
	}
	return r.wrap("set "+key, r.client.Set(ctx, key, value, expiration).Err())
}

func (r *RedisStore) Delete(ctx context.Context, key string) error {
	return r.wrap("del "+key, r.client.Del(ctx, key).Err())
}

func (r *RedisStore) HGet(ctx context.Context, key, field string) ([]byte, error) {
	val, err := r.client.HGet(ctx, key, field).Bytes()
	if err != nil {
		return nil, r.wrap("hget "+key, err)
	}
	return val, nil
}

func (r *RedisStore) HSet(ctx context.Context, key, field string, value []byte) error {
	return r.wrap("hset "+key, r.client.HSet(ctx, key, field, value).Err())
}

// HSetMany 以一条 HSET 命令写入所有字段。
func (r *RedisStore) HSetMany(ctx context.Context, key string, fields map[string][]byte) error {
	if len(fields) == 0 {
		return nil
	}
	values := make(map[string]any, len(fields))
	for f, v := range fields {
		values[f] = v
	}
	return r.wrap("hset "+key, r.client.HSet(ctx, key, values).Err())
}

// HGetAll key 不存在时返回空 map。
func (r *RedisStore) HGetAll(ctx context.Context, key string) (map[string][]byte, error) {
	vals, err := r.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, r.wrap("hgetall "+key, err)
	}
	out := make(map[string][]byte, len(vals))
	for k, v := range vals {
		out[k] = []byte(v)
	}
	return out, nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

// wrap redis.Nil 转为 ErrStoreNotFound，其余错误标记为 UNAVAILABLE。
func (r *RedisStore) wrap(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, redis.Nil):
		return core.ErrStoreNotFound
	default:
		return core.WrapDomainError(core.ModuleStore, core.ErrorCodeUnavailable, fmt.Sprintf("redis %s: %s", r.addr, op), err)
	}
}

var _ core.KeyValueStore = (*RedisStore)(nil)
