package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rushteam/movierec/core"
)

// RedisStore 是 Redis 实现的 KeyValueStore。
// 多个推荐服务实例可以通过它共享同一份训练好的模型与用户历史。
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore 建立连接并 Ping 一次，连不上时直接返回错误。
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, core.WrapDomainError(core.ModuleStore, core.ErrorCodeUnavailable,
			fmt.Sprintf("store: redis %s unreachable", cfg.Addr), err)
	}
	return &RedisStore{client: client}, nil
}

// NewRedisStoreFromClient 包装一个已有的客户端。
func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (r *RedisStore) Name() string { return "redis" }

func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, core.ErrStoreNotFound
	}
	return val, err
}

func (r *RedisStore) Set(ctx context.Context, key string, value []byte, ttl ...int) error {
	return r.client.Set(ctx, key, value, expiration(ttl)).Err()
}

func (r *RedisStore) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

// batchSize 是单条 ZADD / HSET 命令携带的成员数上限，超过时拆成多条命令放进同一个 pipeline。
const batchSize = 1000

func (r *RedisStore) ZAdd(ctx context.Context, key string, members map[string]float64) error {
	if len(members) == 0 {
		return nil
	}
	zs := make([]redis.Z, 0, len(members))
	for member, score := range members {
		zs = append(zs, redis.Z{Score: score, Member: member})
	}
	_, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for lo := 0; lo < len(zs); lo += batchSize {
			pipe.ZAdd(ctx, key, zs[lo:min(lo+batchSize, len(zs))]...)
		}
		return nil
	})
	return err
}

func (r *RedisStore) ZRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	return r.client.ZRevRange(ctx, key, start, stop).Result()
}

func (r *RedisStore) HSet(ctx context.Context, key string, fields map[string][]byte) error {
	if len(fields) == 0 {
		return nil
	}
	args := make([]any, 0, 2*min(len(fields), batchSize))
	_, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for field, v := range fields {
			args = append(args, field, v)
			if len(args) == 2*batchSize {
				pipe.HSet(ctx, key, args...)
				args = make([]any, 0, 2*batchSize)
			}
		}
		if len(args) > 0 {
			pipe.HSet(ctx, key, args...)
		}
		return nil
	})
	return err
}

func (r *RedisStore) HGetAll(ctx context.Context, key string) (map[string][]byte, error) {
	vals, err := r.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	result := make(map[string][]byte, len(vals))
	for k, v := range vals {
		result[k] = []byte(v)
	}
	return result, nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

func expiration(ttl []int) time.Duration {
	if len(ttl) > 0 && ttl[0] > 0 {
		return time.Duration(ttl[0]) * time.Second
	}
	return 0
}

var _ core.KeyValueStore = (*RedisStore)(nil)
