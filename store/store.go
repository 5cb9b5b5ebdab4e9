// Package store 提供 core.Store / core.KeyValueStore 的实现。
//
// 接口定义在 core 包，这里只有后端：
//
//	var s core.Store = store.NewMemoryStore()
//	rs, err := store.NewRedisStore(store.RedisConfig{Addr: "127.0.0.1:6379"})
//
// 推荐服务用它保存序列化后的模型（model.KVStore）和用户评分历史（filter.StoreAdapter）。
package store

import (
	"fmt"
	"strings"

	"github.com/rushteam/movierec/core"
)

// Config 描述后端的选择，对应配置文件中的 persist.store 段。
type Config struct {
	// Type: memory | redis
	Type  string      `yaml:"type"`
	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig 是 Redis 连接参数。
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// TypeMemory 和 TypeRedis 是 Config.Type 支持的取值。
const (
	TypeMemory = "memory"
	TypeRedis  = "redis"
)

// Open 按配置创建后端。空 Type 视为 memory。
func Open(cfg Config) (core.KeyValueStore, error) {
	switch strings.ToLower(cfg.Type) {
	case "", TypeMemory:
		return NewMemoryStore(), nil
	case TypeRedis:
		return NewRedisStore(cfg.Redis)
	default:
		return nil, core.NewDomainError(core.ModuleStore, core.ErrorCodeNotSupported,
			fmt.Sprintf("store: unknown backend %q", cfg.Type))
	}
}
