package core

import "context"

// Store 是存储的领域接口。
//
// 设计原则：
//   - 定义在领域层（core），由基础设施层（store）实现
//   - 领域层不依赖基础设施层，避免循环依赖
//
// 使用场景：
//   - 模型持久化：序列化后的 SVD 模型（model.KVStore）
//   - 用户评分历史、黑名单（filter.StoreAdapter）
//   - 热门榜（recall.Popular）、电影目录（dataset.PublishCatalog）
//
// 实现：
//   - store.MemoryStore 实现此接口
//   - store.RedisStore 实现此接口
type Store interface {
	// Name 返回存储后端名称（用于日志/监控）
	Name() string

	// Get 读取单个 key 的值，key 不存在时返回 ErrStoreNotFound
	Get(ctx context.Context, key string) ([]byte, error)

	// Set 写入单个 key-value，ttl 单位为秒，不传或 <= 0 表示不过期
	Set(ctx context.Context, key string, value []byte, ttl ...int) error

	// Delete 删除单个 key
	Delete(ctx context.Context, key string) error

	// Close 关闭连接/释放资源
	Close() error
}

// KeyValueStore 是 Store 的扩展接口，支持有序集合与哈希表。
// 如果后端不支持某些操作，可返回 ErrStoreNotSupported。
type KeyValueStore interface {
	Store

	// ZAdd 向有序集合批量添加成员（member -> score），已存在的成员覆盖分数
	ZAdd(ctx context.Context, key string, members map[string]float64) error

	// ZRange 按分数降序获取有序集合成员（闭区间 [start, stop]）
	ZRange(ctx context.Context, key string, start, stop int64) ([]string, error)

	// HSet 批量写入 Hash 字段
	HSet(ctx context.Context, key string, fields map[string][]byte) error

	// HGetAll 读取整个 Hash，key 不存在时返回空 map
	HGetAll(ctx context.Context, key string) (map[string][]byte, error)
}

// Store 错误定义（使用统一的 DomainError）
var (
	// ErrStoreNotFound 表示 key 不存在
	ErrStoreNotFound = NewDomainError(ModuleStore, ErrorCodeNotFound, "store: key not found")

	// ErrStoreNotSupported 表示操作不支持
	ErrStoreNotSupported = NewDomainError(ModuleStore, ErrorCodeNotSupported, "store: operation not supported")
)

// IsStoreNotFound 检查错误是否为 key 不存在
func IsStoreNotFound(err error) bool {
	domainErr := GetDomainError(err)
	if domainErr != nil && domainErr.Module == ModuleStore {
		return domainErr.Code == ErrorCodeNotFound
	}
	return false
}

// IsStoreNotSupported 检查错误是否为操作不支持
func IsStoreNotSupported(err error) bool {
	domainErr := GetDomainError(err)
	if domainErr != nil && domainErr.Module == ModuleStore {
		return domainErr.Code == ErrorCodeNotSupported
	}
	return false
}
