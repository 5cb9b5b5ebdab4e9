package filter

import (
	"context"

	"github.com/rushteam/movierec/core"
)

// BlacklistFilter 是黑名单过滤器，过滤掉运营下架或屏蔽的电影。
type BlacklistFilter struct {
	// ItemIDs 是内存中的黑名单
	ItemIDs []string

	// Store 用于从存储中读取黑名单（可选）
	Store BlacklistStore

	// Key 是 Store 中的黑名单 key
	Key string
}

// BlacklistStore 是黑名单存储接口。key 不存在时返回空列表。
type BlacklistStore interface {
	GetBlacklist(ctx context.Context, key string) ([]string, error)
}

// NewBlacklistFilter 创建一个黑名单过滤器。
func NewBlacklistFilter(itemIDs []string, store BlacklistStore, key string) *BlacklistFilter {
	return &BlacklistFilter{
		ItemIDs: itemIDs,
		Store:   store,
		Key:     key,
	}
}

func (f *BlacklistFilter) Name() string {
	return "filter.blacklist"
}

func (f *BlacklistFilter) Bind(ctx context.Context, _ *core.RecommendContext) (Filter, error) {
	var stored []string
	if f.Store != nil && f.Key != "" {
		ids, err := f.Store.GetBlacklist(ctx, f.Key)
		if err != nil {
			return nil, err
		}
		stored = ids
	}
	return newIDSet(f.Name(), f.ItemIDs, stored), nil
}

func (f *BlacklistFilter) ShouldFilter(ctx context.Context, rctx *core.RecommendContext, item *core.Item) (bool, error) {
	bf, err := f.Bind(ctx, rctx)
	if err != nil {
		return false, err
	}
	return bf.ShouldFilter(ctx, rctx, item)
}

var (
	_ Filter = (*BlacklistFilter)(nil)
	_ Binder = (*BlacklistFilter)(nil)
)
