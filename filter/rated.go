package filter

import (
	"context"

	"github.com/rushteam/movierec/core"
)

// HistoryStore 提供用户已评分的电影 ID。
// 用户没有任何评分时返回空列表而不是错误。
type HistoryStore interface {
	RatedItems(ctx context.Context, userID string) ([]string, error)
}

// RatedFilter 过滤掉用户已经评分（看过）的电影。
// Rated 是调用方直接给出的历史；Store 非空时再合并存储中的历史。
type RatedFilter struct {
	Rated []string
	Store HistoryStore
}

// NewRatedFilter 创建已评分过滤器，两个参数都可为空。
func NewRatedFilter(rated []string, store HistoryStore) *RatedFilter {
	return &RatedFilter{Rated: rated, Store: store}
}

func (f *RatedFilter) Name() string {
	return "filter.rated"
}

// Bind 读取一次用户历史，返回按 ID 判断的过滤器。
func (f *RatedFilter) Bind(ctx context.Context, rctx *core.RecommendContext) (Filter, error) {
	var stored []string
	if f.Store != nil && rctx != nil && rctx.UserID != "" {
		ids, err := f.Store.RatedItems(ctx, rctx.UserID)
		if err != nil {
			return nil, err
		}
		stored = ids
	}
	return newIDSet(f.Name(), f.Rated, stored), nil
}

// ShouldFilter 供单独使用；在 FilterNode 中会先 Bind。
func (f *RatedFilter) ShouldFilter(ctx context.Context, rctx *core.RecommendContext, item *core.Item) (bool, error) {
	bf, err := f.Bind(ctx, rctx)
	if err != nil {
		return false, err
	}
	return bf.ShouldFilter(ctx, rctx, item)
}

var (
	_ Filter = (*RatedFilter)(nil)
	_ Binder = (*RatedFilter)(nil)
)
