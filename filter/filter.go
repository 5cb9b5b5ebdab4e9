package filter

import (
	"context"

	"github.com/rushteam/movierec/core"
)

// Filter 判断一个 Item 是否应该被过滤掉，返回 true 表示移除。
type Filter interface {
	Name() string

	ShouldFilter(ctx context.Context, rctx *core.RecommendContext, item *core.Item) (bool, error)
}

// Binder 由需要按请求预取数据的过滤器实现（例如读取用户评分历史）。
// FilterNode 每次 Process 先调用一次 Bind，再用返回的 Filter 逐个判断 item，
// 避免对每个候选都访问一次存储。
type Binder interface {
	Bind(ctx context.Context, rctx *core.RecommendContext) (Filter, error)
}

// idSet 是按 ID 判断的过滤器，被 Bind 的结果复用。
type idSet struct {
	name string
	ids  map[string]struct{}
}

func newIDSet(name string, lists ...[]string) *idSet {
	s := &idSet{name: name, ids: make(map[string]struct{})}
	for _, l := range lists {
		for _, id := range l {
			s.ids[id] = struct{}{}
		}
	}
	return s
}

func (s *idSet) Name() string { return s.name }

func (s *idSet) ShouldFilter(_ context.Context, _ *core.RecommendContext, item *core.Item) (bool, error) {
	if item == nil {
		return true, nil
	}
	_, ok := s.ids[item.ID]
	return ok, nil
}
