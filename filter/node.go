package filter

import (
	"context"
	"fmt"

	"github.com/rushteam/movierec/core"
	"github.com/rushteam/movierec/pipeline"
)

// FilterNode 组合多个过滤器，任何一个返回 true 的 item 都会被移除。
// 过滤器出错时整个 Node 失败，不会把本应排除的电影推荐出去。
type FilterNode struct {
	Filters []Filter
}

func (n *FilterNode) Name() string {
	return "filter"
}

func (n *FilterNode) Kind() pipeline.Kind {
	return pipeline.KindFilter
}

func (n *FilterNode) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if len(n.Filters) == 0 || len(items) == 0 {
		return items, nil
	}

	bound := make([]Filter, 0, len(n.Filters))
	for _, f := range n.Filters {
		if b, ok := f.(Binder); ok {
			bf, err := b.Bind(ctx, rctx)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", f.Name(), err)
			}
			f = bf
		}
		bound = append(bound, f)
	}

	out := make([]*core.Item, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		drop := false
		for _, f := range bound {
			ok, err := f.ShouldFilter(ctx, rctx, item)
			if err != nil {
				return nil, fmt.Errorf("%s: item %s: %w", f.Name(), item.ID, err)
			}
			if ok {
				drop = true
				break
			}
		}
		if !drop {
			out = append(out, item)
		}
	}
	return out, nil
}
