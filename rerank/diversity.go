package rerank

import (
	"context"

	"github.com/rushteam/movierec/core"
	"github.com/rushteam/movierec/pipeline"
)

// Diversity 按主类型（第一个 genre）打散结果：同一主类型在前面最多出现 MaxPerGenre 次，
// 超出的电影保持相对顺序移到末尾，而不是丢弃，这样后面的 rerank.topn 仍能凑满 N 个。
// 没有类型的电影不受限制。
type Diversity struct {
	// MaxPerGenre <= 0 时为 1
	MaxPerGenre int
}

func (n *Diversity) Name() string {
	return "rerank.diversity"
}

func (n *Diversity) Kind() pipeline.Kind {
	return pipeline.KindReRank
}

func (n *Diversity) Process(
	_ context.Context,
	_ *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if len(items) == 0 {
		return items, nil
	}
	limit := n.MaxPerGenre
	if limit <= 0 {
		limit = 1
	}

	seen := make(map[string]int, 16)
	out := make([]*core.Item, 0, len(items))
	var overflow []*core.Item

	for _, it := range items {
		if it == nil {
			continue
		}
		genres := it.Genres()
		if len(genres) == 0 {
			out = append(out, it)
			continue
		}
		primary := genres[0]
		if seen[primary] >= limit {
			overflow = append(overflow, it)
			continue
		}
		seen[primary]++
		out = append(out, it)
	}
	return append(out, overflow...), nil
}
