package recall

import (
	"context"

	"github.com/rushteam/movierec/core"
	"github.com/rushteam/movierec/pipeline"
)

// Catalog 是全量目录召回：把目录里的每部电影都作为候选，
// 排除已看过的电影交给后面的 filter，打分交给 rank.mf。
//
// 候选顺序与目录的插入顺序一致；Meta 中带上片名和类型，供过滤与结果拼装使用。
type Catalog struct {
	Catalog *core.Catalog

	// Genres 非空时只召回至少属于其中一个类型的电影
	Genres []string
}

func (r *Catalog) Name() string        { return "recall.catalog" }
func (r *Catalog) Kind() pipeline.Kind { return pipeline.KindRecall }

// Process 忽略上游 items，直接产出目录候选。
func (r *Catalog) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	_ []*core.Item,
) ([]*core.Item, error) {
	return r.Recall(ctx, rctx)
}

func (r *Catalog) Recall(
	_ context.Context,
	_ *core.RecommendContext,
) ([]*core.Item, error) {
	if r.Catalog.Len() == 0 {
		return nil, nil
	}

	var wanted map[string]struct{}
	if len(r.Genres) > 0 {
		wanted = make(map[string]struct{}, len(r.Genres))
		for _, g := range r.Genres {
			wanted[g] = struct{}{}
		}
	}

	out := make([]*core.Item, 0, r.Catalog.Len())
	r.Catalog.Range(func(m core.Movie) bool {
		if wanted != nil && !hasAnyGenre(m.Genres, wanted) {
			return true
		}
		out = append(out, movieItem(m, "catalog"))
		return true
	})
	return out, nil
}

func hasAnyGenre(genres []string, wanted map[string]struct{}) bool {
	for _, g := range genres {
		if _, ok := wanted[g]; ok {
			return true
		}
	}
	return false
}

var (
	_ Source        = (*Catalog)(nil)
	_ pipeline.Node = (*Catalog)(nil)
)
