package recall

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rushteam/movierec/core"
	"github.com/rushteam/movierec/pipeline"
	"github.com/rushteam/movierec/pkg/utils"
)

// DefaultPopularKey 是热门榜在存储中的默认 key。
const DefaultPopularKey = "movierec:popular"

// Popular 是热门召回：按评分人数从高到低召回前 Limit 部电影，适合冷启动用户。
//   - Store 实现了 KeyValueStore 时读取有序集合（按分数降序）
//   - 否则从普通 key 读取 JSON 数组
//   - Store 为空或 key 不存在时使用 IDs
//
// 不在目录中的 ID 会被跳过。
type Popular struct {
	Catalog *core.Catalog
	Store   core.Store
	Key     string
	IDs     []string

	// Limit <= 0 时为 100
	Limit int
}

func (r *Popular) Name() string        { return "recall.popular" }
func (r *Popular) Kind() pipeline.Kind { return pipeline.KindRecall }

func (r *Popular) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	_ []*core.Item,
) ([]*core.Item, error) {
	return r.Recall(ctx, rctx)
}

func (r *Popular) Recall(
	ctx context.Context,
	_ *core.RecommendContext,
) ([]*core.Item, error) {
	limit := r.Limit
	if limit <= 0 {
		limit = 100
	}

	ids, err := r.load(ctx, limit)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		ids = r.IDs
	}

	out := make([]*core.Item, 0, min(limit, len(ids)))
	for _, id := range ids {
		if len(out) == limit {
			break
		}
		m, ok := r.Catalog.Get(id)
		if !ok {
			continue
		}
		out = append(out, movieItem(m, "popular"))
	}
	return out, nil
}

func (r *Popular) load(ctx context.Context, limit int) ([]string, error) {
	if r.Store == nil {
		return nil, nil
	}
	key := r.Key
	if key == "" {
		key = DefaultPopularKey
	}

	if kv, ok := r.Store.(core.KeyValueStore); ok {
		ids, err := kv.ZRange(ctx, key, 0, int64(limit-1))
		if err != nil && !core.IsStoreNotFound(err) {
			return nil, fmt.Errorf("recall.popular: %w", err)
		}
		return ids, nil
	}

	data, err := r.Store.Get(ctx, key)
	if err != nil {
		if core.IsStoreNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("recall.popular: %w", err)
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("recall.popular: decode %s: %w", key, err)
	}
	return ids, nil
}

// movieItem 把目录中的电影转成候选 item，并标记召回来源。
func movieItem(m core.Movie, source string) *core.Item {
	it := core.NewItem(m.ID)
	it.Meta[core.MetaTitle] = m.Title
	it.Meta[core.MetaGenres] = append([]string(nil), m.Genres...)
	it.PutLabel("recall_source", utils.Label{Value: source, Source: "recall"})
	return it
}

var (
	_ Source        = (*Popular)(nil)
	_ pipeline.Node = (*Popular)(nil)
)
