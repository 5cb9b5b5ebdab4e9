package recall

import (
	"context"

	"github.com/rushteam/movierec/core"
)

// Source 表示一个可复用的召回源。
type Source interface {
	Name() string
	Recall(ctx context.Context, rctx *core.RecommendContext) ([]*core.Item, error)
}
