package filter

import (
	"context"

	"github.com/rushteam/movierec/core"
	"github.com/rushteam/movierec/pkg/dsl"
)

// ExprFilter 用 CEL 表达式声明过滤规则，表达式为 true 的 item 被移除。
// 例如 `"Horror" in item.genres` 可以在某个场景下屏蔽恐怖片。
type ExprFilter struct {
	program *dsl.Program
}

// NewExprFilter 编译表达式，语法错误在构建期返回。
func NewExprFilter(expr string) (*ExprFilter, error) {
	p, err := dsl.Compile(expr)
	if err != nil {
		return nil, err
	}
	return &ExprFilter{program: p}, nil
}

func (f *ExprFilter) Name() string {
	return "filter.expr"
}

func (f *ExprFilter) Expr() string {
	return f.program.String()
}

func (f *ExprFilter) ShouldFilter(_ context.Context, rctx *core.RecommendContext, item *core.Item) (bool, error) {
	return f.program.Match(item, rctx)
}
