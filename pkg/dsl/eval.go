// Package dsl 提供基于 CEL (Common Expression Language) 的条件表达式，
// 用于在配置中声明过滤规则，例如：
//
//	"Horror" in item.genres
//	label.recall_source == "popular" && item.title.contains("Christmas")
//	rctx.scene == "kids" && !("Animation" in item.genres)
//
// item 只暴露 id、title、genres、meta、labels。过滤发生在打分之前，没有分数可用，
// 引用其他字段（例如 item.score）在编译期报错。
package dsl

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	celast "github.com/google/cel-go/common/ast"
	"github.com/google/cel-go/common/operators"
	"github.com/google/cel-go/common/types"

	"github.com/rushteam/movierec/core"
)

var (
	// celEnv 是全局的 CEL 环境，线程安全，可复用
	celEnv     *cel.Env
	celEnvErr  error
	celEnvOnce sync.Once

	programs sync.Map // expr -> *Program
)

func getCELEnv() (*cel.Env, error) {
	celEnvOnce.Do(func() {
		celEnv, celEnvErr = cel.NewEnv(
			cel.Variable("item", cel.DynType),
			cel.Variable("label", cel.DynType),
			cel.Variable("rctx", cel.DynType),
		)
	})
	return celEnv, celEnvErr
}

// Program 是编译好的布尔表达式，可被多个 goroutine 并发求值。
type Program struct {
	expr string
	prg  cel.Program
}

// Compile 编译表达式，要求结果类型为 bool（或动态类型，运行期再检查）。
// 编译结果按表达式文本缓存。
func Compile(expr string) (*Program, error) {
	if cached, ok := programs.Load(expr); ok {
		return cached.(*Program), nil
	}
	env, err := getCELEnv()
	if err != nil {
		return nil, fmt.Errorf("cel env: %w", err)
	}
	checked, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile %q: %w", expr, issues.Err())
	}
	if t := checked.OutputType(); t != cel.BoolType && t != cel.DynType {
		return nil, fmt.Errorf("compile %q: expression must return bool, got %s", expr, t)
	}
	if field := unknownItemField(checked); field != "" {
		return nil, fmt.Errorf("compile %q: item has no field %q (available: id, title, genres, meta, labels)", expr, field)
	}
	prg, err := env.Program(checked)
	if err != nil {
		return nil, fmt.Errorf("program %q: %w", expr, err)
	}
	p := &Program{expr: expr, prg: prg}
	programs.Store(expr, p)
	return p, nil
}

// MustCompile 与 Compile 相同，出错时 panic，用于测试或常量表达式。
func MustCompile(expr string) *Program {
	p, err := Compile(expr)
	if err != nil {
		panic(err)
	}
	return p
}

func (p *Program) String() string { return p.expr }

// Match 对单个 item 求值。
// 访问不存在的 label 会报错，需要先用 `"key" in label` 判断。
func (p *Program) Match(item *core.Item, rctx *core.RecommendContext) (bool, error) {
	out, _, err := p.prg.Eval(buildInput(item, rctx))
	if err != nil {
		return false, fmt.Errorf("eval %q: %w", p.expr, err)
	}
	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("eval %q: expression must return bool, got %T", p.expr, out.Value())
	}
	return result, nil
}

// Evaluate 编译（带缓存）并求值，空表达式恒为 true。
func Evaluate(expr string, item *core.Item, rctx *core.RecommendContext) (bool, error) {
	if expr == "" {
		return true, nil
	}
	p, err := Compile(expr)
	if err != nil {
		return false, err
	}
	return p.Match(item, rctx)
}

var itemFields = map[string]struct{}{
	"id": {}, "title": {}, "genres": {}, "meta": {}, "labels": {},
}

// unknownItemField 返回表达式中第一个不存在的 item 字段（item.x 或 item["x"]），没有时返回空串。
func unknownItemField(checked *cel.Ast) string {
	var bad string
	celast.PreOrderVisit(checked.NativeRep().Expr(), celast.NewExprVisitor(func(e celast.Expr) {
		if bad != "" {
			return
		}
		if field, ok := itemField(e); ok {
			if _, known := itemFields[field]; !known {
				bad = field
			}
		}
	}))
	return bad
}

func itemField(e celast.Expr) (string, bool) {
	switch e.Kind() {
	case celast.SelectKind:
		sel := e.AsSelect()
		if isIdent(sel.Operand(), "item") {
			return sel.FieldName(), true
		}
	case celast.CallKind:
		call := e.AsCall()
		fn := call.FunctionName()
		if (fn != operators.Index && fn != operators.OptIndex) || len(call.Args()) != 2 {
			return "", false
		}
		key := call.Args()[1]
		if isIdent(call.Args()[0], "item") && key.Kind() == celast.LiteralKind {
			if s, ok := key.AsLiteral().(types.String); ok {
				return string(s), true
			}
		}
	}
	return "", false
}

func isIdent(e celast.Expr, name string) bool {
	return e.Kind() == celast.IdentKind && e.AsIdent() == name
}

func buildInput(item *core.Item, rctx *core.RecommendContext) map[string]any {
	labels := map[string]any{}
	itemInput := map[string]any{
		"id":     "",
		"title":  "",
		"genres": []string{},
		"meta":   map[string]any{},
		"labels": map[string]any{},
	}
	if item != nil {
		full := make(map[string]any, len(item.Labels))
		for k, v := range item.Labels {
			labels[k] = v.Value
			full[k] = map[string]any{"value": v.Value, "source": v.Source}
		}
		genres := item.Genres()
		if genres == nil {
			genres = []string{}
		}
		meta := item.Meta
		if meta == nil {
			meta = map[string]any{}
		}
		itemInput = map[string]any{
			"id":     item.ID,
			"title":  item.Title(),
			"genres": genres,
			"meta":   meta,
			"labels": full,
		}
	}

	rctxInput := map[string]any{
		"user_id": "",
		"scene":   "",
		"params":  map[string]any{},
	}
	if rctx != nil {
		params := rctx.Params
		if params == nil {
			params = map[string]any{}
		}
		rctxInput = map[string]any{
			"user_id": rctx.UserID,
			"scene":   rctx.Scene,
			"params":  params,
		}
	}

	return map[string]any{
		"item":  itemInput,
		"label": labels,
		"rctx":  rctxInput,
	}
}
