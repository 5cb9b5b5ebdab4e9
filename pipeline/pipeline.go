package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rushteam/movierec/core"
)

// StageStats 是单个 Node 执行一次的观测数据。
type StageStats struct {
	Node     string
	Kind     Kind
	In       int
	Out      int
	Duration time.Duration
	Err      error
}

// Hook 在每个 Node 执行结束后被调用，用于打点或日志。
type Hook func(StageStats)

// Pipeline 把推荐逻辑拆成按顺序执行的 Node 链：召回 -> 过滤 -> 排序 -> 截断。
type Pipeline struct {
	Nodes []Node
	Hooks []Hook
}

// Run 依次执行各 Node，任何一个出错即中止。
// 返回的错误带上出错 Node 的名字，原始错误可通过 errors.Is / errors.As 取得。
func (p *Pipeline) Run(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	cur := items
	for _, node := range p.Nodes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		start := time.Now()
		next, err := node.Process(ctx, rctx, cur)
		p.emit(StageStats{
			Node:     node.Name(),
			Kind:     node.Kind(),
			In:       len(cur),
			Out:      len(next),
			Duration: time.Since(start),
			Err:      err,
		})
		if err != nil {
			return nil, fmt.Errorf("%s: %w", node.Name(), err)
		}
		cur = next
	}
	return cur, nil
}

func (p *Pipeline) emit(s StageStats) {
	for _, h := range p.Hooks {
		h(s)
	}
}
