package rerank

import (
	"context"

	"github.com/rushteam/movierec/core"
	"github.com/rushteam/movierec/pipeline"
)

// TopNNode 在排序之后截取前 N 个物品。
//
//	pipeline := &pipeline.Pipeline{
//	    Nodes: []pipeline.Node{
//	        &recall.Catalog{...},
//	        &filter.FilterNode{...},
//	        &rank.MFNode{...},
//	        &rerank.TopNNode{N: 10},
//	    },
//	}
type TopNNode struct {
	// N <= 0 时不截断
	N int

	// MinScore > 0 时丢弃分数低于它的物品，例如只推荐预测评分不低于 3.5 的电影
	MinScore float64
}

func (n *TopNNode) Name() string {
	return "rerank.topn"
}

func (n *TopNNode) Kind() pipeline.Kind {
	return pipeline.KindReRank
}

// Process 按 MinScore 过滤后截断 items。请求上下文中的 Params["top_n"] 优先于 N。
func (n *TopNNode) Process(
	_ context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	limit := n.N
	if rctx != nil {
		if v, ok := rctx.Params[ParamTopN].(int); ok && v > 0 {
			limit = v
		}
	}
	if n.MinScore > 0 {
		kept := items[:0:0]
		for _, it := range items {
			if it != nil && it.Score >= n.MinScore {
				kept = append(kept, it)
			}
		}
		items = kept
	}
	if limit <= 0 || len(items) <= limit {
		return items, nil
	}
	return items[:limit], nil
}

// ParamTopN 是 RecommendContext.Params 中请求级 Top-N 的 key。
const ParamTopN = "top_n"
