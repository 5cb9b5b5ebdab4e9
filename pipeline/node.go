package pipeline

import (
	"context"

	"github.com/rushteam/movierec/core"
)

// Kind 标记 Node 所处阶段，方便按阶段打点与校验编排顺序。
type Kind string

const (
	KindRecall Kind = "recall" // 生成候选集
	KindFilter Kind = "filter" // 剔除不该推荐的候选
	KindRank   Kind = "rank"   // 打分并排序
	KindReRank Kind = "rerank" // 截断或重排
)

// Node 是 Pipeline 的最小可扩展单元，统一为 "输入 items -> 输出 items"。
type Node interface {
	Name() string
	Kind() Kind

	Process(
		ctx context.Context,
		rctx *core.RecommendContext,
		items []*core.Item,
	) ([]*core.Item, error)
}
