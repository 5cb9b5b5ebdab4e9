// Package recommend 组装推荐链路，对外提供 Top-N 推荐。
//
// Recommend 是无状态的函数式入口：给定模型、目录与历史，返回 Top-N；
// Service 在其之上负责模型的加载、训练、持久化与热替换，以及日志与指标。
package recommend

import (
	"context"
	"fmt"

	"github.com/rushteam/movierec/config"
	_ "github.com/rushteam/movierec/config/builders"
	"github.com/rushteam/movierec/core"
	"github.com/rushteam/movierec/model"
	"github.com/rushteam/movierec/pipeline"
	"github.com/rushteam/movierec/rerank"
)

// Recommendation 是推荐结果中的一行。
type Recommendation struct {
	ItemID          string  `json:"item_id"`
	Title           string  `json:"title"`
	PredictedRating float64 `json:"predicted_rating"`
}

// Recommend 为 userID 推荐最多 n 部目录中、且不在 history 里的电影，按预测评分降序。
//
// 返回 min(n, |catalog - history|) 条；目录为空或全部看过时返回空切片。
// n < 1 返回 ErrInvalidInput，m 为 nil（或空 Holder）返回 ErrModelNotReady。
func Recommend(
	ctx context.Context,
	m model.RatingModel,
	userID string,
	catalog *core.Catalog,
	history []string,
	n int,
) ([]Recommendation, error) {
	if n < 1 {
		return nil, invalidN(n)
	}
	snapshot := model.Resolve(m)
	if snapshot == nil {
		return nil, core.ErrModelNotReady
	}
	if catalog.Len() == 0 {
		return []Recommendation{}, nil
	}

	r, err := NewRecommender(config.DefaultPipelineConfig(n), config.Deps{
		Model:   snapshot,
		Catalog: catalog,
		Rated:   history,
	})
	if err != nil {
		return nil, err
	}
	return r.Recommend(ctx, userID, n)
}

// Recommender 持有一条构建好的 Pipeline，可被并发调用。
type Recommender struct {
	pipeline *pipeline.Pipeline
}

// NewRecommender 校验并构建 Pipeline。
func NewRecommender(cfg *pipeline.Config, deps config.Deps, hooks ...pipeline.Hook) (*Recommender, error) {
	if err := config.ValidatePipelineConfig(cfg); err != nil {
		return nil, core.WrapDomainError(core.ModuleRecommend, core.ErrorCodeInvalidConfig, "recommend: invalid pipeline", err)
	}
	p, err := cfg.BuildPipeline(config.DefaultFactory(deps))
	if err != nil {
		return nil, core.WrapDomainError(core.ModuleRecommend, core.ErrorCodeInvalidConfig, "recommend: build pipeline", err)
	}
	p.Hooks = append(p.Hooks, hooks...)
	return &Recommender{pipeline: p}, nil
}

// Recommend 运行 Pipeline 并截取前 n 条。
func (r *Recommender) Recommend(ctx context.Context, userID string, n int) ([]Recommendation, error) {
	if n < 1 {
		return nil, invalidN(n)
	}

	rctx := core.NewRecommendContext(userID)
	rctx.Params[rerank.ParamTopN] = n

	items, err := r.pipeline.Run(ctx, rctx, nil)
	if err != nil {
		return nil, err
	}
	if len(items) > n {
		items = items[:n]
	}

	out := make([]Recommendation, 0, len(items))
	for _, it := range items {
		if it == nil {
			continue
		}
		out = append(out, Recommendation{
			ItemID:          it.ID,
			Title:           it.Title(),
			PredictedRating: it.Score,
		})
	}
	return out, nil
}

func invalidN(n int) error {
	return core.WrapDomainError(core.ModuleRecommend, core.ErrorCodeInvalidInput,
		fmt.Sprintf("recommend: n must be >= 1, got %d", n), nil)
}
