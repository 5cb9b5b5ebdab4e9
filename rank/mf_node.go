package rank

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/rushteam/movierec/core"
	"github.com/rushteam/movierec/model"
	"github.com/rushteam/movierec/pipeline"
	"github.com/rushteam/movierec/pkg/utils"
)

// parallelThreshold 以下的候选集直接串行打分。
const parallelThreshold = 256

// MFNode 用评分模型给候选打分（预测评分），并按分数降序排序。
// - 写入 labels：rank_model、cold_start（用户或电影不在模型中时）
// - 同分按 ID 升序，保证结果确定
//
// Model 实现了 model.Snapshotter（如 *model.Holder）时，每次 Process 只取一次快照，
// 同一请求内所有候选由同一个模型打分。
type MFNode struct {
	Model model.RatingModel

	// Workers > 1 时按块并发打分
	Workers int
}

func (n *MFNode) Name() string        { return "rank.mf" }
func (n *MFNode) Kind() pipeline.Kind { return pipeline.KindRank }

type knowledge interface {
	KnowsUser(userID string) bool
	KnowsItem(itemID string) bool
}

func (n *MFNode) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	m := model.Resolve(n.Model)
	if m == nil {
		return nil, core.ErrModelNotReady
	}
	if len(items) == 0 {
		return items, nil
	}

	userID := ""
	if rctx != nil {
		userID = rctx.UserID
	}
	known, _ := m.(knowledge)
	userKnown := known == nil || known.KnowsUser(userID)
	if !userKnown && rctx != nil {
		rctx.PutLabel("cold_start", utils.Label{Value: "user", Source: "rank"})
	}

	score := func(chunk []*core.Item) {
		for _, it := range chunk {
			if it == nil {
				continue
			}
			it.Score = m.Predict(userID, it.ID)
			it.PutLabel("rank_model", utils.Label{Value: m.Name(), Source: "rank"})
			switch {
			case !userKnown:
				it.PutLabel("cold_start", utils.Label{Value: "user", Source: "rank"})
			case known != nil && !known.KnowsItem(it.ID):
				it.PutLabel("cold_start", utils.Label{Value: "item", Source: "rank"})
			}
		}
	}

	if n.Workers > 1 && len(items) >= parallelThreshold {
		g, gctx := errgroup.WithContext(ctx)
		size := (len(items) + n.Workers - 1) / n.Workers
		for start := 0; start < len(items); start += size {
			chunk := items[start:min(start+size, len(items))]
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				score(chunk)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	} else {
		score(items)
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i] == nil {
			return false
		}
		if items[j] == nil {
			return true
		}
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		return items[i].ID < items[j].ID
	})
	return items, nil
}
