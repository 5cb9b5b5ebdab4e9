package recommend

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/rushteam/movierec/config"
	"github.com/rushteam/movierec/core"
	"github.com/rushteam/movierec/filter"
	"github.com/rushteam/movierec/model"
	"github.com/rushteam/movierec/pipeline"
)

// UserHistory 是服务使用的评分历史：既用于过滤已看过的电影，也用于列出可选用户。
// dataset.History 实现了该接口。
type UserHistory interface {
	filter.HistoryStore
	Users() []string
}

// Options 是 NewService 的参数。
type Options struct {
	Catalog *core.Catalog
	History UserHistory

	// RatedStore 非空时，已评分过滤从它读取历史，而不是 History
	RatedStore filter.HistoryStore

	// ModelStore 为 nil 时不做持久化
	ModelStore model.ModelStore

	// SVD 是训练配置，OnEpoch 会被包装为记录日志后再调用
	SVD model.SVDConfig

	// Pipeline 为 nil 时使用 config.DefaultPipelineConfig
	Pipeline *pipeline.Config
	TopN     int
	Workers  int

	// Blacklist 供 pipeline 中的 blacklist 过滤器读取存储中的黑名单
	Blacklist filter.BlacklistStore

	// Popular 与 Store 供 recall.popular 使用，见 config.Deps
	Popular []string
	Store   core.Store

	// BatchConcurrency 是 RecommendBatch 的并发上限，<= 0 时为 8
	BatchConcurrency int

	Logger  zerolog.Logger
	Metrics *Metrics
}

// Service 管理模型的生命周期并提供推荐。
//
// 模型保存在 model.Holder 中：重新训练产出新实例后原子替换，
// 正在处理的请求继续使用它开始时取得的快照。
type Service struct {
	holder  *model.Holder
	catalog *core.Catalog
	history UserHistory
	store   model.ModelStore
	svd     model.SVDConfig
	rec     *Recommender

	batchLimit int
	log        zerolog.Logger
	metrics    *Metrics

	// trainMu 保证同一时间只有一次训练
	trainMu sync.Mutex
}

// NewService 校验配置并构建推荐链路，此时还没有模型，需要 Train 或 LoadOrTrain。
func NewService(opts Options) (*Service, error) {
	if err := opts.SVD.Validate(); err != nil {
		return nil, err
	}
	if opts.Catalog == nil {
		opts.Catalog = core.NewCatalog(nil)
	}
	pcfg := opts.Pipeline
	if pcfg == nil {
		topN := opts.TopN
		if topN < 1 {
			topN = 5
		}
		pcfg = config.DefaultPipelineConfig(topN)
		for i := range pcfg.Nodes {
			if pcfg.Nodes[i].Type == "rank.mf" {
				pcfg.Nodes[i].Config = map[string]any{"workers": opts.Workers}
			}
		}
	}

	s := &Service{
		holder:     model.NewHolder(nil),
		catalog:    opts.Catalog,
		history:    opts.History,
		store:      opts.ModelStore,
		svd:        opts.SVD,
		batchLimit: opts.BatchConcurrency,
		log:        opts.Logger.With().Str("component", "recommend").Logger(),
		metrics:    opts.Metrics,
	}
	if s.batchLimit <= 0 {
		s.batchLimit = 8
	}

	var rated filter.HistoryStore = opts.History
	if opts.RatedStore != nil {
		rated = opts.RatedStore
	}
	deps := config.Deps{
		Model:     s.holder,
		Catalog:   opts.Catalog,
		History:   rated,
		Blacklist: opts.Blacklist,
		Popular:   opts.Popular,
		Store:     opts.Store,
	}
	rec, err := NewRecommender(pcfg, deps, opts.Metrics.StageHook())
	if err != nil {
		return nil, err
	}
	s.rec = rec
	return s, nil
}

// Ready 表示是否已有可用模型。
func (s *Service) Ready() bool {
	return s.holder.Ready()
}

// Model 返回当前模型，可能为 nil。
func (s *Service) Model() *model.SVD {
	return s.holder.Load()
}

// Train 训练新模型、替换当前模型并持久化。
// 持久化失败时新模型仍然生效，错误会返回给调用方。
func (s *Service) Train(ctx context.Context, ratings []core.Rating) (*model.SVD, error) {
	s.trainMu.Lock()
	defer s.trainMu.Unlock()

	cfg := s.svd
	userHook := cfg.OnEpoch
	cfg.OnEpoch = func(st model.EpochStats) {
		s.log.Debug().
			Int("epoch", st.Epoch).
			Float64("rmse", st.RMSE).
			Dur("took", st.Duration).
			Msg("epoch finished")
		if userHook != nil {
			userHook(st)
		}
	}

	s.log.Info().
		Int("ratings", len(ratings)).
		Int("n_factors", cfg.NFactors).
		Int("epochs", cfg.Epochs).
		Msg("training model")

	start := time.Now()
	m, err := model.Fit(ctx, ratings, cfg)
	s.metrics.observeTrain(time.Since(start), err)
	if err != nil {
		s.log.Error().Err(err).Msg("training failed")
		return nil, err
	}

	s.holder.Store(m)
	s.metrics.setModelRatings(m.NumRatings())
	s.log.Info().
		Int("users", m.NumUsers()).
		Int("items", m.NumItems()).
		Float64("global_bias", m.GlobalBias()).
		Dur("took", time.Since(start)).
		Msg("model ready")

	if s.store != nil {
		if err := s.store.Save(ctx, m); err != nil {
			s.log.Warn().Err(err).Msg("failed to persist model")
			return m, fmt.Errorf("persist model: %w", err)
		}
		s.log.Info().Msg("model persisted")
	}
	return m, nil
}

// LoadOrTrain 优先加载已保存的模型；不存在或加载失败（损坏、版本不符等）时重新训练并保存。
// loaded 表示模型来自持久化存储。
func (s *Service) LoadOrTrain(ctx context.Context, ratings []core.Rating) (loaded bool, err error) {
	if s.store != nil {
		m, err := s.store.Load(ctx)
		switch {
		case err == nil:
			s.holder.Store(m)
			s.metrics.observeLoad("ok")
			s.metrics.setModelRatings(m.NumRatings())
			s.log.Info().
				Int("users", m.NumUsers()).
				Int("items", m.NumItems()).
				Msg("loaded saved model")
			return true, nil
		case core.IsStoreNotFound(err):
			s.metrics.observeLoad("missing")
			s.log.Info().Msg("no saved model, training")
		case core.IsDeserialization(err):
			s.metrics.observeLoad("corrupt")
			s.log.Warn().Err(err).Msg("saved model unusable, re-training")
		default:
			s.metrics.observeLoad("error")
			s.log.Warn().Err(err).Msg("failed to load model, re-training")
		}
	}
	_, err = s.Train(ctx, ratings)
	return false, err
}

// Recommend 使用服务持有的历史为 userID 推荐 n 部电影。
func (s *Service) Recommend(ctx context.Context, userID string, n int) ([]Recommendation, error) {
	start := time.Now()
	recs, err := s.recommend(ctx, userID, n)
	s.metrics.observeRecommend(time.Since(start), err)
	if err != nil {
		s.log.Debug().Err(err).Str("user", userID).Msg("recommend failed")
		return nil, err
	}
	return recs, nil
}

func (s *Service) recommend(ctx context.Context, userID string, n int) ([]Recommendation, error) {
	if n < 1 {
		return nil, invalidN(n)
	}
	if !s.holder.Ready() {
		return nil, core.ErrModelNotReady
	}
	if s.catalog.Len() == 0 {
		return []Recommendation{}, nil
	}
	return s.rec.Recommend(ctx, userID, n)
}

// RecommendBatch 并发为多个用户推荐，任何一个失败即整体失败。
func (s *Service) RecommendBatch(ctx context.Context, userIDs []string, n int) (map[string][]Recommendation, error) {
	results := make([][]Recommendation, len(userIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.batchLimit)
	for i, userID := range userIDs {
		g.Go(func() error {
			recs, err := s.Recommend(gctx, userID, n)
			if err != nil {
				return fmt.Errorf("user %s: %w", userID, err)
			}
			results[i] = recs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string][]Recommendation, len(userIDs))
	for i, userID := range userIDs {
		out[userID] = results[i]
	}
	return out, nil
}

// Users 返回有评分历史的用户列表。
func (s *Service) Users() []string {
	if s.history == nil {
		return nil
	}
	return s.history.Users()
}
