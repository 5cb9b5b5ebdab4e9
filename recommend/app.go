package recommend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/rushteam/movierec/core"
	"github.com/rushteam/movierec/dataset"
	"github.com/rushteam/movierec/filter"
	"github.com/rushteam/movierec/model"
	"github.com/rushteam/movierec/pipeline"
	"github.com/rushteam/movierec/recall"
	"github.com/rushteam/movierec/store"
)

// App 是按配置装配好的服务及其数据。
type App struct {
	*Service

	Config  Config
	Ratings []core.Rating
	Catalog *core.Catalog
	History *dataset.History
	Metrics *Metrics

	// Store 是 memory / redis 后端，file / none 时为 nil
	Store core.KeyValueStore

	closers []io.Closer
}

// Open 按配置读取数据、连接持久化后端并构建 Service，但不训练也不加载模型。
// 调用方随后应调用 LoadOrTrain（或 Train），结束时调用 Close。
//
// 使用 memory / redis 后端时，评分历史、热门榜和电影目录会写入存储，
// 已评分过滤从存储读取历史；data.movies 为空时目录从 redis 读取。
func Open(cfg Config, reg prometheus.Registerer, log zerolog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ctx := context.Background()

	ratings, err := dataset.LoadRatingsFile(cfg.Data.Ratings)
	if err != nil {
		return nil, err
	}
	ms, kv, err := openPersistence(cfg.Persist)
	if err != nil {
		return nil, err
	}
	app := &App{
		Config:  cfg,
		Ratings: ratings,
		History: dataset.NewHistory(ratings),
		Metrics: NewMetrics(reg),
	}
	if kv != nil {
		app.Store = kv
		app.closers = append(app.closers, kv)
	}
	fail := func(err error) (*App, error) {
		_ = app.Close()
		return nil, err
	}

	var movies []core.Movie
	if cfg.Data.Movies != "" {
		movies, err = dataset.LoadMoviesFile(cfg.Data.Movies)
	} else {
		movies, err = dataset.LoadCatalog(ctx, kv, "")
	}
	if err != nil {
		return fail(err)
	}
	app.Catalog = core.NewCatalog(movies)
	log.Info().
		Int("ratings", len(ratings)).
		Int("movies", app.Catalog.Len()).
		Int("users", app.History.Len()).
		Msg("dataset loaded")

	popularity := dataset.Popularity(ratings)
	var (
		blacklist filter.BlacklistStore
		rated     filter.HistoryStore
	)
	if kv != nil {
		adapter := filter.NewStoreAdapter(kv, "")
		blacklist, rated = adapter, adapter
		if err := publishPopular(ctx, kv, popularity); err != nil {
			return fail(err)
		}
		if err := publishHistory(ctx, adapter, ratings); err != nil {
			return fail(err)
		}
		if cfg.Data.Movies != "" {
			if err := dataset.PublishCatalog(ctx, kv, "", movies); err != nil {
				return fail(err)
			}
		}
		log.Debug().Str("backend", kv.Name()).Msg("history, popular items and catalog published")
	}

	var pcfg *pipeline.Config
	if cfg.Recommend.Pipeline != "" {
		pcfg, err = pipeline.Load(cfg.Recommend.Pipeline)
		if err != nil {
			return fail(fmt.Errorf("load pipeline: %w", err))
		}
	}

	svc, err := NewService(Options{
		Catalog:          app.Catalog,
		History:          app.History,
		RatedStore:       rated,
		ModelStore:       ms,
		SVD:              cfg.SVDConfig(),
		Pipeline:         pcfg,
		TopN:             cfg.Recommend.TopN,
		Workers:          cfg.Recommend.Workers,
		Blacklist:        blacklist,
		Popular:          dataset.PopularIDs(popularity),
		Store:            kv,
		BatchConcurrency: cfg.Recommend.BatchConcurrency,
		Logger:           log,
		Metrics:          app.Metrics,
	})
	if err != nil {
		return fail(err)
	}
	app.Service = svc
	return app, nil
}

// Start 加载或训练模型；retrain 为 true 时忽略已保存的模型。
func (a *App) Start(ctx context.Context, retrain bool) error {
	if retrain {
		_, err := a.Train(ctx, a.Ratings)
		return err
	}
	_, err := a.LoadOrTrain(ctx, a.Ratings)
	return err
}

// Close 释放持久化后端连接。
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// openPersistence 返回模型存储，以及需要关闭的 KV 后端（file/none 时为 nil）。
func openPersistence(cfg PersistConfig) (model.ModelStore, core.KeyValueStore, error) {
	switch strings.ToLower(cfg.Backend) {
	case PersistFile, "":
		return model.NewFileStore(cfg.Path), nil, nil
	case PersistNone:
		return nil, nil, nil
	case PersistMemory:
		kv, err := store.Open(store.Config{Type: store.TypeMemory})
		if err != nil {
			return nil, nil, err
		}
		return model.NewKVStore(kv, cfg.Key), kv, nil
	case PersistRedis:
		kv, err := store.Open(store.Config{Type: store.TypeRedis, Redis: cfg.Redis})
		if err != nil {
			return nil, nil, err
		}
		return model.NewKVStore(kv, cfg.Key), kv, nil
	default:
		return nil, nil, invalidConfig(fmt.Sprintf("unknown persist.backend %q", cfg.Backend))
	}
}

// publishHistory 用评分数据覆盖存储中每个用户的评分历史。
func publishHistory(ctx context.Context, adapter *filter.StoreAdapter, ratings []core.Rating) error {
	byUser := make(map[string]map[string]float64)
	for _, r := range ratings {
		m := byUser[r.UserID]
		if m == nil {
			m = make(map[string]float64)
			byUser[r.UserID] = m
		}
		m[r.ItemID] = r.Value
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(publishConcurrency)
	for userID, items := range byUser {
		g.Go(func() error {
			return adapter.ReplaceRated(gctx, userID, items)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("publish history: %w", err)
	}
	return nil
}

const publishConcurrency = 16

// publishPopular 把评分人数写入存储中的热门榜有序集合，供 recall.popular 读取。
func publishPopular(ctx context.Context, kv core.KeyValueStore, counts []dataset.ItemCount) error {
	members := make(map[string]float64, len(counts))
	for _, c := range counts {
		members[c.ItemID] = float64(c.Count)
	}
	if err := kv.ZAdd(ctx, recall.DefaultPopularKey, members); err != nil {
		return fmt.Errorf("publish popular items: %w", err)
	}
	return nil
}
