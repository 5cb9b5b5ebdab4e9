package recommend

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/rushteam/movierec/core"
	"github.com/rushteam/movierec/dataset"
	"github.com/rushteam/movierec/filter"
	"github.com/rushteam/movierec/recall"
)

const (
	testRatingsCSV = `userId,movieId,rating,timestamp
1,1,4.0,964982703
1,3,4.0,964981247
1,6,4.0,964982224
2,1,5.0,964982931
2,2,3.0,964982400
3,3,2.5,964981680
3,4,4.5,964983250
4,2,4.0,964982176
4,5,3.5,964984041
`
	testMoviesCSV = `movieId,title,genres
1,Toy Story (1995),Adventure|Animation|Children|Comedy|Fantasy
2,Jumanji (1995),Adventure|Children|Fantasy
3,Grumpier Old Men (1995),Comedy|Romance
4,Waiting to Exhale (1995),Comedy|Drama|Romance
5,"Father of the Bride Part II (1995)",Comedy
6,Heat (1995),Action|Crime|Thriller
7,Sabrina (1995),(no genres listed)
`
)

func testAppConfig(t *testing.T, backend string) Config {
	t.Helper()
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Data.Ratings = writeFile(t, dir, "ratings.csv", testRatingsCSV)
	cfg.Data.Movies = writeFile(t, dir, "movies.csv", testMoviesCSV)
	cfg.Model.NFactors = 4
	cfg.Model.Epochs = 5
	cfg.Model.Seed = 3
	cfg.Persist.Backend = backend
	cfg.Persist.Path = filepath.Join(dir, "svd_model.gob")
	return cfg
}

func TestApp_EndToEnd(t *testing.T) {
	for _, backend := range []string{PersistFile, PersistMemory, PersistNone} {
		t.Run(backend, func(t *testing.T) {
			cfg := testAppConfig(t, backend)
			app, err := Open(cfg, prometheus.NewRegistry(), zerolog.Nop())
			if err != nil {
				t.Fatalf("Open() error: %v", err)
			}
			defer func() {
				if err := app.Close(); err != nil {
					t.Errorf("Close() error: %v", err)
				}
			}()

			if app.Catalog.Len() != 7 || len(app.Ratings) != 9 || app.History.Len() != 4 {
				t.Fatalf("数据加载不完整: movies=%d ratings=%d users=%d",
					app.Catalog.Len(), len(app.Ratings), app.History.Len())
			}
			if err := app.Start(context.Background(), false); err != nil {
				t.Fatalf("Start() error: %v", err)
			}

			recs, err := app.Recommend(context.Background(), "1", 3)
			if err != nil {
				t.Fatal(err)
			}
			if len(recs) != 3 {
				t.Fatalf("len = %d, want 3", len(recs))
			}
			for _, r := range recs {
				if r.ItemID == "1" || r.ItemID == "3" || r.ItemID == "6" {
					t.Errorf("推荐了已评分的电影: %+v", r)
				}
				lo, hi := cfg.Model.RatingMin, cfg.Model.RatingMax
				if r.PredictedRating < lo || r.PredictedRating > hi {
					t.Errorf("预测评分越界: %+v", r)
				}
			}
		})
	}
}

func TestApp_ReloadsPersistedModel(t *testing.T) {
	cfg := testAppConfig(t, PersistFile)

	first, err := Open(cfg, nil, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if err := first.Start(context.Background(), false); err != nil {
		t.Fatal(err)
	}

	second, err := Open(cfg, nil, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	loaded, err := second.LoadOrTrain(context.Background(), second.Ratings)
	if err != nil || !loaded {
		t.Fatalf("LoadOrTrain() = %v, %v; want loaded", loaded, err)
	}
	if a, b := first.Model().Predict("2", "4"), second.Model().Predict("2", "4"); a != b {
		t.Errorf("加载的模型预测不一致: %v != %v", a, b)
	}

	if err := second.Start(context.Background(), true); err != nil {
		t.Fatal(err)
	}
	if second.Model() == nil {
		t.Error("retrain 后应有模型")
	}
}

func TestApp_PipelineFile(t *testing.T) {
	cfg := testAppConfig(t, PersistNone)
	cfg.Recommend.Pipeline = writeFile(t, t.TempDir(), "pipeline.yaml", `
pipeline:
  name: no-comedy
  nodes:
    - type: recall.catalog
    - type: filter
      config:
        filters:
          - type: rated
          - type: expr
            expr: '"Comedy" in item.genres'
    - type: rank.mf
    - type: rerank.topn
      config:
        n: 10
`)
	app, err := Open(cfg, nil, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer app.Close()
	if err := app.Start(context.Background(), false); err != nil {
		t.Fatal(err)
	}

	recs, err := app.Recommend(context.Background(), "1", 10)
	if err != nil {
		t.Fatal(err)
	}
	got := map[string]bool{}
	for _, r := range recs {
		got[r.ItemID] = true
	}
	if len(recs) != 2 || !got["2"] || !got["7"] {
		t.Errorf("recs = %+v, want movies 2 and 7", recs)
	}
}

func TestOpen_Errors(t *testing.T) {
	cfg := testAppConfig(t, PersistNone)
	cfg.Data.Ratings = filepath.Join(t.TempDir(), "missing.csv")
	if _, err := Open(cfg, nil, zerolog.Nop()); err == nil {
		t.Error("缺少评分文件应返回错误")
	}

	cfg = testAppConfig(t, PersistNone)
	cfg.Recommend.TopN = 0
	if _, err := Open(cfg, nil, zerolog.Nop()); !core.IsInvalidConfig(err) {
		t.Errorf("非法配置: %v", err)
	}

	cfg = testAppConfig(t, PersistNone)
	cfg.Recommend.Pipeline = writeFile(t, t.TempDir(), "p.yaml", "pipeline:\n  nodes:\n    - type: rank.lr\n")
	if _, err := Open(cfg, nil, zerolog.Nop()); !core.IsInvalidConfig(err) {
		t.Errorf("未知节点: %v", err)
	}

	cfg = testAppConfig(t, PersistNone)
	cfg.Data.Movies = writeFile(t, t.TempDir(), "movies.csv", "movieId,title,genres\nx\n")
	if _, err := Open(cfg, nil, zerolog.Nop()); err == nil || errors.Is(err, core.ErrModelNotReady) {
		t.Errorf("格式错误的电影文件: %v", err)
	}
}

func TestApp_PublishesToStore(t *testing.T) {
	ctx := context.Background()
	cfg := testAppConfig(t, PersistMemory)
	app, err := Open(cfg, nil, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer app.Close()
	if app.Store == nil {
		t.Fatal("memory 后端应暴露 Store")
	}

	popular, err := app.Store.ZRange(ctx, recall.DefaultPopularKey, 0, -1)
	if err != nil {
		t.Fatal(err)
	}
	if len(popular) != 6 {
		t.Errorf("热门榜 = %v, want 6 部有评分的电影", popular)
	}

	adapter := filter.NewStoreAdapter(app.Store, "")
	rated, err := adapter.RatedItems(ctx, "1")
	if err != nil {
		t.Fatal(err)
	}
	sort.Strings(rated)
	if strings.Join(rated, ",") != "1,3,6" {
		t.Errorf("用户 1 的历史 = %v, want [1 3 6]", rated)
	}

	movies, err := dataset.LoadCatalog(ctx, app.Store, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(movies) != 7 || movies[0].Title != "Toy Story (1995)" {
		t.Errorf("目录 = %+v", movies)
	}

	// 已评分过滤读取的是存储中的历史
	if err := adapter.AddRated(ctx, "1", map[string]float64{"2": 4, "4": 3}); err != nil {
		t.Fatal(err)
	}
	if err := app.Start(ctx, false); err != nil {
		t.Fatal(err)
	}
	recs, err := app.Recommend(ctx, "1", 7)
	if err != nil {
		t.Fatal(err)
	}
	var ids []string
	for _, r := range recs {
		ids = append(ids, r.ItemID)
	}
	sort.Strings(ids)
	if strings.Join(ids, ",") != "5,7" {
		t.Errorf("recs = %v, want [5 7]", ids)
	}
}

func TestApp_RedisSharedCatalog(t *testing.T) {
	addr := os.Getenv("MOVIEREC_REDIS_ADDR")
	if addr == "" {
		t.Skip("MOVIEREC_REDIS_ADDR not set")
	}
	cfg := testAppConfig(t, PersistRedis)
	cfg.Persist.Redis.Addr = addr
	cfg.Persist.Key = "movierec:test:model"

	first, err := Open(cfg, nil, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	_ = first.Close()

	cfg.Data.Movies = ""
	second, err := Open(cfg, nil, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer second.Close()
	if second.Catalog.Len() != 7 {
		t.Errorf("从 redis 读取的目录大小 = %d, want 7", second.Catalog.Len())
	}
}
