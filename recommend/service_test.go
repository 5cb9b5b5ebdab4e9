package recommend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/rushteam/movierec/core"
	"github.com/rushteam/movierec/dataset"
	"github.com/rushteam/movierec/model"
	"github.com/rushteam/movierec/pipeline"
)

func serviceRatings() []core.Rating {
	return []core.Rating{
		{UserID: "1", ItemID: "10", Value: 5},
		{UserID: "1", ItemID: "20", Value: 4},
		{UserID: "2", ItemID: "10", Value: 4.5},
		{UserID: "2", ItemID: "30", Value: 2},
		{UserID: "3", ItemID: "20", Value: 3.5},
		{UserID: "3", ItemID: "40", Value: 5},
		{UserID: "4", ItemID: "30", Value: 1},
		{UserID: "4", ItemID: "40", Value: 4},
	}
}

func serviceCatalog() *core.Catalog {
	return core.NewCatalog([]core.Movie{
		{ID: "10", Title: "Toy Story (1995)", Genres: []string{"Animation"}},
		{ID: "20", Title: "Heat (1995)", Genres: []string{"Action"}},
		{ID: "30", Title: "Casino (1995)", Genres: []string{"Drama"}},
		{ID: "40", Title: "Se7en (1995)", Genres: []string{"Thriller"}},
		{ID: "50", Title: "Unrated (2000)", Genres: nil},
	})
}

func testSVD() model.SVDConfig {
	cfg := model.DefaultSVDConfig()
	cfg.NFactors = 4
	cfg.Epochs = 10
	cfg.Seed = 11
	return cfg
}

func newTestService(t *testing.T, ms model.ModelStore, reg prometheus.Registerer, logBuf *bytes.Buffer) *Service {
	t.Helper()
	log := zerolog.Nop()
	if logBuf != nil {
		log = zerolog.New(logBuf).Level(zerolog.DebugLevel)
	}
	svc, err := NewService(Options{
		Catalog:    serviceCatalog(),
		History:    dataset.NewHistory(serviceRatings()),
		ModelStore: ms,
		SVD:        testSVD(),
		TopN:       3,
		Workers:    2,
		Logger:     log,
		Metrics:    NewMetrics(reg),
	})
	if err != nil {
		t.Fatalf("NewService() error: %v", err)
	}
	return svc
}

func counterValue(t *testing.T, reg *prometheus.Registry, name, label string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetValue() == label {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestService_NotReady(t *testing.T) {
	svc := newTestService(t, nil, nil, nil)
	if svc.Ready() || svc.Model() != nil {
		t.Fatal("新建的服务不应有模型")
	}
	if _, err := svc.Recommend(context.Background(), "1", 3); !errors.Is(err, core.ErrModelNotReady) {
		t.Errorf("Recommend() = %v, want ErrModelNotReady", err)
	}
}

func TestService_TrainAndRecommend(t *testing.T) {
	reg := prometheus.NewRegistry()
	var logs bytes.Buffer
	svc := newTestService(t, nil, reg, &logs)

	m, err := svc.Train(context.Background(), serviceRatings())
	if err != nil {
		t.Fatal(err)
	}
	if !svc.Ready() || svc.Model() != m {
		t.Fatal("训练后应替换为新模型")
	}
	if strings.Count(logs.String(), "epoch finished") != testSVD().Epochs {
		t.Errorf("每个 epoch 应记录一次日志:\n%s", logs.String())
	}

	recs, err := svc.Recommend(context.Background(), "1", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 3 {
		t.Fatalf("len = %d, want 3", len(recs))
	}
	for i, r := range recs {
		if r.ItemID == "10" || r.ItemID == "20" {
			t.Errorf("不应推荐用户已评分的电影: %+v", r)
		}
		if r.Title == "" {
			t.Errorf("缺少片名: %+v", r)
		}
		if i > 0 && recs[i-1].PredictedRating < r.PredictedRating {
			t.Errorf("结果应按预测评分降序: %+v", recs)
		}
	}

	if _, err := svc.Recommend(context.Background(), "1", 0); !errors.Is(err, core.ErrInvalidInput) {
		t.Errorf("n=0: %v", err)
	}
	if got := counterValue(t, reg, "movierec_train_total", "ok"); got != 1 {
		t.Errorf("movierec_train_total{ok} = %v", got)
	}
	if got := counterValue(t, reg, "movierec_recommend_total", "ok"); got != 1 {
		t.Errorf("movierec_recommend_total{ok} = %v", got)
	}
	if got := counterValue(t, reg, "movierec_recommend_total", "error"); got != 1 {
		t.Errorf("movierec_recommend_total{error} = %v", got)
	}
}

func TestService_ColdStartUser(t *testing.T) {
	svc := newTestService(t, nil, nil, nil)
	if _, err := svc.Train(context.Background(), serviceRatings()); err != nil {
		t.Fatal(err)
	}
	recs, err := svc.Recommend(context.Background(), "stranger", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != serviceCatalog().Len() {
		t.Errorf("新用户应能看到整个目录, got %d", len(recs))
	}
}

func TestService_TrainErrors(t *testing.T) {
	reg := prometheus.NewRegistry()
	svc := newTestService(t, nil, reg, nil)

	if _, err := svc.Train(context.Background(), nil); !errors.Is(err, core.ErrEmptyTrainingSet) {
		t.Errorf("Train(nil) = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := svc.Train(ctx, serviceRatings()); !errors.Is(err, context.Canceled) {
		t.Errorf("Train(canceled) = %v", err)
	}
	if svc.Ready() {
		t.Error("训练失败不应产生模型")
	}
	if got := counterValue(t, reg, "movierec_train_total", "error"); got != 2 {
		t.Errorf("movierec_train_total{error} = %v", got)
	}
}

func TestService_LoadOrTrain(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "svd_model.gob")
	fs := model.NewFileStore(path)

	first := newTestService(t, fs, nil, nil)
	loaded, err := first.LoadOrTrain(ctx, serviceRatings())
	if err != nil {
		t.Fatal(err)
	}
	if loaded {
		t.Error("首次运行没有已保存的模型，应重新训练")
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("训练后应保存模型: %v", err)
	}

	second := newTestService(t, fs, nil, nil)
	loaded, err = second.LoadOrTrain(ctx, serviceRatings())
	if err != nil {
		t.Fatal(err)
	}
	if !loaded {
		t.Error("第二次运行应加载已保存的模型")
	}
	if a, b := first.Model().Predict("1", "30"), second.Model().Predict("1", "30"); a != b {
		t.Errorf("加载的模型与保存的不一致: %v != %v", a, b)
	}

	if err := os.WriteFile(path, []byte("garbage"), 0o600); err != nil {
		t.Fatal(err)
	}
	reg := prometheus.NewRegistry()
	var logs bytes.Buffer
	third := newTestService(t, fs, reg, &logs)
	loaded, err = third.LoadOrTrain(ctx, serviceRatings())
	if err != nil {
		t.Fatal(err)
	}
	if loaded || !third.Ready() {
		t.Error("损坏的模型文件应触发重新训练")
	}
	if !strings.Contains(logs.String(), "re-training") {
		t.Errorf("应记录重新训练的原因:\n%s", logs.String())
	}
	if got := counterValue(t, reg, "movierec_model_load_total", "corrupt"); got != 1 {
		t.Errorf("movierec_model_load_total{corrupt} = %v", got)
	}
	if _, err := fs.Load(ctx); err != nil {
		t.Errorf("重新训练后应覆盖损坏的文件: %v", err)
	}
}

type failingStore struct{}

func (failingStore) Save(context.Context, *model.SVD) error   { return errors.New("disk full") }
func (failingStore) Load(context.Context) (*model.SVD, error) { return nil, core.ErrStoreNotFound }

func TestService_PersistFailureKeepsModel(t *testing.T) {
	svc := newTestService(t, failingStore{}, nil, nil)
	_, err := svc.LoadOrTrain(context.Background(), serviceRatings())
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("LoadOrTrain() = %v, want persist error", err)
	}
	if !svc.Ready() {
		t.Error("保存失败时新模型仍应生效")
	}
}

func TestService_RecommendBatch(t *testing.T) {
	svc := newTestService(t, nil, nil, nil)
	if _, err := svc.Train(context.Background(), serviceRatings()); err != nil {
		t.Fatal(err)
	}

	users := svc.Users()
	if strings.Join(users, ",") != "1,2,3,4" {
		t.Fatalf("Users() = %v", users)
	}
	batch, err := svc.RecommendBatch(context.Background(), users, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(batch) != len(users) {
		t.Fatalf("batch 大小 = %d", len(batch))
	}
	for _, u := range users {
		single, err := svc.Recommend(context.Background(), u, 2)
		if err != nil {
			t.Fatal(err)
		}
		if len(single) != len(batch[u]) {
			t.Fatalf("user %s: batch 与单独推荐结果数量不同", u)
		}
		for i := range single {
			if single[i] != batch[u][i] {
				t.Errorf("user %s: batch 与单独推荐结果不同: %+v vs %+v", u, batch[u], single)
			}
		}
	}

	if _, err := svc.RecommendBatch(context.Background(), []string{"1"}, 0); !errors.Is(err, core.ErrInvalidInput) {
		t.Errorf("RecommendBatch(n=0) = %v", err)
	}
}

func TestService_RetrainSwapsModel(t *testing.T) {
	svc := newTestService(t, nil, nil, nil)
	first, err := svc.Train(context.Background(), serviceRatings())
	if err != nil {
		t.Fatal(err)
	}
	more := append(serviceRatings(), core.Rating{UserID: "5", ItemID: "50", Value: 5})
	second, err := svc.Train(context.Background(), more)
	if err != nil {
		t.Fatal(err)
	}
	if first == second || svc.Model() != second {
		t.Error("重新训练应替换为新实例")
	}
	if first.KnowsUser("5") {
		t.Error("旧模型不应被修改")
	}
}

// 在重新训练的同时批量推荐：每次推荐都基于某个完整的模型快照，且不会返回已评分的电影。
// 用 go test -race 运行可检查数据竞争。
func TestService_ConcurrentTrainAndRecommend(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil, nil, nil)
	if _, err := svc.Train(ctx, serviceRatings()); err != nil {
		t.Fatal(err)
	}
	rated := map[string]map[string]bool{
		"1": {"10": true, "20": true},
		"2": {"10": true, "30": true},
		"3": {"20": true, "40": true},
		"9": {},
	}
	users := []string{"1", "2", "3", "9"}

	const rounds = 4
	errs := make(chan error, rounds*len(users)*4)
	var wg sync.WaitGroup
	for i := 0; i < rounds; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, err := svc.Train(ctx, serviceRatings()); err != nil {
				errs <- err
			}
		}()
		go func() {
			defer wg.Done()
			batch, err := svc.RecommendBatch(ctx, users, 3)
			if err != nil {
				errs <- err
				return
			}
			for _, u := range users {
				if len(batch[u]) != 3 {
					errs <- fmt.Errorf("user %s: got %d recs, want 3", u, len(batch[u]))
				}
				for _, r := range batch[u] {
					if rated[u][r.ItemID] {
						errs <- fmt.Errorf("user %s: recommended rated movie %s", u, r.ItemID)
					}
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
	if !svc.Ready() {
		t.Error("训练结束后应有模型")
	}
}

func TestNewService_CustomPipeline(t *testing.T) {
	cfg := &pipeline.Config{
		Name: "drama-free",
		Nodes: []pipeline.NodeConfig{
			{Type: "recall.catalog"},
			{Type: "filter", Config: map[string]any{"filters": []any{
				map[string]any{"type": "rated"},
				map[string]any{"type": "expr", "expr": `"Drama" in item.genres`},
			}}},
			{Type: "rank.mf"},
		},
	}
	svc, err := NewService(Options{
		Catalog:  serviceCatalog(),
		History:  dataset.NewHistory(serviceRatings()),
		SVD:      testSVD(),
		Pipeline: cfg,
		Logger:   zerolog.Nop(),
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Train(context.Background(), serviceRatings()); err != nil {
		t.Fatal(err)
	}
	recs, err := svc.Recommend(context.Background(), "1", 10)
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range recs {
		if r.ItemID == "30" || r.ItemID == "10" || r.ItemID == "20" {
			t.Errorf("应被过滤: %+v", r)
		}
	}
	if len(recs) != 2 {
		t.Errorf("len = %d, want 2", len(recs))
	}
}

func TestNewService_Invalid(t *testing.T) {
	bad := testSVD()
	bad.NFactors = 0
	if _, err := NewService(Options{SVD: bad}); !core.IsInvalidConfig(err) {
		t.Errorf("非法训练配置: %v", err)
	}
	_, err := NewService(Options{
		SVD:      testSVD(),
		Pipeline: &pipeline.Config{Nodes: []pipeline.NodeConfig{{Type: "rank.lr"}}},
	})
	if !core.IsInvalidConfig(err) {
		t.Errorf("非法 pipeline: %v", err)
	}
}
