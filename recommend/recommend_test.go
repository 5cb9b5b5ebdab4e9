package recommend

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/rushteam/movierec/core"
	"github.com/rushteam/movierec/model"
)

type stubModel map[string]float64

func (m stubModel) Name() string                     { return "stub" }
func (m stubModel) Predict(_, itemID string) float64 { return m[itemID] }

func abcCatalog() *core.Catalog {
	return core.NewCatalog([]core.Movie{
		{ID: "1", Title: "A"},
		{ID: "2", Title: "B"},
		{ID: "3", Title: "C"},
	})
}

func TestRecommend_TopN(t *testing.T) {
	m := stubModel{"1": 5.0, "2": 4.0, "3": 3.5}
	got, err := Recommend(context.Background(), m, "u1", abcCatalog(), []string{"1"}, 2)
	if err != nil {
		t.Fatal(err)
	}
	want := []Recommendation{
		{ItemID: "2", Title: "B", PredictedRating: 4.0},
		{ItemID: "3", Title: "C", PredictedRating: 3.5},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Recommend() = %+v, want %+v", got, want)
	}
}

func TestRecommend_Bounds(t *testing.T) {
	m := stubModel{"1": 2, "2": 3, "3": 4}
	tests := []struct {
		name    string
		history []string
		n       int
		want    []string
	}{
		{"n larger than candidates", []string{"3"}, 10, []string{"2", "1"}},
		{"all rated", []string{"1", "2", "3"}, 3, []string{}},
		{"history outside catalog", []string{"99"}, 2, []string{"3", "2"}},
		{"no history", nil, 1, []string{"3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Recommend(context.Background(), m, "u1", abcCatalog(), tt.history, tt.n)
			if err != nil {
				t.Fatal(err)
			}
			ids := make([]string, 0, len(got))
			for _, r := range got {
				ids = append(ids, r.ItemID)
			}
			if !reflect.DeepEqual(ids, tt.want) {
				t.Errorf("ids = %v, want %v", ids, tt.want)
			}
		})
	}
}

func TestRecommend_TiesAreDeterministic(t *testing.T) {
	m := stubModel{"1": 3, "2": 3, "3": 3}
	for i := 0; i < 5; i++ {
		got, err := Recommend(context.Background(), m, "u1", abcCatalog(), nil, 3)
		if err != nil {
			t.Fatal(err)
		}
		if got[0].ItemID != "1" || got[1].ItemID != "2" || got[2].ItemID != "3" {
			t.Fatalf("同分时应按 ID 升序, got %+v", got)
		}
	}
}

func TestRecommend_Errors(t *testing.T) {
	ctx := context.Background()

	for _, n := range []int{0, -3} {
		if _, err := Recommend(ctx, stubModel{}, "u1", abcCatalog(), nil, n); !errors.Is(err, core.ErrInvalidInput) {
			t.Errorf("n=%d: err = %v, want ErrInvalidInput", n, err)
		}
	}
	if _, err := Recommend(ctx, nil, "u1", abcCatalog(), nil, 1); !errors.Is(err, core.ErrModelNotReady) {
		t.Errorf("nil model: err = %v", err)
	}
	if _, err := Recommend(ctx, model.NewHolder(nil), "u1", abcCatalog(), nil, 1); !errors.Is(err, core.ErrModelNotReady) {
		t.Errorf("empty holder: err = %v", err)
	}

	got, err := Recommend(ctx, stubModel{}, "u1", core.NewCatalog(nil), nil, 3)
	if err != nil || got == nil || len(got) != 0 {
		t.Errorf("空目录应返回空切片, got %v, %v", got, err)
	}
	got, err = Recommend(ctx, stubModel{}, "u1", nil, nil, 3)
	if err != nil || len(got) != 0 {
		t.Errorf("nil 目录应返回空切片, got %v, %v", got, err)
	}
}

func TestRecommend_WithTrainedModel(t *testing.T) {
	ratings := []core.Rating{
		{UserID: "u1", ItemID: "1", Value: 5},
		{UserID: "u1", ItemID: "2", Value: 1},
		{UserID: "u2", ItemID: "1", Value: 5},
		{UserID: "u2", ItemID: "3", Value: 5},
		{UserID: "u3", ItemID: "2", Value: 1},
		{UserID: "u3", ItemID: "3", Value: 4},
	}
	cfg := model.DefaultSVDConfig()
	cfg.Seed = 3
	m, err := model.Fit(context.Background(), ratings, cfg)
	if err != nil {
		t.Fatal(err)
	}

	got, err := Recommend(context.Background(), m, "u1", abcCatalog(), []string{"1", "2"}, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ItemID != "3" || got[0].Title != "C" {
		t.Fatalf("Recommend() = %+v", got)
	}
	if got[0].PredictedRating != m.Predict("u1", "3") {
		t.Errorf("PredictedRating = %v, want %v", got[0].PredictedRating, m.Predict("u1", "3"))
	}
	if r := got[0].PredictedRating; r < 0.5 || r > 5 {
		t.Errorf("预测评分应在评分区间内, got %v", r)
	}
}
