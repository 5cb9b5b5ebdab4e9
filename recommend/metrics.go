package recommend

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/rushteam/movierec/pipeline"
)

// Metrics 是推荐服务的 Prometheus 指标。
type Metrics struct {
	TrainDuration     prometheus.Histogram
	TrainTotal        *prometheus.CounterVec
	ModelRatings      prometheus.Gauge
	ModelLoadTotal    *prometheus.CounterVec
	RecommendDuration prometheus.Histogram
	RecommendTotal    *prometheus.CounterVec
	StageDuration     *prometheus.HistogramVec
}

// NewMetrics 在 reg 上注册指标；reg 为 nil 时指标不注册，只在进程内累计。
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		TrainDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "movierec_train_duration_seconds",
			Help:    "Duration of a full SVD training run in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
		}),
		TrainTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "movierec_train_total",
			Help: "Total number of training runs by result",
		}, []string{"result"}),
		ModelRatings: f.NewGauge(prometheus.GaugeOpts{
			Name: "movierec_model_ratings",
			Help: "Number of distinct ratings the active model was trained on",
		}),
		ModelLoadTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "movierec_model_load_total",
			Help: "Total number of persisted model loads by result (ok, missing, corrupt, error)",
		}, []string{"result"}),
		RecommendDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "movierec_recommend_duration_seconds",
			Help:    "Duration of a single Top-N request in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		RecommendTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "movierec_recommend_total",
			Help: "Total number of Top-N requests by result",
		}, []string{"result"}),
		StageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "movierec_pipeline_stage_duration_seconds",
			Help:    "Duration of each pipeline node in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"node"}),
	}
}

func (m *Metrics) observeTrain(d time.Duration, err error) {
	if m == nil {
		return
	}
	m.TrainDuration.Observe(d.Seconds())
	m.TrainTotal.WithLabelValues(result(err)).Inc()
}

func (m *Metrics) observeRecommend(d time.Duration, err error) {
	if m == nil {
		return
	}
	m.RecommendDuration.Observe(d.Seconds())
	m.RecommendTotal.WithLabelValues(result(err)).Inc()
}

func (m *Metrics) observeLoad(outcome string) {
	if m == nil {
		return
	}
	m.ModelLoadTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) setModelRatings(n int) {
	if m == nil {
		return
	}
	m.ModelRatings.Set(float64(n))
}

// StageHook 返回记录各 Node 耗时的 pipeline.Hook。
func (m *Metrics) StageHook() pipeline.Hook {
	return func(s pipeline.StageStats) {
		if m == nil {
			return
		}
		m.StageDuration.WithLabelValues(s.Node).Observe(s.Duration.Seconds())
	}
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
