package recommend

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rushteam/movierec/core"
	"github.com/rushteam/movierec/model"
	"github.com/rushteam/movierec/pkg/logging"
	"github.com/rushteam/movierec/store"
)

// Config 是应用配置，对应 YAML 文件：
//
//	data:
//	  ratings: data/ratings.csv
//	  movies: data/movies.csv
//	model:
//	  n_factors: 50
//	  learning_rate: 0.005
//	  regularization: 0.1
//	  epochs: 20
//	  rating_min: 0.5
//	  rating_max: 5.0
//	  seed: 42
//	persist:
//	  backend: file          # file | memory | redis | none
//	  path: data/svd_model.gob
//	recommend:
//	  top_n: 5
//	  workers: 4
//	log:
//	  level: info
//	  format: console
type Config struct {
	Data      DataConfig      `yaml:"data"`
	Model     ModelConfig     `yaml:"model"`
	Persist   PersistConfig   `yaml:"persist"`
	Recommend RecommendConfig `yaml:"recommend"`
	Log       logging.Config  `yaml:"log"`
}

type DataConfig struct {
	Ratings string `yaml:"ratings"`
	Movies  string `yaml:"movies"`
}

// ModelConfig 是 model.SVDConfig 的可序列化形式。
type ModelConfig struct {
	NFactors       int     `yaml:"n_factors"`
	LearningRate   float64 `yaml:"learning_rate"`
	Regularization float64 `yaml:"regularization"`
	Epochs         int     `yaml:"epochs"`
	RatingMin      float64 `yaml:"rating_min"`
	RatingMax      float64 `yaml:"rating_max"`
	InitMean       float64 `yaml:"init_mean"`
	InitStdDev     float64 `yaml:"init_std_dev"`
	Seed           uint64  `yaml:"seed"`
}

// 持久化后端。
const (
	PersistFile   = "file"
	PersistMemory = "memory"
	PersistRedis  = "redis"
	PersistNone   = "none"
)

type PersistConfig struct {
	Backend string            `yaml:"backend"`
	Path    string            `yaml:"path"`
	Key     string            `yaml:"key"`
	Redis   store.RedisConfig `yaml:"redis"`
}

type RecommendConfig struct {
	TopN int `yaml:"top_n"`

	// Workers 是 rank.mf 的打分并发度，<= 1 串行
	Workers int `yaml:"workers"`

	// BatchConcurrency 是 RecommendBatch 同时处理的用户数
	BatchConcurrency int `yaml:"batch_concurrency"`

	// Pipeline 是可选的 pipeline 配置文件（YAML/JSON），为空时使用标准链路
	Pipeline string `yaml:"pipeline"`
}

// DefaultConfig 返回默认配置，模型参数与 model.DefaultSVDConfig 一致。
func DefaultConfig() Config {
	d := model.DefaultSVDConfig()
	return Config{
		Data: DataConfig{
			Ratings: "data/ratings.csv",
			Movies:  "data/movies.csv",
		},
		Model: ModelConfig{
			NFactors:       d.NFactors,
			LearningRate:   d.LearningRate,
			Regularization: d.Regularization,
			Epochs:         d.Epochs,
			RatingMin:      d.RatingScale.Min,
			RatingMax:      d.RatingScale.Max,
			InitMean:       d.InitMean,
			InitStdDev:     d.InitStdDev,
			Seed:           d.Seed,
		},
		Persist: PersistConfig{
			Backend: PersistFile,
			Path:    "data/svd_model.gob",
		},
		Recommend: RecommendConfig{
			TopN:             5,
			Workers:          1,
			BatchConcurrency: 8,
		},
		Log: logging.Config{Level: "info", Format: "console"},
	}
}

// LoadConfig 在 DefaultConfig 之上读取 YAML 文件，文件中未出现的字段保持默认值。
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// SVDConfig 转换为训练配置。OnEpoch 由 Service 填充。
func (c Config) SVDConfig() model.SVDConfig {
	return model.SVDConfig{
		NFactors:       c.Model.NFactors,
		LearningRate:   c.Model.LearningRate,
		Regularization: c.Model.Regularization,
		Epochs:         c.Model.Epochs,
		RatingScale:    model.RatingScale{Min: c.Model.RatingMin, Max: c.Model.RatingMax},
		InitMean:       c.Model.InitMean,
		InitStdDev:     c.Model.InitStdDev,
		Seed:           c.Model.Seed,
	}
}

// Validate 检查配置，模型参数错误返回 core.ErrInvalidConfig 类错误。
func (c Config) Validate() error {
	if err := c.SVDConfig().Validate(); err != nil {
		return err
	}
	if c.Recommend.TopN < 1 {
		return invalidConfig(fmt.Sprintf("recommend.top_n must be >= 1, got %d", c.Recommend.TopN))
	}
	if c.Recommend.BatchConcurrency < 0 {
		return invalidConfig(fmt.Sprintf("recommend.batch_concurrency must be >= 0, got %d", c.Recommend.BatchConcurrency))
	}
	switch strings.ToLower(c.Persist.Backend) {
	case PersistFile, "":
		if c.Persist.Path == "" {
			return invalidConfig("persist.path is required for the file backend")
		}
	case PersistRedis:
		if c.Persist.Redis.Addr == "" {
			return invalidConfig("persist.redis.addr is required for the redis backend")
		}
	case PersistMemory, PersistNone:
	default:
		return invalidConfig(fmt.Sprintf("unknown persist.backend %q", c.Persist.Backend))
	}
	if c.Data.Ratings == "" {
		return invalidConfig("data.ratings is required")
	}
	if c.Data.Movies == "" && !strings.EqualFold(c.Persist.Backend, PersistRedis) {
		return invalidConfig("data.movies is required unless the catalog is shared through redis")
	}
	if err := c.Log.Validate(); err != nil {
		return invalidConfig("log: " + err.Error())
	}
	return nil
}

func invalidConfig(msg string) error {
	return core.WrapDomainError(core.ModuleRecommend, core.ErrorCodeInvalidConfig, "recommend: "+msg, nil)
}
