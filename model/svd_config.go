package model

import (
	"fmt"
	"math"
	"time"

	"github.com/rushteam/movierec/core"
)

// RatingScale 是评分区间，预测值会被裁剪到 [Min, Max]。
type RatingScale struct {
	Min float64 `yaml:"min" json:"min"`
	Max float64 `yaml:"max" json:"max"`
}

// Clip 把 v 裁剪到评分区间内。
func (s RatingScale) Clip(v float64) float64 {
	if v < s.Min {
		return s.Min
	}
	if v > s.Max {
		return s.Max
	}
	return v
}

// EpochStats 是每轮训练结束后的统计，交给 SVDConfig.OnEpoch。
type EpochStats struct {
	Epoch    int           // 从 1 开始
	RMSE     float64       // 本轮训练集上的均方根误差（按更新前的误差累计）
	Duration time.Duration // 本轮耗时
}

// SVDConfig 是 SVD 训练配置。
//
// 与很多实现不同，零值字段不会被替换为默认值：
// 请从 DefaultSVDConfig() 开始修改，非法配置在 Fit 时直接返回 ErrInvalidConfig。
type SVDConfig struct {
	// NFactors 隐向量维度，必须 > 0
	NFactors int

	// LearningRate SGD 步长，必须 > 0
	LearningRate float64

	// Regularization L2 正则系数，必须 >= 0
	Regularization float64

	// Epochs 训练轮数，必须 > 0
	Epochs int

	// RatingScale 评分区间，Min 必须 < Max
	RatingScale RatingScale

	// InitMean / InitStdDev 隐向量初始化所用正态分布的均值与标准差
	InitMean   float64
	InitStdDev float64

	// Seed 随机种子；0 表示按当前时间取种子（结果不可复现）
	Seed uint64

	// OnEpoch 每轮结束后的回调（可选），模型本身不打日志
	OnEpoch func(EpochStats)
}

// DefaultSVDConfig 返回默认配置：50 维、lr=0.005、reg=0.1、20 轮、评分区间 [0.5, 5.0]。
func DefaultSVDConfig() SVDConfig {
	return SVDConfig{
		NFactors:       50,
		LearningRate:   0.005,
		Regularization: 0.1,
		Epochs:         20,
		RatingScale:    RatingScale{Min: 0.5, Max: 5.0},
		InitMean:       0,
		InitStdDev:     0.1,
	}
}

// Validate 校验配置，返回可用 errors.Is(err, core.ErrInvalidConfig) 判断的错误。
func (c SVDConfig) Validate() error {
	switch {
	case c.NFactors <= 0:
		return invalidConfig("n_factors must be > 0, got %d", c.NFactors)
	case c.Epochs <= 0:
		return invalidConfig("epochs must be > 0, got %d", c.Epochs)
	case !finite(c.LearningRate) || c.LearningRate <= 0:
		return invalidConfig("learning_rate must be > 0, got %v", c.LearningRate)
	case !finite(c.Regularization) || c.Regularization < 0:
		return invalidConfig("regularization must be >= 0, got %v", c.Regularization)
	case !finite(c.RatingScale.Min) || !finite(c.RatingScale.Max):
		return invalidConfig("rating scale must be finite, got (%v, %v)", c.RatingScale.Min, c.RatingScale.Max)
	case c.RatingScale.Min >= c.RatingScale.Max:
		return invalidConfig("rating scale min must be < max, got (%v, %v)", c.RatingScale.Min, c.RatingScale.Max)
	case !finite(c.InitMean):
		return invalidConfig("init_mean must be finite, got %v", c.InitMean)
	case !finite(c.InitStdDev) || c.InitStdDev < 0:
		return invalidConfig("init_std_dev must be >= 0, got %v", c.InitStdDev)
	}
	return nil
}

func invalidConfig(format string, args ...any) error {
	return core.NewDomainError(core.ModuleModel, core.ErrorCodeInvalidConfig,
		"model: invalid config: "+fmt.Sprintf(format, args...))
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
