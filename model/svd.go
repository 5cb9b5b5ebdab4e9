package model

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/rushteam/movierec/core"
)

// SVD 是训练完成的带偏置矩阵分解模型（Funk SVD / biased MF）。
//
// 预测公式：
//
//	r̂(u,i) = μ + b_u + b_i + p_u · q_i
//
// 其中 μ 是训练集全局均值，b_u / b_i 是用户/物品偏置，p_u / q_i 是长度为 NFactors 的隐向量。
// 预测值最终被裁剪到 RatingScale 内。
//
// 冷启动回退：
//   - 用户未见过：μ + b_i（物品未知时 b_i 视为 0）
//   - 物品未见过：μ + b_u（用户未知时 b_u 视为 0）
//   - 都未见过：μ
//
// SVD 在 Fit 返回后不再被修改，Predict 可以无锁并发调用。
type SVD struct {
	nFactors   int
	scale      RatingScale
	globalBias float64
	numRatings int

	users     []string
	items     []string
	userIndex map[string]int
	itemIndex map[string]int

	userBias []float64
	itemBias []float64

	// 行优先存储：第 u 个用户的隐向量为 userFactors[u*nFactors : (u+1)*nFactors]
	userFactors []float64
	itemFactors []float64
}

// Prediction 是带冷启动信息的单次预测结果。
type Prediction struct {
	UserID    string
	ItemID    string
	Estimate  float64
	UserKnown bool
	ItemKnown bool
}

// Impossible 表示用户或物品不在训练集中，预测值来自回退公式。
func (p Prediction) Impossible() bool {
	return !p.UserKnown || !p.ItemKnown
}

type sample struct {
	u, i int
	r    float64
}

// Fit 用 SGD 在 ratings 上训练一个新的 SVD 模型。
//
// 相同 (user, item) 的重复评分按输入顺序“后写覆盖”，保留的评分位于其首次出现的位置。
// 每轮按随机排列遍历所有评分，对每条评分：先用当前参数计算误差，
// 再用更新前的 p_u / q_i 同时更新两侧隐向量。
//
// 错误：
//   - 配置非法：ErrInvalidConfig
//   - ratings 为空：ErrEmptyTrainingSet
//   - 评分值为 NaN/Inf：INVALID_INPUT
//   - 训练发散（误差变为 NaN/Inf，通常是学习率过大）：ErrInvalidConfig
//   - ctx 被取消：ctx.Err()
func Fit(ctx context.Context, ratings []core.Rating, cfg SVDConfig) (*SVD, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(ratings) == 0 {
		return nil, core.ErrEmptyTrainingSet
	}

	m := &SVD{
		nFactors:  cfg.NFactors,
		scale:     cfg.RatingScale,
		userIndex: make(map[string]int),
		itemIndex: make(map[string]int),
	}

	samples := make([]sample, 0, len(ratings))
	pos := make(map[[2]int]int, len(ratings))
	for n, r := range ratings {
		if !finite(r.Value) {
			return nil, core.NewDomainError(core.ModuleModel, core.ErrorCodeInvalidInput,
				fmt.Sprintf("model: rating #%d (%s, %s) is not finite: %v", n, r.UserID, r.ItemID, r.Value))
		}
		u := m.addUser(r.UserID)
		i := m.addItem(r.ItemID)
		key := [2]int{u, i}
		if p, ok := pos[key]; ok {
			samples[p].r = r.Value
			continue
		}
		pos[key] = len(samples)
		samples = append(samples, sample{u: u, i: i, r: r.Value})
	}
	m.numRatings = len(samples)

	var sum float64
	for _, s := range samples {
		sum += s.r
	}
	m.globalBias = sum / float64(len(samples))

	k := cfg.NFactors
	m.userBias = make([]float64, len(m.users))
	m.itemBias = make([]float64, len(m.items))
	m.userFactors = make([]float64, len(m.users)*k)
	m.itemFactors = make([]float64, len(m.items)*k)

	rng := newRand(cfg.Seed)
	for j := range m.userFactors {
		m.userFactors[j] = cfg.InitMean + cfg.InitStdDev*rng.NormFloat64()
	}
	for j := range m.itemFactors {
		m.itemFactors[j] = cfg.InitMean + cfg.InitStdDev*rng.NormFloat64()
	}

	lr, reg := cfg.LearningRate, cfg.Regularization
	order := make([]int, len(samples))
	for j := range order {
		order[j] = j
	}

	for epoch := 1; epoch <= cfg.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		start := time.Now()
		rng.Shuffle(len(order), func(a, b int) { order[a], order[b] = order[b], order[a] })

		var sq float64
		for _, idx := range order {
			s := samples[idx]
			pu := m.userRow(s.u)
			qi := m.itemRow(s.i)

			e := s.r - (m.globalBias + m.userBias[s.u] + m.itemBias[s.i] + dot(pu, qi))
			sq += e * e

			m.userBias[s.u] += lr * (e - reg*m.userBias[s.u])
			m.itemBias[s.i] += lr * (e - reg*m.itemBias[s.i])
			for f := 0; f < k; f++ {
				puf, qif := pu[f], qi[f]
				pu[f] += lr * (e*qif - reg*puf)
				qi[f] += lr * (e*puf - reg*qif)
			}
		}

		rmse := math.Sqrt(sq / float64(len(samples)))
		if !finite(rmse) {
			return nil, invalidConfig("training diverged at epoch %d (learning_rate %v too large?)", epoch, lr)
		}
		if cfg.OnEpoch != nil {
			cfg.OnEpoch(EpochStats{Epoch: epoch, RMSE: rmse, Duration: time.Since(start)})
		}
	}

	return m, nil
}

func newRand(seed uint64) *rand.Rand {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func (m *SVD) addUser(id string) int {
	if u, ok := m.userIndex[id]; ok {
		return u
	}
	u := len(m.users)
	m.userIndex[id] = u
	m.users = append(m.users, id)
	return u
}

func (m *SVD) addItem(id string) int {
	if i, ok := m.itemIndex[id]; ok {
		return i
	}
	i := len(m.items)
	m.itemIndex[id] = i
	m.items = append(m.items, id)
	return i
}

func (m *SVD) userRow(u int) []float64 {
	return m.userFactors[u*m.nFactors : (u+1)*m.nFactors]
}

func (m *SVD) itemRow(i int) []float64 {
	return m.itemFactors[i*m.nFactors : (i+1)*m.nFactors]
}

func (m *SVD) Name() string { return "svd" }

// Predict 返回裁剪后的预测评分，未见过的 ID 走回退公式，永不失败。
func (m *SVD) Predict(userID, itemID string) float64 {
	return m.PredictDetail(userID, itemID).Estimate
}

// PredictDetail 与 Predict 相同，但同时返回用户/物品是否在训练集中。
func (m *SVD) PredictDetail(userID, itemID string) Prediction {
	u, userKnown := m.userIndex[userID]
	i, itemKnown := m.itemIndex[itemID]

	est := m.globalBias
	switch {
	case userKnown && itemKnown:
		est += m.userBias[u] + m.itemBias[i] + dot(m.userRow(u), m.itemRow(i))
	case itemKnown:
		est += m.itemBias[i]
	case userKnown:
		est += m.userBias[u]
	}

	return Prediction{
		UserID:    userID,
		ItemID:    itemID,
		Estimate:  m.scale.Clip(est),
		UserKnown: userKnown,
		ItemKnown: itemKnown,
	}
}

// GlobalBias 返回训练集全局均值 μ。
func (m *SVD) GlobalBias() float64 { return m.globalBias }

// NFactors 返回隐向量维度。
func (m *SVD) NFactors() int { return m.nFactors }

// RatingScale 返回训练时使用的评分区间。
func (m *SVD) RatingScale() RatingScale { return m.scale }

// NumRatings 返回去重后参与训练的评分数。
func (m *SVD) NumRatings() int { return m.numRatings }

func (m *SVD) NumUsers() int { return len(m.users) }
func (m *SVD) NumItems() int { return len(m.items) }

func (m *SVD) KnowsUser(id string) bool {
	_, ok := m.userIndex[id]
	return ok
}

func (m *SVD) KnowsItem(id string) bool {
	_, ok := m.itemIndex[id]
	return ok
}

// Users 返回训练集中的用户 ID（首次出现顺序）副本。
func (m *SVD) Users() []string {
	out := make([]string, len(m.users))
	copy(out, m.users)
	return out
}

// Items 返回训练集中的物品 ID（首次出现顺序）副本。
func (m *SVD) Items() []string {
	out := make([]string, len(m.items))
	copy(out, m.items)
	return out
}

func (m *SVD) UserBias(id string) (float64, bool) {
	u, ok := m.userIndex[id]
	if !ok {
		return 0, false
	}
	return m.userBias[u], true
}

func (m *SVD) ItemBias(id string) (float64, bool) {
	i, ok := m.itemIndex[id]
	if !ok {
		return 0, false
	}
	return m.itemBias[i], true
}

// UserFactors 返回用户隐向量的副本。
func (m *SVD) UserFactors(id string) ([]float64, bool) {
	u, ok := m.userIndex[id]
	if !ok {
		return nil, false
	}
	return append([]float64(nil), m.userRow(u)...), true
}

// ItemFactors 返回物品隐向量的副本。
func (m *SVD) ItemFactors(id string) ([]float64, bool) {
	i, ok := m.itemIndex[id]
	if !ok {
		return nil, false
	}
	return append([]float64(nil), m.itemRow(i)...), true
}

// dot 计算两个等长向量的点积
func dot(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
