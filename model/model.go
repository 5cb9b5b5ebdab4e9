// Package model 实现评分预测模型：基于 SGD 的带偏置矩阵分解（SVD），以及模型的序列化与持久化。
//
// 训练（Fit）产出不可变的 *SVD；推理（Predict）只读，可被任意多个 goroutine 并发调用。
// 重新训练总是产出新的实例，通过 Holder 原子替换，正在使用旧模型的请求不受影响。
package model

// RatingModel 是评分预测的最小抽象：给定 (user, item) 输出一个预测评分。
// Predict 不返回错误：未见过的用户/物品走冷启动回退。
type RatingModel interface {
	Name() string
	Predict(userID, itemID string) float64
}

// Snapshotter 由可热替换的模型容器实现。
// 需要在一次请求内保持一致的调用方（如 rank.MFNode）应先取快照，再对快照逐个打分。
type Snapshotter interface {
	// Snapshot 返回当前模型；尚无可用模型时返回 nil
	Snapshot() RatingModel
}

// Resolve 返回 m 在本次调用中应使用的具体模型：
// 若 m 实现了 Snapshotter 则取其快照，否则原样返回。结果可能为 nil。
func Resolve(m RatingModel) RatingModel {
	if m == nil {
		return nil
	}
	if s, ok := m.(Snapshotter); ok {
		return s.Snapshot()
	}
	return m
}
