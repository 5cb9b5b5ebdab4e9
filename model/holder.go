package model

import "sync/atomic"

// Holder 持有当前生效的模型，支持无锁读取与原子替换（copy-on-retrain）。
//
// 重新训练产出新的 *SVD 后调用 Store 替换；已取到旧快照的请求继续使用旧模型直到结束。
// Holder 本身也实现了 RatingModel 与 Snapshotter，可直接交给 rank.MFNode。
type Holder struct {
	current atomic.Pointer[SVD]
}

// NewHolder 创建一个 Holder，m 可以为 nil（尚无模型）。
func NewHolder(m *SVD) *Holder {
	h := &Holder{}
	if m != nil {
		h.current.Store(m)
	}
	return h
}

// Load 返回当前模型，可能为 nil。
func (h *Holder) Load() *SVD {
	return h.current.Load()
}

// Store 替换当前模型并返回旧模型。
func (h *Holder) Store(m *SVD) *SVD {
	return h.current.Swap(m)
}

// Ready 表示是否已有可用模型。
func (h *Holder) Ready() bool {
	return h.current.Load() != nil
}

// Snapshot 实现 Snapshotter。无模型时返回无类型的 nil，便于调用方判空。
func (h *Holder) Snapshot() RatingModel {
	m := h.current.Load()
	if m == nil {
		return nil
	}
	return m
}

func (h *Holder) Name() string {
	if m := h.current.Load(); m != nil {
		return m.Name()
	}
	return "svd"
}

// Predict 委托给当前模型；无模型时返回 0。
// 需要请求内一致性时请先 Snapshot。
func (h *Holder) Predict(userID, itemID string) float64 {
	m := h.current.Load()
	if m == nil {
		return 0
	}
	return m.Predict(userID, itemID)
}

var (
	_ RatingModel = (*SVD)(nil)
	_ RatingModel = (*Holder)(nil)
	_ Snapshotter = (*Holder)(nil)
)
