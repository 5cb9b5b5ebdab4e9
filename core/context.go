package core

import "github.com/rushteam/movierec/pkg/utils"

// RecommendContext 承载用户/场景/请求参数，贯穿整个 Pipeline 透传。
type RecommendContext struct {
	UserID string // 不透明的用户 ID
	Scene  string

	// Labels 是用户级标签，可驱动整个 Pipeline 行为
	// 例如：冷启动用户（模型中不存在该用户）
	Labels map[string]utils.Label

	// Params 请求级上下文参数，例如 top_n
	Params map[string]any
}

// NewRecommendContext 创建一个只带 UserID 的上下文。
func NewRecommendContext(userID string) *RecommendContext {
	return &RecommendContext{
		UserID: userID,
		Labels: make(map[string]utils.Label),
		Params: make(map[string]any),
	}
}

// PutLabel 写入用户级 Label。
func (rctx *RecommendContext) PutLabel(key string, lbl utils.Label) {
	if rctx.Labels == nil {
		rctx.Labels = make(map[string]utils.Label)
	}
	if old, ok := rctx.Labels[key]; ok {
		rctx.Labels[key] = utils.MergeLabel(old, lbl)
		return
	}
	rctx.Labels[key] = lbl
}

// GetLabel 获取用户级 Label。
func (rctx *RecommendContext) GetLabel(key string) (utils.Label, bool) {
	if rctx.Labels == nil {
		return utils.Label{}, false
	}
	lbl, ok := rctx.Labels[key]
	return lbl, ok
}
