package core

import "github.com/rushteam/movierec/pkg/utils"

// Meta 中约定的 key，由 CatalogRecall 写入，供过滤、表达式与结果拼装读取。
const (
	MetaTitle  = "title"
	MetaGenres = "genres"
)

// Item 是推荐链路中的统一承载结构：分数、元信息、标签。
// Labels 用于解释与策略驱动；Score 用于排序决策（本项目中即预测评分）。
type Item struct {
	ID     string
	Score  float64
	Meta   map[string]any
	Labels map[string]utils.Label
}

func NewItem(id string) *Item {
	return &Item{
		ID:     id,
		Score:  0,
		Meta:   make(map[string]any),
		Labels: make(map[string]utils.Label),
	}
}

// PutLabel 写入 Label；若已存在同名 key，则按默认 Merge 规则累积。
func (it *Item) PutLabel(key string, lbl utils.Label) {
	if it.Labels == nil {
		it.Labels = make(map[string]utils.Label)
	}
	if old, ok := it.Labels[key]; ok {
		it.Labels[key] = utils.MergeLabel(old, lbl)
		return
	}
	it.Labels[key] = lbl
}

// Title 返回 Meta 中的片名，不存在时返回空串。
func (it *Item) Title() string {
	if it.Meta == nil {
		return ""
	}
	s, _ := it.Meta[MetaTitle].(string)
	return s
}

// Genres 返回 Meta 中的类型列表。
func (it *Item) Genres() []string {
	if it.Meta == nil {
		return nil
	}
	g, _ := it.Meta[MetaGenres].([]string)
	return g
}
