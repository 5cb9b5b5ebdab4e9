package utils

import (
	"sort"
	"strings"
)

// Label 是推荐链路中的一等公民：可解释、可追踪、可透传。
// Value 与 Source 的语义由各 Node 自定义；这里只提供标准化的合并规则。
type Label struct {
	Value  string `json:"value"`
	Source string `json:"source"` // recall / filter / rank / rerank
}

// MergeLabel 用于合并同名 Label，遵循“保留历史、可追踪”的默认策略。
// - Value: 以 '|' 累积
// - Source: 以 ',' 累积
func MergeLabel(existing Label, incoming Label) Label {
	if existing.Value == "" {
		return incoming
	}
	if incoming.Value == "" {
		return existing
	}

	merged := existing
	merged.Value = existing.Value + "|" + incoming.Value
	switch {
	case existing.Source == "":
		merged.Source = incoming.Source
	case incoming.Source == "":
		merged.Source = existing.Source
	default:
		merged.Source = existing.Source + "," + incoming.Source
	}
	return merged
}

// Explain 把 labels 按 key 排序后格式化为 "k=v(source)" 的单行文本，用于 CLI 输出与调试。
func Explain(labels map[string]Label) string {
	if len(labels) == 0 {
		return ""
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(' ')
		}
		lbl := labels[k]
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(lbl.Value)
		if lbl.Source != "" {
			b.WriteByte('(')
			b.WriteString(lbl.Source)
			b.WriteByte(')')
		}
	}
	return b.String()
}
