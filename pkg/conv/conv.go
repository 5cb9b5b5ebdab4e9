// Package conv 提供类型转换工具，主要用于读取 YAML/JSON 解析出的节点配置。
package conv

import "fmt"

// ToFloat64 将 any 转为 float64。
// 支持 float64、float32、int、int64、int32。
func ToFloat64(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case int32:
		return float64(val), true
	default:
		return 0, false
	}
}

// ToInt 将 any 转为 int。
// 支持 int、int64、int32、float64、float32。
func ToInt(v any) (int, bool) {
	switch val := v.(type) {
	case int:
		return val, true
	case int64:
		return int(val), true
	case int32:
		return int(val), true
	case float64:
		return int(val), true
	case float32:
		return int(val), true
	default:
		return 0, false
	}
}

// ConvertSlice 将 []T 按 convert 转为 []U，convert 返回 false 的元素被跳过。
func ConvertSlice[T, U any](s []T, convert func(T) (U, bool)) []U {
	if s == nil {
		return nil
	}
	out := make([]U, 0, len(s))
	for _, v := range s {
		if u, ok := convert(v); ok {
			out = append(out, u)
		}
	}
	return out
}

// ToStrings 将 []string 或 []any 转为 []string。
// 元素为数字时格式化为 "%v"，便于在 YAML 里直接写电影 ID。
func ToStrings(v any) []string {
	switch val := v.(type) {
	case []string:
		return append([]string(nil), val...)
	case []any:
		return ConvertSlice(val, func(e any) (string, bool) {
			switch x := e.(type) {
			case string:
				return x, true
			case int, int64, float64:
				return fmt.Sprintf("%v", x), true
			}
			return "", false
		})
	default:
		return nil
	}
}

// ConfigGet 从 map[string]any 按 key 取 T，取不到或类型不符时返回 defaultVal。
func ConfigGet[T any](m map[string]any, key string, defaultVal T) T {
	v, ok := m[key]
	if !ok {
		return defaultVal
	}
	t, ok := v.(T)
	if !ok {
		return defaultVal
	}
	return t
}

// ConfigGetInt 从 config 取 int。YAML/JSON 常得到 int 或 float64，此处统一处理。
func ConfigGetInt(m map[string]any, key string, defaultVal int) int {
	if i, ok := ToInt(m[key]); ok {
		return i
	}
	return defaultVal
}

// ConfigGetFloat64 从 config 取 float64。
func ConfigGetFloat64(m map[string]any, key string, defaultVal float64) float64 {
	if f, ok := ToFloat64(m[key]); ok {
		return f
	}
	return defaultVal
}

// ConfigGetStrings 从 config 取字符串列表。
func ConfigGetStrings(m map[string]any, key string) []string {
	return ToStrings(m[key])
}
