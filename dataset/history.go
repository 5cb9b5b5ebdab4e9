package dataset

import (
	"context"
	"sort"

	"github.com/rushteam/movierec/core"
)

// History 是按用户索引的评分历史，构建后只读。
type History struct {
	items map[string][]string
}

// NewHistory 按输入顺序记录每个用户评分过的电影，同一电影只记一次。
func NewHistory(ratings []core.Rating) *History {
	h := &History{items: make(map[string][]string)}
	seen := make(map[[2]string]struct{}, len(ratings))
	for _, r := range ratings {
		k := [2]string{r.UserID, r.ItemID}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		h.items[r.UserID] = append(h.items[r.UserID], r.ItemID)
	}
	return h
}

// Users 返回有评分的用户，按 ID 排序。
// 纯数字 ID 按数值排序，其余按字典序，与 MovieLens 的用户列表习惯一致。
func (h *History) Users() []string {
	if h == nil {
		return nil
	}
	users := make([]string, 0, len(h.items))
	for u := range h.items {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return lessID(users[i], users[j]) })
	return users
}

// Items 返回用户评分过的电影副本；未知用户返回 nil。
func (h *History) Items(userID string) []string {
	if h == nil {
		return nil
	}
	return append([]string(nil), h.items[userID]...)
}

// Len 返回用户数。
func (h *History) Len() int {
	if h == nil {
		return 0
	}
	return len(h.items)
}

// RatedItems 实现 filter.HistoryStore。
func (h *History) RatedItems(_ context.Context, userID string) ([]string, error) {
	return h.Items(userID), nil
}

func lessID(a, b string) bool {
	an, aok := numeric(a)
	bn, bok := numeric(b)
	switch {
	case aok && bok:
		if an != bn {
			return an < bn
		}
		return a < b
	case aok:
		return true
	case bok:
		return false
	default:
		return a < b
	}
}

// numeric 解析非负十进制整数，溢出或含非数字字符时返回 false。
func numeric(s string) (uint64, bool) {
	if s == "" || len(s) > 19 {
		return 0, false
	}
	var n uint64
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + uint64(c-'0')
	}
	return n, true
}
