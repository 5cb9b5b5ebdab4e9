package dataset

import (
	"sort"

	"github.com/rushteam/movierec/core"
)

// ItemCount 是一部电影的评分人数。
type ItemCount struct {
	ItemID string
	Count  int
}

// Popularity 统计每部电影的评分人数（同一用户重复评分只计一次），
// 按人数降序返回，人数相同时按 ID 排序。
func Popularity(ratings []core.Rating) []ItemCount {
	seen := make(map[[2]string]struct{}, len(ratings))
	counts := make(map[string]int)
	for _, r := range ratings {
		k := [2]string{r.UserID, r.ItemID}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		counts[r.ItemID]++
	}

	out := make([]ItemCount, 0, len(counts))
	for id, c := range counts {
		out = append(out, ItemCount{ItemID: id, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return lessID(out[i].ItemID, out[j].ItemID)
	})
	return out
}

// PopularIDs 返回 Popularity 排序后的电影 ID。
func PopularIDs(counts []ItemCount) []string {
	ids := make([]string, len(counts))
	for i, c := range counts {
		ids[i] = c.ItemID
	}
	return ids
}
