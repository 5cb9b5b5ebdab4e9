package filter

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/rushteam/movierec/core"
)

// DefaultRatedKeyPrefix 是用户评分历史的 key 前缀，实际 key 为 {prefix}:{userID}。
const DefaultRatedKeyPrefix = "movierec:rated"

// StoreAdapter 将 core.Store 适配为过滤器所需的存储接口（HistoryStore、BlacklistStore）。
//
// 后端实现了 core.KeyValueStore 时，评分历史存为有序集合（member 为电影 ID，score 为评分），
// 否则存为普通 key 下的 JSON 数组。
type StoreAdapter struct {
	store     core.Store
	keyPrefix string
}

// NewStoreAdapter 创建一个 core.Store 适配器，keyPrefix 为空时使用 DefaultRatedKeyPrefix。
func NewStoreAdapter(s core.Store, keyPrefix string) *StoreAdapter {
	if keyPrefix == "" {
		keyPrefix = DefaultRatedKeyPrefix
	}
	return &StoreAdapter{store: s, keyPrefix: keyPrefix}
}

func (a *StoreAdapter) ratedKey(userID string) string {
	return a.keyPrefix + ":" + userID
}

// RatedItems 实现 HistoryStore。
func (a *StoreAdapter) RatedItems(ctx context.Context, userID string) ([]string, error) {
	key := a.ratedKey(userID)
	if kv, ok := a.store.(core.KeyValueStore); ok {
		ids, err := kv.ZRange(ctx, key, 0, -1)
		if err != nil && !core.IsStoreNotFound(err) {
			return nil, fmt.Errorf("read rated items of %s: %w", userID, err)
		}
		return ids, nil
	}
	return a.getList(ctx, key)
}

// AddRated 追加用户的评分（电影 ID -> 评分），重复记录同一部电影时覆盖。
func (a *StoreAdapter) AddRated(ctx context.Context, userID string, ratings map[string]float64) error {
	if len(ratings) == 0 {
		return nil
	}
	key := a.ratedKey(userID)
	if kv, ok := a.store.(core.KeyValueStore); ok {
		if err := kv.ZAdd(ctx, key, ratings); err != nil {
			return fmt.Errorf("write rated items of %s: %w", userID, err)
		}
		return nil
	}

	ids, err := a.getList(ctx, key)
	if err != nil {
		return err
	}
	known := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		known[id] = struct{}{}
	}
	added := make([]string, 0, len(ratings))
	for id := range ratings {
		if _, ok := known[id]; !ok {
			added = append(added, id)
		}
	}
	sort.Strings(added)
	return a.putList(ctx, key, append(ids, added...))
}

// ReplaceRated 用 ratings 覆盖用户在存储中的全部评分历史。
func (a *StoreAdapter) ReplaceRated(ctx context.Context, userID string, ratings map[string]float64) error {
	if err := a.store.Delete(ctx, a.ratedKey(userID)); err != nil {
		return fmt.Errorf("reset rated items of %s: %w", userID, err)
	}
	return a.AddRated(ctx, userID, ratings)
}

// GetBlacklist 实现 BlacklistStore，key 下是 JSON 数组。
func (a *StoreAdapter) GetBlacklist(ctx context.Context, key string) ([]string, error) {
	return a.getList(ctx, key)
}

func (a *StoreAdapter) getList(ctx context.Context, key string) ([]string, error) {
	data, err := a.store.Get(ctx, key)
	if err != nil {
		if core.IsStoreNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return ids, nil
}

func (a *StoreAdapter) putList(ctx context.Context, key string, ids []string) error {
	data, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	return a.store.Set(ctx, key, data)
}

var (
	_ HistoryStore   = (*StoreAdapter)(nil)
	_ BlacklistStore = (*StoreAdapter)(nil)
)
