package dataset

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/rushteam/movierec/core"
)

// DefaultCatalogKey 是电影目录在存储中的哈希 key，field 为电影 ID。
const DefaultCatalogKey = "movierec:movies"

type storedMovie struct {
	Title  string            `json:"title"`
	Genres []string          `json:"genres,omitempty"`
	Meta   map[string]string `json:"meta,omitempty"`
}

// PublishCatalog 用 movies 覆盖存储中的电影目录，其他进程可用 LoadCatalog 读取。
func PublishCatalog(ctx context.Context, kv core.KeyValueStore, key string, movies []core.Movie) error {
	if key == "" {
		key = DefaultCatalogKey
	}
	fields := make(map[string][]byte, len(movies))
	for _, m := range movies {
		data, err := json.Marshal(storedMovie{Title: m.Title, Genres: m.Genres, Meta: m.Meta})
		if err != nil {
			return fmt.Errorf("encode movie %s: %w", m.ID, err)
		}
		fields[m.ID] = data
	}
	if err := kv.Delete(ctx, key); err != nil {
		return fmt.Errorf("reset catalog: %w", err)
	}
	if err := kv.HSet(ctx, key, fields); err != nil {
		return fmt.Errorf("publish catalog: %w", err)
	}
	return nil
}

// LoadCatalog 读取 PublishCatalog 写入的目录，按电影 ID 排序返回。
// key 不存在时返回 core.ErrStoreNotFound。
func LoadCatalog(ctx context.Context, kv core.KeyValueStore, key string) ([]core.Movie, error) {
	if key == "" {
		key = DefaultCatalogKey
	}
	fields, err := kv.HGetAll(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("load catalog %s: %w", key, core.ErrStoreNotFound)
	}
	movies := make([]core.Movie, 0, len(fields))
	for id, data := range fields {
		var sm storedMovie
		if err := json.Unmarshal(data, &sm); err != nil {
			return nil, fmt.Errorf("decode movie %s: %w", id, err)
		}
		movies = append(movies, core.Movie{ID: id, Title: sm.Title, Genres: sm.Genres, Meta: sm.Meta})
	}
	sort.Slice(movies, func(i, j int) bool { return lessID(movies[i].ID, movies[j].ID) })
	return movies, nil
}
