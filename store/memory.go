package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rushteam/movierec/core"
)

// MemoryStore 是内存实现的 KeyValueStore，用于测试、开发和单机运行。
// 支持 TTL，进程重启后数据丢失。
type MemoryStore struct {
	mu     sync.RWMutex
	data   map[string]*entry
	zsets  map[string]map[string]float64
	hashes map[string]map[string][]byte

	clean *time.Ticker
	done  chan struct{}
	once  sync.Once
}

type entry struct {
	value  []byte
	expire time.Time
}

func (e *entry) expired(now time.Time) bool {
	return !e.expire.IsZero() && now.After(e.expire)
}

func NewMemoryStore() *MemoryStore {
	ms := &MemoryStore{
		data:   make(map[string]*entry),
		zsets:  make(map[string]map[string]float64),
		hashes: make(map[string]map[string][]byte),
		clean:  time.NewTicker(10 * time.Second),
		done:   make(chan struct{}),
	}
	go ms.cleanup()
	return ms
}

func (m *MemoryStore) Name() string { return "memory" }

func (m *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.data[key]
	if !ok || e.expired(time.Now()) {
		return nil, core.ErrStoreNotFound
	}
	return cloneBytes(e.value), nil
}

func (m *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl ...int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data[key] = &entry{value: cloneBytes(value), expire: expireAt(ttl)}
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.data, key)
	delete(m.zsets, key)
	delete(m.hashes, key)
	return nil
}

// Close 停止后台清理，可重复调用。
func (m *MemoryStore) Close() error {
	m.once.Do(func() {
		m.clean.Stop()
		close(m.done)
	})
	return nil
}

func (m *MemoryStore) cleanup() {
	for {
		select {
		case <-m.done:
			return
		case now := <-m.clean.C:
			m.mu.Lock()
			for k, e := range m.data {
				if e.expired(now) {
					delete(m.data, k)
				}
			}
			m.mu.Unlock()
		}
	}
}

func (m *MemoryStore) ZAdd(ctx context.Context, key string, members map[string]float64) error {
	if len(members) == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.zsets[key] == nil {
		m.zsets[key] = make(map[string]float64, len(members))
	}
	for member, score := range members {
		m.zsets[key][member] = score
	}
	return nil
}

// ZRange 按分数降序返回 [start, stop]，语义与 Redis ZREVRANGE 一致（支持负下标）。
// 同分成员按字典序排列，保证结果稳定。
func (m *MemoryStore) ZRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	zset := m.zsets[key]
	if len(zset) == 0 {
		return nil, nil
	}

	type pair struct {
		member string
		score  float64
	}
	pairs := make([]pair, 0, len(zset))
	for member, score := range zset {
		pairs = append(pairs, pair{member: member, score: score})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].score != pairs[j].score {
			return pairs[i].score > pairs[j].score
		}
		return pairs[i].member < pairs[j].member
	})

	n := int64(len(pairs))
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if start > stop {
		return nil, nil
	}

	result := make([]string, 0, stop-start+1)
	for i := start; i <= stop; i++ {
		result = append(result, pairs[i].member)
	}
	return result, nil
}

func (m *MemoryStore) HSet(ctx context.Context, key string, fields map[string][]byte) error {
	if len(fields) == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.hashes[key] == nil {
		m.hashes[key] = make(map[string][]byte, len(fields))
	}
	for field, v := range fields {
		m.hashes[key][field] = cloneBytes(v)
	}
	return nil
}

func (m *MemoryStore) HGetAll(ctx context.Context, key string) (map[string][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	h := m.hashes[key]
	result := make(map[string][]byte, len(h))
	for field, v := range h {
		result[field] = cloneBytes(v)
	}
	return result, nil
}

func expireAt(ttl []int) time.Time {
	if len(ttl) > 0 && ttl[0] > 0 {
		return time.Now().Add(time.Duration(ttl[0]) * time.Second)
	}
	return time.Time{}
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}

var _ core.KeyValueStore = (*MemoryStore)(nil)
