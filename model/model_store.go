package model

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rushteam/movierec/core"
)

// ModelStore 负责把训练好的模型保存到外部介质并读回。
// Load 在尚无已保存模型时返回 core.ErrStoreNotFound；数据损坏时返回 core.ErrDeserialization。
type ModelStore interface {
	Save(ctx context.Context, m *SVD) error
	Load(ctx context.Context) (*SVD, error)
}

// FileStore 把模型保存为本地文件。
// 写入先落到同目录的临时文件，再 rename 覆盖，读者不会看到写了一半的文件。
type FileStore struct {
	Path string
}

// NewFileStore 创建文件存储。
func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

func (s *FileStore) Save(_ context.Context, m *SVD) error {
	data, err := Serialize(m)
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create model directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.Path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp model file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write model file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync model file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close model file: %w", err)
	}
	if err := os.Rename(tmpName, s.Path); err != nil {
		return fmt.Errorf("replace model file: %w", err)
	}
	return nil
}

func (s *FileStore) Load(_ context.Context) (*SVD, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, core.ErrStoreNotFound
		}
		return nil, fmt.Errorf("read model file: %w", err)
	}
	return Deserialize(data)
}

// KVStore 把序列化后的模型保存在 core.Store（内存 / Redis）中的单个 key 下。
type KVStore struct {
	store core.Store

	// Key 是模型所在的 key，默认 "movierec:model:svd"
	Key string
}

// NewKVStore 创建一个基于 core.Store 的模型存储。
func NewKVStore(s core.Store, key string) *KVStore {
	if key == "" {
		key = "movierec:model:svd"
	}
	return &KVStore{store: s, Key: key}
}

func (s *KVStore) Save(ctx context.Context, m *SVD) error {
	data, err := Serialize(m)
	if err != nil {
		return err
	}
	if err := s.store.Set(ctx, s.Key, data); err != nil {
		return fmt.Errorf("save model to %s: %w", s.store.Name(), err)
	}
	return nil
}

func (s *KVStore) Load(ctx context.Context) (*SVD, error) {
	data, err := s.store.Get(ctx, s.Key)
	if err != nil {
		if core.IsStoreNotFound(err) {
			return nil, err
		}
		return nil, fmt.Errorf("load model from %s: %w", s.store.Name(), err)
	}
	return Deserialize(data)
}

var (
	_ ModelStore = (*FileStore)(nil)
	_ ModelStore = (*KVStore)(nil)
)
