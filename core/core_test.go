package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestDomainError_Is(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
		want   bool
	}{
		{
			name:   "same module and code",
			err:    NewDomainError(ModuleModel, ErrorCodeInvalidConfig, "model: invalid config: n_factors must be > 0"),
			target: ErrInvalidConfig,
			want:   true,
		},
		{
			name:   "wrapped by fmt.Errorf",
			err:    fmt.Errorf("fit: %w", ErrEmptyTrainingSet),
			target: ErrEmptyTrainingSet,
			want:   true,
		},
		{
			name:   "different code",
			err:    ErrDeserialization,
			target: ErrInvalidConfig,
			want:   false,
		},
		{
			name:   "same code different module",
			err:    ErrStoreNotFound,
			target: NewDomainError(ModuleModel, ErrorCodeNotFound, ""),
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errors.Is(tt.err, tt.target); got != tt.want {
				t.Errorf("errors.Is() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDomainError_Unwrap(t *testing.T) {
	cause := errors.New("unexpected EOF")
	err := WrapDomainError(ModuleModel, ErrorCodeDeserialization, "model: decode envelope", cause)

	if !errors.Is(err, cause) {
		t.Error("期望 errors.Is 能找到底层原因")
	}
	if !IsDeserialization(fmt.Errorf("load: %w", err)) {
		t.Error("期望 IsDeserialization 穿透 fmt 包装")
	}
	if got, want := err.Error(), "model: decode envelope: unexpected EOF"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestErrorChecks(t *testing.T) {
	if !IsStoreNotFound(ErrStoreNotFound) || !IsNotFound(ErrStoreNotFound) {
		t.Error("ErrStoreNotFound 应被识别为 NOT_FOUND")
	}
	if IsStoreNotFound(errors.New("plain")) {
		t.Error("普通错误不应被识别为 store not found")
	}
	if !IsUnavailable(ErrModelNotReady) {
		t.Error("ErrModelNotReady 应为 UNAVAILABLE")
	}
	if !IsInvalidInput(ErrInvalidInput) || !IsEmptyTrainingSet(ErrEmptyTrainingSet) || !IsInvalidConfig(ErrInvalidConfig) {
		t.Error("错误检查函数与哨兵不一致")
	}
	if IsDomainError(nil) {
		t.Error("nil 不是 DomainError")
	}
}

func TestCatalog(t *testing.T) {
	c := NewCatalog([]Movie{
		{ID: "1", Title: "Toy Story (1995)"},
		{ID: "2", Title: "Jumanji (1995)"},
		{ID: "1", Title: "Toy Story (1995) [restored]"},
		{ID: "3", Title: "Heat (1995)"},
	})

	if c.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", c.Len())
	}
	ids := c.IDs()
	want := []string{"1", "2", "3"}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("IDs() = %v, want %v", ids, want)
		}
	}
	m, ok := c.Get("1")
	if !ok || m.Title != "Toy Story (1995) [restored]" {
		t.Errorf("Get(1) = %+v, %v; 期望后写覆盖", m, ok)
	}
	if c.Contains("4") {
		t.Error("Contains(4) 应为 false")
	}

	var seen []string
	c.Range(func(m Movie) bool {
		seen = append(seen, m.ID)
		return len(seen) < 2
	})
	if len(seen) != 2 {
		t.Errorf("Range 应在 fn 返回 false 后停止, 实际遍历 %v", seen)
	}

	var nilCatalog *Catalog
	if nilCatalog.Len() != 0 || nilCatalog.IDs() != nil || nilCatalog.Contains("1") {
		t.Error("nil 目录应表现为空目录")
	}
}

func TestItemMetaAccessors(t *testing.T) {
	it := NewItem("1")
	if it.Title() != "" || it.Genres() != nil {
		t.Error("新 Item 不应有 title/genres")
	}
	it.Meta[MetaTitle] = "Heat (1995)"
	it.Meta[MetaGenres] = []string{"Action", "Crime"}
	if it.Title() != "Heat (1995)" || len(it.Genres()) != 2 {
		t.Errorf("Title/Genres 读取错误: %q %v", it.Title(), it.Genres())
	}
}
