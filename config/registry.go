// Package config 把 pipeline 配置中的节点类型映射到具体的 Node 实现。
//
// 使用配置驱动时，需在入口处 import _ "github.com/rushteam/movierec/config/builders"
// 以触发内置 Node（recall.catalog、recall.popular、filter、rank.mf、rerank.diversity、rerank.topn）的 init 注册。
package config

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rushteam/movierec/core"
	"github.com/rushteam/movierec/filter"
	"github.com/rushteam/movierec/model"
	"github.com/rushteam/movierec/pipeline"
)

// Deps 是构建 Node 时需要的运行期依赖，配置文件里只描述参数，依赖由调用方注入。
type Deps struct {
	Model   model.RatingModel
	Catalog *core.Catalog

	// Rated 是本次调用直接给出的已评分电影
	Rated []string
	// History 提供存储中的评分历史，可为空
	History filter.HistoryStore
	// Blacklist 提供存储中的黑名单，可为空
	Blacklist filter.BlacklistStore

	// Popular 是按热度排序的电影 ID，Store 中没有热门榜时 recall.popular 使用它
	Popular []string
	// Store 是 recall.popular 读取热门榜的存储，可为空
	Store core.Store
}

// Builder 根据依赖与节点配置构建 Node。
// 各组件在 init 中调用 Register(typeName, builder) 即可被配置驱动。
type Builder func(deps Deps, cfg map[string]any) (pipeline.Node, error)

var (
	defaultBuilders   = make(map[string]Builder)
	defaultBuildersMu sync.RWMutex
)

// Register 注册一种 Node 的构建逻辑，同名覆盖。
func Register(typeName string, builder Builder) {
	if typeName == "" || builder == nil {
		return
	}
	defaultBuildersMu.Lock()
	defer defaultBuildersMu.Unlock()
	defaultBuilders[typeName] = builder
}

// SupportedTypes 返回当前已注册的 Node 类型列表（排序），用于错误提示与校验。
func SupportedTypes() []string {
	defaultBuildersMu.RLock()
	defer defaultBuildersMu.RUnlock()
	types := make([]string, 0, len(defaultBuilders))
	for t := range defaultBuilders {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// DefaultFactory 返回绑定了 deps 的 NodeFactory，包含所有已注册的 Node 类型。
func DefaultFactory(deps Deps) *pipeline.NodeFactory {
	defaultBuildersMu.RLock()
	defer defaultBuildersMu.RUnlock()
	f := pipeline.NewNodeFactory()
	for typeName, builder := range defaultBuilders {
		f.Register(typeName, func(cfg map[string]any) (pipeline.Node, error) {
			return builder(deps, cfg)
		})
	}
	return f
}

// ValidatePipelineConfig 校验所有 node 类型均已注册，并且阶段顺序为
// recall -> filter -> rank -> rerank（同一阶段可出现多次，可省略阶段）。
func ValidatePipelineConfig(cfg *pipeline.Config) error {
	if cfg == nil {
		return fmt.Errorf("pipeline config is nil")
	}
	if len(cfg.Nodes) == 0 {
		return fmt.Errorf("pipeline %q has no nodes", cfg.Name)
	}

	supported := SupportedTypes()
	last := -1
	for i, nc := range cfg.Nodes {
		defaultBuildersMu.RLock()
		_, ok := defaultBuilders[nc.Type]
		defaultBuildersMu.RUnlock()
		if !ok {
			return fmt.Errorf("node #%d: unsupported node type %q (supported: %v)", i, nc.Type, supported)
		}
		stage := stageOrder(nc.Type)
		if stage < last {
			return fmt.Errorf("node #%d: %s must not come after a later stage", i, nc.Type)
		}
		last = stage
	}
	return nil
}

var stages = []pipeline.Kind{
	pipeline.KindRecall,
	pipeline.KindFilter,
	pipeline.KindRank,
	pipeline.KindReRank,
}

// stageOrder 由类型名前缀推断阶段，例如 "rank.mf" -> rank。
func stageOrder(nodeType string) int {
	for i, k := range stages {
		s := string(k)
		if nodeType == s || (len(nodeType) > len(s) && nodeType[:len(s)+1] == s+".") {
			return i
		}
	}
	return len(stages)
}

// DefaultPipelineConfig 是未提供配置文件时使用的标准链路：
// 全量目录召回，排除已评分，按预测评分排序，截取前 topN 个。
func DefaultPipelineConfig(topN int) *pipeline.Config {
	return &pipeline.Config{
		Name: "movierec",
		Nodes: []pipeline.NodeConfig{
			{Type: "recall.catalog"},
			{Type: "filter", Config: map[string]any{
				"filters": []any{map[string]any{"type": "rated"}},
			}},
			{Type: "rank.mf"},
			{Type: "rerank.topn", Config: map[string]any{"n": topN}},
		},
	}
}
