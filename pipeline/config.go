package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config 是 Pipeline 的配置结构（支持 YAML/JSON）。
type Config struct {
	Name  string       `yaml:"name" json:"name"`
	Nodes []NodeConfig `yaml:"nodes" json:"nodes"`
}

// NodeConfig 是单个 Node 的配置。
type NodeConfig struct {
	Type   string         `yaml:"type" json:"type"`     // recall.catalog / filter / rank.mf / rerank.topn
	Config map[string]any `yaml:"config" json:"config"` // Node 特定配置
}

type fileConfig struct {
	Pipeline Config `yaml:"pipeline" json:"pipeline"`
}

// Load 按扩展名加载 YAML 或 JSON 配置文件。
func Load(path string) (*Config, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return LoadFromJSON(path)
	default:
		return LoadFromYAML(path)
	}
}

// LoadFromYAML 从 YAML 文件加载 Pipeline 配置，文件顶层为 pipeline: 段。
func LoadFromYAML(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	return &fc.Pipeline, nil
}

// LoadFromJSON 从 JSON 文件加载 Pipeline 配置。
func LoadFromJSON(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var fc fileConfig
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	return &fc.Pipeline, nil
}

// NodeBuilder 根据节点配置构建 Node。
type NodeBuilder func(map[string]any) (Node, error)

// NodeFactory 按类型名保存 NodeBuilder。
type NodeFactory struct {
	builders map[string]NodeBuilder
}

func NewNodeFactory() *NodeFactory {
	return &NodeFactory{builders: make(map[string]NodeBuilder)}
}

// Register 注册 Node 构建器，同名覆盖。
func (f *NodeFactory) Register(nodeType string, builder NodeBuilder) {
	f.builders[nodeType] = builder
}

// Has 返回是否注册了该类型。
func (f *NodeFactory) Has(nodeType string) bool {
	_, ok := f.builders[nodeType]
	return ok
}

// Build 根据类型和配置构建 Node。
func (f *NodeFactory) Build(nodeType string, config map[string]any) (Node, error) {
	builder, ok := f.builders[nodeType]
	if !ok {
		return nil, fmt.Errorf("unknown node type: %s", nodeType)
	}
	if config == nil {
		config = map[string]any{}
	}
	return builder(config)
}

// BuildPipeline 根据配置构建 Pipeline。
// factory 由 config 包提供，避免 pipeline 反向依赖各 Node 实现。
func (c *Config) BuildPipeline(factory *NodeFactory) (*Pipeline, error) {
	if len(c.Nodes) == 0 {
		return nil, fmt.Errorf("pipeline %q has no nodes", c.Name)
	}
	nodes := make([]Node, 0, len(c.Nodes))
	for i, nc := range c.Nodes {
		node, err := factory.Build(nc.Type, nc.Config)
		if err != nil {
			return nil, fmt.Errorf("build node #%d %s: %w", i, nc.Type, err)
		}
		nodes = append(nodes, node)
	}
	return &Pipeline{Nodes: nodes}, nil
}
