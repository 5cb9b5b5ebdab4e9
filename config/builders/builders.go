// Package builders 注册内置 Node 的配置构建逻辑。
package builders

import (
	"fmt"

	"github.com/rushteam/movierec/config"
	"github.com/rushteam/movierec/filter"
	"github.com/rushteam/movierec/pipeline"
	"github.com/rushteam/movierec/pkg/conv"
	"github.com/rushteam/movierec/rank"
	"github.com/rushteam/movierec/recall"
	"github.com/rushteam/movierec/rerank"
)

func init() {
	config.Register("recall.catalog", BuildCatalogNode)
	config.Register("recall.popular", BuildPopularNode)
	config.Register("filter", BuildFilterNode)
	config.Register("rank.mf", BuildMFNode)
	config.Register("rerank.diversity", BuildDiversityNode)
	config.Register("rerank.topn", BuildTopNNode)
}

func BuildCatalogNode(deps config.Deps, cfg map[string]any) (pipeline.Node, error) {
	if deps.Catalog == nil {
		return nil, fmt.Errorf("recall.catalog: catalog not provided")
	}
	return &recall.Catalog{
		Catalog: deps.Catalog,
		Genres:  conv.ConfigGetStrings(cfg, "genres"),
	}, nil
}

func BuildPopularNode(deps config.Deps, cfg map[string]any) (pipeline.Node, error) {
	if deps.Catalog == nil {
		return nil, fmt.Errorf("recall.popular: catalog not provided")
	}
	return &recall.Popular{
		Catalog: deps.Catalog,
		Store:   deps.Store,
		Key:     conv.ConfigGet(cfg, "key", ""),
		IDs:     deps.Popular,
		Limit:   conv.ConfigGetInt(cfg, "limit", 0),
	}, nil
}

func BuildFilterNode(deps config.Deps, cfg map[string]any) (pipeline.Node, error) {
	filtersConfig, ok := cfg["filters"].([]any)
	if !ok {
		return nil, fmt.Errorf("filter: filters not found or invalid")
	}

	filters := make([]filter.Filter, 0, len(filtersConfig))
	for i, fc := range filtersConfig {
		filterMap, ok := fc.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("filter #%d: expected a map", i)
		}
		switch filterType := conv.ConfigGet(filterMap, "type", ""); filterType {
		case "rated":
			filters = append(filters, filter.NewRatedFilter(deps.Rated, deps.History))

		case "blacklist":
			key := conv.ConfigGet(filterMap, "key", "")
			filters = append(filters, filter.NewBlacklistFilter(
				conv.ConfigGetStrings(filterMap, "item_ids"), deps.Blacklist, key))

		case "expr":
			f, err := filter.NewExprFilter(conv.ConfigGet(filterMap, "expr", ""))
			if err != nil {
				return nil, fmt.Errorf("filter #%d: %w", i, err)
			}
			filters = append(filters, f)

		default:
			return nil, fmt.Errorf("filter #%d: unknown filter type %q", i, filterType)
		}
	}
	return &filter.FilterNode{Filters: filters}, nil
}

func BuildMFNode(deps config.Deps, cfg map[string]any) (pipeline.Node, error) {
	if deps.Model == nil {
		return nil, fmt.Errorf("rank.mf: model not provided")
	}
	return &rank.MFNode{
		Model:   deps.Model,
		Workers: conv.ConfigGetInt(cfg, "workers", 0),
	}, nil
}

func BuildDiversityNode(_ config.Deps, cfg map[string]any) (pipeline.Node, error) {
	return &rerank.Diversity{MaxPerGenre: conv.ConfigGetInt(cfg, "max_per_genre", 0)}, nil
}

func BuildTopNNode(_ config.Deps, cfg map[string]any) (pipeline.Node, error) {
	n := conv.ConfigGetInt(cfg, "n", 0)
	if n < 0 {
		return nil, fmt.Errorf("rerank.topn: n must be >= 0, got %d", n)
	}
	minScore := conv.ConfigGetFloat64(cfg, "min_score", 0)
	if minScore < 0 {
		return nil, fmt.Errorf("rerank.topn: min_score must be >= 0, got %v", minScore)
	}
	return &rerank.TopNNode{N: n, MinScore: minScore}, nil
}
