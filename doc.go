// Package movierec 是一个基于 SVD（带偏置的矩阵分解）的电影推荐工具包。
//
// 设计要点：
// - Model-first: model.Fit 用 SGD 训练，model.Holder 支持重新训练后原子替换
// - Pipeline-first: Top-N 推荐通过 Node 串联（recall.catalog → filter → rank.mf → rerank.topn）
// - Labels-first: labels 全链路透传，记录召回来源、打分模型与冷启动信息
//
// 大多数调用方只需要 recommend 包：
//
//	svc, _ := recommend.NewService(recommend.Options{Catalog: catalog, History: history, SVD: model.DefaultSVDConfig()})
//	_, _ = svc.LoadOrTrain(ctx, ratings)
//	recs, _ := svc.Recommend(ctx, "1", 10)
package movierec

import (
	"github.com/rushteam/movierec/model"
	"github.com/rushteam/movierec/pipeline"
	"github.com/rushteam/movierec/recommend"
)

// 轻量 facade：便于直接 import "movierec" 使用核心抽象。
type (
	Pipeline       = pipeline.Pipeline
	Node           = pipeline.Node
	Kind           = pipeline.Kind
	Service        = recommend.Service
	Recommendation = recommend.Recommendation
	SVD            = model.SVD
	SVDConfig      = model.SVDConfig
)

const (
	KindRecall = pipeline.KindRecall
	KindFilter = pipeline.KindFilter
	KindRank   = pipeline.KindRank
	KindReRank = pipeline.KindReRank
)
