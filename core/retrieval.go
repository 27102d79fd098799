package core

import "context"

// SourceKind 标识检索工具类型。
type SourceKind string

const (
	SourceBehavioral SourceKind = "behavioral"
	SourceSemantic   SourceKind = "semantic"
)

// BehavioralRetriever 行为相似检索工具。
// 未知用户返回空结果而不是错误；结果长度 ≤ k，分数 ≥ 0。
type BehavioralRetriever interface {
	Recommend(ctx context.Context, userID string, k int) ([]Candidate, error)
}

// SemanticRetriever 语义近邻检索工具，只会以非空 query 调用。
type SemanticRetriever interface {
	Search(ctx context.Context, query string, k int) ([]Candidate, error)
}

// ItemStats 物品统计提供者，进程级只读。
type ItemStats interface {
	// Popularity 归一化热度 [0,1]，未知物品返回 NeutralPopularity
	Popularity(id int64) float64

	// AvgRating 归一化平均评分 [0,1]，未知物品返回 NeutralAvgRating
	AvgRating(id int64) float64

	// RatingCount 评分次数
	RatingCount(id int64) int
}

const (
	NeutralPopularity = 0.0
	NeutralAvgRating  = 0.5
)
