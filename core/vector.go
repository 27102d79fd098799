package core

import "context"

// VectorService 是向量检索的领域接口，语义检索工具通过它做近邻查询。
//
// 实现：
//   - store.MemoryVectorService（进程内，启动时构建，之后只读）
type VectorService interface {
	// Search 向量搜索，结果按相似度降序
	Search(ctx context.Context, req *VectorSearchRequest) (*VectorSearchResult, error)

	// Close 释放资源
	Close() error
}

// VectorIndex 在 VectorService 之上补充建索引所需的写操作，只在启动阶段使用。
type VectorIndex interface {
	VectorService

	// CreateCollection 创建集合
	CreateCollection(ctx context.Context, req *VectorCreateCollectionRequest) error

	// HasCollection 检查集合是否存在
	HasCollection(ctx context.Context, collection string) (bool, error)

	// Insert 批量写入向量
	Insert(ctx context.Context, req *VectorInsertRequest) error
}

// Embedder 把文本编码为向量。
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// VectorSearchRequest 向量搜索请求
type VectorSearchRequest struct {
	Collection string
	Vector     []float64
	TopK       int

	// Metric 距离度量：cosine / euclidean / inner_product，为空时使用集合的度量
	Metric MetricType
}

// VectorSearchItem 单个向量搜索结果项
type VectorSearchItem struct {
	ID       int64
	Score    float64
	Distance float64
}

// VectorSearchResult 向量搜索结果
type VectorSearchResult struct {
	Items []VectorSearchItem
}

// VectorInsertRequest 向量插入请求，Vectors 与 IDs 一一对应
type VectorInsertRequest struct {
	Collection string
	Vectors    [][]float64
	IDs        []int64
}

// VectorCreateCollectionRequest 创建集合请求
type VectorCreateCollectionRequest struct {
	Name      string
	Dimension int
	Metric    MetricType
}

// MetricType 距离度量类型
type MetricType string

const (
	MetricCosine       MetricType = "cosine"
	MetricEuclidean    MetricType = "euclidean"
	MetricInnerProduct MetricType = "inner_product"
)

// Valid 判断度量类型是否受支持。
func (m MetricType) Valid() bool {
	switch m {
	case MetricCosine, MetricEuclidean, MetricInnerProduct:
		return true
	default:
		return false
	}
}
