package store

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/rushteam/agentrec/core"
)

// MemoryVectorService 是内存实现的向量索引，供语义检索工具使用。
//
// 特点：
//   - 启动时写入，之后只读；读写都加锁，检索可并发
//   - 支持余弦相似度、欧氏距离、内积
//   - 暴力检索，适合目录规模在十万级以内的场景
type MemoryVectorService struct {
	mu          sync.RWMutex
	collections map[string]*collection
}

type collection struct {
	dimension int
	metric    core.MetricType
	ids       []int64
	vectors   map[int64][]float64
}

// NewMemoryVectorService 创建内存向量索引。
func NewMemoryVectorService() *MemoryVectorService {
	return &MemoryVectorService{
		collections: make(map[string]*collection),
	}
}

func (m *MemoryVectorService) Name() string { return "memory_vector" }

// Search 实现 core.VectorService 接口
func (m *MemoryVectorService) Search(ctx context.Context, req *core.VectorSearchRequest) (*core.VectorSearchResult, error) {
	if req == nil {
		return nil, core.NewDomainError(core.ModuleVector, core.ErrorCodeInvalidInput, "vector search request is nil")
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	col, ok := m.collections[req.Collection]
	if !ok {
		return &core.VectorSearchResult{Items: []core.VectorSearchItem{}}, nil
	}
	if len(req.Vector) != col.dimension {
		return nil, core.NewDomainError(core.ModuleVector, core.ErrorCodeInvalidInput, "vector dimension mismatch")
	}

	topK := req.TopK
	if topK <= 0 {
		topK = 10
	}
	metric := req.Metric
	if !metric.Valid() {
		metric = col.metric
	}

	items := make([]core.VectorSearchItem, 0, len(col.ids))
	for _, id := range col.ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		v := col.vectors[id]
		var score, distance float64
		switch metric {
		case core.MetricEuclidean:
			distance = euclideanDistance(req.Vector, v)
			score = 1.0 / (1.0 + distance)
		case core.MetricInnerProduct:
			score = innerProduct(req.Vector, v)
			distance = -score
		default:
			score = cosineSimilarity(req.Vector, v)
			distance = 1.0 - score
		}
		items = append(items, core.VectorSearchItem{ID: id, Score: score, Distance: distance})
	}

	// 分数降序，同分按 ID 升序
	sort.Slice(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		return items[i].ID < items[j].ID
	})
	if len(items) > topK {
		items = items[:topK]
	}
	return &core.VectorSearchResult{Items: items}, nil
}

// Close 实现 core.VectorService 接口
func (m *MemoryVectorService) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collections = make(map[string]*collection)
	return nil
}

// Insert 实现 core.VectorIndex 接口，同 ID 重复写入时覆盖
func (m *MemoryVectorService) Insert(ctx context.Context, req *core.VectorInsertRequest) error {
	if req == nil {
		return core.NewDomainError(core.ModuleVector, core.ErrorCodeInvalidInput, "insert request is nil")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	col, ok := m.collections[req.Collection]
	if !ok {
		return core.NewDomainError(core.ModuleVector, core.ErrorCodeNotFound, "collection not found: "+req.Collection)
	}
	if len(req.Vectors) != len(req.IDs) {
		return core.NewDomainError(core.ModuleVector, core.ErrorCodeInvalidInput, "vectors and ids length mismatch")
	}

	for i, vector := range req.Vectors {
		if len(vector) != col.dimension {
			return core.NewDomainError(core.ModuleVector, core.ErrorCodeInvalidInput, "vector dimension mismatch")
		}
		id := req.IDs[i]
		if _, exists := col.vectors[id]; !exists {
			col.ids = append(col.ids, id)
		}
		col.vectors[id] = append([]float64(nil), vector...)
	}
	return nil
}

// CreateCollection 实现 core.VectorIndex 接口
func (m *MemoryVectorService) CreateCollection(ctx context.Context, req *core.VectorCreateCollectionRequest) error {
	if req == nil {
		return core.NewDomainError(core.ModuleVector, core.ErrorCodeInvalidInput, "create collection request is nil")
	}
	if req.Name == "" {
		return core.NewDomainError(core.ModuleVector, core.ErrorCodeInvalidInput, "collection name is required")
	}
	if req.Dimension <= 0 {
		return core.NewDomainError(core.ModuleVector, core.ErrorCodeInvalidInput, "dimension must be greater than 0")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.collections[req.Name]; exists {
		return core.NewDomainError(core.ModuleVector, core.ErrorCodeInvalidInput, "collection already exists: "+req.Name)
	}
	metric := req.Metric
	if !metric.Valid() {
		metric = core.MetricCosine
	}
	m.collections[req.Name] = &collection{
		dimension: req.Dimension,
		metric:    metric,
		vectors:   make(map[int64][]float64),
	}
	return nil
}

// HasCollection 实现 core.VectorIndex 接口
func (m *MemoryVectorService) HasCollection(ctx context.Context, name string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, exists := m.collections[name]
	return exists, nil
}

// Len 返回集合中的向量数。
func (m *MemoryVectorService) Len(name string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if col, ok := m.collections[name]; ok {
		return len(col.ids)
	}
	return 0
}

func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func euclideanDistance(a, b []float64) float64 {
	if len(a) != len(b) {
		return math.MaxFloat64
	}

	var sum float64
	for i := range a {
		diff := a[i] - b[i]
		sum += diff * diff
	}
	return math.Sqrt(sum)
}

func innerProduct(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}

	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

var _ core.VectorIndex = (*MemoryVectorService)(nil)
