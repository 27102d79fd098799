package recall

import (
	"context"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/rushteam/agentrec/catalog"
	"github.com/rushteam/agentrec/core"
	"github.com/rushteam/agentrec/pkg/logging"
)

// DefaultCollection 语义索引默认集合名
const DefaultCollection = "movies"

// SemanticSearch 是语义近邻检索工具：查询文本 → 向量 → VectorService 近邻。
// 查询向量用 LRU 缓存，相同查询不重复调用 embedding。
type SemanticSearch struct {
	embedder   core.Embedder
	vectors    core.VectorService
	collection string
	metric     core.MetricType
	cache      *lru.Cache[string, []float64]
	logger     zerolog.Logger
}

// SemanticOption SemanticSearch 配置选项
type SemanticOption func(*SemanticSearch)

func WithCollection(name string) SemanticOption {
	return func(s *SemanticSearch) { s.collection = name }
}

// WithMetric 设置检索度量，为空时使用集合建立时的度量
func WithMetric(metric core.MetricType) SemanticOption {
	return func(s *SemanticSearch) { s.metric = metric }
}

func WithSemanticLogger(logger zerolog.Logger) SemanticOption {
	return func(s *SemanticSearch) { s.logger = logging.Component(logger, "recall.semantic") }
}

// NewSemanticSearch 创建语义检索工具，cacheSize 为查询向量缓存容量。
func NewSemanticSearch(embedder core.Embedder, vectors core.VectorService, cacheSize int, opts ...SemanticOption) (*SemanticSearch, error) {
	if cacheSize <= 0 {
		cacheSize = 256
	}
	cache, err := lru.New[string, []float64](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create query cache: %w", err)
	}
	s := &SemanticSearch{
		embedder:   embedder,
		vectors:    vectors,
		collection: DefaultCollection,
		cache:      cache,
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *SemanticSearch) Name() string { return "recall.semantic" }

// Search 实现 core.SemanticRetriever。空查询直接返回空结果，分数下限为 0。
func (s *SemanticSearch) Search(ctx context.Context, query string, k int) ([]core.Candidate, error) {
	query = strings.TrimSpace(query)
	if query == "" || k <= 0 {
		return nil, nil
	}

	vec, ok := s.cache.Get(query)
	if !ok {
		vecs, err := s.embedder.Embed(ctx, []string{query})
		if err != nil {
			return nil, fmt.Errorf("embed query: %w", err)
		}
		if len(vecs) != 1 {
			return nil, core.NewDomainError(core.ModuleRetrieval, core.ErrorCodeInternalError, "embedder returned no vector for query")
		}
		vec = vecs[0]
		s.cache.Add(query, vec)
		s.logger.Debug().Str("query", query).Int("dim", len(vec)).Msg("query embedding cached")
	}

	res, err := s.vectors.Search(ctx, &core.VectorSearchRequest{
		Collection: s.collection,
		Vector:     vec,
		TopK:       k,
		Metric:     s.metric,
	})
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	out := make([]core.Candidate, 0, len(res.Items))
	for _, it := range res.Items {
		score := it.Score
		if score < 0 {
			score = 0
		}
		out = append(out, core.Candidate{ItemID: it.ID, Score: score})
	}
	sortCandidates(out)
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

// DocumentText 返回物品用于建索引的文本："title | genre1|genre2"。
func DocumentText(meta core.ItemMeta) string {
	return meta.Title + " | " + strings.Join(meta.Genres, "|")
}

// IndexBatchSize 建索引时每次 embedding 调用的文档数
const IndexBatchSize = 100

// BuildSemanticIndex 为目录中所有物品生成向量并写入 index，返回写入条数。
// 集合不存在时按首批向量的维度和 metric 创建，metric 无效时用余弦。
func BuildSemanticIndex(ctx context.Context, embedder core.Embedder, index core.VectorIndex, collection string, metric core.MetricType, cat *catalog.Catalog) (int, error) {
	if collection == "" {
		collection = DefaultCollection
	}
	if !metric.Valid() {
		metric = core.MetricCosine
	}

	var (
		ids   []int64
		texts []string
	)
	cat.Each(func(meta core.ItemMeta) bool {
		ids = append(ids, meta.ID)
		texts = append(texts, DocumentText(meta))
		return true
	})

	inserted := 0
	for start := 0; start < len(texts); start += IndexBatchSize {
		end := start + IndexBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		vecs, err := embedder.Embed(ctx, texts[start:end])
		if err != nil {
			return inserted, fmt.Errorf("embed batch %d-%d: %w", start, end, err)
		}
		if len(vecs) != end-start {
			return inserted, core.NewDomainError(core.ModuleRetrieval, core.ErrorCodeInternalError,
				fmt.Sprintf("embed batch %d-%d: got %d vectors", start, end, len(vecs)))
		}

		if start == 0 {
			exists, err := index.HasCollection(ctx, collection)
			if err != nil {
				return 0, fmt.Errorf("check collection: %w", err)
			}
			if !exists {
				if err := index.CreateCollection(ctx, &core.VectorCreateCollectionRequest{
					Name:      collection,
					Dimension: len(vecs[0]),
					Metric:    metric,
				}); err != nil {
					return 0, fmt.Errorf("create collection: %w", err)
				}
			}
		}

		if err := index.Insert(ctx, &core.VectorInsertRequest{
			Collection: collection,
			Vectors:    vecs,
			IDs:        ids[start:end],
		}); err != nil {
			return inserted, fmt.Errorf("insert batch %d-%d: %w", start, end, err)
		}
		inserted += end - start
	}
	return inserted, nil
}
