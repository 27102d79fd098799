package recall

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rushteam/agentrec/catalog"
	"github.com/rushteam/agentrec/core"
	"github.com/rushteam/agentrec/pipeline"
	"github.com/rushteam/agentrec/store"
)

func ratings() []catalog.Rating {
	return []catalog.Rating{
		{UserID: "1", ItemID: 10, Value: 5},
		{UserID: "1", ItemID: 20, Value: 4},
		{UserID: "2", ItemID: 10, Value: 4},
		{UserID: "2", ItemID: 20, Value: 3},
		{UserID: "2", ItemID: 30, Value: 5},
		{UserID: "3", ItemID: 10, Value: 2},
		{UserID: "3", ItemID: 40, Value: 4},
		{UserID: "3", ItemID: 10, Value: 3}, // 重复评分按隐式反馈只计一次
	}
}

func TestItemCF_Recommend(t *testing.T) {
	cf := NewItemCF(ratings())
	got, err := cf.Recommend(context.Background(), "1", 10)
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}

	// 用户 1 看过 10、20。
	// sim(10,30)=1/sqrt(3*1)  sim(20,30)=1/sqrt(2*1)  sim(10,40)=1/sqrt(3*1)
	want30 := 1/math.Sqrt(3) + 1/math.Sqrt(2)
	want40 := 1 / math.Sqrt(3)
	if len(got) != 2 {
		t.Fatalf("Recommend() = %v, want 2 candidates", got)
	}
	if got[0].ItemID != 30 || math.Abs(got[0].Score-want30) > 1e-9 {
		t.Fatalf("Recommend()[0] = %+v, want item 30 score %v", got[0], want30)
	}
	if got[1].ItemID != 40 || math.Abs(got[1].Score-want40) > 1e-9 {
		t.Fatalf("Recommend()[1] = %+v, want item 40 score %v", got[1], want40)
	}
}

func TestItemCF_EdgeCases(t *testing.T) {
	cf := NewItemCF(ratings())
	tests := []struct {
		name   string
		userID string
		k      int
		want   int
	}{
		{name: "unknown user", userID: "999", k: 10, want: 0},
		{name: "zero k", userID: "1", k: 0, want: 0},
		{name: "truncated", userID: "1", k: 1, want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := cf.Recommend(context.Background(), tt.userID, tt.k)
			if err != nil {
				t.Fatalf("Recommend() error = %v", err)
			}
			if len(got) != tt.want {
				t.Fatalf("len(Recommend()) = %d, want %d", len(got), tt.want)
			}
		})
	}
}

func TestItemCF_NeighborLimit(t *testing.T) {
	cf := NewItemCF(ratings(), WithNeighbors(1))
	for id, list := range cf.neighbors {
		if len(list) > 1 {
			t.Fatalf("neighbors[%d] = %v, want at most 1", id, list)
		}
	}
}

// fakeEmbedder 按关键字生成固定向量。
type fakeEmbedder struct {
	mu    sync.Mutex
	calls int
	sizes []int
	err   error
}

func (e *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	e.sizes = append(e.sizes, len(texts))
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float64, len(texts))
	for i, t := range texts {
		t = strings.ToLower(t)
		v := []float64{0.01, 0.01, 0.01}
		if strings.Contains(t, "space") || strings.Contains(t, "sci-fi") {
			v[0] = 1
		}
		if strings.Contains(t, "love") || strings.Contains(t, "romance") {
			v[1] = 1
		}
		if strings.Contains(t, "horror") {
			v[2] = -1
		}
		out[i] = v
	}
	return out, nil
}

func testCatalog() *catalog.Catalog {
	return catalog.NewCatalog([]core.ItemMeta{
		{ID: 1, Title: "Space Odyssey", Genres: []string{"Sci-Fi"}},
		{ID: 2, Title: "Love Actually", Genres: []string{"Romance"}},
		{ID: 3, Title: "Night", Genres: []string{"Horror"}},
	})
}

func TestSemanticSearch(t *testing.T) {
	ctx := context.Background()
	emb := &fakeEmbedder{}
	vs := store.NewMemoryVectorService()
	n, err := BuildSemanticIndex(ctx, emb, vs, "", core.MetricCosine, testCatalog())
	if err != nil || n != 3 {
		t.Fatalf("BuildSemanticIndex() = %d, %v, want 3, nil", n, err)
	}

	s, err := NewSemanticSearch(emb, vs, 8)
	if err != nil {
		t.Fatalf("NewSemanticSearch() error = %v", err)
	}
	got, err := s.Search(ctx, "space adventure", 2)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 2 || got[0].ItemID != 1 {
		t.Fatalf("Search() = %v, want item 1 first and 2 results", got)
	}
	for _, c := range got {
		if c.Score < 0 {
			t.Fatalf("Search() score %v < 0", c.Score)
		}
	}

	before := emb.calls
	if _, err := s.Search(ctx, "space adventure", 2); err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if emb.calls != before {
		t.Fatalf("embedder called %d times for cached query, want 0", emb.calls-before)
	}

	empty, err := s.Search(ctx, "   ", 5)
	if err != nil || len(empty) != 0 {
		t.Fatalf("Search(blank) = %v, %v, want empty", empty, err)
	}
}

func TestSemanticSearch_ClampsNegativeScores(t *testing.T) {
	ctx := context.Background()
	emb := &fakeEmbedder{}
	vs := store.NewMemoryVectorService()
	if _, err := BuildSemanticIndex(ctx, emb, vs, "", core.MetricCosine, testCatalog()); err != nil {
		t.Fatalf("BuildSemanticIndex() error = %v", err)
	}
	s, _ := NewSemanticSearch(emb, vs, 8)
	got, err := s.Search(ctx, "pure horror", 3)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	for _, c := range got {
		if c.Score < 0 {
			t.Fatalf("Search() = %v, scores must be >= 0", got)
		}
	}
}

func TestSemanticSearch_Metrics(t *testing.T) {
	for _, metric := range []core.MetricType{core.MetricCosine, core.MetricEuclidean, core.MetricInnerProduct} {
		t.Run(string(metric), func(t *testing.T) {
			ctx := context.Background()
			emb := &fakeEmbedder{}
			vs := store.NewMemoryVectorService()
			if _, err := BuildSemanticIndex(ctx, emb, vs, "", metric, testCatalog()); err != nil {
				t.Fatalf("BuildSemanticIndex() error = %v", err)
			}
			s, _ := NewSemanticSearch(emb, vs, 8, WithMetric(metric))
			got, err := s.Search(ctx, "space adventure", 3)
			if err != nil {
				t.Fatalf("Search() error = %v", err)
			}
			if len(got) == 0 || got[0].ItemID != 1 {
				t.Fatalf("Search() = %v, want item 1 first", got)
			}
			for _, c := range got {
				if c.Score < 0 {
					t.Fatalf("Search() = %v, scores must be >= 0", got)
				}
			}
		})
	}
}

func TestBuildSemanticIndex_Batches(t *testing.T) {
	metas := make([]core.ItemMeta, 0, 250)
	for i := 1; i <= 250; i++ {
		metas = append(metas, core.ItemMeta{ID: int64(i), Title: "Movie", Genres: []string{"Drama"}})
	}
	emb := &fakeEmbedder{}
	vs := store.NewMemoryVectorService()
	n, err := BuildSemanticIndex(context.Background(), emb, vs, "films", "", catalog.NewCatalog(metas))
	if err != nil {
		t.Fatalf("BuildSemanticIndex() error = %v", err)
	}
	if n != 250 || vs.Len("films") != 250 {
		t.Fatalf("indexed %d (store %d), want 250", n, vs.Len("films"))
	}
	want := []int{100, 100, 50}
	if len(emb.sizes) != len(want) {
		t.Fatalf("batch sizes = %v, want %v", emb.sizes, want)
	}
	for i := range want {
		if emb.sizes[i] != want[i] {
			t.Fatalf("batch sizes = %v, want %v", emb.sizes, want)
		}
	}
}

func TestBuildSemanticIndex_EmbedError(t *testing.T) {
	emb := &fakeEmbedder{err: errors.New("boom")}
	vs := store.NewMemoryVectorService()
	n, err := BuildSemanticIndex(context.Background(), emb, vs, "", core.MetricCosine, testCatalog())
	if err == nil || n != 0 {
		t.Fatalf("BuildSemanticIndex() = %d, %v, want 0 and error", n, err)
	}
}

func TestDocumentText(t *testing.T) {
	got := DocumentText(core.ItemMeta{Title: "Toy Story (1995)", Genres: []string{"Animation", "Children"}})
	if want := "Toy Story (1995) | Animation|Children"; got != want {
		t.Fatalf("DocumentText() = %q, want %q", got, want)
	}
}

type stubBehavioral struct {
	out   []core.Candidate
	err   error
	delay time.Duration
	calls int
}

func (s *stubBehavioral) Recommend(ctx context.Context, _ string, _ int) ([]core.Candidate, error) {
	s.calls++
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.out, s.err
}

type stubSemantic struct {
	out   []core.Candidate
	calls int
}

func (s *stubSemantic) Search(context.Context, string, int) ([]core.Candidate, error) {
	s.calls++
	return s.out, nil
}

type shortTimeout struct{ core.DefaultRetrievalConfig }

func (shortTimeout) DefaultTimeout() time.Duration { return 10 * time.Millisecond }

func TestFanout_Process(t *testing.T) {
	bc := []core.Candidate{{ItemID: 1, Score: 0.8}, {ItemID: 2, Score: 0.4}}
	sc := []core.Candidate{{ItemID: 2, Score: 0.9}, {ItemID: 3, Score: 0.3}}

	tests := []struct {
		name         string
		query        string
		plan         core.Plan
		behavioral   *stubBehavioral
		cfg          core.RetrievalConfig
		wantB, wantS int
		wantSCalls   int
		wantSStatus  string
		wantBStatus  string
	}{
		{
			name:       "hybrid",
			query:      "space",
			plan:       core.Plan{UseBehavioral: true, UseSemantic: true, WeightBehavioral: 0.4, WeightSemantic: 0.6},
			behavioral: &stubBehavioral{out: bc},
			wantB:      2, wantS: 2, wantSCalls: 1, wantBStatus: "ok", wantSStatus: "ok",
		},
		{
			name:       "semantic inactive",
			plan:       core.Plan{UseBehavioral: true, WeightBehavioral: 1},
			behavioral: &stubBehavioral{out: bc},
			wantB:      2, wantS: 0, wantSCalls: 0, wantBStatus: "ok", wantSStatus: "inactive",
		},
		{
			name:       "empty query skips semantic tool",
			query:      "  ",
			plan:       core.Plan{UseBehavioral: true, UseSemantic: true, WeightBehavioral: 0.4, WeightSemantic: 0.6},
			behavioral: &stubBehavioral{out: bc},
			wantB:      2, wantS: 0, wantSCalls: 0, wantBStatus: "ok", wantSStatus: "skipped_empty_query",
		},
		{
			name:       "behavioral failure degrades to empty",
			query:      "space",
			plan:       core.Plan{UseBehavioral: true, UseSemantic: true, WeightBehavioral: 0.4, WeightSemantic: 0.6},
			behavioral: &stubBehavioral{err: errors.New("down")},
			wantB:      0, wantS: 2, wantSCalls: 1, wantBStatus: "failed", wantSStatus: "ok",
		},
		{
			name:       "behavioral timeout degrades to empty",
			query:      "space",
			plan:       core.Plan{UseBehavioral: true, UseSemantic: true, WeightBehavioral: 0.4, WeightSemantic: 0.6},
			behavioral: &stubBehavioral{out: bc, delay: time.Second},
			cfg:        shortTimeout{},
			wantB:      0, wantS: 2, wantSCalls: 1, wantBStatus: "timeout", wantSStatus: "ok",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sem := &stubSemantic{out: sc}
			f := NewFanout(tt.behavioral, sem, tt.cfg)
			st := pipeline.NewState("req", core.NewRecommendContext("1", tt.query)).WithPlan(tt.plan)

			got, fields := f.Process(context.Background(), st)
			if len(got.Candidates.Behavioral) != tt.wantB || len(got.Candidates.Semantic) != tt.wantS {
				t.Fatalf("candidates = %d/%d, want %d/%d", len(got.Candidates.Behavioral), len(got.Candidates.Semantic), tt.wantB, tt.wantS)
			}
			if sem.calls != tt.wantSCalls {
				t.Fatalf("semantic calls = %d, want %d", sem.calls, tt.wantSCalls)
			}
			if fields["behavioral_status"] != tt.wantBStatus || fields["semantic_status"] != tt.wantSStatus {
				t.Fatalf("status = %v/%v, want %v/%v", fields["behavioral_status"], fields["semantic_status"], tt.wantBStatus, tt.wantSStatus)
			}
		})
	}
}

func TestSanitize(t *testing.T) {
	in := []core.Candidate{{ItemID: 1, Score: 0.5}, {ItemID: 1, Score: 0.4}, {ItemID: 2, Score: -1}, {ItemID: 3, Score: 0.1}, {ItemID: 4, Score: 0}}
	got := sanitize(in, 2)
	if len(got) != 2 || got[0].ItemID != 1 || got[1].ItemID != 3 {
		t.Fatalf("sanitize() = %v, want items [1 3]", got)
	}
}

func TestSanitize_NonFiniteScores(t *testing.T) {
	in := []core.Candidate{
		{ItemID: 1, Score: math.NaN()},
		{ItemID: 2, Score: math.Inf(1)},
		{ItemID: 3, Score: math.Inf(-1)},
		{ItemID: 4, Score: 0.3},
	}
	got := sanitize(in, 10)
	if len(got) != 1 || got[0].ItemID != 4 {
		t.Fatalf("sanitize() = %v, want items [4]", got)
	}
}
