package store

import (
	"context"
	"testing"
	"time"

	"github.com/rushteam/agentrec/core"
)

func TestMemoryStore_GetSet(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	defer s.Close()

	if _, err := s.Get(ctx, "missing"); !core.IsStoreNotFound(err) {
		t.Fatalf("Get(missing) error = %v, want not found", err)
	}
	if err := s.Set(ctx, "k", []byte("v")); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	got, err := s.Get(ctx, "k")
	if err != nil || string(got) != "v" {
		t.Fatalf("Get() = %q, %v, want v", got, err)
	}
	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := s.Get(ctx, "k"); !core.IsStoreNotFound(err) {
		t.Fatalf("Get() after delete error = %v, want not found", err)
	}
}

func TestMemoryStore_TTL(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	defer s.Close()

	now := time.Now()
	s.now = func() time.Time { return now }
	if err := s.Set(ctx, "short", []byte("v"), 60); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := s.Set(ctx, "forever", []byte("v")); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if _, err := s.Get(ctx, "short"); err != nil {
		t.Fatalf("Get(short) before expiry error = %v", err)
	}

	now = now.Add(61 * time.Second)
	if _, err := s.Get(ctx, "short"); !core.IsStoreNotFound(err) {
		t.Fatalf("Get(short) after expiry error = %v, want not found", err)
	}
	if _, err := s.Get(ctx, "forever"); err != nil {
		t.Fatalf("Get(forever) error = %v", err)
	}
}

func TestMemoryStore_Hash(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	defer s.Close()

	if err := s.HSetMany(ctx, "h", map[string][]byte{"1": []byte("a"), "2": []byte("b")}); err != nil {
		t.Fatalf("HSetMany() error = %v", err)
	}
	if err := s.HSet(ctx, "h", "3", []byte("c")); err != nil {
		t.Fatalf("HSet() error = %v", err)
	}
	all, err := s.HGetAll(ctx, "h")
	if err != nil {
		t.Fatalf("HGetAll() error = %v", err)
	}
	if len(all) != 3 || string(all["3"]) != "c" {
		t.Fatalf("HGetAll() = %v", all)
	}
	if _, err := s.HGet(ctx, "h", "9"); !core.IsStoreNotFound(err) {
		t.Fatalf("HGet(missing) error = %v, want not found", err)
	}
	empty, err := s.HGetAll(ctx, "nope")
	if err != nil || len(empty) != 0 {
		t.Fatalf("HGetAll(nope) = %v, %v", empty, err)
	}
}

func TestMemoryVectorService_Search(t *testing.T) {
	ctx := context.Background()
	vs := NewMemoryVectorService()

	if err := vs.CreateCollection(ctx, &core.VectorCreateCollectionRequest{Name: "items", Dimension: 2}); err != nil {
		t.Fatalf("CreateCollection() error = %v", err)
	}
	err := vs.Insert(ctx, &core.VectorInsertRequest{
		Collection: "items",
		IDs:        []int64{3, 1, 2},
		Vectors:    [][]float64{{1, 0}, {0, 1}, {1, 0}},
	})
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	res, err := vs.Search(ctx, &core.VectorSearchRequest{Collection: "items", Vector: []float64{1, 0}, TopK: 2})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(res.Items) != 2 {
		t.Fatalf("Search() returned %d items, want 2", len(res.Items))
	}
	// 同分按 ID 升序
	if res.Items[0].ID != 2 || res.Items[1].ID != 3 {
		t.Fatalf("Search() order = [%d %d], want [2 3]", res.Items[0].ID, res.Items[1].ID)
	}

	if _, err := vs.Search(ctx, &core.VectorSearchRequest{Collection: "items", Vector: []float64{1}}); !core.IsInvalidInput(err) {
		t.Fatalf("Search() dimension mismatch error = %v", err)
	}
	res, err = vs.Search(ctx, &core.VectorSearchRequest{Collection: "unknown", Vector: []float64{1, 0}})
	if err != nil || len(res.Items) != 0 {
		t.Fatalf("Search(unknown) = %v, %v", res, err)
	}
}

func TestMemoryVectorService_Metrics(t *testing.T) {
	tests := []struct {
		name      string
		colMetric core.MetricType
		reqMetric core.MetricType
		want      []int64
	}{
		{"cosine", core.MetricCosine, "", []int64{1, 2, 3}},
		{"euclidean from collection", core.MetricEuclidean, "", []int64{2, 1, 3}},
		{"inner product from request", core.MetricCosine, core.MetricInnerProduct, []int64{1, 2, 3}},
		{"request overrides collection", core.MetricInnerProduct, core.MetricEuclidean, []int64{2, 1, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			vs := NewMemoryVectorService()
			if err := vs.CreateCollection(ctx, &core.VectorCreateCollectionRequest{Name: "items", Dimension: 2, Metric: tt.colMetric}); err != nil {
				t.Fatalf("CreateCollection() error = %v", err)
			}
			err := vs.Insert(ctx, &core.VectorInsertRequest{
				Collection: "items",
				IDs:        []int64{1, 2, 3},
				Vectors:    [][]float64{{2, 0}, {0.5, 0}, {0, 1}},
			})
			if err != nil {
				t.Fatalf("Insert() error = %v", err)
			}
			res, err := vs.Search(ctx, &core.VectorSearchRequest{Collection: "items", Vector: []float64{1, 0}, TopK: 3, Metric: tt.reqMetric})
			if err != nil {
				t.Fatalf("Search() error = %v", err)
			}
			got := make([]int64, 0, len(res.Items))
			for _, it := range res.Items {
				got = append(got, it.ID)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Search() ids = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("Search() ids = %v, want %v", got, tt.want)
				}
			}
		})
	}
}
