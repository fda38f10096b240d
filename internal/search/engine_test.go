package search

import (
	"context"
	"testing"

	"github.com/recipeshelf/shelf/internal/config"
	"github.com/recipeshelf/shelf/internal/keyword"
	"github.com/recipeshelf/shelf/internal/models"
	"github.com/recipeshelf/shelf/internal/storage"
)

func newTestEngine(t *testing.T, cfg *config.SearchConfig) *Engine {
	t.Helper()
	ctx := context.Background()

	store := storage.NewMemoryStorage()
	ds := &models.Dataset{Buckets: []models.BucketData{
		{Name: "collections", Members: []models.Member{
			{Name: "Curries"}, {Name: "Rice dishes"}, {Name: "Side dishes"},
		}},
		{Name: "cuisine", Members: []models.Member{{Name: "South Indian"}}},
		{Name: "region", Members: []models.Member{{Name: "Indian Subcontinent"}}},
	}}
	if err := store.Replace(ctx, ds); err != nil {
		t.Fatal(err)
	}

	idx, err := keyword.NewBleveIndex("")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = idx.Close() })

	engine := NewEngine(idx, cfg, nil)
	if err := engine.Reindex(ctx, store); err != nil {
		t.Fatal(err)
	}
	return engine
}

func TestEngine_Search(t *testing.T) {
	engine := newTestEngine(t, &config.SearchConfig{DefaultLimit: 10, MaxLimit: 100, Fuzziness: 2})

	n, err := engine.IndexedItems()
	if err != nil || n != 5 {
		t.Fatalf("IndexedItems() = %d, %v; want 5", n, err)
	}

	resp, err := engine.Search(context.Background(), &models.SearchQuery{Query: "dishes"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Total != 2 || len(resp.Hits) != 2 {
		t.Fatalf("expected 2 hits, got %+v", resp.Hits)
	}
	if resp.AutoFuzzy {
		t.Error("exact match should not be marked auto fuzzy")
	}
	if resp.Hits[0].Score != 1 {
		t.Errorf("best hit should be normalized to 1, got %f", resp.Hits[0].Score)
	}
	for _, h := range resp.Hits {
		if h.Bucket != "collections" {
			t.Errorf("unexpected bucket for %+v", h)
		}
	}
}

func TestEngine_Search_AutoFuzzy(t *testing.T) {
	engine := newTestEngine(t, &config.SearchConfig{Fuzziness: 1})

	resp, err := engine.Search(context.Background(), &models.SearchQuery{Query: "curies"})
	if err != nil {
		t.Fatal(err)
	}
	if !resp.AutoFuzzy {
		t.Error("expected fuzzy retry to be reported")
	}
	if len(resp.Hits) != 1 || resp.Hits[0].Name != "Curries" {
		t.Errorf("expected Curries, got %+v", resp.Hits)
	}
}

func TestEngine_Search_BucketFilter(t *testing.T) {
	engine := newTestEngine(t, nil)

	resp, err := engine.Search(context.Background(), &models.SearchQuery{Query: "indian", Bucket: "cuisine"})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Hits) != 1 || resp.Hits[0].Name != "South Indian" {
		t.Errorf("expected South Indian only, got %+v", resp.Hits)
	}
}

func TestEngine_Search_EmptyQuery(t *testing.T) {
	engine := newTestEngine(t, nil)
	if _, err := engine.Search(context.Background(), &models.SearchQuery{}); err == nil {
		t.Error("expected error for empty query")
	}
}

func TestEngine_processQuery_Limits(t *testing.T) {
	engine := NewEngine(nil, &config.SearchConfig{DefaultLimit: 5, MaxLimit: 20}, nil)
	tests := []struct {
		in, want int
	}{
		{0, 5},
		{7, 7},
		{50, 20},
	}
	for _, tt := range tests {
		q := &models.SearchQuery{Query: "x", Limit: tt.in}
		if err := engine.processQuery(q); err != nil {
			t.Fatal(err)
		}
		if q.Limit != tt.want {
			t.Errorf("limit %d -> %d, want %d", tt.in, q.Limit, tt.want)
		}
	}
}

func TestNormalizeScores(t *testing.T) {
	hits := []*models.SearchHit{{Score: 2}, {Score: 1}}
	NormalizeScores(hits)
	if hits[0].Score != 1 || hits[1].Score != 0.5 {
		t.Errorf("got %v, %v", hits[0].Score, hits[1].Score)
	}
	zero := []*models.SearchHit{{Score: 0}}
	NormalizeScores(zero)
	if zero[0].Score != 0 {
		t.Errorf("zero max should stay 0, got %v", zero[0].Score)
	}
}
