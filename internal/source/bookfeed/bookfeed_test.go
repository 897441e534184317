package bookfeed

import (
	"context"
	"testing"

	"github.com/mysticfalconvt/rob-rag-sub000/internal/filter"
	"github.com/mysticfalconvt/rob-rag-sub000/internal/retrieval"
	"github.com/mysticfalconvt/rob-rag-sub000/internal/source"
)

type queryStore struct {
	lastFilter *filter.Filter
	lastLimit  int
}

func (s *queryStore) Search(context.Context, []float32, *filter.Filter, int) ([]retrieval.SearchResult, error) {
	return nil, nil
}

func (s *queryStore) Query(_ context.Context, f *filter.Filter, limit int) ([]retrieval.SearchResult, error) {
	s.lastFilter = f
	s.lastLimit = limit
	return nil, nil
}

func (s *queryStore) Upsert(context.Context, []retrieval.Chunk, [][]float32) error { return nil }
func (s *queryStore) Delete(context.Context, *filter.Filter) error                 { return nil }
func (s *queryStore) Close() error                                                 { return nil }

func Test_QueryByMetadata_CompilesAllParams(t *testing.T) {
	t.Parallel()
	store := &queryStore{}
	p, err := New(store, Config{Users: []string{"robyn"}})
	if err != nil {
		t.Fatal(err)
	}

	_, err = p.QueryByMetadata(context.Background(), source.QueryParams{
		Fields: map[string]any{
			retrieval.KeyUserID: "robyn",
			"min_rating":        float64(4),
			"finished_from":     "2025-01-01",
		},
		Limit: 7,
	})
	if err != nil {
		t.Fatalf("QueryByMetadata: %v", err)
	}

	f := store.lastFilter
	if f == nil {
		t.Fatal("expected a store filter")
	}
	// source, userId, rating lower bound, finish date range.
	if len(f.Must) != 4 {
		t.Fatalf("len(Must) = %d, want 4: %+v", len(f.Must), f)
	}
	var sawRating, sawDate bool
	for _, c := range f.Must {
		if c.Field == KeyRating && c.Range != nil && c.Range.GTE == float64(4) {
			sawRating = true
		}
		if c.Field == KeyFinished && c.Range != nil && c.Range.GTE == "2025-01-01T00:00:00Z" && c.Range.LTE == nil {
			sawDate = true
		}
	}
	if !sawRating {
		t.Errorf("min_rating not compiled: %+v", f.Must)
	}
	if !sawDate {
		t.Errorf("open-ended finish range not compiled: %+v", f.Must)
	}
	if store.lastLimit != 7 {
		t.Errorf("limit = %d, want 7", store.lastLimit)
	}
}

func Test_QueryByMetadata_SourceScopeOnly(t *testing.T) {
	t.Parallel()
	store := &queryStore{}
	p, _ := New(store, Config{Users: []string{"robyn"}})

	if _, err := p.QueryByMetadata(context.Background(), source.QueryParams{}); err != nil {
		t.Fatalf("QueryByMetadata: %v", err)
	}
	f := store.lastFilter
	if f == nil || len(f.Must) != 1 || f.Must[0].Match.Value != SourceName {
		t.Errorf("empty params should still scope to the source: %+v", f)
	}
	if store.lastLimit != defaultQueryLimit {
		t.Errorf("limit = %d, want default %d", store.lastLimit, defaultQueryLimit)
	}
}

func Test_SubEntityField(t *testing.T) {
	t.Parallel()
	p, _ := New(&queryStore{}, Config{Users: []string{"robyn"}})
	if got := p.Capabilities().SubEntityField; got != retrieval.KeyUserID {
		t.Errorf("SubEntityField = %q, want %q", got, retrieval.KeyUserID)
	}
}

func Test_IsConfigured_RequiresUsers(t *testing.T) {
	t.Parallel()
	p, _ := New(&queryStore{}, Config{})
	if err := p.IsConfigured(context.Background()); err == nil {
		t.Error("plugin without users must fail the configuration check")
	}
}
