package docvault

import (
	"context"
	"testing"

	"github.com/mysticfalconvt/rob-rag-sub000/internal/filter"
	"github.com/mysticfalconvt/rob-rag-sub000/internal/retrieval"
	"github.com/mysticfalconvt/rob-rag-sub000/internal/source"
)

// queryStore serves canned Query results and records the filter and limit.
type queryStore struct {
	results    []retrieval.SearchResult
	lastFilter *filter.Filter
	lastLimit  int
}

func (s *queryStore) Search(context.Context, []float32, *filter.Filter, int) ([]retrieval.SearchResult, error) {
	return nil, nil
}

func (s *queryStore) Query(_ context.Context, f *filter.Filter, limit int) ([]retrieval.SearchResult, error) {
	s.lastFilter = f
	s.lastLimit = limit
	return s.results, nil
}

func (s *queryStore) Upsert(context.Context, []retrieval.Chunk, [][]float32) error { return nil }
func (s *queryStore) Delete(context.Context, *filter.Filter) error                 { return nil }
func (s *queryStore) Close() error                                                 { return nil }

func doc(name, tags, correspondent string) retrieval.SearchResult {
	return retrieval.SearchResult{
		Content: "body of " + name,
		Metadata: retrieval.Metadata{
			retrieval.KeyFileName: name,
			retrieval.KeySource:   SourceName,
			KeyTags:               tags,
			KeyCorrespondent:      correspondent,
		},
	}
}

func Test_QueryByMetadata_BuildsStoreFilter(t *testing.T) {
	t.Parallel()
	store := &queryStore{}
	p, err := New(store, Config{Enabled: true})
	if err != nil {
		t.Fatal(err)
	}

	_, err = p.QueryByMetadata(context.Background(), source.QueryParams{
		Fields: map[string]any{
			KeyCorrespondent: "City Tax Office",
			"created_from":   "2025-01-01",
			"created_to":     "2025-06-30",
		},
	})
	if err != nil {
		t.Fatalf("QueryByMetadata: %v", err)
	}

	f := store.lastFilter
	if f == nil {
		t.Fatal("expected a store filter")
	}
	// source equality, correspondent equality, and one date range.
	if len(f.Must) != 3 {
		t.Fatalf("len(Must) = %d, want 3: %+v", len(f.Must), f)
	}
	if f.Must[0].Match.Value != SourceName {
		t.Errorf("first condition should scope to the source: %+v", f.Must[0])
	}
	if f.Must[2].Range == nil || f.Must[2].Range.GTE != "2025-01-01T00:00:00Z" {
		t.Errorf("date range not normalized: %+v", f.Must[2])
	}
}

func Test_QueryByMetadata_TagPostFilterAndOverfetch(t *testing.T) {
	t.Parallel()
	store := &queryStore{results: []retrieval.SearchResult{
		doc("invoice.pdf", "finance|tax-2025", "City Tax Office"),
		doc("recipe.md", "cooking", ""),
	}}
	p, err := New(store, Config{Enabled: true})
	if err != nil {
		t.Fatal(err)
	}

	got, err := p.QueryByMetadata(context.Background(), source.QueryParams{
		Fields: map[string]any{KeyTags: "tax, missing"},
		Limit:  10,
	})
	if err != nil {
		t.Fatalf("QueryByMetadata: %v", err)
	}
	if len(got) != 1 || got[0].FileName() != "invoice.pdf" {
		t.Errorf("got %v, want only invoice.pdf", got)
	}
	if store.lastLimit != 50 {
		t.Errorf("tag queries should over-fetch, limit = %d, want 50", store.lastLimit)
	}
}

func Test_QueryByMetadata_InvalidDate(t *testing.T) {
	t.Parallel()
	p, err := New(&queryStore{}, Config{Enabled: true})
	if err != nil {
		t.Fatal(err)
	}
	_, err = p.QueryByMetadata(context.Background(), source.QueryParams{
		Fields: map[string]any{"created_from": "last tuesday"},
	})
	if err == nil {
		t.Error("unparseable dates must error")
	}
}

func Test_IsConfigured_RespectsEnabledFlag(t *testing.T) {
	t.Parallel()
	on, _ := New(&queryStore{}, Config{Enabled: true})
	if err := on.IsConfigured(context.Background()); err != nil {
		t.Errorf("enabled plugin should be configured: %v", err)
	}
	off, _ := New(&queryStore{}, Config{})
	if err := off.IsConfigured(context.Background()); err == nil {
		t.Error("disabled plugin must fail the configuration check")
	}
}
