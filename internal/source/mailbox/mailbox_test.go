package mailbox

import (
	"context"
	"testing"

	"github.com/mysticfalconvt/rob-rag-sub000/internal/filter"
	"github.com/mysticfalconvt/rob-rag-sub000/internal/retrieval"
	"github.com/mysticfalconvt/rob-rag-sub000/internal/source"
)

type queryStore struct {
	lastFilter *filter.Filter
}

func (s *queryStore) Search(context.Context, []float32, *filter.Filter, int) ([]retrieval.SearchResult, error) {
	return nil, nil
}

func (s *queryStore) Query(_ context.Context, f *filter.Filter, _ int) ([]retrieval.SearchResult, error) {
	s.lastFilter = f
	return nil, nil
}

func (s *queryStore) Upsert(context.Context, []retrieval.Chunk, [][]float32) error { return nil }
func (s *queryStore) Delete(context.Context, *filter.Filter) error                 { return nil }
func (s *queryStore) Close() error                                                 { return nil }

func Test_QueryByMetadata_SenderAndDateRange(t *testing.T) {
	t.Parallel()
	store := &queryStore{}
	p, err := New(store, Config{Account: "me@example.com"})
	if err != nil {
		t.Fatal(err)
	}

	_, err = p.QueryByMetadata(context.Background(), source.QueryParams{
		Fields: map[string]any{
			KeyFrom:     "landlord@example.com",
			"sent_from": "2026-01-01",
			"sent_to":   "2026-03-31",
		},
	})
	if err != nil {
		t.Fatalf("QueryByMetadata: %v", err)
	}

	f := store.lastFilter
	if f == nil || len(f.Must) != 3 {
		t.Fatalf("filter = %+v, want source + from + range", f)
	}
	var sawFrom, sawRange bool
	for _, c := range f.Must {
		if c.Field == KeyFrom && c.Match != nil && c.Match.Value == "landlord@example.com" {
			sawFrom = true
		}
		if c.Field == KeySentAt && c.Range != nil &&
			c.Range.GTE == "2026-01-01T00:00:00Z" && c.Range.LTE == "2026-03-31T00:00:00Z" {
			sawRange = true
		}
	}
	if !sawFrom || !sawRange {
		t.Errorf("conditions missing: %+v", f.Must)
	}
}

func Test_QueryByMetadata_InvalidDate(t *testing.T) {
	t.Parallel()
	p, _ := New(&queryStore{}, Config{Account: "me@example.com"})
	_, err := p.QueryByMetadata(context.Background(), source.QueryParams{
		Fields: map[string]any{"sent_to": "yesterday"},
	})
	if err == nil {
		t.Error("unparseable dates must error")
	}
}

func Test_IsConfigured_RequiresAccount(t *testing.T) {
	t.Parallel()
	p, _ := New(&queryStore{}, Config{})
	if err := p.IsConfigured(context.Background()); err == nil {
		t.Error("plugin without an account must fail the configuration check")
	}
}
