package store

import (
	"context"
	"testing"
	"time"
)

// openTestStore opens an in-memory SQLiteStore for use in tests.
func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open in-memory store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func Test_Store_RecordAndRecent(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	rec := ScanRecord{
		Source:  "localfiles",
		Indexed: 12,
		Updated: 3,
		Deleted: 1,
		Errors:  []string{"notes/broken.md: read failed"},
	}
	if err := s.Record(ctx, rec); err != nil {
		t.Fatalf("record: %v", err)
	}

	recs, err := s.Recent(ctx, "", 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("want 1 record, got %d", len(recs))
	}
	got := recs[0]
	if got.Source != "localfiles" || got.Indexed != 12 || got.Updated != 3 || got.Deleted != 1 {
		t.Errorf("record mismatch: got %+v", got)
	}
	if len(got.Errors) != 1 || got.Errors[0] != "notes/broken.md: read failed" {
		t.Errorf("errors mismatch: got %v", got.Errors)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt not populated")
	}
}

func Test_Store_RecentNewestFirst(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i, n := range []int{1, 2, 3} {
		rec := ScanRecord{Source: "localfiles", Indexed: n, CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := s.Record(ctx, rec); err != nil {
			t.Fatalf("record %d: %v", n, err)
		}
	}

	recs, err := s.Recent(ctx, "", 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("want 3 records, got %d", len(recs))
	}
	for i, want := range []int{3, 2, 1} {
		if recs[i].Indexed != want {
			t.Errorf("recs[%d].Indexed: want %d, got %d", i, want, recs[i].Indexed)
		}
	}
}

func Test_Store_RecentLimitRespected(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	for range 6 {
		if err := s.Record(ctx, ScanRecord{Source: "localfiles"}); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	recs, err := s.Recent(ctx, "", 4)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recs) != 4 {
		t.Errorf("want 4 records, got %d", len(recs))
	}
}

func Test_Store_SourceFilter(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Record(ctx, ScanRecord{Source: "localfiles", Indexed: 5}); err != nil {
		t.Fatalf("record localfiles: %v", err)
	}
	if err := s.Record(ctx, ScanRecord{Source: "docvault", Indexed: 7}); err != nil {
		t.Fatalf("record docvault: %v", err)
	}

	recs, err := s.Recent(ctx, "docvault", 10)
	if err != nil {
		t.Fatalf("recent docvault: %v", err)
	}
	if len(recs) != 1 || recs[0].Source != "docvault" || recs[0].Indexed != 7 {
		t.Errorf("source filter failed: got %+v", recs)
	}
}

func Test_Store_EmptyHistoryReturnsNil(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	recs, err := s.Recent(context.Background(), "", 10)
	if err != nil {
		t.Fatalf("recent empty: %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("want 0 records, got %d", len(recs))
	}
}

func Test_Store_NilErrorsRoundTrip(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Record(ctx, ScanRecord{Source: "localfiles"}); err != nil {
		t.Fatalf("record: %v", err)
	}
	recs, err := s.Recent(ctx, "", 1)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("want 1 record, got %d", len(recs))
	}
	if len(recs[0].Errors) != 0 {
		t.Errorf("want no errors, got %v", recs[0].Errors)
	}
}
