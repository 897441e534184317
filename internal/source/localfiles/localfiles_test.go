package localfiles

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/mysticfalconvt/rob-rag-sub000/internal/filter"
	"github.com/mysticfalconvt/rob-rag-sub000/internal/retrieval"
	"github.com/mysticfalconvt/rob-rag-sub000/internal/source"
)

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

// memStore records upserts and deletes and serves a canned Query.
type memStore struct {
	mu       sync.Mutex
	upserted []retrieval.Chunk
	deleted  []*filter.Filter
	queryOut []retrieval.SearchResult
}

func (m *memStore) Search(context.Context, []float32, *filter.Filter, int) ([]retrieval.SearchResult, error) {
	return nil, nil
}

func (m *memStore) Query(context.Context, *filter.Filter, int) ([]retrieval.SearchResult, error) {
	return m.queryOut, nil
}

func (m *memStore) Upsert(_ context.Context, chunks []retrieval.Chunk, _ [][]float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserted = append(m.upserted, chunks...)
	return nil
}

func (m *memStore) Delete(_ context.Context, f *filter.Filter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, f)
	return nil
}

func (m *memStore) Close() error { return nil }

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		t.Fatal(err)
	}
	return abs
}

func newPlugin(t *testing.T, store *memStore, dirs ...string) *Plugin {
	t.Helper()
	p, err := New(fakeEmbedder{}, store, Config{Directories: dirs, EmbedConcurrency: 1})
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func Test_Scan_IndexesEligibleFiles(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFile(t, dir, "note.md", "hello world")
	writeFile(t, dir, "data.json", `{"k":"v"}`)
	writeFile(t, dir, "binary.png", "xxxx")

	store := &memStore{}
	p := newPlugin(t, store, dir)

	res, err := p.Scan(context.Background(), source.ScanOptions{})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if res.Indexed != 2 || res.Updated != 0 || res.Deleted != 0 {
		t.Errorf("result = %+v, want 2 indexed", res)
	}
	if len(res.Errors) != 0 {
		t.Errorf("unexpected errors: %v", res.Errors)
	}

	byName := map[string]retrieval.Chunk{}
	for _, c := range store.upserted {
		byName[c.Metadata.String(retrieval.KeyFileName)] = c
	}
	md, ok := byName["note.md"]
	if !ok {
		t.Fatal("note.md not upserted")
	}
	if md.Metadata.String(retrieval.KeySource) != SourceName {
		t.Errorf("source = %q", md.Metadata.String(retrieval.KeySource))
	}
	if md.Metadata.String("docType") != "note" {
		t.Errorf("docType = %q, want note", md.Metadata.String("docType"))
	}
	if md.Metadata.Int(retrieval.KeyTotalChunks) != 1 {
		t.Errorf("totalChunks = %d, want 1", md.Metadata.Int(retrieval.KeyTotalChunks))
	}
	if _, ok := byName["binary.png"]; ok {
		t.Error("non-indexable extension must be skipped")
	}
}

func Test_Scan_CountsUpdatesAndDeletions(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	existing := writeFile(t, dir, "kept.md", "kept")

	store := &memStore{queryOut: []retrieval.SearchResult{
		{Metadata: retrieval.Metadata{retrieval.KeyFilePath: existing}},
		{Metadata: retrieval.Metadata{retrieval.KeyFilePath: filepath.Join(dir, "gone.md")}},
	}}
	p := newPlugin(t, store, dir)

	res, err := p.Scan(context.Background(), source.ScanOptions{})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if res.Updated != 1 || res.Indexed != 0 {
		t.Errorf("result = %+v, want 1 updated", res)
	}
	if res.Deleted != 1 || len(store.deleted) != 1 {
		t.Errorf("vanished file should be swept: %+v", res)
	}
}

func Test_ReadDocument_RestrictedToConfiguredDirs(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	inside := writeFile(t, dir, "in.md", "inside content")
	outside := writeFile(t, t.TempDir(), "out.md", "outside content")

	p := newPlugin(t, &memStore{}, dir)

	got, err := p.ReadDocument(context.Background(), inside)
	if err != nil || got != "inside content" {
		t.Errorf("ReadDocument(inside) = %q, %v", got, err)
	}
	if _, err := p.ReadDocument(context.Background(), outside); err == nil {
		t.Error("paths outside the configured directories must be refused")
	}
}

func Test_IsConfigured(t *testing.T) {
	t.Parallel()
	p := newPlugin(t, &memStore{}, t.TempDir())
	if err := p.IsConfigured(context.Background()); err != nil {
		t.Errorf("existing directory should configure the plugin: %v", err)
	}

	missing := newPlugin(t, &memStore{}, "/does/not/exist")
	if err := missing.IsConfigured(context.Background()); err == nil {
		t.Error("missing directories must fail the configuration check")
	}

	if _, err := New(fakeEmbedder{}, &memStore{}, Config{}); err != nil {
		t.Errorf("empty config is constructible: %v", err)
	}
}

func Test_Chunk(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name          string
		text          string
		size, overlap int
		want          int
	}{
		{"empty", "   ", 10, 2, 0},
		{"single", "short", 10, 2, 1},
		{"split with overlap", strings.Repeat("a", 25), 10, 2, 3},
		{"exact fit", strings.Repeat("b", 10), 10, 0, 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := Chunk(tc.text, tc.size, tc.overlap)
			if len(got) != tc.want {
				t.Errorf("Chunk produced %d chunks, want %d", len(got), tc.want)
			}
			for _, c := range got {
				if len(c) > tc.size {
					t.Errorf("chunk longer than size: %d", len(c))
				}
			}
		})
	}
}

func Test_InferDocType(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"a/b/notes.md":  "note",
		"data.JSON":     "data",
		"page.html":     "web",
		"plain.txt":     "text",
		"weird.unknown": "text",
	}
	for path, want := range cases {
		if got := InferDocType(path); got != want {
			t.Errorf("InferDocType(%q) = %q, want %q", path, got, want)
		}
	}
}
