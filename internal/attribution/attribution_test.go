package attribution

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/mysticfalconvt/rob-rag-sub000/internal/retrieval"
)

// vectorEmbedder maps each text to a pre-assigned vector.
type vectorEmbedder struct {
	vectors map[string][]float32
	err     error
}

func (e *vectorEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, ok := e.vectors[t]
		if !ok {
			v = []float32{1, 0}
		}
		out[i] = v
	}
	return out, nil
}

// withSimilarity returns a unit vector whose cosine similarity to [1,0] is
// exactly sim.
func withSimilarity(sim float64) []float32 {
	return []float32{float32(sim), float32(math.Sqrt(1 - sim*sim))}
}

func src(content string) retrieval.SearchResult {
	return retrieval.SearchResult{
		Content:  content,
		Metadata: retrieval.Metadata{retrieval.KeyFileName: content, retrieval.KeySource: "localfiles"},
	}
}

func Test_AnalyzeReferencedSources_AdaptiveThreshold(t *testing.T) {
	t.Parallel()
	// Similarities 0.82, 0.75, 0.50, 0.30: mean 0.5925, stddev ~0.2066,
	// threshold ~0.696. Top ceil(4*0.4)=2 sources clear it.
	embedder := &vectorEmbedder{vectors: map[string][]float32{
		"answer": {1, 0},
		"a":      withSimilarity(0.82),
		"b":      withSimilarity(0.75),
		"c":      withSimilarity(0.50),
		"d":      withSimilarity(0.30),
	}}
	e := NewEngine(embedder)

	got := e.AnalyzeReferencedSources(context.Background(), "answer",
		[]retrieval.SearchResult{src("c"), src("a"), src("d"), src("b")})

	if len(got) != 4 {
		t.Fatalf("got %d sources, want 4", len(got))
	}
	wantOrder := []string{"a", "b", "c", "d"}
	for i, w := range wantOrder {
		if got[i].Content != w {
			t.Errorf("rank %d = %q, want %q", i, got[i].Content, w)
		}
	}
	for i, wantRef := range []bool{true, true, false, false} {
		if got[i].IsReferenced != wantRef {
			t.Errorf("rank %d referenced = %v, want %v (score %.3f)",
				i, got[i].IsReferenced, wantRef, got[i].RelevanceScore)
		}
	}
	if math.Abs(got[0].RelevanceScore-0.82) > 1e-3 {
		t.Errorf("top score = %.4f, want ~0.82", got[0].RelevanceScore)
	}
}

func Test_AnalyzeReferencedSources_FloorForcesBestSource(t *testing.T) {
	t.Parallel()
	// Everything scores below the 0.4 floor; the single best source is
	// still marked.
	embedder := &vectorEmbedder{vectors: map[string][]float32{
		"answer": {1, 0},
		"a":      withSimilarity(0.35),
		"b":      withSimilarity(0.20),
		"c":      withSimilarity(0.10),
	}}
	e := NewEngine(embedder)

	got := e.AnalyzeReferencedSources(context.Background(), "answer",
		[]retrieval.SearchResult{src("b"), src("c"), src("a")})

	refs := 0
	for _, s := range got {
		if s.IsReferenced {
			refs++
		}
	}
	if refs != 1 || !got[0].IsReferenced || got[0].Content != "a" {
		t.Errorf("exactly the best source should be forced, got %+v", got)
	}
}

func Test_AnalyzeReferencedSources_TopNCeiling(t *testing.T) {
	t.Parallel()
	// Five identical high scores: stddev 0, threshold max(0.4, 0.9)=0.9,
	// all clear it, but only ceil(5*0.4)=2 may be marked.
	vectors := map[string][]float32{"answer": {1, 0}}
	sources := make([]retrieval.SearchResult, 0, 5)
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		vectors[name] = withSimilarity(0.9)
		sources = append(sources, src(name))
	}
	e := NewEngine(&vectorEmbedder{vectors: vectors})

	got := e.AnalyzeReferencedSources(context.Background(), "answer", sources)
	refs := 0
	for _, s := range got {
		if s.IsReferenced {
			refs++
		}
	}
	if refs != 2 {
		t.Errorf("marked %d sources, want top-N cap of 2", refs)
	}
}

func Test_AnalyzeReferencedSources_SingleSource(t *testing.T) {
	t.Parallel()
	embedder := &vectorEmbedder{vectors: map[string][]float32{
		"answer": {1, 0},
		"only":   withSimilarity(0.05),
	}}
	e := NewEngine(embedder)

	got := e.AnalyzeReferencedSources(context.Background(), "answer", []retrieval.SearchResult{src("only")})
	if len(got) != 1 || !got[0].IsReferenced {
		t.Errorf("a lone source must be referenced, got %+v", got)
	}
}

func Test_AnalyzeReferencedSources_EmbeddingFailureSuppressesAll(t *testing.T) {
	t.Parallel()
	e := NewEngine(&vectorEmbedder{err: errors.New("backend down")})

	got := e.AnalyzeReferencedSources(context.Background(), "answer",
		[]retrieval.SearchResult{src("a"), src("b")})
	if len(got) != 2 {
		t.Fatalf("got %d sources, want 2", len(got))
	}
	for _, s := range got {
		if s.RelevanceScore != 0 || s.IsReferenced {
			t.Errorf("failure must zero everything, got %+v", s)
		}
	}
}

func Test_AnalyzeReferencedSources_ZeroNormSuppressesAll(t *testing.T) {
	t.Parallel()
	embedder := &vectorEmbedder{vectors: map[string][]float32{
		"answer":     {1, 0},
		"degenerate": {0, 0},
		"fine":       withSimilarity(0.9),
	}}
	e := NewEngine(embedder)

	got := e.AnalyzeReferencedSources(context.Background(), "answer",
		[]retrieval.SearchResult{src("fine"), src("degenerate")})
	for _, s := range got {
		if s.RelevanceScore != 0 || s.IsReferenced {
			t.Errorf("one degenerate embedding must suppress the whole pass, got %+v", s)
		}
	}
}

func Test_AnalyzeReferencedSources_EmptyInputs(t *testing.T) {
	t.Parallel()
	e := NewEngine(&vectorEmbedder{})
	if got := e.AnalyzeReferencedSources(context.Background(), "answer", nil); len(got) != 0 {
		t.Errorf("no sources should yield no output, got %+v", got)
	}
	got := e.AnalyzeReferencedSources(context.Background(), "", []retrieval.SearchResult{src("a")})
	if len(got) != 1 || got[0].IsReferenced || got[0].RelevanceScore != 0 {
		t.Errorf("empty response scores nothing, got %+v", got)
	}
}

func Test_AnalyzeReferencedSources_Deterministic(t *testing.T) {
	t.Parallel()
	embedder := &vectorEmbedder{vectors: map[string][]float32{
		"answer": {1, 0},
		"a":      withSimilarity(0.8),
		"b":      withSimilarity(0.8),
		"c":      withSimilarity(0.3),
	}}
	e := NewEngine(embedder)
	in := []retrieval.SearchResult{src("a"), src("b"), src("c")}

	first := e.AnalyzeReferencedSources(context.Background(), "answer", in)
	for i := 0; i < 5; i++ {
		again := e.AnalyzeReferencedSources(context.Background(), "answer", in)
		for j := range first {
			if first[j].Content != again[j].Content || first[j].IsReferenced != again[j].IsReferenced {
				t.Fatalf("run %d diverged at %d: %+v vs %+v", i, j, first[j], again[j])
			}
		}
	}
}

func Test_CosineSimilarity(t *testing.T) {
	t.Parallel()
	if _, err := cosineSimilarity([]float32{1, 0}, []float32{1}); err == nil {
		t.Error("dimension mismatch must error")
	}
	if _, err := cosineSimilarity(nil, nil); err == nil {
		t.Error("empty vectors must error")
	}
	got, err := cosineSimilarity([]float32{0, 2}, []float32{0, 5})
	if err != nil || math.Abs(got-1) > 1e-9 {
		t.Errorf("parallel vectors = %v, %v; want 1", got, err)
	}
	got, err = cosineSimilarity([]float32{1, 0}, []float32{0, 1})
	if err != nil || math.Abs(got) > 1e-9 {
		t.Errorf("orthogonal vectors = %v, %v; want 0", got, err)
	}
}
