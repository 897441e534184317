// Package attribution decides which retrieved sources an answer actually
// drew on. After the model responds, the response and every retrieved chunk
// are embedded and compared by cosine similarity; sources clearing an
// adaptive threshold are marked as referenced so the caller can show an
// honest citation list instead of everything retrieval happened to fetch.
package attribution

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/mysticfalconvt/rob-rag-sub000/internal/logging"
	"github.com/mysticfalconvt/rob-rag-sub000/internal/retrieval"
)

const (
	// minThreshold is the floor of the adaptive relevance threshold. A
	// response has to be at least this similar to a source for the source
	// to count as referenced, no matter how the scores spread.
	minThreshold = 0.4

	// spreadFactor weights the score standard deviation when raising the
	// threshold above the floor.
	spreadFactor = 0.5

	// topFraction caps how many sources can be marked referenced: the top
	// ceil(n*topFraction) by similarity, at least one.
	topFraction = 0.4

	// defaultEmbedConcurrency bounds concurrent source-embedding batches.
	defaultEmbedConcurrency = 4

	// embedBatchSize is the number of source texts embedded per request.
	embedBatchSize = 16
)

// SourceRelevance is one retrieved source annotated with its similarity to
// the final answer.
type SourceRelevance struct {
	retrieval.SearchResult

	// RelevanceScore is the cosine similarity between the answer and the
	// source content, in [0, 1] for non-degenerate embeddings. Zero when
	// attribution failed.
	RelevanceScore float64

	// IsReferenced marks sources the answer is judged to have drawn on.
	IsReferenced bool
}

// Engine computes answer-to-source relevance.
type Engine struct {
	embedder    retrieval.Embedder
	concurrency int
}

// NewEngine constructs an Engine using embedder for similarity embeddings.
func NewEngine(embedder retrieval.Embedder) *Engine {
	return &Engine{embedder: embedder, concurrency: defaultEmbedConcurrency}
}

// AnalyzeReferencedSources scores every retrieved source against the
// response text and marks the referenced ones. The result is sorted by
// descending relevance and is deterministic for identical inputs.
//
// A source is referenced when it clears the adaptive threshold AND ranks in
// the top ceil(n*0.4) by similarity. When nothing clears the threshold the
// single best source is marked anyway, since the answer came from somewhere.
// If any embedding fails, every score is zero and nothing is marked; showing
// no attribution is better than showing a wrong one.
func (e *Engine) AnalyzeReferencedSources(ctx context.Context, response string, sources []retrieval.SearchResult) []SourceRelevance {
	log := logging.FromContext(ctx)

	out := make([]SourceRelevance, len(sources))
	for i, s := range sources {
		out[i] = SourceRelevance{SearchResult: s}
	}
	if len(sources) == 0 || response == "" {
		return out
	}

	scores, err := e.similarities(ctx, response, sources)
	if err != nil {
		log.Warn("attribution: embedding failed, suppressing source attribution",
			slog.Any("error", err),
			slog.Int("sources", len(sources)),
		)
		return out
	}
	for i := range out {
		out[i].RelevanceScore = scores[i]
	}

	// Sort by descending relevance, original order as tiebreak.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].RelevanceScore > out[j].RelevanceScore
	})

	threshold := adaptiveThreshold(scores)
	topN := int(math.Ceil(float64(len(out)) * topFraction))
	if topN < 1 {
		topN = 1
	}

	marked := 0
	for i := range out {
		if i < topN && out[i].RelevanceScore >= threshold {
			out[i].IsReferenced = true
			marked++
		}
	}
	if marked == 0 {
		out[0].IsReferenced = true
		marked = 1
	}

	log.Debug("attribution: sources analyzed",
		slog.Int("sources", len(out)),
		slog.Int("referenced", marked),
		slog.Float64("threshold", threshold),
	)
	return out
}

// similarities embeds the response and all source contents and returns the
// cosine similarity of each source to the response, in input order. Any
// embedding or similarity failure fails the whole pass.
func (e *Engine) similarities(ctx context.Context, response string, sources []retrieval.SearchResult) ([]float64, error) {
	respVecs, err := e.embedder.Embed(ctx, []string{response})
	if err != nil || len(respVecs) == 0 {
		return nil, fmt.Errorf("attribution: embedding response: %w", err)
	}
	respVec := respVecs[0]

	vecs := make([][]float32, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for start := 0; start < len(sources); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(sources) {
			end = len(sources)
		}
		g.Go(func() error {
			texts := make([]string, 0, end-start)
			for _, s := range sources[start:end] {
				texts = append(texts, s.Content)
			}
			batch, err := e.embedder.Embed(gctx, texts)
			if err != nil {
				return fmt.Errorf("attribution: embedding sources [%d:%d]: %w", start, end, err)
			}
			if len(batch) != end-start {
				return fmt.Errorf("attribution: embedder returned %d vectors for %d texts", len(batch), end-start)
			}
			copy(vecs[start:end], batch)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	scores := make([]float64, len(sources))
	for i, v := range vecs {
		s, err := cosineSimilarity(respVec, v)
		if err != nil {
			return nil, fmt.Errorf("attribution: source %d: %w", i, err)
		}
		scores[i] = s
	}
	return scores, nil
}

// adaptiveThreshold returns max(minThreshold, mean + spreadFactor*stddev)
// over the scores. Raising the bar with the spread keeps tightly clustered
// mediocre scores from all counting as referenced.
func adaptiveThreshold(scores []float64) float64 {
	if len(scores) == 0 {
		return minThreshold
	}

	var sum float64
	for _, s := range scores {
		sum += s
	}
	mean := sum / float64(len(scores))

	var variance float64
	for _, s := range scores {
		d := s - mean
		variance += d * d
	}
	variance /= float64(len(scores))
	stddev := math.Sqrt(variance)

	if t := mean + spreadFactor*stddev; t > minThreshold {
		return t
	}
	return minThreshold
}

// cosineSimilarity returns the cosine of the angle between a and b. Zero
// vectors, mismatched dimensions, and non-finite results are errors; a
// degenerate embedding must fail attribution rather than score 0 quietly.
func cosineSimilarity(a, b []float32) (float64, error) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, fmt.Errorf("dimension mismatch: %d vs %d", len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0, fmt.Errorf("zero-norm embedding")
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if math.IsNaN(sim) || math.IsInf(sim, 0) {
		return 0, fmt.Errorf("non-finite similarity")
	}
	return sim, nil
}
