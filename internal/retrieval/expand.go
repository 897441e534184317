package retrieval

import (
	"context"
	"log/slog"

	"github.com/mysticfalconvt/rob-rag-sub000/internal/logging"
)

// Default context-expansion thresholds. Empirically tuned; override via
// ExpanderConfig rather than editing these.
const (
	// DefaultSmallFileChunks is the total-chunk count at or below which a
	// document is always expanded to its full body.
	DefaultSmallFileChunks = 5

	// DefaultCoverageThreshold is the fraction of a document's chunks that
	// must appear in the result set for the document to be expanded.
	DefaultCoverageThreshold = 0.30
)

// ExpanderConfig holds the tunable thresholds for context expansion.
type ExpanderConfig struct {
	// SmallFileChunks expands any document with this many total chunks or
	// fewer. Defaults to DefaultSmallFileChunks if zero.
	SmallFileChunks int

	// CoverageThreshold expands a document when the fraction of its chunks
	// present in the result set exceeds this value. Defaults to
	// DefaultCoverageThreshold if zero.
	CoverageThreshold float64
}

// ContextItem is one entry of the assembled retrieval context: either a
// single chunk's text or a whole document body when the expansion heuristic
// fired.
type ContextItem struct {
	// FilePath is the owning document path.
	FilePath string

	// FileName is the owning document display name.
	FileName string

	// Source is the owning plugin identifier.
	Source string

	// Content is the chunk text, or the full document body when Expanded.
	Content string

	// Score is the best similarity score among the chunks that produced
	// this item.
	Score float64

	// Expanded reports whether Content is the full document body.
	Expanded bool
}

// Expander applies the context-expansion heuristic: group ranked results by
// document, and replace chunk snippets with the full document body when the
// document is small or well-covered by the result set.
type Expander struct {
	// reader loads full document bodies. May be nil, which disables
	// expansion entirely.
	reader ContentReader

	// cfg holds the resolved thresholds.
	cfg ExpanderConfig
}

// NewExpander constructs an Expander reading full documents through reader.
func NewExpander(reader ContentReader, cfg ExpanderConfig) *Expander {
	if cfg.SmallFileChunks <= 0 {
		cfg.SmallFileChunks = DefaultSmallFileChunks
	}
	if cfg.CoverageThreshold <= 0 {
		cfg.CoverageThreshold = DefaultCoverageThreshold
	}
	return &Expander{reader: reader, cfg: cfg}
}

// Expand walks results in rank order and emits one ContextItem per decision:
// each distinct document is expanded at most once, even when several of its
// chunks rank; chunks of unexpanded documents pass through individually.
// A failed full-document read falls back to the chunk text rather than
// dropping the source.
func (x *Expander) Expand(ctx context.Context, results []SearchResult) []ContextItem {
	log := logging.FromContext(ctx)

	// Count how many chunks of each document made the result set.
	hits := make(map[string]int, len(results))
	for _, r := range results {
		if p := r.FilePath(); p != "" {
			hits[p]++
		}
	}

	items := make([]ContextItem, 0, len(results))
	expanded := make(map[string]bool, len(hits))

	for _, r := range results {
		path := r.FilePath()
		if expanded[path] {
			// Document already emitted as a full body; skip its other chunks.
			continue
		}

		item := ContextItem{
			FilePath: path,
			FileName: r.FileName(),
			Source:   r.Source(),
			Content:  r.Content,
			Score:    r.Score,
		}

		if path != "" && x.shouldExpand(r, hits[path]) {
			if body, err := x.reader.ReadDocument(ctx, path); err == nil && body != "" {
				item.Content = body
				item.Expanded = true
				expanded[path] = true
			} else {
				log.Debug("retrieval: full-document read failed, keeping chunk text",
					slog.String("filePath", path),
					slog.Any("error", err),
				)
			}
		}

		items = append(items, item)
	}

	return items
}

// shouldExpand decides whether a document's match should be widened to its
// full body: the document is small, or the result set covers more than the
// configured fraction of its chunks.
func (x *Expander) shouldExpand(r SearchResult, hitCount int) bool {
	if x.reader == nil {
		return false
	}
	total := r.Metadata.Int(KeyTotalChunks)
	if total <= 0 {
		// Single-chunk documents carry no chunk bookkeeping.
		total = 1
	}
	if total <= x.cfg.SmallFileChunks {
		return true
	}
	return float64(hitCount)/float64(total) > x.cfg.CoverageThreshold
}
