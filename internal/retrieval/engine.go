package retrieval

import (
	"context"
	"log/slog"

	"github.com/mysticfalconvt/rob-rag-sub000/internal/filter"
	"github.com/mysticfalconvt/rob-rag-sub000/internal/logging"
)

// Engine is the production Searcher. It embeds the query, compiles the
// source filter into store predicates, and executes the similarity search.
// Every failure along the way degrades to an empty result set so the chat
// response is never blocked by a retrieval-subsystem failure.
type Engine struct {
	// embedder converts query text to a dense vector.
	embedder Embedder

	// store performs the filtered vector similarity search.
	store VectorStore

	// sources resolves which sources are configured and how sub-entity
	// filter entries bind. May be nil, in which case SourceModeAll searches
	// unfiltered.
	sources SourceResolver

	// defaultLimit is the number of results to return when the caller
	// passes 0.
	defaultLimit int
}

// NewEngine constructs an Engine. defaultLimit sets the fallback result
// count when Search is called with limit=0; it defaults to 5 when
// non-positive.
func NewEngine(embedder Embedder, store VectorStore, sources SourceResolver, defaultLimit int) *Engine {
	if defaultLimit <= 0 {
		defaultLimit = 5
	}
	return &Engine{
		embedder:     embedder,
		store:        store,
		sources:      sources,
		defaultLimit: defaultLimit,
	}
}

// Search returns up to limit chunks ranked by similarity to query, scoped by
// sf. A SourceModeNone filter short-circuits to no results without touching
// the embedder. Embedding or store failures are logged and return an empty
// slice; the caller proceeds with no context rather than failing.
func (e *Engine) Search(ctx context.Context, query string, limit int, sf SourceFilter) []SearchResult {
	log := logging.FromContext(ctx)

	if sf.Mode == SourceModeNone {
		return nil
	}
	if limit <= 0 {
		limit = e.defaultLimit
	}

	embeddings, err := e.embedder.Embed(ctx, []string{query})
	if err != nil || len(embeddings) == 0 {
		log.Warn("retrieval: query embedding failed, returning no context",
			slog.Any("error", err),
		)
		return nil
	}

	f := e.compileSourceFilter(ctx, sf)

	results, err := e.store.Search(ctx, embeddings[0], f, limit)
	if err != nil {
		log.Warn("retrieval: vector search failed, returning no context",
			slog.Any("error", err),
		)
		return nil
	}

	log.Debug("retrieval: search complete",
		slog.Int("results", len(results)),
		slog.Int("limit", limit),
	)
	return results
}

// compileSourceFilter turns a SourceFilter into a store predicate.
//
// SourceModeAll scopes to the currently configured sources by OR, or no
// restriction when no resolver is wired. SourceModeList compiles each entry:
// a plain name becomes a source equality, and a "<source>:<subkey>" entry
// becomes a nested AND group binding the source and its sub-entity field.
// Entries combine with OR; a single plain entry collapses to a must
// equality.
func (e *Engine) compileSourceFilter(ctx context.Context, sf SourceFilter) *filter.Filter {
	names := sf.Sources
	if sf.Mode == SourceModeAll {
		if e.sources == nil {
			return nil
		}
		names = e.sources.ConfiguredSources(ctx)
		if len(names) == 0 {
			// Nothing reports as configured; search unrestricted rather
			// than inventing an empty allow-list that matches nothing.
			return nil
		}
	}

	b := filter.NewBuilder()
	if len(names) == 1 {
		if cond, ok := e.sourceCondition(names[0]); ok {
			b.Must(cond)
		}
		return b.Build()
	}
	for _, entry := range names {
		if cond, ok := e.sourceCondition(entry); ok {
			b.Should(cond)
		}
	}
	return b.Build()
}

// sourceCondition compiles one source-filter entry into a condition.
func (e *Engine) sourceCondition(entry string) (filter.Condition, bool) {
	name, subkey := splitSourceEntry(entry)
	if name == "" {
		return filter.Condition{}, false
	}
	if subkey == "" {
		return filter.Eq(KeySource, name), true
	}

	field := KeyUserID
	if e.sources != nil {
		if f := e.sources.SubEntityField(name); f != "" {
			field = f
		}
	}
	return filter.Group(&filter.Filter{
		Must: []filter.Condition{
			filter.Eq(KeySource, name),
			filter.Eq(field, subkey),
		},
	}), true
}
