package retrieval

import (
	"context"

	"github.com/mysticfalconvt/rob-rag-sub000/internal/filter"
)

// Embedder converts text into dense vector embeddings.
// Implementations must be safe to call from multiple goroutines and must be
// deterministic for identical input.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorStore is the vector/metadata store the engine searches against.
// Implementations must be safe to call from multiple goroutines.
type VectorStore interface {
	// Search performs a similarity search restricted by f (nil means
	// unfiltered) and returns up to limit results ranked by score descending.
	Search(ctx context.Context, queryEmbedding []float32, f *filter.Filter, limit int) ([]SearchResult, error)

	// Query returns up to limit chunks matching f with no vector comparison.
	// Results carry the MetadataOnlyScore sentinel and no particular order.
	Query(ctx context.Context, f *filter.Filter, limit int) ([]SearchResult, error)

	// Upsert stores or updates a batch of chunks with their pre-computed
	// embeddings. The embeddings slice is parallel to chunks.
	Upsert(ctx context.Context, chunks []Chunk, embeddings [][]float32) error

	// Delete removes every chunk matching f.
	Delete(ctx context.Context, f *filter.Filter) error

	// Close releases any resources held by the store.
	Close() error
}

// ContentReader loads the full body of a source document by its file path.
// Used by the context-expansion heuristic; failures are soft, the caller
// falls back to the chunk text.
type ContentReader interface {
	// ReadDocument returns the full text of the document at filePath.
	ReadDocument(ctx context.Context, filePath string) (string, error)
}

// SourceResolver answers the engine's two questions about the plugin
// registry without this package depending on it: which sources are currently
// configured, and which metadata key scopes a source's sub-entities.
// *source.Registry satisfies it.
type SourceResolver interface {
	// ConfiguredSources returns the names of sources whose configuration
	// check passes right now.
	ConfiguredSources(ctx context.Context) []string

	// SubEntityField returns the metadata key a "<source>:<subkey>" filter
	// entry binds to for the named source, or "" when the source has no
	// sub-entity scoping.
	SubEntityField(source string) string
}

// Searcher is the caller-facing retrieval contract: the chat flow and the
// iterative retrieval tool both consume it. *Engine is the production
// implementation; tests inject fakes.
type Searcher interface {
	// Search returns ranked chunks for the query, scoped by sources.
	// Failures degrade to an empty result set, never an error.
	Search(ctx context.Context, query string, limit int, sources SourceFilter) []SearchResult
}
