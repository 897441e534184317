// Package retrieval implements the multi-source retrieval engine: it embeds
// natural-language queries, executes filtered similarity searches against the
// vector store, and applies the context-expansion heuristic that decides when
// a chunk-level match should be widened to its whole source document.
// Concrete store implementations (Qdrant) satisfy the interfaces in
// interface.go so nothing above this package depends on a specific backend.
package retrieval

import (
	"strings"
)

// Well-known metadata keys present on every indexed chunk. Source plugins add
// their own keys (tags, correspondent, event times, rating) on top of these.
const (
	// KeyFilePath is the path or virtual path of the owning document.
	KeyFilePath = "filePath"
	// KeyFileName is the display name of the owning document.
	KeyFileName = "fileName"
	// KeySource is the identifier of the plugin that owns the chunk.
	KeySource = "source"
	// KeyChunkIndex is the zero-based position of this chunk in its document.
	KeyChunkIndex = "chunkIndex"
	// KeyTotalChunks is the number of chunks the document was split into.
	KeyTotalChunks = "totalChunks"
	// KeyUserID scopes a chunk to a sub-entity of its source (e.g. the
	// reading-feed user the record belongs to).
	KeyUserID = "userId"
)

// MetadataOnlyScore is the sentinel similarity score attached to results of
// pure metadata queries, where no vector comparison took place.
const MetadataOnlyScore = 1.0

// Metadata is an open mapping of chunk metadata. Values are strings, numbers,
// booleans, dates (canonical RFC 3339 strings), or string slices.
type Metadata map[string]any

// String returns the value for key as a string, or "" when absent or not a
// string.
func (m Metadata) String(key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

// Int returns the value for key as an int. Numeric payloads round-trip
// through JSON as float64, so both forms are accepted. Returns 0 when absent.
func (m Metadata) Int(key string) int {
	switch v := m[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

// Float returns the value for key as a float64, or 0 when absent.
func (m Metadata) Float(key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}

// Strings returns the value for key as a string slice. A scalar string is
// returned as a one-element slice.
func (m Metadata) Strings(key string) []string {
	switch v := m[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	}
	return nil
}

// Clone returns a shallow copy so callers can annotate results without
// mutating the stored chunk.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Chunk is an immutable unit of indexed content. Chunks are created by a
// source's ingestion process and are read-only to the retrieval core.
type Chunk struct {
	// Content is the text body of the chunk.
	Content string

	// Metadata holds the chunk's open key-value metadata. It always includes
	// KeyFilePath, KeyFileName, and KeySource.
	Metadata Metadata
}

// SearchResult is a retrieved chunk with its similarity score. Score is the
// store's native ranking value, or MetadataOnlyScore for pure metadata
// queries.
type SearchResult struct {
	// Content is the text body of the matched chunk.
	Content string

	// Metadata is the matched chunk's metadata.
	Metadata Metadata

	// Score is the similarity score assigned during retrieval.
	Score float64
}

// FilePath returns the result's owning document path.
func (r SearchResult) FilePath() string { return r.Metadata.String(KeyFilePath) }

// FileName returns the result's owning document display name.
func (r SearchResult) FileName() string { return r.Metadata.String(KeyFileName) }

// Source returns the identifier of the plugin that owns the result.
func (r SearchResult) Source() string { return r.Metadata.String(KeySource) }

// SourceFilterMode selects how a search is scoped across sources.
type SourceFilterMode int

const (
	// SourceModeAll searches every configured source.
	SourceModeAll SourceFilterMode = iota
	// SourceModeNone suppresses retrieval entirely.
	SourceModeNone
	// SourceModeList restricts the search to an explicit set of sources.
	SourceModeList
)

// SourceFilter scopes a search to a set of sources. Entries in Sources may be
// plain source names or "<source>:<subkey>" pairs, where the subkey scopes the
// match to a sub-entity of the source (e.g. "bookfeed:42" for one user's
// reading feed). Multiple entries combine with OR semantics.
type SourceFilter struct {
	// Mode selects all, none, or the explicit list in Sources.
	Mode SourceFilterMode

	// Sources is the explicit source list for SourceModeList.
	Sources []string
}

// AllSources returns a filter matching every configured source.
func AllSources() SourceFilter { return SourceFilter{Mode: SourceModeAll} }

// NoSources returns a filter that suppresses retrieval.
func NoSources() SourceFilter { return SourceFilter{Mode: SourceModeNone} }

// Only returns a filter restricted to the named sources. With no names it
// behaves like NoSources, since an explicitly empty allow-list permits
// nothing.
func Only(sources ...string) SourceFilter {
	if len(sources) == 0 {
		return NoSources()
	}
	return SourceFilter{Mode: SourceModeList, Sources: sources}
}

// splitSourceEntry splits a "<source>:<subkey>" list entry. The subkey is
// empty for plain source names.
func splitSourceEntry(entry string) (source, subkey string) {
	if i := strings.IndexByte(entry, ':'); i >= 0 {
		return entry[:i], entry[i+1:]
	}
	return entry, ""
}
