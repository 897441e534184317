// Package source defines the plugin contract for knowledge sources and the
// registry that routes queries, tools, and scans to them. A plugin owns one
// class of content (local files, a document vault, a reading feed) and
// declares its capabilities and metadata schema so the rest of the system can
// discover what each source can answer without hard-coding source names.
package source

import (
	"context"

	"github.com/mysticfalconvt/rob-rag-sub000/internal/retrieval"
)

// Capabilities declares what a plugin can do. The registry uses these to
// route requests; a plugin is never asked to perform an operation it did not
// declare.
type Capabilities struct {
	// MetadataQuery reports that the plugin answers structured queries over
	// its metadata fields.
	MetadataQuery bool

	// SemanticSearch reports that the plugin's content is indexed in the
	// vector store and participates in similarity search.
	SemanticSearch bool

	// Scanning reports that the plugin can (re)index its content on demand.
	Scanning bool

	// RequiresAuth reports that the plugin talks to an external service and
	// needs credentials before it is usable.
	RequiresAuth bool

	// SubEntityField names the metadata field that scopes a
	// "<source>:<subkey>" filter entry, empty when the source has no
	// sub-entities.
	SubEntityField string
}

// FieldType enumerates metadata field value types.
type FieldType string

const (
	FieldString FieldType = "string"
	FieldNumber FieldType = "number"
	FieldBool   FieldType = "bool"
	FieldDate   FieldType = "date"
	FieldList   FieldType = "list"
)

// MetadataField describes one queryable metadata field a plugin exposes.
type MetadataField struct {
	// Name is the field key as stored on indexed chunks.
	Name string

	// DisplayName is a human-readable label for UIs.
	DisplayName string

	// Type is the field's value type.
	Type FieldType

	// Description explains the field's meaning to the model and to users.
	Description string

	// Queryable marks fields usable as structured query parameters.
	Queryable bool

	// Filterable marks fields usable in store-side filters.
	Filterable bool
}

// ToolParameter describes one parameter of a plugin tool.
type ToolParameter struct {
	// Name is the parameter key.
	Name string

	// Type is the JSON-schema type ("string", "integer", "boolean").
	Type string

	// Description explains the parameter to the model.
	Description string

	// Required marks parameters the model must supply.
	Required bool
}

// ToolDefinition describes a tool a plugin contributes to the assistant.
type ToolDefinition struct {
	// Name is the tool identifier presented to the model.
	Name string

	// Description tells the model when to call the tool.
	Description string

	// Parameters are the tool's arguments.
	Parameters []ToolParameter

	// HasCustomExecution marks tools the plugin executes itself via the
	// ToolExecutor interface instead of the generic metadata-query path.
	HasCustomExecution bool
}

// QueryParams carries a structured metadata query.
type QueryParams struct {
	// Fields maps metadata field names to required values. Date fields
	// accept "from"/"to" style keys per the plugin's schema.
	Fields map[string]any

	// Limit caps the number of results; 0 means the plugin default.
	Limit int
}

// ScanOptions controls a scan run.
type ScanOptions struct {
	// Full forces re-indexing of unchanged content.
	Full bool
}

// ScanResult summarizes one scan run.
type ScanResult struct {
	// Indexed counts newly indexed documents.
	Indexed int

	// Updated counts re-indexed documents.
	Updated int

	// Deleted counts documents removed from the index.
	Deleted int

	// Errors lists per-document failures; a scan with errors still counts
	// the documents it processed.
	Errors []string
}

// Plugin is a knowledge source. Implementations must be safe for concurrent
// use; the registry calls them from request handlers and scan workers alike.
type Plugin interface {
	// Name returns the stable source identifier used in metadata, filters,
	// and configuration.
	Name() string

	// Capabilities declares what the plugin supports.
	Capabilities() Capabilities

	// MetadataSchema lists the plugin's queryable metadata fields.
	MetadataSchema() []MetadataField

	// QueryByMetadata answers a structured query over the plugin's fields.
	// Only called when Capabilities().MetadataQuery is true.
	QueryByMetadata(ctx context.Context, params QueryParams) ([]retrieval.SearchResult, error)

	// Tools lists the tools the plugin contributes to the assistant. May be
	// empty.
	Tools() []ToolDefinition

	// Scan (re)indexes the plugin's content. Only called when
	// Capabilities().Scanning is true.
	Scan(ctx context.Context, opts ScanOptions) (ScanResult, error)

	// IsConfigured returns nil when the plugin has everything it needs to
	// serve requests, or an error describing what is missing.
	IsConfigured(ctx context.Context) error
}

// ToolExecutor is implemented by plugins whose tools declare
// HasCustomExecution. originalQuery is the user's question verbatim, for
// tools that want more context than their structured parameters carry.
type ToolExecutor interface {
	ExecuteTool(ctx context.Context, name string, params map[string]any, originalQuery string) (string, error)
}
