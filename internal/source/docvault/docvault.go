// Package docvault implements the document-archive knowledge source. The
// archive's documents (scanned mail, invoices, contracts) are indexed into
// the shared vector store by an external sync job; this plugin answers
// structured metadata queries over them and contributes a query tool to the
// assistant.
package docvault

import (
	"context"
	"fmt"
	"strings"

	"github.com/mysticfalconvt/rob-rag-sub000/internal/filter"
	"github.com/mysticfalconvt/rob-rag-sub000/internal/retrieval"
	"github.com/mysticfalconvt/rob-rag-sub000/internal/source"
)

// SourceName is the stable identifier of this plugin.
const SourceName = "docvault"

// Metadata keys specific to archived documents.
const (
	// KeyTags is a pipe-delimited tag list, matching how the archive
	// exports multi-valued tags.
	KeyTags = "tags"
	// KeyCorrespondent is the counterparty of the document.
	KeyCorrespondent = "correspondent"
	// KeyCreated is the document creation date (canonical RFC 3339).
	KeyCreated = "created"
)

// TagDelimiter separates entries in the stored tag list.
const TagDelimiter = "|"

const defaultQueryLimit = 20

// Config holds the plugin configuration.
type Config struct {
	// Enabled gates the whole source.
	Enabled bool
}

// Plugin is the document-archive source.
type Plugin struct {
	store retrieval.VectorStore
	cfg   Config
}

// New constructs the plugin over the shared vector store.
func New(store retrieval.VectorStore, cfg Config) (*Plugin, error) {
	if store == nil {
		return nil, fmt.Errorf("docvault: store must not be nil")
	}
	return &Plugin{store: store, cfg: cfg}, nil
}

func (p *Plugin) Name() string { return SourceName }

func (p *Plugin) Capabilities() source.Capabilities {
	return source.Capabilities{
		MetadataQuery:  true,
		SemanticSearch: true,
	}
}

func (p *Plugin) MetadataSchema() []source.MetadataField {
	return []source.MetadataField{
		{Name: KeyTags, DisplayName: "Tags", Type: source.FieldList, Description: "Tags assigned to the document, matched by substring", Queryable: true},
		{Name: KeyCorrespondent, DisplayName: "Correspondent", Type: source.FieldString, Description: "Counterparty of the document", Queryable: true, Filterable: true},
		{Name: KeyCreated, DisplayName: "Created", Type: source.FieldDate, Description: "Document creation date", Queryable: true, Filterable: true},
	}
}

func (p *Plugin) Tools() []source.ToolDefinition {
	return []source.ToolDefinition{
		{
			Name:        "query_documents",
			Description: "Search the document archive by tag, correspondent, or creation date range. Use this for questions about specific invoices, contracts, letters, or other filed documents.",
			Parameters: []source.ToolParameter{
				{Name: "tags", Type: "string", Description: "Comma-separated tags to match (substring, case-insensitive)"},
				{Name: "correspondent", Type: "string", Description: "Exact correspondent name"},
				{Name: "created_from", Type: "string", Description: "Earliest creation date, RFC 3339 or YYYY-MM-DD"},
				{Name: "created_to", Type: "string", Description: "Latest creation date, RFC 3339 or YYYY-MM-DD"},
			},
		},
	}
}

func (p *Plugin) IsConfigured(context.Context) error {
	if !p.cfg.Enabled {
		return fmt.Errorf("docvault: source disabled in configuration")
	}
	return nil
}

// Scan is unsupported; an external sync job owns ingestion.
func (p *Plugin) Scan(context.Context, source.ScanOptions) (source.ScanResult, error) {
	return source.ScanResult{}, fmt.Errorf("docvault: indexing is handled by the external archive sync")
}

// QueryByMetadata answers a structured query. Correspondent and creation
// dates compile into store-side filter conditions; tag terms cannot, since
// the archive stores tags as one delimited string, so they post-filter the
// store results in memory.
func (p *Plugin) QueryByMetadata(ctx context.Context, params source.QueryParams) ([]retrieval.SearchResult, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = defaultQueryLimit
	}

	b := filter.NewBuilder().Equals(retrieval.KeySource, SourceName)

	if c := stringField(params.Fields, KeyCorrespondent); c != "" {
		b.Equals(KeyCorrespondent, c)
	}
	from, to := stringField(params.Fields, "created_from"), stringField(params.Fields, "created_to")
	if from != "" || to != "" {
		fromT, err := filter.ParseDate(from)
		if err != nil {
			return nil, fmt.Errorf("docvault: created_from: %w", err)
		}
		toT, err := filter.ParseDate(to)
		if err != nil {
			return nil, fmt.Errorf("docvault: created_to: %w", err)
		}
		b.DateRange(KeyCreated, fromT, toT)
	}

	terms := tagTerms(params.Fields)
	queryLimit := limit
	if len(terms) > 0 {
		// Tag filtering happens after the store query, so over-fetch to
		// keep the post-filtered result count useful.
		queryLimit = limit * 5
	}

	results, err := p.store.Query(ctx, b.Build(), queryLimit)
	if err != nil {
		return nil, fmt.Errorf("docvault: store query: %w", err)
	}

	results = retrieval.FilterByTags(results, terms, KeyTags, TagDelimiter)
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// stringField reads a string parameter, tolerating absence.
func stringField(fields map[string]any, key string) string {
	if v, ok := fields[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

// tagTerms extracts the comma-separated tag terms from the parameters.
func tagTerms(fields map[string]any) []string {
	raw := stringField(fields, KeyTags)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, t := range parts {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
