// Package bookfeed implements the reading-feed knowledge source: per-user
// reading records (books, ratings, review notes) synced into the shared
// vector store by an external job. Because one feed instance holds records
// for several household users, the plugin declares userId as its sub-entity
// field, so "bookfeed:<user>" filter entries scope searches to one person's
// shelf.
package bookfeed

import (
	"context"
	"fmt"
	"strings"

	"github.com/mysticfalconvt/rob-rag-sub000/internal/filter"
	"github.com/mysticfalconvt/rob-rag-sub000/internal/retrieval"
	"github.com/mysticfalconvt/rob-rag-sub000/internal/source"
)

// SourceName is the stable identifier of this plugin.
const SourceName = "bookfeed"

// Metadata keys specific to reading records.
const (
	// KeyAuthor is the book's author.
	KeyAuthor = "author"
	// KeyRating is the user's star rating, 0 to 5.
	KeyRating = "rating"
	// KeyFinished is the date the user finished the book.
	KeyFinished = "finishedAt"
)

const defaultQueryLimit = 20

// Config holds the plugin configuration.
type Config struct {
	// Users are the feed user identifiers whose shelves are indexed. The
	// plugin is configured when at least one user is listed.
	Users []string
}

// Plugin is the reading-feed source.
type Plugin struct {
	store retrieval.VectorStore
	cfg   Config
}

// New constructs the plugin over the shared vector store.
func New(store retrieval.VectorStore, cfg Config) (*Plugin, error) {
	if store == nil {
		return nil, fmt.Errorf("bookfeed: store must not be nil")
	}
	return &Plugin{store: store, cfg: cfg}, nil
}

func (p *Plugin) Name() string { return SourceName }

func (p *Plugin) Capabilities() source.Capabilities {
	return source.Capabilities{
		MetadataQuery:  true,
		SemanticSearch: true,
		RequiresAuth:   true,
		SubEntityField: retrieval.KeyUserID,
	}
}

func (p *Plugin) MetadataSchema() []source.MetadataField {
	return []source.MetadataField{
		{Name: retrieval.KeyUserID, DisplayName: "User", Type: source.FieldString, Description: "Feed user the record belongs to", Queryable: true, Filterable: true},
		{Name: KeyAuthor, DisplayName: "Author", Type: source.FieldString, Description: "Author of the book", Queryable: true, Filterable: true},
		{Name: KeyRating, DisplayName: "Rating", Type: source.FieldNumber, Description: "Star rating from 0 to 5", Queryable: true, Filterable: true},
		{Name: KeyFinished, DisplayName: "Finished", Type: source.FieldDate, Description: "Date the book was finished", Queryable: true, Filterable: true},
	}
}

func (p *Plugin) Tools() []source.ToolDefinition {
	return []source.ToolDefinition{
		{
			Name:        "query_reading_records",
			Description: "Look up reading records by user, author, minimum rating, or finish date. Use this for questions about what someone read, rated, or reviewed.",
			Parameters: []source.ToolParameter{
				{Name: "userId", Type: "string", Description: "Feed user to restrict to"},
				{Name: "author", Type: "string", Description: "Exact author name"},
				{Name: "min_rating", Type: "integer", Description: "Only records rated at least this many stars"},
				{Name: "finished_from", Type: "string", Description: "Earliest finish date, RFC 3339 or YYYY-MM-DD"},
				{Name: "finished_to", Type: "string", Description: "Latest finish date, RFC 3339 or YYYY-MM-DD"},
			},
		},
	}
}

func (p *Plugin) IsConfigured(context.Context) error {
	if len(p.cfg.Users) == 0 {
		return fmt.Errorf("bookfeed: no users configured")
	}
	return nil
}

// Scan is unsupported; an external sync job owns ingestion.
func (p *Plugin) Scan(context.Context, source.ScanOptions) (source.ScanResult, error) {
	return source.ScanResult{}, fmt.Errorf("bookfeed: indexing is handled by the external feed sync")
}

// QueryByMetadata answers a structured query over reading records. All
// parameters compile into store-side conditions.
func (p *Plugin) QueryByMetadata(ctx context.Context, params source.QueryParams) ([]retrieval.SearchResult, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = defaultQueryLimit
	}

	b := filter.NewBuilder().Equals(retrieval.KeySource, SourceName)

	if u := stringField(params.Fields, retrieval.KeyUserID); u != "" {
		b.Equals(retrieval.KeyUserID, u)
	}
	if a := stringField(params.Fields, KeyAuthor); a != "" {
		b.Equals(KeyAuthor, a)
	}
	if r, ok := numberField(params.Fields, "min_rating"); ok {
		b.GreaterThanOrEqual(KeyRating, r)
	}
	from, to := stringField(params.Fields, "finished_from"), stringField(params.Fields, "finished_to")
	if from != "" || to != "" {
		fromT, err := filter.ParseDate(from)
		if err != nil {
			return nil, fmt.Errorf("bookfeed: finished_from: %w", err)
		}
		toT, err := filter.ParseDate(to)
		if err != nil {
			return nil, fmt.Errorf("bookfeed: finished_to: %w", err)
		}
		b.DateRange(KeyFinished, fromT, toT)
	}

	results, err := p.store.Query(ctx, b.Build(), limit)
	if err != nil {
		return nil, fmt.Errorf("bookfeed: store query: %w", err)
	}
	return results, nil
}

func stringField(fields map[string]any, key string) string {
	if v, ok := fields[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

// numberField reads a numeric parameter; JSON decoding delivers float64.
func numberField(fields map[string]any, key string) (float64, bool) {
	switch v := fields[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}
