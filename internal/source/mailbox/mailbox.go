// Package mailbox implements the email knowledge source. Messages are
// synced into the shared vector store by an external job; this plugin
// answers metadata queries over sender, recipient, subject, and date.
package mailbox

import (
	"context"
	"fmt"
	"strings"

	"github.com/mysticfalconvt/rob-rag-sub000/internal/filter"
	"github.com/mysticfalconvt/rob-rag-sub000/internal/retrieval"
	"github.com/mysticfalconvt/rob-rag-sub000/internal/source"
)

// SourceName is the stable identifier of this plugin.
const SourceName = "mailbox"

// Metadata keys specific to email messages.
const (
	// KeyFrom is the sender address.
	KeyFrom = "from"
	// KeyTo is the primary recipient address.
	KeyTo = "to"
	// KeySubject is the message subject line.
	KeySubject = "subject"
	// KeySentAt is the send time (canonical RFC 3339).
	KeySentAt = "sentAt"
)

const defaultQueryLimit = 20

// Config holds the plugin configuration.
type Config struct {
	// Account is the mailbox address the external sync indexes. The plugin
	// is configured when it is set.
	Account string
}

// Plugin is the email source.
type Plugin struct {
	store retrieval.VectorStore
	cfg   Config
}

// New constructs the plugin over the shared vector store.
func New(store retrieval.VectorStore, cfg Config) (*Plugin, error) {
	if store == nil {
		return nil, fmt.Errorf("mailbox: store must not be nil")
	}
	return &Plugin{store: store, cfg: cfg}, nil
}

func (p *Plugin) Name() string { return SourceName }

func (p *Plugin) Capabilities() source.Capabilities {
	return source.Capabilities{
		MetadataQuery:  true,
		SemanticSearch: true,
		RequiresAuth:   true,
	}
}

func (p *Plugin) MetadataSchema() []source.MetadataField {
	return []source.MetadataField{
		{Name: KeyFrom, DisplayName: "From", Type: source.FieldString, Description: "Sender address", Queryable: true, Filterable: true},
		{Name: KeyTo, DisplayName: "To", Type: source.FieldString, Description: "Primary recipient address", Queryable: true, Filterable: true},
		{Name: KeySubject, DisplayName: "Subject", Type: source.FieldString, Description: "Subject line", Filterable: true},
		{Name: KeySentAt, DisplayName: "Sent", Type: source.FieldDate, Description: "Time the message was sent", Queryable: true, Filterable: true},
	}
}

func (p *Plugin) Tools() []source.ToolDefinition {
	return []source.ToolDefinition{
		{
			Name:        "query_emails",
			Description: "Look up emails by sender, recipient, or date range. Use this for questions about specific correspondence.",
			Parameters: []source.ToolParameter{
				{Name: "from", Type: "string", Description: "Exact sender address"},
				{Name: "to", Type: "string", Description: "Exact recipient address"},
				{Name: "sent_from", Type: "string", Description: "Earliest send time, RFC 3339 or YYYY-MM-DD"},
				{Name: "sent_to", Type: "string", Description: "Latest send time, RFC 3339 or YYYY-MM-DD"},
			},
		},
	}
}

func (p *Plugin) IsConfigured(context.Context) error {
	if p.cfg.Account == "" {
		return fmt.Errorf("mailbox: no account configured")
	}
	return nil
}

// Scan is unsupported; an external sync job owns ingestion.
func (p *Plugin) Scan(context.Context, source.ScanOptions) (source.ScanResult, error) {
	return source.ScanResult{}, fmt.Errorf("mailbox: indexing is handled by the external mail sync")
}

// QueryByMetadata answers a structured query over messages.
func (p *Plugin) QueryByMetadata(ctx context.Context, params source.QueryParams) ([]retrieval.SearchResult, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = defaultQueryLimit
	}

	b := filter.NewBuilder().Equals(retrieval.KeySource, SourceName)
	if v := stringField(params.Fields, KeyFrom); v != "" {
		b.Equals(KeyFrom, v)
	}
	if v := stringField(params.Fields, KeyTo); v != "" {
		b.Equals(KeyTo, v)
	}
	from, to := stringField(params.Fields, "sent_from"), stringField(params.Fields, "sent_to")
	if from != "" || to != "" {
		fromT, err := filter.ParseDate(from)
		if err != nil {
			return nil, fmt.Errorf("mailbox: sent_from: %w", err)
		}
		toT, err := filter.ParseDate(to)
		if err != nil {
			return nil, fmt.Errorf("mailbox: sent_to: %w", err)
		}
		b.DateRange(KeySentAt, fromT, toT)
	}

	results, err := p.store.Query(ctx, b.Build(), limit)
	if err != nil {
		return nil, fmt.Errorf("mailbox: store query: %w", err)
	}
	return results, nil
}

func stringField(fields map[string]any, key string) string {
	if v, ok := fields[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}
