// Package calendar implements the calendar knowledge source. Events are
// synced into the shared vector store by an external job; this plugin
// answers date-ranged metadata queries and contributes a custom
// get_upcoming_events tool that computes its own time window instead of
// relying on the model to supply correct dates.
package calendar

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mysticfalconvt/rob-rag-sub000/internal/filter"
	"github.com/mysticfalconvt/rob-rag-sub000/internal/retrieval"
	"github.com/mysticfalconvt/rob-rag-sub000/internal/source"
)

// SourceName is the stable identifier of this plugin.
const SourceName = "calendar"

// Metadata keys specific to calendar events.
const (
	// KeyEventStart is the event start time (canonical RFC 3339).
	KeyEventStart = "eventStart"
	// KeyEventEnd is the event end time (canonical RFC 3339).
	KeyEventEnd = "eventEnd"
	// KeyLocation is the event location, free-form.
	KeyLocation = "location"
	// KeyCalendarName names the calendar the event belongs to.
	KeyCalendarName = "calendarName"
)

const (
	defaultQueryLimit   = 20
	defaultUpcomingDays = 7
	maxUpcomingDays     = 90
)

// Config holds the plugin configuration.
type Config struct {
	// CalendarURL is the address of the calendar service the external sync
	// reads from. The plugin is configured when it is set.
	CalendarURL string
}

// Plugin is the calendar source. It implements source.Plugin and
// source.ToolExecutor.
type Plugin struct {
	store retrieval.VectorStore
	cfg   Config

	// now is the clock, swappable in tests.
	now func() time.Time
}

// New constructs the plugin over the shared vector store.
func New(store retrieval.VectorStore, cfg Config) (*Plugin, error) {
	if store == nil {
		return nil, fmt.Errorf("calendar: store must not be nil")
	}
	return &Plugin{store: store, cfg: cfg, now: time.Now}, nil
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
		{Name: KeyEventStart, DisplayName: "Starts", Type: source.FieldDate, Description: "Event start time", Queryable: true, Filterable: true},
		{Name: KeyEventEnd, DisplayName: "Ends", Type: source.FieldDate, Description: "Event end time", Queryable: true, Filterable: true},
		{Name: KeyLocation, DisplayName: "Location", Type: source.FieldString, Description: "Where the event takes place", Filterable: true},
		{Name: KeyCalendarName, DisplayName: "Calendar", Type: source.FieldString, Description: "Calendar the event belongs to", Queryable: true, Filterable: true},
	}
}

func (p *Plugin) Tools() []source.ToolDefinition {
	return []source.ToolDefinition{
		{
			Name:               "get_upcoming_events",
			Description:        "List calendar events starting within the next N days. Use this for questions like 'what is coming up' or 'am I free next week'; the time window is computed from the current clock.",
			HasCustomExecution: true,
			Parameters: []source.ToolParameter{
				{Name: "days", Type: "integer", Description: "Look-ahead window in days, default 7, maximum 90"},
				{Name: "calendar", Type: "string", Description: "Restrict to one calendar by name"},
			},
		},
		{
			Name:        "query_events",
			Description: "Search calendar events by explicit start-time range or calendar name. Use this for questions about past or specific dates.",
			Parameters: []source.ToolParameter{
				{Name: "start_from", Type: "string", Description: "Earliest event start, RFC 3339 or YYYY-MM-DD"},
				{Name: "start_to", Type: "string", Description: "Latest event start, RFC 3339 or YYYY-MM-DD"},
				{Name: "calendar", Type: "string", Description: "Restrict to one calendar by name"},
			},
		},
	}
}

func (p *Plugin) IsConfigured(context.Context) error {
	if p.cfg.CalendarURL == "" {
		return fmt.Errorf("calendar: calendar URL not configured")
	}
	return nil
}

// Scan is unsupported; an external sync job owns ingestion.
func (p *Plugin) Scan(context.Context, source.ScanOptions) (source.ScanResult, error) {
	return source.ScanResult{}, fmt.Errorf("calendar: indexing is handled by the external calendar sync")
}

// QueryByMetadata answers an explicit-range event query.
func (p *Plugin) QueryByMetadata(ctx context.Context, params source.QueryParams) ([]retrieval.SearchResult, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = defaultQueryLimit
	}

	b := filter.NewBuilder().Equals(retrieval.KeySource, SourceName)
	if c := stringField(params.Fields, "calendar"); c != "" {
		b.Equals(KeyCalendarName, c)
	}
	from, to := stringField(params.Fields, "start_from"), stringField(params.Fields, "start_to")
	if from != "" || to != "" {
		fromT, err := filter.ParseDate(from)
		if err != nil {
			return nil, fmt.Errorf("calendar: start_from: %w", err)
		}
		toT, err := filter.ParseDate(to)
		if err != nil {
			return nil, fmt.Errorf("calendar: start_to: %w", err)
		}
		b.DateRange(KeyEventStart, fromT, toT)
	}

	results, err := p.store.Query(ctx, b.Build(), limit)
	if err != nil {
		return nil, fmt.Errorf("calendar: store query: %w", err)
	}
	sortByStart(results)
	return results, nil
}

// ExecuteTool handles get_upcoming_events: it derives the window from the
// current clock, queries the store, and renders a chronological listing.
func (p *Plugin) ExecuteTool(ctx context.Context, name string, params map[string]any, _ string) (string, error) {
	if name != "get_upcoming_events" {
		return "", fmt.Errorf("calendar: unknown custom tool %q", name)
	}

	days := defaultUpcomingDays
	if v, ok := numberField(params, "days"); ok && v > 0 {
		days = int(v)
	}
	if days > maxUpcomingDays {
		days = maxUpcomingDays
	}

	now := p.now()
	b := filter.NewBuilder().
		Equals(retrieval.KeySource, SourceName).
		DateRange(KeyEventStart, now, now.AddDate(0, 0, days))
	if c := stringField(params, "calendar"); c != "" {
		b.Equals(KeyCalendarName, c)
	}

	results, err := p.store.Query(ctx, b.Build(), 50)
	if err != nil {
		return "", fmt.Errorf("calendar: store query: %w", err)
	}
	if len(results) == 0 {
		return fmt.Sprintf("No events in the next %d days.", days), nil
	}
	sortByStart(results)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Events in the next %d days:\n", days)
	for _, r := range results {
		fmt.Fprintf(&sb, "- %s: %s", r.Metadata.String(KeyEventStart), r.FileName())
		if loc := r.Metadata.String(KeyLocation); loc != "" {
			fmt.Fprintf(&sb, " (%s)", loc)
		}
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

// sortByStart orders events chronologically. RFC 3339 strings sort
// lexicographically in time order.
func sortByStart(results []retrieval.SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Metadata.String(KeyEventStart) < results[j].Metadata.String(KeyEventStart)
	})
}

func stringField(fields map[string]any, key string) string {
	if v, ok := fields[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func numberField(fields map[string]any, key string) (float64, bool) {
	switch v := fields[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}
