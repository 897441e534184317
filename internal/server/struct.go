package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mysticfalconvt/rob-rag-sub000/internal/agent"
	"github.com/mysticfalconvt/rob-rag-sub000/internal/retrieval"
	"github.com/mysticfalconvt/rob-rag-sub000/internal/source"
	"github.com/mysticfalconvt/rob-rag-sub000/internal/store"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// AskTimeout bounds one /api/ask turn end to end, tool calls included.
	// Defaults to 5 minutes.
	AskTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// Searcher serves POST /api/search. May be nil, which disables the route.
	Searcher retrieval.Searcher
	// Registry serves the /api/sources introspection routes and /api/scan.
	// May be nil, which disables those routes.
	Registry *source.Registry
	// Scans records scan outcomes and serves GET /api/scans. May be nil.
	Scans store.ScanStore
	// MetricsRegistry receives all server metric registrations. Defaults to
	// prometheus.DefaultRegisterer.
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer backs GET /metrics. Defaults to prometheus.DefaultGatherer.
	MetricsGatherer prometheus.Gatherer
}

// asker is the interface handleAsk calls to answer one question.
// *agent.Assistant satisfies it; tests inject a fake.
type asker interface {
	// Ask streams the response for question to w and returns the full
	// answer with source relevance annotations.
	Ask(ctx context.Context, question string, sf retrieval.SourceFilter, w io.Writer) (*agent.Answer, error)
}

// Server is the HTTP server that exposes the assistant and the retrieval
// engine.
type Server struct {
	// asker answers /api/ask questions; set to the Assistant in production,
	// overridden by a fake in tests.
	asker asker
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds all Prometheus metrics owned by this server.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// askRequest is the JSON body for POST /api/ask.
type askRequest struct {
	// Question is the user's natural language question.
	Question string `json:"question"`
	// Sources scopes retrieval. Absent means all configured sources, an
	// empty array means none (pure LLM answer), otherwise only the listed
	// entries. Entries may carry a sub-key, e.g. "bookfeed:42".
	Sources *[]string `json:"sources,omitempty"`
}

// sourceCitation is one entry of the "sources" SSE event emitted after the
// answer completes.
type sourceCitation struct {
	// FileName is the document display name.
	FileName string `json:"fileName"`
	// FilePath is the document path or external identifier.
	FilePath string `json:"filePath,omitempty"`
	// Source is the owning plugin identifier.
	Source string `json:"source"`
	// Score is the retrieval similarity score.
	Score float64 `json:"score"`
	// RelevanceScore is the answer-to-source similarity.
	RelevanceScore float64 `json:"relevanceScore"`
	// IsReferenced marks sources the answer is judged to have drawn on.
	IsReferenced bool `json:"isReferenced"`
}

// searchRequest is the JSON body for POST /api/search.
type searchRequest struct {
	// Query is the semantic search query.
	Query string `json:"query"`
	// Limit caps the number of results. Defaults to 5.
	Limit int `json:"limit,omitempty"`
	// Sources scopes retrieval, with the same semantics as askRequest.
	Sources *[]string `json:"sources,omitempty"`
}

// searchResult is one entry of the POST /api/search response.
type searchResult struct {
	// FileName is the document display name.
	FileName string `json:"fileName"`
	// FilePath is the document path or external identifier.
	FilePath string `json:"filePath,omitempty"`
	// Source is the owning plugin identifier.
	Source string `json:"source"`
	// Score is the similarity score.
	Score float64 `json:"score"`
	// Content is the chunk text.
	Content string `json:"content"`
}

// sourceInfo is one entry of the GET /api/sources response.
type sourceInfo struct {
	// Name is the plugin identifier.
	Name string `json:"name"`
	// Configured reports whether the plugin passed its configuration check.
	Configured bool `json:"configured"`
	// MetadataQuery reports whether the plugin answers structured queries.
	MetadataQuery bool `json:"metadataQuery"`
	// SemanticSearch reports whether the plugin's documents are indexed.
	SemanticSearch bool `json:"semanticSearch"`
	// Scanning reports whether the plugin can (re)index its documents.
	Scanning bool `json:"scanning"`
	// SubEntityField is the metadata key for "source:subkey" filters, if any.
	SubEntityField string `json:"subEntityField,omitempty"`
}

// metadataField is one declared field in the GET /api/sources/fields response.
type metadataField struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Queryable   bool   `json:"queryable"`
	Filterable  bool   `json:"filterable"`
}

// toolParameter is one declared parameter in the GET /api/sources/tools response.
type toolParameter struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required"`
}

// toolInfo is one declared tool in the GET /api/sources/tools response.
type toolInfo struct {
	Name               string          `json:"name"`
	Description        string          `json:"description"`
	Parameters         []toolParameter `json:"parameters"`
	HasCustomExecution bool            `json:"hasCustomExecution"`
}

// scanRequest is the JSON body for POST /api/scan.
type scanRequest struct {
	// Source names a single plugin to scan. Empty means every scannable one.
	Source string `json:"source,omitempty"`
	// Full forces a re-index of every document, not just changed ones.
	Full bool `json:"full,omitempty"`
}

// scanOutcome is one entry of the POST /api/scan response.
type scanOutcome struct {
	// Source is the plugin that ran.
	Source string `json:"source"`
	// Indexed counts newly indexed documents.
	Indexed int `json:"indexed"`
	// Updated counts re-indexed documents.
	Updated int `json:"updated"`
	// Deleted counts documents removed from the index.
	Deleted int `json:"deleted"`
	// Errors holds per-document failure messages.
	Errors []string `json:"errors,omitempty"`
	// Error is set when the scan itself failed to run.
	Error string `json:"error,omitempty"`
}

// scanHistoryEntry is one entry of the GET /api/scans response.
type scanHistoryEntry struct {
	Source    string    `json:"source"`
	Indexed   int       `json:"indexed"`
	Updated   int       `json:"updated"`
	Deleted   int       `json:"deleted"`
	Errors    []string  `json:"errors,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
