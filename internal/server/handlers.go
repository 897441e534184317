package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"strconv"

	"github.com/mysticfalconvt/rob-rag-sub000/internal/logging"
	"github.com/mysticfalconvt/rob-rag-sub000/internal/source"
	"github.com/mysticfalconvt/rob-rag-sub000/internal/store"
)

// defaultSearchLimit is the POST /api/search result cap when the request
// does not specify one.
const defaultSearchLimit = 5

// maxSearchLimit bounds how many results one search request may ask for.
const maxSearchLimit = 50

// defaultScanHistory is the GET /api/scans page size.
const defaultScanHistory = 20

// handleSearch handles POST /api/search: raw ranked retrieval without the
// LLM, used for debugging and lightweight lookups.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Searcher == nil {
		http.Error(w, "search is not configured", http.StatusServiceUnavailable)
		return
	}

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Query == "" {
		http.Error(w, "query is required", http.StatusBadRequest)
		return
	}
	limit := req.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	results := s.cfg.Searcher.Search(r.Context(), req.Query, limit, sourceFilterFrom(req.Sources))

	resp := make([]searchResult, 0, len(results))
	for _, res := range results {
		resp = append(resp, searchResult{
			FileName: res.FileName(),
			FilePath: res.FilePath(),
			Source:   res.Source(),
			Score:    res.Score,
			Content:  res.Content,
		})
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// handleSources handles GET /api/sources: every registered plugin with its
// capabilities and current configuration state.
func (s *Server) handleSources(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Registry == nil {
		http.Error(w, "sources are not configured", http.StatusServiceUnavailable)
		return
	}

	configured := make(map[string]bool)
	for _, name := range s.cfg.Registry.ConfiguredSources(r.Context()) {
		configured[name] = true
	}

	var resp []sourceInfo
	for _, p := range s.cfg.Registry.All() {
		caps := p.Capabilities()
		resp = append(resp, sourceInfo{
			Name:           p.Name(),
			Configured:     configured[p.Name()],
			MetadataQuery:  caps.MetadataQuery,
			SemanticSearch: caps.SemanticSearch,
			Scanning:       caps.Scanning,
			SubEntityField: caps.SubEntityField,
		})
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// handleSourceFields handles GET /api/sources/fields: the declared metadata
// schema of every plugin, keyed by source name.
func (s *Server) handleSourceFields(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Registry == nil {
		http.Error(w, "sources are not configured", http.StatusServiceUnavailable)
		return
	}

	resp := make(map[string][]metadataField)
	for name, fields := range s.cfg.Registry.AllMetadataFields() {
		out := make([]metadataField, 0, len(fields))
		for _, f := range fields {
			out = append(out, metadataField{
				Name:        f.Name,
				DisplayName: f.DisplayName,
				Type:        string(f.Type),
				Description: f.Description,
				Queryable:   f.Queryable,
				Filterable:  f.Filterable,
			})
		}
		resp[name] = out
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// handleSourceTools handles GET /api/sources/tools: the declared tools of
// every plugin, keyed by source name.
func (s *Server) handleSourceTools(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Registry == nil {
		http.Error(w, "sources are not configured", http.StatusServiceUnavailable)
		return
	}

	resp := make(map[string][]toolInfo)
	for name, defs := range s.cfg.Registry.AllTools() {
		out := make([]toolInfo, 0, len(defs))
		for _, def := range defs {
			params := make([]toolParameter, 0, len(def.Parameters))
			for _, p := range def.Parameters {
				params = append(params, toolParameter{
					Name:        p.Name,
					Type:        p.Type,
					Description: p.Description,
					Required:    p.Required,
				})
			}
			out = append(out, toolInfo{
				Name:               def.Name,
				Description:        def.Description,
				Parameters:         params,
				HasCustomExecution: def.HasCustomExecution,
			})
		}
		resp[name] = out
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// handleScan handles POST /api/scan: run scans for one named plugin or for
// every scannable one. Outcomes are recorded in the scan history store when
// one is configured; a plugin's scan failure is reported per source, not as
// an HTTP error.
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Registry == nil {
		http.Error(w, "sources are not configured", http.StatusServiceUnavailable)
		return
	}

	var req scanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	var plugins []source.Plugin
	if req.Source != "" {
		p, ok := s.cfg.Registry.Get(req.Source)
		if !ok {
			http.Error(w, "unknown source: "+req.Source, http.StatusNotFound)
			return
		}
		if !p.Capabilities().Scanning {
			http.Error(w, "source does not support scanning: "+req.Source, http.StatusBadRequest)
			return
		}
		plugins = []source.Plugin{p}
	} else {
		plugins = s.cfg.Registry.Scannable()
	}

	log := logging.FromContext(r.Context())

	resp := make([]scanOutcome, 0, len(plugins))
	for _, p := range plugins {
		result, err := p.Scan(r.Context(), source.ScanOptions{Full: req.Full})
		outcome := scanOutcome{Source: p.Name()}
		if err != nil {
			outcome.Error = err.Error()
			log.Warn("scan failed",
				slog.String("source", p.Name()),
				slog.Any("error", err),
			)
		} else {
			outcome.Indexed = result.Indexed
			outcome.Updated = result.Updated
			outcome.Deleted = result.Deleted
			outcome.Errors = result.Errors
			if s.cfg.Scans != nil {
				rec := store.ScanRecord{
					Source:  p.Name(),
					Indexed: result.Indexed,
					Updated: result.Updated,
					Deleted: result.Deleted,
					Errors:  result.Errors,
				}
				if err := s.cfg.Scans.Record(r.Context(), rec); err != nil {
					log.Warn("scan history write failed",
						slog.String("source", p.Name()),
						slog.Any("error", err),
					)
				}
			}
		}
		resp = append(resp, outcome)
	}

	sort.Slice(resp, func(i, j int) bool { return resp[i].Source < resp[j].Source })
	writeJSON(w, r, http.StatusOK, resp)
}

// handleScans handles GET /api/scans: the recent scan history, newest-first.
// The optional "source" and "limit" query parameters narrow the page.
func (s *Server) handleScans(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Scans == nil {
		http.Error(w, "scan history is not configured", http.StatusServiceUnavailable)
		return
	}

	limit := defaultScanHistory
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	recs, err := s.cfg.Scans.Recent(r.Context(), r.URL.Query().Get("source"), limit)
	if err != nil {
		logging.FromContext(r.Context()).Error("scan history read failed", slog.Any("error", err))
		http.Error(w, "scan history unavailable", http.StatusInternalServerError)
		return
	}

	resp := make([]scanHistoryEntry, 0, len(recs))
	for _, rec := range recs {
		resp = append(resp, scanHistoryEntry{
			Source:    rec.Source,
			Indexed:   rec.Indexed,
			Updated:   rec.Updated,
			Deleted:   rec.Deleted,
			Errors:    rec.Errors,
			CreatedAt: rec.CreatedAt,
		})
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// writeJSON encodes v with the given status. Encode failures are logged,
// not surfaced; the status line has already been sent.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(r.Context()).Error("response encode error", slog.Any("error", err))
	}
}
