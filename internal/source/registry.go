package source

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mysticfalconvt/rob-rag-sub000/internal/logging"
)

// Registry holds the active plugins and routes capability-gated operations
// to them. Plugins register at startup; lookups afterwards are read-only, so
// a single RWMutex suffices.
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]Plugin
	order   []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{plugins: make(map[string]Plugin)}
}

// Register adds a plugin. Registering a name twice replaces the earlier
// plugin and logs a warning; the last registration wins.
func (r *Registry) Register(ctx context.Context, p Plugin) {
	name := p.Name()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.plugins[name]; exists {
		logging.FromContext(ctx).Warn("source: plugin re-registered, replacing earlier registration",
			slog.String("source", name),
		)
	} else {
		r.order = append(r.order, name)
	}
	r.plugins[name] = p
}

// Get returns the plugin registered under name.
func (r *Registry) Get(name string) (Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plugins[name]
	return p, ok
}

// All returns the plugins in registration order.
func (r *Registry) All() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Plugin, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.plugins[name])
	}
	return out
}

// MetadataQueryable returns the plugins that answer structured metadata
// queries, in registration order.
func (r *Registry) MetadataQueryable() []Plugin {
	return r.withCapability(func(c Capabilities) bool { return c.MetadataQuery })
}

// SemanticSearch returns the plugins whose content participates in vector
// search, in registration order.
func (r *Registry) SemanticSearch() []Plugin {
	return r.withCapability(func(c Capabilities) bool { return c.SemanticSearch })
}

// Scannable returns the plugins that support on-demand indexing, in
// registration order.
func (r *Registry) Scannable() []Plugin {
	return r.withCapability(func(c Capabilities) bool { return c.Scanning })
}

func (r *Registry) withCapability(pred func(Capabilities) bool) []Plugin {
	out := make([]Plugin, 0)
	for _, p := range r.All() {
		if pred(p.Capabilities()) {
			out = append(out, p)
		}
	}
	return out
}

// Configured returns the plugins whose IsConfigured check passes. A check
// that panics or errors excludes only that plugin; one misconfigured source
// never hides the others.
func (r *Registry) Configured(ctx context.Context) []Plugin {
	log := logging.FromContext(ctx)
	out := make([]Plugin, 0)
	for _, p := range r.All() {
		if err := checkConfigured(ctx, p); err != nil {
			log.Debug("source: plugin not configured",
				slog.String("source", p.Name()),
				slog.Any("error", err),
			)
			continue
		}
		out = append(out, p)
	}
	return out
}

// checkConfigured isolates a plugin's own configuration probe.
func checkConfigured(ctx context.Context, p Plugin) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("source: configuration check panicked: %v", rec)
		}
	}()
	return p.IsConfigured(ctx)
}

// ConfiguredSources returns the names of the configured plugins. Satisfies
// the retrieval engine's source resolver.
func (r *Registry) ConfiguredSources(ctx context.Context) []string {
	plugins := r.Configured(ctx)
	names := make([]string, 0, len(plugins))
	for _, p := range plugins {
		names = append(names, p.Name())
	}
	return names
}

// SubEntityField returns the metadata field that scopes sub-entity filter
// entries for the named source, or "" when the source is unknown or has no
// sub-entities.
func (r *Registry) SubEntityField(source string) string {
	p, ok := r.Get(source)
	if !ok {
		return ""
	}
	return p.Capabilities().SubEntityField
}

// AllMetadataFields maps each source name to its metadata schema. Sources
// with an empty schema are omitted.
func (r *Registry) AllMetadataFields() map[string][]MetadataField {
	out := make(map[string][]MetadataField)
	for _, p := range r.All() {
		if fields := p.MetadataSchema(); len(fields) > 0 {
			out[p.Name()] = fields
		}
	}
	return out
}

// AllTools maps each source name to the tools it contributes. Sources with
// no tools are omitted.
func (r *Registry) AllTools() map[string][]ToolDefinition {
	out := make(map[string][]ToolDefinition)
	for _, p := range r.All() {
		if tools := p.Tools(); len(tools) > 0 {
			out[p.Name()] = tools
		}
	}
	return out
}

// ExecuteTool runs the named tool of the named source. Tools declaring
// custom execution route to the plugin's ToolExecutor; all others translate
// their parameters into a metadata query. Unknown sources and tools are hard
// errors so the model gets a corrective message instead of silence.
func (r *Registry) ExecuteTool(ctx context.Context, sourceName, toolName string, params map[string]any, originalQuery string) (string, error) {
	p, ok := r.Get(sourceName)
	if !ok {
		return "", fmt.Errorf("source: unknown source %q", sourceName)
	}

	var def *ToolDefinition
	for _, t := range p.Tools() {
		if t.Name == toolName {
			def = &t
			break
		}
	}
	if def == nil {
		return "", fmt.Errorf("source: %s has no tool %q", sourceName, toolName)
	}

	if def.HasCustomExecution {
		exec, ok := p.(ToolExecutor)
		if !ok {
			return "", fmt.Errorf("source: %s declares custom execution for %q but implements no executor", sourceName, toolName)
		}
		out, err := exec.ExecuteTool(ctx, toolName, params, originalQuery)
		if err != nil {
			return "", fmt.Errorf("source: executing %s.%s: %w", sourceName, toolName, err)
		}
		return out, nil
	}

	results, err := p.QueryByMetadata(ctx, QueryParams{Fields: params})
	if err != nil {
		return "", fmt.Errorf("source: metadata query for %s.%s: %w", sourceName, toolName, err)
	}
	return formatQueryResults(results), nil
}
