// Package localfiles implements the local-filesystem knowledge source. It
// walks configured directories, chunks text documents with overlap, embeds
// each chunk, and upserts the results into the vector store. It also serves
// full document bodies for context expansion.
package localfiles

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mysticfalconvt/rob-rag-sub000/internal/filter"
	"github.com/mysticfalconvt/rob-rag-sub000/internal/logging"
	"github.com/mysticfalconvt/rob-rag-sub000/internal/retrieval"
	"github.com/mysticfalconvt/rob-rag-sub000/internal/source"
)

// SourceName is the stable identifier of this plugin.
const SourceName = "localfiles"

// indexableExtensions are the file types the scanner ingests. Everything
// else is skipped silently.
var indexableExtensions = map[string]bool{
	".md":   true,
	".txt":  true,
	".org":  true,
	".rst":  true,
	".html": true,
	".json": true,
	".yaml": true,
	".yml":  true,
	".csv":  true,
}

// Config holds the plugin configuration.
type Config struct {
	// Directories are the root directories to index.
	Directories []string

	// ChunkSize is the maximum number of characters per chunk. Defaults to
	// 1000 if zero.
	ChunkSize int

	// ChunkOverlap is the number of characters shared between consecutive
	// chunks. Defaults to 100 if zero or out of range.
	ChunkOverlap int

	// MaxFileSize skips files larger than this many bytes. Defaults to 2 MiB
	// if zero.
	MaxFileSize int64

	// EmbedConcurrency bounds concurrent embedding batches during a scan.
	// Defaults to 4 if zero.
	EmbedConcurrency int
}

// Plugin is the local-filesystem source. It implements source.Plugin and
// retrieval.ContentReader.
type Plugin struct {
	embedder retrieval.Embedder
	store    retrieval.VectorStore
	cfg      Config

	// mu serializes scans; concurrent scan requests would race on the
	// deletion sweep.
	mu sync.Mutex
}

// New constructs the plugin. embedder and store must not be nil.
func New(embedder retrieval.Embedder, store retrieval.VectorStore, cfg Config) (*Plugin, error) {
	if embedder == nil {
		return nil, fmt.Errorf("localfiles: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("localfiles: store must not be nil")
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 1000
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		cfg.ChunkOverlap = cfg.ChunkSize / 10
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = 2 << 20
	}
	if cfg.EmbedConcurrency <= 0 {
		cfg.EmbedConcurrency = 4
	}
	return &Plugin{embedder: embedder, store: store, cfg: cfg}, nil
}

func (p *Plugin) Name() string { return SourceName }

func (p *Plugin) Capabilities() source.Capabilities {
	return source.Capabilities{
		SemanticSearch: true,
		Scanning:       true,
	}
}

func (p *Plugin) MetadataSchema() []source.MetadataField {
	return []source.MetadataField{
		{Name: retrieval.KeyFileName, DisplayName: "File name", Type: source.FieldString, Description: "Name of the file", Filterable: true},
		{Name: "docType", DisplayName: "Document type", Type: source.FieldString, Description: "Kind of document (note, data, web, text)", Queryable: true, Filterable: true},
		{Name: "modifiedAt", DisplayName: "Modified", Type: source.FieldDate, Description: "Last modification time of the file", Queryable: true, Filterable: true},
	}
}

// QueryByMetadata is unsupported; local files participate in semantic search
// only.
func (p *Plugin) QueryByMetadata(context.Context, source.QueryParams) ([]retrieval.SearchResult, error) {
	return nil, fmt.Errorf("localfiles: metadata queries are not supported")
}

func (p *Plugin) Tools() []source.ToolDefinition { return nil }

// IsConfigured passes when at least one configured directory exists.
func (p *Plugin) IsConfigured(context.Context) error {
	if len(p.cfg.Directories) == 0 {
		return fmt.Errorf("localfiles: no directories configured")
	}
	for _, dir := range p.cfg.Directories {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return nil
		}
	}
	return fmt.Errorf("localfiles: none of the configured directories exist")
}

// ReadDocument returns the full text of an indexed file, for context
// expansion. The path must lie under a configured directory.
func (p *Plugin) ReadDocument(_ context.Context, filePath string) (string, error) {
	if !p.pathAllowed(filePath) {
		return "", fmt.Errorf("localfiles: %s is outside the configured directories", filePath)
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("localfiles: reading %s: %w", filePath, err)
	}
	return string(data), nil
}

// pathAllowed reports whether filePath lies under a configured root.
func (p *Plugin) pathAllowed(filePath string) bool {
	abs, err := filepath.Abs(filePath)
	if err != nil {
		return false
	}
	for _, dir := range p.cfg.Directories {
		root, err := filepath.Abs(dir)
		if err != nil {
			continue
		}
		rel, err := filepath.Rel(root, abs)
		if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// Scan walks the configured directories, indexes every eligible file, and
// removes chunks whose files no longer exist. Per-file failures are recorded
// in the result and do not abort the scan.
func (p *Plugin) Scan(ctx context.Context, opts source.ScanOptions) (source.ScanResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	log := logging.FromContext(ctx)
	start := time.Now()

	known, err := p.indexedPaths(ctx)
	if err != nil {
		return source.ScanResult{}, fmt.Errorf("localfiles: listing indexed files: %w", err)
	}

	files, walkErrs := p.collectFiles()

	var (
		res  source.ScanResult
		resM sync.Mutex
	)
	res.Errors = append(res.Errors, walkErrs...)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.EmbedConcurrency)

	seen := make(map[string]bool, len(files))
	for _, path := range files {
		seen[path] = true
		existed := known[path]

		g.Go(func() error {
			if err := p.indexFile(gctx, path); err != nil {
				resM.Lock()
				res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", path, err))
				resM.Unlock()
				return nil
			}
			resM.Lock()
			if existed {
				res.Updated++
			} else {
				res.Indexed++
			}
			resM.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return res, fmt.Errorf("localfiles: scan aborted: %w", err)
	}

	// Sweep chunks of files that vanished since the last scan.
	for path := range known {
		if seen[path] {
			continue
		}
		f := filter.NewBuilder().
			Equals(retrieval.KeySource, SourceName).
			Equals(retrieval.KeyFilePath, path).
			Build()
		if err := p.store.Delete(ctx, f); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: delete: %v", path, err))
			continue
		}
		res.Deleted++
	}

	log.Info("localfiles: scan complete",
		slog.Int("indexed", res.Indexed),
		slog.Int("updated", res.Updated),
		slog.Int("deleted", res.Deleted),
		slog.Int("errors", len(res.Errors)),
		slog.Bool("full", opts.Full),
		slog.Duration("took", time.Since(start)),
	)
	return res, nil
}

// indexedPaths returns the file paths currently present in the store for
// this source.
func (p *Plugin) indexedPaths(ctx context.Context) (map[string]bool, error) {
	f := filter.NewBuilder().Equals(retrieval.KeySource, SourceName).Build()
	results, err := p.store.Query(ctx, f, 10000)
	if err != nil {
		return nil, err
	}
	paths := make(map[string]bool, len(results))
	for _, r := range results {
		if path := r.FilePath(); path != "" {
			paths[path] = true
		}
	}
	return paths, nil
}

// collectFiles walks all configured directories and returns the eligible
// files plus any walk errors.
func (p *Plugin) collectFiles() ([]string, []string) {
	var files, errs []string
	for _, dir := range p.cfg.Directories {
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", path, err))
				return nil
			}
			if d.IsDir() {
				if strings.HasPrefix(d.Name(), ".") && path != dir {
					return filepath.SkipDir
				}
				return nil
			}
			if !indexableExtensions[strings.ToLower(filepath.Ext(path))] {
				return nil
			}
			if info, err := d.Info(); err != nil || info.Size() > p.cfg.MaxFileSize {
				return nil
			}
			abs, err := filepath.Abs(path)
			if err != nil {
				return nil
			}
			files = append(files, abs)
			return nil
		})
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", dir, err))
		}
	}
	return files, errs
}

// indexFile reads, chunks, embeds, and upserts one file.
func (p *Plugin) indexFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}

	texts := Chunk(string(data), p.cfg.ChunkSize, p.cfg.ChunkOverlap)
	if len(texts) == 0 {
		return nil
	}

	embeddings, err := p.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat: %w", err)
	}

	chunks := make([]retrieval.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = retrieval.Chunk{
			Content: text,
			Metadata: retrieval.Metadata{
				retrieval.KeySource:      SourceName,
				retrieval.KeyFilePath:    path,
				retrieval.KeyFileName:    filepath.Base(path),
				retrieval.KeyChunkIndex:  i,
				retrieval.KeyTotalChunks: len(texts),
				"docType":                InferDocType(path),
				"modifiedAt":             filter.NormalizeDate(info.ModTime()),
			},
		}
	}

	if err := p.store.Upsert(ctx, chunks, embeddings); err != nil {
		return fmt.Errorf("upsert: %w", err)
	}
	return nil
}

// Chunk splits text into overlapping character chunks.
func Chunk(text string, size, overlap int) []string {
	text = strings.TrimSpace(text)
	if len(text) == 0 {
		return nil
	}
	if size <= 0 {
		size = 1000
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	var chunks []string
	for start := 0; start < len(text); start += size - overlap {
		end := start + size
		if end > len(text) {
			end = len(text)
		}
		chunks = append(chunks, text[start:end])
		if end == len(text) {
			break
		}
	}
	return chunks
}

// InferDocType classifies a file by its extension.
func InferDocType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".org", ".rst":
		return "note"
	case ".json", ".yaml", ".yml", ".csv":
		return "data"
	case ".html":
		return "web"
	default:
		return "text"
	}
}
