package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/cloudwego/eino/components/model"

	"github.com/mysticfalconvt/rob-rag-sub000/internal/agent"
	"github.com/mysticfalconvt/rob-rag-sub000/internal/attribution"
	"github.com/mysticfalconvt/rob-rag-sub000/internal/embedder"
	"github.com/mysticfalconvt/rob-rag-sub000/internal/provider"
	"github.com/mysticfalconvt/rob-rag-sub000/internal/retrieval"
	"github.com/mysticfalconvt/rob-rag-sub000/internal/source"
	"github.com/mysticfalconvt/rob-rag-sub000/internal/source/bookfeed"
	"github.com/mysticfalconvt/rob-rag-sub000/internal/source/calendar"
	"github.com/mysticfalconvt/rob-rag-sub000/internal/source/docvault"
	"github.com/mysticfalconvt/rob-rag-sub000/internal/source/localfiles"
	"github.com/mysticfalconvt/rob-rag-sub000/internal/source/mailbox"
	"github.com/mysticfalconvt/rob-rag-sub000/internal/store"
)

// defaultCollection is the Qdrant collection used when QDRANT_COLLECTION is
// not set.
const defaultCollection = "robrag_documents"

// stack holds the fully wired retrieval and assistant components shared by
// the CLI commands. Not every command populates every field; see buildStack.
type stack struct {
	// embedder turns text into vectors for search and attribution.
	embedder retrieval.Embedder
	// vectors is the Qdrant-backed vector store.
	vectors *retrieval.QdrantStore
	// registry holds every source plugin.
	registry *source.Registry
	// localFiles is the filesystem plugin, kept aside because it doubles as
	// the full-document reader for context expansion.
	localFiles *localfiles.Plugin
	// engine is the production searcher.
	engine *retrieval.Engine
	// expander applies the context-expansion heuristic.
	expander *retrieval.Expander
	// attribution scores sources against answers.
	attribution *attribution.Engine
	// chatModel is the LLM backend. Nil unless buildStack was asked for it.
	chatModel model.ToolCallingChatModel
	// assistant is the question-answering agent. Nil without a chat model.
	assistant *agent.Assistant
	// scans is the scan history store. May be nil when disabled.
	scans store.ScanStore

	closers []func()
}

// Close releases held resources in reverse acquisition order.
func (s *stack) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// buildStack wires the retrieval stack from the environment (populated by
// config.Load before any command runs). When withModel is true the LLM
// provider and assistant are constructed as well; retrieval-only commands
// skip that so they work without model credentials.
func buildStack(ctx context.Context, log *slog.Logger, withModel bool) (*stack, error) {
	s := &stack{}

	if err := embedder.Validate(log); err != nil {
		return nil, err
	}
	emb, err := embedder.NewFromEnv()
	if err != nil {
		return nil, fmt.Errorf("commands: embedder: %w", err)
	}
	s.embedder = emb

	vectors, err := retrieval.NewQdrantStore(ctx, &retrieval.QdrantConfig{
		Host:       os.Getenv("QDRANT_HOST"),
		Port:       envInt("QDRANT_PORT", 0),
		Collection: envOrDefault("QDRANT_COLLECTION", defaultCollection),
		VectorSize: uint64(embedder.DefaultDimensions(embeddingBackend())),
		APIKey:     os.Getenv("QDRANT_API_KEY"),
		UseTLS:     os.Getenv("QDRANT_TLS") == "true",
	})
	if err != nil {
		return nil, fmt.Errorf("commands: vector store: %w", err)
	}
	s.vectors = vectors
	s.closers = append(s.closers, func() { _ = vectors.Close() })

	s.registry = buildRegistry(ctx, log, emb, vectors)
	if p, ok := s.registry.Get(localfiles.SourceName); ok {
		s.localFiles, _ = p.(*localfiles.Plugin)
	}

	s.engine = retrieval.NewEngine(emb, vectors, s.registry, envInt("RETRIEVAL_TOP_K", 0))
	var reader retrieval.ContentReader
	if s.localFiles != nil {
		reader = s.localFiles
	}
	s.expander = retrieval.NewExpander(reader, retrieval.ExpanderConfig{
		SmallFileChunks:   envInt("RETRIEVAL_SMALL_FILE_CHUNKS", 0),
		CoverageThreshold: envFloat("RETRIEVAL_COVERAGE_THRESHOLD", 0),
	})
	s.attribution = attribution.NewEngine(emb)

	if scans := openScanStore(log); scans != nil {
		s.scans = scans
		s.closers = append(s.closers, func() { _ = scans.Close() })
	}

	if withModel {
		chatModel, err := provider.NewFromEnv(ctx)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("commands: model provider: %w", err)
		}
		s.chatModel = chatModel

		assistant, err := agent.New(&agent.Config{
			ChatModel:   chatModel,
			Searcher:    s.engine,
			Expander:    s.expander,
			Attribution: s.attribution,
			Registry:    s.registry,
			TopK:        envInt("RETRIEVAL_TOP_K", 0),
			MaxChunks:   envInt("RETRIEVAL_MAX_CHUNKS", 0),
		})
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("commands: assistant: %w", err)
		}
		s.assistant = assistant
	}

	return s, nil
}

// buildRegistry registers every source plugin. Plugins whose construction
// fails are skipped with a warning; IsConfigured gates the rest at use time.
func buildRegistry(ctx context.Context, log *slog.Logger, emb retrieval.Embedder, vectors retrieval.VectorStore) *source.Registry {
	reg := source.NewRegistry()

	lf, err := localfiles.New(emb, vectors, localfiles.Config{
		Directories:  splitList(os.Getenv("LOCALFILES_DIRECTORIES")),
		ChunkSize:    envInt("LOCALFILES_CHUNK_SIZE", 0),
		ChunkOverlap: envInt("LOCALFILES_CHUNK_OVERLAP", 0),
	})
	if err != nil {
		log.Warn("localfiles plugin unavailable", slog.Any("error", err))
	} else {
		reg.Register(ctx, lf)
	}

	if dv, err := docvault.New(vectors, docvault.Config{
		Enabled: os.Getenv("DOCVAULT_ENABLED") == "true",
	}); err != nil {
		log.Warn("docvault plugin unavailable", slog.Any("error", err))
	} else {
		reg.Register(ctx, dv)
	}

	if bf, err := bookfeed.New(vectors, bookfeed.Config{
		Users: splitList(os.Getenv("BOOKFEED_USERS")),
	}); err != nil {
		log.Warn("bookfeed plugin unavailable", slog.Any("error", err))
	} else {
		reg.Register(ctx, bf)
	}

	if cal, err := calendar.New(vectors, calendar.Config{
		CalendarURL: os.Getenv("CALENDAR_URL"),
	}); err != nil {
		log.Warn("calendar plugin unavailable", slog.Any("error", err))
	} else {
		reg.Register(ctx, cal)
	}

	if mb, err := mailbox.New(vectors, mailbox.Config{
		Account: os.Getenv("MAILBOX_ACCOUNT"),
	}); err != nil {
		log.Warn("mailbox plugin unavailable", slog.Any("error", err))
	} else {
		reg.Register(ctx, mb)
	}

	return reg
}

// openScanStore opens the scan history store. ROBRAG_SCANS_DB overrides the
// default path (~/.robrag/scans.db); "disabled" turns history off.
func openScanStore(log *slog.Logger) store.ScanStore {
	dbPath := os.Getenv("ROBRAG_SCANS_DB")
	if dbPath == "disabled" {
		log.Info("scan history disabled via ROBRAG_SCANS_DB=disabled")
		return nil
	}
	if dbPath == "" {
		var err error
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			log.Warn("scan history: could not resolve default DB path, disabling", slog.Any("error", err))
			return nil
		}
	}
	s, err := store.Open(dbPath)
	if err != nil {
		log.Warn("scan history: failed to open store, disabling", slog.Any("error", err))
		return nil
	}
	log.Info("scan history store opened", slog.String("path", dbPath))
	return s
}

// embeddingBackend resolves which provider name the embedding dimensions
// default should follow: EMBEDDING_PROVIDER, then MODEL_PROVIDER, then ollama.
func embeddingBackend() string {
	if v := os.Getenv("EMBEDDING_PROVIDER"); v != "" {
		return v
	}
	if v := os.Getenv("MODEL_PROVIDER"); v != "" {
		return v
	}
	return "ollama"
}

// sourceFilterFromFlag translates the repeatable --source flag into a
// retrieval filter. No flags means every configured source; the sentinel
// "none" suppresses retrieval.
func sourceFilterFromFlag(sources []string) retrieval.SourceFilter {
	if len(sources) == 0 {
		return retrieval.AllSources()
	}
	if len(sources) == 1 && sources[0] == "none" {
		return retrieval.NoSources()
	}
	return retrieval.Only(sources...)
}

// splitList splits a comma-separated env value into trimmed non-empty parts.
func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// envOrDefault returns the env value or fallback when unset or empty.
func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// envInt returns the integer env value, or fallback when unset or invalid.
func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// envFloat returns the float env value, or fallback when unset or invalid.
func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
