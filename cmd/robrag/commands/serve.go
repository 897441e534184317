package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudwego/eino/callbacks"
	"github.com/spf13/cobra"

	"github.com/mysticfalconvt/rob-rag-sub000/internal/logging"
	"github.com/mysticfalconvt/rob-rag-sub000/internal/server"
	"github.com/mysticfalconvt/rob-rag-sub000/internal/tracing"
)

// NewServeCmd constructs the `robrag serve` command, which starts the HTTP
// API server.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the robrag HTTP server",
		Long: `Start the robrag HTTP server on localhost.

The server exposes a REST/SSE API: streaming question answering with
source attribution, raw search, source introspection, and scan
management. Set ROBRAG_API_KEY to require bearer authentication.

Examples:
  robrag serve
  robrag serve --port 9090
  MODEL_PROVIDER=openai robrag serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.FromContext(ctx)
			ctx = logging.WithLogger(ctx, log)

			log.Info("serve starting", slog.String("provider", os.Getenv("MODEL_PROVIDER")))

			// Langfuse tracing is opt-in and a no-op when keys are absent.
			handler, flush, ok := tracing.Setup()
			if ok {
				callbacks.AppendGlobalHandlers(handler)
				defer flush()
				log.Info("langfuse tracing enabled")
			} else {
				log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
			}

			deps, err := buildStack(ctx, log, true)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer deps.Close()

			pingers := []server.Pinger{
				server.NewLLMPinger(deps.chatModel, envOrDefault("MODEL_PROVIDER", "ollama")),
				server.NewQdrantPinger(deps.vectors.Client()),
			}

			srv, err := server.New(deps.assistant, &server.Config{
				Host:     host,
				Port:     port,
				Logger:   log,
				Pingers:  pingers,
				APIKey:   os.Getenv("ROBRAG_API_KEY"),
				Searcher: deps.engine,
				Registry: deps.registry,
				Scans:    deps.scans,
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on")

	return cmd
}
