package commands

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mysticfalconvt/rob-rag-sub000/internal/logging"
	"github.com/mysticfalconvt/rob-rag-sub000/internal/source"
	"github.com/mysticfalconvt/rob-rag-sub000/internal/store"
)

// NewScanCmd constructs the `robrag scan` command, which (re)indexes source
// content into the vector store.
func NewScanCmd() *cobra.Command {
	var full bool

	cmd := &cobra.Command{
		Use:   "scan [source]",
		Short: "Index source content into the vector store",
		Long: `Scan one source, or every scannable source when no argument is given.
Incremental by default: unchanged documents are skipped. Use --full to
force re-indexing everything.

Examples:
  robrag scan
  robrag scan localfiles
  robrag scan --full docvault`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.FromContext(ctx)

			deps, err := buildStack(ctx, log, false)
			if err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			defer deps.Close()

			var targets []source.Plugin
			if len(args) == 1 {
				p, ok := deps.registry.Get(args[0])
				if !ok {
					return fmt.Errorf("scan: unknown source %q", args[0])
				}
				if !p.Capabilities().Scanning {
					return fmt.Errorf("scan: source %q does not support scanning", args[0])
				}
				targets = []source.Plugin{p}
			} else {
				targets = deps.registry.Scannable()
			}
			if len(targets) == 0 {
				fmt.Fprintln(os.Stdout, "no scannable sources configured")
				return nil
			}

			var failed bool
			for _, p := range targets {
				name := p.Name()
				if err := p.IsConfigured(ctx); err != nil {
					log.Warn("skipping unconfigured source", slog.String("source", name), slog.Any("error", err))
					continue
				}

				start := time.Now()
				result, err := p.Scan(ctx, source.ScanOptions{Full: full})
				if err != nil {
					failed = true
					fmt.Fprintf(os.Stderr, "%s: scan failed: %v\n", name, err)
					continue
				}

				fmt.Fprintf(os.Stdout, "%s: indexed %d, updated %d, deleted %d (%s)\n",
					name, result.Indexed, result.Updated, result.Deleted, time.Since(start).Round(time.Millisecond))
				for _, e := range result.Errors {
					fmt.Fprintf(os.Stderr, "%s: %s\n", name, e)
				}

				if deps.scans != nil {
					rec := store.ScanRecord{
						Source:  name,
						Indexed: result.Indexed,
						Updated: result.Updated,
						Deleted: result.Deleted,
						Errors:  result.Errors,
					}
					if err := deps.scans.Record(ctx, rec); err != nil {
						log.Warn("failed to record scan history", slog.String("source", name), slog.Any("error", err))
					}
				}
			}

			if failed {
				return fmt.Errorf("scan: one or more sources failed")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&full, "full", false, "Force re-indexing of unchanged content")

	return cmd
}
