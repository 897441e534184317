package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mysticfalconvt/rob-rag-sub000/internal/logging"
)

// NewSearchCmd constructs the `robrag search` command, which runs raw vector
// retrieval without the LLM. Useful for checking what the assistant would see.
func NewSearchCmd() *cobra.Command {
	var (
		sources []string
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search indexed content without asking the model",
		Long: `Run semantic search over the indexed sources and print the ranked chunks.
No LLM call is made, so this works without model credentials and is the
quickest way to inspect what retrieval returns for a query.

Examples:
  robrag search "mortgage refinance notes"
  robrag search --limit 10 --source localfiles "backup strategy"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.FromContext(ctx)

			deps, err := buildStack(ctx, log, false)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}
			defer deps.Close()

			query := strings.Join(args, " ")
			results := deps.engine.Search(ctx, query, limit, sourceFilterFromFlag(sources))
			if len(results) == 0 {
				fmt.Fprintln(os.Stdout, "no results")
				return nil
			}

			for i, r := range results {
				fmt.Fprintf(os.Stdout, "%2d. %s (%s, score %.3f)\n", i+1, r.FileName(), r.Source(), r.Score)
				fmt.Fprintf(os.Stdout, "    %s\n", firstLine(r.Content, 120))
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&sources, "source", "s", nil, "Restrict search to this source (repeatable)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum results to return (0 uses the configured default)")

	return cmd
}

// firstLine returns the first line of s, truncated to max runes.
func firstLine(s string, max int) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	runes := []rune(s)
	if len(runes) > max {
		return string(runes[:max]) + "..."
	}
	return s
}
