package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mysticfalconvt/rob-rag-sub000/internal/logging"
)

// NewAskCmd constructs the `robrag ask` command, which sends a single natural
// language question to the assistant and streams the answer to stdout.
func NewAskCmd() *cobra.Command {
	var sources []string

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask the knowledge assistant a question",
		Long: `Ask the assistant a natural language question. The answer is grounded in
your indexed sources and streamed to stdout, followed by the sources that
actually informed it.

Use --source to restrict retrieval to named sources; repeat the flag for
more than one. A sub-entity can be scoped with "source:key" syntax, e.g.
bookfeed:alice. Pass --source none to answer without retrieval.

Examples:
  robrag ask "what did I note about the kitchen renovation?"
  robrag ask --source calendar "what is on my schedule next week?"
  robrag ask --source bookfeed:alice "which books did alice finish this year?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.FromContext(ctx)

			deps, err := buildStack(ctx, log, true)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer deps.Close()

			question := strings.Join(args, " ")
			filter := sourceFilterFromFlag(sources)

			answer, err := deps.assistant.Ask(ctx, question, filter, os.Stdout)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			fmt.Fprintln(os.Stdout)

			if len(answer.Sources) > 0 {
				fmt.Fprintln(os.Stdout, "\nSources:")
				for _, src := range answer.Sources {
					marker := " "
					if src.IsReferenced {
						marker = "*"
					}
					fmt.Fprintf(os.Stdout, "  %s %s (%s, relevance %.2f)\n",
						marker, src.FileName(), src.Source(), src.RelevanceScore)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&sources, "source", "s", nil, "Restrict retrieval to this source (repeatable; \"none\" disables retrieval)")

	return cmd
}
