package commands

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mysticfalconvt/rob-rag-sub000/internal/logging"
)

// NewSourcesCmd constructs the `robrag sources` command, which lists the
// registered source plugins with their configuration state and capabilities.
func NewSourcesCmd() *cobra.Command {
	var showFields bool

	cmd := &cobra.Command{
		Use:   "sources",
		Short: "List knowledge sources and their status",
		Long: `List every registered source with its configuration state, capabilities,
and the tools it contributes to the assistant. Use --fields to also print
each source's queryable metadata schema.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			log := logging.FromContext(ctx)

			deps, err := buildStack(ctx, log, false)
			if err != nil {
				return fmt.Errorf("sources: %w", err)
			}
			defer deps.Close()

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SOURCE\tSTATUS\tCAPABILITIES\tTOOLS")
			for _, p := range deps.registry.All() {
				status := "configured"
				if err := p.IsConfigured(ctx); err != nil {
					status = "not configured: " + err.Error()
				}

				caps := p.Capabilities()
				var capNames []string
				if caps.SemanticSearch {
					capNames = append(capNames, "search")
				}
				if caps.MetadataQuery {
					capNames = append(capNames, "metadata")
				}
				if caps.Scanning {
					capNames = append(capNames, "scan")
				}
				if caps.RequiresAuth {
					capNames = append(capNames, "auth")
				}

				var toolNames []string
				for _, t := range p.Tools() {
					toolNames = append(toolNames, t.Name)
				}

				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					p.Name(), status, strings.Join(capNames, ","), strings.Join(toolNames, ","))
			}
			if err := w.Flush(); err != nil {
				return fmt.Errorf("sources: %w", err)
			}

			if showFields {
				for _, p := range deps.registry.All() {
					schema := p.MetadataSchema()
					if len(schema) == 0 {
						continue
					}
					fmt.Fprintf(os.Stdout, "\n%s fields:\n", p.Name())
					for _, f := range schema {
						fmt.Fprintf(os.Stdout, "  %s (%s): %s\n", f.Name, f.Type, f.Description)
					}
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showFields, "fields", false, "Also print each source's metadata schema")

	return cmd
}
