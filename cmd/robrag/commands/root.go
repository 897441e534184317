// Package commands defines all Cobra CLI commands for the robrag binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/mysticfalconvt/rob-rag-sub000/internal/audit"
	"github.com/mysticfalconvt/rob-rag-sub000/internal/config"
	"github.com/mysticfalconvt/rob-rag-sub000/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "robrag",
		Short: "Personal knowledge assistant over your own sources",
		Long: `robrag is a local-first assistant that answers questions from your
personal knowledge sources: local files, a document vault, a book feed,
a calendar, and a mailbox. Every answer reports which sources actually
informed it.

Model provider is selected via the MODEL_PROVIDER environment variable
or a YAML config file (~/.robrag/config.yaml). Environment variables
always override YAML values.
See 'robrag --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// Logging settings may have come from the config file just
			// loaded, so rebuild the logger before handing it out.
			log = logging.New()
			cmd.SetContext(logging.WithLogger(cmd.Context(), log))

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.robrag/config.yaml)")

	root.AddCommand(
		NewAskCmd(),
		NewSearchCmd(),
		NewScanCmd(),
		NewSourcesCmd(),
		NewServeCmd(),
		NewVersionCmd(),
	)

	return root
}
