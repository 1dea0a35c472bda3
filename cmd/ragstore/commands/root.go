// Package commands defines all Cobra CLI commands for the ragstore binary.
package commands

import (
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/recoveryos/ragstore-go/internal/audit"
	"github.com/recoveryos/ragstore-go/internal/config"
	"github.com/recoveryos/ragstore-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ragstore",
		Short: "ragstore — local embedding store and diversity-aware retrieval",
		Long: `ragstore maintains a local vector store of document chunks and answers
similarity queries over it.

Documents are split into overlapping chunks, embedded via a configurable
provider (Ollama or OpenAI), and persisted as flat files under the store
directory. Queries rank chunks by cosine similarity and diversify the
result set with maximal marginal relevance.

Configuration is read from env vars, optionally layered over a YAML file
(~/.ragstore/config.yaml). See 'ragstore --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Pick up a local .env if present; real env vars still win.
			_ = godotenv.Load()

			log := logging.NewFromEnv()
			slog.SetDefault(log)

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.ragstore/config.yaml)")

	root.AddCommand(
		NewIngestCmd(),
		NewQueryCmd(),
		NewDeleteCmd(),
		NewUpdateCmd(),
		NewClearCmd(),
		NewHistoryCmd(),
		NewVersionCmd(),
	)

	return root
}
