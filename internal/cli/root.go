// Package cli wires the corpusgen command tree: expand (the batch
// driver), status (read-only pipeline state), and config management.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/antoineMoPa/smoll-generated-corpus/internal/config"
	"github.com/antoineMoPa/smoll-generated-corpus/internal/logging"
)

type contextKey string

// configContextKey carries the loaded *config.Config through the command
// context.
const configContextKey contextKey = "corpusgen-config"

// NewRootCmd creates the root cobra command. Configuration loading and
// logging setup happen in PersistentPreRunE so every subcommand sees a
// ready context.
func NewRootCmd(version string) *cobra.Command {
	var logResult logging.Result

	cmd := &cobra.Command{
		Use:     "corpusgen",
		Short:   "Expand a text corpus with generated Q&A pairs",
		Long: `corpusgen augments a line-based corpus with question-and-answer pairs
generated by a remote model. Work is split into fixed-size batches and
completed batch indices are persisted after every batch, so an interrupted
run resumes where it left off without duplicating or losing output.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Example: `  # Process up to 10 pending batches (default)
  corpusgen expand

  # Process up to 50 batches with a different model
  corpusgen expand -n 50 --model qwen/qwen-2.5-72b-instruct

  # Dry run: list pending batches without calling the remote service
  corpusgen expand -n 0

  # Show pipeline state
  corpusgen status

  # Write a starter config file
  corpusgen config init`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			ctx := setupLogging(cmd, cfg, &logResult)
			ctx = context.WithValue(ctx, configContextKey, cfg)
			cmd.SetContext(ctx)
			return nil
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return logResult.Close()
		},
	}

	cmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	cmd.PersistentFlags().String("config", "", "config file path (default: ./corpusgen.yaml if present)")

	cmd.AddCommand(newExpandCmd(), newStatusCmd(), newConfigCmd())

	return cmd
}

// configFromContext returns the config stored by PersistentPreRunE.
func configFromContext(ctx context.Context) *config.Config {
	cfg, _ := ctx.Value(configContextKey).(*config.Config)
	if cfg == nil {
		cfg = config.Default()
	}
	return cfg
}
