package cli

import (
	"github.com/spf13/cobra"

	"github.com/antoineMoPa/smoll-generated-corpus/internal/engine/batch"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show pipeline progress without generating anything",
		Long: `Report batch counts and list pending batches. This is the same
read-only diagnostic path as "expand -n 0": no credential is required and
no remote calls are made.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := configFromContext(cmd.Context())
			if err := cfg.Validate(); err != nil {
				return err
			}

			store := batch.NewStore(cfg.Corpus.ProgressFile)
			driver, err := buildDriver(cfg, store, nil, newConsoleReporter(cmd.OutOrStdout()))
			if err != nil {
				return err
			}

			_, err = driver.Run(cmd.Context(), 0)
			return err
		},
	}
}
