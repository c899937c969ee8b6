package cli

import (
	"github.com/spf13/cobra"

	"github.com/antoineMoPa/smoll-generated-corpus/internal/config"
	"github.com/antoineMoPa/smoll-generated-corpus/internal/corpus"
	"github.com/antoineMoPa/smoll-generated-corpus/internal/engine"
	"github.com/antoineMoPa/smoll-generated-corpus/internal/engine/batch"
	"github.com/antoineMoPa/smoll-generated-corpus/internal/falqueue"
)

// ExpandParams holds the expand command's flag values. Flags override the
// config file only when explicitly set.
type ExpandParams struct {
	MaxBatches   int
	BatchSize    int
	Model        string
	CorpusFile   string
	OutputFile   string
	ProgressFile string
}

func newExpandCmd() *cobra.Command {
	var params ExpandParams

	cmd := &cobra.Command{
		Use:   "expand",
		Short: "Generate Q&A pairs for pending corpus batches",
		Long: `Process pending corpus batches through the remote generation service.

Batches already recorded in the progress file are skipped, so repeated
invocations work through the corpus incrementally. A failing batch is
reported and skipped; it stays pending for the next run. With -n 0 no
remote calls are made and the pending batches are listed instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := configFromContext(cmd.Context())
			applyExpandFlags(cmd, cfg, params)
			return runExpand(cmd, cfg)
		},
	}

	cmd.Flags().IntVarP(&params.MaxBatches, "max-batches", "n", 0,
		"max batches to generate this run (0 = dry run)")
	cmd.Flags().IntVar(&params.BatchSize, "batch-size", 0, "sentences per batch")
	cmd.Flags().StringVar(&params.Model, "model", "", "remote model route")
	cmd.Flags().StringVar(&params.CorpusFile, "corpus", "", "corpus input file")
	cmd.Flags().StringVar(&params.OutputFile, "output", "", "expanded corpus output file")
	cmd.Flags().StringVar(&params.ProgressFile, "progress", "", "progress state file")

	return cmd
}

// applyExpandFlags overlays explicitly-set flags onto the loaded config.
func applyExpandFlags(cmd *cobra.Command, cfg *config.Config, params ExpandParams) {
	flags := cmd.Flags()
	if flags.Changed("max-batches") {
		cfg.Generation.MaxBatches = params.MaxBatches
	}
	if flags.Changed("batch-size") {
		cfg.Generation.BatchSize = params.BatchSize
	}
	if flags.Changed("model") {
		cfg.Generation.Model = params.Model
	}
	if flags.Changed("corpus") {
		cfg.Corpus.File = params.CorpusFile
	}
	if flags.Changed("output") {
		cfg.Corpus.OutputFile = params.OutputFile
	}
	if flags.Changed("progress") {
		cfg.Corpus.ProgressFile = params.ProgressFile
	}
}

func runExpand(cmd *cobra.Command, cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	maxBatches := cfg.Generation.MaxBatches

	var generator engine.Generator
	if maxBatches != 0 {
		// Resolve the credential before touching any state so a missing
		// key aborts cleanly.
		credential, err := config.LoadCredential()
		if err != nil {
			return err
		}
		generator = falqueue.New(falqueue.Options{
			QueueURL:     cfg.Generation.QueueURL,
			Credential:   credential,
			Model:        cfg.Generation.Model,
			Temperature:  cfg.Generation.Temperature,
			MaxTokens:    cfg.Generation.MaxTokens,
			PollInterval: cfg.Generation.PollInterval(),
		})
	}

	store := batch.NewStore(cfg.Corpus.ProgressFile)
	unlock, err := store.AcquireLock()
	if err != nil {
		return err
	}
	defer unlock()

	driver, err := buildDriver(cfg, store, generator, newConsoleReporter(cmd.OutOrStdout()))
	if err != nil {
		return err
	}

	_, err = driver.Run(cmd.Context(), maxBatches)
	return err
}

// buildDriver loads the corpus and progress state and assembles a driver.
// Shared by expand and status.
func buildDriver(
	cfg *config.Config,
	store *batch.Store,
	generator engine.Generator,
	reporter engine.Reporter,
) (*engine.Driver, error) {
	sentences, err := corpus.LoadSentences(cfg.Corpus.File)
	if err != nil {
		return nil, err
	}

	partitioner, err := batch.NewPartitioner(cfg.Generation.BatchSize)
	if err != nil {
		return nil, err
	}

	if err := store.Load(); err != nil {
		return nil, err
	}

	return engine.NewDriver(engine.Options{
		Sentences:   sentences,
		Partitioner: partitioner,
		Progress:    store,
		Generator:   generator,
		Output:      corpus.NewWriter(cfg.Corpus.OutputFile),
		Reporter:    reporter,
	})
}
