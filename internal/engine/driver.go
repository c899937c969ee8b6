// Package engine contains the batch driver: the sequential control loop
// that turns pending corpus batches into generated Q&A output while
// keeping the progress file consistent with what has actually been
// written.
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/antoineMoPa/smoll-generated-corpus/internal/corpus"
	"github.com/antoineMoPa/smoll-generated-corpus/internal/engine/batch"
	"github.com/antoineMoPa/smoll-generated-corpus/internal/logging"
	"github.com/antoineMoPa/smoll-generated-corpus/internal/prompt"
)

// previewLimit caps how many pending batches a dry run lists.
const previewLimit = 10

// previewWidth caps the sentence excerpt shown per previewed batch.
const previewWidth = 60

// Generator produces text for one batch prompt. Implemented by
// falqueue.Client; tests substitute fakes.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// ProgressStore is the durable completion set consulted and updated by the
// driver. Implemented by batch.Store.
type ProgressStore interface {
	IsDone(index int) bool
	MarkDone(index int)
	Save() error
	Len() int
}

// OutputAppender persists one formatted batch block. Implemented by
// corpus.Writer.
type OutputAppender interface {
	Append(block string) error
}

// RunStats describes the corpus partitioning at the start of a run.
type RunStats struct {
	Sentences int
	Batches   int
	Done      int
	Remaining int
}

// BatchPreview is one pending batch shown in dry-run output.
type BatchPreview struct {
	Index    int
	Sentence string
}

// Summary reports what a run accomplished.
type Summary struct {
	Processed int
	Failed    int
	Remaining int
}

// Reporter receives user-facing run events. The CLI renders them; tests
// record them.
type Reporter interface {
	RunStarted(stats RunStats)
	DryRun(previews []BatchPreview)
	BatchStarted(ordinal, total, index, size int)
	BatchCompleted(index, lineCount int)
	BatchFailed(index int, err error)
	RunFinished(summary Summary)
}

// nopReporter discards all events.
type nopReporter struct{}

func (nopReporter) RunStarted(RunStats)             {}
func (nopReporter) DryRun([]BatchPreview)           {}
func (nopReporter) BatchStarted(int, int, int, int) {}
func (nopReporter) BatchCompleted(int, int)         {}
func (nopReporter) BatchFailed(int, error)          {}
func (nopReporter) RunFinished(Summary)             {}

var _ Reporter = nopReporter{}

// Options wires a Driver.
type Options struct {
	Sentences   []string
	Partitioner *batch.Partitioner
	Progress    ProgressStore
	Generator   Generator
	Output      OutputAppender
	Reporter    Reporter
}

// Driver owns one run of the expansion pipeline. Batches are processed
// strictly one at a time: each remote round trip completes before the next
// begins, which keeps progress-file writes race-free without locking.
type Driver struct {
	sentences   []string
	partitioner *batch.Partitioner
	progress    ProgressStore
	generator   Generator
	output      OutputAppender
	reporter    Reporter
}

// NewDriver validates opts and builds a Driver.
func NewDriver(opts Options) (*Driver, error) {
	if opts.Partitioner == nil {
		return nil, errors.New("driver requires a partitioner")
	}
	if opts.Progress == nil {
		return nil, errors.New("driver requires a progress store")
	}
	if opts.Output == nil {
		return nil, errors.New("driver requires an output appender")
	}
	reporter := opts.Reporter
	if reporter == nil {
		reporter = nopReporter{}
	}
	return &Driver{
		sentences:   opts.Sentences,
		partitioner: opts.Partitioner,
		progress:    opts.Progress,
		generator:   opts.Generator,
		output:      opts.Output,
		reporter:    reporter,
	}, nil
}

// Pending returns the batch indices not yet marked complete, ascending.
func (d *Driver) Pending() []int {
	count := d.partitioner.Count(len(d.sentences))
	pending := make([]int, 0, count)
	for i := 0; i < count; i++ {
		if !d.progress.IsDone(i) {
			pending = append(pending, i)
		}
	}
	return pending
}

// Run processes up to maxBatches pending batches in ascending index order.
// maxBatches == 0 is a dry run: counts and previews only, no remote calls.
//
// A single batch's failure (transport, job, or result error) is reported
// and the loop moves on; only storage failures abort the run, because a
// progress file out of step with the output file would corrupt resumption.
// Progress is marked and saved only after the batch's output has been
// appended, so a crash duplicates at most one batch rather than losing one.
func (d *Driver) Run(ctx context.Context, maxBatches int) (Summary, error) {
	logger := logging.FromContext(ctx)

	bounds := d.partitioner.Bounds(len(d.sentences))
	pending := d.Pending()

	d.reporter.RunStarted(RunStats{
		Sentences: len(d.sentences),
		Batches:   len(bounds),
		Done:      d.progress.Len(),
		Remaining: len(pending),
	})

	if maxBatches == 0 {
		d.reporter.DryRun(d.previews(bounds, pending))
		return Summary{Remaining: len(pending)}, nil
	}

	if d.generator == nil {
		return Summary{}, errors.New("driver requires a generator for non-dry runs")
	}

	toDo := pending
	if maxBatches < len(toDo) {
		toDo = toDo[:maxBatches]
	}

	var summary Summary
	for ordinal, index := range toDo {
		if err := ctx.Err(); err != nil {
			summary.Remaining = len(pending) - summary.Processed
			return summary, err
		}

		b := bounds[index]
		sentences := d.sentences[b[0]:b[1]]
		d.reporter.BatchStarted(ordinal+1, len(toDo), index, len(sentences))

		raw, err := d.generator.Generate(ctx, prompt.System, prompt.Build(sentences))
		if err != nil {
			logger.Warn().Int("batch", index).Err(err).Msg("batch generation failed")
			d.reporter.BatchFailed(index, err)
			summary.Failed++
			continue
		}

		formatted := corpus.FormatOutput(raw)
		if err := d.output.Append(formatted); err != nil {
			summary.Remaining = len(pending) - summary.Processed
			return summary, fmt.Errorf("appending batch %d output: %w", index, err)
		}

		d.progress.MarkDone(index)
		if err := d.progress.Save(); err != nil {
			// Output is on disk but completion was not recorded: the batch
			// will be re-generated next run, duplicating output rather than
			// losing it.
			summary.Remaining = len(pending) - summary.Processed
			return summary, fmt.Errorf("saving progress after batch %d: %w", index, err)
		}

		lineCount := corpus.CountLines(formatted)
		logger.Info().Int("batch", index).Int("lines", lineCount).Msg("batch completed")
		d.reporter.BatchCompleted(index, lineCount)
		summary.Processed++
	}

	summary.Remaining = len(pending) - summary.Processed
	d.reporter.RunFinished(summary)
	return summary, nil
}

// previews returns the first pending batches with a truncated excerpt of
// each batch's opening sentence.
func (d *Driver) previews(bounds [][2]int, pending []int) []BatchPreview {
	limit := len(pending)
	if limit > previewLimit {
		limit = previewLimit
	}
	previews := make([]BatchPreview, 0, limit)
	for _, index := range pending[:limit] {
		excerpt := d.sentences[bounds[index][0]]
		if len(excerpt) > previewWidth {
			excerpt = excerpt[:previewWidth]
		}
		previews = append(previews, BatchPreview{Index: index, Sentence: excerpt})
	}
	return previews
}
