package cli

import (
	"fmt"
	"io"

	"github.com/antoineMoPa/smoll-generated-corpus/internal/engine"
)

// consoleReporter renders driver events as the compact progress lines the
// tool prints to stdout.
type consoleReporter struct {
	out io.Writer
}

func newConsoleReporter(out io.Writer) *consoleReporter {
	return &consoleReporter{out: out}
}

func (r *consoleReporter) RunStarted(stats engine.RunStats) {
	fmt.Fprintf(r.out, "Sentences: %d  Batches: %d  Done: %d  Remaining: %d\n",
		stats.Sentences, stats.Batches, stats.Done, stats.Remaining)
}

func (r *consoleReporter) DryRun(previews []engine.BatchPreview) {
	fmt.Fprintf(r.out, "\nDry run: first %d pending batches:\n", len(previews))
	for _, p := range previews {
		fmt.Fprintf(r.out, "  batch %4d: %q...\n", p.Index, p.Sentence)
	}
}

func (r *consoleReporter) BatchStarted(ordinal, total, index, size int) {
	fmt.Fprintf(r.out, "[%d/%d] batch %d (%d sentences) ... ", ordinal, total, index, size)
}

func (r *consoleReporter) BatchCompleted(_, lineCount int) {
	fmt.Fprintf(r.out, "OK (%d lines)\n", lineCount)
}

func (r *consoleReporter) BatchFailed(_ int, err error) {
	fmt.Fprintf(r.out, "FAILED: %v\n", err)
}

func (r *consoleReporter) RunFinished(summary engine.Summary) {
	if summary.Remaining > 0 {
		fmt.Fprintf(r.out, "\n%d batches still remaining. Run again to continue.\n", summary.Remaining)
		return
	}
	fmt.Fprintln(r.out, "\nAll batches generated!")
}
