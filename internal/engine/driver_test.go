package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antoineMoPa/smoll-generated-corpus/internal/engine/batch"
	"github.com/antoineMoPa/smoll-generated-corpus/internal/falqueue"
)

// fakeGenerator returns canned output per call and can fail on scripted
// call ordinals.
type fakeGenerator struct {
	calls   int
	prompts []string
	failOn  map[int]error // 1-based call ordinal -> error
}

func (g *fakeGenerator) Generate(_ context.Context, _, userPrompt string) (string, error) {
	g.calls++
	g.prompts = append(g.prompts, userPrompt)
	if err, ok := g.failOn[g.calls]; ok {
		return "", err
	}
	return fmt.Sprintf("call %d Q: q A: a", g.calls), nil
}

// memAppender collects appended blocks in memory.
type memAppender struct {
	blocks []string
	err    error
}

func (a *memAppender) Append(block string) error {
	if a.err != nil {
		return a.err
	}
	a.blocks = append(a.blocks, block)
	return nil
}

// memStore is an in-memory ProgressStore with injectable save failures.
type memStore struct {
	done    map[int]struct{}
	saves   int
	saveErr error
	saved   []int // snapshot lengths at each successful save
}

func newMemStore(done ...int) *memStore {
	s := &memStore{done: make(map[int]struct{})}
	for _, i := range done {
		s.done[i] = struct{}{}
	}
	return s
}

func (s *memStore) IsDone(i int) bool { _, ok := s.done[i]; return ok }
func (s *memStore) MarkDone(i int)    { s.done[i] = struct{}{} }
func (s *memStore) Len() int          { return len(s.done) }

func (s *memStore) Save() error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saves++
	s.saved = append(s.saved, len(s.done))
	return nil
}

// recordingReporter captures every event for assertions.
type recordingReporter struct {
	stats     RunStats
	previews  []BatchPreview
	dryRun    bool
	started   []int
	completed []int
	failed    []int
	summary   Summary
	finished  bool
}

func (r *recordingReporter) RunStarted(stats RunStats)        { r.stats = stats }
func (r *recordingReporter) DryRun(p []BatchPreview)          { r.dryRun = true; r.previews = p }
func (r *recordingReporter) BatchStarted(_, _, index, _ int)  { r.started = append(r.started, index) }
func (r *recordingReporter) BatchCompleted(index, _ int)      { r.completed = append(r.completed, index) }
func (r *recordingReporter) BatchFailed(index int, _ error)   { r.failed = append(r.failed, index) }
func (r *recordingReporter) RunFinished(s Summary)            { r.summary = s; r.finished = true }

func sentences(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("Sentence number %d.", i)
	}
	return out
}

func newTestDriver(t *testing.T, sents []string, size int, store ProgressStore,
	gen Generator, out OutputAppender, rep Reporter,
) *Driver {
	t.Helper()
	p, err := batch.NewPartitioner(size)
	require.NoError(t, err)
	d, err := NewDriver(Options{
		Sentences:   sents,
		Partitioner: p,
		Progress:    store,
		Generator:   gen,
		Output:      out,
		Reporter:    rep,
	})
	require.NoError(t, err)
	return d
}

func TestDriverDryRun(t *testing.T) {
	t.Run("CountsAndPreviewsWithoutGenerating", func(t *testing.T) {
		gen := &fakeGenerator{}
		rep := &recordingReporter{}
		d := newTestDriver(t, sentences(23), 10, newMemStore(), gen, &memAppender{}, rep)

		summary, err := d.Run(context.Background(), 0)
		require.NoError(t, err)

		assert.Equal(t, RunStats{Sentences: 23, Batches: 3, Done: 0, Remaining: 3}, rep.stats)
		assert.True(t, rep.dryRun)
		require.Len(t, rep.previews, 3)
		assert.Equal(t, 0, rep.previews[0].Index)
		assert.Equal(t, "Sentence number 0.", rep.previews[0].Sentence)
		assert.Equal(t, "Sentence number 20.", rep.previews[2].Sentence)

		assert.Equal(t, Summary{Remaining: 3}, summary)
		assert.Zero(t, gen.calls, "dry run must not call the generator")
	})

	t.Run("WorksWithoutGenerator", func(t *testing.T) {
		d := newTestDriver(t, sentences(5), 10, newMemStore(), nil, &memAppender{}, &recordingReporter{})
		_, err := d.Run(context.Background(), 0)
		assert.NoError(t, err)
	})

	t.Run("PreviewListCapped", func(t *testing.T) {
		rep := &recordingReporter{}
		d := newTestDriver(t, sentences(150), 10, newMemStore(), nil, &memAppender{}, rep)

		_, err := d.Run(context.Background(), 0)
		require.NoError(t, err)
		assert.Len(t, rep.previews, 10)
	})
}

func TestDriverResumability(t *testing.T) {
	// Progress {0,2} out of 5 batches: only 1, 3, 4 run, in that order.
	gen := &fakeGenerator{}
	rep := &recordingReporter{}
	store := newMemStore(0, 2)
	d := newTestDriver(t, sentences(50), 10, store, gen, &memAppender{}, rep)

	summary, err := d.Run(context.Background(), 10)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 3, 4}, rep.completed)
	assert.Equal(t, 3, gen.calls)
	assert.Equal(t, Summary{Processed: 3, Remaining: 0}, summary)
	for _, idx := range []int{0, 1, 2, 3, 4} {
		assert.True(t, store.IsDone(idx))
	}
}

func TestDriverMaxBatches(t *testing.T) {
	gen := &fakeGenerator{}
	rep := &recordingReporter{}
	d := newTestDriver(t, sentences(50), 10, newMemStore(), gen, &memAppender{}, rep)

	summary, err := d.Run(context.Background(), 2)
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1}, rep.completed)
	assert.Equal(t, Summary{Processed: 2, Remaining: 3}, summary)
}

func TestDriverPartialFailure(t *testing.T) {
	// First pending batch fails with a terminal job error; the run
	// continues and the failed index stays pending.
	gen := &fakeGenerator{failOn: map[int]error{
		1: &falqueue.JobFailedError{Status: "FAILED", Payload: "{}"},
	}}
	rep := &recordingReporter{}
	store := newMemStore()
	out := &memAppender{}
	d := newTestDriver(t, sentences(30), 10, store, gen, out, rep)

	summary, err := d.Run(context.Background(), 10)
	require.NoError(t, err)

	assert.Equal(t, []int{0}, rep.failed)
	assert.Equal(t, []int{1, 2}, rep.completed)
	assert.False(t, store.IsDone(0))
	assert.True(t, store.IsDone(1))
	assert.True(t, store.IsDone(2))
	assert.Len(t, out.blocks, 2)
	assert.Equal(t, Summary{Processed: 2, Failed: 1, Remaining: 1}, summary)
}

func TestDriverDurabilityOrdering(t *testing.T) {
	t.Run("SaveFailureAfterAppendIsFatal", func(t *testing.T) {
		gen := &fakeGenerator{}
		store := newMemStore()
		store.saveErr = errors.New("disk full")
		out := &memAppender{}
		d := newTestDriver(t, sentences(10), 10, store, gen, out, &recordingReporter{})

		_, err := d.Run(context.Background(), 10)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "saving progress")

		// Output made it to the appender but the save failed: on the next
		// run the batch is still pending and will be re-processed.
		assert.Len(t, out.blocks, 1)
		fresh := newMemStore()
		d2 := newTestDriver(t, sentences(10), 10, fresh, &fakeGenerator{}, &memAppender{}, &recordingReporter{})
		summary, err := d2.Run(context.Background(), 10)
		require.NoError(t, err)
		assert.Equal(t, 1, summary.Processed)
	})

	t.Run("AppendFailureIsFatalAndDoesNotMarkDone", func(t *testing.T) {
		store := newMemStore()
		out := &memAppender{err: errors.New("readonly filesystem")}
		d := newTestDriver(t, sentences(10), 10, store, &fakeGenerator{}, out, &recordingReporter{})

		_, err := d.Run(context.Background(), 10)
		require.Error(t, err)
		assert.False(t, store.IsDone(0))
		assert.Zero(t, store.saves)
	})

	t.Run("ProgressSavedAfterEveryBatch", func(t *testing.T) {
		store := newMemStore()
		d := newTestDriver(t, sentences(30), 10, store, &fakeGenerator{}, &memAppender{}, &recordingReporter{})

		_, err := d.Run(context.Background(), 10)
		require.NoError(t, err)
		assert.Equal(t, 3, store.saves)
		assert.Equal(t, []int{1, 2, 3}, store.saved)
	})
}

func TestDriverFormatsOutput(t *testing.T) {
	gen := &fakeGenerator{}
	out := &memAppender{}
	d := newTestDriver(t, sentences(3), 10, newMemStore(), gen, out, &recordingReporter{})

	_, err := d.Run(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, out.blocks, 1)
	assert.True(t, strings.HasSuffix(out.blocks[0], "<stop>"))
}

func TestDriverPromptListsBatchSentences(t *testing.T) {
	gen := &fakeGenerator{}
	d := newTestDriver(t, sentences(12), 10, newMemStore(), gen, &memAppender{}, &recordingReporter{})

	_, err := d.Run(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, gen.prompts, 2)
	assert.Contains(t, gen.prompts[0], "- Sentence number 0.")
	assert.Contains(t, gen.prompts[0], "- Sentence number 9.")
	assert.NotContains(t, gen.prompts[0], "- Sentence number 10.")
	assert.Contains(t, gen.prompts[1], "- Sentence number 10.")
}

func TestDriverCancellation(t *testing.T) {
	gen := &fakeGenerator{}
	store := newMemStore()
	d := newTestDriver(t, sentences(30), 10, store, gen, &memAppender{}, &recordingReporter{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.Run(ctx, 10)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, gen.calls)
}

func TestDriverMissingGenerator(t *testing.T) {
	d := newTestDriver(t, sentences(5), 10, newMemStore(), nil, &memAppender{}, &recordingReporter{})
	_, err := d.Run(context.Background(), 5)
	assert.Error(t, err)
}

func TestNewDriverValidation(t *testing.T) {
	p, err := batch.NewPartitioner(10)
	require.NoError(t, err)

	_, err = NewDriver(Options{Partitioner: p, Progress: newMemStore()})
	assert.Error(t, err)

	_, err = NewDriver(Options{Progress: newMemStore(), Output: &memAppender{}})
	assert.Error(t, err)
}
