package batch

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"syscall"
	"time"
)

// Store is the durable set of completed batch indices, persisted as a JSON
// array of sorted integers. It is rewritten in full after every completed
// batch so a hard interruption loses at most the in-flight batch.
//
// An earlier tool version persisted a list of [chunk, style] pairs; that
// shape (or anything else whose first element is not an integer) is treated
// as absent rather than an error, so stale progress files never block a run.
type Store struct {
	path string
	done map[int]struct{}
}

// NewStore creates a progress store backed by the given file path. Call
// Load before reading completion state.
func NewStore(path string) *Store {
	return &Store{
		path: path,
		done: make(map[int]struct{}),
	}
}

// Path returns the progress file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads the persisted progress set. A missing file or a legacy-shaped
// file yields an empty set; unreadable or unparseable files are real
// storage failures and propagate.
func (s *Store) Load() error {
	s.done = make(map[int]struct{})

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading progress file %s: %w", s.path, err)
	}

	var raw []any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parsing progress file %s: %w", s.path, err)
	}

	if !isCurrentShape(raw) {
		// Obsolete schema: start fresh rather than failing.
		return nil
	}

	for _, v := range raw {
		if f, ok := v.(float64); ok && f == math.Trunc(f) {
			s.done[int(f)] = struct{}{}
		}
	}
	return nil
}

// isCurrentShape reports whether the deserialized progress data is a
// non-empty list whose first element is an integer.
func isCurrentShape(raw []any) bool {
	if len(raw) == 0 {
		return false
	}
	f, ok := raw[0].(float64)
	return ok && f == math.Trunc(f)
}

// Save persists the completion set as a sorted JSON array, atomically via a
// temp file and rename. It must be called synchronously after each batch's
// output has been appended.
func (s *Store) Save() error {
	data, err := json.Marshal(s.Done())
	if err != nil {
		return fmt.Errorf("marshaling progress: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating progress directory %s: %w", dir, err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return fmt.Errorf("writing progress temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("renaming progress temp file: %w", err)
	}
	return nil
}

// MarkDone records a batch index as complete. The caller is responsible
// for appending the batch's output before marking it.
func (s *Store) MarkDone(index int) {
	s.done[index] = struct{}{}
}

// IsDone reports whether a batch index has been completed.
func (s *Store) IsDone(index int) bool {
	_, ok := s.done[index]
	return ok
}

// Done returns the completed indices in ascending order.
func (s *Store) Done() []int {
	indices := make([]int, 0, len(s.done))
	for i := range s.done {
		indices = append(indices, i)
	}
	sort.Ints(indices)
	return indices
}

// Len returns the number of completed batches.
func (s *Store) Len() int {
	return len(s.done)
}

// Lock acquisition tuning. A lock older than staleLockAge whose owning
// process is gone is reclaimed.
const (
	lockMaxRetries = 10
	lockRetryDelay = 100 * time.Millisecond
	staleLockAge   = 30 * time.Second
)

// AcquireLock takes a cross-process advisory lockfile next to the progress
// file, guarding against two driver instances interleaving output and
// progress writes. It returns a release function.
func (s *Store) AcquireLock() (func(), error) {
	lockPath := s.path + ".lock"

	if err := os.MkdirAll(filepath.Dir(lockPath), 0o750); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}

	for i := 0; i < lockMaxRetries; i++ {
		f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
		if err == nil {
			// Write PID for stale lock detection.
			_, _ = fmt.Fprintf(f, "%d", os.Getpid())
			_ = f.Close()
			return func() { _ = os.Remove(lockPath) }, nil
		}

		if removeStaleLock(lockPath) {
			continue
		}
		time.Sleep(lockRetryDelay)
	}

	return nil, fmt.Errorf("another corpusgen run holds the lock on %s", lockPath)
}

// removeStaleLock removes the lockfile if it is old and its owning process
// is dead. Returns true if the caller should retry acquisition.
func removeStaleLock(lockPath string) bool {
	info, err := os.Stat(lockPath)
	if err != nil || time.Since(info.ModTime()) <= staleLockAge {
		return false
	}
	if isLockHeldByLiveProcess(lockPath) {
		return false
	}
	_ = os.Remove(lockPath)
	return true
}

// isLockHeldByLiveProcess reads the PID from a lockfile and checks whether
// that process is still alive.
func isLockHeldByLiveProcess(lockPath string) bool {
	data, err := os.ReadFile(lockPath)
	if err != nil || len(data) == 0 {
		return false
	}
	var pid int
	if _, err := fmt.Sscanf(string(data), "%d", &pid); err != nil || pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// Signal 0 tests process existence without sending a signal.
	return proc.Signal(syscall.Signal(0)) == nil
}
