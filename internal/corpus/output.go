package corpus

import (
	"fmt"
	"os"
)

// Writer appends formatted record blocks to the expanded corpus file. The
// file is opened per append so an interrupted run never holds a dangling
// handle between batches.
type Writer struct {
	path string
}

// NewWriter returns a Writer targeting the given output path. The file is
// created on first append.
func NewWriter(path string) *Writer {
	return &Writer{path: path}
}

// Path returns the output file path.
func (w *Writer) Path() string {
	return w.path
}

// Append writes one formatted block plus a trailing newline as a single
// append-mode write.
func (w *Writer) Append(block string) error {
	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("opening output %s: %w", w.path, err)
	}

	_, writeErr := f.WriteString(block + "\n")
	closeErr := f.Close()
	if writeErr != nil {
		return fmt.Errorf("appending to output %s: %w", w.path, writeErr)
	}
	if closeErr != nil {
		return fmt.Errorf("closing output %s: %w", w.path, closeErr)
	}
	return nil
}
