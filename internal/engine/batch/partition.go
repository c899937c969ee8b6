// Package batch splits the sentence sequence into fixed-size,
// index-addressable batches and tracks which batch indices have already
// been generated across runs.
package batch

import (
	"errors"
	"fmt"
)

// DefaultSize is the default number of sentences per batch.
const DefaultSize = 10

// ErrInvalidBatchSize is returned when a partitioner is constructed with a
// non-positive batch size.
var ErrInvalidBatchSize = errors.New("batch size must be positive")

// Partitioner deterministically maps (sentence count, batch size) to batch
// boundaries. Batch membership is recomputed from the corpus on every run,
// never stored, so the progress file stays a plain list of indices.
type Partitioner struct {
	size int
}

// NewPartitioner creates a partitioner with the given batch size.
func NewPartitioner(size int) (*Partitioner, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidBatchSize, size)
	}
	return &Partitioner{size: size}, nil
}

// Size returns the configured batch size.
func (p *Partitioner) Size() int {
	return p.size
}

// Count returns the number of batches covering totalItems, the last of
// which may be short.
func (p *Partitioner) Count(totalItems int) int {
	count := totalItems / p.size
	if totalItems%p.size > 0 {
		count++
	}
	return count
}

// Bounds returns the [start, end) boundaries of every batch over
// totalItems. Batch i covers [i*size, min((i+1)*size, totalItems)).
func (p *Partitioner) Bounds(totalItems int) [][2]int {
	count := p.Count(totalItems)
	bounds := make([][2]int, count)
	for i := 0; i < count; i++ {
		start := i * p.size
		end := start + p.size
		if end > totalItems {
			end = totalItems
		}
		bounds[i] = [2]int{start, end}
	}
	return bounds
}
