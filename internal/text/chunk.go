package text

import (
	"errors"
	"fmt"
)

// ErrContractViolation marks programmer errors that must never be retried.
var ErrContractViolation = errors.New("contract violation")

// ErrInvalidChunkSize is returned by Chunk for a non-positive size.
var ErrInvalidChunkSize = fmt.Errorf("%w: chunk size must be positive", ErrContractViolation)

// Chunk partitions items into contiguous groups of size elements; the last
// group may be shorter. The groups share the backing array of items.
func Chunk[T any](items []T, size int) ([][]T, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w (got %d)", ErrInvalidChunkSize, size)
	}
	chunks := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[start:end:end])
	}
	return chunks, nil
}
