package bucketing

import (
	"context"
	"fmt"
)

// FetchBucket loads the records of one bucket. A failed bucket fetch must
// return an error, never a nil "pretend it was empty" result; an empty
// bucket returns an empty slice.
type FetchBucket[T any] func(ctx context.Context, bucket int) ([]T, error)

// Iterator walks buckets [0, bucketCount) lazily and presents their
// records as one forward-only, non-restartable sequence, in the style of
// sql.Rows: Next advances, Record returns the current record. Records are
// yielded in non-decreasing bucket order.
type Iterator[T any] struct {
	fetch       FetchBucket[T]
	bucketCount int

	nextBucket int
	buffer     []T
	pos        int
	cur        T
	err        error
}

// NewIterator creates an Iterator over buckets [0, bucketCount) backed by
// the given fetch function.
func NewIterator[T any](bucketCount int, fetch FetchBucket[T]) *Iterator[T] {
	return &Iterator[T]{
		fetch:       fetch,
		bucketCount: bucketCount,
	}
}

// Next advances to the next record, fetching further buckets as the
// current one is exhausted. It returns false when the last bucket is
// exhausted or a fetch failed; Err distinguishes the two. Calls after
// exhaustion keep returning false.
func (it *Iterator[T]) Next(ctx context.Context) bool {
	if it.err != nil {
		return false
	}

	for it.pos >= len(it.buffer) {
		if it.nextBucket >= it.bucketCount {
			return false
		}

		records, err := it.fetch(ctx, it.nextBucket)
		if err != nil {
			it.err = fmt.Errorf("fetching bucket %d: %w", it.nextBucket, err)
			return false
		}

		it.buffer = records
		it.pos = 0
		it.nextBucket++
	}

	it.cur = it.buffer[it.pos]
	it.pos++
	return true
}

// Record returns the record the last successful Next advanced to.
func (it *Iterator[T]) Record() T {
	return it.cur
}

// Err returns the first fetch error encountered, or nil if iteration
// ended by exhausting all buckets.
func (it *Iterator[T]) Err() error {
	return it.err
}
