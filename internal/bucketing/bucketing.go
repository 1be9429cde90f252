// Package bucketing provides the two key-to-bucket mapping strategies used
// to keep every storage partition under the backend's practical size
// ceiling, plus an iterator that presents a bounded set of buckets as one
// logical record sequence.
package bucketing

import (
	"errors"
	"hash/fnv"
)

// Bucket counts and sizes are part of the persisted data layout. Changing
// any of them for an existing dataset makes old rows unreachable without a
// migration.
const (
	// NotificationBucketSize is the number of notification rows per
	// sequential bucket.
	NotificationBucketSize = 10_000

	// ProcessedRecordBuckets is the hash bucket count for processed
	// records. Must be a power of two.
	ProcessedRecordBuckets = 128

	// HarvestedRecordBuckets is the hash bucket count for harvested
	// records. Must be a power of two.
	HarvestedRecordBuckets = 64
)

// ErrInvalidBucketCount is returned when a hash bucket count is not a
// positive power of two.
var ErrInvalidBucketCount = errors.New("bucket count must be a positive power of two")

// HashBucket maps a key to a bucket in [0, bucketCount) by masking its
// 64-bit FNV-1a hash. bucketCount must be a positive power of two; the
// mapping is deterministic for a given key and count.
func HashBucket(key string, bucketCount int) (int, error) {
	if bucketCount <= 0 || bucketCount&(bucketCount-1) != 0 {
		return 0, ErrInvalidBucketCount
	}

	h := fnv.New64a()
	// fnv's Write never fails.
	_, _ = h.Write([]byte(key))

	return int(uint64(bucketCount-1) & h.Sum64()), nil
}

// SequenceBucket maps a monotonic per-task sequence number to its bucket.
// Valid only when sequence numbers come from a single counter per task:
// buckets then fill strictly in order, so the highest populated bucket
// always holds the latest sequence number.
func SequenceBucket(sequenceNumber int64) int {
	if sequenceNumber < 0 {
		return 0
	}
	return int(sequenceNumber / NotificationBucketSize)
}
