package bucketing

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashBucketRange(t *testing.T) {
	for _, count := range []int{1, 2, 64, 128, 1024} {
		for i := 0; i < 500; i++ {
			key := fmt.Sprintf("/records/%d", i)
			bucket, err := HashBucket(key, count)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, bucket, 0)
			assert.Less(t, bucket, count)
		}
	}
}

func TestHashBucketDeterministic(t *testing.T) {
	first, err := HashBucket("oai:example.org:1234", HarvestedRecordBuckets)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		again, err := HashBucket("oai:example.org:1234", HarvestedRecordBuckets)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestHashBucketRejectsNonPowerOfTwo(t *testing.T) {
	for _, count := range []int{0, -1, 3, 63, 100} {
		_, err := HashBucket("key", count)
		assert.ErrorIs(t, err, ErrInvalidBucketCount, "count %d", count)
	}
}

func TestSequenceBucketMonotonic(t *testing.T) {
	assert.Equal(t, 0, SequenceBucket(0))
	assert.Equal(t, 0, SequenceBucket(NotificationBucketSize-1))
	assert.Equal(t, 1, SequenceBucket(NotificationBucketSize))
	assert.Equal(t, 2, SequenceBucket(2*NotificationBucketSize))

	prev := 0
	for seq := int64(0); seq < 5*NotificationBucketSize; seq += 997 {
		bucket := SequenceBucket(seq)
		assert.GreaterOrEqual(t, bucket, prev)
		prev = bucket
	}
}

func TestIteratorYieldsAllBucketsInOrder(t *testing.T) {
	buckets := [][]int{{1, 2, 3}, {}, {4}, {}, {5, 6}}
	it := NewIterator(len(buckets), func(_ context.Context, bucket int) ([]int, error) {
		return buckets[bucket], nil
	})

	var got []int
	for it.Next(context.Background()) {
		got = append(got, it.Record())
	}

	require.NoError(t, it.Err())
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, got)

	// Exhausted iterator stays exhausted.
	assert.False(t, it.Next(context.Background()))
}

func TestIteratorEmptyBucketsOnly(t *testing.T) {
	it := NewIterator(3, func(_ context.Context, _ int) ([]int, error) {
		return []int{}, nil
	})

	assert.False(t, it.Next(context.Background()))
	assert.NoError(t, it.Err())
}

func TestIteratorPropagatesFetchError(t *testing.T) {
	boom := errors.New("query failed")
	it := NewIterator(2, func(_ context.Context, bucket int) ([]int, error) {
		if bucket == 1 {
			return nil, boom
		}
		return []int{1}, nil
	})

	assert.True(t, it.Next(context.Background()))
	assert.Equal(t, 1, it.Record())
	assert.False(t, it.Next(context.Background()))
	assert.ErrorIs(t, it.Err(), boom)
}

func TestIteratorScanWholeDataset(t *testing.T) {
	// 5000 ids spread over 64 hash buckets must each be yielded exactly once.
	buckets := make([][]string, HarvestedRecordBuckets)
	for i := 0; i < 5000; i++ {
		id := fmt.Sprintf("local-%d", i)
		bucket, err := HashBucket(id, HarvestedRecordBuckets)
		require.NoError(t, err)
		buckets[bucket] = append(buckets[bucket], id)
	}

	it := NewIterator(HarvestedRecordBuckets, func(_ context.Context, bucket int) ([]string, error) {
		return buckets[bucket], nil
	})

	seen := make(map[string]int)
	for it.Next(context.Background()) {
		seen[it.Record()]++
	}
	require.NoError(t, it.Err())

	assert.Len(t, seen, 5000)
	for id, n := range seen {
		assert.Equal(t, 1, n, "id %s", id)
	}
}
