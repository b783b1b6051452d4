package runstats

import (
	"sort"
	"strconv"
	"strings"
)

const (
	// BucketFirstTry counts calls that succeeded on the first attempt.
	BucketFirstTry = "first_try"
	// BucketFailed counts calls that exhausted every attempt.
	BucketFailed = "failed"

	retryPrefix = "retry_"
)

// BucketFor names the bucket for a call that succeeded on the given 1-based attempt.
func BucketFor(attempt int) string {
	if attempt <= 1 {
		return BucketFirstTry
	}
	return retryPrefix + strconv.Itoa(attempt-1)
}

// CallHistogram counts upstream call outcomes by bucket.
type CallHistogram map[string]int

// Add increments bucket.
func (h CallHistogram) Add(bucket string) {
	h[bucket]++
}

// Merge adds every bucket of other into h.
func (h CallHistogram) Merge(other CallHistogram) {
	for bucket, count := range other {
		h[bucket] += count
	}
}

// Total returns the number of recorded calls.
func (h CallHistogram) Total() int {
	total := 0
	for _, count := range h {
		total += count
	}
	return total
}

// Buckets returns bucket names ordered first_try, retry_1..retry_N, failed.
func (h CallHistogram) Buckets() []string {
	keys := make([]string, 0, len(h))
	for bucket := range h {
		keys = append(keys, bucket)
	}
	sort.Slice(keys, func(i, j int) bool {
		return bucketRank(keys[i]) < bucketRank(keys[j]) ||
			(bucketRank(keys[i]) == bucketRank(keys[j]) && keys[i] < keys[j])
	})
	return keys
}

func bucketRank(bucket string) int {
	switch {
	case bucket == BucketFirstTry:
		return 0
	case bucket == BucketFailed:
		return 1 << 20
	case strings.HasPrefix(bucket, retryPrefix):
		if n, err := strconv.Atoi(strings.TrimPrefix(bucket, retryPrefix)); err == nil {
			return n
		}
	}
	return 1<<20 - 1
}
