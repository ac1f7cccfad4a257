package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBucketRollover(t *testing.T) {
	t.Parallel()

	window := time.Minute

	// Moments inside one window share a bucket, so their counts add up.
	assert.Equal(t, bucket(time.Unix(120, 0), window), bucket(time.Unix(179, 0), window))

	// The first moment past the boundary starts a fresh bucket, which is
	// what lets a throttled client through once the window elapses.
	assert.NotEqual(t, bucket(time.Unix(179, 0), window), bucket(time.Unix(180, 0), window))

	short := 10 * time.Second
	assert.Equal(t, bucket(time.Unix(30, 0), short), bucket(time.Unix(39, 0), short))
	assert.NotEqual(t, bucket(time.Unix(39, 0), short), bucket(time.Unix(40, 0), short))
}
