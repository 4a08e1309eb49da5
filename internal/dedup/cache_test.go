package dedup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSeenFirstTimeIsMissThenHit(t *testing.T) {
	c := New(time.Minute, 10)
	defer c.Close()

	require.False(t, c.Seen("k1"))
	require.True(t, c.Seen("k1"))
	require.True(t, c.Seen("k1"))
}

func TestCapacityEvictsLeastRecentlyUsed(t *testing.T) {
	c := New(time.Minute, 2)
	defer c.Close()

	require.False(t, c.Seen("a"))
	require.False(t, c.Seen("b"))
	// touching "a" makes "b" the least-recently-used entry
	require.True(t, c.Seen("a"))
	require.False(t, c.Seen("c")) // evicts "b"

	require.Equal(t, 2, c.Len())
	require.False(t, c.Seen("b"), "b should have been evicted and now appears as a fresh miss")
}

func TestTTLExpiry(t *testing.T) {
	c := New(20*time.Millisecond, 10)
	defer c.Close()

	require.False(t, c.Seen("k1"))
	time.Sleep(40 * time.Millisecond)
	require.False(t, c.Seen("k1"), "expired entry must be treated as a fresh miss")
}

func TestConcurrentSeenNoDuplicateSinkDelivery(t *testing.T) {
	c := New(time.Minute, 1000)
	defer c.Close()

	const workers = 50
	hits := make(chan bool, workers)
	for i := 0; i < workers; i++ {
		go func() { hits <- c.Seen("shared-key") }()
	}

	misses := 0
	for i := 0; i < workers; i++ {
		if !<-hits {
			misses++
		}
	}
	require.Equal(t, 1, misses, "exactly one caller should observe the first-insertion miss")
}
