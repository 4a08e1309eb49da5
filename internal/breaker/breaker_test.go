package breaker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestClosedStateAllowsUntilThresholdTrips(t *testing.T) {
	b := New(Config{FailureThreshold: 3, OpenDuration: time.Minute})

	for i := 0; i < 2; i++ {
		require.True(t, b.Allow())
		b.Failure()
		require.Equal(t, Closed, b.State())
	}
	require.True(t, b.Allow())
	b.Failure() // third consecutive failure trips it
	require.Equal(t, Open, b.State())
}

func TestSuccessResetsFailureCount(t *testing.T) {
	b := New(Config{FailureThreshold: 3, OpenDuration: time.Minute})

	b.Allow()
	b.Failure()
	b.Allow()
	b.Failure()
	b.Allow()
	b.Success()
	require.Equal(t, Closed, b.State())

	// Failure count should have reset; two more failures should not trip it.
	b.Allow()
	b.Failure()
	b.Allow()
	b.Failure()
	require.Equal(t, Closed, b.State())
}

func TestOpenRejectsUntilOpenDurationElapses(t *testing.T) {
	b := New(Config{FailureThreshold: 1, OpenDuration: 50 * time.Millisecond})
	fakeNow := time.Now()
	b.now = func() time.Time { return fakeNow }

	b.Allow()
	b.Failure()
	require.Equal(t, Open, b.State())
	require.False(t, b.Allow(), "should reject immediately after opening")

	fakeNow = fakeNow.Add(50 * time.Millisecond)
	require.True(t, b.Allow(), "should allow a single probe once OpenDuration elapses")
	require.Equal(t, HalfOpen, b.State())
}

func TestHalfOpenAllowsOnlyOneProbeAtATime(t *testing.T) {
	b := New(Config{FailureThreshold: 1, OpenDuration: 0})
	b.Allow()
	b.Failure() // trips to Open with OpenDuration=0

	require.True(t, b.Allow()) // transitions to HalfOpen, probe granted
	require.False(t, b.Allow(), "a second concurrent probe must not be allowed")
}

func TestHalfOpenFailureReopensImmediately(t *testing.T) {
	b := New(Config{FailureThreshold: 1, OpenDuration: 0})
	b.Allow()
	b.Failure()
	require.True(t, b.Allow())
	b.Failure()
	require.Equal(t, Open, b.State())
}

func TestHalfOpenSuccessCloses(t *testing.T) {
	b := New(Config{FailureThreshold: 1, OpenDuration: 0})
	b.Allow()
	b.Failure()
	require.True(t, b.Allow())
	b.Success()
	require.Equal(t, Closed, b.State())
}
