package supervisor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRestartTrackerLimitsUnstableCrashes(t *testing.T) {
	tr := newRestartTracker(RestartPolicy{MaxRestarts: 3, Window: time.Minute, MinUptime: 10 * time.Second})
	now := time.Now()

	for i := 0; i < 3; i++ {
		require.True(t, tr.allow(now.Add(time.Duration(i)*time.Second), time.Second))
	}
	require.False(t, tr.allow(now.Add(4*time.Second), time.Second))
}

func TestRestartTrackerWindowSlides(t *testing.T) {
	tr := newRestartTracker(RestartPolicy{MaxRestarts: 2, Window: time.Minute, MinUptime: 10 * time.Second})
	now := time.Now()

	require.True(t, tr.allow(now, 0))
	require.True(t, tr.allow(now.Add(time.Second), 0))
	require.False(t, tr.allow(now.Add(2*time.Second), 0))
	require.True(t, tr.allow(now.Add(2*time.Minute), 0), "old crashes fall out of the window")
}

func TestRestartTrackerStableRunResets(t *testing.T) {
	tr := newRestartTracker(RestartPolicy{MaxRestarts: 1, Window: time.Hour, MinUptime: 10 * time.Second})
	now := time.Now()

	require.True(t, tr.allow(now, 0))
	require.False(t, tr.allow(now.Add(time.Second), 0))
	require.True(t, tr.allow(now.Add(2*time.Second), time.Minute))
	require.True(t, tr.allow(now.Add(3*time.Second), 0))
}
