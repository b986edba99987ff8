package supervisor

import "time"

// RestartPolicy bounds automatic restarts of crashing workers. A crash after
// less than MinUptime is unstable; more than MaxRestarts unstable crashes
// within Window stop the automatic restarts for that account.
type RestartPolicy struct {
	MaxRestarts int
	Window      time.Duration
	MinUptime   time.Duration
	Delay       time.Duration
}

func (p RestartPolicy) normalized() RestartPolicy {
	if p.MaxRestarts <= 0 {
		p.MaxRestarts = 10
	}
	if p.Window <= 0 {
		p.Window = 15 * time.Minute
	}
	if p.MinUptime < 0 {
		p.MinUptime = 0
	}
	if p.Delay < 0 {
		p.Delay = 0
	}
	return p
}

// restartTracker is the per-account crash history. Callers serialize access.
type restartTracker struct {
	policy   RestartPolicy
	unstable []time.Time
}

func newRestartTracker(p RestartPolicy) *restartTracker {
	return &restartTracker{policy: p.normalized()}
}

// allow records a crash after uptime and reports whether another automatic
// restart is permitted.
func (t *restartTracker) allow(now time.Time, uptime time.Duration) bool {
	cutoff := now.Add(-t.policy.Window)
	kept := t.unstable[:0]
	for _, ts := range t.unstable {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	t.unstable = kept

	if uptime >= t.policy.MinUptime {
		// ran long enough to count as recovered
		t.unstable = t.unstable[:0]
		return true
	}
	if len(t.unstable) >= t.policy.MaxRestarts {
		return false
	}
	t.unstable = append(t.unstable, now)
	return true
}

func (t *restartTracker) reset() {
	t.unstable = t.unstable[:0]
}

func (t *restartTracker) delay() time.Duration {
	return t.policy.Delay
}
