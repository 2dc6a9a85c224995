package raat

import (
	"time"

	"condor-raat/core/store"
)

// DeadlineTracker owns the legal notification window (24h by default per
// the DIAT filing rules). It never persists anything itself: reads consult
// it for the effective status, and the sweep uses its cutoff for the
// set-based escalation.
type DeadlineTracker struct {
	threshold time.Duration
}

func NewDeadlineTracker(threshold time.Duration) DeadlineTracker {
	if threshold <= 0 {
		threshold = 24 * time.Hour
	}
	return DeadlineTracker{threshold: threshold}
}

// Cutoff returns the instant before which a pending event is overdue.
func (t DeadlineTracker) Cutoff(now time.Time) time.Time {
	return now.Add(-t.threshold)
}

// EffectiveStatus maps a pending incident past the deadline to overdue
// without writing. A sent notification never regresses, not even when the
// filing happened after the window.
func (t DeadlineTracker) EffectiveStatus(inc *store.Incident, now time.Time) string {
	if inc.NotificationStatus == store.NotificationPending && !inc.EventAt.After(t.Cutoff(now)) {
		return store.NotificationOverdue
	}
	return inc.NotificationStatus
}

func (t DeadlineTracker) applyEffective(inc *store.Incident, now time.Time) {
	inc.NotificationStatus = t.EffectiveStatus(inc, now)
}
