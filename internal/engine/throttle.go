// Package engine implements the per-monitor-run pipeline: the throttle
// gate, the trigger evaluator, the alert materializer, and the runner that
// ties them together.
package engine

import (
	"time"

	"alertengine/internal/models"
)

// IsThrottled returns false unconditionally for a manual (user-requested)
// execution. Otherwise it returns true iff the trigger has a
// throttleDuration configured, has fired before, and that prior firing is
// still within its throttle window.
func IsThrottled(trigger models.Trigger, now time.Time, manual bool) bool {
	if manual {
		return false
	}
	if trigger.ThrottleDurationMinutes <= 0 {
		return false
	}
	if trigger.LastFiredTime == nil {
		return false
	}
	window := time.Duration(trigger.ThrottleDurationMinutes) * time.Minute
	return trigger.LastFiredTime.After(now.Add(-window))
}
