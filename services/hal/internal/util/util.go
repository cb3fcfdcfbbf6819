// services/hal/internal/util/util.go
package util

import "time"

// ResetTimer stops t, drains a pending fire and rearms it for d. Negative
// durations fire immediately.
func ResetTimer(t *time.Timer, d time.Duration) {
	if d < 0 {
		d = 0
	}
	if !t.Stop() {
		DrainTimer(t)
	}
	t.Reset(d)
}

func DrainTimer(t *time.Timer) {
	select {
	case <-t.C:
	default:
	}
}
