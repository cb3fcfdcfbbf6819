package util

import (
	"testing"
	"time"
)

func TestResetTimerDropsStaleFire(t *testing.T) {
	tm := time.NewTimer(time.Millisecond)
	time.Sleep(5 * time.Millisecond) // fired, value pending in C

	ResetTimer(tm, time.Hour)
	select {
	case <-tm.C:
		t.Fatal("stale fire delivered after reset")
	case <-time.After(10 * time.Millisecond):
	}

	ResetTimer(tm, -time.Second)
	select {
	case <-tm.C:
	case <-time.After(time.Second):
		t.Fatal("negative duration did not fire")
	}
}
