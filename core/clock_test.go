package core

import (
	"testing"
	"time"
)

func TestManualClock_FiresInDeadlineOrder(t *testing.T) {
	clock := NewManualClock(time.Time{})
	fired := []string{}
	clock.AfterFunc(300*time.Millisecond, func() { fired = append(fired, "late") })
	clock.AfterFunc(100*time.Millisecond, func() { fired = append(fired, "early") })
	stopped := clock.AfterFunc(200*time.Millisecond, func() { fired = append(fired, "stopped") })

	if !stopped.Stop() {
		t.Fatalf("expected pending timer to stop")
	}
	if stopped.Stop() {
		t.Fatalf("expected second stop to report false")
	}

	clock.Advance(150 * time.Millisecond)
	if len(fired) != 1 || fired[0] != "early" {
		t.Fatalf("expected only early timer, got %v", fired)
	}
	clock.Advance(time.Second)
	if len(fired) != 2 || fired[1] != "late" {
		t.Fatalf("expected late timer next, got %v", fired)
	}
	if clock.Pending() != 0 {
		t.Fatalf("expected no pending timers")
	}
}
