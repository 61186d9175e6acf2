package liveness

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func TestLivenessWindowBoundary(t *testing.T) {
	clock := clockwork.NewFakeClock()
	tr := NewTracker(clock)

	tr.Beat("house1")

	clock.Advance(9_999 * time.Millisecond)
	if !tr.Online("house1") {
		t.Fatalf("expected online at +9999ms")
	}

	clock.Advance(2 * time.Millisecond)
	if tr.Online("house1") {
		t.Fatalf("expected offline at +10001ms")
	}
}

func TestUnknownHouseIsOffline(t *testing.T) {
	tr := NewTracker(clockwork.NewFakeClock())
	if tr.Online("house2") {
		t.Fatalf("house without heartbeat must be offline")
	}
}

func TestSnapshot(t *testing.T) {
	clock := clockwork.NewFakeClock()
	tr := NewTracker(clock)
	tr.Beat("house1")

	got := tr.Snapshot([]string{"house1", "house2"})
	if !got["house1"] || got["house2"] {
		t.Fatalf("wrong snapshot: %+v", got)
	}
}
