package liveness

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Window is how recently a house must have pinged to count as online.
const Window = 10 * time.Second

// Tracker keeps the last heartbeat time per house and derives online
// status on read. Nothing is pushed; consumers poll.
type Tracker struct {
	mu       sync.Mutex
	clock    clockwork.Clock
	lastSeen map[string]time.Time
}

func NewTracker(clock clockwork.Clock) *Tracker {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Tracker{
		clock:    clock,
		lastSeen: map[string]time.Time{},
	}
}

// Beat records a heartbeat for the house at the current clock time.
func (t *Tracker) Beat(houseID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastSeen[houseID] = t.clock.Now()
}

// Online reports whether the house pinged within the liveness window.
// A house that never pinged is offline.
func (t *Tracker) Online(houseID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	seen, ok := t.lastSeen[houseID]
	if !ok {
		return false
	}
	return t.clock.Now().Sub(seen) < Window
}

// Snapshot returns the online flag for each given house.
func (t *Tracker) Snapshot(houses []string) map[string]bool {
	out := make(map[string]bool, len(houses))
	for _, h := range houses {
		out[h] = t.Online(h)
	}
	return out
}
