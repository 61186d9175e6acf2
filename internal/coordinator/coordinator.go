// Package coordinator is the server's live-monitoring runtime: one session
// slot per house, a latest-value frame and audio slot per house, heartbeat
// liveness, and the audit log fed by slot transitions.
package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/samlnz/PS-controller/internal/event"
	"github.com/samlnz/PS-controller/internal/liveness"
	"github.com/samlnz/PS-controller/internal/monitor"
)

// staleMediaTTL is how long a stored frame or audio chunk survives without
// being overwritten before the janitor drops it.
const staleMediaTTL = time.Minute

// MediaSlot is the latest pushed frame or audio chunk for one house.
type MediaSlot struct {
	Data       string `json:"data"`
	ReceivedAt int64  `json:"received_at"`
}

type Coordinator struct {
	mu       sync.Mutex
	clock    clockwork.Clock
	sessions map[string]monitor.Session
	frames   map[string]MediaSlot
	audio    map[string]MediaSlot
	houses   []string

	log      *event.Log
	liveness *liveness.Tracker
}

func New(houses []string, evlog *event.Log, clock clockwork.Clock) *Coordinator {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	c := &Coordinator{
		clock:    clock,
		sessions: make(map[string]monitor.Session, len(houses)),
		frames:   map[string]MediaSlot{},
		audio:    map[string]MediaSlot{},
		houses:   houses,
		log:      evlog,
		liveness: liveness.NewTracker(clock),
	}
	for _, h := range houses {
		c.sessions[h] = monitor.NewSession(h)
	}
	return c
}

func (c *Coordinator) Log() *event.Log { return c.log }

func (c *Coordinator) nowMS() int64 { return c.clock.Now().UnixMilli() }

// Session returns the slot for one house.
func (c *Coordinator) Session(houseID string) (monitor.Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[houseID]
	return s, ok
}

// Sessions returns all slots keyed by house.
func (c *Coordinator) Sessions() map[string]monitor.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]monitor.Session, len(c.sessions))
	for k, v := range c.sessions {
		out[k] = v
	}
	return out
}

// SessionPatch is the partial merge-update clients POST. Absent fields
// leave the slot alone; present fields are diffed against the current slot
// and drive typed transitions.
type SessionPatch struct {
	HouseID      string               `json:"house_id"`
	Status       *monitor.Status      `json:"status"`
	Quality      *monitor.Quality     `json:"quality"`
	AudioStatus  *monitor.AudioStatus `json:"audio_status"`
	OnlineSignal bool                 `json:"online_signal,omitempty"`
}

// UpdateSession applies a patch to the house's slot. Field transitions
// emit audit events; duplicate edges are no-ops. Concurrent patches race
// last-write-wins, which is the accepted single-owner model.
func (c *Coordinator) UpdateSession(patch SessionPatch) (monitor.Session, error) {
	inputs, err := patchInputs(patch)
	if err != nil {
		return monitor.Session{}, err
	}

	c.mu.Lock()
	s, ok := c.sessions[patch.HouseID]
	if !ok {
		c.mu.Unlock()
		return monitor.Session{}, ErrUnknownHouse
	}
	now := c.nowMS()
	var emitted []monitor.Emitted
	for _, in := range inputs(s) {
		var ev []monitor.Emitted
		s, ev = monitor.Apply(s, in, now)
		emitted = append(emitted, ev...)
	}
	c.sessions[patch.HouseID] = s
	// appending under the lock keeps the audit order consistent with the
	// slot history when patches race
	for _, em := range emitted {
		if em.Kind == monitor.EmitSessionEnded {
			// ended sessions drop their ephemeral media; clients bridge
			// with their last-seen copy
			delete(c.frames, patch.HouseID)
			delete(c.audio, patch.HouseID)
		}
		c.appendEmitted(em, now)
	}
	c.mu.Unlock()
	return s, nil
}

// patchInputs validates a patch and returns the transition list builder.
// The builder runs under the coordinator lock so diffs see the current
// slot value.
func patchInputs(patch SessionPatch) (func(monitor.Session) []monitor.Input, error) {
	if patch.Status != nil {
		switch *patch.Status {
		case monitor.StatusIdle, monitor.StatusRequested, monitor.StatusActive:
		default:
			return nil, ErrInvalidStatus
		}
	}
	if patch.Quality != nil && !patch.Quality.Valid() {
		return nil, ErrInvalidQuality
	}
	if patch.AudioStatus != nil {
		switch *patch.AudioStatus {
		case monitor.AudioIdle, monitor.AudioActive:
		default:
			return nil, ErrInvalidStatus
		}
	}
	return func(s monitor.Session) []monitor.Input {
		var inputs []monitor.Input
		if patch.Status != nil {
			switch *patch.Status {
			case monitor.StatusRequested:
				// re-requests are always honored; each starts a new round
				inputs = append(inputs, monitor.Input{Kind: monitor.InputRequest})
			case monitor.StatusActive:
				if s.Status != monitor.StatusActive {
					inputs = append(inputs, monitor.Input{Kind: monitor.InputAccept})
				}
			case monitor.StatusIdle:
				if s.Status != monitor.StatusIdle {
					inputs = append(inputs, monitor.Input{Kind: monitor.InputEnd})
				}
			}
		}
		if patch.Quality != nil && *patch.Quality != s.Quality {
			inputs = append(inputs, monitor.Input{Kind: monitor.InputSetQuality, Quality: *patch.Quality})
		}
		if patch.AudioStatus != nil && *patch.AudioStatus != s.AudioStatus {
			kind := monitor.InputAudioStop
			if *patch.AudioStatus == monitor.AudioActive {
				kind = monitor.InputAudioStart
			}
			inputs = append(inputs, monitor.Input{Kind: kind})
		}
		if patch.OnlineSignal {
			inputs = append(inputs, monitor.Input{Kind: monitor.InputOnlineSignal})
		}
		return inputs
	}, nil
}

func (c *Coordinator) appendEmitted(em monitor.Emitted, nowMS int64) {
	ev := event.Event{
		Type:      string(em.Kind),
		HouseID:   em.HouseID,
		Timestamp: nowMS,
	}
	if em.Kind == monitor.EmitSessionEnded {
		ev.DurationMS = em.DurationMS
	}
	appended := c.log.Append(ev)
	log.Info().
		Str("event_id", appended.ID).
		Str("type", appended.Type).
		Str("house_id", appended.HouseID).
		Int64("duration_ms", appended.DurationMS).
		Msg("session_event")
}

// AppendEvent appends a client-authored audit event (the owner console's
// yield alerts). Server-derived types come from transitions, not here.
func (c *Coordinator) AppendEvent(evType, houseID string) (event.Event, error) {
	if !event.ValidType(evType) {
		return event.Event{}, ErrInvalidStatus
	}
	known := false
	for _, h := range c.houses {
		if h == houseID {
			known = true
			break
		}
	}
	if !known {
		return event.Event{}, ErrUnknownHouse
	}
	return c.log.Append(event.Event{
		Type:      evType,
		HouseID:   houseID,
		Timestamp: c.nowMS(),
	}), nil
}

// SetFrame overwrites the latest frame for a house. No history is kept.
func (c *Coordinator) SetFrame(houseID, data string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.sessions[houseID]; !ok {
		return ErrUnknownHouse
	}
	c.frames[houseID] = MediaSlot{Data: data, ReceivedAt: c.nowMS()}
	return nil
}

func (c *Coordinator) Frame(houseID string) (MediaSlot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	slot, ok := c.frames[houseID]
	return slot, ok
}

// SetAudio overwrites the latest audio chunk for a house.
func (c *Coordinator) SetAudio(houseID, data string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.sessions[houseID]; !ok {
		return ErrUnknownHouse
	}
	c.audio[houseID] = MediaSlot{Data: data, ReceivedAt: c.nowMS()}
	return nil
}

func (c *Coordinator) Audio(houseID string) (MediaSlot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	slot, ok := c.audio[houseID]
	return slot, ok
}

// Heartbeat records a liveness ping for a house.
func (c *Coordinator) Heartbeat(houseID string) error {
	c.mu.Lock()
	_, ok := c.sessions[houseID]
	c.mu.Unlock()
	if !ok {
		return ErrUnknownHouse
	}
	c.liveness.Beat(houseID)
	return nil
}

// HouseStatus returns the derived online flag for every house.
func (c *Coordinator) HouseStatus() map[string]bool {
	return c.liveness.Snapshot(c.houses)
}

// Online reports liveness for one house.
func (c *Coordinator) Online(houseID string) bool {
	return c.liveness.Online(houseID)
}

// StartJanitor sweeps stale media slots in the background so a dead worker
// does not leave a last frame lingering forever.
func (c *Coordinator) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := c.clock.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.Chan():
				c.sweepStaleMedia()
			}
		}
	}()
}

func (c *Coordinator) sweepStaleMedia() {
	cutoff := c.nowMS() - staleMediaTTL.Milliseconds()
	c.mu.Lock()
	defer c.mu.Unlock()
	for h, slot := range c.frames {
		if slot.ReceivedAt < cutoff {
			delete(c.frames, h)
		}
	}
	for h, slot := range c.audio {
		if slot.ReceivedAt < cutoff {
			delete(c.audio, h)
		}
	}
}
