// Package console is the owner daemon: it polls server state on a fixed
// interval, merges entries through the shared syncer, derives per-house
// stats, evaluates low-yield thresholds, and issues monitoring actions.
package console

import (
	"context"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/samlnz/PS-controller/internal/alert"
	"github.com/samlnz/PS-controller/internal/client"
	"github.com/samlnz/PS-controller/internal/config"
	"github.com/samlnz/PS-controller/internal/coordinator"
	"github.com/samlnz/PS-controller/internal/event"
	"github.com/samlnz/PS-controller/internal/game"
	"github.com/samlnz/PS-controller/internal/monitor"
)

type Console struct {
	cfg       config.ConsoleConfig
	api       *client.API
	cache     *client.Cache
	syncer    *client.Syncer
	clock     clockwork.Clock
	houses    *game.HouseMap
	evaluator *alert.Evaluator

	// OnCounterOnline fires when the worker signals it is back after a
	// missed request - the cue to resend.
	OnCounterOnline func(houseID string)

	mu          sync.Mutex
	thresholds  alert.Thresholds
	lastEventID string
	eventsSeen  bool
	lastFrames  map[string]string
	lastStats   []HouseStats
}

func New(cfg config.ConsoleConfig, api *client.API, cache *client.Cache, houses *game.HouseMap, clock clockwork.Clock) *Console {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Console{
		cfg:        cfg,
		api:        api,
		cache:      cache,
		syncer:     client.NewSyncer(api, cache),
		clock:      clock,
		houses:     houses,
		evaluator:  alert.NewEvaluator(houses),
		thresholds: alert.DefaultThresholds(),
		lastFrames: map[string]string{},
	}
}

func (c *Console) Syncer() *client.Syncer { return c.syncer }

// Run polls until ctx is cancelled.
func (c *Console) Run(ctx context.Context) {
	ticker := c.clock.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	c.PollOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			c.PollOnce(ctx)
		}
	}
}

// PollOnce is one dashboard refresh: sync entries, refresh thresholds,
// evaluate alerts, scan new events, retain latest frames, derive stats.
// Every remote failure degrades to last-known-good data.
func (c *Console) PollOnce(ctx context.Context) {
	entries := c.syncer.FetchEntries(ctx)

	if th, err := c.api.Thresholds(ctx); err == nil {
		c.mu.Lock()
		c.thresholds = th
		c.mu.Unlock()
	} else {
		log.Debug().Err(err).Msg("threshold fetch failed, keeping last known")
	}

	now := c.clock.Now().UnixMilli()
	c.mu.Lock()
	th := c.thresholds
	c.mu.Unlock()
	for _, houseID := range c.evaluator.Evaluate(entries, th, now) {
		if _, err := c.api.PostYieldAlert(ctx, houseID); err != nil {
			log.Warn().Err(err).Str("house_id", houseID).Msg("yield alert post failed")
		} else {
			log.Info().Str("house_id", houseID).Msg("low yield alert")
		}
	}

	c.scanEvents(ctx)
	c.retainFrames(ctx)

	status, err := c.api.HouseStatus(ctx)
	if err != nil {
		log.Debug().Err(err).Msg("house status fetch failed")
		status = map[string]bool{}
	}
	stats := BuildStats(entries, c.houses, status, now)
	c.mu.Lock()
	c.lastStats = stats
	c.mu.Unlock()
	for _, s := range stats {
		log.Debug().
			Str("house_id", s.HouseID).
			Int64("revenue", s.Revenue).
			Int("games_last_hour", s.GamesLastHour).
			Bool("online", s.Online).
			Msg("house stats")
	}
}

// scanEvents watches the audit tail for counter_online signals the owner
// has not seen yet. The first successful fetch only seeds the cursor:
// events retained from before this console started are history, not
// signals to act on.
func (c *Console) scanEvents(ctx context.Context) {
	events, err := c.api.Events(ctx, 0)
	if err != nil {
		log.Debug().Err(err).Msg("event fetch failed")
		return
	}
	c.mu.Lock()
	last := c.lastEventID
	seen := c.eventsSeen
	c.eventsSeen = true
	c.mu.Unlock()
	if !seen {
		if len(events) > 0 {
			last = events[len(events)-1].ID
		}
		c.mu.Lock()
		c.lastEventID = last
		c.mu.Unlock()
		return
	}
	for _, ev := range events {
		if ev.ID <= last {
			continue
		}
		if ev.Type == event.TypeCounterOnline {
			log.Info().Str("house_id", ev.HouseID).Msg("counter online, request can be resent")
			if c.OnCounterOnline != nil {
				c.OnCounterOnline(ev.HouseID)
			}
		}
		last = ev.ID
	}
	c.mu.Lock()
	c.lastEventID = last
	c.mu.Unlock()
}

// retainFrames keeps the last non-empty frame per house so an empty poll
// (worker between pushes, or slot swept) does not blank the view.
func (c *Console) retainFrames(ctx context.Context) {
	for _, houseID := range c.houses.Houses() {
		frame, err := c.api.Frame(ctx, houseID)
		if err != nil {
			log.Debug().Err(err).Msg("frame fetch failed")
			continue
		}
		if frame == "" {
			continue
		}
		c.mu.Lock()
		c.lastFrames[houseID] = frame
		c.mu.Unlock()
	}
}

// LastFrame returns the most recent frame seen for a house.
func (c *Console) LastFrame(houseID string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastFrames[houseID]
}

// Stats returns the rows derived by the latest poll.
func (c *Console) Stats() []HouseStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]HouseStats, len(c.lastStats))
	copy(out, c.lastStats)
	return out
}

// RequestVideo asks a house to start streaming.
func (c *Console) RequestVideo(ctx context.Context, houseID string) (monitor.Session, error) {
	status := monitor.StatusRequested
	return c.api.PostSession(ctx, coordinator.SessionPatch{HouseID: houseID, Status: &status})
}

// EndSession terminates the house's round.
func (c *Console) EndSession(ctx context.Context, houseID string) (monitor.Session, error) {
	status := monitor.StatusIdle
	return c.api.PostSession(ctx, coordinator.SessionPatch{HouseID: houseID, Status: &status})
}

// SetQuality renegotiates the streaming level.
func (c *Console) SetQuality(ctx context.Context, houseID string, q monitor.Quality) (monitor.Session, error) {
	return c.api.PostSession(ctx, coordinator.SessionPatch{HouseID: houseID, Quality: &q})
}

// SetAudio toggles the stealth audio sub-channel.
func (c *Console) SetAudio(ctx context.Context, houseID string, on bool) (monitor.Session, error) {
	audio := monitor.AudioIdle
	if on {
		audio = monitor.AudioActive
	}
	return c.api.PostSession(ctx, coordinator.SessionPatch{HouseID: houseID, AudioStatus: &audio})
}

// SetPrice overrides one TV's price. The server clamps to the TV's base
// price, so the returned map is the price actually in effect.
func (c *Console) SetPrice(ctx context.Context, tvID string, price int64) (map[string]int64, error) {
	prices, err := c.api.PushPrices(ctx, map[string]int64{tvID: price})
	if err != nil {
		return nil, err
	}
	if err := c.cache.SetPrices(prices); err != nil {
		log.Error().Err(err).Msg("persist prices failed")
	}
	return prices, nil
}

// PurgeAll irreversibly clears all entries, local and remote. Owner-only;
// the API client must carry the admin key.
func (c *Console) PurgeAll(ctx context.Context) error {
	return c.syncer.PurgeAll(ctx)
}
