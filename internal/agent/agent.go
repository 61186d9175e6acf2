// Package agent is the worker daemon for one house: it keeps the server's
// heartbeat fresh, logs games through the shared syncer, and answers
// monitoring requests by capturing and pushing frames and audio.
package agent

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/samlnz/PS-controller/internal/client"
	"github.com/samlnz/PS-controller/internal/config"
	"github.com/samlnz/PS-controller/internal/coordinator"
	"github.com/samlnz/PS-controller/internal/game"
	"github.com/samlnz/PS-controller/internal/livegateway"
	"github.com/samlnz/PS-controller/internal/monitor"
)

type Agent struct {
	cfg    config.AgentConfig
	api    *client.API
	cache  *client.Cache
	syncer *client.Syncer
	clock  clockwork.Clock
	frames FrameSource
	audio  AudioSource

	mu        sync.Mutex
	quality   monitor.Quality
	stopVideo context.CancelFunc
	stopAudio context.CancelFunc
	wsConn    *websocket.Conn
	videoWG   sync.WaitGroup
	audioWG   sync.WaitGroup
}

func New(cfg config.AgentConfig, api *client.API, cache *client.Cache, clock clockwork.Clock, frames FrameSource, audio AudioSource) *Agent {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Agent{
		cfg:     cfg,
		api:     api,
		cache:   cache,
		syncer:  client.NewSyncer(api, cache),
		clock:   clock,
		frames:  frames,
		audio:   audio,
		quality: monitor.QualityMedium,
	}
}

// Syncer exposes the entry syncer for the game-logging surface.
func (a *Agent) Syncer() *client.Syncer { return a.syncer }

// LogGame records one game played on a TV, persists it locally and
// replicates it in the background.
func (a *Agent) LogGame(tvID string, amount int64, completed bool) (game.Entry, error) {
	e := game.NewEntry(tvID, amount, completed, a.clock.Now().UnixMilli())
	if err := a.syncer.CommitEntries(append(a.cache.Entries(), e)); err != nil {
		return game.Entry{}, err
	}
	return e, nil
}

// LogSeparator marks a shift boundary on a TV.
func (a *Agent) LogSeparator(tvID string) (game.Entry, error) {
	e := game.NewSeparator(tvID, a.clock.Now().UnixMilli())
	if err := a.syncer.CommitEntries(append(a.cache.Entries(), e)); err != nil {
		return game.Entry{}, err
	}
	return e, nil
}

// Run drives the heartbeat and poll loops until ctx is cancelled. Capture
// goroutines are always torn down before Run returns.
func (a *Agent) Run(ctx context.Context) {
	heartbeat := a.clock.NewTicker(a.cfg.HeartbeatInterval)
	defer heartbeat.Stop()
	poll := a.clock.NewTicker(a.cfg.PollInterval)
	defer poll.Stop()

	a.beat(ctx)
	a.PollOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			a.stopStreaming()
			a.stopAudioPump()
			a.videoWG.Wait()
			a.audioWG.Wait()
			return
		case <-heartbeat.Chan():
			a.beat(ctx)
		case <-poll.Chan():
			a.PollOnce(ctx)
		}
	}
}

func (a *Agent) beat(ctx context.Context) {
	if err := a.api.Heartbeat(ctx, a.cfg.HouseID); err != nil {
		log.Warn().Err(err).Msg("heartbeat failed")
	}
	a.syncer.FetchPrices(ctx)
}

// Prices returns the last known per-TV prices, served from the local
// cache between refreshes.
func (a *Agent) Prices() map[string]int64 {
	return a.cache.Prices()
}

// PollOnce reads the house's session slot and reacts: accepts pending
// requests, tracks quality changes, toggles audio, recovers missed
// requests. Remote failures are transient; the next tick retries.
func (a *Agent) PollOnce(ctx context.Context) {
	sess, err := a.api.Session(ctx, a.cfg.HouseID)
	if err != nil {
		log.Debug().Err(err).Msg("session poll failed")
		return
	}
	if sess.HouseID != a.cfg.HouseID {
		// a requested slot addressed to the other house is not ours to act on
		return
	}

	a.setQuality(sess.Quality)

	switch sess.Status {
	case monitor.StatusRequested:
		if sess.LastRequestTime > a.cache.LastAckedRequestTime() {
			a.acceptRequest(ctx, sess.LastRequestTime)
		}
	case monitor.StatusActive:
		// the server believes we are streaming; recover if we are not
		// (agent restart mid-session)
		if !a.videoRunning() {
			a.startStreaming(ctx)
		}
	case monitor.StatusIdle:
		a.stopStreaming()
		if sess.LastRequestTime > a.cache.LastAckedRequestTime() {
			a.signalOnline(ctx, sess.LastRequestTime)
		}
	}

	switch sess.AudioStatus {
	case monitor.AudioActive:
		if !a.audioRunning() {
			a.startAudioPump(ctx)
		}
	case monitor.AudioIdle:
		a.stopAudioPump()
	}
}

func (a *Agent) acceptRequest(ctx context.Context, requestTime int64) {
	if !a.startStreaming(ctx) {
		// the request was reverted, not deferred: ack it so the same
		// broken camera is not re-opened every tick
		if err := a.cache.SetLastAckedRequestTime(requestTime); err != nil {
			log.Error().Err(err).Msg("persist request ack failed")
		}
		return
	}
	status := monitor.StatusActive
	if _, err := a.api.PostSession(ctx, coordinator.SessionPatch{
		HouseID: a.cfg.HouseID,
		Status:  &status,
	}); err != nil {
		// leave the ack unrecorded so the next poll re-accepts
		log.Warn().Err(err).Msg("accept post failed")
		a.stopStreaming()
		return
	}
	if err := a.cache.SetLastAckedRequestTime(requestTime); err != nil {
		log.Error().Err(err).Msg("persist request ack failed")
	}
}

// startStreaming opens the camera and launches the frame pump. On any
// open failure (permission denial included) the session is reverted to
// idle so the house lock is never held by a worker that is not capturing.
func (a *Agent) startStreaming(ctx context.Context) bool {
	a.mu.Lock()
	if a.stopVideo != nil {
		a.mu.Unlock()
		return true
	}
	a.mu.Unlock()

	stream, err := a.frames.Open(ctx)
	if err != nil {
		if errors.Is(err, ErrPermissionDenied) {
			log.Error().Msg("camera permission denied, reverting session")
		} else {
			log.Error().Err(err).Msg("camera open failed, reverting session")
		}
		a.revertSession(ctx)
		return false
	}

	pumpCtx, cancel := context.WithCancel(context.Background())
	a.mu.Lock()
	a.stopVideo = cancel
	a.mu.Unlock()

	a.videoWG.Add(1)
	go func() {
		defer a.videoWG.Done()
		defer stream.Close()
		a.framePump(pumpCtx, stream)
	}()
	return true
}

func (a *Agent) framePump(ctx context.Context, stream FrameStream) {
	for {
		spec := monitor.SpecFor(a.currentQuality())
		frame, err := stream.Capture(ctx, spec)
		if err != nil {
			if ctx.Err() == nil {
				log.Error().Err(err).Msg("capture failed, ending session")
				a.revertSession(ctx)
			}
			return
		}
		if ctx.Err() != nil {
			return
		}
		a.pushFrame(ctx, frame)
		select {
		case <-ctx.Done():
			return
		case <-a.clock.After(spec.Interval):
		}
	}
}

func (a *Agent) pushFrame(ctx context.Context, frame string) {
	if a.cfg.LiveWS {
		if a.pushFrameWS(frame) {
			return
		}
	}
	pushCtx, cancel := context.WithTimeout(context.Background(), client.RequestTimeout)
	defer cancel()
	if err := a.api.PostFrame(pushCtx, a.cfg.HouseID, frame); err != nil {
		log.Debug().Err(err).Msg("frame post failed")
	}
}

func (a *Agent) stopStreaming() {
	a.mu.Lock()
	cancel := a.stopVideo
	a.stopVideo = nil
	conn := a.wsConn
	a.wsConn = nil
	a.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if conn != nil {
		_ = conn.Close()
	}
}

func (a *Agent) videoRunning() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stopVideo != nil
}

func (a *Agent) startAudioPump(ctx context.Context) {
	a.mu.Lock()
	if a.stopAudio != nil {
		a.mu.Unlock()
		return
	}
	a.mu.Unlock()

	stream, err := a.audio.Open(ctx)
	if err != nil {
		if errors.Is(err, ErrPermissionDenied) {
			log.Error().Msg("microphone permission denied, reverting audio")
		} else {
			log.Error().Err(err).Msg("microphone open failed, reverting audio")
		}
		a.revertAudio(ctx)
		return
	}
	if err := a.cache.SetMicSync(true); err != nil {
		log.Error().Err(err).Msg("persist mic flag failed")
	}

	pumpCtx, cancel := context.WithCancel(context.Background())
	a.mu.Lock()
	a.stopAudio = cancel
	a.mu.Unlock()

	a.audioWG.Add(1)
	go func() {
		defer a.audioWG.Done()
		defer stream.Close()
		a.audioPump(pumpCtx, stream)
	}()
}

func (a *Agent) audioPump(ctx context.Context, stream AudioStream) {
	const chunkInterval = 500 * time.Millisecond
	for {
		chunk, err := stream.Capture(ctx)
		if err != nil {
			if ctx.Err() == nil {
				log.Error().Err(err).Msg("audio capture failed, reverting audio")
				a.revertAudio(ctx)
			}
			return
		}
		pushCtx, cancel := context.WithTimeout(context.Background(), client.RequestTimeout)
		if err := a.api.PostAudio(pushCtx, a.cfg.HouseID, chunk); err != nil {
			log.Debug().Err(err).Msg("audio post failed")
		}
		cancel()
		select {
		case <-ctx.Done():
			return
		case <-a.clock.After(chunkInterval):
		}
	}
}

func (a *Agent) stopAudioPump() {
	a.mu.Lock()
	cancel := a.stopAudio
	a.stopAudio = nil
	a.mu.Unlock()
	if cancel != nil {
		cancel()
		if err := a.cache.SetMicSync(false); err != nil {
			log.Error().Err(err).Msg("persist mic flag failed")
		}
	}
}

func (a *Agent) audioRunning() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stopAudio != nil
}

// revertSession returns the slot to idle after a failed capture start so
// the owner sees the session end rather than a wedged active state.
func (a *Agent) revertSession(ctx context.Context) {
	a.stopStreaming()
	status := monitor.StatusIdle
	if _, err := a.api.PostSession(ctx, coordinator.SessionPatch{
		HouseID: a.cfg.HouseID,
		Status:  &status,
	}); err != nil {
		log.Warn().Err(err).Msg("session revert failed")
	}
}

func (a *Agent) revertAudio(ctx context.Context) {
	audio := monitor.AudioIdle
	if _, err := a.api.PostSession(ctx, coordinator.SessionPatch{
		HouseID:     a.cfg.HouseID,
		AudioStatus: &audio,
	}); err != nil {
		log.Warn().Err(err).Msg("audio revert failed")
	}
}

// signalOnline tells the owner a missed request can be resent now that
// the counter is back.
func (a *Agent) signalOnline(ctx context.Context, requestTime int64) {
	if _, err := a.api.PostSession(ctx, coordinator.SessionPatch{
		HouseID:      a.cfg.HouseID,
		OnlineSignal: true,
	}); err != nil {
		log.Warn().Err(err).Msg("online signal failed")
		return
	}
	if err := a.cache.SetLastAckedRequestTime(requestTime); err != nil {
		log.Error().Err(err).Msg("persist request ack failed")
	}
	log.Info().Str("house_id", a.cfg.HouseID).Msg("signaled counter online")
}

func (a *Agent) setQuality(q monitor.Quality) {
	if !q.Valid() {
		return
	}
	a.mu.Lock()
	a.quality = q
	a.mu.Unlock()
}

func (a *Agent) currentQuality() monitor.Quality {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.quality
}

// pushFrameWS sends one frame over the websocket ingest channel, dialing
// lazily. Any failure drops the connection and reports false so the
// caller falls back to the POST endpoint.
func (a *Agent) pushFrameWS(frame string) bool {
	a.mu.Lock()
	conn := a.wsConn
	a.mu.Unlock()

	if conn == nil {
		var err error
		conn, err = a.dialIngest()
		if err != nil {
			log.Debug().Err(err).Msg("ws ingest dial failed")
			return false
		}
		a.mu.Lock()
		a.wsConn = conn
		a.mu.Unlock()
	}
	msg := livegateway.MediaMessage{Type: "frame", HouseID: a.cfg.HouseID, Data: frame}
	if err := conn.WriteJSON(msg); err != nil {
		log.Debug().Err(err).Msg("ws ingest write failed")
		_ = conn.Close()
		a.mu.Lock()
		a.wsConn = nil
		a.mu.Unlock()
		return false
	}
	return true
}

func (a *Agent) dialIngest() (*websocket.Conn, error) {
	u, err := url.Parse(a.cfg.ServerURL)
	if err != nil {
		return nil, err
	}
	scheme := "ws"
	if u.Scheme == "https" {
		scheme = "wss"
	}
	wsURL := scheme + "://" + u.Host + "/api/live/ingest?house_id=" + a.cfg.HouseID
	header := map[string][]string{}
	if a.cfg.AccessKey != "" {
		header["X-Access-Key"] = []string{a.cfg.AccessKey}
	}
	dialer := websocket.Dialer{HandshakeTimeout: client.RequestTimeout}
	conn, _, err := dialer.Dial(wsURL, header)
	return conn, err
}
