package monitor

// Status is the video channel state of one house's monitoring slot.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusRequested Status = "requested"
	StatusActive    Status = "active"
)

// AudioStatus is the audio sub-channel state. Audio toggles independently
// of the video status; both share the house slot.
type AudioStatus string

const (
	AudioIdle   AudioStatus = "idle"
	AudioActive AudioStatus = "active"
)

// Session is the monitoring slot for one house. It is a plain value:
// transitions go through Apply, which returns the next value plus the
// audit events the transition produced.
type Session struct {
	HouseID              string      `json:"house_id"`
	Status               Status      `json:"status"`
	Quality              Quality     `json:"quality"`
	AudioStatus          AudioStatus `json:"audio_status"`
	LastRequestTime      int64       `json:"last_request_time,omitempty"`
	LastRequestedHouseID string      `json:"last_requested_house_id,omitempty"`
	LastOnlineSignalTime int64       `json:"last_online_signal_time,omitempty"`

	// startedAt is when the slot entered active; it backs the duration on
	// the session-ended event and is never serialized.
	startedAt int64
}

// NewSession returns the idle slot for a house.
func NewSession(houseID string) Session {
	return Session{
		HouseID:     houseID,
		Status:      StatusIdle,
		Quality:     QualityMedium,
		AudioStatus: AudioIdle,
	}
}

// InputKind enumerates the transitions a slot understands.
type InputKind string

const (
	// InputRequest is the owner asking the house to start streaming.
	InputRequest InputKind = "request"
	// InputAccept is the worker confirming it started capturing.
	InputAccept InputKind = "accept"
	// InputEnd terminates the round from either side. Ending a slot that
	// was only requested cancels it silently.
	InputEnd InputKind = "end"
	// InputCancel withdraws a pending request without an audit event.
	InputCancel InputKind = "cancel"
	// InputSetQuality changes the negotiated quality level.
	InputSetQuality InputKind = "set_quality"
	// InputAudioStart / InputAudioStop toggle the audio sub-channel.
	InputAudioStart InputKind = "audio_start"
	InputAudioStop  InputKind = "audio_stop"
	// InputOnlineSignal is the worker announcing it is present and able to
	// stream, typically after having missed a request.
	InputOnlineSignal InputKind = "online_signal"
)

// Input is one requested transition.
type Input struct {
	Kind    InputKind
	Quality Quality
}

// EmittedKind is the audit event class a transition produced.
type EmittedKind string

const (
	EmitVideoRequest  EmittedKind = "video_request"
	EmitSessionEnded  EmittedKind = "video_session_ended"
	EmitCounterOnline EmittedKind = "counter_online"
)

// Emitted is one audit event produced by Apply. DurationMS is set only
// for EmitSessionEnded.
type Emitted struct {
	Kind       EmittedKind
	HouseID    string
	DurationMS int64
}

// Apply runs one transition against the slot and returns the next slot
// value plus any audit events. Duplicate edges are no-ops with no events:
// accepting an already-active slot, ending an idle one, or re-posting the
// current quality all leave the value unchanged.
func Apply(s Session, in Input, nowMS int64) (Session, []Emitted) {
	switch in.Kind {
	case InputRequest:
		// Any state may be re-requested; a new round starts and any
		// in-flight active span is abandoned without a duration event.
		s.Status = StatusRequested
		s.LastRequestTime = nowMS
		s.LastRequestedHouseID = s.HouseID
		s.startedAt = 0
		return s, []Emitted{{Kind: EmitVideoRequest, HouseID: s.HouseID}}
	case InputAccept:
		if s.Status != StatusRequested {
			return s, nil
		}
		s.Status = StatusActive
		s.startedAt = nowMS
		return s, nil
	case InputEnd:
		switch s.Status {
		case StatusActive:
			dur := nowMS - s.startedAt
			if dur < 0 {
				dur = 0
			}
			s.Status = StatusIdle
			s.startedAt = 0
			return s, []Emitted{{Kind: EmitSessionEnded, HouseID: s.HouseID, DurationMS: dur}}
		case StatusRequested:
			s.Status = StatusIdle
			return s, nil
		default:
			return s, nil
		}
	case InputCancel:
		if s.Status == StatusRequested {
			s.Status = StatusIdle
		}
		return s, nil
	case InputSetQuality:
		if !in.Quality.Valid() {
			return s, nil
		}
		s.Quality = in.Quality
		return s, nil
	case InputAudioStart:
		s.AudioStatus = AudioActive
		return s, nil
	case InputAudioStop:
		s.AudioStatus = AudioIdle
		return s, nil
	case InputOnlineSignal:
		s.LastOnlineSignalTime = nowMS
		return s, []Emitted{{Kind: EmitCounterOnline, HouseID: s.HouseID}}
	default:
		return s, nil
	}
}

// StartedAt exposes the active-span start for coordinator bookkeeping.
func (s Session) StartedAt() int64 { return s.startedAt }
