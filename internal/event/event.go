package event

import (
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Event types in the audit log.
const (
	TypeVideoRequest  = "video_request"
	TypeYieldAlert    = "yield_alert"
	TypeCounterOnline = "counter_online"
	TypeSessionEnded  = "video_session_ended"
)

// Event is one audit log record. IDs are server-issued ULIDs, so insertion
// order and lexicographic ID order agree. DurationMS is only set for
// video_session_ended.
type Event struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	HouseID    string `json:"house_id"`
	Timestamp  int64  `json:"timestamp"`
	DurationMS int64  `json:"duration,omitempty"`
}

// ValidType reports whether t is one of the known event types.
func ValidType(t string) bool {
	switch t {
	case TypeVideoRequest, TypeYieldAlert, TypeCounterOnline, TypeSessionEnded:
		return true
	}
	return false
}

var (
	ulidEntropy   = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
	ulidEntropyMu sync.Mutex
)

// NewID returns a monotonic ULID for an event.
func NewID() string {
	ulidEntropyMu.Lock()
	defer ulidEntropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulidEntropy).String()
}
