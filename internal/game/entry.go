package game

import (
	"sort"

	"github.com/google/uuid"
)

// House identifiers. The deployment runs exactly two physical locations;
// every TV belongs to one of them.
const (
	House1 = "house1"
	House2 = "house2"
)

// Entry is one logged game on a TV, or a separator marker. Entries are
// immutable once created: the collection only changes by bulk replacement
// or a full purge. IDs are client-generated.
type Entry struct {
	ID          string `json:"id"`
	TVID        string `json:"tv_id"`
	Timestamp   int64  `json:"timestamp"`
	Completed   bool   `json:"completed"`
	Amount      int64  `json:"amount"`
	IsSeparator bool   `json:"is_separator,omitempty"`
}

// NewEntry builds a logged game on a TV with a fresh client-generated ID.
func NewEntry(tvID string, amount int64, completed bool, nowMS int64) Entry {
	return Entry{
		ID:        uuid.NewString(),
		TVID:      tvID,
		Timestamp: nowMS,
		Completed: completed,
		Amount:    amount,
	}
}

// NewSeparator builds a shift-boundary marker for a TV. Separators carry
// no amount and never count toward revenue or activity.
func NewSeparator(tvID string, nowMS int64) Entry {
	return Entry{
		ID:          uuid.NewString(),
		TVID:        tvID,
		Timestamp:   nowMS,
		IsSeparator: true,
	}
}

// Merge reconciles a local entry list with a remote one: union keyed by ID,
// the local copy winning on collision, sorted ascending by timestamp.
// The sort is stable with respect to ID for equal timestamps so repeated
// merges of the same inputs produce identical output.
func Merge(local, remote []Entry) []Entry {
	byID := make(map[string]Entry, len(local)+len(remote))
	for _, e := range remote {
		byID[e.ID] = e
	}
	for _, e := range local {
		byID[e.ID] = e
	}
	out := make([]Entry, 0, len(byID))
	for _, e := range byID {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp == out[j].Timestamp {
			return out[i].ID < out[j].ID
		}
		return out[i].Timestamp < out[j].Timestamp
	})
	return out
}

// Revenue sums the amounts of non-separator entries.
func Revenue(entries []Entry) int64 {
	var total int64
	for _, e := range entries {
		if e.IsSeparator {
			continue
		}
		total += e.Amount
	}
	return total
}

// CountInWindow counts non-separator entries for one house whose timestamp
// falls inside [now-window, now]. Window and timestamps are milliseconds.
func CountInWindow(entries []Entry, houses *HouseMap, houseID string, now, window int64) int {
	n := 0
	for _, e := range entries {
		if e.IsSeparator {
			continue
		}
		if houses.HouseOf(e.TVID) != houseID {
			continue
		}
		if e.Timestamp >= now-window && e.Timestamp <= now {
			n++
		}
	}
	return n
}
