// Package store holds the server's canonical state: game entries, TV price
// overrides, and house alert thresholds. Everything lives in process memory
// and resets on restart; that is the deployed semantic, not an oversight.
package store

import (
	"sync"

	"github.com/samlnz/PS-controller/internal/alert"
	"github.com/samlnz/PS-controller/internal/game"
)

type Store struct {
	mu         sync.Mutex
	houses     *game.HouseMap
	entries    []game.Entry
	prices     map[string]int64
	thresholds alert.Thresholds
}

func New(houses *game.HouseMap) *Store {
	s := &Store{
		houses:     houses,
		prices:     map[string]int64{},
		thresholds: alert.DefaultThresholds(),
	}
	for _, id := range houses.TVIDs() {
		s.prices[id] = houses.BasePrice(id)
	}
	return s
}

func (s *Store) Houses() *game.HouseMap { return s.houses }

// Entries returns a copy of the canonical entry list.
func (s *Store) Entries() []game.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]game.Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// ReplaceEntries overwrites the whole collection. The stored form is
// canonicalized (deduplicated by id, sorted by timestamp) so a client
// pushing an already-converged merge result changes nothing.
func (s *Store) ReplaceEntries(entries []game.Entry) []game.Entry {
	canonical := game.Merge(entries, nil)
	s.mu.Lock()
	s.entries = canonical
	s.mu.Unlock()
	return canonical
}

// PurgeEntries drops every entry. Irreversible.
func (s *Store) PurgeEntries() {
	s.mu.Lock()
	s.entries = nil
	s.mu.Unlock()
}

// Prices returns a copy of the tv -> price map.
func (s *Store) Prices() map[string]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int64, len(s.prices))
	for k, v := range s.prices {
		out[k] = v
	}
	return out
}

// SetPrices replaces the price map. Each write is clamped up to the TV's
// configured base price at write time, so a stored price is never below
// the floor no matter what the client sent.
func (s *Store) SetPrices(prices map[string]int64) map[string]int64 {
	s.mu.Lock()
	for tvID, price := range prices {
		if base := s.houses.BasePrice(tvID); price < base {
			price = base
		}
		s.prices[tvID] = price
	}
	s.mu.Unlock()
	return s.Prices()
}

func (s *Store) Thresholds() alert.Thresholds {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.thresholds
}

// ThresholdPatch is a merge-update: absent fields keep their value.
type ThresholdPatch struct {
	House1 *int `json:"house1"`
	House2 *int `json:"house2"`
}

func (s *Store) MergeThresholds(patch ThresholdPatch) alert.Thresholds {
	s.mu.Lock()
	defer s.mu.Unlock()
	if patch.House1 != nil {
		s.thresholds.House1 = *patch.House1
	}
	if patch.House2 != nil {
		s.thresholds.House2 = *patch.House2
	}
	return s.thresholds
}
