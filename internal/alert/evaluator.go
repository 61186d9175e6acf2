// Package alert holds the owner-side low-yield evaluator. Arm state lives
// in the evaluating process only: a reload re-arms every house, and two
// concurrently running consoles each fire their own alerts. That matches
// the deployed behavior and is deliberate.
package alert

import (
	"github.com/samlnz/PS-controller/internal/game"
)

// Window is the sliding throughput window, in milliseconds.
const Window = int64(3_600_000)

// Thresholds is the minimum games-per-hour per house before a low-yield
// alert fires.
type Thresholds struct {
	House1 int `json:"house1"`
	House2 int `json:"house2"`
}

// DefaultThresholds matches the stock deployment.
func DefaultThresholds() Thresholds { return Thresholds{House1: 2, House2: 2} }

// For returns the threshold for a house, 0 for an unknown one.
func (t Thresholds) For(houseID string) int {
	switch houseID {
	case game.House1:
		return t.House1
	case game.House2:
		return t.House2
	}
	return 0
}

// Evaluator is edge-triggered: a house below threshold fires once and then
// stays flagged until its count recovers to or above the threshold, which
// re-arms it for the next breach.
type Evaluator struct {
	houses  *game.HouseMap
	flagged map[string]bool
}

func NewEvaluator(houses *game.HouseMap) *Evaluator {
	return &Evaluator{
		houses:  houses,
		flagged: map[string]bool{},
	}
}

// Evaluate recomputes the rolling hourly count for every house and returns
// the houses that newly crossed below their threshold on this pass.
func (e *Evaluator) Evaluate(entries []game.Entry, th Thresholds, nowMS int64) []string {
	var breached []string
	for _, houseID := range e.houses.Houses() {
		threshold := th.For(houseID)
		count := game.CountInWindow(entries, e.houses, houseID, nowMS, Window)
		switch {
		case count >= threshold:
			e.flagged[houseID] = false
		case !e.flagged[houseID]:
			e.flagged[houseID] = true
			breached = append(breached, houseID)
		}
	}
	return breached
}
