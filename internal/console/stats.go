package console

import (
	"github.com/samlnz/PS-controller/internal/alert"
	"github.com/samlnz/PS-controller/internal/game"
)

// HouseStats is the derived dashboard row for one house.
type HouseStats struct {
	HouseID       string `json:"house_id"`
	Revenue       int64  `json:"revenue"`
	Games         int    `json:"games"`
	GamesLastHour int    `json:"games_last_hour"`
	Online        bool   `json:"online"`
}

// BuildStats aggregates the entry list per house. Separators count toward
// nothing here; they only matter to the per-TV visual counter.
func BuildStats(entries []game.Entry, houses *game.HouseMap, status map[string]bool, nowMS int64) []HouseStats {
	out := make([]HouseStats, 0, 2)
	for _, houseID := range houses.Houses() {
		s := HouseStats{HouseID: houseID, Online: status[houseID]}
		for _, e := range entries {
			if e.IsSeparator || houses.HouseOf(e.TVID) != houseID {
				continue
			}
			s.Revenue += e.Amount
			s.Games++
		}
		s.GamesLastHour = game.CountInWindow(entries, houses, houseID, nowMS, alert.Window)
		out = append(out, s)
	}
	return out
}
