package game

// TV describes one configured television: which house it sits in and the
// minimum price a game on it may be charged at.
type TV struct {
	ID        string
	HouseID   string
	BasePrice int64
}

// HouseMap is the configured partition of TVs between the two houses.
// It is built once at startup and read-only afterwards.
type HouseMap struct {
	tvs   map[string]TV
	order []string
}

func NewHouseMap(tvs []TV) *HouseMap {
	m := &HouseMap{tvs: make(map[string]TV, len(tvs))}
	for _, tv := range tvs {
		if _, ok := m.tvs[tv.ID]; ok {
			continue
		}
		m.tvs[tv.ID] = tv
		m.order = append(m.order, tv.ID)
	}
	return m
}

// DefaultHouseMap mirrors the standard deployment: tv1-tv4 in house1,
// tv5-tv8 in house2, all at the same base price.
func DefaultHouseMap(basePrice int64) *HouseMap {
	tvs := []TV{
		{ID: "tv1", HouseID: House1, BasePrice: basePrice},
		{ID: "tv2", HouseID: House1, BasePrice: basePrice},
		{ID: "tv3", HouseID: House1, BasePrice: basePrice},
		{ID: "tv4", HouseID: House1, BasePrice: basePrice},
		{ID: "tv5", HouseID: House2, BasePrice: basePrice},
		{ID: "tv6", HouseID: House2, BasePrice: basePrice},
		{ID: "tv7", HouseID: House2, BasePrice: basePrice},
		{ID: "tv8", HouseID: House2, BasePrice: basePrice},
	}
	return NewHouseMap(tvs)
}

// HouseOf returns the house a TV belongs to, or "" for an unknown TV.
func (m *HouseMap) HouseOf(tvID string) string {
	return m.tvs[tvID].HouseID
}

// BasePrice returns the configured floor price for a TV, or 0 for an
// unknown TV (unknown TVs have no floor).
func (m *HouseMap) BasePrice(tvID string) int64 {
	return m.tvs[tvID].BasePrice
}

// TVIDs returns all configured TV IDs in configuration order.
func (m *HouseMap) TVIDs() []string {
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// Houses returns the distinct house IDs in configuration order.
func (m *HouseMap) Houses() []string {
	seen := map[string]bool{}
	out := []string{}
	for _, id := range m.order {
		h := m.tvs[id].HouseID
		if h == "" || seen[h] {
			continue
		}
		seen[h] = true
		out = append(out, h)
	}
	return out
}

// Known reports whether a TV is part of the configured layout.
func (m *HouseMap) Known(tvID string) bool {
	_, ok := m.tvs[tvID]
	return ok
}
