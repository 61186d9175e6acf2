package client

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/samlnz/PS-controller/internal/game"
)

// state is everything a client persists across restarts. Fixed field names
// keep the file readable by every version of both daemons.
type state struct {
	Entries              []game.Entry     `json:"entries"`
	Prices               map[string]int64 `json:"prices"`
	LastAckedRequestTime int64            `json:"last_acked_request_time"`
	MicSync              bool             `json:"mic_sync"`
}

// Cache is the file-backed local state. Every mutator persists
// synchronously; the file survives restarts and is cleared only by an
// explicit purge.
type Cache struct {
	path string
	mu   sync.Mutex
	st   state
}

func OpenCache(path string) (*Cache, error) {
	c := &Cache{path: path, st: state{Prices: map[string]int64{}}}
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return c, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &c.st); err != nil {
		return nil, err
	}
	if c.st.Prices == nil {
		c.st.Prices = map[string]int64{}
	}
	return c, nil
}

func (c *Cache) Entries() []game.Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]game.Entry, len(c.st.Entries))
	copy(out, c.st.Entries)
	return out
}

func (c *Cache) SetEntries(entries []game.Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.st.Entries = append([]game.Entry(nil), entries...)
	return c.save()
}

func (c *Cache) Prices() map[string]int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]int64, len(c.st.Prices))
	for k, v := range c.st.Prices {
		out[k] = v
	}
	return out
}

func (c *Cache) SetPrices(prices map[string]int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.st.Prices = make(map[string]int64, len(prices))
	for k, v := range prices {
		c.st.Prices[k] = v
	}
	return c.save()
}

func (c *Cache) LastAckedRequestTime() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.st.LastAckedRequestTime
}

func (c *Cache) SetLastAckedRequestTime(ts int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.st.LastAckedRequestTime = ts
	return c.save()
}

func (c *Cache) MicSync() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.st.MicSync
}

func (c *Cache) SetMicSync(on bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.st.MicSync = on
	return c.save()
}

// Purge clears entries and prices but keeps the request-ack timestamp and
// mic flag: purging data is not forgetting the monitoring handshake.
func (c *Cache) Purge() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.st.Entries = nil
	c.st.Prices = map[string]int64{}
	return c.save()
}

// save writes via a temp file and rename so a crash mid-write never leaves
// a torn state file.
func (c *Cache) save() error {
	raw, err := json.Marshal(c.st)
	if err != nil {
		return err
	}
	tmp := c.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, c.path)
}
