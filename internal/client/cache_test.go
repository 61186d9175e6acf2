package client

import (
	"path/filepath"
	"testing"

	"github.com/samlnz/PS-controller/internal/game"
)

func TestCacheSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	c, err := OpenCache(path)
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	entries := []game.Entry{{ID: "a", TVID: "tv1", Timestamp: 10, Amount: 200}}
	if err := c.SetEntries(entries); err != nil {
		t.Fatalf("set entries: %v", err)
	}
	if err := c.SetLastAckedRequestTime(12345); err != nil {
		t.Fatalf("set last acked: %v", err)
	}
	if err := c.SetMicSync(true); err != nil {
		t.Fatalf("set mic sync: %v", err)
	}

	reopened, err := OpenCache(path)
	if err != nil {
		t.Fatalf("reopen cache: %v", err)
	}
	if got := reopened.Entries(); len(got) != 1 || got[0].ID != "a" {
		t.Fatalf("entries lost: %+v", got)
	}
	if reopened.LastAckedRequestTime() != 12345 {
		t.Fatalf("last acked lost")
	}
	if !reopened.MicSync() {
		t.Fatalf("mic sync flag lost")
	}
}

func TestCacheMissingFileStartsEmpty(t *testing.T) {
	c, err := OpenCache(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	if len(c.Entries()) != 0 || c.LastAckedRequestTime() != 0 {
		t.Fatalf("expected empty state")
	}
}

func TestPurgeKeepsHandshakeState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	c, _ := OpenCache(path)
	_ = c.SetEntries([]game.Entry{{ID: "a", TVID: "tv1", Timestamp: 1}})
	_ = c.SetPrices(map[string]int64{"tv1": 300})
	_ = c.SetLastAckedRequestTime(99)

	if err := c.Purge(); err != nil {
		t.Fatalf("purge: %v", err)
	}
	if len(c.Entries()) != 0 || len(c.Prices()) != 0 {
		t.Fatalf("purge left data behind")
	}
	if c.LastAckedRequestTime() != 99 {
		t.Fatalf("purge must not clear the ack timestamp")
	}
}
