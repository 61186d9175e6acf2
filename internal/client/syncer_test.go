package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/samlnz/PS-controller/internal/game"
)

// fakeServer is a minimal in-memory /api/entries endpoint.
type fakeServer struct {
	mu      sync.Mutex
	entries []game.Entry
	prices  map[string]int64
	pushes  int
	deletes int
	fail    bool
}

func (f *fakeServer) pricesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.fail {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"prices": f.prices})
	}
}

func (f *fakeServer) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.fail {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		switch r.Method {
		case http.MethodGet:
			_ = json.NewEncoder(w).Encode(map[string]any{"entries": f.entries})
		case http.MethodPost:
			var body struct {
				Entries []game.Entry `json:"entries"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			f.entries = game.Merge(body.Entries, nil)
			f.pushes++
			_ = json.NewEncoder(w).Encode(map[string]any{"entries": f.entries})
		case http.MethodDelete:
			f.entries = nil
			f.deletes++
			_ = json.NewEncoder(w).Encode(map[string]any{"entries": []game.Entry{}})
		}
	}
}

func newTestSyncer(t *testing.T, f *fakeServer) (*Syncer, *Cache) {
	t.Helper()
	mux := http.NewServeMux()
	mux.Handle("/api/entries", f.handler())
	mux.Handle("/api/prices", f.pricesHandler())
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	cache, err := OpenCache(filepath.Join(t.TempDir(), "state.json"))
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	return NewSyncer(NewAPI(srv.URL, "", ""), cache), cache
}

func (f *fakeServer) snapshot() ([]game.Entry, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]game.Entry(nil), f.entries...), f.pushes
}

func TestFetchMergesAndPushesBackWhenGrown(t *testing.T) {
	f := &fakeServer{entries: []game.Entry{{ID: "r", TVID: "tv5", Timestamp: 20, Amount: 200}}}
	s, cache := newTestSyncer(t, f)
	_ = cache.SetEntries([]game.Entry{{ID: "l", TVID: "tv1", Timestamp: 10, Amount: 200}})

	got := s.FetchEntries(context.Background())
	if len(got) != 2 {
		t.Fatalf("expected 2 merged entries, got %+v", got)
	}
	remote, pushes := f.snapshot()
	if pushes != 1 {
		t.Fatalf("merge grew the remote view, expected 1 replication push, got %d", pushes)
	}
	if len(remote) != 2 {
		t.Fatalf("remote did not converge: %+v", remote)
	}

	// second fetch is converged: no further push
	got = s.FetchEntries(context.Background())
	if len(got) != 2 {
		t.Fatalf("converged fetch wrong: %+v", got)
	}
	if _, pushes := f.snapshot(); pushes != 1 {
		t.Fatalf("idempotent fetch must not re-push, got %d pushes", pushes)
	}
}

func TestFetchNoPushWhenRemoteAlreadyCovers(t *testing.T) {
	f := &fakeServer{entries: []game.Entry{{ID: "r", TVID: "tv5", Timestamp: 20, Amount: 200}}}
	s, _ := newTestSyncer(t, f)

	if got := s.FetchEntries(context.Background()); len(got) != 1 {
		t.Fatalf("expected 1 entry, got %+v", got)
	}
	if _, pushes := f.snapshot(); pushes != 0 {
		t.Fatalf("nothing to replicate, got %d pushes", pushes)
	}
}

func TestFetchFailureServesCache(t *testing.T) {
	f := &fakeServer{fail: true}
	s, cache := newTestSyncer(t, f)
	_ = cache.SetEntries([]game.Entry{{ID: "l", TVID: "tv1", Timestamp: 10, Amount: 200}})

	got := s.FetchEntries(context.Background())
	if len(got) != 1 || got[0].ID != "l" {
		t.Fatalf("expected cached entries on failure, got %+v", got)
	}
}

func TestCommitPersistsLocallyThenPushes(t *testing.T) {
	f := &fakeServer{}
	s, cache := newTestSyncer(t, f)

	entries := []game.Entry{{ID: "n", TVID: "tv2", Timestamp: 30, Amount: 200}}
	if err := s.CommitEntries(entries); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if got := cache.Entries(); len(got) != 1 {
		t.Fatalf("local cache not updated: %+v", got)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		if remote, _ := f.snapshot(); len(remote) == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("background push never arrived")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestCommitSwallowsPushFailure(t *testing.T) {
	f := &fakeServer{fail: true}
	s, cache := newTestSyncer(t, f)

	if err := s.CommitEntries([]game.Entry{{ID: "n", TVID: "tv2", Timestamp: 30}}); err != nil {
		t.Fatalf("commit must not surface push failure: %v", err)
	}
	if got := cache.Entries(); len(got) != 1 {
		t.Fatalf("local cache must still hold the commit: %+v", got)
	}
}

func TestPurgeAllClearsBothSides(t *testing.T) {
	f := &fakeServer{entries: []game.Entry{{ID: "r", TVID: "tv5", Timestamp: 20}}}
	s, cache := newTestSyncer(t, f)
	_ = cache.SetEntries([]game.Entry{{ID: "l", TVID: "tv1", Timestamp: 10}})

	if err := s.PurgeAll(context.Background()); err != nil {
		t.Fatalf("purge: %v", err)
	}
	if len(cache.Entries()) != 0 {
		t.Fatalf("local cache not purged")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deletes != 1 || len(f.entries) != 0 {
		t.Fatalf("remote not purged: deletes=%d entries=%+v", f.deletes, f.entries)
	}
}

func TestFetchPricesCachesAndFallsBack(t *testing.T) {
	f := &fakeServer{prices: map[string]int64{"tv1": 300}}
	s, cache := newTestSyncer(t, f)

	got := s.FetchPrices(context.Background())
	if got["tv1"] != 300 {
		t.Fatalf("expected remote price 300, got %+v", got)
	}
	if cache.Prices()["tv1"] != 300 {
		t.Fatalf("price not persisted to cache")
	}

	f.mu.Lock()
	f.fail = true
	f.mu.Unlock()
	if got := s.FetchPrices(context.Background()); got["tv1"] != 300 {
		t.Fatalf("expected cached price through outage, got %+v", got)
	}
}
