package http

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jonboulle/clockwork"

	"github.com/samlnz/PS-controller/internal/config"
	"github.com/samlnz/PS-controller/internal/coordinator"
	"github.com/samlnz/PS-controller/internal/event"
	"github.com/samlnz/PS-controller/internal/game"
	"github.com/samlnz/PS-controller/internal/livegateway"
	"github.com/samlnz/PS-controller/internal/store"
)

const (
	testAccessKey = "test-access-key"
	testAdminKey  = "test-admin-key"
)

func newTestServer(t *testing.T) (*httptest.Server, *store.Store) {
	t.Helper()
	houses := game.DefaultHouseMap(200)
	st := store.New(houses)
	coord := coordinator.New(houses.Houses(), event.NewLog(100), clockwork.NewRealClock())
	hub := livegateway.NewHub(coord)
	router := NewRouter(st, coord, hub, config.ServerConfig{
		AccessKey:          testAccessKey,
		AdminAPIKey:        testAdminKey,
		CORSAllowedOrigins: []string{"*"},
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, st
}

func doRequest(t *testing.T, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, rd)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	raw, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, raw
}

func authed() map[string]string {
	return map[string]string{"X-Access-Key": testAccessKey}
}

func errorCode(t *testing.T, raw []byte) string {
	t.Helper()
	var out struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("decode error envelope %q: %v", raw, err)
	}
	return out.Error
}

func TestAccessKeyGate(t *testing.T) {
	srv, _ := newTestServer(t)

	cases := []struct {
		name    string
		headers map[string]string
		want    int
	}{
		{"no key", nil, http.StatusUnauthorized},
		{"wrong key", map[string]string{"X-Access-Key": "nope"}, http.StatusUnauthorized},
		{"header key", authed(), http.StatusOK},
		{"bearer key", map[string]string{"Authorization": "Bearer " + testAccessKey}, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, raw := doRequest(t, http.MethodGet, srv.URL+"/api/entries", nil, tc.headers)
			if resp.StatusCode != tc.want {
				t.Fatalf("status %d, want %d (%s)", resp.StatusCode, tc.want, raw)
			}
		})
	}

	// health stays open
	resp, _ := doRequest(t, http.MethodGet, srv.URL+"/healthz", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz gated: %d", resp.StatusCode)
	}
}

func TestEntriesPushCanonicalizes(t *testing.T) {
	srv, _ := newTestServer(t)

	body := map[string]any{"entries": []game.Entry{
		{ID: "b", TVID: "tv1", Timestamp: 200, Amount: 250},
		{ID: "a", TVID: "tv5", Timestamp: 100, Amount: 300},
		{ID: "b", TVID: "tv1", Timestamp: 200, Amount: 250},
	}}
	resp, raw := doRequest(t, http.MethodPost, srv.URL+"/api/entries", body, authed())
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %s", resp.StatusCode, raw)
	}
	var out struct {
		Entries []game.Entry `json:"entries"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Entries) != 2 || out.Entries[0].ID != "a" || out.Entries[1].ID != "b" {
		t.Fatalf("not canonicalized: %+v", out.Entries)
	}
}

func TestEntriesRejectsMissingFields(t *testing.T) {
	srv, st := newTestServer(t)

	body := map[string]any{"entries": []game.Entry{{ID: "", TVID: "tv1", Timestamp: 1}}}
	resp, raw := doRequest(t, http.MethodPost, srv.URL+"/api/entries", body, authed())
	if resp.StatusCode != http.StatusBadRequest || errorCode(t, raw) != "invalid_entry" {
		t.Fatalf("status %d body %s", resp.StatusCode, raw)
	}
	if got := st.Entries(); len(got) != 0 {
		t.Fatalf("rejected push must not mutate: %+v", got)
	}
}

func TestAdminGateOnPurge(t *testing.T) {
	srv, st := newTestServer(t)
	st.ReplaceEntries([]game.Entry{{ID: "a", TVID: "tv1", Timestamp: 1, Amount: 200}})

	resp, _ := doRequest(t, http.MethodDelete, srv.URL+"/api/entries", nil, authed())
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("purge without admin key: %d", resp.StatusCode)
	}
	if got := st.Entries(); len(got) != 1 {
		t.Fatalf("entries purged without authorization")
	}

	headers := authed()
	headers["X-Admin-Key"] = testAdminKey
	resp, _ = doRequest(t, http.MethodDelete, srv.URL+"/api/entries", nil, headers)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("purge with admin key: %d", resp.StatusCode)
	}
	if got := st.Entries(); len(got) != 0 {
		t.Fatalf("entries survived purge: %+v", got)
	}
}

func TestPricesClampToBase(t *testing.T) {
	srv, _ := newTestServer(t)

	body := map[string]any{"prices": map[string]int64{"tv1": 150, "tv5": 400}}
	resp, raw := doRequest(t, http.MethodPost, srv.URL+"/api/prices", body, authed())
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %s", resp.StatusCode, raw)
	}
	var out struct {
		Prices map[string]int64 `json:"prices"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Prices["tv1"] != 200 {
		t.Fatalf("tv1 not clamped to base: %d", out.Prices["tv1"])
	}
	if out.Prices["tv5"] != 400 {
		t.Fatalf("tv5 override lost: %d", out.Prices["tv5"])
	}
}

func TestThresholdPartialMerge(t *testing.T) {
	srv, _ := newTestServer(t)

	five := 5
	resp, raw := doRequest(t, http.MethodPost, srv.URL+"/api/thresholds", store.ThresholdPatch{House1: &five}, authed())
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %s", resp.StatusCode, raw)
	}
	var out struct {
		House1 int `json:"house1"`
		House2 int `json:"house2"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.House1 != 5 || out.House2 != 2 {
		t.Fatalf("partial merge wrong: %+v", out)
	}
}

func TestVideoSessionErrors(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, raw := doRequest(t, http.MethodPost, srv.URL+"/api/video-session",
		map[string]any{"house_id": "house9", "status": "requested"}, authed())
	if resp.StatusCode != http.StatusBadRequest || errorCode(t, raw) != "unknown_house" {
		t.Fatalf("status %d body %s", resp.StatusCode, raw)
	}

	resp, raw = doRequest(t, http.MethodPost, srv.URL+"/api/video-session",
		map[string]any{"house_id": game.House1, "status": "bogus"}, authed())
	if resp.StatusCode != http.StatusBadRequest || errorCode(t, raw) != "invalid_status" {
		t.Fatalf("status %d body %s", resp.StatusCode, raw)
	}

	resp, raw = doRequest(t, http.MethodPost, srv.URL+"/api/video-session",
		map[string]any{"house_id": game.House1, "quality": "ultra"}, authed())
	if resp.StatusCode != http.StatusBadRequest || errorCode(t, raw) != "invalid_quality" {
		t.Fatalf("status %d body %s", resp.StatusCode, raw)
	}
}

func TestEventsPostAcceptsOnlyYieldAlerts(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, raw := doRequest(t, http.MethodPost, srv.URL+"/api/events",
		map[string]string{"type": event.TypeVideoRequest, "house_id": game.House1}, authed())
	if resp.StatusCode != http.StatusBadRequest || errorCode(t, raw) != "invalid_event_type" {
		t.Fatalf("status %d body %s", resp.StatusCode, raw)
	}

	resp, raw = doRequest(t, http.MethodPost, srv.URL+"/api/events",
		map[string]string{"type": event.TypeYieldAlert, "house_id": game.House1}, authed())
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %s", resp.StatusCode, raw)
	}
	var ev event.Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.ID == "" || ev.Type != event.TypeYieldAlert {
		t.Fatalf("bad stored event: %+v", ev)
	}
}

func TestMediaRoundTrip(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, raw := doRequest(t, http.MethodPost, srv.URL+"/api/video-frame",
		map[string]string{"house_id": game.House1, "frame": "jpeg-bytes"}, authed())
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %s", resp.StatusCode, raw)
	}

	resp, raw = doRequest(t, http.MethodGet, srv.URL+"/api/video-frame?house_id="+game.House1, nil, authed())
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %s", resp.StatusCode, raw)
	}
	var out struct {
		Frame      string `json:"frame"`
		ReceivedAt int64  `json:"received_at"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Frame != "jpeg-bytes" || out.ReceivedAt == 0 {
		t.Fatalf("round trip lost data: %+v", out)
	}

	// unknown house on the audio slot takes the same path
	resp, raw = doRequest(t, http.MethodPost, srv.URL+"/api/audio-chunk",
		map[string]string{"house_id": "house9", "data": "pcm"}, authed())
	if resp.StatusCode != http.StatusBadRequest || errorCode(t, raw) != "unknown_house" {
		t.Fatalf("status %d body %s", resp.StatusCode, raw)
	}
}
