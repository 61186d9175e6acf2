// Package client is the plumbing both daemons share: the HTTP API client,
// the file-backed local cache, and the entry syncer that reconciles the
// two. Read paths never surface remote failures to callers; they fall back
// to the cache.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/samlnz/PS-controller/internal/alert"
	"github.com/samlnz/PS-controller/internal/coordinator"
	"github.com/samlnz/PS-controller/internal/event"
	"github.com/samlnz/PS-controller/internal/game"
	"github.com/samlnz/PS-controller/internal/monitor"
	"github.com/samlnz/PS-controller/internal/store"
)

// RequestTimeout bounds every remote call so a dead server degrades to
// cached data instead of a hang.
const RequestTimeout = 3 * time.Second

type API struct {
	baseURL   string
	accessKey string
	adminKey  string
	http      *http.Client
}

func NewAPI(baseURL, accessKey, adminKey string) *API {
	return &API{
		baseURL:   strings.TrimRight(baseURL, "/"),
		accessKey: accessKey,
		adminKey:  adminKey,
		http:      &http.Client{Timeout: RequestTimeout},
	}
}

func (a *API) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if a.accessKey != "" {
		req.Header.Set("X-Access-Key", a.accessKey)
	}
	if a.adminKey != "" {
		req.Header.Set("X-Admin-Key", a.adminKey)
	}
	resp, err := a.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (a *API) FetchEntries(ctx context.Context) ([]game.Entry, error) {
	var out struct {
		Entries []game.Entry `json:"entries"`
	}
	if err := a.do(ctx, http.MethodGet, "/api/entries", nil, &out); err != nil {
		return nil, err
	}
	return out.Entries, nil
}

func (a *API) PushEntries(ctx context.Context, entries []game.Entry) ([]game.Entry, error) {
	var out struct {
		Entries []game.Entry `json:"entries"`
	}
	body := map[string]any{"entries": entries}
	if err := a.do(ctx, http.MethodPost, "/api/entries", body, &out); err != nil {
		return nil, err
	}
	return out.Entries, nil
}

func (a *API) PurgeEntries(ctx context.Context) error {
	return a.do(ctx, http.MethodDelete, "/api/entries", nil, nil)
}

func (a *API) Prices(ctx context.Context) (map[string]int64, error) {
	var out struct {
		Prices map[string]int64 `json:"prices"`
	}
	if err := a.do(ctx, http.MethodGet, "/api/prices", nil, &out); err != nil {
		return nil, err
	}
	return out.Prices, nil
}

func (a *API) PushPrices(ctx context.Context, prices map[string]int64) (map[string]int64, error) {
	var out struct {
		Prices map[string]int64 `json:"prices"`
	}
	body := map[string]any{"prices": prices}
	if err := a.do(ctx, http.MethodPost, "/api/prices", body, &out); err != nil {
		return nil, err
	}
	return out.Prices, nil
}

func (a *API) Thresholds(ctx context.Context) (alert.Thresholds, error) {
	var out alert.Thresholds
	err := a.do(ctx, http.MethodGet, "/api/thresholds", nil, &out)
	return out, err
}

func (a *API) MergeThresholds(ctx context.Context, patch store.ThresholdPatch) (alert.Thresholds, error) {
	var out alert.Thresholds
	err := a.do(ctx, http.MethodPost, "/api/thresholds", patch, &out)
	return out, err
}

func (a *API) Heartbeat(ctx context.Context, houseID string) error {
	body := map[string]string{"house_id": houseID}
	return a.do(ctx, http.MethodPost, "/api/heartbeat", body, nil)
}

func (a *API) HouseStatus(ctx context.Context) (map[string]bool, error) {
	out := map[string]bool{}
	err := a.do(ctx, http.MethodGet, "/api/house-status", nil, &out)
	return out, err
}

func (a *API) Session(ctx context.Context, houseID string) (monitor.Session, error) {
	var out monitor.Session
	err := a.do(ctx, http.MethodGet, "/api/video-session?house_id="+houseID, nil, &out)
	return out, err
}

func (a *API) PostSession(ctx context.Context, patch coordinator.SessionPatch) (monitor.Session, error) {
	var out monitor.Session
	err := a.do(ctx, http.MethodPost, "/api/video-session", patch, &out)
	return out, err
}

func (a *API) PostFrame(ctx context.Context, houseID, data string) error {
	body := map[string]string{"house_id": houseID, "frame": data}
	return a.do(ctx, http.MethodPost, "/api/video-frame", body, nil)
}

func (a *API) Frame(ctx context.Context, houseID string) (string, error) {
	var out struct {
		Frame string `json:"frame"`
	}
	err := a.do(ctx, http.MethodGet, "/api/video-frame?house_id="+houseID, nil, &out)
	return out.Frame, err
}

func (a *API) PostAudio(ctx context.Context, houseID, data string) error {
	body := map[string]string{"house_id": houseID, "data": data}
	return a.do(ctx, http.MethodPost, "/api/audio-chunk", body, nil)
}

func (a *API) Events(ctx context.Context, limit int) ([]event.Event, error) {
	path := "/api/events"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out struct {
		Events []event.Event `json:"events"`
	}
	if err := a.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Events, nil
}

func (a *API) PostYieldAlert(ctx context.Context, houseID string) (event.Event, error) {
	var out event.Event
	body := map[string]string{"type": event.TypeYieldAlert, "house_id": houseID}
	err := a.do(ctx, http.MethodPost, "/api/events", body, &out)
	return out, err
}
