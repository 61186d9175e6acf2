// Package livegateway is the push side of live monitoring: an SSE stream
// of audit events for the owner dashboard, and websocket channels for
// frame/audio ingest and watch. The polling HTTP surface stays canonical;
// everything here is a lower-latency mirror of the same state.
package livegateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/samlnz/PS-controller/internal/event"
)

var ssePingInterval = 15 * time.Second

// EventsHandler streams the audit log over SSE. Last-Event-ID replays the
// retained tail so a reconnecting dashboard misses nothing the server
// still holds.
func EventsHandler(evlog *event.Log) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"stream_not_supported"}`))
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")

		lastEventID := r.Header.Get("Last-Event-ID")
		for _, ev := range evlog.ReplayAfter(lastEventID) {
			if err := writeSSE(w, ev.ID, ev.Type, ev); err != nil {
				return
			}
		}
		flusher.Flush()

		ch := evlog.Subscribe()
		defer evlog.Unsubscribe(ch)
		ticker := time.NewTicker(ssePingInterval)
		defer ticker.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case ev, ok := <-ch:
				if !ok {
					return
				}
				if err := writeSSE(w, ev.ID, ev.Type, ev); err != nil {
					return
				}
				flusher.Flush()
			case <-ticker.C:
				ping := map[string]any{"ts": time.Now().UnixMilli()}
				if err := writeSSE(w, "", "ping", ping); err != nil {
					return
				}
				flusher.Flush()
			}
		}
	}
}

func writeSSE(w http.ResponseWriter, id, name string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if id != "" {
		if _, err := fmt.Fprintf(w, "id: %s\n", id); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "event: %s\n", name); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	return nil
}
