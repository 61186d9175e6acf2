package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/samlnz/PS-controller/internal/coordinator"
	"github.com/samlnz/PS-controller/internal/event"
	"github.com/samlnz/PS-controller/internal/game"
	"github.com/samlnz/PS-controller/internal/store"
)

// Every mutating endpoint answers with the resulting canonical state, not
// a bare ack, so callers reconcile without a second round trip.

func entriesHandler(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, map[string]any{"entries": st.Entries()})
		case http.MethodPost:
			var body struct {
				Entries []game.Entry `json:"entries"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				writeHTTPError(w, http.StatusBadRequest, "invalid_json")
				return
			}
			for _, e := range body.Entries {
				if e.ID == "" || e.TVID == "" {
					writeHTTPError(w, http.StatusBadRequest, "invalid_entry")
					return
				}
			}
			stored := st.ReplaceEntries(body.Entries)
			entriesReplacedTotal.Add(1)
			writeJSON(w, map[string]any{"entries": stored})
		default:
			writeHTTPError(w, http.StatusMethodNotAllowed, "method_not_allowed")
		}
	}
}

func entriesPurgeHandler(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st.PurgeEntries()
		entriesPurgedTotal.Add(1)
		writeJSON(w, map[string]any{"entries": []game.Entry{}})
	}
}

func pricesHandler(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, map[string]any{"prices": st.Prices()})
		case http.MethodPost:
			var body struct {
				Prices map[string]int64 `json:"prices"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				writeHTTPError(w, http.StatusBadRequest, "invalid_json")
				return
			}
			if body.Prices == nil {
				writeHTTPError(w, http.StatusBadRequest, "invalid_request")
				return
			}
			writeJSON(w, map[string]any{"prices": st.SetPrices(body.Prices)})
		default:
			writeHTTPError(w, http.StatusMethodNotAllowed, "method_not_allowed")
		}
	}
}

func thresholdsHandler(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, st.Thresholds())
		case http.MethodPost:
			var patch store.ThresholdPatch
			if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
				writeHTTPError(w, http.StatusBadRequest, "invalid_json")
				return
			}
			writeJSON(w, st.MergeThresholds(patch))
		default:
			writeHTTPError(w, http.StatusMethodNotAllowed, "method_not_allowed")
		}
	}
}

func heartbeatHandler(coord *coordinator.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			HouseID string `json:"house_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		if err := coord.Heartbeat(body.HouseID); err != nil {
			writeCoordinatorError(w, err)
			return
		}
		heartbeatsTotal.Add(1)
		writeJSON(w, map[string]any{"house_id": body.HouseID, "online": true})
	}
}

func houseStatusHandler(coord *coordinator.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, coord.HouseStatus())
	}
}

func videoSessionHandler(coord *coordinator.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			if houseID := r.URL.Query().Get("house_id"); houseID != "" {
				s, ok := coord.Session(houseID)
				if !ok {
					writeHTTPError(w, http.StatusBadRequest, "unknown_house")
					return
				}
				writeJSON(w, s)
				return
			}
			writeJSON(w, map[string]any{"sessions": coord.Sessions()})
		case http.MethodPost:
			var patch coordinator.SessionPatch
			if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
				writeHTTPError(w, http.StatusBadRequest, "invalid_json")
				return
			}
			s, err := coord.UpdateSession(patch)
			if err != nil {
				writeCoordinatorError(w, err)
				return
			}
			writeJSON(w, s)
		default:
			writeHTTPError(w, http.StatusMethodNotAllowed, "method_not_allowed")
		}
	}
}

func videoFrameHandler(coord *coordinator.Coordinator) http.HandlerFunc {
	return mediaHandler(coord.SetFrame, coord.Frame, framesReceivedTotal.Add, "frame")
}

func audioChunkHandler(coord *coordinator.Coordinator) http.HandlerFunc {
	return mediaHandler(coord.SetAudio, coord.Audio, audioReceivedTotal.Add, "data")
}

// mediaHandler implements the shared latest-value-overwrite shape of the
// frame and audio endpoints.
func mediaHandler(
	set func(string, string) error,
	get func(string) (coordinator.MediaSlot, bool),
	count func(int64),
	field string,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			houseID := r.URL.Query().Get("house_id")
			if houseID == "" {
				writeHTTPError(w, http.StatusBadRequest, "invalid_request")
				return
			}
			slot, ok := get(houseID)
			if !ok {
				writeJSON(w, map[string]any{"house_id": houseID, field: ""})
				return
			}
			writeJSON(w, map[string]any{
				"house_id":    houseID,
				field:         slot.Data,
				"received_at": slot.ReceivedAt,
			})
		case http.MethodPost:
			var body map[string]string
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				writeHTTPError(w, http.StatusBadRequest, "invalid_json")
				return
			}
			houseID := body["house_id"]
			data := body[field]
			if houseID == "" || data == "" {
				writeHTTPError(w, http.StatusBadRequest, "invalid_request")
				return
			}
			if err := set(houseID, data); err != nil {
				writeCoordinatorError(w, err)
				return
			}
			count(1)
			writeJSON(w, map[string]any{"house_id": houseID, "ok": true})
		default:
			writeHTTPError(w, http.StatusMethodNotAllowed, "method_not_allowed")
		}
	}
}

func eventsHandler(coord *coordinator.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			limit := 0
			if v := r.URL.Query().Get("limit"); v != "" {
				n, err := strconv.Atoi(v)
				if err != nil || n < 1 {
					writeHTTPError(w, http.StatusBadRequest, "invalid_request")
					return
				}
				limit = n
			}
			writeJSON(w, map[string]any{"events": coord.Log().Tail(limit)})
		case http.MethodPost:
			var body struct {
				Type    string `json:"type"`
				HouseID string `json:"house_id"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				writeHTTPError(w, http.StatusBadRequest, "invalid_json")
				return
			}
			// only the owner's yield alerts are client-authored; every
			// other type is derived from session transitions server-side
			if body.Type != event.TypeYieldAlert {
				writeHTTPError(w, http.StatusBadRequest, "invalid_event_type")
				return
			}
			ev, err := coord.AppendEvent(body.Type, body.HouseID)
			if err != nil {
				writeCoordinatorError(w, err)
				return
			}
			eventsAppendedTotal.Add(1)
			writeJSON(w, ev)
		default:
			writeHTTPError(w, http.StatusMethodNotAllowed, "method_not_allowed")
		}
	}
}

func healthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"ok": true})
	}
}
