package livegateway

import (
	"encoding/json"
	"expvar"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/samlnz/PS-controller/internal/coordinator"
)

var (
	wsIngestClients = expvar.NewInt("ws_ingest_clients")
	wsWatchClients  = expvar.NewInt("ws_watch_clients")
)

// MediaMessage is the wire format on both websocket channels. The worker
// sends it on ingest; watchers receive the same message re-broadcast.
type MediaMessage struct {
	Type    string `json:"type"` // "frame" or "audio"
	HouseID string `json:"house_id"`
	Data    string `json:"data"`
}

type watcher struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub relays media messages from a house's ingest connection to that
// house's watchers, writing each frame/chunk through to the coordinator's
// latest-value slots so HTTP polling sees the same state.
type Hub struct {
	coord    *coordinator.Coordinator
	upgrader websocket.Upgrader

	mu       sync.Mutex
	watchers map[string]map[*watcher]bool
}

func NewHub(coord *coordinator.Coordinator) *Hub {
	return &Hub{
		coord:    coord,
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		watchers: map[string]map[*watcher]bool{},
	}
}

// IngestHandler accepts the worker's push connection for one house.
func (h *Hub) IngestHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		houseID := r.URL.Query().Get("house_id")
		if _, ok := h.coord.Session(houseID); !ok {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"unknown_house"}`))
			return
		}
		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		wsIngestClients.Add(1)
		defer wsIngestClients.Add(-1)
		defer conn.Close()

		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var msg MediaMessage
			if err := json.Unmarshal(raw, &msg); err != nil {
				continue
			}
			msg.HouseID = houseID
			switch msg.Type {
			case "frame":
				if err := h.coord.SetFrame(houseID, msg.Data); err != nil {
					continue
				}
			case "audio":
				if err := h.coord.SetAudio(houseID, msg.Data); err != nil {
					continue
				}
			default:
				continue
			}
			h.broadcast(houseID, msg)
		}
	}
}

// WatchHandler registers an owner connection that receives every media
// message pushed for one house.
func (h *Hub) WatchHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		houseID := r.URL.Query().Get("house_id")
		if _, ok := h.coord.Session(houseID); !ok {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"unknown_house"}`))
			return
		}
		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		wc := &watcher{conn: conn, send: make(chan []byte, 8)}
		h.register(houseID, wc)
		wsWatchClients.Add(1)

		go func() {
			for msg := range wc.send {
				if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
					return
				}
			}
		}()

		// read loop only to observe disconnect
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
		h.unregister(houseID, wc)
		wsWatchClients.Add(-1)
		_ = conn.Close()
	}
}

func (h *Hub) register(houseID string, wc *watcher) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.watchers[houseID] == nil {
		h.watchers[houseID] = map[*watcher]bool{}
	}
	h.watchers[houseID][wc] = true
}

func (h *Hub) unregister(houseID string, wc *watcher) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set := h.watchers[houseID]; set[wc] {
		delete(set, wc)
		safeClose(wc.send)
	}
}

func (h *Hub) broadcast(houseID string, msg MediaMessage) {
	raw, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Msg("marshal media message")
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for wc := range h.watchers[houseID] {
		safeSend(wc.send, raw)
	}
}

func safeClose(ch chan []byte) {
	defer func() {
		_ = recover()
	}()
	close(ch)
}

func safeSend(ch chan []byte, msg []byte) {
	defer func() {
		_ = recover()
	}()
	select {
	case ch <- msg:
	default:
	}
}
