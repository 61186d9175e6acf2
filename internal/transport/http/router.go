// Package http wires the control-server's API surface: CRUD for entries,
// prices, and thresholds; heartbeat/liveness; the per-house video session
// endpoints; and the live gateway (SSE + websocket) routes.
package http

import (
	"expvar"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/samlnz/PS-controller/internal/config"
	"github.com/samlnz/PS-controller/internal/coordinator"
	"github.com/samlnz/PS-controller/internal/livegateway"
	"github.com/samlnz/PS-controller/internal/store"
)

func NewRouter(st *store.Store, coord *coordinator.Coordinator, hub *livegateway.Hub, cfg config.ServerConfig) *chi.Mux {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(cors.New(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowedHeaders: []string{"Content-Type", "X-Access-Key", "X-Admin-Key", "Authorization", "Last-Event-ID"},
	}).Handler)

	r.With(apiLogMiddleware()).Get("/healthz", healthHandler())

	r.Route("/api", func(r chi.Router) {
		r.Use(apiLogMiddleware())
		r.Use(accessKeyMiddleware(cfg.AccessKey))

		r.Get("/entries", entriesHandler(st))
		r.Post("/entries", entriesHandler(st))
		r.Get("/prices", pricesHandler(st))
		r.Post("/prices", pricesHandler(st))
		r.Get("/thresholds", thresholdsHandler(st))
		r.Post("/thresholds", thresholdsHandler(st))

		r.Post("/heartbeat", heartbeatHandler(coord))
		r.Get("/house-status", houseStatusHandler(coord))

		r.Get("/video-session", videoSessionHandler(coord))
		r.Post("/video-session", videoSessionHandler(coord))
		r.Get("/video-frame", videoFrameHandler(coord))
		r.Post("/video-frame", videoFrameHandler(coord))
		r.Get("/audio-chunk", audioChunkHandler(coord))
		r.Post("/audio-chunk", audioChunkHandler(coord))

		r.Get("/events", eventsHandler(coord))
		r.Post("/events", eventsHandler(coord))

		r.Get("/live/events", livegateway.EventsHandler(coord.Log()))
		r.Get("/live/ingest", hub.IngestHandler())
		r.Get("/live/watch", hub.WatchHandler())

		r.Group(func(r chi.Router) {
			r.Use(adminAuthMiddleware(cfg.AdminAPIKey))
			r.Delete("/entries", entriesPurgeHandler(st))
			r.Get("/debug/vars", expvar.Handler().ServeHTTP)
		})
	})

	return r
}
