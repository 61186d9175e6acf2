package main

import (
	"context"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/samlnz/PS-controller/internal/config"
	"github.com/samlnz/PS-controller/internal/coordinator"
	"github.com/samlnz/PS-controller/internal/event"
	"github.com/samlnz/PS-controller/internal/livegateway"
	"github.com/samlnz/PS-controller/internal/logging"
	"github.com/samlnz/PS-controller/internal/store"
	transporthttp "github.com/samlnz/PS-controller/internal/transport/http"
)

func main() {
	_ = godotenv.Load()
	logCfg, err := config.LoadLog()
	if err != nil {
		panic(err)
	}
	logging.Init(logCfg)
	cfg, err := config.LoadServer()
	if err != nil {
		log.Fatal().Err(err).Msg("load server config failed")
	}

	houses := cfg.HouseMap()
	st := store.New(houses)
	coord := coordinator.New(houses.Houses(), event.NewLog(cfg.EventLogMax), clockwork.NewRealClock())
	coord.StartJanitor(context.Background(), cfg.JanitorInterval)
	hub := livegateway.NewHub(coord)
	r := transporthttp.NewRouter(st, coord, hub, cfg)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	log.Info().
		Str("addr", cfg.HTTPAddr).
		Strs("houses", houses.Houses()).
		Int("tvs", len(houses.TVIDs())).
		Msg("http listening")
	log.Fatal().Err(server.ListenAndServe()).Msg("server stopped")
}
