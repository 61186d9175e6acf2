package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/samlnz/PS-controller/internal/client"
	"github.com/samlnz/PS-controller/internal/config"
	"github.com/samlnz/PS-controller/internal/console"
	"github.com/samlnz/PS-controller/internal/game"
	"github.com/samlnz/PS-controller/internal/logging"
)

func main() {
	_ = godotenv.Load()
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	logCfg, err := config.LoadLog()
	if err != nil {
		panic(err)
	}
	logging.Init(logCfg)

	cfg, err := config.LoadConsole(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load console config failed")
	}
	cache, err := client.OpenCache(cfg.StatePath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.StatePath).Msg("open state cache failed")
	}

	api := client.NewAPI(cfg.ServerURL, cfg.AccessKey, cfg.AdminAPIKey)
	c := console.New(cfg, api, cache, game.DefaultHouseMap(200), clockwork.NewRealClock())
	c.OnCounterOnline = func(houseID string) {
		log.Info().Str("house_id", houseID).Msg("counter back online, video can be re-requested")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().Str("server", cfg.ServerURL).Msg("owner console running")
	c.Run(ctx)
	log.Info().Msg("owner console stopped")
}
