package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/samlnz/PS-controller/internal/agent"
	"github.com/samlnz/PS-controller/internal/client"
	"github.com/samlnz/PS-controller/internal/config"
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

	cfg, err := config.LoadAgent(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load agent config failed")
	}
	cache, err := client.OpenCache(cfg.StatePath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.StatePath).Msg("open state cache failed")
	}

	api := client.NewAPI(cfg.ServerURL, cfg.AccessKey, "")
	a := agent.New(cfg, api, cache, clockwork.NewRealClock(),
		agent.SyntheticFrameSource{}, agent.SyntheticAudioSource{})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().Str("house_id", cfg.HouseID).Str("server", cfg.ServerURL).Msg("house agent running")
	a.Run(ctx)
	log.Info().Msg("house agent stopped")
}
