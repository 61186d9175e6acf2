package config

import (
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/samlnz/PS-controller/internal/game"
)

type ServerConfig struct {
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080"`
	AccessKey   string `env:"ACCESS_KEY"`
	AdminAPIKey string `env:"ADMIN_API_KEY"`

	EventLogMax     int           `env:"EVENT_LOG_MAX" envDefault:"100"`
	JanitorInterval time.Duration `env:"JANITOR_INTERVAL" envDefault:"30s"`

	TVBasePrice int64    `env:"TV_BASE_PRICE" envDefault:"200"`
	House1TVs   []string `env:"HOUSE1_TVS" envDefault:"tv1,tv2,tv3,tv4"`
	House2TVs   []string `env:"HOUSE2_TVS" envDefault:"tv5,tv6,tv7,tv8"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*"`
}

func LoadServer() (ServerConfig, error) {
	var cfg ServerConfig
	err := env.Parse(&cfg)
	return cfg, err
}

// HouseMap builds the TV partition from the configured lists.
func (c ServerConfig) HouseMap() *game.HouseMap {
	tvs := make([]game.TV, 0, len(c.House1TVs)+len(c.House2TVs))
	for _, id := range c.House1TVs {
		tvs = append(tvs, game.TV{ID: id, HouseID: game.House1, BasePrice: c.TVBasePrice})
	}
	for _, id := range c.House2TVs {
		tvs = append(tvs, game.TV{ID: id, HouseID: game.House2, BasePrice: c.TVBasePrice})
	}
	return game.NewHouseMap(tvs)
}
