// Package config loads client settings from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	// APIBaseURL serves the REST endpoints (tile catalog, dice, gamble).
	APIBaseURL string `env:"METASUGO_API_URL" envDefault:"http://localhost:8080"`
	// ChannelURL is the websocket endpoint for real-time pushes.
	ChannelURL string `env:"METASUGO_WS_URL" envDefault:"ws://localhost:8080/ws"`

	Segment         string        `env:"METASUGO_SEGMENT" envDefault:"page1"`
	LayoutPositions int           `env:"METASUGO_LAYOUT_POSITIONS" envDefault:"12"`
	StepDelay       time.Duration `env:"METASUGO_STEP_DELAY" envDefault:"400ms"`
	ForceGoalBranch bool          `env:"METASUGO_FORCE_GOAL_BRANCH" envDefault:"true"`

	Token  string `env:"METASUGO_TOKEN"`
	UserID string `env:"METASUGO_USER_ID"`

	Debug bool `env:"METASUGO_DEBUG" envDefault:"false"`
}

// Load reads .env if present, then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load() // missing .env is fine

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
