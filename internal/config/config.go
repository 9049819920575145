// Package config reads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Addr         string `env:"POIPOI_ADDR" envDefault:":8080"`
	LogLevel     string `env:"POIPOI_LOG_LEVEL" envDefault:"info"`
	LogDev       bool   `env:"POIPOI_LOG_DEV" envDefault:"false"`
	MaxPlayers   int    `env:"POIPOI_MAX_PLAYERS" envDefault:"4"`
	MatchSeconds int    `env:"POIPOI_MATCH_SECONDS" envDefault:"90"`
	TickHz       int    `env:"POIPOI_TICK_HZ" envDefault:"60"`

	// Optional backends; empty disables them.
	ConsulAddr  string `env:"POIPOI_CONSUL_ADDR"`
	NATSURL     string `env:"POIPOI_NATS_URL"`
	DatabaseURL string `env:"POIPOI_DATABASE_URL"`

	RecordsPath string `env:"POIPOI_RECORDS_PATH" envDefault:"poipoi-records.db"`
	ServerURL   string `env:"POIPOI_SERVER_URL" envDefault:"ws://localhost:8080/ws"`
}

func (c Config) MatchDuration() time.Duration {
	return time.Duration(c.MatchSeconds) * time.Second
}

func (c Config) TickInterval() time.Duration {
	if c.TickHz <= 0 {
		return time.Second / 60
	}
	return time.Second / time.Duration(c.TickHz)
}

// ParseEnv fills target from the process environment.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load reads the given .env files, skipping missing ones, then parses the
// environment. Variables already set in the environment win over the files.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if cfg.MaxPlayers <= 0 {
		return Config{}, fmt.Errorf("POIPOI_MAX_PLAYERS must be positive, got %d", cfg.MaxPlayers)
	}
	return cfg, nil
}
