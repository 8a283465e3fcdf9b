package app

import (
	"errors"
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	ScriptPath string // hcl cue-list documents
	WorldPath  string // yaml stage seed, optional
	Entry      string // list started first; defaults to the first declared

	Skip       bool    // fast-forward the entry list instead of ticking
	FrameRate  int     // simulated frames per second
	MaxSeconds float64 // simulated-time cap before the run is ended; 0 is uncapped
	Seed       int64   // random branch seed

	RemoteURL       string // socket.io presentation client, optional
	RemoteNamespace string

	LogFormat string
	LogLevel  string
}

// envOverrides are the environment knobs layered over CLI flags, useful when
// the engine runs inside a container next to its presentation client.
type envOverrides struct {
	LogLevel  string `env:"STAGECUE_LOG_LEVEL"`
	LogFormat string `env:"STAGECUE_LOG_FORMAT"`
	RemoteURL string `env:"STAGECUE_REMOTE_URL"`
	WorldPath string `env:"STAGECUE_WORLD"`
}

// NewConfig validates a Config and applies environment overrides and
// defaults.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.ScriptPath == "" {
		return nil, errors.New("ScriptPath is a required configuration field and cannot be empty")
	}

	var overrides envOverrides
	if err := env.Parse(&overrides); err != nil {
		return nil, fmt.Errorf("parsing environment overrides: %w", err)
	}
	if overrides.LogLevel != "" {
		cfg.LogLevel = overrides.LogLevel
	}
	if overrides.LogFormat != "" {
		cfg.LogFormat = overrides.LogFormat
	}
	if overrides.RemoteURL != "" {
		cfg.RemoteURL = overrides.RemoteURL
	}
	if overrides.WorldPath != "" {
		cfg.WorldPath = overrides.WorldPath
	}

	if cfg.FrameRate <= 0 {
		cfg.FrameRate = 60
	}
	if cfg.MaxSeconds < 0 {
		return nil, errors.New("MaxSeconds must not be negative")
	}
	if cfg.Seed == 0 {
		cfg.Seed = 1
	}

	return &cfg, nil
}
