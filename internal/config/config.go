// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load layers a YAML file and environment variables over those defaults.
// - External errors are wrapped with this package's sentinel errors.
package config

import (
	"fmt"
	"runtime"
	"strings"
)

// TieBreak configures one criterion of the standings order.
type TieBreak struct {
	// Name is a registry criterion name, e.g. "buchholz".
	Name string `koanf:"name"`

	// Cut is the number of extreme opponent scores to drop.
	Cut int `koanf:"cut"`

	// LowerIsBetter flips the ordering of this criterion.
	LowerIsBetter bool `koanf:"lower_is_better"`
}

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the in-memory refresh job queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of evaluation workers.
	WorkerCount int `koanf:"worker_count"`

	// MaxStandingsLimit caps GET /tournaments/{id}/standings?limit.
	MaxStandingsLimit int `koanf:"max_standings_limit"`

	// TournamentsDir is scanned for *.toml tournament files at startup.
	TournamentsDir string `koanf:"tournaments_dir"`

	// TieBreaks is the ordered list of criteria applied after points.
	TieBreaks []TieBreak `koanf:"tie_breaks"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:          "info",
		LogFormat:         "text",
		Addr:              ":9080",
		QueueSize:         10_000,
		WorkerCount:       runtime.NumCPU(),
		MaxStandingsLimit: 500,
		TournamentsDir:    "",
		TieBreaks: []TieBreak{
			{Name: "buchholz"},
			{Name: "wins"},
			{Name: "games_won_with_black"},
			{Name: "progressive_scores"},
		},
	}
}

// Validate reports the first invalid setting wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("%w: queue_size must be positive, got %d", ErrInvalidConfig, c.QueueSize)
	}
	if c.WorkerCount <= 0 {
		return fmt.Errorf("%w: worker_count must be positive, got %d", ErrInvalidConfig, c.WorkerCount)
	}
	if c.MaxStandingsLimit <= 0 {
		return fmt.Errorf("%w: max_standings_limit must be positive, got %d", ErrInvalidConfig, c.MaxStandingsLimit)
	}
	for i, tb := range c.TieBreaks {
		if strings.TrimSpace(tb.Name) == "" {
			return fmt.Errorf("%w: tie_breaks[%d]: name must not be empty", ErrInvalidConfig, i)
		}
		if tb.Cut < 0 {
			return fmt.Errorf("%w: tie_breaks[%d]: cut must not be negative, got %d", ErrInvalidConfig, i, tb.Cut)
		}
	}
	return nil
}
