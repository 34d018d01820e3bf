// Package config loads the planner configuration.
//
// Values come from, in increasing precedence: defaults in code, an
// optional YAML file, the DATABASE_URL / REDIS_URL environment variables,
// and command-line flags (applied by cmd/planner).
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig wraps every configuration error.
var ErrInvalidConfig = errors.New("invalid configuration")

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr        string   `yaml:"addr"`
	CORSOrigins []string `yaml:"cors_origins"`
	// SolveRate is the sustained number of solve requests per second;
	// SolveBurst is how many may arrive at once.
	SolveRate  float64 `yaml:"solve_rate"`
	SolveBurst int     `yaml:"solve_burst"`
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// SolverConfig holds the defaults of every run.
type SolverConfig struct {
	TimeLimit            time.Duration `yaml:"time_limit"`
	MaxTimeLimit         time.Duration `yaml:"max_time_limit"`
	NodeLimit            int           `yaml:"node_limit"`
	OneTaskPerDay        bool          `yaml:"one_task_per_day"`
	MaskUnrequiredSkills bool          `yaml:"mask_unrequired_skills"`
}

// EventsConfig configures run notifications. Redis is used when RedisURL
// is set.
type EventsConfig struct {
	RedisURL      string `yaml:"redis_url"`
	ChannelPrefix string `yaml:"channel_prefix"`
}

// Config is the full configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Store  StoreConfig  `yaml:"store"`
	Solver SolverConfig `yaml:"solver"`
	Events EventsConfig `yaml:"events"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:        ":8080",
			CORSOrigins: []string{"*"},
			SolveRate:   2,
			SolveBurst:  4,
		},
		Store: StoreConfig{Driver: DriverMemory},
		Solver: SolverConfig{
			TimeLimit:            30 * time.Second,
			MaxTimeLimit:         5 * time.Minute,
			MaskUnrequiredSkills: true,
		},
		Events: EventsConfig{ChannelPrefix: "planner:runs:"},
	}
}

// Load returns the defaults overlaid with the YAML file at path (skipped
// when path is empty) and the environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config: %w", err)
		}
		if err := cfg.decode(data); err != nil {
			return cfg, err
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" && c.Store.DSN == "" {
		c.Store.DSN = dsn
	}
	if url := os.Getenv("REDIS_URL"); url != "" && c.Events.RedisURL == "" {
		c.Events.RedisURL = url
	}
}

// Validate checks the configuration for values no component accepts.
func (c Config) Validate() error {
	switch c.Store.Driver {
	case DriverMemory:
	case DriverSQLite, DriverPostgres:
		if c.Store.DSN == "" {
			return fmt.Errorf("%w: store.dsn is required for driver %q", ErrInvalidConfig, c.Store.Driver)
		}
	default:
		return fmt.Errorf("%w: unknown store.driver %q", ErrInvalidConfig, c.Store.Driver)
	}
	if c.Solver.TimeLimit <= 0 {
		return fmt.Errorf("%w: solver.time_limit must be positive", ErrInvalidConfig)
	}
	if c.Solver.MaxTimeLimit < c.Solver.TimeLimit {
		return fmt.Errorf("%w: solver.max_time_limit below solver.time_limit", ErrInvalidConfig)
	}
	if c.Solver.NodeLimit < 0 {
		return fmt.Errorf("%w: solver.node_limit must be >= 0", ErrInvalidConfig)
	}
	if c.Server.SolveRate <= 0 || c.Server.SolveBurst < 1 {
		return fmt.Errorf("%w: server.solve_rate and server.solve_burst must be positive", ErrInvalidConfig)
	}
	return nil
}
