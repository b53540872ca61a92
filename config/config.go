package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/xiaonanln/dtnview/topology"
	"github.com/xiaonanln/dtnview/util/logger"
	"github.com/xiaonanln/dtnview/util/postgres"
)

// History backends
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

// ServerConfig holds the listen addresses of the dashboard
type ServerConfig struct {
	HTTPAddr  string `yaml:"http_addr"`
	GRPCAddr  string `yaml:"grpc_addr"`  // Optional: TelemetryIngest push service
	StaticDir string `yaml:"static_dir"` // Optional: directory with the browser UI
}

// TelemetryConfig holds the connection to the relay's telemetry feed
type TelemetryConfig struct {
	URL            string        `yaml:"url"` // Optional: ws://host:port/websocket
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
	Multiplier     float64       `yaml:"multiplier"`
}

// DisplayConfig holds the drawing options and the panel geometry
type DisplayConfig struct {
	FontSize       float64         `yaml:"font_size"`
	TextMargin     float64         `yaml:"text_margin"`
	Decimals       *int            `yaml:"decimals"` // nil keeps the default, 0 is valid
	Declutter      bool            `yaml:"declutter"`
	DeclutterNodes bool            `yaml:"declutter_nodes"`
	Shrink         bool            `yaml:"shrink"`
	Slots          *topology.Slots `yaml:"slots"` // Optional: overrides the stock geometry
}

// HistoryConfig holds the rate history store
type HistoryConfig struct {
	Backend   string           `yaml:"backend"` // memory (default), postgres or none
	Retention time.Duration    `yaml:"retention"`
	Workers   int              `yaml:"workers"`
	Postgres  *postgres.Config `yaml:"postgres"`
	Rules     []SeriesRule     `yaml:"series_rules"` // Optional: which series are recorded
}

// Config is the root configuration structure
type Config struct {
	Version   int             `yaml:"version"`
	LogLevel  string          `yaml:"log_level"`
	Server    ServerConfig    `yaml:"server"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Display   DisplayConfig   `yaml:"display"`
	History   HistoryConfig   `yaml:"history"`
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Version != 1 {
		return fmt.Errorf("unsupported config version: %d (expected 1)", c.Version)
	}

	if c.LogLevel != "" {
		if _, err := logger.ParseLevel(c.LogLevel); err != nil {
			return err
		}
	}

	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server http_addr is required")
	}

	if c.Telemetry.InitialBackoff < 0 || c.Telemetry.MaxBackoff < 0 {
		return fmt.Errorf("telemetry backoff must not be negative")
	}
	if c.Telemetry.InitialBackoff > 0 && c.Telemetry.MaxBackoff > 0 && c.Telemetry.MaxBackoff < c.Telemetry.InitialBackoff {
		return fmt.Errorf("telemetry max_backoff (%s) is below initial_backoff (%s)", c.Telemetry.MaxBackoff, c.Telemetry.InitialBackoff)
	}
	if c.Telemetry.Multiplier != 0 && c.Telemetry.Multiplier < 1 {
		return fmt.Errorf("telemetry multiplier must be at least 1, got %g", c.Telemetry.Multiplier)
	}

	if c.Display.FontSize < 0 {
		return fmt.Errorf("display font_size must not be negative")
	}
	if c.Display.TextMargin < 0 {
		return fmt.Errorf("display text_margin must not be negative")
	}
	if d := c.Display.Decimals; d != nil && (*d < 0 || *d > 6) {
		return fmt.Errorf("display decimals must be between 0 and 6, got %d", *d)
	}
	if s := c.Display.Slots; s != nil {
		if err := validateSlots(s); err != nil {
			return err
		}
	}

	switch c.History.Backend {
	case "", BackendMemory, "none":
	case BackendPostgres:
		if c.History.Postgres == nil {
			return fmt.Errorf("history backend postgres requires a postgres block")
		}
		if err := c.History.Postgres.Validate(); err != nil {
			return fmt.Errorf("history postgres: %w", err)
		}
	default:
		return fmt.Errorf("unsupported history backend: %s (expected memory, postgres or none)", c.History.Backend)
	}
	if c.History.Retention < 0 {
		return fmt.Errorf("history retention must not be negative")
	}
	if c.History.Workers < 0 {
		return fmt.Errorf("history workers must not be negative")
	}
	if _, err := NewSeriesFilter(c.History.Rules); err != nil {
		return err
	}

	return nil
}

func validateSlots(s *topology.Slots) error {
	rects := []struct {
		name string
		r    topology.Rect
	}{
		{"ingress", s.Ingress},
		{"egress", s.Egress},
		{"storage", s.Storage},
		{"active_connections", s.ActiveConnections},
		{"next_hops", s.NextHops},
		{"final_destinations", s.FinalDestinations},
	}
	for _, rr := range rects {
		if rr.r.Width <= 0 || rr.r.Height <= 0 {
			return fmt.Errorf("display slot %s must have a positive size", rr.name)
		}
	}
	return nil
}

// GetLogLevel returns the configured log level, INFO when unset.
func (c *Config) GetLogLevel() logger.LogLevel {
	level, err := logger.ParseLevel(c.LogLevel)
	if err != nil {
		return logger.INFO
	}
	return level
}

// GetDisplay returns the display options with unset fields at their defaults.
func (c *Config) GetDisplay() topology.DisplayConfig {
	d := topology.DefaultDisplay()
	if c.Display.FontSize > 0 {
		d.FontSize = c.Display.FontSize
	}
	if c.Display.TextMargin > 0 {
		d.TextMargin = c.Display.TextMargin
	}
	if c.Display.Decimals != nil {
		d.Decimals = *c.Display.Decimals
	}
	d.Declutter = c.Display.Declutter
	d.DeclutterNodes = c.Display.DeclutterNodes
	d.Shrink = c.Display.Shrink
	return d
}

// GetSlots returns the configured panel geometry or the stock one.
func (c *Config) GetSlots() topology.Slots {
	if c.Display.Slots != nil {
		return *c.Display.Slots
	}
	return topology.DefaultSlots()
}

// GetHistoryBackend returns the history backend, memory when unset.
// "none" disables history.
func (c *Config) GetHistoryBackend() string {
	if c.History.Backend == "" {
		return BackendMemory
	}
	return c.History.Backend
}
