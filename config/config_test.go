package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/xiaonanln/dtnview/topology"
	"github.com/xiaonanln/dtnview/util/logger"
	"github.com/xiaonanln/dtnview/util/postgres"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dtnview.yml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
version: 1
log_level: debug

server:
  http_addr: ":8086"
  grpc_addr: ":9086"
  static_dir: "./web"

telemetry:
  url: "ws://relay.local:8086/websocket"
  initial_backoff: 500ms
  max_backoff: 30s
  multiplier: 1.5

display:
  font_size: 14
  decimals: 0
  declutter: true
  shrink: true

history:
  backend: postgres
  retention: 24h
  workers: 4
  postgres:
    host: "db.local"
    port: 5432
    user: "dtnview"
    password: "secret"
    database: "dtnview"
  series_rules:
    - series: "/induct/.*/.*/"
      action: skip
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Version != 1 {
		t.Errorf("expected version 1, got %d", cfg.Version)
	}
	if cfg.GetLogLevel() != logger.DEBUG {
		t.Errorf("expected log level DEBUG, got %s", cfg.GetLogLevel())
	}
	if cfg.Server.HTTPAddr != ":8086" || cfg.Server.GRPCAddr != ":9086" || cfg.Server.StaticDir != "./web" {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Telemetry.URL != "ws://relay.local:8086/websocket" {
		t.Errorf("expected telemetry url, got %s", cfg.Telemetry.URL)
	}
	if cfg.Telemetry.InitialBackoff != 500*time.Millisecond {
		t.Errorf("expected initial backoff 500ms, got %s", cfg.Telemetry.InitialBackoff)
	}
	if cfg.Telemetry.MaxBackoff != 30*time.Second {
		t.Errorf("expected max backoff 30s, got %s", cfg.Telemetry.MaxBackoff)
	}
	if cfg.Telemetry.Multiplier != 1.5 {
		t.Errorf("expected multiplier 1.5, got %g", cfg.Telemetry.Multiplier)
	}

	display := cfg.GetDisplay()
	if display.FontSize != 14 {
		t.Errorf("expected font size 14, got %g", display.FontSize)
	}
	if display.Decimals != 0 {
		t.Errorf("expected an explicit 0 decimals to be kept, got %d", display.Decimals)
	}
	if display.TextMargin != topology.DefaultTextMargin {
		t.Errorf("expected default text margin, got %g", display.TextMargin)
	}
	if !display.Declutter || display.DeclutterNodes || !display.Shrink {
		t.Errorf("unexpected display flags: %+v", display)
	}
	if cfg.GetSlots() != topology.DefaultSlots() {
		t.Error("expected stock slots when none are configured")
	}

	if cfg.GetHistoryBackend() != BackendPostgres {
		t.Errorf("expected postgres backend, got %s", cfg.GetHistoryBackend())
	}
	if cfg.History.Retention != 24*time.Hour {
		t.Errorf("expected retention 24h, got %s", cfg.History.Retention)
	}
	if cfg.History.Workers != 4 {
		t.Errorf("expected 4 workers, got %d", cfg.History.Workers)
	}
	pg := cfg.History.Postgres
	if pg == nil || pg.Host != "db.local" || pg.Password != "secret" {
		t.Fatalf("unexpected postgres config: %+v", pg)
	}
	if pg.SSLMode != "disable" {
		t.Errorf("expected validation to default sslmode to disable, got %q", pg.SSLMode)
	}

	filter, err := cfg.NewSeriesFilter()
	if err != nil {
		t.Fatalf("NewSeriesFilter failed: %v", err)
	}
	if filter.Allow("induct/0/peer") {
		t.Error("expected per-connection series to be skipped")
	}
	if !filter.Allow("outduct/0") {
		t.Error("expected outduct series to be recorded")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "version: 1\nserver:\n  http_addr: \":8086\"\n"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.GetLogLevel() != logger.INFO {
		t.Errorf("expected INFO, got %s", cfg.GetLogLevel())
	}
	if cfg.GetDisplay() != topology.DefaultDisplay() {
		t.Errorf("expected default display, got %+v", cfg.GetDisplay())
	}
	if cfg.GetHistoryBackend() != BackendMemory {
		t.Errorf("expected memory backend, got %s", cfg.GetHistoryBackend())
	}
	filter, err := cfg.NewSeriesFilter()
	if err != nil || filter != nil {
		t.Errorf("expected no filter without rules, got %v, %v", filter, err)
	}
	if !filter.Allow("anything") {
		t.Error("expected a nil filter to allow every series")
	}
}

func TestLoadConfigSlots(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, `
version: 1
server:
  http_addr: ":8086"
display:
  slots:
    ingress: {x: 300, y: 40, width: 220, height: 320}
    egress: {x: 760, y: 40, width: 200, height: 300}
    storage: {x: 560, y: 360, width: 160, height: 120}
    active_connections: {x: 0, y: 40, width: 160, height: 300}
    next_hops: {x: 0, y: 40, width: 160, height: 300}
    final_destinations: {x: 0, y: 40, width: 160, height: 300}
`))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	slots := cfg.GetSlots()
	want := topology.Rect{X: 300, Y: 40, Width: 220, Height: 320}
	if slots.Ingress != want {
		t.Errorf("expected ingress slot %+v, got %+v", want, slots.Ingress)
	}
}

func TestLoadConfigFileNotFound(t *testing.T) {
	_, err := LoadConfig("/nonexistent/path/config.yml")
	if err == nil {
		t.Fatal("expected error for non-existent file")
	}
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "invalid: [yaml: content"))
	if err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestConfigValidation(t *testing.T) {
	valid := func() Config {
		return Config{Version: 1, Server: ServerConfig{HTTPAddr: ":8086"}}
	}
	intPtr := func(n int) *int { return &n }

	tests := []struct {
		name   string
		modify func(c *Config)
		errMsg string
	}{
		{
			name:   "valid minimal config",
			modify: func(c *Config) {},
		},
		{
			name:   "wrong version",
			modify: func(c *Config) { c.Version = 2 },
			errMsg: "unsupported config version",
		},
		{
			name:   "unknown log level",
			modify: func(c *Config) { c.LogLevel = "chatty" },
			errMsg: "unknown log level",
		},
		{
			name:   "missing http addr",
			modify: func(c *Config) { c.Server.HTTPAddr = "" },
			errMsg: "http_addr is required",
		},
		{
			name: "max backoff below initial",
			modify: func(c *Config) {
				c.Telemetry.InitialBackoff = time.Minute
				c.Telemetry.MaxBackoff = time.Second
			},
			errMsg: "below initial_backoff",
		},
		{
			name:   "multiplier below one",
			modify: func(c *Config) { c.Telemetry.Multiplier = 0.5 },
			errMsg: "multiplier must be at least 1",
		},
		{
			name:   "negative font size",
			modify: func(c *Config) { c.Display.FontSize = -1 },
			errMsg: "font_size",
		},
		{
			name:   "too many decimals",
			modify: func(c *Config) { c.Display.Decimals = intPtr(7) },
			errMsg: "decimals must be between 0 and 6",
		},
		{
			name: "empty slot",
			modify: func(c *Config) {
				slots := topology.DefaultSlots()
				slots.Storage = topology.Rect{}
				c.Display.Slots = &slots
			},
			errMsg: "display slot storage",
		},
		{
			name:   "unknown backend",
			modify: func(c *Config) { c.History.Backend = "redis" },
			errMsg: "unsupported history backend",
		},
		{
			name:   "postgres without block",
			modify: func(c *Config) { c.History.Backend = BackendPostgres },
			errMsg: "requires a postgres block",
		},
		{
			name: "postgres block invalid",
			modify: func(c *Config) {
				c.History.Backend = BackendPostgres
				c.History.Postgres = &postgres.Config{Port: 5432, User: "u", Database: "d"}
			},
			errMsg: "host is required",
		},
		{
			name:   "history disabled",
			modify: func(c *Config) { c.History.Backend = "none" },
		},
		{
			name:   "negative retention",
			modify: func(c *Config) { c.History.Retention = -time.Second },
			errMsg: "retention",
		},
		{
			name:   "bad series rule",
			modify: func(c *Config) { c.History.Rules = []SeriesRule{{Series: "/[/", Action: SeriesSkip}} },
			errMsg: "invalid series pattern",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.modify(&cfg)
			err := cfg.Validate()
			if tt.errMsg == "" {
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tt.errMsg)
			}
			if !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("expected error containing %q, got %q", tt.errMsg, err.Error())
			}
		})
	}
}
