// Package dashconfig handles command-line flags and config file loading
// for the dashboard process, returning a config.Config.
package dashconfig

import (
	"flag"
	"fmt"
	"os"

	"github.com/xiaonanln/dtnview/config"
)

const (
	DefaultHTTPAddr     = ":8080"
	DefaultStaticDir    = "web"
	DefaultTelemetryURL = "ws://localhost:8086/websocket"
	DefaultLogLevel     = "info"
)

// Loader handles parsing of command-line flags and config file loading.
// It can be instantiated with a custom FlagSet for testing.
type Loader struct {
	fs             *flag.FlagSet
	configPath     *string
	httpAddr       *string
	grpcAddr       *string
	staticDir      *string
	telemetryURL   *string
	history        *string
	logLevel       *string
	declutter      *bool
	declutterNodes *bool
	shrink         *bool
	decimals       *int
}

// NewLoader creates a new Loader with flags registered on the provided FlagSet.
// If fs is nil, the default flag.CommandLine is used.
func NewLoader(fs *flag.FlagSet) *Loader {
	if fs == nil {
		fs = flag.CommandLine
	}
	l := &Loader{fs: fs}
	l.configPath = fs.String("config", "", "Path to YAML config file")
	l.httpAddr = fs.String("http-addr", DefaultHTTPAddr, "HTTP server address (cannot be used with --config)")
	l.grpcAddr = fs.String("grpc-addr", "", "gRPC ingest address, empty to disable (cannot be used with --config)")
	l.staticDir = fs.String("static-dir", DefaultStaticDir, "Static files directory for web UI (cannot be used with --config)")
	l.telemetryURL = fs.String("telemetry-url", DefaultTelemetryURL, "Relay telemetry websocket URL, empty to rely on pushes (cannot be used with --config)")
	l.history = fs.String("history", config.BackendMemory, "History backend: memory or none (cannot be used with --config)")
	l.logLevel = fs.String("log-level", DefaultLogLevel, "Log level (cannot be used with --config)")
	l.declutter = fs.Bool("declutter", false, "Hide wires whose link is down (cannot be used with --config)")
	l.declutterNodes = fs.Bool("declutter-nodes", false, "Also hide outducts whose link is down (cannot be used with --config)")
	l.shrink = fs.Bool("shrink", false, "Drop empty nodes and panels (cannot be used with --config)")
	l.decimals = fs.Int("decimals", 2, "Decimal places of rate labels (cannot be used with --config)")
	return l
}

// Load parses the flags (if not already parsed) and returns a validated
// Config. When --config is provided, other flags are forbidden.
func (l *Loader) Load(args []string) (*config.Config, error) {
	if !l.fs.Parsed() {
		if err := l.fs.Parse(args); err != nil {
			return nil, fmt.Errorf("failed to parse flags: %w", err)
		}
	}

	if *l.configPath != "" {
		var conflict error
		l.fs.Visit(func(f *flag.Flag) {
			if f.Name != "config" && conflict == nil {
				conflict = fmt.Errorf("--%s cannot be used with --config; configure in config file instead", f.Name)
			}
		})
		if conflict != nil {
			return nil, conflict
		}

		cfg, err := config.LoadConfig(*l.configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		return cfg, nil
	}

	if *l.history == config.BackendPostgres {
		return nil, fmt.Errorf("--history postgres needs a config file with a postgres block")
	}
	decimals := *l.decimals
	cfg := &config.Config{
		Version:  1,
		LogLevel: *l.logLevel,
		Server: config.ServerConfig{
			HTTPAddr:  *l.httpAddr,
			GRPCAddr:  *l.grpcAddr,
			StaticDir: *l.staticDir,
		},
		Telemetry: config.TelemetryConfig{URL: *l.telemetryURL},
		Display: config.DisplayConfig{
			Decimals:       &decimals,
			Declutter:      *l.declutter,
			DeclutterNodes: *l.declutterNodes,
			Shrink:         *l.shrink,
		},
		History: config.HistoryConfig{Backend: *l.history},
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid flags: %w", err)
	}
	return cfg, nil
}

// Get is a convenience function that creates a Loader with default flags,
// parses os.Args[1:], and returns the Config.
// It panics on error.
func Get() *config.Config {
	loader := NewLoader(nil)
	cfg, err := loader.Load(os.Args[1:])
	if err != nil {
		panic(fmt.Sprintf("Failed to load dashboard config: %v", err))
	}
	return cfg
}
