package postgres

import (
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected the default config to be valid, got %v", err)
	}
	expected := "host=localhost port=5432 user=dtnview password=dtnview dbname=dtnview sslmode=disable"
	if got := cfg.ConnectionString(); got != expected {
		t.Errorf("expected %q, got %q", expected, got)
	}
}

// invalidConfigs are rejected by Validate and therefore by NewDB.
var invalidConfigs = []struct {
	name   string
	config *Config
	errMsg string
}{
	{"missing host", &Config{Port: 5432, User: "u", Database: "d"}, "host is required"},
	{"zero port", &Config{Host: "h", User: "u", Database: "d"}, "port must be positive"},
	{"negative port", &Config{Host: "h", Port: -1, User: "u", Database: "d"}, "port must be positive"},
	{"missing user", &Config{Host: "h", Port: 5432, Database: "d"}, "user is required"},
	{"missing database", &Config{Host: "h", Port: 5432, User: "u"}, "database is required"},
	{"unsupported sslmode", &Config{Host: "h", Port: 5432, User: "u", Database: "d", SSLMode: "sometimes"}, "unsupported sslmode"},
}

func TestConfigValidate(t *testing.T) {
	for _, tt := range invalidConfigs {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("expected error containing %q, got %v", tt.errMsg, err)
			}
		})
	}
}

func TestConfigValidateSSLMode(t *testing.T) {
	for _, mode := range []string{"disable", "require", "verify-ca", "verify-full"} {
		cfg := &Config{Host: "h", Port: 5432, User: "u", Database: "d", SSLMode: mode}
		if err := cfg.Validate(); err != nil {
			t.Errorf("expected sslmode %s to be accepted, got %v", mode, err)
		}
	}

	cfg := &Config{Host: "h", Port: 5432, User: "u", Database: "d"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.SSLMode != "disable" {
		t.Errorf("expected sslmode to default to disable, got %q", cfg.SSLMode)
	}
	if !strings.HasSuffix(cfg.ConnectionString(), "sslmode=disable") {
		t.Errorf("expected the default sslmode in the connection string, got %q", cfg.ConnectionString())
	}
}
