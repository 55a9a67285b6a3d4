package envconf

import (
	"errors"
	"testing"
	"time"
)

type testConf struct {
	DSN      string        `env:"TEST_ENVCONF_DSN"`
	Port     uint16        `env:"TEST_ENVCONF_PORT" default:"8090"`
	Interval time.Duration `env:"TEST_ENVCONF_INTERVAL" default:"30s"`
	Verbose  bool          `env:"TEST_ENVCONF_VERBOSE" default:"false"`
}

func TestLoad_DefaultsAndOverrides(t *testing.T) {
	t.Setenv("TEST_ENVCONF_DSN", "postgres://localhost/app")
	t.Setenv("TEST_ENVCONF_PORT", "9000")

	cfg := new(testConf)

	err := Load(cfg)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.DSN != "postgres://localhost/app" {
		t.Fatalf("dsn: got %q", cfg.DSN)
	}
	if cfg.Port != 9000 {
		t.Fatalf("port override: got %d", cfg.Port)
	}
	if cfg.Interval != 30*time.Second {
		t.Fatalf("interval default: got %s", cfg.Interval)
	}
	if cfg.Verbose {
		t.Fatalf("verbose default: got true")
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	// DSN has no default, so an unset variable must fail loudly.
	cfg := new(testConf)

	err := Load(cfg)
	if !errors.Is(err, ErrMissingRequired) {
		t.Fatalf("want ErrMissingRequired, got %v", err)
	}
}
