package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

type testConfig struct {
	Name     string        `yaml:"name"     env:"TEST_CFG_NAME"`
	Workers  int           `yaml:"workers"  env:"TEST_CFG_WORKERS"`
	Ratio    float64       `yaml:"ratio"    env:"TEST_CFG_RATIO"`
	Strict   bool          `yaml:"strict"   env:"TEST_CFG_STRICT"`
	Interval time.Duration `yaml:"interval" env:"TEST_CFG_INTERVAL"`
	Statuses []int         `yaml:"statuses" env:"TEST_CFG_STATUSES"`
	Nested   struct {
		Hosts []string `yaml:"hosts" env:"TEST_CFG_HOSTS"`
	} `yaml:"nested"`
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	path := writeConfig(t, "name: file\nworkers: 2\nratio: 0.5\ninterval: 10s\n")

	t.Setenv("TEST_CFG_WORKERS", "8")
	t.Setenv("TEST_CFG_STRICT", "yes")
	t.Setenv("TEST_CFG_INTERVAL", "1m")
	t.Setenv("TEST_CFG_STATUSES", "429, 503")
	t.Setenv("TEST_CFG_HOSTS", "a.example, b.example")

	cfg, err := Load[testConfig](path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Name != "file" {
		t.Errorf("Name = %q, want file", cfg.Name)
	}
	if cfg.Workers != 8 {
		t.Errorf("Workers = %d, want 8", cfg.Workers)
	}
	if !cfg.Strict {
		t.Error("Strict = false, want true")
	}
	if cfg.Interval != time.Minute {
		t.Errorf("Interval = %s, want 1m", cfg.Interval)
	}
	if len(cfg.Statuses) != 2 || cfg.Statuses[0] != 429 || cfg.Statuses[1] != 503 {
		t.Errorf("Statuses = %v, want [429 503]", cfg.Statuses)
	}
	if len(cfg.Nested.Hosts) != 2 || cfg.Nested.Hosts[1] != "b.example" {
		t.Errorf("Nested.Hosts = %v", cfg.Nested.Hosts)
	}
}

func TestLoadWithDefaults_MissingFile(t *testing.T) {
	t.Setenv("TEST_CFG_NAME", "from-env")

	cfg, err := LoadWithDefaults(filepath.Join(t.TempDir(), "absent.yml"), func(c *testConfig) {
		if c.Workers == 0 {
			c.Workers = 4
		}
		c.Name = "default"
	})
	if err != nil {
		t.Fatalf("LoadWithDefaults() error = %v", err)
	}
	if cfg.Workers != 4 {
		t.Errorf("Workers = %d, want 4", cfg.Workers)
	}
	if cfg.Name != "from-env" {
		t.Errorf("Name = %q, want env to win over defaults", cfg.Name)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "workers: [unterminated\n")
	if _, err := Load[testConfig](path); err == nil {
		t.Fatal("Load() expected parse error")
	}
}

func TestValidateDurationRange(t *testing.T) {
	t.Parallel()

	if err := ValidateDurationRange("throttle", time.Second, 5*time.Second); err != nil {
		t.Errorf("valid range error = %v", err)
	}
	if err := ValidateDurationRange("throttle", 5*time.Second, time.Second); err == nil {
		t.Error("inverted range expected error")
	}
	if err := ValidateRatio("ratio", 1.5); err == nil {
		t.Error("ratio > 1 expected error")
	}
}
