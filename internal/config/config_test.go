package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.Driver != "memory" {
		t.Errorf("storage driver = %q, want memory", cfg.Storage.Driver)
	}
	if cfg.Outbox.BatchSize != 20 || cfg.Outbox.MaxAttempts != 5 {
		t.Errorf("outbox = %+v", cfg.Outbox)
	}
	if cfg.Pricing.RequestedFee != 500 || cfg.Pricing.AssignedGrace != 2*time.Minute {
		t.Errorf("pricing = %+v", cfg.Pricing)
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: "9090"
outbox:
  enabled: true
  batch_size: 50
  base_backoff: 10s
pricing:
  requested_fee: 700
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("OUTBOX_BATCH_SIZE", "5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != "9090" {
		t.Errorf("port = %q, want 9090", cfg.Server.Port)
	}
	if !cfg.Outbox.Enabled {
		t.Error("outbox should be enabled from file")
	}
	if cfg.Outbox.BatchSize != 5 {
		t.Errorf("batch size = %d, want env override 5", cfg.Outbox.BatchSize)
	}
	if cfg.Outbox.BaseBackoff != 10*time.Second {
		t.Errorf("base backoff = %v, want 10s", cfg.Outbox.BaseBackoff)
	}
	if cfg.Pricing.RequestedFee != 700 {
		t.Errorf("requested fee = %d, want 700", cfg.Pricing.RequestedFee)
	}
	// Untouched keys keep their defaults.
	if cfg.Pricing.AssignedFee != 800 {
		t.Errorf("assigned fee = %d, want 800", cfg.Pricing.AssignedFee)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "nope.yaml"))

	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"unknown storage", func(c *Config) { c.Storage.Driver = "mongo" }, true},
		{"unknown db driver", func(c *Config) { c.Database.Driver = "mysql" }, true},
		{"redis dispatcher without redis", func(c *Config) { c.Outbox.Dispatcher = "redis" }, true},
		{"redis dispatcher with redis", func(c *Config) {
			c.Outbox.Dispatcher = "redis"
			c.Redis.Enabled = true
		}, false},
		{"negative fee", func(c *Config) { c.Pricing.AssignedFee = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
