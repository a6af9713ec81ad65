package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	NATS     NATSConfig     `yaml:"nats"`
	NewRelic NewRelicConfig `yaml:"newrelic"`
	Log      LogConfig      `yaml:"log"`
	Storage  StorageConfig  `yaml:"storage"`
	Outbox   OutboxConfig   `yaml:"outbox"`
	Pricing  PricingConfig  `yaml:"pricing"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // postgres or pgx
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// DSN returns the libpq connection string, understood by both drivers.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// NATSConfig holds NATS connection settings.
type NATSConfig struct {
	URL           string        `yaml:"url"`
	MaxReconnects int           `yaml:"max_reconnects"`
	ReconnectWait time.Duration `yaml:"reconnect_wait"`
}

// NewRelicConfig holds New Relic configuration.
type NewRelicConfig struct {
	AppName    string `yaml:"app_name"`
	LicenseKey string `yaml:"license_key"`
	Enabled    bool   `yaml:"enabled"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or console
}

// StorageConfig selects the repository backend.
type StorageConfig struct {
	Driver      string `yaml:"driver"` // memory or postgres
	AutoMigrate bool   `yaml:"auto_migrate"`
}

// OutboxConfig holds outbox publisher settings.
type OutboxConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Dispatcher      string        `yaml:"dispatcher"` // jetstream, redis or log
	BatchSize       int           `yaml:"batch_size"`
	MaxAttempts     int           `yaml:"max_attempts"`
	BaseBackoff     time.Duration `yaml:"base_backoff"`
	PollInterval    time.Duration `yaml:"poll_interval"`
	DispatchTimeout time.Duration `yaml:"dispatch_timeout"`
	StreamName      string        `yaml:"stream_name"`
	SubjectPrefix   string        `yaml:"subject_prefix"`
	RedisStream     string        `yaml:"redis_stream"`
	RedisMaxLen     int64         `yaml:"redis_max_len"`
}

// PricingConfig holds the cancellation policy. Fees are in minor units.
type PricingConfig struct {
	RequestedGrace time.Duration `yaml:"requested_grace"`
	RequestedFee   int64         `yaml:"requested_fee"`
	AssignedGrace  time.Duration `yaml:"assigned_grace"`
	AssignedFee    int64         `yaml:"assigned_fee"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:   "postgres",
			Host:     "localhost",
			Port:     "5432",
			User:     "postgres",
			Password: "postgres",
			DBName:   "tripcore",
			SSLMode:  "disable",
		},
		Redis: RedisConfig{
			Enabled: false,
			Addr:    "localhost:6379",
		},
		NATS: NATSConfig{
			URL:           "nats://127.0.0.1:4222",
			MaxReconnects: -1,
			ReconnectWait: 2 * time.Second,
		},
		NewRelic: NewRelicConfig{
			AppName: "tripcore",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Storage: StorageConfig{
			Driver: "memory",
		},
		Outbox: OutboxConfig{
			Dispatcher:      "log",
			BatchSize:       20,
			MaxAttempts:     5,
			BaseBackoff:     5 * time.Second,
			PollInterval:    3 * time.Second,
			DispatchTimeout: 10 * time.Second,
			StreamName:      "TRIP_EVENTS",
			SubjectPrefix:   "trips.events",
			RedisStream:     "trips:events",
			RedisMaxLen:     100000,
		},
		Pricing: PricingConfig{
			RequestedGrace: 5 * time.Minute,
			RequestedFee:   500,
			AssignedGrace:  2 * time.Minute,
			AssignedFee:    800,
		},
	}
}

// Load builds the configuration from defaults, then the YAML file named by
// CONFIG_FILE if set, then environment variables.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the application cannot run with.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "memory", "postgres":
	default:
		return fmt.Errorf("config: unknown storage driver %q", c.Storage.Driver)
	}
	switch c.Database.Driver {
	case "postgres", "pgx":
	default:
		return fmt.Errorf("config: unknown database driver %q", c.Database.Driver)
	}
	switch c.Outbox.Dispatcher {
	case "jetstream", "log":
	case "redis":
		if !c.Redis.Enabled {
			return fmt.Errorf("config: redis outbox dispatcher requires REDIS_ENABLED")
		}
	default:
		return fmt.Errorf("config: unknown outbox dispatcher %q", c.Outbox.Dispatcher)
	}
	if c.Pricing.RequestedFee < 0 || c.Pricing.AssignedFee < 0 {
		return fmt.Errorf("config: cancellation fees must not be negative")
	}
	return nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Server.Port = getEnv("SERVER_PORT", cfg.Server.Port)
	cfg.Server.ReadTimeout = getDurationEnv("SERVER_READ_TIMEOUT", cfg.Server.ReadTimeout)
	cfg.Server.WriteTimeout = getDurationEnv("SERVER_WRITE_TIMEOUT", cfg.Server.WriteTimeout)
	cfg.Server.ShutdownTimeout = getDurationEnv("SERVER_SHUTDOWN_TIMEOUT", cfg.Server.ShutdownTimeout)

	cfg.Database.Driver = getEnv("DB_DRIVER", cfg.Database.Driver)
	cfg.Database.Host = getEnv("DB_HOST", cfg.Database.Host)
	cfg.Database.Port = getEnv("DB_PORT", cfg.Database.Port)
	cfg.Database.User = getEnv("DB_USER", cfg.Database.User)
	cfg.Database.Password = getEnv("DB_PASSWORD", cfg.Database.Password)
	cfg.Database.DBName = getEnv("DB_NAME", cfg.Database.DBName)
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", cfg.Database.SSLMode)

	cfg.Redis.Enabled = getBoolEnv("REDIS_ENABLED", cfg.Redis.Enabled)
	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = getIntEnv("REDIS_DB", cfg.Redis.DB)

	cfg.NATS.URL = getEnv("NATS_URL", cfg.NATS.URL)
	cfg.NATS.MaxReconnects = getIntEnv("NATS_MAX_RECONNECTS", cfg.NATS.MaxReconnects)
	cfg.NATS.ReconnectWait = getDurationEnv("NATS_RECONNECT_WAIT", cfg.NATS.ReconnectWait)

	cfg.NewRelic.AppName = getEnv("NEW_RELIC_APP_NAME", cfg.NewRelic.AppName)
	cfg.NewRelic.LicenseKey = getEnv("NEW_RELIC_LICENSE_KEY", cfg.NewRelic.LicenseKey)
	cfg.NewRelic.Enabled = getBoolEnv("NEW_RELIC_ENABLED", cfg.NewRelic.Enabled)

	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("LOG_FORMAT", cfg.Log.Format)

	cfg.Storage.Driver = strings.ToLower(getEnv("STORAGE_DRIVER", cfg.Storage.Driver))
	cfg.Storage.AutoMigrate = getBoolEnv("STORAGE_AUTO_MIGRATE", cfg.Storage.AutoMigrate)

	cfg.Outbox.Enabled = getBoolEnv("OUTBOX_ENABLED", cfg.Outbox.Enabled)
	cfg.Outbox.Dispatcher = strings.ToLower(getEnv("OUTBOX_DISPATCHER", cfg.Outbox.Dispatcher))
	cfg.Outbox.BatchSize = getIntEnv("OUTBOX_BATCH_SIZE", cfg.Outbox.BatchSize)
	cfg.Outbox.MaxAttempts = getIntEnv("OUTBOX_MAX_ATTEMPTS", cfg.Outbox.MaxAttempts)
	cfg.Outbox.BaseBackoff = getDurationEnv("OUTBOX_BASE_BACKOFF", cfg.Outbox.BaseBackoff)
	cfg.Outbox.PollInterval = getDurationEnv("OUTBOX_POLL_INTERVAL", cfg.Outbox.PollInterval)
	cfg.Outbox.DispatchTimeout = getDurationEnv("OUTBOX_DISPATCH_TIMEOUT", cfg.Outbox.DispatchTimeout)
	cfg.Outbox.StreamName = getEnv("OUTBOX_STREAM_NAME", cfg.Outbox.StreamName)
	cfg.Outbox.SubjectPrefix = getEnv("OUTBOX_SUBJECT_PREFIX", cfg.Outbox.SubjectPrefix)
	cfg.Outbox.RedisStream = getEnv("OUTBOX_REDIS_STREAM", cfg.Outbox.RedisStream)
	cfg.Outbox.RedisMaxLen = int64(getIntEnv("OUTBOX_REDIS_MAX_LEN", int(cfg.Outbox.RedisMaxLen)))

	cfg.Pricing.RequestedGrace = getDurationEnv("PRICING_REQUESTED_GRACE", cfg.Pricing.RequestedGrace)
	cfg.Pricing.RequestedFee = int64(getIntEnv("PRICING_REQUESTED_FEE", int(cfg.Pricing.RequestedFee)))
	cfg.Pricing.AssignedGrace = getDurationEnv("PRICING_ASSIGNED_GRACE", cfg.Pricing.AssignedGrace)
	cfg.Pricing.AssignedFee = int64(getIntEnv("PRICING_ASSIGNED_FEE", int(cfg.Pricing.AssignedFee)))
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
