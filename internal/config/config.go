package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Store drivers.
const (
	StoreNone     = "none"
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

type AppConfig struct {
	Port     string `yaml:"port"`
	LogLevel string `yaml:"log_level"`

	FRED FREDConfig `yaml:"fred"`

	Store StoreConfig `yaml:"store"`

	// Retention removes measurements older than MaxAge every Interval (MaxAge 0 = disabled).
	Retention RetentionConfig `yaml:"retention"`

	MetricsEnabled bool `yaml:"metrics_enabled"`
}

type FREDConfig struct {
	APIKey      string        `yaml:"api_key"`
	BaseURL     string        `yaml:"base_url"`
	HTTPTimeout time.Duration `yaml:"http_timeout"`
	MaxRetries  int           `yaml:"max_retries"`
}

type StoreConfig struct {
	Driver      string `yaml:"driver"`
	DatabaseURL string `yaml:"database_url"`
	SQLitePath  string `yaml:"sqlite_path"`
	MaxHistory  int    `yaml:"max_history"` // memory driver only (0 = unlimited)

	Host     string `yaml:"host"`
	DBPort   string `yaml:"db_port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"sslmode"`
}

type RetentionConfig struct {
	MaxAge   time.Duration `yaml:"max_age"`
	Interval time.Duration `yaml:"interval"`
}

// Load reads configuration from an optional YAML file (CONFIG_FILE), then from
// the environment, with sensible defaults. Environment values win.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}

	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	cfg.Store.Driver = strings.ToLower(strings.TrimSpace(cfg.Store.Driver))
	switch cfg.Store.Driver {
	case StoreNone, StoreMemory, StorePostgres, StoreSQLite:
	default:
		return nil, fmt.Errorf("invalid STORE_DRIVER %q", cfg.Store.Driver)
	}

	return cfg, nil
}

// RequireAPIKey fails when no FRED API key is configured.
func (c *AppConfig) RequireAPIKey() error {
	if strings.TrimSpace(c.FRED.APIKey) == "" {
		return fmt.Errorf("FRED_API_KEY environment variable is required")
	}
	return nil
}

// PostgresDSN returns DatabaseURL, or builds a DSN from the discrete settings.
func (c StoreConfig) PostgresDSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
		c.Host, c.DBPort, c.User, c.Password, c.Name, c.SSLMode)
}

func defaults() *AppConfig {
	return &AppConfig{
		Port:     "8080",
		LogLevel: "info",
		FRED: FREDConfig{
			HTTPTimeout: 10 * time.Second,
			MaxRetries:  3,
		},
		Store: StoreConfig{
			Driver:     StoreMemory,
			SQLitePath: "measurements.db",
			MaxHistory: 10000,
			Host:       "localhost",
			DBPort:     "5432",
			User:       "postgres",
			Name:       "postgres",
			SSLMode:    "disable",
		},
		Retention: RetentionConfig{
			Interval: 24 * time.Hour,
		},
		MetricsEnabled: true,
	}
}

func loadFile(path string, cfg *AppConfig) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}
	return nil
}

func applyEnv(cfg *AppConfig) error {
	cfg.Port = getenvDefault("PORT", cfg.Port)
	cfg.LogLevel = getenvDefault("LOG_LEVEL", cfg.LogLevel)

	cfg.FRED.APIKey = getenvDefault("FRED_API_KEY", cfg.FRED.APIKey)
	cfg.FRED.BaseURL = getenvDefault("FRED_BASE_URL", cfg.FRED.BaseURL)
	cfg.FRED.MaxRetries = getenvInt("PROVIDER_MAX_RETRIES", cfg.FRED.MaxRetries)

	var err error
	if cfg.FRED.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", cfg.FRED.HTTPTimeout); err != nil {
		return err
	}

	cfg.Store.Driver = getenvDefault("STORE_DRIVER", cfg.Store.Driver)
	cfg.Store.DatabaseURL = getenvDefault("DATABASE_URL", cfg.Store.DatabaseURL)
	cfg.Store.SQLitePath = getenvDefault("SQLITE_PATH", cfg.Store.SQLitePath)
	cfg.Store.MaxHistory = getenvInt("STORE_MAX_HISTORY", cfg.Store.MaxHistory)
	cfg.Store.Host = getenvDefault("DB_HOST", cfg.Store.Host)
	cfg.Store.DBPort = getenvDefault("DB_PORT", cfg.Store.DBPort)
	cfg.Store.User = getenvDefault("DB_USER", cfg.Store.User)
	cfg.Store.Password = getenvDefault("DB_PASSWORD", cfg.Store.Password)
	cfg.Store.Name = getenvDefault("DB_NAME", cfg.Store.Name)
	cfg.Store.SSLMode = getenvDefault("DB_SSLMODE", cfg.Store.SSLMode)

	if cfg.Retention.MaxAge, err = getenvDuration("RETENTION_MAX_AGE", cfg.Retention.MaxAge); err != nil {
		return err
	}
	if cfg.Retention.Interval, err = getenvDuration("RETENTION_INTERVAL", cfg.Retention.Interval); err != nil {
		return err
	}

	if v := os.Getenv("METRICS_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid METRICS_ENABLED: %w", err)
		}
		cfg.MetricsEnabled = enabled
	}
	return nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
