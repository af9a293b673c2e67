package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Store providers understood by props.New.
const (
	StoreMemory   = "memory"
	StoreFile     = "file"
	StoreSQLite   = "sqlite"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

type Config struct {
	// Property storage
	Store       string `yaml:"store"`
	FilePath    string `yaml:"file_path"`
	SQLitePath  string `yaml:"sqlite_path"`
	RedisAddr   string `yaml:"redis_addr"`
	PostgresDSN string `yaml:"postgres_dsn"`

	// Hex-encoded 32 byte key used to seal the FOLIO token at rest. Optional.
	SecretKey string `yaml:"secret_key"`

	// FOLIO client
	RequestTimeout    time.Duration `yaml:"request_timeout"`
	FanOut            int           `yaml:"fan_out"`
	BarcodeBatchSize  int           `yaml:"barcode_batch_size"`
	PageSize          int           `yaml:"page_size"`
	MaxCells          int           `yaml:"max_cells"`
	ProgressInterval  int           `yaml:"progress_interval"`
	ProgressThreshold int           `yaml:"progress_threshold"`
	MaxLoginPrompts   int           `yaml:"max_login_prompts"`

	// HTTP host
	ListenAddr    string `yaml:"listen_addr"`
	EnableMetrics bool   `yaml:"enable_metrics"`
}

func Load() *Config {
	config := &Config{
		Store:             getEnv("BOFFO_STORE", StoreFile),
		FilePath:          getEnv("BOFFO_FILE_PATH", defaultFilePath()),
		SQLitePath:        getEnv("BOFFO_SQLITE_PATH", "boffo.db"),
		RedisAddr:         getEnv("BOFFO_REDIS_ADDR", "localhost:6379"),
		PostgresDSN:       os.Getenv("BOFFO_POSTGRES_DSN"),
		SecretKey:         os.Getenv("BOFFO_SECRET_KEY"),
		RequestTimeout:    60 * time.Second,
		FanOut:            4,
		BarcodeBatchSize:  50,
		PageSize:          100,
		MaxCells:          10_000_000,
		ProgressInterval:  5000,
		ProgressThreshold: 200,
		MaxLoginPrompts:   3,
		ListenAddr:        getEnv("BOFFO_LISTEN_ADDR", "127.0.0.1:8080"),
		EnableMetrics:     os.Getenv("ENABLE_METRICS") == "true",
	}

	if timeoutStr := os.Getenv("BOFFO_REQUEST_TIMEOUT"); timeoutStr != "" {
		if timeout, err := time.ParseDuration(timeoutStr); err == nil {
			config.RequestTimeout = timeout
		}
	}
	config.FanOut = getEnvInt("BOFFO_FAN_OUT", config.FanOut)
	config.MaxCells = getEnvInt("BOFFO_MAX_CELLS", config.MaxCells)
	config.MaxLoginPrompts = getEnvInt("BOFFO_MAX_LOGIN_PROMPTS", config.MaxLoginPrompts)

	return config
}

// LoadFile reads a YAML config file on top of the defaults. Environment
// variables still win over values from the file.
func LoadFile(path string) (*Config, error) {
	base := Load()
	if path == "" {
		return base, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	fromFile := *base
	if err := yaml.Unmarshal(data, &fromFile); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}

	// Re-apply environment overrides so the precedence is env > file > default.
	applyEnv(&fromFile)
	return &fromFile, nil
}

// LoadAndValidate loads configuration (including BOFFO_CONFIG when set) and validates it.
func LoadAndValidate() (*Config, error) {
	cfg, err := LoadFile(os.Getenv("BOFFO_CONFIG"))
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the engine cannot work with.
func (c *Config) Validate() error {
	switch c.Store {
	case StoreMemory:
	case StoreFile:
		if c.FilePath == "" {
			return errors.New("BOFFO_FILE_PATH is required for the file store")
		}
	case StoreSQLite:
		if c.SQLitePath == "" {
			return errors.New("BOFFO_SQLITE_PATH is required for the sqlite store")
		}
	case StoreRedis:
		if c.RedisAddr == "" {
			return errors.New("BOFFO_REDIS_ADDR is required for the redis store")
		}
	case StorePostgres:
		if c.PostgresDSN == "" {
			return errors.New("BOFFO_POSTGRES_DSN is required for the postgres store")
		}
	default:
		return fmt.Errorf("unknown store %q", c.Store)
	}

	if c.SecretKey != "" {
		if _, err := c.SecretKeyBytes(); err != nil {
			return err
		}
	}

	if c.RequestTimeout <= 0 {
		return errors.New("request timeout must be positive")
	}
	if c.FanOut < 1 || c.FanOut > 16 {
		return fmt.Errorf("fan out must be between 1 and 16, got %d", c.FanOut)
	}
	if c.BarcodeBatchSize < 1 || c.BarcodeBatchSize > 50 {
		return fmt.Errorf("barcode batch size must be between 1 and 50, got %d", c.BarcodeBatchSize)
	}
	if c.PageSize < 1 || c.PageSize > 100 {
		return fmt.Errorf("page size must be between 1 and 100, got %d", c.PageSize)
	}
	if c.MaxCells < 1 {
		return errors.New("max cells must be positive")
	}
	if c.ProgressInterval < 1 {
		return errors.New("progress interval must be positive")
	}
	if c.MaxLoginPrompts < 1 {
		return errors.New("max login prompts must be at least 1")
	}
	return nil
}

// SecretKeyBytes decodes SecretKey. An empty key yields nil.
func (c *Config) SecretKeyBytes() ([]byte, error) {
	if c.SecretKey == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(strings.TrimSpace(c.SecretKey))
	if err != nil {
		return nil, fmt.Errorf("BOFFO_SECRET_KEY must be hex encoded: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("BOFFO_SECRET_KEY must decode to 32 bytes, got %d", len(key))
	}
	return key, nil
}

func applyEnv(c *Config) {
	if v := os.Getenv("BOFFO_STORE"); v != "" {
		c.Store = v
	}
	if v := os.Getenv("BOFFO_FILE_PATH"); v != "" {
		c.FilePath = v
	}
	if v := os.Getenv("BOFFO_SQLITE_PATH"); v != "" {
		c.SQLitePath = v
	}
	if v := os.Getenv("BOFFO_REDIS_ADDR"); v != "" {
		c.RedisAddr = v
	}
	if v := os.Getenv("BOFFO_POSTGRES_DSN"); v != "" {
		c.PostgresDSN = v
	}
	if v := os.Getenv("BOFFO_SECRET_KEY"); v != "" {
		c.SecretKey = v
	}
	if v := os.Getenv("BOFFO_REQUEST_TIMEOUT"); v != "" {
		if timeout, err := time.ParseDuration(v); err == nil {
			c.RequestTimeout = timeout
		}
	}
	if v := os.Getenv("BOFFO_LISTEN_ADDR"); v != "" {
		c.ListenAddr = v
	}
	if os.Getenv("ENABLE_METRICS") == "true" {
		c.EnableMetrics = true
	}
	c.FanOut = getEnvInt("BOFFO_FAN_OUT", c.FanOut)
	c.MaxCells = getEnvInt("BOFFO_MAX_CELLS", c.MaxCells)
	c.MaxLoginPrompts = getEnvInt("BOFFO_MAX_LOGIN_PROMPTS", c.MaxLoginPrompts)
}

func defaultFilePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "boffo.yaml"
	}
	return filepath.Join(dir, "boffo", "properties.yaml")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
