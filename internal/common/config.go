package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string        `toml:"environment" validate:"oneof=development production"`
	Server      ServerConfig  `toml:"server"`
	Data        DataConfig    `toml:"data"`
	Redis       RedisConfig   `toml:"redis"`
	Search      SearchConfig  `toml:"search"`
	Retrain     RetrainConfig `toml:"retrain"`
	Logging     LoggingConfig `toml:"logging"`
}

type ServerConfig struct {
	Port int    `toml:"port" validate:"gt=0,lte=65535"`
	Host string `toml:"host" validate:"required"`
}

// DataConfig locates the persisted state tree and the operator config tree
type DataConfig struct {
	Dir       string `toml:"dir" validate:"required"`        // Root of db/ and html/ trees (env: DATA_DIR)
	ConfigDir string `toml:"config_dir" validate:"required"` // Root of queries.yaml, allowlists.yaml, quota.yaml, cache.yaml, ml/ (env: CONFIG_DIR)
}

type RedisConfig struct {
	Host string `toml:"host" validate:"required"`
	Port int    `toml:"port" validate:"gt=0,lte=65535"`
}

// SearchConfig selects the external search provider
type SearchConfig struct {
	Provider             string `toml:"provider" validate:"oneof=mock brave google"` // env: JOBATO_SEARCH_PROVIDER
	BraveAPIKey          string `toml:"brave_api_key"`
	BraveFreshness       string `toml:"brave_freshness"`
	GoogleAPIKey         string `toml:"google_api_key"`
	GoogleSearchEngineID string `toml:"google_search_engine_id"`
}

// RetrainConfig controls the daily retrain scheduler
type RetrainConfig struct {
	Enabled     bool   `toml:"enabled"`
	Schedule    string `toml:"schedule"`     // Daily cron form "M H * * *" (env: RETRAIN_SCHEDULE)
	ArtifactDir string `toml:"artifact_dir"` // Trained model artifacts
}

type LoggingConfig struct {
	Level  string   `toml:"level" validate:"oneof=debug info warn error"`
	Format string   `toml:"format"` // "json" or "text"
	Output []string `toml:"output"` // "stdout", "file"
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8200,
			Host: "0.0.0.0",
		},
		Data: DataConfig{
			Dir:       "data",
			ConfigDir: "config",
		},
		Redis: RedisConfig{
			Host: "localhost",
			Port: 6379,
		},
		Search: SearchConfig{
			Provider:       "mock",
			BraveFreshness: "pm",
		},
		Retrain: RetrainConfig{
			Enabled:     true,
			Schedule:    "0 6 * * *",
			ArtifactDir: "data/models/trained",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: []string{"stdout"},
		},
	}
}

// LoadFromFiles loads configuration with priority: defaults -> file1 -> file2 -> ... -> env
//
// Later config files override earlier ones. Environment variables override all files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := DefaultConfig()

	for _, path := range paths {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := Validate(config); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks the configuration against struct constraints
func Validate(config *Config) error {
	validate := validator.New()
	if err := validate.Struct(config); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// ApplyFlagOverrides applies command-line flag values (highest priority)
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

func applyEnvOverrides(config *Config) {
	if v := strings.TrimSpace(os.Getenv("DATA_DIR")); v != "" {
		config.Data.Dir = v
	}
	if v := strings.TrimSpace(os.Getenv("CONFIG_DIR")); v != "" {
		config.Data.ConfigDir = v
	}
	if v := strings.TrimSpace(os.Getenv("REDIS_HOST")); v != "" {
		config.Redis.Host = v
	}
	if v := strings.TrimSpace(os.Getenv("REDIS_PORT")); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			config.Redis.Port = port
		}
	}
	if v := strings.TrimSpace(os.Getenv("JOBATO_SEARCH_PROVIDER")); v != "" {
		config.Search.Provider = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv("BRAVE_SEARCH_API_KEY")); v != "" {
		config.Search.BraveAPIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("BRAVE_SEARCH_FRESHNESS")); v != "" {
		config.Search.BraveFreshness = v
	}
	if v := strings.TrimSpace(os.Getenv("GOOGLE_SEARCH_API_KEY")); v != "" {
		config.Search.GoogleAPIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("GOOGLE_SEARCH_ENGINE_ID")); v != "" {
		config.Search.GoogleSearchEngineID = v
	}
	if v := strings.TrimSpace(os.Getenv("RETRAIN_SCHEDULE")); v != "" {
		config.Retrain.Schedule = v
	}
	if v := strings.TrimSpace(os.Getenv("RETRAIN_ENABLED")); v != "" {
		config.Retrain.Enabled = v == "true" || v == "1"
	}
}

// RedisAddr returns the host:port address for the Redis client
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// DataDir returns the resolved data directory
func (c *Config) DataDir() string {
	return filepath.Clean(c.Data.Dir)
}

// ConfigDir returns the resolved operator config directory
func (c *Config) ConfigDir() string {
	return filepath.Clean(c.Data.ConfigDir)
}
