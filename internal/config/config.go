package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config holds all configuration for medtrack
type Config struct {
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Storage  StorageConfig  `mapstructure:"storage" yaml:"storage"`
	Security SecurityConfig `mapstructure:"security" yaml:"security"`
	Sweep    SweepConfig    `mapstructure:"sweep" yaml:"sweep"`
	Insights InsightsConfig `mapstructure:"insights" yaml:"insights"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
	Timezone string         `mapstructure:"timezone" yaml:"timezone"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Address      string `mapstructure:"address" yaml:"address"`
	Port         int    `mapstructure:"port" yaml:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout" yaml:"write_timeout"`
}

// StorageConfig holds database settings
type StorageConfig struct {
	DataDir    string `mapstructure:"data_dir" yaml:"data_dir"`
	SQLitePath string `mapstructure:"sqlite_path" yaml:"sqlite_path"`
	BadgerPath string `mapstructure:"badger_path" yaml:"badger_path"`
}

// SecurityConfig holds API protection settings
type SecurityConfig struct {
	JWTSecret    string   `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	AllowOrigins []string `mapstructure:"allow_origins" yaml:"allow_origins"`
	RateLimit    float64  `mapstructure:"rate_limit" yaml:"rate_limit"`
	RateBurst    int      `mapstructure:"rate_burst" yaml:"rate_burst"`
}

// SweepConfig holds the background job schedule
type SweepConfig struct {
	Enabled       bool   `mapstructure:"enabled" yaml:"enabled"`
	RolloverSpec  string `mapstructure:"rollover_spec" yaml:"rollover_spec"`
	LowStockSpec  string `mapstructure:"low_stock_spec" yaml:"low_stock_spec"`
	MaxConcurrent int    `mapstructure:"max_concurrent" yaml:"max_concurrent"`
}

// InsightsConfig holds the summarizer and its cache
type InsightsConfig struct {
	Enabled         bool   `mapstructure:"enabled" yaml:"enabled"`
	BaseURL         string `mapstructure:"base_url" yaml:"base_url"`
	APIKey          string `mapstructure:"api_key" yaml:"api_key"`
	Model           string `mapstructure:"model" yaml:"model"`
	Timeout         int    `mapstructure:"timeout" yaml:"timeout"`
	MaxTokens       int    `mapstructure:"max_tokens" yaml:"max_tokens"`
	CacheTTLHours   int    `mapstructure:"cache_ttl_hours" yaml:"cache_ttl_hours"`
	BreakerFailures uint32 `mapstructure:"breaker_failures" yaml:"breaker_failures"`
	BreakerCooldown int    `mapstructure:"breaker_cooldown" yaml:"breaker_cooldown"`
}

// LogConfig holds logger settings
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Load loads configuration from file, env, and defaults
func Load(configPath, dataDir string) (*Config, error) {
	v, err := newViper(configPath, dataDir)
	if err != nil {
		return nil, err
	}
	return decode(v)
}

func newViper(configPath, dataDir string) (*viper.Viper, error) {
	v := viper.New()

	setDefaults(v)

	if dataDir == "" {
		dataDir = DataDir("")
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	v.SetDefault("storage.data_dir", dataDir)
	v.SetDefault("storage.sqlite_path", filepath.Join(dataDir, "medtrack.db"))
	v.SetDefault("storage.badger_path", filepath.Join(dataDir, "badger"))

	if configPath == "" {
		configPath = filepath.Join(dataDir, "medtrack.yaml")
	}

	if _, err := os.Stat(configPath); err == nil {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	// MEDTRACK_SERVER_PORT, MEDTRACK_INSIGHTS_API_KEY, ...
	v.SetEnvPrefix("MEDTRACK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyEnvAliases(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30)
	v.SetDefault("server.write_timeout", 30)

	v.SetDefault("security.allow_origins", []string{"*"})
	v.SetDefault("security.rate_limit", 10.0)
	v.SetDefault("security.rate_burst", 20)

	v.SetDefault("sweep.enabled", true)
	v.SetDefault("sweep.rollover_spec", "5 0 * * *")
	v.SetDefault("sweep.low_stock_spec", "0 9 * * *")
	v.SetDefault("sweep.max_concurrent", 4)

	v.SetDefault("insights.enabled", false)
	v.SetDefault("insights.base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("insights.model", "llama-3.1-8b-instant")
	v.SetDefault("insights.timeout", 30)
	v.SetDefault("insights.max_tokens", 512)
	v.SetDefault("insights.cache_ttl_hours", 24)
	v.SetDefault("insights.breaker_failures", 3)
	v.SetDefault("insights.breaker_cooldown", 60)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("timezone", "Local")
}

func getDefaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "medtrack")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "./data"
	}

	return filepath.Join(home, ".local", "share", "medtrack")
}
