package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Redis     RedisConfig     `mapstructure:"redis"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Refresh   RefreshConfig   `mapstructure:"refresh"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Models    []ModelConfig   `mapstructure:"models"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Env  string `mapstructure:"env"`
	// AuthToken enables bearer auth on the API when non-empty.
	AuthToken string `mapstructure:"auth_token"`
}

// RedisConfig points at the external store backing dynamic models. When
// disabled the router runs on static configuration alone.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Enabled  bool   `mapstructure:"enabled"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// RefreshConfig controls the background registry refresh.
type RefreshConfig struct {
	Interval string `mapstructure:"interval"`
	Enabled  bool   `mapstructure:"enabled"`
}

type StorageConfig struct {
	Path string `mapstructure:"path"`
}

type EngineConfig struct {
	MaxRetries     int `mapstructure:"max_retries"`
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// ModelConfig is one static registry entry. api_key supports "ENV:NAME"
// indirection so config files never carry secrets.
type ModelConfig struct {
	ID              string   `mapstructure:"id"`
	Provider        string   `mapstructure:"provider"`
	APIKey          string   `mapstructure:"api_key"`
	Endpoint        string   `mapstructure:"endpoint"`
	Priority        int      `mapstructure:"priority"`
	CostPer1KTokens float64  `mapstructure:"cost_per_1k_tokens"`
	TaskTypes       []string `mapstructure:"task_types"`
	MaxTokens       int      `mapstructure:"max_tokens"`
}

// LoadConfig reads configuration from file and environment variables. An
// empty path searches the working directory and ./config.
func LoadConfig(path string) (*Config, error) {
	// Load .env file if present
	_ = godotenv.Load()

	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Default Values
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.env", "development")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("rate_limit.requests_per_second", 10.0)
	v.SetDefault("rate_limit.burst", 20)
	v.SetDefault("refresh.enabled", true)
	v.SetDefault("refresh.interval", "30s")
	v.SetDefault("storage.path", "modelmux.db")
	v.SetDefault("engine.max_retries", 2)
	v.SetDefault("engine.timeout_seconds", 60)

	// Environment Variables
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	return &cfg, nil
}
