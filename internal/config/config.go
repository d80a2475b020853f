package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	API          APIConfig          `mapstructure:"api"`
	Connectivity ConnectivityConfig `mapstructure:"connectivity"`
	Search       SearchConfig       `mapstructure:"search"`
	Cache        CacheConfig        `mapstructure:"cache"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Log          LogConfig          `mapstructure:"log"`
}

// APIConfig holds remote catalog API configuration
type APIConfig struct {
	BaseURL                string `mapstructure:"base_url"`
	Timeout                int    `mapstructure:"timeout"`                  // Seconds
	MaxRetries             int    `mapstructure:"max_retries"`              // Retries per request on transport errors
	RetryWait              int    `mapstructure:"retry_wait"`               // Milliseconds
	MaxRequestsPerSecond   int    `mapstructure:"max_requests_per_second"`  // 0 disables rate limiting
	CircuitBreakerCooldown int    `mapstructure:"circuit_breaker_cooldown"` // Seconds to stay closed after HTTP 429
	CategoryPageSize       int    `mapstructure:"category_page_size"`
	UserAgent              string `mapstructure:"user_agent"`
}

// ConnectivityConfig controls the reachability probe
type ConnectivityConfig struct {
	ProbeInterval int `mapstructure:"probe_interval"` // Seconds
	ProbeTimeout  int `mapstructure:"probe_timeout"`  // Seconds
}

type SearchConfig struct {
	DebounceMs int `mapstructure:"debounce_ms"`
}

// CacheConfig selects the local cache backend: "redis" or "postgres"
type CacheConfig struct {
	Driver string `mapstructure:"driver"`
}

// RedisConfig holds Redis connection details
type RedisConfig struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	Password  string `mapstructure:"password"`
	Database  int    `mapstructure:"database"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

const (
	CacheDriverRedis    = "redis"
	CacheDriverPostgres = "postgres"
)

func (c APIConfig) TimeoutDuration() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

func (c APIConfig) CooldownDuration() time.Duration {
	return time.Duration(c.CircuitBreakerCooldown) * time.Second
}

func (c ConnectivityConfig) IntervalDuration() time.Duration {
	return time.Duration(c.ProbeInterval) * time.Second
}

func (c ConnectivityConfig) TimeoutDuration() time.Duration {
	return time.Duration(c.ProbeTimeout) * time.Second
}

func (c SearchConfig) Debounce() time.Duration {
	return time.Duration(c.DebounceMs) * time.Millisecond
}

// DSN returns the pgx connection string
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.Host, c.Port, c.User, c.Password, c.Name)
}

// Load loads configuration from an optional config.yaml in the working
// directory, with environment variable overrides. A .env file next to it
// seeds variables that are not already set.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		log.Debug("config.yaml not found, using defaults and environment")
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url must not be empty")
	}
	if c.API.CategoryPageSize <= 0 {
		return fmt.Errorf("api.category_page_size must be positive, got %d", c.API.CategoryPageSize)
	}
	switch c.Cache.Driver {
	case CacheDriverRedis, CacheDriverPostgres:
	default:
		return fmt.Errorf("unknown cache.driver %q", c.Cache.Driver)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", "https://dummyjson.com")
	v.SetDefault("api.timeout", 15)
	v.SetDefault("api.max_retries", 2)
	v.SetDefault("api.retry_wait", 500)
	v.SetDefault("api.max_requests_per_second", 10)
	v.SetDefault("api.circuit_breaker_cooldown", 60)
	v.SetDefault("api.category_page_size", 7)
	v.SetDefault("api.user_agent", "catalog-browser/1.0")

	v.SetDefault("connectivity.probe_interval", 5)
	v.SetDefault("connectivity.probe_timeout", 3)

	v.SetDefault("search.debounce_ms", 100)

	v.SetDefault("cache.driver", CacheDriverRedis)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.database", 0)
	v.SetDefault("redis.key_prefix", "catalog:")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "catalog")
	v.SetDefault("database.user", "catalog_user")
	v.SetDefault("database.password", "catalog_pass")

	v.SetDefault("log.level", "info")
}
