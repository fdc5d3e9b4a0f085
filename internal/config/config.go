// Package config loads Star Seeker configuration from flags, environment variables,
// .env files and an optional starseeker.yaml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/starseeker/starseeker/internal/database"
)

// EnvPrefix prefixes every environment variable, e.g. STARSEEKER_API_KEY.
const EnvPrefix = "STARSEEKER"

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverFile     = "file"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

// Errors returned by Load.
var (
	ErrMissingBaseURL = errors.New("api.base_url is required (STARSEEKER_API_BASE_URL or EXPO_PUBLIC_API_BASE_URL)")
	ErrMissingAPIKey  = errors.New("api.key is required (STARSEEKER_API_KEY or EXPO_PUBLIC_API_KEY)")
)

// Config is the complete application configuration.
type Config struct {
	API      APIConfig
	Cache    CacheConfig
	Storage  StorageConfig
	Redis    RedisConfig
	Database database.Config
	HTTP     HTTPConfig
	Log      LogConfig
	OTel     OTelConfig
	Prefetch PrefetchConfig

	// ConfigFile is the config file that was read, if any.
	ConfigFile string
}

// APIConfig configures the gate network API client.
type APIConfig struct {
	BaseURL   string
	Key       string
	Timeout   time.Duration
	AllRoutes bool
}

// CacheConfig configures the request cache.
type CacheConfig struct {
	StaleTime time.Duration
	GCTime    time.Duration
	Retries   int
}

// StorageConfig selects the key-value store backend.
type StorageConfig struct {
	Driver string
	Path   string
}

// RedisConfig configures the redis storage driver.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// HTTPConfig configures the API server.
type HTTPConfig struct {
	Port            int
	RateLimit       int
	ShutdownTimeout time.Duration
	RequireTLS      bool
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string
	Pretty bool
}

// OTelConfig configures OpenTelemetry export.
type OTelConfig struct {
	Enabled     bool
	Endpoint    string
	ServiceName string
	Environment string
}

// PrefetchConfig configures the cache warming worker.
type PrefetchConfig struct {
	Enabled     bool
	Interval    time.Duration
	Concurrency int
}

// Options controls where Load looks for configuration.
type Options struct {
	// ConfigFile is an explicit config file path. When empty, starseeker.yaml is searched
	// for in the working directory and the user config directory.
	ConfigFile string

	// EnvFiles are loaded before reading the environment (default: .env, .env.local).
	EnvFiles []string

	// Viper lets callers pass an instance with flags already bound.
	Viper *viper.Viper
}

// Load reads configuration in order of precedence:
// 1. Bound command-line flags
// 2. Environment variables
// 3. .env files
// 4. Config file
// 5. Defaults
func Load(opts Options) (*Config, error) {
	envFiles := opts.EnvFiles
	if envFiles == nil {
		envFiles = []string{".env", ".env.local"}
	}
	loadEnvFiles(envFiles)

	v := opts.Viper
	if v == nil {
		v = viper.New()
	}
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("starseeker")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "starseeker"))
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	cfg := &Config{
		API: APIConfig{
			BaseURL:   firstNonEmpty(v.GetString("api.base_url"), os.Getenv("EXPO_PUBLIC_API_BASE_URL")),
			Key:       firstNonEmpty(v.GetString("api.key"), os.Getenv("EXPO_PUBLIC_API_KEY")),
			Timeout:   v.GetDuration("api.timeout"),
			AllRoutes: v.GetBool("api.all_routes"),
		},
		Cache: CacheConfig{
			StaleTime: v.GetDuration("cache.stale_time"),
			GCTime:    v.GetDuration("cache.gc_time"),
			Retries:   v.GetInt("cache.retries"),
		},
		Storage: StorageConfig{
			Driver: strings.ToLower(v.GetString("storage.driver")),
			Path:   v.GetString("storage.path"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Database: database.Config{
			URL:             v.GetString("database.url"),
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			Database:        v.GetString("database.name"),
			SSLMode:         v.GetString("database.ssl_mode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetDuration("database.conn_max_lifetime"),
			ConnectAttempts: uint64(max(v.GetInt("database.connect_attempts"), 0)), //nolint:gosec // clamped
		},
		HTTP: HTTPConfig{
			Port:            v.GetInt("http.port"),
			RateLimit:       v.GetInt("http.rate_limit"),
			ShutdownTimeout: v.GetDuration("http.shutdown_timeout"),
			RequireTLS:      v.GetBool("http.require_tls"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Pretty: v.GetBool("log.pretty"),
		},
		OTel: OTelConfig{
			Enabled:     v.GetBool("otel.enabled"),
			Endpoint:    v.GetString("otel.endpoint"),
			ServiceName: v.GetString("otel.service_name"),
			Environment: v.GetString("otel.environment"),
		},
		Prefetch: PrefetchConfig{
			Enabled:     v.GetBool("prefetch.enabled"),
			Interval:    v.GetDuration("prefetch.interval"),
			Concurrency: v.GetInt("prefetch.concurrency"),
		},
		ConfigFile: v.ConfigFileUsed(),
	}

	if cfg.Storage.Path == "" {
		cfg.Storage.Path = defaultStoragePath()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required settings.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return ErrMissingBaseURL
	}
	if c.API.Key == "" {
		return ErrMissingAPIKey
	}

	switch c.Storage.Driver {
	case DriverMemory, DriverFile, DriverRedis, DriverPostgres:
	default:
		return fmt.Errorf("unknown storage.driver %q", c.Storage.Driver)
	}

	if c.Storage.Driver == DriverRedis && c.Redis.Addr == "" {
		return errors.New("redis.addr is required for the redis storage driver")
	}
	if c.Prefetch.Concurrency < 1 {
		return errors.New("prefetch.concurrency must be at least 1")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.timeout", 10*time.Second)
	v.SetDefault("api.all_routes", false)

	v.SetDefault("cache.stale_time", 10*time.Second)
	v.SetDefault("cache.gc_time", 24*time.Hour)
	v.SetDefault("cache.retries", 3)

	v.SetDefault("storage.driver", DriverFile)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "starseeker")
	v.SetDefault("database.password", "localdev")
	v.SetDefault("database.name", "starseeker")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.connect_attempts", 3)

	v.SetDefault("http.port", 8080)
	v.SetDefault("http.rate_limit", 100)
	v.SetDefault("http.shutdown_timeout", 30*time.Second)
	v.SetDefault("http.require_tls", false)

	v.SetDefault("log.level", "info")

	v.SetDefault("otel.enabled", false)
	v.SetDefault("otel.endpoint", "localhost:4317")
	v.SetDefault("otel.service_name", "starseeker-api")
	v.SetDefault("otel.environment", "development")

	v.SetDefault("prefetch.enabled", true)
	v.SetDefault("prefetch.interval", 5*time.Minute)
	v.SetDefault("prefetch.concurrency", 3)
}

// loadEnvFiles loads environment variables from .env files. Existing variables win.
func loadEnvFiles(files []string) {
	for _, f := range files {
		_ = godotenv.Load(f)
	}
}

func defaultStoragePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".", "starseeker-storage.json")
	}
	return filepath.Join(dir, "starseeker", "storage.json")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
