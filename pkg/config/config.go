package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	API       APIConfig
	Feed      FeedConfig
	Lists     ListsConfig
	Search    SearchConfig
	Redis     RedisConfig
	Server    ServerConfig
	Logging   LoggingConfig
	Telemetry TelemetryConfig
}

// APIConfig holds the remote feed API configuration
type APIConfig struct {
	URL        string
	Timeout    time.Duration
	MaxRetries int
	ViewerID   int64
}

// FeedConfig holds feed pagination settings
type FeedConfig struct {
	PageSize int
}

// ListsConfig holds user list pagination settings
type ListsConfig struct {
	PageSize int
}

// SearchConfig holds the in-process username search cache settings
type SearchConfig struct {
	CacheSize int
	CacheTTL  time.Duration
}

// RedisConfig holds Redis configuration for the shared snapshot cache
type RedisConfig struct {
	URL      string
	Enabled  bool
	StatsTTL time.Duration
}

// ServerConfig holds the bridge HTTP server configuration
type ServerConfig struct {
	Port int
	Host string
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string
	Format       string // "json" or "text"
	ScalyrFormat bool
}

// TelemetryConfig holds observability configuration
type TelemetryConfig struct {
	Enabled           bool
	JaegerURL         string
	PrometheusEnabled bool
	ServiceName       string
}

// Load loads configuration from FEED_* environment variables and an
// optional config.yaml
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("FEED")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.feedclient")
	v.AddConfigPath("/etc/feedclient")

	if err := v.ReadInConfig(); err != nil {
		// a missing file is fine, env and defaults still apply
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	redisURL := v.GetString("redis_url")
	cfg := &Config{
		API: APIConfig{
			URL:        v.GetString("api_url"),
			Timeout:    v.GetDuration("api_timeout"),
			MaxRetries: v.GetInt("api_max_retries"),
			ViewerID:   v.GetInt64("viewer_id"),
		},
		Feed: FeedConfig{
			PageSize: v.GetInt("feed_page_size"),
		},
		Lists: ListsConfig{
			PageSize: v.GetInt("list_page_size"),
		},
		Search: SearchConfig{
			CacheSize: v.GetInt("search_cache_size"),
			CacheTTL:  v.GetDuration("search_cache_ttl"),
		},
		Redis: RedisConfig{
			URL:      redisURL,
			Enabled:  redisURL != "",
			StatsTTL: v.GetDuration("redis_stats_ttl"),
		},
		Server: ServerConfig{
			Port: v.GetInt("http_server_port"),
			Host: v.GetString("http_server_host"),
		},
		Logging: LoggingConfig{
			Level:        v.GetString("log_level"),
			Format:       v.GetString("log_format"),
			ScalyrFormat: v.GetBool("log_scalyr_format"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry_enabled"),
			JaegerURL:         v.GetString("jaeger_url"),
			PrometheusEnabled: v.GetBool("prometheus_enabled"),
			ServiceName:       v.GetString("service_name"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api_url", "http://localhost:8090/rpc")
	v.SetDefault("api_timeout", 10*time.Second)
	v.SetDefault("api_max_retries", 3)
	v.SetDefault("viewer_id", 0)
	v.SetDefault("feed_page_size", 20)
	v.SetDefault("list_page_size", 20)
	v.SetDefault("search_cache_size", 256)
	v.SetDefault("search_cache_ttl", 30*time.Second)
	v.SetDefault("redis_url", "")
	v.SetDefault("redis_stats_ttl", time.Minute)
	v.SetDefault("http_server_port", 8080)
	v.SetDefault("http_server_host", "127.0.0.1")
	v.SetDefault("log_level", "INFO")
	v.SetDefault("log_format", "json")
	v.SetDefault("log_scalyr_format", false)
	v.SetDefault("telemetry_enabled", false)
	v.SetDefault("jaeger_url", "")
	v.SetDefault("prometheus_enabled", true)
	v.SetDefault("service_name", "feedclient")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.API.URL == "" {
		return fmt.Errorf("api_url is required")
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("api_timeout must be positive")
	}
	if c.API.MaxRetries < 0 || c.API.MaxRetries > 10 {
		return fmt.Errorf("api_max_retries must be between 0 and 10")
	}
	if c.Feed.PageSize <= 0 || c.Feed.PageSize > 100 {
		return fmt.Errorf("feed_page_size must be between 1 and 100")
	}
	if c.Lists.PageSize <= 0 || c.Lists.PageSize > 100 {
		return fmt.Errorf("list_page_size must be between 1 and 100")
	}
	if c.Search.CacheSize <= 0 {
		return fmt.Errorf("search_cache_size must be positive")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("http_server_port must be between 1 and 65535")
	}
	return nil
}
