package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig            `yaml:"server"`
	Cache     CacheConfig             `yaml:"cache"`
	Scraping  ScrapingConfig          `yaml:"scraping"`
	Sources   map[string]SourceConfig `yaml:"sources"`
	Publisher PublisherConfig         `yaml:"publisher"`
	Warmer    WarmerConfig            `yaml:"warmer"`
	LogLevel  string                  `yaml:"log_level"`
	LogFormat string                  `yaml:"log_format"`
}

type ServerConfig struct {
	Port              string        `yaml:"port"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	IdleTimeout       time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
	SpecDir           string        `yaml:"spec_dir"`
}

type CacheConfig struct {
	RedisURL         string        `yaml:"redis_url"`
	DBPath           string        `yaml:"db_path"`
	MaxLocalEntries  int           `yaml:"max_local_entries"`
	ConnectTimeout   time.Duration `yaml:"connect_timeout"`
	RecoveryInterval time.Duration `yaml:"recovery_interval"`
	CompareTTL       time.Duration `yaml:"compare_ttl"`
	SearchTTL        time.Duration `yaml:"search_ttl"`
	ProductTTL       time.Duration `yaml:"product_ttl"`
}

type ScrapingConfig struct {
	BaseDelay      time.Duration `yaml:"base_delay"`
	Jitter         time.Duration `yaml:"jitter"`
	MaxRetries     int           `yaml:"max_retries"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	RenderTimeout  time.Duration `yaml:"render_timeout"`
	WaitTimeout    time.Duration `yaml:"wait_timeout"`
	MaxConcurrent  int           `yaml:"max_concurrent"`
	UserAgent      string        `yaml:"user_agent"`
}

type SourceConfig struct {
	Enabled bool   `yaml:"enabled"`
	BaseURL string `yaml:"base_url"`
}

type PublisherConfig struct {
	URL        string `yaml:"url"`
	Exchange   string `yaml:"exchange"`
	RoutingKey string `yaml:"routing_key"`
	QueueName  string `yaml:"queue_name"`
}

type WarmerConfig struct {
	Schedule  string        `yaml:"schedule"`
	Queries   []string      `yaml:"queries"`
	Platforms string        `yaml:"platforms"`
	Timeout   time.Duration `yaml:"timeout"`
}

// Load reads path (if it exists), expands ${VAR} references, fills defaults and
// applies environment overrides. A missing file yields the default configuration.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	// Zero turns these off, so their defaults go in before decoding instead of in
	// setDefaults.
	cfg := Config{
		Scraping: ScrapingConfig{
			BaseDelay:  2 * time.Second,
			Jitter:     2 * time.Second,
			MaxRetries: 3,
		},
	}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config file: %w", err)
		default:
			expanded := os.ExpandEnv(string(data))
			if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	cfg.applyEnv()
	cfg.setDefaults()

	return &cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		c.Cache.RedisURL = v
	}
	if v := os.Getenv("CACHE_DB_PATH"); v != "" {
		c.Cache.DBPath = v
	}
	if v := os.Getenv("CACHE_MAX_LOCAL_ENTRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Cache.MaxLocalEntries = n
		}
	}
	if v := os.Getenv("AMQP_URL"); v != "" {
		c.Publisher.URL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

func (c *Config) setDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "9090"
	}
	if c.Server.ReadHeaderTimeout == 0 {
		c.Server.ReadHeaderTimeout = 15 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 120 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Server.SpecDir == "" {
		c.Server.SpecDir = "./"
	}
	if c.Cache.MaxLocalEntries == 0 {
		c.Cache.MaxLocalEntries = 1000
	}
	if c.Cache.ConnectTimeout == 0 {
		c.Cache.ConnectTimeout = 5 * time.Second
	}
	if c.Cache.RecoveryInterval == 0 {
		c.Cache.RecoveryInterval = 15 * time.Second
	}
	if c.Cache.CompareTTL == 0 {
		c.Cache.CompareTTL = 1800 * time.Second
	}
	if c.Cache.SearchTTL == 0 {
		c.Cache.SearchTTL = 3600 * time.Second
	}
	if c.Cache.ProductTTL == 0 {
		c.Cache.ProductTTL = 3600 * time.Second
	}
	if c.Scraping.BaseDelay < 0 {
		c.Scraping.BaseDelay = 0
	}
	if c.Scraping.Jitter < 0 {
		c.Scraping.Jitter = 0
	}
	if c.Scraping.MaxRetries < 0 {
		c.Scraping.MaxRetries = 0
	}
	if c.Scraping.RequestTimeout == 0 {
		c.Scraping.RequestTimeout = 10 * time.Second
	}
	if c.Scraping.RenderTimeout == 0 {
		c.Scraping.RenderTimeout = 30 * time.Second
	}
	if c.Scraping.WaitTimeout == 0 {
		c.Scraping.WaitTimeout = 10 * time.Second
	}
	if c.Scraping.MaxConcurrent == 0 {
		c.Scraping.MaxConcurrent = 3
	}
	if c.Sources == nil {
		c.Sources = map[string]SourceConfig{
			"blinkit": {Enabled: true, BaseURL: "https://blinkit.com"},
			"lidl":    {Enabled: true, BaseURL: "https://www.lidl.at"},
			"hofer":   {Enabled: true, BaseURL: "https://www.hofer.at"},
		}
	}
	if c.Publisher.Exchange == "" {
		c.Publisher.Exchange = "hunter_compare"
	}
	if c.Publisher.RoutingKey == "" {
		c.Publisher.RoutingKey = "comparisons"
	}
	if c.Publisher.QueueName == "" {
		c.Publisher.QueueName = "price_comparisons"
	}
	if c.Warmer.Schedule == "" {
		c.Warmer.Schedule = "@every 30m"
	}
	if c.Warmer.Timeout == 0 {
		c.Warmer.Timeout = 5 * time.Minute
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "json"
	}
}
