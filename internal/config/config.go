package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Google    GoogleConfig    `yaml:"google" mapstructure:"google"`
	Discovery DiscoveryConfig `yaml:"discovery" mapstructure:"discovery"`
	Crawl     CrawlConfig     `yaml:"crawl" mapstructure:"crawl"`
	Enrich    EnrichConfig    `yaml:"enrich" mapstructure:"enrich"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the lead database.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// GoogleConfig configures the Places API client.
type GoogleConfig struct {
	Key       string  `yaml:"key" mapstructure:"key"`
	BaseURL   string  `yaml:"base_url" mapstructure:"base_url"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"` // requests per second
	PageSize  int     `yaml:"page_size" mapstructure:"page_size"`
}

// DiscoveryConfig configures search job defaults.
type DiscoveryConfig struct {
	// Synthetic enables generated demo candidates when no API key is set.
	Synthetic         bool `yaml:"synthetic" mapstructure:"synthetic"`
	DefaultMaxResults int  `yaml:"default_max_results" mapstructure:"default_max_results"`
	DefaultRadiusKM   int  `yaml:"default_radius_km" mapstructure:"default_radius_km"`
}

// CrawlConfig configures website fetching.
type CrawlConfig struct {
	TimeoutSecs  int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxSubpages  int    `yaml:"max_subpages" mapstructure:"max_subpages"`
	PolitenessMS int    `yaml:"politeness_ms" mapstructure:"politeness_ms"`
	MaxBodyKB    int    `yaml:"max_body_kb" mapstructure:"max_body_kb"`
	UserAgent    string `yaml:"user_agent" mapstructure:"user_agent"`
	CacheTTLMins int    `yaml:"cache_ttl_mins" mapstructure:"cache_ttl_mins"`
}

// Timeout returns the per-request fetch timeout.
func (c CrawlConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// Politeness returns the delay between subpage fetches.
func (c CrawlConfig) Politeness() time.Duration {
	return time.Duration(c.PolitenessMS) * time.Millisecond
}

// CacheTTL returns how long fetched pages are reused. Zero disables the cache.
func (c CrawlConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLMins) * time.Minute
}

// EnrichConfig configures the enrichment orchestrator.
type EnrichConfig struct {
	Concurrency   int `yaml:"concurrency" mapstructure:"concurrency"`
	FreshnessDays int `yaml:"freshness_days" mapstructure:"freshness_days"`
}

// FreshnessWindow returns how long an audit is considered current.
func (c EnrichConfig) FreshnessWindow() time.Duration {
	return time.Duration(c.FreshnessDays) * 24 * time.Hour
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// LoadOption adjusts how Load resolves settings.
type LoadOption func(v *viper.Viper) error

// WithFile reads settings from path instead of searching for config.yaml.
// Unlike the search, a missing file is an error. An empty path is ignored.
func WithFile(path string) LoadOption {
	return func(v *viper.Viper) error {
		if path != "" {
			v.SetConfigFile(path)
		}
		return nil
	}
}

// WithFlag binds a command-line flag to key. A flag the user set wins over
// env, file, and defaults; an unset flag falls through to them.
func WithFlag(key string, f *pflag.Flag) LoadOption {
	return func(v *viper.Viper) error {
		return eris.Wrapf(v.BindPFlag(key, f), "config: bind flag for %s", key)
	}
}

// Load reads configuration from config.yaml, environment variables, and defaults.
func Load(opts ...LoadOption) (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LEADGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "leadgen.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("google.key", "")
	v.SetDefault("google.base_url", "https://places.googleapis.com/v1")
	v.SetDefault("google.rate_limit", 5.0)
	v.SetDefault("google.page_size", 20)
	v.SetDefault("discovery.synthetic", false)
	v.SetDefault("discovery.default_max_results", 60)
	v.SetDefault("discovery.default_radius_km", 25)
	v.SetDefault("crawl.timeout_secs", 15)
	v.SetDefault("crawl.max_subpages", 3)
	v.SetDefault("crawl.politeness_ms", 1000)
	v.SetDefault("crawl.max_body_kb", 512)
	v.SetDefault("crawl.user_agent", "Mozilla/5.0 (compatible; LeadGenBot/1.0)")
	v.SetDefault("crawl.cache_ttl_mins", 30)
	v.SetDefault("enrich.concurrency", 3)
	v.SetDefault("enrich.freshness_days", 30)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	for _, opt := range opts {
		if err := opt(v); err != nil {
			return nil, err
		}
	}

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command needs before it runs.
func (c *Config) Validate(mode string) error {
	var missing []string

	switch c.Store.Driver {
	case "sqlite", "postgres":
		if c.Store.DatabaseURL == "" {
			missing = append(missing, "store.database_url")
		}
	case "memory":
	default:
		return eris.Errorf("config: store.driver must be sqlite, postgres, or memory (got %q)", c.Store.Driver)
	}

	switch mode {
	case "migrate", "query":
	case "search", "enrich", "audit", "serve":
		if c.Google.Key == "" && !c.Discovery.Synthetic && (mode == "search" || mode == "serve") {
			missing = append(missing, "google.key (or discovery.synthetic)")
		}
		if c.Enrich.Concurrency < 1 || c.Enrich.Concurrency > 50 {
			return eris.Errorf("config: enrich.concurrency must be between 1 and 50 (got %d)", c.Enrich.Concurrency)
		}
		if c.Crawl.TimeoutSecs <= 0 {
			return eris.Errorf("config: crawl.timeout_secs must be > 0 (got %d)", c.Crawl.TimeoutSecs)
		}
		if c.Crawl.MaxSubpages < 0 {
			return eris.Errorf("config: crawl.max_subpages must be >= 0 (got %d)", c.Crawl.MaxSubpages)
		}
		if c.Google.PageSize < 1 || c.Google.PageSize > 20 {
			return eris.Errorf("config: google.page_size must be between 1 and 20 (got %d)", c.Google.PageSize)
		}
		if mode == "serve" && c.Server.Port <= 0 {
			return eris.Errorf("config: server.port must be > 0 (got %d)", c.Server.Port)
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(missing) > 0 {
		return eris.Errorf("config: missing required fields for %s: %s", mode, strings.Join(missing, ", "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
