// Package config loads and validates the application configuration from
// config.yaml and CRIMEGEO_* environment variables. The configuration is
// read once at process start; the resulting Config (including the service
// registry) is immutable afterward.
package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Known provider kinds.
const (
	KindLocal     = "local"
	KindCensus    = "census"
	KindPelias    = "pelias"
	KindNominatim = "nominatim"
)

// Config holds the full application configuration.
type Config struct {
	Index    IndexConfig     `yaml:"index" mapstructure:"index"`
	Cache    CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Services []ServiceConfig `yaml:"services" mapstructure:"services"`
	Log      LogConfig       `yaml:"log" mapstructure:"log"`
}

// IndexConfig configures the local search index.
type IndexConfig struct {
	Path           string  `yaml:"path" mapstructure:"path"`
	ExactThreshold float64 `yaml:"exact_threshold" mapstructure:"exact_threshold"`
	BuildWorkers   int     `yaml:"build_workers" mapstructure:"build_workers"`
	BuildBatchSize int     `yaml:"build_batch_size" mapstructure:"build_batch_size"`
}

// CacheConfig configures the embedded result cache.
type CacheConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// ServiceConfig is one geocoding provider entry in the registry. Lower
// priority values are tried first; disabled entries never participate.
type ServiceConfig struct {
	ID          string `yaml:"id" mapstructure:"id"`
	Name        string `yaml:"name" mapstructure:"name"`
	Kind        string `yaml:"kind" mapstructure:"kind"`
	Enabled     bool   `yaml:"enabled" mapstructure:"enabled"`
	Priority    int    `yaml:"priority" mapstructure:"priority"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	RateLimitMS int    `yaml:"rate_limit_ms" mapstructure:"rate_limit_ms"`
	Concurrency int    `yaml:"concurrency" mapstructure:"concurrency"`
	BatchSize   int    `yaml:"batch_size" mapstructure:"batch_size"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment and validates it.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CRIMEGEO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("index.path", "data/addresses.bleve")
	v.SetDefault("index.exact_threshold", 8.0)
	v.SetDefault("index.build_workers", 4)
	v.SetDefault("index.build_batch_size", 1000)
	v.SetDefault("cache.path", "data/geocode_cache.db")
	v.SetDefault("services", defaultServices())

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
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// defaultServices is the standard four-provider cascade: the local index
// first, then census batch, then a self-hosted pelias, then the public
// nominatim instance with its mandatory courtesy delay.
func defaultServices() []map[string]any {
	return []map[string]any{
		{
			"id": "local", "name": "Local address index", "kind": KindLocal,
			"enabled": true, "priority": 1,
		},
		{
			"id": "census", "name": "Census Geocoder", "kind": KindCensus,
			"enabled": true, "priority": 2,
			"base_url":   "https://geocoding.geo.census.gov",
			"batch_size": 10000, "timeout_secs": 300,
		},
		{
			"id": "pelias", "name": "Self-hosted Pelias", "kind": KindPelias,
			"enabled": false, "priority": 3,
			"base_url": "http://localhost:4000", "concurrency": 10, "timeout_secs": 30,
		},
		{
			"id": "nominatim", "name": "OSM Nominatim", "kind": KindNominatim,
			"enabled": true, "priority": 4,
			"base_url":      "https://nominatim.openstreetmap.org",
			"rate_limit_ms": 1000, "timeout_secs": 30,
		},
	}
}

var validKinds = map[string]struct{}{
	KindLocal:     {},
	KindCensus:    {},
	KindPelias:    {},
	KindNominatim: {},
}

// Validate fails fast on malformed configuration so a bad registry never
// reaches the resolver.
func (c *Config) Validate() error {
	if c.Index.ExactThreshold < 0 {
		return eris.New("config: index.exact_threshold must not be negative")
	}

	seen := map[string]struct{}{}
	enabled := 0
	for i, svc := range c.Services {
		if svc.ID == "" {
			return eris.Errorf("config: services[%d] missing id", i)
		}
		if _, dup := seen[svc.ID]; dup {
			return eris.Errorf("config: duplicate service id %q", svc.ID)
		}
		seen[svc.ID] = struct{}{}

		if _, ok := validKinds[svc.Kind]; !ok {
			return eris.Errorf("config: service %q has unknown kind %q", svc.ID, svc.Kind)
		}
		if svc.Priority <= 0 {
			return eris.Errorf("config: service %q needs a positive priority", svc.ID)
		}
		if svc.RateLimitMS < 0 {
			return eris.Errorf("config: service %q has negative rate_limit_ms", svc.ID)
		}
		if svc.Kind != KindLocal && svc.Enabled && svc.BaseURL == "" {
			return eris.Errorf("config: service %q needs a base_url", svc.ID)
		}
		if svc.Enabled {
			enabled++
		}
	}
	if enabled == 0 {
		return eris.New("config: no services enabled, resolution cannot make progress")
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

// String renders a one-line summary of a service entry for the providers
// command.
func (s ServiceConfig) String() string {
	state := "disabled"
	if s.Enabled {
		state = "enabled"
	}
	return fmt.Sprintf("%-10s priority=%d kind=%-9s %s", s.ID, s.Priority, s.Kind, state)
}
