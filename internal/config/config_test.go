package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Index: IndexConfig{Path: "data/idx", ExactThreshold: 8},
		Cache: CacheConfig{Path: "data/cache.db"},
		Services: []ServiceConfig{
			{ID: "local", Kind: KindLocal, Enabled: true, Priority: 1},
			{ID: "census", Kind: KindCensus, Enabled: true, Priority: 2, BaseURL: "https://geocoding.geo.census.gov"},
		},
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 8.0, cfg.Index.ExactThreshold)
	require.Len(t, cfg.Services, 4)

	byID := map[string]ServiceConfig{}
	for _, s := range cfg.Services {
		byID[s.ID] = s
	}
	assert.Equal(t, 1, byID["local"].Priority)
	assert.Equal(t, KindCensus, byID["census"].Kind)
	assert.Equal(t, 10000, byID["census"].BatchSize)
	assert.Equal(t, 1000, byID["nominatim"].RateLimitMS)
	assert.False(t, byID["pelias"].Enabled)
}

func TestValidateOK(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidateFailures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing id", func(c *Config) { c.Services[0].ID = "" }},
		{"duplicate id", func(c *Config) { c.Services[1].ID = "local" }},
		{"unknown kind", func(c *Config) { c.Services[0].Kind = "carrier-pigeon" }},
		{"zero priority", func(c *Config) { c.Services[0].Priority = 0 }},
		{"negative rate limit", func(c *Config) { c.Services[1].RateLimitMS = -1 }},
		{"enabled remote without base url", func(c *Config) { c.Services[1].BaseURL = "" }},
		{"negative threshold", func(c *Config) { c.Index.ExactThreshold = -1 }},
		{"nothing enabled", func(c *Config) {
			for i := range c.Services {
				c.Services[i].Enabled = false
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestServiceConfigString(t *testing.T) {
	s := ServiceConfig{ID: "census", Kind: KindCensus, Priority: 2, Enabled: true}
	str := s.String()
	assert.Contains(t, str, "census")
	assert.Contains(t, str, "enabled")
}
