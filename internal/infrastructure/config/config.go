// Package config loads application settings from defaults, an optional YAML file
// and EXO_* environment variables, in increasing order of precedence.
package config

import (
	"time"

	"exo-agent/internal/domain/entity"
	"exo-agent/internal/retry"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env            string                          `mapstructure:"env" validate:"oneof=development production"`
	Logging        LoggingConfig                   `mapstructure:"logging"`
	Browser        BrowserConfig                   `mapstructure:"browser"`
	Scraping       ScrapingConfig                  `mapstructure:"scraping"`
	Agent          AgentConfig                     `mapstructure:"agent"`
	DefaultBackend string                          `mapstructure:"default_backend" validate:"required"`
	Backends       map[string]entity.BackendConfig `mapstructure:"backends" validate:"dive"`
	HTTP           HTTPConfig                      `mapstructure:"http"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	File  bool   `mapstructure:"file"`
	Dir   string `mapstructure:"dir"`
}

type BrowserConfig struct {
	Headless     bool           `mapstructure:"headless"`
	Timeout      time.Duration  `mapstructure:"timeout" validate:"gt=0"`
	Viewport     ViewportConfig `mapstructure:"viewport"`
	SearchEngine string         `mapstructure:"search_engine" validate:"oneof=google duckduckgo"`
	// BinPath points at a Chromium binary. Empty lets rod find or download one.
	BinPath  string `mapstructure:"bin_path"`
	PoolSize int    `mapstructure:"pool_size" validate:"gte=1"`
}

type ViewportConfig struct {
	Width  int `mapstructure:"width" validate:"gt=0"`
	Height int `mapstructure:"height" validate:"gt=0"`
}

type ScrapingConfig struct {
	MaxRetries           int           `mapstructure:"max_retries" validate:"gte=1"`
	RetryDelay           time.Duration `mapstructure:"retry_delay" validate:"gte=0"`
	DelayBetweenRequests time.Duration `mapstructure:"delay_between_requests" validate:"gte=0"`
	MaxContentLength     int           `mapstructure:"max_content_length" validate:"gt=0"`
	Concurrency          int           `mapstructure:"concurrency" validate:"gte=1"`
}

type AgentConfig struct {
	MaxIterations int `mapstructure:"max_iterations" validate:"gte=1"`
	// MaxObservationLength caps tool output fed back to the model.
	MaxObservationLength int `mapstructure:"max_observation_length" validate:"gt=0"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr" validate:"required"`
}

// RetryPolicy is the policy used around page fetches.
func (s ScrapingConfig) RetryPolicy() retry.Policy {
	return retry.Policy{
		MaxRetries: s.MaxRetries,
		Delay:      s.RetryDelay,
	}
}

// Backend returns the configured options for id, or an empty config.
func (c *Config) Backend(id string) entity.BackendConfig {
	return c.Backends[id]
}
