// Package config loads service configuration from the environment or a YAML
// file. DATABASE_URL is the only required setting.
package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/voyagen/channelvault/internal/m3u"
)

// ErrMissingDatabaseURL is returned when no database DSN is configured.
var ErrMissingDatabaseURL = errors.New("config: database_url (env DATABASE_URL) is required")

// Config holds application configuration.
type Config struct {
	DatabaseURL string        `yaml:"database_url"`
	RedisURL    string        `yaml:"redis_url"`
	ServerPort  string        `yaml:"server_port"`
	UserAgent   string        `yaml:"user_agent"`
	Timeout     time.Duration `yaml:"-"`
	LogLevel    string        `yaml:"log_level"`

	Parser ParserConfig `yaml:"parser"`
}

// ParserConfig maps the independent parser flags. Unset flags default to the
// most conservative behavior.
type ParserConfig struct {
	StrictLocators        bool `yaml:"strict_locators"`
	AllowDegradedLocators bool `yaml:"allow_degraded_locators"`
	StripSeriesMarkers    bool `yaml:"strip_series_markers"`
	SkipSessionData       bool `yaml:"skip_session_data"`
	CaptureHeaders        bool `yaml:"capture_headers"`
	Workers               int  `yaml:"workers"`
}

// Options converts the flag block into engine options.
func (p ParserConfig) Options() m3u.Options {
	return m3u.Options{
		StrictLocators:        p.StrictLocators,
		AllowDegradedLocators: p.AllowDegradedLocators,
		StripSeriesMarkers:    p.StripSeriesMarkers,
		SkipSessionData:       p.SkipSessionData,
		CaptureHeaders:        p.CaptureHeaders,
		Workers:               p.Workers,
	}
}

// Load builds config from environment variables. If DATABASE_URL is not set,
// it tries .env.local and .env from the working directory first.
func Load() (*Config, error) {
	if os.Getenv("DATABASE_URL") == "" {
		loadEnvFiles()
	}
	c := &Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),
		ServerPort:  os.Getenv("SERVER_PORT"),
		UserAgent:   os.Getenv("FETCHER_USER_AGENT"),
		LogLevel:    os.Getenv("LOG_LEVEL"),
		Timeout:     30 * time.Second,
		Parser: ParserConfig{
			StrictLocators:        envBool("PARSER_STRICT_LOCATORS"),
			AllowDegradedLocators: envBool("PARSER_ALLOW_DEGRADED_LOCATORS"),
			StripSeriesMarkers:    envBool("PARSER_STRIP_SERIES_MARKERS"),
			SkipSessionData:       envBool("PARSER_SKIP_SESSION_DATA"),
			CaptureHeaders:        envBool("PARSER_CAPTURE_HEADERS"),
		},
	}
	if s := os.Getenv("PARSER_WORKERS"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n >= 0 {
			c.Parser.Workers = n
		}
	}
	if s := os.Getenv("FETCHER_TIMEOUT"); s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			c.Timeout = d
		}
	}
	c.applyDefaults()
	if c.DatabaseURL == "" {
		return nil, ErrMissingDatabaseURL
	}
	return c, nil
}

func (c *Config) applyDefaults() {
	if c.ServerPort == "" {
		c.ServerPort = "8080"
	}
	if c.UserAgent == "" {
		c.UserAgent = "ChannelVault/1.0"
	}
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
}

func envBool(key string) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	return err == nil && v
}
