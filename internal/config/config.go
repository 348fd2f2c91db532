// SPDX-License-Identifier: Apache-2.0

// Package config loads evidence-mcp settings from YAML with environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/finlens/evidence-mcp/internal/fetch"
	"github.com/finlens/evidence-mcp/internal/logging"
)

var (
	ErrConfigNotFound = errors.New("config file not found")
	ErrInvalidFormat  = errors.New("invalid config format")
	ErrMissingEnvVar  = errors.New("missing environment variable")
	ErrInvalidConfig  = errors.New("invalid configuration")
)

// Config is the full service configuration.
type Config struct {
	Log          LogConfig          `yaml:"log"`
	API          APIConfig          `yaml:"api"`
	Render       RenderConfig       `yaml:"render"`
	Entitlements EntitlementsConfig `yaml:"entitlements"`
	Diff         DiffConfig         `yaml:"diff"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// APIConfig addresses the document API serving structured renditions.
type APIConfig struct {
	BaseURL       string        `yaml:"base_url"`
	Timeout       time.Duration `yaml:"timeout"`
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryDelay    time.Duration `yaml:"retry_delay"`
}

type RenderConfig struct {
	// DefaultContainerWidth is used until the host reports a width. Zero
	// renders at scale 1.
	DefaultContainerWidth float64 `yaml:"default_container_width"`
	HighlightClass        string  `yaml:"highlight_class"`
}

type EntitlementsConfig struct {
	InlinePreview bool   `yaml:"inline_preview"`
	Tier          string `yaml:"tier"`
}

type DiffConfig struct {
	// History is how many complete snapshots the timeline keeps.
	History int `yaml:"history"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Log: LogConfig{Level: "info", Format: "console"},
		API: APIConfig{
			BaseURL:       "http://localhost:8080/api",
			Timeout:       30 * time.Second,
			RetryAttempts: 3,
			RetryDelay:    200 * time.Millisecond,
		},
		Render: RenderConfig{HighlightClass: "evidence-highlight"},
		Entitlements: EntitlementsConfig{
			InlinePreview: true,
			Tier:          "pro",
		},
		Diff: DiffConfig{History: 20},
	}
}

// Validate reports every problem found, joined.
func (c Config) Validate() error {
	var errs []error
	add := func(field, msg string) {
		errs = append(errs, fmt.Errorf("%w: %s: %s", ErrInvalidConfig, field, msg))
	}

	switch strings.ToLower(c.Log.Level) {
	case "trace", "debug", "info", "warn", "error":
	default:
		add("log.level", fmt.Sprintf("unknown level %q", c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case "console", "json", "":
	default:
		add("log.format", fmt.Sprintf("unknown format %q", c.Log.Format))
	}
	if strings.TrimSpace(c.API.BaseURL) == "" {
		add("api.base_url", "must not be empty")
	}
	if c.API.Timeout < 0 {
		add("api.timeout", "must not be negative")
	}
	if c.API.RetryAttempts < 0 {
		add("api.retry_attempts", "must not be negative")
	}
	if c.Render.DefaultContainerWidth < 0 {
		add("render.default_container_width", "must not be negative")
	}
	if c.Diff.History < 2 {
		add("diff.history", "must keep at least 2 snapshots")
	}
	return errors.Join(errs...)
}

// Logging returns the logger configuration.
func (c Config) Logging() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = c.Log.Level
	if c.Log.Format != "" {
		cfg.Format = c.Log.Format
	}
	return cfg
}

// Fetch returns the HTTP client configuration.
func (c Config) Fetch() fetch.Config {
	cfg := fetch.DefaultConfig()
	cfg.Timeout = c.API.Timeout
	cfg.MaxRetries = c.API.RetryAttempts
	cfg.RetryDelay = c.API.RetryDelay
	return cfg
}
