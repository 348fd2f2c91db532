// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var bracketPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-[^}]*|:\?[^}]*)?\}`)

// ExpandEnv expands ${VAR}, ${VAR:-default} and ${VAR:?message} in input.
// Unset plain references expand to "". A ${VAR:?message} whose variable is
// unset or empty is an error.
func ExpandEnv(input string) (string, error) {
	var missing []string
	result := bracketPattern.ReplaceAllStringFunc(input, func(match string) string {
		inner := match[2 : len(match)-1]
		name, modifier, _ := strings.Cut(inner, ":")
		value, exists := os.LookupEnv(name)

		switch {
		case strings.HasPrefix(modifier, "-"):
			if !exists || value == "" {
				return modifier[1:]
			}
		case strings.HasPrefix(modifier, "?"):
			if !exists || value == "" {
				missing = append(missing, fmt.Sprintf("%s: %s", name, modifier[1:]))
				return match
			}
		}
		return value
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("%w: %s", ErrMissingEnvVar, strings.Join(missing, ", "))
	}
	return result, nil
}

// applyEnv overrides fields from EVIDENCE_* variables.
func applyEnv(cfg *Config) error {
	cfg.Log.Level = getenv("EVIDENCE_LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getenv("EVIDENCE_LOG_FORMAT", cfg.Log.Format)
	cfg.API.BaseURL = getenv("EVIDENCE_API_BASE_URL", cfg.API.BaseURL)
	cfg.Render.HighlightClass = getenv("EVIDENCE_HIGHLIGHT_CLASS", cfg.Render.HighlightClass)
	cfg.Entitlements.Tier = getenv("EVIDENCE_TIER", cfg.Entitlements.Tier)

	var err error
	if cfg.API.Timeout, err = getenvDuration("EVIDENCE_API_TIMEOUT", cfg.API.Timeout); err != nil {
		return err
	}
	if cfg.API.RetryDelay, err = getenvDuration("EVIDENCE_API_RETRY_DELAY", cfg.API.RetryDelay); err != nil {
		return err
	}
	if cfg.API.RetryAttempts, err = getenvInt("EVIDENCE_API_RETRY_ATTEMPTS", cfg.API.RetryAttempts); err != nil {
		return err
	}
	if cfg.Diff.History, err = getenvInt("EVIDENCE_DIFF_HISTORY", cfg.Diff.History); err != nil {
		return err
	}
	if cfg.Entitlements.InlinePreview, err = getenvBool("EVIDENCE_INLINE_PREVIEW", cfg.Entitlements.InlinePreview); err != nil {
		return err
	}
	if v := os.Getenv("EVIDENCE_CONTAINER_WIDTH"); v != "" {
		w, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%w: EVIDENCE_CONTAINER_WIDTH: %v", ErrInvalidConfig, err)
		}
		cfg.Render.DefaultContainerWidth = w
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, key, err)
	}
	return n, nil
}

func getenvBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, key, err)
	}
	return b, nil
}

func getenvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, key, err)
	}
	return d, nil
}
