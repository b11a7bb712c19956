package config

import (
	"fmt"
	"net/url"
	"strings"
)

// validLogLevels lists the accepted log level strings.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// ValidateConfig checks that all configuration values are within acceptable
// ranges and returns the first error encountered, or nil if valid.
func ValidateConfig(cfg Config) error {
	if cfg.DataDir == "" {
		return ErrEmptyDataDir
	}

	if cfg.Backend != "pinata" && cfg.Backend != "local" {
		return ErrInvalidBackend
	}

	if cfg.History != "single" && cfg.History != "keep" {
		return ErrInvalidHistory
	}

	if cfg.LedgerURL != "" {
		u, err := url.Parse(cfg.LedgerURL)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidLedgerURL, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("%w: scheme must be http or https", ErrInvalidLedgerURL)
		}
	}

	if !validLogLevels[strings.ToLower(cfg.LogLevel)] {
		return ErrInvalidLogLevel
	}

	return nil
}
