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

	if cfg.Network != "mainnet" && cfg.Network != "preprod" && cfg.Network != "preview" {
		return ErrInvalidNetwork
	}

	switch cfg.Backend {
	case BackendOgmios:
		if err := validateWSURL(cfg.OgmiosURL); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidEndpoint, err)
		}
	case BackendNode:
		if cfg.NodeSocket == "" {
			return fmt.Errorf("%w: node socket must not be empty", ErrInvalidEndpoint)
		}
	default:
		return ErrInvalidBackend
	}

	if !validLogLevels[strings.ToLower(cfg.LogLevel)] {
		return ErrInvalidLogLevel
	}

	if cfg.MaxRetries < 0 {
		return fmt.Errorf("%w: max_retries must not be negative", ErrInvalidInterval)
	}
	if cfg.PollInterval <= 0 {
		return fmt.Errorf("%w: poll_interval must be positive", ErrInvalidInterval)
	}

	return nil
}

// validateWSURL checks that addr is a ws:// or wss:// URL with a host.
func validateWSURL(addr string) error {
	u, err := url.Parse(addr)
	if err != nil {
		return err
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("scheme %q is not ws or wss", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host in %q", addr)
	}
	return nil
}
