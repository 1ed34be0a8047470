package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Backend names accepted by the Backend field.
const (
	BackendOgmios = "ogmios"
	BackendNode   = "node"
)

// Config holds the runtime configuration for building and submitting
// transactions. Values resolve in layers: DefaultConfig, then the config
// file, then HOSE_* environment variables, each overriding the last.
type Config struct {
	// Network selects the target network: "mainnet", "preprod" or
	// "preview". Drives address encoding and default protocol parameters.
	Network string

	// Backend selects the submission backend: "ogmios" or "node".
	Backend string

	// OgmiosURL is the websocket endpoint when Backend is "ogmios".
	OgmiosURL string

	// NodeSocket is the node socket path or host:port when Backend is
	// "node". Paths dial unix sockets, host:port dials TCP.
	NodeSocket string

	// DataDir holds the UTXO snapshot cache.
	DataDir string

	// LogLevel is one of "debug", "info", "warn", "error".
	LogLevel string

	// MaxRetries bounds transport-error retries per submission.
	MaxRetries int

	// PollInterval is the confirmation polling cadence.
	PollInterval time.Duration
}

// DefaultConfig returns the built-in defaults: preprod over a local ogmios
// instance, data under ~/.hose.
func DefaultConfig() Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return Config{
		Network:      "preprod",
		Backend:      BackendOgmios,
		OgmiosURL:    "ws://127.0.0.1:1337",
		NodeSocket:   "/var/run/hose/node.socket",
		DataDir:      filepath.Join(home, ".hose"),
		LogLevel:     "info",
		MaxRetries:   5,
		PollInterval: 2 * time.Second,
	}
}

// LoadConfig reads a key=value config file into cfg, overriding only the
// keys present. Blank lines and #-comments are ignored.
func LoadConfig(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return fmt.Errorf("%w: line %d: %q", ErrInvalidConfigLine, lineNo, line)
		}
		if err := cfg.set(strings.TrimSpace(key), strings.TrimSpace(value)); err != nil {
			return fmt.Errorf("%w: line %d: %w", ErrInvalidConfigLine, lineNo, err)
		}
	}
	return scanner.Err()
}

// SaveConfig writes cfg as a key=value file, creating parent directories as
// needed.
func SaveConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("config: create directory: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "network=%s\n", cfg.Network)
	fmt.Fprintf(&b, "backend=%s\n", cfg.Backend)
	fmt.Fprintf(&b, "ogmios_url=%s\n", cfg.OgmiosURL)
	fmt.Fprintf(&b, "node_socket=%s\n", cfg.NodeSocket)
	fmt.Fprintf(&b, "data_dir=%s\n", cfg.DataDir)
	fmt.Fprintf(&b, "log_level=%s\n", cfg.LogLevel)
	fmt.Fprintf(&b, "max_retries=%d\n", cfg.MaxRetries)
	fmt.Fprintf(&b, "poll_interval=%s\n", cfg.PollInterval)

	return os.WriteFile(path, []byte(b.String()), 0600)
}

// ApplyEnv overlays HOSE_* environment variables onto cfg.
func ApplyEnv(cfg *Config) error {
	for key, envName := range map[string]string{
		"network":       "HOSE_NETWORK",
		"backend":       "HOSE_BACKEND",
		"ogmios_url":    "HOSE_OGMIOS_URL",
		"node_socket":   "HOSE_NODE_SOCKET",
		"data_dir":      "HOSE_DATA_DIR",
		"log_level":     "HOSE_LOG_LEVEL",
		"max_retries":   "HOSE_MAX_RETRIES",
		"poll_interval": "HOSE_POLL_INTERVAL",
	} {
		if value, ok := os.LookupEnv(envName); ok {
			if err := cfg.set(key, value); err != nil {
				return fmt.Errorf("config: %s: %w", envName, err)
			}
		}
	}
	return nil
}

// Resolve layers defaults, an optional config file, and the environment,
// then validates the result. An empty path skips the file layer; a missing
// file at the default location is not an error.
func Resolve(path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = filepath.Join(cfg.DataDir, "config")
	}
	if err := LoadConfig(path, &cfg); err != nil && !errors.Is(err, ErrConfigNotFound) {
		return Config{}, err
	}

	if err := ApplyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := ValidateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// set assigns one key from its string form.
func (c *Config) set(key, value string) error {
	switch key {
	case "network":
		c.Network = value
	case "backend":
		c.Backend = value
	case "ogmios_url":
		c.OgmiosURL = value
	case "node_socket":
		c.NodeSocket = value
	case "data_dir":
		c.DataDir = value
	case "log_level":
		c.LogLevel = value
	case "max_retries":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("max_retries: %w", err)
		}
		c.MaxRetries = n
	case "poll_interval":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("poll_interval: %w", err)
		}
		c.PollInterval = d
	default:
		return fmt.Errorf("unknown key %q", key)
	}
	return nil
}
