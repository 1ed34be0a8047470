package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hoseorg/libhose-go/params"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "preprod", cfg.Network)
	assert.Equal(t, BackendOgmios, cfg.Backend)
	assert.Equal(t, "ws://127.0.0.1:1337", cfg.OgmiosURL)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 5, cfg.MaxRetries)
	assert.Equal(t, 2*time.Second, cfg.PollInterval)
	assert.NotEmpty(t, cfg.DataDir)

	require.NoError(t, ValidateConfig(cfg))
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config")

	original := DefaultConfig()
	original.Network = "mainnet"
	original.Backend = BackendNode
	original.NodeSocket = "/run/node.socket"
	original.MaxRetries = 9
	original.PollInterval = 7 * time.Second

	require.NoError(t, SaveConfig(path, original))

	loaded := DefaultConfig()
	require.NoError(t, LoadConfig(path, &loaded))
	assert.Equal(t, original, loaded)
}

func TestLoadConfigPartialOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config")
	content := "# comment\n\nnetwork=preview\nmax_retries=2\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg := DefaultConfig()
	require.NoError(t, LoadConfig(path, &cfg))

	assert.Equal(t, "preview", cfg.Network)
	assert.Equal(t, 2, cfg.MaxRetries)
	// Untouched keys keep their defaults.
	assert.Equal(t, BackendOgmios, cfg.Backend)
}

func TestLoadConfigMalformedLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config")
	require.NoError(t, os.WriteFile(path, []byte("network preprod\n"), 0600))

	cfg := DefaultConfig()
	err := LoadConfig(path, &cfg)
	require.ErrorIs(t, err, ErrInvalidConfigLine)
}

func TestLoadConfigUnknownKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config")
	require.NoError(t, os.WriteFile(path, []byte("wat=1\n"), 0600))

	cfg := DefaultConfig()
	err := LoadConfig(path, &cfg)
	require.ErrorIs(t, err, ErrInvalidConfigLine)
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg := DefaultConfig()
	err := LoadConfig(filepath.Join(t.TempDir(), "nope"), &cfg)
	require.ErrorIs(t, err, ErrConfigNotFound)
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("HOSE_NETWORK", "mainnet")
	t.Setenv("HOSE_MAX_RETRIES", "1")
	t.Setenv("HOSE_POLL_INTERVAL", "500ms")

	cfg := DefaultConfig()
	require.NoError(t, ApplyEnv(&cfg))

	assert.Equal(t, "mainnet", cfg.Network)
	assert.Equal(t, 1, cfg.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.PollInterval)
	// Unset variables leave defaults alone.
	assert.Equal(t, BackendOgmios, cfg.Backend)
}

func TestApplyEnvRejectsBadValues(t *testing.T) {
	t.Setenv("HOSE_MAX_RETRIES", "many")
	cfg := DefaultConfig()
	require.Error(t, ApplyEnv(&cfg))
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"bad network", func(c *Config) { c.Network = "devnet" }, ErrInvalidNetwork},
		{"bad backend", func(c *Config) { c.Backend = "carrier-pigeon" }, ErrInvalidBackend},
		{"bad ogmios scheme", func(c *Config) { c.OgmiosURL = "http://localhost" }, ErrInvalidEndpoint},
		{"empty node socket", func(c *Config) { c.Backend = BackendNode; c.NodeSocket = "" }, ErrInvalidEndpoint},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, ErrInvalidLogLevel},
		{"empty data dir", func(c *Config) { c.DataDir = "" }, ErrEmptyDataDir},
		{"negative retries", func(c *Config) { c.MaxRetries = -1 }, ErrInvalidInterval},
		{"zero poll interval", func(c *Config) { c.PollInterval = 0 }, ErrInvalidInterval},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			require.ErrorIs(t, ValidateConfig(cfg), tc.wantErr)
		})
	}
}

func TestNetworkID(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Network = "mainnet"
	assert.Equal(t, params.Mainnet, cfg.NetworkID())
}

func TestNewLogger(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogLevel = "debug"
	log, err := NewLogger(cfg)
	require.NoError(t, err)
	require.NotNil(t, log)

	cfg.LogLevel = "loud"
	_, err = NewLogger(cfg)
	require.ErrorIs(t, err, ErrInvalidLogLevel)
}
