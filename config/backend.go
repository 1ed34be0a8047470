package config

import (
	"context"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/hoseorg/libhose-go/node"
	"github.com/hoseorg/libhose-go/ogmios"
	"github.com/hoseorg/libhose-go/params"
	"github.com/hoseorg/libhose-go/submit"
)

// NetworkID maps the configured network name to its typed id.
func (c Config) NetworkID() params.NetworkID {
	return params.NetworkID(c.Network)
}

// NewLogger builds a zap logger at the configured level.
func NewLogger(cfg Config) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(cfg.LogLevel))); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidLogLevel, cfg.LogLevel)
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(level)
	return zcfg.Build()
}

// NewBackend dials the configured submission backend. The returned closer
// tears down the underlying connection.
func NewBackend(ctx context.Context, cfg Config, log *zap.Logger) (submit.Submitter, io.Closer, error) {
	switch cfg.Backend {
	case BackendOgmios:
		c, err := ogmios.Dial(ctx, cfg.OgmiosURL, ogmios.WithLogger(log))
		if err != nil {
			return nil, nil, err
		}
		return c, c, nil

	case BackendNode:
		network := "unix"
		if strings.Contains(cfg.NodeSocket, ":") {
			network = "tcp"
		}
		c, err := node.Dial(ctx, network, cfg.NodeSocket, node.WithLogger(log))
		if err != nil {
			return nil, nil, err
		}
		return c, c, nil

	default:
		return nil, nil, ErrInvalidBackend
	}
}

// NewClient dials the configured backend and wraps it in a submission
// client carrying the configured retry and polling settings.
func NewClient(ctx context.Context, cfg Config, log *zap.Logger) (*submit.Client, io.Closer, error) {
	backend, closer, err := NewBackend(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}
	client := submit.NewClient(backend,
		submit.WithLogger(log),
		submit.WithMaxRetries(cfg.MaxRetries),
		submit.WithPollInterval(cfg.PollInterval),
	)
	return client, closer, nil
}
