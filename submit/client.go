package submit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/hoseorg/libhose-go/ledger"
)

// State is the lifecycle state of one submission.
type State uint8

const (
	StatePending State = iota
	StateSubmitted
	StateConfirmed
	StateRejected
	StateTimedOut
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateSubmitted:
		return "submitted"
	case StateConfirmed:
		return "confirmed"
	case StateRejected:
		return "rejected"
	case StateTimedOut:
		return "timed out"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateConfirmed || s == StateRejected || s == StateTimedOut
}

// Record tracks one submission attempt. Owned by the client while the
// attempt is live; once terminal it is handed to the caller and forgotten.
type Record struct {
	Hash    ledger.Hash32
	State   State
	Retries int
	LastErr error
}

const (
	defaultMaxRetries      = 5
	defaultPollInterval    = 2 * time.Second
	defaultInitialInterval = 500 * time.Millisecond
)

// Client drives signed transactions through the submission state machine
// against a configured backend.
type Client struct {
	backend       Submitter
	log           *zap.Logger
	maxRetries    uint64
	pollInterval  time.Duration
	retryInterval time.Duration

	mu       sync.Mutex
	inflight map[ledger.Hash32]struct{}
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the structured logger. Defaults to a no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(c *Client) { c.log = log }
}

// WithMaxRetries bounds how many times a transport failure is retried.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.maxRetries = uint64(n)
		}
	}
}

// WithPollInterval sets the confirmation polling interval.
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// WithRetryInterval sets the initial backoff interval between submission
// retries.
func WithRetryInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.retryInterval = d
		}
	}
}

// NewClient wraps a backend in a submission client.
func NewClient(backend Submitter, opts ...Option) *Client {
	c := &Client{
		backend:       backend,
		log:           zap.NewNop(),
		maxRetries:    defaultMaxRetries,
		pollInterval:  defaultPollInterval,
		retryInterval: defaultInitialInterval,
		inflight:      make(map[ledger.Hash32]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submit drives Pending → Submitted. Transport errors are retried with
// exponential backoff up to the retry budget, the record staying Pending
// between attempts; exhausting the budget or hitting a ledger rejection
// transitions to Rejected. At most one submission per hash may be in flight
// at any instant.
func (c *Client) Submit(ctx context.Context, hash ledger.Hash32, txBytes []byte) (*Record, error) {
	if err := c.acquire(hash); err != nil {
		return nil, err
	}
	defer c.release(hash)

	rec := &Record{Hash: hash, State: StatePending}
	log := c.log.With(zap.String("tx", hash.String()))

	op := func() error {
		_, err := c.backend.SubmitTx(ctx, txBytes)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrTransport) {
			rec.Retries++
			rec.LastErr = err
			log.Warn("submit attempt failed, retrying", zap.Int("retries", rec.Retries), zap.Error(err))
			return err
		}
		// Content errors terminate immediately.
		return backoff.Permanent(err)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryInterval
	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, c.maxRetries), ctx))

	switch {
	case err == nil:
		rec.State = StateSubmitted
		log.Info("transaction submitted", zap.Int("retries", rec.Retries))
		return rec, nil

	case errors.Is(err, ErrRejected):
		rec.State = StateRejected
		rec.LastErr = err
		log.Info("transaction rejected by ledger", zap.Error(err))
		return rec, err

	case errors.Is(err, ErrTransport):
		rec.State = StateRejected
		rec.LastErr = fmt.Errorf("%w: transport exhausted after %d retries: %w", ErrRejected, rec.Retries, err)
		log.Warn("retry budget exhausted", zap.Int("retries", rec.Retries), zap.Error(err))
		return rec, rec.LastErr

	default:
		rec.LastErr = err
		return rec, err
	}
}

// AwaitConfirmation drives Submitted → {Confirmed, Rejected, TimedOut},
// polling the backend until the caller's context expires. Cancellation does
// not unsend the transaction: TimedOut means unknown, and the caller can
// query confirmation again later with the same hash.
func (c *Client) AwaitConfirmation(ctx context.Context, rec *Record) (*Record, error) {
	if rec.State != StateSubmitted {
		return rec, fmt.Errorf("submit: cannot await confirmation from state %q", rec.State)
	}

	log := c.log.With(zap.String("tx", rec.Hash.String()))
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		status, err := c.backend.QueryTx(ctx, rec.Hash)
		switch {
		case err == nil && status.Confirmed:
			rec.State = StateConfirmed
			log.Info("transaction confirmed", zap.Uint64("slot", status.Slot))
			return rec, nil

		case err != nil && errors.Is(err, ErrRejected):
			rec.State = StateRejected
			rec.LastErr = err
			return rec, err

		case err != nil && !errors.Is(err, ErrTransport):
			if ctx.Err() == nil {
				rec.LastErr = err
				return rec, err
			}

		case err != nil:
			// Transport hiccups during polling are tolerated; the next tick
			// retries the query.
			log.Debug("confirmation query failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			rec.State = StateTimedOut
			rec.LastErr = ErrTimedOut
			log.Info("confirmation deadline reached, outcome unknown")
			return rec, ErrTimedOut
		case <-ticker.C:
		}
	}
}

// SubmitAndConfirm runs the full state machine for one signed transaction.
func (c *Client) SubmitAndConfirm(ctx context.Context, hash ledger.Hash32, txBytes []byte) (*Record, error) {
	rec, err := c.Submit(ctx, hash, txBytes)
	if err != nil {
		return rec, err
	}
	return c.AwaitConfirmation(ctx, rec)
}

func (c *Client) acquire(hash ledger.Hash32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.inflight[hash]; busy {
		return fmt.Errorf("%w: %s", ErrInFlight, hash)
	}
	c.inflight[hash] = struct{}{}
	return nil
}

func (c *Client) release(hash ledger.Hash32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inflight, hash)
}
