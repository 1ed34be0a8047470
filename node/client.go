package node

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hoseorg/libhose-go/ledger"
	"github.com/hoseorg/libhose-go/submit"
	"github.com/hoseorg/libhose-go/tx"
)

// Client submits transactions straight to a node over its local socket,
// framed as length-prefixed CBOR messages. One request is in flight at a
// time; a transport failure drops the connection and the next call redials.
type Client struct {
	network string
	addr    string
	log     *zap.Logger
	dial    func(ctx context.Context) (net.Conn, error)

	mu   sync.Mutex
	conn net.Conn
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the structured logger. Defaults to a no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(c *Client) { c.log = log }
}

// Dial connects to a node socket. network is "unix" or "tcp".
func Dial(ctx context.Context, network, addr string, opts ...Option) (*Client, error) {
	c := &Client{network: network, addr: addr, log: zap.NewNop()}
	c.dial = func(ctx context.Context) (net.Conn, error) {
		var d net.Dialer
		return d.DialContext(ctx, c.network, c.addr)
	}
	for _, opt := range opts {
		opt(c)
	}

	conn, err := c.dial(ctx)
	if err != nil {
		return nil, transportErr(fmt.Errorf("%w: dial %s %s: %w", ErrConnection, network, addr, err))
	}
	c.conn = conn
	return c, nil
}

// Close closes the node connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// rejection is the payload of a msgRejected response.
type rejection struct {
	_      struct{} `cbor:",toarray"`
	Code   uint16
	Reason string
}

// evalResult is one element of a msgEvaluated response payload.
type evalResult struct {
	_     struct{} `cbor:",toarray"`
	Tag   uint8
	Index uint32
	Mem   uint64
	Steps uint64
}

// roundTrip sends one request frame and reads the single response frame.
func (c *Client) roundTrip(ctx context.Context, msgType uint16, payload []byte) (uint16, []byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		conn, err := c.dial(ctx)
		if err != nil {
			return 0, nil, transportErr(fmt.Errorf("%w: redial %s %s: %w", ErrConnection, c.network, c.addr, err))
		}
		c.log.Debug("reconnected", zap.String("addr", c.addr))
		c.conn = conn
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Time{}
	}
	_ = c.conn.SetDeadline(deadline)

	if err := writeFrame(c.conn, msgType, payload); err != nil {
		c.drop()
		return 0, nil, transportErr(fmt.Errorf("%w: write: %w", ErrConnection, err))
	}

	respType, respPayload, err := readFrame(c.conn)
	if err != nil {
		if errors.Is(err, ErrBadFrame) {
			c.drop()
			return 0, nil, err
		}
		c.drop()
		return 0, nil, transportErr(fmt.Errorf("%w: read: %w", ErrConnection, err))
	}
	return respType, respPayload, nil
}

func (c *Client) drop() {
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}

// SubmitTx pushes a signed transaction to the node. A msgRejected answer
// surfaces as *submit.RejectError.
func (c *Client) SubmitTx(ctx context.Context, txBytes []byte) (ledger.Hash32, error) {
	respType, payload, err := c.roundTrip(ctx, msgSubmitTx, txBytes)
	if err != nil {
		return ledger.Hash32{}, err
	}

	switch respType {
	case msgAccepted:
		var raw []byte
		if err := ledger.UnmarshalCanonical(payload, &raw); err != nil {
			return ledger.Hash32{}, fmt.Errorf("%w: accepted payload: %w", ErrBadFrame, err)
		}
		var hash ledger.Hash32
		if len(raw) != len(hash) {
			return ledger.Hash32{}, fmt.Errorf("%w: accepted hash length %d", ErrBadFrame, len(raw))
		}
		copy(hash[:], raw)
		return hash, nil

	case msgRejected:
		var rej rejection
		if err := ledger.UnmarshalCanonical(payload, &rej); err != nil {
			return ledger.Hash32{}, fmt.Errorf("%w: rejection payload: %w", ErrBadFrame, err)
		}
		return ledger.Hash32{}, &submit.RejectError{Reason: rej.Reason, Code: int(rej.Code)}

	default:
		return ledger.Hash32{}, fmt.Errorf("%w: type 0x%04x", ErrUnexpectedMessage, respType)
	}
}

// EvaluateTx asks the node to measure the transaction's script budgets.
func (c *Client) EvaluateTx(ctx context.Context, txBytes []byte) ([]tx.Evaluation, error) {
	respType, payload, err := c.roundTrip(ctx, msgEvaluateTx, txBytes)
	if err != nil {
		return nil, err
	}

	switch respType {
	case msgEvaluated:
		var results []evalResult
		if err := ledger.UnmarshalCanonical(payload, &results); err != nil {
			return nil, fmt.Errorf("%w: evaluation payload: %w", ErrBadFrame, err)
		}
		evals := make([]tx.Evaluation, 0, len(results))
		for _, r := range results {
			evals = append(evals, tx.Evaluation{
				Tag:   ledger.RedeemerTag(r.Tag),
				Index: r.Index,
				Units: ledger.ExUnits{Mem: r.Mem, Steps: r.Steps},
			})
		}
		return evals, nil

	case msgRejected:
		var rej rejection
		if err := ledger.UnmarshalCanonical(payload, &rej); err != nil {
			return nil, fmt.Errorf("%w: rejection payload: %w", ErrBadFrame, err)
		}
		return nil, &tx.EvalError{Reason: rej.Reason}

	default:
		return nil, fmt.Errorf("%w: type 0x%04x", ErrUnexpectedMessage, respType)
	}
}

// Evaluate implements tx.Evaluator.
func (c *Client) Evaluate(ctx context.Context, txBytes []byte) ([]tx.Evaluation, error) {
	return c.EvaluateTx(ctx, txBytes)
}

// QueryTx reports mempool presence. A bare node cannot attest confirmation,
// only that the transaction is still waiting; pair the client with a chain
// indexer when confirmation tracking is needed.
func (c *Client) QueryTx(ctx context.Context, hash ledger.Hash32) (*submit.TxStatus, error) {
	payload, err := ledger.MarshalCanonical(hash[:])
	if err != nil {
		return nil, fmt.Errorf("node: marshal hash: %w", err)
	}

	respType, respPayload, err := c.roundTrip(ctx, msgHasTx, payload)
	if err != nil {
		return nil, err
	}
	if respType != msgTxStatus {
		return nil, fmt.Errorf("%w: type 0x%04x", ErrUnexpectedMessage, respType)
	}

	var inMempool bool
	if err := ledger.UnmarshalCanonical(respPayload, &inMempool); err != nil {
		return nil, fmt.Errorf("%w: status payload: %w", ErrBadFrame, err)
	}
	return &submit.TxStatus{InMempool: inMempool}, nil
}

// transportErr marks an error as recoverable for the submission retry
// policy.
func transportErr(err error) error {
	return fmt.Errorf("%w: %w", submit.ErrTransport, err)
}
