package ogmios

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/hoseorg/libhose-go/submit"
)

// Client speaks JSON-RPC 2.0 to an ogmios server over a persistent
// websocket. Requests are correlated to responses by a client-generated id;
// if the connection drops mid-flight, every outstanding request fails as a
// transport error and the next call redials.
type Client struct {
	url  string
	log  *zap.Logger
	dial func(ctx context.Context) (*websocket.Conn, error)

	mu     sync.Mutex
	conn   *websocket.Conn
	nextID atomic.Int64
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the structured logger. Defaults to a no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(c *Client) { c.log = log }
}

// Dial connects to an ogmios endpoint (ws:// or wss://).
func Dial(ctx context.Context, url string, opts ...Option) (*Client, error) {
	c := &Client{url: url, log: zap.NewNop()}
	c.dial = func(ctx context.Context) (*websocket.Conn, error) {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
		return conn, err
	}
	for _, opt := range opts {
		opt(c)
	}

	conn, err := c.dial(ctx)
	if err != nil {
		return nil, transportErr(fmt.Errorf("%w: dial %s: %w", ErrConnection, url, err))
	}
	c.conn = conn
	return c, nil
}

// Close closes the websocket connection.
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

type request struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
	ID      int64       `json:"id"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
	ID      int64           `json:"id"`
}

type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("ogmios: rpc error %d: %s", e.Code, e.Message)
}

// call performs one correlated request/response exchange. The connection is
// shared; calls are serialized so a response can never be attributed to the
// wrong request.
func (c *Client) call(ctx context.Context, method string, params interface{}, result interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		conn, err := c.dial(ctx)
		if err != nil {
			return transportErr(fmt.Errorf("%w: redial %s: %w", ErrConnection, c.url, err))
		}
		c.log.Debug("reconnected", zap.String("url", c.url))
		c.conn = conn
	}

	id := c.nextID.Add(1)
	body, err := json.Marshal(request{JSONRPC: "2.0", Method: method, Params: params, ID: id})
	if err != nil {
		return fmt.Errorf("ogmios: marshal request: %w", err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetReadDeadline(deadline)
		_ = c.conn.SetWriteDeadline(deadline)
	} else {
		_ = c.conn.SetReadDeadline(time.Time{})
		_ = c.conn.SetWriteDeadline(time.Time{})
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, body); err != nil {
		c.drop()
		return transportErr(fmt.Errorf("%w: write: %w", ErrConnection, err))
	}

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.drop()
			return transportErr(fmt.Errorf("%w: read: %w", ErrConnection, err))
		}

		var resp response
		if err := json.Unmarshal(data, &resp); err != nil {
			return fmt.Errorf("%w: decode response: %w", ErrInvalidResponse, err)
		}
		if resp.ID != id {
			// Stale response from a request that already failed as a
			// transport error; skip it.
			c.log.Debug("skipping uncorrelated response", zap.Int64("got", resp.ID), zap.Int64("want", id))
			continue
		}
		if resp.Error != nil {
			return resp.Error
		}
		if result != nil {
			if err := json.Unmarshal(resp.Result, result); err != nil {
				return fmt.Errorf("%w: decode result: %w", ErrInvalidResponse, err)
			}
		}
		return nil
	}
}

// drop discards the connection after a transport failure so the next call
// redials.
func (c *Client) drop() {
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}

// transportErr marks an error as recoverable for the submission retry
// policy.
func transportErr(err error) error {
	return fmt.Errorf("%w: %w", submit.ErrTransport, err)
}
