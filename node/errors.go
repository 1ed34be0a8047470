package node

import "errors"

var (
	// ErrConnection indicates the node socket failed or dropped.
	ErrConnection = errors.New("node: connection failed")

	// ErrBadFrame indicates a malformed or oversized frame from the node.
	ErrBadFrame = errors.New("node: bad frame")

	// ErrUnexpectedMessage indicates the node answered with a message type
	// the pending request cannot accept.
	ErrUnexpectedMessage = errors.New("node: unexpected message")
)
