package ogmios

import "errors"

var (
	// ErrConnection indicates the websocket connection failed or dropped.
	ErrConnection = errors.New("ogmios: connection failed")

	// ErrInvalidResponse indicates the server returned a malformed or
	// unexpected message.
	ErrInvalidResponse = errors.New("ogmios: invalid response")
)
