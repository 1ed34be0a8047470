package store

import "errors"

var (
	// ErrClosed indicates the store was used after Close.
	ErrClosed = errors.New("store: closed")

	// ErrCorrupt indicates a stored entry could not be decoded.
	ErrCorrupt = errors.New("store: corrupt entry")
)
