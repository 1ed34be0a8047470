package ledger

import "errors"

var (
	// ErrInvalidHash indicates a hash has the wrong length or encoding.
	ErrInvalidHash = errors.New("ledger: invalid hash")

	// ErrInvalidAddress indicates address bytes or text could not be parsed.
	ErrInvalidAddress = errors.New("ledger: invalid address")

	// ErrInvalidValue indicates a malformed multi-asset value.
	ErrInvalidValue = errors.New("ledger: invalid value")

	// ErrInvalidOutput indicates a malformed transaction output.
	ErrInvalidOutput = errors.New("ledger: invalid output")

	// ErrInvalidTx indicates transaction bytes could not be decoded.
	ErrInvalidTx = errors.New("ledger: invalid transaction")
)
