package wallet

import "errors"

var (
	// ErrMissingKey indicates no signing key is held for a required key hash.
	ErrMissingKey = errors.New("wallet: missing signing key")

	// ErrInvalidSeed indicates the seed material is unusable.
	ErrInvalidSeed = errors.New("wallet: invalid seed")

	// ErrInvalidKey indicates a malformed private key.
	ErrInvalidKey = errors.New("wallet: invalid key")
)
