package params

import "errors"

var (
	// ErrUnknownNetwork indicates the network name has no preset parameters.
	ErrUnknownNetwork = errors.New("params: unknown network")

	// ErrInvalidParams indicates a resolved parameter set is unusable.
	ErrInvalidParams = errors.New("params: invalid protocol parameters")
)
