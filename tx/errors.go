package tx

import "errors"

var (
	// ErrInvalidIntent indicates an intent is structurally inconsistent with
	// the intents already accumulated.
	ErrInvalidIntent = errors.New("tx: invalid intent")

	// ErrEmptyDraft indicates finish was called with no spend or output
	// intents.
	ErrEmptyDraft = errors.New("tx: empty draft")

	// ErrInsufficientFunds indicates the candidate UTXO set was exhausted
	// before all value deficits cleared.
	ErrInsufficientFunds = errors.New("tx: insufficient funds")

	// ErrNoConvergence indicates the fee/size/execution-unit estimates did
	// not reach a fixed point within the iteration bound.
	ErrNoConvergence = errors.New("tx: balancing did not converge")

	// ErrScriptEvaluation indicates the external evaluator rejected a script
	// invocation. Never retried: the transaction as constructed is invalid.
	ErrScriptEvaluation = errors.New("tx: script evaluation failed")

	// ErrLimitExceeded indicates the balanced transaction exceeds a protocol
	// limit (size or execution units).
	ErrLimitExceeded = errors.New("tx: protocol limit exceeded")

	// ErrNotBalanced indicates the final balance identity does not hold.
	// Reaching it means a bug in the resolution engine, not bad input.
	ErrNotBalanced = errors.New("tx: balance identity violated")

	// ErrNoCollateral indicates no pure-lovelace candidate was available to
	// serve as collateral for a script-bearing transaction.
	ErrNoCollateral = errors.New("tx: no collateral candidate")
)
