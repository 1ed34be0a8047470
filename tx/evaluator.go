package tx

import (
	"context"
	"fmt"

	"github.com/hoseorg/libhose-go/ledger"
)

// Evaluation is the execution budget the external evaluator measured for one
// redeemer.
type Evaluation struct {
	Tag   ledger.RedeemerTag
	Index uint32
	Units ledger.ExUnits
}

// Evaluator is the external execution-cost oracle. It receives a fully
// serialized draft transaction and returns per-redeemer budgets. The builder
// trusts the result; a failure means the transaction as constructed is
// invalid and is surfaced verbatim, never retried.
type Evaluator interface {
	Evaluate(ctx context.Context, txBytes []byte) ([]Evaluation, error)
}

// EvalError reports a script invocation the evaluator rejected.
type EvalError struct {
	Tag    ledger.RedeemerTag
	Index  uint32
	Reason string
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("tx: script evaluation failed at %s:%d: %s", e.Tag, e.Index, e.Reason)
}

// Unwrap lets errors.Is match ErrScriptEvaluation.
func (e *EvalError) Unwrap() error { return ErrScriptEvaluation }
