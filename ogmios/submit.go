package ogmios

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/hoseorg/libhose-go/ledger"
	"github.com/hoseorg/libhose-go/submit"
	"github.com/hoseorg/libhose-go/tx"
)

type txEnvelope struct {
	Transaction struct {
		CBOR string `json:"cbor"`
	} `json:"transaction"`
}

func wrapTx(txBytes []byte) txEnvelope {
	var env txEnvelope
	env.Transaction.CBOR = hex.EncodeToString(txBytes)
	return env
}

// SubmitTx submits a signed transaction and returns the hash the server
// acknowledged. Ledger rejections surface as *submit.RejectError.
func (c *Client) SubmitTx(ctx context.Context, txBytes []byte) (ledger.Hash32, error) {
	var result struct {
		Transaction struct {
			ID string `json:"id"`
		} `json:"transaction"`
	}
	if err := c.call(ctx, "submitTransaction", wrapTx(txBytes), &result); err != nil {
		var rpc *rpcError
		if errors.As(err, &rpc) {
			return ledger.Hash32{}, &submit.RejectError{Reason: rpc.Message, Code: rpc.Code}
		}
		return ledger.Hash32{}, err
	}

	hash, err := ledger.ParseHash32(result.Transaction.ID)
	if err != nil {
		return ledger.Hash32{}, fmt.Errorf("%w: transaction id: %w", ErrInvalidResponse, err)
	}
	return hash, nil
}

// EvaluateTx asks the server to run the transaction's scripts against the
// current ledger state and returns the measured budgets. Evaluation
// failures surface as *tx.EvalError.
func (c *Client) EvaluateTx(ctx context.Context, txBytes []byte) ([]tx.Evaluation, error) {
	var result []struct {
		Validator string `json:"validator"`
		Budget    struct {
			Memory uint64 `json:"memory"`
			CPU    uint64 `json:"cpu"`
		} `json:"budget"`
	}
	if err := c.call(ctx, "evaluateTransaction", wrapTx(txBytes), &result); err != nil {
		var rpc *rpcError
		if errors.As(err, &rpc) {
			return nil, evalError(rpc)
		}
		return nil, err
	}

	evals := make([]tx.Evaluation, 0, len(result))
	for _, r := range result {
		tag, index, err := parseValidator(r.Validator)
		if err != nil {
			return nil, err
		}
		evals = append(evals, tx.Evaluation{
			Tag:   tag,
			Index: index,
			Units: ledger.ExUnits{Mem: r.Budget.Memory, Steps: r.Budget.CPU},
		})
	}
	return evals, nil
}

// Evaluate implements tx.Evaluator.
func (c *Client) Evaluate(ctx context.Context, txBytes []byte) ([]tx.Evaluation, error) {
	return c.EvaluateTx(ctx, txBytes)
}

// parseValidator splits a "purpose:index" validator reference.
func parseValidator(v string) (ledger.RedeemerTag, uint32, error) {
	purpose, idx, ok := strings.Cut(v, ":")
	if !ok {
		return 0, 0, fmt.Errorf("%w: validator %q", ErrInvalidResponse, v)
	}
	index, err := strconv.ParseUint(idx, 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: validator index %q: %w", ErrInvalidResponse, idx, err)
	}

	var tag ledger.RedeemerTag
	switch purpose {
	case "spend":
		tag = ledger.TagSpend
	case "mint":
		tag = ledger.TagMint
	case "certificate":
		tag = ledger.TagCert
	case "withdrawal":
		tag = ledger.TagReward
	default:
		return 0, 0, fmt.Errorf("%w: validator purpose %q", ErrInvalidResponse, purpose)
	}
	return tag, uint32(index), nil
}

// evalError lifts an rpc evaluation failure into *tx.EvalError, recovering
// the failing validator from the error data when the server names one.
func evalError(rpc *rpcError) error {
	e := &tx.EvalError{Reason: rpc.Message}
	var data struct {
		Validator string `json:"validator"`
	}
	if len(rpc.Data) > 0 && json.Unmarshal(rpc.Data, &data) == nil && data.Validator != "" {
		if tag, index, err := parseValidator(data.Validator); err == nil {
			e.Tag = tag
			e.Index = index
		}
	}
	return e
}

// codeUnknownTransaction is the fault the server answers with when it has
// no record of the queried transaction.
const codeUnknownTransaction = 4004

// QueryTx reports what the server knows about a previously submitted
// transaction.
func (c *Client) QueryTx(ctx context.Context, hash ledger.Hash32) (*submit.TxStatus, error) {
	params := map[string]interface{}{"id": hash.String()}

	var result struct {
		Confirmed bool   `json:"confirmed"`
		InMempool bool   `json:"inMempool"`
		Slot      uint64 `json:"slot"`
	}
	if err := c.call(ctx, "queryTransaction", params, &result); err != nil {
		var rpc *rpcError
		if errors.As(err, &rpc) {
			// Not-yet-seen is a valid answer; any other fault is a real
			// error and must not read as "not confirmed yet".
			if rpc.Code == codeUnknownTransaction {
				return &submit.TxStatus{}, nil
			}
			return nil, fmt.Errorf("query transaction: %w", rpc)
		}
		return nil, err
	}
	return &submit.TxStatus{Confirmed: result.Confirmed, InMempool: result.InMempool, Slot: result.Slot}, nil
}
