package submit

import (
	"context"

	"github.com/hoseorg/libhose-go/ledger"
	"github.com/hoseorg/libhose-go/tx"
)

// MockSubmitter is a test double for Submitter. All function fields must be
// set before the corresponding method is called.
type MockSubmitter struct {
	SubmitTxFn   func(ctx context.Context, txBytes []byte) (ledger.Hash32, error)
	EvaluateTxFn func(ctx context.Context, txBytes []byte) ([]tx.Evaluation, error)
	QueryTxFn    func(ctx context.Context, hash ledger.Hash32) (*TxStatus, error)
}

func (m *MockSubmitter) SubmitTx(ctx context.Context, txBytes []byte) (ledger.Hash32, error) {
	return m.SubmitTxFn(ctx, txBytes)
}

func (m *MockSubmitter) EvaluateTx(ctx context.Context, txBytes []byte) ([]tx.Evaluation, error) {
	return m.EvaluateTxFn(ctx, txBytes)
}

func (m *MockSubmitter) QueryTx(ctx context.Context, hash ledger.Hash32) (*TxStatus, error) {
	return m.QueryTxFn(ctx, hash)
}
