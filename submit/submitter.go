package submit

import (
	"context"

	"github.com/hoseorg/libhose-go/ledger"
	"github.com/hoseorg/libhose-go/tx"
)

// Submitter is the backend capability the client is polymorphic over. Both
// the direct node-socket backend and the JSON-RPC websocket backend
// implement it; the concrete backend is selected by configuration at
// construction time, never by runtime branching inside the client.
type Submitter interface {
	// SubmitTx hands the signed transaction bytes to the network and returns
	// the transaction hash the backend acknowledged.
	SubmitTx(ctx context.Context, txBytes []byte) (ledger.Hash32, error)

	// EvaluateTx measures the execution budget of every script invocation in
	// the transaction without submitting it.
	EvaluateTx(ctx context.Context, txBytes []byte) ([]tx.Evaluation, error)

	// QueryTx reports what the backend knows about a transaction's
	// confirmation.
	QueryTx(ctx context.Context, hash ledger.Hash32) (*TxStatus, error)
}

// TxStatus is a backend's view of one transaction.
type TxStatus struct {
	Confirmed bool   `json:"confirmed"`
	InMempool bool   `json:"in_mempool"`
	Slot      uint64 `json:"slot"`
}
