package tx

import (
	"fmt"

	"github.com/hoseorg/libhose-go/ledger"
)

// Signer produces witnesses over the final transaction hash for a set of
// required key hashes. Implemented by the wallet package.
type Signer interface {
	SignTx(hash ledger.Hash32, required []ledger.Hash28) ([]ledger.VKeyWitness, error)
}

// SignedTx is an immutable, fully witnessed transaction: the unit handed to
// submission. The witness set is built once balancing is final and never
// touched afterward.
type SignedTx struct {
	Tx   ledger.Tx
	Hash ledger.Hash32
	raw  []byte
}

// Bytes returns the canonical transaction encoding.
func (s *SignedTx) Bytes() []byte {
	out := make([]byte, len(s.raw))
	copy(out, s.raw)
	return out
}

// Sign attaches one witness per required signer over the transaction hash
// and seals the result. The balanced body is never mutated; only the
// witness set gains signatures.
func (r *Resolved) Sign(signer Signer) (*SignedTx, error) {
	wits, err := signer.SignTx(r.Hash, r.Signers)
	if err != nil {
		return nil, err
	}

	w := r.Witness
	w.VKeyWitnesses = wits

	t := ledger.Tx{Body: r.Body, Witnesses: w, IsValid: true}
	raw, err := t.Bytes()
	if err != nil {
		return nil, fmt.Errorf("tx: encode signed transaction: %w", err)
	}

	return &SignedTx{Tx: t, Hash: r.Hash, raw: raw}, nil
}
