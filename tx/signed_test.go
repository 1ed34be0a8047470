package tx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hoseorg/libhose-go/ledger"
)

type signerFunc func(hash ledger.Hash32, required []ledger.Hash28) ([]ledger.VKeyWitness, error)

func (f signerFunc) SignTx(hash ledger.Hash32, required []ledger.Hash28) ([]ledger.VKeyWitness, error) {
	return f(hash, required)
}

func TestSignSealsBalancedBody(t *testing.T) {
	p := testParams(t)
	d := mustDraft(t,
		Spend(testUTXO(1, 0, 5000000)),
		PayTo(testAddr(0x02), ledger.NewValue(2000000)),
	)

	res, err := Balance(context.Background(), d, BalanceOptions{
		Params:        p,
		ChangeAddress: testAddr(0x01),
	})
	require.NoError(t, err)

	var signedHashes []ledger.Hash32
	signed, err := res.Sign(signerFunc(func(hash ledger.Hash32, required []ledger.Hash28) ([]ledger.VKeyWitness, error) {
		signedHashes = append(signedHashes, hash)
		wits := make([]ledger.VKeyWitness, len(required))
		for i := range wits {
			wits[i] = ledger.VKeyWitness{VKey: make([]byte, 32), Signature: make([]byte, 64)}
		}
		return wits, nil
	}))
	require.NoError(t, err)

	// The signer saw exactly the body hash.
	bodyHash, err := res.Body.Hash()
	require.NoError(t, err)
	require.Equal(t, []ledger.Hash32{bodyHash}, signedHashes)
	assert.Equal(t, bodyHash, signed.Hash)

	// The sealed bytes parse back to the same body and witness count.
	parsed, err := ledger.ParseTx(signed.Bytes())
	require.NoError(t, err)
	assert.Equal(t, res.Body.Fee, parsed.Body.Fee)
	assert.Len(t, parsed.Witnesses.VKeyWitnesses, len(res.Signers))
	assert.True(t, parsed.IsValid)

	// Bytes returns a copy; mutating it does not corrupt the sealed tx.
	b := signed.Bytes()
	b[0] ^= 0xff
	assert.NotEqual(t, b[0], signed.Bytes()[0])
}
