package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hoseorg/libhose-go/ledger"
)

func tempStore(t *testing.T) *BoltStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "utxo.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testAddr(b byte) ledger.Address {
	var h ledger.Hash28
	for i := range h {
		h[i] = b
	}
	return ledger.NewEnterpriseAddress(h, false)
}

func testUTXO(addr ledger.Address, txidByte byte, index uint64, lovelace uint64) ledger.UTXO {
	var txid ledger.Hash32
	txid[0] = txidByte
	return ledger.UTXO{
		Ref:    ledger.Input{TxID: txid, Index: index},
		Output: ledger.Output{Address: addr, Value: ledger.NewValue(lovelace)},
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	s := tempStore(t)
	addr := testAddr(1)

	utxos := []ledger.UTXO{
		testUTXO(addr, 1, 0, 5000000),
		testUTXO(addr, 2, 3, 1000000),
	}
	require.NoError(t, s.PutSnapshot(addr, utxos))

	got, err := s.CandidatesFor(context.Background(), []ledger.Address{addr})
	require.NoError(t, err)
	require.Len(t, got, 2)

	byRef := make(map[ledger.Input]ledger.UTXO, len(got))
	for _, u := range got {
		byRef[u.Ref] = u
	}
	for _, want := range utxos {
		u, ok := byRef[want.Ref]
		require.True(t, ok, "missing %s", want.Ref)
		assert.True(t, u.Output.Value.Equal(want.Output.Value))
		assert.True(t, u.Output.Address.Equal(addr))
	}
}

func TestSnapshotReplacesPrevious(t *testing.T) {
	s := tempStore(t)
	addr := testAddr(1)

	require.NoError(t, s.PutSnapshot(addr, []ledger.UTXO{
		testUTXO(addr, 1, 0, 5000000),
		testUTXO(addr, 2, 0, 1000000),
	}))
	require.NoError(t, s.PutSnapshot(addr, []ledger.UTXO{
		testUTXO(addr, 3, 0, 7000000),
	}))

	got, err := s.CandidatesFor(context.Background(), []ledger.Address{addr})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, uint64(7000000), got[0].Output.Value.Lovelace)
}

func TestSnapshotsAreIsolatedPerAddress(t *testing.T) {
	s := tempStore(t)
	a := testAddr(1)
	b := testAddr(2)

	require.NoError(t, s.PutSnapshot(a, []ledger.UTXO{testUTXO(a, 1, 0, 5000000)}))
	require.NoError(t, s.PutSnapshot(b, []ledger.UTXO{testUTXO(b, 2, 0, 9000000)}))

	got, err := s.CandidatesFor(context.Background(), []ledger.Address{a})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, uint64(5000000), got[0].Output.Value.Lovelace)

	both, err := s.CandidatesFor(context.Background(), []ledger.Address{a, b})
	require.NoError(t, err)
	assert.Len(t, both, 2)
}

func TestRemoveSpentEntry(t *testing.T) {
	s := tempStore(t)
	addr := testAddr(1)
	spent := testUTXO(addr, 1, 0, 5000000)
	kept := testUTXO(addr, 2, 0, 1000000)

	require.NoError(t, s.PutSnapshot(addr, []ledger.UTXO{spent, kept}))
	require.NoError(t, s.Remove(addr, spent.Ref))

	got, err := s.CandidatesFor(context.Background(), []ledger.Address{addr})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, kept.Ref, got[0].Ref)
}

func TestSnapshotPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "utxo.db")
	addr := testAddr(1)

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.PutSnapshot(addr, []ledger.UTXO{testUTXO(addr, 1, 0, 5000000)}))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.CandidatesFor(context.Background(), []ledger.Address{addr})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

type sourceFunc func(ctx context.Context, addrs []ledger.Address) ([]ledger.UTXO, error)

func (f sourceFunc) CandidatesFor(ctx context.Context, addrs []ledger.Address) ([]ledger.UTXO, error) {
	return f(ctx, addrs)
}

func TestRefreshPullsFromSource(t *testing.T) {
	s := tempStore(t)
	addr := testAddr(1)

	source := sourceFunc(func(ctx context.Context, addrs []ledger.Address) ([]ledger.UTXO, error) {
		return []ledger.UTXO{testUTXO(addrs[0], 9, 0, 3000000)}, nil
	})

	require.NoError(t, s.Refresh(context.Background(), source, []ledger.Address{addr}))

	got, err := s.CandidatesFor(context.Background(), []ledger.Address{addr})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, uint64(3000000), got[0].Output.Value.Lovelace)
}

func TestUseAfterCloseFails(t *testing.T) {
	s := tempStore(t)
	addr := testAddr(1)
	require.NoError(t, s.Close())

	require.ErrorIs(t, s.PutSnapshot(addr, nil), ErrClosed)
	require.ErrorIs(t, s.Remove(addr, testUTXO(addr, 1, 0, 1).Ref), ErrClosed)

	_, err := s.CandidatesFor(context.Background(), []ledger.Address{addr})
	require.ErrorIs(t, err, ErrClosed)
}

func TestCandidatesForHonorsContext(t *testing.T) {
	s := tempStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.CandidatesFor(ctx, []ledger.Address{testAddr(1)})
	require.ErrorIs(t, err, context.Canceled)
}
