package store

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.etcd.io/bbolt"

	"github.com/hoseorg/libhose-go/ledger"
)

var bucketUTXOs = []byte("utxos")

// BoltStore caches UTXO snapshots fetched from a backend so the builder can
// select inputs without a round trip per build. Entries are keyed by owning
// address and outpoint; a snapshot replaces the address's whole set, and
// spent entries are removed as transactions are submitted.
type BoltStore struct {
	db *bbolt.DB
}

// Compile-time interface check.
var _ ledger.UTXOSource = (*BoltStore)(nil)

// Open opens or creates the bbolt database at dbPath. The parent directory
// is created if it does not exist.
func Open(dbPath string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("store: create directory: %w", err)
	}
	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("store: open bolt db: %w", err)
	}

	err = db.Update(func(btx *bbolt.Tx) error {
		_, err := btx.CreateBucketIfNotExists(bucketUTXOs)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: create bucket: %w", err)
	}
	return &BoltStore{db: db}, nil
}

// Close closes the underlying database. Further calls on the store fail
// with ErrClosed.
func (s *BoltStore) Close() error { return s.db.Close() }

// dbErr surfaces use after Close as ErrClosed.
func dbErr(err error) error {
	if errors.Is(err, bbolt.ErrDatabaseNotOpen) {
		return fmt.Errorf("%w: %w", ErrClosed, err)
	}
	return err
}

// addrPrefix length-prefixes the address bytes so one address's keys can
// never shadow another's during a prefix scan.
func addrPrefix(addr ledger.Address) []byte {
	raw := addr.Bytes()
	prefix := make([]byte, 0, 1+len(raw))
	prefix = append(prefix, byte(len(raw)))
	return append(prefix, raw...)
}

// utxoKey is addrPrefix || txid || 8-byte big-endian output index.
func utxoKey(addr ledger.Address, ref ledger.Input) []byte {
	key := addrPrefix(addr)
	key = append(key, ref.TxID[:]...)
	var index [8]byte
	binary.BigEndian.PutUint64(index[:], ref.Index)
	return append(key, index[:]...)
}

// PutSnapshot replaces the cached set for addr with the given unspent
// outputs, atomically.
func (s *BoltStore) PutSnapshot(addr ledger.Address, utxos []ledger.UTXO) error {
	return dbErr(s.db.Update(func(btx *bbolt.Tx) error {
		b := btx.Bucket(bucketUTXOs)

		prefix := addrPrefix(addr)
		cur := b.Cursor()
		for k, _ := cur.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = cur.Next() {
			if err := cur.Delete(); err != nil {
				return fmt.Errorf("store: clear snapshot: %w", err)
			}
		}

		for _, u := range utxos {
			data, err := ledger.MarshalCanonical(u)
			if err != nil {
				return fmt.Errorf("store: encode utxo %s: %w", u.Ref, err)
			}
			if err := b.Put(utxoKey(addr, u.Ref), data); err != nil {
				return fmt.Errorf("store: put utxo %s: %w", u.Ref, err)
			}
		}
		return nil
	}))
}

// Remove drops one cached entry, typically after the outpoint was spent by
// a submitted transaction.
func (s *BoltStore) Remove(addr ledger.Address, ref ledger.Input) error {
	return dbErr(s.db.Update(func(btx *bbolt.Tx) error {
		return btx.Bucket(bucketUTXOs).Delete(utxoKey(addr, ref))
	}))
}

// CandidatesFor returns the cached unspent outputs for the given addresses.
// Implements ledger.UTXOSource, so a warm cache can stand in for a live
// backend during balancing.
func (s *BoltStore) CandidatesFor(ctx context.Context, addrs []ledger.Address) ([]ledger.UTXO, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var utxos []ledger.UTXO
	err := s.db.View(func(btx *bbolt.Tx) error {
		b := btx.Bucket(bucketUTXOs)
		for _, addr := range addrs {
			prefix := addrPrefix(addr)
			cur := b.Cursor()
			for k, v := cur.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = cur.Next() {
				var u ledger.UTXO
				if err := ledger.UnmarshalCanonical(v, &u); err != nil {
					return fmt.Errorf("%w: key %x: %w", ErrCorrupt, k, err)
				}
				utxos = append(utxos, u)
			}
		}
		return nil
	})
	if err != nil {
		return nil, dbErr(err)
	}
	return utxos, nil
}

// Refresh pulls a fresh snapshot for each address from the backend source
// and stores it.
func (s *BoltStore) Refresh(ctx context.Context, source ledger.UTXOSource, addrs []ledger.Address) error {
	for _, addr := range addrs {
		utxos, err := source.CandidatesFor(ctx, []ledger.Address{addr})
		if err != nil {
			return fmt.Errorf("store: refresh %s: %w", addr, err)
		}
		if err := s.PutSnapshot(addr, utxos); err != nil {
			return err
		}
	}
	return nil
}
