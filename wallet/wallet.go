package wallet

import (
	"crypto/ed25519"
	"encoding/binary"
	"fmt"

	"github.com/hoseorg/libhose-go/ledger"
)

// Keyring holds signing keys indexed by their payment key hash. Keys are
// supplied externally; the ring never derives network state and is read-only
// from the builder's perspective.
type Keyring struct {
	keys map[ledger.Hash28]ed25519.PrivateKey
}

// NewKeyring returns an empty keyring.
func NewKeyring() *Keyring {
	return &Keyring{keys: make(map[ledger.Hash28]ed25519.PrivateKey)}
}

// AddKey registers a private key and returns its payment key hash.
func (k *Keyring) AddKey(priv ed25519.PrivateKey) (ledger.Hash28, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return ledger.Hash28{}, fmt.Errorf("%w: want %d bytes, got %d", ErrInvalidKey, ed25519.PrivateKeySize, len(priv))
	}
	h := KeyHash(priv.Public().(ed25519.PublicKey))
	k.keys[h] = priv
	return h, nil
}

// Has reports whether the ring holds a key for the given hash.
func (k *Keyring) Has(hash ledger.Hash28) bool {
	_, ok := k.keys[hash]
	return ok
}

// Address returns the enterprise address of a held key.
func (k *Keyring) Address(hash ledger.Hash28, mainnet bool) (ledger.Address, error) {
	if !k.Has(hash) {
		return ledger.Address{}, fmt.Errorf("%w: %s", ErrMissingKey, hash)
	}
	return ledger.NewEnterpriseAddress(hash, mainnet), nil
}

// SignTx produces one witness per required key hash over the transaction
// hash. Deterministic: the same body and keys always yield the same witness
// set. Fails with ErrMissingKey naming the first hash without a key.
func (k *Keyring) SignTx(hash ledger.Hash32, required []ledger.Hash28) ([]ledger.VKeyWitness, error) {
	wits := make([]ledger.VKeyWitness, 0, len(required))
	for _, kh := range required {
		priv, ok := k.keys[kh]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingKey, kh)
		}
		pub := priv.Public().(ed25519.PublicKey)
		wits = append(wits, ledger.VKeyWitness{
			VKey:      append([]byte(nil), pub...),
			Signature: ed25519.Sign(priv, hash[:]),
		})
	}
	return wits, nil
}

// KeyHash returns the blake2b-224 hash of a verification key, the ledger's
// payment credential for that key.
func KeyHash(pub ed25519.PublicKey) ledger.Hash28 {
	return ledger.Blake2b224(pub)
}

// NewKeyFromSeed builds a signing key from a 32-byte seed.
func NewKeyFromSeed(seed []byte) (ed25519.PrivateKey, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("%w: want %d bytes, got %d", ErrInvalidSeed, ed25519.SeedSize, len(seed))
	}
	return ed25519.NewKeyFromSeed(seed), nil
}

// DeriveKey derives a child signing key from a master seed and an index.
// The child seed is blake2b-256(seed || index), so the same (seed, index)
// pair always yields the same key.
func DeriveKey(seed []byte, index uint32) (ed25519.PrivateKey, error) {
	if len(seed) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrInvalidSeed)
	}
	buf := make([]byte, len(seed)+4)
	copy(buf, seed)
	binary.BigEndian.PutUint32(buf[len(seed):], index)
	child := ledger.Blake2b256(buf)
	return ed25519.NewKeyFromSeed(child[:]), nil
}
