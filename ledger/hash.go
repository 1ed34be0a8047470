package ledger

import (
	"encoding/hex"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/crypto/blake2b"
)

const (
	// Hash32Size is the byte length of transaction and datum hashes.
	Hash32Size = 32
	// Hash28Size is the byte length of key and script hashes.
	Hash28Size = 28
)

// Hash32 is a 32-byte blake2b-256 digest (transaction ids, datum hashes,
// script data hashes).
type Hash32 [Hash32Size]byte

// Hash28 is a 28-byte blake2b-224 digest (payment key hashes, script policy
// ids).
type Hash28 [Hash28Size]byte

// Blake2b256 hashes data with blake2b-256.
func Blake2b256(data []byte) Hash32 {
	return Hash32(blake2b.Sum256(data))
}

// Blake2b224 hashes data with blake2b-224.
func Blake2b224(data []byte) Hash28 {
	var h Hash28
	d, _ := blake2b.New(Hash28Size, nil)
	_, _ = d.Write(data)
	copy(h[:], d.Sum(nil))
	return h
}

// ParseHash32 decodes a 64-character hex string into a Hash32.
func ParseHash32(s string) (Hash32, error) {
	var h Hash32
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, fmt.Errorf("%w: %w", ErrInvalidHash, err)
	}
	if len(b) != Hash32Size {
		return h, fmt.Errorf("%w: want %d bytes, got %d", ErrInvalidHash, Hash32Size, len(b))
	}
	copy(h[:], b)
	return h, nil
}

// ParseHash28 decodes a 56-character hex string into a Hash28.
func ParseHash28(s string) (Hash28, error) {
	var h Hash28
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, fmt.Errorf("%w: %w", ErrInvalidHash, err)
	}
	if len(b) != Hash28Size {
		return h, fmt.Errorf("%w: want %d bytes, got %d", ErrInvalidHash, Hash28Size, len(b))
	}
	copy(h[:], b)
	return h, nil
}

func (h Hash32) String() string { return hex.EncodeToString(h[:]) }
func (h Hash28) String() string { return hex.EncodeToString(h[:]) }

// MarshalCBOR encodes the hash as a CBOR byte string (fixed-size arrays
// would otherwise encode as integer arrays).
func (h Hash32) MarshalCBOR() ([]byte, error) { return encMode.Marshal(h[:]) }

// UnmarshalCBOR decodes a CBOR byte string into the hash.
func (h *Hash32) UnmarshalCBOR(data []byte) error {
	var b []byte
	if err := cbor.Unmarshal(data, &b); err != nil {
		return err
	}
	if len(b) != Hash32Size {
		return fmt.Errorf("%w: want %d bytes, got %d", ErrInvalidHash, Hash32Size, len(b))
	}
	copy(h[:], b)
	return nil
}

// MarshalCBOR encodes the hash as a CBOR byte string.
func (h Hash28) MarshalCBOR() ([]byte, error) { return encMode.Marshal(h[:]) }

// UnmarshalCBOR decodes a CBOR byte string into the hash.
func (h *Hash28) UnmarshalCBOR(data []byte) error {
	var b []byte
	if err := cbor.Unmarshal(data, &b); err != nil {
		return err
	}
	if len(b) != Hash28Size {
		return fmt.Errorf("%w: want %d bytes, got %d", ErrInvalidHash, Hash28Size, len(b))
	}
	copy(h[:], b)
	return nil
}
