package ledger

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/fxamacker/cbor/v2"
)

// Address header nibbles (upper 4 bits of the first byte). Only payment-key
// based addresses are constructed here; parsing accepts any Shelley header.
const (
	addrTypeBaseKeyKey    = 0x0
	addrTypeEnterpriseKey = 0x6

	addrNetworkTestnet = 0x0
	addrNetworkMainnet = 0x1
)

// Address is a ledger address. It wraps the raw header+payload bytes; the
// text form is bech32 with an hrp derived from the network bit.
type Address struct {
	raw []byte
}

// ParseAddress decodes a bech32 address string.
func ParseAddress(s string) (Address, error) {
	hrp, data, err := bech32.DecodeNoLimit(s)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %w", ErrInvalidAddress, err)
	}
	if hrp != "addr" && hrp != "addr_test" {
		return Address{}, fmt.Errorf("%w: unexpected prefix %q", ErrInvalidAddress, hrp)
	}
	raw, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %w", ErrInvalidAddress, err)
	}
	return NewAddressFromBytes(raw)
}

// NewAddressFromBytes wraps raw address bytes after minimal validation.
func NewAddressFromBytes(raw []byte) (Address, error) {
	if len(raw) < 1+Hash28Size {
		return Address{}, fmt.Errorf("%w: too short (%d bytes)", ErrInvalidAddress, len(raw))
	}
	out := make([]byte, len(raw))
	copy(out, raw)
	return Address{raw: out}, nil
}

// NewEnterpriseAddress builds a payment-key enterprise address (no staking
// part) for the given key hash.
func NewEnterpriseAddress(paymentKeyHash Hash28, mainnet bool) Address {
	raw := make([]byte, 1+Hash28Size)
	raw[0] = addrTypeEnterpriseKey << 4
	if mainnet {
		raw[0] |= addrNetworkMainnet
	}
	copy(raw[1:], paymentKeyHash[:])
	return Address{raw: raw}
}

// NewBaseAddress builds a key/key base address carrying both a payment and a
// staking credential.
func NewBaseAddress(paymentKeyHash, stakeKeyHash Hash28, mainnet bool) Address {
	raw := make([]byte, 1+2*Hash28Size)
	raw[0] = addrTypeBaseKeyKey << 4
	if mainnet {
		raw[0] |= addrNetworkMainnet
	}
	copy(raw[1:], paymentKeyHash[:])
	copy(raw[1+Hash28Size:], stakeKeyHash[:])
	return Address{raw: raw}
}

// Bytes returns a copy of the raw address bytes.
func (a Address) Bytes() []byte {
	out := make([]byte, len(a.raw))
	copy(out, a.raw)
	return out
}

// IsMainnet reports whether the address carries the mainnet network bit.
func (a Address) IsMainnet() bool {
	return len(a.raw) > 0 && a.raw[0]&0x0f == addrNetworkMainnet
}

// IsZero reports whether the address is the zero value.
func (a Address) IsZero() bool { return len(a.raw) == 0 }

// Equal reports byte equality.
func (a Address) Equal(o Address) bool { return bytes.Equal(a.raw, o.raw) }

// PaymentKeyHash returns the payment credential hash. It fails for
// script-locked payment parts, whose credential is a script hash rather
// than a key hash.
func (a Address) PaymentKeyHash() (Hash28, error) {
	var h Hash28
	if len(a.raw) < 1+Hash28Size {
		return h, fmt.Errorf("%w: no payment credential", ErrInvalidAddress)
	}
	// Odd address types (header bit 4 set) carry a script payment part.
	if a.raw[0]>>4&0x1 == 1 {
		return h, fmt.Errorf("%w: payment part is a script", ErrInvalidAddress)
	}
	copy(h[:], a.raw[1:1+Hash28Size])
	return h, nil
}

// String renders the bech32 form. The zero address renders empty.
func (a Address) String() string {
	if a.IsZero() {
		return ""
	}
	hrp := "addr_test"
	if a.IsMainnet() {
		hrp = "addr"
	}
	data, err := bech32.ConvertBits(a.raw, 8, 5, true)
	if err != nil {
		return ""
	}
	s, err := bech32.Encode(hrp, data)
	if err != nil {
		return ""
	}
	return s
}

// MarshalCBOR encodes the address as a CBOR byte string.
func (a Address) MarshalCBOR() ([]byte, error) { return encMode.Marshal(a.raw) }

// UnmarshalCBOR decodes a CBOR byte string into the address.
func (a *Address) UnmarshalCBOR(data []byte) error {
	var raw []byte
	if err := cbor.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidAddress, err)
	}
	addr, err := NewAddressFromBytes(raw)
	if err != nil {
		return err
	}
	*a = addr
	return nil
}
