package ledger

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/fxamacker/cbor/v2"
)

// AssetID identifies a native asset by minting policy and raw asset name.
// The name holds raw bytes (not necessarily UTF-8) stored as a string so the
// struct is usable as a map key.
type AssetID struct {
	Policy Hash28
	Name   string
}

func (a AssetID) String() string {
	return a.Policy.String() + "." + fmt.Sprintf("%x", a.Name)
}

// Less orders asset ids by policy bytes, then by name bytes. Used wherever
// a deterministic iteration order over assets is required.
func (a AssetID) Less(b AssetID) bool {
	if c := bytes.Compare(a.Policy[:], b.Policy[:]); c != 0 {
		return c < 0
	}
	return a.Name < b.Name
}

// Value is a multi-asset amount: a lovelace quantity plus zero or more
// native asset quantities. All arithmetic is exact integer arithmetic;
// ledger balances must net to precisely zero, so there is no floating point
// anywhere in value handling.
type Value struct {
	Lovelace uint64
	Assets   map[AssetID]uint64
}

// NewValue returns a lovelace-only value.
func NewValue(lovelace uint64) Value {
	return Value{Lovelace: lovelace}
}

// WithAsset returns a copy of v with the given asset quantity set.
func (v Value) WithAsset(id AssetID, quantity uint64) Value {
	out := v.Clone()
	if out.Assets == nil {
		out.Assets = make(map[AssetID]uint64)
	}
	out.Assets[id] = quantity
	return out
}

// Clone returns a deep copy of v.
func (v Value) Clone() Value {
	out := Value{Lovelace: v.Lovelace}
	if len(v.Assets) > 0 {
		out.Assets = make(map[AssetID]uint64, len(v.Assets))
		for id, q := range v.Assets {
			out.Assets[id] = q
		}
	}
	return out
}

// Add returns v + o.
func (v Value) Add(o Value) Value {
	out := v.Clone()
	out.Lovelace += o.Lovelace
	for id, q := range o.Assets {
		if out.Assets == nil {
			out.Assets = make(map[AssetID]uint64)
		}
		out.Assets[id] += q
	}
	return out
}

// AssetQuantity returns the quantity of the given asset, zero if absent.
func (v Value) AssetQuantity(id AssetID) uint64 {
	return v.Assets[id]
}

// IsLovelaceOnly reports whether v carries no native assets.
func (v Value) IsLovelaceOnly() bool {
	for _, q := range v.Assets {
		if q != 0 {
			return false
		}
	}
	return true
}

// IsZero reports whether every component of v is zero.
func (v Value) IsZero() bool {
	return v.Lovelace == 0 && v.IsLovelaceOnly()
}

// Equal reports component-wise equality, treating absent assets as zero.
func (v Value) Equal(o Value) bool {
	if v.Lovelace != o.Lovelace {
		return false
	}
	for id, q := range v.Assets {
		if o.Assets[id] != q {
			return false
		}
	}
	for id, q := range o.Assets {
		if v.Assets[id] != q {
			return false
		}
	}
	return true
}

// AssetIDs returns the ids of all non-zero assets in deterministic order.
func (v Value) AssetIDs() []AssetID {
	ids := make([]AssetID, 0, len(v.Assets))
	for id, q := range v.Assets {
		if q != 0 {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })
	return ids
}

// multiasset is the wire shape of a native asset bundle:
// policy id -> asset name -> quantity. cbor.ByteString keys encode as CBOR
// byte strings, which fixed-size hash arrays would not.
type multiasset[Q int64 | uint64] map[cbor.ByteString]map[cbor.ByteString]Q

func assetsToWire(assets map[AssetID]uint64) multiasset[uint64] {
	ma := make(multiasset[uint64])
	for id, q := range assets {
		if q == 0 {
			continue
		}
		policy := cbor.ByteString(id.Policy[:])
		if ma[policy] == nil {
			ma[policy] = make(map[cbor.ByteString]uint64)
		}
		ma[policy][cbor.ByteString(id.Name)] = q
	}
	return ma
}

func assetsFromWire[Q int64 | uint64](ma multiasset[Q]) (map[AssetID]Q, error) {
	if len(ma) == 0 {
		return nil, nil
	}
	out := make(map[AssetID]Q)
	for policy, names := range ma {
		if len(policy) != Hash28Size {
			return nil, fmt.Errorf("%w: policy id must be %d bytes", ErrInvalidValue, Hash28Size)
		}
		var p Hash28
		copy(p[:], policy)
		for name, q := range names {
			out[AssetID{Policy: p, Name: string(name)}] = q
		}
	}
	return out, nil
}

// valueWithAssets is the two-element array form used when assets are present.
type valueWithAssets struct {
	_        struct{} `cbor:",toarray"`
	Lovelace uint64
	Assets   multiasset[uint64]
}

// MarshalCBOR encodes a lovelace-only value as a bare unsigned integer and a
// multi-asset value as [lovelace, {policy: {name: quantity}}].
func (v Value) MarshalCBOR() ([]byte, error) {
	if v.IsLovelaceOnly() {
		return encMode.Marshal(v.Lovelace)
	}
	return encMode.Marshal(valueWithAssets{Lovelace: v.Lovelace, Assets: assetsToWire(v.Assets)})
}

// UnmarshalCBOR decodes either value form.
func (v *Value) UnmarshalCBOR(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: empty value", ErrInvalidValue)
	}
	// Major type 4 is the [lovelace, assets] array form.
	if data[0]>>5 == 4 {
		var wa valueWithAssets
		if err := cbor.Unmarshal(data, &wa); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidValue, err)
		}
		assets, err := assetsFromWire(wa.Assets)
		if err != nil {
			return err
		}
		v.Lovelace = wa.Lovelace
		v.Assets = assets
		return nil
	}
	var lovelace uint64
	if err := cbor.Unmarshal(data, &lovelace); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidValue, err)
	}
	v.Lovelace = lovelace
	v.Assets = nil
	return nil
}

// Delta is a signed multi-asset amount used during balancing, where deficits
// (positive) and surpluses (negative) coexist.
type Delta struct {
	Lovelace int64
	Assets   map[AssetID]int64
}

// AddValue adds a value into the delta.
func (d *Delta) AddValue(v Value) {
	d.Lovelace += int64(v.Lovelace)
	for id, q := range v.Assets {
		d.addAsset(id, int64(q))
	}
}

// SubValue subtracts a value from the delta.
func (d *Delta) SubValue(v Value) {
	d.Lovelace -= int64(v.Lovelace)
	for id, q := range v.Assets {
		d.addAsset(id, -int64(q))
	}
}

// AddAsset adds a signed asset quantity (mint positive, burn negative).
func (d *Delta) AddAsset(id AssetID, quantity int64) {
	d.addAsset(id, quantity)
}

func (d *Delta) addAsset(id AssetID, quantity int64) {
	if d.Assets == nil {
		d.Assets = make(map[AssetID]int64)
	}
	d.Assets[id] += quantity
	if d.Assets[id] == 0 {
		delete(d.Assets, id)
	}
}

// PositiveAssets returns the ids of assets with a positive (unmet) component
// in deterministic order.
func (d Delta) PositiveAssets() []AssetID {
	var ids []AssetID
	for id, q := range d.Assets {
		if q > 0 {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })
	return ids
}

// IsSettled reports whether no component of the delta is positive, i.e. the
// inputs cover every requirement.
func (d Delta) IsSettled() bool {
	if d.Lovelace > 0 {
		return false
	}
	for _, q := range d.Assets {
		if q > 0 {
			return false
		}
	}
	return true
}

// Surplus converts the negated delta into a value. Every component must be
// non-positive (a settled delta); the result is what a change output would
// return to the spender.
func (d Delta) Surplus() (Value, error) {
	if !d.IsSettled() {
		return Value{}, fmt.Errorf("%w: delta has unmet components", ErrInvalidValue)
	}
	out := Value{Lovelace: uint64(-d.Lovelace)}
	for id, q := range d.Assets {
		if q < 0 {
			if out.Assets == nil {
				out.Assets = make(map[AssetID]uint64)
			}
			out.Assets[id] = uint64(-q)
		}
	}
	return out, nil
}

// Clone returns a deep copy of d.
func (d Delta) Clone() Delta {
	out := Delta{Lovelace: d.Lovelace}
	if len(d.Assets) > 0 {
		out.Assets = make(map[AssetID]int64, len(d.Assets))
		for id, q := range d.Assets {
			out.Assets[id] = q
		}
	}
	return out
}
