package ledger

import (
	"context"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Input references a transaction output by (transaction id, output index).
type Input struct {
	_     struct{} `cbor:",toarray"`
	TxID  Hash32
	Index uint64
}

func (i Input) String() string {
	return fmt.Sprintf("%s#%d", i.TxID, i.Index)
}

// Less orders inputs canonically: by transaction id bytes, then index. The
// ledger requires body inputs in this order, and redeemer indexes refer to
// it.
func (i Input) Less(o Input) bool {
	for n := 0; n < Hash32Size; n++ {
		if i.TxID[n] != o.TxID[n] {
			return i.TxID[n] < o.TxID[n]
		}
	}
	return i.Index < o.Index
}

// Output is a transaction output: an address, a multi-asset value and
// optionally a datum (by hash or inline) and a reference script. Datum and
// script bytes are opaque to the builder; their internal schema is never
// interpreted.
type Output struct {
	Address   Address
	Value     Value
	DatumHash *Hash32
	Datum     []byte
	ScriptRef []byte
}

// datumOption is the wire form of the output datum field:
// [0, hash] or [1, bytes(24)].
type datumOption struct {
	_       struct{} `cbor:",toarray"`
	Kind    uint64
	Payload cbor.RawMessage
}

const (
	datumKindHash   = 0
	datumKindInline = 1
)

// outputWire is the post-Alonzo map form of an output.
type outputWire struct {
	Address   Address          `cbor:"0,keyasint"`
	Value     Value            `cbor:"1,keyasint"`
	Datum     *datumOption     `cbor:"2,keyasint,omitempty"`
	ScriptRef *cbor.RawMessage `cbor:"3,keyasint,omitempty"`
}

// MarshalCBOR encodes the output in the map form with an embedded datum
// option and tag-24 wrapped reference script.
func (o Output) MarshalCBOR() ([]byte, error) {
	w := outputWire{Address: o.Address, Value: o.Value}

	switch {
	case o.DatumHash != nil && o.Datum != nil:
		return nil, fmt.Errorf("%w: both datum hash and inline datum set", ErrInvalidOutput)
	case o.DatumHash != nil:
		payload, err := encMode.Marshal(*o.DatumHash)
		if err != nil {
			return nil, err
		}
		w.Datum = &datumOption{Kind: datumKindHash, Payload: payload}
	case o.Datum != nil:
		payload, err := encMode.Marshal(cbor.RawTag{Number: 24, Content: mustMarshalBytes(o.Datum)})
		if err != nil {
			return nil, err
		}
		w.Datum = &datumOption{Kind: datumKindInline, Payload: payload}
	}

	if o.ScriptRef != nil {
		wrapped, err := encMode.Marshal(cbor.RawTag{Number: 24, Content: mustMarshalBytes(o.ScriptRef)})
		if err != nil {
			return nil, err
		}
		raw := cbor.RawMessage(wrapped)
		w.ScriptRef = &raw
	}

	return encMode.Marshal(w)
}

// UnmarshalCBOR decodes the map output form.
func (o *Output) UnmarshalCBOR(data []byte) error {
	var w outputWire
	if err := cbor.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidOutput, err)
	}
	out := Output{Address: w.Address, Value: w.Value}

	if w.Datum != nil {
		switch w.Datum.Kind {
		case datumKindHash:
			var h Hash32
			if err := cbor.Unmarshal(w.Datum.Payload, &h); err != nil {
				return fmt.Errorf("%w: datum hash: %w", ErrInvalidOutput, err)
			}
			out.DatumHash = &h
		case datumKindInline:
			b, err := unwrapTag24(w.Datum.Payload)
			if err != nil {
				return fmt.Errorf("%w: inline datum: %w", ErrInvalidOutput, err)
			}
			out.Datum = b
		default:
			return fmt.Errorf("%w: unknown datum option %d", ErrInvalidOutput, w.Datum.Kind)
		}
	}

	if w.ScriptRef != nil {
		b, err := unwrapTag24(*w.ScriptRef)
		if err != nil {
			return fmt.Errorf("%w: script ref: %w", ErrInvalidOutput, err)
		}
		out.ScriptRef = b
	}

	*o = out
	return nil
}

func mustMarshalBytes(b []byte) cbor.RawMessage {
	out, err := encMode.Marshal(b)
	if err != nil {
		panic("ledger: marshal byte string: " + err.Error())
	}
	return out
}

func unwrapTag24(data []byte) ([]byte, error) {
	var tag cbor.RawTag
	if err := cbor.Unmarshal(data, &tag); err != nil {
		return nil, err
	}
	if tag.Number != 24 {
		return nil, fmt.Errorf("expected tag 24, got %d", tag.Number)
	}
	var b []byte
	if err := cbor.Unmarshal(tag.Content, &b); err != nil {
		return nil, err
	}
	return b, nil
}

// SerializedSize returns the canonical encoded size of the output in bytes.
func (o Output) SerializedSize() (uint64, error) {
	b, err := encMode.Marshal(o)
	if err != nil {
		return 0, err
	}
	return uint64(len(b)), nil
}

// MinLovelace returns the minimum lovelace the output must carry, a function
// of its serialized size and the coins-per-UTXO-byte parameter. The constant
// 160 covers the ledger's fixed per-entry overhead.
func (o Output) MinLovelace(coinsPerUTXOByte uint64) (uint64, error) {
	size, err := o.SerializedSize()
	if err != nil {
		return 0, err
	}
	return (160 + size) * coinsPerUTXOByte, nil
}

// UTXO is an unspent transaction output: the reference identifying it plus
// the output it carries. Sourced externally and treated as read-only
// evidence by the builder.
type UTXO struct {
	Ref    Input
	Output Output
}

// UTXOSource supplies candidate UTXOs for coin selection. Results are
// eventually-consistent snapshots; double-spend detection happens at
// submission time, not locally.
type UTXOSource interface {
	CandidatesFor(ctx context.Context, addrs []Address) ([]UTXO, error)
}

// ValidityInterval bounds the slots in which a transaction may be included.
// Zero means unset for either bound.
type ValidityInterval struct {
	Start uint64
	End   uint64
}

// ExUnits is the execution budget consumed by one script invocation.
type ExUnits struct {
	_     struct{} `cbor:",toarray"`
	Mem   uint64
	Steps uint64
}

// Add returns the component-wise sum.
func (e ExUnits) Add(o ExUnits) ExUnits {
	return ExUnits{Mem: e.Mem + o.Mem, Steps: e.Steps + o.Steps}
}

// RedeemerTag identifies what a redeemer is attached to.
type RedeemerTag uint8

const (
	TagSpend  RedeemerTag = 0
	TagMint   RedeemerTag = 1
	TagCert   RedeemerTag = 2
	TagReward RedeemerTag = 3
)

func (t RedeemerTag) String() string {
	switch t {
	case TagSpend:
		return "spend"
	case TagMint:
		return "mint"
	case TagCert:
		return "certificate"
	case TagReward:
		return "withdrawal"
	default:
		return fmt.Sprintf("tag(%d)", uint8(t))
	}
}

// ScriptKind identifies the language of an attached script.
type ScriptKind uint8

const (
	ScriptNative ScriptKind = iota
	ScriptPlutusV1
	ScriptPlutusV2
	ScriptPlutusV3
)
