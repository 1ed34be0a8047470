package ledger

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// MintValue is a signed multi-asset delta attached to a transaction body:
// positive quantities mint, negative quantities burn.
type MintValue map[AssetID]int64

// MarshalCBOR encodes the mint map as {policy: {name: quantity}}.
func (m MintValue) MarshalCBOR() ([]byte, error) {
	ma := make(multiasset[int64])
	for id, q := range m {
		if q == 0 {
			continue
		}
		policy := cbor.ByteString(id.Policy[:])
		if ma[policy] == nil {
			ma[policy] = make(map[cbor.ByteString]int64)
		}
		ma[policy][cbor.ByteString(id.Name)] = q
	}
	return encMode.Marshal(ma)
}

// UnmarshalCBOR decodes the mint map.
func (m *MintValue) UnmarshalCBOR(data []byte) error {
	var ma multiasset[int64]
	if err := cbor.Unmarshal(data, &ma); err != nil {
		return fmt.Errorf("%w: mint: %w", ErrInvalidValue, err)
	}
	assets, err := assetsFromWire(ma)
	if err != nil {
		return err
	}
	*m = assets
	return nil
}

// TxBody is a transaction body in the ledger's map-keyed form. Field keys
// match the binary format; absent optional fields are omitted from the
// encoding entirely.
type TxBody struct {
	Inputs          []Input
	Outputs         []Output
	Fee             uint64
	TTL             uint64
	ValidityStart   uint64
	Mint            MintValue
	ScriptDataHash  *Hash32
	Collateral      []Input
	RequiredSigners []Hash28
	ReferenceInputs []Input
}

// txBodyWire carries the body across the codec boundary. Mint is a pointer
// here because the MintValue marshaler bypasses omitempty: a nil map would
// still encode as an empty multiasset under key 9, which the binary format
// forbids.
type txBodyWire struct {
	Inputs          []Input    `cbor:"0,keyasint"`
	Outputs         []Output   `cbor:"1,keyasint"`
	Fee             uint64     `cbor:"2,keyasint"`
	TTL             uint64     `cbor:"3,keyasint,omitempty"`
	ValidityStart   uint64     `cbor:"8,keyasint,omitempty"`
	Mint            *MintValue `cbor:"9,keyasint,omitempty"`
	ScriptDataHash  *Hash32    `cbor:"11,keyasint,omitempty"`
	Collateral      []Input    `cbor:"13,keyasint,omitempty"`
	RequiredSigners []Hash28   `cbor:"14,keyasint,omitempty"`
	ReferenceInputs []Input    `cbor:"18,keyasint,omitempty"`
}

// MarshalCBOR encodes the body, leaving the mint field out entirely when
// nothing is minted or burned.
func (b TxBody) MarshalCBOR() ([]byte, error) {
	w := txBodyWire{
		Inputs:          b.Inputs,
		Outputs:         b.Outputs,
		Fee:             b.Fee,
		TTL:             b.TTL,
		ValidityStart:   b.ValidityStart,
		ScriptDataHash:  b.ScriptDataHash,
		Collateral:      b.Collateral,
		RequiredSigners: b.RequiredSigners,
		ReferenceInputs: b.ReferenceInputs,
	}
	if len(b.Mint) > 0 {
		w.Mint = &b.Mint
	}
	return encMode.Marshal(w)
}

// UnmarshalCBOR decodes the body.
func (b *TxBody) UnmarshalCBOR(data []byte) error {
	var w txBodyWire
	if err := cbor.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("%w: body: %w", ErrInvalidTx, err)
	}
	*b = TxBody{
		Inputs:          w.Inputs,
		Outputs:         w.Outputs,
		Fee:             w.Fee,
		TTL:             w.TTL,
		ValidityStart:   w.ValidityStart,
		ScriptDataHash:  w.ScriptDataHash,
		Collateral:      w.Collateral,
		RequiredSigners: w.RequiredSigners,
		ReferenceInputs: w.ReferenceInputs,
	}
	if w.Mint != nil {
		b.Mint = *w.Mint
	}
	return nil
}

// Bytes returns the canonical encoding of the body.
func (b *TxBody) Bytes() ([]byte, error) {
	return encMode.Marshal(b)
}

// Hash returns the transaction id: blake2b-256 over the canonical body
// encoding. Witnesses sign this hash.
func (b *TxBody) Hash() (Hash32, error) {
	data, err := b.Bytes()
	if err != nil {
		return Hash32{}, err
	}
	return Blake2b256(data), nil
}

// VKeyWitness is a verification key with a signature over the transaction
// hash.
type VKeyWitness struct {
	_         struct{} `cbor:",toarray"`
	VKey      []byte
	Signature []byte
}

// Redeemer carries the input data and resolved execution budget for one
// script invocation.
type Redeemer struct {
	_     struct{} `cbor:",toarray"`
	Tag   RedeemerTag
	Index uint32
	Data  cbor.RawMessage
	Units ExUnits
}

// WitnessSet holds everything that authorizes a transaction: signatures,
// attached scripts, datums and redeemers.
type WitnessSet struct {
	VKeyWitnesses   []VKeyWitness     `cbor:"0,keyasint,omitempty"`
	NativeScripts   []cbor.RawMessage `cbor:"1,keyasint,omitempty"`
	PlutusV1Scripts [][]byte          `cbor:"3,keyasint,omitempty"`
	PlutusData      []cbor.RawMessage `cbor:"4,keyasint,omitempty"`
	Redeemers       []Redeemer        `cbor:"5,keyasint,omitempty"`
	PlutusV2Scripts [][]byte          `cbor:"6,keyasint,omitempty"`
	PlutusV3Scripts [][]byte          `cbor:"7,keyasint,omitempty"`
}

// ScriptDataHash commits the body to the witness set's redeemers and datums.
// Computed over their canonical encodings.
func (w *WitnessSet) ScriptDataHash() (Hash32, error) {
	redeemers, err := encMode.Marshal(w.Redeemers)
	if err != nil {
		return Hash32{}, err
	}
	datums, err := encMode.Marshal(w.PlutusData)
	if err != nil {
		return Hash32{}, err
	}
	return Blake2b256(append(redeemers, datums...)), nil
}

// Tx is a complete transaction: [body, witness set, validity flag,
// auxiliary data]. Auxiliary data is carried opaquely (null when absent).
type Tx struct {
	_         struct{} `cbor:",toarray"`
	Body      TxBody
	Witnesses WitnessSet
	IsValid   bool
	Auxiliary *cbor.RawMessage
}

// Bytes returns the canonical encoding of the transaction.
func (t *Tx) Bytes() ([]byte, error) {
	return encMode.Marshal(t)
}

// ParseTx decodes transaction bytes. Combined with Bytes this round-trips
// byte-exactly for canonically encoded transactions.
func ParseTx(data []byte) (*Tx, error) {
	var t Tx
	if err := cbor.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTx, err)
	}
	return &t, nil
}
