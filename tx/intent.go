package tx

import (
	"github.com/hoseorg/libhose-go/ledger"
)

// IntentKind discriminates the intent sum type. The resolution engine
// switches exhaustively over these; adding a kind without handling it there
// is a compile-visible TODO, not silent fallthrough.
type IntentKind uint8

const (
	KindSpendInput IntentKind = iota
	KindReferenceInput
	KindProduceOutput
	KindMint
	KindRequireSigner
	KindSetValidity
	KindInvokeScript
)

// Intent is one declarative instruction to the builder. Exactly one payload
// field matching Kind is set. Intents are immutable once appended.
type Intent struct {
	Kind IntentKind

	Spend    *SpendIntent
	Refer    *ReferenceIntent
	Produce  *ProduceIntent
	Mint     *MintIntent
	Signer   *SignerIntent
	Validity *ValidityIntent
	Invoke   *InvokeIntent
}

// SpendIntent consumes a specific UTXO. Redeemer bytes are required when the
// UTXO is locked by a script and are carried opaquely.
type SpendIntent struct {
	UTXO     ledger.UTXO
	Redeemer []byte
}

// ReferenceIntent makes a UTXO readable by scripts without consuming it.
type ReferenceIntent struct {
	UTXO ledger.UTXO
}

// ProduceIntent creates an output.
type ProduceIntent struct {
	Output ledger.Output
}

// MintIntent mints (positive) or burns (negative) a quantity of one asset.
type MintIntent struct {
	Asset    ledger.AssetID
	Quantity int64
	Redeemer []byte
}

// SignerIntent requires a witness from the given payment key hash.
type SignerIntent struct {
	KeyHash ledger.Hash28
}

// ValidityIntent bounds the transaction's validity interval. Zero means
// unset for either bound.
type ValidityIntent struct {
	Start uint64
	End   uint64
}

// InvokeIntent attaches a script and its redeemer. Ref targets the input the
// script unlocks (TagSpend); Policy targets the minting policy it governs
// (TagMint). Budget is a placeholder refined by evaluation.
type InvokeIntent struct {
	Kind     ledger.ScriptKind
	Script   []byte
	Tag      ledger.RedeemerTag
	Ref      *ledger.Input
	Policy   *ledger.Hash28
	Redeemer []byte
	Budget   ledger.ExUnits
}

// Spend builds a spend intent.
func Spend(utxo ledger.UTXO) Intent {
	return Intent{Kind: KindSpendInput, Spend: &SpendIntent{UTXO: utxo}}
}

// SpendWithRedeemer builds a spend intent for a script-locked UTXO.
func SpendWithRedeemer(utxo ledger.UTXO, redeemer []byte) Intent {
	return Intent{Kind: KindSpendInput, Spend: &SpendIntent{UTXO: utxo, Redeemer: redeemer}}
}

// Refer builds a reference-input intent.
func Refer(utxo ledger.UTXO) Intent {
	return Intent{Kind: KindReferenceInput, Refer: &ReferenceIntent{UTXO: utxo}}
}

// Produce builds an output intent.
func Produce(out ledger.Output) Intent {
	return Intent{Kind: KindProduceOutput, Produce: &ProduceIntent{Output: out}}
}

// PayTo builds an output intent for a plain value payment.
func PayTo(addr ledger.Address, value ledger.Value) Intent {
	return Produce(ledger.Output{Address: addr, Value: value})
}

// Mint builds a mint/burn intent.
func Mint(asset ledger.AssetID, quantity int64, redeemer []byte) Intent {
	return Intent{Kind: KindMint, Mint: &MintIntent{Asset: asset, Quantity: quantity, Redeemer: redeemer}}
}

// RequireSigner builds a required-signer intent.
func RequireSigner(keyHash ledger.Hash28) Intent {
	return Intent{Kind: KindRequireSigner, Signer: &SignerIntent{KeyHash: keyHash}}
}

// ValidBetween builds a validity-interval intent. Zero leaves a bound unset.
func ValidBetween(start, end uint64) Intent {
	return Intent{Kind: KindSetValidity, Validity: &ValidityIntent{Start: start, End: end}}
}

// Invoke builds a script-invocation intent.
func Invoke(in InvokeIntent) Intent {
	return Intent{Kind: KindInvokeScript, Invoke: &in}
}
