package tx

import (
	"fmt"

	"github.com/hoseorg/libhose-go/ledger"
)

// Draft is a frozen intent list partitioned into the views the resolution
// engine works from. The intent record itself is immutable; resolution reads
// it and produces new bodies, never patching the draft in place.
type Draft struct {
	intents []Intent

	fixedInputs []ledger.UTXO
	refInputs   []ledger.UTXO
	outputs     []ledger.Output
	mint        ledger.MintValue
	signers     []ledger.Hash28
	validity    ledger.ValidityInterval
	invocations []InvokeIntent

	spendRedeemers map[ledger.Input][]byte
	mintRedeemers  map[ledger.Hash28][]byte
}

func newDraft(intents []Intent) (*Draft, error) {
	d := &Draft{
		intents:        append([]Intent(nil), intents...),
		mint:           make(ledger.MintValue),
		spendRedeemers: make(map[ledger.Input][]byte),
		mintRedeemers:  make(map[ledger.Hash28][]byte),
	}

	seenSigners := make(map[ledger.Hash28]struct{})

	for _, in := range d.intents {
		switch in.Kind {
		case KindSpendInput:
			d.fixedInputs = append(d.fixedInputs, in.Spend.UTXO)
			if in.Spend.Redeemer != nil {
				d.spendRedeemers[in.Spend.UTXO.Ref] = in.Spend.Redeemer
			}
		case KindReferenceInput:
			d.refInputs = append(d.refInputs, in.Refer.UTXO)
		case KindProduceOutput:
			d.outputs = append(d.outputs, in.Produce.Output)
		case KindMint:
			d.mint[in.Mint.Asset] += in.Mint.Quantity
			if in.Mint.Redeemer != nil {
				d.mintRedeemers[in.Mint.Asset.Policy] = in.Mint.Redeemer
			}
		case KindRequireSigner:
			if _, ok := seenSigners[in.Signer.KeyHash]; !ok {
				seenSigners[in.Signer.KeyHash] = struct{}{}
				d.signers = append(d.signers, in.Signer.KeyHash)
			}
		case KindSetValidity:
			if in.Validity.Start != 0 {
				d.validity.Start = in.Validity.Start
			}
			if in.Validity.End != 0 {
				d.validity.End = in.Validity.End
			}
		case KindInvokeScript:
			d.invocations = append(d.invocations, *in.Invoke)
		default:
			return nil, fmt.Errorf("%w: unknown intent kind %d", ErrInvalidIntent, in.Kind)
		}
	}

	for id, q := range d.mint {
		if q == 0 {
			delete(d.mint, id)
		}
	}

	return d, nil
}

// Intents returns a copy of the frozen intent list, for inspection and
// debugging.
func (d *Draft) Intents() []Intent {
	return append([]Intent(nil), d.intents...)
}

// HasScripts reports whether any intent carries a script invocation or
// redeemer, which makes evaluation and collateral selection necessary.
func (d *Draft) HasScripts() bool {
	return len(d.invocations) > 0 || len(d.spendRedeemers) > 0 || len(d.mintRedeemers) > 0
}

// fixedInputValue sums the value of explicitly spent UTXOs.
func (d *Draft) fixedInputValue() ledger.Value {
	var v ledger.Value
	for _, u := range d.fixedInputs {
		v = v.Add(u.Output.Value)
	}
	return v
}

// outputValue sums the value of explicitly requested outputs.
func (d *Draft) outputValue() ledger.Value {
	var v ledger.Value
	for _, o := range d.outputs {
		v = v.Add(o.Value)
	}
	return v
}
