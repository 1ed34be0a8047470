package tx

import (
	"fmt"

	"github.com/hoseorg/libhose-go/ledger"
)

// Accumulator collects intents in order without resolving them. It holds no
// network or cryptographic state; it only appends, validating each new
// intent against what is already recorded, and freezes the list on Finish.
type Accumulator struct {
	intents []Intent

	spent      map[ledger.Input]struct{}
	referenced map[ledger.Input]struct{}
	validity   ledger.ValidityInterval
	hasSpend   bool
	hasProduce bool
}

// NewAccumulator returns an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{
		spent:      make(map[ledger.Input]struct{}),
		referenced: make(map[ledger.Input]struct{}),
	}
}

// Add appends an intent, failing with ErrInvalidIntent if it is structurally
// inconsistent with prior intents. The intent list is append-only; nothing
// is ever edited in place.
func (a *Accumulator) Add(in Intent) error {
	switch in.Kind {
	case KindSpendInput:
		if in.Spend == nil {
			return fmt.Errorf("%w: spend intent without payload", ErrInvalidIntent)
		}
		ref := in.Spend.UTXO.Ref
		if _, dup := a.spent[ref]; dup {
			return fmt.Errorf("%w: input %s already spent in this draft", ErrInvalidIntent, ref)
		}
		a.spent[ref] = struct{}{}
		a.hasSpend = true

	case KindReferenceInput:
		if in.Refer == nil {
			return fmt.Errorf("%w: reference intent without payload", ErrInvalidIntent)
		}
		ref := in.Refer.UTXO.Ref
		if _, dup := a.referenced[ref]; dup {
			return fmt.Errorf("%w: input %s already referenced", ErrInvalidIntent, ref)
		}
		a.referenced[ref] = struct{}{}

	case KindProduceOutput:
		if in.Produce == nil {
			return fmt.Errorf("%w: output intent without payload", ErrInvalidIntent)
		}
		if in.Produce.Output.Address.IsZero() {
			return fmt.Errorf("%w: output without address", ErrInvalidIntent)
		}
		a.hasProduce = true

	case KindMint:
		if in.Mint == nil {
			return fmt.Errorf("%w: mint intent without payload", ErrInvalidIntent)
		}
		if in.Mint.Quantity == 0 {
			return fmt.Errorf("%w: mint quantity is zero", ErrInvalidIntent)
		}

	case KindRequireSigner:
		if in.Signer == nil {
			return fmt.Errorf("%w: signer intent without payload", ErrInvalidIntent)
		}

	case KindSetValidity:
		if in.Validity == nil {
			return fmt.Errorf("%w: validity intent without payload", ErrInvalidIntent)
		}
		v := in.Validity
		if v.Start != 0 && v.End != 0 && v.Start > v.End {
			return fmt.Errorf("%w: validity lower bound %d after upper bound %d", ErrInvalidIntent, v.Start, v.End)
		}
		if v.Start != 0 && a.validity.Start != 0 && a.validity.Start != v.Start {
			return fmt.Errorf("%w: conflicting validity lower bounds (%d and %d)", ErrInvalidIntent, a.validity.Start, v.Start)
		}
		if v.End != 0 && a.validity.End != 0 && a.validity.End != v.End {
			return fmt.Errorf("%w: conflicting validity upper bounds (%d and %d)", ErrInvalidIntent, a.validity.End, v.End)
		}
		if v.Start != 0 && a.validity.End != 0 && v.Start > a.validity.End {
			return fmt.Errorf("%w: validity lower bound %d after upper bound %d", ErrInvalidIntent, v.Start, a.validity.End)
		}
		if v.End != 0 && a.validity.Start != 0 && a.validity.Start > v.End {
			return fmt.Errorf("%w: validity upper bound %d before lower bound %d", ErrInvalidIntent, v.End, a.validity.Start)
		}
		if v.Start != 0 {
			a.validity.Start = v.Start
		}
		if v.End != 0 {
			a.validity.End = v.End
		}

	case KindInvokeScript:
		if in.Invoke == nil {
			return fmt.Errorf("%w: invoke intent without payload", ErrInvalidIntent)
		}
		if len(in.Invoke.Script) == 0 {
			return fmt.Errorf("%w: invoke intent without script", ErrInvalidIntent)
		}
		switch in.Invoke.Tag {
		case ledger.TagSpend:
			if in.Invoke.Ref == nil {
				return fmt.Errorf("%w: spend invocation without target input", ErrInvalidIntent)
			}
		case ledger.TagMint:
			if in.Invoke.Policy == nil {
				return fmt.Errorf("%w: mint invocation without target policy", ErrInvalidIntent)
			}
		default:
			return fmt.Errorf("%w: unsupported redeemer tag %s", ErrInvalidIntent, in.Invoke.Tag)
		}

	default:
		return fmt.Errorf("%w: unknown intent kind %d", ErrInvalidIntent, in.Kind)
	}

	a.intents = append(a.intents, in)
	return nil
}

// Finish freezes the intent list and hands it to the resolution engine as a
// Draft. Fails with ErrEmptyDraft when no spend or output intent exists.
func (a *Accumulator) Finish() (*Draft, error) {
	if !a.hasSpend && !a.hasProduce {
		return nil, ErrEmptyDraft
	}
	return newDraft(a.intents)
}
