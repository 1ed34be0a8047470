package tx

import (
	"context"
	"fmt"
	"sort"

	"github.com/fxamacker/cbor/v2"
	"github.com/hoseorg/libhose-go/ledger"
	"github.com/hoseorg/libhose-go/params"
)

// DefaultMaxIterations bounds the fee/size/execution-unit fixed-point loop.
// The loop exists because the fee depends on serialized size, which depends
// on how many inputs and witnesses the fee-driven selection pulls in; ten
// rounds is far more than the mutual dependency needs to settle.
const DefaultMaxIterations = 10

// changeOutputSizeBound is the assumed worst-case serialized size of the
// change output during selection targeting. Selection reserves enough
// lovelace for a change output of this size so the final change never falls
// below its minimum deposit when assets are returned.
const changeOutputSizeBound = 500

// unitRedeemer is the canonical encoding of the Plutus unit constructor,
// used when an intent carries no redeemer payload.
var unitRedeemer = cbor.RawMessage{0xd8, 0x79, 0x80}

// BalanceOptions configures one resolution run. Params is threaded
// explicitly; nothing reads ambient parameter state.
type BalanceOptions struct {
	Params        params.ProtocolParams
	ChangeAddress ledger.Address

	// Candidates is the selection pool. When nil, Source is queried for the
	// change address.
	Candidates []ledger.UTXO
	Source     ledger.UTXOSource

	// Evaluator resolves execution budgets for script invocations. Required
	// only when the draft carries redeemers.
	Evaluator Evaluator

	// Policy defaults to LargestFirst.
	Policy SelectionPolicy

	// MaxIterations defaults to DefaultMaxIterations.
	MaxIterations int
}

// Resolved is the outcome of a successful balancing run: a concrete body
// satisfying the balance identity, the script witness material it commits
// to, and the evidence needed for signing and inspection.
type Resolved struct {
	Body    ledger.TxBody
	Witness ledger.WitnessSet
	Hash    ledger.Hash32

	Fee      uint64
	Selected []ledger.UTXO
	Change   *ledger.Output

	// Signers is the key-hash superset used for witness-size estimation;
	// every key that actually signs is in it.
	Signers []ledger.Hash28

	Iterations int

	// History holds the body produced by each iteration, earliest first.
	// Prior drafts stay inspectable for debugging and property tests.
	History []ledger.TxBody
}

type redeemerKey struct {
	Tag   ledger.RedeemerTag
	Index uint32
}

// iteration is the comparable state of one balancing round; two consecutive
// equal iterations mean the fixed point is reached.
type iteration struct {
	selected []ledger.UTXO
	fee      uint64
	nextFee  uint64
	units    map[redeemerKey]ledger.ExUnits
	dust     uint64

	body    ledger.TxBody
	witness ledger.WitnessSet
	change  *ledger.Output
	signers []ledger.Hash28
	size    uint64
}

// Balance converts the draft into a concrete, fee-correct transaction body.
// It iterates selection, change computation, fee estimation and script
// evaluation until none of them move, honoring the invariants:
//
//	sum(inputs) + sum(mints) == sum(outputs) + fee + sum(burns), exactly
//	every output value >= its minimum-lovelace requirement
//
// At most one resolution loop may run per draft at a time; the draft itself
// is never mutated.
func Balance(ctx context.Context, d *Draft, opts BalanceOptions) (*Resolved, error) {
	if opts.Policy == nil {
		opts.Policy = LargestFirst
	}
	maxIter := opts.MaxIterations
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}

	pool, err := buildPool(ctx, d, opts)
	if err != nil {
		return nil, err
	}

	fee := opts.Params.SizeFee(0)

	// No budgets are keyed by redeemer position yet; until the evaluator
	// runs, each invocation's declared budget is attached where the
	// invocation itself resolves.
	var units map[redeemerKey]ledger.ExUnits

	var prev *iteration
	var history []ledger.TxBody

	for round := 1; round <= maxIter; round++ {
		it, err := iterate(ctx, d, opts, pool, fee, units)
		if err != nil {
			return nil, err
		}
		history = append(history, it.body)

		if prev != nil && fixedPoint(prev, it) {
			return finalize(d, opts, it, round, history)
		}

		prev = it
		fee = it.nextFee
		units = it.units
	}

	return nil, fmt.Errorf("%w: after %d iterations", ErrNoConvergence, maxIter)
}

// buildPool assembles the candidate pool: explicit candidates or a source
// query, minus anything the draft already consumes, deduplicated by ref.
func buildPool(ctx context.Context, d *Draft, opts BalanceOptions) ([]ledger.UTXO, error) {
	candidates := opts.Candidates
	if candidates == nil && opts.Source != nil {
		var err error
		candidates, err = opts.Source.CandidatesFor(ctx, []ledger.Address{opts.ChangeAddress})
		if err != nil {
			return nil, fmt.Errorf("tx: query candidates: %w", err)
		}
	}

	used := make(map[ledger.Input]struct{}, len(d.fixedInputs))
	for _, u := range d.fixedInputs {
		used[u.Ref] = struct{}{}
	}

	pool := make([]ledger.UTXO, 0, len(candidates))
	for _, u := range candidates {
		if _, taken := used[u.Ref]; taken {
			continue
		}
		used[u.Ref] = struct{}{}
		pool = append(pool, u)
	}
	return pool, nil
}

func iterate(ctx context.Context, d *Draft, opts BalanceOptions, pool []ledger.UTXO, fee uint64, units map[redeemerKey]ledger.ExUnits) (*iteration, error) {
	coins := opts.Params.CoinsPerUTXOByte

	// Step 1: the required-value deficit under the current fee estimate.
	var deficit ledger.Delta
	deficit.AddValue(d.outputValue())
	deficit.Lovelace += int64(fee)
	deficit.SubValue(d.fixedInputValue())
	for id, q := range d.mint {
		// Mints supply value (negative deficit), burns demand it.
		deficit.AddAsset(id, -q)
	}

	// Step 2: selection, only when some component is uncovered.
	var selected []ledger.UTXO
	if !deficit.IsSettled() {
		target := deficit.Clone()
		target.Lovelace += int64(coins * changeOutputSizeBound)
		var err error
		selected, err = opts.Policy(pool, target)
		if err != nil {
			return nil, err
		}
		for _, u := range selected {
			deficit.SubValue(u.Output.Value)
		}
	}

	// Step 3: change output, with sub-minimum lovelace folded into the fee
	// rather than emitted as dust.
	surplus, err := deficit.Surplus()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInsufficientFunds, err)
	}

	var change *ledger.Output
	var dust uint64
	if !surplus.IsZero() {
		candidate := ledger.Output{Address: opts.ChangeAddress, Value: surplus}
		minL, err := candidate.MinLovelace(coins)
		if err != nil {
			return nil, err
		}
		switch {
		case surplus.Lovelace >= minL:
			change = &candidate
		case surplus.IsLovelaceOnly():
			dust = surplus.Lovelace
		default:
			return nil, fmt.Errorf("%w: change output needs %d lovelace to carry assets, has %d",
				ErrInsufficientFunds, minL, surplus.Lovelace)
		}
	}

	// Step 4: assemble the body for this round.
	inputs := make([]ledger.Input, 0, len(d.fixedInputs)+len(selected))
	byRef := make(map[ledger.Input]ledger.UTXO)
	for _, u := range d.fixedInputs {
		inputs = append(inputs, u.Ref)
		byRef[u.Ref] = u
	}
	for _, u := range selected {
		inputs = append(inputs, u.Ref)
		byRef[u.Ref] = u
	}
	sort.Slice(inputs, func(i, j int) bool { return inputs[i].Less(inputs[j]) })

	outputs := append([]ledger.Output(nil), d.outputs...)
	if change != nil {
		outputs = append(outputs, *change)
	}

	witness, redeemerUnits, err := buildWitness(d, inputs, units)
	if err != nil {
		return nil, err
	}

	var refInputs []ledger.Input
	for _, u := range d.refInputs {
		refInputs = append(refInputs, u.Ref)
	}
	sort.Slice(refInputs, func(i, j int) bool { return refInputs[i].Less(refInputs[j]) })

	body := ledger.TxBody{
		Inputs:          inputs,
		Outputs:         outputs,
		Fee:             fee + dust,
		TTL:             d.validity.End,
		ValidityStart:   d.validity.Start,
		RequiredSigners: append([]ledger.Hash28(nil), d.signers...),
		ReferenceInputs: refInputs,
	}
	if len(d.mint) > 0 {
		body.Mint = d.mint
	}
	if len(witness.Redeemers) > 0 {
		sdh, err := witness.ScriptDataHash()
		if err != nil {
			return nil, err
		}
		body.ScriptDataHash = &sdh

		collateral, err := selectCollateral(pool, selected, d.fixedInputs)
		if err != nil {
			return nil, err
		}
		body.Collateral = collateral
	}

	// Step 5: size and fee estimation with placeholder witnesses sized for
	// the signer superset.
	signers := signerSuperset(d, byRef, body.Collateral)
	size, err := estimateSize(&body, &witness, len(signers))
	if err != nil {
		return nil, err
	}

	var totalUnits ledger.ExUnits
	for _, u := range redeemerUnits {
		totalUnits = totalUnits.Add(u)
	}
	nextFee := opts.Params.SizeFee(size) + opts.Params.ScriptFee(totalUnits.Mem, totalUnits.Steps)

	// Step 6: script evaluation against this round's draft.
	nextUnits := units
	if len(witness.Redeemers) > 0 && opts.Evaluator != nil {
		nextUnits, err = evaluateDraft(ctx, opts.Evaluator, &body, &witness, len(signers))
		if err != nil {
			return nil, err
		}
	}

	return &iteration{
		selected: selected,
		fee:      fee,
		nextFee:  nextFee,
		units:    nextUnits,
		dust:     dust,
		body:     body,
		witness:  witness,
		change:   change,
		signers:  signers,
		size:     size,
	}, nil
}

// buildWitness assembles scripts and redeemers; redeemer indexes follow the
// canonical input order for spends and sorted policy order for mints.
func buildWitness(d *Draft, inputs []ledger.Input, units map[redeemerKey]ledger.ExUnits) (ledger.WitnessSet, map[redeemerKey]ledger.ExUnits, error) {
	var w ledger.WitnessSet
	resolved := make(map[redeemerKey]ledger.ExUnits)

	inputIndex := make(map[ledger.Input]uint32, len(inputs))
	for i, in := range inputs {
		inputIndex[in] = uint32(i)
	}

	policies := make([]ledger.Hash28, 0, len(d.mint))
	seen := make(map[ledger.Hash28]struct{})
	for id := range d.mint {
		if _, ok := seen[id.Policy]; !ok {
			seen[id.Policy] = struct{}{}
			policies = append(policies, id.Policy)
		}
	}
	sort.Slice(policies, func(i, j int) bool {
		for n := 0; n < ledger.Hash28Size; n++ {
			if policies[i][n] != policies[j][n] {
				return policies[i][n] < policies[j][n]
			}
		}
		return false
	})
	policyIndex := make(map[ledger.Hash28]uint32, len(policies))
	for i, p := range policies {
		policyIndex[p] = uint32(i)
	}

	addRedeemer := func(tag ledger.RedeemerTag, index uint32, data []byte, budget ledger.ExUnits) {
		key := redeemerKey{Tag: tag, Index: index}
		if _, dup := resolved[key]; dup {
			return
		}
		u, ok := units[key]
		if !ok {
			u = budget
		}
		payload := cbor.RawMessage(data)
		if len(payload) == 0 {
			payload = unitRedeemer
		}
		w.Redeemers = append(w.Redeemers, ledger.Redeemer{Tag: tag, Index: index, Data: payload, Units: u})
		resolved[key] = u
	}

	for _, inv := range d.invocations {
		switch inv.Kind {
		case ledger.ScriptNative:
			w.NativeScripts = append(w.NativeScripts, cbor.RawMessage(inv.Script))
		case ledger.ScriptPlutusV1:
			w.PlutusV1Scripts = append(w.PlutusV1Scripts, inv.Script)
		case ledger.ScriptPlutusV2:
			w.PlutusV2Scripts = append(w.PlutusV2Scripts, inv.Script)
		case ledger.ScriptPlutusV3:
			w.PlutusV3Scripts = append(w.PlutusV3Scripts, inv.Script)
		}

		if inv.Kind == ledger.ScriptNative {
			continue
		}
		switch inv.Tag {
		case ledger.TagSpend:
			idx, ok := inputIndex[*inv.Ref]
			if !ok {
				return w, nil, fmt.Errorf("%w: invocation targets input %s not spent by this draft", ErrInvalidIntent, inv.Ref)
			}
			addRedeemer(ledger.TagSpend, idx, inv.Redeemer, inv.Budget)
		case ledger.TagMint:
			idx, ok := policyIndex[*inv.Policy]
			if !ok {
				return w, nil, fmt.Errorf("%w: invocation targets policy %s not minted by this draft", ErrInvalidIntent, inv.Policy)
			}
			addRedeemer(ledger.TagMint, idx, inv.Redeemer, inv.Budget)
		}
	}

	for ref, data := range d.spendRedeemers {
		idx, ok := inputIndex[ref]
		if !ok {
			continue
		}
		addRedeemer(ledger.TagSpend, idx, data, ledger.ExUnits{})
	}
	for policy, data := range d.mintRedeemers {
		idx, ok := policyIndex[policy]
		if !ok {
			continue
		}
		addRedeemer(ledger.TagMint, idx, data, ledger.ExUnits{})
	}

	sort.Slice(w.Redeemers, func(i, j int) bool {
		if w.Redeemers[i].Tag != w.Redeemers[j].Tag {
			return w.Redeemers[i].Tag < w.Redeemers[j].Tag
		}
		return w.Redeemers[i].Index < w.Redeemers[j].Index
	})

	return w, resolved, nil
}

// selectCollateral picks the largest pure-lovelace UTXO not consumed by the
// draft; fixed inputs serve as a fallback when the pool has none.
func selectCollateral(pool, selected []ledger.UTXO, fixed []ledger.UTXO) ([]ledger.Input, error) {
	taken := make(map[ledger.Input]struct{}, len(selected))
	for _, u := range selected {
		taken[u.Ref] = struct{}{}
	}

	var best *ledger.UTXO
	consider := func(u ledger.UTXO) {
		if !u.Output.Value.IsLovelaceOnly() {
			return
		}
		if best == nil ||
			u.Output.Value.Lovelace > best.Output.Value.Lovelace ||
			(u.Output.Value.Lovelace == best.Output.Value.Lovelace && u.Ref.Less(best.Ref)) {
			c := u
			best = &c
		}
	}

	for _, u := range pool {
		if _, used := taken[u.Ref]; !used {
			consider(u)
		}
	}
	if best == nil {
		for _, u := range fixed {
			consider(u)
		}
	}
	if best == nil {
		return nil, ErrNoCollateral
	}
	return []ledger.Input{best.Ref}, nil
}

// signerSuperset collects every key hash that may need to witness the body:
// disclosed signers, payment keys of all consumed inputs, and collateral
// owners. Deterministically ordered.
func signerSuperset(d *Draft, byRef map[ledger.Input]ledger.UTXO, collateral []ledger.Input) []ledger.Hash28 {
	set := make(map[ledger.Hash28]struct{})
	for _, h := range d.signers {
		set[h] = struct{}{}
	}
	for _, u := range byRef {
		if h, err := u.Output.Address.PaymentKeyHash(); err == nil {
			set[h] = struct{}{}
		}
	}
	for _, ref := range collateral {
		if u, ok := byRef[ref]; ok {
			if h, err := u.Output.Address.PaymentKeyHash(); err == nil {
				set[h] = struct{}{}
			}
		}
	}

	out := make([]ledger.Hash28, 0, len(set))
	for h := range set {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool {
		for n := 0; n < ledger.Hash28Size; n++ {
			if out[i][n] != out[j][n] {
				return out[i][n] < out[j][n]
			}
		}
		return false
	})
	return out
}

// estimateSize measures the canonical size of the draft with placeholder
// vkey witnesses standing in for the real signatures.
func estimateSize(body *ledger.TxBody, witness *ledger.WitnessSet, signerCount int) (uint64, error) {
	b, err := draftBytes(body, witness, signerCount)
	if err != nil {
		return 0, err
	}
	return uint64(len(b)), nil
}

func draftBytes(body *ledger.TxBody, witness *ledger.WitnessSet, signerCount int) ([]byte, error) {
	w := *witness
	w.VKeyWitnesses = make([]ledger.VKeyWitness, signerCount)
	for i := range w.VKeyWitnesses {
		w.VKeyWitnesses[i] = ledger.VKeyWitness{
			VKey:      make([]byte, 32),
			Signature: make([]byte, 64),
		}
	}
	t := ledger.Tx{Body: *body, Witnesses: w, IsValid: true}
	return t.Bytes()
}

// evaluateDraft runs the external evaluator over the current draft and keys
// the returned budgets by redeemer position.
func evaluateDraft(ctx context.Context, ev Evaluator, body *ledger.TxBody, witness *ledger.WitnessSet, signerCount int) (map[redeemerKey]ledger.ExUnits, error) {
	raw, err := draftBytes(body, witness, signerCount)
	if err != nil {
		return nil, err
	}
	evals, err := ev.Evaluate(ctx, raw)
	if err != nil {
		return nil, err
	}
	units := make(map[redeemerKey]ledger.ExUnits, len(evals))
	for _, e := range evals {
		units[redeemerKey{Tag: e.Tag, Index: e.Index}] = e.Units
	}
	return units, nil
}

// fixedPoint reports whether two consecutive iterations agree on selection,
// fee and execution units.
func fixedPoint(prev, cur *iteration) bool {
	if prev.fee != cur.fee || prev.nextFee != cur.nextFee || prev.dust != cur.dust {
		return false
	}
	if len(prev.selected) != len(cur.selected) {
		return false
	}
	for i := range prev.selected {
		if prev.selected[i].Ref != cur.selected[i].Ref {
			return false
		}
	}
	if len(prev.units) != len(cur.units) {
		return false
	}
	for k, u := range prev.units {
		if cur.units[k] != u {
			return false
		}
	}
	return true
}

// finalize verifies limits and the exact balance identity, then freezes the
// result.
func finalize(d *Draft, opts BalanceOptions, it *iteration, rounds int, history []ledger.TxBody) (*Resolved, error) {
	if it.size > opts.Params.MaxTxSize {
		return nil, fmt.Errorf("%w: size %d exceeds max %d", ErrLimitExceeded, it.size, opts.Params.MaxTxSize)
	}
	var totalUnits ledger.ExUnits
	for _, r := range it.witness.Redeemers {
		totalUnits = totalUnits.Add(r.Units)
	}
	if totalUnits.Mem > opts.Params.MaxTxExMem || totalUnits.Steps > opts.Params.MaxTxExSteps {
		return nil, fmt.Errorf("%w: execution units %+v exceed limits", ErrLimitExceeded, totalUnits)
	}

	if err := checkBalance(d, it); err != nil {
		return nil, err
	}

	for i, out := range it.body.Outputs {
		minL, err := out.MinLovelace(opts.Params.CoinsPerUTXOByte)
		if err != nil {
			return nil, err
		}
		if out.Value.Lovelace < minL {
			return nil, fmt.Errorf("%w: output %d carries %d lovelace, minimum is %d",
				ErrInsufficientFunds, i, out.Value.Lovelace, minL)
		}
	}

	hash, err := it.body.Hash()
	if err != nil {
		return nil, err
	}

	return &Resolved{
		Body:       it.body,
		Witness:    it.witness,
		Hash:       hash,
		Fee:        it.body.Fee,
		Selected:   append([]ledger.UTXO(nil), it.selected...),
		Change:     it.change,
		Signers:    it.signers,
		Iterations: rounds,
		History:    history,
	}, nil
}

// checkBalance asserts the exact component-wise identity
// inputs + mints == outputs + fee + burns.
func checkBalance(d *Draft, it *iteration) error {
	var delta ledger.Delta
	delta.AddValue(d.fixedInputValue())
	for _, u := range it.selected {
		delta.AddValue(u.Output.Value)
	}
	for id, q := range d.mint {
		delta.AddAsset(id, q)
	}
	for _, out := range it.body.Outputs {
		delta.SubValue(out.Value)
	}
	delta.Lovelace -= int64(it.body.Fee)

	if delta.Lovelace != 0 || len(delta.Assets) != 0 {
		return fmt.Errorf("%w: residual %+v", ErrNotBalanced, delta)
	}
	return nil
}
