package tx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hoseorg/libhose-go/ledger"
	"github.com/hoseorg/libhose-go/params"
)

type evaluatorFunc func(ctx context.Context, txBytes []byte) ([]Evaluation, error)

func (f evaluatorFunc) Evaluate(ctx context.Context, txBytes []byte) ([]Evaluation, error) {
	return f(ctx, txBytes)
}

func testParams(t *testing.T) params.ProtocolParams {
	t.Helper()
	p, err := params.Resolve(params.Preprod, nil)
	require.NoError(t, err)
	return p
}

func mustDraft(t *testing.T, intents ...Intent) *Draft {
	t.Helper()
	acc := NewAccumulator()
	for _, in := range intents {
		require.NoError(t, acc.Add(in))
	}
	d, err := acc.Finish()
	require.NoError(t, err)
	return d
}

// selectedTotal sums fixed and selected input values plus mints, the "in"
// side of the balance identity.
func inTotal(d *Draft, res *Resolved) ledger.Value {
	total := d.fixedInputValue()
	for _, u := range res.Selected {
		total = total.Add(u.Output.Value)
	}
	return total
}

func outTotal(res *Resolved) uint64 {
	var total uint64
	for _, out := range res.Body.Outputs {
		total += out.Value.Lovelace
	}
	return total
}

func TestBalanceSimplePayment(t *testing.T) {
	p := testParams(t)
	d := mustDraft(t, PayTo(testAddr(0x02), ledger.NewValue(4000000)))

	res, err := Balance(context.Background(), d, BalanceOptions{
		Params:        p,
		ChangeAddress: testAddr(0x01),
		Candidates:    []ledger.UTXO{testUTXO(1, 0, 10000000)},
	})
	require.NoError(t, err)

	require.Len(t, res.Selected, 1)
	require.NotNil(t, res.Change)
	assert.True(t, res.Change.Address.Equal(testAddr(0x01)))

	// Exact identity: input == payment + change + fee.
	assert.Equal(t, uint64(10000000), uint64(4000000)+res.Change.Value.Lovelace+res.Fee)
	assert.Equal(t, res.Fee, res.Body.Fee)

	// The fee reflects the actual size, never just the constant term.
	assert.Greater(t, res.Fee, p.SizeFee(0))
	assert.Less(t, res.Fee, uint64(1000000))

	assert.LessOrEqual(t, res.Iterations, DefaultMaxIterations)
	assert.Len(t, res.History, res.Iterations)
}

func TestBalanceDeterministic(t *testing.T) {
	p := testParams(t)
	candidates := []ledger.UTXO{
		testUTXO(1, 0, 10000000),
		testUTXO(2, 0, 3000000),
	}

	build := func() []byte {
		d := mustDraft(t, PayTo(testAddr(0x02), ledger.NewValue(4000000)))
		res, err := Balance(context.Background(), d, BalanceOptions{
			Params:        p,
			ChangeAddress: testAddr(0x01),
			Candidates:    candidates,
		})
		require.NoError(t, err)
		b, err := res.Body.Bytes()
		require.NoError(t, err)
		return b
	}

	assert.Equal(t, build(), build())
}

func TestBalanceInsufficientFunds(t *testing.T) {
	p := testParams(t)
	d := mustDraft(t, PayTo(testAddr(0x02), ledger.NewValue(100000000)))

	_, err := Balance(context.Background(), d, BalanceOptions{
		Params:        p,
		ChangeAddress: testAddr(0x01),
		Candidates:    []ledger.UTXO{testUTXO(1, 0, 5000000)},
	})
	require.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestBalanceDustFoldsIntoFee(t *testing.T) {
	p := testParams(t)

	// The fixed input overshoots the payment by less than a change output's
	// minimum deposit; the remainder must land in the fee, not in a dust
	// output.
	d := mustDraft(t,
		Spend(testUTXO(1, 0, 4300000)),
		PayTo(testAddr(0x02), ledger.NewValue(4000000)),
	)

	res, err := Balance(context.Background(), d, BalanceOptions{
		Params:        p,
		ChangeAddress: testAddr(0x01),
	})
	require.NoError(t, err)

	assert.Nil(t, res.Change)
	require.Len(t, res.Body.Outputs, 1)
	assert.Equal(t, uint64(4300000), uint64(4000000)+res.Fee)
}

func TestBalanceCanonicalInputOrder(t *testing.T) {
	p := testParams(t)
	d := mustDraft(t,
		Spend(testUTXO(9, 0, 3000000)),
		Spend(testUTXO(1, 1, 3000000)),
		Spend(testUTXO(1, 0, 3000000)),
		PayTo(testAddr(0x02), ledger.NewValue(7000000)),
	)

	res, err := Balance(context.Background(), d, BalanceOptions{
		Params:        p,
		ChangeAddress: testAddr(0x01),
	})
	require.NoError(t, err)

	inputs := res.Body.Inputs
	require.Len(t, inputs, 3)
	for i := 1; i < len(inputs); i++ {
		assert.True(t, inputs[i-1].Less(inputs[i]), "inputs must be in canonical order")
	}
}

func TestBalanceMintedAssetsFlowToChange(t *testing.T) {
	p := testParams(t)
	token := testAsset(7, "token")

	d := mustDraft(t,
		Mint(token, 5, nil),
		Produce(ledger.Output{
			Address: testAddr(0x02),
			Value:   ledger.NewValue(2000000).WithAsset(token, 3),
		}),
	)

	res, err := Balance(context.Background(), d, BalanceOptions{
		Params:        p,
		ChangeAddress: testAddr(0x01),
		Candidates:    []ledger.UTXO{testUTXO(1, 0, 10000000)},
	})
	require.NoError(t, err)

	require.NotNil(t, res.Change)
	assert.Equal(t, uint64(2), res.Change.Value.AssetQuantity(token))
	require.Len(t, res.Body.Mint, 1)
	assert.Equal(t, int64(5), res.Body.Mint[token])
}

func TestBalanceBurnDemandsAsset(t *testing.T) {
	p := testParams(t)
	token := testAsset(7, "token")

	// Burning without holding the asset cannot balance.
	d := mustDraft(t,
		Mint(token, -3, nil),
		PayTo(testAddr(0x02), ledger.NewValue(2000000)),
	)

	_, err := Balance(context.Background(), d, BalanceOptions{
		Params:        p,
		ChangeAddress: testAddr(0x01),
		Candidates:    []ledger.UTXO{testUTXO(1, 0, 10000000)},
	})
	require.ErrorIs(t, err, ErrInsufficientFunds)

	// Holding it makes the burn balance.
	holder := testUTXO(2, 0, 3000000)
	holder.Output.Value = holder.Output.Value.WithAsset(token, 3)
	d = mustDraft(t,
		Spend(holder),
		Mint(token, -3, nil),
		PayTo(testAddr(0x02), ledger.NewValue(2000000)),
	)

	res, err := Balance(context.Background(), d, BalanceOptions{
		Params:        p,
		ChangeAddress: testAddr(0x01),
		Candidates:    []ledger.UTXO{testUTXO(1, 0, 10000000)},
	})
	require.NoError(t, err)

	// The burned quantity reaches neither outputs nor change.
	for _, out := range res.Body.Outputs {
		assert.Equal(t, uint64(0), out.Value.AssetQuantity(token))
	}
}

func TestBalanceScriptSpend(t *testing.T) {
	p := testParams(t)
	locked := testUTXO(1, 0, 5000000)
	budget := ledger.ExUnits{Mem: 1000000, Steps: 500000000}

	d := mustDraft(t,
		SpendWithRedeemer(locked, []byte{0xd8, 0x79, 0x80}),
		PayTo(testAddr(0x02), ledger.NewValue(2000000)),
		Invoke(InvokeIntent{
			Kind:   ledger.ScriptPlutusV2,
			Script: []byte{0x59, 0x01, 0x00},
			Tag:    ledger.TagSpend,
			Ref:    &locked.Ref,
			Budget: ledger.ExUnits{Mem: 1, Steps: 1},
		}),
	)

	var evaluated bool
	res, err := Balance(context.Background(), d, BalanceOptions{
		Params:        p,
		ChangeAddress: testAddr(0x01),
		Candidates:    []ledger.UTXO{testUTXO(9, 0, 20000000)},
		Evaluator: evaluatorFunc(func(ctx context.Context, txBytes []byte) ([]Evaluation, error) {
			evaluated = true
			require.NotEmpty(t, txBytes)
			return []Evaluation{{Tag: ledger.TagSpend, Index: 0, Units: budget}}, nil
		}),
	})
	require.NoError(t, err)
	assert.True(t, evaluated)

	require.Len(t, res.Witness.Redeemers, 1)
	assert.Equal(t, budget, res.Witness.Redeemers[0].Units)
	assert.Equal(t, []byte{0xd8, 0x79, 0x80}, []byte(res.Witness.Redeemers[0].Data))
	require.Len(t, res.Witness.PlutusV2Scripts, 1)

	// Script transactions commit to their redeemers and carry collateral.
	require.NotNil(t, res.Body.ScriptDataHash)
	require.Len(t, res.Body.Collateral, 1)

	// The script fee component is in the total.
	assert.Greater(t, res.Fee, p.ScriptFee(budget.Mem, budget.Steps))
}

func TestBalanceScriptBudgetsStayWithTheirInvocation(t *testing.T) {
	p := testParams(t)
	first := testUTXO(1, 0, 5000000)
	second := testUTXO(2, 0, 5000000)
	firstBudget := ledger.ExUnits{Mem: 200000, Steps: 90000000}
	secondBudget := ledger.ExUnits{Mem: 400000, Steps: 180000000}

	d := mustDraft(t,
		SpendWithRedeemer(first, []byte{0xd8, 0x79, 0x80}),
		SpendWithRedeemer(second, []byte{0xd8, 0x79, 0x80}),
		PayTo(testAddr(0x02), ledger.NewValue(6000000)),
		Invoke(InvokeIntent{
			Kind:   ledger.ScriptPlutusV2,
			Script: []byte{0x59, 0x01, 0x00},
			Tag:    ledger.TagSpend,
			Ref:    &first.Ref,
			Budget: firstBudget,
		}),
		Invoke(InvokeIntent{
			Kind:   ledger.ScriptPlutusV2,
			Script: []byte{0x59, 0x01, 0x01},
			Tag:    ledger.TagSpend,
			Ref:    &second.Ref,
			Budget: secondBudget,
		}),
	)

	// Without an evaluator the declared budgets are authoritative; each must
	// stay with the invocation that declared it, not with whichever redeemer
	// happens to land at index zero.
	res, err := Balance(context.Background(), d, BalanceOptions{
		Params:        p,
		ChangeAddress: testAddr(0x01),
		Candidates:    []ledger.UTXO{testUTXO(9, 0, 20000000)},
	})
	require.NoError(t, err)

	require.Len(t, res.Witness.Redeemers, 2)
	assert.Equal(t, uint32(0), res.Witness.Redeemers[0].Index)
	assert.Equal(t, firstBudget, res.Witness.Redeemers[0].Units)
	assert.Equal(t, uint32(1), res.Witness.Redeemers[1].Index)
	assert.Equal(t, secondBudget, res.Witness.Redeemers[1].Units)
}

func TestBalanceScriptEvaluationFailure(t *testing.T) {
	p := testParams(t)
	locked := testUTXO(1, 0, 5000000)

	d := mustDraft(t,
		SpendWithRedeemer(locked, []byte{0xd8, 0x79, 0x80}),
		PayTo(testAddr(0x02), ledger.NewValue(2000000)),
	)

	_, err := Balance(context.Background(), d, BalanceOptions{
		Params:        p,
		ChangeAddress: testAddr(0x01),
		Candidates:    []ledger.UTXO{testUTXO(9, 0, 20000000)},
		Evaluator: evaluatorFunc(func(ctx context.Context, txBytes []byte) ([]Evaluation, error) {
			return nil, &EvalError{Tag: ledger.TagSpend, Index: 0, Reason: "validator returned false"}
		}),
	})
	require.ErrorIs(t, err, ErrScriptEvaluation)
}

func TestBalanceNoCollateralAvailable(t *testing.T) {
	p := testParams(t)
	token := testAsset(7, "token")

	// Every available UTXO carries assets, so none qualifies as collateral.
	locked := testUTXO(1, 0, 5000000)
	locked.Output.Value = locked.Output.Value.WithAsset(token, 1)

	d := mustDraft(t,
		SpendWithRedeemer(locked, []byte{0xd8, 0x79, 0x80}),
		PayTo(testAddr(0x02), ledger.NewValue(2000000).WithAsset(token, 1)),
	)

	_, err := Balance(context.Background(), d, BalanceOptions{
		Params:        p,
		ChangeAddress: testAddr(0x01),
		Candidates:    nil,
	})
	require.ErrorIs(t, err, ErrNoCollateral)
}

func TestBalanceSignerSuperset(t *testing.T) {
	p := testParams(t)
	disclosed := testKeyHash(0x55)

	d := mustDraft(t,
		Spend(testUTXO(1, 0, 5000000)),
		PayTo(testAddr(0x02), ledger.NewValue(2000000)),
		RequireSigner(disclosed),
	)

	res, err := Balance(context.Background(), d, BalanceOptions{
		Params:        p,
		ChangeAddress: testAddr(0x01),
	})
	require.NoError(t, err)

	// Disclosed signer plus the spent input's payment key.
	assert.Contains(t, res.Signers, disclosed)
	assert.Contains(t, res.Signers, testKeyHash(0x01))
	assert.Equal(t, []ledger.Hash28{disclosed}, res.Body.RequiredSigners)
}

func TestBalanceMaxSizeExceeded(t *testing.T) {
	p := testParams(t)
	p.MaxTxSize = 10

	d := mustDraft(t,
		Spend(testUTXO(1, 0, 5000000)),
		PayTo(testAddr(0x02), ledger.NewValue(2000000)),
	)

	_, err := Balance(context.Background(), d, BalanceOptions{
		Params:        p,
		ChangeAddress: testAddr(0x01),
	})
	require.ErrorIs(t, err, ErrLimitExceeded)
}

func TestBalanceValidityInterval(t *testing.T) {
	p := testParams(t)
	d := mustDraft(t,
		Spend(testUTXO(1, 0, 5000000)),
		PayTo(testAddr(0x02), ledger.NewValue(2000000)),
		ValidBetween(1000, 2000),
	)

	res, err := Balance(context.Background(), d, BalanceOptions{
		Params:        p,
		ChangeAddress: testAddr(0x01),
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), res.Body.ValidityStart)
	assert.Equal(t, uint64(2000), res.Body.TTL)
}

func TestBalancePoolExcludesFixedInputs(t *testing.T) {
	p := testParams(t)
	shared := testUTXO(1, 0, 5000000)

	d := mustDraft(t,
		Spend(shared),
		PayTo(testAddr(0x02), ledger.NewValue(7000000)),
	)

	// The fixed input also appears in the candidate pool; it must not be
	// selected twice.
	res, err := Balance(context.Background(), d, BalanceOptions{
		Params:        p,
		ChangeAddress: testAddr(0x01),
		Candidates:    []ledger.UTXO{shared, testUTXO(2, 0, 10000000)},
	})
	require.NoError(t, err)

	seen := make(map[ledger.Input]int)
	for _, in := range res.Body.Inputs {
		seen[in]++
	}
	for ref, count := range seen {
		assert.Equal(t, 1, count, "input %s appears %d times", ref, count)
	}
}

func TestBalanceIdentityWithSelectionAndChange(t *testing.T) {
	p := testParams(t)
	d := mustDraft(t,
		Spend(testUTXO(1, 0, 1000000)),
		PayTo(testAddr(0x02), ledger.NewValue(4000000)),
	)

	res, err := Balance(context.Background(), d, BalanceOptions{
		Params:        p,
		ChangeAddress: testAddr(0x01),
		Candidates: []ledger.UTXO{
			testUTXO(2, 0, 3000000),
			testUTXO(3, 0, 8000000),
		},
	})
	require.NoError(t, err)

	assert.Equal(t, inTotal(d, res).Lovelace, outTotal(res)+res.Fee)
}
