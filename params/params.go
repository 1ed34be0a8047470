package params

// ProtocolParams holds the subset of ledger protocol parameters the builder
// needs for fee estimation, output sizing and execution budgeting. A value is
// threaded explicitly through the builder and fee estimator; there is no
// ambient global parameter set, so concurrent builds against different
// networks cannot interfere.
type ProtocolParams struct {
	// Linear fee: MinFeeA * serializedSize + MinFeeB, in lovelace.
	MinFeeA uint64 `json:"min_fee_a"`
	MinFeeB uint64 `json:"min_fee_b"`

	// Deposit per serialized UTXO byte, used for the minimum-lovelace rule.
	CoinsPerUTXOByte uint64 `json:"coins_per_utxo_byte"`

	// Hard limits enforced before submission.
	MaxTxSize     uint64 `json:"max_tx_size"`
	MaxTxExMem    uint64 `json:"max_tx_ex_mem"`
	MaxTxExSteps  uint64 `json:"max_tx_ex_steps"`
	MaxValueSize  uint64 `json:"max_value_size"`
	CollateralPct uint64 `json:"collateral_percentage"`
	MaxCollateral uint64 `json:"max_collateral_inputs"`

	// Execution unit prices as exact rationals. Fee math never touches
	// floating point; script cost is ceil(units * num / den).
	MemPriceNum  uint64 `json:"mem_price_num"`
	MemPriceDen  uint64 `json:"mem_price_den"`
	StepPriceNum uint64 `json:"step_price_num"`
	StepPriceDen uint64 `json:"step_price_den"`
}

// ScriptFee returns the fee contribution of the given execution units,
// rounded up per unit class.
func (p ProtocolParams) ScriptFee(mem, steps uint64) uint64 {
	return ceilMul(mem, p.MemPriceNum, p.MemPriceDen) +
		ceilMul(steps, p.StepPriceNum, p.StepPriceDen)
}

// SizeFee returns the linear size component of the fee for a transaction of
// the given serialized size.
func (p ProtocolParams) SizeFee(size uint64) uint64 {
	return p.MinFeeA*size + p.MinFeeB
}

// ceilMul computes ceil(v * num / den) in integer arithmetic. A zero
// denominator is treated as a zero price.
func ceilMul(v, num, den uint64) uint64 {
	if den == 0 {
		return 0
	}
	return (v*num + den - 1) / den
}
