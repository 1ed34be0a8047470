package params

import "fmt"

// NetworkID identifies a ledger network.
type NetworkID string

const (
	Mainnet NetworkID = "mainnet"
	Preprod NetworkID = "preprod"
	Preview NetworkID = "preview"
)

// Magic returns the network's protocol magic, used in the direct-node
// handshake.
func (n NetworkID) Magic() uint32 {
	switch n {
	case Mainnet:
		return 764824073
	case Preprod:
		return 1
	case Preview:
		return 2
	default:
		return 0
	}
}

// AddressHRP returns the bech32 human-readable prefix for addresses on this
// network.
func (n NetworkID) AddressHRP() string {
	if n == Mainnet {
		return "addr"
	}
	return "addr_test"
}

// Presets contains the well-known protocol parameter sets per network. The
// values match the current on-chain parameters at the time of writing;
// callers that need live values should query them from a backend and pass
// the result through Resolve.
var Presets = map[NetworkID]ProtocolParams{
	Mainnet: defaultParams(),
	Preprod: defaultParams(),
	Preview: defaultParams(),
}

func defaultParams() ProtocolParams {
	return ProtocolParams{
		MinFeeA:          44,
		MinFeeB:          155381,
		CoinsPerUTXOByte: 4310,
		MaxTxSize:        16384,
		MaxTxExMem:       14000000,
		MaxTxExSteps:     10000000000,
		MaxValueSize:     5000,
		CollateralPct:    150,
		MaxCollateral:    3,
		MemPriceNum:      577,
		MemPriceDen:      10000,
		StepPriceNum:     721,
		StepPriceDen:     10000000,
	}
}

// Resolve merges protocol parameters from two sources with decreasing
// priority:
//
//  1. explicit overrides (e.g. values queried live from a backend)
//  2. network presets
//
// A field in override participates when it is non-zero. Unknown networks
// require a complete override set.
func Resolve(network NetworkID, override *ProtocolParams) (ProtocolParams, error) {
	result, ok := Presets[network]
	if !ok {
		if override == nil {
			return ProtocolParams{}, fmt.Errorf("%w: %q", ErrUnknownNetwork, network)
		}
		result = ProtocolParams{}
	}

	if override != nil {
		merge(&result, override)
	}

	if result.MinFeeA == 0 && result.MinFeeB == 0 {
		return ProtocolParams{}, fmt.Errorf("%w: fee coefficients are zero", ErrInvalidParams)
	}
	if result.CoinsPerUTXOByte == 0 {
		return ProtocolParams{}, fmt.Errorf("%w: coins per UTXO byte is zero", ErrInvalidParams)
	}
	if result.MaxTxSize == 0 {
		return ProtocolParams{}, fmt.Errorf("%w: max transaction size is zero", ErrInvalidParams)
	}

	return result, nil
}

func merge(dst, src *ProtocolParams) {
	setIfNonZero(&dst.MinFeeA, src.MinFeeA)
	setIfNonZero(&dst.MinFeeB, src.MinFeeB)
	setIfNonZero(&dst.CoinsPerUTXOByte, src.CoinsPerUTXOByte)
	setIfNonZero(&dst.MaxTxSize, src.MaxTxSize)
	setIfNonZero(&dst.MaxTxExMem, src.MaxTxExMem)
	setIfNonZero(&dst.MaxTxExSteps, src.MaxTxExSteps)
	setIfNonZero(&dst.MaxValueSize, src.MaxValueSize)
	setIfNonZero(&dst.CollateralPct, src.CollateralPct)
	setIfNonZero(&dst.MaxCollateral, src.MaxCollateral)
	setIfNonZero(&dst.MemPriceNum, src.MemPriceNum)
	setIfNonZero(&dst.MemPriceDen, src.MemPriceDen)
	setIfNonZero(&dst.StepPriceNum, src.StepPriceNum)
	setIfNonZero(&dst.StepPriceDen, src.StepPriceDen)
}

func setIfNonZero(dst *uint64, v uint64) {
	if v != 0 {
		*dst = v
	}
}
