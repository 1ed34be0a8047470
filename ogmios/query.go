package ogmios

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/hoseorg/libhose-go/ledger"
	"github.com/hoseorg/libhose-go/params"
)

// utxoEntry mirrors one element of the queryLedgerState/utxo result.
type utxoEntry struct {
	Transaction struct {
		ID string `json:"id"`
	} `json:"transaction"`
	Index     uint64                       `json:"index"`
	Address   string                       `json:"address"`
	Value     map[string]map[string]uint64 `json:"value"`
	DatumHash string                       `json:"datumHash"`
	Datum     string                       `json:"datum"`
	Script    *struct {
		CBOR string `json:"cbor"`
	} `json:"script"`
}

// CandidatesFor fetches the unspent outputs held by the given addresses.
// Implements ledger.UTXOSource.
func (c *Client) CandidatesFor(ctx context.Context, addrs []ledger.Address) ([]ledger.UTXO, error) {
	bech := make([]string, len(addrs))
	for i, a := range addrs {
		bech[i] = a.String()
	}

	var entries []utxoEntry
	req := map[string]interface{}{"addresses": bech}
	if err := c.call(ctx, "queryLedgerState/utxo", req, &entries); err != nil {
		return nil, err
	}

	utxos := make([]ledger.UTXO, 0, len(entries))
	for _, e := range entries {
		u, err := decodeUTXO(e)
		if err != nil {
			return nil, err
		}
		utxos = append(utxos, u)
	}
	return utxos, nil
}

func decodeUTXO(e utxoEntry) (ledger.UTXO, error) {
	txid, err := ledger.ParseHash32(e.Transaction.ID)
	if err != nil {
		return ledger.UTXO{}, fmt.Errorf("%w: utxo txid: %w", ErrInvalidResponse, err)
	}
	addr, err := ledger.ParseAddress(e.Address)
	if err != nil {
		return ledger.UTXO{}, fmt.Errorf("%w: utxo address: %w", ErrInvalidResponse, err)
	}
	value, err := decodeValue(e.Value)
	if err != nil {
		return ledger.UTXO{}, err
	}

	out := ledger.Output{Address: addr, Value: value}
	if e.DatumHash != "" {
		h, err := ledger.ParseHash32(e.DatumHash)
		if err != nil {
			return ledger.UTXO{}, fmt.Errorf("%w: datum hash: %w", ErrInvalidResponse, err)
		}
		out.DatumHash = &h
	}
	if e.Datum != "" {
		d, err := hex.DecodeString(e.Datum)
		if err != nil {
			return ledger.UTXO{}, fmt.Errorf("%w: inline datum: %w", ErrInvalidResponse, err)
		}
		out.Datum = d
	}
	if e.Script != nil && e.Script.CBOR != "" {
		s, err := hex.DecodeString(e.Script.CBOR)
		if err != nil {
			return ledger.UTXO{}, fmt.Errorf("%w: script ref: %w", ErrInvalidResponse, err)
		}
		out.ScriptRef = s
	}

	return ledger.UTXO{
		Ref:    ledger.Input{TxID: txid, Index: e.Index},
		Output: out,
	}, nil
}

// decodeValue converts ogmios's nested value map. The "ada"/"lovelace" pair
// is the coin amount; every other policy/name pair is a native asset with
// hex-encoded policy id and asset name.
func decodeValue(m map[string]map[string]uint64) (ledger.Value, error) {
	var v ledger.Value
	for policy, names := range m {
		if policy == "ada" {
			v.Lovelace = names["lovelace"]
			continue
		}
		pid, err := ledger.ParseHash28(policy)
		if err != nil {
			return ledger.Value{}, fmt.Errorf("%w: policy id %q: %w", ErrInvalidResponse, policy, err)
		}
		for name, qty := range names {
			raw, err := hex.DecodeString(name)
			if err != nil {
				return ledger.Value{}, fmt.Errorf("%w: asset name %q: %w", ErrInvalidResponse, name, err)
			}
			v = v.WithAsset(ledger.AssetID{Policy: pid, Name: string(raw)}, qty)
		}
	}
	return v, nil
}

// ProtocolParameters queries the live protocol parameters, translated into
// the builder's parameter set.
func (c *Client) ProtocolParameters(ctx context.Context) (params.ProtocolParams, error) {
	var result struct {
		MinFeeCoefficient uint64 `json:"minFeeCoefficient"`
		MinFeeConstant    struct {
			Ada struct {
				Lovelace uint64 `json:"lovelace"`
			} `json:"ada"`
		} `json:"minFeeConstant"`
		MinUtxoDepositCoefficient uint64 `json:"minUtxoDepositCoefficient"`
		MaxTransactionSize        struct {
			Bytes uint64 `json:"bytes"`
		} `json:"maxTransactionSize"`
		MaxValueSize struct {
			Bytes uint64 `json:"bytes"`
		} `json:"maxValueSize"`
		MaxExecutionUnitsPerTransaction struct {
			Memory uint64 `json:"memory"`
			CPU    uint64 `json:"cpu"`
		} `json:"maxExecutionUnitsPerTransaction"`
		ScriptExecutionPrices struct {
			Memory string `json:"memory"`
			CPU    string `json:"cpu"`
		} `json:"scriptExecutionPrices"`
		CollateralPercentage uint64 `json:"collateralPercentage"`
		MaxCollateralInputs  uint64 `json:"maxCollateralInputs"`
	}
	if err := c.call(ctx, "queryLedgerState/protocolParameters", nil, &result); err != nil {
		return params.ProtocolParams{}, err
	}

	memNum, memDen, err := parseRatio(result.ScriptExecutionPrices.Memory)
	if err != nil {
		return params.ProtocolParams{}, err
	}
	stepNum, stepDen, err := parseRatio(result.ScriptExecutionPrices.CPU)
	if err != nil {
		return params.ProtocolParams{}, err
	}

	return params.ProtocolParams{
		MinFeeA:          result.MinFeeCoefficient,
		MinFeeB:          result.MinFeeConstant.Ada.Lovelace,
		CoinsPerUTXOByte: result.MinUtxoDepositCoefficient,
		MaxTxSize:        result.MaxTransactionSize.Bytes,
		MaxTxExMem:       result.MaxExecutionUnitsPerTransaction.Memory,
		MaxTxExSteps:     result.MaxExecutionUnitsPerTransaction.CPU,
		MaxValueSize:     result.MaxValueSize.Bytes,
		CollateralPct:    result.CollateralPercentage,
		MaxCollateral:    result.MaxCollateralInputs,
		MemPriceNum:      memNum,
		MemPriceDen:      memDen,
		StepPriceNum:     stepNum,
		StepPriceDen:     stepDen,
	}, nil
}

// parseRatio parses a "num/den" execution price.
func parseRatio(s string) (uint64, uint64, error) {
	numStr, denStr, ok := strings.Cut(s, "/")
	if !ok {
		return 0, 0, fmt.Errorf("%w: price ratio %q", ErrInvalidResponse, s)
	}
	num, err := strconv.ParseUint(numStr, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: price numerator %q: %w", ErrInvalidResponse, numStr, err)
	}
	den, err := strconv.ParseUint(denStr, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: price denominator %q: %w", ErrInvalidResponse, denStr, err)
	}
	return num, den, nil
}

// Tip is the most recently known point of the chain.
type Tip struct {
	Slot uint64
	Hash ledger.Hash32
}

// NetworkTip queries the chain tip, useful for anchoring validity intervals
// to the current slot.
func (c *Client) NetworkTip(ctx context.Context) (Tip, error) {
	var result struct {
		Slot uint64 `json:"slot"`
		ID   string `json:"id"`
	}
	if err := c.call(ctx, "queryNetwork/tip", nil, &result); err != nil {
		return Tip{}, err
	}
	hash, err := ledger.ParseHash32(result.ID)
	if err != nil {
		return Tip{}, fmt.Errorf("%w: tip hash: %w", ErrInvalidResponse, err)
	}
	return Tip{Slot: result.Slot, Hash: hash}, nil
}
