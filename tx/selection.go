package tx

import (
	"fmt"
	"sort"

	"github.com/hoseorg/libhose-go/ledger"
)

// SelectionPolicy picks additional inputs from candidates until every
// positive component of deficit is covered. Policies must be deterministic:
// identical candidates and deficit must select the same inputs in the same
// order, since the selection is externally observable through the resulting
// change output.
type SelectionPolicy func(candidates []ledger.UTXO, deficit ledger.Delta) ([]ledger.UTXO, error)

// LargestFirst is the default policy: for each outstanding asset (in
// deterministic asset-id order) pick the candidate holding the most of it,
// then cover the remaining lovelace deficit largest-first. Ties break on
// (quantity desc, tx id asc, output index asc). Not optimal bin packing,
// but deterministic and bounded.
func LargestFirst(candidates []ledger.UTXO, deficit ledger.Delta) ([]ledger.UTXO, error) {
	remaining := deficit.Clone()
	pool := append([]ledger.UTXO(nil), candidates...)
	var selected []ledger.UTXO

	take := func(i int) {
		u := pool[i]
		pool = append(pool[:i], pool[i+1:]...)
		selected = append(selected, u)
		remaining.SubValue(u.Output.Value)
	}

	// Asset phase: settle each positive asset component in turn.
	for {
		assets := remaining.PositiveAssets()
		if len(assets) == 0 {
			break
		}
		asset := assets[0]

		sortByAsset(pool, asset)
		if len(pool) == 0 || pool[0].Output.Value.AssetQuantity(asset) == 0 {
			return nil, fmt.Errorf("%w: asset %s short by %d", ErrInsufficientFunds, asset, remaining.Assets[asset])
		}
		take(0)
	}

	// Lovelace phase: largest-first until the base deficit clears.
	sortByLovelace(pool)
	for remaining.Lovelace > 0 {
		if len(pool) == 0 {
			return nil, fmt.Errorf("%w: lovelace short by %d", ErrInsufficientFunds, remaining.Lovelace)
		}
		take(0)
	}

	return selected, nil
}

func sortByAsset(pool []ledger.UTXO, asset ledger.AssetID) {
	sort.SliceStable(pool, func(i, j int) bool {
		qi := pool[i].Output.Value.AssetQuantity(asset)
		qj := pool[j].Output.Value.AssetQuantity(asset)
		if qi != qj {
			return qi > qj
		}
		return pool[i].Ref.Less(pool[j].Ref)
	})
}

func sortByLovelace(pool []ledger.UTXO) {
	sort.SliceStable(pool, func(i, j int) bool {
		li := pool[i].Output.Value.Lovelace
		lj := pool[j].Output.Value.Lovelace
		if li != lj {
			return li > lj
		}
		return pool[i].Ref.Less(pool[j].Ref)
	})
}
