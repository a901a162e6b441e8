package cbgains

import (
	"slices"
	"strings"
)

// RemainingQuantity computes the net remaining position of a transaction
// subset: quantities of position-increasing types minus quantities of
// position-decreasing types, by the closed classification. An empty subset
// is zero.
func RemainingQuantity(txs []Transaction) Quantity {
	var total Quantity
	for _, t := range txs {
		switch {
		case t.Type.IsPositive():
			total = total.Add(t.Quantity)
		case t.Type.IsNegative():
			total = total.Sub(t.Quantity)
		}
	}
	return total
}

// GroupKey names the report group a transaction belongs to. Cash movements
// and reward income get their own groups; stablecoin trades are grouped as
// "<asset> Trading"; every other crypto asset groups under its symbol.
func GroupKey(t Transaction) string {
	if t.Type == Deposit || t.Type == Withdrawal {
		return "Deposit / Withdrawal"
	}
	if t.Type == RewardIncome {
		return string(t.Type)
	}
	if slices.Contains(stableCoins, t.Asset) && (t.Type.IsAcquisition() || t.Type.IsDisposal()) {
		return t.Asset + " Trading"
	}
	if !slices.Contains(cashAssets, t.Asset) {
		return t.Asset
	}
	return string(t.Type)
}

// groupSortKey orders groups: cash and stablecoin groups first, then the
// rest, alphabetically within each band.
func groupSortKey(asset, key string) string {
	if IsCashLike(asset) {
		return "0-" + key
	}
	return "1-" + key
}

// Holdings returns one skeletal group per report group with only the
// remaining position computed, for the holdings view.
func Holdings(txs []Transaction) []AssetGroup {
	keys, groups := groupIndices(txs)
	result := make([]AssetGroup, 0, len(keys))
	for _, key := range keys {
		members := groups[key]
		groupTxs := make([]Transaction, 0, len(members))
		for _, i := range members {
			groupTxs = append(groupTxs, txs[i])
		}
		result = append(result, AssetGroup{
			Key:       key,
			Asset:     txs[members[0]].Asset,
			Currency:  txs[members[0]].Currency,
			Remaining: RemainingQuantity(groupTxs),
		})
	}
	return result
}

// groupIndices partitions the sequence into report groups, returning group
// keys in display order and the member indices of each group, in sequence
// order.
func groupIndices(txs []Transaction) ([]string, map[string][]int) {
	groups := make(map[string][]int)
	sortKeys := make(map[string]string)
	for i, t := range txs {
		key := GroupKey(t)
		groups[key] = append(groups[key], i)
		if _, ok := sortKeys[key]; !ok {
			sortKeys[key] = groupSortKey(t.Asset, key)
		}
	}
	keys := make([]string, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	slices.SortFunc(keys, func(a, b string) int {
		return strings.Compare(sortKeys[a], sortKeys[b])
	})
	return keys, groups
}
