package cbgains

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// epsilon is the tolerance below which a lot counts as exhausted. Without it,
// arithmetic residue (1e-13 of a coin) keeps a spent lot open and it gets
// selected ahead of a genuinely open later lot.
var epsilon = decimal.NewFromFloat(1e-7)

// unmatchedMateriality is the minimum economic value of an unmatched disposal
// quantity worth warning about. Fixed for output compatibility.
var unmatchedMateriality = decimal.NewFromFloat(0.05)

// Allocation records quantity consumed from one acquisition. The acquisition
// is referenced by its index into the book's sorted sequence: an audit
// back-reference, not ownership.
type Allocation struct {
	Quantity    Quantity
	Acquisition int
}

// MatchState is the mutable accounting state of one transaction. Parsed
// transactions stay immutable; everything matching derives lives here,
// parallel to the sequence.
type MatchState struct {
	// QuantityConsumed is how much of an acquisition has been allocated to
	// disposals so far. Zero for other types.
	QuantityConsumed Quantity
	// Allocations lists what a disposal consumed from, for audit. Empty for
	// other types.
	Allocations []Allocation
	// GainOrLoss is the realized result of a disposal, in its settlement
	// currency. The zero Money for other types.
	GainOrLoss Money
}

// MatchBook pairs the time-sorted transaction sequence with its match state.
// A book is owned by a single invocation of the pipeline; nothing else
// mutates it.
type MatchBook struct {
	txs    []Transaction
	states []MatchState
}

// NewMatchBook builds a book over txs. The sequence is stable-sorted by
// timestamp here: FIFO correctness silently breaks on unsorted input, so the
// ordering is enforced rather than trusted.
func NewMatchBook(txs []Transaction) *MatchBook {
	sortTransactions(txs)
	return &MatchBook{txs: txs, states: make([]MatchState, len(txs))}
}

// Transactions returns the book's sorted sequence. Allocation indices refer
// to positions in this slice.
func (b *MatchBook) Transactions() []Transaction { return b.txs }

// State returns the match state of transaction i.
func (b *MatchBook) State(i int) MatchState { return b.states[i] }

// GainOrLoss returns the realized gain or loss of transaction i, the zero
// Money unless i is a matched disposal.
func (b *MatchBook) GainOrLoss(i int) Money { return b.states[i].GainOrLoss }

// Remaining returns transaction i's quantity not yet allocated to disposals.
func (b *MatchBook) Remaining(i int) Quantity {
	return b.txs[i].Quantity.Sub(b.states[i].QuantityConsumed)
}

// open reports whether acquisition i still has quantity to allocate.
func (b *MatchBook) open(i int) bool {
	return b.Remaining(i).value.Abs().GreaterThan(epsilon)
}

// Match computes the realized gain or loss of every disposal by consuming
// prior same-asset acquisitions first-in first-out.
//
// FIFO comes for free: the sequence is already globally time-sorted, so
// walking earlier indices visits candidate lots oldest first without any
// per-asset queue. For each candidate the disposal takes
// min(lot remaining, disposal remaining), accumulates that allocation's
// proportional share of the lot's total cost, and records the allocation for
// audit. Cost shares in a different currency are converted to the disposal's
// settlement currency at the acquisition's date before aggregating, so the
// final subtraction is always same-currency.
//
// A disposal quantity left unmatched is carried at zero cost basis; when its
// value is material a warning names the overstatement, but matching never
// hard-fails on imperfect history. Rate lookups are the exception: a missing
// rate or unsupported pairing aborts with an error.
func (b *MatchBook) Match(rates RateProvider) ([]string, error) {
	var warnings []string
	for i, sale := range b.txs {
		if !sale.Type.IsDisposal() {
			continue
		}
		remaining := sale.Quantity
		var costBasis Money
		for j := 0; j < i && !remaining.IsZero(); j++ {
			buy := b.txs[j]
			if !buy.Type.IsAcquisition() || buy.Asset != sale.Asset || !buy.Time.Before(sale.Time) || !b.open(j) {
				continue
			}
			take := b.Remaining(j).Min(remaining)
			b.states[j].QuantityConsumed = b.states[j].QuantityConsumed.Add(take)
			b.states[i].Allocations = append(b.states[i].Allocations, Allocation{Quantity: take, Acquisition: j})

			share := buy.Total.Mul(take).Div(buy.Quantity)
			if share.Currency() != sale.Currency {
				var err error
				share, err = share.Convert(buy.When(), rates, sale.Currency)
				if err != nil {
					return nil, fmt.Errorf("cost basis of %s %s sold on %s: %w", sale.Quantity, sale.Asset, sale.When(), err)
				}
			}
			var err error
			costBasis, err = costBasis.Add(share)
			if err != nil {
				return nil, err
			}
			remaining = remaining.Sub(take)
		}

		if sale.Price.Amount().Mul(remaining.value).GreaterThan(unmatchedMateriality) {
			warnings = append(warnings, fmt.Sprintf(
				"unable to find the buy for %s %s in %s - gains can be overstated by %s",
				remaining, sale.Asset, sale.Raw, sale.Price.Mul(remaining).Amount()))
		}

		gain, err := sale.Total.Sub(costBasis)
		if err != nil {
			return nil, err
		}
		b.states[i].GainOrLoss = gain
	}
	return warnings, nil
}
