package cbgains

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

// tradeAt builds a consistent trade for matching tests: total is price times
// quantity, no fee.
func tradeAt(day int, typ TransactionType, asset string, quantity, price float64, currency string) Transaction {
	q := Q(quantity)
	p := M(price, currency)
	return Transaction{
		Raw:      "test row",
		Time:     time.Date(2025, time.March, day, 12, 0, 0, 0, time.UTC),
		Type:     typ,
		Asset:    asset,
		Quantity: q,
		Currency: currency,
		Price:    p,
		Subtotal: p.Mul(q),
		Total:    p.Mul(q),
		Fee:      M(0, currency),
	}
}

func TestMatchFIFO(t *testing.T) {
	book := NewMatchBook([]Transaction{
		tradeAt(1, AdvancedTradeBuy, "BTC", 10, 100, "USD"),
		tradeAt(2, AdvancedTradeBuy, "BTC", 10, 200, "USD"),
		tradeAt(3, AdvancedTradeSell, "BTC", 15, 300, "USD"),
	})
	warnings, err := book.Match(USDRates())
	if err != nil {
		t.Fatalf("Match() error = %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("warnings = %v, want none", warnings)
	}

	// the disposal consumes all of lot 0 then 5 of lot 1
	state := book.State(2)
	if len(state.Allocations) != 2 {
		t.Fatalf("Allocations = %v, want 2", state.Allocations)
	}
	if a := state.Allocations[0]; a.Acquisition != 0 || !a.Quantity.Equal(Q(10)) {
		t.Errorf("first allocation = %+v, want 10 from 0", a)
	}
	if a := state.Allocations[1]; a.Acquisition != 1 || !a.Quantity.Equal(Q(5)) {
		t.Errorf("second allocation = %+v, want 5 from 1", a)
	}

	// proceeds 4500, cost basis 10*100 + 5*200 = 2000
	if gain := book.GainOrLoss(2); !gain.Equal(USD(2500)) {
		t.Errorf("GainOrLoss = %v, want 2500 USD", gain.Amount())
	}

	// the first lot is exhausted, the second has 5 left
	if r := book.Remaining(0); !r.IsZero() {
		t.Errorf("Remaining(0) = %v, want 0", r)
	}
	if r := book.Remaining(1); !r.Equal(Q(5)) {
		t.Errorf("Remaining(1) = %v, want 5", r)
	}
}

// Allocations never exceed the disposal's quantity nor any lot's quantity.
func TestMatchConservation(t *testing.T) {
	book := NewMatchBook([]Transaction{
		tradeAt(1, AdvancedTradeBuy, "ETH", 3, 1000, "USD"),
		tradeAt(2, AdvancedTradeSell, "ETH", 2, 1100, "USD"),
		tradeAt(3, AdvancedTradeSell, "ETH", 2, 1200, "USD"),
	})
	if _, err := book.Match(USDRates()); err != nil {
		t.Fatalf("Match() error = %v", err)
	}

	var consumed Quantity
	for _, i := range []int{1, 2} {
		for _, a := range book.State(i).Allocations {
			consumed = consumed.Add(a.Quantity)
		}
	}
	if consumed.GreaterThan(Q(3)) {
		t.Errorf("consumed %v from a 3 unit lot", consumed)
	}
	if r := book.Remaining(0); r.IsNegative() {
		t.Errorf("Remaining(0) = %v, went negative", r)
	}
}

func TestMatchUnmatchedDisposal(t *testing.T) {
	book := NewMatchBook([]Transaction{
		tradeAt(1, AdvancedTradeBuy, "BTC", 1, 100, "USD"),
		tradeAt(2, AdvancedTradeSell, "BTC", 3, 100, "USD"),
	})
	warnings, err := book.Match(USDRates())
	if err != nil {
		t.Fatalf("Match() error = %v", err)
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0], "unable to find the buy for 2 BTC") {
		t.Errorf("warnings = %v, want one about 2 unmatched BTC", warnings)
	}

	// the unmatched quantity carries zero cost basis: gain is proceeds minus
	// the one matched lot
	if gain := book.GainOrLoss(1); !gain.Equal(USD(200)) {
		t.Errorf("GainOrLoss = %v, want 200 USD", gain.Amount())
	}
}

// A tiny unmatched value stays silent.
func TestMatchUnmatchedBelowMateriality(t *testing.T) {
	book := NewMatchBook([]Transaction{
		tradeAt(1, AdvancedTradeBuy, "BTC", 1, 0.01, "USD"),
		tradeAt(2, AdvancedTradeSell, "BTC", 2, 0.01, "USD"),
	})
	warnings, err := book.Match(USDRates())
	if err != nil {
		t.Fatalf("Match() error = %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("warnings = %v, want none below materiality", warnings)
	}
}

// Matching the same book twice must not double-consume lots.
func TestMatchIdempotent(t *testing.T) {
	book := NewMatchBook([]Transaction{
		tradeAt(1, AdvancedTradeBuy, "BTC", 10, 100, "USD"),
		tradeAt(2, AdvancedTradeSell, "BTC", 5, 200, "USD"),
	})
	if _, err := book.Match(USDRates()); err != nil {
		t.Fatalf("Match() error = %v", err)
	}
	first := len(book.State(1).Allocations)

	if _, err := book.Match(USDRates()); err != nil {
		t.Fatalf("second Match() error = %v", err)
	}
	if got := len(book.State(1).Allocations); got != first {
		t.Errorf("second Match() added allocations: %d then %d", first, got)
	}
	if r := book.Remaining(0); !r.Equal(Q(5)) {
		t.Errorf("Remaining(0) = %v after rerun, want 5", r)
	}
	if gain := book.GainOrLoss(1); !gain.Equal(USD(500)) {
		t.Errorf("GainOrLoss = %v after rerun, want 500 USD", gain.Amount())
	}
}

// A lot with only arithmetic residue left must not shadow a later open lot.
func TestMatchEpsilonExhaustion(t *testing.T) {
	dust := tradeAt(1, AdvancedTradeBuy, "BTC", 1, 100, "USD")
	dust.Quantity = Q(decimal.RequireFromString("1.00000000000001"))
	book := NewMatchBook([]Transaction{
		dust,
		tradeAt(2, AdvancedTradeSell, "BTC", 1, 100, "USD"),
		tradeAt(3, AdvancedTradeBuy, "BTC", 1, 100, "USD"),
		tradeAt(4, AdvancedTradeSell, "BTC", 1, 100, "USD"),
	})
	if _, err := book.Match(USDRates()); err != nil {
		t.Fatalf("Match() error = %v", err)
	}

	// the second disposal skips the residue and consumes the fresh lot
	state := book.State(3)
	if len(state.Allocations) != 1 || state.Allocations[0].Acquisition != 2 {
		t.Errorf("Allocations = %+v, want one from index 2", state.Allocations)
	}
}

// Cost basis in another currency converts at the acquisition date, not the
// disposal date.
func TestMatchCrossCurrencyCostBasis(t *testing.T) {
	buy := tradeAt(1, AdvancedTradeBuy, "BTC", 1, 100, "USD")
	sell := tradeAt(2, AdvancedTradeSell, "BTC", 1, 150, "EUR")

	rates := NewRateTable("EUR")
	// on the buy day 1 EUR is 1.25 USD: 100 USD of cost is 80 EUR
	rates.SetSpot(buy.When(), decimal.NewFromFloat(1.25))
	// a very different rate on the sell day, which must not be used
	rates.SetSpot(sell.When(), decimal.NewFromInt(2))

	book := NewMatchBook([]Transaction{buy, sell})
	if _, err := book.Match(rates); err != nil {
		t.Fatalf("Match() error = %v", err)
	}
	if gain := book.GainOrLoss(1); !gain.Equal(EUR(70)) {
		t.Errorf("GainOrLoss = %v %s, want 70 EUR", gain.Amount(), gain.Currency())
	}
}

func TestMatchMissingRate(t *testing.T) {
	book := NewMatchBook([]Transaction{
		tradeAt(1, AdvancedTradeBuy, "BTC", 1, 100, "USD"),
		tradeAt(2, AdvancedTradeSell, "BTC", 1, 150, "EUR"),
	})
	if _, err := book.Match(NewRateTable("EUR")); err == nil {
		t.Errorf("Match() = nil error with no rates, want failure")
	}
}

// An acquisition after the disposal is never a candidate, even same-asset.
func TestMatchIgnoresLaterLots(t *testing.T) {
	book := NewMatchBook([]Transaction{
		tradeAt(2, AdvancedTradeSell, "BTC", 1, 100, "USD"),
		tradeAt(3, AdvancedTradeBuy, "BTC", 1, 50, "USD"),
	})
	warnings, err := book.Match(USDRates())
	if err != nil {
		t.Fatalf("Match() error = %v", err)
	}
	if len(warnings) != 1 {
		t.Errorf("warnings = %v, want the unmatched disposal", warnings)
	}
	if gain := book.GainOrLoss(0); !gain.Equal(USD(100)) {
		t.Errorf("GainOrLoss = %v, want full proceeds 100 USD", gain.Amount())
	}
	if r := book.Remaining(1); !r.Equal(Q(1)) {
		t.Errorf("Remaining(1) = %v, the later lot must stay whole", r)
	}
}
