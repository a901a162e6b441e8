package cbgains

import (
	"slices"
	"time"
)

// TransactionType is a typed string for the closed enumeration of ledger row types.
type TransactionType string

// Transaction types found in the export. The enumeration is closed: a row
// with any other type is rejected at validation.
const (
	AdvancedTradeBuy    TransactionType = "Advanced Trade Buy"
	AdvancedTradeSell   TransactionType = "Advanced Trade Sell"
	Deposit             TransactionType = "Deposit"
	Receive             TransactionType = "Receive"
	RewardIncome        TransactionType = "Reward Income"
	Send                TransactionType = "Send"
	SubscriptionRebate  TransactionType = "Subscription Rebate"
	SubscriptionRebates TransactionType = "Subscription Rebates (24 Hours)"
	Withdrawal          TransactionType = "Withdrawal"
)

// transactionTypes is the closed enumeration used by validation.
var transactionTypes = []TransactionType{
	AdvancedTradeBuy,
	AdvancedTradeSell,
	Deposit,
	Receive,
	RewardIncome,
	Send,
	SubscriptionRebate,
	SubscriptionRebates,
	Withdrawal,
}

// Classification tables. Acquisition/disposal drive FIFO matching; positive/
// negative drive position arithmetic. They are lookup data, fixed at build time.
var (
	acquisitionTypes = []TransactionType{AdvancedTradeBuy, Receive}
	disposalTypes    = []TransactionType{AdvancedTradeSell, Send}
	negativeTypes    = []TransactionType{AdvancedTradeSell, Send, Withdrawal}
	positiveTypes    = []TransactionType{AdvancedTradeBuy, Receive, Deposit, RewardIncome, SubscriptionRebate, SubscriptionRebates}
)

// IsValid reports whether t belongs to the closed enumeration.
func (t TransactionType) IsValid() bool { return slices.Contains(transactionTypes, t) }

// IsAcquisition reports whether t increases a position that can later be matched.
func (t TransactionType) IsAcquisition() bool { return slices.Contains(acquisitionTypes, t) }

// IsDisposal reports whether t realizes a position for value.
func (t TransactionType) IsDisposal() bool { return slices.Contains(disposalTypes, t) }

// IsPositive reports whether t adds to the remaining position.
func (t TransactionType) IsPositive() bool { return slices.Contains(positiveTypes, t) }

// IsNegative reports whether t subtracts from the remaining position.
func (t TransactionType) IsNegative() bool { return slices.Contains(negativeTypes, t) }

// cashAssets are fiat currencies that can appear as assets in the export.
var cashAssets = []string{
	"AUD", "CAD", "CHF", "CNY", "EUR", "GBP", "HKD", "JPY", "KRW", "NZD", "SGD", "USD",
}

// stableCoins are pegged assets treated like cash for grouping and sign conventions.
var stableCoins = []string{"USDC", "USDT"}

// IsCashLike reports whether an asset is fiat or a stablecoin.
func IsCashLike(asset string) bool {
	return slices.Contains(cashAssets, asset) || slices.Contains(stableCoins, asset)
}

// Transaction is one validated ledger line. It is immutable after parsing;
// the accounting state derived by matching lives in a MatchBook, keyed by the
// transaction's index in the sorted sequence.
type Transaction struct {
	Raw      string          // original row text, kept for diagnostics
	ID       string          // exchange-assigned identifier
	Time     time.Time       // UTC timestamp
	Type     TransactionType //
	Asset    string          // asset symbol
	Quantity Quantity        // non-negative
	Currency string          // settlement currency of the monetary fields
	Price    Money           // price per unit at transaction time
	Subtotal Money           //
	Total    Money           // inclusive of fees and/or spread
	Fee      Money           //
	Notes    string          // free text from the export
}

// When returns the calendar day of the transaction, the key for rate lookups.
func (t Transaction) When() Date { return DateOf(t.Time) }

// TransactionFile is the result of parsing one export: the accepted rows in
// ascending time order, plus the errors (rows dropped) and warnings (rows
// kept but suspicious) accumulated along the way.
type TransactionFile struct {
	Transactions []Transaction
	Errors       []string
	Warnings     []string
}

// sortTransactions orders rows ascending by timestamp, stable so input order
// breaks ties. Matching requires this ordering; it is a precondition, not an
// engine-internal optimization.
func sortTransactions(txs []Transaction) {
	slices.SortStableFunc(txs, func(a, b Transaction) int {
		return a.Time.Compare(b.Time)
	})
}
