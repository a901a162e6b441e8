package cbgains

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

// exportHeader is the column order used by the test documents.
const exportHeader = "ID,Timestamp,Transaction Type,Asset,Quantity Transacted,Price Currency,Price at Transaction,Subtotal,Total (inclusive of fees and/or spread),Fees and/or Spread,Notes"

// export builds a minimal document: banner, blank line, header, rows.
func export(rows ...string) string {
	doc := []string{"Transactions", "user: someone", "", exportHeader}
	return strings.Join(append(doc, rows...), "\n")
}

func TestDecodeTransactions(t *testing.T) {
	file, err := DecodeTransactions(strings.NewReader(export(
		`abc123,2025-03-10 13:17:55 UTC,Advanced Trade Buy,BTC,0.5,USD,$40000.00,$20000.00,$20100.00,$100.00,Bought 0.5 BTC`,
	)))
	if err != nil {
		t.Fatalf("DecodeTransactions() error = %v", err)
	}
	if len(file.Errors) != 0 || len(file.Warnings) != 0 {
		t.Fatalf("unexpected issues: errors=%v warnings=%v", file.Errors, file.Warnings)
	}
	if len(file.Transactions) != 1 {
		t.Fatalf("got %d transactions, want 1", len(file.Transactions))
	}

	tx := file.Transactions[0]
	if tx.ID != "abc123" {
		t.Errorf("ID = %q", tx.ID)
	}
	if want := time.Date(2025, time.March, 10, 13, 17, 55, 0, time.UTC); !tx.Time.Equal(want) {
		t.Errorf("Time = %v, want %v", tx.Time, want)
	}
	if tx.Type != AdvancedTradeBuy {
		t.Errorf("Type = %q", tx.Type)
	}
	if tx.Asset != "BTC" || tx.Currency != "USD" {
		t.Errorf("Asset/Currency = %q/%q", tx.Asset, tx.Currency)
	}
	if !tx.Quantity.Equal(Q(0.5)) {
		t.Errorf("Quantity = %v", tx.Quantity)
	}
	if !tx.Price.Equal(USD(40000)) || !tx.Subtotal.Equal(USD(20000)) || !tx.Total.Equal(USD(20100)) || !tx.Fee.Equal(USD(100)) {
		t.Errorf("amounts = %v %v %v %v", tx.Price, tx.Subtotal, tx.Total, tx.Fee)
	}
}

func TestDecodeTransactionsSorts(t *testing.T) {
	file, err := DecodeTransactions(strings.NewReader(export(
		`b,2025-03-12 10:00:00 UTC,Advanced Trade Sell,BTC,0.1,USD,$50000,$5000,$4990,$10,`,
		`a,2025-03-10 10:00:00 UTC,Advanced Trade Buy,BTC,0.1,USD,$40000,$4000,$4010,$10,`,
	)))
	if err != nil {
		t.Fatalf("DecodeTransactions() error = %v", err)
	}
	if len(file.Transactions) != 2 {
		t.Fatalf("got %d transactions, want 2", len(file.Transactions))
	}
	if file.Transactions[0].ID != "a" || file.Transactions[1].ID != "b" {
		t.Errorf("transactions not in time order: %q then %q", file.Transactions[0].ID, file.Transactions[1].ID)
	}
}

func TestDecodeTransactionsQuotedFields(t *testing.T) {
	file, err := DecodeTransactions(strings.NewReader(export(
		`"abc","2025-03-10 13:17:55 UTC","Deposit","USD","100","USD","","","","",""`,
	)))
	if err != nil {
		t.Fatalf("DecodeTransactions() error = %v", err)
	}
	if len(file.Transactions) != 1 {
		t.Fatalf("issues = %v, want none", file.Errors)
	}
	if tx := file.Transactions[0]; tx.ID != "abc" || tx.Type != Deposit {
		t.Errorf("quotes not stripped: %q %q", tx.ID, tx.Type)
	}
}

func TestDecodeTransactionsFraming(t *testing.T) {
	// a row with the wrong arity fails the whole file
	if _, err := DecodeTransactions(strings.NewReader(export(
		`abc,2025-03-10 13:17:55 UTC,Deposit,USD`,
	))); err == nil {
		t.Errorf("DecodeTransactions() = nil error on short row, want failure")
	}

	// a document without the header sentinel fails
	if _, err := DecodeTransactions(strings.NewReader("Transactions\njust a banner\n")); err == nil {
		t.Errorf("DecodeTransactions() = nil error without header, want failure")
	}
}

func TestDecodeTransactionsRowErrors(t *testing.T) {
	tests := []struct {
		name string
		row  string
		want string // substring of the expected error
	}{
		{"bad timestamp", `a,garbage,Deposit,USD,1,USD,,,,,`, "invalid timestamp"},
		{"bad timezone", `a,2025-03-10 13:17:55 EST,Deposit,USD,1,USD,,,,,`, "invalid timezone"},
		{"year out of range", `a,1999-03-10 13:17:55 UTC,Deposit,USD,1,USD,,,,,`, "invalid year 1999"},
		{"unknown type", `a,2025-03-10 13:17:55 UTC,Margin Call,USD,1,USD,,,,,`, "invalid transaction type"},
		{"bad quantity", `a,2025-03-10 13:17:55 UTC,Deposit,USD,abc,USD,,,,,`, "invalid quantity"},
		{"bad price", `a,2025-03-10 13:17:55 UTC,Deposit,USD,1,USD,abc,,,,`, "invalid price"},
		{"bad fee", `a,2025-03-10 13:17:55 UTC,Deposit,USD,1,USD,,,,abc,`, "invalid fee"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			file, err := DecodeTransactions(strings.NewReader(export(tt.row)))
			if err != nil {
				t.Fatalf("DecodeTransactions() error = %v", err)
			}
			if len(file.Transactions) != 0 {
				t.Errorf("bad row was kept: %+v", file.Transactions)
			}
			if len(file.Errors) != 1 || !strings.Contains(file.Errors[0], tt.want) {
				t.Errorf("Errors = %v, want one containing %q", file.Errors, tt.want)
			}
		})
	}
}

func TestDecodeTransactionsWarnings(t *testing.T) {
	tests := []struct {
		name string
		row  string
		want string
	}{
		// subtotal+fee is 105, total claims 200
		{"total mismatch", `a,2025-03-10 13:17:55 UTC,Advanced Trade Buy,BTC,10,USD,$10,$100,$200,$5,`, "invalid total 200"},
		// price*quantity is 100, subtotal claims 50
		{"subtotal mismatch", `a,2025-03-10 13:17:55 UTC,Advanced Trade Buy,BTC,10,USD,$10,$50,$55,$5,`, "invalid subtotal 100"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			file, err := DecodeTransactions(strings.NewReader(export(tt.row)))
			if err != nil {
				t.Fatalf("DecodeTransactions() error = %v", err)
			}
			// warned rows stay in the file
			if len(file.Transactions) != 1 {
				t.Errorf("warned row was dropped: errors=%v", file.Errors)
			}
			if len(file.Warnings) != 1 || !strings.Contains(file.Warnings[0], tt.want) {
				t.Errorf("Warnings = %v, want one containing %q", file.Warnings, tt.want)
			}
		})
	}
}

// A disposal's total is subtotal minus fee, so a sell with that shape must
// not warn.
func TestDecodeTransactionsSellTotal(t *testing.T) {
	file, err := DecodeTransactions(strings.NewReader(export(
		`a,2025-03-10 13:17:55 UTC,Advanced Trade Sell,BTC,10,USD,$10,$100,$95,$5,`,
	)))
	if err != nil {
		t.Fatalf("DecodeTransactions() error = %v", err)
	}
	if len(file.Warnings) != 0 {
		t.Errorf("Warnings = %v, want none", file.Warnings)
	}
}

func TestParseExportNumber(t *testing.T) {
	tests := []struct {
		input    string
		expected decimal.Decimal
		ok       bool
	}{
		{"", decimal.Decimal{}, true},
		{"42", decimal.NewFromInt(42), true},
		{"$42.50", decimal.NewFromFloat(42.5), true},
		{"-17.3", decimal.NewFromFloat(17.3), true}, // sign is dropped
		{"-$17.3", decimal.NewFromFloat(17.3), true},
		{"1e3", decimal.NewFromInt(1000), true},
		{"abc", decimal.Decimal{}, false},
		{"$$1", decimal.Decimal{}, false},
	}
	for _, tt := range tests {
		got, ok := parseExportNumber(tt.input)
		if ok != tt.ok {
			t.Errorf("parseExportNumber(%q) ok = %v, want %v", tt.input, ok, tt.ok)
			continue
		}
		if ok && !got.Equal(tt.expected) {
			t.Errorf("parseExportNumber(%q) = %s, want %s", tt.input, got, tt.expected)
		}
	}
}

func TestReinterpretCurrency(t *testing.T) {
	file, err := DecodeTransactions(strings.NewReader(export(
		`a,2025-03-10 13:17:55 UTC,Advanced Trade Buy,USDC,3.72,USD,$1.00,$3.72,$3.72,$0,Bought 3.72 USDC for 3.43356 EUR on USDC-EUR at 0.923 EUR/USDC`,
	)))
	if err != nil {
		t.Fatalf("DecodeTransactions() error = %v", err)
	}
	if len(file.Transactions) != 1 {
		t.Fatalf("issues = %v %v", file.Errors, file.Warnings)
	}

	tx := file.Transactions[0]
	if tx.Currency != "EUR" {
		t.Fatalf("Currency = %q, want EUR", tx.Currency)
	}
	if !tx.Quantity.Equal(Q(3.72)) {
		t.Errorf("Quantity = %v, want 3.72", tx.Quantity)
	}
	if !tx.Price.Equal(EUR(0.923)) {
		t.Errorf("Price = %v, want 0.923 EUR", tx.Price.Amount())
	}
	if !tx.Total.Equal(EUR(3.43356)) {
		t.Errorf("Total = %v, want 3.43356 EUR", tx.Total.Amount())
	}
	if !tx.Fee.Equal(EUR(0)) {
		t.Errorf("Fee = %v, want 0 EUR", tx.Fee.Amount())
	}
	if !tx.Subtotal.Equal(EUR(3.43356)) {
		t.Errorf("Subtotal = %v, want 3.43356 EUR", tx.Subtotal.Amount())
	}
}

// USDC rows whose notes carry no trade description stay in USD.
func TestReinterpretCurrencyNoMatch(t *testing.T) {
	file, err := DecodeTransactions(strings.NewReader(export(
		`a,2025-03-10 13:17:55 UTC,Receive,USDC,10,USD,$1.00,$10,$10,$0,Received from a friend`,
	)))
	if err != nil {
		t.Fatalf("DecodeTransactions() error = %v", err)
	}
	if tx := file.Transactions[0]; tx.Currency != "USD" {
		t.Errorf("Currency = %q, want USD", tx.Currency)
	}
}
