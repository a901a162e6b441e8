package cbgains

import (
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Column names of the export format. The header row declares the actual
// order; these are only used to look fields up by name.
const (
	colID       = "ID"
	colTime     = "Timestamp"
	colType     = "Transaction Type"
	colAsset    = "Asset"
	colQuantity = "Quantity Transacted"
	colCurrency = "Price Currency"
	colPrice    = "Price at Transaction"
	colSubtotal = "Subtotal"
	colTotal    = "Total (inclusive of fees and/or spread)"
	colFee      = "Fees and/or Spread"
	colNotes    = "Notes"
)

// Consistency check tolerances. A row is only flagged when BOTH the relative
// and the absolute threshold are exceeded, which keeps rounding residue from
// producing false positives. Values are fixed for output compatibility.
var (
	totalRelTolerance    = decimal.NewFromFloat(0.001)
	subtotalRelTolerance = decimal.NewFromFloat(0.002)
	absTolerance         = decimal.NewFromInt(1)
)

// DecodeTransactions parses a raw export document into a TransactionFile.
//
// The document is a preamble (ignored), then a header line starting with the
// "ID" sentinel, then comma-delimited rows in the header's column order. A
// row whose field count does not match the header is a structural failure
// for the whole file. Everything row-level (bad timestamp, out-of-range
// values) is accumulated in the file's Errors/Warnings instead, so one bad
// row never discards an otherwise valid export.
func DecodeTransactions(r io.Reader) (*TransactionFile, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("could not read transactions: %w", err)
	}
	rows, err := parseRows(string(raw))
	if err != nil {
		return nil, err
	}

	file := &TransactionFile{}
	for _, row := range rows {
		t, rowErr := parseTransaction(row)
		if rowErr != "" {
			file.Errors = append(file.Errors, rowErr)
			continue
		}
		if warning := rowWarning(t); warning != "" {
			file.Warnings = append(file.Warnings, warning)
		}
		file.Transactions = append(file.Transactions, t)
	}
	sortTransactions(file.Transactions)
	return file, nil
}

// row is one raw data line, split by column name, plus the original text.
type row struct {
	raw    string
	fields map[string]string
}

// parseRows frames the document: skips the preamble, reads the header, and
// splits every data row. The delimiter model is deliberately flat: split on
// commas, strip surrounding quotes, no escaped-quote or embedded-delimiter
// handling. That is the contract of the upstream export.
func parseRows(input string) ([]row, error) {
	lines := strings.Split(input, "\n")

	// Skip empty lines, the "Transactions" banner, and the user line.
	for len(lines) > 0 && !strings.HasPrefix(lines[0], colID) {
		lines = lines[1:]
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("no header row starting with %q found", colID)
	}
	headers := strings.Split(strings.TrimRight(lines[0], "\r"), ",")
	lines = lines[1:]

	var rows []row
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		values := strings.Split(line, ",")
		if len(values) != len(headers) {
			return nil, fmt.Errorf("invalid row %q: %d fields, header has %d", line, len(values), len(headers))
		}
		fields := make(map[string]string, len(headers))
		for i, header := range headers {
			fields[header] = unquote(values[i])
		}
		rows = append(rows, row{raw: line, fields: fields})
	}
	return rows, nil
}

// unquote strips one pair of surrounding double quotes, nothing more.
func unquote(value string) string {
	if len(value) >= 2 && strings.HasPrefix(value, `"`) && strings.HasSuffix(value, `"`) {
		return value[1 : len(value)-1]
	}
	return value
}

// parseTransaction turns one framed row into a validated Transaction.
// A non-empty string return is the row's error; the row is dropped.
func parseTransaction(r row) (Transaction, string) {
	ts, err := parseTimestamp(r.fields[colTime])
	if err != nil {
		return Transaction{}, fmt.Sprintf("%v in row %s", err, r.raw)
	}

	currency := r.fields[colCurrency]
	quantity, qok := parseExportNumber(r.fields[colQuantity])
	price, pok := parseExportNumber(r.fields[colPrice])
	subtotal, sok := parseExportNumber(r.fields[colSubtotal])
	total, tok := parseExportNumber(r.fields[colTotal])
	fee, fok := parseExportNumber(r.fields[colFee])

	t := Transaction{
		Raw:      r.raw,
		ID:       r.fields[colID],
		Time:     ts,
		Type:     TransactionType(r.fields[colType]),
		Asset:    r.fields[colAsset],
		Quantity: Q(quantity),
		Currency: currency,
		Price:    M(price, currency),
		Subtotal: M(subtotal, currency),
		Total:    M(total, currency),
		Fee:      M(fee, currency),
		Notes:    r.fields[colNotes],
	}

	// Pricing a stablecoin in its own peg currency carries no information;
	// recover the fiat leg from the notes when possible.
	if t.Asset == "USDC" && t.Currency == "USD" {
		t = reinterpretCurrency(t)
	}

	switch {
	case t.Time.Year() < 2000 || t.Time.Year() > 2100:
		return t, fmt.Sprintf("invalid year %d in row %s", t.Time.Year(), r.raw)
	case !t.Type.IsValid():
		return t, fmt.Sprintf("invalid transaction type %q in row %s", t.Type, r.raw)
	case !qok:
		return t, fmt.Sprintf("invalid quantity %q in row %s", r.fields[colQuantity], r.raw)
	case !pok || t.Price.IsNegative():
		return t, fmt.Sprintf("invalid price %q in row %s", r.fields[colPrice], r.raw)
	case !fok || t.Fee.IsNegative():
		return t, fmt.Sprintf("invalid fee %q in row %s", r.fields[colFee], r.raw)
	case !sok:
		return t, fmt.Sprintf("invalid subtotal %q in row %s", r.fields[colSubtotal], r.raw)
	case !tok:
		return t, fmt.Sprintf("invalid total %q in row %s", r.fields[colTotal], r.raw)
	}
	return t, ""
}

// rowWarning checks the row's internal consistency. The row stays in the
// file; a non-empty return is appended to the warning list.
func rowWarning(t Transaction) string {
	// total should be subtotal plus fee, minus fee for disposals.
	fee := t.Fee
	if t.Type.IsDisposal() {
		fee = fee.Neg()
	}
	expected, err := t.Subtotal.Add(fee)
	if err == nil && expected.IsPositive() {
		diff := t.Total.Amount().Sub(expected.Amount()).Abs()
		rel := decimal.NewFromInt(1).Sub(t.Total.Amount().Div(expected.Amount())).Abs()
		if rel.GreaterThan(totalRelTolerance) && diff.GreaterThan(absTolerance) {
			return fmt.Sprintf("invalid total %s - expected %s in row %s", t.Total.Amount(), expected.Amount(), t.Raw)
		}
	}

	// price times quantity should be the subtotal.
	if !t.Quantity.IsZero() {
		product := t.Price.Amount().Mul(t.Quantity.value).Abs()
		diff := product.Sub(t.Subtotal.Amount()).Abs()
		exceeded := diff.GreaterThan(absTolerance)
		if t.Subtotal.IsZero() {
			exceeded = exceeded && !product.IsZero()
		} else {
			rel := decimal.NewFromInt(1).Sub(product.Div(t.Subtotal.Amount())).Abs()
			exceeded = exceeded && rel.GreaterThan(subtotalRelTolerance)
		}
		if exceeded {
			return fmt.Sprintf("invalid subtotal %s - expected %s in row %s", product, t.Subtotal.Amount(), t.Raw)
		}
	}
	return ""
}

// parseExportNumber parses a numeric field of the export. An empty field is
// zero. A leading currency symbol is stripped. The export marks withdrawals
// and sends with a negative sign but not sells; to avoid basing logic on an
// inconsistent sign, every number is normalized to its absolute value and
// direction is recovered from the transaction type alone.
func parseExportNumber(input string) (decimal.Decimal, bool) {
	if input == "" {
		return decimal.Decimal{}, true
	}
	d, err := decimal.NewFromString(strings.Replace(input, "$", "", 1))
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d.Abs(), true
}

// timestampLayout covers the first two tokens; the third must be the literal "UTC".
const timestampLayout = "2006-01-02 15:04:05"

// parseTimestamp parses the exact form "2025-03-10 13:17:55 UTC". Any other
// timezone token or token count is an error, never a silent default.
func parseTimestamp(input string) (time.Time, error) {
	parts := strings.Split(input, " ")
	if len(parts) != 3 {
		return time.Time{}, fmt.Errorf("invalid timestamp %q", input)
	}
	if parts[2] != "UTC" {
		return time.Time{}, fmt.Errorf("invalid timezone %q", parts[2])
	}
	ts, err := time.Parse(timestampLayout, parts[0]+" "+parts[1])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q", input)
	}
	return ts.UTC(), nil
}

// usdcNotesRE recognizes the trade description embedded in the notes of
// USDC rows, e.g. "Bought 3.72 USDC for 3.43356 EUR on USDC-EUR at 0.923 EUR/USDC".
var usdcNotesRE = regexp.MustCompile(`(Bought|Sold) ([0-9.]+) USDC for ([0-9.]+) ([A-Z]+) on ([A-Z]+-[A-Z]+) at ([0-9.]+) ([A-Z]+/USDC)`)

// reinterpretCurrency rebuilds a USD-priced USDC row in the fiat currency the
// trade was actually settled in, extracted from the notes. The economically
// meaningful gain or loss is against that currency, not against the peg.
// Absence of the pattern is a no-op, never an error: this is best-effort
// textual recovery, not a structured field.
func reinterpretCurrency(t Transaction) Transaction {
	match := usdcNotesRE.FindStringSubmatch(t.Notes)
	if match == nil {
		return t
	}
	quantity, qerr := decimal.NewFromString(match[2])
	amount, aerr := decimal.NewFromString(match[3])
	rate, rerr := decimal.NewFromString(match[6])
	if qerr != nil || aerr != nil || rerr != nil {
		return t
	}
	currency := match[4]

	t.Quantity = Q(quantity)
	t.Currency = currency
	t.Price = M(rate, currency)
	t.Total = M(amount, currency)
	t.Fee = M(t.Fee.Amount().Mul(rate), currency)
	// Same currency by construction.
	t.Subtotal, _ = t.Total.Sub(t.Fee)
	return t
}
