package cbgains

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"

	"github.com/PaesslerAG/jsonpath"
	"github.com/shopspring/decimal"
)

// RateProvider supplies the USD exchange rate for a calendar date. A lookup
// either succeeds or is absent; absence must propagate as a conversion
// failure, never a silent zero.
type RateProvider interface {
	// TargetCurrency is the currency this provider converts to and from USD.
	TargetCurrency() string
	// RateForDate returns the USD to target-currency rate for that day.
	RateForDate(on Date) (decimal.Decimal, bool)
}

// usdRates is the identity provider: everything is already in USD.
type usdRates struct{}

func (usdRates) TargetCurrency() string                     { return "USD" }
func (usdRates) RateForDate(Date) (decimal.Decimal, bool)   { return decimal.NewFromInt(1), true }

// USDRates returns the identity provider for USD reporting.
func USDRates() RateProvider { return usdRates{} }

// RateTable is an in-memory RateProvider backed by the upstream feed's raw
// quotes: the USD price of one unit of the target currency, per day. The
// USD-to-target rate is its inverse.
type RateTable struct {
	currency string
	spots    map[Date]decimal.Decimal
}

// NewRateTable returns an empty table for the given target currency.
func NewRateTable(currency string) *RateTable {
	return &RateTable{currency: currency, spots: make(map[Date]decimal.Decimal)}
}

func (t *RateTable) TargetCurrency() string { return t.currency }

// SetSpot records the USD price of one unit of the target currency on a day.
func (t *RateTable) SetSpot(on Date, usdPrice decimal.Decimal) {
	t.spots[on] = usdPrice
}

func (t *RateTable) RateForDate(on Date) (decimal.Decimal, bool) {
	spot, ok := t.spots[on]
	if !ok || spot.IsZero() {
		return decimal.Decimal{}, false
	}
	return decimal.NewFromInt(1).Div(spot), true
}

// missing returns the subset of dates the table has no quote for.
func (t *RateTable) missing(dates []Date) []Date {
	var absent []Date
	for _, on := range dates {
		if _, ok := t.spots[on]; !ok {
			absent = append(absent, on)
		}
	}
	return absent
}

// rateCachePath is the per-currency cache file under the cache directory.
func rateCachePath(dir, currency string) string {
	return filepath.Join(dir, "rates-"+currency+".json")
}

// LoadRateTable reads the cached quotes for a currency. A missing cache file
// is not an error: it yields an empty table.
func LoadRateTable(dir, currency string) (*RateTable, error) {
	table := NewRateTable(currency)
	raw, err := os.ReadFile(rateCachePath(dir, currency))
	if os.IsNotExist(err) {
		return table, nil
	}
	if err != nil {
		return nil, fmt.Errorf("could not read rate cache for %s: %w", currency, err)
	}
	if err := json.Unmarshal(raw, &table.spots); err != nil {
		return nil, fmt.Errorf("could not decode rate cache for %s: %w", currency, err)
	}
	return table, nil
}

// SaveRateTable persists the table's quotes to the cache directory.
func SaveRateTable(dir string, t *RateTable) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("could not create cache directory: %w", err)
	}
	raw, err := json.MarshalIndent(t.spots, "", " ")
	if err != nil {
		return err
	}
	return os.WriteFile(rateCachePath(dir, t.currency), raw, 0644)
}

// NeedsConversion reports whether any transaction is denominated in neither
// the target currency as settlement nor as asset, i.e. whether resolving
// rates is required at all.
func NeedsConversion(txs []Transaction, target string) bool {
	for _, t := range txs {
		if t.Currency != target && t.Asset != target {
			return true
		}
	}
	return false
}

// spotURL is the upstream spot price endpoint, quoted as CCY-USD. A variable
// so tests can point it at a local server.
var spotURL = "https://api.coinbase.com/v2/prices/%s-USD/spot?date=%s"

// ResolveRates returns a fully resolved provider for the target currency,
// covering the calendar day of every transaction. Quotes already cached are
// reused; missing days are fetched sequentially (the upstream is rate
// limited) and persisted after every fetch so an abort loses nothing. Any
// fetch failure aborts resolution: matching must not start against a
// partially resolved provider.
func ResolveRates(ctx context.Context, client *http.Client, currency string, txs []Transaction, cacheDir string) (RateProvider, error) {
	if currency == "USD" {
		return USDRates(), nil
	}
	table, err := LoadRateTable(cacheDir, currency)
	if err != nil {
		return nil, err
	}
	for _, on := range table.missing(transactionDates(txs)) {
		spot, err := fetchSpot(ctx, client, currency, on)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch exchange rates: %w", err)
		}
		table.SetSpot(on, spot)
		log.Printf("fetched %s-USD rate for %s: %s", currency, on, spot)
		if err := SaveRateTable(cacheDir, table); err != nil {
			log.Printf("cache write err (ignored): %v", err)
		}
	}
	return table, nil
}

// transactionDates returns the unique calendar days of txs, in input order.
func transactionDates(txs []Transaction) []Date {
	seen := make(map[Date]bool, len(txs))
	var dates []Date
	for _, t := range txs {
		on := t.When()
		if !seen[on] {
			seen[on] = true
			dates = append(dates, on)
		}
	}
	return dates
}

// fetchSpot retrieves the USD spot price of one unit of currency on a day.
func fetchSpot(ctx context.Context, client *http.Client, currency string, on Date) (decimal.Decimal, error) {
	addr := fmt.Sprintf(spotURL, currency, on)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr, nil)
	if err != nil {
		return decimal.Decimal{}, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("error in wget %q: %w", addr, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return decimal.Decimal{}, fmt.Errorf("cannot http GET %v/%v: %v", resp.Request.URL.Host, resp.Request.URL.Path, resp.Status)
	}

	var jobj any
	if err := json.NewDecoder(resp.Body).Decode(&jobj); err != nil {
		return decimal.Decimal{}, fmt.Errorf("cannot decode spot response for %s: %w", on, err)
	}
	const path = "$.data.amount"
	jval, err := jsonpath.Get(path, jobj)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("error parsing %q: %q %w", currency, path, err)
	}
	// the feed quotes the amount as a string
	s, ok := jval.(string)
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("error parsing %q: %q not a string: %v", currency, path, jval)
	}
	spot, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid spot price %q for %s: %w", s, on, err)
	}
	return spot, nil
}
