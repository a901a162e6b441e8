package cbgains

import (
	"fmt"
	"slices"
)

// Report is the enriched result of one ingestion, ready for rendering:
// per-asset transaction groups with their aggregates, realized gains by
// calendar year, and the issues accumulated by parsing and matching.
type Report struct {
	TargetCurrency string
	Groups         []AssetGroup
	Years          []YearGains
	Errors         []string
	Warnings       []string
}

// AssetGroup is one displayed group of transactions (an asset, a stablecoin
// trading pair, cash movements...) with its footer aggregates.
type AssetGroup struct {
	Key       string
	Asset     string
	Currency  string // settlement currency of the group's first transaction
	Converted bool   // whether target-currency columns are present
	Lines     []GroupLine

	Remaining   Quantity
	Fees        Money
	FeesTarget  Money
	Total       Money
	TotalTarget Money
	Gain        Money
	GainTarget  Money
}

// GroupLine is one transaction of a group. Totals are signed for display:
// negative types negate, and non-cash groups flip the sign so money spent
// on an asset reads as an outflow.
type GroupLine struct {
	Date        Date
	Type        TransactionType
	Quantity    Quantity
	Price       Money
	PriceTarget Money
	Fee         Money
	FeeTarget   Money
	Total       Money
	TotalTarget Money
	Gain        Money
	GainTarget  Money
}

// YearGains is the realized gain or loss of one calendar year, by asset.
type YearGains struct {
	Year   int
	Assets []YearAssetGains

	CostBasisTarget Money
	ProceedsTarget  Money
	GainTarget      Money
}

// YearAssetGains aggregates one asset's disposals within a year: the cost
// basis of everything consumed (from the audit allocations, converted at the
// acquisition dates), the proceeds, and the gain in the target currency.
type YearAssetGains struct {
	Asset           string
	FirstBuy        Date
	LastSell        Date
	CostBasis       Money
	CostBasisTarget Money
	Proceeds        Money
	ProceedsTarget  Money
	GainTarget      Money

	sold bool // at least one disposal this year; buys alone don't make a row
}

// BuildReport assembles the report from a matched book. The file contributes
// the parse-time errors and warnings; matchWarnings are appended after them.
func BuildReport(file *TransactionFile, book *MatchBook, rates RateProvider, matchWarnings []string) (*Report, error) {
	report := &Report{
		TargetCurrency: rates.TargetCurrency(),
		Errors:         slices.Clone(file.Errors),
		Warnings:       append(slices.Clone(file.Warnings), matchWarnings...),
	}

	txs := book.Transactions()
	keys, groups := groupIndices(txs)
	for _, key := range keys {
		group, err := buildGroup(key, groups[key], book, rates)
		if err != nil {
			return nil, fmt.Errorf("group %q: %w", key, err)
		}
		report.Groups = append(report.Groups, *group)
	}

	years, err := buildYears(book, rates)
	if err != nil {
		return nil, err
	}
	report.Years = years
	return report, nil
}

// convertAt converts m to the target currency at the given date. The zero
// Money passes through untouched: there is nothing to convert and it renders
// blank anyway.
func convertAt(m Money, on Date, rates RateProvider, target string) (Money, error) {
	if m.Currency() == "" {
		return Money{}, nil
	}
	return m.Convert(on, rates, target)
}

func buildGroup(key string, members []int, book *MatchBook, rates RateProvider) (*AssetGroup, error) {
	txs := book.Transactions()
	first := txs[members[0]]
	target := rates.TargetCurrency()

	groupTxs := make([]Transaction, 0, len(members))
	for _, i := range members {
		groupTxs = append(groupTxs, txs[i])
	}

	group := &AssetGroup{
		Key:       key,
		Asset:     first.Asset,
		Currency:  first.Currency,
		Converted: NeedsConversion(groupTxs, target),
		Remaining: RemainingQuantity(groupTxs),
	}

	// money spent on a non-cash asset displays as an outflow.
	groupSign := Q(-1)
	if IsCashLike(first.Asset) {
		groupSign = Q(1)
	}

	var err error
	for _, i := range members {
		t := txs[i]
		sign := groupSign
		if t.Type.IsNegative() {
			sign = sign.Neg()
		}
		line := GroupLine{
			Date:     t.When(),
			Type:     t.Type,
			Quantity: t.Quantity,
			Price:    t.Price,
			Fee:      t.Fee,
			Total:    t.Total.Mul(sign),
			Gain:     book.GainOrLoss(i),
		}
		if group.Converted {
			if line.PriceTarget, err = convertAt(line.Price, line.Date, rates, ""); err != nil {
				return nil, err
			}
			if line.FeeTarget, err = convertAt(line.Fee, line.Date, rates, ""); err != nil {
				return nil, err
			}
			if line.TotalTarget, err = convertAt(line.Total, line.Date, rates, ""); err != nil {
				return nil, err
			}
			if line.GainTarget, err = convertAt(line.Gain, line.Date, rates, ""); err != nil {
				return nil, err
			}
		}
		group.Lines = append(group.Lines, line)

		if group.Fees, err = group.Fees.Add(t.Fee); err != nil {
			return nil, err
		}
		if group.Total, err = group.Total.Add(line.Total); err != nil {
			return nil, err
		}
		gain, err := convertAt(book.GainOrLoss(i), line.Date, rates, group.Currency)
		if err != nil {
			return nil, err
		}
		if group.Gain, err = group.Gain.Add(gain); err != nil {
			return nil, err
		}
		if group.Converted {
			if group.FeesTarget, err = group.FeesTarget.Add(line.FeeTarget); err != nil {
				return nil, err
			}
			if group.TotalTarget, err = group.TotalTarget.Add(line.TotalTarget); err != nil {
				return nil, err
			}
			if group.GainTarget, err = group.GainTarget.Add(line.GainTarget); err != nil {
				return nil, err
			}
		}
	}
	return group, nil
}

// buildYears aggregates realized gains per calendar year across all assets.
func buildYears(book *MatchBook, rates RateProvider) ([]YearGains, error) {
	txs := book.Transactions()
	var years []int
	for _, t := range txs {
		if !slices.Contains(years, t.Time.Year()) {
			years = append(years, t.Time.Year())
		}
	}
	slices.Sort(years)

	var result []YearGains
	for _, year := range years {
		yg, err := buildYear(year, book, rates)
		if err != nil {
			return nil, fmt.Errorf("year %d: %w", year, err)
		}
		result = append(result, *yg)
	}
	return result, nil
}

func buildYear(year int, book *MatchBook, rates RateProvider) (*YearGains, error) {
	txs := book.Transactions()
	yg := &YearGains{Year: year}

	byAsset := make(map[string]*YearAssetGains)
	var order []string
	assetRow := func(asset string) *YearAssetGains {
		row, ok := byAsset[asset]
		if !ok {
			row = &YearAssetGains{Asset: asset}
			byAsset[asset] = row
			order = append(order, asset)
		}
		return row
	}

	var err error
	for i, t := range txs {
		if t.Time.Year() != year {
			continue
		}
		if t.Type.IsAcquisition() {
			row := assetRow(t.Asset)
			if row.FirstBuy.IsZero() || t.When().Before(row.FirstBuy) {
				row.FirstBuy = t.When()
			}
			continue
		}
		if !t.Type.IsDisposal() {
			continue
		}
		row := assetRow(t.Asset)
		if t.When().After(row.LastSell) {
			row.LastSell = t.When()
		}
		row.sold = true

		for _, alloc := range book.State(i).Allocations {
			buy := txs[alloc.Acquisition]
			cost := buy.Total.Mul(alloc.Quantity).Div(buy.Quantity)
			costLocal, err := convertAt(cost, buy.When(), rates, t.Currency)
			if err != nil {
				return nil, err
			}
			if row.CostBasis, err = row.CostBasis.Add(costLocal); err != nil {
				return nil, err
			}
			costTarget, err := convertAt(cost, buy.When(), rates, "")
			if err != nil {
				return nil, err
			}
			if row.CostBasisTarget, err = row.CostBasisTarget.Add(costTarget); err != nil {
				return nil, err
			}
		}

		if row.Proceeds, err = row.Proceeds.Add(t.Total); err != nil {
			return nil, err
		}
		proceedsTarget, err := convertAt(t.Total, t.When(), rates, "")
		if err != nil {
			return nil, err
		}
		if row.ProceedsTarget, err = row.ProceedsTarget.Add(proceedsTarget); err != nil {
			return nil, err
		}
	}

	slices.Sort(order)
	for _, asset := range order {
		row := byAsset[asset]
		if !row.sold {
			continue
		}
		if row.GainTarget, err = row.ProceedsTarget.Sub(row.CostBasisTarget); err != nil {
			return nil, err
		}
		yg.Assets = append(yg.Assets, *row)
		if yg.CostBasisTarget, err = yg.CostBasisTarget.Add(row.CostBasisTarget); err != nil {
			return nil, err
		}
		if yg.ProceedsTarget, err = yg.ProceedsTarget.Add(row.ProceedsTarget); err != nil {
			return nil, err
		}
	}
	if yg.GainTarget, err = yg.ProceedsTarget.Sub(yg.CostBasisTarget); err != nil {
		return nil, err
	}
	return yg, nil
}
