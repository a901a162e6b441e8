// Package renderer turns report structures into markdown. Layout only:
// every number it prints was computed by the cbgains package.
package renderer

import (
	"fmt"
	"strings"

	"github.com/etnz/cbgains"
	"github.com/shopspring/decimal"
)

// ReportMarkdown renders the full report: issues first, then realized gains
// per calendar year, then the per-group transaction tables.
func ReportMarkdown(r *cbgains.Report) string {
	var b strings.Builder
	writeIssues(&b, r)
	writeYears(&b, r)
	for i := range r.Groups {
		writeGroup(&b, &r.Groups[i], r.TargetCurrency)
	}
	return b.String()
}

func writeIssues(b *strings.Builder, r *cbgains.Report) {
	if len(r.Errors) > 0 {
		fmt.Fprint(b, "# Errors\n\n")
		for _, e := range r.Errors {
			fmt.Fprintf(b, "- %s\n", e)
		}
		fmt.Fprintln(b)
	}
	if len(r.Warnings) > 0 {
		fmt.Fprint(b, "# Warnings\n\n")
		for _, w := range r.Warnings {
			fmt.Fprintf(b, "- %s\n", w)
		}
		fmt.Fprintln(b)
	}
}

func writeYears(b *strings.Builder, r *cbgains.Report) {
	fmt.Fprint(b, "# Realized gain or loss for all years\n\n")
	for i := range r.Years {
		writeYear(b, &r.Years[i], r.TargetCurrency)
	}
}

func writeYear(b *strings.Builder, y *cbgains.YearGains, target string) {
	fmt.Fprintf(b, "## Calendar year %d\n\n", y.Year)
	if len(y.Assets) == 0 {
		fmt.Fprint(b, "No disposals.\n\n")
		return
	}
	fmt.Fprintf(b, "| Security | First buy | Last sell | Cost Basis | Cost Basis %[1]s | Proceeds | Proceeds %[1]s | Gain %[1]s |\n", target)
	fmt.Fprintln(b, "|:---|:---|:---|---:|---:|---:|---:|---:|")
	for _, row := range y.Assets {
		fmt.Fprintf(b, "| %s | %s | %s | %s | %s | %s | %s | %s |\n",
			row.Asset,
			dateCell(row.FirstBuy),
			dateCell(row.LastSell),
			row.CostBasis,
			row.CostBasisTarget,
			row.Proceeds,
			row.ProceedsTarget,
			row.GainTarget.SignedString(),
		)
	}
	fmt.Fprintf(b, "| **Total** | | | | **%s** | | **%s** | **%s** |\n\n",
		y.CostBasisTarget, y.ProceedsTarget, y.GainTarget.SignedString())
}

func writeGroup(b *strings.Builder, g *cbgains.AssetGroup, target string) {
	fmt.Fprintf(b, "# %s\n\n", g.Key)

	headers := []string{"Time", "Type", "Quantity " + g.Asset, "Price"}
	if g.Converted {
		headers = append(headers, "Price "+target)
	}
	headers = append(headers, "Fee")
	if g.Converted {
		headers = append(headers, "Fee "+target)
	}
	headers = append(headers, "Total")
	if g.Converted {
		headers = append(headers, "Total "+target)
	}
	headers = append(headers, "Gain")
	if g.Converted {
		headers = append(headers, "Gain "+target)
	}
	fmt.Fprintf(b, "| %s |\n", strings.Join(headers, " | "))
	aligns := make([]string, len(headers))
	for i := range aligns {
		aligns[i] = "---:"
	}
	aligns[0], aligns[1] = ":---", ":---"
	fmt.Fprintf(b, "|%s|\n", strings.Join(aligns, "|"))

	for _, line := range g.Lines {
		cells := []string{line.Date.String(), string(line.Type), line.Quantity.String(), price(line.Price)}
		if g.Converted {
			cells = append(cells, price(line.PriceTarget))
		}
		cells = append(cells, line.Fee.String())
		if g.Converted {
			cells = append(cells, line.FeeTarget.String())
		}
		cells = append(cells, line.Total.String())
		if g.Converted {
			cells = append(cells, line.TotalTarget.String())
		}
		cells = append(cells, line.Gain.String())
		if g.Converted {
			cells = append(cells, line.GainTarget.String())
		}
		fmt.Fprintf(b, "| %s |\n", strings.Join(cells, " | "))
	}

	// footer, mirroring the per-line column layout
	cells := []string{"**Total**", "", g.Remaining.String(), ""}
	if g.Converted {
		cells = append(cells, "")
	}
	cells = append(cells, g.Fees.String())
	if g.Converted {
		cells = append(cells, g.FeesTarget.String())
	}
	cells = append(cells, g.Total.String())
	if g.Converted {
		cells = append(cells, g.TotalTarget.String())
	}
	cells = append(cells, g.Gain.SignedString())
	if g.Converted {
		cells = append(cells, g.GainTarget.SignedString())
	}
	fmt.Fprintf(b, "| %s |\n\n", strings.Join(cells, " | "))
}

// HoldingsMarkdown renders the remaining position per group.
func HoldingsMarkdown(groups []cbgains.AssetGroup) string {
	var b strings.Builder
	fmt.Fprint(&b, "# Holdings\n\n")
	fmt.Fprintln(&b, "| Group | Asset | Remaining |")
	fmt.Fprintln(&b, "|:---|:---|---:|")
	for _, g := range groups {
		if g.Remaining.IsZero() {
			continue
		}
		fmt.Fprintf(&b, "| %s | %s | %s |\n", g.Key, g.Asset, g.Remaining)
	}
	return b.String()
}

// TransactionsMarkdown dumps the parsed, validated rows.
func TransactionsMarkdown(file *cbgains.TransactionFile) string {
	var b strings.Builder
	fmt.Fprint(&b, "# Transactions\n\n")
	fmt.Fprintln(&b, "| Time | Type | Asset | Quantity | Price | Total | Fee |")
	fmt.Fprintln(&b, "|:---|:---|:---|---:|---:|---:|---:|")
	for _, t := range file.Transactions {
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s | %s |\n",
			t.Time.Format("2006-01-02 15:04:05"), t.Type, t.Asset, t.Quantity, price(t.Price), t.Total, t.Fee)
	}
	return b.String()
}

// dateCell renders a date, blank when unset.
func dateCell(d cbgains.Date) string {
	if d.IsZero() {
		return ""
	}
	return d.String()
}

// tenThousand is the magnitude above which prices drop to 2 digits.
var tenThousand = decimal.NewFromInt(10000)

// price renders unit prices with 4 digits when small; big prices read
// better with the usual 2.
func price(m cbgains.Money) string {
	if m.Amount().Abs().LessThan(tenThousand) {
		return m.Fixed(4)
	}
	return m.Fixed(2)
}
