package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/etnz/cbgains"
	"github.com/etnz/cbgains/renderer"
	"github.com/google/subcommands"
)

// gainsCmd holds the flags for the 'gains' subcommand.
type gainsCmd struct {
	file     string
	currency string
	plain    bool
}

func (*gainsCmd) Name() string     { return "gains" }
func (*gainsCmd) Synopsis() string { return "realized gain and loss report from an exchange export" }
func (*gainsCmd) Usage() string {
	return `cbg gains -f <export.csv> [-c <currency>] [-plain]

  Parses the transactions export, resolves exchange rates for the reporting
  currency (fetching and caching missing days), matches every disposal
  against prior acquisitions FIFO, and prints the full report: realized
  gains per calendar year, per-asset transaction tables, and any parsing
  or matching issues.
`
}

func (c *gainsCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.file, "f", "", "Transactions export file to report on.")
	f.StringVar(&c.currency, "c", "USD", "Reporting currency for converted columns.")
	f.BoolVar(&c.plain, "plain", false, "Print raw markdown without terminal styling.")
}

func (c *gainsCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	file, status := decodeExport(c.file, f)
	if status != subcommands.ExitSuccess {
		return status
	}

	rates, err := cbgains.ResolveRates(ctx, client(), c.currency, file.Transactions, cacheDir())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error resolving %s rates: %v\n", c.currency, err)
		return subcommands.ExitFailure
	}

	book := cbgains.NewMatchBook(file.Transactions)
	warnings, err := book.Match(rates)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error matching disposals: %v\n", err)
		return subcommands.ExitFailure
	}

	report, err := cbgains.BuildReport(file, book, rates, warnings)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building report: %v\n", err)
		return subcommands.ExitFailure
	}

	printMarkdown(renderer.ReportMarkdown(report), c.plain)
	return subcommands.ExitSuccess
}

// decodeExport opens and parses the export named by the -f flag or the first
// positional argument.
func decodeExport(path string, f *flag.FlagSet) (*cbgains.TransactionFile, subcommands.ExitStatus) {
	if path == "" && f.NArg() > 0 {
		path = f.Arg(0)
	}
	if path == "" {
		fmt.Fprintln(os.Stderr, "missing transactions export file (-f)")
		return nil, subcommands.ExitUsageError
	}
	r, err := os.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening %q: %v\n", path, err)
		return nil, subcommands.ExitFailure
	}
	defer r.Close()

	file, err := cbgains.DecodeTransactions(r)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing %q: %v\n", path, err)
		return nil, subcommands.ExitFailure
	}
	return file, subcommands.ExitSuccess
}
