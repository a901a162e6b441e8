package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/etnz/cbgains"
	"github.com/google/subcommands"
)

type fetchCmd struct {
	file     string
	currency string
}

func (*fetchCmd) Name() string     { return "fetch" }
func (*fetchCmd) Synopsis() string { return "prefetch the exchange rates an export will need" }
func (*fetchCmd) Usage() string {
	return `cbg fetch -f <export.csv> [-c <currency>]

  Resolves the exchange rate of every transaction day in the export and
  stores it in the local cache, so later reports run offline.
`
}

func (c *fetchCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.file, "f", "", "Transactions export file to fetch rates for.")
	f.StringVar(&c.currency, "c", "USD", "Reporting currency to fetch rates in.")
}

func (c *fetchCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	file, status := decodeExport(c.file, f)
	if status != subcommands.ExitSuccess {
		return status
	}
	if _, err := cbgains.ResolveRates(ctx, client(), c.currency, file.Transactions, cacheDir()); err != nil {
		fmt.Fprintf(os.Stderr, "Error resolving %s rates: %v\n", c.currency, err)
		return subcommands.ExitFailure
	}
	fmt.Printf("%s rates cached in %s\n", c.currency, cacheDir())
	return subcommands.ExitSuccess
}
