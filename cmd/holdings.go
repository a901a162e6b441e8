package cmd

import (
	"context"
	"flag"

	"github.com/etnz/cbgains"
	"github.com/etnz/cbgains/renderer"
	"github.com/google/subcommands"
)

type holdingsCmd struct {
	file  string
	plain bool
}

func (*holdingsCmd) Name() string     { return "holdings" }
func (*holdingsCmd) Synopsis() string { return "remaining position per asset" }
func (*holdingsCmd) Usage() string {
	return `cbg holdings -f <export.csv> [-plain]

  Prints the net remaining quantity of each asset after applying every
  transaction of the export.
`
}

func (c *holdingsCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.file, "f", "", "Transactions export file to report on.")
	f.BoolVar(&c.plain, "plain", false, "Print raw markdown without terminal styling.")
}

func (c *holdingsCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	file, status := decodeExport(c.file, f)
	if status != subcommands.ExitSuccess {
		return status
	}
	printMarkdown(renderer.HoldingsMarkdown(cbgains.Holdings(file.Transactions)), c.plain)
	return subcommands.ExitSuccess
}
