package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/etnz/cbgains/renderer"
	"github.com/google/subcommands"
)

type transactionsCmd struct {
	file  string
	plain bool
}

func (*transactionsCmd) Name() string     { return "transactions" }
func (*transactionsCmd) Synopsis() string { return "list the parsed transactions of an export" }
func (*transactionsCmd) Usage() string {
	return `cbg transactions -f <export.csv> [-plain]

  Parses the export and prints every transaction it contains, one row per
  line. Rejected rows and validation warnings go to stderr.
`
}

func (c *transactionsCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.file, "f", "", "Transactions export file to list.")
	f.BoolVar(&c.plain, "plain", false, "Print raw markdown without terminal styling.")
}

func (c *transactionsCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	file, status := decodeExport(c.file, f)
	if status != subcommands.ExitSuccess {
		return status
	}
	for _, e := range file.Errors {
		fmt.Fprintf(os.Stderr, "error: %s\n", e)
	}
	for _, w := range file.Warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", w)
	}
	printMarkdown(renderer.TransactionsMarkdown(file), c.plain)
	return subcommands.ExitSuccess
}
