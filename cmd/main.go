// Package cmd implements the cbg subcommands.
package cmd

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/google/subcommands"
)

// Register the subcommands.
func Register(c *subcommands.Commander) {
	c.Register(&gainsCmd{}, "reports")
	c.Register(&holdingsCmd{}, "reports")
	c.Register(&transactionsCmd{}, "reports")

	c.Register(&fetchCmd{}, "rates")
}

const cacheDirEnv = "CBGAINS_CACHE_DIR"

var cacheDirFlag = flag.String("cache-dir", "", "Directory for the exchange rate cache.\n If missing it will read the environment variable \""+cacheDirEnv+"\", then fall back to the user cache directory.")

func cacheDir() string {
	if *cacheDirFlag == "" {
		*cacheDirFlag = os.Getenv(cacheDirEnv)
	}
	if *cacheDirFlag == "" {
		if dir, err := os.UserCacheDir(); err == nil {
			*cacheDirFlag = filepath.Join(dir, "cbgains")
		} else {
			*cacheDirFlag = ".cbgains"
		}
	}
	return *cacheDirFlag
}

// client returns the HTTP client used for rate fetching.
func client() *http.Client {
	return &http.Client{Timeout: 20 * time.Second}
}

// printMarkdown writes markdown to stdout, styled for the terminal unless
// plain is requested. A rendering failure falls back to the raw markdown.
func printMarkdown(md string, plain bool) {
	if !plain {
		if out, err := glamour.Render(md, "auto"); err == nil {
			fmt.Print(out)
			return
		}
	}
	fmt.Println(md)
}
