// Command dvssctl is the operator console for the DVSS-PPA primary API: it
// signs in, keeps the session on disk, answers route-guard questions and
// serves a guarded local front for the console.
package main

import (
	"fmt"
	"os"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
