// Command flowdesk analyzes pasted options flow from the terminal: parse,
// summarize, group by breakeven sentiment, export, or query a running
// flowdesk-server over gRPC.
package main

import (
	"fmt"
	"os"

	"flowdesk/internal/flow"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	root := newRootCmd(&app{clock: flow.SystemClock})
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
