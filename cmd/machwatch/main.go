// machwatch replays machine sensor datasets through a failure classifier.
//
// Usage:
//
//	machwatch replay <csv|s3://bucket/key> [--delay=500ms] [--model=<path>] [--json]
//	machwatch preview <csv>
//	machwatch logs [--tail=N]
//	machwatch history [--run=<id>]
//	machwatch serve [--addr=:8080]
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
