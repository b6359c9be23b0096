// Command biodockviz analyzes and validates structure files offline and
// manages the service database schema.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/turtacn/BioDockViz/internal/interfaces/cli"
)

// Set via -ldflags at build time.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	cli.Version = version
	cli.GitCommit = commit
	cli.BuildDate = buildDate

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := cli.Execute(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
