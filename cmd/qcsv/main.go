// Command qcsv runs SQL queries against CSV files.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/nao1215/qcsv/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.Run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
