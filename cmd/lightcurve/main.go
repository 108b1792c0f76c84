package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"lightcurve/internal/cli"
	"lightcurve/internal/config"
	"lightcurve/internal/logging"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	// Commands build their own logger from flags; this covers library
	// code that falls back to the default one.
	slog.SetDefault(logging.New(config.EnvLogLevel(), "text"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := cli.NewRootCmd()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}
