package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "aiosctl: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	rt := &cliRuntime{}
	defer rt.close()
	return rootCmd(rt).ExecuteContext(ctx)
}
