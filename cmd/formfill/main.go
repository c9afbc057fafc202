package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"formfill/internal/infrastructure/env"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(env.NewEnvService()).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
