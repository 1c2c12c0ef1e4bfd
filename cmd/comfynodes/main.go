package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"comfynodes/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		logger.Fatal("Command failed", "error", err)
	}
}
