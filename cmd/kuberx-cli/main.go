package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"kuberx/internal/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := commands.NewRootCommand(nil).ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
