package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	cmd "github.com/rm01-labs/cardmaker/cmd/cardmaker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd.Execute(ctx)
}
