package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudsvc/terraform-provider-cloudsvc/internal/cli"
)

// version is set by the release build.
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRootCommand(version).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
