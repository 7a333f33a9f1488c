// Package main is the entry point for the taskdesk CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"taskdesk/internal/backend/restapi"
	"taskdesk/internal/cli"
	"taskdesk/internal/commands"
	"taskdesk/internal/config"
	"taskdesk/internal/service"
)

func main() {
	// .env in the working directory may supply TASKDESK_* settings
	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}

	// Create context that cancels on interrupt
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	factory := func(ctx context.Context, cfg *config.Config) (service.Service, error) {
		return restapi.New(ctx, cfg, restapi.WithHeader("User-Agent", config.AppName+"/"+commands.Version))
	}

	dispatcher := cli.NewDispatcher(commands.DefaultRegistry, factory)

	code := dispatcher.Run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
