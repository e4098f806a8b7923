// Command frontdeskd runs the backend: credential minting, knowledge
// retrieval and the appointment book.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/frontdesk-ai/frontdesk-core/server"
)

func main() {
	configPath := flag.String("config", "frontdeskd.yaml", "path to the YAML config file")
	migrateOnly := flag.Bool("migrate", false, "apply database migrations and exit")
	flag.Parse()

	if err := run(*configPath, *migrateOnly); err != nil {
		fmt.Fprintln(os.Stderr, "frontdeskd:", err)
		os.Exit(1)
	}
}

func run(configPath string, migrateOnly bool) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	config, err := server.LoadConfig(configPath)
	if err != nil {
		return err
	}

	if err := server.Migrate(ctx, config.DatabaseURL); err != nil {
		return err
	}
	if migrateOnly {
		return nil
	}

	store, err := server.NewStore(ctx, config.DatabaseURL)
	if err != nil {
		return err
	}
	defer store.Close()

	return server.NewServer(config, store).Run(ctx)
}
