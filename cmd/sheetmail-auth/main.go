// Command sheetmail-auth runs the interactive Google authorization flow
// and stores the resulting credentials and token.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/unfoldedlabs/sheetmail/internal/config"
	"github.com/unfoldedlabs/sheetmail/internal/credstore"
	"github.com/unfoldedlabs/sheetmail/internal/engine"
	"github.com/unfoldedlabs/sheetmail/internal/runtime"
	"github.com/unfoldedlabs/sheetmail/internal/session"
)

func main() {
	if err := run(); err != nil {
		runtime.DefaultLogger().Error("sheetmail-auth failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	credentials := flag.String("credentials", cfg.CredentialsPath, "path to the provider credential JSON document")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	raw, err := os.ReadFile(*credentials)
	if err != nil {
		return fmt.Errorf("read credential document: %w", err)
	}

	store, err := credstore.OpenSQLite(cfg.StorePath)
	if err != nil {
		return err
	}
	defer store.Close()

	log := runtime.DefaultLogger()
	eng := engine.New(session.New(store, log), nil, log)
	res := eng.Authenticate(ctx, raw)
	if !res.Success {
		return fmt.Errorf("authenticate: %s", res.Error)
	}
	fmt.Printf("authenticated as %s\n", res.Email)
	return nil
}
