// Command sheetmail-send sends a single test message through the
// authenticated account.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/unfoldedlabs/sheetmail/internal/config"
	"github.com/unfoldedlabs/sheetmail/internal/credstore"
	"github.com/unfoldedlabs/sheetmail/internal/engine"
	"github.com/unfoldedlabs/sheetmail/internal/runtime"
	"github.com/unfoldedlabs/sheetmail/internal/session"
)

func main() {
	if err := run(); err != nil {
		runtime.DefaultLogger().Error("sheetmail-send failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	to := flag.String("to", "", "recipient address")
	subject := flag.String("subject", "", "message subject")
	body := flag.String("body", "", "message body text")
	bodyFile := flag.String("body-file", "", "read the body from a file instead of -body")
	from := flag.String("from", "", "optional From header (verified alias)")
	attach := flag.String("attach", "", "comma separated attachment paths")
	signature := flag.Bool("signature", false, "append the account's primary signature")
	flag.Parse()

	if *to == "" {
		return fmt.Errorf("-to is required")
	}
	text, err := resolveBody(*body, *bodyFile)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, err := credstore.OpenSQLite(cfg.StorePath)
	if err != nil {
		return err
	}
	defer store.Close()

	log := runtime.DefaultLogger()
	eng := engine.New(session.New(store, log), nil, log)
	id, err := eng.SendSingle(ctx, engine.SingleMessage{
		To:           *to,
		Subject:      *subject,
		Body:         text,
		From:         *from,
		Attachments:  splitList(*attach),
		UseSignature: *signature,
	})
	if err != nil {
		return err
	}
	fmt.Printf("sent message %s\n", id)
	return nil
}

func resolveBody(body, bodyFile string) (string, error) {
	if bodyFile == "" {
		return body, nil
	}
	buf, err := os.ReadFile(bodyFile)
	if err != nil {
		return "", fmt.Errorf("read body file: %w", err)
	}
	return string(buf), nil
}

func splitList(input string) []string {
	if strings.TrimSpace(input) == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
