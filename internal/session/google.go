package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/unfoldedlabs/sheetmail/internal/credstore"
	gc "github.com/unfoldedlabs/sheetmail/internal/gmail"
	"github.com/unfoldedlabs/sheetmail/internal/runtime"
	sc "github.com/unfoldedlabs/sheetmail/internal/sheets"
)

// scopes requested on every interactive authorization. Forced consent
// plus offline access guarantees a refresh token even on re-consent.
var scopes = []string{
	sheetsapi.SpreadsheetsScope,
	gmailapi.GmailSendScope,
	gmailapi.GmailReadonlyScope,
	gmailapi.GmailSettingsBasicScope,
}

// endpoint is a var so tests can point the exchange at a local server.
var endpoint = google.Endpoint

func oauthConfig(creds Credentials, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		RedirectURL:  redirectURL,
		Scopes:       scopes,
		Endpoint:     endpoint,
	}
}

func (s *Session) buildGoogleClients(ctx context.Context, creds Credentials, tok *oauth2.Token) (gc.Client, sc.Client, error) {
	cfg := oauthConfig(creds, "")
	ts := &persistingTokenSource{
		src:   cfg.TokenSource(ctx, tok),
		store: s.Store,
		log:   s.Log,
		last:  tok.AccessToken,
	}
	gsvc, err := gmailapi.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, nil, fmt.Errorf("build gmail service: %w", err)
	}
	ssvc, err := sheetsapi.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, nil, fmt.Errorf("build sheets service: %w", err)
	}
	return runtime.NewGmailClient(gsvc), runtime.NewSheetsClient(ssvc), nil
}

// persistingTokenSource writes the token set back to the store whenever
// the underlying source refreshes it, so a restart reuses the newest
// refresh token. The token is always replaced wholesale.
type persistingTokenSource struct {
	src   oauth2.TokenSource
	store credstore.Store
	log   *slog.Logger

	mu   sync.Mutex
	last string
}

func (p *persistingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := p.src.Token()
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if tok.AccessToken == p.last {
		return tok, nil
	}
	buf, err := json.Marshal(tok)
	if err == nil {
		err = p.store.Set(credstore.KeyToken, buf)
	}
	if err != nil {
		p.log.Warn("cannot persist refreshed token", "error", err)
	} else {
		p.last = tok.AccessToken
	}
	return tok, nil
}
