// Package session owns the OAuth client lifecycle: credential
// normalization, the interactive loopback authorization flow, token
// persistence, and lazy construction of the provider clients.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/unfoldedlabs/sheetmail/internal/credstore"
	gc "github.com/unfoldedlabs/sheetmail/internal/gmail"
	"github.com/unfoldedlabs/sheetmail/internal/runtime"
	sc "github.com/unfoldedlabs/sheetmail/internal/sheets"
)

var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrAuthTimeout      = errors.New("no authorization callback within the timeout")
)

const defaultAuthTimeout = 5 * time.Minute

// Session drives authentication against the mail/spreadsheet provider
// and hands out the two API clients. A Session is safe for concurrent
// use; clients are built once per process lifetime and rotated only by
// a fresh Authenticate call.
type Session struct {
	Store credstore.Store
	Log   *slog.Logger

	// OpenBrowser hands the authorization URL to the user's browser.
	OpenBrowser func(url string) error
	// Timeout bounds the wait for the authorization callback.
	Timeout time.Duration
	// Build constructs the provider clients from credentials and a
	// token. Defaults to the Google API implementation.
	Build func(ctx context.Context, creds Credentials, tok *oauth2.Token) (gc.Client, sc.Client, error)

	mu     sync.Mutex
	gmail  gc.Client
	sheets sc.Client
}

func New(store credstore.Store, log *slog.Logger) *Session {
	s := &Session{Store: store, Log: log, OpenBrowser: runtime.OpenBrowser}
	s.Build = s.buildGoogleClients
	return s
}

// Gmail returns the mail client, or nil before EnsureClients succeeds.
func (s *Session) Gmail() gc.Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gmail
}

// Sheets returns the spreadsheet client, or nil before EnsureClients
// succeeds.
func (s *Session) Sheets() sc.Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sheets
}

// Authenticate normalizes and persists the credential document, then
// establishes an authenticated session. A stored token is reused
// directly when the provider still accepts it; otherwise the full
// interactive loopback flow runs. Returns the account's primary
// address.
func (s *Session) Authenticate(ctx context.Context, raw []byte) (string, error) {
	creds, err := Normalize(raw)
	if err != nil {
		return "", err
	}
	buf, err := json.Marshal(creds)
	if err != nil {
		return "", fmt.Errorf("encode credentials: %w", err)
	}
	if err := s.Store.Set(credstore.KeyCredentials, buf); err != nil {
		return "", fmt.Errorf("persist credentials: %w", err)
	}

	if tok := s.loadToken(); tok != nil {
		email, probeErr := s.buildAndProbe(ctx, creds, tok)
		if probeErr == nil {
			return email, nil
		}
		s.Log.Warn("stored token rejected, starting interactive authorization",
			"error", probeErr)
	}
	return s.interactive(ctx, creds)
}

func (s *Session) interactive(ctx context.Context, creds Credentials) (string, error) {
	state := randomState()
	l, err := openListener(creds, state)
	if err != nil {
		return "", err
	}
	defer l.close()

	cfg := oauthConfig(creds, l.redirectURL)
	authURL := cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	if err := s.openBrowser(authURL); err != nil {
		return "", fmt.Errorf("open browser: %w", err)
	}

	timeout := s.Timeout
	if timeout <= 0 {
		timeout = defaultAuthTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var res callbackResult
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-timer.C:
		return "", ErrAuthTimeout
	case res = <-l.result:
	}
	if res.err != nil {
		return "", res.err
	}

	tok, err := cfg.Exchange(ctx, res.code)
	if err != nil {
		return "", fmt.Errorf("exchange authorization code: %w", err)
	}
	if err := s.saveToken(tok); err != nil {
		return "", err
	}
	return s.buildAndProbe(ctx, creds, tok)
}

// EnsureClients lazily builds the provider clients from the stored
// credentials and token. Idempotent once clients exist.
func (s *Session) EnsureClients(ctx context.Context) error {
	s.mu.Lock()
	ready := s.gmail != nil && s.sheets != nil
	s.mu.Unlock()
	if ready {
		return nil
	}

	creds, err := s.loadCredentials()
	if err != nil {
		return err
	}
	tok := s.loadToken()
	if tok == nil {
		return ErrNotAuthenticated
	}
	_, _, err = s.buildAndStore(ctx, creds, tok)
	return err
}

func (s *Session) buildAndProbe(ctx context.Context, creds Credentials, tok *oauth2.Token) (string, error) {
	gm, _, err := s.buildAndStore(ctx, creds, tok)
	if err != nil {
		return "", err
	}
	email, err := gm.Profile(ctx)
	if err != nil {
		return "", fmt.Errorf("fetch account profile: %w", err)
	}
	return email, nil
}

func (s *Session) buildAndStore(ctx context.Context, creds Credentials, tok *oauth2.Token) (gc.Client, sc.Client, error) {
	gm, sh, err := s.Build(ctx, creds, tok)
	if err != nil {
		return nil, nil, fmt.Errorf("build provider clients: %w", err)
	}
	s.mu.Lock()
	s.gmail, s.sheets = gm, sh
	s.mu.Unlock()
	return gm, sh, nil
}

func (s *Session) loadCredentials() (Credentials, error) {
	buf, err := s.Store.Get(credstore.KeyCredentials)
	if err != nil {
		return Credentials{}, fmt.Errorf("load credentials: %w", err)
	}
	if buf == nil {
		return Credentials{}, ErrNotAuthenticated
	}
	var creds Credentials
	if err := json.Unmarshal(buf, &creds); err != nil {
		return Credentials{}, fmt.Errorf("decode stored credentials: %w", err)
	}
	return creds, nil
}

func (s *Session) loadToken() *oauth2.Token {
	buf, err := s.Store.Get(credstore.KeyToken)
	if err != nil || buf == nil {
		return nil
	}
	var tok oauth2.Token
	if err := json.Unmarshal(buf, &tok); err != nil {
		s.Log.Warn("stored token is unreadable", "error", err)
		return nil
	}
	return &tok
}

func (s *Session) saveToken(tok *oauth2.Token) error {
	buf, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}
	if err := s.Store.Set(credstore.KeyToken, buf); err != nil {
		return fmt.Errorf("persist token: %w", err)
	}
	return nil
}

func (s *Session) openBrowser(url string) error {
	if s.OpenBrowser == nil {
		return fmt.Errorf("no browser launcher configured")
	}
	return s.OpenBrowser(url)
}

func randomState() string {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		panic(err)
	}
	return hex.EncodeToString(buf[:])
}
