package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidCredentials = errors.New("credential document missing client_id or client_secret")

// Credentials is the normalized form of a provider credential document.
// Replaced wholesale on re-authentication, never partially updated.
type Credentials struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	// RedirectURI is set when the document declares a loopback redirect
	// the callback listener must bind to (Fixed=true).
	RedirectURI string `json:"redirect_uri,omitempty"`
	Fixed       bool   `json:"fixed"`
	// Host is the preferred loopback hostname for callback binding when
	// no redirect was fixed.
	Host string `json:"host,omitempty"`
}

type credentialKey struct {
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"client_secret"`
	RedirectURIs []string `json:"redirect_uris"`
}

// Normalize inspects a raw credential document for a "web", "installed"
// or flat credential object and produces Credentials. Both client_id
// and client_secret must be present.
func Normalize(raw []byte) (Credentials, error) {
	var doc struct {
		Web       *credentialKey `json:"web"`
		Installed *credentialKey `json:"installed"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Credentials{}, fmt.Errorf("parse credential document: %w", err)
	}
	key := doc.Web
	if key == nil {
		key = doc.Installed
	}
	if key == nil {
		var flat credentialKey
		if err := json.Unmarshal(raw, &flat); err != nil {
			return Credentials{}, fmt.Errorf("parse credential document: %w", err)
		}
		key = &flat
	}
	if key.ClientID == "" || key.ClientSecret == "" {
		return Credentials{}, ErrInvalidCredentials
	}

	creds := Credentials{ClientID: key.ClientID, ClientSecret: key.ClientSecret}
	for _, u := range key.RedirectURIs {
		if isLoopback(u) {
			creds.RedirectURI = u
			creds.Fixed = true
			return creds, nil
		}
	}
	creds.Host = preferredHost(key.RedirectURIs)
	return creds, nil
}

func isLoopback(u string) bool {
	return strings.HasPrefix(u, "http://localhost") ||
		strings.HasPrefix(u, "http://127.0.0.1")
}

func preferredHost(redirects []string) string {
	for _, u := range redirects {
		if strings.Contains(u, "localhost") {
			return "localhost"
		}
	}
	return "127.0.0.1"
}

// alternateHost flips between the two loopback spellings, used when the
// declared host cannot be bound.
func alternateHost(host string) string {
	if host == "localhost" {
		return "127.0.0.1"
	}
	return "localhost"
}
