package session

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"
)

var ErrInvalidCallback = errors.New("authorization callback missing code parameter")

// listen is a var so tests can simulate bind failures.
var listen = net.Listen

const successPage = `<!DOCTYPE html>
<html><head><title>sheetmail</title></head>
<body><h2>Authentication complete</h2>
<p>You can close this window and return to sheetmail.</p></body></html>`

type callbackResult struct {
	code string
	err  error
}

// callbackListener is the short-lived loopback listener for one OAuth
// exchange. It settles exactly once; every later callback, close or
// error is a no-op.
type callbackListener struct {
	ln          net.Listener
	redirectURL string
	state       string

	settleOnce sync.Once
	closeOnce  sync.Once
	result     chan callbackResult
}

// openListener binds the loopback callback listener. With a fixed
// redirect it tries the declared host and port, then the declared host
// with an OS-assigned port, then the alternate loopback hostname with
// the same two ports. Without one it binds an OS-assigned port on the
// preferred host.
func openListener(creds Credentials, state string) (*callbackListener, error) {
	host := creds.Host
	port := 0
	path := "/"
	if creds.Fixed {
		u, err := url.Parse(creds.RedirectURI)
		if err != nil {
			return nil, fmt.Errorf("parse redirect uri: %w", err)
		}
		host = u.Hostname()
		if p := u.Port(); p != "" {
			if port, err = strconv.Atoi(p); err != nil {
				return nil, fmt.Errorf("parse redirect port: %w", err)
			}
		}
		if u.Path != "" {
			path = u.Path
		}
	}
	if host == "" {
		host = "127.0.0.1"
	}

	candidates := []struct {
		host string
		port int
	}{
		{host, port},
		{host, 0},
		{alternateHost(host), port},
		{alternateHost(host), 0},
	}
	if !creds.Fixed {
		// Without a fixed redirect the port is already OS-assigned, so
		// there is only one bind that can fail.
		candidates = candidates[:1]
	}

	var ln net.Listener
	var bound string
	var err error
	for _, c := range candidates {
		ln, err = listen("tcp", net.JoinHostPort(c.host, strconv.Itoa(c.port)))
		if err == nil {
			bound = c.host
			break
		}
	}
	if ln == nil {
		return nil, fmt.Errorf("bind callback listener: %w", err)
	}

	l := &callbackListener{
		ln:     ln,
		state:  state,
		result: make(chan callbackResult, 1),
	}
	boundPort := ln.Addr().(*net.TCPAddr).Port
	l.redirectURL = fmt.Sprintf("http://%s%s", net.JoinHostPort(bound, strconv.Itoa(boundPort)), path)

	go l.serve()
	return l, nil
}

func (l *callbackListener) serve() {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		code := q.Get("code")
		if code == "" || (l.state != "" && q.Get("state") != l.state) {
			http.Error(w, "Missing authorization code.", http.StatusBadRequest)
			l.settle("", ErrInvalidCallback)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, successPage)
		l.settle(code, nil)
	})
	// Serve returns once close() tears the listener down.
	_ = http.Serve(l.ln, mux)
}

func (l *callbackListener) settle(code string, err error) {
	l.settleOnce.Do(func() {
		l.result <- callbackResult{code: code, err: err}
	})
}

func (l *callbackListener) close() {
	l.closeOnce.Do(func() {
		_ = l.ln.Close()
	})
}
