// Package engine is the public boundary of the campaign execution
// engine, consumed by CLI or UI layers. Results are structured; errors
// never panic across it.
package engine

import (
	"context"
	"log/slog"

	"github.com/unfoldedlabs/sheetmail/internal/campaign"
	gc "github.com/unfoldedlabs/sheetmail/internal/gmail"
	"github.com/unfoldedlabs/sheetmail/internal/merge"
	"github.com/unfoldedlabs/sheetmail/internal/pace"
	"github.com/unfoldedlabs/sheetmail/internal/schedule"
	"github.com/unfoldedlabs/sheetmail/internal/session"
	"github.com/unfoldedlabs/sheetmail/internal/sheets"
)

type Engine struct {
	Session *session.Session
	Jobs    *schedule.Registry
	Log     *slog.Logger
}

// New wires an engine around a session. A nil store keeps scheduled
// jobs in memory only.
func New(sess *session.Session, store schedule.Store, log *slog.Logger) *Engine {
	e := &Engine{Session: sess, Log: log}
	e.Jobs = schedule.NewRegistry(e.Run, store, log)
	return e
}

// AuthResult is the structured outcome of an authentication attempt.
type AuthResult struct {
	Success bool
	Email   string
	Error   string
}

// Authenticate runs the session's authentication flow against a raw
// credential document.
func (e *Engine) Authenticate(ctx context.Context, rawCredentials []byte) AuthResult {
	email, err := e.Session.Authenticate(ctx, rawCredentials)
	if err != nil {
		e.Log.Error("authentication failed", "error", err)
		return AuthResult{Error: err.Error()}
	}
	return AuthResult{Success: true, Email: email}
}

// ConnectToSheet reads a fresh snapshot of the target sheet.
func (e *Engine) ConnectToSheet(ctx context.Context, spreadsheetID, title string) (sheets.Snapshot, error) {
	if err := e.Session.EnsureClients(ctx); err != nil {
		return sheets.Snapshot{}, err
	}
	snap, _, err := sheets.Load(ctx, e.Session.Sheets(), spreadsheetID, title)
	return snap, err
}

// SingleMessage is a one-off (test) send outside any sheet.
type SingleMessage struct {
	To           string
	Subject      string
	Body         string
	From         string
	Attachments  []string
	UseSignature bool
}

// SendSingle builds and sends one message, returning the provider id.
func (e *Engine) SendSingle(ctx context.Context, m SingleMessage) (gc.MessageID, error) {
	if err := e.Session.EnsureClients(ctx); err != nil {
		return "", err
	}
	gm := e.Session.Gmail()
	body := m.Body
	if m.UseSignature {
		if aliases, err := gm.ListSendAs(ctx); err == nil {
			body = merge.AppendSignature(body, gc.PrimarySignature(aliases))
		} else {
			e.Log.Warn("cannot fetch send-as signature", "error", err)
		}
	}
	raw := merge.EncodeRaw(merge.Build(e.Log, m.From, m.To, m.Subject, body, m.Attachments))
	return gm.Send(ctx, raw)
}

// Run executes a campaign synchronously.
func (e *Engine) Run(ctx context.Context, p campaign.Params) (campaign.Summary, error) {
	if err := e.Session.EnsureClients(ctx); err != nil {
		return campaign.Summary{}, err
	}
	runner := &campaign.Runner{
		Gmail:  e.Session.Gmail(),
		Sheets: e.Session.Sheets(),
		Status: &sheets.StatusWriter{Client: e.Session.Sheets(), Log: e.Log},
		Log:    e.Log,
		Pace:   pace.NewSleeper(p.Delay),
	}
	return runner.Run(ctx, p)
}

// RunCampaign executes a campaign fire-and-forget; the outcome is
// logged, not returned.
func (e *Engine) RunCampaign(p campaign.Params) {
	go func() {
		if _, err := e.Run(context.Background(), p); err != nil {
			e.Log.Error("campaign failed", "sheet", p.SpreadsheetID, "error", err)
		}
	}()
}

// ScheduleOneTime defers a campaign to p.StartAt.
func (e *Engine) ScheduleOneTime(p campaign.Params) schedule.Job {
	return e.Jobs.ScheduleOnce(p)
}

// ListScheduled snapshots all pending jobs.
func (e *Engine) ListScheduled() []schedule.Job {
	return e.Jobs.List()
}

// CancelScheduled aborts a pending job; false when the id is unknown
// or the job already fired.
func (e *Engine) CancelScheduled(id string) bool {
	return e.Jobs.Cancel(id) == nil
}
