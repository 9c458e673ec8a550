// Package campaign orchestrates one full mail-merge run over a sheet.
package campaign

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	gc "github.com/unfoldedlabs/sheetmail/internal/gmail"
	"github.com/unfoldedlabs/sheetmail/internal/merge"
	"github.com/unfoldedlabs/sheetmail/internal/pace"
	"github.com/unfoldedlabs/sheetmail/internal/sheets"
)

var ErrNoEmailColumn = errors.New("no email column in sheet headers")

// Params describes one campaign. Immutable once a run or scheduled job
// has captured it.
type Params struct {
	SpreadsheetID string        `json:"spreadsheet_id"`
	SheetTitle    string        `json:"sheet_title,omitempty"`
	Subject       string        `json:"subject"`
	Body          string        `json:"body"`
	From          string        `json:"from,omitempty"`
	Attachments   []string      `json:"attachments,omitempty"`
	Delay         time.Duration `json:"delay"`
	UseSignature  bool          `json:"use_signature"`
	StartAt       time.Time     `json:"start_at,omitempty"`
}

// Summary counts row outcomes for one run.
type Summary struct {
	Attempted int
	Sent      int
	Failed    int
	Skipped   int
}

// Runner executes campaigns one row at a time: render, build, send,
// status write-back, pacing. Row failures are isolated; every row is
// attempted exactly once.
type Runner struct {
	Gmail  gc.Client
	Sheets sheets.Client
	Status *sheets.StatusWriter
	Log    *slog.Logger
	Pace   pace.Pacer
}

func (r *Runner) Run(ctx context.Context, p Params) (Summary, error) {
	snap, title, err := sheets.Load(ctx, r.Sheets, p.SpreadsheetID, p.SheetTitle)
	if err != nil {
		return Summary{}, err
	}

	emailCol := -1
	for i, h := range snap.Headers {
		if strings.Contains(strings.ToLower(h), "email") {
			emailCol = i
			break
		}
	}
	if emailCol < 0 {
		return Summary{}, ErrNoEmailColumn
	}

	signature := ""
	if p.UseSignature {
		signature = r.primarySignature(ctx)
	}

	statusCol, _ := r.Status.EnsureColumn(ctx, p.SpreadsheetID, title, snap.Headers)

	var sum Summary
	for i, row := range snap.Rows {
		recipient := strings.TrimSpace(snap.Cell(row, emailCol))
		if recipient == "" {
			sum.Skipped++
			continue
		}
		if sum.Attempted > 0 {
			if err := r.Pace.Wait(ctx); err != nil {
				return sum, err
			}
		}
		sum.Attempted++

		if !strings.Contains(recipient, "@") {
			sum.Failed++
			r.Log.Error("invalid recipient address",
				"recipient", recipient, "row", i, "sheet", p.SpreadsheetID)
			r.Status.Write(ctx, p.SpreadsheetID, title, statusCol, i, "FAILED: invalid recipient address")
			continue
		}

		subject := merge.Render(p.Subject, snap.Headers, row)
		body := merge.Render(p.Body, snap.Headers, row)
		body = merge.AppendSignature(body, signature)
		raw := merge.EncodeRaw(merge.Build(r.Log, p.From, recipient, subject, body, p.Attachments))

		id, err := r.Gmail.Send(ctx, raw)
		if err != nil {
			sum.Failed++
			r.Log.Error("send failed",
				"recipient", recipient, "row", i, "sheet", p.SpreadsheetID, "error", err)
			r.Status.Write(ctx, p.SpreadsheetID, title, statusCol, i, "FAILED: "+firstLine(err.Error()))
			continue
		}
		sum.Sent++
		r.Log.Info("sent", "recipient", recipient, "row", i, "id", string(id))
		r.Status.Write(ctx, p.SpreadsheetID, title, statusCol, i, "SENT")
	}

	r.Log.Info("campaign complete",
		"sheet", p.SpreadsheetID,
		"attempted", sum.Attempted, "sent", sum.Sent,
		"failed", sum.Failed, "skipped", sum.Skipped)
	return sum, nil
}

// primarySignature fetches the account's primary send-as signature.
// Best-effort: any failure means no signature, not a failed run.
func (r *Runner) primarySignature(ctx context.Context) string {
	aliases, err := r.Gmail.ListSendAs(ctx)
	if err != nil {
		r.Log.Warn("cannot fetch send-as signature", "error", err)
		return ""
	}
	return gc.PrimarySignature(aliases)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
