package campaign

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	gc "github.com/unfoldedlabs/sheetmail/internal/gmail"
	"github.com/unfoldedlabs/sheetmail/internal/sheets"
)

type fakeGmail struct {
	sent     []string // decoded raw messages, in send order
	failFor  map[string]error
	aliases  []gc.SendAs
	aliasErr error
}

func (f *fakeGmail) Send(ctx context.Context, raw string) (gc.MessageID, error) {
	_ = ctx
	decoded, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return "", fmt.Errorf("raw not base64url: %w", err)
	}
	msg := string(decoded)
	for needle, sendErr := range f.failFor {
		if strings.Contains(msg, "To: "+needle) {
			return "", sendErr
		}
	}
	f.sent = append(f.sent, msg)
	return gc.MessageID(fmt.Sprintf("m-%d", len(f.sent))), nil
}

func (f *fakeGmail) ListSendAs(ctx context.Context) ([]gc.SendAs, error) {
	_ = ctx
	return f.aliases, f.aliasErr
}

func (f *fakeGmail) Profile(ctx context.Context) (string, error) {
	_ = ctx
	return "me@x.com", nil
}

type fakeSheets struct {
	tabs    []string
	values  [][]string
	updates map[string]string // range -> value written
}

func (f *fakeSheets) Tabs(ctx context.Context, id string) ([]string, error) {
	_ = ctx
	_ = id
	return f.tabs, nil
}

func (f *fakeSheets) Values(ctx context.Context, id, rng string) ([][]string, error) {
	_ = ctx
	_ = id
	_ = rng
	return f.values, nil
}

func (f *fakeSheets) Update(ctx context.Context, id, rng string, values [][]string) error {
	_ = ctx
	_ = id
	if f.updates == nil {
		f.updates = map[string]string{}
	}
	f.updates[rng] = values[0][0]
	return nil
}

type countingPacer struct{ waits int }

func (p *countingPacer) Wait(ctx context.Context) error {
	_ = ctx
	p.waits++
	return nil
}

func slogDiscard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newRunner(gm *fakeGmail, sh *fakeSheets, p *countingPacer) *Runner {
	return &Runner{
		Gmail:  gm,
		Sheets: sh,
		Status: &sheets.StatusWriter{Client: sh, Log: slogDiscard()},
		Log:    slogDiscard(),
		Pace:   p,
	}
}

func TestRunSendsEveryRow(t *testing.T) {
	gm := &fakeGmail{}
	sh := &fakeSheets{
		tabs: []string{"People"},
		values: [][]string{
			{"Name", "Email"},
			{"Ann", "ann@x.com"},
			{"Bo", "bo@x.com"},
		},
	}
	p := &countingPacer{}

	sum, err := newRunner(gm, sh, p).Run(context.Background(), Params{
		SpreadsheetID: "sheet-1",
		Subject:       "Hi ((Name))",
		Body:          "Hello ((Name))",
	})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if sum != (Summary{Attempted: 2, Sent: 2}) {
		t.Fatalf("summary = %+v", sum)
	}
	if len(gm.sent) != 2 {
		t.Fatalf("sent %d messages", len(gm.sent))
	}
	if !strings.Contains(gm.sent[0], "Subject: Hi Ann") || !strings.Contains(gm.sent[0], "Hello Ann") {
		t.Fatalf("first message not personalized:\n%s", gm.sent[0])
	}
	if !strings.Contains(gm.sent[1], "To: bo@x.com") {
		t.Fatalf("second message wrong recipient:\n%s", gm.sent[1])
	}
	if p.waits != 1 {
		t.Fatalf("pacer waits = %d, want 1 (between two sends only)", p.waits)
	}
	// Status column appended as C; rows 0 and 1 map to sheet rows 2 and 3.
	if sh.updates["People!C2"] != "SENT" || sh.updates["People!C3"] != "SENT" {
		t.Fatalf("status writes = %v", sh.updates)
	}
}

func TestRunIsolatesRowFailure(t *testing.T) {
	gm := &fakeGmail{failFor: map[string]error{"bo@x.com": errors.New("quota exceeded")}}
	sh := &fakeSheets{
		tabs: []string{"People"},
		values: [][]string{
			{"Name", "Email"},
			{"Ann", "ann@x.com"},
			{"Bo", "bo@x.com"},
			{"Cy", "cy@x.com"},
		},
	}

	sum, err := newRunner(gm, sh, &countingPacer{}).Run(context.Background(), Params{
		SpreadsheetID: "sheet-1", Subject: "s", Body: "b",
	})
	if err != nil {
		t.Fatalf("run must not abort on a row failure: %v", err)
	}
	if sum != (Summary{Attempted: 3, Sent: 2, Failed: 1}) {
		t.Fatalf("summary = %+v", sum)
	}
	// Row 3 (Cy) was still attempted after the row 2 failure.
	if !strings.Contains(gm.sent[len(gm.sent)-1], "To: cy@x.com") {
		t.Fatalf("row after failure not attempted")
	}
	if got := sh.updates["People!C3"]; !strings.HasPrefix(got, "FAILED") {
		t.Fatalf("failed row status = %q", got)
	}
	if sh.updates["People!C4"] != "SENT" {
		t.Fatalf("status writes = %v", sh.updates)
	}
}

func TestRunSkipsEmptyRecipients(t *testing.T) {
	gm := &fakeGmail{}
	sh := &fakeSheets{
		tabs: []string{"People"},
		values: [][]string{
			{"Name", "Email"},
			{"Ann", ""},
			{"Bo"},
			{"Cy", "cy@x.com"},
		},
	}

	sum, err := newRunner(gm, sh, &countingPacer{}).Run(context.Background(), Params{
		SpreadsheetID: "sheet-1", Subject: "s", Body: "b",
	})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if sum != (Summary{Attempted: 1, Sent: 1, Skipped: 2}) {
		t.Fatalf("summary = %+v", sum)
	}
}

func TestRunCountsInvalidRecipient(t *testing.T) {
	gm := &fakeGmail{}
	sh := &fakeSheets{
		tabs:   []string{"People"},
		values: [][]string{{"Email"}, {"not-an-address"}},
	}

	sum, err := newRunner(gm, sh, &countingPacer{}).Run(context.Background(), Params{
		SpreadsheetID: "sheet-1", Subject: "s", Body: "b",
	})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if sum != (Summary{Attempted: 1, Failed: 1}) {
		t.Fatalf("summary = %+v", sum)
	}
}

func TestRunNoEmailColumn(t *testing.T) {
	sh := &fakeSheets{
		tabs:   []string{"People"},
		values: [][]string{{"Name", "Phone"}, {"Ann", "555"}},
	}
	_, err := newRunner(&fakeGmail{}, sh, &countingPacer{}).Run(context.Background(), Params{
		SpreadsheetID: "sheet-1",
	})
	if !errors.Is(err, ErrNoEmailColumn) {
		t.Fatalf("err = %v, want ErrNoEmailColumn", err)
	}
}

func TestRunEmptySheet(t *testing.T) {
	sh := &fakeSheets{tabs: []string{"People"}}
	_, err := newRunner(&fakeGmail{}, sh, &countingPacer{}).Run(context.Background(), Params{
		SpreadsheetID: "sheet-1",
	})
	if !errors.Is(err, sheets.ErrEmptySheet) {
		t.Fatalf("err = %v, want ErrEmptySheet", err)
	}
}

func TestRunAppendsSignatureOnce(t *testing.T) {
	gm := &fakeGmail{aliases: []gc.SendAs{
		{Email: "alias@x.com", Signature: "<b>Alias</b>"},
		{Email: "me@x.com", IsPrimary: true, Signature: "<b>Best, Me</b>"},
	}}
	sh := &fakeSheets{
		tabs: []string{"People"},
		values: [][]string{
			{"Email"},
			{"ann@x.com"},
			{"bo@x.com"},
		},
	}

	_, err := newRunner(gm, sh, &countingPacer{}).Run(context.Background(), Params{
		SpreadsheetID: "sheet-1", Subject: "s", Body: "hello", UseSignature: true,
	})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	for _, msg := range gm.sent {
		if !strings.Contains(msg, "hello\n\nBest, Me") {
			t.Fatalf("primary signature missing:\n%s", msg)
		}
	}
}
