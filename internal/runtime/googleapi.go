// Package runtime adapts the Google API services to the narrow
// interfaces the rest of sheetmail consumes.
package runtime

import (
	"context"
	"fmt"

	gmailapi "google.golang.org/api/gmail/v1"
	sheetsapi "google.golang.org/api/sheets/v4"

	gc "github.com/unfoldedlabs/sheetmail/internal/gmail"
	sc "github.com/unfoldedlabs/sheetmail/internal/sheets"
)

type gmailClient struct{ svc *gmailapi.Service }

func NewGmailClient(svc *gmailapi.Service) gc.Client { return &gmailClient{svc} }

func (g *gmailClient) Send(ctx context.Context, raw string) (gc.MessageID, error) {
	msg, err := g.svc.Users.Messages.Send("me", &gmailapi.Message{Raw: raw}).Context(ctx).Do()
	if err != nil {
		return "", err
	}
	return gc.MessageID(msg.Id), nil
}

func (g *gmailClient) ListSendAs(ctx context.Context) ([]gc.SendAs, error) {
	res, err := g.svc.Users.Settings.SendAs.List("me").Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	var aliases []gc.SendAs
	for _, a := range res.SendAs {
		if a.VerificationStatus != "accepted" && !a.IsPrimary {
			continue
		}
		aliases = append(aliases, gc.SendAs{
			Email:     a.SendAsEmail,
			Name:      a.DisplayName,
			IsPrimary: a.IsPrimary,
			Signature: a.Signature,
		})
	}
	return aliases, nil
}

func (g *gmailClient) Profile(ctx context.Context) (string, error) {
	profile, err := g.svc.Users.GetProfile("me").Context(ctx).Do()
	if err != nil {
		return "", err
	}
	return profile.EmailAddress, nil
}

type sheetsClient struct{ svc *sheetsapi.Service }

func NewSheetsClient(svc *sheetsapi.Service) sc.Client { return &sheetsClient{svc} }

func (s *sheetsClient) Tabs(ctx context.Context, spreadsheetID string) ([]string, error) {
	meta, err := s.svc.Spreadsheets.Get(spreadsheetID).
		Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	var tabs []string
	for _, sh := range meta.Sheets {
		if sh.Properties != nil {
			tabs = append(tabs, sh.Properties.Title)
		}
	}
	return tabs, nil
}

func (s *sheetsClient) Values(ctx context.Context, spreadsheetID, rng string) ([][]string, error) {
	res, err := s.svc.Spreadsheets.Values.Get(spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	rows := make([][]string, 0, len(res.Values))
	for _, row := range res.Values {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = cellString(v)
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

func (s *sheetsClient) Update(ctx context.Context, spreadsheetID, rng string, values [][]string) error {
	body := &sheetsapi.ValueRange{Values: make([][]any, len(values))}
	for i, row := range values {
		cells := make([]any, len(row))
		for j, v := range row {
			cells[j] = v
		}
		body.Values[i] = cells
	}
	_, err := s.svc.Spreadsheets.Values.Update(spreadsheetID, rng, body).
		ValueInputOption("RAW").Context(ctx).Do()
	return err
}

func cellString(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
