package sheets

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

var ErrEmptySheet = errors.New("sheet has no data")

// Snapshot is one fresh read of a sheet: the header row plus all data
// rows. Rows may be shorter than the header row; Cell pads with "".
// Row indices are 0-based over Rows; the matching sheet row is index+2
// (1-indexed sheet, one header row).
type Snapshot struct {
	Headers []string
	Rows    [][]string
}

// Cell returns the value of column col in row, or "" when the row is
// shorter than the header list.
func (s Snapshot) Cell(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return row[col]
}

// Load reads a full snapshot of the given sheet. An empty title resolves
// to the first tab. The resolved title is returned so status writes can
// address the same tab.
func Load(ctx context.Context, c Client, spreadsheetID, title string) (Snapshot, string, error) {
	if title == "" {
		tabs, err := c.Tabs(ctx, spreadsheetID)
		if err != nil {
			return Snapshot{}, "", fmt.Errorf("list sheet tabs: %w", err)
		}
		if len(tabs) == 0 {
			return Snapshot{}, "", ErrEmptySheet
		}
		title = tabs[0]
	}
	values, err := c.Values(ctx, spreadsheetID, title)
	if err != nil {
		return Snapshot{}, "", fmt.Errorf("read sheet values: %w", err)
	}
	if len(values) == 0 {
		return Snapshot{}, "", ErrEmptySheet
	}
	return Snapshot{Headers: values[0], Rows: values[1:]}, title, nil
}

var sheetIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9-_]+)`),
	regexp.MustCompile(`[?&]key=([a-zA-Z0-9-_]+)`),
	regexp.MustCompile(`^([a-zA-Z0-9-_]+)$`),
}

// ExtractSheetID accepts a full Sheets URL or a bare spreadsheet id and
// returns the id, or "" when neither form matches.
func ExtractSheetID(s string) string {
	for _, p := range sheetIDPatterns {
		if m := p.FindStringSubmatch(s); m != nil {
			return m[1]
		}
	}
	return ""
}

// ColumnLetter converts a 0-based column index to its A1 letter form
// (0 -> A, 25 -> Z, 26 -> AA).
func ColumnLetter(col int) string {
	letters := ""
	for col >= 0 {
		letters = string(rune('A'+col%26)) + letters
		col = col/26 - 1
	}
	return letters
}
