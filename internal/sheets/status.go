package sheets

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// StatusUnavailable marks a sheet where the status column could not be
// created (typically insufficient permission). Writes against it are
// silently skipped.
const StatusUnavailable = -1

const statusHeader = "Status"

// StatusWriter records per-row delivery status back into the sheet.
// Every operation is best-effort: failures are logged and never abort
// the campaign that triggered them.
type StatusWriter struct {
	Client Client
	Log    *slog.Logger
}

// EnsureColumn locates the "Status" header (case-insensitive, trimmed),
// appending it and writing the header row back when absent. It returns
// the 0-based column index and the header list actually in effect, or
// StatusUnavailable when the header write-back fails.
func (w *StatusWriter) EnsureColumn(ctx context.Context, spreadsheetID, title string, headers []string) (int, []string) {
	for i, h := range headers {
		if strings.EqualFold(strings.TrimSpace(h), statusHeader) {
			return i, headers
		}
	}
	extended := append(append([]string(nil), headers...), statusHeader)
	rng := fmt.Sprintf("%s!A1", title)
	if err := w.Client.Update(ctx, spreadsheetID, rng, [][]string{extended}); err != nil {
		w.Log.Warn("cannot create status column, status writes disabled",
			"sheet", spreadsheetID, "error", err)
		return StatusUnavailable, headers
	}
	return len(extended) - 1, extended
}

// Write puts status into the status cell for the given 0-based data row
// (sheet row = index + 2). A col of StatusUnavailable is a no-op.
func (w *StatusWriter) Write(ctx context.Context, spreadsheetID, title string, col, rowIndex int, status string) {
	if col == StatusUnavailable {
		return
	}
	rng := fmt.Sprintf("%s!%s%d", title, ColumnLetter(col), rowIndex+2)
	if err := w.Client.Update(ctx, spreadsheetID, rng, [][]string{{status}}); err != nil {
		w.Log.Warn("status write failed",
			"sheet", spreadsheetID, "row", rowIndex, "error", err)
	}
}
