package sheets

import "context"

// Client is the narrow Sheets surface required by sheetmail. Values are
// display strings; the adapter coerces whatever the provider returns.
type Client interface {
	// Tabs lists the spreadsheet's sheet tab titles in document order.
	Tabs(ctx context.Context, spreadsheetID string) ([]string, error)
	Values(ctx context.Context, spreadsheetID, rng string) ([][]string, error)
	Update(ctx context.Context, spreadsheetID, rng string, values [][]string) error
}
