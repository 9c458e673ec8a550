package gmail

import "context"

// Client is the narrow Gmail surface required by sheetmail.
type Client interface {
	// Send submits a base64url-encoded raw message and returns the
	// provider-assigned message id.
	Send(ctx context.Context, raw string) (MessageID, error)
	ListSendAs(ctx context.Context) ([]SendAs, error)
	// Profile returns the authenticated account's primary address.
	Profile(ctx context.Context) (string, error)
}
