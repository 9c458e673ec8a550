package gmail

type MessageID string

// SendAs is one verified outgoing identity configured on the account.
type SendAs struct {
	Email     string
	Name      string
	IsPrimary bool
	Signature string // HTML, as stored by the provider
}

// PrimarySignature returns the signature of the primary send-as alias,
// or "" when the account has none.
func PrimarySignature(aliases []SendAs) string {
	for _, a := range aliases {
		if a.IsPrimary {
			return a.Signature
		}
	}
	return ""
}
