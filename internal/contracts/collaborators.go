package contracts

import "context"

// PriceSource returns current prices keyed by lowercased symbol. Unknown
// symbols are omitted from the result.
type PriceSource interface {
	Fetch(ctx context.Context, symbols []string) (map[string]float64, error)
}

// Credentials is an opaque, serialized OAuth token
type Credentials []byte

// CredentialProvider resolves the credentials used to act on a sheet
type CredentialProvider interface {
	ForUser(ctx context.Context, userID string) (Credentials, error)
	ForSheet(ctx context.Context, sheetID string) (Credentials, error)
}

// UserRegion is the user editable part of a spreadsheet
type UserRegion struct {
	Symbols     []string
	LowerBounds []float64
	UpperBounds []float64
}

// SheetClient talks to one spreadsheet backend with one set of credentials.
// Errors are *SheetError values.
type SheetClient interface {
	ReadUserRegion(ctx context.Context, sheetID string) (*UserRegion, error)
	ReadTitle(ctx context.Context, sheetID string) (string, error)
	WritePrices(ctx context.Context, sheetID string, prices []*float64) error
	CreateSheet(ctx context.Context, title string) (sheetID string, createdTitle string, err error)
}

// SheetService opens sheet clients bound to credentials
type SheetService interface {
	Open(ctx context.Context, creds Credentials) (SheetClient, error)
}

// Mailer delivers one plain-text message
type Mailer interface {
	Send(ctx context.Context, recipient, subject, body string) error
}
