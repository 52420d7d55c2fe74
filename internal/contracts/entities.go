package contracts

import "time"

// ⭐ SSOT: 엔티티 정의는 여기서만

// User is an authenticated account. Created lazily on first login.
type User struct {
	ID          string   `json:"id"`
	Email       string   `json:"email"`
	Notify      bool     `json:"notify"`
	Credentials []byte   `json:"-"`
	SheetIDs    []string `json:"sheet_ids"`
}

// Sheet is a registered spreadsheet. StockIDs mirror the spreadsheet row order.
type Sheet struct {
	ID          string    `json:"ssheet_id"`
	Title       string    `json:"title"`
	LastUpdated time.Time `json:"last_updated"`
	StockIDs    []string  `json:"stock_ids"`
	UserIDs     []string  `json:"user_ids"`
}

// Stock is a lowercased symbol with its last known price. SheetIDs is the
// reverse index of every sheet currently listing the symbol.
type Stock struct {
	ID       string   `json:"id"`
	Price    *float64 `json:"price"`
	SheetIDs []string `json:"sheet_ids"`
}

// BindingKey identifies the bounds a sheet configured for one symbol
type BindingKey struct {
	SheetID string
	Symbol  string
}

// Binding holds the user chosen alert bounds for a (sheet, symbol) pair
type Binding struct {
	SheetID    string  `json:"ssheet_id"`
	Symbol     string  `json:"symbol"`
	BoundLower float64 `json:"bound_lower"`
	BoundUpper float64 `json:"bound_upper"`
}

// Key returns the composite key of the binding
func (b *Binding) Key() BindingKey {
	return BindingKey{SheetID: b.SheetID, Symbol: b.Symbol}
}

// Price returns a pointer to v, for setting optional prices
func Price(v float64) *float64 {
	return &v
}

// SamePrice reports whether two optional prices are equal, treating two
// unset prices as equal and set/unset as different.
func SamePrice(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// PriceChange records a stock price transition during an update pass
type PriceChange struct {
	Old *float64
	New *float64
}

// Alert is a directional bound crossing
type Alert struct {
	Lower float64
	Upper float64
	Old   float64
	New   float64
}

// SymbolAlert is an alert attached to its symbol
type SymbolAlert struct {
	Symbol string
	Alert  Alert
}

// SheetAlerts groups the alerts raised for one sheet, in sheet row order
type SheetAlerts struct {
	SheetID string
	Title   string
	Alerts  []SymbolAlert
}

// UserAlerts groups everything one user is notified about in a pass
type UserAlerts struct {
	UserID string
	Email  string
	Sheets []SheetAlerts
}

// Email is a composed notification ready for the mail transport
type Email struct {
	Recipient string
	Body      string
}

// DatetimeFormat renders sheet timestamps for clients (month-day-year hour:minute)
const DatetimeFormat = "01-02-2006 15:04"
