package contracts

import "context"

// Batch lists entities written in one call. Sheets have LastUpdated
// advanced by the store on every write.
type Batch struct {
	Users    []*User
	Sheets   []*Sheet
	Stocks   []*Stock
	Bindings []*Binding
}

// Len returns the number of entities in the batch
func (b *Batch) Len() int {
	return len(b.Users) + len(b.Sheets) + len(b.Stocks) + len(b.Bindings)
}

// Keys lists entities removed in one call
type Keys struct {
	Users    []string
	Sheets   []string
	Stocks   []string
	Bindings []BindingKey
}

// Len returns the number of keys
func (k *Keys) Len() int {
	return len(k.Users) + len(k.Sheets) + len(k.Stocks) + len(k.Bindings)
}

// Store persists the entity kinds. Each Put and Delete is atomic on its own;
// there are no transactions spanning calls. Getters return ErrNotFound for
// missing entities.
// ⭐ SSOT: 저장소 인터페이스는 여기서만 정의
type Store interface {
	GetUser(ctx context.Context, id string) (*User, error)
	GetSheet(ctx context.Context, id string) (*Sheet, error)
	GetStock(ctx context.Context, id string) (*Stock, error)
	GetBinding(ctx context.Context, key BindingKey) (*Binding, error)

	ListSheets(ctx context.Context) ([]*Sheet, error)
	ListStocks(ctx context.Context) ([]*Stock, error)
	ListUsersToNotify(ctx context.Context) ([]*User, error)

	Put(ctx context.Context, batch *Batch) error
	Delete(ctx context.Context, keys *Keys) error

	// SetPrices overwrites only the price of existing stocks, keyed by
	// symbol. A nil price clears it; unknown symbols are ignored.
	SetPrices(ctx context.Context, prices map[string]*float64) error
}
