package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/wonny/sheetalert/internal/contracts"
)

// Store is an in-process contracts.Store. Entities are copied on the way in
// and out so callers get the same read-modify-write semantics as the
// database backed store.
type Store struct {
	mu       sync.RWMutex
	users    map[string]*contracts.User
	sheets   map[string]*contracts.Sheet
	stocks   map[string]*contracts.Stock
	bindings map[contracts.BindingKey]*contracts.Binding
	now      func() time.Time
}

// New creates an empty store
func New() *Store {
	return &Store{
		users:    make(map[string]*contracts.User),
		sheets:   make(map[string]*contracts.Sheet),
		stocks:   make(map[string]*contracts.Stock),
		bindings: make(map[contracts.BindingKey]*contracts.Binding),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the clock used for Sheet.LastUpdated
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) GetUser(ctx context.Context, id string) (*contracts.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, contracts.ErrNotFound
	}
	return cloneUser(u), nil
}

func (s *Store) GetSheet(ctx context.Context, id string) (*contracts.Sheet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sh, ok := s.sheets[id]
	if !ok {
		return nil, contracts.ErrNotFound
	}
	return cloneSheet(sh), nil
}

func (s *Store) GetStock(ctx context.Context, id string) (*contracts.Stock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.stocks[id]
	if !ok {
		return nil, contracts.ErrNotFound
	}
	return cloneStock(st), nil
}

func (s *Store) GetBinding(ctx context.Context, key contracts.BindingKey) (*contracts.Binding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.bindings[key]
	if !ok {
		return nil, contracts.ErrNotFound
	}
	copied := *b
	return &copied, nil
}

func (s *Store) ListSheets(ctx context.Context) ([]*contracts.Sheet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*contracts.Sheet, 0, len(s.sheets))
	for _, sh := range s.sheets {
		out = append(out, cloneSheet(sh))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ListStocks(ctx context.Context) ([]*contracts.Stock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*contracts.Stock, 0, len(s.stocks))
	for _, st := range s.stocks {
		out = append(out, cloneStock(st))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ListUsersToNotify(ctx context.Context) ([]*contracts.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*contracts.User, 0)
	for _, u := range s.users {
		if u.Notify {
			out = append(out, cloneUser(u))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) Put(ctx context.Context, batch *contracts.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range batch.Users {
		s.users[u.ID] = cloneUser(u)
	}
	now := s.now()
	for _, sh := range batch.Sheets {
		sh.LastUpdated = now
		s.sheets[sh.ID] = cloneSheet(sh)
	}
	for _, st := range batch.Stocks {
		s.stocks[st.ID] = cloneStock(st)
	}
	for _, b := range batch.Bindings {
		copied := *b
		s.bindings[b.Key()] = &copied
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, keys *contracts.Keys) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range keys.Users {
		delete(s.users, id)
	}
	for _, id := range keys.Sheets {
		delete(s.sheets, id)
	}
	for _, id := range keys.Stocks {
		delete(s.stocks, id)
	}
	for _, k := range keys.Bindings {
		delete(s.bindings, k)
	}
	return nil
}

func (s *Store) SetPrices(ctx context.Context, prices map[string]*float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, p := range prices {
		st, ok := s.stocks[id]
		if !ok {
			continue
		}
		st.Price = nil
		if p != nil {
			st.Price = contracts.Price(*p)
		}
	}
	return nil
}

func cloneIDs(ids []string) []string {
	if ids == nil {
		return nil
	}
	return append([]string(nil), ids...)
}

func cloneUser(u *contracts.User) *contracts.User {
	c := *u
	c.SheetIDs = cloneIDs(u.SheetIDs)
	if u.Credentials != nil {
		c.Credentials = append([]byte(nil), u.Credentials...)
	}
	return &c
}

func cloneSheet(sh *contracts.Sheet) *contracts.Sheet {
	c := *sh
	c.StockIDs = cloneIDs(sh.StockIDs)
	c.UserIDs = cloneIDs(sh.UserIDs)
	return &c
}

func cloneStock(st *contracts.Stock) *contracts.Stock {
	c := *st
	c.SheetIDs = cloneIDs(st.SheetIDs)
	if st.Price != nil {
		c.Price = contracts.Price(*st.Price)
	}
	return &c
}
