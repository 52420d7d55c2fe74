package tracker

import (
	"context"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/sheetalert/internal/contracts"
	"github.com/wonny/sheetalert/internal/store/memory"
)

// fakeSource serves prices from a map and records each request
type fakeSource struct {
	mu      sync.Mutex
	prices  map[string]float64
	err     error
	queries [][]string
	// onFetch runs inside Fetch, before prices are returned
	onFetch func()
}

func (f *fakeSource) Fetch(ctx context.Context, symbols []string) (map[string]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.queries = append(f.queries, append([]string(nil), symbols...))
	if f.onFetch != nil {
		f.onFetch()
	}
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]float64)
	for _, s := range symbols {
		if p, ok := f.prices[s]; ok {
			out[s] = p
		}
	}
	return out, nil
}

// recordingStore counts writes going through to a memory store and keeps
// track of which bindings are live
type recordingStore struct {
	*memory.Store
	puts    []contracts.Batch
	deletes []contracts.Keys
	prices  []map[string]*float64
	live    map[contracts.BindingKey]bool
}

func newRecordingStore() *recordingStore {
	return &recordingStore{Store: memory.New(), live: make(map[contracts.BindingKey]bool)}
}

func (s *recordingStore) Put(ctx context.Context, batch *contracts.Batch) error {
	s.puts = append(s.puts, *batch)
	for _, b := range batch.Bindings {
		s.live[b.Key()] = true
	}
	return s.Store.Put(ctx, batch)
}

func (s *recordingStore) Delete(ctx context.Context, keys *contracts.Keys) error {
	s.deletes = append(s.deletes, *keys)
	for _, k := range keys.Bindings {
		delete(s.live, k)
	}
	return s.Store.Delete(ctx, keys)
}

func (s *recordingStore) SetPrices(ctx context.Context, prices map[string]*float64) error {
	s.prices = append(s.prices, prices)
	return s.Store.SetPrices(ctx, prices)
}

// bindings returns the live bindings as read back from the store
func (s *recordingStore) bindings(t *testing.T) []*contracts.Binding {
	t.Helper()

	out := make([]*contracts.Binding, 0, len(s.live))
	for key := range s.live {
		b, err := s.GetBinding(context.Background(), key)
		require.NoError(t, err)
		out = append(out, b)
	}
	return out
}

func (s *recordingStore) reset() {
	s.puts = nil
	s.deletes = nil
	s.prices = nil
}

// fakeClient records price writes per sheet
type fakeClient struct {
	svc *fakeSheets
}

func (c *fakeClient) ReadUserRegion(ctx context.Context, sheetID string) (*contracts.UserRegion, error) {
	return &contracts.UserRegion{}, nil
}

func (c *fakeClient) ReadTitle(ctx context.Context, sheetID string) (string, error) {
	return "", nil
}

func (c *fakeClient) WritePrices(ctx context.Context, sheetID string, prices []*float64) error {
	c.svc.mu.Lock()
	defer c.svc.mu.Unlock()

	if err, ok := c.svc.failures[sheetID]; ok {
		return err
	}
	c.svc.written[sheetID] = prices
	return nil
}

func (c *fakeClient) CreateSheet(ctx context.Context, title string) (string, string, error) {
	return "new", title, nil
}

type fakeSheets struct {
	mu       sync.Mutex
	written  map[string][]*float64
	failures map[string]error
}

func newFakeSheets() *fakeSheets {
	return &fakeSheets{
		written:  make(map[string][]*float64),
		failures: make(map[string]error),
	}
}

func (f *fakeSheets) Open(ctx context.Context, creds contracts.Credentials) (contracts.SheetClient, error) {
	return &fakeClient{svc: f}, nil
}

// fakeNotifier keeps whatever it was asked to deliver
type fakeNotifier struct {
	delivered []contracts.UserAlerts
}

func (f *fakeNotifier) Notify(ctx context.Context, alerts []contracts.UserAlerts) int {
	f.delivered = append(f.delivered, alerts...)
	return len(alerts)
}

type fakePublisher struct {
	sheets []string
}

func (f *fakePublisher) SheetUpdated(ctx context.Context, sheet *contracts.Sheet, prices []*float64) {
	f.sheets = append(f.sheets, sheet.ID)
}

func putSheet(t *testing.T, s contracts.Store, id string, owners ...string) {
	t.Helper()
	ctx := context.Background()

	batch := &contracts.Batch{
		Sheets: []*contracts.Sheet{{ID: id, Title: "Sheet " + id, UserIDs: owners}},
	}
	for _, owner := range owners {
		u, err := s.GetUser(ctx, owner)
		if err != nil {
			u = &contracts.User{ID: owner, Email: owner + "@example.com", Notify: true, Credentials: []byte(`{"access_token":"x"}`)}
		}
		u.SheetIDs = append(u.SheetIDs, id)
		batch.Users = append(batch.Users, u)
	}
	require.NoError(t, s.Put(ctx, batch))
}

// assertReverseIndex checks that every stock lists exactly the sheets whose
// stock list contains it, and that bindings exist only for listed symbols.
func assertReverseIndex(t *testing.T, s *recordingStore) {
	t.Helper()
	ctx := context.Background()

	sheets, err := s.ListSheets(ctx)
	require.NoError(t, err)
	stocks, err := s.ListStocks(ctx)
	require.NoError(t, err)

	expected := make(map[string][]string)
	listed := make(map[contracts.BindingKey]bool)
	for _, sh := range sheets {
		for _, symbol := range sh.StockIDs {
			key := contracts.BindingKey{SheetID: sh.ID, Symbol: symbol}
			if listed[key] {
				continue
			}
			listed[key] = true
			expected[symbol] = append(expected[symbol], sh.ID)
		}
	}

	actual := make(map[string][]string)
	for _, st := range stocks {
		ids := append([]string(nil), st.SheetIDs...)
		sort.Strings(ids)
		actual[st.ID] = ids
	}
	for symbol := range expected {
		sort.Strings(expected[symbol])
	}
	assert.Equal(t, expected, actual, "stock reverse index")

	bindings := s.bindings(t)
	for _, b := range bindings {
		assert.True(t, listed[b.Key()], "binding %s/%s is not listed on its sheet", b.SheetID, b.Symbol)
	}
	assert.Len(t, bindings, len(listed))
}
