package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wonny/sheetalert/internal/auth"
	"github.com/wonny/sheetalert/internal/contracts"
	"github.com/wonny/sheetalert/internal/realtime"
	"github.com/wonny/sheetalert/internal/store/memory"
	"github.com/wonny/sheetalert/internal/tracker"
	"github.com/wonny/sheetalert/pkg/logger"
)

type fakeSource struct {
	prices map[string]float64
}

func (f *fakeSource) Fetch(ctx context.Context, symbols []string) (map[string]float64, error) {
	out := make(map[string]float64)
	for _, s := range symbols {
		if p, ok := f.prices[s]; ok {
			out[s] = p
		}
	}
	return out, nil
}

// fakeSheets serves one region per sheet id and records writes
type fakeSheets struct {
	mu      sync.Mutex
	regions map[string]*contracts.UserRegion
	titles  map[string]string
	errs    map[string]error
	written map[string][]*float64
	created int
}

func newFakeSheets() *fakeSheets {
	return &fakeSheets{
		regions: make(map[string]*contracts.UserRegion),
		titles:  make(map[string]string),
		errs:    make(map[string]error),
		written: make(map[string][]*float64),
	}
}

func (f *fakeSheets) Open(ctx context.Context, creds contracts.Credentials) (contracts.SheetClient, error) {
	return f, nil
}

func (f *fakeSheets) ReadUserRegion(ctx context.Context, sheetID string) (*contracts.UserRegion, error) {
	if err := f.errs[sheetID]; err != nil {
		return nil, err
	}
	if r, ok := f.regions[sheetID]; ok {
		return r, nil
	}
	return &contracts.UserRegion{}, nil
}

func (f *fakeSheets) ReadTitle(ctx context.Context, sheetID string) (string, error) {
	return f.titles[sheetID], nil
}

func (f *fakeSheets) WritePrices(ctx context.Context, sheetID string, prices []*float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.written[sheetID] = prices
	return nil
}

func (f *fakeSheets) CreateSheet(ctx context.Context, title string) (string, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created++
	return "new-sheet", title, nil
}

type fakeEvents struct {
	mu     sync.Mutex
	events []realtime.Event
	users  [][]string
}

func (f *fakeEvents) Publish(userIDs []string, ev realtime.Event) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users = append(f.users, userIDs)
	f.events = append(f.events, ev)
	return len(userIDs)
}

// fixture wires the sheet handlers over a memory store
type fixture struct {
	store      *memory.Store
	source     *fakeSource
	sheets     *fakeSheets
	events     *fakeEvents
	accounts   *tracker.Accounts
	reconciler *tracker.Reconciler
	handler    *SheetHandler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:  memory.New(),
		source: &fakeSource{prices: map[string]float64{"goog": 10, "aapl": 20}},
		sheets: newFakeSheets(),
		events: &fakeEvents{},
	}
	f.accounts = tracker.NewAccounts(f.store, logger.Nop())
	f.reconciler = tracker.NewReconciler(f.store, f.source, logger.Nop())
	f.handler = NewSheetHandler(f.accounts, f.reconciler, f.sheets, f.events, logger.Nop())
	return f
}

// register creates userID and a sheet owned by it
func (f *fixture) register(t *testing.T, userID, sheetID string) {
	t.Helper()
	ctx := context.Background()
	_, err := f.accounts.GetOrCreateUser(ctx, userID)
	require.NoError(t, err)
	_, err = f.reconciler.CreateSheet(ctx, sheetID, userID, "Tracker")
	require.NoError(t, err)
}

func asUser(req *http.Request, userID string) *http.Request {
	return req.WithContext(auth.WithIdentity(req.Context(), auth.Identity{
		UserID:      userID,
		Email:       userID + "@example.com",
		Credentials: contracts.Credentials(`{"access_token":"x"}`),
	}))
}

func jsonRequest(t *testing.T, method, path string, body interface{}) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(body))
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}
