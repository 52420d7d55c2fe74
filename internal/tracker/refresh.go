package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wonny/sheetalert/internal/contracts"
	"github.com/wonny/sheetalert/pkg/logger"
)

// ErrPassRunning is returned when a refresh pass is already in progress
var ErrPassRunning = errors.New("refresh pass already running")

// Notifier delivers grouped alerts. Delivery failures are its own concern;
// it reports how many messages went out.
type Notifier interface {
	Notify(ctx context.Context, alerts []contracts.UserAlerts) int
}

// Publisher is told about sheets whose prices were rewritten
type Publisher interface {
	SheetUpdated(ctx context.Context, sheet *contracts.Sheet, prices []*float64)
}

// PassResult summarizes one refresh pass
type PassResult struct {
	StartedAt     time.Time `json:"started_at"`
	Duration      string    `json:"duration"`
	ChangedStocks int       `json:"changed_stocks"`
	SheetsTouched int       `json:"sheets_touched"`
	Alerts        int       `json:"alerts"`
	EmailsSent    int       `json:"emails_sent"`
	SheetsWritten int       `json:"sheets_written"`
	Skipped       []string  `json:"skipped,omitempty"`
	Failed        []string  `json:"failed,omitempty"`
}

// sheetUpdate is the planned outcome for one sheet with changed stocks
type sheetUpdate struct {
	sheet  *contracts.Sheet
	prices []*float64
	alerts []contracts.SymbolAlert
}

// Refresher runs the periodic pass: update prices, raise alerts, mail the
// owners and rewrite the price column of every affected sheet.
type Refresher struct {
	// running admits one pass at a time across the scheduler and HTTP triggers
	running sync.Mutex

	store       contracts.Store
	updater     *PriceUpdater
	creds       contracts.CredentialProvider
	sheets      contracts.SheetService
	notifier    Notifier
	publisher   Publisher
	concurrency int
	logger      *logger.Logger
}

// RefresherConfig wires the collaborators of a Refresher
type RefresherConfig struct {
	Store       contracts.Store
	Updater     *PriceUpdater
	Credentials contracts.CredentialProvider
	Sheets      contracts.SheetService
	Notifier    Notifier
	Publisher   Publisher // optional
	Concurrency int       // sheet writes in flight, minimum 1
	Logger      *logger.Logger
}

// NewRefresher creates a new refresher
func NewRefresher(cfg RefresherConfig) *Refresher {
	concurrency := cfg.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	return &Refresher{
		store:       cfg.Store,
		updater:     cfg.Updater,
		creds:       cfg.Credentials,
		sheets:      cfg.Sheets,
		notifier:    cfg.Notifier,
		publisher:   cfg.Publisher,
		concurrency: concurrency,
		logger:      cfg.Logger,
	}
}

// Run executes one pass. Price source and store failures abort the pass.
// Sheet writes fail independently of each other. A call made while another
// pass is in progress returns ErrPassRunning without doing anything.
func (r *Refresher) Run(ctx context.Context) (*PassResult, error) {
	if !r.running.TryLock() {
		return nil, ErrPassRunning
	}
	defer r.running.Unlock()

	result := &PassResult{StartedAt: time.Now()}

	quoted, changes, err := r.updater.UpdatePrices(ctx, nil)
	if err != nil {
		return nil, err
	}
	result.ChangedStocks = len(changes)

	sheets, err := r.store.ListSheets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sheets: %w", err)
	}

	updates, err := r.plan(ctx, sheets, quoted, changes)
	if err != nil {
		return nil, err
	}
	result.SheetsTouched = len(updates)

	grouped, err := r.group(ctx, updates)
	if err != nil {
		return nil, err
	}
	for _, u := range updates {
		result.Alerts += len(u.alerts)
	}
	if len(grouped) > 0 {
		result.EmailsSent = r.notifier.Notify(ctx, grouped)
	}

	r.writeAll(ctx, updates, result)

	result.Duration = time.Since(result.StartedAt).String()
	r.logger.WithFields(map[string]interface{}{
		"changed_stocks": result.ChangedStocks,
		"sheets":         result.SheetsTouched,
		"alerts":         result.Alerts,
		"emails":         result.EmailsSent,
		"written":        result.SheetsWritten,
		"skipped":        len(result.Skipped),
		"failed":         len(result.Failed),
		"duration":       result.Duration,
	}).Info("Refresh pass completed")

	return result, nil
}

// plan picks the sheets listing a changed stock and computes their price
// column and alerts.
func (r *Refresher) plan(
	ctx context.Context,
	sheets []*contracts.Sheet,
	quoted map[string]float64,
	changes map[string]contracts.PriceChange,
) ([]sheetUpdate, error) {
	var updates []sheetUpdate

	for _, sheet := range sheets {
		var changed []string
		seen := make(map[string]bool)
		for _, symbol := range sheet.StockIDs {
			if _, ok := changes[symbol]; ok && !seen[symbol] {
				seen[symbol] = true
				changed = append(changed, symbol)
			}
		}
		if len(changed) == 0 {
			continue
		}

		prices := make([]*float64, len(sheet.StockIDs))
		for i, symbol := range sheet.StockIDs {
			if p, ok := quoted[symbol]; ok {
				prices[i] = contracts.Price(p)
			}
		}

		alerts, err := r.alertsFor(ctx, sheet.ID, changed, changes)
		if err != nil {
			return nil, err
		}

		updates = append(updates, sheetUpdate{sheet: sheet, prices: prices, alerts: alerts})
	}

	return updates, nil
}

func (r *Refresher) alertsFor(
	ctx context.Context,
	sheetID string,
	symbols []string,
	changes map[string]contracts.PriceChange,
) ([]contracts.SymbolAlert, error) {
	var alerts []contracts.SymbolAlert

	for _, symbol := range symbols {
		change := changes[symbol]
		if change.Old == nil || change.New == nil {
			continue
		}

		binding, err := r.store.GetBinding(ctx, contracts.BindingKey{SheetID: sheetID, Symbol: symbol})
		if errors.Is(err, contracts.ErrNotFound) {
			r.logger.WithFields(map[string]interface{}{
				"ssheet_id": sheetID,
				"symbol":    symbol,
			}).Warn("Binding missing for listed stock")
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get binding %s/%s: %w", sheetID, symbol, err)
		}

		if alert := Evaluate(binding.BoundLower, binding.BoundUpper, *change.Old, *change.New); alert != nil {
			alerts = append(alerts, contracts.SymbolAlert{Symbol: symbol, Alert: *alert})
		}
	}

	return alerts, nil
}

// group collects alerts per notifiable owner, in order of first appearance
func (r *Refresher) group(ctx context.Context, updates []sheetUpdate) ([]contracts.UserAlerts, error) {
	hasAlerts := false
	for _, u := range updates {
		if len(u.alerts) > 0 {
			hasAlerts = true
			break
		}
	}
	if !hasAlerts {
		return nil, nil
	}

	users, err := r.store.ListUsersToNotify(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users to notify: %w", err)
	}
	notifiable := make(map[string]*contracts.User, len(users))
	for _, u := range users {
		notifiable[u.ID] = u
	}

	var grouped []contracts.UserAlerts
	index := make(map[string]int)

	for _, u := range updates {
		if len(u.alerts) == 0 {
			continue
		}
		entry := contracts.SheetAlerts{SheetID: u.sheet.ID, Title: u.sheet.Title, Alerts: u.alerts}

		for _, userID := range u.sheet.UserIDs {
			user, ok := notifiable[userID]
			if !ok {
				continue
			}
			i, ok := index[userID]
			if !ok {
				i = len(grouped)
				index[userID] = i
				grouped = append(grouped, contracts.UserAlerts{UserID: userID, Email: user.Email})
			}
			grouped[i].Sheets = append(grouped[i].Sheets, entry)
		}
	}

	return grouped, nil
}

// writeAll rewrites the price column of each sheet with a bounded number of
// writes in flight. Each worker only touches its own result slot.
func (r *Refresher) writeAll(ctx context.Context, updates []sheetUpdate, result *PassResult) {
	if len(updates) == 0 {
		return
	}

	errs := make([]error, len(updates))
	g := new(errgroup.Group)
	g.SetLimit(r.concurrency)

	for i, u := range updates {
		g.Go(func() error {
			errs[i] = r.writeSheet(ctx, u)
			return nil
		})
	}
	_ = g.Wait()

	for i, u := range updates {
		err := errs[i]
		switch {
		case err == nil:
			result.SheetsWritten++
			if r.publisher != nil {
				r.publisher.SheetUpdated(ctx, u.sheet, u.prices)
			}
		case errors.Is(err, contracts.ErrNoUsersForSheet):
			result.Skipped = append(result.Skipped, u.sheet.ID)
			r.logger.WithField("ssheet_id", u.sheet.ID).Warn("No users for sheet, skipping price write")
		default:
			result.Failed = append(result.Failed, u.sheet.ID)
			r.logger.WithFields(map[string]interface{}{
				"ssheet_id": u.sheet.ID,
				"error":     err.Error(),
			}).Error("Failed to write sheet prices")
		}
	}
}

func (r *Refresher) writeSheet(ctx context.Context, u sheetUpdate) error {
	creds, err := r.creds.ForSheet(ctx, u.sheet.ID)
	if err != nil {
		return err
	}
	client, err := r.sheets.Open(ctx, creds)
	if err != nil {
		return fmt.Errorf("open sheet client: %w", err)
	}
	return client.WritePrices(ctx, u.sheet.ID, u.prices)
}
