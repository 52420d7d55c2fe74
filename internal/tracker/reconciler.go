package tracker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wonny/sheetalert/internal/contracts"
	"github.com/wonny/sheetalert/pkg/logger"
)

// ErrMismatchedInput is returned when symbols and bounds differ in length
var ErrMismatchedInput = errors.New("symbols and bounds must have equal length")

// Reconciler owns the Sheet/Stock/Binding aggregate. It is the only writer
// of Sheet.StockIDs and Stock.SheetIDs, so the reverse index stays in step
// with every sheet's stock list.
//
// Mutations span several store calls and are not atomic. Callers must not
// reconcile or delete the same sheet concurrently.
// ⭐ SSOT: 역인덱스(Stock.SheetIDs) 변경은 이 구조체에서만
type Reconciler struct {
	store  contracts.Store
	prices contracts.PriceSource
	logger *logger.Logger
}

// NewReconciler creates a new reconciler
func NewReconciler(store contracts.Store, prices contracts.PriceSource, log *logger.Logger) *Reconciler {
	return &Reconciler{
		store:  store,
		prices: prices,
		logger: log,
	}
}

// NormalizeSymbol case-folds a ticker into its canonical key
func NormalizeSymbol(symbol string) string {
	return strings.ToLower(strings.TrimSpace(symbol))
}

// Reconcile brings the stored state of a sheet in line with the symbols and
// bounds read from it. It returns the price of every input symbol in input
// order (nil when unknown) and the sheet's new last-updated time. A nil
// title leaves the stored title untouched.
func (r *Reconciler) Reconcile(
	ctx context.Context,
	sheetID string,
	symbols []string,
	lowerBounds, upperBounds []float64,
	title *string,
) ([]*float64, time.Time, error) {
	if len(symbols) != len(lowerBounds) || len(symbols) != len(upperBounds) {
		return nil, time.Time{}, ErrMismatchedInput
	}

	normalized := make([]string, len(symbols))
	for i, s := range symbols {
		normalized[i] = NormalizeSymbol(s)
	}

	sheet, err := r.store.GetSheet(ctx, sheetID)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("get sheet %s: %w", sheetID, err)
	}

	batch := &contracts.Batch{}
	keys := &contracts.Keys{}

	if err := r.detachRemoved(ctx, sheet, toSet(normalized), batch, keys); err != nil {
		return nil, time.Time{}, err
	}

	prices, err := r.attach(ctx, sheet, normalized, lowerBounds, upperBounds, batch)
	if err != nil {
		return nil, time.Time{}, err
	}

	sheet.StockIDs = normalized
	if title != nil {
		sheet.Title = *title
	}
	batch.Sheets = append(batch.Sheets, sheet)

	if err := r.commit(ctx, batch, keys); err != nil {
		return nil, time.Time{}, err
	}

	r.logger.WithFields(map[string]interface{}{
		"ssheet_id": sheetID,
		"symbols":   len(normalized),
		"written":   batch.Len(),
		"deleted":   keys.Len(),
	}).Debug("Sheet reconciled")

	return prices, sheet.LastUpdated, nil
}

// CreateSheet registers a freshly created spreadsheet to its first owner
func (r *Reconciler) CreateSheet(ctx context.Context, sheetID, userID, title string) (*contracts.Sheet, error) {
	user, err := r.store.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", userID, err)
	}

	sheet := &contracts.Sheet{
		ID:       sheetID,
		Title:    title,
		StockIDs: []string{},
		UserIDs:  []string{userID},
	}
	if !containsID(user.SheetIDs, sheetID) {
		user.SheetIDs = append(user.SheetIDs, sheetID)
	}

	batch := &contracts.Batch{
		Users:  []*contracts.User{user},
		Sheets: []*contracts.Sheet{sheet},
	}
	if err := r.store.Put(ctx, batch); err != nil {
		return nil, fmt.Errorf("put sheet %s: %w", sheetID, err)
	}

	return sheet, nil
}

// DeleteSheet removes a sheet, detaches it from every owner and cascades
// binding and stock cleanup.
func (r *Reconciler) DeleteSheet(ctx context.Context, sheetID string) error {
	sheet, err := r.store.GetSheet(ctx, sheetID)
	if err != nil {
		return fmt.Errorf("get sheet %s: %w", sheetID, err)
	}

	batch := &contracts.Batch{}
	keys := &contracts.Keys{}

	if err := r.detachRemoved(ctx, sheet, map[string]struct{}{}, batch, keys); err != nil {
		return err
	}

	for _, userID := range sheet.UserIDs {
		user, err := r.store.GetUser(ctx, userID)
		if errors.Is(err, contracts.ErrNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("get user %s: %w", userID, err)
		}
		user.SheetIDs = removeID(user.SheetIDs, sheetID)
		batch.Users = append(batch.Users, user)
	}

	keys.Sheets = append(keys.Sheets, sheetID)

	if err := r.commit(ctx, batch, keys); err != nil {
		return err
	}

	r.logger.WithFields(map[string]interface{}{
		"ssheet_id": sheetID,
		"owners":    len(sheet.UserIDs),
	}).Info("Sheet deleted")

	return nil
}

// detachRemoved drops the bindings of symbols no longer listed on the sheet
// and removes the sheet from those stocks' reverse index. Stocks nobody
// references any more are deleted.
func (r *Reconciler) detachRemoved(
	ctx context.Context,
	sheet *contracts.Sheet,
	keep map[string]struct{},
	batch *contracts.Batch,
	keys *contracts.Keys,
) error {
	seen := make(map[string]struct{}, len(sheet.StockIDs))

	for _, symbol := range sheet.StockIDs {
		if _, ok := keep[symbol]; ok {
			continue
		}
		if _, ok := seen[symbol]; ok {
			continue
		}
		seen[symbol] = struct{}{}

		keys.Bindings = append(keys.Bindings, contracts.BindingKey{SheetID: sheet.ID, Symbol: symbol})

		stock, err := r.store.GetStock(ctx, symbol)
		if errors.Is(err, contracts.ErrNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("get stock %s: %w", symbol, err)
		}

		if !containsID(stock.SheetIDs, sheet.ID) {
			continue
		}
		stock.SheetIDs = removeID(stock.SheetIDs, sheet.ID)
		if len(stock.SheetIDs) == 0 {
			keys.Stocks = append(keys.Stocks, stock.ID)
		} else {
			batch.Stocks = append(batch.Stocks, stock)
		}
	}

	return nil
}

// attach makes sure every listed symbol has a stock referencing the sheet
// and a binding carrying the supplied bounds. Only entities that actually
// changed are added to the batch.
func (r *Reconciler) attach(
	ctx context.Context,
	sheet *contracts.Sheet,
	symbols []string,
	lowerBounds, upperBounds []float64,
	batch *contracts.Batch,
) ([]*float64, error) {
	stocks := make(map[string]*contracts.Stock, len(symbols))
	stockChanged := make(map[string]bool, len(symbols))
	bindings := make(map[string]*contracts.Binding, len(symbols))
	bindingChanged := make(map[string]bool, len(symbols))
	var unpriced []string

	for i, symbol := range symbols {
		stock, ok := stocks[symbol]
		if !ok {
			var created bool
			var err error
			stock, created, err = r.getOrCreateStock(ctx, symbol)
			if err != nil {
				return nil, err
			}
			stocks[symbol] = stock
			stockChanged[symbol] = created
			if stock.Price == nil {
				unpriced = append(unpriced, symbol)
			}
		}

		if !containsID(stock.SheetIDs, sheet.ID) {
			stock.SheetIDs = append(stock.SheetIDs, sheet.ID)
			stockChanged[symbol] = true
		}

		binding, ok := bindings[symbol]
		if !ok {
			var created bool
			var err error
			binding, created, err = r.getOrCreateBinding(ctx, sheet.ID, symbol, lowerBounds[i], upperBounds[i])
			if err != nil {
				return nil, err
			}
			bindings[symbol] = binding
			bindingChanged[symbol] = created
		}

		if binding.BoundLower != lowerBounds[i] {
			binding.BoundLower = lowerBounds[i]
			bindingChanged[symbol] = true
		}
		if binding.BoundUpper != upperBounds[i] {
			binding.BoundUpper = upperBounds[i]
			bindingChanged[symbol] = true
		}
	}

	if len(unpriced) > 0 {
		quoted, err := r.prices.Fetch(ctx, unpriced)
		if err != nil {
			return nil, fmt.Errorf("fetch prices: %w", err)
		}
		for _, symbol := range unpriced {
			if p, ok := quoted[symbol]; ok {
				stocks[symbol].Price = contracts.Price(p)
				stockChanged[symbol] = true
			}
		}
	}

	prices := make([]*float64, len(symbols))
	queued := make(map[string]bool, len(symbols))
	for i, symbol := range symbols {
		prices[i] = stocks[symbol].Price

		if queued[symbol] {
			continue
		}
		queued[symbol] = true
		if stockChanged[symbol] {
			batch.Stocks = append(batch.Stocks, stocks[symbol])
		}
		if bindingChanged[symbol] {
			batch.Bindings = append(batch.Bindings, bindings[symbol])
		}
	}

	return prices, nil
}

func (r *Reconciler) getOrCreateStock(ctx context.Context, symbol string) (*contracts.Stock, bool, error) {
	stock, err := r.store.GetStock(ctx, symbol)
	if errors.Is(err, contracts.ErrNotFound) {
		return &contracts.Stock{ID: symbol}, true, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get stock %s: %w", symbol, err)
	}
	return stock, false, nil
}

func (r *Reconciler) getOrCreateBinding(ctx context.Context, sheetID, symbol string, lower, upper float64) (*contracts.Binding, bool, error) {
	key := contracts.BindingKey{SheetID: sheetID, Symbol: symbol}
	binding, err := r.store.GetBinding(ctx, key)
	if errors.Is(err, contracts.ErrNotFound) {
		return &contracts.Binding{SheetID: sheetID, Symbol: symbol, BoundLower: lower, BoundUpper: upper}, true, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get binding %s/%s: %w", sheetID, symbol, err)
	}
	return binding, false, nil
}

// commit writes the batch, then removes the keys
func (r *Reconciler) commit(ctx context.Context, batch *contracts.Batch, keys *contracts.Keys) error {
	if err := r.store.Put(ctx, batch); err != nil {
		return fmt.Errorf("put entities: %w", err)
	}
	if err := r.store.Delete(ctx, keys); err != nil {
		return fmt.Errorf("delete entities: %w", err)
	}
	return nil
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func removeID(ids []string, id string) []string {
	out := ids[:0:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
