package tracker

import (
	"context"
	"errors"
	"fmt"

	"github.com/wonny/sheetalert/internal/contracts"
	"github.com/wonny/sheetalert/pkg/logger"
)

// PriceUpdater refreshes stored stock prices from a price source
type PriceUpdater struct {
	store  contracts.Store
	source contracts.PriceSource
	logger *logger.Logger
}

// NewPriceUpdater creates a new price updater
func NewPriceUpdater(store contracts.Store, source contracts.PriceSource, log *logger.Logger) *PriceUpdater {
	return &PriceUpdater{
		store:  store,
		source: source,
		logger: log,
	}
}

// UpdatePrices fetches current prices for the given symbols, or every stored
// stock when symbols is nil, in a single source request. Prices that differ
// are written in one call that touches no other stock column. It returns the fetched prices and the
// changes, both keyed by symbol.
func (u *PriceUpdater) UpdatePrices(ctx context.Context, symbols []string) (map[string]float64, map[string]contracts.PriceChange, error) {
	stocks, query, err := u.load(ctx, symbols)
	if err != nil {
		return nil, nil, err
	}

	changes := make(map[string]contracts.PriceChange)
	if len(query) == 0 {
		return map[string]float64{}, changes, nil
	}

	quoted, err := u.source.Fetch(ctx, query)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch prices: %w", err)
	}

	next := make(map[string]*float64)
	for _, stock := range stocks {
		var price *float64
		if p, ok := quoted[stock.ID]; ok {
			price = contracts.Price(p)
		}
		if contracts.SamePrice(stock.Price, price) {
			continue
		}
		changes[stock.ID] = contracts.PriceChange{Old: stock.Price, New: price}
		next[stock.ID] = price
	}

	if err := u.store.SetPrices(ctx, next); err != nil {
		return nil, nil, fmt.Errorf("set prices: %w", err)
	}

	u.logger.WithFields(map[string]interface{}{
		"requested": len(query),
		"quoted":    len(quoted),
		"changed":   len(changes),
	}).Info("Stock prices updated")

	return quoted, changes, nil
}

// load returns the stored stocks to update and the lowercased, de-duplicated
// symbols to quote. Given symbols missing from the store are still quoted.
func (u *PriceUpdater) load(ctx context.Context, symbols []string) ([]*contracts.Stock, []string, error) {
	if symbols == nil {
		stocks, err := u.store.ListStocks(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("list stocks: %w", err)
		}
		query := make([]string, 0, len(stocks))
		for _, s := range stocks {
			query = append(query, s.ID)
		}
		return stocks, query, nil
	}

	stocks := make([]*contracts.Stock, 0, len(symbols))
	query := make([]string, 0, len(symbols))
	seen := make(map[string]bool, len(symbols))
	for _, symbol := range symbols {
		id := NormalizeSymbol(symbol)
		if seen[id] {
			continue
		}
		seen[id] = true
		query = append(query, id)

		stock, err := u.store.GetStock(ctx, id)
		if errors.Is(err, contracts.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, nil, fmt.Errorf("get stock %s: %w", id, err)
		}
		stocks = append(stocks, stock)
	}
	return stocks, query, nil
}
