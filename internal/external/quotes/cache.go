package quotes

import (
	"context"
	"sync"
	"time"

	"github.com/wonny/sheetalert/internal/contracts"
	"github.com/wonny/sheetalert/pkg/logger"
)

type cachedQuote struct {
	price     float64
	fetchedAt time.Time
}

// CachedSource serves recent quotes from memory and asks the wrapped
// source only for the rest, in a single request.
// ⭐ SSOT: 시세 캐싱은 이 구조체에서만
type CachedSource struct {
	mu     sync.RWMutex
	source contracts.PriceSource
	quotes map[string]cachedQuote
	ttl    time.Duration
	now    func() time.Time
	logger *logger.Logger
}

// NewCachedSource wraps source. Quotes older than ttl are fetched again.
func NewCachedSource(source contracts.PriceSource, ttl time.Duration, log *logger.Logger) *CachedSource {
	return &CachedSource{
		source: source,
		quotes: make(map[string]cachedQuote),
		ttl:    ttl,
		now:    time.Now,
		logger: log,
	}
}

// Fetch implements contracts.PriceSource
func (c *CachedSource) Fetch(ctx context.Context, symbols []string) (map[string]float64, error) {
	result := make(map[string]float64, len(symbols))
	var missing []string

	now := c.now()
	c.mu.RLock()
	for _, symbol := range symbols {
		if q, ok := c.quotes[symbol]; ok && now.Sub(q.fetchedAt) <= c.ttl {
			result[symbol] = q.price
			continue
		}
		missing = append(missing, symbol)
	}
	c.mu.RUnlock()

	if len(missing) == 0 {
		return result, nil
	}

	fetched, err := c.source.Fetch(ctx, missing)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	for symbol, price := range fetched {
		c.quotes[symbol] = cachedQuote{price: price, fetchedAt: now}
		result[symbol] = price
	}
	c.mu.Unlock()

	c.logger.WithFields(map[string]interface{}{
		"hits":   len(symbols) - len(missing),
		"misses": len(missing),
	}).Debug("Quote cache lookup")

	return result, nil
}

// Cleanup removes stale quotes
func (c *CachedSource) Cleanup(ctx context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	count := 0
	for symbol, q := range c.quotes {
		if now.Sub(q.fetchedAt) > c.ttl {
			delete(c.quotes, symbol)
			count++
		}
	}
	return count, nil
}

// Len returns the number of cached quotes
func (c *CachedSource) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.quotes)
}
