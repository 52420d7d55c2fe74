package quotes

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/wonny/sheetalert/internal/contracts"
	"github.com/wonny/sheetalert/pkg/config"
	"github.com/wonny/sheetalert/pkg/httputil"
	"github.com/wonny/sheetalert/pkg/logger"
)

// PriceDigits is the precision every quoted price is rounded to
const PriceDigits = 2

// NewSource picks the price source configured for the quote provider
func NewSource(cfg config.QuotesConfig, httpClient *httputil.Client, log *logger.Logger) (contracts.PriceSource, error) {
	switch cfg.Provider {
	case "json":
		return NewJSONSource(httpClient, cfg.BaseURL, log), nil
	case "html":
		return NewHTMLSource(httpClient, cfg.BaseURL, log), nil
	default:
		return nil, fmt.Errorf("unknown quote provider: %s", cfg.Provider)
	}
}

// roundPrice rounds half away from zero to PriceDigits
func roundPrice(d decimal.Decimal) float64 {
	f, _ := d.Round(PriceDigits).Float64()
	return f
}

// parsePrice reads a quoted price, tolerating thousands separators
func parsePrice(s string) (float64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid price %q: %w", s, err)
	}
	return roundPrice(d), nil
}

// fetchBody performs a GET and returns the body of a 200 response
func fetchBody(ctx context.Context, client *httputil.Client, url string) ([]byte, error) {
	resp, err := client.Get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, nil
}
