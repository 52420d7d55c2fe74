package quotes

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/wonny/sheetalert/pkg/httputil"
	"github.com/wonny/sheetalert/pkg/logger"
)

// JSONSource queries the finance webservice quote endpoint. All symbols go
// out in one request.
// ⭐ SSOT: 시세 API 호출은 이 클라이언트에서만
type JSONSource struct {
	httpClient *httputil.Client
	baseURL    string
	logger     *logger.Logger
}

// NewJSONSource creates a new JSON quote source
func NewJSONSource(httpClient *httputil.Client, baseURL string, log *logger.Logger) *JSONSource {
	return &JSONSource{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     log,
	}
}

// quoteResponse mirrors {"list":{"resources":[{"resource":{"fields":{...}}}]}}
type quoteResponse struct {
	List struct {
		Resources []struct {
			Resource struct {
				Fields struct {
					Symbol string          `json:"symbol"`
					Price  decimal.Decimal `json:"price"`
				} `json:"fields"`
			} `json:"resource"`
		} `json:"resources"`
	} `json:"list"`
}

// Fetch implements contracts.PriceSource
func (s *JSONSource) Fetch(ctx context.Context, symbols []string) (map[string]float64, error) {
	if len(symbols) == 0 {
		return map[string]float64{}, nil
	}

	escaped := make([]string, len(symbols))
	for i, sym := range symbols {
		escaped[i] = url.PathEscape(sym)
	}
	fullURL := fmt.Sprintf("%s/webservice/v1/symbols/%s/quote?format=json", s.baseURL, strings.Join(escaped, ","))

	body, err := fetchBody(ctx, s.httpClient, fullURL)
	if err != nil {
		return nil, err
	}

	prices, err := parseQuoteJSON(body)
	if err != nil {
		return nil, fmt.Errorf("parse response failed: %w", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"requested": len(symbols),
		"quoted":    len(prices),
	}).Debug("Fetched quotes")
	return prices, nil
}

func parseQuoteJSON(body []byte) (map[string]float64, error) {
	var resp quoteResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}

	prices := make(map[string]float64, len(resp.List.Resources))
	for _, r := range resp.List.Resources {
		f := r.Resource.Fields
		if f.Symbol == "" {
			continue
		}
		prices[strings.ToLower(f.Symbol)] = roundPrice(f.Price)
	}
	return prices, nil
}
