package quotes

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/wonny/sheetalert/pkg/httputil"
	"github.com/wonny/sheetalert/pkg/logger"
)

// HTMLSource scrapes a quote board page. Each quote is a table row carrying
// a data-symbol attribute and a td.price cell.
type HTMLSource struct {
	httpClient *httputil.Client
	baseURL    string
	logger     *logger.Logger
}

// NewHTMLSource creates a new HTML quote source
func NewHTMLSource(httpClient *httputil.Client, baseURL string, log *logger.Logger) *HTMLSource {
	return &HTMLSource{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     log,
	}
}

// Fetch implements contracts.PriceSource
func (s *HTMLSource) Fetch(ctx context.Context, symbols []string) (map[string]float64, error) {
	if len(symbols) == 0 {
		return map[string]float64{}, nil
	}

	params := url.Values{}
	params.Set("s", strings.Join(symbols, ","))
	fullURL := fmt.Sprintf("%s/quotes?%s", s.baseURL, params.Encode())

	body, err := fetchBody(ctx, s.httpClient, fullURL)
	if err != nil {
		return nil, err
	}

	prices, err := s.parseQuoteHTML(body)
	if err != nil {
		return nil, fmt.Errorf("parse response failed: %w", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"requested": len(symbols),
		"quoted":    len(prices),
	}).Debug("Scraped quotes")
	return prices, nil
}

func (s *HTMLSource) parseQuoteHTML(body []byte) (map[string]float64, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	prices := make(map[string]float64)
	doc.Find("tr[data-symbol]").Each(func(i int, row *goquery.Selection) {
		symbol, _ := row.Attr("data-symbol")
		symbol = strings.ToLower(strings.TrimSpace(symbol))
		if symbol == "" {
			return
		}

		text := row.Find("td.price").First().Text()
		price, err := parsePrice(text)
		if err != nil {
			s.logger.WithFields(map[string]interface{}{
				"symbol": symbol,
				"text":   strings.TrimSpace(text),
			}).Debug("Skipping unparsable quote")
			return
		}
		prices[symbol] = price
	})

	return prices, nil
}
