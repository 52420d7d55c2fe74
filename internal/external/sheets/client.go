package sheets

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/time/rate"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/wonny/sheetalert/internal/contracts"
	"github.com/wonny/sheetalert/pkg/config"
	"github.com/wonny/sheetalert/pkg/logger"
)

const (
	userRegionRange = "A2:C"
	priceRange      = "D2:D"

	// DefaultTitle names spreadsheets created for new users
	DefaultTitle = "My Stock Tracker"
)

var headerRow = []string{"Symbol", "Lower Bound", "Upper Bound", "Price"}

// HTTPClientFactory builds an authorized HTTP client from stored credentials
type HTTPClientFactory interface {
	HTTPClient(ctx context.Context, creds contracts.Credentials) (*http.Client, error)
}

// Service opens spreadsheet clients. All clients share one request limiter.
// ⭐ SSOT: Google Sheets API 호출은 이 패키지에서만
type Service struct {
	clients  HTTPClientFactory
	limiter  *rate.Limiter
	endpoint string
	logger   *logger.Logger
}

// NewService creates a new spreadsheet service
func NewService(clients HTTPClientFactory, cfg config.SheetsConfig, log *logger.Logger) *Service {
	limit := rate.Inf
	if cfg.RequestsPerSec > 0 {
		limit = rate.Limit(cfg.RequestsPerSec)
	}
	return &Service{
		clients: clients,
		limiter: rate.NewLimiter(limit, 1),
		logger:  log,
	}
}

// WithEndpoint points the service at a different API root
func (s *Service) WithEndpoint(endpoint string) *Service {
	s.endpoint = endpoint
	return s
}

// Open implements contracts.SheetService
func (s *Service) Open(ctx context.Context, creds contracts.Credentials) (contracts.SheetClient, error) {
	httpClient, err := s.clients.HTTPClient(ctx, creds)
	if err != nil {
		return nil, fmt.Errorf("authorize sheets client: %w", err)
	}

	opts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if s.endpoint != "" {
		opts = append(opts, option.WithEndpoint(s.endpoint))
	}

	api, err := sheetsapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return &Client{api: api, limiter: s.limiter, logger: s.logger}, nil
}

// Client is a contracts.SheetClient bound to one user's credentials
type Client struct {
	api     *sheetsapi.Service
	limiter *rate.Limiter
	logger  *logger.Logger
}

// ReadUserRegion reads symbols and bounds from A2:C
func (c *Client) ReadUserRegion(ctx context.Context, sheetID string) (*contracts.UserRegion, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := c.api.Spreadsheets.Values.Get(sheetID, userRegionRange).
		MajorDimension("COLUMNS").
		Context(ctx).
		Do()
	if err != nil {
		return nil, c.classify(sheetID, err)
	}

	region, err := parseRegion(sheetID, resp.Values)
	if err != nil {
		c.logger.WithFields(map[string]interface{}{
			"ssheet_id": sheetID,
			"error":     err.Error(),
		}).Warn("User region unreadable")
		return nil, err
	}
	return region, nil
}

// ReadTitle returns the spreadsheet title, or "" when it has none
func (c *Client) ReadTitle(ctx context.Context, sheetID string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	ss, err := c.api.Spreadsheets.Get(sheetID).
		Fields("properties.title").
		Context(ctx).
		Do()
	if err != nil {
		return "", c.classify(sheetID, err)
	}
	if ss.Properties == nil {
		return "", nil
	}
	return ss.Properties.Title, nil
}

// WritePrices writes prices down column D starting at row 2
func (c *Client) WritePrices(ctx context.Context, sheetID string, prices []*float64) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	body := &sheetsapi.ValueRange{
		Range:          priceRange,
		MajorDimension: "COLUMNS",
		Values:         [][]interface{}{priceColumn(prices)},
	}

	_, err := c.api.Spreadsheets.Values.Update(sheetID, priceRange, body).
		ValueInputOption("USER_ENTERED").
		Context(ctx).
		Do()
	if err != nil {
		return c.classify(sheetID, err)
	}

	c.logger.WithFields(map[string]interface{}{
		"ssheet_id": sheetID,
		"count":     len(prices),
	}).Debug("Prices written")
	return nil
}

// CreateSheet creates a spreadsheet with the header row and the
// out-of-bounds highlighting on the price column.
func (c *Client) CreateSheet(ctx context.Context, title string) (string, string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", "", err
	}
	if title == "" {
		title = DefaultTitle
	}

	ss, err := c.api.Spreadsheets.Create(newSpreadsheet(title)).Context(ctx).Do()
	if err != nil {
		return "", "", c.classify("", err)
	}

	created := title
	if ss.Properties != nil {
		created = ss.Properties.Title
	}

	c.logger.WithFields(map[string]interface{}{
		"ssheet_id": ss.SpreadsheetId,
		"title":     created,
	}).Info("Spreadsheet created")
	return ss.SpreadsheetId, created, nil
}

// classify maps API failures onto the sheet error classes
func (c *Client) classify(sheetID string, err error) error {
	var apiErr *googleapi.Error
	var sheetErr *contracts.SheetError

	switch {
	case errors.As(err, &apiErr):
		sheetErr = contracts.ClassifyStatus(sheetID, apiErr.Code, apiErr.Message)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		sheetErr = &contracts.SheetError{Kind: contracts.ErrUnknownSheet, SheetID: sheetID, Detail: err.Error()}
	}

	c.logger.WithFields(map[string]interface{}{
		"ssheet_id": sheetID,
		"status":    sheetErr.Status,
		"kind":      sheetErr.Kind.Error(),
	}).WithError(err).Error("Sheets API call failed")

	return sheetErr
}

func newSpreadsheet(title string) *sheetsapi.Spreadsheet {
	header := make([]*sheetsapi.CellData, len(headerRow))
	for i, name := range headerRow {
		value := name
		header[i] = &sheetsapi.CellData{
			UserEnteredValue: &sheetsapi.ExtendedValue{StringValue: &value},
		}
	}

	return &sheetsapi.Spreadsheet{
		Properties: &sheetsapi.SpreadsheetProperties{Title: title},
		Sheets: []*sheetsapi.Sheet{{
			Properties: &sheetsapi.SheetProperties{
				SheetId:         0,
				ForceSendFields: []string{"SheetId"},
			},
			Data: []*sheetsapi.GridData{{
				RowData: []*sheetsapi.RowData{{Values: header}},
			}},
			ConditionalFormats: outOfBoundsRules(0),
		}},
	}
}

// outOfBoundsRules highlights prices below column B red and above column C
// blue, from the first data row of column D.
func outOfBoundsRules(sheetID int64) []*sheetsapi.ConditionalFormatRule {
	ranges := []*sheetsapi.GridRange{{
		SheetId:          sheetID,
		StartColumnIndex: 3,
		EndColumnIndex:   4,
		StartRowIndex:    1,
		ForceSendFields:  []string{"SheetId"},
	}}

	rule := func(condition, ref string, color *sheetsapi.Color) *sheetsapi.ConditionalFormatRule {
		return &sheetsapi.ConditionalFormatRule{
			BooleanRule: &sheetsapi.BooleanRule{
				Condition: &sheetsapi.BooleanCondition{
					Type:   condition,
					Values: []*sheetsapi.ConditionValue{{UserEnteredValue: ref}},
				},
				Format: &sheetsapi.CellFormat{BackgroundColor: color},
			},
			Ranges: ranges,
		}
	}

	return []*sheetsapi.ConditionalFormatRule{
		rule("NUMBER_LESS", "=B2", &sheetsapi.Color{Red: 1}),
		rule("NUMBER_GREATER", "=C2", &sheetsapi.Color{Blue: 1}),
	}
}
