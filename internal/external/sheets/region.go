package sheets

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/wonny/sheetalert/internal/contracts"
)

var boundPattern = regexp.MustCompile(`\d+\.?\d*`)

// parseRegion turns the column-major A2:C values into a user region.
// Symbols must be non-empty and every column must have the same length.
func parseRegion(sheetID string, columns [][]interface{}) (*contracts.UserRegion, error) {
	region := &contracts.UserRegion{
		Symbols:     []string{},
		LowerBounds: []float64{},
		UpperBounds: []float64{},
	}
	if len(columns) == 0 {
		return region, nil
	}

	unreadable := func(format string, args ...interface{}) error {
		return &contracts.SheetError{
			Kind:    contracts.ErrUserDataUnreadable,
			SheetID: sheetID,
			Detail:  fmt.Sprintf(format, args...),
		}
	}

	if len(columns) != 3 {
		return nil, unreadable("expected 3 columns, got %d", len(columns))
	}
	symbols, lowers, uppers := columns[0], columns[1], columns[2]
	if len(lowers) != len(symbols) || len(uppers) != len(symbols) {
		return nil, unreadable("column lengths differ: %d symbols, %d lower, %d upper", len(symbols), len(lowers), len(uppers))
	}

	for i := range symbols {
		symbol := strings.TrimSpace(cellString(symbols[i]))
		if symbol == "" {
			return nil, unreadable("found empty stock symbol in row %d", i+2)
		}

		lower, err := convertBound(lowers[i])
		if err != nil {
			return nil, unreadable("row %d lower bound: %v", i+2, err)
		}
		upper, err := convertBound(uppers[i])
		if err != nil {
			return nil, unreadable("row %d upper bound: %v", i+2, err)
		}

		region.Symbols = append(region.Symbols, symbol)
		region.LowerBounds = append(region.LowerBounds, lower)
		region.UpperBounds = append(region.UpperBounds, upper)
	}

	return region, nil
}

// convertBound reads a bound as a number, falling back to the first numeric
// run in the text ("$12.50" -> 12.5).
func convertBound(v interface{}) (float64, error) {
	if f, ok := v.(float64); ok {
		return f, nil
	}

	s := strings.TrimSpace(cellString(v))
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f, nil
	}

	m := boundPattern.FindString(s)
	if m == "" {
		return 0, fmt.Errorf("cannot convert %q to a price", s)
	}
	return strconv.ParseFloat(m, 64)
}

func cellString(v interface{}) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// priceColumn renders prices for a column-major write. Unknown prices clear
// their cell.
func priceColumn(prices []*float64) []interface{} {
	col := make([]interface{}, len(prices))
	for i, p := range prices {
		if p == nil {
			col[i] = ""
			continue
		}
		col[i] = *p
	}
	return col
}
