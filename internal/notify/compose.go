package notify

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wonny/sheetalert/internal/contracts"
)

const sheetURLPrefix = "https://docs.google.com/spreadsheets/d/"

// SheetURL returns the browser link of a spreadsheet
func SheetURL(sheetID string) string {
	return sheetURLPrefix + sheetID
}

// Compose renders one plain-text message per user. Each sheet gets a header
// line with its title and link followed by one tab-indented line per alert.
// Sections are separated by a blank line and the unsubscribe line closes the
// message.
func Compose(alerts []contracts.UserAlerts, unsubscribeURL string) []contracts.Email {
	emails := make([]contracts.Email, 0, len(alerts))

	for _, ua := range alerts {
		if len(ua.Sheets) == 0 {
			continue
		}

		sections := make([]string, 0, len(ua.Sheets))
		for _, sheet := range ua.Sheets {
			sections = append(sections, composeSheet(sheet))
		}

		body := strings.Join(sections, "\n\n") +
			"\n\nTo unsubscribe, visit the following link: " + unsubscribeURL

		emails = append(emails, contracts.Email{Recipient: ua.Email, Body: body})
	}

	return emails
}

func composeSheet(sheet contracts.SheetAlerts) string {
	lines := make([]string, 0, len(sheet.Alerts))
	for _, sa := range sheet.Alerts {
		lines = append(lines, fmt.Sprintf("%s    Bounds: (%s, %s)    Old price: %s    New price: %s",
			sa.Symbol,
			formatNumber(sa.Alert.Lower),
			formatNumber(sa.Alert.Upper),
			formatNumber(sa.Alert.Old),
			formatNumber(sa.Alert.New),
		))
	}

	header := fmt.Sprintf("%s (%s)\n\t", sheet.Title, SheetURL(sheet.SheetID))
	return header + strings.Join(lines, "\n\t")
}

// formatNumber prints the shortest exact form, keeping one decimal for
// whole numbers (10 -> "10.0").
func formatNumber(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}
