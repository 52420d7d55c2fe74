package realtime

import (
	"github.com/wonny/sheetalert/internal/contracts"
)

// Event types pushed to browsers
const (
	EventSheetUpdated = "sheet_updated"
	EventSheetDeleted = "sheet_deleted"
)

// Event is one message on a user's socket
// ⭐ SSOT: 실시간 이벤트 구조
type Event struct {
	Type     string     `json:"type"`
	SheetID  string     `json:"ssheet_id"`
	Title    string     `json:"title,omitempty"`
	Datetime string     `json:"datetime,omitempty"`
	Prices   []*float64 `json:"prices,omitempty"`
}

// SheetUpdatedEvent describes a sheet whose prices were just written
func SheetUpdatedEvent(sheet *contracts.Sheet, prices []*float64) Event {
	ev := Event{
		Type:    EventSheetUpdated,
		SheetID: sheet.ID,
		Title:   sheet.Title,
		Prices:  prices,
	}
	if !sheet.LastUpdated.IsZero() {
		ev.Datetime = sheet.LastUpdated.Format(contracts.DatetimeFormat)
	}
	return ev
}
