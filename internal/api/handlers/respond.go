package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/wonny/sheetalert/internal/contracts"
	"github.com/wonny/sheetalert/internal/external/sheets"
	"github.com/wonny/sheetalert/internal/notify"
)

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"message": message,
	})
}

// sheetIDRequest is the body of POST /sync and POST /delete
type sheetIDRequest struct {
	SheetID string `json:"ssheet_id"`
}

func decodeSheetID(r *http.Request) (string, bool) {
	var req sheetIDRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SheetID == "" {
		return "", false
	}
	return req.SheetID, true
}

// SheetView is a sheet as listed to its owners
type SheetView struct {
	SheetID  string `json:"ssheet_id"`
	Title    string `json:"title"`
	URL      string `json:"url"`
	Datetime string `json:"datetime,omitempty"`
	Symbols  int    `json:"symbols"`
}

func newSheetView(s *contracts.Sheet) SheetView {
	return SheetView{
		SheetID:  s.ID,
		Title:    s.Title,
		URL:      notify.SheetURL(s.ID),
		Datetime: formatDatetime(s.LastUpdated),
		Symbols:  len(s.StockIDs),
	}
}

func formatDatetime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(contracts.DatetimeFormat)
}

// defaultSheetTitle is used for spreadsheets created from /create
const defaultSheetTitle = sheets.DefaultTitle
