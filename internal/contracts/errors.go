package contracts

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by Store getters for missing entities
	ErrNotFound = errors.New("entity not found")

	// ErrNoUsersForSheet means a sheet has no owner to borrow credentials from
	ErrNoUsersForSheet = errors.New("no users for sheet")

	// Spreadsheet failure classes
	ErrUnauthorizedSheet  = errors.New("unauthorized sheet access")
	ErrSheetNotFound      = errors.New("sheet not found")
	ErrUnknownSheet       = errors.New("unknown sheet error")
	ErrUserDataUnreadable = errors.New("user data unreadable")
)

// SheetError is a classified spreadsheet failure. Kind is one of the sheet
// sentinels above so callers can match with errors.Is.
type SheetError struct {
	Kind    error
	SheetID string
	Status  int
	Detail  string
}

func (e *SheetError) Error() string {
	msg := e.Kind.Error()
	if e.SheetID != "" {
		msg = fmt.Sprintf("%s (sheet %s)", msg, e.SheetID)
	}
	if e.Status != 0 {
		msg = fmt.Sprintf("%s: status %d", msg, e.Status)
	}
	if e.Detail != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Detail)
	}
	return msg
}

func (e *SheetError) Unwrap() error {
	return e.Kind
}

// ClassifyStatus maps a spreadsheet API HTTP status onto a SheetError
func ClassifyStatus(sheetID string, status int, detail string) *SheetError {
	kind := ErrUnknownSheet
	switch status {
	case 401, 403:
		kind = ErrUnauthorizedSheet
	case 404:
		kind = ErrSheetNotFound
	}
	return &SheetError{Kind: kind, SheetID: sheetID, Status: status, Detail: detail}
}
