package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/wonny/sheetalert/internal/auth"
	"github.com/wonny/sheetalert/internal/contracts"
	"github.com/wonny/sheetalert/internal/realtime"
	"github.com/wonny/sheetalert/internal/tracker"
	"github.com/wonny/sheetalert/pkg/logger"
)

const msgUnreadable = "Could not read sheet. Please make sure stocks are not formatted and no blank lines."

// EventPublisher pushes realtime events to users
type EventPublisher interface {
	Publish(userIDs []string, ev realtime.Event) int
}

// SheetHandler handles the sheet endpoints
// ⭐ SSOT: 시트 API 핸들러는 이 구조체에서만
type SheetHandler struct {
	accounts   *tracker.Accounts
	reconciler *tracker.Reconciler
	sheets     contracts.SheetService
	events     EventPublisher
	logger     *logger.Logger
}

// NewSheetHandler creates a new sheet handler
func NewSheetHandler(
	accounts *tracker.Accounts,
	reconciler *tracker.Reconciler,
	sheets contracts.SheetService,
	events EventPublisher,
	log *logger.Logger,
) *SheetHandler {
	return &SheetHandler{
		accounts:   accounts,
		reconciler: reconciler,
		sheets:     sheets,
		events:     events,
		logger:     log,
	}
}

// Index lists the caller's sheets
// GET /
func (h *SheetHandler) Index(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFrom(r.Context())

	sheets, err := h.accounts.SheetsForUser(r.Context(), id.UserID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list sheets")
		respondError(w, http.StatusInternalServerError, "Unknown")
		return
	}

	views := make([]SheetView, 0, len(sheets))
	for _, s := range sheets {
		views = append(views, newSheetView(s))
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"user_id": id.UserID,
		"email":   id.Email,
		"sheets":  views,
	})
}

// Create makes a new spreadsheet in the caller's account and registers it
// GET /create
func (h *SheetHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, _ := auth.IdentityFrom(ctx)

	if _, err := h.accounts.GetOrCreateUser(ctx, id.UserID); err != nil {
		h.logger.WithError(err).Error("Failed to load user")
		respondError(w, http.StatusInternalServerError, "Unknown")
		return
	}

	client, err := h.sheets.Open(ctx, id.Credentials)
	if err != nil {
		h.logger.WithError(err).Error("Failed to open sheets client")
		respondError(w, http.StatusInternalServerError, "Unknown")
		return
	}

	sheetID, title, err := client.CreateSheet(ctx, defaultSheetTitle)
	if err != nil {
		status, message := sheetErrorStatus(err)
		respondError(w, status, message)
		return
	}

	sheet, err := h.reconciler.CreateSheet(ctx, sheetID, id.UserID, title)
	if err != nil {
		h.logger.WithError(err).Error("Failed to register sheet")
		respondError(w, http.StatusInternalServerError, "Unknown")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"row_to_insert": newSheetView(sheet),
	})
}

// Delete unregisters a sheet owned by the caller
// POST /delete
func (h *SheetHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, _ := auth.IdentityFrom(ctx)

	sheetID, ok := decodeSheetID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "ssheet_id is required")
		return
	}

	owns, err := h.accounts.Owns(ctx, id.UserID, sheetID)
	switch {
	case errors.Is(err, contracts.ErrNotFound):
		respondJSON(w, http.StatusNotFound, map[string]string{"ssheet_id": sheetID, "message": "Not found"})
		return
	case err != nil:
		h.logger.WithError(err).Error("Failed to load sheet")
		respondJSON(w, http.StatusInternalServerError, map[string]string{"ssheet_id": sheetID, "message": "Unknown"})
		return
	case !owns:
		respondJSON(w, http.StatusForbidden, map[string]string{"ssheet_id": sheetID, "message": "Forbidden"})
		return
	}

	if err := h.reconciler.DeleteSheet(ctx, sheetID); err != nil {
		h.logger.WithError(err).Error("Failed to delete sheet")
		respondJSON(w, http.StatusInternalServerError, map[string]string{"ssheet_id": sheetID, "message": "Unknown"})
		return
	}

	h.events.Publish([]string{id.UserID}, realtime.Event{Type: realtime.EventSheetDeleted, SheetID: sheetID})
	respondJSON(w, http.StatusOK, map[string]string{"ssheet_id": sheetID})
}

// Sync reads the sheet, reconciles the stored state and writes prices back
// POST /sync
func (h *SheetHandler) Sync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, _ := auth.IdentityFrom(ctx)

	sheetID, ok := decodeSheetID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "ssheet_id is required")
		return
	}

	resp := map[string]string{}
	status, message := http.StatusOK, "Success"

	title, prices, err := h.sync(ctx, id, sheetID, resp)
	if err != nil {
		status, message = sheetErrorStatus(err)
		if status == http.StatusInternalServerError {
			h.logger.WithFields(map[string]interface{}{
				"ssheet_id": sheetID,
				"error":     err.Error(),
			}).Error("Sheet sync failed")
		}
	} else {
		h.events.Publish([]string{id.UserID}, realtime.Event{
			Type:     realtime.EventSheetUpdated,
			SheetID:  sheetID,
			Title:    title,
			Datetime: resp["datetime"],
			Prices:   prices,
		})
	}

	resp["ssheet_id"] = sheetID
	resp["message"] = message
	respondJSON(w, status, resp)
}

func (h *SheetHandler) sync(ctx context.Context, id auth.Identity, sheetID string, resp map[string]string) (string, []*float64, error) {
	client, err := h.sheets.Open(ctx, id.Credentials)
	if err != nil {
		return "", nil, err
	}

	region, err := client.ReadUserRegion(ctx, sheetID)
	if err != nil {
		return "", nil, err
	}

	title, err := client.ReadTitle(ctx, sheetID)
	if err != nil {
		return "", nil, err
	}
	var titlePtr *string
	if title != "" {
		titlePtr = &title
	}

	prices, updated, err := h.reconciler.Reconcile(ctx, sheetID, region.Symbols, region.LowerBounds, region.UpperBounds, titlePtr)
	if err != nil {
		return "", nil, err
	}

	if err := client.WritePrices(ctx, sheetID, prices); err != nil {
		return "", nil, err
	}

	resp["datetime"] = updated.Format(contracts.DatetimeFormat)
	if title != "" {
		resp["title"] = title
	}
	return title, prices, nil
}

// sheetErrorStatus maps sync failures onto the response status and message
func sheetErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, contracts.ErrUnauthorizedSheet):
		return http.StatusForbidden, "Forbidden"
	case errors.Is(err, contracts.ErrSheetNotFound), errors.Is(err, contracts.ErrNotFound):
		return http.StatusNotFound, "Not found"
	case errors.Is(err, contracts.ErrUserDataUnreadable), errors.Is(err, tracker.ErrMismatchedInput):
		return http.StatusBadRequest, msgUnreadable
	default:
		return http.StatusInternalServerError, "Unknown"
	}
}
