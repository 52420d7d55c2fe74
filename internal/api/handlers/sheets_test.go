package handlers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/sheetalert/internal/contracts"
	"github.com/wonny/sheetalert/internal/realtime"
)

func TestSync_WritesPricesAndPublishes(t *testing.T) {
	f := newFixture(t)
	f.register(t, "u1", "s1")
	f.sheets.titles["s1"] = "Portfolio"
	f.sheets.regions["s1"] = &contracts.UserRegion{
		Symbols:     []string{"GOOG", "aapl", "zzzz"},
		LowerBounds: []float64{5, 15, 1},
		UpperBounds: []float64{15, 25, 2},
	}

	rec := httptest.NewRecorder()
	f.handler.Sync(rec, asUser(jsonRequest(t, http.MethodPost, "/sync", map[string]string{"ssheet_id": "s1"}), "u1"))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "s1", body["ssheet_id"])
	assert.Equal(t, "Success", body["message"])
	assert.Equal(t, "Portfolio", body["title"])
	assert.NotEmpty(t, body["datetime"])

	written := f.sheets.written["s1"]
	require.Len(t, written, 3)
	assert.Equal(t, 10.0, *written[0])
	assert.Equal(t, 20.0, *written[1])
	assert.Nil(t, written[2])

	require.Len(t, f.events.events, 1)
	assert.Equal(t, realtime.EventSheetUpdated, f.events.events[0].Type)
	assert.Equal(t, []string{"u1"}, f.events.users[0])
}

func TestSync_OmitsEmptyTitle(t *testing.T) {
	f := newFixture(t)
	f.register(t, "u1", "s1")

	rec := httptest.NewRecorder()
	f.handler.Sync(rec, asUser(jsonRequest(t, http.MethodPost, "/sync", map[string]string{"ssheet_id": "s1"}), "u1"))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	_, hasTitle := body["title"]
	assert.False(t, hasTitle)
	assert.Empty(t, f.sheets.written["s1"])
}

func TestSync_ErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"unauthorized", &contracts.SheetError{Kind: contracts.ErrUnauthorizedSheet, SheetID: "s1", Status: 403}, http.StatusForbidden, "Forbidden"},
		{"missing", &contracts.SheetError{Kind: contracts.ErrSheetNotFound, SheetID: "s1", Status: 404}, http.StatusNotFound, "Not found"},
		{"unreadable", &contracts.SheetError{Kind: contracts.ErrUserDataUnreadable, SheetID: "s1"}, http.StatusBadRequest, msgUnreadable},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError, "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.register(t, "u1", "s1")
			f.sheets.errs["s1"] = tt.err

			rec := httptest.NewRecorder()
			f.handler.Sync(rec, asUser(jsonRequest(t, http.MethodPost, "/sync", map[string]string{"ssheet_id": "s1"}), "u1"))

			assert.Equal(t, tt.status, rec.Code)
			body := decode(t, rec)
			assert.Equal(t, "s1", body["ssheet_id"])
			assert.Equal(t, tt.message, body["message"])
			assert.Empty(t, f.events.events)
		})
	}
}

func TestSync_UnregisteredSheet(t *testing.T) {
	f := newFixture(t)

	rec := httptest.NewRecorder()
	f.handler.Sync(rec, asUser(jsonRequest(t, http.MethodPost, "/sync", map[string]string{"ssheet_id": "ghost"}), "u1"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Not found", decode(t, rec)["message"])
}

func TestSync_MissingSheetID(t *testing.T) {
	f := newFixture(t)

	rec := httptest.NewRecorder()
	f.handler.Sync(rec, asUser(jsonRequest(t, http.MethodPost, "/sync", map[string]string{}), "u1"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	f.register(t, "u1", "s1")
	f.register(t, "u2", "s2")

	t.Run("not owner", func(t *testing.T) {
		rec := httptest.NewRecorder()
		f.handler.Delete(rec, asUser(jsonRequest(t, http.MethodPost, "/delete", map[string]string{"ssheet_id": "s2"}), "u1"))

		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "Forbidden", decode(t, rec)["message"])
		_, err := f.store.GetSheet(context.Background(), "s2")
		assert.NoError(t, err)
	})

	t.Run("missing", func(t *testing.T) {
		rec := httptest.NewRecorder()
		f.handler.Delete(rec, asUser(jsonRequest(t, http.MethodPost, "/delete", map[string]string{"ssheet_id": "nope"}), "u1"))

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("owner", func(t *testing.T) {
		rec := httptest.NewRecorder()
		f.handler.Delete(rec, asUser(jsonRequest(t, http.MethodPost, "/delete", map[string]string{"ssheet_id": "s1"}), "u1"))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "s1", decode(t, rec)["ssheet_id"])

		_, err := f.store.GetSheet(context.Background(), "s1")
		assert.ErrorIs(t, err, contracts.ErrNotFound)

		user, err := f.store.GetUser(context.Background(), "u1")
		require.NoError(t, err)
		assert.Empty(t, user.SheetIDs)

		require.Len(t, f.events.events, 1)
		assert.Equal(t, realtime.EventSheetDeleted, f.events.events[0].Type)
	})
}

func TestCreate(t *testing.T) {
	f := newFixture(t)

	rec := httptest.NewRecorder()
	f.handler.Create(rec, asUser(httptest.NewRequest(http.MethodGet, "/create", nil), "u1"))

	require.Equal(t, http.StatusOK, rec.Code)
	row, ok := decode(t, rec)["row_to_insert"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "new-sheet", row["ssheet_id"])
	assert.Equal(t, defaultSheetTitle, row["title"])
	assert.Equal(t, "https://docs.google.com/spreadsheets/d/new-sheet", row["url"])

	user, err := f.store.GetUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"new-sheet"}, user.SheetIDs)
	assert.Equal(t, 1, f.sheets.created)
}

func TestIndex(t *testing.T) {
	f := newFixture(t)
	f.register(t, "u1", "s1")
	f.register(t, "u1", "s2")
	f.register(t, "u2", "s3")

	rec := httptest.NewRecorder()
	f.handler.Index(rec, asUser(httptest.NewRequest(http.MethodGet, "/", nil), "u1"))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "u1", body["user_id"])
	sheets, ok := body["sheets"].([]interface{})
	require.True(t, ok)
	require.Len(t, sheets, 2)
	assert.Equal(t, "s1", sheets[0].(map[string]interface{})["ssheet_id"])
	assert.Equal(t, "s2", sheets[1].(map[string]interface{})["ssheet_id"])
}
