package tracker

import (
	"context"
	"errors"
	"fmt"

	"github.com/wonny/sheetalert/internal/contracts"
	"github.com/wonny/sheetalert/pkg/logger"
)

// ErrNoCredentials means a user exists but never completed the consent flow
var ErrNoCredentials = errors.New("user has no stored credentials")

// Accounts manages users and resolves stored credentials
type Accounts struct {
	store  contracts.Store
	logger *logger.Logger
}

// NewAccounts creates a new account service
func NewAccounts(store contracts.Store, log *logger.Logger) *Accounts {
	return &Accounts{
		store:  store,
		logger: log,
	}
}

// GetOrCreateUser returns the user, creating it with notifications off.
// Alerts are opt-in through SetNotify.
func (a *Accounts) GetOrCreateUser(ctx context.Context, userID string) (*contracts.User, error) {
	user, err := a.store.GetUser(ctx, userID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, contracts.ErrNotFound) {
		return nil, fmt.Errorf("get user %s: %w", userID, err)
	}

	user = &contracts.User{
		ID:       userID,
		Notify:   false,
		SheetIDs: []string{},
	}
	if err := a.store.Put(ctx, &contracts.Batch{Users: []*contracts.User{user}}); err != nil {
		return nil, fmt.Errorf("put user %s: %w", userID, err)
	}

	a.logger.WithField("user_id", userID).Info("User created")
	return user, nil
}

// StoreCredentials saves the user's credentials and email, creating the
// user when needed.
func (a *Accounts) StoreCredentials(ctx context.Context, userID, email string, creds contracts.Credentials) error {
	user, err := a.GetOrCreateUser(ctx, userID)
	if err != nil {
		return err
	}

	user.Credentials = creds
	if email != "" {
		user.Email = email
	}

	if err := a.store.Put(ctx, &contracts.Batch{Users: []*contracts.User{user}}); err != nil {
		return fmt.Errorf("put user %s: %w", userID, err)
	}
	return nil
}

// SetNotify toggles notifications. Nothing is written when unchanged.
func (a *Accounts) SetNotify(ctx context.Context, userID string, notify bool) error {
	user, err := a.GetOrCreateUser(ctx, userID)
	if err != nil {
		return err
	}
	if user.Notify == notify {
		return nil
	}

	user.Notify = notify
	if err := a.store.Put(ctx, &contracts.Batch{Users: []*contracts.User{user}}); err != nil {
		return fmt.Errorf("put user %s: %w", userID, err)
	}

	a.logger.WithFields(map[string]interface{}{
		"user_id": userID,
		"notify":  notify,
	}).Info("Notification setting changed")
	return nil
}

// SheetsForUser returns the user's sheets in registration order. Dangling
// ids are skipped.
func (a *Accounts) SheetsForUser(ctx context.Context, userID string) ([]*contracts.Sheet, error) {
	user, err := a.GetOrCreateUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	sheets := make([]*contracts.Sheet, 0, len(user.SheetIDs))
	for _, id := range user.SheetIDs {
		sheet, err := a.store.GetSheet(ctx, id)
		if errors.Is(err, contracts.ErrNotFound) {
			a.logger.WithFields(map[string]interface{}{
				"user_id":   userID,
				"ssheet_id": id,
			}).Warn("User references a missing sheet")
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get sheet %s: %w", id, err)
		}
		sheets = append(sheets, sheet)
	}
	return sheets, nil
}

// ForUser returns the stored credentials of a user
func (a *Accounts) ForUser(ctx context.Context, userID string) (contracts.Credentials, error) {
	user, err := a.store.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", userID, err)
	}
	if len(user.Credentials) == 0 {
		return nil, fmt.Errorf("user %s: %w", userID, ErrNoCredentials)
	}
	return user.Credentials, nil
}

// ForSheet returns the credentials of the sheet's first owner
func (a *Accounts) ForSheet(ctx context.Context, sheetID string) (contracts.Credentials, error) {
	sheet, err := a.store.GetSheet(ctx, sheetID)
	if err != nil {
		return nil, fmt.Errorf("get sheet %s: %w", sheetID, err)
	}
	if len(sheet.UserIDs) == 0 {
		return nil, fmt.Errorf("sheet %s: %w", sheetID, contracts.ErrNoUsersForSheet)
	}
	return a.ForUser(ctx, sheet.UserIDs[0])
}

// Owns reports whether the user is listed as an owner of the sheet
func (a *Accounts) Owns(ctx context.Context, userID, sheetID string) (bool, error) {
	sheet, err := a.store.GetSheet(ctx, sheetID)
	if err != nil {
		return false, fmt.Errorf("get sheet %s: %w", sheetID, err)
	}
	return containsID(sheet.UserIDs, userID), nil
}
