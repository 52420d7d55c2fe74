package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/sheetalert/internal/contracts"
)

// Store implements contracts.Store on PostgreSQL
// ⭐ SSOT: 엔티티 저장은 여기서만
type Store struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// New creates a new store over an existing pool
func New(pool *pgxpool.Pool) *Store {
	return &Store{
		pool: pool,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return contracts.ErrNotFound
	}
	return err
}

// GetUser retrieves a user by id
func (s *Store) GetUser(ctx context.Context, id string) (*contracts.User, error) {
	query := `SELECT id, email, notify, credentials, sheet_ids FROM users WHERE id = $1`

	var u contracts.User
	err := s.pool.QueryRow(ctx, query, id).Scan(&u.ID, &u.Email, &u.Notify, &u.Credentials, &u.SheetIDs)
	if err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

// GetSheet retrieves a sheet by spreadsheet id
func (s *Store) GetSheet(ctx context.Context, id string) (*contracts.Sheet, error) {
	query := `SELECT id, title, last_updated, stock_ids, user_ids FROM sheets WHERE id = $1`

	var sh contracts.Sheet
	err := s.pool.QueryRow(ctx, query, id).Scan(&sh.ID, &sh.Title, &sh.LastUpdated, &sh.StockIDs, &sh.UserIDs)
	if err != nil {
		return nil, notFound(err)
	}
	return &sh, nil
}

// GetStock retrieves a stock by lowercased symbol
func (s *Store) GetStock(ctx context.Context, id string) (*contracts.Stock, error) {
	query := `SELECT id, price, sheet_ids FROM stocks WHERE id = $1`

	var st contracts.Stock
	err := s.pool.QueryRow(ctx, query, id).Scan(&st.ID, &st.Price, &st.SheetIDs)
	if err != nil {
		return nil, notFound(err)
	}
	return &st, nil
}

// GetBinding retrieves the bounds of a (sheet, symbol) pair
func (s *Store) GetBinding(ctx context.Context, key contracts.BindingKey) (*contracts.Binding, error) {
	query := `
		SELECT sheet_id, symbol, bound_lower, bound_upper
		FROM sheet_stocks
		WHERE sheet_id = $1 AND symbol = $2
	`

	var b contracts.Binding
	err := s.pool.QueryRow(ctx, query, key.SheetID, key.Symbol).Scan(&b.SheetID, &b.Symbol, &b.BoundLower, &b.BoundUpper)
	if err != nil {
		return nil, notFound(err)
	}
	return &b, nil
}

// ListSheets returns every sheet ordered by id
func (s *Store) ListSheets(ctx context.Context) ([]*contracts.Sheet, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, title, last_updated, stock_ids, user_ids FROM sheets ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query sheets: %w", err)
	}
	defer rows.Close()

	var sheets []*contracts.Sheet
	for rows.Next() {
		var sh contracts.Sheet
		if err := rows.Scan(&sh.ID, &sh.Title, &sh.LastUpdated, &sh.StockIDs, &sh.UserIDs); err != nil {
			return nil, fmt.Errorf("scan sheet: %w", err)
		}
		sheets = append(sheets, &sh)
	}
	return sheets, rows.Err()
}

// ListStocks returns every stock ordered by id
func (s *Store) ListStocks(ctx context.Context) ([]*contracts.Stock, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, price, sheet_ids FROM stocks ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query stocks: %w", err)
	}
	defer rows.Close()

	var stocks []*contracts.Stock
	for rows.Next() {
		var st contracts.Stock
		if err := rows.Scan(&st.ID, &st.Price, &st.SheetIDs); err != nil {
			return nil, fmt.Errorf("scan stock: %w", err)
		}
		stocks = append(stocks, &st)
	}
	return stocks, rows.Err()
}

// ListUsersToNotify returns users that opted in to alert emails
func (s *Store) ListUsersToNotify(ctx context.Context) ([]*contracts.User, error) {
	query := `SELECT id, email, notify, credentials, sheet_ids FROM users WHERE notify ORDER BY id`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users []*contracts.User
	for rows.Next() {
		var u contracts.User
		if err := rows.Scan(&u.ID, &u.Email, &u.Notify, &u.Credentials, &u.SheetIDs); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, &u)
	}
	return users, rows.Err()
}

const (
	upsertUser = `
		INSERT INTO users (id, email, notify, credentials, sheet_ids)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			notify = EXCLUDED.notify,
			credentials = EXCLUDED.credentials,
			sheet_ids = EXCLUDED.sheet_ids`

	upsertSheet = `
		INSERT INTO sheets (id, title, last_updated, stock_ids, user_ids)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			last_updated = EXCLUDED.last_updated,
			stock_ids = EXCLUDED.stock_ids,
			user_ids = EXCLUDED.user_ids`

	upsertStock = `
		INSERT INTO stocks (id, price, sheet_ids)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			price = EXCLUDED.price,
			sheet_ids = EXCLUDED.sheet_ids`

	upsertBinding = `
		INSERT INTO sheet_stocks (sheet_id, symbol, bound_lower, bound_upper)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (sheet_id, symbol) DO UPDATE SET
			bound_lower = EXCLUDED.bound_lower,
			bound_upper = EXCLUDED.bound_upper`
)

func ids(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

// Put writes the batch in one transaction
func (s *Store) Put(ctx context.Context, b *contracts.Batch) error {
	if b.Len() == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, u := range b.Users {
		batch.Queue(upsertUser, u.ID, u.Email, u.Notify, u.Credentials, ids(u.SheetIDs))
	}
	now := s.now()
	for _, sh := range b.Sheets {
		sh.LastUpdated = now
		batch.Queue(upsertSheet, sh.ID, sh.Title, sh.LastUpdated, ids(sh.StockIDs), ids(sh.UserIDs))
	}
	for _, st := range b.Stocks {
		batch.Queue(upsertStock, st.ID, st.Price, ids(st.SheetIDs))
	}
	for _, bd := range b.Bindings {
		batch.Queue(upsertBinding, bd.SheetID, bd.Symbol, bd.BoundLower, bd.BoundUpper)
	}

	return s.send(ctx, batch)
}

// Delete removes the keys in one transaction
func (s *Store) Delete(ctx context.Context, keys *contracts.Keys) error {
	if keys.Len() == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	if len(keys.Users) > 0 {
		batch.Queue(`DELETE FROM users WHERE id = ANY($1)`, keys.Users)
	}
	if len(keys.Sheets) > 0 {
		batch.Queue(`DELETE FROM sheets WHERE id = ANY($1)`, keys.Sheets)
	}
	if len(keys.Stocks) > 0 {
		batch.Queue(`DELETE FROM stocks WHERE id = ANY($1)`, keys.Stocks)
	}
	for _, k := range keys.Bindings {
		batch.Queue(`DELETE FROM sheet_stocks WHERE sheet_id = $1 AND symbol = $2`, k.SheetID, k.Symbol)
	}

	return s.send(ctx, batch)
}

// SetPrices updates the price column alone so concurrent sheet_ids writes
// are never overwritten
func (s *Store) SetPrices(ctx context.Context, prices map[string]*float64) error {
	if len(prices) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for id, p := range prices {
		batch.Queue(`UPDATE stocks SET price = $2 WHERE id = $1`, id, p)
	}
	return s.send(ctx, batch)
}

func (s *Store) send(ctx context.Context, batch *pgx.Batch) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	br := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("batch statement %d: %w", i, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}

	return tx.Commit(ctx)
}
