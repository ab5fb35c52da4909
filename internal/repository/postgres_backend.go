package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Proton-105/mlbb-topup-bot/internal/domain"
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PostgresBackend stores accounts in the accounts, orders and topups tables and
// the settings singleton as JSONB.
type PostgresBackend struct {
	db  *sql.DB
	log *slog.Logger
}

var _ Backend = (*PostgresBackend)(nil)

func NewPostgresBackend(db *sql.DB, log *slog.Logger) *PostgresBackend {
	if log == nil {
		log = slog.Default()
	}

	return &PostgresBackend{
		db:  db,
		log: log,
	}
}

func (b *PostgresBackend) Name() string { return "postgres" }

func (b *PostgresBackend) Load(ctx context.Context, userID string) (*domain.Account, error) {
	return b.load(ctx, b.db, userID, false)
}

func (b *PostgresBackend) load(ctx context.Context, q querier, userID string, forUpdate bool) (*domain.Account, error) {
	query := `
		SELECT user_id, name, username, balance, version, created_at
		FROM accounts
		WHERE user_id = $1
	`
	if forUpdate {
		query += " FOR UPDATE"
	}

	var acc domain.Account
	if err := q.QueryRowContext(ctx, query, userID).Scan(
		&acc.UserID,
		&acc.Name,
		&acc.Username,
		&acc.Balance,
		&acc.Version,
		&acc.CreatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}

		b.log.Error("failed to fetch account", slog.String("user_id", userID), slog.Any("error", err))
		return nil, fmt.Errorf("select account: %w", err)
	}

	orders, err := b.queryOrders(ctx, q, `WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	acc.Orders = orders[userID]

	topUps, err := b.queryTopUps(ctx, q, `WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	acc.TopUps = topUps[userID]

	return &acc, nil
}

func (b *PostgresBackend) queryOrders(ctx context.Context, q querier, where string, args ...any) (map[string][]domain.Order, error) {
	query := `
		SELECT user_id, id, product_code, game_id, server_id, price, status, created_at,
		       resolved_by, resolved_by_name, resolved_at, chat_id
		FROM orders
	` + where + ` ORDER BY user_id, seq`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]domain.Order)
	for rows.Next() {
		var (
			userID     string
			o          domain.Order
			resolvedAt sql.NullTime
		)
		if err := rows.Scan(
			&userID,
			&o.ID,
			&o.ProductCode,
			&o.GameID,
			&o.ServerID,
			&o.Price,
			&o.Status,
			&o.CreatedAt,
			&o.ResolvedBy,
			&o.ResolvedByName,
			&resolvedAt,
			&o.ChatID,
		); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		o.ResolvedAt = nullTime(resolvedAt)
		out[userID] = append(out[userID], o)
	}

	return out, rows.Err()
}

func (b *PostgresBackend) queryTopUps(ctx context.Context, q querier, where string, args ...any) (map[string][]domain.TopUp, error) {
	query := `
		SELECT user_id, id, amount, channel, status, image_ref, created_at,
		       resolved_by, resolved_by_name, resolved_at, chat_id
		FROM topups
	` + where + ` ORDER BY user_id, seq`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select topups: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]domain.TopUp)
	for rows.Next() {
		var (
			userID     string
			t          domain.TopUp
			resolvedAt sql.NullTime
		)
		if err := rows.Scan(
			&userID,
			&t.ID,
			&t.Amount,
			&t.Channel,
			&t.Status,
			&t.ImageRef,
			&t.CreatedAt,
			&t.ResolvedBy,
			&t.ResolvedByName,
			&resolvedAt,
			&t.ChatID,
		); err != nil {
			return nil, fmt.Errorf("scan topup: %w", err)
		}
		t.ResolvedAt = nullTime(resolvedAt)
		out[userID] = append(out[userID], t)
	}

	return out, rows.Err()
}

func (b *PostgresBackend) Create(ctx context.Context, account *domain.Account) error {
	const query = `
		INSERT INTO accounts (user_id, name, username, balance, version, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO NOTHING
	`

	res, err := b.db.ExecContext(
		ctx,
		query,
		account.UserID,
		account.Name,
		account.Username,
		account.Balance,
		account.Version,
		account.CreatedAt,
	)
	if err != nil {
		b.log.Error("failed to create account", slog.String("user_id", account.UserID), slog.Any("error", err))
		return fmt.Errorf("insert account: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrAccountExists
	}

	return nil
}

func (b *PostgresBackend) Update(ctx context.Context, userID string, fn func(*domain.Account) error) (*domain.Account, error) {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			b.log.Error("rollback error", slog.Any("error", rbErr))
		}
	}()

	acc, err := b.load(ctx, tx, userID, true)
	if err != nil {
		return nil, err
	}

	before := acc.Clone()
	if err := fn(acc); err != nil {
		return nil, err
	}

	const updateAccount = `
		UPDATE accounts
		SET name = $2, username = $3, balance = $4, version = $5
		WHERE user_id = $1
	`
	if _, err := tx.ExecContext(ctx, updateAccount, userID, acc.Name, acc.Username, acc.Balance, acc.Version); err != nil {
		return nil, fmt.Errorf("update account: %w", err)
	}

	for i, o := range acc.Orders {
		if i < len(before.Orders) && sameOrder(before.Orders[i], o) {
			continue
		}
		if err := upsertOrder(ctx, tx, userID, i, o); err != nil {
			return nil, err
		}
	}

	for i, t := range acc.TopUps {
		if i < len(before.TopUps) && sameTopUp(before.TopUps[i], t) {
			continue
		}
		if err := upsertTopUp(ctx, tx, userID, i, t); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit account update: %w", err)
	}

	return acc, nil
}

func upsertOrder(ctx context.Context, q querier, userID string, seq int, o domain.Order) error {
	const query = `
		INSERT INTO orders (id, user_id, seq, product_code, game_id, server_id, price, status,
		                    created_at, resolved_by, resolved_by_name, resolved_at, chat_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE
		SET status = EXCLUDED.status,
		    resolved_by = EXCLUDED.resolved_by,
		    resolved_by_name = EXCLUDED.resolved_by_name,
		    resolved_at = EXCLUDED.resolved_at
	`

	if _, err := q.ExecContext(
		ctx,
		query,
		o.ID,
		userID,
		seq,
		o.ProductCode,
		o.GameID,
		o.ServerID,
		o.Price,
		o.Status,
		o.CreatedAt,
		o.ResolvedBy,
		o.ResolvedByName,
		toNullTime(o.ResolvedAt),
		o.ChatID,
	); err != nil {
		return fmt.Errorf("upsert order %s: %w", o.ID, err)
	}

	return nil
}

func upsertTopUp(ctx context.Context, q querier, userID string, seq int, t domain.TopUp) error {
	const query = `
		INSERT INTO topups (id, user_id, seq, amount, channel, status, image_ref,
		                    created_at, resolved_by, resolved_by_name, resolved_at, chat_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE
		SET status = EXCLUDED.status,
		    resolved_by = EXCLUDED.resolved_by,
		    resolved_by_name = EXCLUDED.resolved_by_name,
		    resolved_at = EXCLUDED.resolved_at
	`

	if _, err := q.ExecContext(
		ctx,
		query,
		t.ID,
		userID,
		seq,
		t.Amount,
		t.Channel,
		t.Status,
		t.ImageRef,
		t.CreatedAt,
		t.ResolvedBy,
		t.ResolvedByName,
		toNullTime(t.ResolvedAt),
		t.ChatID,
	); err != nil {
		return fmt.Errorf("upsert topup %s: %w", t.ID, err)
	}

	return nil
}

func (b *PostgresBackend) List(ctx context.Context) ([]*domain.Account, error) {
	const query = `
		SELECT user_id, name, username, balance, version, created_at
		FROM accounts
		ORDER BY created_at, user_id
	`

	rows, err := b.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("select accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*domain.Account
	for rows.Next() {
		var acc domain.Account
		if err := rows.Scan(&acc.UserID, &acc.Name, &acc.Username, &acc.Balance, &acc.Version, &acc.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, &acc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	orders, err := b.queryOrders(ctx, b.db, "")
	if err != nil {
		return nil, err
	}

	topUps, err := b.queryTopUps(ctx, b.db, "")
	if err != nil {
		return nil, err
	}

	for _, acc := range accounts {
		acc.Orders = orders[acc.UserID]
		acc.TopUps = topUps[acc.UserID]
	}

	return accounts, nil
}

func (b *PostgresBackend) OwnerOfOrder(ctx context.Context, orderID string) (string, error) {
	return b.owner(ctx, `SELECT user_id FROM orders WHERE id = $1`, orderID)
}

func (b *PostgresBackend) OwnerOfTopUp(ctx context.Context, topUpID string) (string, error) {
	return b.owner(ctx, `SELECT user_id FROM topups WHERE id = $1`, topUpID)
}

func (b *PostgresBackend) owner(ctx context.Context, query, id string) (string, error) {
	var userID string
	if err := b.db.QueryRowContext(ctx, query, id).Scan(&userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrRecordNotFound
		}
		return "", fmt.Errorf("select owner: %w", err)
	}

	return userID, nil
}

func (b *PostgresBackend) LoadSettings(ctx context.Context) (domain.Settings, error) {
	return b.loadSettings(ctx, b.db, false)
}

func (b *PostgresBackend) loadSettings(ctx context.Context, q querier, forUpdate bool) (domain.Settings, error) {
	query := `SELECT data FROM settings WHERE id = 1`
	if forUpdate {
		query += " FOR UPDATE"
	}

	var raw []byte
	if err := q.QueryRowContext(ctx, query).Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.DefaultSettings(), nil
		}
		return domain.Settings{}, fmt.Errorf("select settings: %w", err)
	}

	var s domain.Settings
	if err := json.Unmarshal(raw, &s); err != nil {
		return domain.Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	s.Normalize()

	return s, nil
}

func (b *PostgresBackend) UpdateSettings(ctx context.Context, fn func(*domain.Settings) error) (domain.Settings, error) {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Settings{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			b.log.Error("rollback error", slog.Any("error", rbErr))
		}
	}()

	// Make sure the singleton row exists so FOR UPDATE has something to lock.
	defaults, err := json.Marshal(domain.DefaultSettings())
	if err != nil {
		return domain.Settings{}, fmt.Errorf("encode settings: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO settings (id, data) VALUES (1, $1) ON CONFLICT (id) DO NOTHING`, defaults); err != nil {
		return domain.Settings{}, fmt.Errorf("seed settings: %w", err)
	}

	s, err := b.loadSettings(ctx, tx, true)
	if err != nil {
		return domain.Settings{}, err
	}

	if err := fn(&s); err != nil {
		return domain.Settings{}, err
	}

	raw, err := json.Marshal(s)
	if err != nil {
		return domain.Settings{}, fmt.Errorf("encode settings: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE settings SET data = $1, updated_at = NOW() WHERE id = 1`, raw); err != nil {
		return domain.Settings{}, fmt.Errorf("update settings: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.Settings{}, fmt.Errorf("commit settings: %w", err)
	}

	return s, nil
}

func (b *PostgresBackend) Ping(ctx context.Context) error {
	return b.db.PingContext(ctx)
}

func (b *PostgresBackend) Close() error {
	return b.db.Close()
}

func sameOrder(a, b domain.Order) bool {
	return a.ID == b.ID &&
		a.Status == b.Status &&
		a.ResolvedBy == b.ResolvedBy &&
		a.ResolvedByName == b.ResolvedByName &&
		sameTime(a.ResolvedAt, b.ResolvedAt)
}

func sameTopUp(a, b domain.TopUp) bool {
	return a.ID == b.ID &&
		a.Status == b.Status &&
		a.ResolvedBy == b.ResolvedBy &&
		a.ResolvedByName == b.ResolvedByName &&
		sameTime(a.ResolvedAt, b.ResolvedAt)
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func toNullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
