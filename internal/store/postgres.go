package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/naruebet/tmwatch/internal/models"
)

// Postgres is the durable Gateway. Amounts travel as numeric text so no
// driver-level decimal codec is needed.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres { return &Postgres{pool: pool} }

// Ping verifies the backend is reachable. Used by the selector's health probe.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

const txnColumns = `id, sender, amount::text, occurred_at, message, status, raw_payload, created_at`

func (p *Postgres) Put(ctx context.Context, tx models.Transaction) (models.Transaction, error) {
	// No-op update on conflict so the existing row comes back via RETURNING.
	const q = `
INSERT INTO transactions (id, sender, amount, occurred_at, message, status, raw_payload)
VALUES ($1, $2, $3::numeric, $4, $5, $6, $7)
ON CONFLICT (id) DO UPDATE SET id = EXCLUDED.id
RETURNING ` + txnColumns
	row := p.pool.QueryRow(ctx, q,
		tx.ID, tx.Sender, tx.Amount.String(), tx.OccurredAt, tx.Message, tx.Status, tx.RawPayload,
	)
	out, err := scanTxn(row)
	if err != nil {
		return models.Transaction{}, fmt.Errorf("put transaction: %w", err)
	}
	return out, nil
}

func (p *Postgres) Get(ctx context.Context, id string) (models.Transaction, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+txnColumns+` FROM transactions WHERE id=$1`, id)
	out, err := scanTxn(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Transaction{}, ErrNotFound
	}
	return out, err
}

func (p *Postgres) List(ctx context.Context, limit int) ([]models.Transaction, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := p.pool.Query(ctx,
		`SELECT `+txnColumns+` FROM transactions ORDER BY occurred_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []models.Transaction
	for rows.Next() {
		tx, err := scanTxn(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

func (p *Postgres) UpdateStatus(ctx context.Context, id string, status models.TransactionStatus) (models.Transaction, error) {
	row := p.pool.QueryRow(ctx,
		`UPDATE transactions SET status=$2 WHERE id=$1 RETURNING `+txnColumns, id, status)
	out, err := scanTxn(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Transaction{}, ErrNotFound
	}
	return out, err
}

func (p *Postgres) DeleteOne(ctx context.Context, id string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM transactions WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) DeleteAll(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM transactions`)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTxn(row rowScanner) (models.Transaction, error) {
	var tx models.Transaction
	var amount string
	if err := row.Scan(&tx.ID, &tx.Sender, &amount, &tx.OccurredAt, &tx.Message, &tx.Status, &tx.RawPayload, &tx.CreatedAt); err != nil {
		return models.Transaction{}, err
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return models.Transaction{}, fmt.Errorf("scan amount %q: %w", amount, err)
	}
	tx.Amount = d
	return tx, nil
}

// PgUsers stores operator accounts in Postgres.
type PgUsers struct {
	pool *pgxpool.Pool
}

func NewPgUsers(pool *pgxpool.Pool) *PgUsers { return &PgUsers{pool: pool} }

const userColumns = `id, username, password_hash, role, created_at, updated_at`

func (r *PgUsers) Create(ctx context.Context, username, passwordHash string, role models.Role) (models.User, error) {
	if _, err := r.GetByUsername(ctx, username); err == nil {
		return models.User{}, ErrUsernameTaken
	}
	id := uuid.NewString()
	row := r.pool.QueryRow(ctx,
		`INSERT INTO users (id, username, password_hash, role) VALUES ($1,$2,$3,$4) RETURNING `+userColumns,
		id, username, passwordHash, role)
	return scanUser(row)
}

func (r *PgUsers) GetByID(ctx context.Context, id string) (models.User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id)
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.User{}, ErrNotFound
	}
	return u, err
}

func (r *PgUsers) GetByUsername(ctx context.Context, username string) (models.User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(username)=lower($1)`, username)
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.User{}, ErrNotFound
	}
	return u, err
}

func (r *PgUsers) List(ctx context.Context) ([]models.User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var out []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *PgUsers) Update(ctx context.Context, u models.User) (models.User, error) {
	if other, err := r.GetByUsername(ctx, u.Username); err == nil && other.ID != u.ID {
		return models.User{}, ErrUsernameTaken
	}
	row := r.pool.QueryRow(ctx,
		`UPDATE users SET username=$2, password_hash=$3, role=$4, updated_at=now() WHERE id=$1 RETURNING `+userColumns,
		u.ID, u.Username, u.PasswordHash, u.Role)
	out, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.User{}, ErrNotFound
	}
	return out, err
}

func (r *PgUsers) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanUser(row rowScanner) (models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// PgAuditLogs appends audit rows. Write-only from the application's side.
type PgAuditLogs struct {
	pool *pgxpool.Pool
}

func NewPgAuditLogs(pool *pgxpool.Pool) *PgAuditLogs { return &PgAuditLogs{pool: pool} }

func (r *PgAuditLogs) Create(ctx context.Context, l models.AuditLog) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO audit_logs (id, entity_type, entity_id, action, details) VALUES ($1,$2,$3,$4,$5)`,
		l.ID, l.EntityType, l.EntityID, l.Action, l.Details)
	return err
}

// PgSettings is the durable key/value store.
type PgSettings struct {
	pool *pgxpool.Pool
}

func NewPgSettings(pool *pgxpool.Pool) *PgSettings { return &PgSettings{pool: pool} }

func (r *PgSettings) Get(ctx context.Context, key string) (string, error) {
	var v string
	err := r.pool.QueryRow(ctx, `SELECT value FROM settings WHERE key=$1`, key).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	return v, err
}

func (r *PgSettings) Set(ctx context.Context, key, value string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO settings (key, value) VALUES ($1,$2)
		 ON CONFLICT (key) DO UPDATE SET value=EXCLUDED.value, updated_at=now()`,
		key, value)
	return err
}
