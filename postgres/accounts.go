// Package postgres implements the account store on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	authedge "github.com/authedge/authedge"
)

// Schema is the table the store operates on. Apply it with your
// migration tooling of choice.
const Schema = `
CREATE TABLE IF NOT EXISTS accounts (
    id            UUID PRIMARY KEY,
    email         TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    verified      BOOLEAN NOT NULL DEFAULT FALSE,
    locked        BOOLEAN NOT NULL DEFAULT FALSE,
    locked_until  TIMESTAMPTZ,
    created_at    TIMESTAMPTZ NOT NULL
);
`

const uniqueViolation = "23505"

// AccountStore implements authedge.AccountStore on a pgx pool.
type AccountStore struct {
	pool *pgxpool.Pool
}

// Open connects to Postgres and verifies the connection. Caller must
// call Close when done.
func Open(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// NewAccountStore returns an account store backed by pool.
func NewAccountStore(pool *pgxpool.Pool) *AccountStore {
	return &AccountStore{pool: pool}
}

// FindByEmail returns the account for email, or
// [authedge.ErrAccountNotFound].
func (s *AccountStore) FindByEmail(ctx context.Context, email string) (*authedge.Account, error) {
	return s.findOne(ctx,
		`SELECT id, email, password_hash, verified, locked, locked_until, created_at
		   FROM accounts WHERE email = $1`, email)
}

// FindByID returns the account for id, or [authedge.ErrAccountNotFound].
func (s *AccountStore) FindByID(ctx context.Context, id uuid.UUID) (*authedge.Account, error) {
	return s.findOne(ctx,
		`SELECT id, email, password_hash, verified, locked, locked_until, created_at
		   FROM accounts WHERE id = $1`, id)
}

func (s *AccountStore) findOne(ctx context.Context, query string, arg any) (*authedge.Account, error) {
	var (
		account authedge.Account
		until   *time.Time
	)
	err := s.pool.QueryRow(ctx, query, arg).Scan(
		&account.ID,
		&account.Email,
		&account.PasswordHash,
		&account.Verified,
		&account.Locked,
		&until,
		&account.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, authedge.ErrAccountNotFound
		}
		return nil, err
	}
	account.LockedUntil = until
	return &account, nil
}

// Create inserts the account. A taken email returns
// [authedge.ErrAccountExists].
func (s *AccountStore) Create(ctx context.Context, account *authedge.Account) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO accounts (id, email, password_hash, verified, locked, locked_until, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		account.ID, account.Email, account.PasswordHash,
		account.Verified, account.Locked, account.LockedUntil, account.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return authedge.ErrAccountExists
	}
	return err
}

// UpdatePasswordHash replaces the account's password hash.
func (s *AccountStore) UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error {
	return s.exec(ctx, `UPDATE accounts SET password_hash = $2 WHERE id = $1`, id, hash)
}

// SetVerified marks the account's email address as verified.
func (s *AccountStore) SetVerified(ctx context.Context, id uuid.UUID) error {
	return s.exec(ctx, `UPDATE accounts SET verified = TRUE WHERE id = $1`, id)
}

// SetLock sets or clears the account lock.
func (s *AccountStore) SetLock(ctx context.Context, id uuid.UUID, locked bool, until *time.Time) error {
	return s.exec(ctx, `UPDATE accounts SET locked = $2, locked_until = $3 WHERE id = $1`, id, locked, until)
}

// Delete removes the account.
func (s *AccountStore) Delete(ctx context.Context, id uuid.UUID) error {
	return s.exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
}

func (s *AccountStore) exec(ctx context.Context, query string, args ...any) error {
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return authedge.ErrAccountNotFound
	}
	return nil
}
