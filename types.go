package authedge

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Account is the persistent account record the engine operates on.
// PasswordHash is a bcrypt hash; the plaintext never leaves the login path.
type Account struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	Verified     bool
	Locked       bool
	LockedUntil  *time.Time
	CreatedAt    time.Time
}

func newAccountID() uuid.UUID {
	return uuid.New()
}

// LockExpired reports whether the account carries a lock whose deadline
// has already passed. A lock with no deadline never expires on its own.
func (a *Account) LockExpired(now time.Time) bool {
	return a.Locked && a.LockedUntil != nil && !now.Before(*a.LockedUntil)
}

// AccountStore is the credential backend the engine reads and writes
// accounts through. Implementations return [ErrAccountNotFound] for
// unknown identifiers and [ErrAccountExists] on duplicate creation.
type AccountStore interface {
	FindByEmail(ctx context.Context, email string) (*Account, error)
	FindByID(ctx context.Context, id uuid.UUID) (*Account, error)
	Create(ctx context.Context, account *Account) error
	UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error
	SetVerified(ctx context.Context, id uuid.UUID) error
	SetLock(ctx context.Context, id uuid.UUID, locked bool, until *time.Time) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// Mailer delivers verification and reset codes to an account's email
// address. Delivery is best effort; the engine logs failures and
// continues.
type Mailer interface {
	SendVerificationCode(ctx context.Context, email, code string) error
	SendPasswordResetCode(ctx context.Context, email, code string) error
}

// EventPublisher receives account lifecycle events for downstream
// consumers. Publishing is best effort.
type EventPublisher interface {
	PublishAccountDeleted(ctx context.Context, accountID uuid.UUID, email string) error
}

// LoginResult is returned by [Engine.Login] on success. Token is the raw
// session token; it exists only in this result and is never persisted.
type LoginResult struct {
	AccountID uuid.UUID
	Token     string
	ExpiresAt time.Time
}

// RegisterRequest is the input for [Engine.Register].
type RegisterRequest struct {
	Email    string
	Password string
}
