package authedge

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/authedge/authedge/metrics"
)

// DeleteAccount removes the account, revokes all of its sessions, and
// publishes a lifecycle event for downstream consumers. The caller must
// already hold an authenticated session for the account.
func (e *Engine) DeleteAccount(ctx context.Context, accountID uuid.UUID, password string) error {
	account, err := e.accounts.FindByID(ctx, accountID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}

	// Sessions first. A failure here leaves the account intact and
	// retryable rather than deleted with live sessions behind it.
	if err := e.LogoutAll(ctx, accountID); err != nil {
		return err
	}
	if err := e.accounts.Delete(ctx, accountID); err != nil {
		return err
	}

	e.metricInc(func(m *metrics.Metrics) { m.AccountsDeleted.Inc() })
	e.log.Info("account deleted", zap.String("account", accountID.String()))

	if e.events != nil {
		if err := e.events.PublishAccountDeleted(ctx, accountID, account.Email); err != nil {
			e.log.Error("account deletion event not published",
				zap.String("account", accountID.String()),
				zap.Error(err))
		}
	}
	return nil
}

// ChangePassword replaces the password hash after verifying the current
// password, then revokes every other session of the account.
func (e *Engine) ChangePassword(ctx context.Context, accountID uuid.UUID, current, next string) error {
	account, err := e.accounts.FindByID(ctx, accountID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(current)); err != nil {
		return ErrInvalidCredentials
	}
	if current == next {
		return ErrPasswordReuse
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := e.accounts.UpdatePasswordHash(ctx, accountID, string(hash)); err != nil {
		return err
	}
	if err := e.LogoutAll(ctx, accountID); err != nil {
		return err
	}
	e.log.Info("password changed", zap.String("account", accountID.String()))
	return nil
}

// LockAccount locks the account until the given deadline, keeping any
// already issued sessions out of new logins. Intended for operator use;
// the automatic lockout path manages its own deadlines.
func (e *Engine) LockAccount(ctx context.Context, accountID uuid.UUID, until time.Time) error {
	account, err := e.accounts.FindByID(ctx, accountID)
	if err != nil {
		return err
	}
	if err := e.accounts.SetLock(ctx, accountID, true, &until); err != nil {
		return err
	}
	e.metricInc(func(m *metrics.Metrics) { m.AccountsLocked.Inc() })
	e.log.Warn("account locked",
		zap.String("account", account.ID.String()),
		zap.Time("until", until))
	return nil
}

// UnlockAccount clears a lock before its deadline and discards the
// failed attempt counter, so the next login starts from a clean slate.
func (e *Engine) UnlockAccount(ctx context.Context, accountID uuid.UUID) error {
	account, err := e.accounts.FindByID(ctx, accountID)
	if err != nil {
		return err
	}
	if err := e.accounts.SetLock(ctx, accountID, false, nil); err != nil {
		return err
	}
	if e.config.Lockout.MaxAttempts != Unlimited {
		if err := e.attempts.Reset(ctx, e.attemptKey(account.Email)); err != nil {
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}
	e.log.Info("account unlocked", zap.String("account", account.ID.String()))
	return nil
}
