package authedge

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/authedge/authedge/metrics"
)

func (e *Engine) resetRequestKey(email string) string {
	return e.config.Reset.KeyPrefix + "req:" + email
}

// RequestPasswordReset issues a reset code and emails it to the
// account. Unknown identifiers return nil so the endpoint does not
// confirm which emails have accounts. Issuance is throttled per
// identifier.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) error {
	reached, err := e.attempts.MaxReached(ctx, e.resetRequestKey(email), e.config.Reset.MaxRequests, e.config.Reset.RequestWindow)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if reached {
		e.metricInc(func(m *metrics.Metrics) { m.RateLimitHits.WithLabelValues("password_reset").Inc() })
		return ErrRateLimited
	}

	account, err := e.accounts.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil
		}
		return err
	}

	code, err := e.codes.Issue(ctx, e.config.Reset.KeyPrefix, account.ID, e.config.Reset.TTL)
	if err != nil {
		return err
	}
	e.metricInc(func(m *metrics.Metrics) { m.CodesIssued.WithLabelValues("password_reset").Inc() })

	if e.mailer != nil {
		if err := e.mailer.SendPasswordResetCode(ctx, account.Email, code); err != nil {
			e.log.Error("reset code delivery failed",
				zap.String("account", account.ID.String()),
				zap.Error(err))
		}
	}
	return nil
}

// ConfirmPasswordReset redeems a reset code, replaces the password
// hash, and revokes every session of the account. A wrong code burns
// one of the code's attempts; exhausting them invalidates the code.
// Resetting to the password already in place is rejected with
// [ErrPasswordReuse].
func (e *Engine) ConfirmPasswordReset(ctx context.Context, email, code, newPassword string) error {
	account, err := e.accounts.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return ErrCodeInvalid
		}
		return err
	}

	err = e.codes.Redeem(ctx, e.config.Reset.KeyPrefix, account.ID, code, e.config.Reset.MaxAttempts)
	if err != nil {
		switch {
		case errors.Is(err, errCodeNotFound), errors.Is(err, errCodeMismatch), errors.Is(err, errCodeAttemptsExceeded):
			return ErrCodeInvalid
		default:
			return err
		}
	}

	// The reuse check runs only after the code redeemed, so it never
	// serves as a password oracle for anyone without mailbox control.
	if bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(newPassword)) == nil {
		return ErrPasswordReuse
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := e.accounts.UpdatePasswordHash(ctx, account.ID, string(hash)); err != nil {
		return err
	}

	// A redeemed code proves control of the mailbox, so outstanding
	// lockout state and possibly stolen sessions both go.
	if e.config.Lockout.MaxAttempts != Unlimited {
		if err := e.attempts.Reset(ctx, e.attemptKey(email)); err != nil {
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}
	if account.Locked {
		if err := e.accounts.SetLock(ctx, account.ID, false, nil); err != nil {
			return err
		}
	}
	if err := e.LogoutAll(ctx, account.ID); err != nil {
		return err
	}

	e.metricInc(func(m *metrics.Metrics) { m.CodesRedeemed.WithLabelValues("password_reset").Inc() })
	e.log.Info("password reset", zap.String("account", account.ID.String()))
	return nil
}
