package authedge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/authedge/authedge/metrics"
	"github.com/authedge/authedge/session"
)

func (e *Engine) attemptKey(email string) string {
	return e.config.Lockout.KeyPrefix + email
}

// Login authenticates the account and opens a session. presentedToken
// must be empty: a request that already carries a session token is
// rejected with [ErrTokenConflict] before credentials are checked.
//
// Failed attempts are counted per account in a fixed window. Once the
// count reaches the configured maximum, the next attempt locks the
// account regardless of whether its credentials are correct, and the
// counter starts over. A lock expires on its own; the first login
// attempt after the deadline clears it.
func (e *Engine) Login(ctx context.Context, email, password, presentedToken string) (*LoginResult, error) {
	if e == nil || e.accounts == nil {
		return nil, ErrEngineNotReady
	}
	if presentedToken != "" {
		return nil, ErrTokenConflict
	}

	account, err := e.accounts.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			e.metricInc(func(m *metrics.Metrics) { m.LoginFailure.Inc() })
			e.log.Info("login failed", zap.String("reason", "unknown identifier"))
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	now := e.now()
	if account.Locked {
		if !account.LockExpired(now) {
			if account.LockedUntil != nil {
				return nil, &LockedError{Until: *account.LockedUntil}
			}
			return nil, ErrAccountLocked
		}
		if err := e.accounts.SetLock(ctx, account.ID, false, nil); err != nil {
			return nil, err
		}
		account.Locked = false
		account.LockedUntil = nil
		e.log.Info("expired lock cleared", zap.String("account", account.ID.String()))
	}

	max := e.config.Lockout.MaxAttempts
	if max != Unlimited {
		count, err := e.attempts.GetAttempts(ctx, e.attemptKey(email))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		// At the threshold the next attempt locks, correct password or
		// not, so a live session cannot be minted under brute force.
		if count >= max {
			return nil, e.escalateLock(ctx, account, email, now)
		}
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		if max != Unlimited {
			if _, err := e.attempts.Increment(ctx, e.attemptKey(email), e.config.Lockout.AttemptWindow); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
			}
		}
		e.metricInc(func(m *metrics.Metrics) { m.LoginFailure.Inc() })
		e.log.Info("login failed",
			zap.String("account", account.ID.String()),
			zap.String("reason", "password mismatch"))
		return nil, ErrInvalidCredentials
	}

	if !account.Verified {
		return nil, ErrAccountUnverified
	}

	if max != Unlimited {
		if err := e.attempts.Reset(ctx, e.attemptKey(email)); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}

	sess, err := e.sessions.Create(ctx, account.ID, clientIPFromContext(ctx), userAgentFromContext(ctx), "")
	if err != nil {
		return nil, err
	}

	e.metricInc(func(m *metrics.Metrics) {
		m.LoginSuccess.Inc()
		m.SessionsCreated.Inc()
	})
	e.log.Info("login succeeded",
		zap.String("account", account.ID.String()),
		zap.Time("expiresAt", sess.ExpiresAt))

	return &LoginResult{
		AccountID: account.ID,
		Token:     sess.ID,
		ExpiresAt: sess.ExpiresAt,
	}, nil
}

// escalateLock resets the attempt counter and locks the account for the
// configured duration.
func (e *Engine) escalateLock(ctx context.Context, account *Account, email string, now time.Time) error {
	if err := e.attempts.Reset(ctx, e.attemptKey(email)); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	until := now.Add(e.config.Lockout.Duration)
	if err := e.accounts.SetLock(ctx, account.ID, true, &until); err != nil {
		return err
	}
	e.metricInc(func(m *metrics.Metrics) { m.AccountsLocked.Inc() })
	e.log.Warn("account locked",
		zap.String("account", account.ID.String()),
		zap.Time("until", until))
	return &LockedError{Until: until}
}

// Authenticate resolves a raw session token to a live session. Hard
// expired sessions are deleted and reported as [ErrSessionExpired] so
// callers can drop the stale token and continue unauthenticated. Soft
// expired sessions are refreshed in place, sliding the expiration
// forward but never past the hard ceiling.
func (e *Engine) Authenticate(ctx context.Context, rawToken string) (*session.Session, error) {
	sess, err := e.store.FindByID(ctx, rawToken)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	now := e.now()
	if sess.HardExpired(now) {
		if err := e.store.Delete(ctx, sess); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		e.metricInc(func(m *metrics.Metrics) { m.SessionsExpired.Inc() })
		return nil, ErrSessionExpired
	}
	if sess.Expired(now) {
		refreshed, err := e.sessions.Refresh(ctx, sess)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		e.metricInc(func(m *metrics.Metrics) { m.SessionsRefreshed.Inc() })
		return refreshed, nil
	}
	return sess, nil
}
