package authedge

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/authedge/authedge/metrics"
)

func (e *Engine) verifyRequestKey(email string) string {
	return e.config.Verify.KeyPrefix + "req:" + email
}

// Register creates an unverified account and issues its first
// verification code. The account cannot log in until the code is
// redeemed.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (*Account, error) {
	if e == nil || e.accounts == nil {
		return nil, ErrEngineNotReady
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	account := &Account{
		ID:           newAccountID(),
		Email:        req.Email,
		PasswordHash: string(hash),
		CreatedAt:    e.now(),
	}
	if err := e.accounts.Create(ctx, account); err != nil {
		return nil, err
	}
	e.log.Info("account registered", zap.String("account", account.ID.String()))

	if err := e.RequestEmailVerification(ctx, req.Email); err != nil && !errors.Is(err, ErrRateLimited) {
		return nil, err
	}
	return account, nil
}

// RequestEmailVerification issues a verification code and emails it to
// the account. Issuance is throttled per identifier; already verified
// accounts and unknown identifiers return nil.
func (e *Engine) RequestEmailVerification(ctx context.Context, email string) error {
	reached, err := e.attempts.MaxReached(ctx, e.verifyRequestKey(email), e.config.Verify.MaxRequests, e.config.Verify.RequestWindow)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if reached {
		e.metricInc(func(m *metrics.Metrics) { m.RateLimitHits.WithLabelValues("email_verification").Inc() })
		return ErrRateLimited
	}

	account, err := e.accounts.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil
		}
		return err
	}
	if account.Verified {
		return nil
	}

	code, err := e.codes.Issue(ctx, e.config.Verify.KeyPrefix, account.ID, e.config.Verify.TTL)
	if err != nil {
		return err
	}
	e.metricInc(func(m *metrics.Metrics) { m.CodesIssued.WithLabelValues("email_verification").Inc() })

	if e.mailer != nil {
		if err := e.mailer.SendVerificationCode(ctx, account.Email, code); err != nil {
			e.log.Error("verification code delivery failed",
				zap.String("account", account.ID.String()),
				zap.Error(err))
		}
	}
	return nil
}

// ConfirmEmailVerification redeems a verification code and marks the
// account verified.
func (e *Engine) ConfirmEmailVerification(ctx context.Context, email, code string) error {
	account, err := e.accounts.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return ErrCodeInvalid
		}
		return err
	}

	err = e.codes.Redeem(ctx, e.config.Verify.KeyPrefix, account.ID, code, e.config.Verify.MaxAttempts)
	if err != nil {
		switch {
		case errors.Is(err, errCodeNotFound), errors.Is(err, errCodeMismatch), errors.Is(err, errCodeAttemptsExceeded):
			return ErrCodeInvalid
		default:
			return err
		}
	}

	if err := e.accounts.SetVerified(ctx, account.ID); err != nil {
		return err
	}
	e.metricInc(func(m *metrics.Metrics) { m.CodesRedeemed.WithLabelValues("email_verification").Inc() })
	e.log.Info("email verified", zap.String("account", account.ID.String()))
	return nil
}
