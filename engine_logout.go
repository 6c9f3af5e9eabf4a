package authedge

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/authedge/authedge/metrics"
	"github.com/authedge/authedge/session"
)

// Logout deletes the session behind the raw token. Unknown tokens are
// not an error; logout is idempotent.
func (e *Engine) Logout(ctx context.Context, rawToken string) error {
	if err := e.store.DeleteByToken(ctx, rawToken); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	e.metricInc(func(m *metrics.Metrics) { m.SessionsRevoked.Inc() })
	return nil
}

// LogoutAll deletes every live session of the account.
func (e *Engine) LogoutAll(ctx context.Context, accountID uuid.UUID) error {
	if err := e.store.DeleteAllByAccount(ctx, accountID); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	e.metricInc(func(m *metrics.Metrics) { m.SessionsRevoked.Inc() })
	e.log.Info("all sessions revoked", zap.String("account", accountID.String()))
	return nil
}

// ActiveSessions lists the account's live sessions. Session IDs in the
// result are hashed; they identify sessions in listings but cannot be
// replayed as tokens.
func (e *Engine) ActiveSessions(ctx context.Context, accountID uuid.UUID) ([]*session.Session, error) {
	sessions, err := e.store.FindAllByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return sessions, nil
}
