package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrConflict is returned when session creation is attempted while the
// request already presents a session token. This is a usage error on the
// caller's side, not a system failure.
var ErrConflict = errors.New("cannot create a session while one is already presented")

// Manager creates and refreshes sessions and enforces the per-account
// session cap by evicting the oldest-created sessions.
type Manager struct {
	store       *Store
	ttl         time.Duration
	hardTTL     time.Duration
	maxSessions int
	now         func() time.Time
	onEvict     func(*Session)
}

// NewManager creates a session Manager. ttl is the sliding soft expiry,
// hardTTL the absolute lifetime ceiling, and maxSessions the per-account
// cap. now may be nil, in which case time.Now is used.
func NewManager(store *Store, ttl, hardTTL time.Duration, maxSessions int, now func() time.Time) *Manager {
	if now == nil {
		now = time.Now
	}
	return &Manager{
		store:       store,
		ttl:         ttl,
		hardTTL:     hardTTL,
		maxSessions: maxSessions,
		now:         now,
	}
}

// Create builds, caps, and persists a new session for an account.
// presentedToken is whatever session identifier the request carried;
// creation is rejected with ErrConflict when one is present, since a
// request lineage holds at most one active session context.
//
// When the account is at or over the cap, the oldest sessions by
// CreatedAt are deleted until the new session fits. Concurrent creations
// for one account can transiently overshoot the cap by a small margin;
// that is tolerated and self-corrects on the next creation.
//
// The returned session carries the RAW token. This is the only point in
// the system where the raw token is available after the request that
// created it.
func (m *Manager) Create(ctx context.Context, accountID uuid.UUID, ip, userAgent, presentedToken string) (*Session, error) {
	if presentedToken != "" {
		return nil, ErrConflict
	}

	active, err := m.store.FindAllByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	for len(active) >= m.maxSessions && len(active) > 0 {
		oldest := 0
		for i, sess := range active {
			if sess.CreatedAt.Before(active[oldest].CreatedAt) {
				oldest = i
			}
		}
		if err := m.store.Delete(ctx, active[oldest]); err != nil {
			return nil, err
		}
		if m.onEvict != nil {
			m.onEvict(active[oldest])
		}
		active = append(active[:oldest], active[oldest+1:]...)
	}

	sess, err := New(accountID, ip, userAgent, m.ttl, m.hardTTL, m.now())
	if err != nil {
		return nil, err
	}
	if err := m.store.Save(ctx, sess); err != nil {
		return nil, err
	}

	return sess, nil
}

// Refresh persists a sliding-expiry extension for a session previously
// read from the store, clamped at its hard expiration. The record keeps
// its identifier; only ExpiresAt moves.
func (m *Manager) Refresh(ctx context.Context, sess *Session) (*Session, error) {
	next := Refresh(sess, m.ttl, m.now())
	if err := m.store.Update(ctx, next); err != nil {
		return nil, err
	}
	return next, nil
}

// OnEvict registers a callback invoked once per session removed by cap
// enforcement, after the delete succeeded. Set it before the manager is
// shared between goroutines.
func (m *Manager) OnEvict(fn func(*Session)) {
	m.onEvict = fn
}

// TTL exposes the configured sliding expiry window.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}
