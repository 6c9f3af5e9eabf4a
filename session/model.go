package session

import (
	"time"

	"github.com/google/uuid"
)

// Session represents one authenticated client context.
//
// ID holds the raw token between creation and the first Save, and the
// hashed store key on every record read back from Redis. CreatedAt, IP,
// UserAgent, and HardExpiration are immutable for the session's lifetime;
// only ExpiresAt advances, via Refresh.
type Session struct {
	ID             string    `json:"id"`
	AccountID      uuid.UUID `json:"accountId"`
	CreatedAt      time.Time `json:"createdAt"`
	IP             string    `json:"ip"`
	UserAgent      string    `json:"userAgent"`
	ExpiresAt      time.Time `json:"expiresAt"`
	HardExpiration time.Time `json:"hardExpiration"`
}

// New builds a session with a freshly generated 256-bit raw token.
// ExpiresAt is now+ttl and HardExpiration is now+hardTTL; ttl must not
// exceed hardTTL, so expiresAt <= hardExpiration holds from birth.
func New(accountID uuid.UUID, ip, userAgent string, ttl, hardTTL time.Duration, now time.Time) (*Session, error) {
	token, err := NewToken()
	if err != nil {
		return nil, err
	}

	soft := now.Add(ttl)
	hard := now.Add(hardTTL)
	if soft.After(hard) {
		soft = hard
	}

	return &Session{
		ID:             token,
		AccountID:      accountID,
		CreatedAt:      now,
		IP:             ip,
		UserAgent:      userAgent,
		ExpiresAt:      soft,
		HardExpiration: hard,
	}, nil
}

// Refresh returns a copy of s with ExpiresAt moved to now+ttl, clamped at
// HardExpiration. The identifier and all binding metadata carry over
// unchanged; refresh never extends total session lifetime.
func Refresh(s *Session, ttl time.Duration, now time.Time) *Session {
	next := *s
	soft := now.Add(ttl)
	if soft.After(s.HardExpiration) {
		soft = s.HardExpiration
	}
	next.ExpiresAt = soft
	return &next
}

// Expired reports whether the sliding soft expiry has lapsed.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// HardExpired reports whether the absolute lifetime ceiling has been
// crossed. A hard-expired session is unrecoverable.
func (s *Session) HardExpired(now time.Time) bool {
	return now.After(s.HardExpiration)
}
