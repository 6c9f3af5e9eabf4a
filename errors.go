package authedge

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidCredentials is returned by [Engine.Login] when the identifier
	// is unknown or the password does not match. The two cases are not
	// distinguishable by the caller.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked is returned when the account is locked and the lock
	// has not yet expired. Use [AsLocked] to recover the unlock time.
	ErrAccountLocked = errors.New("account locked")
	// ErrAccountUnverified is returned by login when the account's email
	// address has not been verified yet.
	ErrAccountUnverified = errors.New("account unverified")
	// ErrAccountNotFound is returned by account lookups for unknown IDs.
	ErrAccountNotFound = errors.New("account not found")
	// ErrAccountExists is returned by registration for a taken identifier.
	ErrAccountExists = errors.New("account already exists")
	// ErrRateLimited is returned when a fixed-window counter for the
	// operation has reached its cap.
	ErrRateLimited = errors.New("rate limited")
	// ErrCodeInvalid is returned when a reset or verification code does not
	// match, is expired, or was never issued.
	ErrCodeInvalid = errors.New("code invalid or expired")
	// ErrSessionNotFound is returned when a presented session token does not
	// resolve to a live session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExpired is returned when a presented session token resolved
	// to a session past its hard expiration. The session is deleted; the
	// caller proceeds unauthenticated rather than being rejected.
	ErrSessionExpired = errors.New("session hard-expired")
	// ErrPasswordReuse is returned when a password reset or change supplies
	// the password already in place.
	ErrPasswordReuse = errors.New("new password must differ from current password")
	// ErrAmbiguousToken is returned when a request carries conflicting
	// session tokens in the cookie and the header.
	ErrAmbiguousToken = errors.New("ambiguous session token")
	// ErrTokenConflict is returned when a login request already carries a
	// session token.
	ErrTokenConflict = errors.New("session token already present")
	// ErrStoreUnavailable wraps backend failures from Redis or Postgres.
	ErrStoreUnavailable = errors.New("backing store unavailable")
	// ErrEngineNotReady is returned when the engine is used before all
	// required dependencies were supplied.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// LockedError carries the time at which a locked account unlocks.
// It matches [ErrAccountLocked] under [errors.Is].
type LockedError struct {
	Until time.Time
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("account locked until %s", e.Until.UTC().Format(time.RFC3339))
}

// Is reports whether target is [ErrAccountLocked].
func (e *LockedError) Is(target error) bool {
	return target == ErrAccountLocked
}

// AsLocked extracts the unlock time from an error chain containing a
// [LockedError]. ok is false for any other error.
func AsLocked(err error) (until time.Time, ok bool) {
	var le *LockedError
	if errors.As(err, &le) {
		return le.Until, true
	}
	return time.Time{}, false
}
