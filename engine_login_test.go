package authedge

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLoginReturnsRawToken(t *testing.T) {
	env, done := newTestEngine(t, engineTestConfig())
	defer done()
	ctx := context.Background()

	result, err := env.engine.Login(ctx, testEmail, testPassword, "")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if result.Token == "" {
		t.Fatal("expected raw token in result")
	}

	sess, err := env.engine.Authenticate(ctx, result.Token)
	if err != nil {
		t.Fatalf("authenticate with returned token: %v", err)
	}
	if sess.AccountID != result.AccountID {
		t.Fatalf("session bound to %s, want %s", sess.AccountID, result.AccountID)
	}
}

func TestLoginRejectsPresentedToken(t *testing.T) {
	env, done := newTestEngine(t, engineTestConfig())
	defer done()

	_, err := env.engine.Login(context.Background(), testEmail, testPassword, "some-existing-token")
	if !errors.Is(err, ErrTokenConflict) {
		t.Fatalf("expected ErrTokenConflict, got %v", err)
	}
}

func TestLoginUnknownIdentifier(t *testing.T) {
	env, done := newTestEngine(t, engineTestConfig())
	defer done()

	_, err := env.engine.Login(context.Background(), "nobody@example.com", testPassword, "")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLoginUnverifiedAccountRejected(t *testing.T) {
	env, done := newTestEngine(t, engineTestConfig())
	defer done()
	ctx := context.Background()

	account, err := env.engine.Register(ctx, RegisterRequest{Email: "bob@example.com", Password: "pw-123456"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if account.Verified {
		t.Fatal("fresh registration must be unverified")
	}

	_, err = env.engine.Login(ctx, "bob@example.com", "pw-123456", "")
	if !errors.Is(err, ErrAccountUnverified) {
		t.Fatalf("expected ErrAccountUnverified, got %v", err)
	}
}

func TestLockoutThresholdLocksRegardlessOfPassword(t *testing.T) {
	env, done := newTestEngine(t, engineTestConfig())
	defer done()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := env.engine.Login(ctx, testEmail, "wrong-password", "")
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i+1, err)
		}
	}

	// The attempt after the threshold locks, correct password or not.
	_, err := env.engine.Login(ctx, testEmail, testPassword, "")
	if !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("expected ErrAccountLocked, got %v", err)
	}
	until, ok := AsLocked(err)
	if !ok {
		t.Fatal("expected LockedError carrying the unlock time")
	}
	want := env.clock.Now().Add(30 * time.Minute)
	if !until.Equal(want) {
		t.Fatalf("locked until %v, want %v", until, want)
	}

	// Subsequent attempts keep failing with the lock.
	_, err = env.engine.Login(ctx, testEmail, testPassword, "")
	if !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("expected ErrAccountLocked while locked, got %v", err)
	}
}

func TestLockExpiresOnItsOwn(t *testing.T) {
	env, done := newTestEngine(t, engineTestConfig())
	defer done()
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		env.engine.Login(ctx, testEmail, "wrong-password", "")
	}
	if _, err := env.engine.Login(ctx, testEmail, testPassword, ""); !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("expected locked account, got %v", err)
	}

	env.clock.Advance(30*time.Minute + time.Second)

	result, err := env.engine.Login(ctx, testEmail, testPassword, "")
	if err != nil {
		t.Fatalf("login after lock expiry: %v", err)
	}
	if result.Token == "" {
		t.Fatal("expected token after lock expiry")
	}

	account, err := env.accounts.FindByEmail(ctx, testEmail)
	if err != nil {
		t.Fatalf("find account: %v", err)
	}
	if account.Locked || account.LockedUntil != nil {
		t.Fatal("expired lock was not cleared")
	}
}

func TestSuccessfulLoginResetsFailureCounter(t *testing.T) {
	env, done := newTestEngine(t, engineTestConfig())
	defer done()
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		env.engine.Login(ctx, testEmail, "wrong-password", "")
	}
	if _, err := env.engine.Login(ctx, testEmail, testPassword, ""); err != nil {
		t.Fatalf("login at 4 failures: %v", err)
	}

	// With the counter reset, four more failures stay under the
	// threshold instead of compounding with the earlier four.
	for i := 0; i < 4; i++ {
		_, err := env.engine.Login(ctx, testEmail, "wrong-password", "")
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("post-reset attempt %d: expected ErrInvalidCredentials, got %v", i+1, err)
		}
	}
}

func TestAuthenticateRefreshesSoftExpiredSession(t *testing.T) {
	cfg := engineTestConfig()
	cfg.Session.TTL = 15 * time.Minute
	cfg.Session.HardTTL = 24 * time.Hour
	env, done := newTestEngine(t, cfg)
	defer done()
	ctx := context.Background()

	result, err := env.engine.Login(ctx, testEmail, testPassword, "")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	env.clock.Advance(16 * time.Minute)

	sess, err := env.engine.Authenticate(ctx, result.Token)
	if err != nil {
		t.Fatalf("authenticate soft-expired session: %v", err)
	}
	want := env.clock.Now().Add(15 * time.Minute)
	if !sess.ExpiresAt.Equal(want) {
		t.Fatalf("refreshed expiry %v, want %v", sess.ExpiresAt, want)
	}
}

func TestAuthenticateDeletesHardExpiredSession(t *testing.T) {
	cfg := engineTestConfig()
	cfg.Session.TTL = 15 * time.Minute
	cfg.Session.HardTTL = time.Hour
	env, done := newTestEngine(t, cfg)
	defer done()
	ctx := context.Background()

	result, err := env.engine.Login(ctx, testEmail, testPassword, "")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	env.clock.Advance(time.Hour + time.Second)

	if _, err := env.engine.Authenticate(ctx, result.Token); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired for hard-expired session, got %v", err)
	}
	// Deleted on first sight: the token no longer resolves at all.
	if _, err := env.engine.Authenticate(ctx, result.Token); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected session to stay deleted, got %v", err)
	}
}
