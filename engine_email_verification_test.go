package authedge

import (
	"context"
	"errors"
	"testing"
)

func TestRegistrationAndVerificationFlow(t *testing.T) {
	env, done := newTestEngine(t, engineTestConfig())
	defer done()
	ctx := context.Background()

	const email = "carol@example.com"
	if _, err := env.engine.Register(ctx, RegisterRequest{Email: email, Password: "pw-123456"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	code := env.mailer.code("verify", email)
	if code == "" {
		t.Fatal("no verification code delivered on registration")
	}

	if err := env.engine.ConfirmEmailVerification(ctx, email, code); err != nil {
		t.Fatalf("confirm verification: %v", err)
	}
	if _, err := env.engine.Login(ctx, email, "pw-123456", ""); err != nil {
		t.Fatalf("login after verification: %v", err)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	env, done := newTestEngine(t, engineTestConfig())
	defer done()

	_, err := env.engine.Register(context.Background(), RegisterRequest{Email: testEmail, Password: "pw-123456"})
	if !errors.Is(err, ErrAccountExists) {
		t.Fatalf("expected ErrAccountExists, got %v", err)
	}
}

func TestVerificationWrongCode(t *testing.T) {
	env, done := newTestEngine(t, engineTestConfig())
	defer done()
	ctx := context.Background()

	const email = "dave@example.com"
	if _, err := env.engine.Register(ctx, RegisterRequest{Email: email, Password: "pw-123456"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := env.engine.ConfirmEmailVerification(ctx, email, "999999"); !errors.Is(err, ErrCodeInvalid) {
		t.Fatalf("expected ErrCodeInvalid, got %v", err)
	}
	// A wrong guess does not kill the real code until the attempt cap.
	code := env.mailer.code("verify", email)
	if err := env.engine.ConfirmEmailVerification(ctx, email, code); err != nil {
		t.Fatalf("confirm with real code after one wrong guess: %v", err)
	}
}

func TestVerificationReissueReplacesCode(t *testing.T) {
	env, done := newTestEngine(t, engineTestConfig())
	defer done()
	ctx := context.Background()

	const email = "erin@example.com"
	if _, err := env.engine.Register(ctx, RegisterRequest{Email: email, Password: "pw-123456"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	first := env.mailer.code("verify", email)

	if err := env.engine.RequestEmailVerification(ctx, email); err != nil {
		t.Fatalf("reissue: %v", err)
	}
	second := env.mailer.code("verify", email)

	if first != second {
		if err := env.engine.ConfirmEmailVerification(ctx, email, first); !errors.Is(err, ErrCodeInvalid) {
			t.Fatalf("expected first code replaced, got %v", err)
		}
	}
	if err := env.engine.ConfirmEmailVerification(ctx, email, second); err != nil {
		t.Fatalf("confirm with latest code: %v", err)
	}
}

func TestVerificationVerifiedAccountIsNoOp(t *testing.T) {
	env, done := newTestEngine(t, engineTestConfig())
	defer done()

	if err := env.engine.RequestEmailVerification(context.Background(), testEmail); err != nil {
		t.Fatalf("expected no-op for verified account, got %v", err)
	}
	if code := env.mailer.code("verify", testEmail); code != "" {
		t.Fatal("verified account should not receive a code")
	}
}
