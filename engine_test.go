package authedge

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

const (
	testEmail    = "alice@example.com"
	testPassword = "correct-password-123"
)

// memoryAccountStore is an in-memory AccountStore for engine tests.
type memoryAccountStore struct {
	mu       sync.Mutex
	byID     map[uuid.UUID]*Account
	byEmail  map[string]uuid.UUID
	sentMail []string
}

func newMemoryAccountStore() *memoryAccountStore {
	return &memoryAccountStore{
		byID:    make(map[uuid.UUID]*Account),
		byEmail: make(map[string]uuid.UUID),
	}
}

func (s *memoryAccountStore) FindByEmail(_ context.Context, email string) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byEmail[email]
	if !ok {
		return nil, ErrAccountNotFound
	}
	copy := *s.byID[id]
	return &copy, nil
}

func (s *memoryAccountStore) FindByID(_ context.Context, id uuid.UUID) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.byID[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	copy := *account
	return &copy, nil
}

func (s *memoryAccountStore) Create(_ context.Context, account *Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byEmail[account.Email]; ok {
		return ErrAccountExists
	}
	copy := *account
	s.byID[account.ID] = &copy
	s.byEmail[account.Email] = account.ID
	return nil
}

func (s *memoryAccountStore) UpdatePasswordHash(_ context.Context, id uuid.UUID, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.byID[id]
	if !ok {
		return ErrAccountNotFound
	}
	account.PasswordHash = hash
	return nil
}

func (s *memoryAccountStore) SetVerified(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.byID[id]
	if !ok {
		return ErrAccountNotFound
	}
	account.Verified = true
	return nil
}

func (s *memoryAccountStore) SetLock(_ context.Context, id uuid.UUID, locked bool, until *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.byID[id]
	if !ok {
		return ErrAccountNotFound
	}
	account.Locked = locked
	account.LockedUntil = until
	return nil
}

func (s *memoryAccountStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.byID[id]
	if !ok {
		return ErrAccountNotFound
	}
	delete(s.byEmail, account.Email)
	delete(s.byID, id)
	return nil
}

// recordingMailer captures codes instead of delivering them.
type recordingMailer struct {
	mu    sync.Mutex
	codes map[string]string
}

func newRecordingMailer() *recordingMailer {
	return &recordingMailer{codes: make(map[string]string)}
}

func (m *recordingMailer) SendVerificationCode(_ context.Context, email, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes["verify:"+email] = code
	return nil
}

func (m *recordingMailer) SendPasswordResetCode(_ context.Context, email, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes["reset:"+email] = code
	return nil
}

func (m *recordingMailer) code(purpose, email string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.codes[purpose+":"+email]
}

type testClock struct {
	mu  sync.Mutex
	cur time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cur
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur = c.cur.Add(d)
}

func engineTestConfig() Config {
	cfg := DefaultConfig()
	cfg.Session.TokenSecret = "engine-test-secret"
	cfg.Lockout.MaxAttempts = 5
	cfg.Lockout.AttemptWindow = 15 * time.Minute
	cfg.Lockout.Duration = 30 * time.Minute
	return cfg
}

type testEnv struct {
	engine   *Engine
	accounts *memoryAccountStore
	mailer   *recordingMailer
	clock    *testClock
	redis    *miniredis.Miniredis
}

// newTestEngine builds an engine on miniredis with one verified account
// (testEmail / testPassword).
func newTestEngine(t *testing.T, cfg Config) (*testEnv, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	// The store writes absolute expirations, so the clock starts at
	// the wall clock rather than a fixed date.
	clock := &testClock{cur: time.Now().UTC().Truncate(time.Second)}
	accounts := newMemoryAccountStore()
	mailer := newRecordingMailer()

	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithAccountStore(accounts).
		WithMailer(mailer).
		WithClock(clock.Now).
		Build()
	if err != nil {
		mr.Close()
		t.Fatalf("engine build: %v", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if err := accounts.Create(context.Background(), &Account{
		ID:           uuid.New(),
		Email:        testEmail,
		PasswordHash: string(hash),
		Verified:     true,
		CreatedAt:    clock.Now(),
	}); err != nil {
		t.Fatalf("seed account: %v", err)
	}

	env := &testEnv{engine: engine, accounts: accounts, mailer: mailer, clock: clock, redis: mr}
	return env, func() {
		rdb.Close()
		mr.Close()
	}
}
