package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestManager(t *testing.T, maxSessions int) (*Manager, *Store, *time.Time, func()) {
	t.Helper()
	store, _, done := newTestStore(t)

	cur := time.Now()
	mgr := NewManager(store, 900*time.Second, 86400*time.Second, maxSessions, func() time.Time {
		return cur
	})
	return mgr, store, &cur, done
}

func TestCreateRejectsPresentedToken(t *testing.T) {
	mgr, _, _, done := newTestManager(t, 3)
	defer done()

	_, err := mgr.Create(context.Background(), uuid.New(), "ip", "ua", "some-live-token")
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestCapEvictsEarliestCreated(t *testing.T) {
	mgr, store, cur, done := newTestManager(t, 3)
	defer done()
	ctx := context.Background()
	accountID := uuid.New()

	// Create A, B, C, D with strictly increasing createdAt.
	tokens := make([]string, 0, 4)
	for i := 0; i < 4; i++ {
		sess, err := mgr.Create(ctx, accountID, "ip", "ua", "")
		if err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
		tokens = append(tokens, sess.ID)
		*cur = cur.Add(time.Second)
	}

	active, err := store.FindAllByAccount(ctx, accountID)
	if err != nil {
		t.Fatalf("find all: %v", err)
	}
	if len(active) != 3 {
		t.Fatalf("expected exactly 3 sessions after cap eviction, got %d", len(active))
	}

	if ok, _ := store.Exists(ctx, tokens[0]); ok {
		t.Fatalf("oldest session A survived eviction")
	}
	for i, raw := range tokens[1:] {
		if ok, _ := store.Exists(ctx, raw); !ok {
			t.Fatalf("session %d unexpectedly evicted", i+1)
		}
	}
}

func TestCapEvictsMultipleWhenOverLimit(t *testing.T) {
	mgr, store, cur, done := newTestManager(t, 2)
	defer done()
	ctx := context.Background()
	accountID := uuid.New()

	// Seed three sessions directly, bypassing the cap, as concurrent
	// creations racing past the check would.
	var raws []string
	for i := 0; i < 3; i++ {
		sess, err := New(accountID, "ip", "ua", 900*time.Second, 86400*time.Second, *cur)
		if err != nil {
			t.Fatalf("new: %v", err)
		}
		if err := store.Save(ctx, sess); err != nil {
			t.Fatalf("save: %v", err)
		}
		raws = append(raws, sess.ID)
		*cur = cur.Add(time.Second)
	}

	if _, err := mgr.Create(ctx, accountID, "ip", "ua", ""); err != nil {
		t.Fatalf("create: %v", err)
	}

	active, err := store.FindAllByAccount(ctx, accountID)
	if err != nil {
		t.Fatalf("find all: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("expected cap of 2 restored, got %d sessions", len(active))
	}
	for _, raw := range raws[:2] {
		if ok, _ := store.Exists(ctx, raw); ok {
			t.Fatalf("earliest sessions not evicted first")
		}
	}
}

func TestEvictionHookFiresPerEvictedSession(t *testing.T) {
	mgr, store, cur, done := newTestManager(t, 2)
	defer done()
	ctx := context.Background()
	accountID := uuid.New()

	var evicted []string
	mgr.OnEvict(func(sess *Session) {
		evicted = append(evicted, sess.ID)
	})

	var raws []string
	for i := 0; i < 3; i++ {
		sess, err := New(accountID, "ip", "ua", 900*time.Second, 86400*time.Second, *cur)
		if err != nil {
			t.Fatalf("new: %v", err)
		}
		if err := store.Save(ctx, sess); err != nil {
			t.Fatalf("save: %v", err)
		}
		raws = append(raws, store.hasher.Hash(sess.ID))
		*cur = cur.Add(time.Second)
	}

	if _, err := mgr.Create(ctx, accountID, "ip", "ua", ""); err != nil {
		t.Fatalf("create: %v", err)
	}

	// Three over a cap of two means exactly two evictions, oldest first.
	if len(evicted) != 2 {
		t.Fatalf("hook fired %d times, want 2", len(evicted))
	}
	if evicted[0] != raws[0] || evicted[1] != raws[1] {
		t.Fatalf("evicted %v, want the two earliest %v", evicted, raws[:2])
	}
}

func TestRefreshPreservesIdentifierAndClamps(t *testing.T) {
	mgr, store, cur, done := newTestManager(t, 3)
	defer done()
	ctx := context.Background()
	accountID := uuid.New()

	created, err := mgr.Create(ctx, accountID, "ip", "ua", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	raw := created.ID

	// Access after the soft window has lapsed but well inside the hard
	// window: refresh extends by the full TTL from refresh time.
	*cur = cur.Add(901 * time.Second)
	loaded, err := store.FindByID(ctx, raw)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if !loaded.Expired(*cur) {
		t.Fatalf("expected soft-expired session")
	}
	if loaded.HardExpired(*cur) {
		t.Fatalf("unexpected hard expiry")
	}

	refreshed, err := mgr.Refresh(ctx, loaded)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if refreshed.ID != loaded.ID {
		t.Fatalf("refresh changed the identifier")
	}
	if !refreshed.ExpiresAt.Equal(cur.Add(900 * time.Second)) {
		t.Fatalf("expiresAt = %v, want refresh time + 900s", refreshed.ExpiresAt)
	}

	reloaded, err := store.FindByID(ctx, raw)
	if err != nil {
		t.Fatalf("find after refresh: %v", err)
	}
	if !reloaded.ExpiresAt.Equal(refreshed.ExpiresAt) {
		t.Fatalf("refresh not persisted")
	}

	// Near the ceiling the extension clamps to hardExpiration exactly.
	*cur = created.HardExpiration.Add(-time.Minute)
	clamped, err := mgr.Refresh(ctx, reloaded)
	if err != nil {
		t.Fatalf("refresh near ceiling: %v", err)
	}
	if !clamped.ExpiresAt.Equal(created.HardExpiration) {
		t.Fatalf("expiresAt = %v, want hardExpiration %v", clamped.ExpiresAt, created.HardExpiration)
	}
}
