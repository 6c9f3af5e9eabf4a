package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when no session record exists for an identifier.
var ErrNotFound = errors.New("session not found")

// ErrRedisUnavailable wraps transport-level Redis failures. Session
// validity can never be assumed while the store is unreachable, so these
// are surfaced to the caller rather than masked.
var ErrRedisUnavailable = errors.New("redis unavailable")

// Store persists session records and a per-account index of live session
// identifiers in Redis. Records are keyed by the HMAC of the raw token;
// both the record and the index entry expire at the session's hard
// expiration.
//
// The record write and the index write are intentionally independent (the
// backend is not assumed to provide multi-key transactions). A crash
// between them leaves either an index member with no record, pruned lazily
// by FindAllByAccount, or an orphan record that stays reachable by direct
// lookup until its hard TTL lapses.
type Store struct {
	redis         redis.UniversalClient
	hasher        *Hasher
	prefix        string
	accountPrefix string
}

// NewStore creates a session Store backed by the given Redis client.
// prefix and accountPrefix namespace the record keys and the per-account
// index sets.
func NewStore(redisClient redis.UniversalClient, hasher *Hasher, prefix, accountPrefix string) *Store {
	return &Store{
		redis:         redisClient,
		hasher:        hasher,
		prefix:        prefix,
		accountPrefix: accountPrefix,
	}
}

func (s *Store) key(hashedID string) string {
	return s.prefix + hashedID
}

func (s *Store) accountKey(accountID uuid.UUID) string {
	return s.accountPrefix + accountID.String()
}

// Save persists a freshly created session. sess.ID must be the raw token;
// the stored record and the index member both carry the hashed form, and
// the caller's copy is left untouched so the raw token can still be handed
// to the client.
func (s *Store) Save(ctx context.Context, sess *Session) error {
	record := *sess
	record.ID = s.hasher.Hash(sess.ID)
	return s.write(ctx, &record)
}

// Update re-persists a record previously read from the store, keeping its
// hashed key. Used by the sliding-refresh path, where only ExpiresAt has
// changed.
func (s *Store) Update(ctx context.Context, sess *Session) error {
	return s.write(ctx, sess)
}

func (s *Store) write(ctx context.Context, record *Session) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}

	sessionKey := s.key(record.ID)
	accountKey := s.accountKey(record.AccountID)

	// Record first: an index member without a record is tolerated and
	// pruned on read, the reverse leaks a session until hard expiry.
	// SET and its deadline go in one command so a fault in between
	// cannot leave a record with no expiry.
	setArgs := redis.SetArgs{ExpireAt: record.HardExpiration}
	if err := s.redis.SetArgs(ctx, sessionKey, data, setArgs).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, accountKey, record.ID)
		pipe.ExpireAt(ctx, accountKey, record.HardExpiration)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// FindByID fetches a session by its raw token. The returned record carries
// the hashed identifier. Absence is reported as ErrNotFound, never as a
// panic or a transport error.
func (s *Store) FindByID(ctx context.Context, rawID string) (*Session, error) {
	return s.findHashed(ctx, s.hasher.Hash(rawID))
}

func (s *Store) findHashed(ctx context.Context, hashedID string) (*Session, error) {
	data, err := s.redis.Get(ctx, s.key(hashedID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, err
	}
	sess.ID = hashedID
	return &sess, nil
}

// Exists probes for a session by raw token without deserializing the
// record.
func (s *Store) Exists(ctx context.Context, rawID string) (bool, error) {
	n, err := s.redis.Exists(ctx, s.key(s.hasher.Hash(rawID))).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n > 0, nil
}

// FindAllByAccount returns every live session for an account. Index
// members whose record has already expired or been deleted are dropped
// from the result and pruned from the index set.
func (s *Store) FindAllByAccount(ctx context.Context, accountID uuid.UUID) ([]*Session, error) {
	accountKey := s.accountKey(accountID)

	hashedIDs, err := s.redis.SMembers(ctx, accountKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(hashedIDs) == 0 {
		return nil, nil
	}

	pipe := s.redis.Pipeline()
	cmds := make([]*redis.StringCmd, len(hashedIDs))
	for i, id := range hashedIDs {
		cmds[i] = pipe.Get(ctx, s.key(id))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sessions := make([]*Session, 0, len(hashedIDs))
	var tombstones []interface{}
	for i, cmd := range cmds {
		data, cmdErr := cmd.Bytes()
		if cmdErr != nil {
			if errors.Is(cmdErr, redis.Nil) {
				tombstones = append(tombstones, hashedIDs[i])
				continue
			}
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, cmdErr)
		}

		var sess Session
		if err := json.Unmarshal(data, &sess); err != nil {
			return nil, err
		}
		sess.ID = hashedIDs[i]
		sessions = append(sessions, &sess)
	}

	if len(tombstones) > 0 {
		if err := s.redis.SRem(ctx, accountKey, tombstones...).Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return sessions, nil
}

// Delete removes a record previously read from the store, along with its
// index membership. sess.ID must be the hashed identifier. Deleting an
// already-absent session is a no-op.
func (s *Store) Delete(ctx context.Context, sess *Session) error {
	return s.deleteHashed(ctx, sess.AccountID, sess.ID)
}

// DeleteByToken removes a session by its raw token. Unknown tokens are a
// no-op, keeping logout idempotent under retries and races.
func (s *Store) DeleteByToken(ctx context.Context, rawID string) error {
	sess, err := s.findHashed(ctx, s.hasher.Hash(rawID))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	return s.deleteHashed(ctx, sess.AccountID, sess.ID)
}

func (s *Store) deleteHashed(ctx context.Context, accountID uuid.UUID, hashedID string) error {
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key(hashedID))
		pipe.SRem(ctx, s.accountKey(accountID), hashedID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// DeleteAllByAccount removes every live session for an account. The
// deletes are per-session and not atomic across entries; a fault mid-way
// leaves fewer sessions, never more.
func (s *Store) DeleteAllByAccount(ctx context.Context, accountID uuid.UUID) error {
	sessions, err := s.FindAllByAccount(ctx, accountID)
	if err != nil {
		return err
	}

	for _, sess := range sessions {
		if err := s.Delete(ctx, sess); err != nil {
			return err
		}
	}

	if err := s.redis.Del(ctx, s.accountKey(accountID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Ping returns a point-in-time Redis availability check and its latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}
