package authedge

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const codeDigits = 6

var (
	errCodeNotFound         = errors.New("code record not found")
	errCodeMismatch         = errors.New("code mismatch")
	errCodeAttemptsExceeded = errors.New("code attempts exceeded")
)

// codeRecord is the Redis value behind an issued one-time code. Only the
// SHA-256 of the code is stored.
type codeRecord struct {
	AccountID uuid.UUID `json:"accountId"`
	CodeHash  []byte    `json:"codeHash"`
	Attempts  int       `json:"attempts"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// codeStore issues and redeems emailed one-time codes. One record per
// account per purpose; issuing again replaces the previous code.
type codeStore struct {
	redis redis.UniversalClient
	now   func() time.Time
}

func newCodeStore(redisClient redis.UniversalClient, now func() time.Time) *codeStore {
	return &codeStore{redis: redisClient, now: now}
}

func codeKey(prefix string, accountID uuid.UUID) string {
	return prefix + accountID.String()
}

// newCode returns a uniformly random six digit code.
func newCode() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < codeDigits; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", codeDigits, n), nil
}

func hashCode(code string) []byte {
	sum := sha256.Sum256([]byte(code))
	return sum[:]
}

// Issue creates a fresh code for the account, replacing any outstanding
// one, and returns the plaintext for delivery.
func (s *codeStore) Issue(ctx context.Context, prefix string, accountID uuid.UUID, ttl time.Duration) (string, error) {
	code, err := newCode()
	if err != nil {
		return "", err
	}

	record := codeRecord{
		AccountID: accountID,
		CodeHash:  hashCode(code),
		ExpiresAt: s.now().Add(ttl),
	}
	data, err := json.Marshal(record)
	if err != nil {
		return "", err
	}
	if err := s.redis.Set(ctx, codeKey(prefix, accountID), data, ttl).Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return code, nil
}

// Redeem consumes the outstanding code for the account. A matching code
// deletes the record and returns nil. A mismatch increments the attempt
// count and returns errCodeMismatch, or deletes the record and returns
// errCodeAttemptsExceeded once maxAttempts is reached.
func (s *codeStore) Redeem(ctx context.Context, prefix string, accountID uuid.UUID, code string, maxAttempts int) error {
	const maxRetries = 4
	key := codeKey(prefix, accountID)
	provided := hashCode(code)

	for i := 0; i < maxRetries; i++ {
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			var record codeRecord
			if err := json.Unmarshal(data, &record); err != nil {
				return err
			}
			if s.now().After(record.ExpiresAt) {
				_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					return nil
				})
				if err != nil {
					return err
				}
				return errCodeNotFound
			}

			if subtle.ConstantTimeCompare(record.CodeHash, provided) != 1 {
				record.Attempts++
				if record.Attempts >= maxAttempts {
					_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
						pipe.Del(ctx, key)
						return nil
					})
					if err != nil {
						return err
					}
					return errCodeAttemptsExceeded
				}

				updated, err := json.Marshal(record)
				if err != nil {
					return err
				}
				ttl := record.ExpiresAt.Sub(s.now())
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Set(ctx, key, updated, ttl)
					return nil
				})
				if err != nil {
					return err
				}
				return errCodeMismatch
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, key)
				return nil
			})
			return err
		}, key)

		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			switch {
			case errors.Is(err, redis.Nil), errors.Is(err, errCodeNotFound):
				return errCodeNotFound
			case errors.Is(err, errCodeMismatch), errors.Is(err, errCodeAttemptsExceeded):
				return err
			default:
				return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
			}
		}
		return nil
	}

	return errCodeNotFound
}
