package storage

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"anonchat/backend/internal/metrics"
	"anonchat/backend/internal/models"
)

// Redis key layout. The queue is a sorted set scored by enqueue time so
// FIFO order and per-entry expiry fall out of the score; pairs are two
// symmetric string keys.
const (
	queueKey          = "chat:queue"
	pairKeyPrefix     = "chat:pair:"
	presenceKeyPrefix = "chat:presence:"
)

// RedisStore is the ephemeral key/value state backend.
type RedisStore struct {
	rdb      *redis.Client
	queueTTL time.Duration
	pairTTL  time.Duration // 0 = pairs never expire
}

// NewRedisStore wraps an already-connected client. The caller pings at
// startup; failure to reach Redis there is fatal.
func NewRedisStore(rdb *redis.Client, queueTTL, pairTTL time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, queueTTL: queueTTL, pairTTL: pairTTL}
}

func pairKey(userID string) string     { return pairKeyPrefix + userID }
func presenceKey(userID string) string { return presenceKeyPrefix + userID }

func (s *RedisStore) cutoff() float64 {
	return float64(time.Now().Add(-s.queueTTL).UnixNano())
}

func (s *RedisStore) Enqueue(ctx context.Context, userID string) error {
	return withRetry(ctx, func() error {
		_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.ZAdd(ctx, queueKey, redis.Z{
				Score:  float64(time.Now().UnixNano()),
				Member: userID,
			})
			// Safety net on top of per-entry expiry: an abandoned queue
			// disappears from the keyspace entirely.
			pipe.Expire(ctx, queueKey, s.queueTTL)
			return nil
		})
		return err
	})
}

func (s *RedisStore) DequeueSkipping(ctx context.Context, selfID string) (string, bool, error) {
	var candidate string
	var found bool
	err := withRetry(ctx, func() error {
		candidate, found = "", false
		for {
			entries, err := s.rdb.ZRangeWithScores(ctx, queueKey, 0, 0).Result()
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				return nil
			}
			head, ok := entries[0].Member.(string)
			if !ok {
				head = ""
			}
			if err := s.rdb.ZRem(ctx, queueKey, head).Err(); err != nil {
				return err
			}
			if entries[0].Score < s.cutoff() {
				metrics.RecordQueueExpiry(1)
				continue
			}
			if head == selfID || head == "" {
				continue
			}
			candidate, found = head, true
			return nil
		}
	})
	if err != nil {
		return "", false, err
	}
	return candidate, found, nil
}

func (s *RedisStore) RemoveFromQueue(ctx context.Context, userID string) error {
	return withRetry(ctx, func() error {
		return s.rdb.ZRem(ctx, queueKey, userID).Err()
	})
}

func (s *RedisStore) IsQueued(ctx context.Context, userID string) (bool, error) {
	var queued bool
	err := withRetry(ctx, func() error {
		score, err := s.rdb.ZScore(ctx, queueKey, userID).Result()
		if errors.Is(err, redis.Nil) {
			queued = false
			return nil
		}
		if err != nil {
			return err
		}
		if score < s.cutoff() {
			// Expired entry: discard it now rather than at dequeue time.
			queued = false
			metrics.RecordQueueExpiry(1)
			return s.rdb.ZRem(ctx, queueKey, userID).Err()
		}
		queued = true
		return nil
	})
	return queued, err
}

func (s *RedisStore) QueueDepth(ctx context.Context) (int, error) {
	var depth int
	err := withRetry(ctx, func() error {
		n, err := s.rdb.ZCount(ctx, queueKey,
			strconv.FormatFloat(s.cutoff(), 'f', -1, 64), "+inf").Result()
		if err != nil {
			return err
		}
		depth = int(n)
		return nil
	})
	return depth, err
}

// SetPair writes both directions of the relation in one MULTI/EXEC so a
// reader can never observe a one-sided pair.
func (s *RedisStore) SetPair(ctx context.Context, a, b string) error {
	return withRetry(ctx, func() error {
		_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, pairKey(a), b, s.pairTTL)
			pipe.Set(ctx, pairKey(b), a, s.pairTTL)
			return nil
		})
		return err
	})
}

func (s *RedisStore) GetPartner(ctx context.Context, userID string) (string, bool, error) {
	var partner string
	var ok bool
	err := withRetry(ctx, func() error {
		val, err := s.rdb.Get(ctx, pairKey(userID)).Result()
		if errors.Is(err, redis.Nil) {
			partner, ok = "", false
			return nil
		}
		if err != nil {
			return err
		}
		partner, ok = val, true
		return nil
	})
	return partner, ok, err
}

func (s *RedisStore) ClearPair(ctx context.Context, userID string) (string, bool, error) {
	var partner string
	var ok bool
	err := withRetry(ctx, func() error {
		val, err := s.rdb.Get(ctx, pairKey(userID)).Result()
		if errors.Is(err, redis.Nil) {
			partner, ok = "", false
			return nil
		}
		if err != nil {
			return err
		}
		_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, pairKey(userID))
			pipe.Del(ctx, pairKey(val))
			return nil
		})
		if err != nil {
			return err
		}
		partner, ok = val, true
		return nil
	})
	return partner, ok, err
}

func (s *RedisStore) PairCount(ctx context.Context) (int, error) {
	var count int
	err := withRetry(ctx, func() error {
		count = 0
		iter := s.rdb.Scan(ctx, 0, pairKeyPrefix+"*", 0).Iterator()
		for iter.Next(ctx) {
			count++
		}
		return iter.Err()
	})
	// Кожна пара — це два симетричні ключі.
	return count / 2, err
}

func (s *RedisStore) SetPresence(ctx context.Context, userID, state string) error {
	return withRetry(ctx, func() error {
		return s.rdb.Set(ctx, presenceKey(userID), state, 0).Err()
	})
}

func (s *RedisStore) GetPresence(ctx context.Context, userID string) (string, error) {
	var state string
	err := withRetry(ctx, func() error {
		val, err := s.rdb.Get(ctx, presenceKey(userID)).Result()
		if errors.Is(err, redis.Nil) {
			state = models.PresenceOffline
			return nil
		}
		if err != nil {
			return err
		}
		state = val
		return nil
	})
	return state, err
}
