package study

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/eleven-am/focus-backend/internal/shared"
	"github.com/redis/go-redis/v9"
)

// errUnchanged tells Mutate to skip the write-back.
var errUnchanged = errors.New("session unchanged")

const (
	sessionTTL    = 24 * time.Hour
	mutateRetries = 5
)

type Store struct {
	redis *redis.Client
}

func NewStore(redisClient *redis.Client) *Store {
	return &Store{redis: redisClient}
}

func (s *Store) Create(ctx context.Context, sess *Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	ok, err := s.redis.SetNX(ctx, sess.RedisKey(), data, sessionTTL).Result()
	if err != nil {
		return err
	}
	if !ok {
		return shared.ErrConflict
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*Session, error) {
	return load(ctx, s.redis, id)
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func load(ctx context.Context, r getter, id string) (*Session, error) {
	data, err := r.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return &sess, nil
}

// Mutate applies fn to the stored session under WATCH and writes it back.
// A concurrent writer causes the read-modify-write to be retried.
func (s *Store) Mutate(ctx context.Context, id string, fn func(*Session) error) (*Session, error) {
	key := sessionKey(id)
	var result *Session

	txf := func(tx *redis.Tx) error {
		sess, err := load(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := fn(sess); err != nil {
			if errors.Is(err, errUnchanged) {
				result = sess
				return nil
			}
			return err
		}
		data, err := json.Marshal(sess)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, redis.KeepTTL)
			return nil
		})
		if err == nil {
			result = sess
		}
		return err
	}

	for i := 0; i < mutateRetries; i++ {
		err := s.redis.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return result, nil
	}
	return nil, fmt.Errorf("mutate session %s: %w", id, shared.ErrConflict)
}

func (s *Store) Delete(ctx context.Context, id string) error {
	return s.redis.Del(ctx, sessionKey(id)).Err()
}
