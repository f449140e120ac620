package vision

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store keeps each session's analysis timeline in a redis sorted set scored
// by frame timestamp.
type Store struct {
	redis     *redis.Client
	resultTTL time.Duration
}

func NewStore(redisClient *redis.Client, resultTTL time.Duration) *Store {
	if resultTTL == 0 {
		resultTTL = 24 * time.Hour
	}
	return &Store{
		redis:     redisClient,
		resultTTL: resultTTL,
	}
}

func resultsKey(sessionID string) string {
	return fmt.Sprintf("study:%s:results", sessionID)
}

func (s *Store) StoreResult(ctx context.Context, r *TimedResult) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}

	key := resultsKey(r.SessionID)
	pipe := s.redis.Pipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(r.Timestamp), Member: data})
	pipe.Expire(ctx, key, s.resultTTL)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Store) GetLatest(ctx context.Context, sessionID string) (*TimedResult, error) {
	members, err := s.redis.ZRevRange(ctx, resultsKey(sessionID), 0, 0).Result()
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, nil
	}

	var r TimedResult
	if err := json.Unmarshal([]byte(members[0]), &r); err != nil {
		return nil, fmt.Errorf("invalid result data: %w", err)
	}
	return &r, nil
}

// GetRange returns results with start <= timestamp <= end, oldest first. A
// zero end means no upper bound; limit <= 0 means no limit.
func (s *Store) GetRange(ctx context.Context, sessionID string, start, end int64, limit int) ([]*TimedResult, error) {
	max := "+inf"
	if end > 0 {
		max = strconv.FormatInt(end, 10)
	}
	opt := &redis.ZRangeBy{
		Min: strconv.FormatInt(start, 10),
		Max: max,
	}
	if limit > 0 {
		opt.Count = int64(limit)
	}

	members, err := s.redis.ZRangeByScore(ctx, resultsKey(sessionID), opt).Result()
	if err != nil {
		return nil, err
	}

	results := make([]*TimedResult, 0, len(members))
	for _, m := range members {
		var r TimedResult
		if err := json.Unmarshal([]byte(m), &r); err != nil {
			continue
		}
		results = append(results, &r)
	}
	return results, nil
}

func (s *Store) DeleteResults(ctx context.Context, sessionID string) error {
	return s.redis.Del(ctx, resultsKey(sessionID)).Err()
}
