package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/civicweave/civicweave-backend/internal/domain"
	"github.com/civicweave/civicweave-backend/internal/platform/envutil"
	"github.com/civicweave/civicweave-backend/internal/platform/logger"
)

// CandidateQueue holds candidate signals whose similarity lookup failed, so
// the reconciler can retry them on the next run instead of dropping them.
type CandidateQueue interface {
	Push(ctx context.Context, scopeKey string, cand domain.CandidateSignal) error
	// Pop returns the oldest queued candidate, or (nil, nil) when empty.
	Pop(ctx context.Context, scopeKey string) (*domain.CandidateSignal, error)
	Len(ctx context.Context, scopeKey string) (int64, error)
}

type candidateQueue struct {
	log       *logger.Logger
	rdb       *goredis.Client
	keyPrefix string
}

func NewCandidateQueue(log *logger.Logger) (CandidateQueue, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	addr := envutil.String("REDIS_ADDR", "")
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &candidateQueue{
		log:       log.With("service", "RedisCandidateQueue"),
		rdb:       rdb,
		keyPrefix: envutil.String("REDIS_QUEUE_PREFIX", "cw:candidates"),
	}, nil
}

func (q *candidateQueue) key(scopeKey string) string {
	return q.keyPrefix + ":" + scopeKey
}

func (q *candidateQueue) Push(ctx context.Context, scopeKey string, cand domain.CandidateSignal) error {
	if q == nil || q.rdb == nil {
		return fmt.Errorf("candidate queue not initialized")
	}
	raw, err := json.Marshal(cand)
	if err != nil {
		return err
	}
	return q.rdb.LPush(ctx, q.key(scopeKey), raw).Err()
}

func (q *candidateQueue) Pop(ctx context.Context, scopeKey string) (*domain.CandidateSignal, error) {
	if q == nil || q.rdb == nil {
		return nil, fmt.Errorf("candidate queue not initialized")
	}
	raw, err := q.rdb.RPop(ctx, q.key(scopeKey)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var cand domain.CandidateSignal
	if err := json.Unmarshal(raw, &cand); err != nil {
		q.log.Warn("dropping undecodable queued candidate", "error", err)
		return nil, nil
	}
	return &cand, nil
}

func (q *candidateQueue) Len(ctx context.Context, scopeKey string) (int64, error) {
	if q == nil || q.rdb == nil {
		return 0, fmt.Errorf("candidate queue not initialized")
	}
	return q.rdb.LLen(ctx, q.key(scopeKey)).Result()
}
