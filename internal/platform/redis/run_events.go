package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/civicweave/civicweave-backend/internal/platform/envutil"
	"github.com/civicweave/civicweave-backend/internal/platform/logger"
)

// RunEvent is a phase progress notification an admin UI can subscribe to.
type RunEvent struct {
	ScopeKey string         `json:"scope_key"`
	Phase    string         `json:"phase"`
	Status   string         `json:"status"`
	Detail   map[string]any `json:"detail,omitempty"`
	At       time.Time      `json:"at"`
}

type RunEventBus interface {
	Publish(ctx context.Context, ev RunEvent) error
	Close() error
}

type runEventBus struct {
	log     *logger.Logger
	rdb     *goredis.Client
	channel string
}

func NewRunEventBus(log *logger.Logger) (RunEventBus, error) {
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

	return &runEventBus{
		log:     log.With("service", "RedisRunEventBus"),
		rdb:     rdb,
		channel: envutil.String("REDIS_RUN_EVENTS_CHANNEL", "cw:run_events"),
	}, nil
}

func (b *runEventBus) Publish(ctx context.Context, ev RunEvent) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("run event bus not initialized")
	}
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, raw).Err()
}

func (b *runEventBus) Close() error {
	if b == nil || b.rdb == nil {
		return nil
	}
	return b.rdb.Close()
}
