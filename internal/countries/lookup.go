package countries

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const cacheKey = "countries:iso2:v1"

// Fetcher retrieves a fresh mapping from the remote service.
type Fetcher interface {
	Fetch(ctx context.Context) (map[string]string, error)
}

// Lookup serves the mapping from Redis when cached and falls back to the
// remote service otherwise. Concurrent misses share one remote call.
type Lookup struct {
	fetcher Fetcher
	redis   *redis.Client
	ttl     time.Duration
	logger  *slog.Logger
	group   singleflight.Group
}

// NewLookup wires a Lookup. A nil Redis client disables caching.
func NewLookup(fetcher Fetcher, client *redis.Client, ttl time.Duration, logger *slog.Logger) *Lookup {
	if logger == nil {
		logger = slog.Default()
	}
	return &Lookup{fetcher: fetcher, redis: client, ttl: ttl, logger: logger}
}

// Countries returns the code to name mapping. Failures are logged and yield
// an empty mapping so callers keep raw country values.
func (l *Lookup) Countries(ctx context.Context) map[string]string {
	if l == nil {
		return map[string]string{}
	}
	if cached, ok := l.cached(ctx); ok {
		return cached
	}
	mapping, err := l.refresh(ctx)
	if err != nil {
		l.logger.Warn("country lookup unavailable, keeping raw values", slog.Any("error", err))
		return map[string]string{}
	}
	return mapping
}

// Refresh forces a remote fetch and updates the cache.
func (l *Lookup) Refresh(ctx context.Context) (int, error) {
	if l == nil {
		return 0, errors.New("countries: lookup not configured")
	}
	mapping, err := l.refresh(ctx)
	if err != nil {
		return 0, err
	}
	return len(mapping), nil
}

func (l *Lookup) refresh(ctx context.Context) (map[string]string, error) {
	ch := l.group.DoChan(cacheKey, func() (interface{}, error) {
		mapping, err := l.fetcher.Fetch(ctx)
		if err != nil {
			return nil, err
		}
		l.store(ctx, mapping)
		return mapping, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(map[string]string), nil
	}
}

func (l *Lookup) cached(ctx context.Context) (map[string]string, bool) {
	if l.redis == nil {
		return nil, false
	}
	payload, err := l.redis.Get(ctx, cacheKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			l.logger.Warn("country cache read", slog.Any("error", err))
		}
		return nil, false
	}
	var mapping map[string]string
	if err := json.Unmarshal(payload, &mapping); err != nil {
		l.logger.Warn("country cache decode", slog.Any("error", err))
		return nil, false
	}
	return mapping, true
}

func (l *Lookup) store(ctx context.Context, mapping map[string]string) {
	if l.redis == nil || len(mapping) == 0 {
		return
	}
	raw, err := json.Marshal(mapping)
	if err != nil {
		return
	}
	if err := l.redis.Set(ctx, cacheKey, raw, l.ttl).Err(); err != nil {
		l.logger.Warn("country cache write", slog.Any("error", err))
	}
}
