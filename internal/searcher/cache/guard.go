package cache

import (
	"context"
	"errors"
	"time"

	pkgredis "github.com/Adithya-Monish-Kumar-K/docindex/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/resilience"
)

// Guard wraps backend with a circuit breaker so an unreachable Redis costs
// one fast error per lookup instead of a dial timeout. Misses count as
// successful calls.
func Guard(backend Backend, breaker *resilience.Breaker) Backend {
	return &guarded{backend: backend, breaker: breaker}
}

type guarded struct {
	backend Backend
	breaker *resilience.Breaker
}

func (g *guarded) Get(ctx context.Context, key string) ([]byte, error) {
	var (
		data []byte
		miss bool
	)
	err := g.breaker.Do(func() error {
		var err error
		data, err = g.backend.Get(ctx, key)
		if errors.Is(err, pkgredis.ErrMiss) {
			miss = true
			return nil
		}
		return err
	})
	if miss {
		return nil, pkgredis.ErrMiss
	}
	return data, err
}

func (g *guarded) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return g.breaker.Do(func() error {
		return g.backend.Set(ctx, key, value, ttl)
	})
}

func (g *guarded) CountByPattern(ctx context.Context, pattern string) (int64, error) {
	var n int64
	err := g.breaker.Do(func() error {
		var err error
		n, err = g.backend.CountByPattern(ctx, pattern)
		return err
	})
	return n, err
}

// DeleteByPattern bypasses the breaker: invalidation is an explicit operator
// action and should report the real error.
func (g *guarded) DeleteByPattern(ctx context.Context, pattern string) (int64, error) {
	return g.backend.DeleteByPattern(ctx, pattern)
}
