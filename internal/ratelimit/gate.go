// Package ratelimit implements a fixed-window admission gate keyed by client.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"clancha/internal/domain"
)

const (
	DefaultWindow = 60 * time.Second
	DefaultLimit  = 10
)

// ErrContention is returned when a key's record kept changing underneath
// every update attempt.
var ErrContention = errors.New("ratelimit: record contention")

// Store persists one RateRecord per key. CompareAndSwap must replace the
// stored record with next only if the stored record still equals prev, with
// a nil prev meaning "no record yet".
type Store interface {
	Load(ctx context.Context, key string) (domain.RateRecord, bool, error)
	CompareAndSwap(ctx context.Context, prev *domain.RateRecord, next domain.RateRecord) (bool, error)
}

// Gate admits at most limit calls per key per window. Windows start on the
// first call after the previous window expired.
type Gate struct {
	store  Store
	window time.Duration
	limit  int
	now    func() time.Time
}

type Option func(*Gate)

func WithWindow(d time.Duration) Option {
	return func(g *Gate) {
		if d > 0 {
			g.window = d
		}
	}
}

func WithLimit(n int) Option {
	return func(g *Gate) {
		if n > 0 {
			g.limit = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(g *Gate) {
		if now != nil {
			g.now = now
		}
	}
}

func NewGate(store Store, opts ...Option) (*Gate, error) {
	if store == nil {
		return nil, errors.New("ratelimit: store must not be nil")
	}
	g := &Gate{
		store:  store,
		window: DefaultWindow,
		limit:  DefaultLimit,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Check records a call for key and reports whether it is admitted. A denied
// call leaves the record unchanged.
func (g *Gate) Check(ctx context.Context, key string) (bool, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return false, errors.New("ratelimit: key must not be empty")
	}
	// Every lost swap means another caller was admitted, so limit+1 attempts
	// always reach a decision within one window.
	for attempt := 0; attempt <= g.limit+1; attempt++ {
		now := g.now()
		rec, found, err := g.store.Load(ctx, key)
		if err != nil {
			return false, fmt.Errorf("ratelimit: load %q: %w", key, err)
		}

		var prev *domain.RateRecord
		next := domain.RateRecord{Key: key, Count: 1, WindowResetTime: now.Add(g.window)}
		if found {
			prev = &rec
			if !now.After(rec.WindowResetTime) {
				if rec.Count >= g.limit {
					return false, nil
				}
				next = rec
				next.Count++
			}
		}

		swapped, err := g.store.CompareAndSwap(ctx, prev, next)
		if err != nil {
			return false, fmt.Errorf("ratelimit: update %q: %w", key, err)
		}
		if swapped {
			return true, nil
		}
	}
	return false, ErrContention
}
