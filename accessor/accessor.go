// Package accessor implements stale-while-revalidate reads on top of the
// cache store.
//
// GetWithCache answers from a valid cache entry without calling the fetch
// function. On a miss, an expired entry, or a forced refresh it fetches,
// writes the result through to the store, and returns it. When the fetch
// fails the last known value is served, even if expired; only a failed fetch
// with nothing cached reaches the caller as an error.
//
// Resource binds one key and fetch function into a long-lived handle with
// observable state and optional auto-refresh.
package accessor

import (
	"context"
	"time"

	"github.com/dailyyoga/offline/cache"
	"github.com/dailyyoga/offline/logger"
	"github.com/dailyyoga/offline/routine"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// FetchFunc loads the authoritative value for a key. It carries its own
// timeout; a timeout is an ordinary failure.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Source tells where a GetWithCache result came from.
type Source string

const (
	SourceCache Source = "cache"
	SourceFetch Source = "fetch"
	SourceStale Source = "stale"
)

// Result describes how a value was obtained.
type Result struct {
	Source Source
	// Stale is set when the value is a fallback after a failed fetch.
	Stale bool
}

// Accessor serves reads through a shared cache store. Concurrent fetches of
// the same key are collapsed into one call.
type Accessor struct {
	logger logger.Logger
	store  cache.Store
	group  singleflight.Group
	now    func() time.Time
}

// Option configures an Accessor.
type Option func(*Accessor)

// WithClock overrides the time source used for LastUpdatedAt. Intended for
// tests.
func WithClock(now func() time.Time) Option {
	return func(a *Accessor) { a.now = now }
}

// New creates an Accessor over store.
func New(log logger.Logger, store cache.Store, opts ...Option) (*Accessor, error) {
	if store == nil {
		return nil, ErrNilStore
	}
	a := &Accessor{
		logger: logger.OrNop(log),
		store:  store,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Store returns the underlying cache store.
func (a *Accessor) Store() cache.Store {
	return a.store
}

// Invalidate removes key from the store without fetching.
func (a *Accessor) Invalidate(key string) {
	a.store.Delete(key)
	a.group.Forget(key)
	a.logger.Debug("cache entry invalidated", logger.CacheKey(key))
}

// InvalidatePrefix removes every key starting with prefix and returns how
// many were removed. Keys reserved in the store, such as the sync queue
// snapshot, are kept.
func (a *Accessor) InvalidatePrefix(prefix string) int {
	n := a.store.DeleteByPrefix(prefix)
	a.logger.Debug("cache entries invalidated",
		zap.String("prefix", prefix),
		zap.Int("removed", n),
	)
	return n
}

type getOptions struct {
	ttl          time.Duration
	forceRefresh bool
}

// GetOption configures a single GetWithCache call.
type GetOption func(*getOptions)

// WithTTL sets the lifetime of a freshly fetched value. Without it the
// store's default TTL applies.
func WithTTL(ttl time.Duration) GetOption {
	return func(o *getOptions) { o.ttl = ttl }
}

// WithForceRefresh skips the cache lookup and always fetches.
func WithForceRefresh() GetOption {
	return func(o *getOptions) { o.forceRefresh = true }
}

// GetWithCache returns the value for key, fetching it when the cache cannot
// answer. The returned error is non-nil only when the fetch failed and no
// value, fresh or expired, is cached; it wraps the fetch error.
func GetWithCache[T any](ctx context.Context, a *Accessor, key string, fetch FetchFunc[T], opts ...GetOption) (T, Result, error) {
	var zero T
	if key == "" {
		return zero, Result{}, ErrEmptyKey
	}
	if fetch == nil {
		return zero, Result{}, ErrNilFetch
	}

	var o getOptions
	for _, opt := range opts {
		opt(&o)
	}

	if !o.forceRefresh {
		if v, ok := cache.Get[T](a.store, key); ok {
			return v, Result{Source: SourceCache}, nil
		}
	}

	v, err, shared := a.group.Do(key, func() (any, error) {
		var val T
		err := routine.Call(func() error {
			var ferr error
			val, ferr = fetch(ctx)
			return ferr
		})
		if err != nil {
			return nil, err
		}
		a.store.Set(key, val, o.ttl)
		return val, nil
	})

	if err == nil {
		// callers sharing a fetch get their own decoded copy
		if shared {
			if cp, ok := cache.Get[T](a.store, key); ok {
				return cp, Result{Source: SourceFetch}, nil
			}
		}
		if val, ok := v.(T); ok {
			return val, Result{Source: SourceFetch}, nil
		}
		if cp, ok := cache.Get[T](a.store, key); ok {
			return cp, Result{Source: SourceFetch}, nil
		}
		err = ErrTypeMismatch(key, v)
	}

	if stale, ok := cache.GetStale[T](a.store, key); ok {
		a.logger.Warn("fetch failed, serving cached value",
			logger.CacheKey(key),
			zap.Bool("force_refresh", o.forceRefresh),
			zap.Error(err),
		)
		return stale, Result{Source: SourceStale, Stale: true}, nil
	}

	a.logger.Error("fetch failed with no cached fallback",
		logger.CacheKey(key),
		zap.Error(err),
	)
	return zero, Result{}, ErrFetch(key, err)
}
