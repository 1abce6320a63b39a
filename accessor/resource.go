package accessor

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/dailyyoga/offline/logger"
	"github.com/dailyyoga/offline/routine"
	"go.uber.org/zap"
)

// State is a snapshot of a Resource.
type State[T any] struct {
	Data    T
	HasData bool
	Loading bool
	// Stale is set while Data is a cached fallback after a failed fetch.
	Stale bool
	// Err is the last fetch failure that had no cached fallback.
	Err           error
	LastUpdatedAt time.Time
}

// Resource binds a cache key and fetch function into a handle with local
// state. Values are shared with every other reader through the Accessor's
// store; the local state belongs to this handle only.
//
// After Close, fetches still in flight may write to the store but no longer
// change the handle's state. A fetch that started before Invalidate is
// discarded when it lands, and its value is removed from the store again.
type Resource[T any] struct {
	logger   logger.Logger
	accessor *Accessor
	key      string
	fetch    FetchFunc[T]

	name            string
	ttl             time.Duration
	refreshInterval time.Duration
	refreshTimeout  time.Duration

	mu        sync.RWMutex
	state     State[T]
	inflight  int
	gen       uint64 // bumped by Invalidate
	listeners []func(State[T])
	closed    bool

	ctx       context.Context
	cancel    context.CancelFunc
	startOnce sync.Once
	closeOnce sync.Once
	runner    routine.Runner
}

// NewResource creates a resource for key. A nil config uses
// DefaultResourceConfig. Call Start to enable auto-refresh.
func NewResource[T any](a *Accessor, key string, fetch FetchFunc[T], cfg *ResourceConfig) (*Resource[T], error) {
	if a == nil {
		return nil, ErrNilStore
	}
	if key == "" {
		return nil, ErrEmptyKey
	}
	if fetch == nil {
		return nil, ErrNilFetch
	}
	if cfg == nil {
		cfg = DefaultResourceConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	name := cfg.Name
	if name == "" {
		name = key
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Resource[T]{
		logger:          a.logger,
		accessor:        a,
		key:             key,
		fetch:           fetch,
		name:            name,
		ttl:             cfg.TTL,
		refreshInterval: cfg.RefreshInterval,
		refreshTimeout:  cfg.RefreshTimeout,
		ctx:             ctx,
		cancel:          cancel,
		runner:          routine.New(a.logger),
	}, nil
}

// Key returns the cache key of the resource.
func (r *Resource[T]) Key() string {
	return r.key
}

// Load reads through the cache, fetching only when needed.
func (r *Resource[T]) Load(ctx context.Context) (State[T], error) {
	return r.load(ctx, false)
}

// Refresh always fetches, falling back to the cached value on failure.
func (r *Resource[T]) Refresh(ctx context.Context) (State[T], error) {
	return r.load(ctx, true)
}

func (r *Resource[T]) load(ctx context.Context, force bool) (State[T], error) {
	gen, ok := r.begin()
	if !ok {
		return r.State(), ErrResourceClosed
	}

	opts := []GetOption{WithTTL(r.ttl)}
	if force {
		opts = append(opts, WithForceRefresh())
	}
	v, res, err := GetWithCache(ctx, r.accessor, r.key, r.fetch, opts...)

	r.mu.Lock()
	r.inflight--
	if r.closed {
		st := r.state
		r.mu.Unlock()
		return st, ErrResourceClosed
	}
	if gen != r.gen {
		r.state.Loading = r.inflight > 0
		st := r.state
		listeners := slices.Clone(r.listeners)
		r.mu.Unlock()

		r.accessor.Invalidate(r.key)
		r.logger.Debug("fetch result discarded after invalidate",
			zap.String("resource", r.name), logger.CacheKey(r.key))
		if !st.Loading {
			r.notify(st, listeners)
		}
		return st, err
	}
	if err != nil {
		r.state.Err = err
	} else {
		r.state.Data = v
		r.state.HasData = true
		r.state.Stale = res.Stale
		r.state.Err = nil
		r.state.LastUpdatedAt = r.accessor.now()
	}
	r.state.Loading = r.inflight > 0
	st := r.state
	listeners := slices.Clone(r.listeners)
	r.mu.Unlock()

	r.notify(st, listeners)
	return st, err
}

// begin marks a fetch as in flight and reports whether the resource is open,
// along with the invalidation generation the fetch belongs to.
func (r *Resource[T]) begin() (uint64, bool) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return 0, false
	}
	gen := r.gen
	r.inflight++
	wasLoading := r.state.Loading
	r.state.Loading = true
	st := r.state
	listeners := slices.Clone(r.listeners)
	r.mu.Unlock()

	if !wasLoading {
		r.notify(st, listeners)
	}
	return gen, true
}

// Invalidate deletes the key from the store and resets the local state to
// absent without fetching. Fetches already in flight are discarded.
func (r *Resource[T]) Invalidate() {
	r.accessor.Invalidate(r.key)

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.gen++
	r.state = State[T]{Loading: r.inflight > 0}
	st := r.state
	listeners := slices.Clone(r.listeners)
	r.mu.Unlock()

	r.notify(st, listeners)
}

// State returns the current local state.
//
// Data is the resource's own decoded copy; treat it as read-only when T is a
// reference type, since every State call returns the same value.
func (r *Resource[T]) State() State[T] {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// OnChange registers a listener called after every state change.
func (r *Resource[T]) OnChange(fn func(State[T])) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	r.listeners = append(r.listeners, fn)
	r.mu.Unlock()
}

// Start begins auto-refresh when a refresh interval is configured.
// It does not load; call Load first for an initial value.
func (r *Resource[T]) Start() {
	if r.refreshInterval <= 0 {
		return
	}
	r.startOnce.Do(func() {
		r.runner.Every(r.ctx, r.name+"-refresh", r.refreshInterval, r.refreshOnce)
	})
}

func (r *Resource[T]) refreshOnce(ctx context.Context) {
	if r.refreshTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.refreshTimeout)
		defer cancel()
	}
	if _, err := r.Refresh(ctx); err != nil && err != ErrResourceClosed {
		r.logger.Warn("auto-refresh failed",
			zap.String("resource", r.name),
			logger.CacheKey(r.key),
			zap.Error(err),
		)
	}
}

// Close stops auto-refresh, waits for a running refresh tick to return and
// detaches the local state. It can be called multiple times safely, but not
// from an OnChange listener or the fetch function.
func (r *Resource[T]) Close() {
	r.closeOnce.Do(func() {
		r.mu.Lock()
		r.closed = true
		r.listeners = nil
		r.mu.Unlock()
		r.cancel()
		r.runner.Wait()
	})
}

func (r *Resource[T]) notify(st State[T], listeners []func(State[T])) {
	for _, fn := range listeners {
		if err := routine.Call(func() error { fn(st); return nil }); err != nil {
			r.logger.Error("resource listener failed", zap.String("resource", r.name), zap.Error(err))
		}
	}
}
