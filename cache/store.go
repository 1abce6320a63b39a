package cache

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dailyyoga/offline/logger"
	"go.uber.org/zap"
)

type entry struct {
	data      []byte // msgpack form, when encoded
	raw       any    // original value, when it could not be encoded
	encoded   bool
	createdAt time.Time
	expiresAt time.Time
}

// valid reports whether the entry is still live at now.
func (e *entry) valid(now time.Time) bool {
	return now.Before(e.expiresAt)
}

// Option configures a Store.
type Option func(*memoryStore)

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(s *memoryStore) { s.now = now }
}

// memoryStore implements Store with a mutex-guarded map
type memoryStore struct {
	logger     logger.Logger
	defaultTTL time.Duration
	now        func() time.Time

	mu       sync.RWMutex
	entries  map[string]*entry
	reserved map[string]struct{}
}

var _ Store = (*memoryStore)(nil)

// NewStore creates an in-memory Store.
// It returns an error if the configuration is invalid.
func NewStore(log logger.Logger, cfg *Config, opts ...Option) (Store, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	} else {
		cfg = cfg.MergeDefaults()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &memoryStore{
		logger:     logger.OrNop(log),
		defaultTTL: cfg.DefaultTTL,
		now:        time.Now,
		entries:    make(map[string]*entry),
		reserved:   make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *memoryStore) Set(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}

	ent := &entry{}
	if data, err := encode(value); err == nil {
		ent.data = data
		ent.encoded = true
	} else {
		s.logger.Warn("value is not encodable, storing as-is",
			logger.CacheKey(key),
			zap.String("type", typeName(value)),
			zap.Error(err),
		)
		ent.raw = value
	}

	now := s.now()
	ent.createdAt = now
	ent.expiresAt = now.Add(ttl)

	s.mu.Lock()
	s.entries[key] = ent
	s.mu.Unlock()
}

func (s *memoryStore) Get(key string, dst any) bool {
	return s.lookup(key, dst, false)
}

func (s *memoryStore) GetStale(key string, dst any) bool {
	return s.lookup(key, dst, true)
}

func (s *memoryStore) lookup(key string, dst any, allowExpired bool) bool {
	s.mu.RLock()
	ent, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return false
	}
	if !allowExpired && !ent.valid(s.now()) {
		return false
	}
	if !decodeInto(ent, dst) {
		s.logger.Warn("cached value could not be decoded",
			logger.CacheKey(key),
			zap.String("target", typeName(dst)),
		)
		return false
	}
	return true
}

func (s *memoryStore) Has(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ent, ok := s.entries[key]
	return ok && ent.valid(s.now())
}

func (s *memoryStore) Delete(key string) {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

func (s *memoryStore) DeleteByPrefix(prefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key := range s.entries {
		if _, ok := s.reserved[key]; ok {
			continue
		}
		if strings.HasPrefix(key, prefix) {
			delete(s.entries, key)
			removed++
		}
	}
	if removed > 0 {
		s.logger.Debug("cache entries invalidated by prefix",
			zap.String("prefix", prefix),
			zap.Int("removed", removed),
		)
	}
	return removed
}

func (s *memoryStore) Cleanup() int {
	now := s.now()

	s.mu.Lock()
	removed := 0
	for key, ent := range s.entries {
		if !ent.valid(now) {
			delete(s.entries, key)
			removed++
		}
	}
	remaining := len(s.entries)
	s.mu.Unlock()

	if removed > 0 {
		s.logger.Debug("expired cache entries removed",
			zap.Int("removed", removed),
			zap.Int("remaining", remaining),
		)
	}
	return removed
}

func (s *memoryStore) Clear() {
	s.mu.Lock()
	kept := make(map[string]*entry, len(s.reserved))
	for key := range s.reserved {
		if ent, ok := s.entries[key]; ok {
			kept[key] = ent
		}
	}
	s.entries = kept
	s.mu.Unlock()
}

func (s *memoryStore) Reserve(key string) {
	s.mu.Lock()
	s.reserved[key] = struct{}{}
	s.mu.Unlock()
}

func (s *memoryStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.entries))
	for key := range s.entries {
		keys = append(keys, key)
	}
	return keys
}

func (s *memoryStore) Stats() Stats {
	now := s.now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats Stats
	measurable := true
	for key, ent := range s.entries {
		stats.Total++
		if ent.valid(now) {
			stats.Valid++
		} else {
			stats.Expired++
		}
		if !ent.encoded {
			measurable = false
			continue
		}
		stats.ApproxMemoryBytes += int64(len(key) + len(ent.data))
	}
	if !measurable {
		stats.ApproxMemoryBytes = 0
	}
	return stats
}

func typeName(v any) string {
	return fmt.Sprintf("%T", v)
}
