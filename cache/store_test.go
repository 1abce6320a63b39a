package cache

import (
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/dailyyoga/offline/logger"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestStore(t *testing.T, clock *fakeClock) Store {
	t.Helper()
	s, err := NewStore(logger.NewNop(), nil, WithClock(clock.Now))
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	return s
}

type restaurant struct {
	ID    int
	Name  string
	Tags  []string
	Owner *string
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *Config
		wantErr bool
	}{
		{"defaults", DefaultConfig(), false},
		{"zero ttl", &Config{DefaultTTL: 0, CleanupInterval: time.Minute}, true},
		{"negative cleanup", &Config{DefaultTTL: time.Minute, CleanupInterval: -1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewStore_InvalidConfig(t *testing.T) {
	if _, err := NewStore(nil, &Config{DefaultTTL: -time.Second}); err == nil {
		t.Error("expected validation error")
	}
}

func TestStore_SetGet(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(t, clock)

	s.Set("A", 1, time.Second)
	if v, ok := Get[int](s, "A"); !ok || v != 1 {
		t.Fatalf("expected 1 at t=0, got %v (found=%v)", v, ok)
	}

	clock.Advance(1100 * time.Millisecond)
	if _, ok := Get[int](s, "A"); ok {
		t.Error("expected miss after ttl elapsed")
	}
}

func TestStore_ExpiresExactlyAtDeadline(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(t, clock)

	s.Set("k", "v", time.Second)
	clock.Advance(time.Second)
	if s.Has("k") {
		t.Error("entry must be invalid once now == expiresAt")
	}
}

func TestStore_DefaultTTL(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(t, clock)

	s.Set("k", "v", 0)
	clock.Advance(4 * time.Minute)
	if !s.Has("k") {
		t.Fatal("expected entry to be valid before default ttl")
	}
	clock.Advance(2 * time.Minute)
	if s.Has("k") {
		t.Error("expected entry to expire after default ttl")
	}
}

func TestStore_Overwrite(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(t, clock)

	s.Set("k", "first", time.Second)
	clock.Advance(900 * time.Millisecond)
	s.Set("k", "second", time.Second)
	clock.Advance(900 * time.Millisecond)

	if v, ok := Get[string](s, "k"); !ok || v != "second" {
		t.Errorf("expected overwritten value with fresh ttl, got %q (found=%v)", v, ok)
	}
}

func TestStore_ReturnsCopies(t *testing.T) {
	s := newTestStore(t, newFakeClock())
	owner := "anna"
	s.Set("r:1", restaurant{ID: 1, Name: "Pho", Tags: []string{"soup"}, Owner: &owner}, time.Minute)

	first, ok := Get[restaurant](s, "r:1")
	if !ok {
		t.Fatal("expected hit")
	}
	first.Tags[0] = "mutated"
	*first.Owner = "mutated"

	second, _ := Get[restaurant](s, "r:1")
	if second.Tags[0] != "soup" || *second.Owner != "anna" {
		t.Errorf("stored value was aliased: %+v", second)
	}
}

func TestStore_TypeMismatchIsMiss(t *testing.T) {
	s := newTestStore(t, newFakeClock())
	s.Set("k", "not a number", time.Minute)
	if _, ok := Get[int](s, "k"); ok {
		t.Error("expected decode failure to be reported as a miss")
	}
}

func TestStore_GetStale(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(t, clock)

	s.Set("k", []int{1, 2}, time.Second)
	clock.Advance(time.Hour)

	if _, ok := Get[[]int](s, "k"); ok {
		t.Fatal("expected Get to miss on an expired entry")
	}
	v, ok := GetStale[[]int](s, "k")
	if !ok || len(v) != 2 {
		t.Fatalf("expected stale value, got %v (found=%v)", v, ok)
	}

	s.Cleanup()
	if _, ok := GetStale[[]int](s, "k"); ok {
		t.Error("expected stale read to miss after cleanup")
	}
}

func TestStore_Delete(t *testing.T) {
	s := newTestStore(t, newFakeClock())
	s.Set("k", 1, time.Minute)
	s.Delete("k")
	s.Delete("missing")
	if s.Has("k") {
		t.Error("expected entry to be deleted")
	}
}

func TestStore_DeleteByPrefix(t *testing.T) {
	s := newTestStore(t, newFakeClock())
	for _, k := range []string{"restaurants:1", "restaurants:2", "restaurants", "employees:1", "xrestaurants:1"} {
		s.Set(k, k, time.Minute)
	}

	if n := s.DeleteByPrefix("restaurants:"); n != 2 {
		t.Errorf("expected 2 removed, got %d", n)
	}

	keys := s.Keys()
	sort.Strings(keys)
	want := []string{"employees:1", "restaurants", "xrestaurants:1"}
	if len(keys) != len(want) {
		t.Fatalf("expected keys %v, got %v", want, keys)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("expected keys %v, got %v", want, keys)
			break
		}
	}
}

func TestStore_Cleanup(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(t, clock)

	s.Set("short", 1, time.Second)
	s.Set("long", 2, time.Hour)
	clock.Advance(time.Minute)

	if n := s.Cleanup(); n != 1 {
		t.Errorf("expected 1 removed, got %d", n)
	}
	if n := s.Cleanup(); n != 0 {
		t.Errorf("second cleanup should remove nothing, got %d", n)
	}
	if !s.Has("long") {
		t.Error("valid entry must survive cleanup")
	}
}

func TestStore_Stats(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(t, clock)

	s.Set("a", "x", time.Second)
	s.Set("b", "y", time.Hour)
	clock.Advance(time.Minute)

	stats := s.Stats()
	if stats.Total != 2 || stats.Valid != 1 || stats.Expired != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if stats.ApproxMemoryBytes <= 0 {
		t.Errorf("expected positive memory estimate, got %d", stats.ApproxMemoryBytes)
	}
}

func TestStore_UnencodableValue(t *testing.T) {
	s := newTestStore(t, newFakeClock())
	fn := func() {}
	s.Set("fn", fn, time.Minute)
	s.Set("ok", 1, time.Minute)

	got, ok := Get[func()](s, "fn")
	if !ok || got == nil {
		t.Fatal("expected unencodable value to be retrievable as-is")
	}
	if stats := s.Stats(); stats.ApproxMemoryBytes != 0 || stats.Total != 2 {
		t.Errorf("expected memory estimate to degrade to 0, got %+v", stats)
	}
}

func TestStore_Clear(t *testing.T) {
	s := newTestStore(t, newFakeClock())
	s.Set("a", 1, time.Minute)
	s.Set("b", 2, time.Minute)
	s.Clear()
	if stats := s.Stats(); stats.Total != 0 {
		t.Errorf("expected empty store, got %+v", stats)
	}
}

func TestStore_ReservedKeySurvivesBulkRemoval(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(t, clock)
	s.Reserve("sync:pending_operations")
	s.Set("sync:pending_operations", []byte{1}, time.Minute)
	s.Set("sync:cursor", 1, time.Minute)
	s.Set("other", 2, time.Minute)

	if n := s.DeleteByPrefix("sync"); n != 1 {
		t.Errorf("expected 1 removed, got %d", n)
	}
	if !s.Has("sync:pending_operations") {
		t.Fatal("reserved key must survive prefix invalidation")
	}

	s.Clear()
	keys := s.Keys()
	if len(keys) != 1 || keys[0] != "sync:pending_operations" {
		t.Fatalf("expected only the reserved key after clear, got %v", keys)
	}

	clock.Advance(time.Hour)
	if n := s.Cleanup(); n != 1 {
		t.Errorf("reserved key must still expire, got %d removed", n)
	}
	s.Set("sync:pending_operations", []byte{2}, time.Minute)
	s.Delete("sync:pending_operations")
	if s.Has("sync:pending_operations") {
		t.Error("explicit delete must remove a reserved key")
	}
}

type profile struct {
	Name  string
	token string
}

func TestStore_UnexportedFieldsAreNotStored(t *testing.T) {
	s := newTestStore(t, newFakeClock())
	s.Set("p", profile{Name: "ana", token: "secret"}, time.Minute)

	got, ok := Get[profile](s, "p")
	if !ok {
		t.Fatal("expected hit")
	}
	if got.Name != "ana" {
		t.Errorf("expected exported field kept, got %q", got.Name)
	}
	if got.token != "" {
		t.Errorf("expected unexported field to read back empty, got %q", got.token)
	}
}

func TestStore_ConcurrentAccess(t *testing.T) {
	s := newTestStore(t, newFakeClock())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.Set("k", i, time.Minute)
			Get[int](s, "k")
			s.DeleteByPrefix("none")
			s.Cleanup()
			s.Stats()
		}(i)
	}
	wg.Wait()

	if !s.Has("k") {
		t.Error("expected last writer to leave an entry")
	}
}
