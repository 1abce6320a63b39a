package accessor

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewResource_Validation(t *testing.T) {
	a := newTestAccessor(t, newFakeClock())
	fetch := (&counter{}).fetch

	_, err := NewResource(a, "", fetch, nil)
	assert.ErrorIs(t, err, ErrEmptyKey)

	_, err = NewResource[menu](a, "menu", nil, nil)
	assert.ErrorIs(t, err, ErrNilFetch)

	_, err = NewResource(a, "menu", fetch, &ResourceConfig{RefreshInterval: -time.Second})
	assert.Error(t, err)
}

func TestResource_LoadAndState(t *testing.T) {
	clock := newFakeClock()
	a := newTestAccessor(t, clock)
	src := &counter{value: menu{"Noma", []string{"moss"}}}

	r, err := NewResource(a, "menu:noma", src.fetch, &ResourceConfig{TTL: time.Minute})
	require.NoError(t, err)
	defer r.Close()

	assert.False(t, r.State().HasData)

	var mu sync.Mutex
	var seen []State[menu]
	r.OnChange(func(s State[menu]) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	})

	st, err := r.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, st.HasData)
	assert.False(t, st.Loading)
	assert.False(t, st.Stale)
	assert.Equal(t, src.value, st.Data)
	assert.Equal(t, clock.Now(), st.LastUpdatedAt)
	assert.Equal(t, st, r.State())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 2)
	assert.True(t, seen[0].Loading)
	assert.True(t, seen[1].HasData)
}

func TestResource_RefreshFallsBackToStale(t *testing.T) {
	a := newTestAccessor(t, newFakeClock())
	src := &counter{value: menu{Restaurant: "Noma"}}

	r, err := NewResource(a, "menu:noma", src.fetch, nil)
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Load(context.Background())
	require.NoError(t, err)

	src.fail(errOffline)
	st, err := r.Refresh(context.Background())
	require.NoError(t, err)
	assert.True(t, st.HasData)
	assert.True(t, st.Stale)
	assert.Equal(t, "Noma", st.Data.Restaurant)
	assert.NoError(t, st.Err)
	assert.Equal(t, int32(2), src.calls.Load())
}

func TestResource_LoadFailureWithoutCache(t *testing.T) {
	a := newTestAccessor(t, newFakeClock())
	src := &counter{}
	src.fail(errOffline)

	r, err := NewResource(a, "menu:noma", src.fetch, nil)
	require.NoError(t, err)
	defer r.Close()

	st, err := r.Load(context.Background())
	require.Error(t, err)
	assert.False(t, st.HasData)
	assert.ErrorIs(t, st.Err, errOffline)
}

func TestResource_Invalidate(t *testing.T) {
	a := newTestAccessor(t, newFakeClock())
	src := &counter{value: menu{Restaurant: "Noma"}}

	r, err := NewResource(a, "menu:noma", src.fetch, nil)
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Load(context.Background())
	require.NoError(t, err)

	r.Invalidate()
	assert.Equal(t, State[menu]{}, r.State())
	assert.False(t, a.Store().Has("menu:noma"))
	assert.Equal(t, int32(1), src.calls.Load(), "invalidate must not fetch")
}

func TestResource_AutoRefresh(t *testing.T) {
	a := newTestAccessor(t, newFakeClock())
	src := &counter{value: menu{Restaurant: "Noma"}}

	r, err := NewResource(a, "menu:noma", src.fetch, &ResourceConfig{RefreshInterval: 10 * time.Millisecond})
	require.NoError(t, err)

	r.Start()
	r.Start()
	require.Eventually(t, func() bool { return src.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	assert.True(t, r.State().HasData)

	r.Close()
	after := src.calls.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, after, src.calls.Load(), "auto-refresh must stop after Close")
}

func TestResource_InFlightFetchAfterCloseIsDetached(t *testing.T) {
	a := newTestAccessor(t, newFakeClock())
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	fetch := func(context.Context) (string, error) {
		once.Do(func() { close(started) })
		<-release
		return "late value", nil
	}

	r, err := NewResource(a, "slow", fetch, nil)
	require.NoError(t, err)

	var changes atomic.Int32
	r.OnChange(func(State[string]) { changes.Add(1) })

	done := make(chan error, 1)
	go func() {
		_, err := r.Load(context.Background())
		done <- err
	}()
	<-started
	r.Close()
	close(release)

	assert.ErrorIs(t, <-done, ErrResourceClosed)
	assert.False(t, r.State().HasData)
	assert.Equal(t, int32(1), changes.Load(), "only the loading transition is observed")

	assert.True(t, a.Store().Has("slow"), "the shared store still receives the value")

	_, err = r.Load(context.Background())
	assert.ErrorIs(t, err, ErrResourceClosed)
}

func TestResource_InvalidateDiscardsInFlightFetch(t *testing.T) {
	a := newTestAccessor(t, newFakeClock())
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	fetch := func(context.Context) (string, error) {
		once.Do(func() { close(started) })
		<-release
		return "before invalidate", nil
	}

	r, err := NewResource(a, "slow", fetch, nil)
	require.NoError(t, err)
	defer r.Close()

	done := make(chan State[string], 1)
	go func() {
		st, _ := r.Load(context.Background())
		done <- st
	}()
	<-started
	r.Invalidate()
	close(release)

	st := <-done
	assert.False(t, st.HasData)
	assert.False(t, st.Loading)
	assert.Equal(t, State[string]{}, r.State())
	assert.False(t, a.Store().Has("slow"), "the discarded value must not stay cached")
}

func TestResource_CloseWaitsForRefreshTick(t *testing.T) {
	a := newTestAccessor(t, newFakeClock())
	var active, calls atomic.Int32
	entered := make(chan struct{}, 1)
	fetch := func(context.Context) (int, error) {
		active.Add(1)
		defer active.Add(-1)
		calls.Add(1)
		select {
		case entered <- struct{}{}:
		default:
		}
		time.Sleep(30 * time.Millisecond)
		return 1, nil
	}

	r, err := NewResource(a, "slow", fetch, &ResourceConfig{RefreshInterval: 5 * time.Millisecond})
	require.NoError(t, err)
	r.Start()

	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("auto-refresh never fetched")
	}
	r.Close()
	assert.Equal(t, int32(0), active.Load(), "no fetch may run once Close returns")

	after := calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, calls.Load())
}
