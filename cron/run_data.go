package cron

import (
	"context"
	"sync"
)

type runDataKey struct{}

// RunData carries values between the tasks of a single chain run, such as
// the number of entries a cleanup task removed for a later reporting task
type RunData struct {
	data sync.Map
}

func withRunData(ctx context.Context) context.Context {
	return context.WithValue(ctx, runDataKey{}, &RunData{})
}

// FromContext returns the RunData of the current run, or nil outside a run
func FromContext(ctx context.Context) *RunData {
	rd, _ := ctx.Value(runDataKey{}).(*RunData)
	return rd
}

// Set stores value under key
func (r *RunData) Set(key string, value any) {
	r.data.Store(key, value)
}

// Get returns the value stored under key
func (r *RunData) Get(key string) (any, bool) {
	return r.data.Load(key)
}

// Value returns the value stored under key in the run of ctx, typed
func Value[T any](ctx context.Context, key string) (T, bool) {
	var zero T
	rd := FromContext(ctx)
	if rd == nil {
		return zero, false
	}
	v, ok := rd.Get(key)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}
