// Package routine provides panic-safe goroutine execution.
//
// Background work in the data layer (drain passes, online probing, resource
// auto-refresh) runs through this package so a misbehaving executor or fetch
// function cannot take the process down.
package routine

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"github.com/dailyyoga/offline/logger"
	"go.uber.org/zap"
)

// Runner starts goroutines that recover and log panics, and waits for them
type Runner interface {
	// GoNamed runs fn in a new goroutine; name tags panic logs
	GoNamed(name string, fn func())

	// GoNamedWithContext runs fn with ctx in a new goroutine
	GoNamedWithContext(ctx context.Context, name string, fn func(ctx context.Context))

	// Every runs fn every interval until ctx is done. A panicking tick is
	// logged and the loop keeps going.
	Every(ctx context.Context, name string, interval time.Duration, fn func(ctx context.Context))

	// Wait blocks until every goroutine started by this runner has returned
	Wait()
}

type defaultRunner struct {
	log logger.Logger
	wg  sync.WaitGroup
}

// New creates a Runner logging panics to log
func New(log logger.Logger) Runner {
	return &defaultRunner{log: logger.OrNop(log)}
}

func (r *defaultRunner) spawn(name string, fn func()) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.recover(name)
		fn()
	}()
}

func (r *defaultRunner) GoNamed(name string, fn func()) {
	r.spawn(name, fn)
}

func (r *defaultRunner) GoNamedWithContext(ctx context.Context, name string, fn func(ctx context.Context)) {
	r.spawn(name, func() { fn(ctx) })
}

func (r *defaultRunner) Every(ctx context.Context, name string, interval time.Duration, fn func(ctx context.Context)) {
	r.spawn(name, func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := Call(func() error { fn(ctx); return nil }); err != nil {
					r.log.Error("periodic task panicked", zap.String("routine", name), zap.Error(err))
				}
			}
		}
	})
}

func (r *defaultRunner) Wait() {
	r.wg.Wait()
}

// Call runs fn on the current goroutine and converts a panic into an error
// wrapping ErrPanicRecovered. Injected callbacks (executors, fetchers) are run
// through Call so a panic counts as an ordinary failure.
func Call(fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = ErrPanic(rec)
		}
	}()
	return fn()
}

func (r *defaultRunner) recover(name string) {
	rec := recover()
	if rec == nil {
		return
	}
	r.log.Error("goroutine panicked",
		zap.String("routine", name),
		zap.Any("panic", rec),
		zap.String("stack", string(debug.Stack())),
	)
}
