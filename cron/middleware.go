package cron

import (
	"context"
	"time"

	"github.com/dailyyoga/offline/logger"
	"github.com/dailyyoga/offline/routine"
	"go.uber.org/zap"
)

// Middleware wraps a Task with additional behavior
type Middleware func(Task) Task

// applyMiddlewares wraps t so that mws[0] is the outermost layer
func applyMiddlewares(t Task, mws ...Middleware) Task {
	for i := len(mws) - 1; i >= 0; i-- {
		t = mws[i](t)
	}
	return t
}

// recoveryMiddleware turns a task panic into an error
func recoveryMiddleware(log logger.Logger) Middleware {
	return func(next Task) Task {
		return &wrappedTask{
			name: next.Name(),
			exec: func(ctx context.Context) error {
				err := routine.Call(func() error { return next.Run(ctx) })
				if routine.IsPanic(err) {
					log.Error("task panicked", zap.String("task", next.Name()), zap.Error(err))
				}
				return err
			},
		}
	}
}

// loggingMiddleware records duration and failures of each task
func loggingMiddleware(log logger.Logger) Middleware {
	return func(next Task) Task {
		return &wrappedTask{
			name: next.Name(),
			exec: func(ctx context.Context) error {
				start := time.Now()
				err := next.Run(ctx)
				duration := time.Since(start)

				if err != nil {
					log.Warn("task failed",
						zap.String("task", next.Name()),
						zap.Duration("duration", duration),
						zap.Error(err),
					)
				} else {
					log.Debug("task completed",
						zap.String("task", next.Name()),
						zap.Duration("duration", duration),
					)
				}
				return err
			},
		}
	}
}

type wrappedTask struct {
	name string
	exec func(ctx context.Context) error
}

func (w *wrappedTask) Name() string {
	return w.name
}

func (w *wrappedTask) Run(ctx context.Context) error {
	return w.exec(ctx)
}
