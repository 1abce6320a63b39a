// Package cron schedules the periodic maintenance of the data layer, such as
// expired-entry cleanup, on top of robfig/cron.
//
// Jobs are chains of tasks run in order; a failing task aborts the rest of its
// chain for that run. Tasks of one run share a RunData carried in the context.
// A chain never overlaps with itself: a tick that arrives while the previous
// run is still going is skipped.
package cron

import (
	"context"
	"time"

	"github.com/dailyyoga/offline/logger"
)

// Task is one step of a scheduled chain
type Task interface {
	// Name identifies the task in logs
	Name() string
	// Run executes the task; ctx carries the run's RunData and is cancelled
	// when the scheduler closes
	Run(ctx context.Context) error
}

// TaskFunc adapts a function into a Task
func TaskFunc(name string, fn func(ctx context.Context) error) Task {
	return &wrappedTask{name: name, exec: fn}
}

// Chain is a named sequence of tasks sharing one schedule
type Chain struct {
	Name  string
	Spec  string
	Tasks []Task
}

// Scheduler manages the data layer's periodic jobs
type Scheduler interface {
	// Start begins scheduling
	Start()
	// Close stops scheduling, cancels running tasks and waits for them
	Close()
	// AddTasks schedules a chain with a six-field cron spec (seconds first)
	// or a descriptor such as "@every 10m"
	AddTasks(name string, spec string, tasks ...Task) error
	// AddChain is alias for AddTasks
	AddChain(chain Chain) error
	// Every schedules a chain at a fixed interval
	Every(name string, interval time.Duration, tasks ...Task) error
}

// New creates a scheduler. The recovery and logging middlewares always run
// first, followed by mws in order.
func New(log logger.Logger, mws ...Middleware) Scheduler {
	log = logger.OrNop(log)
	defaults := []Middleware{
		recoveryMiddleware(log),
		loggingMiddleware(log),
	}
	return newScheduler(log, append(defaults, mws...)...)
}
