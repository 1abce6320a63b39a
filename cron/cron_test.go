package cron

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dailyyoga/offline/logger"
	"github.com/dailyyoga/offline/routine"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestApplyMiddlewares_Order(t *testing.T) {
	var order []string
	mw := func(tag string) Middleware {
		return func(next Task) Task {
			return TaskFunc(next.Name(), func(ctx context.Context) error {
				order = append(order, tag)
				return next.Run(ctx)
			})
		}
	}
	task := TaskFunc("t", func(context.Context) error {
		order = append(order, "task")
		return nil
	})

	if err := applyMiddlewares(task, mw("a"), mw("b")).Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	want := []string{"a", "b", "task"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %s, want %s", i, order[i], want[i])
		}
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	task := recoveryMiddleware(zap.New(core))(TaskFunc("explode", func(context.Context) error {
		panic("cleanup bug")
	}))

	err := task.Run(context.Background())
	if !routine.IsPanic(err) {
		t.Fatalf("expected panic error, got %v", err)
	}
	if logs.FilterMessage("task panicked").Len() != 1 {
		t.Error("expected panic to be logged")
	}
}

func TestChainJob_AbortsOnFailure(t *testing.T) {
	var ran []string
	step := func(name string, err error) Task {
		return TaskFunc(name, func(context.Context) error {
			ran = append(ran, name)
			return err
		})
	}
	job := &chainJob{
		ctx:    context.Background(),
		name:   "maintenance",
		tasks:  []Task{step("cleanup", nil), step("flush", errors.New("sink down")), step("report", nil)},
		logger: logger.NewNop(),
	}
	job.Run()

	if len(ran) != 2 || ran[1] != "flush" {
		t.Errorf("ran = %v, want [cleanup flush]", ran)
	}
}

func TestChainJob_SharesRunData(t *testing.T) {
	var got int
	var found bool
	job := &chainJob{
		ctx:  context.Background(),
		name: "maintenance",
		tasks: []Task{
			TaskFunc("cleanup", func(ctx context.Context) error {
				FromContext(ctx).Set("removed", 7)
				return nil
			}),
			TaskFunc("report", func(ctx context.Context) error {
				got, found = Value[int](ctx, "removed")
				return nil
			}),
		},
		logger: logger.NewNop(),
	}
	job.Run()

	if !found || got != 7 {
		t.Errorf("Value = %d, %v; want 7, true", got, found)
	}
	if _, ok := Value[int](context.Background(), "removed"); ok {
		t.Error("expected no value outside a run")
	}
}

func TestChainJob_SkipsAfterClose(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var ran bool
	job := &chainJob{
		ctx:    ctx,
		name:   "maintenance",
		tasks:  []Task{TaskFunc("cleanup", func(context.Context) error { ran = true; return nil })},
		logger: logger.NewNop(),
	}
	job.Run()
	if ran {
		t.Error("task ran after scheduler closed")
	}
}

func TestScheduler_Validation(t *testing.T) {
	s := New(nil)
	defer s.Close()

	if err := s.AddTasks("empty", "@every 1s"); !errors.Is(err, ErrNoTasks) {
		t.Errorf("expected ErrNoTasks, got %v", err)
	}
	noop := TaskFunc("noop", func(context.Context) error { return nil })
	if err := s.AddTasks("bad", "not a spec", noop); err == nil {
		t.Error("expected spec error")
	}
	if err := s.Every("zero", 0, noop); err == nil {
		t.Error("expected interval error")
	}
	if err := s.AddChain(Chain{Name: "ok", Spec: "0 */5 * * * *", Tasks: []Task{noop}}); err != nil {
		t.Errorf("AddChain failed: %v", err)
	}
}

func TestScheduler_Every(t *testing.T) {
	s := New(logger.NewNop())
	var runs atomic.Int32
	if err := s.Every("cleanup", time.Second, TaskFunc("tick", func(context.Context) error {
		runs.Add(1)
		return nil
	})); err != nil {
		t.Fatalf("Every failed: %v", err)
	}
	s.Start()

	deadline := time.Now().Add(3 * time.Second)
	for runs.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	s.Close()

	if runs.Load() == 0 {
		t.Fatal("scheduled task never ran")
	}
}
