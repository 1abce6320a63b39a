package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/dailyyoga/offline/logger"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// chainJob runs its tasks in order and stops at the first failure
type chainJob struct {
	ctx    context.Context
	name   string
	tasks  []Task
	logger logger.Logger
}

func (j *chainJob) Run() {
	if j.ctx.Err() != nil {
		return
	}
	ctx := withRunData(j.ctx)

	j.logger.Debug("chain started", zap.String("chain", j.name))
	for _, task := range j.tasks {
		if err := task.Run(ctx); err != nil {
			j.logger.Error("chain aborted",
				zap.String("chain", j.name),
				zap.String("task", task.Name()),
				zap.Error(err),
			)
			return
		}
	}
	j.logger.Debug("chain completed", zap.String("chain", j.name))
}

// scheduler implements Scheduler
type scheduler struct {
	cron        *cron.Cron
	middlewares []Middleware
	logger      logger.Logger
	ctx         context.Context
	cancel      context.CancelFunc
}

func newScheduler(log logger.Logger, mws ...Middleware) *scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	cl := cronLogger{log: log}
	return &scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(cl),
			cron.WithChain(cron.SkipIfStillRunning(cl)),
		),
		middlewares: mws,
		logger:      log,
		ctx:         ctx,
		cancel:      cancel,
	}
}

func (s *scheduler) Start() {
	s.cron.Start()
}

func (s *scheduler) Close() {
	s.cancel()
	<-s.cron.Stop().Done()
}

func (s *scheduler) AddTasks(name, spec string, tasks ...Task) error {
	if len(tasks) == 0 {
		return ErrNoTasks
	}

	wrapped := make([]Task, len(tasks))
	for i, task := range tasks {
		named := &wrappedTask{
			name: fmt.Sprintf("%s:%s", name, task.Name()),
			exec: task.Run,
		}
		wrapped[i] = applyMiddlewares(named, s.middlewares...)
	}

	job := &chainJob{
		ctx:    s.ctx,
		name:   name,
		tasks:  wrapped,
		logger: s.logger,
	}
	if _, err := s.cron.AddJob(spec, job); err != nil {
		return ErrSpec(name, spec, err)
	}

	s.logger.Info("chain scheduled",
		zap.String("chain", name),
		zap.String("spec", spec),
		zap.Int("task_count", len(tasks)),
	)
	return nil
}

func (s *scheduler) AddChain(chain Chain) error {
	return s.AddTasks(chain.Name, chain.Spec, chain.Tasks...)
}

func (s *scheduler) Every(name string, interval time.Duration, tasks ...Task) error {
	if interval <= 0 {
		return ErrInvalidInterval(interval)
	}
	return s.AddTasks(name, "@every "+interval.String(), tasks...)
}

// cronLogger routes robfig/cron's own messages to the data layer logger
type cronLogger struct {
	log logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("cron: "+msg, kvFields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error("cron: "+msg, append(kvFields(keysAndValues), zap.Error(err))...)
}

func kvFields(kv []any) []zap.Field {
	fields := make([]zap.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields = append(fields, zap.Any(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return fields
}
