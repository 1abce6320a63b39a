// Package engine assembles the offline data layer: one cache Store, the
// Accessor reading through it and the sync Queue writing behind it, plus
// whichever snapshot, transport and audit backends the Config names.
//
// An Engine owns every goroutine and connection it opens; Close tears them
// down in reverse order of Start.
package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dailyyoga/offline/accessor"
	"github.com/dailyyoga/offline/cache"
	"github.com/dailyyoga/offline/ch"
	"github.com/dailyyoga/offline/cron"
	"github.com/dailyyoga/offline/db"
	"github.com/dailyyoga/offline/kafka"
	"github.com/dailyyoga/offline/logger"
	"github.com/dailyyoga/offline/queue"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const cleanupChain = "cache-cleanup"

type options struct {
	probe      queue.Probe
	now        func() time.Time
	persister  queue.Persister
	queueHooks []func(queue.Event)
}

// Option configures an Engine
type Option func(*options)

// WithProbe overrides the probe built from Config.ProbeURL
func WithProbe(p queue.Probe) Option {
	return func(o *options) { o.probe = p }
}

// WithClock sets the clock shared by the store, accessor and queue
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithPersister overrides the snapshot backend chosen from Config
func WithPersister(p queue.Persister) Option {
	return func(o *options) { o.persister = p }
}

// WithQueueEventHook observes queue lifecycle events
func WithQueueEventHook(fn func(queue.Event)) Option {
	return func(o *options) { o.queueHooks = append(o.queueHooks, fn) }
}

// Engine is the running data layer
type Engine struct {
	config *Config
	logger logger.Logger

	store     cache.Store
	accessor  *accessor.Accessor
	queue     queue.Queue
	scheduler cron.Scheduler

	backend  string
	audit    ch.Writer
	auditDB  ch.Client
	consumer kafka.Consumer
	closers  []func() error

	started   atomic.Bool
	closed    atomic.Bool
	closeOnce sync.Once
}

// New builds an Engine. A nil executor publishes operations to Kafka when
// Config.Kafka.Producer is set and is an error otherwise.
func New(log logger.Logger, cfg *Config, executor queue.Executor, opts ...Option) (e *Engine, err error) {
	log = logger.OrNop(log)
	if cfg == nil {
		cfg = DefaultConfig()
	} else {
		cfg = cfg.MergeDefaults()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	e = &Engine{config: cfg, logger: log}
	defer func() {
		if err != nil {
			e.closeResources()
		}
	}()

	var storeOpts []cache.Option
	if o.now != nil {
		storeOpts = append(storeOpts, cache.WithClock(o.now))
	}
	if e.store, err = cache.NewStore(log, cfg.cacheConfig(), storeOpts...); err != nil {
		return nil, err
	}

	var accOpts []accessor.Option
	if o.now != nil {
		accOpts = append(accOpts, accessor.WithClock(o.now))
	}
	if e.accessor, err = accessor.New(log, e.store, accOpts...); err != nil {
		return nil, err
	}

	persister := o.persister
	if persister == nil {
		if persister, err = e.openPersister(); err != nil {
			return nil, err
		}
	} else {
		e.backend = "custom"
	}

	if executor == nil && cfg.Kafka != nil && cfg.Kafka.Producer != nil {
		producer, perr := kafka.NewProducer(log, cfg.Kafka.Producer)
		if perr != nil {
			return nil, ErrBackend("kafka producer", perr)
		}
		e.closers = append(e.closers, producer.Close)
		executor = kafka.NewExecutor(producer, cfg.Kafka.Topic)
	}

	if cfg.Kafka != nil && cfg.Kafka.Invalidation != nil {
		if e.consumer, err = kafka.NewConsumer(log, cfg.Kafka.Invalidation); err != nil {
			return nil, ErrBackend("kafka consumer", err)
		}
	}

	hooks := o.queueHooks
	if cfg.ClickHouse != nil {
		if cfg.ClickHouse.WriterConfig == nil {
			cfg.ClickHouse.WriterConfig = ch.DefaultWriterConfig()
		}
		if e.auditDB, err = ch.NewClient(log, cfg.ClickHouse); err != nil {
			return nil, ErrBackend("clickhouse", err)
		}
		if e.audit, err = e.auditDB.Writer(); err != nil {
			return nil, err
		}
		hooks = append(hooks, e.audit.Hook())
	}

	qopts := []queue.Option{queue.WithPersister(persister)}
	switch {
	case o.probe != nil:
		qopts = append(qopts, queue.WithProbe(o.probe))
	case cfg.ProbeURL != "":
		qopts = append(qopts, queue.WithProbe(queue.HTTPProbe(cfg.ProbeURL, cfg.ProbeTimeout.Std())))
	}
	if o.now != nil {
		qopts = append(qopts, queue.WithClock(o.now))
	}
	if len(hooks) > 0 {
		qopts = append(qopts, queue.WithEventHook(fanOut(hooks)))
	}
	if e.queue, err = queue.New(log, cfg.queueConfig(), executor, qopts...); err != nil {
		return nil, err
	}

	e.scheduler = cron.New(log)
	if err = e.scheduler.Every(cleanupChain, cfg.CleanupInterval.Std(), cron.TaskFunc("cleanup", e.cleanup)); err != nil {
		return nil, err
	}

	log.Info("offline engine initialized",
		zap.String("snapshot_backend", e.backend),
		zap.Bool("audit", e.audit != nil),
		zap.Bool("invalidation", e.consumer != nil),
	)
	return e, nil
}

// openPersister picks the snapshot backend: sqlite, redis, mysql, then the
// cache store itself
func (e *Engine) openPersister() (queue.Persister, error) {
	cfg := e.config
	switch {
	case cfg.SQLite != nil:
		store, err := db.NewSQLiteSnapshotStore(e.logger, cfg.SQLite)
		if err != nil {
			return nil, ErrBackend("sqlite", err)
		}
		e.backend = "sqlite"
		e.closers = append(e.closers, store.Close)
		return store, nil

	case cfg.Redis != nil:
		client, err := cache.NewRedis(e.logger, cfg.Redis)
		if err != nil {
			return nil, ErrBackend("redis", err)
		}
		e.backend = "redis"
		e.closers = append(e.closers, client.Close)
		return queue.NewRedisPersister(client, cfg.SnapshotTTL.Std()), nil

	case cfg.MySQL != nil:
		database, err := db.NewMySQL(e.logger, cfg.MySQL)
		if err != nil {
			return nil, ErrBackend("mysql", err)
		}
		store, err := db.NewGormSnapshotStore(database)
		if err != nil {
			database.Close()
			return nil, ErrBackend("mysql", err)
		}
		e.backend = "mysql"
		e.closers = append(e.closers, store.Close)
		return store, nil
	}

	e.backend = "cache"
	return queue.NewCachePersister(e.store, cfg.SnapshotTTL.Std()), nil
}

func (e *Engine) cleanup(context.Context) error {
	if n := e.store.Cleanup(); n > 0 {
		e.logger.Debug("expired cache entries removed", zap.Int("removed", n))
	}
	return nil
}

func fanOut(hooks []func(queue.Event)) func(queue.Event) {
	if len(hooks) == 1 {
		return hooks[0]
	}
	return func(ev queue.Event) {
		for _, h := range hooks {
			h(ev)
		}
	}
}

// Start rehydrates the queue and starts the scheduler, audit writer and
// invalidation consumer. Calling it again is a no-op.
func (e *Engine) Start(ctx context.Context) error {
	if e.closed.Load() {
		return ErrEngineClosed
	}
	if !e.started.CompareAndSwap(false, true) {
		return nil
	}

	if e.auditDB != nil {
		if err := e.auditDB.EnsureTable(ctx); err != nil {
			return err
		}
		if err := e.audit.Start(); err != nil {
			return err
		}
	}

	e.scheduler.Start()

	if err := e.queue.Start(ctx); err != nil {
		return err
	}

	if e.consumer != nil {
		handler := kafka.NewInvalidationHandler(e.logger, e.accessor)
		if err := e.consumer.Start(context.WithoutCancel(ctx), handler); err != nil {
			return err
		}
	}

	e.logger.Info("offline engine started")
	return nil
}

// Close stops the queue and every backend and returns their combined errors
func (e *Engine) Close() error {
	var err error
	e.closeOnce.Do(func() {
		e.closed.Store(true)
		err = e.closeResources()
		e.logger.Info("offline engine closed", zap.Error(err))
	})
	return err
}

func (e *Engine) closeResources() error {
	if e.queue != nil {
		e.queue.Stop()
	}
	if e.scheduler != nil {
		e.scheduler.Close()
	}

	var err error
	if e.consumer != nil {
		err = multierr.Append(err, e.consumer.Close())
	}
	if e.auditDB != nil {
		// flushes the audit writer first
		err = multierr.Append(err, e.auditDB.Close())
	}
	for i := len(e.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, e.closers[i]())
	}
	e.closers = nil
	return err
}

// Store returns the shared cache store
func (e *Engine) Store() cache.Store { return e.store }

// Accessor returns the read-through accessor
func (e *Engine) Accessor() *accessor.Accessor { return e.accessor }

// Queue returns the sync queue
func (e *Engine) Queue() queue.Queue { return e.queue }

// Backend names the snapshot backend in use
func (e *Engine) Backend() string { return e.backend }
