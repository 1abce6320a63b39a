package queue

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dailyyoga/offline/logger"
	"github.com/dailyyoga/offline/routine"
	"github.com/google/uuid"
	"github.com/smallnest/chanx"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
)

// Option configures a Queue.
type Option func(*syncQueue)

// WithProbe sets the online probe. Without one the queue is always online.
func WithProbe(p Probe) Option {
	return func(q *syncQueue) { q.probe = p }
}

// WithPersister sets the snapshot persister. Without one the queue lives in
// memory only.
func WithPersister(p Persister) Option {
	return func(q *syncQueue) { q.persister = p }
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(q *syncQueue) { q.now = now }
}

// WithRunner sets the runner background drain passes and the probe loop run
// on.
func WithRunner(r routine.Runner) Option {
	return func(q *syncQueue) { q.runner = r }
}

// WithEventHook registers fn to receive every operation lifecycle event.
// It is called synchronously from the goroutine causing the transition.
func WithEventHook(fn func(Event)) Option {
	return func(q *syncQueue) {
		if fn != nil {
			q.hooks = append(q.hooks, fn)
		}
	}
}

// OperationOption configures a single queued operation.
type OperationOption func(*Operation)

// WithMaxRetries overrides the queue-wide retry limit for one operation.
func WithMaxRetries(n int) OperationOption {
	return func(op *Operation) {
		if n >= 0 {
			op.MaxRetries = n
		}
	}
}

// syncQueue implements Queue
type syncQueue struct {
	logger    logger.Logger
	config    *Config
	executor  Executor
	probe     Probe
	persister Persister
	runner    routine.Runner
	now       func() time.Time
	hooks     []func(Event)

	ctx    context.Context
	cancel context.CancelFunc

	// persistMu serializes snapshot writes; acquire before mu.
	persistMu sync.Mutex

	mu             sync.Mutex
	ops            []Operation
	waiters        map[string]chan Outcome
	listeners      []func(*AbandonedError)
	lastSyncAt     time.Time
	lastPersistErr error
	closed         bool

	online   atomic.Bool
	draining atomic.Bool

	startOnce     sync.Once
	stopOnce      sync.Once
	abandonedOnce sync.Once
	abandoned     *chanx.UnboundedChan[*AbandonedError]
	abandonedDone bool
}

// New creates a sync queue that executes operations with executor.
// A nil config uses DefaultConfig.
func New(log logger.Logger, cfg *Config, executor Executor, opts ...Option) (Queue, error) {
	if executor == nil {
		return nil, ErrNilExecutor
	}
	if cfg == nil {
		cfg = DefaultConfig()
	} else {
		cfg = cfg.MergeDefaults()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log = logger.OrNop(log)
	ctx, cancel := context.WithCancel(context.Background())
	q := &syncQueue{
		logger:   log,
		config:   cfg,
		executor: executor,
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
		waiters:  make(map[string]chan Outcome),
	}
	for _, opt := range opts {
		opt(q)
	}
	if q.runner == nil {
		q.runner = routine.New(log)
	}
	q.online.Store(true)

	return q, nil
}

func (q *syncQueue) Start(ctx context.Context) error {
	if q.isClosed() {
		return ErrQueueStopped
	}

	q.startOnce.Do(func() {
		q.rehydrate(ctx)

		online := q.CheckOnline(ctx)
		q.logger.Info("sync queue started",
			zap.Bool("online", online),
			zap.Int(logger.KeyPending, q.pendingCount()),
			zap.Int(logger.KeyMaxRetries, q.config.MaxRetries),
		)

		if online && q.pendingCount() > 0 {
			q.triggerDrain()
		}
		q.runner.Every(q.ctx, "sync-queue-poll", q.config.OnlinePollInterval, q.poll)
	})
	return nil
}

// poll refreshes connectivity and retries failed operations left pending
// after the last pass, so retries do not wait for a new enqueue.
func (q *syncQueue) poll(ctx context.Context) {
	if !q.CheckOnline(ctx) || q.draining.Load() || q.pendingCount() == 0 {
		return
	}
	q.triggerDrain()
}

func (q *syncQueue) Stop() {
	q.stopOnce.Do(func() {
		q.mu.Lock()
		q.closed = true
		q.mu.Unlock()

		q.cancel()
		q.runner.Wait()

		q.mu.Lock()
		q.closeAbandonedLocked()
		q.mu.Unlock()
		q.logger.Info("sync queue stopped", zap.Int(logger.KeyPending, q.pendingCount()))
	})
}

func (q *syncQueue) QueueOperation(ctx context.Context, typ string, payload any, opts ...OperationOption) (string, error) {
	id, _, err := q.enqueue(ctx, typ, payload, false, opts)
	return id, err
}

func (q *syncQueue) Submit(ctx context.Context, typ string, payload any, opts ...OperationOption) (string, <-chan Outcome, error) {
	return q.enqueue(ctx, typ, payload, true, opts)
}

func (q *syncQueue) enqueue(ctx context.Context, typ string, payload any, wait bool, opts []OperationOption) (string, <-chan Outcome, error) {
	if typ == "" {
		return "", nil, ErrEmptyType
	}
	data, err := msgpack.Marshal(payload)
	if err != nil {
		return "", nil, ErrEncodePayload(typ, err)
	}

	op := Operation{
		ID:         uuid.NewString(),
		Type:       typ,
		Payload:    data,
		EnqueuedAt: q.now(),
		MaxRetries: q.config.MaxRetries,
	}
	for _, opt := range opts {
		opt(&op)
	}

	var done chan Outcome
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return "", nil, ErrQueueStopped
	}
	q.ops = append(q.ops, op)
	if wait {
		done = make(chan Outcome, 1)
		q.waiters[op.ID] = done
	}
	pending := len(q.ops)
	q.mu.Unlock()

	q.logger.Debug("operation queued",
		append(logger.Operation(op.ID, op.Type), zap.Int(logger.KeyPending, pending))...)
	q.emit(EventQueued, op, nil)

	q.persist(ctx)

	if q.online.Load() && !q.draining.Load() {
		q.triggerDrain()
	}
	return op.ID, done, nil
}

func (q *syncQueue) ForceSync(ctx context.Context) DrainResult {
	return q.Drain(ctx)
}

func (q *syncQueue) Drain(ctx context.Context) DrainResult {
	if !q.draining.CompareAndSwap(false, true) {
		q.logger.Debug("drain skipped, pass already running")
		return DrainResult{Skipped: true}
	}
	defer q.draining.Store(false)

	q.mu.Lock()
	batch := slices.Clone(q.ops)
	q.mu.Unlock()

	var res DrainResult
	if len(batch) == 0 {
		return res
	}

	start := q.now()
	for _, op := range batch {
		if ctx.Err() != nil {
			q.logger.Warn("drain interrupted", zap.Error(ctx.Err()),
				zap.Int("remaining", len(batch)-res.Attempted))
			break
		}
		res.Attempted++

		err := q.execute(ctx, op)
		switch q.settle(op, err) {
		case settledSuccess:
			res.Succeeded++
		case settledRetry:
			res.Failed++
		case settledAbandoned:
			res.Abandoned++
		}
	}

	q.mu.Lock()
	q.lastSyncAt = q.now()
	q.mu.Unlock()

	q.persist(ctx)

	q.logger.Info("drain pass finished",
		zap.Int("attempted", res.Attempted),
		zap.Int("succeeded", res.Succeeded),
		zap.Int("failed", res.Failed),
		zap.Int("abandoned", res.Abandoned),
		zap.Int(logger.KeyPending, q.pendingCount()),
		zap.Duration("elapsed", q.now().Sub(start)),
	)
	return res
}

func (q *syncQueue) execute(ctx context.Context, op Operation) error {
	if q.config.ExecuteTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.config.ExecuteTimeout)
		defer cancel()
	}
	return routine.Call(func() error {
		return q.executor(ctx, op)
	})
}

type settlement int

const (
	settledGone settlement = iota
	settledSuccess
	settledRetry
	settledAbandoned
)

// settle applies the result of one attempt to the live queue. The operation
// is looked up by id since the queue may have changed during execution.
func (q *syncQueue) settle(op Operation, execErr error) settlement {
	q.mu.Lock()
	idx := slices.IndexFunc(q.ops, func(o Operation) bool { return o.ID == op.ID })
	if idx < 0 {
		q.mu.Unlock()
		return settledGone
	}

	if execErr == nil {
		q.ops = slices.Delete(q.ops, idx, idx+1)
		done := q.takeWaiter(op.ID)
		q.mu.Unlock()

		q.logger.Debug("operation synced", logger.Operation(op.ID, op.Type)...)
		q.emit(EventSynced, op, nil)
		deliver(done, Outcome{OperationID: op.ID})
		return settledSuccess
	}

	cur := &q.ops[idx]
	cur.Retries++
	cur.LastError = execErr.Error()
	fields := append(logger.Operation(op.ID, op.Type),
		zap.Int(logger.KeyAttempt, cur.Retries),
		zap.Int(logger.KeyMaxRetries, cur.MaxRetries),
		zap.Error(execErr),
	)

	if cur.Retries <= cur.MaxRetries {
		retried := *cur
		q.mu.Unlock()
		q.logger.Warn("operation failed, will retry", fields...)
		q.emit(EventRetry, retried, execErr)
		return settledRetry
	}

	abandoned := &AbandonedError{Operation: *cur, Err: execErr}
	q.ops = slices.Delete(q.ops, idx, idx+1)
	done := q.takeWaiter(op.ID)
	listeners := slices.Clone(q.listeners)
	q.mu.Unlock()

	q.logger.Error("operation abandoned", fields...)
	q.emit(EventAbandoned, abandoned.Operation, execErr)
	deliver(done, Outcome{OperationID: op.ID, Err: abandoned})
	q.reportAbandoned(abandoned, listeners)
	return settledAbandoned
}

func (q *syncQueue) reportAbandoned(abandoned *AbandonedError, listeners []func(*AbandonedError)) {
	for _, fn := range listeners {
		if err := routine.Call(func() error { fn(abandoned); return nil }); err != nil {
			q.logger.Error("abandoned listener failed", zap.Error(err))
		}
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	// the unbounded channel accepts sends without waiting on readers
	if q.abandoned != nil && !q.abandonedDone {
		q.abandoned.In <- abandoned
	}
}

func (q *syncQueue) emit(kind EventKind, op Operation, err error) {
	if len(q.hooks) == 0 {
		return
	}
	ev := Event{Kind: kind, Operation: op, Err: err, At: q.now()}
	for _, fn := range q.hooks {
		if perr := routine.Call(func() error { fn(ev); return nil }); perr != nil {
			q.logger.Error("event hook failed", zap.String("event", string(kind)), zap.Error(perr))
		}
	}
}

// closeAbandonedLocked must be called with q.mu held.
func (q *syncQueue) closeAbandonedLocked() {
	if q.abandoned != nil && !q.abandonedDone {
		close(q.abandoned.In)
		q.abandonedDone = true
	}
}

// takeWaiter must be called with q.mu held.
func (q *syncQueue) takeWaiter(id string) chan Outcome {
	done, ok := q.waiters[id]
	if ok {
		delete(q.waiters, id)
	}
	return done
}

func deliver(done chan Outcome, out Outcome) {
	if done == nil {
		return
	}
	done <- out
	close(done)
}

func (q *syncQueue) Status() Status {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Status{
		IsOnline:         q.online.Load(),
		IsSyncing:        q.draining.Load(),
		PendingCount:     len(q.ops),
		LastSyncAt:       q.lastSyncAt,
		LastPersistError: q.lastPersistErr,
	}
}

func (q *syncQueue) Pending() []Operation {
	q.mu.Lock()
	defer q.mu.Unlock()
	return slices.Clone(q.ops)
}

func (q *syncQueue) ClearPendingOperations(ctx context.Context) error {
	q.mu.Lock()
	dropped := q.ops
	waiters := q.waiters
	q.ops = nil
	q.waiters = make(map[string]chan Outcome)
	q.mu.Unlock()

	for _, op := range dropped {
		q.emit(EventCleared, op, nil)
		deliver(waiters[op.ID], Outcome{OperationID: op.ID, Err: ErrCleared})
	}
	q.logger.Warn("pending operations cleared", zap.Int("dropped", len(dropped)))

	return q.persist(ctx)
}

func (q *syncQueue) CheckOnline(ctx context.Context) bool {
	online := true
	if q.probe != nil {
		err := routine.Call(func() error {
			online = q.probe(ctx)
			return nil
		})
		if err != nil {
			q.logger.Warn("online probe failed", zap.Error(err))
			online = false
		}
	}

	was := q.online.Swap(online)
	switch {
	case online && !was:
		q.logger.Info("connection restored", zap.Int(logger.KeyPending, q.pendingCount()))
		if q.pendingCount() > 0 {
			q.triggerDrain()
		}
	case !online && was:
		q.logger.Warn("connection lost", zap.Int(logger.KeyPending, q.pendingCount()))
	}
	return online
}

func (q *syncQueue) Abandoned() <-chan *AbandonedError {
	q.abandonedOnce.Do(func() {
		// closed by Stop, not by context, so buffered reports still reach readers
		ch := chanx.NewUnboundedChan[*AbandonedError](context.Background(), 8)
		q.mu.Lock()
		q.abandoned = ch
		if q.closed {
			q.closeAbandonedLocked()
		}
		q.mu.Unlock()
	})
	return q.abandoned.Out
}

func (q *syncQueue) OnAbandoned(fn func(*AbandonedError)) {
	if fn == nil {
		return
	}
	q.mu.Lock()
	q.listeners = append(q.listeners, fn)
	q.mu.Unlock()
}

func (q *syncQueue) triggerDrain() {
	if q.isClosed() {
		return
	}
	q.runner.GoNamedWithContext(q.ctx, "sync-queue-drain", func(ctx context.Context) {
		q.Drain(ctx)
	})
}

// persist writes the current queue snapshot. Failures are recorded in Status
// and logged; the in-memory queue stays authoritative.
func (q *syncQueue) persist(ctx context.Context) error {
	if q.persister == nil {
		return nil
	}

	// encode and save as one step so an older snapshot never lands last
	q.persistMu.Lock()
	defer q.persistMu.Unlock()

	q.mu.Lock()
	data, err := EncodeSnapshot(q.ops)
	q.mu.Unlock()

	if err == nil {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), q.config.PersistTimeout)
		err = q.persister.Save(ctx, q.config.SnapshotKey, data)
		cancel()
	}

	q.mu.Lock()
	if err != nil {
		err = ErrPersist(err)
		q.lastPersistErr = err
	} else {
		q.lastPersistErr = nil
	}
	q.mu.Unlock()

	if err != nil {
		q.logger.Error("failed to persist pending operations", zap.Error(err))
	}
	return err
}

// rehydrate loads the persisted snapshot ahead of anything queued before
// Start.
func (q *syncQueue) rehydrate(ctx context.Context) {
	if q.persister == nil {
		return
	}

	loadCtx, cancel := context.WithTimeout(ctx, q.config.PersistTimeout)
	data, found, err := q.persister.Load(loadCtx, q.config.SnapshotKey)
	cancel()
	if err != nil {
		err = ErrPersist(err)
		q.mu.Lock()
		q.lastPersistErr = err
		q.mu.Unlock()
		q.logger.Error("failed to load pending operations", zap.Error(err))
		return
	}
	if !found || len(data) == 0 {
		return
	}

	loaded, err := DecodeSnapshot(data)
	if err != nil {
		q.logger.Error("discarding unreadable pending operations snapshot", zap.Error(err))
		return
	}

	loaded = slices.DeleteFunc(loaded, func(op Operation) bool {
		if op.ID == "" || op.Type == "" {
			return true
		}
		return op.Retries > op.MaxRetries
	})

	q.mu.Lock()
	seen := make(map[string]struct{}, len(loaded))
	for _, op := range loaded {
		seen[op.ID] = struct{}{}
	}
	for _, op := range q.ops {
		if _, dup := seen[op.ID]; !dup {
			loaded = append(loaded, op)
		}
	}
	q.ops = loaded
	q.mu.Unlock()

	q.logger.Info("pending operations restored", zap.Int(logger.KeyPending, len(loaded)))
}

func (q *syncQueue) pendingCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ops)
}

func (q *syncQueue) isClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// IsAbandoned reports whether err is an *AbandonedError.
func IsAbandoned(err error) bool {
	var ae *AbandonedError
	return errors.As(err, &ae)
}
