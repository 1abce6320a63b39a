package ch

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/dailyyoga/offline/logger"
	"github.com/dailyyoga/offline/queue"
	"github.com/dailyyoga/offline/routine"
	"github.com/smallnest/chanx"
	"go.uber.org/zap"
)

// insertFunc writes one batch of rows
type insertFunc func(ctx context.Context, rows []SyncEvent) error

type defaultWriter struct {
	config *WriterConfig
	table  string
	logger logger.Logger
	insert insertFunc

	dataChan *chanx.UnboundedChan[SyncEvent]
	runner   routine.Runner

	mu      sync.RWMutex
	closed  bool
	started atomic.Bool
}

func newWriter(log logger.Logger, table string, config *WriterConfig, insert insertFunc) *defaultWriter {
	log = logger.OrNop(log)
	w := &defaultWriter{
		config:   config,
		table:    table,
		logger:   log,
		insert:   insert,
		dataChan: chanx.NewUnboundedChan[SyncEvent](context.Background(), config.FlushSize),
		runner:   routine.New(log),
	}

	log.Info("clickhouse writer initialized",
		zap.String("table", table),
		zap.Duration("flush_interval", config.FlushInterval),
		zap.Int("flush_size", config.FlushSize),
	)
	return w
}

// NewWriter returns a batch writer inserting into table over conn.
// A nil config uses DefaultWriterConfig.
func NewWriter(log logger.Logger, conn driver.Conn, table string, config *WriterConfig) (Writer, error) {
	if config == nil {
		config = DefaultWriterConfig()
	} else {
		config.mergeDefaults()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if !tableNamePattern.MatchString(table) {
		return nil, ErrInvalidTable
	}
	return newWriter(log, table, config, connInsert(conn, table)), nil
}

// connInsert inserts rows through a prepared batch on conn
func connInsert(conn driver.Conn, table string) insertFunc {
	query := fmt.Sprintf("INSERT INTO `%s` (event, operation_id, operation_type, attempt, error, at)", table)
	return func(ctx context.Context, rows []SyncEvent) error {
		batch, err := conn.PrepareBatch(ctx, query)
		if err != nil {
			return err
		}
		for _, r := range rows {
			if err := batch.Append(r.Event, r.OperationID, r.OperationType, r.Attempt, r.Error, r.At); err != nil {
				_ = batch.Abort()
				return err
			}
		}
		return batch.Send()
	}
}

func (w *defaultWriter) Start() error {
	if !w.started.CompareAndSwap(false, true) {
		return nil
	}
	w.runner.GoNamed("clickhouse-writer", w.processLoop)
	w.logger.Info("clickhouse writer started")
	return nil
}

func (w *defaultWriter) Write(ctx context.Context, events ...SyncEvent) error {
	if len(events) == 0 {
		return nil
	}

	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return ErrWriterClosed
	}

	for _, ev := range events {
		select {
		case w.dataChan.In <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (w *defaultWriter) Hook() func(queue.Event) {
	return func(ev queue.Event) {
		if err := w.Write(context.Background(), FromQueueEvent(ev)); err != nil {
			w.logger.Warn("dropping sync event", zap.String("event", string(ev.Kind)), zap.Error(err))
		}
	}
}

// Close stops accepting rows, flushes what is buffered and waits.
// It can be called multiple times safely.
func (w *defaultWriter) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.dataChan.In)
	w.mu.Unlock()

	if !w.started.Load() {
		dropped := 0
		for range w.dataChan.Out {
			dropped++
		}
		if dropped > 0 {
			w.logger.Warn("clickhouse writer closed before start, rows dropped", zap.Int("rows", dropped))
		}
		return nil
	}

	w.runner.Wait()
	w.logger.Info("clickhouse writer shutdown complete")
	return nil
}

func (w *defaultWriter) processLoop() {
	ticker := time.NewTicker(w.config.FlushInterval)
	defer ticker.Stop()

	buffer := make([]SyncEvent, 0, w.config.FlushSize)
	for {
		select {
		case ev, ok := <-w.dataChan.Out:
			if !ok {
				w.flush(buffer)
				return
			}
			buffer = append(buffer, ev)
			if len(buffer) >= w.config.FlushSize {
				w.flush(buffer)
				buffer = buffer[:0]
			}
		case <-ticker.C:
			if len(buffer) > 0 {
				w.flush(buffer)
				buffer = buffer[:0]
			}
		}
	}
}

func (w *defaultWriter) flush(rows []SyncEvent) {
	if len(rows) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), w.config.InsertTimeout)
	defer cancel()

	start := time.Now()
	if err := w.insert(ctx, rows); err != nil {
		w.logger.Error("failed to insert sync events",
			zap.Int("rows", len(rows)),
			zap.Error(ErrInsert(w.table, err)),
		)
		return
	}
	w.logger.Debug("sync events flushed",
		zap.Int("rows", len(rows)),
		zap.Duration("elapsed", time.Since(start)),
	)
}
