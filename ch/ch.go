// Package ch records sync queue activity in ClickHouse for offline analysis
// of retry and abandonment rates.
//
// Events are buffered in an unbounded channel and inserted in batches, so a
// slow or unavailable ClickHouse never stalls a drain pass. Rows that fail to
// insert are logged and dropped.
package ch

import (
	"context"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/dailyyoga/offline/queue"
)

// SyncEvent is one row of the audit table
type SyncEvent struct {
	Event         string
	OperationID   string
	OperationType string
	Attempt       uint32
	Error         string
	At            time.Time
}

// FromQueueEvent converts a queue lifecycle event into an audit row
func FromQueueEvent(ev queue.Event) SyncEvent {
	row := SyncEvent{
		Event:         string(ev.Kind),
		OperationID:   ev.Operation.ID,
		OperationType: ev.Operation.Type,
		Attempt:       uint32(ev.Operation.Retries),
		At:            ev.At,
	}
	if ev.Err != nil {
		row.Error = ev.Err.Error()
	}
	return row
}

// Writer buffers audit rows and inserts them in batches
type Writer interface {
	Start() error
	Close() error
	Write(ctx context.Context, events ...SyncEvent) error
	// Hook returns a queue event hook feeding this writer
	Hook() func(queue.Event)
}

// Client is the ClickHouse client shared by the writer and queries
type Client interface {
	// Writer returns the batch writer; the caller starts it
	Writer() (Writer, error)
	// EnsureTable creates the audit table when missing
	EnsureTable(ctx context.Context) error
	Query(ctx context.Context, query string, args ...any) (driver.Rows, error)
	QueryRow(ctx context.Context, query string, args ...any) driver.Row
	Close() error
}
