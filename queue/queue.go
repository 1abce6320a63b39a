// Package queue implements the pending-operation sync queue of the offline
// data layer.
//
// Writes submitted while the network is unreliable are appended to a FIFO
// queue, persisted as a single snapshot blob, and drained by an injected
// Executor whenever the device is online. Each failed attempt bumps the
// operation's retry counter; once Retries exceeds MaxRetries the operation is
// abandoned, removed, and reported through Abandoned and OnAbandoned.
//
// Only one drain pass runs at a time. A pass attempts every operation present
// when it started, in submission order; a failing operation does not block the
// ones behind it. Operations enqueued during a pass wait for the next one.
package queue

import (
	"context"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Operation is a write intent waiting to be executed remotely.
type Operation struct {
	ID         string             `msgpack:"id" json:"id"`
	Type       string             `msgpack:"type" json:"type"`
	Payload    msgpack.RawMessage `msgpack:"payload" json:"-"`
	EnqueuedAt time.Time          `msgpack:"enqueued_at" json:"enqueued_at"`
	Retries    int                `msgpack:"retries" json:"retries"`
	MaxRetries int                `msgpack:"max_retries" json:"max_retries"`
	LastError  string             `msgpack:"last_error,omitempty" json:"last_error,omitempty"`
}

// DecodePayload decodes the operation payload into dst.
func (op Operation) DecodePayload(dst any) error {
	if err := msgpack.Unmarshal(op.Payload, dst); err != nil {
		return ErrDecodePayload(op.ID, err)
	}
	return nil
}

// DecodePayload is the typed form of Operation.DecodePayload.
func DecodePayload[T any](op Operation) (T, error) {
	var v T
	err := op.DecodePayload(&v)
	return v, err
}

// Executor performs one operation against the remote service. It must be safe
// to call more than once for the same operation: an operation that succeeded
// remotely but whose acknowledgement was lost is retried.
type Executor func(ctx context.Context, op Operation) error

// Probe reports whether the remote service is currently reachable.
type Probe func(ctx context.Context) bool

// Persister stores the queue snapshot as one opaque blob.
type Persister interface {
	Save(ctx context.Context, key string, data []byte) error
	// Load returns found=false when no snapshot exists.
	Load(ctx context.Context, key string) (data []byte, found bool, err error)
}

// Status is a projection of queue state, recomputed on every call.
type Status struct {
	IsOnline     bool `json:"is_online"`
	IsSyncing    bool `json:"is_syncing"`
	PendingCount int  `json:"pending_count"`
	// LastSyncAt is zero until the first drain pass completes.
	LastSyncAt time.Time `json:"last_sync_at"`
	// LastPersistError is the most recent snapshot failure, nil once a
	// later save succeeds.
	LastPersistError error `json:"-"`
}

// DrainResult summarizes one drain pass.
type DrainResult struct {
	// Skipped is true when another pass was already running.
	Skipped   bool `json:"skipped"`
	Attempted int  `json:"attempted"`
	Succeeded int  `json:"succeeded"`
	// Failed counts operations left in the queue for another attempt.
	Failed    int `json:"failed"`
	Abandoned int `json:"abandoned"`
}

// Outcome is the terminal state of one submitted operation.
type Outcome struct {
	OperationID string
	// Err is nil on success, an *AbandonedError once retries are exhausted,
	// or ErrCleared when the queue was cleared before execution.
	Err error
}

// EventKind names a queue lifecycle transition.
type EventKind string

const (
	EventQueued    EventKind = "queued"
	EventSynced    EventKind = "synced"
	EventRetry     EventKind = "retry"
	EventAbandoned EventKind = "abandoned"
	EventCleared   EventKind = "cleared"
)

// Event describes one lifecycle transition of an operation, for audit sinks.
type Event struct {
	Kind      EventKind
	Operation Operation
	// Err is the executor error for retry and abandoned events.
	Err error
	At  time.Time
}

// Queue is the pending-operation sync queue.
type Queue interface {
	// Start rehydrates the persisted snapshot (once), probes connectivity and
	// starts the periodic poll. A pending backlog is drained right away when
	// online, and each poll tick retries whatever is still pending while
	// online and idle.
	Start(ctx context.Context) error

	// Stop cancels background work and waits for it to finish.
	// It can be called multiple times safely.
	Stop()

	// QueueOperation appends an operation and returns its id immediately.
	// When online and idle a drain pass is started in the background.
	QueueOperation(ctx context.Context, typ string, payload any, opts ...OperationOption) (string, error)

	// Submit is QueueOperation plus a channel that receives the operation's
	// Outcome once it succeeds, is abandoned, or is cleared.
	Submit(ctx context.Context, typ string, payload any, opts ...OperationOption) (string, <-chan Outcome, error)

	// Drain runs one drain pass. A call made while a pass is running returns
	// immediately with Skipped set.
	Drain(ctx context.Context) DrainResult

	// ForceSync is an alias for Drain.
	ForceSync(ctx context.Context) DrainResult

	// Status returns the current sync status.
	Status() Status

	// Pending returns a copy of the queued operations in FIFO order.
	Pending() []Operation

	// ClearPendingOperations drops every queued operation and persists the
	// empty queue. It is a destructive recovery action.
	ClearPendingOperations(ctx context.Context) error

	// CheckOnline runs the probe once. An offline to online transition starts
	// a drain pass.
	CheckOnline(ctx context.Context) bool

	// Abandoned returns a channel of abandoned operations. Operations are
	// buffered without bound from the first call on, so a slow reader never
	// stalls a drain pass.
	Abandoned() <-chan *AbandonedError

	// OnAbandoned registers a listener called for every abandoned operation.
	OnAbandoned(fn func(*AbandonedError))
}
