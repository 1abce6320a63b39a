package ch

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dailyyoga/offline/logger"
	"github.com/dailyyoga/offline/queue"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type captureInsert struct {
	mu      sync.Mutex
	batches [][]SyncEvent
	err     error
}

func (c *captureInsert) insert(_ context.Context, rows []SyncEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.batches = append(c.batches, append([]SyncEvent(nil), rows...))
	return nil
}

func (c *captureInsert) rows() []SyncEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []SyncEvent
	for _, b := range c.batches {
		out = append(out, b...)
	}
	return out
}

func (c *captureInsert) batchCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.batches)
}

func testWriterConfig() *WriterConfig {
	return &WriterConfig{FlushInterval: time.Hour, FlushSize: 3, InsertTimeout: time.Second}
}

func TestWriter_FlushOnSize(t *testing.T) {
	c := &captureInsert{}
	w := newWriter(nil, "events", testWriterConfig(), c.insert)
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	for i := 0; i < 3; i++ {
		if err := w.Write(context.Background(), SyncEvent{Event: "synced", OperationID: string(rune('a' + i))}); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for c.batchCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	rows := c.rows()
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows flushed, got %d", len(rows))
	}
	for i, r := range rows {
		if r.OperationID != string(rune('a'+i)) {
			t.Errorf("row %d out of order: %q", i, r.OperationID)
		}
	}
}

func TestWriter_FlushOnInterval(t *testing.T) {
	c := &captureInsert{}
	cfg := testWriterConfig()
	cfg.FlushInterval = 20 * time.Millisecond
	w := newWriter(nil, "events", cfg, c.insert)
	w.Start()
	defer w.Close()

	w.Write(context.Background(), SyncEvent{Event: "queued"})

	deadline := time.Now().Add(2 * time.Second)
	for c.batchCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := len(c.rows()); got != 1 {
		t.Fatalf("expected 1 row after interval flush, got %d", got)
	}
}

func TestWriter_CloseFlushesRemaining(t *testing.T) {
	c := &captureInsert{}
	w := newWriter(nil, "events", testWriterConfig(), c.insert)
	w.Start()

	w.Write(context.Background(), SyncEvent{Event: "retry"}, SyncEvent{Event: "retry"})
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if got := len(c.rows()); got != 2 {
		t.Fatalf("expected buffered rows flushed on close, got %d", got)
	}

	if err := w.Write(context.Background(), SyncEvent{}); !errors.Is(err, ErrWriterClosed) {
		t.Errorf("expected ErrWriterClosed, got %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
}

func TestWriter_InsertFailureIsLogged(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	c := &captureInsert{err: errors.New("table missing")}
	w := newWriter(zap.New(core), "events", testWriterConfig(), c.insert)
	w.Start()

	w.Write(context.Background(), SyncEvent{Event: "abandoned"})
	w.Close()

	entries := logs.FilterMessage("failed to insert sync events").All()
	if len(entries) != 1 {
		t.Fatalf("expected one insert failure log, got %d", len(entries))
	}
	if err, ok := entries[0].ContextMap()["error"].(string); !ok || !strings.Contains(err, "events") {
		t.Errorf("expected error naming the table, got %v", entries[0].ContextMap()["error"])
	}
}

func TestWriter_Hook(t *testing.T) {
	c := &captureInsert{}
	w := newWriter(logger.NewNop(), "events", testWriterConfig(), c.insert)
	w.Start()

	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	hook := w.Hook()
	hook(queue.Event{
		Kind:      queue.EventAbandoned,
		Operation: queue.Operation{ID: "op-1", Type: "like", Retries: 4},
		Err:       errors.New("boom"),
		At:        at,
	})
	w.Close()

	rows := c.rows()
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	want := SyncEvent{Event: "abandoned", OperationID: "op-1", OperationType: "like", Attempt: 4, Error: "boom", At: at}
	if rows[0] != want {
		t.Errorf("row = %+v, want %+v", rows[0], want)
	}

	// hook after close drops silently
	hook(queue.Event{Kind: queue.EventQueued})
}
