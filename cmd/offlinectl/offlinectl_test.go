package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dailyyoga/offline/db"
	"github.com/dailyyoga/offline/logger"
	"github.com/dailyyoga/offline/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seed writes a snapshot holding ops to a fresh SQLite file
func seed(t *testing.T, ops ...queue.Operation) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "offline.db")
	store, err := db.NewSQLiteSnapshotStore(logger.NewNop(), &db.SQLiteConfig{Path: path})
	require.NoError(t, err)
	defer store.Close()

	data, err := queue.EncodeSnapshot(ops)
	require.NoError(t, err)
	require.NoError(t, store.Save(context.Background(), queue.DefaultSnapshotKey, data))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func sampleOps() []queue.Operation {
	at := time.Now().Add(-time.Hour)
	return []queue.Operation{
		{ID: "op-1", Type: "order.create", EnqueuedAt: at, MaxRetries: 3},
		{ID: "op-2", Type: "stock.adjust", EnqueuedAt: at.Add(time.Minute), Retries: 2, MaxRetries: 3, LastError: "timeout"},
		{ID: "op-3", Type: "order.create", EnqueuedAt: at.Add(2 * time.Minute), MaxRetries: 3},
	}
}

func TestStatus(t *testing.T) {
	path := seed(t, sampleOps()...)

	out, err := run(t, "status", "--db", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Pending:   3")
	assert.Contains(t, out, "Retrying:  1")
	assert.Contains(t, out, "order.create")
	assert.Less(t, strings.Index(out, "order.create"), strings.Index(out, "stock.adjust"))
}

// rows returns the table lines holding an operation ID
func rows(out string) []string {
	var lines []string
	for _, l := range strings.Split(out, "\n") {
		if strings.Contains(l, "op-") {
			lines = append(lines, l)
		}
	}
	return lines
}

func TestList(t *testing.T) {
	path := seed(t, sampleOps()...)

	out, err := run(t, "list", "--db", path)
	require.NoError(t, err)
	lines := rows(out)
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "op-1")
	assert.Contains(t, lines[2], "op-3")
	assert.Contains(t, lines[1], "2/3")
	assert.Contains(t, lines[1], "timeout")

	out, err = run(t, "list", "--db", path, "--type", "stock.adjust")
	require.NoError(t, err)
	lines = rows(out)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "op-2")
}

func TestClear(t *testing.T) {
	path := seed(t, sampleOps()...)

	_, err := run(t, "clear", "--db", path)
	assert.ErrorIs(t, err, errNotConfirmed)

	out, err := run(t, "clear", "--db", path, "--type", "order.create", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "Cleared 2 of 3")

	out, err = run(t, "list", "--db", path)
	require.NoError(t, err)
	assert.Contains(t, out, "op-2")
	assert.NotContains(t, out, "op-1")

	out, err = run(t, "clear", "--db", path, "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "Cleared 1 of 1")

	out, err = run(t, "status", "--db", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Pending:   0")
}

func TestMissingFile(t *testing.T) {
	_, err := run(t, "status", "--db", filepath.Join(t.TempDir(), "absent.db"))
	assert.Error(t, err)
}
