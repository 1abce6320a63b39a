package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dailyyoga/offline/db"
	"github.com/dailyyoga/offline/logger"
	"github.com/dailyyoga/offline/queue"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type rootOptions struct {
	path     string
	key      string
	logLevel string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "offlinectl",
		Short: "Inspect the offline sync queue",
		Long: `offlinectl reads the pending-operation snapshot persisted by the offline
data layer in a SQLite file.

Common usage:
  offlinectl status --db offline.db     # Summarize the backlog
  offlinectl list --type order.create   # List pending operations of one type
  offlinectl clear --yes                # Drop every pending operation`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.path, "db", db.DefaultSQLiteConfig().Path, "SQLite snapshot file")
	flags.StringVar(&opts.key, "key", queue.DefaultSnapshotKey, "snapshot key")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "log level")

	cmd.AddCommand(newStatusCmd(opts), newListCmd(opts), newClearCmd(opts))
	return cmd
}

// snapshot is an opened snapshot file
type snapshot struct {
	store db.SnapshotStore
	key   string
}

func (o *rootOptions) open() (*snapshot, error) {
	if _, err := os.Stat(o.path); err != nil {
		return nil, fmt.Errorf("open snapshot file: %w", err)
	}
	log, err := logger.New(&logger.Config{
		Level:       o.logLevel,
		Encoding:    "console",
		OutputPaths: []string{"stderr"},
	})
	if err != nil {
		return nil, err
	}
	store, err := db.NewSQLiteSnapshotStore(log, &db.SQLiteConfig{Path: o.path})
	if err != nil {
		return nil, err
	}
	return &snapshot{store: store, key: o.key}, nil
}

func (s *snapshot) load(ctx context.Context) ([]queue.Operation, error) {
	data, found, err := s.store.Load(ctx, s.key)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	ops, err := queue.DecodeSnapshot(data)
	if err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", s.key, err)
	}
	logger.For("offlinectl").Debug("snapshot loaded",
		zap.String("key", s.key),
		zap.Int(logger.KeyPending, len(ops)),
	)
	return ops, nil
}

func (s *snapshot) save(ctx context.Context, ops []queue.Operation) error {
	if len(ops) == 0 {
		return s.store.Delete(ctx, s.key)
	}
	data, err := queue.EncodeSnapshot(ops)
	if err != nil {
		return err
	}
	return s.store.Save(ctx, s.key, data)
}

func (s *snapshot) Close() error {
	return s.store.Close()
}
