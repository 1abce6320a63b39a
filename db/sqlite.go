package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dailyyoga/offline/logger"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

type sqliteSnapshotStore struct {
	logger logger.Logger
	db     *sql.DB
	now    func() time.Time
}

// NewSQLiteSnapshotStore opens (or creates) the snapshot database at
// cfg.Path. A nil config uses DefaultSQLiteConfig.
func NewSQLiteSnapshotStore(log logger.Logger, cfg *SQLiteConfig) (SnapshotStore, error) {
	if cfg == nil {
		cfg = DefaultSQLiteConfig()
	} else {
		cfg = cfg.MergeDefaults()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log = logger.OrNop(log)

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, ErrConnection(err)
	}
	// a single writer avoids SQLITE_BUSY between pooled connections
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		fmt.Sprintf("PRAGMA busy_timeout=%d", cfg.BusyTimeout.Milliseconds()),
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, ErrConnection(err)
		}
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS snapshots (
		key TEXT PRIMARY KEY,
		data BLOB NOT NULL,
		updated_at INTEGER NOT NULL
	)`); err != nil {
		db.Close()
		return nil, ErrMigrate(err)
	}

	log.Info("sqlite snapshot store opened", zap.String("path", cfg.Path))

	return &sqliteSnapshotStore{
		logger: log,
		db:     db,
		now:    time.Now,
	}, nil
}

func (s *sqliteSnapshotStore) Save(ctx context.Context, key string, data []byte) error {
	if data == nil {
		data = []byte{}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO snapshots (key, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		key, data, s.now().UnixNano(),
	)
	if err != nil {
		return ErrSnapshot("save", key, err)
	}
	return nil
}

func (s *sqliteSnapshotStore) Load(ctx context.Context, key string) ([]byte, bool, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM snapshots WHERE key = ?`, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, ErrSnapshot("load", key, err)
	}
	return data, true, nil
}

func (s *sqliteSnapshotStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE key = ?`, key); err != nil {
		return ErrSnapshot("delete", key, err)
	}
	return nil
}

func (s *sqliteSnapshotStore) Close() error {
	return s.db.Close()
}
