// Package db provides durable backends for the pending-operation snapshot:
// an embedded SQLite file for devices and MySQL through gorm for shared
// deployments. Both store one opaque blob per key.
package db

import (
	"context"

	"gorm.io/gorm"
)

// Database is a gorm-backed connection
type Database interface {
	DB() (*gorm.DB, error)
	Ping(ctx context.Context) error
	Close() error
}

// SnapshotStore keeps one opaque blob per key
type SnapshotStore interface {
	Save(ctx context.Context, key string, data []byte) error
	Load(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, key string) error
	Close() error
}
