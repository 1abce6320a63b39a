package db

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Snapshot is the row holding one serialized pending-operation queue
type Snapshot struct {
	Key       string `gorm:"primaryKey;size:191"`
	Data      []byte `gorm:"type:mediumblob;not null"`
	UpdatedAt time.Time
}

// TableName pins the table name independent of naming strategy
func (Snapshot) TableName() string {
	return "offline_snapshots"
}

type gormSnapshotStore struct {
	database Database
	db       *gorm.DB
}

// NewGormSnapshotStore migrates the snapshot table on database and returns a
// store over it. Close closes the database.
func NewGormSnapshotStore(database Database) (SnapshotStore, error) {
	db, err := database.DB()
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&Snapshot{}); err != nil {
		return nil, ErrMigrate(err)
	}
	return &gormSnapshotStore{database: database, db: db}, nil
}

func (s *gormSnapshotStore) Save(ctx context.Context, key string, data []byte) error {
	if data == nil {
		data = []byte{}
	}
	row := Snapshot{Key: key, Data: data}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return ErrSnapshot("save", key, err)
	}
	return nil
}

func (s *gormSnapshotStore) Load(ctx context.Context, key string) ([]byte, bool, error) {
	var row Snapshot
	err := s.db.WithContext(ctx).Where("`key` = ?", key).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, ErrSnapshot("load", key, err)
	}
	return row.Data, true, nil
}

func (s *gormSnapshotStore) Delete(ctx context.Context, key string) error {
	if err := s.db.WithContext(ctx).Where("`key` = ?", key).Delete(&Snapshot{}).Error; err != nil {
		return ErrSnapshot("delete", key, err)
	}
	return nil
}

func (s *gormSnapshotStore) Close() error {
	return s.database.Close()
}
