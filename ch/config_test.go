package ch

import (
	"errors"
	"strings"
	"testing"
)

func TestConfig_MergeDefaults(t *testing.T) {
	cfg := (&Config{Hosts: []string{"localhost:9000"}, Username: "default", WriterConfig: &WriterConfig{}}).MergeDefaults()
	if cfg.Database != "default" || cfg.Table != "offline_sync_events" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.WriterConfig.FlushSize != 1000 {
		t.Errorf("expected writer defaults, got %+v", cfg.WriterConfig)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	base := func() *Config {
		return (&Config{Hosts: []string{"localhost:9000"}, Username: "default"}).MergeDefaults()
	}

	cfg := base()
	cfg.Hosts = nil
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "hosts") {
		t.Errorf("expected hosts error, got %v", err)
	}

	cfg = base()
	cfg.Table = "drop table;"
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidTable) {
		t.Errorf("expected ErrInvalidTable, got %v", err)
	}

	cfg = base()
	cfg.WriterConfig = &WriterConfig{FlushInterval: -1, FlushSize: 1, InsertTimeout: 1}
	if err := cfg.Validate(); err == nil {
		t.Error("expected writer validation error")
	}
}

func TestCreateTableSQL(t *testing.T) {
	sql := createTableSQL("offline_sync_events")
	if !strings.HasPrefix(sql, "CREATE TABLE IF NOT EXISTS `offline_sync_events`") {
		t.Errorf("unexpected ddl: %s", sql)
	}
	if !strings.Contains(sql, "MergeTree") {
		t.Errorf("expected MergeTree engine: %s", sql)
	}
}
