package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew_NilConfig(t *testing.T) {
	l, err := New(nil)
	if err != nil {
		t.Fatalf("New(nil) failed: %v", err)
	}
	if l == nil {
		t.Fatal("New(nil) returned nil logger")
	}
	l.Info("test")
}

func TestNew_PartialConfig(t *testing.T) {
	l, err := New(&Config{Level: "debug"})
	if err != nil {
		t.Fatalf("New with partial config failed: %v", err)
	}
	if l == nil {
		t.Fatal("New returned nil logger")
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  *Config
	}{
		{"invalid level", &Config{Level: "loud", Encoding: "json"}},
		{"invalid encoding", &Config{Level: "info", Encoding: "xml"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cfg); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}

func TestConfig_MergeDefaults(t *testing.T) {
	cfg := (&Config{Encoding: "console"}).MergeDefaults()
	if cfg.Level != "info" || cfg.Encoding != "console" {
		t.Errorf("unexpected merge result: %+v", cfg)
	}
	if len(cfg.OutputPaths) != 1 || cfg.OutputPaths[0] != "stdout" {
		t.Errorf("expected stdout output path, got %v", cfg.OutputPaths)
	}
}

func TestOrNop(t *testing.T) {
	if OrNop(nil) == nil {
		t.Fatal("OrNop(nil) should return a usable logger")
	}
	l := NewNop()
	if OrNop(l) != l {
		t.Error("OrNop should return the given logger unchanged")
	}
}

func TestFieldHelpers(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	log := zap.New(core)

	log.Info("op", append(Operation("op-1", "CREATE"), CacheKey("k"), Component("queue"))...)

	entries := recorded.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	ctx := entries[0].ContextMap()
	if ctx[KeyOperationID] != "op-1" || ctx[KeyOperationType] != "CREATE" {
		t.Errorf("operation fields missing: %v", ctx)
	}
	if ctx[KeyCacheKey] != "k" || ctx[KeyComponent] != "queue" {
		t.Errorf("cache/component fields missing: %v", ctx)
	}
}
