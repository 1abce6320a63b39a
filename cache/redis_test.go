package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dailyyoga/offline/logger"
	"github.com/redis/go-redis/v9"
)

func testLogger(t *testing.T) logger.Logger {
	t.Helper()
	log, _ := logger.New(&logger.Config{Level: "debug", Encoding: "console"})
	return log
}

func setupTestRedis(t *testing.T) (Redis, *miniredis.Miniredis) {
	t.Helper()
	mr, _ := miniredis.Run()
	rdb, err := NewRedis(testLogger(t), &RedisConfig{Addr: mr.Addr(), DialTimeout: time.Second})
	if err != nil {
		mr.Close()
		t.Fatalf("failed to create redis: %v", err)
	}
	return rdb, mr
}

func TestRedisConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *RedisConfig
		wantErr bool
	}{
		{"valid", &RedisConfig{Addr: "localhost:6379"}, false},
		{"empty addr", &RedisConfig{}, true},
		{"negative db", &RedisConfig{Addr: "localhost:6379", DB: -1}, true},
		{"negative pool", &RedisConfig{Addr: "localhost:6379", PoolSize: -1}, true},
		{"negative min idle conns", &RedisConfig{Addr: "localhost:6379", MinIdleConns: -1}, true},
		{"negative max retries", &RedisConfig{Addr: "localhost:6379", MaxRetries: -1}, true},
		{"negative timeout", &RedisConfig{Addr: "localhost:6379", DialTimeout: -1}, true},
		{"negative read timeout", &RedisConfig{Addr: "localhost:6379", ReadTimeout: -1}, true},
		{"negative write timeout", &RedisConfig{Addr: "localhost:6379", WriteTimeout: -1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRedisConfig_MergeDefaults(t *testing.T) {
	cfg := (&RedisConfig{Addr: "custom:6379"}).MergeDefaults()
	if cfg.Addr != "custom:6379" || cfg.PoolSize != 10 || cfg.DialTimeout != 5*time.Second {
		t.Error("MergeDefaults failed")
	}
}

func TestRedisConfig_Options(t *testing.T) {
	cfg := &RedisConfig{Addr: "localhost:6379", Username: "myuser", Password: "mypassword", DB: 2, PoolSize: 20}
	opts := cfg.Options()
	if opts.Addr != "localhost:6379" || opts.DB != 2 || opts.PoolSize != 20 {
		t.Error("Options conversion failed")
	}
	if opts.Username != "myuser" || opts.Password != "mypassword" {
		t.Errorf("credentials not carried over: %q/%q", opts.Username, opts.Password)
	}
}

func TestRedis_GetSet(t *testing.T) {
	rdb, mr := setupTestRedis(t)
	defer mr.Close()
	defer rdb.Close()
	ctx := context.Background()

	rdb.Set(ctx, "sync:pending_operations", []byte{0x90}, time.Hour)
	if val, _ := rdb.Get(ctx, "sync:pending_operations").Bytes(); len(val) != 1 || val[0] != 0x90 {
		t.Errorf("unexpected value %v", val)
	}
	if _, err := rdb.Get(ctx, "nonexistent").Result(); err != redis.Nil {
		t.Errorf("expected redis.Nil, got %v", err)
	}
	if ttl, _ := rdb.TTL(ctx, "sync:pending_operations").Result(); ttl <= 0 {
		t.Errorf("unexpected TTL: %v", ttl)
	}
}

func TestRedis_Unwrap(t *testing.T) {
	rdb, mr := setupTestRedis(t)
	defer mr.Close()
	defer rdb.Close()

	if rdb.Unwrap() == nil {
		t.Error("Unwrap() returned nil")
	}
}

func TestNewRedis_ConnectionError(t *testing.T) {
	_, err := NewRedis(testLogger(t), &RedisConfig{Addr: "invalid:9999", DialTimeout: 50 * time.Millisecond})
	if err == nil {
		t.Error("expected error")
	}
}

func TestNewRedis_InvalidConfig(t *testing.T) {
	_, err := NewRedis(testLogger(t), &RedisConfig{Addr: "", PoolSize: -1})
	if err == nil {
		t.Error("expected validation error")
	}
}

func TestNewRedis_WithUsernamePassword(t *testing.T) {
	mr, _ := miniredis.Run()
	defer mr.Close()
	mr.RequireUserAuth("testuser", "testpass")

	rdb, err := NewRedis(testLogger(t), &RedisConfig{
		Addr:        mr.Addr(),
		Username:    "testuser",
		Password:    "testpass",
		DialTimeout: time.Second,
	})
	if err != nil {
		t.Fatalf("expected successful connection with username/password, got error: %v", err)
	}
	defer rdb.Close()

	_, err = NewRedis(testLogger(t), &RedisConfig{
		Addr:        mr.Addr(),
		Username:    "testuser",
		Password:    "wrongpass",
		DialTimeout: time.Second,
	})
	if err == nil {
		t.Error("expected authentication error with wrong password")
	}
}
