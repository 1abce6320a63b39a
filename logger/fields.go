package logger

import "go.uber.org/zap"

// Field keys shared by the data layer so log queries stay consistent.
const (
	KeyCacheKey      = "cache_key"
	KeyOperationID   = "operation_id"
	KeyOperationType = "operation_type"
	KeyAttempt       = "attempt"
	KeyMaxRetries    = "max_retries"
	KeyPending       = "pending"
	KeyComponent     = "component"
)

// CacheKey tags an entry with the cache key it concerns.
func CacheKey(key string) zap.Field { return zap.String(KeyCacheKey, key) }

// Operation tags an entry with a pending operation's identity.
func Operation(id, typ string) []zap.Field {
	return []zap.Field{zap.String(KeyOperationID, id), zap.String(KeyOperationType, typ)}
}

// Component names the subsystem emitting the entry.
func Component(name string) zap.Field { return zap.String(KeyComponent, name) }
