// Package cache provides the in-process TTL cache store of the offline data layer.
//
// The cache package follows the kit conventions:
// - Interface-driven design for testability
// - Uses logger.Logger interface for unified logging
// - Configuration with validation and defaults
// - Structured error handling
//
// Values are encoded with msgpack when they are stored, and every read decodes
// into caller-owned memory. Callers never hold a reference to stored data, so a
// value read from the cache can be modified freely. Only exported struct fields
// survive the round trip; unexported fields read back as their zero value.
//
// Expired entries behave as absent for Get but stay in memory until Cleanup
// removes them; GetStale still sees them until then. Cleanup is expected to be
// scheduled on a fixed interval by the owner of the Store.
package cache

import (
	"reflect"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Store is an expiring key/value store keyed by string.
// All operations are in-memory bookkeeping and never block on I/O.
type Store interface {
	// Set stores value under key until now+ttl, replacing any existing entry.
	// ttl <= 0 uses the configured default TTL. The value is encoded with
	// msgpack, so unexported struct fields are not stored. Values msgpack
	// cannot encode at all are kept as-is and logged.
	Set(key string, value any, ttl time.Duration)

	// Get decodes the entry for key into dst (a non-nil pointer) and reports
	// whether a valid entry was found. Missing, expired and undecodable
	// entries are all reported as a miss.
	Get(key string, dst any) bool

	// GetStale is Get without the expiry check. It still misses once the
	// entry has been deleted or cleaned up.
	GetStale(key string, dst any) bool

	// Has reports whether a valid entry exists for key.
	Has(key string) bool

	// Delete removes the entry for key if present.
	Delete(key string)

	// DeleteByPrefix removes every entry whose key starts with prefix and
	// returns how many were removed. Reserved keys are skipped.
	DeleteByPrefix(prefix string) int

	// Cleanup removes every expired entry and returns how many were removed.
	Cleanup() int

	// Clear removes every entry except reserved ones.
	Clear()

	// Reserve exempts key from DeleteByPrefix and Clear. Delete and expiry
	// still remove it.
	Reserve(key string)

	// Keys returns the keys currently held, including expired ones.
	Keys() []string

	// Stats returns a diagnostic snapshot.
	Stats() Stats
}

// Stats is a diagnostic snapshot of a Store.
type Stats struct {
	Total   int `json:"total"`
	Valid   int `json:"valid"`
	Expired int `json:"expired"`
	// ApproxMemoryBytes is a best-effort estimate from encoded sizes.
	// It is 0 when any stored value could not be encoded.
	ApproxMemoryBytes int64 `json:"approx_memory_bytes"`
}

// Get is the typed form of Store.Get.
func Get[T any](s Store, key string) (T, bool) {
	var v T
	if !s.Get(key, &v) {
		var zero T
		return zero, false
	}
	return v, true
}

// GetStale is the typed form of Store.GetStale.
func GetStale[T any](s Store, key string) (T, bool) {
	var v T
	if !s.GetStale(key, &v) {
		var zero T
		return zero, false
	}
	return v, true
}

// encode serializes a value for storage.
func encode(value any) ([]byte, error) {
	return msgpack.Marshal(value)
}

// decodeInto writes a stored value into dst. Encoded values are unmarshalled;
// values kept as-is (not encodable) are assigned when the types line up.
func decodeInto(ent *entry, dst any) bool {
	if ent.encoded {
		return msgpack.Unmarshal(ent.data, dst) == nil
	}

	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return false
	}
	src := reflect.ValueOf(ent.raw)
	if !src.IsValid() {
		rv.Elem().SetZero()
		return true
	}
	if !src.Type().AssignableTo(rv.Elem().Type()) {
		return false
	}
	rv.Elem().Set(src)
	return true
}
