package kafka

import (
	"context"
	"encoding/json"

	"github.com/dailyyoga/offline/logger"
	"go.uber.org/zap"
)

// Invalidator drops cached entries; *accessor.Accessor implements it
type Invalidator interface {
	Invalidate(key string)
	InvalidatePrefix(prefix string) int
}

// InvalidationEvent names one key or every key under a prefix.
// Key wins when both are set.
type InvalidationEvent struct {
	Key    string `json:"key,omitempty"`
	Prefix string `json:"prefix,omitempty"`
}

// EncodeInvalidation returns the message value for ev
func EncodeInvalidation(ev InvalidationEvent) ([]byte, error) {
	if ev.Key == "" && ev.Prefix == "" {
		return nil, ErrInvalidEvent
	}
	return json.Marshal(ev)
}

// NewInvalidationHandler applies invalidation events from other nodes to the
// local cache. Malformed events are logged and skipped so they are not
// redelivered forever.
func NewInvalidationHandler(log logger.Logger, inv Invalidator) ConsumerMsgHandler {
	log = logger.OrNop(log)
	return func(_ context.Context, msg *Message) error {
		var ev InvalidationEvent
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			log.Warn("skipping malformed invalidation event", zap.Error(ErrDecodeEvent(err)))
			return nil
		}

		switch {
		case ev.Key != "":
			inv.Invalidate(ev.Key)
			log.Debug("remote invalidation applied", logger.CacheKey(ev.Key))
		case ev.Prefix != "":
			n := inv.InvalidatePrefix(ev.Prefix)
			log.Debug("remote prefix invalidation applied",
				zap.String("prefix", ev.Prefix),
				zap.Int("removed", n),
			)
		default:
			log.Warn("skipping invalidation event", zap.Error(ErrInvalidEvent))
		}
		return nil
	}
}
