package cache

import (
	"context"
	"encoding/json"
	"time"

	"cryptofolio/pkg/storage/kv"

	"go.uber.org/zap"
)

// envelope wraps a cached payload with the metadata needed to decide
// whether it is still usable.
type envelope struct {
	Payload   json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"` // creation instant, ms since epoch
	Version   string          `json:"version"`   // schema version at write time
}

// Store is a time-boxed cache over the durable kv store. Reads fail soft:
// an absent key, an unparseable entry, a schema-version mismatch, an expired
// TTL or a storage error all surface as a plain miss. Writes never fail the
// caller; a persistence error is logged and the write becomes a no-op.
type Store struct {
	kv      *kv.Store
	ttl     time.Duration
	version string
	logger  *zap.Logger

	now func() time.Time // test hook
}

func New(store *kv.Store, ttl time.Duration, version string, logger *zap.Logger) *Store {
	return &Store{
		kv:      store,
		ttl:     ttl,
		version: version,
		logger:  logger,
		now:     time.Now,
	}
}

// Get unmarshals the cached payload under key into out. It returns false on
// any kind of miss; out is left untouched in that case.
func Get[T any](ctx context.Context, s *Store, key string, out *T) bool {
	raw, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		s.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		return false
	}
	if !ok {
		return false
	}

	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		s.logger.Warn("cache entry unreadable", zap.String("key", key), zap.Error(err))
		return false
	}
	if env.Version != s.version {
		return false
	}
	if s.now().Sub(time.UnixMilli(env.Timestamp)) >= s.ttl {
		return false
	}

	if err := json.Unmarshal(env.Payload, out); err != nil {
		s.logger.Warn("cache payload unreadable", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

// Set stores payload under key with the current timestamp and schema version.
func Set[T any](ctx context.Context, s *Store, key string, payload T) {
	body, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn("cache payload not serializable", zap.String("key", key), zap.Error(err))
		return
	}

	raw, err := json.Marshal(envelope{
		Payload:   body,
		Timestamp: s.now().UnixMilli(),
		Version:   s.version,
	})
	if err != nil {
		s.logger.Warn("cache entry not serializable", zap.String("key", key), zap.Error(err))
		return
	}

	if err := s.kv.Set(ctx, key, string(raw)); err != nil {
		s.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}
