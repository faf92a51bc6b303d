package settings

import (
	"context"
	"strconv"
	"sync"

	"cryptofolio/pkg/storage/kv"

	"go.uber.org/zap"
)

const darkModeKey = "darkMode"

// Store is the single process-wide holder of user settings. It is
// initialized once from persisted state and mutated only through its
// explicit setters; nothing else in the process carries ambient UI state.
type Store struct {
	kv     *kv.Store
	logger *zap.Logger

	mu       sync.RWMutex
	darkMode bool
}

func NewStore(store *kv.Store, logger *zap.Logger) *Store {
	return &Store{
		kv:     store,
		logger: logger,
	}
}

// Init reads persisted settings. An unreadable flag falls back to the
// default (light mode).
func (s *Store) Init(ctx context.Context) {
	raw, ok, err := s.kv.Get(ctx, darkModeKey)
	if err != nil {
		s.logger.Warn("failed to read settings", zap.Error(err))
		return
	}
	if !ok {
		return
	}

	enabled, err := strconv.ParseBool(raw)
	if err != nil {
		return
	}

	s.mu.Lock()
	s.darkMode = enabled
	s.mu.Unlock()
}

func (s *Store) DarkMode() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.darkMode
}

// SetDarkMode flips the flag and persists it. A storage failure keeps the
// in-memory value for the session.
func (s *Store) SetDarkMode(ctx context.Context, enabled bool) {
	s.mu.Lock()
	s.darkMode = enabled
	s.mu.Unlock()

	if err := s.kv.Set(ctx, darkModeKey, strconv.FormatBool(enabled)); err != nil {
		s.logger.Warn("failed to persist settings", zap.Error(err))
	}
}
