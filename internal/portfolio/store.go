package portfolio

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"cryptofolio/pkg/storage/kv"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// storageKey is the single kv key holding the full serialized collection.
const storageKey = "portfolio"

// Store owns the holdings collection. It is the sole writer of the persisted
// form; every mutation rewrites the full collection synchronously so a reader
// never observes a partial write.
type Store struct {
	kv     *kv.Store
	logger *zap.Logger

	mu       sync.RWMutex
	holdings []Holding
}

func NewStore(store *kv.Store, logger *zap.Logger) *Store {
	return &Store{
		kv:     store,
		logger: logger,
	}
}

// Load reads the persisted collection into memory. Corrupt or absent data
// yields an empty portfolio, never an error: losing a parse is recoverable,
// crashing the dashboard over it is not.
func (s *Store) Load(ctx context.Context) []Holding {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.holdings = nil

	raw, ok, err := s.kv.Get(ctx, storageKey)
	if err != nil {
		s.logger.Warn("failed to read portfolio, starting empty", zap.Error(err))
		return nil
	}
	if !ok {
		return nil
	}

	var holdings []Holding
	if err := json.Unmarshal([]byte(raw), &holdings); err != nil {
		s.logger.Warn("corrupt portfolio data, starting empty", zap.Error(err))
		return nil
	}

	s.holdings = holdings
	return s.copyLocked()
}

// Holdings returns a copy of the current collection.
func (s *Store) Holdings() []Holding {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyLocked()
}

// CoinIDs returns the distinct coin ids across all holdings, sorted.
func (s *Store) CoinIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := map[string]bool{}
	var ids []string
	for _, h := range s.holdings {
		if !seen[h.CoinID] {
			ids = append(ids, h.CoinID)
			seen[h.CoinID] = true
		}
	}
	sort.Strings(ids)
	return ids
}

// Add validates the holding, assigns a fresh id, fixes Value at
// amount × purchase price and persists. The stored holding is returned.
func (s *Store) Add(ctx context.Context, h Holding) (Holding, error) {
	now := time.Now()
	if h.PurchaseDate.IsZero() {
		h.PurchaseDate = now
	}
	if err := validate(h, now); err != nil {
		return Holding{}, err
	}

	h.ID = uuid.NewString()
	h.Value = h.Amount * h.PurchasePrice

	s.mu.Lock()
	defer s.mu.Unlock()

	s.holdings = append(s.holdings, h)
	if err := s.persistLocked(ctx); err != nil {
		return Holding{}, err
	}
	return h, nil
}

// Edit replaces the record matching the id, keeping the id but recomputing
// the recorded value. Returns ErrHoldingNotFound for an unknown id.
func (s *Store) Edit(ctx context.Context, id string, updated Holding) error {
	now := time.Now()
	if updated.PurchaseDate.IsZero() {
		updated.PurchaseDate = now
	}
	if err := validate(updated, now); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i, h := range s.holdings {
		if h.ID != id {
			continue
		}
		updated.ID = id
		updated.Value = updated.Amount * updated.PurchasePrice
		s.holdings[i] = updated
		return s.persistLocked(ctx)
	}
	return ErrHoldingNotFound
}

// Remove deletes the holding with the given id. Removing an absent id is a
// no-op: the collection is left unchanged and nothing is persisted.
func (s *Store) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, h := range s.holdings {
		if h.ID != id {
			continue
		}
		s.holdings = append(s.holdings[:i], s.holdings[i+1:]...)
		return s.persistLocked(ctx)
	}
	return nil
}

// persistLocked writes the full collection in one statement. Caller holds the
// write lock, so the persisted form always reflects a complete mutation.
func (s *Store) persistLocked(ctx context.Context) error {
	raw, err := json.Marshal(s.holdings)
	if err != nil {
		return err
	}
	if err := s.kv.Set(ctx, storageKey, string(raw)); err != nil {
		s.logger.Error("failed to persist portfolio", zap.Error(err))
		return err
	}
	return nil
}

func (s *Store) copyLocked() []Holding {
	out := make([]Holding, len(s.holdings))
	copy(out, s.holdings)
	return out
}
