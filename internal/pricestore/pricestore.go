package pricestore

import (
	"sync"
	"time"
)

// PriceTick is a single live price update. Ephemeral: ticks live only in
// memory and the latest one per instrument wins.
type PriceTick struct {
	InstrumentID string    `json:"instrumentId"`
	Price        float64   `json:"price"`
	ReceivedAt   time.Time `json:"receivedAt"`
}

// Store holds the latest tick per instrument.
type Store struct {
	mu    sync.RWMutex
	ticks map[string]PriceTick
}

func New() *Store {
	return &Store{
		ticks: make(map[string]PriceTick),
	}
}

// Set records a tick, replacing any prior tick for the instrument.
func (s *Store) Set(tick PriceTick) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ticks[tick.InstrumentID] = tick
}

// Get returns the latest tick for an instrument.
func (s *Store) Get(instrumentID string) (PriceTick, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tick, ok := s.ticks[instrumentID]
	return tick, ok
}

// Snapshot returns a copy of the latest price per instrument.
func (s *Store) Snapshot() map[string]float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]float64, len(s.ticks))
	for id, tick := range s.ticks {
		out[id] = tick.Price
	}
	return out
}

// Count returns the number of instruments with at least one tick.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ticks)
}

// Reset drops all ticks, e.g. after resubscribing to a different
// instrument set.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ticks = make(map[string]PriceTick)
}
