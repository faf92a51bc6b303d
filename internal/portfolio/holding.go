package portfolio

import (
	"errors"
	"fmt"
	"time"
)

// Holding is one recorded purchase of a cryptocurrency. Value is fixed at
// creation time (amount × purchase price); the current worth of a holding is
// always derived live from the latest known price, never written back here.
type Holding struct {
	ID            string    `json:"holdingId"`
	CoinID        string    `json:"coinId"`
	Name          string    `json:"name"`
	Symbol        string    `json:"symbol"`
	Image         string    `json:"image"`
	Amount        float64   `json:"amount"`
	PurchasePrice float64   `json:"purchasePrice"`
	PurchaseDate  time.Time `json:"purchaseDate"`
	Value         float64   `json:"value"`
}

// ErrHoldingNotFound is returned by Edit for an unknown holding id. Remove is
// deliberately more lenient: deleting something already gone is convergent.
var ErrHoldingNotFound = errors.New("holding not found")

// ValidationError rejects invalid user input before it reaches the
// persisted collection.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func validate(h Holding, now time.Time) error {
	if h.CoinID == "" {
		return &ValidationError{Field: "coinId", Reason: "must not be empty"}
	}
	if h.Amount <= 0 {
		return &ValidationError{Field: "amount", Reason: "must be positive"}
	}
	if h.PurchasePrice <= 0 {
		return &ValidationError{Field: "purchasePrice", Reason: "must be positive"}
	}
	if h.PurchaseDate.After(now) {
		return &ValidationError{Field: "purchaseDate", Reason: "must not be in the future"}
	}
	return nil
}
