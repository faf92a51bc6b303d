package stream

import (
	"encoding/json"
	"strconv"
	"time"

	"cryptofolio/internal/pricestore"
	"cryptofolio/pkg/coinbase"

	"go.uber.org/zap"
)

// MakeTickHandler returns a function that handles incoming feed frames by
// parsing ticker data and storing the latest price per instrument.
func MakeTickHandler(logger *zap.Logger, store *pricestore.Store) func(msg []byte) {
	return func(msg []byte) {
		// Extract the type field first; the feed also emits subscription
		// confirmations and heartbeats on the same connection.
		var meta struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(msg, &meta); err != nil {
			logger.Warn("failed to extract frame type", zap.Error(err))
			return
		}
		if meta.Type != "ticker" {
			return
		}

		var tick coinbase.TickerMessage
		if err := json.Unmarshal(msg, &tick); err != nil {
			logger.Warn("failed to parse ticker frame", zap.Error(err))
			return
		}
		if tick.ProductID == "" {
			return
		}

		price, err := strconv.ParseFloat(tick.Price, 64)
		if err != nil {
			logger.Warn("unparseable tick price",
				zap.String("instrument", tick.ProductID),
				zap.String("price", tick.Price),
			)
			return
		}
		if price <= 0 {
			return
		}

		store.Set(pricestore.PriceTick{
			InstrumentID: tick.ProductID,
			Price:        price,
			ReceivedAt:   time.Now(),
		})
	}
}
