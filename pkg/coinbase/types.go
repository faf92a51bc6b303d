package coinbase

import "strings"

// subscribeMessage is the single frame sent after a connection opens, listing
// every instrument of interest. The feed has no incremental subscribe;
// changing the set means reconnecting.
type subscribeMessage struct {
	Type     string    `json:"type"`
	Channels []channel `json:"channels"`
}

type channel struct {
	Name       string   `json:"name"`
	ProductIDs []string `json:"product_ids"`
}

// TickerMessage is one tick frame from the feed. Price arrives as a decimal
// string.
type TickerMessage struct {
	Type      string `json:"type"`
	ProductID string `json:"product_id"`
	Price     string `json:"price"`
}

// ProductID maps a coin symbol to the feed's USD instrument identifier,
// e.g. "btc" -> "BTC-USD".
func ProductID(symbol string) string {
	return strings.ToUpper(symbol) + "-USD"
}
