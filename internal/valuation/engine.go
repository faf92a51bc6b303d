package valuation

import (
	"math"

	"cryptofolio/internal/portfolio"
)

// Quote is the latest known market state for a coin. Presence of a Quote in
// the prices map means the price is known; the 24h change is tracked
// separately since live ticks carry a price but no change figure.
type Quote struct {
	Price        float64
	Change24h    float64
	HasChange24h bool
}

// ProfitLoss is a derived gain/loss figure, absolute and relative.
type ProfitLoss struct {
	AmountUSD  float64
	Percentage float64
}

// Performance compares aggregate purchase cost against aggregate current
// value across the whole portfolio.
type Performance struct {
	PurchaseValue float64
	CurrentValue  float64
	ProfitLoss
}

// Metrics is the full derived view of a portfolio against a price map.
// Transient: recomputed whenever holdings or prices change, never persisted.
type Metrics struct {
	TotalValue       float64
	Change24hPercent float64
	AllTime          Performance
	AllTimeKnown     bool
}

// Recompute derives all portfolio metrics. Pure: it reads holdings and
// quotes and mutates neither. Full float64 precision is retained throughout;
// rounding for display is the caller's concern.
func Recompute(holdings []portfolio.Holding, quotes map[string]Quote) Metrics {
	allTime, known := AllTime(holdings, quotes)
	return Metrics{
		TotalValue:       TotalValue(holdings, quotes),
		Change24hPercent: Change24hPercent(holdings, quotes),
		AllTime:          allTime,
		AllTimeKnown:     known,
	}
}

// TotalValue sums the live worth of every holding. A holding without a known
// current price contributes its value recorded at purchase time, so the total
// stays stable until the first price arrives rather than jumping from a
// partial sum.
func TotalValue(holdings []portfolio.Holding, quotes map[string]Quote) float64 {
	var total float64
	for _, h := range holdings {
		if q, ok := quotes[h.CoinID]; ok {
			total += h.Amount * q.Price
		} else {
			total += h.Value
		}
	}
	return total
}

// HoldingProfitLoss derives the gain/loss of a single holding against its
// purchase cost. The second return is false when no current price is known;
// an unknown position is unavailable, not break-even.
func HoldingProfitLoss(h portfolio.Holding, quotes map[string]Quote) (ProfitLoss, bool) {
	q, ok := quotes[h.CoinID]
	if !ok {
		return ProfitLoss{}, false
	}

	cost := h.Amount * h.PurchasePrice
	if cost == 0 {
		return ProfitLoss{}, false
	}

	amountUSD := h.Amount*q.Price - cost
	return ProfitLoss{
		AmountUSD:  amountUSD,
		Percentage: amountUSD / cost * 100,
	}, true
}

// Change24hPercent derives the portfolio-wide 24h move. For each holding with
// both a current price and a 24h change, yesterday's implied price is
// price / (1 + change/100); holdings missing either figure are excluded from
// both sides of the comparison. Returns 0 when no holding qualifies.
func Change24hPercent(holdings []portfolio.Holding, quotes map[string]Quote) float64 {
	var valueNow, valueYesterday float64
	for _, h := range holdings {
		q, ok := quotes[h.CoinID]
		if !ok || !q.HasChange24h {
			continue
		}

		yesterdayPrice := q.Price / (1 + q.Change24h/100)
		if !isFinite(yesterdayPrice) {
			continue
		}

		valueNow += h.Amount * q.Price
		valueYesterday += h.Amount * yesterdayPrice
	}

	if valueYesterday == 0 {
		return 0
	}
	return (valueNow - valueYesterday) / valueYesterday * 100
}

// AllTime compares what the portfolio cost against what it is worth now,
// falling back to the purchase price for coins without a current quote. The
// second return is false when the aggregate purchase value is zero or either
// total is not a finite number.
func AllTime(holdings []portfolio.Holding, quotes map[string]Quote) (Performance, bool) {
	var purchase, current float64
	for _, h := range holdings {
		purchase += h.Amount * h.PurchasePrice
		if q, ok := quotes[h.CoinID]; ok {
			current += h.Amount * q.Price
		} else {
			current += h.Amount * h.PurchasePrice
		}
	}

	if purchase == 0 || !isFinite(purchase) || !isFinite(current) {
		return Performance{}, false
	}

	diff := current - purchase
	return Performance{
		PurchaseValue: purchase,
		CurrentValue:  current,
		ProfitLoss: ProfitLoss{
			AmountUSD:  diff,
			Percentage: diff / purchase * 100,
		},
	}, true
}

func isFinite(f float64) bool {
	return !math.IsInf(f, 0) && !math.IsNaN(f)
}
