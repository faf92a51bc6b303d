package dashboard

import (
	"fmt"
	"math"

	"cryptofolio/internal/portfolio"
	"cryptofolio/internal/pricestore"
	"cryptofolio/internal/valuation"
	"cryptofolio/pkg/coinbase"
	"cryptofolio/pkg/coingecko"
)

// CoinRow is one market-listing entry with the live price overlaid.
type CoinRow struct {
	coingecko.MarketRow
	LivePrice float64 // stream price when available, REST price otherwise
	Live      bool
}

// MarketListView is the assembled market page.
type MarketListView struct {
	Summary    *coingecko.MarketSummary
	Coins      []CoinRow
	Page       int
	TotalPages int
}

// BuildMarketList overlays the latest stream ticks onto the fetched listing.
// A coin without a tick falls back to its REST price, so the page renders
// fully before the feed warms up.
func BuildMarketList(rows []coingecko.MarketRow, ticks *pricestore.Store,
	summary *coingecko.MarketSummary, page, totalPages int) MarketListView {
	coins := make([]CoinRow, 0, len(rows))
	for _, row := range rows {
		coin := CoinRow{MarketRow: row, LivePrice: row.CurrentPrice}
		if tick, ok := ticks.Get(coinbase.ProductID(row.Symbol)); ok {
			coin.LivePrice = tick.Price
			coin.Live = true
		}
		coins = append(coins, coin)
	}

	return MarketListView{
		Summary:    summary,
		Coins:      coins,
		Page:       page,
		TotalPages: totalPages,
	}
}

// ChartPoint is one chart-ready sample of a coin's price history.
type ChartPoint struct {
	Label string
	Price float64
}

// CoinDetailView is the assembled per-coin page.
type CoinDetailView struct {
	Detail coingecko.CoinDetail
	Chart  []ChartPoint
}

func BuildCoinPage(detail *coingecko.CoinDetail, history []coingecko.PricePoint) CoinDetailView {
	chart := make([]ChartPoint, 0, len(history))
	for _, point := range history {
		chart = append(chart, ChartPoint{
			Label: point.Timestamp.Format("1/2/2006"),
			Price: point.Price,
		})
	}
	return CoinDetailView{Detail: *detail, Chart: chart}
}

// PortfolioRow is one holding with its live valuation. HasPrice is false
// until a current price is known; the row then shows the recorded purchase
// value and no profit/loss rather than a fabricated zero.
type PortfolioRow struct {
	portfolio.Holding
	CurrentPrice  float64
	HasPrice      bool
	CurrentValue  float64
	ProfitLoss    valuation.ProfitLoss
	HasProfitLoss bool
}

// PortfolioView is the assembled portfolio table.
type PortfolioView struct {
	Rows    []PortfolioRow
	Metrics valuation.Metrics
}

func BuildPortfolioTable(holdings []portfolio.Holding, quotes map[string]valuation.Quote) PortfolioView {
	rows := make([]PortfolioRow, 0, len(holdings))
	for _, h := range holdings {
		row := PortfolioRow{Holding: h, CurrentValue: h.Value}
		if q, ok := quotes[h.CoinID]; ok {
			row.CurrentPrice = q.Price
			row.HasPrice = true
			row.CurrentValue = h.Amount * q.Price
		}
		if pl, ok := valuation.HoldingProfitLoss(h, quotes); ok {
			row.ProfitLoss = pl
			row.HasProfitLoss = true
		}
		rows = append(rows, row)
	}

	return PortfolioView{
		Rows:    rows,
		Metrics: valuation.Recompute(holdings, quotes),
	}
}

// MergeQuotes combines the REST price snapshot (price + 24h change) with the
// live tick overlay (price only). Stream prices win on price; the 24h change
// always comes from the REST side since ticks carry none.
func MergeQuotes(holdings []portfolio.Holding, rest map[string]coingecko.SimplePrice,
	ticks *pricestore.Store) map[string]valuation.Quote {
	quotes := make(map[string]valuation.Quote)
	for _, h := range holdings {
		var quote valuation.Quote
		known := false

		if p, ok := rest[h.CoinID]; ok {
			quote = valuation.Quote{Price: p.USD, Change24h: p.USD24hChange, HasChange24h: true}
			known = true
		}
		if tick, ok := ticks.Get(coinbase.ProductID(h.Symbol)); ok {
			quote.Price = tick.Price
			known = true
		}

		if known {
			quotes[h.CoinID] = quote
		}
	}
	return quotes
}

// CoinAmountForUSD converts a USD figure into a coin amount at the given
// price. Returns 0 for a non-positive price.
func CoinAmountForUSD(usd, price float64) float64 {
	if price <= 0 {
		return 0
	}
	return usd / price
}

// USDForCoinAmount converts a coin amount into its USD worth.
func USDForCoinAmount(amount, price float64) float64 {
	return amount * price
}

// FormatUSD renders a dollar figure with two decimals.
func FormatUSD(v float64) string {
	return fmt.Sprintf("$%.2f", v)
}

// FormatCryptoAmount renders a coin amount with up to eight decimals,
// trailing zeros trimmed.
func FormatCryptoAmount(v float64) string {
	s := fmt.Sprintf("%.8f", v)
	for len(s) > 0 && s[len(s)-1] == '0' {
		s = s[:len(s)-1]
	}
	if len(s) > 0 && s[len(s)-1] == '.' {
		s = s[:len(s)-1]
	}
	return s
}

// FormatCompact renders large figures in T/B/M/K notation, as the market
// summary header does.
func FormatCompact(v float64) string {
	abs := math.Abs(v)
	switch {
	case abs >= 1e12:
		return fmt.Sprintf("%.1fT", v/1e12)
	case abs >= 1e9:
		return fmt.Sprintf("%.1fB", v/1e9)
	case abs >= 1e6:
		return fmt.Sprintf("%.1fM", v/1e6)
	case abs >= 1e3:
		return fmt.Sprintf("%.1fK", v/1e3)
	default:
		return fmt.Sprintf("%g", v)
	}
}
