package coingecko

import "time"

// MarketRow is one entry of the paginated /coins/markets listing.
type MarketRow struct {
	ID                       string  `json:"id"`
	Symbol                   string  `json:"symbol"`
	Name                     string  `json:"name"`
	Image                    string  `json:"image"`
	CurrentPrice             float64 `json:"current_price"`
	MarketCap                float64 `json:"market_cap"`
	MarketCapRank            int     `json:"market_cap_rank"`
	TotalVolume              float64 `json:"total_volume"`
	High24h                  float64 `json:"high_24h"`
	Low24h                   float64 `json:"low_24h"`
	PriceChange24h           float64 `json:"price_change_24h"`
	PriceChangePercentage24h float64 `json:"price_change_percentage_24h"`
}

// CoinDetail is the per-coin payload of /coins/{id}. Monetary fields are
// keyed by vs-currency; this client only ever asks for usd.
type CoinDetail struct {
	ID            string `json:"id"`
	Symbol        string `json:"symbol"`
	Name          string `json:"name"`
	MarketCapRank int    `json:"market_cap_rank"`
	Image         struct {
		Thumb string `json:"thumb"`
		Small string `json:"small"`
		Large string `json:"large"`
	} `json:"image"`
	MarketData struct {
		CurrentPrice      map[string]float64 `json:"current_price"`
		High24h           map[string]float64 `json:"high_24h"`
		Low24h            map[string]float64 `json:"low_24h"`
		TotalVolume       map[string]float64 `json:"total_volume"`
		MarketCap         map[string]float64 `json:"market_cap"`
		CirculatingSupply float64            `json:"circulating_supply"`
		TotalSupply       *float64           `json:"total_supply"`
		MaxSupply         *float64           `json:"max_supply"`
	} `json:"market_data"`
}

// MarketSummary is the flattened /global snapshot.
type MarketSummary struct {
	TotalMarketCapUSD   float64 `json:"totalMarketCapUsd"`
	TotalVolumeUSD      float64 `json:"totalVolumeUsd"`
	BTCDominancePercent float64 `json:"btcDominancePercent"`
}

// globalResponse is the /global wire envelope.
type globalResponse struct {
	Data struct {
		TotalMarketCap      map[string]float64 `json:"total_market_cap"`
		TotalVolume         map[string]float64 `json:"total_volume"`
		MarketCapPercentage map[string]float64 `json:"market_cap_percentage"`
	} `json:"data"`
}

// PricePoint is one daily sample of a coin's price history.
type PricePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
}

// marketChartResponse is the /coins/{id}/market_chart wire format:
// prices as [millis, price] pairs.
type marketChartResponse struct {
	Prices [][2]float64 `json:"prices"`
}

// SimplePrice is the per-coin payload of /simple/price with 24h change.
type SimplePrice struct {
	USD          float64 `json:"usd"`
	USD24hChange float64 `json:"usd_24h_change"`
}

// SearchCoin is one /search result.
type SearchCoin struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Symbol        string `json:"symbol"`
	Thumb         string `json:"thumb"`
	MarketCapRank int    `json:"market_cap_rank"`
}

type searchResponse struct {
	Coins []SearchCoin `json:"coins"`
}

// Exchange is one /exchanges listing entry.
type Exchange struct {
	ID                string  `json:"id"`
	Name              string  `json:"name"`
	Image             string  `json:"image"`
	Country           string  `json:"country"`
	URL               string  `json:"url"`
	TradeVolume24hBTC float64 `json:"trade_volume_24h_btc"`
}
