package market

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cryptofolio/internal/cache"
	"cryptofolio/pkg/coingecko"

	"go.uber.org/zap"
)

const maxSearchResults = 5

// Service fronts the CoinGecko client with the time-boxed cache. Every fetch
// first consults the cache under a key derived from the call's parameters; a
// hit skips the network round trip entirely, which doubles as the dedup gate
// for refreshes racing user-triggered fetches on the same key.
type Service struct {
	client      *coingecko.Client
	marketCache *cache.Store // listing/detail/summary entries
	priceCache  *cache.Store // short-lived portfolio price entries
	stagger     time.Duration
	logger      *zap.Logger
}

func NewService(client *coingecko.Client, marketCache, priceCache *cache.Store,
	stagger time.Duration, logger *zap.Logger) *Service {
	return &Service{
		client:      client,
		marketCache: marketCache,
		priceCache:  priceCache,
		stagger:     stagger,
		logger:      logger,
	}
}

// MarketsPage returns one page of the market listing, cached per page number.
func (s *Service) MarketsPage(ctx context.Context, page, perPage int) ([]coingecko.MarketRow, error) {
	key := fmt.Sprintf("cryptos_page_%d", page)

	var rows []coingecko.MarketRow
	if cache.Get(ctx, s.marketCache, key, &rows) {
		return rows, nil
	}

	rows, err := s.client.MarketsPage(ctx, page, perPage)
	if err != nil {
		return nil, err
	}
	cache.Set(ctx, s.marketCache, key, rows)
	return rows, nil
}

// GlobalSummary returns the market-wide snapshot, cached under a single key.
func (s *Service) GlobalSummary(ctx context.Context) (*coingecko.MarketSummary, error) {
	var summary coingecko.MarketSummary
	if cache.Get(ctx, s.marketCache, "marketSummary", &summary) {
		return &summary, nil
	}

	fresh, err := s.client.GlobalSummary(ctx)
	if err != nil {
		return nil, err
	}
	cache.Set(ctx, s.marketCache, "marketSummary", *fresh)
	return fresh, nil
}

// CoinOverview fetches a coin's detail and price history together. The two
// remote calls are deliberately staggered with a fixed delay to stay under
// the API's rate limit; a full cache hit skips both calls and the delay.
func (s *Service) CoinOverview(ctx context.Context, coinID string, days int) (*coingecko.CoinDetail, []coingecko.PricePoint, error) {
	detailKey := "crypto_" + coinID
	historyKey := "history_" + coinID

	var detail coingecko.CoinDetail
	var history []coingecko.PricePoint
	haveDetail := cache.Get(ctx, s.marketCache, detailKey, &detail)
	haveHistory := cache.Get(ctx, s.marketCache, historyKey, &history)

	if haveDetail && haveHistory {
		return &detail, history, nil
	}

	fetchedDetail := false
	if !haveDetail {
		fresh, err := s.client.CoinDetail(ctx, coinID)
		if err != nil {
			return nil, nil, err
		}
		detail = *fresh
		cache.Set(ctx, s.marketCache, detailKey, detail)
		fetchedDetail = true
	}

	if !haveHistory {
		if fetchedDetail {
			if err := s.pause(ctx); err != nil {
				return nil, nil, err
			}
		}
		fresh, err := s.client.PriceHistory(ctx, coinID, days)
		if err != nil {
			return nil, nil, err
		}
		history = fresh
		cache.Set(ctx, s.marketCache, historyKey, history)
	}

	return &detail, history, nil
}

// CurrentPrices returns the current USD price and 24h change for the given
// coins, cached on the 1-minute price TTL under a key derived from the id
// set. Callers pass ids pre-sorted (portfolio.CoinIDs) so equal sets share
// one cache entry.
func (s *Service) CurrentPrices(ctx context.Context, coinIDs []string) (map[string]coingecko.SimplePrice, error) {
	if len(coinIDs) == 0 {
		return map[string]coingecko.SimplePrice{}, nil
	}
	key := "portfolioPrices_" + strings.Join(coinIDs, ",")

	prices := make(map[string]coingecko.SimplePrice)
	if cache.Get(ctx, s.priceCache, key, &prices) {
		return prices, nil
	}

	prices, err := s.client.SimplePrices(ctx, coinIDs)
	if err != nil {
		return nil, err
	}
	cache.Set(ctx, s.priceCache, key, prices)
	return prices, nil
}

// Search runs a coin text search and returns the top matches. Never cached:
// queries are interactive and rarely repeat.
func (s *Service) Search(ctx context.Context, query string) ([]coingecko.SearchCoin, error) {
	coins, err := s.client.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(coins) > maxSearchResults {
		coins = coins[:maxSearchResults]
	}
	return coins, nil
}

// Exchanges returns the exchange listing, cached on the market TTL.
func (s *Service) Exchanges(ctx context.Context) ([]coingecko.Exchange, error) {
	var exchanges []coingecko.Exchange
	if cache.Get(ctx, s.marketCache, "exchanges", &exchanges) {
		return exchanges, nil
	}

	exchanges, err := s.client.Exchanges(ctx)
	if err != nil {
		return nil, err
	}
	cache.Set(ctx, s.marketCache, "exchanges", exchanges)
	return exchanges, nil
}

func (s *Service) pause(ctx context.Context) error {
	if s.stagger <= 0 {
		return nil
	}
	select {
	case <-time.After(s.stagger):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
