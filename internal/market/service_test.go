package market

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"cryptofolio/config"
	"cryptofolio/internal/cache"
	"cryptofolio/pkg/coingecko"
	"cryptofolio/pkg/storage/kv"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	service *Service
	calls   map[string]*atomic.Int32
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	calls := map[string]*atomic.Int32{}
	counter := func(path string) *atomic.Int32 {
		if calls[path] == nil {
			calls[path] = &atomic.Int32{}
		}
		return calls[path]
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/coins/markets", func(w http.ResponseWriter, r *http.Request) {
		counter("/coins/markets").Add(1)
		w.Write([]byte(`[{"id":"bitcoin","symbol":"btc","name":"Bitcoin","current_price":22000}]`))
	})
	mux.HandleFunc("/global", func(w http.ResponseWriter, r *http.Request) {
		counter("/global").Add(1)
		w.Write([]byte(`{"data":{"total_market_cap":{"usd":2.1e12},"total_volume":{"usd":9.5e10},"market_cap_percentage":{"btc":52.3}}}`))
	})
	mux.HandleFunc("/coins/bitcoin", func(w http.ResponseWriter, r *http.Request) {
		counter("/coins/bitcoin").Add(1)
		w.Write([]byte(`{"id":"bitcoin","symbol":"btc","name":"Bitcoin","market_cap_rank":1,
			"market_data":{"current_price":{"usd":22000}}}`))
	})
	mux.HandleFunc("/coins/bitcoin/market_chart", func(w http.ResponseWriter, r *http.Request) {
		counter("/coins/bitcoin/market_chart").Add(1)
		w.Write([]byte(`{"prices":[[1700000000000,36500.1]]}`))
	})
	mux.HandleFunc("/simple/price", func(w http.ResponseWriter, r *http.Request) {
		counter("/simple/price").Add(1)
		w.Write([]byte(`{"bitcoin":{"usd":22000,"usd_24h_change":5}}`))
	})
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		counter("/search").Add(1)
		w.Write([]byte(`{"coins":[
			{"id":"bitcoin","name":"Bitcoin","symbol":"btc"},
			{"id":"bitcoin-cash","name":"Bitcoin Cash","symbol":"bch"},
			{"id":"wrapped-bitcoin","name":"Wrapped Bitcoin","symbol":"wbtc"},
			{"id":"bitcoin-gold","name":"Bitcoin Gold","symbol":"btg"},
			{"id":"bitcoin-sv","name":"Bitcoin SV","symbol":"bsv"},
			{"id":"bitcoin-diamond","name":"Bitcoin Diamond","symbol":"bcd"}
		]}`))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	backing, err := kv.Open(config.StorageConfig{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "market_test.db"),
	}, "dev")
	require.NoError(t, err)
	t.Cleanup(func() { _ = backing.Close() })

	client := coingecko.NewClient(srv.URL, 5*time.Second,
		coingecko.RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}, zap.NewNop())
	marketCache := cache.New(backing, 5*time.Minute, "1.0", zap.NewNop())
	priceCache := cache.New(backing, time.Minute, "1.0", zap.NewNop())

	return &fixture{
		service: NewService(client, marketCache, priceCache, 0, zap.NewNop()),
		calls:   calls,
	}
}

func TestMarketsPageCachedPerPage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rows, err := f.service.MarketsPage(ctx, 1, 32)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "bitcoin", rows[0].ID)

	// Second call within TTL is served from cache, no round trip.
	_, err = f.service.MarketsPage(ctx, 1, 32)
	require.NoError(t, err)
	assert.Equal(t, int32(1), f.calls["/coins/markets"].Load())
}

func TestGlobalSummaryCached(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.service.GlobalSummary(ctx)
	require.NoError(t, err)
	second, err := f.service.GlobalSummary(ctx)
	require.NoError(t, err)

	assert.Equal(t, first.TotalMarketCapUSD, second.TotalMarketCapUSD)
	assert.Equal(t, int32(1), f.calls["/global"].Load())
}

func TestCoinOverviewFetchesBothThenCaches(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	detail, history, err := f.service.CoinOverview(ctx, "bitcoin", 7)
	require.NoError(t, err)
	assert.Equal(t, "bitcoin", detail.ID)
	require.Len(t, history, 1)
	assert.Equal(t, 36500.1, history[0].Price)

	_, _, err = f.service.CoinOverview(ctx, "bitcoin", 7)
	require.NoError(t, err)

	assert.Equal(t, int32(1), f.calls["/coins/bitcoin"].Load())
	assert.Equal(t, int32(1), f.calls["/coins/bitcoin/market_chart"].Load())
}

func TestCurrentPricesCachedByIDSet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	prices, err := f.service.CurrentPrices(ctx, []string{"bitcoin"})
	require.NoError(t, err)
	assert.Equal(t, 22000.0, prices["bitcoin"].USD)
	assert.Equal(t, 5.0, prices["bitcoin"].USD24hChange)

	// Same id set hits the cache; the gate dedups refresh vs. user fetch.
	_, err = f.service.CurrentPrices(ctx, []string{"bitcoin"})
	require.NoError(t, err)
	assert.Equal(t, int32(1), f.calls["/simple/price"].Load())
}

func TestCurrentPricesEmptySetSkipsNetwork(t *testing.T) {
	f := newFixture(t)

	prices, err := f.service.CurrentPrices(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, prices)
	assert.Nil(t, f.calls["/simple/price"])
}

func TestSearchTrimsToTopResults(t *testing.T) {
	f := newFixture(t)

	coins, err := f.service.Search(context.Background(), "bitcoin")
	require.NoError(t, err)
	assert.Len(t, coins, 5)
	assert.Equal(t, "bitcoin", coins[0].ID)
}
