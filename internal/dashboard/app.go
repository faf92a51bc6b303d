package dashboard

import (
	"context"
	"fmt"
	"sync"

	"cryptofolio/config"
	"cryptofolio/internal/cache"
	"cryptofolio/internal/market"
	"cryptofolio/internal/portfolio"
	"cryptofolio/internal/pricestore"
	"cryptofolio/internal/settings"
	"cryptofolio/internal/stream"
	"cryptofolio/internal/valuation"
	"cryptofolio/pkg/coinbase"
	"cryptofolio/pkg/coingecko"
	"cryptofolio/pkg/storage/kv"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// App wires the market data pipeline: REST client behind the TTL cache,
// websocket feed into the tick store, portfolio and settings over durable
// storage, and the refresh schedule on top.
type App struct {
	cfg    *config.Config
	logger *zap.Logger

	store     *kv.Store
	market    *market.Service
	portfolio *portfolio.Store
	settings  *settings.Store
	ticks     *pricestore.Store
	feed      *coinbase.Client
	cron      *cron.Cron

	mu         sync.Mutex
	page       int
	pageGen    uint64
	rows       []coingecko.MarketRow
	summary    *coingecko.MarketSummary
	lastPrices map[string]coingecko.SimplePrice
	metrics    valuation.Metrics
}

// New builds the app from configuration. Nothing is fetched yet; Start
// performs the initial load.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	store, err := kv.Open(cfg.Storage, cfg.Log.Environment)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	client := coingecko.NewClient(cfg.CoinGecko.BaseURL, cfg.CoinGecko.Timeout,
		coingecko.RetryPolicy{
			MaxAttempts: cfg.CoinGecko.MaxAttempts,
			BaseDelay:   cfg.CoinGecko.RetryBase,
		}, logger)

	marketCache := cache.New(store, cfg.Cache.MarketTTL, cfg.Cache.Version, logger)
	priceCache := cache.New(store, cfg.Cache.PriceTTL, cfg.Cache.Version, logger)

	app := &App{
		cfg:        cfg,
		logger:     logger,
		store:      store,
		market:     market.NewService(client, marketCache, priceCache, cfg.CoinGecko.StaggerDelay, logger),
		portfolio:  portfolio.NewStore(store, logger),
		settings:   settings.NewStore(store, logger),
		ticks:      pricestore.New(),
		feed:       coinbase.NewClient(cfg.Coinbase.URL, cfg.Coinbase.ReconnectDelay, logger),
		page:       1,
		lastPrices: map[string]coingecko.SimplePrice{},
	}
	app.feed.SetMessageHandler(stream.MakeTickHandler(logger, app.ticks))
	return app, nil
}

// Start loads durable state, performs the initial fetches, connects the
// price feed, and arms the periodic refresh jobs.
func (a *App) Start(ctx context.Context) error {
	a.portfolio.Load(ctx)
	a.settings.Init(ctx)

	if err := a.loadPage(ctx, 1); err != nil {
		return err
	}
	a.refreshPrices(ctx)

	if err := a.feed.Connect(a.instrumentSet()); err != nil {
		// Connect schedules its own retry; the dashboard still renders
		// from REST prices in the meantime.
		a.logger.Warn("initial feed connect failed", zap.Error(err))
	}

	a.cron = cron.New()
	if _, err := a.cron.AddFunc(fmt.Sprintf("@every %s", a.cfg.Refresh.Prices), func() {
		a.refreshPrices(context.Background())
	}); err != nil {
		return fmt.Errorf("failed to schedule price refresh: %w", err)
	}
	if _, err := a.cron.AddFunc(fmt.Sprintf("@every %s", a.cfg.Refresh.Markets), func() {
		a.refreshMarkets(context.Background())
	}); err != nil {
		return fmt.Errorf("failed to schedule market refresh: %w", err)
	}
	a.cron.Start()

	return nil
}

// Stop tears the app down in reverse order of Start.
func (a *App) Stop() {
	if a.cron != nil {
		a.cron.Stop()
	}
	a.feed.Disconnect()
	if err := a.store.Close(); err != nil {
		a.logger.Warn("failed to close storage", zap.Error(err))
	}
}

// TotalPages reports how many market pages the listing spans.
func (a *App) TotalPages() int {
	if a.cfg.Market.PageSize <= 0 {
		return 1
	}
	pages := a.cfg.Market.TotalItems / a.cfg.Market.PageSize
	if pages < 1 {
		pages = 1
	}
	return pages
}

// SetPage switches the market listing to the given page, refetching
// (cache-gated) and retargeting the feed subscription. A result arriving
// after another SetPage call superseded it is dropped.
func (a *App) SetPage(ctx context.Context, page int) error {
	if page < 1 || page > a.TotalPages() {
		return fmt.Errorf("page %d out of range 1..%d", page, a.TotalPages())
	}
	if err := a.loadPage(ctx, page); err != nil {
		return err
	}
	return a.resubscribe()
}

func (a *App) loadPage(ctx context.Context, page int) error {
	a.mu.Lock()
	a.pageGen++
	gen := a.pageGen
	a.mu.Unlock()

	rows, err := a.market.MarketsPage(ctx, page, a.cfg.Market.PageSize)
	if err != nil {
		return err
	}
	summary, err := a.market.GlobalSummary(ctx)
	if err != nil {
		a.logger.Warn("failed to fetch market summary", zap.Error(err))
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if gen != a.pageGen {
		// A newer page request won the race.
		return nil
	}
	a.page = page
	a.rows = rows
	if summary != nil {
		a.summary = summary
	}
	return nil
}

// MarketList assembles the current market page with live prices overlaid.
func (a *App) MarketList() MarketListView {
	a.mu.Lock()
	rows, summary, page := a.rows, a.summary, a.page
	a.mu.Unlock()
	return BuildMarketList(rows, a.ticks, summary, page, a.TotalPages())
}

// CoinPage fetches (cache-gated) and assembles the detail page for one coin.
func (a *App) CoinPage(ctx context.Context, coinID string) (CoinDetailView, error) {
	detail, history, err := a.market.CoinOverview(ctx, coinID, a.cfg.Market.ChartDays)
	if err != nil {
		return CoinDetailView{}, err
	}
	return BuildCoinPage(detail, history), nil
}

// Search returns up to five matching coins.
func (a *App) Search(ctx context.Context, query string) ([]coingecko.SearchCoin, error) {
	return a.market.Search(ctx, query)
}

// Exchanges returns the exchange listing.
func (a *App) Exchanges(ctx context.Context) ([]coingecko.Exchange, error) {
	return a.market.Exchanges(ctx)
}

// Portfolio assembles the holdings table with current quotes and totals.
func (a *App) Portfolio() PortfolioView {
	holdings := a.portfolio.Holdings()
	return BuildPortfolioTable(holdings, a.quotes(holdings))
}

// AddHolding records a purchase, then refreshes prices and the feed
// subscription to cover the new coin.
func (a *App) AddHolding(ctx context.Context, h portfolio.Holding) (portfolio.Holding, error) {
	stored, err := a.portfolio.Add(ctx, h)
	if err != nil {
		return portfolio.Holding{}, err
	}
	a.afterPortfolioChange(ctx)
	return stored, nil
}

// EditHolding replaces the holding with the given id.
func (a *App) EditHolding(ctx context.Context, id string, updated portfolio.Holding) error {
	if err := a.portfolio.Edit(ctx, id, updated); err != nil {
		return err
	}
	a.afterPortfolioChange(ctx)
	return nil
}

// RemoveHolding deletes the holding with the given id, if present.
func (a *App) RemoveHolding(ctx context.Context, id string) error {
	if err := a.portfolio.Remove(ctx, id); err != nil {
		return err
	}
	a.afterPortfolioChange(ctx)
	return nil
}

// DarkMode reports the persisted theme preference.
func (a *App) DarkMode() bool { return a.settings.DarkMode() }

// SetDarkMode flips and persists the theme preference.
func (a *App) SetDarkMode(ctx context.Context, enabled bool) {
	a.settings.SetDarkMode(ctx, enabled)
}

// Metrics returns the most recently computed portfolio totals.
func (a *App) Metrics() valuation.Metrics {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.metrics
}

func (a *App) afterPortfolioChange(ctx context.Context) {
	a.refreshPrices(ctx)
	if err := a.resubscribe(); err != nil {
		a.logger.Warn("failed to resubscribe feed", zap.Error(err))
	}
}

// refreshPrices pulls current prices for the held coins and recomputes the
// portfolio totals. Failures keep the previous snapshot.
func (a *App) refreshPrices(ctx context.Context) {
	holdings := a.portfolio.Holdings()

	prices, err := a.market.CurrentPrices(ctx, a.portfolio.CoinIDs())
	if err != nil {
		a.logger.Warn("failed to refresh prices", zap.Error(err))
	} else {
		a.mu.Lock()
		a.lastPrices = prices
		a.mu.Unlock()
	}

	metrics := valuation.Recompute(holdings, a.quotes(holdings))
	a.mu.Lock()
	a.metrics = metrics
	a.mu.Unlock()
}

// refreshMarkets re-fetches the summary and the current page on the slow
// schedule. The cache TTL gates the actual network calls.
func (a *App) refreshMarkets(ctx context.Context) {
	a.mu.Lock()
	page := a.page
	a.mu.Unlock()
	if err := a.loadPage(ctx, page); err != nil {
		a.logger.Warn("failed to refresh markets", zap.Error(err))
	}
}

func (a *App) quotes(holdings []portfolio.Holding) map[string]valuation.Quote {
	a.mu.Lock()
	rest := a.lastPrices
	a.mu.Unlock()
	return MergeQuotes(holdings, rest, a.ticks)
}

// instrumentSet is the union of the current page's products and every
// held coin's product, deduplicated.
func (a *App) instrumentSet() []string {
	a.mu.Lock()
	rows := a.rows
	a.mu.Unlock()

	seen := make(map[string]struct{})
	var ids []string
	add := func(symbol string) {
		id := coinbase.ProductID(symbol)
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	for _, row := range rows {
		add(row.Symbol)
	}
	for _, h := range a.portfolio.Holdings() {
		add(h.Symbol)
	}
	return ids
}

func (a *App) resubscribe() error {
	return a.feed.Resubscribe(a.instrumentSet())
}
