package coingecko

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Client is a retrying REST client for the CoinGecko v3 API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	retry      RetryPolicy
	logger     *zap.Logger
}

func NewClient(baseURL string, timeout time.Duration, retry RetryPolicy, logger *zap.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		retry:      retry,
		logger:     logger,
	}
}

func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// MarketsPage fetches one page of the market listing ordered by market cap.
func (c *Client) MarketsPage(ctx context.Context, page, perPage int) ([]MarketRow, error) {
	q := url.Values{}
	q.Set("vs_currency", "usd")
	q.Set("order", "market_cap_desc")
	q.Set("per_page", strconv.Itoa(perPage))
	q.Set("page", strconv.Itoa(page))
	q.Set("sparkline", "false")

	var rows []MarketRow
	if err := c.getJSON(ctx, "/coins/markets", q, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// CoinDetail fetches the market data block for a single coin.
func (c *Client) CoinDetail(ctx context.Context, coinID string) (*CoinDetail, error) {
	q := url.Values{}
	q.Set("localization", "false")
	q.Set("tickers", "false")
	q.Set("market_data", "true")
	q.Set("community_data", "false")
	q.Set("developer_data", "false")

	var detail CoinDetail
	if err := c.getJSON(ctx, "/coins/"+url.PathEscape(coinID), q, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// PriceHistory fetches daily closing prices for the last days days.
func (c *Client) PriceHistory(ctx context.Context, coinID string, days int) ([]PricePoint, error) {
	q := url.Values{}
	q.Set("vs_currency", "usd")
	q.Set("days", strconv.Itoa(days))
	q.Set("interval", "daily")

	var chart marketChartResponse
	if err := c.getJSON(ctx, "/coins/"+url.PathEscape(coinID)+"/market_chart", q, &chart); err != nil {
		return nil, err
	}

	points := make([]PricePoint, 0, len(chart.Prices))
	for _, pair := range chart.Prices {
		points = append(points, PricePoint{
			Timestamp: time.UnixMilli(int64(pair[0])),
			Price:     pair[1],
		})
	}
	return points, nil
}

// GlobalSummary fetches the market-wide snapshot.
func (c *Client) GlobalSummary(ctx context.Context) (*MarketSummary, error) {
	var raw globalResponse
	if err := c.getJSON(ctx, "/global", nil, &raw); err != nil {
		return nil, err
	}

	return &MarketSummary{
		TotalMarketCapUSD:   raw.Data.TotalMarketCap["usd"],
		TotalVolumeUSD:      raw.Data.TotalVolume["usd"],
		BTCDominancePercent: raw.Data.MarketCapPercentage["btc"],
	}, nil
}

// SimplePrices fetches current USD price and 24h change for the given coin ids.
func (c *Client) SimplePrices(ctx context.Context, coinIDs []string) (map[string]SimplePrice, error) {
	q := url.Values{}
	q.Set("ids", strings.Join(coinIDs, ","))
	q.Set("vs_currencies", "usd")
	q.Set("include_24hr_change", "true")

	prices := make(map[string]SimplePrice)
	if err := c.getJSON(ctx, "/simple/price", q, &prices); err != nil {
		return nil, err
	}
	return prices, nil
}

// Search performs a coin text search.
func (c *Client) Search(ctx context.Context, query string) ([]SearchCoin, error) {
	q := url.Values{}
	q.Set("query", query)

	var raw searchResponse
	if err := c.getJSON(ctx, "/search", q, &raw); err != nil {
		return nil, err
	}
	return raw.Coins, nil
}

// Exchanges fetches the exchange listing.
func (c *Client) Exchanges(ctx context.Context) ([]Exchange, error) {
	var exchanges []Exchange
	if err := c.getJSON(ctx, "/exchanges", nil, &exchanges); err != nil {
		return nil, err
	}
	return exchanges, nil
}

// getJSON issues a GET against path and decodes the body into out, retrying
// per the client's RetryPolicy. The error returned after exhaustion is the
// last attempt's, a *StatusError for HTTP failures.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	for attempt := 1; ; attempt++ {
		status, err := c.doOnce(ctx, endpoint, out)
		if err == nil {
			return nil
		}

		delay, retry := c.retry.NextDelay(attempt, status)
		if !retry {
			return err
		}

		c.logger.Warn("request failed, retrying",
			zap.String("endpoint", endpoint),
			zap.Int("attempt", attempt),
			zap.Int("status", status),
			zap.Duration("delay", delay),
		)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// doOnce performs a single request. The returned status is 0 for transport
// errors, otherwise the response code.
func (c *Client) doOnce(ctx context.Context, endpoint string, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return resp.StatusCode, &StatusError{
			Status:  resp.StatusCode,
			Message: strings.TrimSpace(string(body)),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("decode response: %w", err)
	}
	return resp.StatusCode, nil
}
