// Package quotes fetches B3 price history and last prices from the Yahoo
// Finance chart API.
package quotes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PaesslerAG/jsonpath"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	apperrors "b3-tracker/internal/errors"
	"b3-tracker/internal/metrics"
	"b3-tracker/internal/models"
	"b3-tracker/internal/resilience"
	"b3-tracker/pkg/utils"
)

const (
	ProviderName     = "yahoo"
	DefaultBaseURL   = "https://query1.finance.yahoo.com"
	DefaultTimeout   = 15 * time.Second
	DefaultRateLimit = 2.0 // requests per second
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
)

// ValidPeriods are the lookback windows accepted by History.
var ValidPeriods = []string{"1mo", "3mo", "6mo", "1y", "2y", "5y", "max"}

// ValidPeriod reports whether p is an accepted lookback window.
func ValidPeriod(p string) bool {
	for _, v := range ValidPeriods {
		if v == p {
			return true
		}
	}
	return false
}

// Client is a Yahoo Finance chart API client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	userAgent  string
	retry      utils.RetryConfig
	breaker    *resilience.Breaker
	logger     zerolog.Logger
	metrics    *metrics.Metrics
}

// ClientOption configures the client.
type ClientOption func(*Client)

// WithBaseURL sets the base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithTimeout sets the HTTP timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithRateLimit sets the request rate limit.
func WithRateLimit(requestsPerSecond float64) ClientOption {
	return func(c *Client) {
		if requestsPerSecond > 0 {
			burst := int(requestsPerSecond)
			if burst < 1 {
				burst = 1
			}
			c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
		}
	}
}

// WithRetries sets how many times a retryable failure is attempted.
func WithRetries(attempts int) ClientOption {
	return func(c *Client) {
		if attempts > 0 {
			c.retry.MaxAttempts = attempts
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithBreaker guards every request with b.
func WithBreaker(b *resilience.Breaker) ClientOption {
	return func(c *Client) {
		c.breaker = b
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithMetrics records provider calls.
func WithMetrics(m *metrics.Metrics) ClientOption {
	return func(c *Client) {
		c.metrics = m
	}
}

// NewClient creates a new chart API client.
func NewClient(opts ...ClientOption) *Client {
	retry := utils.DefaultRetryConfig()
	retry.ShouldRetry = apperrors.IsRetryable

	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(DefaultRateLimit), int(DefaultRateLimit)),
		userAgent:  DefaultUserAgent,
		retry:      retry,
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol             string  `json:"symbol"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*int64   `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// History returns daily candles for symbol over period, oldest first.
// Bars without a close are skipped.
func (c *Client) History(ctx context.Context, symbol, period string) ([]models.Candle, error) {
	if !ValidPeriod(period) {
		return nil, apperrors.NewValidationError("period", period, "must be one of "+strings.Join(ValidPeriods, ", "))
	}

	body, err := c.chart(ctx, symbol, period)
	if err != nil {
		return nil, err
	}

	var resp chartResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, apperrors.NewLookupError(ProviderName, symbol, fmt.Errorf("decode chart: %w", err))
	}
	if resp.Chart.Error != nil {
		return nil, apperrors.NewLookupError(ProviderName, symbol,
			fmt.Errorf("%w: %s", apperrors.ErrTickerNotFound, resp.Chart.Error.Description))
	}
	if len(resp.Chart.Result) == 0 || len(resp.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, apperrors.NewLookupError(ProviderName, symbol, apperrors.ErrNoData)
	}

	r := resp.Chart.Result[0]
	q := r.Indicators.Quote[0]
	candles := make([]models.Candle, 0, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		cl := at(q.Close, i)
		if cl == nil {
			continue
		}
		candle := models.Candle{
			Timestamp: time.Unix(ts, 0).In(utils.SaoPauloLocation),
			Close:     *cl,
			Open:      valueOr(at(q.Open, i), *cl),
			High:      valueOr(at(q.High, i), *cl),
			Low:       valueOr(at(q.Low, i), *cl),
		}
		if i < len(q.Volume) && q.Volume[i] != nil {
			candle.Volume = *q.Volume[i]
		}
		candles = append(candles, candle)
	}
	return candles, nil
}

// LastPrice returns the most recent regular-market price of symbol.
func (c *Client) LastPrice(ctx context.Context, symbol string) (float64, error) {
	body, err := c.chart(ctx, symbol, "5d")
	if err != nil {
		return 0, err
	}

	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return 0, apperrors.NewLookupError(ProviderName, symbol, fmt.Errorf("decode chart: %w", err))
	}

	if v, err := jsonpath.Get("$.chart.error.code", doc); err == nil && v != nil {
		return 0, apperrors.NewLookupError(ProviderName, symbol, apperrors.ErrTickerNotFound)
	}

	if price, ok := firstFloat(jsonpath.Get("$.chart.result[0].meta.regularMarketPrice", doc)); ok && price > 0 {
		return price, nil
	}
	// fall back to the last close of the window
	if price, ok := lastFloat(jsonpath.Get("$.chart.result[0].indicators.quote[0].close", doc)); ok && price > 0 {
		return price, nil
	}
	return 0, apperrors.NewLookupError(ProviderName, symbol, apperrors.ErrNoData)
}

func (c *Client) chart(ctx context.Context, symbol, period string) ([]byte, error) {
	q := url.Values{}
	q.Set("range", period)
	q.Set("interval", "1d")
	reqURL := fmt.Sprintf("%s/v8/finance/chart/%s?%s", c.baseURL, url.PathEscape(symbol), q.Encode())

	start := time.Now()
	body, err := resilience.Call(ctx, c.breaker, func() ([]byte, error) {
		return utils.RetryWithResult(ctx, c.retry, func() ([]byte, error) {
			return c.get(ctx, reqURL)
		})
	})
	c.metrics.ObserveProvider(ProviderName, start, err)
	if err != nil {
		c.logger.Warn().Err(err).Str("symbol", symbol).Dur("elapsed", time.Since(start)).Msg("chart request failed")
		return nil, apperrors.NewLookupError(ProviderName, symbol, err)
	}
	c.logger.Debug().Str("symbol", symbol).Str("range", period).Dur("elapsed", time.Since(start)).Msg("chart request")
	return body, nil
}

func (c *Client) get(ctx context.Context, reqURL string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, fmt.Errorf("%w: %v", apperrors.ErrTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", apperrors.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		// Yahoo answers unknown symbols with 404 and a chart.error body
		return nil, &apperrors.HTTPError{StatusCode: resp.StatusCode, URL: reqURL, Body: truncate(string(body), 200)}
	}
	return body, nil
}

func at[T any](s []*T, i int) *T {
	if i < len(s) {
		return s[i]
	}
	return nil
}

func valueOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

// firstFloat unwraps a jsonpath result that may be a scalar or a
// one-element list.
func firstFloat(v any, err error) (float64, bool) {
	if err != nil {
		return 0, false
	}
	if list, ok := v.([]any); ok {
		if len(list) == 0 {
			return 0, false
		}
		v = list[0]
	}
	f, ok := v.(float64)
	return f, ok
}

// lastFloat returns the last non-null number of a jsonpath list result.
func lastFloat(v any, err error) (float64, bool) {
	if err != nil {
		return 0, false
	}
	list, ok := v.([]any)
	if !ok {
		return 0, false
	}
	for i := len(list) - 1; i >= 0; i-- {
		if f, ok := list[i].(float64); ok {
			return f, true
		}
	}
	return 0, false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
