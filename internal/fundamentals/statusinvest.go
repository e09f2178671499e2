// Package fundamentals scrapes FII fundamentals and sector listings from
// StatusInvest.
package fundamentals

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PaesslerAG/jsonpath"
	"github.com/rs/zerolog"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"

	apperrors "b3-tracker/internal/errors"
	"b3-tracker/internal/metrics"
	"b3-tracker/internal/models"
	"b3-tracker/internal/resilience"
	"b3-tracker/pkg/utils"
)

const (
	ProviderName     = "statusinvest"
	DefaultBaseURL   = "https://statusinvest.com.br"
	DefaultTimeout   = 20 * time.Second
	DefaultRateLimit = 1.0
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/138.0.0.0 Safari/537.36"

	// FIICategory is the StatusInvest category type of real estate funds.
	FIICategory = 2
)

// Client fetches fund pages and sector listings.
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

// NewClient creates a StatusInvest client. Cookies set by the site are kept
// for the lifetime of the client.
func NewClient(opts ...ClientOption) *Client {
	retry := utils.DefaultRetryConfig()
	retry.ShouldRetry = apperrors.IsRetryable

	httpClient := &http.Client{Timeout: DefaultTimeout}
	if jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List}); err == nil {
		httpClient.Jar = jar
	}

	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Limit(DefaultRateLimit), 1),
		userAgent:  DefaultUserAgent,
		retry:      retry,
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fundamentals scrapes the fund page of ticker into a flat map keyed by the
// models.Field* names. A page without any recognised metric is ErrNoData.
func (c *Client) Fundamentals(ctx context.Context, ticker string) (map[string]string, error) {
	ticker = models.NormalizeTicker(ticker)
	reqURL := fmt.Sprintf("%s/fundos-imobiliarios/%s", c.baseURL, url.PathEscape(strings.ToLower(ticker)))

	body, err := c.fetch(ctx, ticker, reqURL, "text/html")
	if err != nil {
		return nil, err
	}

	raw, err := ParsePage(bytes.NewReader(body))
	if err != nil {
		return nil, apperrors.NewLookupError(ProviderName, ticker, fmt.Errorf("parse page: %w", err))
	}
	if len(raw) == 0 {
		return nil, apperrors.NewLookupError(ProviderName, ticker, apperrors.ErrNoData)
	}
	c.logger.Debug().Str("ticker", ticker).Int("fields", len(raw)).Msg("fund page scraped")
	return raw, nil
}

// SectorCompanies lists the funds of a StatusInvest segment.
func (c *Client) SectorCompanies(ctx context.Context, segmentID int) ([]models.SectorCompany, error) {
	q := url.Values{}
	q.Set("categoryType", strconv.Itoa(FIICategory))
	q.Set("segmentoId", strconv.Itoa(segmentID))
	reqURL := fmt.Sprintf("%s/sector/getcompanies?%s", c.baseURL, q.Encode())
	key := "segment:" + strconv.Itoa(segmentID)

	body, err := c.fetch(ctx, key, reqURL, "application/json")
	if err != nil {
		return nil, err
	}
	return parseSectorListing(key, body)
}

func parseSectorListing(key string, body []byte) ([]models.SectorCompany, error) {
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, apperrors.NewLookupError(ProviderName, key, fmt.Errorf("decode listing: %w", err))
	}

	success, err := jsonpath.Get("$.success", doc)
	if err != nil || success != true {
		return nil, apperrors.NewLookupError(ProviderName, key, fmt.Errorf("%w: listing not successful", apperrors.ErrNoData))
	}
	data, err := jsonpath.Get("$.data", doc)
	if err != nil {
		return nil, apperrors.NewLookupError(ProviderName, key, fmt.Errorf("%w: listing without data", apperrors.ErrNoData))
	}
	items, _ := data.([]any)

	companies := make([]models.SectorCompany, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		ticker, _ := obj["ticker"].(string)
		if ticker == "" {
			continue
		}
		name, _ := obj["companyName"].(string)
		companies = append(companies, models.SectorCompany{
			Ticker:      models.NormalizeTicker(ticker),
			CompanyName: strings.TrimSpace(name),
		})
	}
	return companies, nil
}

func (c *Client) fetch(ctx context.Context, key, reqURL, accept string) ([]byte, error) {
	start := time.Now()
	body, err := resilience.Call(ctx, c.breaker, func() ([]byte, error) {
		return utils.RetryWithResult(ctx, c.retry, func() ([]byte, error) {
			return c.get(ctx, reqURL, accept)
		})
	})
	c.metrics.ObserveProvider(ProviderName, start, err)
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Dur("elapsed", time.Since(start)).Msg("statusinvest request failed")
		return nil, apperrors.NewLookupError(ProviderName, key, err)
	}
	return body, nil
}

func (c *Client) get(ctx context.Context, reqURL, accept string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", accept)
	req.Header.Set("Accept-Language", "pt-BR,pt;q=0.9,en-US;q=0.8")
	req.Header.Set("Referer", c.baseURL+"/fundos-imobiliarios")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, fmt.Errorf("%w: %v", apperrors.ErrTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", apperrors.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		snippet := string(body)
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		return nil, &apperrors.HTTPError{StatusCode: resp.StatusCode, URL: reqURL, Body: snippet}
	}
	return body, nil
}
