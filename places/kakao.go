package places

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/seoulsafe/sinkhole-api/logging"
	"github.com/seoulsafe/sinkhole-api/resilience"
	"github.com/seoulsafe/sinkhole-api/telemetry"
)

const (
	defaultBaseURL  = "https://dapi.kakao.com"
	keywordPath     = "/v2/local/search/keyword.json"
	defaultTimeout  = 5 * time.Second
	defaultCacheTTL = time.Hour
	defaultPageSize = 15
	limiterKey      = "kakao"
)

// Degrade reasons returned in Result.Error.
const (
	ReasonNotConfigured = "장소 검색이 설정되지 않았습니다"
	ReasonBadRequest    = "잘못된 검색 요청입니다"
	ReasonUnauthorized  = "카카오 API 키가 유효하지 않습니다"
	ReasonForbidden     = "카카오 API 접근 권한이 없습니다"
	ReasonRateLimited   = "검색 요청 한도를 초과했습니다"
	ReasonTimeout       = "검색 요청 시간이 초과되었습니다"
	ReasonUnavailable   = "장소 검색 서비스를 일시적으로 사용할 수 없습니다"
	ReasonFailed        = "장소 검색 중 오류가 발생했습니다"
)

// Config holds Kakao Local client configuration.
type Config struct {
	// APIKey is the Kakao REST API key. Empty disables upstream calls.
	APIKey string

	// BaseURL of the Kakao API.
	BaseURL string

	// Timeout bounds each upstream attempt.
	Timeout time.Duration

	// Retries after a transport error or 5xx.
	Retries int

	// CacheTTL for successful results.
	CacheTTL time.Duration

	// PageSize is the number of documents requested (1-15).
	PageSize int
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig(apiKey string) *Config {
	return &Config{
		APIKey:   apiKey,
		BaseURL:  defaultBaseURL,
		Timeout:  defaultTimeout,
		Retries:  1,
		CacheTTL: defaultCacheTTL,
		PageSize: defaultPageSize,
	}
}

// Client is the Kakao Local keyword search client.
type Client struct {
	config   *Config
	http     *resilience.HTTPClient
	logger   *logging.Logger
	tracer   trace.Tracer
	cache    Cache
	limiter  RateLimiter
	metrics  *telemetry.AdvisoryMetrics
	insights *logging.AppInsightsClient
	now      func() time.Time
}

// Option customizes a Client.
type Option func(*Client)

// WithTracer sets the tracer. Defaults to the global provider.
func WithTracer(tracer trace.Tracer) Option {
	return func(c *Client) { c.tracer = tracer }
}

// WithMetrics records search outcomes.
func WithMetrics(m *telemetry.AdvisoryMetrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithInsights reports upstream calls as Application Insights dependencies.
func WithInsights(insights *logging.AppInsightsClient) Option {
	return func(c *Client) { c.insights = insights }
}

// WithCircuitBreaker overrides the upstream circuit breaker settings.
func WithCircuitBreaker(cfg resilience.CircuitBreakerConfig) Option {
	return func(c *Client) { c.http = newHTTPClient(c.config, c.logger, &cfg) }
}

// NewClient creates a new Kakao client. A nil cache or limiter disables
// that layer.
func NewClient(config *Config, logger *logging.Logger, cache Cache, limiter RateLimiter, opts ...Option) *Client {
	if config == nil {
		config = DefaultConfig("")
	}
	defaults := DefaultConfig(config.APIKey)
	if config.BaseURL == "" {
		config.BaseURL = defaults.BaseURL
	}
	config.BaseURL = strings.TrimSuffix(config.BaseURL, "/")
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = defaults.CacheTTL
	}
	if config.PageSize <= 0 || config.PageSize > defaultPageSize {
		config.PageSize = defaults.PageSize
	}
	if logger == nil {
		logger = logging.NewLogger("info")
	}
	if limiter == nil {
		limiter = NoopRateLimiter{}
	}

	c := &Client{
		config:  config,
		logger:  logger.WithService("places"),
		tracer:  otel.Tracer("github.com/seoulsafe/sinkhole-api/places"),
		cache:   cache,
		limiter: limiter,
		now:     time.Now,
	}
	c.http = newHTTPClient(config, c.logger, nil)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func newHTTPClient(config *Config, logger *logging.Logger, cb *resilience.CircuitBreakerConfig) *resilience.HTTPClient {
	if cb == nil {
		d := resilience.DefaultCircuitBreakerConfig("kakao-local")
		cb = &d
	}
	cb.OnStateChange = func(name string, from, to resilience.CircuitState) {
		logger.Warn("circuit breaker state changed",
			"breaker", name,
			"from", from.String(),
			"to", to.String(),
		)
	}
	httpCfg := resilience.DefaultHTTPClientConfig("kakao-local")
	httpCfg.Timeout = config.Timeout
	httpCfg.Retries = config.Retries
	httpCfg.CircuitBreakerConfig = cb
	return resilience.NewHTTPClient(httpCfg)
}

// CircuitBreaker exposes the upstream breaker for health reporting.
func (c *Client) CircuitBreaker() *resilience.CircuitBreaker {
	return c.http.CircuitBreaker()
}

// Search looks up places matching query. It always returns a usable Result;
// failures set Result.Error and leave Places empty.
func (c *Client) Search(ctx context.Context, query string) Result {
	start := c.now()
	ctx, span := c.tracer.Start(ctx, "places.Search")
	defer span.End()

	res, outcome := c.search(ctx, query)

	span.SetAttributes(
		attribute.String("places.outcome", outcome),
		attribute.Int("places.count", res.TotalCount),
	)
	c.metrics.RecordPlaceSearch(ctx, outcome, c.now().Sub(start))
	return res
}

func (c *Client) search(ctx context.Context, query string) (Result, string) {
	key := NormalizeQuery(query)
	if tooShort(key) {
		return newResult(nil), "rejected"
	}
	if c.config.APIKey == "" {
		return degraded(ReasonNotConfigured), "not_configured"
	}

	if places, ok := c.cached(ctx, key); ok {
		return newResult(places), "cache_hit"
	}

	allowed, err := c.limiter.Allow(ctx, limiterKey)
	if err != nil {
		c.logger.Warn("rate limiter unavailable", "error", err)
	} else if !allowed {
		return degraded(ReasonRateLimited), "rate_limited"
	}

	places, err := c.keywordSearch(ctx, strings.Join(strings.Fields(query), " "))
	if err != nil {
		outcome, reason := classify(err)
		c.logger.Warn("place search degraded",
			"outcome", outcome,
			"error", err,
		)
		return degraded(reason), outcome
	}

	c.store(ctx, key, places)
	return newResult(places), "upstream"
}

func (c *Client) cached(ctx context.Context, key string) ([]Place, bool) {
	if c.cache == nil {
		return nil, false
	}
	data, err := c.cache.Get(ctx, key)
	if err != nil {
		c.logger.Warn("place cache read failed", "error", err)
		return nil, false
	}
	if data == nil {
		return nil, false
	}
	var places []Place
	if err := json.Unmarshal(data, &places); err != nil {
		c.logger.Warn("place cache entry corrupt", "error", err)
		return nil, false
	}
	return places, true
}

func (c *Client) store(ctx context.Context, key string, places []Place) {
	if c.cache == nil {
		return
	}
	data, err := json.Marshal(places)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, key, data, c.config.CacheTTL); err != nil {
		c.logger.Warn("place cache write failed", "error", err)
	}
}

// keywordSearch calls the Kakao keyword endpoint once (plus retries).
func (c *Client) keywordSearch(ctx context.Context, query string) (places []Place, err error) {
	ctx, span := c.tracer.Start(ctx, "kakao.keyword_search", trace.WithSpanKind(trace.SpanKindClient))
	start := c.now()
	defer func() {
		if err != nil {
			telemetry.SetSpanError(span, err)
		}
		span.End()
		c.insights.TrackDependency("kakao keyword search", "HTTP", hostOf(c.config.BaseURL), c.now().Sub(start), err == nil)
	}()

	params := url.Values{}
	params.Set("query", query)
	params.Set("size", strconv.Itoa(c.config.PageSize))
	endpoint := c.config.BaseURL + keywordPath + "?" + params.Encode()

	header := http.Header{}
	header.Set("Authorization", "KakaoAK "+c.config.APIKey)
	header.Set("Accept", "application/json")

	resp, err := c.http.Get(ctx, endpoint, header)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &resilience.StatusError{StatusCode: resp.StatusCode}
	}

	var body kakaoResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode kakao response: %w", err)
	}

	places = body.toPlaces()
	c.logger.Debug("kakao keyword search",
		"documents", len(body.Documents),
		"places", len(places),
	)
	return places, nil
}

// classify maps an upstream error to a metric outcome and a client-facing
// reason.
func classify(err error) (outcome, reason string) {
	var statusErr *resilience.StatusError
	var netErr net.Error
	switch {
	case errors.Is(err, resilience.ErrCircuitOpen):
		return "circuit_open", ReasonUnavailable
	case errors.As(err, &statusErr):
		switch statusErr.StatusCode {
		case http.StatusBadRequest:
			return "bad_request", ReasonBadRequest
		case http.StatusUnauthorized:
			return "unauthorized", ReasonUnauthorized
		case http.StatusForbidden:
			return "forbidden", ReasonForbidden
		case http.StatusTooManyRequests:
			return "upstream_rate_limited", ReasonRateLimited
		}
		return "upstream_error", ReasonFailed
	case errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout():
		return "timeout", ReasonTimeout
	}
	return "error", ReasonFailed
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return u.Host
}
