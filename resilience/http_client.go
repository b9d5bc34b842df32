package resilience

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// StatusError reports an upstream response status the caller treats as an
// error. Do returns it for 5xx only.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream status %d", e.StatusCode)
}

// HTTPClient wraps an http.Client with a circuit breaker and retries for
// transport errors and 5xx responses. Only those count against the breaker;
// 4xx responses, 429 included, are returned to the caller untouched.
type HTTPClient struct {
	client         *http.Client
	circuitBreaker *CircuitBreaker
	retries        int
	retryDelay     time.Duration
}

// HTTPClientConfig configures an HTTPClient.
type HTTPClientConfig struct {
	// Name for the circuit breaker.
	Name string

	// Timeout bounds each attempt.
	Timeout time.Duration

	// Retries is the number of extra attempts after the first.
	Retries int

	// RetryDelay grows linearly per attempt.
	RetryDelay time.Duration

	// Transport overrides http.DefaultTransport.
	Transport http.RoundTripper

	// CircuitBreaker config (optional, uses defaults if nil).
	CircuitBreakerConfig *CircuitBreakerConfig
}

// DefaultHTTPClientConfig returns defaults suited to an interactive
// request path.
func DefaultHTTPClientConfig(name string) HTTPClientConfig {
	return HTTPClientConfig{
		Name:       name,
		Timeout:    5 * time.Second,
		Retries:    1,
		RetryDelay: 100 * time.Millisecond,
	}
}

// NewHTTPClient creates a new HTTPClient.
func NewHTTPClient(config HTTPClientConfig) *HTTPClient {
	var cbConfig CircuitBreakerConfig
	if config.CircuitBreakerConfig != nil {
		cbConfig = *config.CircuitBreakerConfig
	} else {
		cbConfig = DefaultCircuitBreakerConfig(config.Name)
	}
	if cbConfig.Name == "" {
		cbConfig.Name = config.Name
	}

	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
	}
	if config.Retries < 0 {
		config.Retries = 0
	}

	return &HTTPClient{
		client: &http.Client{
			Timeout:   config.Timeout,
			Transport: config.Transport,
		},
		circuitBreaker: NewCircuitBreaker(cbConfig),
		retries:        config.Retries,
		retryDelay:     config.RetryDelay,
	}
}

// Do executes req. Responses below 500 are returned with an open body for
// the caller to close.
func (c *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	var lastErr error

	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retryDelay * time.Duration(attempt)):
			}
		}

		var resp *http.Response
		err := c.circuitBreaker.Execute(ctx, func(ctx context.Context) error {
			var reqErr error
			resp, reqErr = c.client.Do(req.Clone(ctx))
			if reqErr != nil {
				return reqErr
			}
			if resp.StatusCode >= 500 {
				_, _ = io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
				return &StatusError{StatusCode: resp.StatusCode}
			}
			return nil
		})
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !c.retryable(ctx, err) {
			return nil, err
		}
	}

	return nil, fmt.Errorf("all retries failed: %w", lastErr)
}

func (c *HTTPClient) retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, ErrCircuitOpen) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode >= 500
	}
	return true
}

// Get performs an HTTP GET request.
func (c *HTTPClient) Get(ctx context.Context, url string, header http.Header) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range header {
		req.Header[k] = v
	}
	return c.Do(req)
}

// CircuitBreaker returns the underlying circuit breaker.
func (c *HTTPClient) CircuitBreaker() *CircuitBreaker {
	return c.circuitBreaker
}
