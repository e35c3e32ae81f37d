// Package httpclient builds resty clients for outbound deliveries.
package httpclient

import (
	"errors"
	"net"
	"net/http"
	"syscall"
	"time"

	"github.com/go-resty/resty/v2"
)

type Config struct {
	baseURL            string
	timeout            time.Duration
	headers            map[string]string
	retryCount         int
	retryWaitTime      time.Duration
	retryMaxWaitTime   time.Duration
	retryAfterInterval int
}

type Option func(c *Config)

func WithBaseURL(baseURL string) Option {
	return func(c *Config) {
		c.baseURL = baseURL
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.timeout = timeout
	}
}

// WithHeader sets a header sent with every request.
func WithHeader(key, value string) Option {
	return func(c *Config) {
		c.headers[key] = value
	}
}

func WithRetryCount(count int) Option {
	return func(c *Config) {
		c.retryCount = count
	}
}

func WithRetryWaitTime(waitTime time.Duration) Option {
	return func(c *Config) {
		c.retryWaitTime = waitTime
	}
}

func WithRetryMaxWaitTime(maxWaitTime time.Duration) Option {
	return func(c *Config) {
		c.retryMaxWaitTime = maxWaitTime
	}
}

// WithRetryAfterInterval sets the growth step, in seconds, between retries.
// Zero falls back to resty's own backoff.
func WithRetryAfterInterval(retryAfterInterval int) Option {
	return func(c *Config) {
		c.retryAfterInterval = retryAfterInterval
	}
}

func New(opts ...Option) *resty.Client {
	cfg := &Config{
		timeout:            10 * time.Second,
		headers:            make(map[string]string),
		retryCount:         3,
		retryWaitTime:      1 * time.Second,
		retryMaxWaitTime:   10 * time.Second,
		retryAfterInterval: 2,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	client := resty.New().
		SetBaseURL(cfg.baseURL).
		SetTimeout(cfg.timeout).
		SetHeaders(cfg.headers).
		SetRetryCount(cfg.retryCount).
		SetRetryWaitTime(cfg.retryWaitTime).
		SetRetryMaxWaitTime(cfg.retryMaxWaitTime).
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			return isRetryableError(err) || isRetryableStatus(resp)
		})

	if cfg.retryAfterInterval > 0 {
		client.SetRetryAfter(retryAfterWithInterval(cfg.retryAfterInterval))
	}

	return client
}

// retryAfterWithInterval returns duration intervals between retries: 1s, 3s, 5s, ...
func retryAfterWithInterval(retryWaitInterval int) resty.RetryAfterFunc {
	return func(_ *resty.Client, resp *resty.Response) (time.Duration, error) {
		return time.Duration((resp.Request.Attempt-1)*retryWaitInterval+1) * time.Second, nil
	}
}

// isRetryableStatus reports whether the receiver asked to be called again later.
func isRetryableStatus(resp *resty.Response) bool {
	if resp == nil {
		return false
	}

	code := resp.StatusCode()

	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

// isRetryableError checks if the error is a retryable error.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	var opErr *net.OpError

	return errors.As(err, &opErr)
}
