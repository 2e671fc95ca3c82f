package http

import (
	"context"
	"fmt"
	"net/http"
	neturl "net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout is the default HTTP request timeout
	DefaultTimeout = 30 * time.Second
	// DefaultMaxRedirects is the maximum number of redirects to follow
	DefaultMaxRedirects = 10
)

// Client executes requests built by GetRequest and PostRequest.
type Client struct {
	rc             *resty.Client
	timeout        time.Duration
	followRedirect bool
	maxRedirects   int
	rateLimit      float64
	limiter        *rate.Limiter
	defaultHeaders map[string]string
	logger         *zap.SugaredLogger
}

type ClientOption func(*Client)

func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		timeout:        DefaultTimeout,
		followRedirect: true,
		maxRedirects:   DefaultMaxRedirects,
		defaultHeaders: make(map[string]string),
	}

	for _, opt := range opts {
		opt(c)
	}

	rc := resty.New().SetTimeout(c.timeout)

	rc.SetRedirectPolicy(resty.RedirectPolicyFunc(func(req *http.Request, via []*http.Request) error {
		if !c.followRedirect {
			return http.ErrUseLastResponse
		}
		if len(via) >= c.maxRedirects {
			return http.ErrUseLastResponse
		}
		return nil
	}))

	if len(c.defaultHeaders) > 0 {
		rc.SetHeaders(c.defaultHeaders)
	}

	if c.logger != nil {
		rc.SetLogger(c.logger)
	}

	if c.rateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(c.rateLimit), 1)
	}

	c.rc = rc
	return c
}

func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
	}
}

func WithFollowRedirects(follow bool) ClientOption {
	return func(c *Client) {
		c.followRedirect = follow
	}
}

func WithMaxRedirects(max int) ClientOption {
	return func(c *Client) {
		c.maxRedirects = max
	}
}

func WithDefaultHeader(key, value string) ClientOption {
	return func(c *Client) {
		c.defaultHeaders[key] = value
	}
}

// WithDefaultHeaders sets multiple default headers for all requests
func WithDefaultHeaders(headers map[string]string) ClientOption {
	return func(c *Client) {
		for k, v := range headers {
			c.defaultHeaders[k] = v
		}
	}
}

// WithRateLimit caps outgoing requests per second. Zero or less disables it.
func WithRateLimit(rps float64) ClientOption {
	return func(c *Client) {
		c.rateLimit = rps
	}
}

// WithLogger routes transport warnings and errors to the given logger.
func WithLogger(l *zap.SugaredLogger) ClientOption {
	return func(c *Client) {
		c.logger = l
	}
}

// do sends a single request. Query parameters are already encoded in rawURL.
func (c *Client) do(ctx context.Context, method, rawURL string, headers map[string]string, body string) (*Response, error) {
	if err := ValidateURL(rawURL); err != nil {
		return nil, err
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	req := c.rc.R().SetContext(ctx)
	if len(headers) > 0 {
		req.SetHeaders(headers)
	}
	if body != "" {
		req.SetBody(body)
	}

	start := time.Now()
	resp, err := req.Execute(method, rawURL)
	duration := time.Since(start)
	if err != nil {
		return nil, err
	}

	respHeaders := make(map[string]string)
	for k := range resp.Header() {
		respHeaders[k] = resp.Header().Get(k)
	}

	return &Response{
		StatusCode: resp.StatusCode(),
		Status:     resp.Status(),
		Headers:    respHeaders,
		Body:       resp.Body(),
		Duration:   duration,
	}, nil
}

// ValidateURL checks that a URL is well-formed and uses an allowed scheme
func ValidateURL(rawURL string) error {
	u, err := neturl.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %v", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported URL scheme: %s (only http and https are allowed)", u.Scheme)
	}

	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}

	return nil
}
