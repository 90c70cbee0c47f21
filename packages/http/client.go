package http

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	neturl "net/url"
	"sort"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/reqspec/packages/core/config"
	"github.com/abdul-hamid-achik/reqspec/packages/logger"
	valid "github.com/asaskevich/govalidator"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout is the default HTTP request timeout
	DefaultTimeout = 30 * time.Second
	// DefaultMaxRedirects is the maximum number of redirects to follow
	DefaultMaxRedirects = 10
	// DefaultMaxIdleConns is the maximum number of idle connections in the pool
	DefaultMaxIdleConns = 100
	// DefaultMaxIdleConnsPerHost is the maximum number of idle connections per host
	DefaultMaxIdleConnsPerHost = 10
	// DefaultIdleConnTimeout is how long idle connections stay in the pool
	DefaultIdleConnTimeout = 90 * time.Second
)

// Client executes Requests. A Client created by NewSession keeps a cookie jar,
// so cookies set by one response are sent with later requests.
type Client struct {
	httpClient     *http.Client
	transport      http.RoundTripper
	timeout        time.Duration
	followRedirect bool
	maxRedirects   int
	validateSSL    bool
	proxyURL       string
	baseURL        string
	defaultHeaders map[string]string
	jar            http.CookieJar
	limiter        *rate.Limiter
}

type ClientOption func(*Client)

func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		timeout:        DefaultTimeout,
		followRedirect: true,
		maxRedirects:   DefaultMaxRedirects,
		validateSSL:    true,
		defaultHeaders: make(map[string]string),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.transport == nil {
		transport := &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        DefaultMaxIdleConns,
			MaxIdleConnsPerHost: DefaultMaxIdleConnsPerHost,
			IdleConnTimeout:     DefaultIdleConnTimeout,
		}

		if !c.validateSSL {
			transport.TLSClientConfig = &tls.Config{
				InsecureSkipVerify: true,
			}
		}

		if c.proxyURL != "" {
			proxyURL, err := neturl.Parse(c.proxyURL)
			if err == nil {
				transport.Proxy = http.ProxyURL(proxyURL)
			}
		}
		c.transport = transport
	}

	c.httpClient = &http.Client{
		Transport: c.transport,
		Timeout:   c.timeout,
		Jar:       c.jar,
	}

	return c
}

// NewSession returns a Client with a fresh cookie jar.
func NewSession(opts ...ClientOption) *Client {
	return NewClient(append([]ClientOption{WithCookieJar(nil)}, opts...)...)
}

// NewSessionFromConfig returns a session configured from cfg.
func NewSessionFromConfig(cfg *config.Config) *Client {
	return NewSession(OptionsFromConfig(cfg)...)
}

// OptionsFromConfig maps configuration settings to client options.
func OptionsFromConfig(cfg *config.Config) []ClientOption {
	opts := []ClientOption{
		WithFollowRedirects(cfg.GetFollowRedirects()),
		WithValidateSSL(cfg.GetValidateSSL()),
		WithDefaultHeaders(cfg.Headers),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, WithTimeout(time.Duration(cfg.Timeout)*time.Millisecond))
	}
	if cfg.MaxRedirects > 0 {
		opts = append(opts, WithMaxRedirects(cfg.MaxRedirects))
	}
	if cfg.Proxy != "" {
		opts = append(opts, WithProxy(cfg.Proxy))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, WithBaseURL(cfg.BaseURL))
	}
	if cfg.RateLimit > 0 {
		opts = append(opts, WithRateLimit(cfg.RateLimit))
	}
	return opts
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

// WithDefaultHeaders sets multiple default headers for all requests
func WithDefaultHeaders(headers map[string]string) ClientOption {
	return func(c *Client) {
		for k, v := range headers {
			c.defaultHeaders[k] = v
		}
	}
}

// WithValidateSSL enables or disables SSL certificate validation
func WithValidateSSL(validate bool) ClientOption {
	return func(c *Client) {
		c.validateSSL = validate
	}
}

// WithProxy sets the proxy URL for all requests
func WithProxy(proxyURL string) ClientOption {
	return func(c *Client) {
		c.proxyURL = proxyURL
	}
}

// WithBaseURL is prepended to request URLs that have no scheme.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithCookieJar attaches a cookie jar; nil creates an in-memory one.
func WithCookieJar(jar http.CookieJar) ClientOption {
	return func(c *Client) {
		if jar == nil {
			// cookiejar.New only fails on a bad PublicSuffixList, and we pass none.
			jar, _ = cookiejar.New(nil)
		}
		c.jar = jar
	}
}

// WithRateLimit throttles the client to rps requests per second.
func WithRateLimit(rps float64) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// WithTransport replaces the round tripper, e.g. with a recording or mocking one.
// Per-request proxy, verify and cert settings need the default *http.Transport.
func WithTransport(rt http.RoundTripper) ClientOption {
	return func(c *Client) {
		c.transport = rt
	}
}

// HTTPClient exposes the underlying client, e.g. for gock.InterceptClient.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// Jar returns the session's cookie jar, nil for a plain client.
func (c *Client) Jar() http.CookieJar {
	return c.jar
}

// Do sends req and returns the response. Transport errors are returned as
// they come from net/http.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	fullURL, err := c.buildURL(req)
	if err != nil {
		return nil, err
	}

	body, contentType, err := encodeBody(req)
	if err != nil {
		return nil, err
	}

	hc, err := c.clientFor(req)
	if err != nil {
		return nil, err
	}

	cancel := context.CancelFunc(func() {})
	if req.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			cancel()
			return nil, err
		}
	}

	resp, err := c.doRequest(ctx, hc, req, fullURL, body, contentType, "")
	if err == nil {
		resp, err = c.answerChallenge(ctx, hc, req, resp, fullURL, body, contentType)
	}
	if err != nil {
		cancel()
		return nil, err
	}

	if req.Stream && resp.stream != nil {
		resp.stream = &cancelOnClose{ReadCloser: resp.stream, cancel: cancel}
	} else {
		resp.load()
		cancel()
		if resp.bodyErr != nil {
			return nil, resp.bodyErr
		}
	}

	logger.Debug("received response",
		zap.String("method", req.Method),
		zap.String("url", resp.URL),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", resp.Duration),
	)

	for _, hook := range req.Hooks {
		hook(resp)
	}

	return resp, nil
}

func (c *Client) answerChallenge(ctx context.Context, hc *http.Client, req *Request, resp *Response, fullURL string, body []byte, contentType string) (*Response, error) {
	ch, ok := req.Auth.(challenger)
	if !ok || resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	wwwAuth := resp.Header("WWW-Authenticate")
	if wwwAuth == "" {
		return resp, nil
	}

	// The challenge is drained before any exit so its connection is
	// released even when no retry is sent.
	resp.load()

	target, err := http.NewRequest(req.Method, fullURL, nil)
	if err != nil {
		return nil, err
	}
	authHeader, err := ch.Authorize(wwwAuth, target)
	if err != nil {
		return nil, err
	}
	if authHeader == "" {
		return resp, nil
	}
	return c.doRequest(ctx, hc, req, fullURL, body, contentType, authHeader)
}

func (c *Client) doRequest(ctx context.Context, hc *http.Client, req *Request, fullURL string, body []byte, contentType, authHeader string) (*Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, fullURL, reader)
	if err != nil {
		return nil, err
	}

	for k, v := range c.defaultHeaders {
		httpReq.Header.Set(k, v)
	}

	multipartBody := strings.HasPrefix(contentType, "multipart/")
	if contentType != "" && !multipartBody {
		httpReq.Header.Set("Content-Type", contentType)
	}

	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	// The boundary must match the body, so it overrides any caller value.
	if multipartBody {
		httpReq.Header.Set("Content-Type", contentType)
	}

	names := make([]string, 0, len(req.Cookies))
	for name := range req.Cookies {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		httpReq.AddCookie(&http.Cookie{Name: name, Value: req.Cookies[name]})
	}

	if req.Auth != nil {
		if err := req.Auth.Apply(httpReq, body); err != nil {
			return nil, fmt.Errorf("failed to apply authentication: %w", err)
		}
	}

	if authHeader != "" {
		httpReq.Header.Set("Authorization", authHeader)
	}

	logger.Debug("sending request",
		zap.String("method", httpReq.Method),
		zap.String("url", httpReq.URL.String()),
	)

	start := time.Now()
	httpResp, err := hc.Do(httpReq)
	duration := time.Since(start)

	if err != nil {
		return nil, err
	}

	sent := httpResp.Request
	if sent == nil {
		sent = httpReq
	}
	// A redirected request carries the response that caused it.
	sentBody := body
	if sent.Response != nil {
		sentBody = nil
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Status:     httpResp.Status,
		URL:        sent.URL.String(),
		Headers:    httpResp.Header,
		Cookies:    httpResp.Cookies(),
		Duration:   duration,
		Request: &SentRequest{
			Method:  sent.Method,
			URL:     sent.URL.String(),
			Headers: sent.Header.Clone(),
			Body:    sentBody,
		},
		stream: httpResp.Body,
	}, nil
}

func (c *Client) buildURL(req *Request) (string, error) {
	r := *req
	if c.baseURL != "" && !strings.Contains(r.URL, "://") {
		r.URL = strings.TrimRight(c.baseURL, "/") + "/" + strings.TrimLeft(r.URL, "/")
	}

	fullURL, err := r.BuildURL()
	if err != nil {
		return "", err
	}
	if err := ValidateURL(fullURL); err != nil {
		return "", err
	}
	return fullURL, nil
}

// clientFor derives a client carrying the request's redirect policy and,
// when needed, its own transport for proxy, TLS verification and client certificate.
func (c *Client) clientFor(req *Request) (*http.Client, error) {
	hc := *c.httpClient

	follow := c.followRedirect
	if req.AllowRedirects != nil {
		follow = *req.AllowRedirects
	}
	maxRedirects := c.maxRedirects
	hc.CheckRedirect = func(_ *http.Request, via []*http.Request) error {
		if !follow || len(via) >= maxRedirects {
			return http.ErrUseLastResponse
		}
		return nil
	}

	if req.Proxy == "" && req.Verify == nil && req.Cert == nil {
		return &hc, nil
	}

	base, ok := c.transport.(*http.Transport)
	if !ok {
		return nil, fmt.Errorf("per-request proxy, verify or cert requires *http.Transport, got %T", c.transport)
	}
	transport := base.Clone()

	if req.Proxy != "" {
		proxyURL, err := neturl.Parse(req.Proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	if req.Verify != nil || req.Cert != nil {
		if transport.TLSClientConfig == nil {
			transport.TLSClientConfig = &tls.Config{}
		}
		if req.Verify != nil {
			transport.TLSClientConfig.InsecureSkipVerify = !*req.Verify
		}
		if req.Cert != nil {
			cert, err := tls.LoadX509KeyPair(req.Cert.CertFile, req.Cert.KeyFile)
			if err != nil {
				return nil, fmt.Errorf("failed to load client certificate: %w", err)
			}
			transport.TLSClientConfig.Certificates = append(transport.TLSClientConfig.Certificates, cert)
		}
	}

	hc.Transport = transport
	return &hc, nil
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	defer c.cancel()
	return c.ReadCloser.Close()
}

// ValidateURL checks that a URL is well-formed, uses an allowed scheme and
// names a valid host name or IP address.
func ValidateURL(rawURL string) error {
	u, err := neturl.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported URL scheme: %q (only http and https are allowed)", u.Scheme)
	}

	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}

	if !valid.IsHost(u.Hostname()) {
		return fmt.Errorf("invalid URL host: %q", u.Hostname())
	}

	if !valid.IsRequestURL(rawURL) {
		return fmt.Errorf("invalid URL: %q", rawURL)
	}

	return nil
}
