package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout bounds a single request.
	DefaultTimeout = 20 * time.Second

	// DefaultUserAgent identifies the tool to source operators.
	DefaultUserAgent = "bibfill (https://github.com/matsen/bibfill)"

	// MaxResults is the number of candidates requested from search endpoints.
	MaxResults = 10

	maxBodySize = 16 << 20
)

// Cache stores raw responses between runs.
type Cache interface {
	Get(ctx context.Context, key string) (status int, body []byte, found bool, err error)
	Put(ctx context.Context, key string, status int, body []byte) error
}

// Settings are shared by every source built in one run.
type Settings struct {
	Email      string // Contact address, sent in the User-Agent and to polite pools
	APIKey     string // Semantic Scholar key
	BaseURL    string // Overrides the source endpoint (for testing)
	UserAgent  string
	Timeout    time.Duration
	HTTPClient *http.Client
	Cache      Cache
	Logger     *zap.Logger
}

// Option configures Settings.
type Option func(*Settings)

// WithEmail sets the contact email.
func WithEmail(email string) Option {
	return func(s *Settings) { s.Email = email }
}

// WithAPIKey sets the API key for sources that accept one.
func WithAPIKey(key string) Option {
	return func(s *Settings) { s.APIKey = key }
}

// WithBaseURL sets a custom endpoint (for testing).
func WithBaseURL(u string) Option {
	return func(s *Settings) { s.BaseURL = u }
}

// WithUserAgent sets the User-Agent product token.
func WithUserAgent(ua string) Option {
	return func(s *Settings) { s.UserAgent = ua }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(s *Settings) { s.Timeout = d }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(s *Settings) { s.HTTPClient = hc }
}

// WithCache enables the response cache.
func WithCache(c Cache) Option {
	return func(s *Settings) { s.Cache = c }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Settings) { s.Logger = l }
}

// NewSettings applies opts over the defaults.
func NewSettings(opts ...Option) Settings {
	s := Settings{
		UserAgent: DefaultUserAgent,
		Timeout:   DefaultTimeout,
	}
	for _, opt := range opts {
		opt(&s)
	}
	if s.Logger == nil {
		s.Logger = zap.NewNop()
	}
	return s
}

// Endpoint returns BaseURL when set, def otherwise.
func (s Settings) Endpoint(def string) string {
	if s.BaseURL != "" {
		return s.BaseURL
	}
	return def
}

// Fetcher executes requests for one source, waiting out its politeness
// delay before every network request.
type Fetcher struct {
	name      string
	client    *http.Client
	limiter   *rate.Limiter
	minDelay  time.Duration
	userAgent string
	cache     Cache
	logger    *zap.Logger

	rateHeaders bool
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithRateLimitHeaders makes the fetcher slow down when responses carry
// X-Rate-Limit-Limit and X-Rate-Limit-Interval headers.
func WithRateLimitHeaders() FetcherOption {
	return func(f *Fetcher) { f.rateHeaders = true }
}

// NewFetcher creates a fetcher for the named source.
func NewFetcher(name string, delay time.Duration, s Settings, opts ...FetcherOption) *Fetcher {
	client := s.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: s.Timeout}
	}
	ua := s.UserAgent
	if s.Email != "" {
		ua += " mailto:" + s.Email
	}
	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}
	f := &Fetcher{
		name:      name,
		client:    client,
		limiter:   rate.NewLimiter(limit, 1),
		minDelay:  delay,
		userAgent: ua,
		cache:     s.Cache,
		logger:    s.Logger.With(zap.String("source", name)),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Do executes req. Cached responses bypass the rate limiter.
func (f *Fetcher) Do(ctx context.Context, req *http.Request) (*Response, error) {
	key := ""
	if f.cache != nil && req.Method == http.MethodGet {
		key = f.name + " " + req.URL.String()
		status, body, found, err := f.cache.Get(ctx, key)
		if err != nil {
			f.logger.Warn("cache read failed", zap.Error(err))
		} else if found {
			f.logger.Debug("cache hit", zap.String("url", req.URL.String()))
			return &Response{URL: req.URL.String(), Status: status, Body: body, Cached: true}, nil
		}
	}

	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req = req.WithContext(ctx)
	req.Header.Set("User-Agent", f.userAgent)
	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: reading body: %v", ErrNetwork, err)
	}
	out := &Response{
		URL:      req.URL.String(),
		Status:   resp.StatusCode,
		Body:     body,
		Header:   resp.Header,
		Duration: time.Since(start),
	}
	f.logger.Debug("response",
		zap.String("url", out.URL),
		zap.Int("status", out.Status),
		zap.Duration("elapsed", out.Duration))

	if f.rateHeaders {
		f.adjustRate(resp.Header)
	}
	if key != "" && (out.Status == http.StatusOK || out.Status == http.StatusNotFound) {
		if err := f.cache.Put(ctx, key, out.Status, body); err != nil {
			f.logger.Warn("cache write failed", zap.Error(err))
		}
	}
	return out, nil
}

// adjustRate lowers the request rate to the one advertised by the source,
// never going faster than the configured delay.
func (f *Fetcher) adjustRate(h http.Header) {
	limit, err := strconv.Atoi(h.Get("X-Rate-Limit-Limit"))
	if err != nil || limit <= 0 {
		return
	}
	interval, err := time.ParseDuration(h.Get("X-Rate-Limit-Interval"))
	if err != nil || interval <= 0 {
		return
	}
	delay := max(interval/time.Duration(limit), f.minDelay)
	if rate.Every(delay) != f.limiter.Limit() {
		f.logger.Debug("rate limit adjusted", zap.Duration("delay", delay))
		f.limiter.SetLimit(rate.Every(delay))
	}
}

// NewRequest builds a GET request for base with the given query parameters.
func NewRequest(ctx context.Context, base string, params url.Values) (*http.Request, error) {
	u := base
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// PathEscape escapes s for use as trailing URL path segments, keeping its
// slashes. DOIs are routinely placed in paths this way.
func PathEscape(s string) string {
	parts := strings.Split(s, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
