package fetcher

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/familycheck/internal/resilience"
)

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	UserAgent   string
	Timeout     time.Duration
	MaxRetries  int
	RatePerSec  float64       // per-host request rate
	Burst       int           // per-host burst
	BaseBackoff time.Duration // first retry delay, doubled per attempt
	MaxBytes    int64         // response size cap

	// BreakerThreshold consecutive failed downloads open a host's circuit
	// for BreakerReset.
	BreakerThreshold int
	BreakerReset     time.Duration
}

// AdaptiveLimiter wraps a rate.Limiter that backs off on 429 responses.
// On success it raises the rate by 20% (up to 2x initial); on 429 it
// halves it (down to initial/4).
type AdaptiveLimiter struct {
	mu          sync.Mutex
	limiter     *rate.Limiter
	maxRate     rate.Limit
	minRate     rate.Limit
	currentRate rate.Limit
}

// NewAdaptiveLimiter creates an adaptive rate limiter.
func NewAdaptiveLimiter(initialRate rate.Limit, burst int) *AdaptiveLimiter {
	return &AdaptiveLimiter{
		limiter:     rate.NewLimiter(initialRate, burst),
		maxRate:     initialRate * 2,
		minRate:     initialRate / 4,
		currentRate: initialRate,
	}
}

// Wait blocks until the limiter allows an event.
func (a *AdaptiveLimiter) Wait(ctx context.Context) error {
	return a.limiter.Wait(ctx)
}

// OnSuccess increases the rate by 20%, up to 2x initial.
func (a *AdaptiveLimiter) OnSuccess() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.currentRate = min(a.currentRate*1.2, a.maxRate)
	a.limiter.SetLimit(a.currentRate)
}

// OnRateLimit halves the rate.
func (a *AdaptiveLimiter) OnRateLimit() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.currentRate = max(a.currentRate*0.5, a.minRate)
	a.limiter.SetLimit(a.currentRate)
	zap.L().Warn("adaptive rate limit: reducing rate after 429",
		zap.Float64("new_rate", float64(a.currentRate)),
	)
}

// Limit returns the current rate limit.
func (a *AdaptiveLimiter) Limit() rate.Limit {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.currentRate
}

// HTTPFetcher downloads list exports with per-host rate limiting, retry on
// 429 and 5xx responses, and a per-host circuit breaker.
type HTTPFetcher struct {
	client *http.Client
	opts   HTTPOptions

	retry    resilience.RetryConfig
	breakers *resilience.HostBreakers

	mu       sync.Mutex
	limiters map[string]*AdaptiveLimiter
}

// NewHTTPFetcher creates a new HTTPFetcher with the given options.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "familycheck/1.0"
	}
	if opts.RatePerSec <= 0 {
		opts.RatePerSec = 5
	}
	if opts.Burst <= 0 {
		opts.Burst = 5
	}
	if opts.BaseBackoff == 0 {
		opts.BaseBackoff = time.Second
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = 10 << 20
	}
	if opts.BreakerThreshold <= 0 {
		opts.BreakerThreshold = 5
	}
	if opts.BreakerReset <= 0 {
		opts.BreakerReset = 30 * time.Second
	}

	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = opts.MaxRetries
	retry.InitialBackoff = opts.BaseBackoff

	breaker := resilience.DefaultCircuitBreakerConfig()
	breaker.FailureThreshold = opts.BreakerThreshold
	breaker.ResetTimeout = opts.BreakerReset
	breaker.ShouldTrip = func(err error) bool {
		return err != nil && !errors.Is(err, context.Canceled)
	}

	return &HTTPFetcher{
		client: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		opts:     opts,
		retry:    retry,
		breakers: resilience.NewHostBreakers(breaker, logCircuitChange),
		limiters: make(map[string]*AdaptiveLimiter),
	}
}

func logCircuitChange(host string, from, to resilience.CircuitState) {
	zap.L().Warn("circuit state changed",
		zap.String("host", host),
		zap.Stringer("from", from),
		zap.Stringer("to", to),
	)
}

// CircuitStates reports the circuit state of every host contacted so far.
func (f *HTTPFetcher) CircuitStates() map[string]resilience.CircuitState {
	return f.breakers.States()
}

func (f *HTTPFetcher) limiterFor(host string) *AdaptiveLimiter {
	f.mu.Lock()
	defer f.mu.Unlock()
	lim, ok := f.limiters[host]
	if !ok {
		lim = NewAdaptiveLimiter(rate.Limit(f.opts.RatePerSec), f.opts.Burst)
		f.limiters[host] = lim
	}
	return lim
}

func (f *HTTPFetcher) doWithRetry(ctx context.Context, req *http.Request) (*http.Response, error) {
	lim := f.limiterFor(req.URL.Host)

	retry := f.retry
	retry.OnRetry = resilience.RetryLogger(req.URL.Host)

	resp, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (*http.Response, error) {
		if err := lim.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "rate limiter wait")
		}

		resp, err := f.client.Do(req.Clone(ctx))
		if err != nil {
			return nil, resilience.NewTransientError(err, 0)
		}

		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusTooManyRequests {
				lim.OnRateLimit()
			}
			return nil, resilience.NewTransientError(
				eris.Errorf("http %d from %s", resp.StatusCode, req.URL.String()), resp.StatusCode)
		}

		lim.OnSuccess()
		return resp, nil
	})
	if err != nil {
		if resilience.IsTransient(err) {
			return nil, eris.Wrap(err, "all retries exhausted")
		}
		return nil, err
	}
	return resp, nil
}

// Download fetches rawURL and returns the response body.
func (f *HTTPFetcher) Download(ctx context.Context, rawURL string) (io.ReadCloser, string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, "", eris.Errorf("download: invalid url %q", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", eris.Wrap(err, "create request")
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)

	resp, err := resilience.ExecuteVal(ctx, f.breakers.Get(u.Host), func(ctx context.Context) (*http.Response, error) {
		return f.doWithRetry(ctx, req)
	})
	if err != nil {
		return nil, "", eris.Wrapf(err, "download %s", u.Host)
	}

	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, "", eris.Errorf("download: unexpected status %d from %s", resp.StatusCode, rawURL)
	}

	return resp.Body, resp.Header.Get("Content-Type"), nil
}

// FetchText downloads rawURL and decodes it as list text.
func (f *HTTPFetcher) FetchText(ctx context.Context, rawURL string) (string, error) {
	body, _, err := f.Download(ctx, rawURL)
	if err != nil {
		return "", err
	}
	defer body.Close() //nolint:errcheck

	return DecodeText(io.LimitReader(body, f.opts.MaxBytes))
}

// FetchList downloads rawURL and returns its list text. CSV responses
// (by content type or .csv path) are reduced to the column in opts.
func (f *HTTPFetcher) FetchList(ctx context.Context, rawURL string, opts ListOptions) (string, error) {
	body, contentType, err := f.Download(ctx, rawURL)
	if err != nil {
		return "", err
	}
	defer body.Close() //nolint:errcheck

	text, err := DecodeText(io.LimitReader(body, f.opts.MaxBytes))
	if err != nil {
		return "", err
	}
	if !isCSV(rawURL, contentType) {
		return text, nil
	}

	cells, err := ReadCSVColumn(strings.NewReader(text), opts)
	if err != nil {
		return "", err
	}
	return joinCells(cells), nil
}

func isCSV(rawURL, contentType string) bool {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil && mt == "text/csv" {
		return true
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return strings.HasSuffix(strings.ToLower(u.Path), ".csv") || u.Query().Get("format") == "csv"
}
