package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"festival-scraper/models"
	"festival-scraper/utils"
)

const maxBodyBytes = 8 << 20

// FetchOptions tune a single navigation.
type FetchOptions struct {
	// Timeout bounds one attempt. Zero means 45s.
	Timeout time.Duration
	// WaitSelector is awaited before the HTML is captured (browser only).
	WaitSelector string
	UserAgent    string
	// DismissConsent clicks a cookie banner when one is present (browser only).
	DismissConsent bool
}

func (o FetchOptions) timeout() time.Duration {
	if o.Timeout <= 0 {
		return 45 * time.Second
	}
	return o.Timeout
}

// Fetcher loads one page. Implementations pace and retry internally and
// return *models.FetchError on failure.
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string, opts FetchOptions) (*Document, error)
}

// Pacer spaces requests to one source: a token bucket caps the rate and a
// randomized delay precedes every request.
type Pacer struct {
	limiter *rate.Limiter
	delay   utils.DelayWindow
}

// NewPacer allows perMinute requests (burst 1) and waits inside delay before each.
func NewPacer(perMinute int, delay utils.DelayWindow) *Pacer {
	limit := rate.Inf
	if perMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(perMinute))
	}
	return &Pacer{limiter: rate.NewLimiter(limit, 1), delay: delay}
}

// Wait blocks until the next request may go out.
func (p *Pacer) Wait(ctx context.Context) error {
	if p == nil {
		return ctx.Err()
	}
	if err := p.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return p.delay.Wait(ctx)
}

// HTTPFetcher fetches server-rendered pages with net/http.
type HTTPFetcher struct {
	client *http.Client
	pacer  *Pacer
	retry  *utils.RetryConfig
	logger *utils.Logger
}

// NewHTTPFetcher wires a client, pacer and retry policy. A nil client uses
// a default with sane connection limits; a retry without predicate retries
// only transient fetch errors.
func NewHTTPFetcher(client *http.Client, pacer *Pacer, retry *utils.RetryConfig, logger *utils.Logger) *HTTPFetcher {
	if client == nil {
		client = &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	return &HTTPFetcher{client: client, pacer: pacer, retry: withFetchDefaults(retry, logger), logger: logger}
}

// withFetchDefaults copies r, filling in the transient-error predicate and logger.
func withFetchDefaults(r *utils.RetryConfig, logger *utils.Logger) *utils.RetryConfig {
	if r == nil {
		r = &utils.RetryConfig{MaxAttempts: 3, BaseDelay: 2 * time.Second, MaxDelay: 30 * time.Second, Jitter: 0.3}
	}
	c := *r
	if c.Retryable == nil {
		c.Retryable = models.IsRetryable
	}
	if c.Logger == nil {
		c.Logger = logger
	}
	return &c
}

func (f *HTTPFetcher) Fetch(ctx context.Context, pageURL string, opts FetchOptions) (*Document, error) {
	var doc *Document
	err := f.retry.Do(ctx, "fetch "+pageURL, func(ctx context.Context) error {
		if err := f.pacer.Wait(ctx); err != nil {
			return &models.FetchError{URL: pageURL, Err: err}
		}
		d, err := f.fetchOnce(ctx, pageURL, opts)
		if err != nil {
			return err
		}
		doc = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (f *HTTPFetcher) fetchOnce(ctx context.Context, pageURL string, opts FetchOptions) (*Document, error) {
	ctx, cancel := context.WithTimeout(ctx, opts.timeout())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, &models.FetchError{URL: pageURL, Err: err}
	}
	if opts.UserAgent != "" {
		req.Header.Set("User-Agent", opts.UserAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "nl,de;q=0.9,en;q=0.8,fr;q=0.7")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &models.FetchError{URL: pageURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &models.FetchError{
			URL:        pageURL,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status %s", resp.Status),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &models.FetchError{URL: pageURL, Err: err}
	}

	f.logger.Debug("[fetch] %s -> %d (%d bytes)", pageURL, resp.StatusCode, len(body))
	return NewDocument(resp.Request.URL.String(), string(body))
}
