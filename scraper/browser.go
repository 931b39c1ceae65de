package scraper

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"festival-scraper/models"
	"festival-scraper/utils"
)

// Page is a live browser tab. The scroll and load-more drivers poll it
// between actions.
type Page interface {
	Height(ctx context.Context) (int64, error)
	ScrollToBottom(ctx context.Context) error
	// ClickLoadMore clicks the first element matching selector. It reports
	// false when the control is absent, hidden or disabled.
	ClickLoadMore(ctx context.Context, selector string) (bool, error)
	Document(ctx context.Context) (*Document, error)
	Close()
}

// Browser opens pages that need a JavaScript runtime.
type Browser interface {
	Open(ctx context.Context, pageURL string, opts FetchOptions) (Page, error)
}

// BrowserConfig configures the Chrome process.
type BrowserConfig struct {
	ChromeBin string
	Headless  bool
	UserAgent string
}

// ChromeBrowser drives one headless Chrome process. Every navigation gets its
// own tab, so it is safe for concurrent use.
type ChromeBrowser struct {
	browserCtx context.Context
	cancel     context.CancelFunc
	pacer      *Pacer
	retry      *utils.RetryConfig
	logger     *utils.Logger
}

// NewChromeBrowser starts Chrome. Close releases it.
func NewChromeBrowser(cfg BrowserConfig, pacer *Pacer, retry *utils.RetryConfig, logger *utils.Logger) (*ChromeBrowser, error) {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	chromeBin := cfg.ChromeBin
	if chromeBin == "" {
		chromeBin = findChromeBinary()
	}
	logger.Info("[browser] Using browser binary: %s", chromeBin)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.WindowSize(1366, 900),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	if chromeBin != "" {
		opts = append(opts, chromedp.ExecPath(chromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))

	// An empty Run starts the process so a missing binary fails here.
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("browser: start chrome: %w", err)
	}

	return &ChromeBrowser{
		browserCtx: browserCtx,
		cancel: func() {
			cancelBrowser()
			cancelAlloc()
		},
		pacer:  pacer,
		retry:  withFetchDefaults(retry, logger),
		logger: logger,
	}, nil
}

// Close shuts Chrome down.
func (b *ChromeBrowser) Close() {
	b.cancel()
}

// WithPacer returns a view of b that paces its navigations with p. Views
// share the Chrome process; close only the original.
func (b *ChromeBrowser) WithPacer(p *Pacer) *ChromeBrowser {
	view := *b
	view.pacer = p
	return &view
}

// Fetch renders pageURL and returns its final HTML.
func (b *ChromeBrowser) Fetch(ctx context.Context, pageURL string, opts FetchOptions) (*Document, error) {
	var doc *Document
	err := b.retry.Do(ctx, "render "+pageURL, func(ctx context.Context) error {
		if err := b.pacer.Wait(ctx); err != nil {
			return &models.FetchError{URL: pageURL, Err: err}
		}
		page, err := b.navigate(ctx, pageURL, opts)
		if err != nil {
			return err
		}
		defer page.Close()

		d, err := page.Document(ctx)
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

// Open navigates a new tab to pageURL and leaves it open for the caller.
func (b *ChromeBrowser) Open(ctx context.Context, pageURL string, opts FetchOptions) (Page, error) {
	var page *chromePage
	err := b.retry.Do(ctx, "open "+pageURL, func(ctx context.Context) error {
		if err := b.pacer.Wait(ctx); err != nil {
			return &models.FetchError{URL: pageURL, Err: err}
		}
		p, err := b.navigate(ctx, pageURL, opts)
		if err != nil {
			return err
		}
		page = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return page, nil
}

func (b *ChromeBrowser) navigate(ctx context.Context, pageURL string, opts FetchOptions) (*chromePage, error) {
	tabCtx, cancelTab := chromedp.NewContext(b.browserCtx)
	stop := context.AfterFunc(ctx, cancelTab)
	page := &chromePage{
		ctx:     tabCtx,
		url:     pageURL,
		timeout: opts.timeout(),
		close: func() {
			stop()
			cancelTab()
		},
	}

	navCtx, cancelNav := context.WithTimeout(tabCtx, opts.timeout())
	defer cancelNav()

	resp, err := chromedp.RunResponse(navCtx, chromedp.Navigate(pageURL))
	if err != nil {
		page.Close()
		return nil, navigationError(ctx, pageURL, err)
	}
	if resp != nil && resp.Status >= 400 {
		page.Close()
		return nil, &models.FetchError{
			URL:        pageURL,
			StatusCode: int(resp.Status),
			Err:        fmt.Errorf("unexpected status %d %s", resp.Status, resp.StatusText),
		}
	}

	if opts.DismissConsent {
		var clicked bool
		if err := chromedp.Run(navCtx, chromedp.Evaluate(consentScript, &clicked)); err != nil {
			b.logger.Debug("[browser] consent script failed on %s: %v", pageURL, err)
		} else if clicked {
			b.logger.Debug("[browser] dismissed consent banner on %s", pageURL)
			_ = chromedp.Run(navCtx, chromedp.Sleep(800*time.Millisecond))
		}
	}

	if opts.WaitSelector != "" {
		if err := chromedp.Run(navCtx, chromedp.WaitReady(opts.WaitSelector, chromedp.ByQuery)); err != nil {
			page.Close()
			return nil, navigationError(ctx, pageURL, fmt.Errorf("wait for %q: %w", opts.WaitSelector, err))
		}
	}

	return page, nil
}

// navigationError classifies chromedp failures. Chrome network errors
// (net::ERR_*) become net.Error so the retry predicate treats them as
// transient, like their net/http counterparts.
func navigationError(ctx context.Context, pageURL string, err error) error {
	if ctx.Err() != nil {
		return &models.FetchError{URL: pageURL, Err: ctx.Err()}
	}
	if strings.Contains(err.Error(), "net::ERR_") {
		err = &net.OpError{Op: "navigate", Net: "tcp", Err: err}
	}
	return &models.FetchError{URL: pageURL, Err: err}
}

type chromePage struct {
	ctx     context.Context
	url     string
	timeout time.Duration
	close   func()
}

func (p *chromePage) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(p.ctx, p.timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return &models.FetchError{URL: p.url, Err: err}
	}
	return nil
}

func (p *chromePage) Height(ctx context.Context) (int64, error) {
	var h int64
	err := p.run(ctx, chromedp.Evaluate(heightScript, &h))
	return h, err
}

func (p *chromePage) ScrollToBottom(ctx context.Context) error {
	return p.run(ctx, chromedp.Evaluate(scrollScript, nil))
}

func (p *chromePage) ClickLoadMore(ctx context.Context, selector string) (bool, error) {
	var clicked bool
	err := p.run(ctx, chromedp.Evaluate(fmt.Sprintf(clickScript, strconv.Quote(selector)), &clicked))
	return clicked, err
}

func (p *chromePage) Document(ctx context.Context) (*Document, error) {
	var html, location string
	if err := p.run(ctx,
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
		chromedp.Location(&location),
	); err != nil {
		return nil, err
	}
	if location == "" {
		location = p.url
	}
	return NewDocument(location, html)
}

func (p *chromePage) Close() {
	p.close()
}

// findChromeBinary locates Chrome/Chromium binary.
func findChromeBinary() string {
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
		"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}

const heightScript = `Math.max(
  document.body ? document.body.scrollHeight : 0,
  document.documentElement ? document.documentElement.scrollHeight : 0
)`

const scrollScript = `window.scrollTo(0, Math.max(document.body.scrollHeight, document.documentElement.scrollHeight))`

const clickScript = `(function (sel) {
  const btn = document.querySelector(sel);
  if (!btn) {
    return false;
  }
  if (btn.disabled || btn.getAttribute('aria-disabled') === 'true' || btn.offsetParent === null) {
    return false;
  }
  btn.scrollIntoView({block: 'center'});
  btn.click();
  return true;
})(%s)`

// consentScript tries the common consent-management buttons, then any button
// whose label reads like "accept all" in one of the supported languages.
const consentScript = `(function () {
  const selectors = [
    '#onetrust-accept-btn-handler',
    '#didomi-notice-agree-button',
    '#CybotCookiebotDialogBodyLevelButtonLevelOptinAllowAll',
    'button.fc-cta-consent',
    'button[data-testid="uc-accept-all-button"]',
    'button[aria-label="Accept all"]',
    'button[aria-label="Alles akzeptieren"]',
    'button[aria-label="Alles accepteren"]',
    'button[aria-label="Tout accepter"]'
  ];
  for (const sel of selectors) {
    const btn = document.querySelector(sel);
    if (btn) {
      btn.click();
      return true;
    }
  }
  const labels = /^(accept( all)?|agree|i agree|alles? accepteren|accepteren|akkoord|alle akzeptieren|akzeptieren|tout accepter|accepter|j'accepte)$/i;
  for (const btn of document.querySelectorAll('button, a[role="button"]')) {
    if (labels.test((btn.textContent || '').trim())) {
      btn.click();
      return true;
    }
  }
  return false;
})();`
