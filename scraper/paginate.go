package scraper

import (
	"context"
	"fmt"
	"time"

	"festival-scraper/utils"
)

const (
	// DefaultStableIterations is how many no-growth scroll/click rounds end a page.
	DefaultStableIterations = 5
	// DefaultMaxClicks caps load-more clicks.
	DefaultMaxClicks = 30
	// DefaultMaxIterations caps scroll rounds on pages that never settle.
	DefaultMaxIterations = 200
	// maxPagedPages guards parameterized paging when no page limit is set.
	maxPagedPages = 1000
)

// PageStats summarises a traversal.
type PageStats struct {
	Pages      int // documents handed to visit
	Failures   int // pages or iterations that failed and were skipped
	Iterations int // scroll/click rounds
	LastPage   int // last page index visited (paged only)
	// Errs holds the error of every counted failure.
	Errs []error
}

func (s *PageStats) fail(err error) {
	s.Failures++
	s.Errs = append(s.Errs, err)
}

// Paginator walks one source and hands each raw document to visit. A visit
// error stops the walk and is returned unchanged.
type Paginator interface {
	Paginate(ctx context.Context, visit func(*Document) error) (PageStats, error)
}

// PagedDriver follows a page index in the query string.
type PagedDriver struct {
	Source  string
	Fetcher Fetcher
	Options FetchOptions
	URLFor  func(page int) string
	// Count returns the number of listing elements on a page; zero ends the walk.
	Count func(*Document) int
	// TotalPages parses an explicit page count, or returns 0 when unknown.
	TotalPages func(*Document) int
	StartPage  int
	MaxPages   int
	Budget     *FailureBudget
	Logger     *utils.Logger
}

func (d *PagedDriver) Paginate(ctx context.Context, visit func(*Document) error) (PageStats, error) {
	var stats PageStats
	logger := loggerOr(d.Logger)
	budget := budgetOr(d.Budget, d.Source)

	page := d.StartPage
	if page < 1 {
		page = 1
	}
	limit := d.MaxPages
	if limit <= 0 {
		limit = maxPagedPages
	}
	total := 0

	for attempted := 0; attempted < limit; attempted, page = attempted+1, page+1 {
		if total > 0 && page > total {
			logger.Info("[%s] Reached last page %d", d.Source, total)
			break
		}
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		pageURL := d.URLFor(page)
		var doc *Document
		err := budget.Do(func() error {
			var ferr error
			doc, ferr = d.Fetcher.Fetch(ctx, pageURL, d.Options)
			return ferr
		})
		if err != nil {
			if IsFatal(err) {
				return stats, err
			}
			if ctx.Err() != nil {
				return stats, ctx.Err()
			}
			stats.fail(err)
			logger.Warn("[%s] Page %d failed, continuing: %v", d.Source, page, err)
			continue
		}

		doc.Page = page
		if total == 0 && d.TotalPages != nil {
			total = d.TotalPages(doc)
		}
		if d.Count != nil && d.Count(doc) == 0 {
			logger.Info("[%s] Page %d has no listings, stopping", d.Source, page)
			break
		}

		stats.Pages++
		stats.LastPage = page
		if err := visit(doc); err != nil {
			return stats, err
		}
	}
	return stats, nil
}

// ScrollDriver scrolls a client-rendered page until its height stops growing.
type ScrollDriver struct {
	Source  string
	Browser Browser
	URL     string
	Options FetchOptions
	// StableIterations no-growth rounds in a row end the walk.
	StableIterations int
	MaxIterations    int
	// Settle is waited after every scroll before measuring.
	Settle time.Duration
	// ExtraWait is added before the final stability check.
	ExtraWait utils.DelayWindow
	Budget    *FailureBudget
	Logger    *utils.Logger
	Sleep     func(ctx context.Context, d time.Duration) error
}

func (d *ScrollDriver) Paginate(ctx context.Context, visit func(*Document) error) (PageStats, error) {
	stable := d.StableIterations
	if stable < 1 {
		stable = DefaultStableIterations
	}
	maxIter := d.MaxIterations
	if maxIter < 1 {
		maxIter = DefaultMaxIterations
	}
	g := growthLoop{
		source: d.Source, stable: stable, maxRounds: maxIter,
		settle: d.Settle, extra: d.ExtraWait, sleep: d.Sleep,
		budget: budgetOr(d.Budget, d.Source), logger: loggerOr(d.Logger),
	}
	return g.run(ctx, d.Browser, d.URL, d.Options, visit, func(ctx context.Context, p Page) (bool, error) {
		return true, p.ScrollToBottom(ctx)
	})
}

// LoadMoreDriver clicks a "load more" control until it disappears.
type LoadMoreDriver struct {
	Source   string
	Browser  Browser
	URL      string
	Options  FetchOptions
	Selector string
	// MaxClicks caps the clicks on sites that never remove the control.
	MaxClicks        int
	StableIterations int
	Settle           time.Duration
	ExtraWait        utils.DelayWindow
	Budget           *FailureBudget
	Logger           *utils.Logger
	Sleep            func(ctx context.Context, d time.Duration) error
}

func (d *LoadMoreDriver) Paginate(ctx context.Context, visit func(*Document) error) (PageStats, error) {
	stable := d.StableIterations
	if stable < 1 {
		stable = DefaultStableIterations
	}
	maxClicks := d.MaxClicks
	if maxClicks < 1 {
		maxClicks = DefaultMaxClicks
	}
	g := growthLoop{
		source: d.Source, stable: stable, maxRounds: maxClicks,
		settle: d.Settle, extra: d.ExtraWait, sleep: d.Sleep,
		budget: budgetOr(d.Budget, d.Source), logger: loggerOr(d.Logger),
	}
	return g.run(ctx, d.Browser, d.URL, d.Options, visit, func(ctx context.Context, p Page) (bool, error) {
		return p.ClickLoadMore(ctx, d.Selector)
	})
}

// growthLoop is the polling loop shared by scroll and load-more: act, wait,
// measure height, stop after `stable` rounds without growth.
type growthLoop struct {
	source    string
	stable    int
	maxRounds int
	settle    time.Duration
	extra     utils.DelayWindow
	sleep     func(ctx context.Context, d time.Duration) error
	budget    *FailureBudget
	logger    *utils.Logger
}

// act performs one round. more=false means the page has nothing left to load.
type roundFunc func(ctx context.Context, p Page) (more bool, err error)

func (g *growthLoop) run(ctx context.Context, browser Browser, pageURL string, opts FetchOptions,
	visit func(*Document) error, act roundFunc) (PageStats, error) {
	var stats PageStats
	if browser == nil {
		return stats, fmt.Errorf("%s: a browser is required for %s", g.source, pageURL)
	}
	sleep := g.sleep
	if sleep == nil {
		sleep = utils.SleepContext
	}

	var page Page
	for page == nil {
		err := g.budget.Do(func() error {
			var oerr error
			page, oerr = browser.Open(ctx, pageURL, opts)
			return oerr
		})
		if err != nil {
			if IsFatal(err) {
				return stats, err
			}
			if ctx.Err() != nil {
				return stats, ctx.Err()
			}
			stats.fail(err)
			g.logger.Warn("[%s] Opening %s failed, retrying: %v", g.source, pageURL, err)
		}
	}
	defer page.Close()

	var last int64
	if err := g.budget.Do(func() error {
		var herr error
		last, herr = page.Height(ctx)
		return herr
	}); err != nil {
		if IsFatal(err) {
			return stats, err
		}
		stats.fail(err)
	}

	noGrowth := 0
	settled := false
	for !settled && stats.Iterations < g.maxRounds {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		var more bool
		err := g.budget.Do(func() error {
			var aerr error
			more, aerr = act(ctx, page)
			return aerr
		})
		stats.Iterations++
		if err != nil {
			if IsFatal(err) {
				return stats, err
			}
			if ctx.Err() != nil {
				return stats, ctx.Err()
			}
			stats.fail(err)
			g.logger.Warn("[%s] Iteration %d failed, continuing: %v", g.source, stats.Iterations, err)
			continue
		}
		if !more {
			g.logger.Info("[%s] Load-more control gone after %d clicks", g.source, stats.Iterations-1)
			settled = true
			break
		}

		wait := g.settle
		if noGrowth == g.stable-1 {
			wait += g.extra.Next()
		}
		if err := sleep(ctx, wait); err != nil {
			return stats, err
		}

		var height int64
		err = g.budget.Do(func() error {
			var herr error
			height, herr = page.Height(ctx)
			return herr
		})
		if err != nil {
			if IsFatal(err) {
				return stats, err
			}
			if ctx.Err() != nil {
				return stats, ctx.Err()
			}
			stats.fail(err)
			continue
		}

		if height > last {
			last = height
			noGrowth = 0
			continue
		}
		noGrowth++
		if noGrowth >= g.stable {
			g.logger.Info("[%s] Height stable at %d after %d iterations", g.source, last, stats.Iterations)
			settled = true
		}
	}
	if !settled {
		g.logger.Warn("[%s] Stopped at iteration cap %d", g.source, g.maxRounds)
	}

	var doc *Document
	if err := g.budget.Do(func() error {
		var derr error
		doc, derr = page.Document(ctx)
		return derr
	}); err != nil {
		return stats, err
	}
	stats.Pages = 1
	if err := visit(doc); err != nil {
		return stats, err
	}
	return stats, nil
}

func budgetOr(b *FailureBudget, source string) *FailureBudget {
	if b != nil {
		return b
	}
	return NewFailureBudget(source, DefaultFailureThreshold, nil)
}

func loggerOr(l *utils.Logger) *utils.Logger {
	if l != nil {
		return l
	}
	return utils.NewNopLogger()
}
