package scraper

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"festival-scraper/models"
	"festival-scraper/services"
	"festival-scraper/utils"
)

// PaginationKind names the traversal a source needs.
type PaginationKind string

const (
	PaginationPaged    PaginationKind = "paged"
	PaginationScroll   PaginationKind = "scroll"
	PaginationLoadMore PaginationKind = "load_more"
)

// PaginationSpec tells the pipeline how to walk a source.
type PaginationSpec struct {
	Kind PaginationKind
	// StartURL is the listing page for scroll/load-more sources.
	StartURL string
	// URLFor builds the URL of a 1-based page for paged sources.
	URLFor func(page int) string
	// TotalPages parses an explicit page count from the first page.
	TotalPages func(*Document) int
	// LoadMoreSelector is the button clicked by the load-more driver.
	LoadMoreSelector string
	// WaitSelector is awaited on client-rendered listing pages.
	WaitSelector string
	// Browser marks listing pages that need JavaScript.
	Browser bool
	// DetailBrowser marks detail pages that need JavaScript.
	DetailBrowser bool
}

// NeedsBrowser reports whether any page of the source needs Chrome.
func (s PaginationSpec) NeedsBrowser() bool {
	return s.Browser || s.DetailBrowser || s.Kind == PaginationScroll || s.Kind == PaginationLoadMore
}

// SourceAdapter is the per-website extraction contract. Everything else in
// the pipeline depends only on this interface.
type SourceAdapter interface {
	Name() string
	Locale() services.Locale
	Pagination() PaginationSpec
	ParseListing(doc *Document) Extraction
	ParseDetail(doc *Document) models.DetailFields
}

// SelectorAdapter implements SourceAdapter from selector tables.
type SelectorAdapter struct {
	SourceName   string
	SourceLocale services.Locale
	Paging       PaginationSpec
	Listing      ListingSelectors
	Detail       DetailSelectors
}

func (a *SelectorAdapter) Name() string               { return a.SourceName }
func (a *SelectorAdapter) Locale() services.Locale    { return a.SourceLocale }
func (a *SelectorAdapter) Pagination() PaginationSpec { return a.Paging }

func (a *SelectorAdapter) ParseListing(doc *Document) Extraction {
	return ExtractListings(doc, a.SourceName, a.Listing)
}

func (a *SelectorAdapter) ParseDetail(doc *Document) models.DetailFields {
	return ExtractDetail(doc, a.Detail)
}

// CountItems returns a counter for the paged driver's empty-page check.
func CountItems(itemSelector string) func(*Document) int {
	return func(doc *Document) int {
		return doc.Find(itemSelector).Length()
	}
}

// QueryPageURL returns a URLFor that sets param=page on base. Page 1 is
// base itself unless firstExplicit is set.
func QueryPageURL(base, param string, firstExplicit bool) func(page int) string {
	return func(page int) string {
		u, err := url.Parse(base)
		if err != nil {
			return base
		}
		q := u.Query()
		if page > 1 || firstExplicit {
			q.Set(param, strconv.Itoa(page))
		} else {
			q.Del(param)
		}
		u.RawQuery = q.Encode()
		return u.String()
	}
}

// DriverConfig carries the run-wide knobs for NewPaginator.
type DriverConfig struct {
	Fetcher          Fetcher
	Browser          Browser
	Options          FetchOptions
	StartPage        int
	MaxPages         int
	StableIterations int
	MaxClicks        int
	Settle           time.Duration
	ExtraWait        utils.DelayWindow
	Budget           *FailureBudget
	Logger           *utils.Logger
}

// NewPaginator builds the driver matching the adapter's pagination kind.
func NewPaginator(a SourceAdapter, cfg DriverConfig) (Paginator, error) {
	spec := a.Pagination()
	opts := cfg.Options
	if spec.WaitSelector != "" {
		opts.WaitSelector = spec.WaitSelector
	}
	budget := budgetOr(cfg.Budget, a.Name())

	switch spec.Kind {
	case PaginationPaged:
		if spec.URLFor == nil {
			return nil, fmt.Errorf("%s: paged source without URLFor", a.Name())
		}
		fetcher := cfg.Fetcher
		if spec.Browser {
			b, ok := cfg.Browser.(Fetcher)
			if !ok {
				return nil, fmt.Errorf("%s: listing pages need a browser", a.Name())
			}
			fetcher = b
		}
		if fetcher == nil {
			return nil, fmt.Errorf("%s: no fetcher configured", a.Name())
		}
		return &PagedDriver{
			Source:     a.Name(),
			Fetcher:    fetcher,
			Options:    opts,
			URLFor:     spec.URLFor,
			Count:      func(doc *Document) int { return a.ParseListing(doc).Seen() },
			TotalPages: spec.TotalPages,
			StartPage:  cfg.StartPage,
			MaxPages:   cfg.MaxPages,
			Budget:     budget,
			Logger:     cfg.Logger,
		}, nil

	case PaginationScroll:
		if cfg.Browser == nil {
			return nil, fmt.Errorf("%s: infinite scroll needs a browser", a.Name())
		}
		return &ScrollDriver{
			Source:           a.Name(),
			Browser:          cfg.Browser,
			URL:              spec.StartURL,
			Options:          opts,
			StableIterations: cfg.StableIterations,
			Settle:           cfg.Settle,
			ExtraWait:        cfg.ExtraWait,
			Budget:           budget,
			Logger:           cfg.Logger,
		}, nil

	case PaginationLoadMore:
		if cfg.Browser == nil {
			return nil, fmt.Errorf("%s: load-more needs a browser", a.Name())
		}
		return &LoadMoreDriver{
			Source:           a.Name(),
			Browser:          cfg.Browser,
			URL:              spec.StartURL,
			Options:          opts,
			Selector:         spec.LoadMoreSelector,
			MaxClicks:        cfg.MaxClicks,
			StableIterations: cfg.StableIterations,
			Settle:           cfg.Settle,
			ExtraWait:        cfg.ExtraWait,
			Budget:           budget,
			Logger:           cfg.Logger,
		}, nil
	}
	return nil, fmt.Errorf("%s: unknown pagination kind %q", a.Name(), spec.Kind)
}
