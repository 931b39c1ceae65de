// Package sources knows every built-in source adapter and applies the
// per-source overrides from the catalog file.
package sources

import (
	"fmt"
	"sort"
	"time"

	"festival-scraper/config"
	"festival-scraper/scraper"
	"festival-scraper/scraper/festivalfans"
	"festival-scraper/scraper/festivalinfo"
	"festival-scraper/scraper/festivalsfr"
	"festival-scraper/scraper/festivalticker"
	"festival-scraper/scraper/musicfestivalwizard"
)

// Factory builds an adapter rooted at baseURL; "" means the site default.
type Factory func(baseURL string) scraper.SourceAdapter

// Builtin lists the compiled-in sources by name.
var Builtin = map[string]Factory{
	festivalinfo.Name:        func(u string) scraper.SourceAdapter { return festivalinfo.New(u) },
	festivalticker.Name:      func(u string) scraper.SourceAdapter { return festivalticker.New(u) },
	musicfestivalwizard.Name: func(u string) scraper.SourceAdapter { return musicfestivalwizard.New(u) },
	festivalsfr.Name:         func(u string) scraper.SourceAdapter { return festivalsfr.New(u) },
	festivalfans.Name:        func(u string) scraper.SourceAdapter { return festivalfans.New(u) },
}

// Entry is one configured source.
type Entry struct {
	Adapter scraper.SourceAdapter
	Enabled bool
	// MaxPages and Delay override the run-wide values when non-zero.
	MaxPages int
	Delay    time.Duration
}

// Name is the adapter's source name.
func (e Entry) Name() string { return e.Adapter.Name() }

// Registry holds the configured sources in name order.
type Registry struct {
	entries []Entry
	byName  map[string]int
}

// New builds a registry from factories and an optional catalog. Catalog
// entries naming an unknown source are an error.
func New(factories map[string]Factory, catalog *config.SourcesFile) (*Registry, error) {
	if catalog != nil {
		for _, o := range catalog.Sources {
			if _, ok := factories[o.Name]; !ok {
				return nil, fmt.Errorf("sources: catalog names unknown source %q", o.Name)
			}
		}
	}

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)

	r := &Registry{byName: make(map[string]int, len(names))}
	for _, name := range names {
		o, _ := catalog.Lookup(name)
		adapter := factories[name](o.BaseURL)
		if adapter.Name() != name {
			return nil, fmt.Errorf("sources: factory %q built adapter %q", name, adapter.Name())
		}
		if o.Browser != nil {
			adapter = withBrowser(adapter, *o.Browser)
		}
		r.byName[name] = len(r.entries)
		r.entries = append(r.entries, Entry{
			Adapter:  adapter,
			Enabled:  o.IsEnabled(),
			MaxPages: o.MaxPages,
			Delay:    time.Duration(o.DelayMs) * time.Millisecond,
		})
	}
	return r, nil
}

// Default builds the registry of built-in sources.
func Default(catalog *config.SourcesFile) (*Registry, error) {
	return New(Builtin, catalog)
}

// All returns every configured source, enabled or not.
func (r *Registry) All() []Entry {
	return append([]Entry(nil), r.entries...)
}

// Get looks a source up by name.
func (r *Registry) Get(name string) (Entry, bool) {
	i, ok := r.byName[name]
	if !ok {
		return Entry{}, false
	}
	return r.entries[i], true
}

// Select resolves the sources to run. No names means every enabled source;
// named sources run even when the catalog disables them.
func (r *Registry) Select(names []string) ([]Entry, error) {
	if len(names) == 0 {
		var out []Entry
		for _, e := range r.entries {
			if e.Enabled {
				out = append(out, e)
			}
		}
		return out, nil
	}

	seen := make(map[string]bool, len(names))
	out := make([]Entry, 0, len(names))
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true
		e, ok := r.Get(name)
		if !ok {
			return nil, fmt.Errorf("unknown source %q (known: %v)", name, r.names())
		}
		out = append(out, e)
	}
	return out, nil
}

func (r *Registry) names() []string {
	out := make([]string, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.Name()
	}
	return out
}

// browserOverride forces listing and detail pages of a paged source through
// (or away from) the headless browser.
type browserOverride struct {
	scraper.SourceAdapter
	browser bool
}

func withBrowser(a scraper.SourceAdapter, browser bool) scraper.SourceAdapter {
	return &browserOverride{SourceAdapter: a, browser: browser}
}

func (b *browserOverride) Pagination() scraper.PaginationSpec {
	spec := b.SourceAdapter.Pagination()
	if spec.Kind == scraper.PaginationPaged {
		spec.Browser = b.browser
	}
	spec.DetailBrowser = b.browser
	return spec
}
