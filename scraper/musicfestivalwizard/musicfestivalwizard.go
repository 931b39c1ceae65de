// Package musicfestivalwizard reads the festival guide on
// musicfestivalwizard.com, an infinite-scroll listing rendered client-side.
// Detail pages mark their dates up with <time datetime>.
package musicfestivalwizard

import (
	"strings"

	"festival-scraper/scraper"
	"festival-scraper/services"
)

const (
	Name           = "musicfestivalwizard"
	DefaultBaseURL = "https://www.musicfestivalwizard.com"
)

func New(baseURL string) *scraper.SelectorAdapter {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}

	return &scraper.SelectorAdapter{
		SourceName:   Name,
		SourceLocale: services.LocaleEnglish,
		Paging: scraper.PaginationSpec{
			Kind:         scraper.PaginationScroll,
			StartURL:     base + "/all-festivals/",
			WaitSelector: "#festival-list",
			Browser:      true,
		},
		Listing: scraper.ListingSelectors{
			Item:     "#festival-list .festival-item",
			Name:     []string{".festival-title a", ".festival-title"},
			Link:     []string{".festival-title a", "a.festival-link"},
			Date:     []string{".festival-date"},
			Location: []string{".festival-location"},
		},
		Detail: scraper.DetailSelectors{
			Date:         []string{".festival-dates"},
			Location:     []string{".festival-venue", ".festival-location"},
			TimeElements: true,
			Scope:        "article.festival",
		},
	}
}
