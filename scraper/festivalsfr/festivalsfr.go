// Package festivalsfr reads the French festival agenda on festivals.fr. The
// agenda grows through a "Voir plus" button; detail pages spread the
// location over venue, city and region fields.
package festivalsfr

import (
	"strings"

	"festival-scraper/scraper"
	"festival-scraper/services"
)

const (
	Name           = "festivalsfr"
	DefaultBaseURL = "https://www.festivals.fr"
)

func New(baseURL string) *scraper.SelectorAdapter {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}

	return &scraper.SelectorAdapter{
		SourceName:   Name,
		SourceLocale: services.LocaleFrench,
		Paging: scraper.PaginationSpec{
			Kind:             scraper.PaginationLoadMore,
			StartURL:         base + "/agenda/",
			LoadMoreSelector: "button.js-load-more, a.load-more",
			WaitSelector:     ".agenda-list",
			Browser:          true,
		},
		Listing: scraper.ListingSelectors{
			Item:     ".agenda-list .event-card",
			Name:     []string{".event-card__title"},
			Link:     []string{"a.event-card__link", ".event-card__title a"},
			Date:     []string{".event-card__date"},
			Location: []string{".event-card__city", ".event-card__region"},
		},
		Detail: scraper.DetailSelectors{
			Date:     []string{".event-dates"},
			Location: []string{".event-venue", ".event-city", ".event-region"},
			JSONLD:   true,
		},
	}
}
