// Package festivalfans reads the agenda on festivalfans.nl. Items carry a
// data-id attribute and the list grows through a "Meer laden" button.
package festivalfans

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"festival-scraper/scraper"
	"festival-scraper/services"
)

const (
	Name           = "festivalfans"
	DefaultBaseURL = "https://festivalfans.nl"
)

func New(baseURL string) *scraper.SelectorAdapter {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}

	return &scraper.SelectorAdapter{
		SourceName:   Name,
		SourceLocale: services.LocaleDutch,
		Paging: scraper.PaginationSpec{
			Kind:             scraper.PaginationLoadMore,
			StartURL:         base + "/agenda/",
			LoadMoreSelector: "#load-more",
			WaitSelector:     ".agenda",
			Browser:          true,
		},
		Listing: scraper.ListingSelectors{
			Item:     ".agenda .agenda-item[data-id]",
			Name:     []string{".agenda-item__title"},
			Link:     []string{"", "a[href]"},
			Date:     []string{".agenda-item__date"},
			Location: []string{".agenda-item__location"},
			ID: func(item *goquery.Selection, _ string) string {
				return scraper.Attr(item, "data-id")
			},
		},
		Detail: scraper.DetailSelectors{
			Date:     []string{".event-info .date"},
			Location: []string{".event-info .location"},
			JSONLD:   true,
		},
	}
}
