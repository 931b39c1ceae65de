// Package festivalinfo reads the Dutch festival agenda on festivalinfo.nl.
// The agenda is server-rendered and paged with ?page=N.
package festivalinfo

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"festival-scraper/scraper"
	"festival-scraper/services"
)

const (
	Name           = "festivalinfo"
	DefaultBaseURL = "https://www.festivalinfo.nl"
)

var festivalIDRe = regexp.MustCompile(`/festival/(\d+)/`)

// New returns the adapter rooted at baseURL (DefaultBaseURL when empty).
func New(baseURL string) *scraper.SelectorAdapter {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	listURL := base + "/festivals/"

	return &scraper.SelectorAdapter{
		SourceName:   Name,
		SourceLocale: services.LocaleDutch,
		Paging: scraper.PaginationSpec{
			Kind:     scraper.PaginationPaged,
			StartURL: listURL,
			URLFor:   scraper.QueryPageURL(listURL, "page", false),
		},
		Listing: scraper.ListingSelectors{
			Item:     "#festivals .festival_rows_info",
			Name:     []string{".festival_name a", ".festival_name"},
			Link:     []string{".festival_name a", "a[href*='/festival/']"},
			Date:     []string{".festival_date"},
			Location: []string{".festival_location"},
			ID:       festivalID,
		},
		Detail: scraper.DetailSelectors{
			Date:     []string{"#festival_info .festival_dates", ".festival_date"},
			Location: []string{"#festival_info .festival_location", ".venue_name", ".venue_city"},
			JSONLD:   true,
		},
	}
}

// festivalID takes the numeric id out of /festival/<id>/<slug>/.
func festivalID(_ *goquery.Selection, detailURL string) string {
	if m := festivalIDRe.FindStringSubmatch(detailURL); m != nil {
		return m[1]
	}
	return ""
}
