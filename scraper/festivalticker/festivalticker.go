// Package festivalticker reads the German festival calendar on
// festivalticker.de. Listing pages are paged with ?seite=N and announce the
// total result count ("123 Festivals gefunden"); detail pages carry
// schema.org Event markup.
package festivalticker

import (
	"regexp"
	"strconv"
	"strings"

	"festival-scraper/scraper"
	"festival-scraper/services"
)

const (
	Name           = "festivalticker"
	DefaultBaseURL = "https://www.festivalticker.de"

	itemSelector = "#festivalliste article.festival"
)

var resultCountRe = regexp.MustCompile(`(?i)(\d[\d.]*)\s+festivals?\s+gefunden`)

func New(baseURL string) *scraper.SelectorAdapter {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	listURL := base + "/alle-festivals/"

	return &scraper.SelectorAdapter{
		SourceName:   Name,
		SourceLocale: services.LocaleGerman,
		Paging: scraper.PaginationSpec{
			Kind:       scraper.PaginationPaged,
			StartURL:   listURL,
			URLFor:     scraper.QueryPageURL(listURL, "seite", false),
			TotalPages: totalPages,
		},
		Listing: scraper.ListingSelectors{
			Item:     itemSelector,
			Name:     []string{"h2 a", "h2"},
			Link:     []string{"h2 a", "a.mehr"},
			Date:     []string{".datum"},
			Location: []string{".ort", ".land"},
		},
		Detail: scraper.DetailSelectors{
			Date:     []string{".festival-datum"},
			Location: []string{".festival-ort"},
			JSONLD:   true,
		},
	}
}

// totalPages derives the page count from the result label and the number of
// items on the first page. Zero means unknown.
func totalPages(doc *scraper.Document) int {
	m := resultCountRe.FindStringSubmatch(doc.Find(".trefferanzahl").Text())
	if m == nil {
		m = resultCountRe.FindStringSubmatch(doc.Root().Text())
	}
	if m == nil {
		return 0
	}
	total, err := strconv.Atoi(strings.ReplaceAll(m[1], ".", ""))
	if err != nil || total == 0 {
		return 0
	}
	perPage := doc.Find(itemSelector).Length()
	if perPage == 0 {
		return 0
	}
	return (total + perPage - 1) / perPage
}
