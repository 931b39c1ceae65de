package scraper

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"festival-scraper/services"
)

// ListingSelectors describe one listing element. Each field lists candidate
// selectors relative to the item; the first one yielding text wins, except
// Date, whose matches are joined with " - " so separate start/end elements
// read as a range, and Location, whose matches are joined as fragments.
type ListingSelectors struct {
	Item     string
	Name     []string
	Link     []string
	Date     []string
	Location []string
	// ID extracts the source's native identifier, if it has one.
	ID func(item *goquery.Selection, detailURL string) string
}

// DetailSelectors describe a detail page. Structured sources are consulted
// before the free-text selectors.
type DetailSelectors struct {
	Date     []string
	Location []string
	// JSONLD reads schema.org Event markup.
	JSONLD bool
	// TimeElements reads <time datetime> elements inside Scope.
	TimeElements bool
	Scope        string
}

// Text returns the normalised text of the first selector that has any.
// An empty selector means the item itself.
func Text(item *goquery.Selection, selectors []string) string {
	for _, sel := range selectors {
		if t := services.NormaliseText(selectFrom(item, sel).First().Text()); t != "" {
			return t
		}
	}
	return ""
}

// Texts returns the non-empty texts of every selector, in selector order.
func Texts(item *goquery.Selection, selectors []string) []string {
	var out []string
	for _, sel := range selectors {
		selectFrom(item, sel).Each(func(_ int, s *goquery.Selection) {
			if t := services.NormaliseText(s.Text()); t != "" {
				out = append(out, t)
			}
		})
	}
	return out
}

// Href returns the href of the first selector with one. An empty selector
// means the item itself, or the item's closest link ancestor.
func Href(item *goquery.Selection, selectors []string) string {
	if len(selectors) == 0 {
		selectors = []string{"", "a[href]"}
	}
	for _, sel := range selectors {
		s := selectFrom(item, sel).First()
		if sel == "" && !s.Is("a") {
			s = s.Closest("a[href]")
		}
		if href, ok := s.Attr("href"); ok && strings.TrimSpace(href) != "" {
			return href
		}
	}
	return ""
}

// Attr returns the first non-empty value of attr on the item or its descendants.
func Attr(item *goquery.Selection, attr string) string {
	if v, ok := item.Attr(attr); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	v, _ := item.Find("[" + attr + "]").First().Attr(attr)
	return strings.TrimSpace(v)
}

func selectFrom(item *goquery.Selection, sel string) *goquery.Selection {
	if sel == "" {
		return item
	}
	return item.Find(sel)
}
