package scraper

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"festival-scraper/models"
	"festival-scraper/services"
)

// Skip records a listing element that was dropped.
type Skip struct {
	Index  int
	Reason string
	Name   string
}

func (s Skip) String() string {
	if s.Name == "" {
		return fmt.Sprintf("item %d: %s", s.Index, s.Reason)
	}
	return fmt.Sprintf("item %d (%s): %s", s.Index, s.Name, s.Reason)
}

// Extraction is the result of parsing one listing document.
type Extraction struct {
	Records []models.RawListingRecord
	Skipped []Skip
}

// Seen is the number of listing elements looked at.
func (e Extraction) Seen() int {
	return len(e.Records) + len(e.Skipped)
}

// ExtractListings applies sel to every item in doc. Elements without a name,
// without a resolvable absolute detail URL, or with neither date nor location
// are skipped and reported. Records missing only one of date and location
// are kept.
func ExtractListings(doc *Document, source string, sel ListingSelectors) Extraction {
	var out Extraction
	doc.Find(sel.Item).Each(func(i int, item *goquery.Selection) {
		name := services.CleanName(Text(item, sel.Name))
		if name == "" {
			out.Skipped = append(out.Skipped, Skip{Index: i, Reason: "missing name"})
			return
		}

		detailURL := doc.Resolve(Href(item, sel.Link))
		if detailURL == "" {
			out.Skipped = append(out.Skipped, Skip{Index: i, Name: name, Reason: "missing detail url"})
			return
		}

		dateText := strings.Join(Texts(item, sel.Date), " - ")
		location := services.CleanLocation(Texts(item, sel.Location)...)
		if dateText == "" && location == "" {
			out.Skipped = append(out.Skipped, Skip{Index: i, Name: name, Reason: "missing date and location"})
			return
		}

		rec := models.RawListingRecord{
			Name:          name,
			RawDateText:   dateText,
			Location:      location,
			DetailURL:     detailURL,
			SourceWebsite: source,
		}
		if sel.ID != nil {
			rec.SourceID = strings.TrimSpace(sel.ID(item, detailURL))
		}
		out.Records = append(out.Records, rec)
	})
	return out
}

// ExtractDetail reads a detail page: JSON-LD first, then <time datetime>
// elements, then free text.
func ExtractDetail(doc *Document, sel DetailSelectors) models.DetailFields {
	var fields models.DetailFields

	if sel.JSONLD {
		for _, ev := range ReadJSONLDEvents(doc) {
			if ev.StartDate != nil && fields.StartDate == nil {
				fields.StartDate, fields.EndDate = ev.StartDate, ev.EndDate
			}
			if ev.Location != "" && fields.Location == "" {
				fields.Location = ev.Location
			}
		}
	}

	if sel.TimeElements && fields.StartDate == nil {
		scope := doc.Root()
		if sel.Scope != "" {
			scope = doc.Find(sel.Scope)
		}
		var dates []string
		scope.Find("time[datetime]").Each(func(_ int, s *goquery.Selection) {
			if v, ok := s.Attr("datetime"); ok {
				dates = append(dates, v)
			}
		})
		if len(dates) > 0 {
			fields.StartDate = parseISODate(dates[0])
			if len(dates) > 1 {
				fields.EndDate = parseISODate(dates[len(dates)-1])
			}
		}
	}

	root := doc.Root()
	// Only the first match counts: later ones belong to related events.
	fields.DateText = Text(root, sel.Date)
	if fields.Location == "" {
		fields.Location = services.CleanLocation(Texts(root, sel.Location)...)
	}
	return fields
}
