package services

import (
	"fmt"
	"time"

	"festival-scraper/models"
)

// Enricher turns listing records into canonical festivals and refines them
// with detail-page data. List values are provisional; a detail value replaces
// one only when it parses.
type Enricher struct {
	// ReferenceYear completes yearless listing dates. Zero makes the list
	// pass strict as well.
	ReferenceYear int
	Now           func() time.Time
}

// NewEnricher creates an Enricher whose list pass assumes the year of now.
func NewEnricher(now time.Time) *Enricher {
	return &Enricher{ReferenceYear: now.Year(), Now: time.Now}
}

func (e *Enricher) now() time.Time {
	if e.Now == nil {
		return time.Now().UTC()
	}
	return e.Now().UTC()
}

// FromListing builds the list-tier record. A date parse failure is returned
// alongside the record, which keeps null dates.
func (e *Enricher) FromListing(raw models.RawListingRecord, locale Locale) (*models.CanonicalFestival, error) {
	f := &models.CanonicalFestival{
		Name:          CleanName(raw.Name),
		Location:      CleanLocation(raw.Location),
		SourceWebsite: raw.SourceWebsite,
		SourceID:      NormaliseText(raw.SourceID),
		DetailURL:     NormaliseText(raw.DetailURL),
		ScrapedAt:     e.now(),
	}

	var err error
	if text := NormaliseText(raw.RawDateText); text != "" {
		var r DateRange
		r, err = Normalizer{ReferenceYear: e.ReferenceYear}.Normalize(text, locale)
		if err == nil {
			f.SetDates(&r.Start, &r.End)
		}
	}

	Rehash(f)
	return f, err
}

// ApplyDetail overrides dates and location with detail-page values that
// parse. Structured dates win over detail text. A detail date text without a
// year borrows the year of the list-tier start, if any.
func (e *Enricher) ApplyDetail(f *models.CanonicalFestival, detail models.DetailFields, locale Locale) error {
	var err error

	switch {
	case detail.StartDate != nil:
		start := dateOnly(*detail.StartDate)
		end := start
		if detail.EndDate != nil {
			end = dateOnly(*detail.EndDate)
		}
		if end.Before(start) {
			err = &models.ParseError{
				Input:  fmt.Sprintf("%s/%s", FormatDate(start), FormatDate(end)),
				Reason: "structured end date before start date",
			}
			break
		}
		f.SetDates(&start, &end)

	case NormaliseText(detail.DateText) != "":
		n := Normalizer{}
		if f.StartDate != nil {
			n.ReferenceYear = f.StartDate.Year()
		}
		var r DateRange
		r, err = n.Normalize(NormaliseText(detail.DateText), locale)
		if err == nil {
			f.SetDates(&r.Start, &r.End)
		}
	}

	if loc := CleanLocation(detail.Location); loc != "" {
		f.Location = loc
	}

	Rehash(f)
	return err
}

// Enrich runs both tiers. A nil detail means the detail page could not be
// fetched; the record keeps its list values and is flagged. Parse errors are
// record-scoped and returned for reporting only.
func (e *Enricher) Enrich(raw models.RawListingRecord, detail *models.DetailFields, locale Locale) (*models.CanonicalFestival, []error) {
	var errs []error

	f, listErr := e.FromListing(raw, locale)
	if detail == nil {
		f.AddFlag(models.FlagDetailUnavailable)
	} else if err := e.ApplyDetail(f, *detail, locale); err != nil {
		errs = append(errs, err)
	}

	if listErr != nil && !f.HasDates() {
		errs = append(errs, listErr)
	}
	return f, errs
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
