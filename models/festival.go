package models

import "time"

// DateLayout is the calendar-date format used for storage keys, hashes and reports.
const DateLayout = "2006-01-02"

// Quality flags attached to a CanonicalFestival.
const (
	FlagDatesUnparsed     = "dates_unparsed"
	FlagLocationMissing   = "location_missing"
	FlagDetailUnavailable = "detail_unavailable"
	FlagDetailURLInvalid  = "detail_url_invalid"
)

// RawListingRecord holds the fields scraped from a listing page before the
// detail page has been visited. It is consumed immediately by the enricher.
type RawListingRecord struct {
	Name          string
	RawDateText   string
	Location      string
	DetailURL     string
	SourceID      string
	SourceWebsite string
}

// DetailFields is what a detail page contributes. StartDate/EndDate come from
// structured markup (JSON-LD, <time datetime>) and are preferred over DateText.
type DetailFields struct {
	DateText  string
	StartDate *time.Time
	EndDate   *time.Time
	Location  string
}

// CanonicalFestival is the persisted unit.
type CanonicalFestival struct {
	Name          string `validate:"required"`
	StartDate     *time.Time
	EndDate       *time.Time
	DurationDays  int
	Location      string
	SourceWebsite string `validate:"required"`
	SourceID      string
	DetailURL     string `validate:"omitempty,url"`
	IdentityHash  string
	ScrapedAt     time.Time
	Flags         []string
}

// HasDates reports whether both endpoints are resolved.
func (f *CanonicalFestival) HasDates() bool {
	return f.StartDate != nil && f.EndDate != nil
}

// SetDates assigns both endpoints and recomputes DurationDays. Passing nil
// for either endpoint clears the range.
func (f *CanonicalFestival) SetDates(start, end *time.Time) {
	if start == nil || end == nil {
		f.StartDate, f.EndDate, f.DurationDays = nil, nil, 0
		return
	}
	s, e := *start, *end
	f.StartDate, f.EndDate = &s, &e
	f.DurationDays = int(e.Sub(s).Hours()/24) + 1
}

// StartKey returns the start date as a storage/hash key, or "" when unknown.
func (f *CanonicalFestival) StartKey() string {
	if f.StartDate == nil {
		return ""
	}
	return f.StartDate.Format(DateLayout)
}

// AddFlag records a quality flag once.
func (f *CanonicalFestival) AddFlag(flag string) {
	for _, existing := range f.Flags {
		if existing == flag {
			return
		}
	}
	f.Flags = append(f.Flags, flag)
}

// HasFlag reports whether the flag was raised.
func (f *CanonicalFestival) HasFlag(flag string) bool {
	for _, existing := range f.Flags {
		if existing == flag {
			return true
		}
	}
	return false
}
