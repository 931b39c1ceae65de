package services

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"festival-scraper/models"
)

// Locale selects month names, range words and numeric ordering.
type Locale string

const (
	LocaleDutch   Locale = "nl"
	LocaleGerman  Locale = "de"
	LocaleEnglish Locale = "en"
	LocaleFrench  Locale = "fr"
)

// ParseLocale accepts the two-letter codes used in the sources catalog.
func ParseLocale(s string) (Locale, error) {
	l := Locale(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := monthTables[l]; !ok {
		return "", fmt.Errorf("unsupported locale %q", s)
	}
	return l, nil
}

// Month names are stored diacritic-folded and lower case.
var monthTables = map[Locale]map[string]time.Month{
	LocaleDutch: {
		"januari": time.January, "jan": time.January,
		"februari": time.February, "feb": time.February, "febr": time.February,
		"maart": time.March, "mrt": time.March, "mar": time.March, "maa": time.March,
		"april": time.April, "apr": time.April,
		"mei": time.May,
		"juni": time.June, "jun": time.June,
		"juli": time.July, "jul": time.July,
		"augustus": time.August, "aug": time.August,
		"september": time.September, "sep": time.September, "sept": time.September,
		"oktober": time.October, "okt": time.October, "oct": time.October,
		"november": time.November, "nov": time.November,
		"december": time.December, "dec": time.December,
	},
	LocaleGerman: {
		"januar": time.January, "janner": time.January, "jan": time.January,
		"februar": time.February, "feb": time.February,
		"marz": time.March, "maerz": time.March, "mar": time.March, "mrz": time.March,
		"april": time.April, "apr": time.April,
		"mai": time.May,
		"juni": time.June, "jun": time.June,
		"juli": time.July, "jul": time.July,
		"august": time.August, "aug": time.August,
		"september": time.September, "sep": time.September, "sept": time.September,
		"oktober": time.October, "okt": time.October,
		"november": time.November, "nov": time.November,
		"dezember": time.December, "dez": time.December,
	},
	LocaleEnglish: {
		"january": time.January, "jan": time.January,
		"february": time.February, "feb": time.February,
		"march": time.March, "mar": time.March,
		"april": time.April, "apr": time.April,
		"may": time.May,
		"june": time.June, "jun": time.June,
		"july": time.July, "jul": time.July,
		"august": time.August, "aug": time.August,
		"september": time.September, "sep": time.September, "sept": time.September,
		"october": time.October, "oct": time.October,
		"november": time.November, "nov": time.November,
		"december": time.December, "dec": time.December,
	},
	LocaleFrench: {
		"janvier": time.January, "janv": time.January,
		"fevrier": time.February, "fevr": time.February, "fev": time.February,
		"mars": time.March,
		"avril": time.April, "avr": time.April,
		"mai": time.May,
		"juin": time.June,
		"juillet": time.July, "juil": time.July,
		"aout": time.August,
		"septembre": time.September, "sept": time.September,
		"octobre": time.October, "oct": time.October,
		"novembre": time.November, "nov": time.November,
		"decembre": time.December, "dec": time.December,
	},
}

// Phrases replaced by the range marker before tokenizing.
var rangePhrases = map[Locale][]string{
	LocaleDutch:  {"tot en met", "t/m", "t.e.m.", "t.e.m"},
	LocaleFrench: {"jusqu'au", "jusqu au"},
}

var rangeWords = map[Locale]map[string]bool{
	LocaleDutch:   {"tot": true, "tm": true, "tem": true},
	LocaleGerman:  {"bis": true},
	LocaleEnglish: {"to": true, "through": true, "thru": true, "until": true, "till": true},
	LocaleFrench:  {"au": true},
}

var (
	isoDateRe       = regexp.MustCompile(`\b(\d{4})-(\d{1,2})-(\d{1,2})\b`)
	numericDateRe   = regexp.MustCompile(`\b(\d{1,2})([./-])(\d{1,2})([./-])(\d{4}|\d{2})\b`)
	dayMonthDotRe   = regexp.MustCompile(`\b(\d{1,2})\.(\d{1,2})\.`)
	clockTimeRe     = regexp.MustCompile(`\b\d{1,2}(?:[:h]\d{2}|h|(?::\d{2})?\s*(?:uhr|uur|am|pm))\b`)
	dottedPairRe    = regexp.MustCompile(`\b(\d{1,2})\.(\d{2})\s*[~-]\s*(\d{1,2})\.(\d{2})\b(\s*(?:uhr|uur)\b)?`)
	dottedShortRe   = regexp.MustCompile(`\b(\d{1,2})\.(\d{1,2})\b(\s*(?:uhr|uur)\b)?`)
	dateTokenRe     = regexp.MustCompile(`#\d{1,2}|\d+(?:st|nd|rd|th|er)?|[a-z]+|[~@-]`)
	ordinalSuffixRe = regexp.MustCompile(`(?:st|nd|rd|th|er)$`)

	punctuationReplacer = strings.NewReplacer(
		"–", "-", "—", "-", "‒", "-", "―", "-", "−", "-",
		" ", " ", "’", "'",
	)
)

// DateRange is a resolved {start, end} pair at UTC midnight.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// DurationDays is end-start+1.
func (r DateRange) DurationDays() int {
	return int(r.End.Sub(r.Start).Hours()/24) + 1
}

// Normalizer parses free-text festival dates. ReferenceYear fills in a
// missing year; zero makes a missing year a ParseError.
type Normalizer struct {
	ReferenceYear int
}

// Normalize parses text under the strict policy (year required).
func Normalize(text string, locale Locale) (DateRange, error) {
	return Normalizer{}.Normalize(text, locale)
}

type tokenKind int

const (
	tokNumber tokenKind = iota
	tokMonth
	tokRange
	tokTime
)

type dateToken struct {
	kind  tokenKind
	value int
}

type endpoint struct {
	day   int
	month time.Month
	year  int
}

// Normalize parses single days and ranges in the given locale.
func (n Normalizer) Normalize(text string, locale Locale) (DateRange, error) {
	fail := func(reason string, args ...any) (DateRange, error) {
		return DateRange{}, &models.ParseError{Input: text, Reason: fmt.Sprintf(reason, args...)}
	}

	months, ok := monthTables[locale]
	if !ok {
		return fail("unsupported locale %q", locale)
	}

	folded := foldDateText(text, locale)
	if folded == "" {
		return fail("empty date text")
	}

	tokens := tokenizeDate(folded, locale, months)
	left, right, ranged, err := splitRange(tokens)
	if err != nil {
		return fail("%v", err)
	}
	if len(left) == 0 || (ranged && len(right) == 0) {
		return fail("incomplete range")
	}

	start, err := readEndpoint(left)
	if err != nil {
		return fail("%v", err)
	}

	if !ranged {
		if start.day == 0 || start.month == 0 {
			return fail("missing day or month")
		}
		if start.year == 0 {
			if n.ReferenceYear == 0 {
				return fail("missing year")
			}
			start.year = n.ReferenceYear
		}
		d, err := start.date()
		if err != nil {
			return fail("%v", err)
		}
		return DateRange{Start: d, End: d}, nil
	}

	end, err := readEndpoint(right)
	if err != nil {
		return fail("%v", err)
	}
	if start.day == 0 || end.day == 0 {
		return fail("missing day")
	}

	switch {
	case start.month == 0 && end.month == 0:
		return fail("missing month")
	case end.month == 0:
		end.month = start.month
		if end.day < start.day {
			end.month = shiftMonth(end.month, 1)
		}
	case start.month == 0:
		start.month = end.month
		if start.day > end.day {
			start.month = shiftMonth(start.month, -1)
		}
	}

	switch {
	case start.year == 0 && end.year == 0:
		if n.ReferenceYear == 0 {
			return fail("missing year")
		}
		start.year = n.ReferenceYear
		end.year = start.year
		if end.month < start.month {
			end.year++
		}
	case end.year == 0:
		end.year = start.year
		if end.month < start.month {
			end.year++
		}
	case start.year == 0:
		start.year = end.year
		if start.month > end.month {
			start.year--
		}
	}

	s, err := start.date()
	if err != nil {
		return fail("%v", err)
	}
	e, err := end.date()
	if err != nil {
		return fail("%v", err)
	}
	if e.Before(s) {
		return fail("range ends before it starts")
	}
	return DateRange{Start: s, End: e}, nil
}

// FormatDate renders a calendar date zero-padded (2006-01-02).
func FormatDate(t time.Time) string {
	return t.Format(models.DateLayout)
}

func shiftMonth(m time.Month, delta int) time.Month {
	v := (int(m)-1+delta+12)%12 + 1
	return time.Month(v)
}

func (e endpoint) date() (time.Time, error) {
	if e.year < 1900 || e.year > 2200 {
		return time.Time{}, fmt.Errorf("implausible year %d", e.year)
	}
	d := time.Date(e.year, e.month, e.day, 0, 0, 0, 0, time.UTC)
	if d.Day() != e.day || d.Month() != e.month {
		return time.Time{}, fmt.Errorf("no day %d in %s %d", e.day, e.month, e.year)
	}
	return d, nil
}

func readEndpoint(tokens []dateToken) (endpoint, error) {
	var ep endpoint
	for _, tok := range tokens {
		switch tok.kind {
		case tokMonth:
			if ep.month != 0 {
				return ep, fmt.Errorf("two months in one endpoint")
			}
			ep.month = time.Month(tok.value)
		case tokNumber:
			switch {
			case tok.value >= 1000:
				if ep.year != 0 {
					return ep, fmt.Errorf("two years in one endpoint")
				}
				ep.year = tok.value
			case tok.value >= 1 && tok.value <= 31:
				if ep.day != 0 {
					return ep, fmt.Errorf("ambiguous day numbers")
				}
				ep.day = tok.value
			default:
				return ep, fmt.Errorf("unexpected number %d", tok.value)
			}
		}
	}
	return ep, nil
}

// splitRange cuts the token stream at its range marker. A part holding only
// clock times is dropped together with its marker, so "26 april 12:00 - 23:00"
// stays a single day. More than one marker between dates is an error.
func splitRange(tokens []dateToken) (left, right []dateToken, ranged bool, err error) {
	parts := [][]dateToken{nil}
	for _, tok := range tokens {
		if tok.kind == tokRange {
			parts = append(parts, nil)
			continue
		}
		parts[len(parts)-1] = append(parts[len(parts)-1], tok)
	}

	var kept [][]dateToken
	for _, part := range parts {
		var dates []dateToken
		times := 0
		for _, tok := range part {
			if tok.kind == tokTime {
				times++
				continue
			}
			dates = append(dates, tok)
		}
		if times > 0 && len(dates) == 0 {
			continue
		}
		kept = append(kept, dates)
	}

	switch len(kept) {
	case 0:
		return nil, nil, false, nil
	case 1:
		return kept[0], nil, false, nil
	case 2:
		return kept[0], kept[1], true, nil
	}
	return nil, nil, false, fmt.Errorf("%d range markers", len(kept)-1)
}

func tokenizeDate(folded string, locale Locale, months map[string]time.Month) []dateToken {
	var tokens []dateToken
	words := rangeWords[locale]
	for _, raw := range dateTokenRe.FindAllString(folded, -1) {
		switch {
		case raw == "~" || raw == "-":
			tokens = append(tokens, dateToken{kind: tokRange})
		case raw == "@":
			tokens = append(tokens, dateToken{kind: tokTime})
		case raw[0] == '#':
			m, _ := strconv.Atoi(raw[1:])
			if m >= 1 && m <= 12 {
				tokens = append(tokens, dateToken{kind: tokMonth, value: m})
			}
		case raw[0] >= '0' && raw[0] <= '9':
			v, err := strconv.Atoi(ordinalSuffixRe.ReplaceAllString(raw, ""))
			if err == nil {
				tokens = append(tokens, dateToken{kind: tokNumber, value: v})
			}
		default:
			if m, ok := months[raw]; ok {
				tokens = append(tokens, dateToken{kind: tokMonth, value: int(m)})
			} else if words[raw] {
				tokens = append(tokens, dateToken{kind: tokRange})
			}
		}
	}
	return tokens
}

// foldDateText lower-cases, strips diacritics, unifies dashes and rewrites
// numeric dates into "day #month year" so the tokenizer sees one shape.
func foldDateText(text string, locale Locale) string {
	s := punctuationReplacer.Replace(text)
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(t, s); err == nil {
		s = folded
	}
	s = strings.ToLower(s)

	for _, phrase := range rangePhrases[locale] {
		s = strings.ReplaceAll(s, phrase, " ~ ")
	}

	s = isoDateRe.ReplaceAllStringFunc(s, func(m string) string {
		p := isoDateRe.FindStringSubmatch(m)
		return fmt.Sprintf(" %s #%s %s ", p[3], p[2], p[1])
	})
	s = numericDateRe.ReplaceAllStringFunc(s, func(m string) string {
		p := numericDateRe.FindStringSubmatch(m)
		if p[2] != p[4] {
			return m
		}
		day, month, year := p[1], p[3], p[5]
		if locale == LocaleEnglish && p[2] == "/" {
			day, month = month, day
		}
		if len(year) == 2 {
			year = "20" + year
		}
		return fmt.Sprintf(" %s #%s %s ", day, month, year)
	})
	s = dayMonthDotRe.ReplaceAllString(s, " $1 #$2 ")
	s = dottedPairRe.ReplaceAllStringFunc(s, func(m string) string {
		p := dottedPairRe.FindStringSubmatch(m)
		if p[5] != "" || isDottedClock(p[1], p[2]) || isDottedClock(p[3], p[4]) {
			return " @ - @ "
		}
		return m
	})
	s = dottedShortRe.ReplaceAllStringFunc(s, func(m string) string {
		p := dottedShortRe.FindStringSubmatch(m)
		if p[3] != "" || isDottedClock(p[1], p[2]) {
			return " @ "
		}
		return fmt.Sprintf(" %s #%s ", p[1], p[2])
	})
	s = clockTimeRe.ReplaceAllString(s, " @ ")

	return strings.Join(strings.Fields(s), " ")
}

// isDottedClock reports whether a bare "a.b" reads as HH.MM rather than a
// day.month: two minute digits that cannot be a month (00 or 13-59).
func isDottedClock(hour, minute string) bool {
	h, _ := strconv.Atoi(hour)
	m, _ := strconv.Atoi(minute)
	return len(minute) == 2 && h <= 23 && (m == 0 || (m > 12 && m <= 59))
}
