package services

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"festival-scraper/models"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNormalizeSingleDay(t *testing.T) {
	tests := []struct {
		text   string
		locale Locale
		want   time.Time
	}{
		{"26 april 2025", LocaleDutch, day(2025, time.April, 26)},
		{"za 26 apr. 2025", LocaleDutch, day(2025, time.April, 26)},
		{"Samstag, 26. April 2025", LocaleGerman, day(2025, time.April, 26)},
		{"26.04.2025", LocaleGerman, day(2025, time.April, 26)},
		{"1. März 2025", LocaleGerman, day(2025, time.March, 1)},
		{"April 26, 2025", LocaleEnglish, day(2025, time.April, 26)},
		{"Saturday 26th April 2025", LocaleEnglish, day(2025, time.April, 26)},
		{"04/26/2025", LocaleEnglish, day(2025, time.April, 26)},
		{"samedi 26 avril 2025", LocaleFrench, day(2025, time.April, 26)},
		{"1er août 2025", LocaleFrench, day(2025, time.August, 1)},
		{"26/04/2025", LocaleFrench, day(2025, time.April, 26)},
		{"2025-04-26", LocaleEnglish, day(2025, time.April, 26)},
		{"26 april 2025, 14:00", LocaleDutch, day(2025, time.April, 26)},
		{"Zaterdag 26 april 2025 | 12:00 - 23:00", LocaleDutch, day(2025, time.April, 26)},
		{"zaterdag 26 april 2025, 12:00 tot 23:00", LocaleDutch, day(2025, time.April, 26)},
		{"samedi 26 avril 2025 - 20h00", LocaleFrench, day(2025, time.April, 26)},
		{"26 avril 2025 à 20h", LocaleFrench, day(2025, time.April, 26)},
		{"de 18h30 à 23h, samedi 26 avril 2025", LocaleFrench, day(2025, time.April, 26)},
		{"Samstag, 26. April 2025, 20 Uhr", LocaleGerman, day(2025, time.April, 26)},
		{"April 26, 2025, 8pm - 11pm", LocaleEnglish, day(2025, time.April, 26)},
		{"zaterdag 26 april 2025, 20.00 - 23.00 uur", LocaleDutch, day(2025, time.April, 26)},
		{"26 april 2025 20.00 uur", LocaleDutch, day(2025, time.April, 26)},
		{"26 april 2025, 20 uur", LocaleDutch, day(2025, time.April, 26)},
		{"Samstag, 26. April 2025, 20.00 Uhr", LocaleGerman, day(2025, time.April, 26)},
		{"26.04.2025, 19.30 - 23.00", LocaleGerman, day(2025, time.April, 26)},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, err := Normalize(tt.text, tt.locale)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Start)
			assert.Equal(t, got.Start, got.End, "single day must have start == end")
			assert.Equal(t, 1, got.DurationDays())
		})
	}
}

func TestNormalizeRanges(t *testing.T) {
	tests := []struct {
		text      string
		locale    Locale
		wantStart time.Time
		wantEnd   time.Time
	}{
		{"11 april t/m 13 april 2025", LocaleDutch, day(2025, time.April, 11), day(2025, time.April, 13)},
		{"11 t/m 13 april 2025", LocaleDutch, day(2025, time.April, 11), day(2025, time.April, 13)},
		{"vr 11 - zo 13 juli 2025", LocaleDutch, day(2025, time.July, 11), day(2025, time.July, 13)},
		{"11 tot en met 13 juli 2025", LocaleDutch, day(2025, time.July, 11), day(2025, time.July, 13)},
		{"11.–13. April 2025", LocaleGerman, day(2025, time.April, 11), day(2025, time.April, 13)},
		{"vom 11. bis 13. April 2025", LocaleGerman, day(2025, time.April, 11), day(2025, time.April, 13)},
		{"11.04.2025 - 13.04.2025", LocaleGerman, day(2025, time.April, 11), day(2025, time.April, 13)},
		{"30.05. – 01.06.2025", LocaleGerman, day(2025, time.May, 30), day(2025, time.June, 1)},
		{"11.04 - 13.04.2025", LocaleGerman, day(2025, time.April, 11), day(2025, time.April, 13)},
		{"11.4 - 13.4.2025", LocaleGerman, day(2025, time.April, 11), day(2025, time.April, 13)},
		{"Fr 11.04 - So 13.04.2025, 12.00 - 23.00 Uhr", LocaleGerman, day(2025, time.April, 11), day(2025, time.April, 13)},
		{"April 11–13, 2025", LocaleEnglish, day(2025, time.April, 11), day(2025, time.April, 13)},
		{"April 30 - May 2, 2025", LocaleEnglish, day(2025, time.April, 30), day(2025, time.May, 2)},
		{"April 11th to 13th 2025", LocaleEnglish, day(2025, time.April, 11), day(2025, time.April, 13)},
		{"11 au 13 avril 2025", LocaleFrench, day(2025, time.April, 11), day(2025, time.April, 13)},
		{"du 30 mai au 1er juin 2025", LocaleFrench, day(2025, time.May, 30), day(2025, time.June, 1)},
		{"2025-08-14 - 2025-08-17", LocaleEnglish, day(2025, time.August, 14), day(2025, time.August, 17)},
		{"vr 11 april 2025 18:00 - zo 13 april 2025 02:00", LocaleDutch, day(2025, time.April, 11), day(2025, time.April, 13)},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, err := Normalize(tt.text, tt.locale)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStart, got.Start)
			assert.Equal(t, tt.wantEnd, got.End)
			assert.False(t, got.End.Before(got.Start))
			wantDays := int(tt.wantEnd.Sub(tt.wantStart).Hours()/24) + 1
			assert.Equal(t, wantDays, got.DurationDays())
		})
	}
}

func TestNormalizeMonthRollsForwardForSmallerEndDay(t *testing.T) {
	got, err := Normalize("April 29 - 2, 2025", LocaleEnglish)
	require.NoError(t, err)
	assert.Equal(t, day(2025, time.April, 29), got.Start)
	assert.Equal(t, day(2025, time.May, 2), got.End)

	got, err = Normalize("30 - 2 juni 2025", LocaleDutch)
	require.NoError(t, err)
	assert.Equal(t, day(2025, time.May, 30), got.Start)
	assert.Equal(t, day(2025, time.June, 2), got.End)
}

func TestNormalizeDecemberRollover(t *testing.T) {
	n := Normalizer{ReferenceYear: 2025}
	got, err := n.Normalize("28 december t/m 2 januari", LocaleDutch)
	require.NoError(t, err)
	assert.Equal(t, day(2025, time.December, 28), got.Start)
	assert.Equal(t, day(2026, time.January, 2), got.End)
	assert.Equal(t, got.Start.Year()+1, got.End.Year())
	assert.Equal(t, 6, got.DurationDays())

	// Year only on the end: the start belongs to the previous year.
	got, err = Normalize("28 december t/m 2 januari 2026", LocaleDutch)
	require.NoError(t, err)
	assert.Equal(t, day(2025, time.December, 28), got.Start)
	assert.Equal(t, day(2026, time.January, 2), got.End)

	// Day-only end in December rolls into January of the next year.
	got, err = n.Normalize("December 30 - 2", LocaleEnglish)
	require.NoError(t, err)
	assert.Equal(t, day(2025, time.December, 30), got.Start)
	assert.Equal(t, day(2026, time.January, 2), got.End)
}

func TestNormalizeReferenceYear(t *testing.T) {
	n := Normalizer{ReferenceYear: 2025}
	got, err := n.Normalize("11 april t/m 13 april", LocaleDutch)
	require.NoError(t, err)
	assert.Equal(t, day(2025, time.April, 11), got.Start)
	assert.Equal(t, day(2025, time.April, 13), got.End)

	got, err = n.Normalize("11-13 april", LocaleDutch)
	require.NoError(t, err)
	assert.Equal(t, 3, got.DurationDays())
}

func TestNormalizeErrors(t *testing.T) {
	tests := []struct {
		text   string
		locale Locale
	}{
		{"", LocaleDutch},
		{"binnenkort", LocaleDutch},
		{"11 april t/m 13 april", LocaleDutch},
		{"26 april", LocaleEnglish},
		{"31 april 2025", LocaleDutch},
		{"13 april - 11 april 2025", LocaleDutch},
		{"11 - 13 2025", LocaleGerman},
		{"t/m 13 april 2025", LocaleDutch},
		{"11 april 2025 - 5 mei 2025 - 20 juni 2025", LocaleDutch},
		{"12:00 - 23:00", LocaleDutch},
		{"26 april 2025", Locale("es")},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			_, err := Normalize(tt.text, tt.locale)
			require.Error(t, err)
			var pe *models.ParseError
			require.True(t, errors.As(err, &pe), "expected *models.ParseError, got %T", err)
			assert.Equal(t, tt.text, pe.Input)
		})
	}
}

func TestParseLocale(t *testing.T) {
	l, err := ParseLocale(" NL ")
	require.NoError(t, err)
	assert.Equal(t, LocaleDutch, l)

	_, err = ParseLocale("es")
	assert.Error(t, err)
}

func TestFormatDateZeroPads(t *testing.T) {
	assert.Equal(t, "2025-04-01", FormatDate(day(2025, time.April, 1)))
}
