package scraper

import (
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listingFixture = `<html><body>
<ul class="list">
  <li class="ev" data-id="11">
    <a class="name" href="/festival/11/pinkpop">Pinkpop</a>
    <span class="from">13 juni</span><span class="to">15 juni 2025</span>
    <span class="place">Landgraaf</span><span class="place">Nederland</span>
  </li>
  <li class="ev" data-id="12">
    <a class="name" href="/festival/12/"></a>
    <span class="from">1 juli 2025</span>
  </li>
  <li class="ev" data-id="13">
    <span class="name">No Link Fest</span>
    <span class="from">1 juli 2025</span>
  </li>
  <li class="ev" data-id="14">
    <a class="name" href="/festival/14/">Lonely</a>
  </li>
  <li class="ev" data-id="15">
    <a class="name" href="/festival/15/">Dateless</a>
    <span class="place">Utrecht</span>
  </li>
  <li class="ev" data-id="16">
    <a class="name" href="/festival/16/">TBA</a>
    <span class="from">2 juli 2025</span>
  </li>
</ul>
</body></html>`

func fixtureSelectors() ListingSelectors {
	return ListingSelectors{
		Item:     "li.ev",
		Name:     []string{".name"},
		Link:     []string{"a.name"},
		Date:     []string{".from", ".to"},
		Location: []string{".place"},
		ID: func(item *goquery.Selection, _ string) string {
			return Attr(item, "data-id")
		},
	}
}

func TestExtractListings(t *testing.T) {
	doc, err := NewDocument("https://www.example.nl/agenda", listingFixture)
	require.NoError(t, err)

	ex := ExtractListings(doc, "example", fixtureSelectors())
	require.Len(t, ex.Records, 2)
	assert.Equal(t, 6, ex.Seen())

	first := ex.Records[0]
	assert.Equal(t, "Pinkpop", first.Name)
	assert.Equal(t, "13 juni - 15 juni 2025", first.RawDateText)
	assert.Equal(t, "Landgraaf, Nederland", first.Location)
	assert.Equal(t, "https://www.example.nl/festival/11/pinkpop", first.DetailURL)
	assert.Equal(t, "11", first.SourceID)
	assert.Equal(t, "example", first.SourceWebsite)

	second := ex.Records[1]
	assert.Equal(t, "Dateless", second.Name)
	assert.Empty(t, second.RawDateText)
	assert.Equal(t, "Utrecht", second.Location)

	reasons := map[int]string{}
	for _, s := range ex.Skipped {
		reasons[s.Index] = s.Reason
	}
	assert.Equal(t, map[int]string{
		1: "missing name",
		2: "missing detail url",
		3: "missing date and location",
		5: "missing name",
	}, reasons)
}

func TestExtractListingsLinkOnItem(t *testing.T) {
	html := `<div><a class="card" href="/e/1"><h3>Dauwpop</h3><p class="d">18 mei 2025</p></a></div>`
	doc, err := NewDocument("https://example.org/", html)
	require.NoError(t, err)

	ex := ExtractListings(doc, "cards", ListingSelectors{
		Item: "a.card",
		Name: []string{"h3"},
		Date: []string{".d"},
	})
	require.Len(t, ex.Records, 1)
	assert.Equal(t, "https://example.org/e/1", ex.Records[0].DetailURL)
	assert.Empty(t, ex.Records[0].SourceID)
}

func TestSkipString(t *testing.T) {
	assert.Equal(t, "item 3: missing name", Skip{Index: 3, Reason: "missing name"}.String())
	assert.Equal(t, "item 1 (X): missing detail url", Skip{Index: 1, Name: "X", Reason: "missing detail url"}.String())
}

const jsonLDFixture = `<html><head>
<script type="application/ld+json">{ not json</script>
<script type="application/ld+json">
{"@context":"https://schema.org","@graph":[
  {"@type":"WebPage","name":"ignored"},
  {"@type":["Event","MusicEvent"],"name":"Rock Werchter",
   "startDate":"2025-07-03T12:00:00+02:00","endDate":"2025-07-06",
   "location":{"@type":"Place","name":"Festivalpark",
     "address":{"addressLocality":"Werchter","addressCountry":{"name":"België"}}}}
]}
</script>
</head><body><p class="when">3 - 6 juli 2025</p></body></html>`

func TestReadJSONLDEvents(t *testing.T) {
	doc, err := NewDocument("https://example.be/e/1", jsonLDFixture)
	require.NoError(t, err)

	events := ReadJSONLDEvents(doc)
	require.Len(t, events, 1)
	ev := events[0]
	assert.Equal(t, "Rock Werchter", ev.Name)
	require.NotNil(t, ev.StartDate)
	require.NotNil(t, ev.EndDate)
	assert.Equal(t, "2025-07-03", ev.StartDate.Format("2006-01-02"))
	assert.Equal(t, "2025-07-06", ev.EndDate.Format("2006-01-02"))
	assert.Equal(t, "Festivalpark, Werchter, België", ev.Location)
}

func TestExtractDetailPrefersJSONLD(t *testing.T) {
	doc, err := NewDocument("https://example.be/e/1", jsonLDFixture)
	require.NoError(t, err)

	fields := ExtractDetail(doc, DetailSelectors{JSONLD: true, Date: []string{".when"}})
	require.NotNil(t, fields.StartDate)
	assert.Equal(t, "2025-07-03", fields.StartDate.Format("2006-01-02"))
	assert.Equal(t, "3 - 6 juli 2025", fields.DateText)
	assert.Equal(t, "Festivalpark, Werchter, België", fields.Location)
}

func TestExtractDetailTimeElements(t *testing.T) {
	html := `<html><body>
<aside><time datetime="2020-01-01">old</time></aside>
<article>
  <time datetime="2025-08-15">Aug 15</time> to <time datetime="2025-08-17T23:00">Aug 17</time>
  <div class="venue">Brooklyn Mirage</div><div class="venue">New York</div>
</article></body></html>`
	doc, err := NewDocument("https://example.com/f/1", html)
	require.NoError(t, err)

	fields := ExtractDetail(doc, DetailSelectors{TimeElements: true, Scope: "article", Location: []string{".venue"}})
	require.NotNil(t, fields.StartDate)
	require.NotNil(t, fields.EndDate)
	assert.Equal(t, "2025-08-15", fields.StartDate.Format("2006-01-02"))
	assert.Equal(t, "2025-08-17", fields.EndDate.Format("2006-01-02"))
	assert.Equal(t, "Brooklyn Mirage, New York", fields.Location)
}

func TestExtractDetailFreeTextOnly(t *testing.T) {
	doc, err := NewDocument("https://example.fr/f/1", `<div class="dates">du 4 au 6 juillet 2025</div>`)
	require.NoError(t, err)

	fields := ExtractDetail(doc, DetailSelectors{JSONLD: true, TimeElements: true, Date: []string{".dates"}})
	assert.Nil(t, fields.StartDate)
	assert.Equal(t, "du 4 au 6 juillet 2025", fields.DateText)
	assert.Empty(t, fields.Location)
}

func TestQueryPageURL(t *testing.T) {
	f := QueryPageURL("https://example.de/festivals?land=de", "seite", false)
	assert.Equal(t, "https://example.de/festivals?land=de", f(1))
	assert.Equal(t, "https://example.de/festivals?land=de&seite=3", f(3))

	g := QueryPageURL("https://example.nl/agenda", "page", true)
	assert.Equal(t, "https://example.nl/agenda?page=1", g(1))
}

func TestNeedsBrowser(t *testing.T) {
	tests := []struct {
		spec PaginationSpec
		want bool
	}{
		{PaginationSpec{Kind: PaginationPaged}, false},
		{PaginationSpec{Kind: PaginationPaged, DetailBrowser: true}, true},
		{PaginationSpec{Kind: PaginationPaged, Browser: true}, true},
		{PaginationSpec{Kind: PaginationScroll}, true},
		{PaginationSpec{Kind: PaginationLoadMore}, true},
	}
	for _, tt := range tests {
		if got := tt.spec.NeedsBrowser(); got != tt.want {
			t.Errorf("%+v: NeedsBrowser = %v, want %v", tt.spec, got, tt.want)
		}
	}
}
