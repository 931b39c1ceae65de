package scraper

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"festival-scraper/models"
)

// Document is a fetched HTML page. Page is the 1-based page index for
// parameterized paging and 0 for fully-loaded scroll/load-more documents.
type Document struct {
	URL  string
	HTML string
	Page int

	dom  *goquery.Document
	base *url.URL
}

// NewDocument parses html fetched from pageURL.
func NewDocument(pageURL, html string) (*Document, error) {
	dom, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, &models.ParseError{Input: pageURL, Reason: "invalid html: " + err.Error()}
	}
	base, _ := url.Parse(pageURL)
	if b, ok := dom.Find("base[href]").Attr("href"); ok && base != nil {
		if ref, err := url.Parse(strings.TrimSpace(b)); err == nil {
			base = base.ResolveReference(ref)
		}
	}
	return &Document{URL: pageURL, HTML: html, dom: dom, base: base}, nil
}

// Find runs a CSS selector against the whole document.
func (d *Document) Find(selector string) *goquery.Selection {
	return d.dom.Find(selector)
}

// Root returns the document selection.
func (d *Document) Root() *goquery.Selection {
	return d.dom.Selection
}

// Resolve turns href into an absolute http(s) URL against the page URL.
// Fragments are dropped. It returns "" for anchors, scripts, mailto links
// and anything else that is not a navigable page.
func (d *Document) Resolve(href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	abs := ref
	if d.base != nil {
		abs = d.base.ResolveReference(ref)
	}
	if (abs.Scheme != "http" && abs.Scheme != "https") || abs.Host == "" {
		return ""
	}
	abs.Fragment = ""
	return abs.String()
}
