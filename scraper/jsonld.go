package scraper

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/goccy/go-json"

	"festival-scraper/models"
	"festival-scraper/services"
)

var eventTypes = map[string]bool{
	"event":         true,
	"musicevent":    true,
	"festival":      true,
	"festivalevent": true,
}

// JSONLDEvent is the part of a schema.org Event the pipeline uses.
type JSONLDEvent struct {
	Name      string
	StartDate *time.Time
	EndDate   *time.Time
	Location  string
}

// ReadJSONLDEvents decodes every ld+json block in doc and returns the Event
// nodes found, including those nested in @graph arrays. Broken blocks are
// ignored.
func ReadJSONLDEvents(doc *Document) []JSONLDEvent {
	var events []JSONLDEvent
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		var node any
		if err := json.Unmarshal([]byte(strings.TrimSpace(s.Text())), &node); err != nil {
			return
		}
		walkJSONLD(node, func(obj map[string]any) {
			if !isEventType(obj["@type"]) {
				return
			}
			events = append(events, JSONLDEvent{
				Name:      stringValue(obj["name"]),
				StartDate: parseISODate(stringValue(obj["startDate"])),
				EndDate:   parseISODate(stringValue(obj["endDate"])),
				Location:  placeText(obj["location"]),
			})
		})
	})
	return events
}

func walkJSONLD(node any, visit func(map[string]any)) {
	switch v := node.(type) {
	case []any:
		for _, item := range v {
			walkJSONLD(item, visit)
		}
	case map[string]any:
		visit(v)
		if graph, ok := v["@graph"]; ok {
			walkJSONLD(graph, visit)
		}
	}
}

func isEventType(t any) bool {
	switch v := t.(type) {
	case string:
		return eventTypes[strings.ToLower(v)]
	case []any:
		for _, item := range v {
			if isEventType(item) {
				return true
			}
		}
	}
	return false
}

func stringValue(v any) string {
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

// placeText flattens a Place (or list of places) into "venue, city, country".
func placeText(v any) string {
	switch p := v.(type) {
	case string:
		return services.CleanLocation(p)
	case []any:
		if len(p) > 0 {
			return placeText(p[0])
		}
	case map[string]any:
		parts := []string{stringValue(p["name"])}
		switch addr := p["address"].(type) {
		case string:
			parts = append(parts, addr)
		case map[string]any:
			parts = append(parts,
				stringValue(addr["streetAddress"]),
				stringValue(addr["addressLocality"]),
				countryText(addr["addressCountry"]),
			)
		}
		return services.CleanLocation(parts...)
	}
	return ""
}

func countryText(v any) string {
	if m, ok := v.(map[string]any); ok {
		return stringValue(m["name"])
	}
	return stringValue(v)
}

// parseISODate reads the calendar date of an ISO 8601 date or date-time.
// The date is taken as written, before any offset conversion.
func parseISODate(s string) *time.Time {
	if len(s) < len(models.DateLayout) {
		return nil
	}
	t, err := time.Parse(models.DateLayout, s[:len(models.DateLayout)])
	if err != nil {
		return nil
	}
	return &t
}
