package services

import (
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	// placeholderRegexp matches listing filler such as "TBA" or "n.n.b.".
	placeholderRegexp = regexp.MustCompile(`^(?i)(n/?a|tba|tbc|tbd|n\.?n\.?b\.?|onbekend|unbekannt|inconnu|-+)$`)
	// locationSplitRegexp splits "venue · city | country" style strings.
	locationSplitRegexp = regexp.MustCompile(`\s*(?:,|\||·|•|/|\n)\s*`)
)

// NormaliseText strips leading/trailing whitespace and collapses internal whitespace.
func NormaliseText(s string) string {
	s = strings.TrimSpace(s)
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r)
	})
	return strings.Join(fields, " ")
}

// CleanName normalises a festival name for storage. Placeholders become "".
func CleanName(raw string) string {
	name := NormaliseText(raw)
	if placeholderRegexp.MatchString(name) {
		return ""
	}
	return name
}

// CleanLocation joins location fragments into "venue, city, country",
// dropping empty parts, placeholders and case-insensitive repeats.
func CleanLocation(parts ...string) string {
	var out []string
	seen := make(map[string]struct{})
	for _, part := range parts {
		for _, piece := range locationSplitRegexp.Split(part, -1) {
			piece = NormaliseText(piece)
			if piece == "" || placeholderRegexp.MatchString(piece) {
				continue
			}
			key := strings.ToLower(piece)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, piece)
		}
	}
	return strings.Join(out, ", ")
}

// IdentityName folds a name for hashing: diacritics removed, lower case,
// punctuation dropped, whitespace collapsed. "Pinkpop  Festival!" and
// "pinkpop festival" fold to the same key.
func IdentityName(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, name)
	if err != nil {
		folded = name
	}
	folded = strings.ToLower(folded)
	folded = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return ' '
	}, folded)
	return strings.Join(strings.Fields(folded), " ")
}

// AbsoluteURL reports whether raw is an absolute http(s) URL.
func AbsoluteURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
