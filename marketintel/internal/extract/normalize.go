package extract

import (
	"html"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

var nonNumeric = regexp.MustCompile(`[^\d.\-]`)

// ParseNumber strips currency symbols, thousands separators and any other
// non-numeric characters, then parses what remains as a decimal.
// Returns nil when nothing parsable is left.
func ParseNumber(text string) *float64 {
	cleaned := nonNumeric.ReplaceAllString(strings.ReplaceAll(text, ",", ""), "")
	if cleaned == "" {
		return nil
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return nil
	}
	return &v
}

// ParsePrice is ParseNumber applied to a price label ("$1,299.99" → 1299.99).
func ParsePrice(text string) *float64 { return ParseNumber(text) }

// Availability holds the stock phrase tables. Out-of-stock phrases are
// checked first; when neither table matches, Default applies.
type Availability struct {
	OutOfStock []string
	InStock    []string
	Default    bool
}

// DefaultAvailability returns the built-in phrase tables with an optimistic default.
func DefaultAvailability() Availability {
	return Availability{
		OutOfStock: []string{
			"out of stock", "unavailable", "sold out", "not available",
			"discontinued", "temporarily out", "currently unavailable",
		},
		InStock: []string{
			"in stock", "available", "ships", "delivery", "add to cart", "buy now",
		},
		Default: true,
	}
}

// Parse reports whether text describes an item in stock. Only the empty
// string is false outright; whitespace is text that matches no phrase, so
// Default applies to it.
func (a Availability) Parse(text string) bool {
	if text == "" {
		return false
	}
	t := strings.ToLower(strings.TrimSpace(text))
	for _, p := range a.OutOfStock {
		if strings.Contains(t, p) {
			return false
		}
	}
	for _, p := range a.InStock {
		if strings.Contains(t, p) {
			return true
		}
	}
	return a.Default
}

// ParseAvailability applies DefaultAvailability.
func ParseAvailability(text string) bool { return DefaultAvailability().Parse(text) }

var ratingPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(\d+\.?\d*)\s*out\s*of\s*5`),
	regexp.MustCompile(`(\d+\.?\d*)\s*/\s*5`),
	regexp.MustCompile(`(\d+\.?\d*)\s*stars?`),
	regexp.MustCompile(`rating:\s*(\d+\.?\d*)`),
}

// ParseRating reads "4.5 out of 5", "4.5/5", "4.5 stars" or "rating: 4.5".
// The first pattern that matches wins; nil when none does.
func ParseRating(text string) *float64 {
	t := strings.ToLower(text)
	for _, re := range ratingPatterns {
		m := re.FindStringSubmatch(t)
		if m == nil {
			continue
		}
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			return &v
		}
	}
	return nil
}

// NormalizeTitle lowercases, strips punctuation and collapses whitespace.
func NormalizeTitle(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

var datePatterns = []struct {
	re     *regexp.Regexp
	layout []string
}{
	{regexp.MustCompile(`\d{4}-\d{2}-\d{2}`), []string{"2006-01-02"}},
	{regexp.MustCompile(`\d{1,2}/\d{1,2}/\d{4}`), []string{"1/2/2006"}},
	{regexp.MustCompile(`\d{1,2} [A-Za-z]+ \d{4}`), []string{"2 January 2006", "2 Jan 2006"}},
}

// ParseDate finds a date in free text: YYYY-MM-DD, M/D/YYYY or "D Month YYYY".
// Returns the zero time when none parses.
func ParseDate(text string) time.Time {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, text); err == nil {
		return t.UTC()
	}
	for _, p := range datePatterns {
		m := p.re.FindString(text)
		if m == "" {
			continue
		}
		for _, layout := range p.layout {
			if t, err := time.Parse(layout, m); err == nil {
				return t
			}
		}
	}
	return time.Time{}
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}

var strict = bluemonday.StrictPolicy()

// CleanText strips any markup from scraped text and collapses whitespace.
func CleanText(s string) string {
	s = html.UnescapeString(strict.Sanitize(s))
	return strings.Join(strings.Fields(s), " ")
}
