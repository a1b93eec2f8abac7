package extract

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/hazyhaar/marketintel/marketintel/internal/errs"
)

func parseHTML(content string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("%w: parse html: %v", errs.ErrValidation, err)
	}
	return doc, nil
}

// firstMatch returns the first element matched by the ordered candidates,
// or nil. An invalid candidate matches nothing.
func firstMatch(root *goquery.Selection, candidates ...string) *goquery.Selection {
	for _, c := range candidates {
		if s := root.Find(c).First(); s.Length() > 0 {
			return s
		}
	}
	return nil
}

// textOf returns the text of the first element of s, one space between text
// nodes, whitespace collapsed. Script and style bodies are skipped.
func textOf(s *goquery.Selection) string {
	if s == nil || s.Length() == 0 {
		return ""
	}
	var parts []string
	var collect func(*goquery.Selection)
	collect = func(sel *goquery.Selection) {
		sel.Contents().Each(func(_ int, c *goquery.Selection) {
			switch {
			case goquery.NodeName(c) == "#text":
				parts = append(parts, c.Text())
			case c.Is("script, style"):
			default:
				collect(c)
			}
		})
	}
	collect(s.First())
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}

// attrOf returns attribute key of the first element of s, or "".
func attrOf(s *goquery.Selection, key string) string {
	if s == nil {
		return ""
	}
	v, _ := s.First().Attr(key)
	return v
}
