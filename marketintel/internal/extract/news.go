// CLAUDE:SUMMARY News listing extractor: per-site selector tables, recency filter, title dedup, per-article sentiment.
package extract

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/hazyhaar/marketintel/marketintel/internal/fetch"
)

// MaxItemsPerSource caps the items an extractor reads from one page.
const MaxItemsPerSource = 10

const (
	maxSummaryRunes = 500
	defaultDaysBack = 7
)

type newsSite struct {
	name     string
	domain   string
	articles string
	title    string
	link     string
	date     string
	summary  string
}

var newsSites = []newsSite{
	{
		name: "techcrunch", domain: "techcrunch.com",
		articles: "article.post-block",
		title:    "h2.post-block__title a",
		link:     "h2.post-block__title a",
		date:     "time.river-byline__time",
		summary:  ".post-block__content",
	},
	{
		name: "reuters", domain: "reuters.com",
		articles: `[data-testid="MediaStoryCard"]`,
		title:    `[data-testid="Heading"]`,
		link:     "a",
		date:     "time",
		summary:  `[data-testid="Body"]`,
	},
}

var genericNewsSite = newsSite{
	name:     "",
	articles: "article, .article, .news-item, .post",
	title:    "h1, h2, h3, .title, .headline",
	link:     "a",
	date:     "time, .date, .published",
	summary:  ".summary, .excerpt, .description, p",
}

var newsDomains = []string{"cnn.com", "bbc.com", "reuters.com", "bloomberg.com", "techcrunch.com", "news.google.com"}

// Article is one news item read from a listing page.
type Article struct {
	Title     string
	URL       string
	Site      string
	Published time.Time // zero when the page gave no parsable date
	Summary   string
}

// NewsExtractor reads article listings (search results, newsrooms) and
// emits one sentiment fragment per recent article plus a mention count.
type NewsExtractor struct {
	settings
}

// NewNews returns the news extractor.
func NewNews(opts ...Option) *NewsExtractor {
	s := newSettings(opts)
	s.logger = s.logger.With("component", "extract", "family", News)
	return &NewsExtractor{settings: s}
}

// Family implements Extractor.
func (n *NewsExtractor) Family() string { return News }

// ValidateURL accepts http(s) URLs on a known news domain or an extra domain.
func (n *NewsExtractor) ValidateURL(rawURL string) bool {
	if !httpURL(rawURL) {
		return false
	}
	host := Host(rawURL)
	if _, ok := matchAny(host, newsDomains); ok {
		return true
	}
	_, ok := matchAny(host, n.extraDomains)
	return ok
}

// Plan implements Extractor. Listings are fetched plain.
func (n *NewsExtractor) Plan(rawURL string, _ TrackingConfig) Plan {
	return Plan{Strategy: fetch.Plain, Platform: siteFor(rawURL).name}
}

func siteFor(rawURL string) newsSite {
	host := Host(rawURL)
	for _, s := range newsSites {
		if MatchDomain(host, s.domain) {
			return s
		}
	}
	return genericNewsSite
}

// Articles parses a listing page into recent, deduplicated articles.
func (n *NewsExtractor) Articles(in Input) ([]Article, error) {
	doc, err := parseHTML(in.Content)
	if err != nil {
		return nil, err
	}
	site := siteFor(in.URL)
	base, _ := url.Parse(in.URL)

	days := in.Config.DaysBack
	if days <= 0 {
		days = defaultDaysBack
	}
	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}
	cutoff := now.AddDate(0, 0, -days)

	nodes := doc.Find(site.articles)
	nodes = nodes.Slice(0, min(nodes.Length(), MaxItemsPerSource))
	var articles []Article
	nodes.Each(func(_ int, node *goquery.Selection) {
		titleNode := node.Find(site.title).First()
		linkNode := node.Find(site.link).First()
		if titleNode.Length() == 0 || linkNode.Length() == 0 {
			return
		}
		a := Article{
			Title: CleanText(textOf(titleNode)),
			URL:   resolveLink(base, attrOf(linkNode, "href")),
			Site:  site.name,
		}
		if a.Title == "" {
			return
		}
		if dateNode := node.Find(site.date).First(); dateNode.Length() > 0 {
			a.Published = ParseDate(attrOf(dateNode, "datetime"))
			if a.Published.IsZero() {
				a.Published = ParseDate(textOf(dateNode))
			}
		}
		if sumNode := node.Find(site.summary).First(); sumNode.Length() > 0 {
			a.Summary = Truncate(CleanText(textOf(sumNode)), maxSummaryRunes)
		}
		// Undated articles count as recent.
		if !a.Published.IsZero() && a.Published.Before(cutoff) {
			return
		}
		if !matchesTerms(a.Title+" "+a.Summary, in.Config.SearchTerms) {
			return
		}
		articles = append(articles, a)
	})
	return DedupArticles(articles), nil
}

// Extract implements Extractor.
func (n *NewsExtractor) Extract(ctx context.Context, in Input) ([]Fragment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	articles, err := n.Articles(in)
	if err != nil {
		return nil, err
	}
	out := make([]Fragment, 0, len(articles)+1)
	for _, a := range articles {
		meta := map[string]any{"kind": "news_article", "url": a.URL}
		if a.Summary != "" {
			meta["summary"] = a.Summary
		}
		if !a.Published.IsZero() {
			meta["published_date"] = a.Published.UTC().Format(time.RFC3339)
		}
		score := n.lexicon.Score(a.Title + " " + a.Summary)
		out = append(out, Fragment{
			Metric:   "sentiment",
			Value:    &score,
			Text:     strPtr(a.Title),
			Source:   a.Site,
			Metadata: meta,
		})
	}
	out = append(out, Fragment{
		Metric:   "mention_count",
		Value:    floatPtr(float64(len(articles))),
		Source:   siteFor(in.URL).name,
		Metadata: map[string]any{"kind": "news_mentions"},
	})
	n.logger.Debug("extract: news listing", "url", in.URL, "articles", len(articles))
	return out, nil
}

// DedupArticles keeps the first article of each normalized title.
func DedupArticles(articles []Article) []Article {
	seen := make(map[string]bool, len(articles))
	out := articles[:0:0]
	for _, a := range articles {
		key := NormalizeTitle(a.Title)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, a)
	}
	return out
}

func resolveLink(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || base == nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

// matchesTerms reports whether text mentions any term. No terms matches everything.
func matchesTerms(text string, terms []string) bool {
	if len(terms) == 0 {
		return true
	}
	t := strings.ToLower(text)
	for _, term := range terms {
		if term = strings.ToLower(strings.TrimSpace(term)); term != "" && strings.Contains(t, term) {
			return true
		}
	}
	return false
}

var _ Extractor = (*NewsExtractor)(nil)
