// CLAUDE:SUMMARY Social extractor: Twitter search HTML and Reddit search JSON into per-post sentiment and engagement.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/hazyhaar/marketintel/marketintel/internal/errs"
	"github.com/hazyhaar/marketintel/marketintel/internal/fetch"
)

// Social platforms with a parser.
const (
	Twitter = "twitter"
	Reddit  = "reddit"
)

var socialDomains = []struct{ domain, platform string }{
	{"twitter.com", Twitter},
	{"x.com", Twitter},
	{"reddit.com", Reddit},
}

// Post is one social mention.
type Post struct {
	Platform string
	Text     string
	Metadata map[string]any
}

// SocialExtractor reads social search result pages.
type SocialExtractor struct {
	settings
}

// NewSocial returns the social extractor.
func NewSocial(opts ...Option) *SocialExtractor {
	s := newSettings(opts)
	s.logger = s.logger.With("component", "extract", "family", Social)
	return &SocialExtractor{settings: s}
}

// Family implements Extractor.
func (s *SocialExtractor) Family() string { return Social }

// ValidateURL accepts Twitter/X and Reddit URLs plus extra domains.
func (s *SocialExtractor) ValidateURL(rawURL string) bool {
	if !httpURL(rawURL) {
		return false
	}
	if s.platform(rawURL, TrackingConfig{}) != "" {
		return true
	}
	_, ok := matchAny(Host(rawURL), s.extraDomains)
	return ok
}

func (s *SocialExtractor) platform(rawURL string, cfg TrackingConfig) string {
	if p := strings.ToLower(cfg.Platform); p == Twitter || p == Reddit {
		return p
	}
	host := Host(rawURL)
	for _, d := range socialDomains {
		if MatchDomain(host, d.domain) {
			return d.platform
		}
	}
	return ""
}

// Plan implements Extractor. Twitter needs a rendered page; Reddit serves JSON.
func (s *SocialExtractor) Plan(rawURL string, cfg TrackingConfig) Plan {
	switch p := s.platform(rawURL, cfg); p {
	case Reddit:
		return Plan{Strategy: fetch.Plain, Platform: p}
	default:
		return Plan{Strategy: fetch.Rendered, WaitFor: `article[data-testid="tweet"]`, Platform: Twitter}
	}
}

// Posts parses a result page. Reddit JSON is detected by platform or by a
// leading '{'; anything else is read as tweet HTML.
func (s *SocialExtractor) Posts(in Input) ([]Post, error) {
	platform := s.platform(in.URL, in.Config)
	body := strings.TrimSpace(in.Content)
	if platform == Reddit || (platform == "" && strings.HasPrefix(body, "{")) {
		return redditPosts(body)
	}
	return tweetPosts(body)
}

// Extract implements Extractor.
func (s *SocialExtractor) Extract(ctx context.Context, in Input) ([]Fragment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	posts, err := s.Posts(in)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	out := make([]Fragment, 0, len(posts)+1)
	for _, p := range posts {
		if !matchesTerms(p.Text, in.Config.SearchTerms) {
			continue
		}
		counts[p.Platform]++
		score := s.lexicon.Score(p.Text)
		meta := map[string]any{"platform_specific": p.Metadata}
		if len(in.Config.SearchTerms) > 0 {
			meta["search_terms"] = in.Config.SearchTerms
		}
		out = append(out, Fragment{
			Metric:   "sentiment",
			Value:    &score,
			Text:     strPtr(p.Text),
			Source:   p.Platform,
			Metadata: meta,
		})
	}
	platform := s.platform(in.URL, in.Config)
	if platform == "" && len(posts) > 0 {
		platform = posts[0].Platform
	}
	out = append(out, Fragment{
		Metric:   "mention_count",
		Value:    floatPtr(float64(counts[platform])),
		Source:   platform,
		Metadata: map[string]any{"kind": "social_mentions"},
	})
	s.logger.Debug("extract: social page", "url", in.URL, "platform", platform, "posts", len(out)-1)
	return out, nil
}

func tweetPosts(content string) ([]Post, error) {
	doc, err := parseHTML(content)
	if err != nil {
		return nil, err
	}
	tweets := doc.Find(`article[data-testid="tweet"]`)
	tweets = tweets.Slice(0, min(tweets.Length(), MaxItemsPerSource))
	var posts []Post
	tweets.Each(func(_ int, t *goquery.Selection) {
		text := CleanText(textOf(t.Find(`div[data-testid="tweetText"]`)))
		if text == "" {
			return
		}
		eng := map[string]int{"likes": 0, "retweets": 0, "replies": 0}
		t.Find("button").Each(func(_ int, b *goquery.Selection) {
			label := strings.ToLower(attrOf(b, "aria-label"))
			switch {
			case strings.Contains(label, "like"):
				eng["likes"] = firstInt(label)
			case strings.Contains(label, "retweet"):
				eng["retweets"] = firstInt(label)
			case strings.Contains(label, "repl"):
				eng["replies"] = firstInt(label)
			}
		})
		posts = append(posts, Post{
			Platform: Twitter,
			Text:     text,
			Metadata: map[string]any{"likes": eng["likes"], "retweets": eng["retweets"], "replies": eng["replies"]},
		})
	})
	return posts, nil
}

var digitsRe = regexp.MustCompile(`\d+`)

func firstInt(s string) int {
	n, _ := strconv.Atoi(digitsRe.FindString(strings.ReplaceAll(s, ",", "")))
	return n
}

type redditListing struct {
	Data struct {
		Children []struct {
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	Title       string  `json:"title"`
	Selftext    string  `json:"selftext"`
	Subreddit   string  `json:"subreddit_name_prefixed"`
	Score       int     `json:"score"`
	NumComments int     `json:"num_comments"`
	UpvoteRatio float64 `json:"upvote_ratio"`
	Permalink   string  `json:"permalink"`
}

func redditPosts(content string) ([]Post, error) {
	var l redditListing
	if err := json.Unmarshal([]byte(content), &l); err != nil {
		return nil, fmt.Errorf("%w: reddit json: %v", errs.ErrValidation, err)
	}
	children := l.Data.Children
	if len(children) > MaxItemsPerSource {
		children = children[:MaxItemsPerSource]
	}
	var posts []Post
	for _, c := range children {
		p := c.Data
		text := CleanText(strings.TrimSpace(p.Title + " " + p.Selftext))
		if text == "" {
			continue
		}
		posts = append(posts, Post{
			Platform: Reddit,
			Text:     text,
			Metadata: map[string]any{
				"subreddit":    p.Subreddit,
				"score":        p.Score,
				"num_comments": p.NumComments,
				"upvote_ratio": p.UpvoteRatio,
				"permalink":    p.Permalink,
			},
		})
	}
	return posts, nil
}

var _ Extractor = (*SocialExtractor)(nil)
