package extract

import (
	"net/url"
	"strings"
)

// DomainTable maps families to the domains that route to them when a
// product has no scraper_type override. Order matters: the first family
// with a matching domain wins.
var DomainTable = []struct {
	Family  string
	Domains []string
}{
	{Ecommerce, []string{"amazon.com", "ebay.com", "shopify.com", "walmart.com", "target.com", "bestbuy.com", "alibaba.com"}},
	{Social, []string{"twitter.com", "x.com", "facebook.com", "instagram.com", "linkedin.com", "tiktok.com", "youtube.com", "reddit.com"}},
	{News, []string{"cnn.com", "bbc.com", "reuters.com", "bloomberg.com", "techcrunch.com", "news.google.com"}},
}

// Host returns the lower-cased host of rawURL without port and "www." prefix.
func Host(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	h := strings.ToLower(u.Hostname())
	return strings.TrimPrefix(h, "www.")
}

// MatchDomain reports whether host equals domain or is a subdomain of it.
func MatchDomain(host, domain string) bool {
	domain = strings.TrimPrefix(strings.ToLower(domain), "www.")
	if host == "" || domain == "" {
		return false
	}
	return host == domain || strings.HasSuffix(host, "."+domain)
}

func matchAny(host string, domains []string) (string, bool) {
	for _, d := range domains {
		if MatchDomain(host, d) {
			return d, true
		}
	}
	return "", false
}

func httpURL(rawURL string) bool {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
