// CLAUDE:SUMMARY E-commerce product page extractor: Amazon, eBay and generic selector tables.
package extract

import (
	"context"
	"fmt"

	"github.com/PuerkitoBio/goquery"

	"github.com/hazyhaar/marketintel/marketintel/internal/errs"
	"github.com/hazyhaar/marketintel/marketintel/internal/fetch"
)

// EcommerceWaitFor is the selector the rendered fetch waits for on product pages.
const EcommerceWaitFor = ".price, [data-price], .a-price"

// supportedShops maps shop domains to platform labels.
var supportedShops = []struct{ domain, platform string }{
	{"amazon.com", "amazon"},
	{"amazon.co.uk", "amazon"},
	{"amazon.ca", "amazon"},
	{"ebay.com", "ebay"},
	{"ebay.co.uk", "ebay"},
	{"shopify.com", "shopify"},
	{"bigcommerce.com", "bigcommerce"},
	{"walmart.com", "walmart"},
	{"target.com", "target"},
	{"bestbuy.com", "bestbuy"},
	{"alibaba.com", "alibaba"},
}

type fieldSelectors struct {
	title, price, availability, rating, reviews, image, seller []string
}

var amazonSelectors = fieldSelectors{
	title:        []string{"#productTitle", ".product-title", "h1.a-size-large"},
	price:        []string{".a-price-whole", ".a-offscreen", "#price_inside_buybox", ".a-price .a-offscreen", "#kindle-price", ".a-color-price"},
	availability: []string{"#availability span", ".a-color-success", ".a-color-state", "#outOfStock"},
	rating:       []string{".a-icon-alt", `[data-hook="average-star-rating"] .a-icon-alt`, ".a-star-mini .a-icon-alt"},
	reviews:      []string{`[data-hook="total-review-count"]`, "#acrCustomerReviewText", `.a-link-normal[href*="reviews"]`},
	image:        []string{"#landingImage", ".a-dynamic-image", "#imgTagWrapperId img"},
}

var ebaySelectors = fieldSelectors{
	title:        []string{"#x-title-label-lbl", ".x-item-title-label", "h1#it-ttl"},
	price:        []string{".notranslate", "#prcIsum", ".u-flL.condText", `[itemprop="price"]`},
	availability: []string{"#qtySubTxt", ".u-flL.condText .vi-acc-del-range", ".notranslate"},
	seller:       []string{".mbg-nw", "#seller-name"},
}

var genericSelectors = fieldSelectors{
	title: []string{"h1", ".product-title", ".product-name", "[data-product-title]"},
	price: []string{".price", ".product-price", "[data-price]", ".cost", ".amount"},
}

// EcommerceExtractor reads product pages: title, price, stock, rating,
// review count, image and seller.
type EcommerceExtractor struct {
	settings
}

// NewEcommerce returns the ecommerce extractor.
func NewEcommerce(opts ...Option) *EcommerceExtractor {
	s := newSettings(opts)
	s.logger = s.logger.With("component", "extract", "family", Ecommerce)
	return &EcommerceExtractor{settings: s}
}

// Family implements Extractor.
func (e *EcommerceExtractor) Family() string { return Ecommerce }

// ValidateURL accepts http(s) URLs on a supported shop or an extra domain.
func (e *EcommerceExtractor) ValidateURL(rawURL string) bool {
	return httpURL(rawURL) && e.platform(rawURL) != ""
}

// platform returns the shop label for rawURL, "generic" for extra domains, "" otherwise.
func (e *EcommerceExtractor) platform(rawURL string) string {
	host := Host(rawURL)
	for _, s := range supportedShops {
		if MatchDomain(host, s.domain) {
			return s.platform
		}
	}
	if _, ok := matchAny(host, e.extraDomains); ok {
		return "generic"
	}
	return ""
}

// Plan implements Extractor. Product pages are rendered.
func (e *EcommerceExtractor) Plan(rawURL string, _ TrackingConfig) Plan {
	return Plan{Strategy: fetch.Rendered, WaitFor: EcommerceWaitFor, Platform: e.platform(rawURL)}
}

// Extract implements Extractor.
func (e *EcommerceExtractor) Extract(ctx context.Context, in Input) ([]Fragment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	platform := e.platform(in.URL)
	if platform == "" {
		return nil, fmt.Errorf("%w: %s", errs.ErrUnsupportedSource, in.URL)
	}
	doc, err := parseHTML(in.Content)
	if err != nil {
		return nil, err
	}

	sel := genericSelectors
	switch platform {
	case "amazon":
		sel = amazonSelectors
	case "ebay":
		sel = ebaySelectors
	}
	source := platform
	if platform == "generic" {
		source = ""
	}
	// Configured selectors take precedence over the built-in tables.
	cfg := in.Config
	sel.title = cfg.selectorsFor("title", sel.title)
	sel.price = cfg.selectorsFor("price", sel.price)
	sel.availability = cfg.selectorsFor("availability", sel.availability)
	sel.rating = cfg.selectorsFor("rating", sel.rating)
	sel.reviews = cfg.selectorsFor("review_count", sel.reviews)
	sel.image = cfg.selectorsFor("image", sel.image)

	currency := cfg.Currency
	if currency == "" {
		currency = "USD"
	}
	p := product{doc: doc.Selection, platform: platform, source: source}
	title := p.text(sel.title)
	meta := map[string]any{"platform": platform}
	if title != "" {
		meta["title"] = title
	}

	var out []Fragment
	if title != "" {
		out = append(out, p.fragment("title", nil, title, meta))
	}
	if priceText := p.text(sel.price); priceText != "" {
		m := clone(meta)
		m["currency"] = currency
		out = append(out, p.fragment("price", ParsePrice(priceText), priceText, m))
	}
	if n := firstMatch(p.doc, sel.availability...); n != nil {
		availText := CleanText(textOf(n))
		stock := 0.0
		if e.availability.Parse(availText) {
			stock = 1
		}
		out = append(out, p.fragment("stock", &stock, availText, meta))
	}
	if ratingText := p.text(sel.rating); ratingText != "" {
		if r := ParseRating(ratingText); r != nil {
			out = append(out, p.fragment("rating", r, ratingText, meta))
		}
	}
	if reviewText := p.text(sel.reviews); reviewText != "" {
		if n := ParseNumber(reviewText); n != nil {
			out = append(out, p.fragment("review_count", n, "", meta))
		}
	}
	if img := p.attr(sel.image, "src"); img != "" {
		out = append(out, p.fragment("image_url", nil, img, meta))
	}
	if seller := p.text(sel.seller); seller != "" {
		out = append(out, p.fragment("seller", nil, seller, meta))
	}

	e.logger.Debug("extract: product page", "platform", platform, "fragments", len(out))
	return out, nil
}

type product struct {
	doc      *goquery.Selection
	platform string
	source   string
}

// text returns the text of the first candidate that matches, even when empty.
func (p product) text(candidates []string) string {
	return CleanText(textOf(firstMatch(p.doc, candidates...)))
}

// attr returns attribute key of the first candidate that matches and carries it.
func (p product) attr(candidates []string, key string) string {
	for _, c := range candidates {
		if v := attrOf(p.doc.Find(c), key); v != "" {
			return v
		}
	}
	return ""
}

func (p product) fragment(metric string, value *float64, text string, meta map[string]any) Fragment {
	return Fragment{Metric: metric, Value: value, Text: strPtr(text), Source: p.source, Metadata: clone(meta)}
}

func clone(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

var _ Extractor = (*EcommerceExtractor)(nil)
