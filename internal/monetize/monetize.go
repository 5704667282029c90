// Package monetize rewrites eligible deal links to carry the associate tag.
// A deal that cannot be monetized always passes through untouched; the
// canonical link is never lost.
package monetize

import (
	"net/url"
	"regexp"
	"strings"
	"sync"

	"github.com/Stockspotdeals/stockspot-dispatch/internal/models"
	"github.com/Stockspotdeals/stockspot-dispatch/internal/util"
)

// identifierMatcher is one step of the extraction chain. Matchers run in
// declaration order; the first capture wins.
type identifierMatcher struct {
	name string
	re   *regexp.Regexp
}

var identifierMatchers = []identifierMatcher{
	{name: "dp-path", re: regexp.MustCompile(`/dp/([A-Z0-9]{10})(?:[/?]|$)`)},
	{name: "gp-product-path", re: regexp.MustCompile(`/gp/product/([A-Z0-9]{10})(?:[/?]|$)`)},
	{name: "asin-query", re: regexp.MustCompile(`[?&]asin=([A-Z0-9]{10})(?:&|$)`)},
	{name: "generic", re: regexp.MustCompile(`\b(B0[A-Z0-9]{8})\b`)},
}

// ExtractIdentifier pulls the product identifier out of a URL, or returns ""
// when no pattern matches.
func ExtractIdentifier(rawURL string) string {
	for _, m := range identifierMatchers {
		if match := m.re.FindStringSubmatch(rawURL); match != nil {
			return match[1]
		}
	}
	return ""
}

type cacheKey struct {
	retailer   string
	identifier string
}

// Converter rewrites monetizable links. Successful conversions are cached by
// (retailer, identifier) so repeat sightings across cycles skip the rewrite.
type Converter struct {
	associateTag       string
	retailerPatterns   []string
	eligibleCategories map[string]bool

	mu    sync.RWMutex
	cache map[cacheKey]string
}

// DefaultRetailerPatterns match retailers whose links accept an associate tag.
var DefaultRetailerPatterns = []string{"amazon"}

// DefaultEligibleCategories are the categories the affiliate program covers.
var DefaultEligibleCategories = []string{"collectibles", "electronics", "toys", "games"}

func New(associateTag string, retailerPatterns, eligibleCategories []string) *Converter {
	if len(retailerPatterns) == 0 {
		retailerPatterns = DefaultRetailerPatterns
	}
	if len(eligibleCategories) == 0 {
		eligibleCategories = DefaultEligibleCategories
	}
	catSet := make(map[string]bool, len(eligibleCategories))
	for _, c := range eligibleCategories {
		catSet[strings.ToLower(c)] = true
	}
	return &Converter{
		associateTag:       associateTag,
		retailerPatterns:   retailerPatterns,
		eligibleCategories: catSet,
		cache:              make(map[cacheKey]string),
	}
}

// Convert produces the MonetizedDeal for a classified deal. Eligibility
// requires a matching retailer, an eligible category, an extractable
// identifier, and a configured tag; anything short of that passes the deal
// through with MonetizationEligible=false.
func (c *Converter) Convert(deal models.ClassifiedDeal) models.MonetizedDeal {
	out := models.MonetizedDeal{
		ClassifiedDeal: deal,
		CanonicalLink:  deal.URL,
	}

	if c.associateTag == "" || !c.retailerMatches(deal.Retailer, deal.URL) || !c.eligibleCategories[deal.Category] {
		return out
	}

	identifier := ExtractIdentifier(deal.URL)
	if identifier == "" {
		return out
	}

	key := cacheKey{retailer: deal.Retailer, identifier: identifier}
	c.mu.RLock()
	cached, ok := c.cache[key]
	c.mu.RUnlock()
	if ok {
		out.MonetizedLink = cached
		out.MonetizationEligible = true
		return out
	}

	monetized, err := tagLink(deal.URL, c.associateTag)
	if err != nil {
		return out
	}

	c.mu.Lock()
	c.cache[key] = monetized
	c.mu.Unlock()

	out.MonetizedLink = monetized
	out.MonetizationEligible = true
	return out
}

// CacheSize reports the number of cached conversions.
func (c *Converter) CacheSize() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}

// retailerMatches checks the feed's retailer label first, then the URL's
// registrable domain, so feeds that label amazon.com links with a house
// name ("amzn-feed") still monetize.
func (c *Converter) retailerMatches(retailer, rawURL string) bool {
	retailer = strings.ToLower(retailer)
	domain := util.GetDomain(rawURL)
	for _, pattern := range c.retailerPatterns {
		p := strings.ToLower(pattern)
		if strings.Contains(retailer, p) || strings.Contains(domain, p) {
			return true
		}
	}
	return false
}

// tagLink sets the associate tag on the URL, replacing any tag already
// present. Applying the same tag twice yields the same link.
func tagLink(rawURL, tag string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	query := parsed.Query()
	query.Set("tag", tag)
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}
