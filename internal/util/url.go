package util

import (
	"net/url"
	"strings"
)

// trackingParams are query parameters stripped during normalization so that
// the same product page always yields the same canonical URL regardless of
// which campaign link surfaced it.
var trackingParams = []string{
	"utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content",
	"ref", "ref_", "refRID", "linkCode", "pf_rd_r", "pf_rd_p", "th", "psc",
}

// NormalizeDealURL canonicalizes a retailer product URL: https is forced,
// tracking parameters are removed, and a trailing slash is dropped. The
// result is used both as the canonical link and, when no product id exists,
// as the deal's identity material.
func NormalizeDealURL(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL, err
	}

	if parsed.Scheme == "http" {
		parsed.Scheme = "https"
	}
	if len(parsed.Path) > 1 && strings.HasSuffix(parsed.Path, "/") {
		parsed.Path = parsed.Path[:len(parsed.Path)-1]
		// Clear RawPath so String() regenerates the path without the slash.
		parsed.RawPath = ""
	}

	query := parsed.Query()
	for _, param := range trackingParams {
		query.Del(param)
	}
	parsed.RawQuery = query.Encode()
	parsed.Fragment = ""
	return parsed.String(), nil
}

// knownTwoPartTLDs is a set of common two-part TLDs. Not exhaustive; a
// Public Suffix List library would be needed for full coverage.
var knownTwoPartTLDs = map[string]bool{
	"co.uk": true, "com.au": true, "co.jp": true, "co.nz": true, "com.br": true,
	"org.uk": true, "gov.uk": true, "ac.uk": true, "com.cn": true, "net.cn": true,
	"co.za": true, "com.es": true, "com.mx": true, "com.sg": true, "co.in": true,
}

// GetDomain extracts the registrable domain (host minus subdomains) from a
// URL, so "sub.amazon.ca/dp/X" and "www.amazon.ca/dp/X" both map to the
// retailer domain "amazon.ca".
func GetDomain(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := strings.ToLower(parsed.Hostname())
	parts := strings.Split(host, ".")
	if len(parts) <= 2 {
		return host
	}
	lastTwo := strings.Join(parts[len(parts)-2:], ".")
	if knownTwoPartTLDs[lastTwo] && len(parts) >= 3 {
		return strings.Join(parts[len(parts)-3:], ".")
	}
	return lastTwo
}
