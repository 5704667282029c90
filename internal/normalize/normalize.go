// Package normalize maps heterogeneous raw retailer records into canonical
// DealEvents with stable identity.
package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/Stockspotdeals/stockspot-dispatch/internal/models"
	"github.com/Stockspotdeals/stockspot-dispatch/internal/util"
)

// Normalize converts a raw record into a DealEvent. url, retailer, and
// category are mandatory; a missing one yields models.ErrMalformedInput and
// the record is skipped by the caller. Identical input always produces an
// identical event, including its ID. detected is used when the record
// carries no detectedAt of its own.
func Normalize(raw models.RawRecord, detected time.Time) (models.DealEvent, error) {
	rawURL := stringField(raw, "url")
	retailer := stringField(raw, "retailer")
	category := stringField(raw, "category")

	for field, v := range map[string]string{"url": rawURL, "retailer": retailer, "category": category} {
		if v == "" {
			return models.DealEvent{}, fmt.Errorf("%w: missing %s", models.ErrMalformedInput, field)
		}
	}

	canonicalURL, err := util.NormalizeDealURL(rawURL)
	if err != nil {
		return models.DealEvent{}, fmt.Errorf("%w: unparsable url %q", models.ErrMalformedInput, rawURL)
	}

	productID := stringField(raw, "productId")

	deal := models.DealEvent{
		ID:               DealID(retailer, productID, canonicalURL),
		Retailer:         strings.ToLower(retailer),
		ProductID:        productID,
		Category:         strings.ToLower(category),
		Title:            stringField(raw, "title"),
		Price:            floatField(raw, "price"),
		OriginalPrice:    floatField(raw, "originalPrice"),
		DiscountPercent:  floatField(raw, "discountPercent"),
		URL:              canonicalURL,
		IsRestock:        boolField(raw, "isRestock"),
		IsLimitedEdition: boolField(raw, "isLimitedEdition"),
		IsHypeItem:       boolField(raw, "isHypeItem"),
		DetectedAt:       timeField(raw, "detectedAt", detected),
		StockLevel:       strings.ToLower(stringField(raw, "stockLevel")),
		DemandIndicator:  strings.ToLower(stringField(raw, "demandIndicator")),
		ReviewCount:      intField(raw, "reviewCount"),
	}

	// Some feeds send both prices but no precomputed discount.
	if deal.DiscountPercent == 0 && deal.OriginalPrice > deal.Price && deal.Price > 0 {
		deal.DiscountPercent = (deal.OriginalPrice - deal.Price) / deal.OriginalPrice * 100
	}

	deal.RawAttributes = extraAttributes(raw)
	return deal, nil
}

// DealID derives the stable deal identity: a hash of retailer and product id
// when the feed provides one, else a hash of the canonical URL.
func DealID(retailer, productID, canonicalURL string) string {
	var material string
	if productID != "" {
		material = strings.ToLower(retailer) + "|" + productID
	} else {
		material = canonicalURL
	}
	sum := sha256.Sum256([]byte(material))
	return hex.EncodeToString(sum[:])
}

// knownFields are the record keys consumed by Normalize; everything else is
// preserved verbatim in RawAttributes.
var knownFields = map[string]bool{
	"url": true, "retailer": true, "category": true, "productId": true,
	"title": true, "price": true, "originalPrice": true, "discountPercent": true,
	"isRestock": true, "isLimitedEdition": true, "isHypeItem": true,
	"detectedAt": true, "stockLevel": true, "demandIndicator": true, "reviewCount": true,
}

func extraAttributes(raw models.RawRecord) map[string]string {
	var extra map[string]string
	for k, v := range raw {
		if knownFields[k] {
			continue
		}
		if extra == nil {
			extra = make(map[string]string)
		}
		extra[k] = fmt.Sprint(v)
	}
	return extra
}

func stringField(raw models.RawRecord, key string) string {
	v, ok := raw[key]
	if !ok || v == nil {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return fmt.Sprint(v)
	}
	return strings.TrimSpace(s)
}

func floatField(raw models.RawRecord, key string) float64 {
	switch v := raw[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case string:
		return util.SafeParseFloat(v)
	default:
		return 0
	}
}

func intField(raw models.RawRecord, key string) int {
	switch v := raw[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	case string:
		return util.SafeAtoi(v)
	default:
		return 0
	}
}

func boolField(raw models.RawRecord, key string) bool {
	switch v := raw[key].(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(strings.TrimSpace(v), "true")
	default:
		return false
	}
}

func timeField(raw models.RawRecord, key string, fallback time.Time) time.Time {
	switch v := raw[key].(type) {
	case time.Time:
		return v
	case string:
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t
		}
	}
	return fallback
}
