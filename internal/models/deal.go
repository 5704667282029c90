package models

import (
	"errors"
	"time"
)

// ErrMalformedInput is returned by the normalizer when a raw record is
// missing a mandatory field. The record is skipped, never fatal.
var ErrMalformedInput = errors.New("malformed input record")

// ErrTransport is returned when the publish sink fails to confirm delivery.
// No channel state is mutated in that case.
var ErrTransport = errors.New("publish transport failure")

// ErrStateStore marks a runtime persistence failure. It aborts the current
// cycle because a committed dispatch fact would otherwise be lost.
var ErrStateStore = errors.New("state store failure")

// RawRecord is a loosely-typed retailer record as delivered by a feed source.
type RawRecord map[string]any

// DealEvent is the canonical, normalized form of a detected deal.
// ID is stable: identical raw input always yields the same ID.
type DealEvent struct {
	ID               string    `json:"id"`
	Retailer         string    `json:"retailer" validate:"required"`
	ProductID        string    `json:"productId,omitempty"`
	Category         string    `json:"category" validate:"required"`
	Title            string    `json:"title"`
	Price            float64   `json:"price" validate:"gte=0"`
	OriginalPrice    float64   `json:"originalPrice" validate:"gte=0"`
	DiscountPercent  float64   `json:"discountPercent" validate:"gte=0"`
	URL              string    `json:"url" validate:"required,url"`
	IsRestock        bool      `json:"isRestock"`
	IsLimitedEdition bool      `json:"isLimitedEdition"`
	IsHypeItem       bool      `json:"isHypeItem"`
	DetectedAt       time.Time `json:"detectedAt"`
	StockLevel       string    `json:"stockLevel,omitempty"`
	DemandIndicator  string    `json:"demandIndicator,omitempty"`
	ReviewCount      int       `json:"reviewCount,omitempty"`

	RawAttributes map[string]string `json:"rawAttributes,omitempty"`
}

// DedupKey is the identity used by the global suppression index.
// It keys by product id alone when one exists, matching the upstream
// monitor's behavior, and falls back to the full deal ID otherwise.
func (d DealEvent) DedupKey() string {
	if d.ProductID != "" {
		return d.ProductID
	}
	return d.ID
}

// ClassifiedDeal is a DealEvent with a computed priority score,
// classification tags, and a 0..100 confidence.
type ClassifiedDeal struct {
	DealEvent

	PriorityScore int      `json:"priorityScore"`
	Tags          []string `json:"classificationTags,omitempty"`
	Confidence    int      `json:"confidence"`
}

// MonetizedDeal is a ClassifiedDeal after link conversion. CanonicalLink is
// always populated; MonetizedLink is empty when the deal could not be
// monetized.
type MonetizedDeal struct {
	ClassifiedDeal

	CanonicalLink        string `json:"canonicalLink"`
	MonetizedLink        string `json:"monetizedLink,omitempty"`
	MonetizationEligible bool   `json:"monetizationEligible"`
}

// Link returns the link to publish: the monetized one when available,
// the canonical one otherwise.
func (d MonetizedDeal) Link() string {
	if d.MonetizedLink != "" {
		return d.MonetizedLink
	}
	return d.CanonicalLink
}
