// Package classify computes priority scores, classification tags, and
// confidence for normalized deals. Scoring is deterministic.
package classify

import (
	"sort"

	"github.com/Stockspotdeals/stockspot-dispatch/internal/models"
)

const (
	restockScore      = 100
	hypeScore         = 50
	highDiscountScore = 30
	discountScore     = 15

	baseConfidence        = 50
	reviewCountConfidence = 15
	lowStockConfidence    = 10
	highDemandConfidence  = 20
	maxConfidence         = 100

	highDiscountThreshold = 20
	discountThreshold     = 10
	reviewCountThreshold  = 100
)

// Tags attached for each contributing score component.
const (
	TagRestock      = "RESTOCK"
	TagHype         = "HYPE"
	TagHighDiscount = "HIGH_DISCOUNT"
	TagDiscount     = "DISCOUNT"
)

// Score classifies a deal. Restocks dominate, hype and limited editions come
// next, discounts last. Confidence grows with review volume, low stock, and
// demand signals, capped at 100.
func Score(deal models.DealEvent) models.ClassifiedDeal {
	var priority int
	var tags []string

	if deal.IsRestock {
		priority += restockScore
		tags = append(tags, TagRestock)
	}
	if deal.IsLimitedEdition || deal.IsHypeItem {
		priority += hypeScore
		tags = append(tags, TagHype)
	}
	switch {
	case deal.DiscountPercent >= highDiscountThreshold:
		priority += highDiscountScore
		tags = append(tags, TagHighDiscount)
	case deal.DiscountPercent >= discountThreshold:
		priority += discountScore
		tags = append(tags, TagDiscount)
	}

	confidence := baseConfidence
	if deal.ReviewCount > reviewCountThreshold {
		confidence += reviewCountConfidence
	}
	if deal.StockLevel == "low" {
		confidence += lowStockConfidence
	}
	if deal.DemandIndicator == "high" {
		confidence += highDemandConfidence
	}
	if confidence > maxConfidence {
		confidence = maxConfidence
	}

	return models.ClassifiedDeal{
		DealEvent:     deal,
		PriorityScore: priority,
		Tags:          tags,
		Confidence:    confidence,
	}
}

// SortByPriority orders deals for dispatch: priority descending so quota is
// spent on the most urgent deals first, ties broken newest-first.
func SortByPriority(deals []models.ClassifiedDeal) {
	sort.SliceStable(deals, func(i, j int) bool {
		if deals[i].PriorityScore != deals[j].PriorityScore {
			return deals[i].PriorityScore > deals[j].PriorityScore
		}
		return deals[i].DetectedAt.After(deals[j].DetectedAt)
	})
}
