package classify

import (
	"reflect"
	"testing"
	"time"

	"github.com/Stockspotdeals/stockspot-dispatch/internal/models"
)

func TestScore_Priority(t *testing.T) {
	tests := []struct {
		name         string
		deal         models.DealEvent
		wantPriority int
		wantTags     []string
	}{
		{
			name:         "Plain deal",
			deal:         models.DealEvent{},
			wantPriority: 0,
			wantTags:     nil,
		},
		{
			name:         "Restock",
			deal:         models.DealEvent{IsRestock: true},
			wantPriority: 100,
			wantTags:     []string{TagRestock},
		},
		{
			name:         "Limited edition",
			deal:         models.DealEvent{IsLimitedEdition: true},
			wantPriority: 50,
			wantTags:     []string{TagHype},
		},
		{
			name:         "Hype item",
			deal:         models.DealEvent{IsHypeItem: true},
			wantPriority: 50,
			wantTags:     []string{TagHype},
		},
		{
			name:         "High discount",
			deal:         models.DealEvent{DiscountPercent: 20},
			wantPriority: 30,
			wantTags:     []string{TagHighDiscount},
		},
		{
			name:         "Moderate discount",
			deal:         models.DealEvent{DiscountPercent: 10},
			wantPriority: 15,
			wantTags:     []string{TagDiscount},
		},
		{
			name:         "Small discount ignored",
			deal:         models.DealEvent{DiscountPercent: 9.9},
			wantPriority: 0,
			wantTags:     nil,
		},
		{
			name: "Everything stacks",
			deal: models.DealEvent{
				IsRestock:        true,
				IsLimitedEdition: true,
				IsHypeItem:       true,
				DiscountPercent:  35,
			},
			wantPriority: 180,
			wantTags:     []string{TagRestock, TagHype, TagHighDiscount},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Score(tt.deal)
			if got.PriorityScore != tt.wantPriority {
				t.Errorf("PriorityScore = %d, want %d", got.PriorityScore, tt.wantPriority)
			}
			if !reflect.DeepEqual(got.Tags, tt.wantTags) {
				t.Errorf("Tags = %v, want %v", got.Tags, tt.wantTags)
			}
		})
	}
}

func TestScore_Confidence(t *testing.T) {
	tests := []struct {
		name string
		deal models.DealEvent
		want int
	}{
		{name: "Base", deal: models.DealEvent{}, want: 50},
		{name: "Reviewed", deal: models.DealEvent{ReviewCount: 101}, want: 65},
		{name: "Review threshold not met", deal: models.DealEvent{ReviewCount: 100}, want: 50},
		{name: "Low stock", deal: models.DealEvent{StockLevel: "low"}, want: 60},
		{name: "High demand", deal: models.DealEvent{DemandIndicator: "high"}, want: 70},
		{
			name: "Capped at 100",
			deal: models.DealEvent{ReviewCount: 500, StockLevel: "low", DemandIndicator: "high"},
			want: 95,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Score(tt.deal); got.Confidence != tt.want {
				t.Errorf("Confidence = %d, want %d", got.Confidence, tt.want)
			}
		})
	}
}

func TestScore_Deterministic(t *testing.T) {
	deal := models.DealEvent{IsRestock: true, DiscountPercent: 25, ReviewCount: 500}
	first := Score(deal)
	second := Score(deal)
	if first.PriorityScore != second.PriorityScore || first.Confidence != second.Confidence {
		t.Error("Score must be deterministic for identical input")
	}
}

func TestSortByPriority(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	deals := []models.ClassifiedDeal{
		{DealEvent: models.DealEvent{ID: "old-low", DetectedAt: t0}, PriorityScore: 15},
		{DealEvent: models.DealEvent{ID: "restock", DetectedAt: t0}, PriorityScore: 100},
		{DealEvent: models.DealEvent{ID: "newer-low", DetectedAt: t0.Add(time.Minute)}, PriorityScore: 15},
		{DealEvent: models.DealEvent{ID: "hype", DetectedAt: t0}, PriorityScore: 50},
	}

	SortByPriority(deals)

	wantOrder := []string{"restock", "hype", "newer-low", "old-low"}
	for i, want := range wantOrder {
		if deals[i].ID != want {
			t.Errorf("position %d = %s, want %s", i, deals[i].ID, want)
		}
	}
}
