package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	yaml "go.yaml.in/yaml/v3"

	"github.com/Stockspotdeals/stockspot-dispatch/internal/models"
)

// ChannelsFile is the on-disk channel topology: the output channels, the
// subscriber tier map, and optional monetization overrides.
type ChannelsFile struct {
	Channels     []ChannelDef      `yaml:"channels" validate:"required,min=1,dive"`
	Subscribers  map[string]string `yaml:"subscribers"`
	Monetization MonetizationDef   `yaml:"monetization"`
}

// ChannelDef is one channel entry as written in YAML. Durations use Go
// syntax ("30m", "1h").
type ChannelDef struct {
	ID                  string   `yaml:"id" validate:"required"`
	Class               string   `yaml:"class" validate:"required,oneof=affiliate community email feed"`
	Audience            string   `yaml:"audience" validate:"required,oneof=FREE PAID YEARLY"`
	Categories          []string `yaml:"categories" validate:"required,min=1"`
	Cooldown            string   `yaml:"cooldown" validate:"required"`
	DailyQuota          int      `yaml:"dailyQuota" validate:"required,min=1"`
	MonetizationAllowed bool     `yaml:"monetizationAllowed"`
	Disabled            bool     `yaml:"disabled"`
	DisableReason       string   `yaml:"disableReason"`
	TitleTemplates      []string `yaml:"titleTemplates" validate:"required,min=1"`
	WebhookURL          string   `yaml:"webhookUrl" validate:"omitempty,url"`
}

// MonetizationDef overrides the built-in link conversion scope.
type MonetizationDef struct {
	RetailerPatterns   []string `yaml:"retailerPatterns"`
	EligibleCategories []string `yaml:"eligibleCategories"`
}

// LoadChannels reads and validates the channel topology file.
func LoadChannels(path string) (*ChannelsFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading channels config: %w", err)
	}

	var file ChannelsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing channels config: %w", err)
	}

	if err := validator.New().Struct(&file); err != nil {
		return nil, fmt.Errorf("validating channels config: %w", err)
	}

	seen := make(map[string]bool, len(file.Channels))
	for _, c := range file.Channels {
		if seen[c.ID] {
			return nil, fmt.Errorf("duplicate channel id %q", c.ID)
		}
		seen[c.ID] = true
		if _, err := time.ParseDuration(c.Cooldown); err != nil {
			return nil, fmt.Errorf("channel %q: invalid cooldown %q: %w", c.ID, c.Cooldown, err)
		}
	}
	for subscriber, tier := range file.Subscribers {
		if !models.Tier(tier).Known() {
			return nil, fmt.Errorf("subscriber %q: unknown tier %q", subscriber, tier)
		}
	}
	return &file, nil
}

// Targets converts the YAML definitions to router channel targets,
// preserving file order.
func (f *ChannelsFile) Targets() []models.ChannelTarget {
	targets := make([]models.ChannelTarget, 0, len(f.Channels))
	for _, c := range f.Channels {
		eligible := make(map[string]bool, len(c.Categories))
		for _, cat := range c.Categories {
			eligible[strings.ToLower(cat)] = true
		}
		cooldown, _ := time.ParseDuration(c.Cooldown)
		targets = append(targets, models.ChannelTarget{
			ID:                  c.ID,
			Class:               models.ChannelClass(c.Class),
			Audience:            models.Tier(c.Audience),
			EligibleCategories:  eligible,
			CooldownPeriod:      cooldown,
			DailyQuota:          c.DailyQuota,
			MonetizationAllowed: c.MonetizationAllowed,
			Disabled:            c.Disabled,
			DisableReason:       c.DisableReason,
			TitleTemplates:      c.TitleTemplates,
			WebhookURL:          c.WebhookURL,
		})
	}
	return targets
}

// SubscriberTiers converts the subscriber map for the tier registry.
func (f *ChannelsFile) SubscriberTiers() map[string]models.Tier {
	tiers := make(map[string]models.Tier, len(f.Subscribers))
	for id, tier := range f.Subscribers {
		tiers[id] = models.Tier(tier)
	}
	return tiers
}
