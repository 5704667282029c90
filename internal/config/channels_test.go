package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Stockspotdeals/stockspot-dispatch/internal/models"
)

const validChannelsYAML = `
channels:
  - id: deals-toys
    class: affiliate
    audience: FREE
    categories: [Toys, collectibles]
    cooldown: 30m
    dailyQuota: 8
    monetizationAllowed: true
    titleTemplates:
      - "{name} restocked at {price}"
  - id: community-general
    class: community
    audience: FREE
    categories: [toys, electronics]
    cooldown: 1h
    dailyQuota: 4
    disabled: true
    disableReason: platform spam review
    titleTemplates:
      - "Deal spotted: {name}"
    webhookUrl: https://hooks.example.com/general
subscribers:
  alice: PAID
  bob: FREE
monetization:
  retailerPatterns: [amazon]
  eligibleCategories: [toys]
`

func writeChannels(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "channels.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	return path
}

func TestLoadChannels(t *testing.T) {
	file, err := LoadChannels(writeChannels(t, validChannelsYAML))
	if err != nil {
		t.Fatalf("LoadChannels: %v", err)
	}

	targets := file.Targets()
	if len(targets) != 2 {
		t.Fatalf("got %d targets, want 2", len(targets))
	}

	toys := targets[0]
	if toys.ID != "deals-toys" || toys.Class != models.ClassAffiliate || toys.Audience != models.TierFree {
		t.Errorf("first target = %+v", toys)
	}
	if toys.CooldownPeriod != 30*time.Minute || toys.DailyQuota != 8 {
		t.Errorf("cooldown/quota = %v/%d", toys.CooldownPeriod, toys.DailyQuota)
	}
	if !toys.MonetizationAllowed {
		t.Error("monetizationAllowed not carried over")
	}
	// Categories are lowercased on conversion.
	if !toys.Eligible("toys") || !toys.Eligible("collectibles") || toys.Eligible("electronics") {
		t.Errorf("category eligibility = %v", toys.EligibleCategories)
	}

	community := targets[1]
	if !community.Disabled || community.DisableReason != "platform spam review" {
		t.Errorf("disable flag = %v %q", community.Disabled, community.DisableReason)
	}
	if community.WebhookURL != "https://hooks.example.com/general" {
		t.Errorf("webhook = %q", community.WebhookURL)
	}

	tiers := file.SubscriberTiers()
	if tiers["alice"] != models.TierPaid || tiers["bob"] != models.TierFree {
		t.Errorf("subscriber tiers = %v", tiers)
	}
	if file.Monetization.RetailerPatterns[0] != "amazon" {
		t.Errorf("monetization = %+v", file.Monetization)
	}
}

func TestLoadChannelsRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"empty file", "channels: []\n"},
		{
			"unknown class",
			`
channels:
  - id: a
    class: carrier-pigeon
    audience: FREE
    categories: [toys]
    cooldown: 1h
    dailyQuota: 1
    titleTemplates: ["{name}"]
`,
		},
		{
			"unknown audience tier",
			`
channels:
  - id: a
    class: feed
    audience: PLATINUM
    categories: [toys]
    cooldown: 1h
    dailyQuota: 1
    titleTemplates: ["{name}"]
`,
		},
		{
			"bad cooldown",
			`
channels:
  - id: a
    class: feed
    audience: FREE
    categories: [toys]
    cooldown: soonish
    dailyQuota: 1
    titleTemplates: ["{name}"]
`,
		},
		{
			"duplicate channel id",
			`
channels:
  - id: a
    class: feed
    audience: FREE
    categories: [toys]
    cooldown: 1h
    dailyQuota: 1
    titleTemplates: ["{name}"]
  - id: a
    class: email
    audience: PAID
    categories: [toys]
    cooldown: 1h
    dailyQuota: 1
    titleTemplates: ["{name}"]
`,
		},
		{
			"unknown subscriber tier",
			`
channels:
  - id: a
    class: feed
    audience: FREE
    categories: [toys]
    cooldown: 1h
    dailyQuota: 1
    titleTemplates: ["{name}"]
subscribers:
  carol: GOLD
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadChannels(writeChannels(t, tt.yaml)); err == nil {
				t.Error("LoadChannels accepted invalid config")
			}
		})
	}
}

func TestLoadChannelsMissingFile(t *testing.T) {
	if _, err := LoadChannels(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("LoadChannels accepted a missing file")
	}
}
