package router

import (
	"fmt"
	"strings"
	"unicode"
)

// DefaultSpamBlocklist holds phrases that trip spam filters on most
// community platforms. Matching is case-insensitive.
var DefaultSpamBlocklist = []string{
	"buy now",
	"act fast",
	"limited time",
	"click here",
	"don't miss",
	"free money",
	"guaranteed",
}

const (
	defaultMaxTitleLength    = 300
	defaultMaxEmojiCount     = 2
	defaultMaxUppercaseRatio = 0.5
)

// TitleValidator enforces the anti-spam content rules a rendered title must
// pass before a dispatch counts as attempted.
type TitleValidator struct {
	maxLength     int
	maxEmoji      int
	maxUpperRatio float64
	blocklist     []string
}

func NewTitleValidator(maxEmoji int, maxUpperRatio float64, blocklist []string) *TitleValidator {
	if maxEmoji <= 0 {
		maxEmoji = defaultMaxEmojiCount
	}
	if maxUpperRatio <= 0 {
		maxUpperRatio = defaultMaxUppercaseRatio
	}
	if len(blocklist) == 0 {
		blocklist = DefaultSpamBlocklist
	}
	lowered := make([]string, len(blocklist))
	for i, phrase := range blocklist {
		lowered[i] = strings.ToLower(phrase)
	}
	return &TitleValidator{
		maxLength:     defaultMaxTitleLength,
		maxEmoji:      maxEmoji,
		maxUpperRatio: maxUpperRatio,
		blocklist:     lowered,
	}
}

// Validate returns nil when the title is publishable.
func (v *TitleValidator) Validate(title string) error {
	if strings.TrimSpace(title) == "" {
		return fmt.Errorf("title is empty")
	}
	if n := len([]rune(title)); n > v.maxLength {
		return fmt.Errorf("title length %d exceeds %d", n, v.maxLength)
	}

	var emoji, upper, alpha int
	for _, r := range title {
		if isEmoji(r) {
			emoji++
		}
		if unicode.IsLetter(r) {
			alpha++
			if unicode.IsUpper(r) {
				upper++
			}
		}
	}
	if emoji > v.maxEmoji {
		return fmt.Errorf("title has %d emoji, max %d", emoji, v.maxEmoji)
	}
	if alpha > 0 && float64(upper)/float64(alpha) > v.maxUpperRatio {
		return fmt.Errorf("title uppercase ratio %.2f exceeds %.2f", float64(upper)/float64(alpha), v.maxUpperRatio)
	}

	lowered := strings.ToLower(title)
	for _, phrase := range v.blocklist {
		if strings.Contains(lowered, phrase) {
			return fmt.Errorf("title contains blocklisted phrase %q", phrase)
		}
	}
	return nil
}

// isEmoji covers the symbol planes community platforms render as emoji.
func isEmoji(r rune) bool {
	if unicode.Is(unicode.So, r) {
		return true
	}
	// Supplemental symbol blocks not fully classified as So.
	return r >= 0x1F900 && r <= 0x1FAFF
}
