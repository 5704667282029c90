package router

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"

	"github.com/Stockspotdeals/stockspot-dispatch/internal/models"
)

// TemplateSet holds a channel's title templates. A seeded PRNG picks the
// starting template; on validation failure the router walks the remaining
// templates in rotation. A fixed seed makes the pick order reproducible in
// tests.
type TemplateSet struct {
	mu        sync.Mutex
	templates []string
	rng       *rand.Rand
}

func NewTemplateSet(templates []string, seed int64) *TemplateSet {
	return &TemplateSet{
		templates: templates,
		rng:       rand.New(rand.NewSource(seed)),
	}
}

// Candidates returns all templates, rotated to a randomly chosen start.
func (ts *TemplateSet) Candidates() []string {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	n := len(ts.templates)
	if n == 0 {
		return nil
	}
	start := ts.rng.Intn(n)
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, ts.templates[(start+i)%n])
	}
	return out
}

// RenderTemplate substitutes the deal's fields into a title template.
// Supported placeholders: {name}, {price}.
func RenderTemplate(tpl string, deal models.MonetizedDeal) string {
	title := strings.ReplaceAll(tpl, "{name}", deal.Title)
	title = strings.ReplaceAll(title, "{price}", fmt.Sprintf("$%.2f", deal.Price))
	return strings.TrimSpace(title)
}
