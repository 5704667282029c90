// Package notifier delivers rendered deals to channel endpoints. The router
// only needs the success-or-error signal; everything about the wire format
// lives here.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/Stockspotdeals/stockspot-dispatch/internal/models"
	"github.com/Stockspotdeals/stockspot-dispatch/internal/util"
)

// Sink is the publish collaborator. Publish returns nil only when the
// channel endpoint confirmed delivery; the router commits state on nothing
// less.
type Sink interface {
	Publish(ctx context.Context, channel models.ChannelTarget, message string, deal models.MonetizedDeal) error
}

const publishMaxRetries = 2

// Webhook posts deal payloads to each channel's webhook URL. One limiter is
// shared across channels so a burst of deals cannot hammer the endpoints.
type Webhook struct {
	client  *http.Client
	limiter *rate.Limiter
}

func NewWebhook(ratePerSec float64) *Webhook {
	if ratePerSec <= 0 {
		ratePerSec = 1
	}
	return &Webhook{
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(ratePerSec), 1),
	}
}

type webhookPayload struct {
	Title    string   `json:"title"`
	Link     string   `json:"link"`
	Price    float64  `json:"price,omitempty"`
	Retailer string   `json:"retailer"`
	Category string   `json:"category"`
	Tags     []string `json:"tags,omitempty"`
	Priority int      `json:"priority"`
}

func (w *Webhook) Publish(ctx context.Context, channel models.ChannelTarget, message string, deal models.MonetizedDeal) error {
	if channel.WebhookURL == "" {
		return fmt.Errorf("%w: channel %s has no webhook url", models.ErrTransport, channel.ID)
	}

	link := deal.CanonicalLink
	if channel.MonetizationAllowed {
		link = deal.Link()
	}

	payload := webhookPayload{
		Title:    message,
		Link:     link,
		Price:    deal.Price,
		Retailer: deal.Retailer,
		Category: deal.Category,
		Tags:     deal.Tags,
		Priority: deal.PriorityScore,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload for %s: %w", channel.ID, err)
	}

	if err := w.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", models.ErrTransport, err)
	}

	err = util.RetryWithBackoff(ctx, publishMaxRetries, func(_ int) error {
		return w.post(ctx, channel.WebhookURL, body)
	})
	if err != nil {
		return fmt.Errorf("%w: channel %s: %v", models.ErrTransport, channel.ID, err)
	}
	return nil
}

func (w *Webhook) post(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return fmt.Errorf("webhook status %s: %s", resp.Status, string(respBody))
}
