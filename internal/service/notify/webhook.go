package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"TrendWatch/internal/domain/models"
)

// webhookPayload is the JSON body posted to the webhook.
type webhookPayload struct {
	CycleID     string                 `json:"cycle_id"`
	Subject     string                 `json:"subject"`
	Text        string                 `json:"text"`
	Differences []string               `json:"differences"`
	Summaries   []models.SymbolSummary `json:"summaries"`
}

// Webhook posts reports as JSON.
type Webhook struct {
	url    string
	client *resty.Client
}

func NewWebhook(url string, timeout time.Duration) *Webhook {
	client := resty.New()
	client.SetTimeout(timeout)
	client.SetHeader("Content-Type", "application/json")
	return &Webhook{url: url, client: client}
}

func (n *Webhook) Notify(ctx context.Context, report models.Report) error {
	resp, err := n.client.R().
		SetContext(ctx).
		SetBody(webhookPayload{
			CycleID:     report.CycleID,
			Subject:     report.Subject,
			Text:        report.Text,
			Differences: report.Differences,
			Summaries:   report.Summaries,
		}).
		Post(n.url)
	if err != nil {
		return fmt.Errorf("webhook: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("webhook: unexpected status %d", resp.StatusCode())
	}
	return nil
}
