package notify

import (
	"context"
	"fmt"
	"time"

	"TrendWatch/internal/domain/models"
	xhttp "TrendWatch/pkg/http"
)

const telegramAPI = "https://api.telegram.org"

// Telegram sends the plain-text report through the Bot API.
type Telegram struct {
	botToken string
	chatID   string
	baseURL  string
	client   *xhttp.Client
}

func NewTelegram(botToken, chatID string) *Telegram {
	return &Telegram{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  telegramAPI,
		client:   xhttp.NewClient(xhttp.WithTimeout(10 * time.Second)),
	}
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func (n *Telegram) Notify(ctx context.Context, report models.Report) error {
	var resp telegramResponse
	err := n.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodPost,
		URL:    fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken),
		Body: map[string]interface{}{
			"chat_id": n.chatID,
			"text":    report.Subject + "\n\n" + report.Text,
		},
	}, &resp)
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	if !resp.OK {
		return fmt.Errorf("telegram: %s", resp.Description)
	}
	return nil
}
