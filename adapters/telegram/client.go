package telegram

import (
	"context"
	"fmt"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/turrn3r/walletlink/ports"
)

// Client implements the Messenger interface on the Telegram Bot API
type Client struct {
	bot *tgbotapi.BotAPI
}

// NewClient authenticates against the Bot API with token.
// endpoint may be empty to use the public API.
func NewClient(token, endpoint string, httpClient *http.Client) (*Client, error) {
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 90 * time.Second}
	}

	bot, err := tgbotapi.NewBotAPIWithClient(token, endpoint, httpClient)
	if err != nil {
		return nil, fmt.Errorf("failed to reach bot api: %w", err)
	}

	return &Client{bot: bot}, nil
}

var _ ports.Messenger = (*Client)(nil)

// Username returns the bot's own username
func (c *Client) Username() string {
	return c.bot.Self.UserName
}

// Updates fetches updates with ids >= offset, waiting up to timeout for new ones
func (c *Client) Updates(ctx context.Context, offset int, timeout time.Duration) ([]tgbotapi.Update, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cfg := tgbotapi.NewUpdate(offset)
	cfg.Timeout = int(timeout.Seconds())

	updates, err := c.bot.GetUpdates(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to get updates: %w", err)
	}

	return updates, nil
}

// Send delivers a plain text message to chatID
func (c *Client) Send(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true

	if _, err := c.bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	return nil
}
