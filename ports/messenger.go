package ports

import (
	"context"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Messenger is the bot transport
type Messenger interface {
	// Updates long-polls for updates with an id of at least offset
	Updates(ctx context.Context, offset int, timeout time.Duration) ([]tgbotapi.Update, error)

	// Send delivers a text message to a chat
	Send(ctx context.Context, chatID int64, text string) error
}
