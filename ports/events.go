package ports

import (
	"context"

	"github.com/turrn3r/walletlink/core"
)

// EventPublisher publishes link events to interested consumers such as the bot
type EventPublisher interface {
	PublishLinked(ctx context.Context, event core.LinkedEvent) error
}
