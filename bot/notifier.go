package bot

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog/log"
	"github.com/turrn3r/walletlink/adapters/events"
	"github.com/turrn3r/walletlink/observability"
	"github.com/turrn3r/walletlink/ports"
)

// Notifier tells users on the bot when their wallet got linked
type Notifier struct {
	subscriber message.Subscriber
	messenger  ports.Messenger
}

func NewNotifier(subscriber message.Subscriber, messenger ports.Messenger) *Notifier {
	return &Notifier{
		subscriber: subscriber,
		messenger:  messenger,
	}
}

// Run consumes link events until ctx is cancelled
func (n *Notifier) Run(ctx context.Context) error {
	messages, err := n.subscriber.Subscribe(ctx, events.LinkedTopic)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			n.handle(ctx, msg)
		}
	}
}

// handle always acks; a notification that cannot be delivered is dropped
func (n *Notifier) handle(ctx context.Context, msg *message.Message) {
	defer msg.Ack()

	event, err := events.DecodeLinked(msg)
	if err != nil {
		log.Error().Err(err).Str("message_uuid", msg.UUID).Msg("dropping malformed link event")
		return
	}

	chatID, ok := ChatIDOf(event.UserKey)
	if !ok {
		log.Debug().Str("user_key", event.UserKey).Msg("link event not from bot, skipping notification")
		return
	}

	if err := n.messenger.Send(ctx, chatID, "Wallet linked: "+event.Address); err != nil {
		observability.BotSendFailures.Inc()
		log.Warn().Err(err).Int64("chat_id", chatID).Msg("failed to send link notification")
	}
}
