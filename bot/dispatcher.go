package bot

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
	"github.com/turrn3r/walletlink/core"
	"github.com/turrn3r/walletlink/observability"
	"github.com/turrn3r/walletlink/ports"
)

const helpText = "Commands:\n" +
	"/start - get started\n" +
	"/connect - link your wallet\n" +
	"/wallet - show your linked wallet\n" +
	"/help - show this message"

// NotLinkedText is the /wallet reply for a user without a link
const NotLinkedText = "Your wallet is not linked yet. Use /connect to link one."

// Outbound is a message the bot should send
type Outbound struct {
	ChatID int64
	Text   string
}

// Dispatcher turns updates into replies. Polling and webhook mode both feed it.
type Dispatcher struct {
	links     ports.LinkStore
	messenger ports.Messenger
	ticketer  ports.Ticketer
	baseURL   string
	botName   string
}

// NewDispatcher creates a dispatcher. ticketer may be nil, botName may be
// empty when the bot's username is unknown.
func NewDispatcher(links ports.LinkStore, messenger ports.Messenger, ticketer ports.Ticketer, baseURL, botName string) *Dispatcher {
	return &Dispatcher{
		links:     links,
		messenger: messenger,
		ticketer:  ticketer,
		baseURL:   baseURL,
		botName:   botName,
	}
}

// HandleUpdate computes the replies for one update without sending them.
// Updates that carry no text message yield nothing.
func (d *Dispatcher) HandleUpdate(ctx context.Context, update tgbotapi.Update) ([]Outbound, error) {
	msg := update.Message
	if msg == nil || msg.Chat == nil || msg.Text == "" {
		return nil, nil
	}

	cmd := ParseCommand(msg.Text)
	if !cmd.AddressedTo(d.botName) {
		return nil, nil
	}
	observability.BotUpdates.WithLabelValues(cmd.Kind.String()).Inc()

	userKey := userKeyOf(msg)
	reply := func(text string) []Outbound {
		return []Outbound{{ChatID: msg.Chat.ID, Text: text}}
	}

	switch cmd.Kind {
	case CommandStart:
		link, err := d.DeepLink(userKey)
		if err != nil {
			return nil, err
		}
		return reply("Welcome! Open this link in a wallet-enabled browser to connect your wallet:\n" + link), nil

	case CommandConnect:
		link, err := d.DeepLink(userKey)
		if err != nil {
			return nil, err
		}
		return reply("Open this link in a wallet-enabled browser and sign the message to link your wallet:\n" + link), nil

	case CommandWallet:
		wallet, err := d.links.Lookup(ctx, userKey)
		if errors.Is(err, core.ErrNotFound) {
			return reply(NotLinkedText), nil
		}
		if err != nil {
			return nil, err
		}
		return reply("Linked wallet: " + wallet.Address), nil

	default:
		return reply(helpText), nil
	}
}

// Dispatch handles the update and sends its replies. Send failures are
// logged and counted, only HandleUpdate errors are returned.
func (d *Dispatcher) Dispatch(ctx context.Context, update tgbotapi.Update) error {
	out, err := d.HandleUpdate(ctx, update)
	if err != nil {
		return fmt.Errorf("failed to handle update %d: %w", update.UpdateID, err)
	}

	for _, o := range out {
		if err := d.messenger.Send(ctx, o.ChatID, o.Text); err != nil {
			observability.BotSendFailures.Inc()
			log.Warn().Err(err).Int64("chat_id", o.ChatID).Int("update_id", update.UpdateID).Msg("failed to send reply")
		}
	}

	return nil
}

// DeepLink builds the page URL carrying userKey and, when enabled, a ticket
func (d *Dispatcher) DeepLink(userKey string) (string, error) {
	u, err := url.Parse(d.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base url: %w", err)
	}

	q := u.Query()
	q.Set("user_key", userKey)
	if d.ticketer != nil {
		ticket, err := d.ticketer.Issue(userKey)
		if err != nil {
			return "", err
		}
		q.Set("ticket", ticket)
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// userKeyOf maps the sender to a user_key. The platform user id is the
// user_key; channel posts without a sender fall back to the chat id.
func userKeyOf(msg *tgbotapi.Message) string {
	if msg.From != nil {
		return strconv.FormatInt(msg.From.ID, 10)
	}
	return strconv.FormatInt(msg.Chat.ID, 10)
}

// ChatIDOf parses a user_key back into a chat id. Only numeric keys
// originate from the bot.
func ChatIDOf(userKey string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(userKey), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
