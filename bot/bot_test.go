package bot

import (
	"context"
	"errors"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/turrn3r/walletlink/core"
)

type step struct {
	updates []tgbotapi.Update
	err     error
}

// fakeMessenger replays scripted poll results and records sends
type fakeMessenger struct {
	mu      sync.Mutex
	steps   []step
	offsets []int
	sent    []Outbound
	sendErr error
	drained chan struct{}
}

func newFakeMessenger(steps ...step) *fakeMessenger {
	return &fakeMessenger{steps: steps, drained: make(chan struct{})}
}

func (m *fakeMessenger) Updates(ctx context.Context, offset int, timeout time.Duration) ([]tgbotapi.Update, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.offsets = append(m.offsets, offset)
	if len(m.steps) == 0 {
		select {
		case <-m.drained:
		default:
			close(m.drained)
		}
		return nil, nil
	}

	s := m.steps[0]
	m.steps = m.steps[1:]
	return s.updates, s.err
}

func (m *fakeMessenger) Send(ctx context.Context, chatID int64, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sendErr != nil {
		return m.sendErr
	}
	m.sent = append(m.sent, Outbound{ChatID: chatID, Text: text})
	return nil
}

func (m *fakeMessenger) Sent() []Outbound {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Outbound(nil), m.sent...)
}

func textUpdate(id int, userID int64, text string) tgbotapi.Update {
	return tgbotapi.Update{
		UpdateID: id,
		Message: &tgbotapi.Message{
			MessageID: id,
			From:      &tgbotapi.User{ID: userID},
			Chat:      &tgbotapi.Chat{ID: userID},
			Text:      text,
		},
	}
}

type failingLinks struct{}

func (failingLinks) Upsert(ctx context.Context, link *core.WalletLink) error {
	return core.ErrStorageFailure
}

func (failingLinks) Lookup(ctx context.Context, userKey string) (*core.WalletLink, error) {
	return nil, errors.Join(errors.New("connection refused"), core.ErrStorageFailure)
}
