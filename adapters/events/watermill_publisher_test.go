package events

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turrn3r/walletlink/core"
)

func TestPublishLinked_DeliversToSubscriber(t *testing.T) {
	pub, sub := NewInProcess(NewZerologAdapter(zerolog.Nop()))
	defer pub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	msgs, err := sub.Subscribe(ctx, LinkedTopic)
	require.NoError(t, err)

	event := core.LinkedEvent{
		UserKey:  "42",
		Address:  "0x1111111111111111111111111111111111111111",
		LinkedAt: time.Unix(1700000000, 0).UTC(),
	}
	require.NoError(t, NewWatermillPublisher(pub).PublishLinked(ctx, event))

	select {
	case msg := <-msgs:
		got, err := DecodeLinked(msg)
		require.NoError(t, err)
		msg.Ack()
		assert.Equal(t, event.UserKey, got.UserKey)
		assert.Equal(t, event.Address, got.Address)
		assert.True(t, event.LinkedAt.Equal(got.LinkedAt))
	case <-ctx.Done():
		t.Fatal("event not delivered")
	}
}

type failingPublisher struct{}

func (failingPublisher) Publish(topic string, messages ...*message.Message) error {
	return errors.New("broker down")
}

func (failingPublisher) Close() error { return nil }

func TestPublishLinked_PropagatesError(t *testing.T) {
	err := NewWatermillPublisher(failingPublisher{}).PublishLinked(context.Background(), core.LinkedEvent{UserKey: "42"})
	assert.Error(t, err)
}

func TestDecodeLinked_BadPayload(t *testing.T) {
	_, err := DecodeLinked(message.NewMessage("id", []byte("{")))
	assert.Error(t, err)
}

func TestZerologAdapter_WritesFields(t *testing.T) {
	var buf bytes.Buffer
	adapter := NewZerologAdapter(zerolog.New(&buf)).With(map[string]interface{}{"topic": "t"})

	adapter.Error("publish failed", errors.New("boom"), map[string]interface{}{"attempt": 2})

	out := buf.String()
	assert.Contains(t, out, `"topic":"t"`)
	assert.Contains(t, out, `"attempt":2`)
	assert.Contains(t, out, `"error":"boom"`)
	assert.Contains(t, out, "publish failed")
}
