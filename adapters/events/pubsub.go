package events

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
)

// ConsumerGroup is the redis stream consumer group used by bot notifiers
const ConsumerGroup = "walletlink-bot"

// LinkedStreamMaxLen caps the link event stream. Redis trims approximately,
// so the stream may briefly hold a few more entries.
const LinkedStreamMaxLen int64 = 10000

// NewInProcess returns a Go channel pub/sub for single instance deployments
func NewInProcess(logger watermill.LoggerAdapter) (message.Publisher, message.Subscriber) {
	ch := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, logger)
	return ch, ch
}

// NewRedisStream returns a pub/sub pair over Redis streams so that link events
// reach the bot process even when the HTTP API runs elsewhere.
func NewRedisStream(client *redis.Client, logger watermill.LoggerAdapter) (message.Publisher, message.Subscriber, error) {
	publisher, err := redisstream.NewPublisher(publisherConfig(client), logger)
	if err != nil {
		return nil, nil, err
	}

	subscriber, err := redisstream.NewSubscriber(
		redisstream.SubscriberConfig{
			Client:        client,
			ConsumerGroup: ConsumerGroup,
		},
		logger,
	)
	if err != nil {
		publisher.Close()
		return nil, nil, err
	}

	return publisher, subscriber, nil
}

func publisherConfig(client redis.UniversalClient) redisstream.PublisherConfig {
	return redisstream.PublisherConfig{
		Client: client,
		Maxlens: map[string]int64{
			LinkedTopic: LinkedStreamMaxLen,
		},
	}
}
