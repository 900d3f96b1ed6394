package events

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// NewBackend returns a Redis streams publisher when redisURL is set and an
// in-process channel otherwise. Without Redis there is no external sink, so
// the events of topic are written to logger instead. The returned close
// function releases everything NewBackend opened.
func NewBackend(ctx context.Context, redisURL, topic string, logger *logrus.Entry) (message.Publisher, func() error, error) {
	wlogger := NewLogrusAdapter(logger)

	if redisURL == "" {
		if topic == "" {
			topic = DefaultTopic
		}
		pubSub := gochannel.NewGoChannel(gochannel.Config{}, wlogger)
		messages, err := pubSub.Subscribe(ctx, topic)
		if err != nil {
			pubSub.Close()
			return nil, nil, fmt.Errorf("failed to subscribe to %s: %w", topic, err)
		}
		go logEvents(messages, logger.WithField("topic", topic))
		return pubSub, pubSub.Close, nil
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("failed to reach redis: %w", err)
	}

	publisher, err := redisstream.NewPublisher(
		redisstream.PublisherConfig{
			Client: client,
		},
		wlogger,
	)
	if err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("failed to create redis publisher: %w", err)
	}

	closeFn := func() error {
		perr := publisher.Close()
		if cerr := client.Close(); perr == nil {
			perr = cerr
		}
		return perr
	}
	return publisher, closeFn, nil
}

func logEvents(messages <-chan *message.Message, logger *logrus.Entry) {
	for msg := range messages {
		logger.WithFields(logrus.Fields{
			"uuid":    msg.UUID,
			"type":    msg.Metadata.Get("type"),
			"payload": string(msg.Payload),
		}).Info("Game event")
		msg.Ack()
	}
}
