// Package events publishes execution lifecycle events through watermill.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/IBM/sarama"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v3/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/RealZimboGuy/gopherstep/internal/config"
	"github.com/RealZimboGuy/gopherstep/pkg/gopherstep/domain"
)

const (
	EventTypeMetadataKey   = "event_type"
	ExecutionIDMetadataKey = "execution_id"
)

// Publisher sends domain.ExecutionEvent values to a watermill topic as JSON.
type Publisher struct {
	publisher message.Publisher
	topic     string
}

func NewPublisher(pub message.Publisher, topic string) *Publisher {
	return &Publisher{publisher: pub, topic: topic}
}

func (p *Publisher) Publish(ctx context.Context, event domain.ExecutionEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	msg.Metadata.Set(EventTypeMetadataKey, string(event.Type))
	msg.Metadata.Set(ExecutionIDMetadataKey, event.ExecutionID)
	return p.publisher.Publish(p.topic, msg)
}

func (p *Publisher) Topic() string {
	return p.topic
}

func (p *Publisher) Close() error {
	return p.publisher.Close()
}

// NewGoChannel returns an in-process pub/sub. The same instance serves as
// publisher and subscriber.
func NewGoChannel(logger *slog.Logger) *gochannel.GoChannel {
	return gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer:            1000,
			Persistent:                     false,
			BlockPublishUntilSubscriberAck: false,
		},
		watermill.NewSlogLogger(logger),
	)
}

// NewKafkaPublisher connects a watermill Kafka publisher to brokers.
func NewKafkaPublisher(brokers []string, logger *slog.Logger) (*kafka.Publisher, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	saramaConfig := sarama.NewConfig()
	saramaConfig.Producer.Return.Successes = true
	return kafka.NewPublisher(
		kafka.PublisherConfig{
			Brokers:               brokers,
			Marshaler:             kafka.DefaultMarshaler{},
			OverwriteSaramaConfig: saramaConfig,
			OTELEnabled:           config.GetSystemSettingBool(config.OTEL_ENABLED),
		},
		watermill.NewSlogLogger(logger),
	)
}

// NewFromConfig builds the publisher selected by GSTEP_EVENTS_BACKEND. It
// returns nil for NONE. For GOCHANNEL the subscriber side is returned as well.
func NewFromConfig(logger *slog.Logger) (*Publisher, message.Subscriber, error) {
	topic := config.GetSystemSettingString(config.EVENTS_TOPIC)
	switch backend := config.GetSystemSettingString(config.EVENTS_BACKEND); backend {
	case config.EVENTS_BACKEND_NONE:
		return nil, nil, nil
	case config.EVENTS_BACKEND_GOCHANNEL:
		pubSub := NewGoChannel(logger)
		return NewPublisher(pubSub, topic), pubSub, nil
	case config.EVENTS_BACKEND_KAFKA:
		pub, err := NewKafkaPublisher(config.GetSystemSettingList(config.KAFKA_BROKERS), logger)
		if err != nil {
			return nil, nil, fmt.Errorf("creating kafka publisher: %w", err)
		}
		return NewPublisher(pub, topic), nil, nil
	default:
		return nil, nil, fmt.Errorf("unsupported events backend %q", backend)
	}
}

// Decode reads an event back from a message published by Publisher.
func Decode(msg *message.Message) (domain.ExecutionEvent, error) {
	var event domain.ExecutionEvent
	err := json.Unmarshal(msg.Payload, &event)
	return event, err
}

// LogEvents consumes events from sub until ctx ends and logs each one.
func LogEvents(ctx context.Context, sub message.Subscriber, topic string) error {
	messages, err := sub.Subscribe(ctx, topic)
	if err != nil {
		return err
	}
	go func() {
		for msg := range messages {
			event, err := Decode(msg)
			if err != nil {
				slog.WarnContext(ctx, "Dropping undecodable execution event", "message_id", msg.UUID, "error", err)
				msg.Nack()
				continue
			}
			slog.DebugContext(ctx, "Execution event", "type", event.Type, "execution_id", event.ExecutionID,
				"state", event.State, "status", event.Status)
			msg.Ack()
		}
	}()
	return nil
}
