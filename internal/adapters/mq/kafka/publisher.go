// Package kafka publishes profile update notifications.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/IBM/sarama"

	"github.com/Avasam/Global-speedrunning-leaderboard/pkg/logger"
)

// DefaultTopic receives ProfileUpdated events.
const DefaultTopic = "profile-updates"

// ErrPublish wraps producer failures.
var ErrPublish = errors.New("publish profile update")

// ProfileUpdated is emitted after a profile's leaderboard row was written.
type ProfileUpdated struct {
	ProfileID   string    `json:"profile_id"`
	DisplayName string    `json:"display_name"`
	Points      float64   `json:"points"`
	Inserted    bool      `json:"inserted"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Publisher sends update notifications.
type Publisher interface {
	Publish(ctx context.Context, event ProfileUpdated) error
	Close() error
}

// Option configures a KafkaPublisher.
type Option func(*KafkaPublisher)

// WithTopic overrides DefaultTopic.
func WithTopic(topic string) Option {
	return func(p *KafkaPublisher) {
		if topic != "" {
			p.topic = topic
		}
	}
}

// WithLogger sets the publisher's logger.
func WithLogger(l logger.Logger) Option {
	return func(p *KafkaPublisher) {
		if l != nil {
			p.logger = l
		}
	}
}

// KafkaPublisher writes events keyed by profile id, so updates for one
// profile stay ordered within a partition.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
	logger   logger.Logger
}

// NewKafkaPublisher dials brokers with a synchronous producer.
func NewKafkaPublisher(brokers []string, opts ...Option) (*KafkaPublisher, error) {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForLocal
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Return.Successes = true
	config.Producer.Return.Errors = true

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("%w: connect to %v: %w", ErrPublish, brokers, err)
	}
	return NewPublisher(producer, opts...), nil
}

// NewPublisher wraps an existing producer.
func NewPublisher(producer sarama.SyncProducer, opts ...Option) *KafkaPublisher {
	p := &KafkaPublisher{
		producer: producer,
		topic:    DefaultTopic,
		logger:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish sends event and waits for the broker acknowledgement.
func (p *KafkaPublisher) Publish(ctx context.Context, event ProfileUpdated) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPublish, err)
	}
	partition, offset, err := p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(event.ProfileID),
		Value: sarama.ByteEncoder(data),
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPublish, event.ProfileID, err)
	}
	p.logger.Debug(ctx, "published profile update",
		logger.String("profileID", event.ProfileID),
		logger.Int("partition", int(partition)),
		logger.Any("offset", offset),
	)
	return nil
}

// Close shuts the producer down.
func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}

// NopPublisher drops every event. Used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, ProfileUpdated) error { return nil }
func (NopPublisher) Close() error                                  { return nil }
