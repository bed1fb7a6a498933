// Package broker publishes domain events to Kafka with segmentio/kafka-go.
//
// When no brokers are configured New returns a publisher that drops every
// message, so local development needs no Kafka.
package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// Publisher sends one keyed message. Messages with the same key keep their
// order within a partition.
type Publisher interface {
	Publish(ctx context.Context, key, eventType string, value []byte) error
	Close() error
}

// writer is the part of *kafka.Writer the publisher needs.
type writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	w     writer
	topic string
}

// New returns a Kafka publisher for topic, or a no-op one when brokers is
// empty.
func New(brokers []string, topic string) Publisher {
	if len(brokers) == 0 {
		return Nop{}
	}
	return NewKafka(brokers, topic)
}

func NewKafka(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		topic: topic,
		w: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireOne,
			BatchTimeout:           50 * time.Millisecond,
			WriteTimeout:           5 * time.Second,
			AllowAutoTopicCreation: true,
		},
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, key, eventType string, value []byte) error {
	msg := kafka.Message{
		Key:   []byte(key),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(eventType)},
		},
		Time: time.Now().UTC(),
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("broker: publish %s to %s: %w", eventType, p.topic, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error { return p.w.Close() }

// Nop discards every message.
type Nop struct{}

func (Nop) Publish(context.Context, string, string, []byte) error { return nil }
func (Nop) Close() error                                          { return nil }
