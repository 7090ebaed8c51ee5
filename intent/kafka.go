package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

type KafkaOptions struct {
	Brokers      []string      `json:"brokers" yaml:"brokers"`
	Topic        string        `json:"topic" yaml:"topic" default:"tradegate.intents"`
	RequiredAcks int           `json:"required_acks" yaml:"required_acks" default:"-1"`
	MaxAttempts  int           `json:"max_attempts" yaml:"max_attempts" default:"3"`
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout" default:"10s"`
	BatchTimeout time.Duration `json:"batch_timeout" yaml:"batch_timeout" default:"100ms"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka publishes JSON intents keyed by asset so one asset's intents stay
// ordered within a partition.
type Kafka struct {
	w     messageWriter
	topic string
}

func NewKafka(opts KafkaOptions) (*Kafka, error) {
	if len(opts.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}
	if opts.Topic == "" {
		return nil, fmt.Errorf("topic is required")
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(opts.Brokers...),
		Topic:        opts.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequiredAcks(opts.RequiredAcks),
		MaxAttempts:  opts.MaxAttempts,
		WriteTimeout: opts.WriteTimeout,
		BatchTimeout: opts.BatchTimeout,
	}
	return &Kafka{w: w, topic: opts.Topic}, nil
}

func (k *Kafka) Publish(ctx context.Context, in Intent) error {
	v, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal intent: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(in.Asset),
		Value: v,
		Time:  in.Time,
		Headers: []kafka.Header{
			{Key: "mode", Value: []byte(in.Mode)},
		},
	}
	if err := k.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s to %s: %w", in.TradeID, k.topic, err)
	}
	return nil
}

func (k *Kafka) Close() error {
	return k.w.Close()
}
