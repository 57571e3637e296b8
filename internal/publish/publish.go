// Package publish fans ingested events out to a Kafka topic for downstream
// consumers. Publication is best-effort and never affects ingestion.
package publish

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/PratikDhanave/telemetry-ingest-service/internal/index"
	"github.com/PratikDhanave/telemetry-ingest-service/internal/models"
)

type Publisher interface {
	Publish(ctx context.Context, ev models.StoredEvent) error
	Close() error
}

// Nop discards every event. Used when no brokers are configured.
type Nop struct{}

func (Nop) Publish(context.Context, models.StoredEvent) error { return nil }
func (Nop) Close() error                                      { return nil }

// messageWriter is the subset of *kafka.Writer used here.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Kafka struct {
	w   messageWriter
	log *slog.Logger
}

// NewKafka writes to topic on brokers. Messages are keyed by account:location so
// one location's events stay ordered within a partition.
func NewKafka(brokers []string, topic string, log *slog.Logger) *Kafka {
	return &Kafka{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			WriteTimeout: 5 * time.Second,
		},
		log: log.With(slog.String("component", "kafka-publisher")),
	}
}

func (k *Kafka) Publish(ctx context.Context, ev models.StoredEvent) error {
	msg, err := Message(ev)
	if err != nil {
		return err
	}
	if err := k.w.WriteMessages(ctx, msg); err != nil {
		k.log.Warn("publish failed", "key", ev.Key, "error", err)
		return err
	}
	return nil
}

func (k *Kafka) Close() error {
	return k.w.Close()
}

// Message encodes ev as a Kafka message.
func Message(ev models.StoredEvent) (kafka.Message, error) {
	b, err := json.Marshal(ev)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(index.LocationID(ev.Account, ev.Location)),
		Value: b,
		Headers: []kafka.Header{
			{Key: "source", Value: []byte(ev.Source)},
		},
	}, nil
}
