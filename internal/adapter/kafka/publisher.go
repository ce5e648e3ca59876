// Package kafka publishes resolution outcomes to a Kafka topic so other
// systems can consume the speed limit stream. Publishing is optional and
// best-effort; a failed publish never blocks the poll cycle.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/taisau/ha-road-speed-limits/internal/domain"
)

// Publisher produces resolution outcomes to a Kafka topic.
type Publisher struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewPublisher creates a Kafka producer for the outcome topic.
func NewPublisher(brokers []string, topic string, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Publisher{writer: w, logger: logger}
}

// Publish serializes and writes one resolution outcome.
func (p *Publisher) Publish(ctx context.Context, coord domain.Coordinate, outcome domain.ResolutionOutcome) error {
	msg, err := serializeToMessage(coord, outcome)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, msg)
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// outcomeRecord is the published payload: the outcome plus the coordinate
// it was resolved for.
type outcomeRecord struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	domain.ResolutionOutcome
}

// serializeToMessage marshals a resolution outcome into a Kafka message.
// The key is the configured data source so one provider's stream lands on
// one partition.
func serializeToMessage(coord domain.Coordinate, outcome domain.ResolutionOutcome) (kafkago.Message, error) {
	record := outcomeRecord{
		Latitude:          coord.Latitude,
		Longitude:         coord.Longitude,
		ResolutionOutcome: outcome,
	}
	data, err := json.Marshal(record)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize outcome: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(outcome.DataSource),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "active_provider", Value: []byte(outcome.ActiveProvider)},
			{Key: "fallback_active", Value: []byte(fmt.Sprintf("%t", outcome.FallbackActive))},
			{Key: "resolved_at", Value: []byte(outcome.Result.Timestamp.Format(time.RFC3339))},
		},
	}, nil
}
