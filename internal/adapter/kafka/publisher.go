// Package kafka publishes persisted measurements as JSON events for
// streaming consumers. Publication is optional and feature-flagged.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/fiumesicuro/hydro-ingest/internal/domain"
)

// Publisher produces measurement events to a Kafka topic. It implements
// pipeline.EventPublisher.
type Publisher struct {
	writer *kafkago.Writer
	clock  clockwork.Clock
	logger *slog.Logger
}

// NewPublisher creates a Kafka producer for the configured topic.
func NewPublisher(brokers []string, topic string, clock clockwork.Clock, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Publisher{writer: w, clock: clock, logger: logger}
}

// PublishMeasurements serializes and publishes measurements in a single
// WriteMessages call. Messages are keyed on the measurement natural key, so
// a compacted topic retains one event per key.
func (p *Publisher) PublishMeasurements(ctx context.Context, measurements []domain.Measurement) error {
	if len(measurements) == 0 {
		return nil
	}

	ingestedAt := p.clock.Now().UTC()
	msgs := make([]kafkago.Message, len(measurements))
	for i := range measurements {
		msg, err := serializeToMessage(measurements[i], ingestedAt)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	return p.writer.WriteMessages(ctx, msgs...)
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// measurementEvent is the wire form of one persisted measurement.
type measurementEvent struct {
	StationID    string    `json:"station_id"`
	ObservedAt   time.Time `json:"observed_at"`
	VariableType string    `json:"variable_type"`
	Value        float64   `json:"value"`
	IngestedAt   time.Time `json:"ingested_at"`
}

func serializeToMessage(m domain.Measurement, ingestedAt time.Time) (kafkago.Message, error) {
	event := measurementEvent{
		StationID:    m.StationID,
		ObservedAt:   m.ObservedAt,
		VariableType: m.VariableType,
		Value:        m.Value,
		IngestedAt:   ingestedAt,
	}
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize measurement event: %w", err)
	}

	key := fmt.Sprintf("%s|%s|%s", m.StationID, m.ObservedAt.UTC().Format(time.RFC3339), m.VariableType)
	return kafkago.Message{
		Key:   []byte(key),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "variable_type", Value: []byte(m.VariableType)},
			{Key: "ingested_at", Value: []byte(ingestedAt.Format(time.RFC3339))},
		},
	}, nil
}
