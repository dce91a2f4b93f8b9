// Package kafka streams served forecasts to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"load-forecast/internal/models"
	"load-forecast/pkg/logger"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// SinkConfig holds configuration for the Kafka sink
type SinkConfig struct {
	Brokers []string
	Topic   string
}

// Sink publishes each telemetry row as one message keyed by season
type Sink struct {
	writer messageWriter
	topic  string
	log    *logger.Logger
}

// NewSink creates a sink with a synchronous writer
func NewSink(cfg SinkConfig) *Sink {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
		Async:        false,
	}
	return newSink(w, cfg.Topic)
}

func newSink(w messageWriter, topic string) *Sink {
	return &Sink{
		writer: w,
		topic:  topic,
		log:    logger.Component("kafka_sink"),
	}
}

func (s *Sink) Name() string { return "kafka" }

// Insert writes rows as one batch. Per-message failures reported by the
// writer are returned individually.
func (s *Sink) Insert(ctx context.Context, rows []models.TelemetryRecord) []error {
	if len(rows) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, len(rows))
	var errs []error
	for _, r := range rows {
		value, err := json.Marshal(r)
		if err != nil {
			errs = append(errs, fmt.Errorf("encode prediction %s: %w", r.RequestID, err))
			continue
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(r.Season),
			Value: value,
			Time:  r.Timestamp,
		})
	}
	if len(msgs) == 0 {
		return errs
	}

	err := s.writer.WriteMessages(ctx, msgs...)
	if err == nil {
		return errs
	}

	var writeErrs kafka.WriteErrors
	if errors.As(err, &writeErrs) {
		for i, e := range writeErrs {
			if e != nil {
				errs = append(errs, fmt.Errorf("write message %d to %s: %w", i, s.topic, e))
			}
		}
		return errs
	}
	return append(errs, fmt.Errorf("write %d messages to %s: %w", len(msgs), s.topic, err))
}

// Close flushes and closes the writer
func (s *Sink) Close() error {
	if err := s.writer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka writer: %w", err)
	}
	s.log.Info("Kafka writer closed")
	return nil
}
