package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"load-forecast/internal/models"
	"load-forecast/pkg/logger"
)

// Publisher fans served forecasts out as MQTT events and sends responses
// to remote forecast requests
type Publisher struct {
	client mqtt.Client

	// Input channel (read by publisher, written by the remote forecast service)
	ResponseChan chan *models.RemoteForecastResponse

	// Topic patterns
	predictionTopic string // e.g., "forecast/{season}/prediction"
	responseTopic   string // e.g., "forecast/{client_id}/response"

	publishTimeout time.Duration
	log            *logger.Logger
}

// PublisherConfig holds configuration for MQTT publisher
type PublisherConfig struct {
	PredictionTopic string
	ResponseTopic   string
	PublishTimeout  time.Duration
}

// NewPublisher creates a new MQTT publisher. responseChan may be nil when
// remote requests are not served.
func NewPublisher(
	client mqtt.Client,
	config PublisherConfig,
	responseChan chan *models.RemoteForecastResponse,
) *Publisher {
	if config.PublishTimeout <= 0 {
		config.PublishTimeout = 5 * time.Second
	}
	return &Publisher{
		client:          client,
		ResponseChan:    responseChan,
		predictionTopic: config.PredictionTopic,
		responseTopic:   config.ResponseTopic,
		publishTimeout:  config.PublishTimeout,
		log:             logger.Component("mqtt_publisher"),
	}
}

// Name identifies the publisher as a telemetry sink
func (p *Publisher) Name() string { return "mqtt" }

// Insert publishes one prediction event per row to the season topic.
// Each failed row yields one error; the remaining rows are still sent.
func (p *Publisher) Insert(ctx context.Context, rows []models.TelemetryRecord) []error {
	var errs []error
	for i := range rows {
		if ctx.Err() != nil {
			errs = append(errs, fmt.Errorf("publish prediction %s: %w", rows[i].RequestID, ctx.Err()))
			continue
		}
		topic := formatTopic(p.predictionTopic, "{season}", topicSegment(rows[i].Season))
		if err := p.publishJSON(topic, &rows[i]); err != nil {
			errs = append(errs, fmt.Errorf("publish prediction %s: %w", rows[i].RequestID, err))
		}
	}
	return errs
}

// Start begins publishing responses from the channel
// Runs until context is cancelled or channel is closed
func (p *Publisher) Start(ctx context.Context) {
	p.log.Info("MQTT publisher starting")

	for {
		select {
		case <-ctx.Done():
			p.log.Info("MQTT publisher: context cancelled, shutting down")
			return

		case resp, ok := <-p.ResponseChan:
			if !ok {
				p.log.Info("MQTT publisher: response channel closed, shutting down")
				return
			}

			if err := p.publishResponse(resp); err != nil {
				p.log.Errorw("Error publishing forecast response", "client_id", resp.ClientID, "error", err)
			}
		}
	}
}

func (p *Publisher) publishResponse(resp *models.RemoteForecastResponse) error {
	topic := formatTopic(p.responseTopic, "{client_id}", topicSegment(resp.ClientID))
	if err := p.publishJSON(topic, resp); err != nil {
		return err
	}

	p.log.Debugw("Published forecast response", "client_id", resp.ClientID, "topic", topic)
	return nil
}

func (p *Publisher) publishJSON(topic string, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	token := p.client.Publish(topic, 1, false, payload)
	if !token.WaitTimeout(p.publishTimeout) {
		return fmt.Errorf("publish to %s timed out after %v", topic, p.publishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return nil
}

// formatTopic replaces a {placeholder} in the topic pattern
func formatTopic(topicPattern, placeholder, value string) string {
	return strings.ReplaceAll(topicPattern, placeholder, value)
}

// topicSegment makes a value safe to use as one topic level
func topicSegment(v string) string {
	v = strings.NewReplacer("/", "_", "+", "_", "#", "_").Replace(strings.TrimSpace(v))
	if v == "" {
		return "unknown"
	}
	return v
}
