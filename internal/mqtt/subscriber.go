package mqtt

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"load-forecast/internal/models"
	"load-forecast/pkg/logger"
)

// Subscriber receives remote forecast requests and writes them to a channel
type Subscriber struct {
	client mqtt.Client

	// Output channel (written by subscriber, read by the remote forecast service)
	RequestChan chan *models.RemoteForecastRequest

	requestTopic string // e.g., "forecast/+/request"
	sendTimeout  time.Duration
	log          *logger.Logger
}

// SubscriberConfig holds configuration for MQTT subscriber
type SubscriberConfig struct {
	RequestTopic string
	SendTimeout  time.Duration // how long a full channel may block the callback
}

// NewSubscriber creates a new MQTT subscriber writing to requestChan
func NewSubscriber(
	client mqtt.Client,
	config SubscriberConfig,
	requestChan chan *models.RemoteForecastRequest,
) *Subscriber {
	if config.SendTimeout <= 0 {
		config.SendTimeout = time.Second
	}
	return &Subscriber{
		client:       client,
		RequestChan:  requestChan,
		requestTopic: config.RequestTopic,
		sendTimeout:  config.SendTimeout,
		log:          logger.Component("mqtt_subscriber"),
	}
}

// SubscribeAll subscribes to all configured topics
func (s *Subscriber) SubscribeAll() error {
	if s.requestTopic == "" {
		return nil
	}

	token := s.client.Subscribe(s.requestTopic, 1, s.handleRequest)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to subscribe to request topic: %w", token.Error())
	}
	s.log.Infow("Subscribed to forecast request topic", "topic", s.requestTopic)
	return nil
}

// Unsubscribe removes the request subscription
func (s *Subscriber) Unsubscribe() {
	if s.requestTopic == "" {
		return
	}
	token := s.client.Unsubscribe(s.requestTopic)
	token.WaitTimeout(2 * time.Second)
}

func (s *Subscriber) handleRequest(_ mqtt.Client, msg mqtt.Message) {
	req, err := parseRequest(msg.Topic(), msg.Payload())
	if err != nil {
		s.log.Warnw("Discarding forecast request", "topic", msg.Topic(), "error", err)
		return
	}
	req.ReceivedAt = time.Now()

	// Write to channel (non-blocking with timeout)
	select {
	case s.RequestChan <- req:
	case <-time.After(s.sendTimeout):
		s.log.Warnw("Request channel full, dropping forecast request", "client_id", req.ClientID)
	}
}

func parseRequest(topic string, payload []byte) (*models.RemoteForecastRequest, error) {
	clientID := extractClientID(topic)
	if clientID == "" {
		return nil, fmt.Errorf("could not extract client id from topic %q", topic)
	}

	var req models.RemoteForecastRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("invalid request payload: %w", err)
	}
	req.ClientID = clientID
	return &req, nil
}

// extractClientID extracts the client ID from an MQTT topic
// Example: "forecast/substation-7/request" -> "substation-7"
func extractClientID(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) >= 3 {
		return parts[1]
	}
	return ""
}
