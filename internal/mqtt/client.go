package mqtt

import (
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"load-forecast/pkg/logger"
)

// Client manages the MQTT connection (low-level connection management only)
// For subscribing and publishing, use Subscriber and Publisher respectively
type Client struct {
	client mqtt.Client
	config ClientConfig
	log    *logger.Logger
}

// ClientConfig holds MQTT client configuration
type ClientConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
}

// NewClient creates a new MQTT client connection
func NewClient(config ClientConfig) (*Client, error) {
	log := logger.Component("mqtt")

	opts := mqtt.NewClientOptions()
	opts.AddBroker(config.Broker)
	opts.SetClientID(config.ClientID)
	opts.SetUsername(config.Username)
	opts.SetPassword(config.Password)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		log.Info("MQTT connection established")
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warnw("MQTT connection lost", "error", err)
	})
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	client := mqtt.NewClient(opts)

	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	log.Infow("Connected to MQTT broker", "broker", config.Broker, "client_id", config.ClientID)

	return &Client{
		client: client,
		config: config,
		log:    log,
	}, nil
}

// GetNativeClient returns the underlying paho MQTT client
// This is used by Subscriber and Publisher
func (c *Client) GetNativeClient() mqtt.Client {
	return c.client
}

// IsConnected returns whether the client is currently connected
func (c *Client) IsConnected() bool {
	return c.client.IsConnected()
}

// Close closes the MQTT client connection
func (c *Client) Close() {
	c.client.Disconnect(250)
	c.log.Info("MQTT client disconnected")
}
