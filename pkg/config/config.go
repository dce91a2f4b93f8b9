package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App        AppConfig
	HTTP       HTTPConfig
	Model      ModelConfig
	Blob       BlobConfig
	ClickHouse ClickHouseConfig
	MQTT       MQTTConfig
	Kafka      KafkaConfig
	Telemetry  TelemetryConfig
}

type AppConfig struct {
	Name     string `envconfig:"APP_NAME" default:"load-forecast"`
	Env      string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Version  string `envconfig:"APP_VERSION" default:"dev"`
}

type HTTPConfig struct {
	Port            int           `envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"30s"`
	IdleTimeout     time.Duration `envconfig:"HTTP_IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `envconfig:"HTTP_SHUTDOWN_TIMEOUT" default:"10s"`
	AccessLog       bool          `envconfig:"HTTP_ACCESS_LOG" default:"true"`
}

func (c HTTPConfig) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// ModelConfig describes where the artifact lives and whether it is loaded
// before the listener starts
type ModelConfig struct {
	BlobPath  string `envconfig:"MODEL_BLOB_PATH" default:"models/load_model.json"`
	LocalPath string `envconfig:"MODEL_LOCAL_PATH" default:"cached_model.json"`
	EagerLoad bool   `envconfig:"MODEL_EAGER_LOAD" default:"true"`
}

// BlobConfig selects the blob store backend: "gcs" or "dir"
type BlobConfig struct {
	Backend string `envconfig:"BLOB_BACKEND" default:"gcs"`
	Bucket  string `envconfig:"BLOB_BUCKET" default:"load-forecasting-models-2026"`
	Dir     string `envconfig:"BLOB_DIR" default:"./blobs"`
}

// ClickHouseConfig leaves the analytics sink disabled when Addr is empty
type ClickHouseConfig struct {
	Addr     string `envconfig:"CLICKHOUSE_ADDR"`
	Database string `envconfig:"CLICKHOUSE_DB" default:"load_forecasting"`
	User     string `envconfig:"CLICKHOUSE_USER" default:"default"`
	Password string `envconfig:"CLICKHOUSE_PASS"`
}

func (c ClickHouseConfig) Enabled() bool {
	return c.Addr != ""
}

type MQTTConfig struct {
	Broker        string `envconfig:"MQTT_BROKER"`
	ClientID      string `envconfig:"MQTT_CLIENT_ID" default:"load-forecast"`
	Username      string `envconfig:"MQTT_USERNAME"`
	Password      string `envconfig:"MQTT_PASSWORD"`
	PredictTopic  string `envconfig:"MQTT_TOPIC_PREDICTION" default:"forecast/{season}/prediction"`
	RequestTopic  string `envconfig:"MQTT_TOPIC_REQUEST" default:"forecast/+/request"`
	ResponseTopic string `envconfig:"MQTT_TOPIC_RESPONSE" default:"forecast/{client_id}/response"`
	RequestBuffer int    `envconfig:"MQTT_REQUEST_BUFFER" default:"100"`
}

func (c MQTTConfig) Enabled() bool {
	return c.Broker != ""
}

type KafkaConfig struct {
	Brokers []string `envconfig:"KAFKA_BROKERS"`
	Topic   string   `envconfig:"KAFKA_TOPIC" default:"load-predictions"`
}

func (c KafkaConfig) Enabled() bool {
	return len(c.Brokers) > 0
}

// TelemetryConfig sizes the in-process queue between the request path and
// the analytics sinks
type TelemetryConfig struct {
	QueueSize     int           `envconfig:"TELEMETRY_QUEUE_SIZE" default:"1024"`
	BatchSize     int           `envconfig:"TELEMETRY_BATCH_SIZE" default:"100"`
	FlushInterval time.Duration `envconfig:"TELEMETRY_FLUSH_INTERVAL" default:"2s"`
	InsertTimeout time.Duration `envconfig:"TELEMETRY_INSERT_TIMEOUT" default:"5s"`
}

// Load reads configuration from environment variables
// It first tries to load .env file (useful for local development)
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env config: %w", err)
	}

	return &cfg, nil
}
