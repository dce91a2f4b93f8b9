package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/spf13/afero"

	"load-forecast/internal/api"
	"load-forecast/internal/blobstore"
	"load-forecast/internal/database"
	"load-forecast/internal/kafka"
	"load-forecast/internal/metrics"
	"load-forecast/internal/ml"
	"load-forecast/internal/models"
	"load-forecast/internal/mqtt"
	"load-forecast/internal/services"
	"load-forecast/internal/state"
	"load-forecast/internal/telemetry"
	"load-forecast/pkg/config"
	"load-forecast/pkg/errors"
	"load-forecast/pkg/logger"
)

type blobStore interface {
	ml.BlobStore
	Upload(ctx context.Context, path string, data []byte) error
	Close() error
}

func main() {
	writeSample := flag.Bool("write-sample-model", false, "write a sample model to the local mirror path and exit")
	publishModel := flag.String("publish-model", "", "validate a local model artifact, upload it to the blob store and exit")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	log := logger.Component("main")

	log.Infow("Starting load forecast service", "version", cfg.App.Version, "env", cfg.App.Env)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fs := afero.NewOsFs()

	if *writeSample {
		if err := ml.CreateSampleModel(fs, cfg.Model.LocalPath); err != nil {
			log.Fatalf("Failed to write sample model: %v", err)
		}
		log.Infow("Sample model written", "path", cfg.Model.LocalPath)
		return
	}

	// === Blob store ===
	blobs, err := newBlobStore(ctx, cfg.Blob, fs)
	if err != nil {
		log.Fatalf("Failed to initialize blob store: %v", err)
	}
	defer blobs.Close()

	if *publishModel != "" {
		if err := publish(ctx, fs, blobs, *publishModel, cfg.Model.BlobPath); err != nil {
			log.Fatalf("Failed to publish model: %v", err)
		}
		log.Infow("Model published", "source", *publishModel, "blob_path", cfg.Model.BlobPath)
		return
	}

	metrics.Init()

	// === Model cache ===
	cache := ml.NewCache(ml.CacheConfig{
		Fs:        fs,
		Blobs:     blobs,
		BlobPath:  cfg.Model.BlobPath,
		LocalPath: cfg.Model.LocalPath,
	})
	if cfg.Model.EagerLoad {
		if err := cache.Load(ctx); err != nil {
			log.Fatalf("Failed to load model: %v", err)
		}
	}

	// === Telemetry sinks ===
	var (
		sinks  []telemetry.Sink
		db     *database.ClickHouseDB
		checks = map[string]api.Check{
			"model": func(context.Context) error {
				if _, ok := cache.Loaded(); !ok {
					return fmt.Errorf("model not loaded")
				}
				return nil
			},
		}
	)

	if cfg.ClickHouse.Enabled() {
		db, err = database.NewClickHouseDB(ctx,
			cfg.ClickHouse.Addr,
			cfg.ClickHouse.Database,
			cfg.ClickHouse.User,
			cfg.ClickHouse.Password,
		)
		if err != nil {
			log.Fatalf("Failed to initialize ClickHouse: %v", err)
		}
		defer db.Close()
		sinks = append(sinks, db)
		checks["clickhouse"] = db.Ping
	}

	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled() {
		mqttClient, err = mqtt.NewClient(mqtt.ClientConfig{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Username: cfg.MQTT.Username,
			Password: cfg.MQTT.Password,
		})
		if err != nil {
			log.Fatalf("Failed to initialize MQTT client: %v", err)
		}
		defer mqttClient.Close()
		checks["mqtt"] = func(context.Context) error {
			if !mqttClient.IsConnected() {
				return fmt.Errorf("not connected to %s", cfg.MQTT.Broker)
			}
			return nil
		}
	}

	var kafkaSink *kafka.Sink
	if cfg.Kafka.Enabled() {
		kafkaSink = kafka.NewSink(kafka.SinkConfig{Brokers: cfg.Kafka.Brokers, Topic: cfg.Kafka.Topic})
		defer kafkaSink.Close()
		sinks = append(sinks, kafkaSink)
	}

	// === Channel creation (MQTT <-> services) ===
	var (
		requestChan  chan *models.RemoteForecastRequest
		responseChan chan *models.RemoteForecastResponse
		publisher    *mqtt.Publisher
	)
	if mqttClient != nil {
		requestChan = make(chan *models.RemoteForecastRequest, cfg.MQTT.RequestBuffer)
		responseChan = make(chan *models.RemoteForecastResponse, cfg.MQTT.RequestBuffer)

		publisher = mqtt.NewPublisher(mqttClient.GetNativeClient(), mqtt.PublisherConfig{
			PredictionTopic: cfg.MQTT.PredictTopic,
			ResponseTopic:   cfg.MQTT.ResponseTopic,
		}, responseChan)
		sinks = append(sinks, publisher)
	}

	if len(sinks) == 0 {
		sinks = append(sinks, telemetry.NewLogSink(nil))
	}

	recorder := telemetry.NewRecorder(telemetry.RecorderConfig{
		QueueSize:     cfg.Telemetry.QueueSize,
		BatchSize:     cfg.Telemetry.BatchSize,
		FlushInterval: cfg.Telemetry.FlushInterval,
		InsertTimeout: cfg.Telemetry.InsertTimeout,
	}, sinks...)
	recorder.Start(ctx)

	// === Services ===
	tracker := state.NewTracker()
	predictions := services.NewPredictionService(cache, tracker, recorder, services.PredictionServiceConfig{})
	metrics.RollingState.Set(tracker.Read())

	// === MQTT request/response bridge ===
	var subscriber *mqtt.Subscriber
	if mqttClient != nil {
		remote := services.NewRemoteForecastService(predictions, services.DefaultRemoteForecastServiceConfig())

		// Connect the remote service to the subscriber output and publisher input
		remote.RequestChan = requestChan
		remote.ResponseChan = responseChan

		subscriber = mqtt.NewSubscriber(mqttClient.GetNativeClient(), mqtt.SubscriberConfig{
			RequestTopic: cfg.MQTT.RequestTopic,
		}, requestChan)

		go publisher.Start(ctx)
		go remote.Start(ctx)

		if err := subscriber.SubscribeAll(); err != nil {
			log.Fatalf("Failed to subscribe to MQTT topics: %v", err)
		}
	}

	// === HTTP server ===
	var history api.HistorySource
	if db != nil {
		history = db
	}
	router := api.NewRouter(
		api.NewHandler(predictions, cache, history),
		api.NewHealthHandler(cfg.App.Name, cfg.App.Version, checks),
		metrics.Handler(),
	)

	var handler http.Handler = handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(router)
	if cfg.HTTP.AccessLog {
		handler = handlers.LoggingHandler(os.Stdout, handler)
	}

	srv := &http.Server{
		Addr:         cfg.HTTP.Addr(),
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infow("HTTP server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	sinkNames := make([]string, 0, len(sinks))
	for _, s := range sinks {
		sinkNames = append(sinkNames, s.Name())
	}
	log.Infow("=== Load forecast service is running ===",
		"blob_backend", cfg.Blob.Backend,
		"model_blob_path", cfg.Model.BlobPath,
		"model_local_path", cfg.Model.LocalPath,
		"telemetry_sinks", sinkNames,
		"mqtt_requests", subscriber != nil,
	)

	// === Wait for interrupt signal ===
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Infow("Shutdown signal received, stopping services", "signal", sig.String())
	case err := <-serverErr:
		log.Errorw("HTTP server failed", "error", err)
	}

	// === Graceful shutdown ===
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()

	if subscriber != nil {
		subscriber.Unsubscribe()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("HTTP server shutdown error", "error", err)
	}

	// Drain telemetry before the sinks' connections are closed by the defers
	if err := recorder.Close(shutdownCtx); err != nil {
		log.Warnw("Telemetry drain incomplete", "error", err, "dropped", recorder.Dropped())
	}
	cancel()

	log.Info("Shutdown complete")
}

func newBlobStore(ctx context.Context, cfg config.BlobConfig, fs afero.Fs) (blobStore, error) {
	switch cfg.Backend {
	case "gcs":
		return blobstore.NewGCS(ctx, cfg.Bucket)
	case "dir":
		return blobstore.NewDir(fs, cfg.Dir), nil
	default:
		return nil, fmt.Errorf("unknown blob backend %q (want gcs or dir)", cfg.Backend)
	}
}

// publish validates the artifact at src before uploading it, so a broken
// file never replaces the served model
func publish(ctx context.Context, fs afero.Fs, blobs blobStore, src, dst string) error {
	data, err := afero.ReadFile(fs, src)
	if err != nil {
		return errors.Wrapf(err, "read artifact %s", src)
	}
	artifact, err := ml.DecodeArtifact(data)
	if err != nil {
		return err
	}
	if _, err := ml.NewModel(artifact); err != nil {
		return err
	}

	uploadCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	return errors.Wrap(blobs.Upload(uploadCtx, dst, data), "upload artifact")
}
