// Package telemetry records served forecasts for later analysis. Recording
// never blocks or fails the request that produced the forecast.
package telemetry

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"load-forecast/internal/metrics"
	"load-forecast/internal/models"
	"load-forecast/pkg/logger"
)

// Sink is an append-only analytics destination. Insert returns one error
// per failed row or batch; an empty result means success.
type Sink interface {
	Name() string
	Insert(ctx context.Context, rows []models.TelemetryRecord) []error
}

// NewRecord builds the telemetry row for one served forecast
func NewRecord(req models.PredictionRequest, forecastMW float64, at time.Time) models.TelemetryRecord {
	return models.TelemetryRecord{
		RequestID:     uuid.NewString(),
		Date:          req.Date.Format(models.DateLayout),
		Temperature:   req.Temperature,
		Humidity:      req.Humidity,
		Season:        string(req.Season),
		DayType:       string(req.DayType),
		PredictedLoad: forecastMW,
		Timestamp:     at.UTC(),
	}
}

// RecorderConfig holds configuration for the recorder
type RecorderConfig struct {
	QueueSize     int           // Records buffered before new ones are dropped
	BatchSize     int           // Flush when this many records are pending
	FlushInterval time.Duration // Flush pending records at least this often
	InsertTimeout time.Duration // Per-sink timeout for one batch insert
}

// DefaultRecorderConfig returns default configuration
func DefaultRecorderConfig() RecorderConfig {
	return RecorderConfig{
		QueueSize:     1024,
		BatchSize:     100,
		FlushInterval: 2 * time.Second,
		InsertTimeout: 5 * time.Second,
	}
}

// Recorder queues records in a bounded channel and writes them to every
// sink from a single background worker
type Recorder struct {
	sinks []Sink
	cfg   RecorderConfig

	mu     sync.RWMutex // guards closed against concurrent Record
	closed bool
	queue  chan models.TelemetryRecord

	started atomic.Bool
	wg      sync.WaitGroup
	dropped atomic.Uint64

	log *logger.Logger
}

// NewRecorder creates a recorder writing to the given sinks
func NewRecorder(cfg RecorderConfig, sinks ...Sink) *Recorder {
	def := DefaultRecorderConfig()
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = def.FlushInterval
	}
	if cfg.InsertTimeout <= 0 {
		cfg.InsertTimeout = def.InsertTimeout
	}

	return &Recorder{
		sinks: sinks,
		cfg:   cfg,
		queue: make(chan models.TelemetryRecord, cfg.QueueSize),
		log:   logger.Component("telemetry"),
	}
}

// Start launches the background worker. It runs until Close is called or
// ctx is cancelled.
func (r *Recorder) Start(ctx context.Context) {
	if !r.started.CompareAndSwap(false, true) {
		return
	}

	names := make([]string, 0, len(r.sinks))
	for _, s := range r.sinks {
		names = append(names, s.Name())
	}
	r.log.Infow("Telemetry recorder started",
		"sinks", names,
		"queue_size", r.cfg.QueueSize,
		"batch_size", r.cfg.BatchSize,
		"flush_interval", r.cfg.FlushInterval,
	)

	r.wg.Add(1)
	go r.run(ctx)
}

// Record enqueues a record without blocking. When the queue is full or the
// recorder is closed the record is dropped and false is returned.
func (r *Recorder) Record(rec models.TelemetryRecord) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		r.drop(rec, "recorder closed")
		return false
	}

	select {
	case r.queue <- rec:
		metrics.TelemetryRecords.WithLabelValues("queued").Inc()
		metrics.TelemetryQueueDepth.Set(float64(len(r.queue)))
		return true
	default:
		r.drop(rec, "queue full")
		return false
	}
}

func (r *Recorder) drop(rec models.TelemetryRecord, reason string) {
	r.dropped.Add(1)
	metrics.TelemetryRecords.WithLabelValues("dropped").Inc()
	r.log.Warnw("Dropping telemetry record", "reason", reason, "request_id", rec.RequestID)
}

// Dropped returns how many records were dropped
func (r *Recorder) Dropped() uint64 {
	return r.dropped.Load()
}

// Close stops accepting records, flushes what is queued and waits for the
// worker to finish or ctx to expire
func (r *Recorder) Close(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	if !r.started.Load() {
		// never started: drain synchronously
		r.drain(nil)
		return nil
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		// the worker may have exited on ctx cancellation before the queue closed
		r.drain(nil)
		r.log.Info("Telemetry recorder stopped")
		return nil
	case <-ctx.Done():
		r.log.Warn("Telemetry recorder stop timed out")
		return ctx.Err()
	}
}

func (r *Recorder) run(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.cfg.FlushInterval)
	defer ticker.Stop()

	batch := make([]models.TelemetryRecord, 0, r.cfg.BatchSize)

	for {
		select {
		case <-ctx.Done():
			r.drain(batch)
			return

		case rec, ok := <-r.queue:
			if !ok {
				r.flush(batch)
				return
			}
			batch = append(batch, rec)
			if len(batch) >= r.cfg.BatchSize {
				r.flush(batch)
				batch = make([]models.TelemetryRecord, 0, r.cfg.BatchSize)
			}

		case <-ticker.C:
			if len(batch) > 0 {
				r.flush(batch)
				batch = make([]models.TelemetryRecord, 0, r.cfg.BatchSize)
			}
		}
	}
}

// drain flushes pending plus whatever is still buffered in the queue
func (r *Recorder) drain(pending []models.TelemetryRecord) {
	for {
		select {
		case rec, ok := <-r.queue:
			if !ok {
				r.flush(pending)
				return
			}
			pending = append(pending, rec)
		default:
			r.flush(pending)
			return
		}
	}
}

func (r *Recorder) flush(batch []models.TelemetryRecord) {
	metrics.TelemetryQueueDepth.Set(float64(len(r.queue)))
	if len(batch) == 0 {
		return
	}

	for _, sink := range r.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), r.cfg.InsertTimeout)
		errs := sink.Insert(ctx, batch)
		cancel()

		metrics.RecordTelemetryInsert(sink.Name(), errs)
		if len(errs) > 0 {
			r.log.Errorw("Telemetry insert error",
				"sink", sink.Name(),
				"rows", len(batch),
				"errors", len(errs),
				"first_error", errs[0],
			)
			continue
		}
		r.log.Debugw("Telemetry batch written", "sink", sink.Name(), "rows", len(batch))
	}
}
