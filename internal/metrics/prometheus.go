package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Prediction path
	Predictions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "load_forecast_predictions_total",
			Help: "Total number of forecast requests by outcome",
		},
		[]string{"status"}, // status: success|validation|model_fetch|model_format|input_shape|internal
	)

	PredictionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "load_forecast_prediction_duration_seconds",
			Help:    "Time spent serving one forecast",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
	)

	ForecastMW = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "load_forecast_last_forecast_mw",
			Help: "Most recently served forecast in MW",
		},
	)

	RollingState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "load_forecast_rolling_state",
			Help: "Current normalized previous-load state",
		},
	)

	// Model cache
	ModelLoads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "load_forecast_model_loads_total",
			Help: "Model load attempts by source and outcome",
		},
		[]string{"source", "status"}, // source: mirror|blob
	)

	ModelLoadDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "load_forecast_model_load_duration_seconds",
			Help:    "Time spent fetching and decoding the model artifact",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
	)

	// Telemetry
	TelemetryRecords = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "load_forecast_telemetry_records_total",
			Help: "Telemetry records by outcome",
		},
		[]string{"status"}, // status: queued|dropped
	)

	TelemetryInserts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "load_forecast_telemetry_inserts_total",
			Help: "Telemetry batch inserts per sink and outcome",
		},
		[]string{"sink", "status"}, // status: success|error
	)

	TelemetryQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "load_forecast_telemetry_queue_depth",
			Help: "Records waiting in the telemetry queue",
		},
	)
)

var registerOnce sync.Once

// Init registers all collectors with the default registry
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(Predictions)
		prometheus.MustRegister(PredictionDuration)
		prometheus.MustRegister(ForecastMW)
		prometheus.MustRegister(RollingState)
		prometheus.MustRegister(ModelLoads)
		prometheus.MustRegister(ModelLoadDuration)
		prometheus.MustRegister(TelemetryRecords)
		prometheus.MustRegister(TelemetryInserts)
		prometheus.MustRegister(TelemetryQueueDepth)
	})
}

// Handler returns the Prometheus scrape handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordPrediction records the outcome and latency of one forecast request
func RecordPrediction(status string, duration time.Duration, mw float64) {
	Predictions.WithLabelValues(status).Inc()
	PredictionDuration.Observe(duration.Seconds())
	if status == "success" {
		ForecastMW.Set(mw)
	}
}

// RecordModelLoad records one model load attempt
func RecordModelLoad(source string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	ModelLoads.WithLabelValues(source, status).Inc()
	ModelLoadDuration.Observe(duration.Seconds())
}

// RecordTelemetryInsert records one batch insert into a sink
func RecordTelemetryInsert(sink string, errs []error) {
	status := "success"
	if len(errs) > 0 {
		status = "error"
	}
	TelemetryInserts.WithLabelValues(sink, status).Inc()
}
