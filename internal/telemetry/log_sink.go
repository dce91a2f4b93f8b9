package telemetry

import (
	"context"

	"load-forecast/internal/models"
	"load-forecast/pkg/logger"
)

// LogSink writes each record as a structured log line. It is the fallback
// when no analytics backend is configured.
type LogSink struct {
	log *logger.Logger
}

// NewLogSink creates a log sink on the given logger, or the global one if nil
func NewLogSink(l *logger.Logger) *LogSink {
	if l == nil {
		l = logger.Component("telemetry_log")
	}
	return &LogSink{log: l}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Insert(_ context.Context, rows []models.TelemetryRecord) []error {
	for _, r := range rows {
		s.log.Infow("Forecast served",
			"request_id", r.RequestID,
			"date", r.Date,
			"temperature", r.Temperature,
			"humidity", r.Humidity,
			"season", r.Season,
			"daytype", r.DayType,
			"predicted_load", r.PredictedLoad,
			"timestamp", r.Timestamp,
		)
	}
	return nil
}
