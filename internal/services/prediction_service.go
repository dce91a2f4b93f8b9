package services

import (
	"context"
	"time"

	"load-forecast/internal/features"
	"load-forecast/internal/metrics"
	"load-forecast/internal/ml"
	"load-forecast/internal/models"
	"load-forecast/internal/state"
	"load-forecast/internal/telemetry"
	"load-forecast/pkg/errors"
	"load-forecast/pkg/logger"
)

// ModelProvider hands out the loaded model, loading it on first use
type ModelProvider interface {
	Get(ctx context.Context) (*ml.Model, error)
}

// TelemetryRecorder accepts served forecasts without blocking
type TelemetryRecorder interface {
	Record(rec models.TelemetryRecord) bool
}

// PredictionService turns validated requests into forecasts. It owns no
// state itself: the rolling state lives in the tracker and the model in the
// provider.
type PredictionService struct {
	models    ModelProvider
	tracker   *state.Tracker
	telemetry TelemetryRecorder
	now       func() time.Time
	log       *logger.Logger
}

// PredictionServiceConfig holds optional settings for the prediction service
type PredictionServiceConfig struct {
	Clock func() time.Time // defaults to time.Now
}

// NewPredictionService creates a prediction service. recorder may be nil.
func NewPredictionService(
	provider ModelProvider,
	tracker *state.Tracker,
	recorder TelemetryRecorder,
	config PredictionServiceConfig,
) *PredictionService {
	clock := config.Clock
	if clock == nil {
		clock = time.Now
	}
	return &PredictionService{
		models:    provider,
		tracker:   tracker,
		telemetry: recorder,
		now:       clock,
		log:       logger.Component("prediction_service"),
	}
}

// Predict validates a transport payload and serves the forecast for it
func (s *PredictionService) Predict(ctx context.Context, payload models.PredictionPayload) (*models.PredictionResult, error) {
	req, err := features.ParseRequest(payload)
	if err != nil {
		metrics.RecordPrediction(errors.KindOf(err).String(), 0, 0)
		return nil, err
	}
	return s.Handle(ctx, req)
}

// Handle serves one forecast. Encoding, inference and the state update run
// as one step against the rolling state, so concurrent requests observe a
// sequential history. Nothing is updated or recorded when the step fails.
func (s *PredictionService) Handle(ctx context.Context, req models.PredictionRequest) (*models.PredictionResult, error) {
	start := time.Now()

	var prev float64
	forecastMW, err := s.tracker.Step(func(prevLoadNorm float64) (float64, error) {
		prev = prevLoadNorm

		vector, err := features.Encode(req, prevLoadNorm)
		if err != nil {
			return 0, err
		}

		model, err := s.models.Get(ctx)
		if err != nil {
			return 0, err
		}

		return ml.Run(vector, model)
	})
	duration := time.Since(start)

	if err != nil {
		kind := errors.KindOf(err)
		metrics.RecordPrediction(kind.String(), duration, 0)
		if kind == errors.KindValidation {
			s.log.Debugw("Rejected forecast request", "error", err)
		} else {
			s.log.Errorw("Forecast failed", "kind", kind.String(), "error", err)
		}
		return nil, err
	}

	metrics.RecordPrediction("success", duration, forecastMW)
	metrics.RollingState.Set(s.tracker.Read())

	servedAt := s.now().UTC()
	if s.telemetry != nil {
		s.telemetry.Record(telemetry.NewRecord(req, forecastMW, servedAt))
	}

	s.log.Debugw("Forecast served",
		"date", req.Date.Format(models.DateLayout),
		"season", req.Season,
		"daytype", req.DayType,
		"prev_load_norm", prev,
		"predicted_load", forecastMW,
		"duration", duration,
	)

	return &models.PredictionResult{
		ForecastMW:   forecastMW,
		TimestampUTC: servedAt.Format(time.RFC3339),
	}, nil
}

// State returns a snapshot of the rolling state
func (s *PredictionService) State() models.StateInfo {
	return s.tracker.Info()
}
