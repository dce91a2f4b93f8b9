package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"load-forecast/internal/models"
	"load-forecast/pkg/errors"
	"load-forecast/pkg/logger"
)

const maxBodyBytes = 1 << 20

// Predictor serves one forecast from a raw request payload
type Predictor interface {
	Predict(ctx context.Context, payload models.PredictionPayload) (*models.PredictionResult, error)
	State() models.StateInfo
}

// ModelInfoSource reports the loaded model, if any
type ModelInfoSource interface {
	Info() (models.ModelInfo, bool)
}

// HistorySource lists recently served forecasts
type HistorySource interface {
	RecentPredictions(ctx context.Context, limit int) ([]models.TelemetryRecord, error)
}

// Handler serves the forecast API
type Handler struct {
	predictor Predictor
	model     ModelInfoSource
	history   HistorySource
	log       *logger.Logger
}

// NewHandler creates the API handler. history may be nil when no analytics
// store is configured.
func NewHandler(predictor Predictor, model ModelInfoSource, history HistorySource) *Handler {
	return &Handler{
		predictor: predictor,
		model:     model,
		history:   history,
		log:       logger.Component("api"),
	}
}

type predictResponse struct {
	PredictedLoad float64 `json:"predicted_load"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Predict handles POST /predict
func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	var payload models.PredictionPayload

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid JSON body: %w", err))
		return
	}

	result, err := h.predictor.Predict(r.Context(), payload)
	if err != nil {
		code := statusFor(err)
		if code >= http.StatusInternalServerError {
			h.log.Errorw("Prediction failed", "status", code, "error", err)
		}
		writeError(w, code, err)
		return
	}

	writeJSON(w, http.StatusOK, predictResponse{PredictedLoad: result.ForecastMW})
}

// Model handles GET /api/v1/model
func (h *Handler) Model(w http.ResponseWriter, _ *http.Request) {
	info, ok := h.model.Info()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, fmt.Errorf("model not loaded"))
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// State handles GET /api/v1/state
func (h *Handler) State(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.predictor.State())
}

// Predictions handles GET /api/v1/predictions?limit=N
func (h *Handler) Predictions(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("prediction history is not configured"))
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 1000 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("limit must be between 1 and 1000"))
			return
		}
		limit = n
	}

	rows, err := h.history.RecentPredictions(r.Context(), limit)
	if err != nil {
		h.log.Errorw("Failed to load prediction history", "error", err)
		writeError(w, http.StatusBadGateway, fmt.Errorf("prediction history unavailable"))
		return
	}
	if rows == nil {
		rows = []models.TelemetryRecord{}
	}
	writeJSON(w, http.StatusOK, rows)
}

// statusFor maps an error kind to its HTTP status
func statusFor(err error) int {
	switch errors.KindOf(err) {
	case errors.KindValidation:
		return http.StatusBadRequest
	case errors.KindModelFetch, errors.KindModelFormat:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, errorResponse{Error: err.Error()})
}
