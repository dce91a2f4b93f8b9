package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

// NewRouter wires the forecast, diagnostics and health endpoints
func NewRouter(h *Handler, health *HealthHandler, metrics http.Handler) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/predict", h.Predict).Methods(http.MethodPost)

	r.HandleFunc("/healthz", health.HandleLiveness).Methods(http.MethodGet)
	r.HandleFunc("/readyz", health.HandleReadiness).Methods(http.MethodGet)
	if metrics != nil {
		r.Handle("/metrics", metrics).Methods(http.MethodGet)
	}

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/model", h.Model).Methods(http.MethodGet)
	v1.HandleFunc("/state", h.State).Methods(http.MethodGet)
	v1.HandleFunc("/predictions", h.Predictions).Methods(http.MethodGet)

	return r
}
