package services

import (
	"context"
	"time"

	"load-forecast/internal/models"
	"load-forecast/pkg/logger"
)

// Predictor serves a forecast for a raw transport payload
type Predictor interface {
	Predict(ctx context.Context, payload models.PredictionPayload) (*models.PredictionResult, error)
}

// RemoteForecastService answers forecast requests that arrive over MQTT.
// Requests are read from RequestChan and answers written to ResponseChan.
type RemoteForecastService struct {
	predictor Predictor

	// Input channel from the MQTT subscriber
	RequestChan chan *models.RemoteForecastRequest
	// Output channel to the MQTT publisher
	ResponseChan chan *models.RemoteForecastResponse

	sendTimeout time.Duration
	log         *logger.Logger
}

// RemoteForecastServiceConfig holds configuration for the remote forecast service
type RemoteForecastServiceConfig struct {
	RequestChannelSize  int
	ResponseChannelSize int
	SendTimeout         time.Duration
}

// DefaultRemoteForecastServiceConfig returns default configuration
func DefaultRemoteForecastServiceConfig() RemoteForecastServiceConfig {
	return RemoteForecastServiceConfig{
		RequestChannelSize:  100,
		ResponseChannelSize: 100,
		SendTimeout:         time.Second,
	}
}

// NewRemoteForecastService creates a new remote forecast service
func NewRemoteForecastService(predictor Predictor, config RemoteForecastServiceConfig) *RemoteForecastService {
	def := DefaultRemoteForecastServiceConfig()
	if config.RequestChannelSize <= 0 {
		config.RequestChannelSize = def.RequestChannelSize
	}
	if config.ResponseChannelSize <= 0 {
		config.ResponseChannelSize = def.ResponseChannelSize
	}
	if config.SendTimeout <= 0 {
		config.SendTimeout = def.SendTimeout
	}

	return &RemoteForecastService{
		predictor:    predictor,
		RequestChan:  make(chan *models.RemoteForecastRequest, config.RequestChannelSize),
		ResponseChan: make(chan *models.RemoteForecastResponse, config.ResponseChannelSize),
		sendTimeout:  config.SendTimeout,
		log:          logger.Component("remote_forecast"),
	}
}

// Start processes requests until the context is cancelled, then closes
// ResponseChan so the publisher can finish
func (s *RemoteForecastService) Start(ctx context.Context) {
	s.log.Info("Remote forecast service starting")
	defer func() {
		close(s.ResponseChan)
		s.log.Info("Remote forecast service stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case req, ok := <-s.RequestChan:
			if !ok {
				return
			}
			s.process(ctx, req)
		}
	}
}

func (s *RemoteForecastService) process(ctx context.Context, req *models.RemoteForecastRequest) {
	resp := &models.RemoteForecastResponse{
		ClientID:  req.ClientID,
		RequestID: req.RequestID,
	}

	result, err := s.predictor.Predict(ctx, req.PredictionPayload)
	if err != nil {
		resp.Error = err.Error()
		s.log.Warnw("Remote forecast failed", "client_id", req.ClientID, "error", err)
	} else {
		load := result.ForecastMW
		resp.PredictedLoad = &load
		resp.Timestamp = result.TimestampUTC
	}

	// Write to channel (non-blocking with timeout)
	select {
	case s.ResponseChan <- resp:
	case <-time.After(s.sendTimeout):
		s.log.Warnw("Response channel full, dropping forecast response", "client_id", req.ClientID)
	}
}
