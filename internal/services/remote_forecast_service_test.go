package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"load-forecast/internal/models"
	"load-forecast/internal/state"
)

func TestRemoteForecastService_AnswersRequests(t *testing.T) {
	predictor := newService(&staticProvider{model: sampleModel(t)}, state.NewTracker(), nil)
	svc := NewRemoteForecastService(predictor, RemoteForecastServiceConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.Start(ctx)
		close(done)
	}()

	svc.RequestChan <- &models.RemoteForecastRequest{
		ClientID:  "substation-7",
		RequestID: "r1",
		PredictionPayload: models.PredictionPayload{
			Date: "2024-06-15", Temperature: 30.0, Humidity: 70.0, DayType: "weekday", Season: "summer",
		},
	}
	svc.RequestChan <- &models.RemoteForecastRequest{
		ClientID:          "substation-8",
		PredictionPayload: models.PredictionPayload{Date: "2024-06-15"},
	}

	var got []*models.RemoteForecastResponse
	for len(got) < 2 {
		select {
		case resp := <-svc.ResponseChan:
			got = append(got, resp)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for responses")
		}
	}

	ok := got[0]
	assert.Equal(t, "substation-7", ok.ClientID)
	assert.Equal(t, "r1", ok.RequestID)
	require.NotNil(t, ok.PredictedLoad)
	assert.Equal(t, expected(t, sampleModel(t), summerWeekday(), state.Initial), *ok.PredictedLoad)
	assert.Equal(t, "2025-06-15T09:30:00Z", ok.Timestamp)
	assert.Empty(t, ok.Error)

	bad := got[1]
	assert.Equal(t, "substation-8", bad.ClientID)
	assert.Nil(t, bad.PredictedLoad)
	assert.Contains(t, bad.Error, "temperature")

	cancel()
	<-done

	_, open := <-svc.ResponseChan
	assert.False(t, open, "response channel is closed on shutdown")
}
