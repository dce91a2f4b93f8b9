package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"load-forecast/internal/models"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func rows() []models.TelemetryRecord {
	ts := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	return []models.TelemetryRecord{
		{RequestID: "a", Season: "summer", PredictedLoad: 4100, Timestamp: ts},
		{RequestID: "b", Season: "winter", PredictedLoad: 3900, Timestamp: ts},
	}
}

func TestSink_Insert(t *testing.T) {
	w := &fakeWriter{}
	s := newSink(w, "load-predictions")

	assert.Empty(t, s.Insert(context.Background(), rows()))
	require.Len(t, w.msgs, 2)

	assert.Equal(t, "summer", string(w.msgs[0].Key))
	var got models.TelemetryRecord
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &got))
	assert.Equal(t, "a", got.RequestID)
	assert.Equal(t, 4100.0, got.PredictedLoad)
}

func TestSink_InsertEmpty(t *testing.T) {
	w := &fakeWriter{err: fmt.Errorf("unreachable")}
	assert.Empty(t, newSink(w, "t").Insert(context.Background(), nil))
}

func TestSink_InsertWriteErrors(t *testing.T) {
	w := &fakeWriter{err: kafka.WriteErrors{nil, fmt.Errorf("message too large")}}
	errs := newSink(w, "t").Insert(context.Background(), rows())

	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "message too large")
}

func TestSink_InsertBrokerDown(t *testing.T) {
	w := &fakeWriter{err: fmt.Errorf("dial tcp: connection refused")}
	errs := newSink(w, "t").Insert(context.Background(), rows())

	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "write 2 messages")
}

func TestSink_Close(t *testing.T) {
	w := &fakeWriter{}
	require.NoError(t, newSink(w, "t").Close())
	assert.True(t, w.closed)
}
