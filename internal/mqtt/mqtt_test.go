package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"load-forecast/internal/models"
)

type fakeToken struct {
	err error
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t *fakeToken) Error() error { return t.err }

type published struct {
	topic   string
	payload []byte
}

// fakeClient implements only what Publisher and Subscriber use
type fakeClient struct {
	mqtt.Client

	mu        sync.Mutex
	published []published
	failTopic string
}

func (c *fakeClient) Publish(topic string, _ byte, _ bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if topic == c.failTopic {
		return &fakeToken{err: fmt.Errorf("not connected")}
	}
	c.published = append(c.published, published{topic: topic, payload: payload.([]byte)})
	return &fakeToken{}
}

func (c *fakeClient) messages() []published {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]published(nil), c.published...)
}

type fakeMessage struct {
	mqtt.Message
	topic   string
	payload []byte
}

func (m *fakeMessage) Topic() string   { return m.topic }
func (m *fakeMessage) Payload() []byte { return m.payload }

func TestPublisher_InsertPublishesPerSeason(t *testing.T) {
	client := &fakeClient{}
	p := NewPublisher(client, PublisherConfig{PredictionTopic: "forecast/{season}/prediction"}, nil)

	rows := []models.TelemetryRecord{
		{RequestID: "a", Season: "summer", PredictedLoad: 4100},
		{RequestID: "b", Season: "winter", PredictedLoad: 3900},
	}
	errs := p.Insert(context.Background(), rows)
	assert.Empty(t, errs)

	msgs := client.messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "forecast/summer/prediction", msgs[0].topic)
	assert.Equal(t, "forecast/winter/prediction", msgs[1].topic)

	var got models.TelemetryRecord
	require.NoError(t, json.Unmarshal(msgs[0].payload, &got))
	assert.Equal(t, "a", got.RequestID)
	assert.Equal(t, 4100.0, got.PredictedLoad)
}

func TestPublisher_InsertReportsFailedRows(t *testing.T) {
	client := &fakeClient{failTopic: "forecast/monsoon/prediction"}
	p := NewPublisher(client, PublisherConfig{PredictionTopic: "forecast/{season}/prediction"}, nil)

	errs := p.Insert(context.Background(), []models.TelemetryRecord{
		{RequestID: "a", Season: "monsoon"},
		{RequestID: "b", Season: "summer"},
	})

	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "a")
	assert.Len(t, client.messages(), 1)
}

func TestPublisher_StartPublishesResponses(t *testing.T) {
	client := &fakeClient{}
	ch := make(chan *models.RemoteForecastResponse, 1)
	p := NewPublisher(client, PublisherConfig{ResponseTopic: "forecast/{client_id}/response"}, ch)

	done := make(chan struct{})
	go func() {
		p.Start(context.Background())
		close(done)
	}()

	load := 4000.25
	ch <- &models.RemoteForecastResponse{ClientID: "sub-7", RequestID: "r1", PredictedLoad: &load}
	close(ch)
	<-done

	msgs := client.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "forecast/sub-7/response", msgs[0].topic)
	assert.JSONEq(t, `{"request_id":"r1","predicted_load":4000.25}`, string(msgs[0].payload))
}

func TestTopicSegment(t *testing.T) {
	assert.Equal(t, "summer", topicSegment("summer"))
	assert.Equal(t, "a_b", topicSegment("a/b"))
	assert.Equal(t, "_", topicSegment("#"))
	assert.Equal(t, "unknown", topicSegment(" "))
}

func TestParseRequest(t *testing.T) {
	req, err := parseRequest("forecast/substation-7/request",
		[]byte(`{"request_id":"r1","date":"2025-06-15","temperature":30,"humidity":"65","daytype":"weekend","season":"summer"}`))
	require.NoError(t, err)

	assert.Equal(t, "substation-7", req.ClientID)
	assert.Equal(t, "r1", req.RequestID)
	assert.Equal(t, "2025-06-15", req.Date)
	assert.Equal(t, 30.0, req.Temperature)
	assert.Equal(t, "65", req.Humidity)
	assert.Equal(t, "weekend", req.DayType)

	_, err = parseRequest("forecast", []byte(`{}`))
	assert.Error(t, err)

	_, err = parseRequest("forecast/x/request", []byte(`not json`))
	assert.Error(t, err)
}

func TestSubscriber_HandleRequest(t *testing.T) {
	ch := make(chan *models.RemoteForecastRequest, 1)
	s := NewSubscriber(&fakeClient{}, SubscriberConfig{SendTimeout: 10 * time.Millisecond}, ch)

	s.handleRequest(nil, &fakeMessage{topic: "forecast/c1/request", payload: []byte(`{"date":"2025-01-01"}`)})
	require.Len(t, ch, 1)
	got := <-ch
	assert.Equal(t, "c1", got.ClientID)
	assert.False(t, got.ReceivedAt.IsZero())

	// malformed payloads never reach the channel
	s.handleRequest(nil, &fakeMessage{topic: "forecast/c1/request", payload: []byte(`{`)})
	assert.Len(t, ch, 0)

	// full channel drops after the send timeout
	ch <- &models.RemoteForecastRequest{}
	s.handleRequest(nil, &fakeMessage{topic: "forecast/c2/request", payload: []byte(`{}`)})
	assert.Len(t, ch, 1)
}
