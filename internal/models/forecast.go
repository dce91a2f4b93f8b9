package models

import "time"

// DateLayout is the calendar date format accepted on the wire
const DateLayout = "2006-01-02"

// DayType is the calendar category of the forecast day
type DayType string

const (
	DayTypeWeekday DayType = "weekday"
	DayTypeWeekend DayType = "weekend"
)

// Known reports whether the value is one of the encoded day types
func (d DayType) Known() bool {
	return d == DayTypeWeekday || d == DayTypeWeekend
}

// Season is the climatic season of the forecast day. SeasonOther and any
// unrecognized value encode to all-zero season flags.
type Season string

const (
	SeasonSummer  Season = "summer"
	SeasonMonsoon Season = "monsoon"
	SeasonWinter  Season = "winter"
	SeasonOther   Season = "other"
)

// Known reports whether the value has its own one-hot flag
func (s Season) Known() bool {
	return s == SeasonSummer || s == SeasonMonsoon || s == SeasonWinter
}

// PredictionRequest is a validated forecast request
type PredictionRequest struct {
	Date        time.Time
	Temperature float64 // Celsius
	Humidity    float64 // Percentage
	DayType     DayType
	Season      Season
}

// PredictionPayload is the JSON body of POST /predict. Temperature and
// humidity are left untyped so numeric strings are accepted as well.
type PredictionPayload struct {
	Date        string      `json:"date"`
	Temperature interface{} `json:"temperature"`
	Humidity    interface{} `json:"humidity"`
	DayType     string      `json:"daytype"`
	Season      string      `json:"season"`
}

// PredictionResult is the outcome of one served forecast
type PredictionResult struct {
	ForecastMW   float64 `json:"predicted_load"`
	TimestampUTC string  `json:"timestamp"`
}

// TelemetryRecord is the append-only analytics row for one served forecast
type TelemetryRecord struct {
	RequestID     string    `json:"request_id"`
	Date          string    `json:"date"`
	Temperature   float64   `json:"temperature"`
	Humidity      float64   `json:"humidity"`
	Season        string    `json:"season"`
	DayType       string    `json:"daytype"`
	PredictedLoad float64   `json:"predicted_load"`
	Timestamp     time.Time `json:"timestamp"`
}

// RemoteForecastRequest is a forecast request received over MQTT on
// forecast/{client_id}/request
type RemoteForecastRequest struct {
	PredictionPayload
	RequestID  string    `json:"request_id,omitempty"`
	ClientID   string    `json:"-"`
	ReceivedAt time.Time `json:"-"`
}

// RemoteForecastResponse is published back to the requesting client.
// Exactly one of PredictedLoad and Error is set.
type RemoteForecastResponse struct {
	RequestID     string   `json:"request_id,omitempty"`
	PredictedLoad *float64 `json:"predicted_load,omitempty"`
	Timestamp     string   `json:"timestamp,omitempty"`
	Error         string   `json:"error,omitempty"`
	ClientID      string   `json:"-"`
}
