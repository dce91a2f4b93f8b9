// Package features turns forecast requests into the positional input vector
// the load model was trained on.
package features

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"load-forecast/internal/models"
	"load-forecast/pkg/errors"
)

// Size is the length of every encoded vector
const Size = 11

// Positions inside the vector. The order is fixed by training; changing it
// requires retraining the model.
const (
	IdxDayOfMonth = iota
	IdxMonth
	IdxHour
	IdxTemperature
	IdxHumidity
	IdxWeekend
	IdxWeekday
	IdxSummer
	IdxMonsoon
	IdxWinter
	IdxPrevLoad
)

// Training-time normalization constants
const (
	TempMin     = 5.3
	TempMax     = 46.2
	HumidityMin = 5.0
	HumidityMax = 100.0

	// CanonicalHour is the forecast hour assumed for every request
	CanonicalHour = 14.0
)

// Vector is an encoded feature vector
type Vector []float64

// MinMax rescales x from [min, max] to [0, 1] without clamping
func MinMax(x, min, max float64) float64 {
	return (x - min) / (max - min)
}

func flag(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Encode builds the feature vector for req with the given rolling
// previous-load value. Temperature and humidity outside the training range
// extrapolate linearly. Unrecognized day types and seasons produce all-zero
// flags for their group.
func Encode(req models.PredictionRequest, prevLoadNorm float64) (Vector, error) {
	if req.Date.IsZero() {
		return nil, errors.Validation("date", "missing")
	}
	if err := checkFinite("temperature", req.Temperature); err != nil {
		return nil, err
	}
	if err := checkFinite("humidity", req.Humidity); err != nil {
		return nil, err
	}
	if req.DayType == "" {
		return nil, errors.Validation("daytype", "missing")
	}
	if req.Season == "" {
		return nil, errors.Validation("season", "missing")
	}

	v := make(Vector, Size)
	v[IdxDayOfMonth] = float64(req.Date.Day()) / 31
	v[IdxMonth] = float64(req.Date.Month()) / 12
	v[IdxHour] = CanonicalHour / 23
	v[IdxTemperature] = MinMax(req.Temperature, TempMin, TempMax)
	v[IdxHumidity] = MinMax(req.Humidity, HumidityMin, HumidityMax)
	v[IdxWeekend] = flag(req.DayType == models.DayTypeWeekend)
	v[IdxWeekday] = flag(req.DayType == models.DayTypeWeekday)
	v[IdxSummer] = flag(req.Season == models.SeasonSummer)
	v[IdxMonsoon] = flag(req.Season == models.SeasonMonsoon)
	v[IdxWinter] = flag(req.Season == models.SeasonWinter)
	v[IdxPrevLoad] = prevLoadNorm

	return v, nil
}

func checkFinite(field string, x float64) error {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return errors.Validation(field, "must be a finite number, got %v", x)
	}
	return nil
}

// ParseRequest validates the transport payload and converts it into a
// PredictionRequest
func ParseRequest(p models.PredictionPayload) (models.PredictionRequest, error) {
	var req models.PredictionRequest

	dateStr := strings.TrimSpace(p.Date)
	if dateStr == "" {
		return req, errors.Validation("date", "missing")
	}
	date, err := time.Parse(models.DateLayout, dateStr)
	if err != nil {
		return req, errors.Validation("date", "expected YYYY-MM-DD, got %q", p.Date)
	}

	temp, err := toFloat("temperature", p.Temperature)
	if err != nil {
		return req, err
	}
	humidity, err := toFloat("humidity", p.Humidity)
	if err != nil {
		return req, err
	}

	dayType := strings.TrimSpace(p.DayType)
	if dayType == "" {
		return req, errors.Validation("daytype", "missing")
	}
	season := strings.TrimSpace(p.Season)
	if season == "" {
		return req, errors.Validation("season", "missing")
	}

	req.Date = date
	req.Temperature = temp
	req.Humidity = humidity
	req.DayType = models.DayType(dayType)
	req.Season = models.Season(season)
	return req, nil
}

func toFloat(field string, v interface{}) (float64, error) {
	var (
		f   float64
		err error
	)
	switch t := v.(type) {
	case nil:
		return 0, errors.Validation(field, "missing")
	case float64:
		f = t
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case json.Number:
		f, err = t.Float64()
	case string:
		f, err = strconv.ParseFloat(strings.TrimSpace(t), 64)
	default:
		return 0, errors.Validation(field, "must be numeric, got %T", v)
	}
	if err != nil {
		return 0, errors.Validation(field, "must be numeric: %v", err)
	}
	if err := checkFinite(field, f); err != nil {
		return 0, err
	}
	return f, nil
}
