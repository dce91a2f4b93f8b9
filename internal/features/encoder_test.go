package features

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"load-forecast/internal/models"
	"load-forecast/pkg/errors"
)

func request(date string, temp, humidity float64, dayType models.DayType, season models.Season) models.PredictionRequest {
	d, _ := time.Parse(models.DateLayout, date)
	return models.PredictionRequest{
		Date:        d,
		Temperature: temp,
		Humidity:    humidity,
		DayType:     dayType,
		Season:      season,
	}
}

func TestEncode_ReferenceScenario(t *testing.T) {
	req := request("2024-06-15", 30, 70, models.DayTypeWeekday, models.SeasonSummer)

	v, err := Encode(req, 0.5)
	require.NoError(t, err)
	require.Len(t, v, Size)

	expected := []float64{0.4839, 0.5, 0.6087, 0.6039, 0.6842, 0, 1, 1, 0, 0, 0.5}
	for i := range expected {
		assert.InDelta(t, expected[i], v[i], 1e-4, "feature %d", i)
	}
}

func TestEncode_OrderAndLength(t *testing.T) {
	tests := []struct {
		name    string
		req     models.PredictionRequest
		prev    float64
		weekend float64
		weekday float64
		summer  float64
		monsoon float64
		winter  float64
	}{
		{"weekend monsoon", request("2023-08-01", 25, 90, models.DayTypeWeekend, models.SeasonMonsoon), 0.2, 1, 0, 0, 1, 0},
		{"weekday winter", request("2023-01-31", 10, 40, models.DayTypeWeekday, models.SeasonWinter), 0.9, 0, 1, 0, 0, 1},
		{"weekday other", request("2023-03-10", 20, 50, models.DayTypeWeekday, models.SeasonOther), 0.5, 0, 1, 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := Encode(tt.req, tt.prev)
			require.NoError(t, err)
			require.Len(t, v, Size)

			assert.InDelta(t, float64(tt.req.Date.Day())/31, v[IdxDayOfMonth], 1e-12)
			assert.InDelta(t, float64(tt.req.Date.Month())/12, v[IdxMonth], 1e-12)
			assert.InDelta(t, 14.0/23, v[IdxHour], 1e-12)
			assert.Equal(t, tt.weekend, v[IdxWeekend])
			assert.Equal(t, tt.weekday, v[IdxWeekday])
			assert.Equal(t, tt.summer, v[IdxSummer])
			assert.Equal(t, tt.monsoon, v[IdxMonsoon])
			assert.Equal(t, tt.winter, v[IdxWinter])
			assert.Equal(t, tt.prev, v[IdxPrevLoad])
		})
	}
}

func TestEncode_UnrecognizedCategoriesEncodeAsZero(t *testing.T) {
	req := request("2024-06-15", 30, 70, models.DayType("holiday"), models.Season("spring"))

	v, err := Encode(req, 0.5)
	require.NoError(t, err)

	for _, idx := range []int{IdxWeekend, IdxWeekday, IdxSummer, IdxMonsoon, IdxWinter} {
		assert.Zero(t, v[idx], "flag %d", idx)
	}
}

func TestEncode_OutOfRangeWeatherExtrapolates(t *testing.T) {
	req := request("2024-06-15", 50, 2, models.DayTypeWeekday, models.SeasonSummer)

	v, err := Encode(req, 0.5)
	require.NoError(t, err)

	assert.Greater(t, v[IdxTemperature], 1.0)
	assert.Less(t, v[IdxHumidity], 0.0)
	assert.InDelta(t, (50-TempMin)/(TempMax-TempMin), v[IdxTemperature], 1e-12)
}

func TestEncode_RejectsInvalidRequests(t *testing.T) {
	valid := request("2024-06-15", 30, 70, models.DayTypeWeekday, models.SeasonSummer)

	tests := []struct {
		name  string
		mod   func(r *models.PredictionRequest)
		field string
	}{
		{"zero date", func(r *models.PredictionRequest) { r.Date = time.Time{} }, "date"},
		{"nan temperature", func(r *models.PredictionRequest) { r.Temperature = math.NaN() }, "temperature"},
		{"inf humidity", func(r *models.PredictionRequest) { r.Humidity = math.Inf(1) }, "humidity"},
		{"missing daytype", func(r *models.PredictionRequest) { r.DayType = "" }, "daytype"},
		{"missing season", func(r *models.PredictionRequest) { r.Season = "" }, "season"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mod(&req)

			_, err := Encode(req, 0.5)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrValidation))

			var e *errors.Error
			require.True(t, errors.As(err, &e))
			assert.Equal(t, tt.field, e.Field)
		})
	}
}

func TestParseRequest(t *testing.T) {
	body := `{"date":"2024-06-15","temperature":30,"humidity":"70.5","daytype":"weekday","season":"summer"}`
	var p models.PredictionPayload
	require.NoError(t, json.Unmarshal([]byte(body), &p))

	req, err := ParseRequest(p)
	require.NoError(t, err)

	assert.Equal(t, 2024, req.Date.Year())
	assert.Equal(t, time.June, req.Date.Month())
	assert.Equal(t, 15, req.Date.Day())
	assert.Equal(t, 30.0, req.Temperature)
	assert.Equal(t, 70.5, req.Humidity)
	assert.Equal(t, models.DayTypeWeekday, req.DayType)
	assert.Equal(t, models.SeasonSummer, req.Season)
}

func TestParseRequest_Errors(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"bad date", `{"date":"2024-02-30","temperature":30,"humidity":70,"daytype":"weekday","season":"summer"}`, "date"},
		{"missing date", `{"temperature":30,"humidity":70,"daytype":"weekday","season":"summer"}`, "date"},
		{"missing temperature", `{"date":"2024-06-15","humidity":70,"daytype":"weekday","season":"summer"}`, "temperature"},
		{"non-numeric humidity", `{"date":"2024-06-15","temperature":30,"humidity":"wet","daytype":"weekday","season":"summer"}`, "humidity"},
		{"boolean temperature", `{"date":"2024-06-15","temperature":true,"humidity":70,"daytype":"weekday","season":"summer"}`, "temperature"},
		{"nan string", `{"date":"2024-06-15","temperature":"NaN","humidity":70,"daytype":"weekday","season":"summer"}`, "temperature"},
		{"missing daytype", `{"date":"2024-06-15","temperature":30,"humidity":70,"season":"summer"}`, "daytype"},
		{"missing season", `{"date":"2024-06-15","temperature":30,"humidity":70,"daytype":"weekday"}`, "season"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p models.PredictionPayload
			require.NoError(t, json.Unmarshal([]byte(tt.body), &p))

			_, err := ParseRequest(p)
			require.Error(t, err)
			assert.Equal(t, errors.KindValidation, errors.KindOf(err))

			var e *errors.Error
			require.True(t, errors.As(err, &e))
			assert.Equal(t, tt.field, e.Field)
		})
	}
}
