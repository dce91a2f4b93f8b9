package ml

import (
	"fmt"
	"math"

	"load-forecast/pkg/errors"
)

// Observed training range of the load target, in MW
const (
	LoadMin = 1540.9425
	LoadMax = 8565.135
)

// Denormalize maps a model output in [0, 1] back to megawatts
func Denormalize(yNorm float64) float64 {
	return yNorm*(LoadMax-LoadMin) + LoadMin
}

// Normalize is the inverse of Denormalize
func Normalize(mw float64) float64 {
	return (mw - LoadMin) / (LoadMax - LoadMin)
}

// Clamp bounds mw to the observed training range. NaN maps to LoadMin.
func Clamp(mw float64) float64 {
	if math.IsNaN(mw) {
		return LoadMin
	}
	return math.Max(LoadMin, math.Min(mw, LoadMax))
}

// Round2 rounds to two decimal places
func Round2(x float64) float64 {
	return math.Round(x*100) / 100
}

// Bounds of the training range on the 2-decimal grid, rounded inward so a
// rounded forecast never leaves [LoadMin, LoadMax]
var (
	roundedMin = math.Ceil(LoadMin*100) / 100
	roundedMax = math.Floor(LoadMax*100) / 100
)

// Run executes the model on an encoded feature vector and returns the
// forecast in MW, clamped to the training range and rounded to 2 decimals
func Run(vector []float64, m *Model) (float64, error) {
	if m == nil {
		return 0, errors.E(errors.KindInternal, "model.run", fmt.Errorf("model not loaded"))
	}
	if len(vector) != m.InputSize() {
		return 0, errors.E(errors.KindInputShape, "model.run",
			fmt.Errorf("model expects %d input features, got %d", m.InputSize(), len(vector)))
	}

	yNorm := m.Forward(vector)[0]
	mw := Clamp(Denormalize(yNorm))

	return math.Max(roundedMin, math.Min(Round2(mw), roundedMax)), nil
}
