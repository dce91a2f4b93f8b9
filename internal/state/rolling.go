// Package state holds the rolling previous-load value that is fed back into
// the model as its last input feature.
package state

import (
	"sync"

	"load-forecast/internal/models"
)

const (
	// Initial is the cold-start prior used before any forecast has been served
	Initial = 0.5

	// Decay is the weight kept from the previous state on each update
	Decay = 0.7

	// Divisor normalizes a forecast in MW before it is blended in
	Divisor = 9000.0
)

// Next applies one exponential-smoothing step
func Next(state, forecastMW float64) float64 {
	return state*Decay + (forecastMW/Divisor)*(1-Decay)
}

// Tracker owns the process-wide rolling state. All reads and writes go
// through its mutex; Step holds it across a whole read-compute-update cycle.
type Tracker struct {
	mu      sync.Mutex
	value   float64
	updates uint64
}

// NewTracker returns a tracker initialized to the cold-start prior
func NewTracker() *Tracker {
	return &Tracker{value: Initial}
}

// Read returns the current state
func (t *Tracker) Read() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.value
}

// Update folds a served forecast into the state
func (t *Tracker) Update(forecastMW float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.apply(forecastMW)
}

func (t *Tracker) apply(forecastMW float64) {
	t.value = Next(t.value, forecastMW)
	t.updates++
}

// Step calls fn with the current state and, if fn succeeds, folds the
// forecast it returns into the state before releasing the lock. Concurrent
// Steps are therefore serializable. On error the state is left untouched.
func (t *Tracker) Step(fn func(prev float64) (forecastMW float64, err error)) (float64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	mw, err := fn(t.value)
	if err != nil {
		return 0, err
	}
	t.apply(mw)
	return mw, nil
}

// Info returns a snapshot for diagnostics
func (t *Tracker) Info() models.StateInfo {
	t.mu.Lock()
	defer t.mu.Unlock()
	return models.StateInfo{PrevLoadNorm: t.value, Updates: t.updates}
}
