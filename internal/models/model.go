package models

import "time"

// ModelInfo describes the loaded forecasting model for diagnostics
type ModelInfo struct {
	Version    string    `json:"version,omitempty"`
	InputSize  int       `json:"input_size"`
	HiddenSize int       `json:"hidden_size"`
	OutputSize int       `json:"output_size"`
	Activation string    `json:"activation"`
	MSE        float64   `json:"mse"`
	R2         float64   `json:"r2"`
	LoadedAt   time.Time `json:"loaded_at"`
	Source     string    `json:"source"` // "mirror" or "blob"
}

// StateInfo is the public view of the rolling previous-load state
type StateInfo struct {
	PrevLoadNorm float64 `json:"prev_load_norm"`
	Updates      uint64  `json:"updates"`
}
