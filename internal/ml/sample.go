package ml

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"

	"load-forecast/internal/features"
	"load-forecast/pkg/logger"
)

// SampleArtifact returns a small, hand-weighted artifact with the
// production input width. It is meant for local development and tests,
// not for real forecasts.
func SampleArtifact() *Artifact {
	in, hidden, out := features.Size, 4, 1

	// Hidden units respond to temperature, humidity, the previous load and
	// the summer flag respectively
	fc1 := make([][]float64, hidden)
	for i := range fc1 {
		fc1[i] = make([]float64, in)
	}
	fc1[0][features.IdxTemperature] = 1.0
	fc1[1][features.IdxHumidity] = 1.0
	fc1[2][features.IdxPrevLoad] = 1.0
	fc1[3][features.IdxSummer] = 1.0

	return &Artifact{
		InputSize:  &in,
		HiddenSize: &hidden,
		OutputSize: &out,
		Activation: ActivationReLU,
		StateDict: StateDict{
			FC1Weight: fc1,
			FC1Bias:   []float64{0, 0, 0, 0},
			FC2Weight: [][]float64{{0.4, 0.1, 0.3, 0.1}},
			FC2Bias:   []float64{0.05},
		},
		Version: "sample",
	}
}

// CreateSampleModel writes SampleArtifact to path.
// Call this if no model file exists and no blob store is reachable.
func CreateSampleModel(fs afero.Fs, path string) error {
	data, err := json.MarshalIndent(SampleArtifact(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal model: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create model directory: %w", err)
		}
	}

	if err := afero.WriteFile(fs, path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write model file: %w", err)
	}

	logger.Component("model_cache").Infof("Created sample model at %s", path)
	return nil
}
