package ml

import (
	"encoding/json"
	"fmt"
	"math"

	"load-forecast/pkg/errors"
)

// Supported hidden-layer activations
const (
	ActivationReLU    = "relu"
	ActivationTanh    = "tanh"
	ActivationSigmoid = "sigmoid"
)

// Artifact is the serialized model produced by the offline training job
type Artifact struct {
	InputSize  *int      `json:"input_size"`
	HiddenSize *int      `json:"hidden_size"`
	OutputSize *int      `json:"output_size"`
	Activation string    `json:"activation,omitempty"`
	StateDict  StateDict `json:"model_state_dict"`
	MSE        float64   `json:"mse,omitempty"`
	R2         float64   `json:"r2,omitempty"`
	Version    string    `json:"version,omitempty"`
}

// StateDict holds the layer parameters. Weight matrices are row-major with
// one row per output unit.
type StateDict struct {
	FC1Weight [][]float64 `json:"fc1.weight"`
	FC1Bias   []float64   `json:"fc1.bias"`
	FC2Weight [][]float64 `json:"fc2.weight"`
	FC2Bias   []float64   `json:"fc2.bias"`
}

// DecodeArtifact parses and validates an artifact. Every failure is a
// KindModelFormat error.
func DecodeArtifact(data []byte) (*Artifact, error) {
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, formatErr(fmt.Errorf("decode artifact: %w", err))
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return &a, nil
}

// Validate checks that the dimensionality triple is present and that every
// parameter tensor has the shape it implies
func (a *Artifact) Validate() error {
	if a.InputSize == nil {
		return formatErr(fmt.Errorf("missing key input_size"))
	}
	if a.HiddenSize == nil {
		return formatErr(fmt.Errorf("missing key hidden_size"))
	}
	if a.OutputSize == nil {
		return formatErr(fmt.Errorf("missing key output_size"))
	}
	in, hidden, out := *a.InputSize, *a.HiddenSize, *a.OutputSize
	if in <= 0 || hidden <= 0 || out <= 0 {
		return formatErr(fmt.Errorf("dimensions must be positive, got (%d, %d, %d)", in, hidden, out))
	}

	switch a.Activation {
	case "", ActivationReLU, ActivationTanh, ActivationSigmoid:
	default:
		return formatErr(fmt.Errorf("unsupported activation %q", a.Activation))
	}

	sd := a.StateDict
	if err := checkMatrix("fc1.weight", sd.FC1Weight, hidden, in); err != nil {
		return err
	}
	if err := checkVector("fc1.bias", sd.FC1Bias, hidden); err != nil {
		return err
	}
	if err := checkMatrix("fc2.weight", sd.FC2Weight, out, hidden); err != nil {
		return err
	}
	return checkVector("fc2.bias", sd.FC2Bias, out)
}

func checkMatrix(name string, m [][]float64, rows, cols int) error {
	if m == nil {
		return formatErr(fmt.Errorf("missing key %s", name))
	}
	if len(m) != rows {
		return formatErr(fmt.Errorf("%s: expected %d rows, got %d", name, rows, len(m)))
	}
	for i, row := range m {
		if len(row) != cols {
			return formatErr(fmt.Errorf("%s: row %d: expected %d columns, got %d", name, i, cols, len(row)))
		}
		if err := checkFinite(name, row); err != nil {
			return err
		}
	}
	return nil
}

func checkVector(name string, v []float64, size int) error {
	if v == nil {
		return formatErr(fmt.Errorf("missing key %s", name))
	}
	if len(v) != size {
		return formatErr(fmt.Errorf("%s: expected length %d, got %d", name, size, len(v)))
	}
	return checkFinite(name, v)
}

func checkFinite(name string, v []float64) error {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return formatErr(fmt.Errorf("%s: non-finite parameter", name))
		}
	}
	return nil
}

func formatErr(err error) error {
	return errors.E(errors.KindModelFormat, "model.decode", err)
}
