package ml

import (
	"math"
	"time"

	"gonum.org/v1/gonum/mat"

	"load-forecast/internal/models"
)

// Model is the loaded, inference-only forecasting network. It is not
// mutated once the cache publishes it, so concurrent Forward calls are safe.
type Model struct {
	inputSize  int
	hiddenSize int
	outputSize int

	w1 *mat.Dense    // hidden x input
	b1 *mat.VecDense // hidden
	w2 *mat.Dense    // output x hidden
	b2 *mat.VecDense // output

	activation string
	act        func(float64) float64

	info models.ModelInfo
}

// NewModel reconstructs the network topology from the artifact's
// dimensionality triple and loads its parameters
func NewModel(a *Artifact) (*Model, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	in, hidden, out := *a.InputSize, *a.HiddenSize, *a.OutputSize

	activation := a.Activation
	if activation == "" {
		activation = ActivationReLU
	}

	m := &Model{
		inputSize:  in,
		hiddenSize: hidden,
		outputSize: out,
		w1:         mat.NewDense(hidden, in, flatten(a.StateDict.FC1Weight)),
		b1:         mat.NewVecDense(hidden, append([]float64(nil), a.StateDict.FC1Bias...)),
		w2:         mat.NewDense(out, hidden, flatten(a.StateDict.FC2Weight)),
		b2:         mat.NewVecDense(out, append([]float64(nil), a.StateDict.FC2Bias...)),
		activation: activation,
		act:        activationFunc(activation),
		info: models.ModelInfo{
			Version:    a.Version,
			InputSize:  in,
			HiddenSize: hidden,
			OutputSize: out,
			Activation: activation,
			MSE:        a.MSE,
			R2:         a.R2,
			LoadedAt:   time.Now().UTC(),
		},
	}
	return m, nil
}

func flatten(rows [][]float64) []float64 {
	if len(rows) == 0 {
		return nil
	}
	data := make([]float64, 0, len(rows)*len(rows[0]))
	for _, r := range rows {
		data = append(data, r...)
	}
	return data
}

func activationFunc(name string) func(float64) float64 {
	switch name {
	case ActivationTanh:
		return math.Tanh
	case ActivationSigmoid:
		return func(x float64) float64 { return 1 / (1 + math.Exp(-x)) }
	default:
		return func(x float64) float64 { return math.Max(0, x) }
	}
}

// InputSize is the number of features the model expects
func (m *Model) InputSize() int { return m.inputSize }

// HiddenSize is the width of the hidden layer
func (m *Model) HiddenSize() int { return m.hiddenSize }

// OutputSize is the number of model outputs
func (m *Model) OutputSize() int { return m.outputSize }

// Info returns model metadata for diagnostics
func (m *Model) Info() models.ModelInfo { return m.info }

// Forward runs one forward pass. len(x) must equal InputSize.
func (m *Model) Forward(x []float64) []float64 {
	in := mat.NewVecDense(len(x), append([]float64(nil), x...))

	h := mat.NewVecDense(m.hiddenSize, nil)
	h.MulVec(m.w1, in)
	h.AddVec(h, m.b1)
	for i := 0; i < m.hiddenSize; i++ {
		h.SetVec(i, m.act(h.AtVec(i)))
	}

	y := mat.NewVecDense(m.outputSize, nil)
	y.MulVec(m.w2, h)
	y.AddVec(y, m.b2)

	out := make([]float64, m.outputSize)
	for i := range out {
		out[i] = y.AtVec(i)
	}
	return out
}
