package optimizer

import (
	"fmt"
	"math"

	"github.com/proteindesign/protrain/checkpoints"
	"github.com/proteindesign/protrain/tensor"
)

// AdamConfig holds configuration for the Adam optimizer
type AdamConfig struct {
	LearningRate float64
	Beta1        float64
	Beta2        float64
	Epsilon      float64
	WeightDecay  float64
}

// DefaultAdamConfig returns default Adam optimizer configuration
func DefaultAdamConfig() AdamConfig {
	return AdamConfig{
		LearningRate: 1e-4,
		Beta1:        0.9,
		Beta2:        0.999,
		Epsilon:      1e-8,
		WeightDecay:  0.0,
	}
}

// Adam implements the Adam optimizer with bias-corrected first and
// second moment estimates.
type Adam struct {
	config AdamConfig

	params   []*tensor.Tensor
	momentum [][]float64 // First moment for each parameter tensor
	variance [][]float64 // Second moment for each parameter tensor

	// Step tracking for bias correction
	stepCount uint64
}

// NewAdam creates an Adam optimizer for the given parameter tensors.
func NewAdam(config AdamConfig, params []*tensor.Tensor) (*Adam, error) {
	if len(params) == 0 {
		return nil, fmt.Errorf("no parameters provided")
	}
	if config.LearningRate <= 0 {
		return nil, fmt.Errorf("learning rate must be positive, got %g", config.LearningRate)
	}
	if config.Beta1 < 0 || config.Beta1 >= 1 {
		return nil, fmt.Errorf("beta1 must be in [0, 1), got %g", config.Beta1)
	}
	if config.Beta2 < 0 || config.Beta2 >= 1 {
		return nil, fmt.Errorf("beta2 must be in [0, 1), got %g", config.Beta2)
	}
	if config.Epsilon <= 0 {
		return nil, fmt.Errorf("epsilon must be positive, got %g", config.Epsilon)
	}

	adam := &Adam{
		config:   config,
		params:   params,
		momentum: make([][]float64, len(params)),
		variance: make([][]float64, len(params)),
	}

	// Momentum and variance start at zero
	for i, param := range params {
		adam.momentum[i] = make([]float64, param.NumElems)
		adam.variance[i] = make([]float64, param.NumElems)
	}

	return adam, nil
}

// Step performs a single Adam optimization step.
func (a *Adam) Step() error {
	a.stepCount++

	// Bias correction factors
	bc1 := 1.0 - math.Pow(a.config.Beta1, float64(a.stepCount))
	bc2 := 1.0 - math.Pow(a.config.Beta2, float64(a.stepCount))

	for i, param := range a.params {
		grad, err := gradData(param)
		if err != nil {
			return fmt.Errorf("parameter %d: %v", i, err)
		}

		m := a.momentum[i]
		v := a.variance[i]
		update := make([]float64, len(grad))

		for j, g := range grad {
			if a.config.WeightDecay > 0 {
				g += a.config.WeightDecay * paramValue(param, j)
			}

			m[j] = a.config.Beta1*m[j] + (1-a.config.Beta1)*g
			v[j] = a.config.Beta2*v[j] + (1-a.config.Beta2)*g*g

			mHat := m[j] / bc1
			vHat := v[j] / bc2

			update[j] = a.config.LearningRate * mHat / (math.Sqrt(vHat) + a.config.Epsilon)
		}

		if err := applyUpdate(param, update); err != nil {
			return fmt.Errorf("parameter %d: %v", i, err)
		}
	}

	return nil
}

func paramValue(param *tensor.Tensor, idx int) float64 {
	switch data := param.Data.(type) {
	case []float32:
		return float64(data[idx])
	case []float64:
		return data[idx]
	default:
		return 0
	}
}

// ZeroGrad clears the gradients of all managed parameters.
func (a *Adam) ZeroGrad() {
	for _, param := range a.params {
		param.ZeroGrad()
	}
}

// GetState extracts optimizer state for checkpointing.
func (a *Adam) GetState() (*checkpoints.OptimizerState, error) {
	state := &checkpoints.OptimizerState{
		Type: "Adam",
		Parameters: map[string]float64{
			"learning_rate": a.config.LearningRate,
			"beta1":         a.config.Beta1,
			"beta2":         a.config.Beta2,
			"epsilon":       a.config.Epsilon,
			"weight_decay":  a.config.WeightDecay,
			"step_count":    float64(a.stepCount),
		},
	}

	for i, param := range a.params {
		shape := append([]int(nil), param.Shape...)

		state.StateData = append(state.StateData, checkpoints.OptimizerTensor{
			Name:      fmt.Sprintf("momentum_%d", i),
			Shape:     shape,
			Data:      append([]float64(nil), a.momentum[i]...),
			StateType: "momentum",
		})
		state.StateData = append(state.StateData, checkpoints.OptimizerTensor{
			Name:      fmt.Sprintf("variance_%d", i),
			Shape:     shape,
			Data:      append([]float64(nil), a.variance[i]...),
			StateType: "variance",
		})
	}

	return state, nil
}

// LoadState restores optimizer state from a checkpoint.
func (a *Adam) LoadState(state *checkpoints.OptimizerState) error {
	if err := validateStateType("Adam", state); err != nil {
		return err
	}

	if lr, ok := state.Parameters["learning_rate"]; ok {
		a.config.LearningRate = lr
	}
	if sc, ok := state.Parameters["step_count"]; ok {
		a.stepCount = uint64(sc)
	}

	for _, st := range state.StateData {
		var idx int
		var dst [][]float64

		switch st.StateType {
		case "momentum":
			dst = a.momentum
		case "variance":
			dst = a.variance
		default:
			return fmt.Errorf("unknown state tensor type: %s", st.StateType)
		}

		if _, err := fmt.Sscanf(st.Name[len(st.StateType)+1:], "%d", &idx); err != nil {
			return fmt.Errorf("cannot parse state tensor name %q: %v", st.Name, err)
		}
		if idx < 0 || idx >= len(dst) {
			return fmt.Errorf("state tensor index %d out of range", idx)
		}
		if len(st.Data) != len(dst[idx]) {
			return fmt.Errorf("state tensor %s size mismatch: %d vs %d", st.Name, len(st.Data), len(dst[idx]))
		}

		copy(dst[idx], st.Data)
	}

	return nil
}

// GetStepCount returns the current optimization step number.
func (a *Adam) GetStepCount() uint64 {
	return a.stepCount
}

// GetLR returns the current learning rate.
func (a *Adam) GetLR() float64 {
	return a.config.LearningRate
}

// SetLR updates the learning rate.
func (a *Adam) SetLR(lr float64) {
	a.config.LearningRate = lr
}
