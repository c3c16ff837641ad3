package optimizer

import (
	"fmt"

	"github.com/proteindesign/protrain/checkpoints"
	"github.com/proteindesign/protrain/tensor"
)

// SGDConfig holds configuration for the SGD optimizer
type SGDConfig struct {
	LearningRate float64
	Momentum     float64
	WeightDecay  float64
	Nesterov     bool
}

// DefaultSGDConfig returns default SGD optimizer configuration
func DefaultSGDConfig() SGDConfig {
	return SGDConfig{
		LearningRate: 0.01,
		Momentum:     0.9,
		WeightDecay:  0.0,
		Nesterov:     false,
	}
}

// SGD implements stochastic gradient descent with optional momentum.
type SGD struct {
	config SGDConfig

	params   []*tensor.Tensor
	momentum [][]float64

	stepCount uint64
}

// NewSGD creates an SGD optimizer for the given parameter tensors.
func NewSGD(config SGDConfig, params []*tensor.Tensor) (*SGD, error) {
	if len(params) == 0 {
		return nil, fmt.Errorf("no parameters provided")
	}
	if config.LearningRate <= 0 {
		return nil, fmt.Errorf("learning rate must be positive, got %g", config.LearningRate)
	}
	if config.Momentum < 0 || config.Momentum >= 1 {
		return nil, fmt.Errorf("momentum must be in [0, 1), got %g", config.Momentum)
	}
	if config.Nesterov && config.Momentum == 0 {
		return nil, fmt.Errorf("nesterov momentum requires a momentum factor")
	}

	sgd := &SGD{
		config:   config,
		params:   params,
		momentum: make([][]float64, len(params)),
	}

	for i, param := range params {
		sgd.momentum[i] = make([]float64, param.NumElems)
	}

	return sgd, nil
}

// Step performs a single SGD optimization step.
func (s *SGD) Step() error {
	s.stepCount++

	for i, param := range s.params {
		grad, err := gradData(param)
		if err != nil {
			return fmt.Errorf("parameter %d: %v", i, err)
		}

		buf := s.momentum[i]
		update := make([]float64, len(grad))

		for j, g := range grad {
			if s.config.WeightDecay > 0 {
				g += s.config.WeightDecay * paramValue(param, j)
			}

			if s.config.Momentum > 0 {
				buf[j] = s.config.Momentum*buf[j] + g
				if s.config.Nesterov {
					g += s.config.Momentum * buf[j]
				} else {
					g = buf[j]
				}
			}

			update[j] = s.config.LearningRate * g
		}

		if err := applyUpdate(param, update); err != nil {
			return fmt.Errorf("parameter %d: %v", i, err)
		}
	}

	return nil
}

// ZeroGrad clears the gradients of all managed parameters.
func (s *SGD) ZeroGrad() {
	for _, param := range s.params {
		param.ZeroGrad()
	}
}

// GetState extracts optimizer state for checkpointing.
func (s *SGD) GetState() (*checkpoints.OptimizerState, error) {
	state := &checkpoints.OptimizerState{
		Type: "SGD",
		Parameters: map[string]float64{
			"learning_rate": s.config.LearningRate,
			"momentum":      s.config.Momentum,
			"weight_decay":  s.config.WeightDecay,
			"step_count":    float64(s.stepCount),
		},
	}

	if s.config.Momentum > 0 {
		for i, param := range s.params {
			state.StateData = append(state.StateData, checkpoints.OptimizerTensor{
				Name:      fmt.Sprintf("momentum_%d", i),
				Shape:     append([]int(nil), param.Shape...),
				Data:      append([]float64(nil), s.momentum[i]...),
				StateType: "momentum",
			})
		}
	}

	return state, nil
}

// LoadState restores optimizer state from a checkpoint.
func (s *SGD) LoadState(state *checkpoints.OptimizerState) error {
	if err := validateStateType("SGD", state); err != nil {
		return err
	}

	if lr, ok := state.Parameters["learning_rate"]; ok {
		s.config.LearningRate = lr
	}
	if sc, ok := state.Parameters["step_count"]; ok {
		s.stepCount = uint64(sc)
	}

	for _, st := range state.StateData {
		if st.StateType != "momentum" {
			return fmt.Errorf("unknown state tensor type: %s", st.StateType)
		}

		var idx int
		if _, err := fmt.Sscanf(st.Name[len("momentum_"):], "%d", &idx); err != nil {
			return fmt.Errorf("cannot parse state tensor name %q: %v", st.Name, err)
		}
		if idx < 0 || idx >= len(s.momentum) {
			return fmt.Errorf("state tensor index %d out of range", idx)
		}
		if len(st.Data) != len(s.momentum[idx]) {
			return fmt.Errorf("state tensor %s size mismatch: %d vs %d", st.Name, len(st.Data), len(s.momentum[idx]))
		}

		copy(s.momentum[idx], st.Data)
	}

	return nil
}

// GetStepCount returns the current optimization step number.
func (s *SGD) GetStepCount() uint64 {
	return s.stepCount
}

// GetLR returns the current learning rate.
func (s *SGD) GetLR() float64 {
	return s.config.LearningRate
}

// SetLR updates the learning rate.
func (s *SGD) SetLR(lr float64) {
	s.config.LearningRate = lr
}
