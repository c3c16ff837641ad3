// Package optimizer implements gradient-based parameter update rules.
// Optimizers hold references to the model's parameter tensors and read
// the gradients accumulated on them by the autograd engine.
package optimizer

import (
	"fmt"

	"github.com/proteindesign/protrain/checkpoints"
	"github.com/proteindesign/protrain/tensor"
)

// Optimizer defines the common interface for all optimizers.
// This interface enables state save/restore for checkpoint functionality.
type Optimizer interface {
	// Step performs a single optimization step using the gradients
	// currently held by the parameter tensors
	Step() error

	// ZeroGrad clears the gradients of all managed parameters
	ZeroGrad()

	// GetState extracts optimizer state for checkpointing
	GetState() (*checkpoints.OptimizerState, error)

	// LoadState restores optimizer state from a checkpoint
	LoadState(state *checkpoints.OptimizerState) error

	// GetStepCount returns the current optimization step number
	GetStepCount() uint64

	// GetLR returns the current learning rate
	GetLR() float64

	// SetLR updates the learning rate (used by LR schedulers)
	SetLR(lr float64)
}

// validateStateType ensures the state type matches the optimizer
func validateStateType(optimizerType string, state *checkpoints.OptimizerState) error {
	if state.Type != optimizerType {
		return fmt.Errorf("state type mismatch: expected %s, got %s", optimizerType, state.Type)
	}
	return nil
}

// gradData returns the gradient of a parameter as float64 values,
// regardless of the parameter's dtype.
func gradData(param *tensor.Tensor) ([]float64, error) {
	grad := param.Grad()
	if grad == nil {
		return nil, fmt.Errorf("parameter has no gradient")
	}

	switch grad.DType {
	case tensor.Float32:
		src, err := grad.GetFloat32Data()
		if err != nil {
			return nil, err
		}
		out := make([]float64, len(src))
		for i, v := range src {
			out[i] = float64(v)
		}
		return out, nil
	case tensor.Float64:
		return grad.GetFloat64Data()
	default:
		return nil, fmt.Errorf("unsupported gradient dtype: %s", grad.DType)
	}
}

// applyUpdate subtracts update values from the parameter data in place.
func applyUpdate(param *tensor.Tensor, update []float64) error {
	if len(update) != param.NumElems {
		return fmt.Errorf("update length %d does not match parameter size %d", len(update), param.NumElems)
	}

	switch param.DType {
	case tensor.Float32:
		data, err := param.GetFloat32Data()
		if err != nil {
			return err
		}
		for i, u := range update {
			data[i] -= float32(u)
		}
		return nil
	case tensor.Float64:
		data, err := param.GetFloat64Data()
		if err != nil {
			return err
		}
		for i, u := range update {
			data[i] -= u
		}
		return nil
	default:
		return fmt.Errorf("unsupported parameter dtype: %s", param.DType)
	}
}
