// Package model defines the capability contract the training loop expects
// from a trainable model, plus two small reference implementations. Real
// architectures (masked language models over sequences, generative decoders)
// are external collaborators; anything satisfying Model can be trained.
package model

import (
	"math"
	"math/rand"

	"github.com/proteindesign/protrain/tensor"
)

// Global random source for deterministic weight initialization.
var globalRng = rand.New(rand.NewSource(1))

// SetRandomSeed sets the global random seed for deterministic weight initialization.
func SetRandomSeed(seed int64) {
	globalRng = rand.New(rand.NewSource(seed))
}

// Model is the contract the trainer drives: a differentiable scalar loss
// over an (input, target) batch, forward inference, parameter enumeration,
// and precision placement.
type Model interface {
	// Loss computes a differentiable scalar loss on one batch.
	Loss(x, y *tensor.Tensor) (*tensor.Tensor, error)

	// Forward produces predictions from raw input.
	Forward(x *tensor.Tensor) (*tensor.Tensor, error)

	// Parameters returns the trainable parameter tensors.
	Parameters() []*tensor.Tensor

	// Double moves all parameters to double precision in place.
	Double() error
}

// mseLoss is the shared loss of the reference models.
func mseLoss(pred, target *tensor.Tensor) (*tensor.Tensor, error) {
	diff := tensor.SubAutograd(pred, target)
	sq := tensor.MulAutograd(diff, diff)
	return tensor.MeanAutograd(sq), nil
}

// xavierUniform fills a weight slice with Xavier/Glorot uniform values:
// W ~ U(-sqrt(6/(fanIn+fanOut)), sqrt(6/(fanIn+fanOut))).
func xavierUniform(fanIn, fanOut int, n int) []float64 {
	bound := math.Sqrt(6.0 / float64(fanIn+fanOut))
	data := make([]float64, n)
	for i := range data {
		data[i] = (globalRng.Float64()*2.0 - 1.0) * bound
	}
	return data
}

// doubleParams converts parameter tensors to Float64 in place, preserving
// identity so optimizers holding the same pointers keep working.
func doubleParams(params []*tensor.Tensor) error {
	for _, p := range params {
		if p.DType == tensor.Float64 {
			continue
		}
		converted, err := p.ToDType(tensor.Float64)
		if err != nil {
			return err
		}
		converted.SetRequiresGrad(p.RequiresGrad())
		*p = *converted
	}
	return nil
}
