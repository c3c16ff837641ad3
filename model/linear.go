package model

import (
	"fmt"

	"github.com/proteindesign/protrain/tensor"
)

// Linear is a single fully connected layer: y = xW + b, trained with MSE.
type Linear struct {
	weight *tensor.Tensor
	bias   *tensor.Tensor
}

// NewLinear creates a Linear model with Xavier-initialized weights and a
// zero bias.
func NewLinear(inputSize, outputSize int) (*Linear, error) {
	if inputSize <= 0 || outputSize <= 0 {
		return nil, fmt.Errorf("invalid layer sizes: %d x %d", inputSize, outputSize)
	}

	weight, err := tensor.NewTensor([]int{inputSize, outputSize}, tensor.Float64, tensor.CPU,
		xavierUniform(inputSize, outputSize, inputSize*outputSize))
	if err != nil {
		return nil, fmt.Errorf("failed to create weight tensor: %v", err)
	}
	weight.SetRequiresGrad(true)

	bias, err := tensor.Zeros([]int{outputSize}, tensor.Float64, tensor.CPU)
	if err != nil {
		return nil, fmt.Errorf("failed to create bias tensor: %v", err)
	}
	bias.SetRequiresGrad(true)

	return &Linear{weight: weight, bias: bias}, nil
}

// Forward computes y = xW + b.
func (l *Linear) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	if len(x.Shape) != 2 {
		return nil, fmt.Errorf("Linear expects 2D input [batch, features], got shape %v", x.Shape)
	}
	if x.Shape[1] != l.weight.Shape[0] {
		return nil, fmt.Errorf("input size mismatch: expected %d, got %d", l.weight.Shape[0], x.Shape[1])
	}

	out := tensor.MatMulAutograd(x, l.weight)
	return tensor.AddAutograd(out, l.bias), nil
}

// Loss computes the mean squared error between Forward(x) and y.
func (l *Linear) Loss(x, y *tensor.Tensor) (*tensor.Tensor, error) {
	pred, err := l.Forward(x)
	if err != nil {
		return nil, err
	}
	return mseLoss(pred, y)
}

func (l *Linear) Parameters() []*tensor.Tensor {
	return []*tensor.Tensor{l.weight, l.bias}
}

func (l *Linear) Double() error {
	return doubleParams(l.Parameters())
}
