package model

import (
	"fmt"

	"github.com/proteindesign/protrain/tensor"
)

// MLP is a two-layer perceptron with a ReLU hidden layer, trained with MSE.
// With outputSize == inputSize it doubles as a small autoencoder for
// self-supervised runs over one-hot encoded sequences.
type MLP struct {
	w1, b1 *tensor.Tensor
	w2, b2 *tensor.Tensor
}

// NewMLP creates an MLP with the given layer widths.
func NewMLP(inputSize, hiddenSize, outputSize int) (*MLP, error) {
	if inputSize <= 0 || hiddenSize <= 0 || outputSize <= 0 {
		return nil, fmt.Errorf("invalid layer sizes: %d x %d x %d", inputSize, hiddenSize, outputSize)
	}

	w1, err := tensor.NewTensor([]int{inputSize, hiddenSize}, tensor.Float64, tensor.CPU,
		xavierUniform(inputSize, hiddenSize, inputSize*hiddenSize))
	if err != nil {
		return nil, fmt.Errorf("failed to create hidden weight tensor: %v", err)
	}

	b1, err := tensor.Zeros([]int{hiddenSize}, tensor.Float64, tensor.CPU)
	if err != nil {
		return nil, fmt.Errorf("failed to create hidden bias tensor: %v", err)
	}

	w2, err := tensor.NewTensor([]int{hiddenSize, outputSize}, tensor.Float64, tensor.CPU,
		xavierUniform(hiddenSize, outputSize, hiddenSize*outputSize))
	if err != nil {
		return nil, fmt.Errorf("failed to create output weight tensor: %v", err)
	}

	b2, err := tensor.Zeros([]int{outputSize}, tensor.Float64, tensor.CPU)
	if err != nil {
		return nil, fmt.Errorf("failed to create output bias tensor: %v", err)
	}

	m := &MLP{w1: w1, b1: b1, w2: w2, b2: b2}
	for _, p := range m.Parameters() {
		p.SetRequiresGrad(true)
	}
	return m, nil
}

// Forward computes relu(xW1 + b1)W2 + b2.
func (m *MLP) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	if len(x.Shape) != 2 {
		return nil, fmt.Errorf("MLP expects 2D input [batch, features], got shape %v", x.Shape)
	}
	if x.Shape[1] != m.w1.Shape[0] {
		return nil, fmt.Errorf("input size mismatch: expected %d, got %d", m.w1.Shape[0], x.Shape[1])
	}

	hidden := tensor.AddAutograd(tensor.MatMulAutograd(x, m.w1), m.b1)
	hidden = tensor.ReLUAutograd(hidden)
	return tensor.AddAutograd(tensor.MatMulAutograd(hidden, m.w2), m.b2), nil
}

// Loss computes the mean squared error between Forward(x) and y.
func (m *MLP) Loss(x, y *tensor.Tensor) (*tensor.Tensor, error) {
	pred, err := m.Forward(x)
	if err != nil {
		return nil, err
	}
	return mseLoss(pred, y)
}

func (m *MLP) Parameters() []*tensor.Tensor {
	return []*tensor.Tensor{m.w1, m.b1, m.w2, m.b2}
}

func (m *MLP) Double() error {
	return doubleParams(m.Parameters())
}
