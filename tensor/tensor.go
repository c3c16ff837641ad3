package tensor

import (
	"fmt"
)

type DType int

const (
	Float32 DType = iota
	Float64
)

func (d DType) String() string {
	switch d {
	case Float32:
		return "Float32"
	case Float64:
		return "Float64"
	default:
		return "Unknown"
	}
}

type DeviceType int

const (
	CPU DeviceType = iota
)

func (d DeviceType) String() string {
	switch d {
	case CPU:
		return "CPU"
	default:
		return "Unknown"
	}
}

// Operation is a node in the autograd graph. Forward builds the output
// tensor and records inputs; Backward returns one gradient per input.
type Operation interface {
	Forward(...*Tensor) *Tensor
	Backward(gradOut *Tensor) []*Tensor
	Inputs() []*Tensor
}

type Tensor struct {
	Shape        []int
	Strides      []int
	DType        DType
	Device       DeviceType
	Data         interface{}
	NumElems     int
	requiresGrad bool
	grad         *Tensor
	creator      Operation
}

func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor(shape=%v, dtype=%s, device=%s, elements=%d)",
		t.Shape, t.DType, t.Device, t.NumElems)
}

func (t *Tensor) RequiresGrad() bool {
	return t.requiresGrad
}

func (t *Tensor) SetRequiresGrad(requires bool) {
	t.requiresGrad = requires
}

func (t *Tensor) Grad() *Tensor {
	return t.grad
}

// SetGrad replaces the accumulated gradient. A non-nil gradient must
// match the tensor's shape.
func (t *Tensor) SetGrad(grad *Tensor) error {
	if grad != nil {
		if len(grad.Shape) != len(t.Shape) {
			return fmt.Errorf("gradient shape %v does not match tensor shape %v", grad.Shape, t.Shape)
		}
		for i, dim := range t.Shape {
			if grad.Shape[i] != dim {
				return fmt.Errorf("gradient shape %v does not match tensor shape %v", grad.Shape, t.Shape)
			}
		}
	}
	t.grad = grad
	return nil
}

// ZeroGrad discards any accumulated gradient.
func (t *Tensor) ZeroGrad() {
	t.grad = nil
}

func calculateStrides(shape []int) []int {
	if len(shape) == 0 {
		return []int{}
	}

	strides := make([]int, len(shape))
	stride := 1
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = stride
		stride *= shape[i]
	}
	return strides
}

func calculateNumElements(shape []int) int {
	if len(shape) == 0 {
		return 0
	}

	elements := 1
	for _, dim := range shape {
		elements *= dim
	}
	return elements
}

func validateShape(shape []int) error {
	for i, dim := range shape {
		if dim <= 0 {
			return fmt.Errorf("invalid shape: dimension %d has size %d, must be positive", i, dim)
		}
	}
	return nil
}
