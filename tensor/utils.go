package tensor

import (
	"fmt"
	"math"
)

// Reshape is the method form of the package-level Reshape.
func (t *Tensor) Reshape(newShape []int) (*Tensor, error) {
	return Reshape(t, newShape)
}

// Clone returns a deep copy of the tensor data. The clone carries no
// autograd history.
func (t *Tensor) Clone() (*Tensor, error) {
	clone, err := NewTensor(append([]int(nil), t.Shape...), t.DType, t.Device, nil)
	if err != nil {
		return nil, err
	}

	switch t.DType {
	case Float32:
		data := make([]float32, t.NumElems)
		copy(data, t.Data.([]float32))
		clone.Data = data
	case Float64:
		data := make([]float64, t.NumElems)
		copy(data, t.Data.([]float64))
		clone.Data = data
	default:
		return nil, fmt.Errorf("unsupported dtype for Clone: %s", t.DType)
	}

	return clone, nil
}

// Detach returns a tensor sharing this tensor's data but cut off from the
// autograd graph.
func (t *Tensor) Detach() *Tensor {
	return &Tensor{
		Shape:    append([]int(nil), t.Shape...),
		Strides:  append([]int(nil), t.Strides...),
		DType:    t.DType,
		Device:   t.Device,
		Data:     t.Data,
		NumElems: t.NumElems,
	}
}

func (t *Tensor) GetFloat32Data() ([]float32, error) {
	if t.DType != Float32 {
		return nil, fmt.Errorf("tensor is not Float32, got %s", t.DType)
	}
	return t.Data.([]float32), nil
}

func (t *Tensor) GetFloat64Data() ([]float64, error) {
	if t.DType != Float64 {
		return nil, fmt.Errorf("tensor is not Float64, got %s", t.DType)
	}
	return t.Data.([]float64), nil
}

// Item returns the value of a single-element tensor.
func (t *Tensor) Item() (interface{}, error) {
	if t.NumElems != 1 {
		return nil, fmt.Errorf("Item requires a single-element tensor, got %d elements", t.NumElems)
	}

	switch t.DType {
	case Float32:
		return t.Data.([]float32)[0], nil
	case Float64:
		return t.Data.([]float64)[0], nil
	default:
		return nil, fmt.Errorf("unsupported dtype for Item: %s", t.DType)
	}
}

// ScalarFloat64 returns a single-element tensor's value as float64
// regardless of dtype.
func (t *Tensor) ScalarFloat64() (float64, error) {
	v, err := t.Item()
	if err != nil {
		return 0, err
	}

	switch x := v.(type) {
	case float32:
		return float64(x), nil
	case float64:
		return x, nil
	default:
		return 0, fmt.Errorf("unsupported scalar type %T", v)
	}
}

func (t *Tensor) Size() []int {
	return t.Shape
}

func (t *Tensor) Numel() int {
	return t.NumElems
}

func (t *Tensor) Dim() int {
	return len(t.Shape)
}

// Equal reports whether two tensors have identical shape, dtype and data.
func (t *Tensor) Equal(other *Tensor) (bool, error) {
	if other == nil {
		return false, fmt.Errorf("cannot compare with nil tensor")
	}
	if t.DType != other.DType || !shapesEqual(t.Shape, other.Shape) {
		return false, nil
	}

	switch t.DType {
	case Float32:
		a := t.Data.([]float32)
		b := other.Data.([]float32)
		for i := range a {
			if a[i] != b[i] {
				return false, nil
			}
		}
	case Float64:
		a := t.Data.([]float64)
		b := other.Data.([]float64)
		for i := range a {
			if a[i] != b[i] {
				return false, nil
			}
		}
	default:
		return false, fmt.Errorf("unsupported dtype for Equal: %s", t.DType)
	}

	return true, nil
}

// AllClose reports whether two tensors match elementwise within tol.
func (t *Tensor) AllClose(other *Tensor, tol float64) (bool, error) {
	if other == nil {
		return false, fmt.Errorf("cannot compare with nil tensor")
	}
	if t.DType != other.DType || !shapesEqual(t.Shape, other.Shape) {
		return false, nil
	}

	a, err := toFloat64Slice(t)
	if err != nil {
		return false, err
	}
	b, err := toFloat64Slice(other)
	if err != nil {
		return false, err
	}

	for i := range a {
		if math.Abs(a[i]-b[i]) > tol {
			return false, nil
		}
	}
	return true, nil
}

func toFloat64Slice(t *Tensor) ([]float64, error) {
	switch t.DType {
	case Float32:
		src := t.Data.([]float32)
		out := make([]float64, len(src))
		for i, v := range src {
			out[i] = float64(v)
		}
		return out, nil
	case Float64:
		return t.Data.([]float64), nil
	default:
		return nil, fmt.Errorf("unsupported dtype: %s", t.DType)
	}
}

// ToDType converts the tensor to a new element type, copying data.
func (t *Tensor) ToDType(dtype DType) (*Tensor, error) {
	if t.DType == dtype {
		return t.Clone()
	}

	vals, err := toFloat64Slice(t)
	if err != nil {
		return nil, err
	}

	switch dtype {
	case Float32:
		data := make([]float32, len(vals))
		for i, v := range vals {
			data[i] = float32(v)
		}
		return NewTensor(append([]int(nil), t.Shape...), Float32, t.Device, data)
	case Float64:
		data := make([]float64, len(vals))
		copy(data, vals)
		return NewTensor(append([]int(nil), t.Shape...), Float64, t.Device, data)
	default:
		return nil, fmt.Errorf("unsupported target dtype: %s", dtype)
	}
}

// SetData replaces the tensor's backing data in place.
func (t *Tensor) SetData(data interface{}) error {
	return t.setData(data)
}

// ZeroGrad clears the gradients of all given tensors.
func ZeroGrad(tensors []*Tensor) {
	for _, t := range tensors {
		if t != nil {
			t.ZeroGrad()
		}
	}
}

// FromScalar creates a single-element tensor holding value.
func FromScalar(value float64, dtype DType, device DeviceType) *Tensor {
	var t *Tensor
	var err error

	switch dtype {
	case Float32:
		t, err = NewTensor([]int{1}, dtype, device, []float32{float32(value)})
	case Float64:
		t, err = NewTensor([]int{1}, dtype, device, []float64{value})
	default:
		panic(fmt.Sprintf("unsupported dtype for FromScalar: %s", dtype))
	}

	if err != nil {
		panic(fmt.Sprintf("FromScalar failed: %v", err))
	}
	return t
}
