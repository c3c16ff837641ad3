package tensor

import (
	"fmt"
	"math"
)

func checkCompatibility(t1, t2 *Tensor) error {
	if t1.DType != t2.DType {
		return fmt.Errorf("tensors must have same dtype: %s vs %s", t1.DType, t2.DType)
	}
	if t1.Device != t2.Device {
		return fmt.Errorf("tensors must be on same device: %s vs %s", t1.Device, t2.Device)
	}
	return nil
}

func checkShapesCompatible(shape1, shape2 []int) ([]int, error) {
	if len(shape1) == 0 || len(shape2) == 0 {
		return nil, fmt.Errorf("cannot operate on empty tensors")
	}

	if len(shape1) != len(shape2) {
		return nil, fmt.Errorf("tensor shapes must have same number of dimensions: %v vs %v", shape1, shape2)
	}

	for i := range shape1 {
		if shape1[i] != shape2[i] {
			return nil, fmt.Errorf("tensor shapes must match: %v vs %v", shape1, shape2)
		}
	}

	return shape1, nil
}

// elementwise applies op to two same-shape tensors.
func elementwise(t1, t2 *Tensor, op func(a, b float64) float64) (*Tensor, error) {
	if err := checkCompatibility(t1, t2); err != nil {
		return nil, err
	}

	outputShape, err := checkShapesCompatible(t1.Shape, t2.Shape)
	if err != nil {
		return nil, err
	}

	result, err := Zeros(outputShape, t1.DType, t1.Device)
	if err != nil {
		return nil, err
	}

	switch t1.DType {
	case Float32:
		data1 := t1.Data.([]float32)
		data2 := t2.Data.([]float32)
		resultData := result.Data.([]float32)

		for i := 0; i < t1.NumElems; i++ {
			resultData[i] = float32(op(float64(data1[i]), float64(data2[i])))
		}
	case Float64:
		data1 := t1.Data.([]float64)
		data2 := t2.Data.([]float64)
		resultData := result.Data.([]float64)

		for i := 0; i < t1.NumElems; i++ {
			resultData[i] = op(data1[i], data2[i])
		}
	default:
		return nil, fmt.Errorf("unsupported dtype for elementwise op: %s", t1.DType)
	}

	return result, nil
}

// applyUnary applies op to every element of t.
func applyUnary(t *Tensor, op func(x float64) float64) (*Tensor, error) {
	result, err := Zeros(t.Shape, t.DType, t.Device)
	if err != nil {
		return nil, err
	}

	switch t.DType {
	case Float32:
		data := t.Data.([]float32)
		resultData := result.Data.([]float32)

		for i := 0; i < t.NumElems; i++ {
			resultData[i] = float32(op(float64(data[i])))
		}
	case Float64:
		data := t.Data.([]float64)
		resultData := result.Data.([]float64)

		for i := 0; i < t.NumElems; i++ {
			resultData[i] = op(data[i])
		}
	default:
		return nil, fmt.Errorf("unsupported dtype for unary op: %s", t.DType)
	}

	return result, nil
}

func Add(t1, t2 *Tensor) (*Tensor, error) {
	return elementwise(t1, t2, func(a, b float64) float64 { return a + b })
}

func Sub(t1, t2 *Tensor) (*Tensor, error) {
	return elementwise(t1, t2, func(a, b float64) float64 { return a - b })
}

func Mul(t1, t2 *Tensor) (*Tensor, error) {
	return elementwise(t1, t2, func(a, b float64) float64 { return a * b })
}

func Div(t1, t2 *Tensor) (*Tensor, error) {
	return elementwise(t1, t2, func(a, b float64) float64 { return a / b })
}

// Scale multiplies every element by a scalar.
func Scale(t *Tensor, factor float64) (*Tensor, error) {
	return applyUnary(t, func(x float64) float64 { return x * factor })
}

// AddScalar adds a scalar to every element.
func AddScalar(t *Tensor, value float64) (*Tensor, error) {
	return applyUnary(t, func(x float64) float64 { return x + value })
}

func ReLU(t *Tensor) (*Tensor, error) {
	return applyUnary(t, func(x float64) float64 {
		if x < 0 {
			return 0
		}
		return x
	})
}

func Sigmoid(t *Tensor) (*Tensor, error) {
	return applyUnary(t, func(x float64) float64 {
		return 1.0 / (1.0 + math.Exp(-x))
	})
}

func Tanh(t *Tensor) (*Tensor, error) {
	return applyUnary(t, math.Tanh)
}

func Exp(t *Tensor) (*Tensor, error) {
	return applyUnary(t, math.Exp)
}

func Log(t *Tensor) (*Tensor, error) {
	return applyUnary(t, math.Log)
}

func Sqrt(t *Tensor) (*Tensor, error) {
	return applyUnary(t, math.Sqrt)
}
