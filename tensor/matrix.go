package tensor

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// MatMul performs 2D matrix multiplication. The Float64 path is delegated
// to gonum's BLAS-backed mat.Dense; the Float32 path is a plain loop.
func MatMul(t1, t2 *Tensor) (*Tensor, error) {
	if err := checkCompatibility(t1, t2); err != nil {
		return nil, err
	}

	if len(t1.Shape) != 2 || len(t2.Shape) != 2 {
		return nil, fmt.Errorf("MatMul requires 2D tensors, got %v and %v", t1.Shape, t2.Shape)
	}

	m, k := t1.Shape[0], t1.Shape[1]
	k2, n := t2.Shape[0], t2.Shape[1]

	if k != k2 {
		return nil, fmt.Errorf("incompatible shapes for MatMul: %v and %v", t1.Shape, t2.Shape)
	}

	result, err := Zeros([]int{m, n}, t1.DType, t1.Device)
	if err != nil {
		return nil, err
	}

	switch t1.DType {
	case Float32:
		data1 := t1.Data.([]float32)
		data2 := t2.Data.([]float32)
		resultData := result.Data.([]float32)

		for i := 0; i < m; i++ {
			for j := 0; j < n; j++ {
				var sum float32
				for l := 0; l < k; l++ {
					sum += data1[i*k+l] * data2[l*n+j]
				}
				resultData[i*n+j] = sum
			}
		}
	case Float64:
		a := mat.NewDense(m, k, t1.Data.([]float64))
		b := mat.NewDense(k, n, t2.Data.([]float64))
		c := mat.NewDense(m, n, result.Data.([]float64))
		c.Mul(a, b)
	default:
		return nil, fmt.Errorf("unsupported dtype for MatMul: %s", t1.DType)
	}

	return result, nil
}

// Transpose swaps two dimensions of a 2D tensor.
func Transpose(t *Tensor, dim0, dim1 int) (*Tensor, error) {
	if len(t.Shape) != 2 {
		return nil, fmt.Errorf("Transpose currently supports only 2D tensors, got shape %v", t.Shape)
	}
	if dim0 < 0 || dim0 > 1 || dim1 < 0 || dim1 > 1 || dim0 == dim1 {
		return nil, fmt.Errorf("invalid transpose dimensions %d, %d for 2D tensor", dim0, dim1)
	}

	rows, cols := t.Shape[0], t.Shape[1]
	result, err := Zeros([]int{cols, rows}, t.DType, t.Device)
	if err != nil {
		return nil, err
	}

	switch t.DType {
	case Float32:
		data := t.Data.([]float32)
		resultData := result.Data.([]float32)
		for i := 0; i < rows; i++ {
			for j := 0; j < cols; j++ {
				resultData[j*rows+i] = data[i*cols+j]
			}
		}
	case Float64:
		data := t.Data.([]float64)
		resultData := result.Data.([]float64)
		for i := 0; i < rows; i++ {
			for j := 0; j < cols; j++ {
				resultData[j*rows+i] = data[i*cols+j]
			}
		}
	default:
		return nil, fmt.Errorf("unsupported dtype for Transpose: %s", t.DType)
	}

	return result, nil
}

// Reshape returns a view-copy of t with a new shape of equal element count.
func Reshape(t *Tensor, newShape []int) (*Tensor, error) {
	if err := validateShape(newShape); err != nil {
		return nil, err
	}

	if calculateNumElements(newShape) != t.NumElems {
		return nil, fmt.Errorf("cannot reshape tensor of %d elements to shape %v", t.NumElems, newShape)
	}

	clone, err := t.Clone()
	if err != nil {
		return nil, err
	}

	clone.Shape = append([]int(nil), newShape...)
	clone.Strides = calculateStrides(newShape)
	return clone, nil
}

// Flatten reshapes t to one dimension.
func Flatten(t *Tensor) (*Tensor, error) {
	return Reshape(t, []int{t.NumElems})
}
