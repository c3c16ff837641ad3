package tensor

import (
	"math"
	"testing"
)

func TestNewTensor(t *testing.T) {
	tensor, err := NewTensor([]int{2, 3}, Float64, CPU, []float64{1, 2, 3, 4, 5, 6})
	if err != nil {
		t.Fatalf("Failed to create tensor: %v", err)
	}

	if tensor.NumElems != 6 {
		t.Errorf("Expected 6 elements, got %d", tensor.NumElems)
	}

	if !shapesEqual(tensor.Shape, []int{2, 3}) {
		t.Errorf("Expected shape [2 3], got %v", tensor.Shape)
	}

	if !shapesEqual(tensor.Strides, []int{3, 1}) {
		t.Errorf("Expected strides [3 1], got %v", tensor.Strides)
	}
}

func TestNewTensorErrors(t *testing.T) {
	if _, err := NewTensor([]int{0, 3}, Float64, CPU, nil); err == nil {
		t.Error("Expected error for zero dimension")
	}

	if _, err := NewTensor([]int{2, 2}, Float64, CPU, []float64{1, 2}); err == nil {
		t.Error("Expected error for data length mismatch")
	}

	if _, err := NewTensor([]int{2}, Float64, CPU, []float32{1, 2}); err == nil {
		t.Error("Expected error for wrong data element type")
	}
}

func TestZerosOnes(t *testing.T) {
	z, err := Zeros([]int{2, 2}, Float32, CPU)
	if err != nil {
		t.Fatalf("Zeros failed: %v", err)
	}
	for _, v := range z.Data.([]float32) {
		if v != 0 {
			t.Errorf("Expected zero element, got %f", v)
		}
	}

	o, err := Ones([]int{3}, Float64, CPU)
	if err != nil {
		t.Fatalf("Ones failed: %v", err)
	}
	for _, v := range o.Data.([]float64) {
		if v != 1 {
			t.Errorf("Expected one element, got %f", v)
		}
	}
}

func TestElementwiseOps(t *testing.T) {
	a, _ := NewTensor([]int{2, 2}, Float64, CPU, []float64{1, 2, 3, 4})
	b, _ := NewTensor([]int{2, 2}, Float64, CPU, []float64{5, 6, 7, 8})

	tests := []struct {
		name     string
		op       func(t1, t2 *Tensor) (*Tensor, error)
		expected []float64
	}{
		{"Add", Add, []float64{6, 8, 10, 12}},
		{"Sub", Sub, []float64{-4, -4, -4, -4}},
		{"Mul", Mul, []float64{5, 12, 21, 32}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := tt.op(a, b)
			if err != nil {
				t.Fatalf("%s failed: %v", tt.name, err)
			}
			data := result.Data.([]float64)
			for i, want := range tt.expected {
				if data[i] != want {
					t.Errorf("%s element %d: expected %f, got %f", tt.name, i, want, data[i])
				}
			}
		})
	}
}

func TestElementwiseShapeMismatch(t *testing.T) {
	a, _ := NewTensor([]int{2, 2}, Float64, CPU, []float64{1, 2, 3, 4})
	b, _ := NewTensor([]int{4}, Float64, CPU, []float64{1, 2, 3, 4})

	if _, err := Add(a, b); err == nil {
		t.Error("Expected error for mismatched shapes")
	}
}

func TestMatMul(t *testing.T) {
	for _, dtype := range []DType{Float32, Float64} {
		t.Run(dtype.String(), func(t *testing.T) {
			var a, b *Tensor
			if dtype == Float32 {
				a, _ = NewTensor([]int{2, 3}, dtype, CPU, []float32{1, 2, 3, 4, 5, 6})
				b, _ = NewTensor([]int{3, 2}, dtype, CPU, []float32{7, 8, 9, 10, 11, 12})
			} else {
				a, _ = NewTensor([]int{2, 3}, dtype, CPU, []float64{1, 2, 3, 4, 5, 6})
				b, _ = NewTensor([]int{3, 2}, dtype, CPU, []float64{7, 8, 9, 10, 11, 12})
			}

			result, err := MatMul(a, b)
			if err != nil {
				t.Fatalf("MatMul failed: %v", err)
			}

			expected := []float64{58, 64, 139, 154}
			got, err := toFloat64Slice(result)
			if err != nil {
				t.Fatalf("Failed to read result: %v", err)
			}

			for i, want := range expected {
				if math.Abs(got[i]-want) > 1e-6 {
					t.Errorf("Element %d: expected %f, got %f", i, want, got[i])
				}
			}
		})
	}
}

func TestMatMulShapeError(t *testing.T) {
	a, _ := NewTensor([]int{2, 3}, Float64, CPU, []float64{1, 2, 3, 4, 5, 6})
	b, _ := NewTensor([]int{2, 3}, Float64, CPU, []float64{1, 2, 3, 4, 5, 6})

	if _, err := MatMul(a, b); err == nil {
		t.Error("Expected error for incompatible MatMul shapes")
	}
}

func TestTranspose(t *testing.T) {
	a, _ := NewTensor([]int{2, 3}, Float64, CPU, []float64{1, 2, 3, 4, 5, 6})

	result, err := Transpose(a, 0, 1)
	if err != nil {
		t.Fatalf("Transpose failed: %v", err)
	}

	if !shapesEqual(result.Shape, []int{3, 2}) {
		t.Errorf("Expected shape [3 2], got %v", result.Shape)
	}

	expected := []float64{1, 4, 2, 5, 3, 6}
	data := result.Data.([]float64)
	for i, want := range expected {
		if data[i] != want {
			t.Errorf("Element %d: expected %f, got %f", i, want, data[i])
		}
	}
}

func TestReshape(t *testing.T) {
	a, _ := NewTensor([]int{2, 3}, Float64, CPU, []float64{1, 2, 3, 4, 5, 6})

	r, err := a.Reshape([]int{3, 2})
	if err != nil {
		t.Fatalf("Reshape failed: %v", err)
	}

	if !shapesEqual(r.Shape, []int{3, 2}) {
		t.Errorf("Expected shape [3 2], got %v", r.Shape)
	}

	if _, err := a.Reshape([]int{4, 2}); err == nil {
		t.Error("Expected error for element count mismatch")
	}
}

func TestBroadcastTensor(t *testing.T) {
	bias, _ := NewTensor([]int{3}, Float64, CPU, []float64{1, 2, 3})

	result, err := BroadcastTensor(bias, []int{2, 3})
	if err != nil {
		t.Fatalf("BroadcastTensor failed: %v", err)
	}

	expected := []float64{1, 2, 3, 1, 2, 3}
	data := result.Data.([]float64)
	for i, want := range expected {
		if data[i] != want {
			t.Errorf("Element %d: expected %f, got %f", i, want, data[i])
		}
	}
}

func TestBroadcastShapes(t *testing.T) {
	tests := []struct {
		shape1, shape2, want []int
		wantErr              bool
	}{
		{[]int{2, 3}, []int{3}, []int{2, 3}, false},
		{[]int{4, 1}, []int{1, 5}, []int{4, 5}, false},
		{[]int{2, 3}, []int{2, 3}, []int{2, 3}, false},
		{[]int{2, 3}, []int{4}, nil, true},
	}

	for _, tt := range tests {
		got, err := BroadcastShapes(tt.shape1, tt.shape2)
		if tt.wantErr {
			if err == nil {
				t.Errorf("BroadcastShapes(%v, %v): expected error", tt.shape1, tt.shape2)
			}
			continue
		}
		if err != nil {
			t.Errorf("BroadcastShapes(%v, %v): %v", tt.shape1, tt.shape2, err)
			continue
		}
		if !shapesEqual(got, tt.want) {
			t.Errorf("BroadcastShapes(%v, %v): expected %v, got %v", tt.shape1, tt.shape2, tt.want, got)
		}
	}
}

func TestCloneIndependence(t *testing.T) {
	a, _ := NewTensor([]int{2}, Float64, CPU, []float64{1, 2})

	clone, err := a.Clone()
	if err != nil {
		t.Fatalf("Clone failed: %v", err)
	}

	clone.Data.([]float64)[0] = 99
	if a.Data.([]float64)[0] != 1 {
		t.Error("Clone must not share data with source")
	}
}

func TestToDType(t *testing.T) {
	a, _ := NewTensor([]int{2}, Float32, CPU, []float32{1.5, 2.5})

	d, err := a.ToDType(Float64)
	if err != nil {
		t.Fatalf("ToDType failed: %v", err)
	}

	if d.DType != Float64 {
		t.Errorf("Expected Float64, got %s", d.DType)
	}

	data := d.Data.([]float64)
	if data[0] != 1.5 || data[1] != 2.5 {
		t.Errorf("Unexpected converted data: %v", data)
	}
}

func TestItemAndScalar(t *testing.T) {
	s := FromScalar(3.25, Float64, CPU)

	v, err := s.ScalarFloat64()
	if err != nil {
		t.Fatalf("ScalarFloat64 failed: %v", err)
	}
	if v != 3.25 {
		t.Errorf("Expected 3.25, got %f", v)
	}

	multi, _ := NewTensor([]int{2}, Float64, CPU, []float64{1, 2})
	if _, err := multi.Item(); err == nil {
		t.Error("Expected error calling Item on multi-element tensor")
	}
}
