package tensor

import (
	"math"
	"testing"
)

func TestAddBackward(t *testing.T) {
	a, _ := NewTensor([]int{2}, Float64, CPU, []float64{1, 2})
	b, _ := NewTensor([]int{2}, Float64, CPU, []float64{3, 4})
	a.SetRequiresGrad(true)
	b.SetRequiresGrad(true)

	sum := AddAutograd(a, b)
	loss := MeanAutograd(sum)

	if err := loss.Backward(); err != nil {
		t.Fatalf("Backward failed: %v", err)
	}

	// d(mean(a+b))/da_i = 1/2
	for i, g := range a.Grad().Data.([]float64) {
		if math.Abs(g-0.5) > 1e-12 {
			t.Errorf("grad a[%d]: expected 0.5, got %f", i, g)
		}
	}
	for i, g := range b.Grad().Data.([]float64) {
		if math.Abs(g-0.5) > 1e-12 {
			t.Errorf("grad b[%d]: expected 0.5, got %f", i, g)
		}
	}
}

func TestAddBroadcastBackward(t *testing.T) {
	x, _ := NewTensor([]int{2, 3}, Float64, CPU, []float64{1, 2, 3, 4, 5, 6})
	bias, _ := NewTensor([]int{3}, Float64, CPU, []float64{1, 1, 1})
	bias.SetRequiresGrad(true)

	out := AddAutograd(x, bias)
	loss := MeanAutograd(out)

	if err := loss.Backward(); err != nil {
		t.Fatalf("Backward failed: %v", err)
	}

	// Each bias element receives 2 of the 6 mean contributions.
	grad := bias.Grad()
	if !shapesEqual(grad.Shape, []int{3}) {
		t.Fatalf("Expected bias grad shape [3], got %v", grad.Shape)
	}
	for i, g := range grad.Data.([]float64) {
		if math.Abs(g-2.0/6.0) > 1e-12 {
			t.Errorf("bias grad[%d]: expected %f, got %f", i, 2.0/6.0, g)
		}
	}
}

func TestMulBackward(t *testing.T) {
	a, _ := NewTensor([]int{2}, Float64, CPU, []float64{2, 3})
	b, _ := NewTensor([]int{2}, Float64, CPU, []float64{5, 7})
	a.SetRequiresGrad(true)

	prod := MulAutograd(a, b)
	loss := MeanAutograd(prod)

	if err := loss.Backward(); err != nil {
		t.Fatalf("Backward failed: %v", err)
	}

	// d(mean(a*b))/da_i = b_i / 2
	expected := []float64{2.5, 3.5}
	for i, g := range a.Grad().Data.([]float64) {
		if math.Abs(g-expected[i]) > 1e-12 {
			t.Errorf("grad a[%d]: expected %f, got %f", i, expected[i], g)
		}
	}
}

func TestMatMulBackward(t *testing.T) {
	x, _ := NewTensor([]int{1, 2}, Float64, CPU, []float64{1, 2})
	w, _ := NewTensor([]int{2, 1}, Float64, CPU, []float64{3, 4})
	w.SetRequiresGrad(true)

	out := MatMulAutograd(x, w) // [1,1] = 1*3 + 2*4 = 11
	loss := MeanAutograd(out)

	if err := loss.Backward(); err != nil {
		t.Fatalf("Backward failed: %v", err)
	}

	v, _ := out.ScalarFloat64()
	if math.Abs(v-11) > 1e-12 {
		t.Errorf("Expected forward value 11, got %f", v)
	}

	// dLoss/dW = x^T
	expected := []float64{1, 2}
	for i, g := range w.Grad().Data.([]float64) {
		if math.Abs(g-expected[i]) > 1e-12 {
			t.Errorf("grad w[%d]: expected %f, got %f", i, expected[i], g)
		}
	}
}

func TestReLUBackward(t *testing.T) {
	x, _ := NewTensor([]int{4}, Float64, CPU, []float64{-2, -1, 1, 2})
	x.SetRequiresGrad(true)

	out := ReLUAutograd(x)
	loss := MeanAutograd(out)

	if err := loss.Backward(); err != nil {
		t.Fatalf("Backward failed: %v", err)
	}

	expected := []float64{0, 0, 0.25, 0.25}
	for i, g := range x.Grad().Data.([]float64) {
		if math.Abs(g-expected[i]) > 1e-12 {
			t.Errorf("grad x[%d]: expected %f, got %f", i, expected[i], g)
		}
	}
}

func TestSigmoidBackward(t *testing.T) {
	x, _ := NewTensor([]int{1}, Float64, CPU, []float64{0})
	x.SetRequiresGrad(true)

	out := SigmoidAutograd(x)
	if err := out.Backward(); err != nil {
		t.Fatalf("Backward failed: %v", err)
	}

	// sigmoid(0) = 0.5, gradient = 0.5 * 0.5 = 0.25
	g := x.Grad().Data.([]float64)[0]
	if math.Abs(g-0.25) > 1e-12 {
		t.Errorf("Expected grad 0.25, got %f", g)
	}
}

func TestGradAccumulation(t *testing.T) {
	x, _ := NewTensor([]int{1}, Float64, CPU, []float64{2})
	x.SetRequiresGrad(true)

	// y = x * x, dy/dx flows through both uses of x: 2x = 4
	y := MulAutograd(x, x)
	if err := y.Backward(); err != nil {
		t.Fatalf("Backward failed: %v", err)
	}

	g := x.Grad().Data.([]float64)[0]
	if math.Abs(g-4) > 1e-12 {
		t.Errorf("Expected grad 4, got %f", g)
	}

	// A second backward accumulates on top of the stored grad.
	y2 := MulAutograd(x, x)
	if err := y2.Backward(); err != nil {
		t.Fatalf("Second backward failed: %v", err)
	}

	g = x.Grad().Data.([]float64)[0]
	if math.Abs(g-8) > 1e-12 {
		t.Errorf("Expected accumulated grad 8, got %f", g)
	}

	x.ZeroGrad()
	if x.Grad() != nil {
		t.Error("Expected nil grad after ZeroGrad")
	}
}

func TestNoGradDisablesTracking(t *testing.T) {
	a, _ := NewTensor([]int{2}, Float64, CPU, []float64{1, 2})
	a.SetRequiresGrad(true)

	var out *Tensor
	err := NoGrad(func() error {
		out = MeanAutograd(AddAutograd(a, a))
		return nil
	})
	if err != nil {
		t.Fatalf("NoGrad failed: %v", err)
	}

	if out.creator != nil {
		t.Error("Expected no creator recorded under NoGrad")
	}
	if out.RequiresGrad() {
		t.Error("Expected requiresGrad false under NoGrad")
	}
	if !GradEnabled() {
		t.Error("Gradient mode must be restored after NoGrad")
	}
}

func TestBackwardRequiresScalar(t *testing.T) {
	a, _ := NewTensor([]int{2}, Float64, CPU, []float64{1, 2})
	a.SetRequiresGrad(true)

	out := AddAutograd(a, a)
	if err := out.Backward(); err == nil {
		t.Error("Expected error calling Backward on non-scalar tensor")
	}
}
