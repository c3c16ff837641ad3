package model

import (
	"math"
	"testing"

	"github.com/proteindesign/protrain/tensor"
)

func TestLinearForward(t *testing.T) {
	SetRandomSeed(42)

	m, err := NewLinear(3, 2)
	if err != nil {
		t.Fatalf("Failed to create Linear: %v", err)
	}

	// Fix weights to known values: W = [[1,0],[0,1],[1,1]], b = [1, -1]
	if err := m.weight.SetData([]float64{1, 0, 0, 1, 1, 1}); err != nil {
		t.Fatalf("Failed to set weights: %v", err)
	}
	if err := m.bias.SetData([]float64{1, -1}); err != nil {
		t.Fatalf("Failed to set bias: %v", err)
	}

	x, _ := tensor.NewTensor([]int{1, 3}, tensor.Float64, tensor.CPU, []float64{1, 2, 3})

	out, err := m.Forward(x)
	if err != nil {
		t.Fatalf("Forward failed: %v", err)
	}

	expected := []float64{1 + 3 + 1, 2 + 3 - 1}
	data := out.Data.([]float64)
	for i, want := range expected {
		if math.Abs(data[i]-want) > 1e-12 {
			t.Errorf("Output %d: expected %f, got %f", i, want, data[i])
		}
	}
}

func TestLinearLossGradients(t *testing.T) {
	SetRandomSeed(42)

	m, err := NewLinear(2, 1)
	if err != nil {
		t.Fatalf("Failed to create Linear: %v", err)
	}

	x, _ := tensor.NewTensor([]int{2, 2}, tensor.Float64, tensor.CPU, []float64{1, 0, 0, 1})
	y, _ := tensor.NewTensor([]int{2, 1}, tensor.Float64, tensor.CPU, []float64{1, -1})

	loss, err := m.Loss(x, y)
	if err != nil {
		t.Fatalf("Loss failed: %v", err)
	}

	if err := loss.Backward(); err != nil {
		t.Fatalf("Backward failed: %v", err)
	}

	for i, p := range m.Parameters() {
		if p.Grad() == nil {
			t.Errorf("Parameter %d has nil gradient after backward", i)
		}
	}
}

func TestLinearShapeErrors(t *testing.T) {
	m, _ := NewLinear(3, 1)

	bad1D, _ := tensor.NewTensor([]int{3}, tensor.Float64, tensor.CPU, []float64{1, 2, 3})
	if _, err := m.Forward(bad1D); err == nil {
		t.Error("Expected error for 1D input")
	}

	badWidth, _ := tensor.NewTensor([]int{1, 4}, tensor.Float64, tensor.CPU, []float64{1, 2, 3, 4})
	if _, err := m.Forward(badWidth); err == nil {
		t.Error("Expected error for wrong input width")
	}
}

func TestMLPForwardShape(t *testing.T) {
	SetRandomSeed(7)

	m, err := NewMLP(4, 8, 4)
	if err != nil {
		t.Fatalf("Failed to create MLP: %v", err)
	}

	x, _ := tensor.NewTensor([]int{3, 4}, tensor.Float64, tensor.CPU,
		[]float64{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0})

	out, err := m.Forward(x)
	if err != nil {
		t.Fatalf("Forward failed: %v", err)
	}

	if out.Shape[0] != 3 || out.Shape[1] != 4 {
		t.Errorf("Expected output shape [3 4], got %v", out.Shape)
	}
}

func TestMLPTrainingReducesLoss(t *testing.T) {
	SetRandomSeed(3)

	m, err := NewMLP(2, 8, 2)
	if err != nil {
		t.Fatalf("Failed to create MLP: %v", err)
	}

	x, _ := tensor.NewTensor([]int{2, 2}, tensor.Float64, tensor.CPU, []float64{1, 0, 0, 1})

	// Self-supervised: reconstruct the input with plain gradient descent.
	initial := -1.0
	var final float64
	for step := 0; step < 50; step++ {
		tensor.ZeroGrad(m.Parameters())

		loss, err := m.Loss(x, x)
		if err != nil {
			t.Fatalf("Loss failed at step %d: %v", step, err)
		}

		v, _ := loss.ScalarFloat64()
		if step == 0 {
			initial = v
		}
		final = v

		if err := loss.Backward(); err != nil {
			t.Fatalf("Backward failed at step %d: %v", step, err)
		}

		for _, p := range m.Parameters() {
			g, _ := p.Grad().GetFloat64Data()
			data, _ := p.GetFloat64Data()
			for i := range data {
				data[i] -= 0.1 * g[i]
			}
		}
	}

	if final >= initial {
		t.Errorf("Expected loss to decrease: initial %f, final %f", initial, final)
	}
}

func TestDoubleIsIdempotent(t *testing.T) {
	m, _ := NewMLP(2, 4, 2)

	if err := m.Double(); err != nil {
		t.Fatalf("Double failed: %v", err)
	}

	for i, p := range m.Parameters() {
		if p.DType != tensor.Float64 {
			t.Errorf("Parameter %d: expected Float64, got %s", i, p.DType)
		}
		if !p.RequiresGrad() {
			t.Errorf("Parameter %d lost requiresGrad after Double", i)
		}
	}

	if err := m.Double(); err != nil {
		t.Fatalf("Second Double failed: %v", err)
	}
}
