package optimizer

import (
	"math"
	"testing"

	"github.com/proteindesign/protrain/tensor"
)

func newParam(t *testing.T, shape []int, data []float64) *tensor.Tensor {
	t.Helper()
	param, err := tensor.NewTensor(shape, tensor.Float64, tensor.CPU, data)
	if err != nil {
		t.Fatalf("failed to create parameter: %v", err)
	}
	param.SetRequiresGrad(true)
	return param
}

func setGrad(t *testing.T, param *tensor.Tensor, data []float64) {
	t.Helper()
	grad, err := tensor.NewTensor(param.Shape, tensor.Float64, tensor.CPU, data)
	if err != nil {
		t.Fatalf("failed to create gradient: %v", err)
	}
	if err := param.SetGrad(grad); err != nil {
		t.Fatalf("failed to set gradient: %v", err)
	}
}

func TestAdamConfigValidation(t *testing.T) {
	param := newParam(t, []int{2}, []float64{1, 2})

	tests := []struct {
		name   string
		config AdamConfig
		params []*tensor.Tensor
	}{
		{"NoParams", DefaultAdamConfig(), nil},
		{"ZeroLR", AdamConfig{LearningRate: 0, Beta1: 0.9, Beta2: 0.999, Epsilon: 1e-8}, []*tensor.Tensor{param}},
		{"NegativeLR", AdamConfig{LearningRate: -0.1, Beta1: 0.9, Beta2: 0.999, Epsilon: 1e-8}, []*tensor.Tensor{param}},
		{"BadBeta1", AdamConfig{LearningRate: 0.001, Beta1: 1.0, Beta2: 0.999, Epsilon: 1e-8}, []*tensor.Tensor{param}},
		{"BadBeta2", AdamConfig{LearningRate: 0.001, Beta1: 0.9, Beta2: 1.5, Epsilon: 1e-8}, []*tensor.Tensor{param}},
		{"ZeroEpsilon", AdamConfig{LearningRate: 0.001, Beta1: 0.9, Beta2: 0.999, Epsilon: 0}, []*tensor.Tensor{param}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewAdam(tc.config, tc.params); err == nil {
				t.Errorf("expected error for config %+v", tc.config)
			}
		})
	}
}

func TestAdamFirstStep(t *testing.T) {
	// With bias correction the first Adam update is approximately
	// lr * sign(gradient), independent of gradient magnitude.
	param := newParam(t, []int{3}, []float64{1.0, 1.0, 1.0})

	config := DefaultAdamConfig()
	config.LearningRate = 0.1
	adam, err := NewAdam(config, []*tensor.Tensor{param})
	if err != nil {
		t.Fatalf("NewAdam failed: %v", err)
	}

	setGrad(t, param, []float64{0.5, -2.0, 0.0})

	if err := adam.Step(); err != nil {
		t.Fatalf("Step failed: %v", err)
	}

	data, _ := param.GetFloat64Data()
	expected := []float64{1.0 - 0.1, 1.0 + 0.1, 1.0}
	for i, want := range expected {
		if math.Abs(data[i]-want) > 1e-3 {
			t.Errorf("param[%d]: got %v, want %v", i, data[i], want)
		}
	}

	if adam.GetStepCount() != 1 {
		t.Errorf("expected step count 1, got %d", adam.GetStepCount())
	}
}

func TestAdamConvergesOnQuadratic(t *testing.T) {
	// Minimize f(x) = x^2 starting from x = 5. The gradient is 2x.
	param := newParam(t, []int{1}, []float64{5.0})

	config := DefaultAdamConfig()
	config.LearningRate = 0.1
	adam, err := NewAdam(config, []*tensor.Tensor{param})
	if err != nil {
		t.Fatalf("NewAdam failed: %v", err)
	}

	for i := 0; i < 500; i++ {
		data, _ := param.GetFloat64Data()
		setGrad(t, param, []float64{2 * data[0]})
		if err := adam.Step(); err != nil {
			t.Fatalf("Step failed at iteration %d: %v", i, err)
		}
		adam.ZeroGrad()
	}

	data, _ := param.GetFloat64Data()
	if math.Abs(data[0]) > 0.05 {
		t.Errorf("expected convergence near 0, got %v", data[0])
	}
}

func TestAdamStepWithoutGradient(t *testing.T) {
	param := newParam(t, []int{2}, []float64{1, 2})
	adam, err := NewAdam(DefaultAdamConfig(), []*tensor.Tensor{param})
	if err != nil {
		t.Fatalf("NewAdam failed: %v", err)
	}

	if err := adam.Step(); err == nil {
		t.Error("expected error stepping without gradients")
	}
}

func TestAdamStateRoundTrip(t *testing.T) {
	param := newParam(t, []int{2}, []float64{1, 2})

	adam, err := NewAdam(DefaultAdamConfig(), []*tensor.Tensor{param})
	if err != nil {
		t.Fatalf("NewAdam failed: %v", err)
	}

	setGrad(t, param, []float64{0.1, -0.2})
	for i := 0; i < 3; i++ {
		if err := adam.Step(); err != nil {
			t.Fatalf("Step failed: %v", err)
		}
	}

	state, err := adam.GetState()
	if err != nil {
		t.Fatalf("GetState failed: %v", err)
	}
	if state.Type != "Adam" {
		t.Errorf("expected state type Adam, got %s", state.Type)
	}
	if len(state.StateData) != 2 {
		t.Fatalf("expected 2 state tensors (momentum + variance), got %d", len(state.StateData))
	}

	// Restore into a fresh optimizer and verify it continues identically.
	paramCopy := newParam(t, []int{2}, []float64{1, 2})
	restored, err := NewAdam(DefaultAdamConfig(), []*tensor.Tensor{paramCopy})
	if err != nil {
		t.Fatalf("NewAdam failed: %v", err)
	}
	if err := restored.LoadState(state); err != nil {
		t.Fatalf("LoadState failed: %v", err)
	}

	if restored.GetStepCount() != adam.GetStepCount() {
		t.Errorf("step count: got %d, want %d", restored.GetStepCount(), adam.GetStepCount())
	}

	// Copy current parameter values and take one more step on both.
	origData, _ := param.GetFloat64Data()
	copyData, _ := paramCopy.GetFloat64Data()
	copy(copyData, origData)

	setGrad(t, param, []float64{0.3, 0.4})
	setGrad(t, paramCopy, []float64{0.3, 0.4})
	if err := adam.Step(); err != nil {
		t.Fatalf("Step failed: %v", err)
	}
	if err := restored.Step(); err != nil {
		t.Fatalf("restored Step failed: %v", err)
	}

	for i := range origData {
		if math.Abs(origData[i]-copyData[i]) > 1e-12 {
			t.Errorf("divergence after restore at %d: %v vs %v", i, origData[i], copyData[i])
		}
	}
}

func TestAdamLoadStateTypeMismatch(t *testing.T) {
	param := newParam(t, []int{2}, []float64{1, 2})
	adam, err := NewAdam(DefaultAdamConfig(), []*tensor.Tensor{param})
	if err != nil {
		t.Fatalf("NewAdam failed: %v", err)
	}

	sgd, err := NewSGD(DefaultSGDConfig(), []*tensor.Tensor{param})
	if err != nil {
		t.Fatalf("NewSGD failed: %v", err)
	}
	state, err := sgd.GetState()
	if err != nil {
		t.Fatalf("GetState failed: %v", err)
	}

	if err := adam.LoadState(state); err == nil {
		t.Error("expected error loading SGD state into Adam")
	}
}

func TestSGDStep(t *testing.T) {
	// Plain SGD without momentum: x -= lr * grad.
	param := newParam(t, []int{2}, []float64{1.0, 2.0})

	config := SGDConfig{LearningRate: 0.1, Momentum: 0}
	sgd, err := NewSGD(config, []*tensor.Tensor{param})
	if err != nil {
		t.Fatalf("NewSGD failed: %v", err)
	}

	setGrad(t, param, []float64{1.0, -1.0})
	if err := sgd.Step(); err != nil {
		t.Fatalf("Step failed: %v", err)
	}

	data, _ := param.GetFloat64Data()
	if math.Abs(data[0]-0.9) > 1e-12 || math.Abs(data[1]-2.1) > 1e-12 {
		t.Errorf("expected [0.9, 2.1], got %v", data)
	}
}

func TestSGDMomentumAccumulates(t *testing.T) {
	param := newParam(t, []int{1}, []float64{0.0})

	config := SGDConfig{LearningRate: 0.1, Momentum: 0.9}
	sgd, err := NewSGD(config, []*tensor.Tensor{param})
	if err != nil {
		t.Fatalf("NewSGD failed: %v", err)
	}

	// Constant gradient of 1. First step moves lr*1, second moves
	// lr*(1 + 0.9) because the momentum buffer accumulates.
	setGrad(t, param, []float64{1.0})
	if err := sgd.Step(); err != nil {
		t.Fatalf("first Step failed: %v", err)
	}
	data, _ := param.GetFloat64Data()
	if math.Abs(data[0]+0.1) > 1e-12 {
		t.Fatalf("after first step: got %v, want -0.1", data[0])
	}

	setGrad(t, param, []float64{1.0})
	if err := sgd.Step(); err != nil {
		t.Fatalf("second Step failed: %v", err)
	}
	data, _ = param.GetFloat64Data()
	if math.Abs(data[0]+0.29) > 1e-12 {
		t.Errorf("after second step: got %v, want -0.29", data[0])
	}
}

func TestSGDNesterovRequiresMomentum(t *testing.T) {
	param := newParam(t, []int{1}, []float64{0})
	config := SGDConfig{LearningRate: 0.1, Momentum: 0, Nesterov: true}
	if _, err := NewSGD(config, []*tensor.Tensor{param}); err == nil {
		t.Error("expected error for nesterov without momentum")
	}
}

func TestSetLR(t *testing.T) {
	param := newParam(t, []int{1}, []float64{0})

	adam, err := NewAdam(DefaultAdamConfig(), []*tensor.Tensor{param})
	if err != nil {
		t.Fatalf("NewAdam failed: %v", err)
	}

	if adam.GetLR() != 1e-4 {
		t.Errorf("expected default lr 1e-4, got %v", adam.GetLR())
	}

	adam.SetLR(0.001)
	if adam.GetLR() != 0.001 {
		t.Errorf("expected lr 0.001 after SetLR, got %v", adam.GetLR())
	}
}

func TestZeroGrad(t *testing.T) {
	param := newParam(t, []int{2}, []float64{1, 2})
	adam, err := NewAdam(DefaultAdamConfig(), []*tensor.Tensor{param})
	if err != nil {
		t.Fatalf("NewAdam failed: %v", err)
	}

	setGrad(t, param, []float64{1, 1})
	adam.ZeroGrad()

	if param.Grad() != nil {
		t.Error("expected gradient to be cleared")
	}
}

func TestFloat32Parameters(t *testing.T) {
	param, err := tensor.NewTensor([]int{2}, tensor.Float32, tensor.CPU, []float32{1, 2})
	if err != nil {
		t.Fatalf("failed to create parameter: %v", err)
	}
	param.SetRequiresGrad(true)

	grad, err := tensor.NewTensor([]int{2}, tensor.Float32, tensor.CPU, []float32{1, -1})
	if err != nil {
		t.Fatalf("failed to create gradient: %v", err)
	}
	if err := param.SetGrad(grad); err != nil {
		t.Fatalf("SetGrad failed: %v", err)
	}

	sgd, err := NewSGD(SGDConfig{LearningRate: 0.5}, []*tensor.Tensor{param})
	if err != nil {
		t.Fatalf("NewSGD failed: %v", err)
	}
	if err := sgd.Step(); err != nil {
		t.Fatalf("Step failed: %v", err)
	}

	data, _ := param.GetFloat32Data()
	if math.Abs(float64(data[0])-0.5) > 1e-6 || math.Abs(float64(data[1])-2.5) > 1e-6 {
		t.Errorf("expected [0.5, 2.5], got %v", data)
	}
}
