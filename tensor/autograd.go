package tensor

import (
	"fmt"
)

// gradMode controls whether autograd operations record the creator graph.
// The training loop is single-threaded, so a plain bool suffices.
var gradMode = true

// GradEnabled reports whether gradient tracking is active.
func GradEnabled() bool {
	return gradMode
}

// SetGradEnabled toggles gradient tracking and returns the previous setting.
func SetGradEnabled(enabled bool) bool {
	prev := gradMode
	gradMode = enabled
	return prev
}

// NoGrad runs fn with gradient tracking disabled.
func NoGrad(fn func() error) error {
	prev := SetGradEnabled(false)
	defer SetGradEnabled(prev)
	return fn()
}

// reduceGradientToShape sums a gradient over broadcast dimensions so it
// matches the shape of the tensor it flows into.
func reduceGradientToShape(grad *Tensor, targetShape []int) (*Tensor, error) {
	if shapesEqual(grad.Shape, targetShape) {
		return grad.Clone()
	}

	if len(targetShape) == 1 && targetShape[0] == 1 {
		return sumAllElements(grad)
	}

	result := grad
	var err error

	// Sum over leading dimensions the target does not have.
	dimsToSum := len(grad.Shape) - len(targetShape)
	for i := 0; i < dimsToSum; i++ {
		result, err = sumOverDimension(result, 0)
		if err != nil {
			return nil, fmt.Errorf("failed to sum over dimension: %v", err)
		}
	}

	// Sum dimensions that were broadcast from size 1.
	for i := 0; i < len(targetShape); i++ {
		if i < len(result.Shape) && result.Shape[i] != targetShape[i] && targetShape[i] == 1 {
			summed, err := sumOverDimension(result, i)
			if err != nil {
				return nil, fmt.Errorf("failed to sum over broadcast dimension: %v", err)
			}
			result, err = Reshape(summed, insertDim(summed.Shape, i))
			if err != nil {
				return nil, err
			}
		}
	}

	if !shapesEqual(result.Shape, targetShape) {
		result, err = Reshape(result, targetShape)
		if err != nil {
			return nil, fmt.Errorf("failed to reshape gradient: %v", err)
		}
	}

	return result, nil
}

func insertDim(shape []int, at int) []int {
	out := make([]int, 0, len(shape)+1)
	out = append(out, shape[:at]...)
	out = append(out, 1)
	out = append(out, shape[at:]...)
	return out
}

func sumAllElements(t *Tensor) (*Tensor, error) {
	switch t.DType {
	case Float32:
		data := t.Data.([]float32)
		sum := float32(0)
		for _, val := range data {
			sum += val
		}
		return NewTensor([]int{1}, t.DType, t.Device, []float32{sum})
	case Float64:
		data := t.Data.([]float64)
		sum := float64(0)
		for _, val := range data {
			sum += val
		}
		return NewTensor([]int{1}, t.DType, t.Device, []float64{sum})
	default:
		return nil, fmt.Errorf("unsupported data type for sum: %v", t.DType)
	}
}

func sumOverDimension(t *Tensor, dim int) (*Tensor, error) {
	if dim < 0 || dim >= len(t.Shape) {
		return nil, fmt.Errorf("dimension %d out of bounds for tensor with %d dimensions", dim, len(t.Shape))
	}

	outputShape := make([]int, 0, len(t.Shape)-1)
	for i, size := range t.Shape {
		if i != dim {
			outputShape = append(outputShape, size)
		}
	}

	if len(outputShape) == 0 {
		return sumAllElements(t)
	}

	result, err := Zeros(outputShape, t.DType, t.Device)
	if err != nil {
		return nil, err
	}

	inputStrides := calculateStrides(t.Shape)

	for outputIdx := 0; outputIdx < result.NumElems; outputIdx++ {
		outputCoords := indexToCoords(outputIdx, outputShape)

		inputCoords := make([]int, len(t.Shape))
		outputDim := 0
		for inputDim := 0; inputDim < len(t.Shape); inputDim++ {
			if inputDim == dim {
				inputCoords[inputDim] = 0
			} else {
				inputCoords[inputDim] = outputCoords[outputDim]
				outputDim++
			}
		}

		switch t.DType {
		case Float32:
			inputData := t.Data.([]float32)
			sum := float32(0)
			for k := 0; k < t.Shape[dim]; k++ {
				inputCoords[dim] = k
				sum += inputData[coordsToIndex(inputCoords, inputStrides)]
			}
			result.Data.([]float32)[outputIdx] = sum
		case Float64:
			inputData := t.Data.([]float64)
			sum := float64(0)
			for k := 0; k < t.Shape[dim]; k++ {
				inputCoords[dim] = k
				sum += inputData[coordsToIndex(inputCoords, inputStrides)]
			}
			result.Data.([]float64)[outputIdx] = sum
		default:
			return nil, fmt.Errorf("unsupported data type for sum: %v", t.DType)
		}
	}

	return result, nil
}

func indexToCoords(index int, shape []int) []int {
	coords := make([]int, len(shape))
	remaining := index
	for i := len(shape) - 1; i >= 0; i-- {
		coords[i] = remaining % shape[i]
		remaining /= shape[i]
	}
	return coords
}

func coordsToIndex(coords []int, strides []int) int {
	index := 0
	for i, coord := range coords {
		index += coord * strides[i]
	}
	return index
}

// AddOp implements broadcast-aware addition.
type AddOp struct {
	inputs []*Tensor
}

func (op *AddOp) Inputs() []*Tensor { return op.inputs }

func (op *AddOp) Forward(inputs ...*Tensor) *Tensor {
	if len(inputs) != 2 {
		panic("AddOp requires exactly 2 inputs")
	}

	a, b := inputs[0], inputs[1]
	op.inputs = inputs

	outShape, err := BroadcastShapes(a.Shape, b.Shape)
	if err != nil {
		panic(fmt.Sprintf("Forward pass failed: %v", err))
	}

	aB, err := BroadcastTensor(a, outShape)
	if err != nil {
		panic(fmt.Sprintf("Forward pass failed: %v", err))
	}
	bB, err := BroadcastTensor(b, outShape)
	if err != nil {
		panic(fmt.Sprintf("Forward pass failed: %v", err))
	}

	result, err := Add(aB, bB)
	if err != nil {
		panic(fmt.Sprintf("Forward pass failed: %v", err))
	}

	attachCreator(result, op, a.requiresGrad || b.requiresGrad)
	return result
}

func (op *AddOp) Backward(gradOut *Tensor) []*Tensor {
	gradA, err := reduceGradientToShape(gradOut, op.inputs[0].Shape)
	if err != nil {
		panic(fmt.Sprintf("Failed to reduce gradient for input A: %v", err))
	}

	gradB, err := reduceGradientToShape(gradOut, op.inputs[1].Shape)
	if err != nil {
		panic(fmt.Sprintf("Failed to reduce gradient for input B: %v", err))
	}

	return []*Tensor{gradA, gradB}
}

// SubOp implements elementwise subtraction.
type SubOp struct {
	inputs []*Tensor
}

func (op *SubOp) Inputs() []*Tensor { return op.inputs }

func (op *SubOp) Forward(inputs ...*Tensor) *Tensor {
	if len(inputs) != 2 {
		panic("SubOp requires exactly 2 inputs")
	}

	a, b := inputs[0], inputs[1]
	op.inputs = inputs

	result, err := Sub(a, b)
	if err != nil {
		panic(fmt.Sprintf("Forward pass failed: %v", err))
	}

	attachCreator(result, op, a.requiresGrad || b.requiresGrad)
	return result
}

func (op *SubOp) Backward(gradOut *Tensor) []*Tensor {
	gradA, err := reduceGradientToShape(gradOut, op.inputs[0].Shape)
	if err != nil {
		panic(fmt.Sprintf("Failed to reduce gradient for input A: %v", err))
	}

	negGrad, err := Scale(gradOut, -1.0)
	if err != nil {
		panic(fmt.Sprintf("Failed to negate gradient: %v", err))
	}

	gradB, err := reduceGradientToShape(negGrad, op.inputs[1].Shape)
	if err != nil {
		panic(fmt.Sprintf("Failed to reduce gradient for input B: %v", err))
	}

	return []*Tensor{gradA, gradB}
}

// MulOp implements elementwise multiplication.
type MulOp struct {
	inputs []*Tensor
}

func (op *MulOp) Inputs() []*Tensor { return op.inputs }

func (op *MulOp) Forward(inputs ...*Tensor) *Tensor {
	if len(inputs) != 2 {
		panic("MulOp requires exactly 2 inputs")
	}

	a, b := inputs[0], inputs[1]
	op.inputs = inputs

	result, err := Mul(a, b)
	if err != nil {
		panic(fmt.Sprintf("Forward pass failed: %v", err))
	}

	attachCreator(result, op, a.requiresGrad || b.requiresGrad)
	return result
}

func (op *MulOp) Backward(gradOut *Tensor) []*Tensor {
	a, b := op.inputs[0], op.inputs[1]

	gradA, err := Mul(gradOut, b)
	if err != nil {
		panic(fmt.Sprintf("Backward pass failed for gradA: %v", err))
	}

	gradB, err := Mul(gradOut, a)
	if err != nil {
		panic(fmt.Sprintf("Backward pass failed for gradB: %v", err))
	}

	return []*Tensor{gradA, gradB}
}

// MatMulOp implements 2D matrix multiplication.
type MatMulOp struct {
	inputs []*Tensor
}

func (op *MatMulOp) Inputs() []*Tensor { return op.inputs }

func (op *MatMulOp) Forward(inputs ...*Tensor) *Tensor {
	if len(inputs) != 2 {
		panic("MatMulOp requires exactly 2 inputs")
	}

	a, b := inputs[0], inputs[1]
	op.inputs = inputs

	result, err := MatMul(a, b)
	if err != nil {
		panic(fmt.Sprintf("Forward pass failed: %v", err))
	}

	attachCreator(result, op, a.requiresGrad || b.requiresGrad)
	return result
}

func (op *MatMulOp) Backward(gradOut *Tensor) []*Tensor {
	a, b := op.inputs[0], op.inputs[1]

	// d(A @ B)/dA = gradOut @ B^T, d(A @ B)/dB = A^T @ gradOut
	bT, err := Transpose(b, 0, 1)
	if err != nil {
		panic(fmt.Sprintf("Failed to transpose B: %v", err))
	}

	gradA, err := MatMul(gradOut, bT)
	if err != nil {
		panic(fmt.Sprintf("Backward pass failed for gradA: %v", err))
	}

	aT, err := Transpose(a, 0, 1)
	if err != nil {
		panic(fmt.Sprintf("Failed to transpose A: %v", err))
	}

	gradB, err := MatMul(aT, gradOut)
	if err != nil {
		panic(fmt.Sprintf("Backward pass failed for gradB: %v", err))
	}

	return []*Tensor{gradA, gradB}
}

// ReLUOp implements the ReLU activation.
type ReLUOp struct {
	inputs []*Tensor
}

func (op *ReLUOp) Inputs() []*Tensor { return op.inputs }

func (op *ReLUOp) Forward(inputs ...*Tensor) *Tensor {
	if len(inputs) != 1 {
		panic("ReLUOp requires exactly 1 input")
	}

	a := inputs[0]
	op.inputs = inputs

	result, err := ReLU(a)
	if err != nil {
		panic(fmt.Sprintf("Forward pass failed: %v", err))
	}

	attachCreator(result, op, a.requiresGrad)
	return result
}

func (op *ReLUOp) Backward(gradOut *Tensor) []*Tensor {
	a := op.inputs[0]

	grad, err := gradOut.Clone()
	if err != nil {
		panic(fmt.Sprintf("Failed to clone gradient: %v", err))
	}

	switch a.DType {
	case Float32:
		inputData := a.Data.([]float32)
		gradData := grad.Data.([]float32)
		for i := range gradData {
			if inputData[i] <= 0 {
				gradData[i] = 0
			}
		}
	case Float64:
		inputData := a.Data.([]float64)
		gradData := grad.Data.([]float64)
		for i := range gradData {
			if inputData[i] <= 0 {
				gradData[i] = 0
			}
		}
	}

	return []*Tensor{grad}
}

// SigmoidOp implements the Sigmoid activation.
type SigmoidOp struct {
	inputs []*Tensor
	output *Tensor
}

func (op *SigmoidOp) Inputs() []*Tensor { return op.inputs }

func (op *SigmoidOp) Forward(inputs ...*Tensor) *Tensor {
	if len(inputs) != 1 {
		panic("SigmoidOp requires exactly 1 input")
	}

	a := inputs[0]
	op.inputs = inputs

	result, err := Sigmoid(a)
	if err != nil {
		panic(fmt.Sprintf("Forward pass failed: %v", err))
	}

	op.output = result
	attachCreator(result, op, a.requiresGrad)
	return result
}

func (op *SigmoidOp) Backward(gradOut *Tensor) []*Tensor {
	if op.output == nil {
		panic("SigmoidOp: output not stored for backward pass")
	}

	// dSigmoid(x)/dx = s * (1 - s)
	ones, err := Ones(op.output.Shape, op.output.DType, op.output.Device)
	if err != nil {
		panic(fmt.Sprintf("Failed to create ones tensor: %v", err))
	}

	oneMinus, err := Sub(ones, op.output)
	if err != nil {
		panic(fmt.Sprintf("Failed to compute (1 - output): %v", err))
	}

	local, err := Mul(op.output, oneMinus)
	if err != nil {
		panic(fmt.Sprintf("Failed to compute sigmoid gradient: %v", err))
	}

	grad, err := Mul(gradOut, local)
	if err != nil {
		panic(fmt.Sprintf("Failed to apply chain rule: %v", err))
	}

	return []*Tensor{grad}
}

// TanhOp implements the Tanh activation.
type TanhOp struct {
	inputs []*Tensor
	output *Tensor
}

func (op *TanhOp) Inputs() []*Tensor { return op.inputs }

func (op *TanhOp) Forward(inputs ...*Tensor) *Tensor {
	if len(inputs) != 1 {
		panic("TanhOp requires exactly 1 input")
	}

	a := inputs[0]
	op.inputs = inputs

	result, err := Tanh(a)
	if err != nil {
		panic(fmt.Sprintf("Forward pass failed: %v", err))
	}

	op.output = result
	attachCreator(result, op, a.requiresGrad)
	return result
}

func (op *TanhOp) Backward(gradOut *Tensor) []*Tensor {
	// dTanh(x)/dx = 1 - tanh(x)^2
	sq, err := Mul(op.output, op.output)
	if err != nil {
		panic(fmt.Sprintf("Failed to square output: %v", err))
	}

	ones, err := Ones(sq.Shape, sq.DType, sq.Device)
	if err != nil {
		panic(fmt.Sprintf("Failed to create ones tensor: %v", err))
	}

	local, err := Sub(ones, sq)
	if err != nil {
		panic(fmt.Sprintf("Failed to compute (1 - tanh^2): %v", err))
	}

	grad, err := Mul(gradOut, local)
	if err != nil {
		panic(fmt.Sprintf("Failed to apply chain rule: %v", err))
	}

	return []*Tensor{grad}
}

// MeanOp reduces a tensor to the scalar mean of its elements.
type MeanOp struct {
	inputs []*Tensor
}

func (op *MeanOp) Inputs() []*Tensor { return op.inputs }

func (op *MeanOp) Forward(inputs ...*Tensor) *Tensor {
	if len(inputs) != 1 {
		panic("MeanOp requires exactly 1 input")
	}

	a := inputs[0]
	op.inputs = inputs

	sum, err := sumAllElements(a)
	if err != nil {
		panic(fmt.Sprintf("Forward pass failed: %v", err))
	}

	result, err := Scale(sum, 1.0/float64(a.NumElems))
	if err != nil {
		panic(fmt.Sprintf("Forward pass failed: %v", err))
	}

	attachCreator(result, op, a.requiresGrad)
	return result
}

func (op *MeanOp) Backward(gradOut *Tensor) []*Tensor {
	a := op.inputs[0]

	g, err := gradOut.Item()
	if err != nil {
		panic(fmt.Sprintf("MeanOp backward requires a scalar gradient: %v", err))
	}

	var gv float64
	switch v := g.(type) {
	case float32:
		gv = float64(v)
	case float64:
		gv = v
	}

	scale := gv / float64(a.NumElems)

	var grad *Tensor
	switch a.DType {
	case Float32:
		grad, err = Full(a.Shape, float32(scale), Float32, a.Device)
	case Float64:
		grad, err = Full(a.Shape, scale, Float64, a.Device)
	}
	if err != nil {
		panic(fmt.Sprintf("Failed to build mean gradient: %v", err))
	}

	return []*Tensor{grad}
}

func attachCreator(result *Tensor, op Operation, requiresGrad bool) {
	if !gradMode {
		return
	}
	result.creator = op
	result.requiresGrad = requiresGrad
}

// Backward propagates gradients from a scalar tensor through the creator
// graph, accumulating into every reachable tensor with requiresGrad set.
func (t *Tensor) Backward() error {
	if t.NumElems != 1 {
		return fmt.Errorf("Backward requires a scalar tensor, got shape %v", t.Shape)
	}

	seed, err := Ones(t.Shape, t.DType, t.Device)
	if err != nil {
		return fmt.Errorf("failed to create seed gradient: %v", err)
	}

	// Topological order over the creator graph.
	visited := make(map[*Tensor]bool)
	var order []*Tensor

	var visit func(n *Tensor)
	visit = func(n *Tensor) {
		if visited[n] {
			return
		}
		visited[n] = true
		if n.creator == nil {
			return
		}
		for _, in := range n.creator.Inputs() {
			visit(in)
		}
		order = append(order, n)
	}
	visit(t)

	grads := map[*Tensor]*Tensor{t: seed}

	for i := len(order) - 1; i >= 0; i-- {
		n := order[i]
		g := grads[n]
		if g == nil {
			continue
		}

		inputGrads := n.creator.Backward(g)
		inputs := n.creator.Inputs()
		for j, in := range inputs {
			ig := inputGrads[j]
			if ig == nil {
				continue
			}
			if existing := grads[in]; existing != nil {
				summed, err := Add(existing, ig)
				if err != nil {
					return fmt.Errorf("failed to accumulate gradient: %v", err)
				}
				grads[in] = summed
			} else {
				grads[in] = ig
			}
		}
	}

	for node, g := range grads {
		if !node.requiresGrad {
			continue
		}
		if node.grad != nil {
			summed, err := Add(node.grad, g)
			if err != nil {
				return fmt.Errorf("failed to accumulate into stored gradient: %v", err)
			}
			node.grad = summed
		} else {
			node.grad = g
		}
	}

	return nil
}

// High-level autograd entry points. When gradient tracking is disabled
// these still compute results but record no graph.

func AddAutograd(a, b *Tensor) *Tensor {
	op := &AddOp{}
	return op.Forward(a, b)
}

func SubAutograd(a, b *Tensor) *Tensor {
	op := &SubOp{}
	return op.Forward(a, b)
}

func MulAutograd(a, b *Tensor) *Tensor {
	op := &MulOp{}
	return op.Forward(a, b)
}

func MatMulAutograd(a, b *Tensor) *Tensor {
	op := &MatMulOp{}
	return op.Forward(a, b)
}

func ReLUAutograd(a *Tensor) *Tensor {
	op := &ReLUOp{}
	return op.Forward(a)
}

func SigmoidAutograd(a *Tensor) *Tensor {
	op := &SigmoidOp{}
	return op.Forward(a)
}

func TanhAutograd(a *Tensor) *Tensor {
	op := &TanhOp{}
	return op.Forward(a)
}

func MeanAutograd(a *Tensor) *Tensor {
	op := &MeanOp{}
	return op.Forward(a)
}
