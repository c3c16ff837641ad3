package tensor

import (
	"fmt"
)

// BroadcastShapes computes the result shape of broadcasting shape1 against
// shape2 under the usual numpy rules.
func BroadcastShapes(shape1, shape2 []int) ([]int, error) {
	maxLen := len(shape1)
	if len(shape2) > maxLen {
		maxLen = len(shape2)
	}

	result := make([]int, maxLen)
	for i := 0; i < maxLen; i++ {
		d1, d2 := 1, 1
		if i < len(shape1) {
			d1 = shape1[len(shape1)-1-i]
		}
		if i < len(shape2) {
			d2 = shape2[len(shape2)-1-i]
		}

		switch {
		case d1 == d2:
			result[maxLen-1-i] = d1
		case d1 == 1:
			result[maxLen-1-i] = d2
		case d2 == 1:
			result[maxLen-1-i] = d1
		default:
			return nil, fmt.Errorf("shapes %v and %v are not broadcastable", shape1, shape2)
		}
	}

	return result, nil
}

// AreBroadcastable reports whether two shapes can be broadcast together.
func AreBroadcastable(shape1, shape2 []int) bool {
	_, err := BroadcastShapes(shape1, shape2)
	return err == nil
}

// BroadcastTensor expands t to targetShape by repeating broadcast dimensions.
func BroadcastTensor(t *Tensor, targetShape []int) (*Tensor, error) {
	if shapesEqual(t.Shape, targetShape) {
		return t.Clone()
	}

	if !AreBroadcastable(t.Shape, targetShape) {
		return nil, fmt.Errorf("cannot broadcast shape %v to %v", t.Shape, targetShape)
	}

	result, err := Zeros(targetShape, t.DType, t.Device)
	if err != nil {
		return nil, err
	}

	// Align source shape to the target rank with leading 1s.
	srcShape := make([]int, len(targetShape))
	for i := range srcShape {
		srcShape[i] = 1
	}
	copy(srcShape[len(targetShape)-len(t.Shape):], t.Shape)
	srcStrides := calculateStrides(srcShape)

	for outIdx := 0; outIdx < result.NumElems; outIdx++ {
		coords := indexToCoords(outIdx, targetShape)

		srcIdx := 0
		for d, c := range coords {
			if srcShape[d] != 1 {
				srcIdx += c * srcStrides[d]
			}
		}

		switch t.DType {
		case Float32:
			result.Data.([]float32)[outIdx] = t.Data.([]float32)[srcIdx]
		case Float64:
			result.Data.([]float64)[outIdx] = t.Data.([]float64)[srcIdx]
		default:
			return nil, fmt.Errorf("unsupported dtype for broadcast: %s", t.DType)
		}
	}

	return result, nil
}

func shapesEqual(shape1, shape2 []int) bool {
	if len(shape1) != len(shape2) {
		return false
	}
	for i := range shape1 {
		if shape1[i] != shape2[i] {
			return false
		}
	}
	return true
}
