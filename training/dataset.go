// Package training implements the supervised and self-supervised training
// loop: data cycling, per-step optimization, validation-driven checkpoint
// selection, progress display, and reporting.
package training

import (
	"fmt"
	"math/rand"

	"github.com/proteindesign/protrain/tensor"
)

// Dataset interface defines methods that all datasets must implement.
// Get may return a nil label, in which case the sample is treated as
// self-supervised and the input doubles as the target.
type Dataset interface {
	Len() int                                                           // Total number of samples
	Get(idx int) (data *tensor.Tensor, label *tensor.Tensor, err error) // Returns a single sample
}

// SimpleDataset provides a basic implementation of Dataset backed by
// in-memory tensors. Labels may be nil for self-supervised training.
type SimpleDataset struct {
	data   []*tensor.Tensor
	labels []*tensor.Tensor
}

// NewSimpleDataset creates a new SimpleDataset. Pass nil labels for a
// self-supervised dataset.
func NewSimpleDataset(data, labels []*tensor.Tensor) (*SimpleDataset, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("dataset must contain at least one sample")
	}
	if labels != nil && len(data) != len(labels) {
		return nil, fmt.Errorf("data and labels must have the same length: got %d and %d", len(data), len(labels))
	}

	return &SimpleDataset{
		data:   data,
		labels: labels,
	}, nil
}

// Len returns the number of samples in the dataset
func (ds *SimpleDataset) Len() int {
	return len(ds.data)
}

// Get returns a sample at the given index
func (ds *SimpleDataset) Get(idx int) (data *tensor.Tensor, label *tensor.Tensor, err error) {
	if idx < 0 || idx >= len(ds.data) {
		return nil, nil, fmt.Errorf("index %d out of range [0, %d)", idx, len(ds.data))
	}

	if ds.labels == nil {
		return ds.data[idx], nil, nil
	}
	return ds.data[idx], ds.labels[idx], nil
}

// SequenceDataset holds fixed-length residue sequences encoded one-hot
// over an alphabet, with an optional scalar property per sequence.
type SequenceDataset struct {
	sequences    [][]int // residue indices per sequence
	properties   []float64
	alphabetSize int
	dtype        tensor.DType
}

// NewSequenceDataset creates a dataset of one-hot encoded sequences.
// Pass nil properties for self-supervised training.
func NewSequenceDataset(sequences [][]int, properties []float64, alphabetSize int, dtype tensor.DType) (*SequenceDataset, error) {
	if len(sequences) == 0 {
		return nil, fmt.Errorf("dataset must contain at least one sequence")
	}
	if alphabetSize <= 0 {
		return nil, fmt.Errorf("alphabet size must be positive, got %d", alphabetSize)
	}
	if properties != nil && len(properties) != len(sequences) {
		return nil, fmt.Errorf("sequences and properties must have the same length: got %d and %d",
			len(sequences), len(properties))
	}

	seqLen := len(sequences[0])
	for i, seq := range sequences {
		if len(seq) != seqLen {
			return nil, fmt.Errorf("sequence %d has length %d, expected %d", i, len(seq), seqLen)
		}
		for j, r := range seq {
			if r < 0 || r >= alphabetSize {
				return nil, fmt.Errorf("sequence %d residue %d index %d out of alphabet range [0, %d)",
					i, j, r, alphabetSize)
			}
		}
	}

	return &SequenceDataset{
		sequences:    sequences,
		properties:   properties,
		alphabetSize: alphabetSize,
		dtype:        dtype,
	}, nil
}

// Len returns the number of sequences
func (sd *SequenceDataset) Len() int {
	return len(sd.sequences)
}

// Get returns the one-hot encoding of a sequence, flattened to a single
// vector of length seqLen*alphabetSize, plus its property label if any.
func (sd *SequenceDataset) Get(idx int) (*tensor.Tensor, *tensor.Tensor, error) {
	if idx < 0 || idx >= len(sd.sequences) {
		return nil, nil, fmt.Errorf("index %d out of range [0, %d)", idx, len(sd.sequences))
	}

	seq := sd.sequences[idx]
	width := len(seq) * sd.alphabetSize

	var data *tensor.Tensor
	var err error

	switch sd.dtype {
	case tensor.Float32:
		encoded := make([]float32, width)
		for pos, r := range seq {
			encoded[pos*sd.alphabetSize+r] = 1
		}
		data, err = tensor.NewTensor([]int{width}, sd.dtype, tensor.CPU, encoded)
	case tensor.Float64:
		encoded := make([]float64, width)
		for pos, r := range seq {
			encoded[pos*sd.alphabetSize+r] = 1
		}
		data, err = tensor.NewTensor([]int{width}, sd.dtype, tensor.CPU, encoded)
	default:
		return nil, nil, fmt.Errorf("unsupported dtype for sequence encoding: %s", sd.dtype)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode sequence %d: %v", idx, err)
	}

	if sd.properties == nil {
		return data, nil, nil
	}

	var label *tensor.Tensor
	switch sd.dtype {
	case tensor.Float32:
		label, err = tensor.NewTensor([]int{1}, sd.dtype, tensor.CPU, []float32{float32(sd.properties[idx])})
	case tensor.Float64:
		label, err = tensor.NewTensor([]int{1}, sd.dtype, tensor.CPU, []float64{sd.properties[idx]})
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create label for sequence %d: %v", idx, err)
	}

	return data, label, nil
}

// RandomSequences generates random residue index sequences for testing
// and demos.
func RandomSequences(rng *rand.Rand, count, seqLen, alphabetSize int) [][]int {
	sequences := make([][]int, count)
	for i := range sequences {
		seq := make([]int, seqLen)
		for j := range seq {
			seq[j] = rng.Intn(alphabetSize)
		}
		sequences[i] = seq
	}
	return sequences
}
