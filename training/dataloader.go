package training

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/proteindesign/protrain/tensor"
)

// DataLoader provides batching and shuffling over a Dataset
type DataLoader struct {
	dataset   Dataset
	batchSize int
	shuffle   bool
	rng       *rand.Rand
	indices   []int
	position  int
	mutex     sync.Mutex
}

// NewDataLoader creates a new DataLoader
func NewDataLoader(dataset Dataset, batchSize int, shuffle bool, seed int64) (*DataLoader, error) {
	if dataset == nil || dataset.Len() == 0 {
		return nil, fmt.Errorf("dataset must contain at least one sample")
	}
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", batchSize)
	}

	indices := make([]int, dataset.Len())
	for i := range indices {
		indices[i] = i
	}

	return &DataLoader{
		dataset:   dataset,
		batchSize: batchSize,
		shuffle:   shuffle,
		rng:       rand.New(rand.NewSource(seed)),
		indices:   indices,
		position:  0,
	}, nil
}

// Batch represents a batch of data and labels. Labels is nil when the
// underlying dataset is self-supervised.
type Batch struct {
	Data   *tensor.Tensor
	Labels *tensor.Tensor
}

// Len returns the number of batches in an epoch
func (dl *DataLoader) Len() int {
	return (dl.dataset.Len() + dl.batchSize - 1) / dl.batchSize
}

// Reset resets the data loader for a new epoch
func (dl *DataLoader) Reset() {
	dl.mutex.Lock()
	defer dl.mutex.Unlock()

	dl.reset()
}

func (dl *DataLoader) reset() {
	dl.position = 0

	if dl.shuffle {
		// Fisher-Yates shuffle for the new epoch
		for i := len(dl.indices) - 1; i > 0; i-- {
			j := dl.rng.Intn(i + 1)
			dl.indices[i], dl.indices[j] = dl.indices[j], dl.indices[i]
		}
	}
}

// Next returns the next batch or nil if the epoch is complete
func (dl *DataLoader) Next() (*Batch, error) {
	dl.mutex.Lock()
	defer dl.mutex.Unlock()

	return dl.next()
}

func (dl *DataLoader) next() (*Batch, error) {
	if dl.position >= len(dl.indices) {
		return nil, nil // End of epoch
	}

	batchEnd := dl.position + dl.batchSize
	if batchEnd > len(dl.indices) {
		batchEnd = len(dl.indices)
	}

	batchIndices := dl.indices[dl.position:batchEnd]
	dl.position = batchEnd

	batch, err := dl.loadBatch(batchIndices)
	if err != nil {
		return nil, fmt.Errorf("failed to load batch: %v", err)
	}

	return batch, nil
}

// HasNext returns true if there are more batches in the current epoch
func (dl *DataLoader) HasNext() bool {
	dl.mutex.Lock()
	defer dl.mutex.Unlock()
	return dl.position < len(dl.indices)
}

// loadBatch loads a batch of samples and combines them into batched tensors
func (dl *DataLoader) loadBatch(indices []int) (*Batch, error) {
	if len(indices) == 0 {
		return nil, fmt.Errorf("empty batch indices")
	}
	batchSize := len(indices)

	// Load first sample to determine shapes and types
	firstData, firstLabel, err := dl.dataset.Get(indices[0])
	if err != nil {
		return nil, fmt.Errorf("failed to load sample %d: %v", indices[0], err)
	}

	dataShape := append([]int{batchSize}, firstData.Shape...)
	batchData, err := tensor.Zeros(dataShape, firstData.DType, tensor.CPU)
	if err != nil {
		return nil, fmt.Errorf("failed to create batch data tensor: %v", err)
	}

	var batchLabels *tensor.Tensor
	if firstLabel != nil {
		labelShape := append([]int{batchSize}, firstLabel.Shape...)
		batchLabels, err = tensor.Zeros(labelShape, firstLabel.DType, tensor.CPU)
		if err != nil {
			return nil, fmt.Errorf("failed to create batch labels tensor: %v", err)
		}
	}

	for i, idx := range indices {
		data, label, err := dl.dataset.Get(idx)
		if err != nil {
			return nil, fmt.Errorf("failed to load sample %d: %v", idx, err)
		}

		if err := copyInto(batchData, data, i); err != nil {
			return nil, fmt.Errorf("failed to copy data for sample %d: %v", i, err)
		}

		if batchLabels != nil {
			if label == nil {
				return nil, fmt.Errorf("sample %d has no label but dataset is labeled", idx)
			}
			if err := copyInto(batchLabels, label, i); err != nil {
				return nil, fmt.Errorf("failed to copy label for sample %d: %v", i, err)
			}
		}
	}

	return &Batch{
		Data:   batchData,
		Labels: batchLabels,
	}, nil
}

// copyInto copies a sample tensor into a specific position in the batch tensor
func copyInto(batchTensor, sampleTensor *tensor.Tensor, batchIndex int) error {
	if batchTensor.DType != sampleTensor.DType {
		return fmt.Errorf("dtype mismatch: batch %s, sample %s", batchTensor.DType, sampleTensor.DType)
	}

	sampleSize := sampleTensor.NumElems
	offset := batchIndex * sampleSize

	switch batchTensor.DType {
	case tensor.Float32:
		batchData := batchTensor.Data.([]float32)
		sampleData := sampleTensor.Data.([]float32)

		if len(sampleData) != sampleSize {
			return fmt.Errorf("sample data size mismatch: expected %d, got %d", sampleSize, len(sampleData))
		}

		copy(batchData[offset:offset+sampleSize], sampleData)

	case tensor.Float64:
		batchData := batchTensor.Data.([]float64)
		sampleData := sampleTensor.Data.([]float64)

		if len(sampleData) != sampleSize {
			return fmt.Errorf("sample data size mismatch: expected %d, got %d", sampleSize, len(sampleData))
		}

		copy(batchData[offset:offset+sampleSize], sampleData)

	default:
		return fmt.Errorf("unsupported dtype for batch copying: %s", batchTensor.DType)
	}

	return nil
}
