package training

import (
	"fmt"
)

// DataCycler turns a DataLoader into an endless batch stream. When an
// epoch is exhausted the loader is reset, reshuffling the sample order,
// and iteration continues seamlessly. Step-budgeted training loops draw
// from a cycler without ever observing epoch boundaries.
type DataCycler struct {
	loader *DataLoader
	epochs int
}

// NewDataCycler creates a cycler over the given loader.
func NewDataCycler(loader *DataLoader) (*DataCycler, error) {
	if loader == nil {
		return nil, fmt.Errorf("data loader cannot be nil")
	}
	loader.Reset()
	return &DataCycler{loader: loader}, nil
}

// Next returns the next batch, starting a fresh reshuffled epoch whenever
// the current one runs out. It never returns a nil batch on success.
func (dc *DataCycler) Next() (*Batch, error) {
	batch, err := dc.loader.Next()
	if err != nil {
		return nil, err
	}
	if batch != nil {
		return batch, nil
	}

	// Epoch exhausted: reshuffle and continue
	dc.loader.Reset()
	dc.epochs++

	batch, err = dc.loader.Next()
	if err != nil {
		return nil, err
	}
	if batch == nil {
		return nil, fmt.Errorf("data loader produced no batches after reset")
	}
	return batch, nil
}

// Epochs returns the number of times the underlying loader has been
// exhausted and restarted.
func (dc *DataCycler) Epochs() int {
	return dc.epochs
}

// BatchesPerEpoch returns the number of batches in one pass over the data.
func (dc *DataCycler) BatchesPerEpoch() int {
	return dc.loader.Len()
}
