package training

import (
	"testing"

	"github.com/proteindesign/protrain/tensor"
)

func makeSamples(t *testing.T, count int) []*tensor.Tensor {
	t.Helper()
	samples := make([]*tensor.Tensor, count)
	for i := range samples {
		sample, err := tensor.NewTensor([]int{2}, tensor.Float64, tensor.CPU,
			[]float64{float64(i), float64(i) * 2})
		if err != nil {
			t.Fatalf("failed to create sample %d: %v", i, err)
		}
		samples[i] = sample
	}
	return samples
}

func TestDataLoaderBatching(t *testing.T) {
	data := makeSamples(t, 10)
	dataset, err := NewSimpleDataset(data, data)
	if err != nil {
		t.Fatalf("NewSimpleDataset failed: %v", err)
	}

	loader, err := NewDataLoader(dataset, 4, false, 0)
	if err != nil {
		t.Fatalf("NewDataLoader failed: %v", err)
	}

	if loader.Len() != 3 {
		t.Errorf("expected 3 batches for 10 samples at batch size 4, got %d", loader.Len())
	}

	sizes := []int{}
	for loader.HasNext() {
		batch, err := loader.Next()
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		if batch == nil {
			break
		}
		sizes = append(sizes, batch.Data.Shape[0])
	}

	expected := []int{4, 4, 2}
	if len(sizes) != len(expected) {
		t.Fatalf("expected %d batches, got %d", len(expected), len(sizes))
	}
	for i, want := range expected {
		if sizes[i] != want {
			t.Errorf("batch %d size: got %d, want %d", i, sizes[i], want)
		}
	}

	// Exhausted epoch returns nil without error
	batch, err := loader.Next()
	if err != nil {
		t.Fatalf("Next after exhaustion failed: %v", err)
	}
	if batch != nil {
		t.Error("expected nil batch after epoch exhaustion")
	}
}

func TestDataLoaderBatchContents(t *testing.T) {
	data := makeSamples(t, 3)
	dataset, err := NewSimpleDataset(data, nil)
	if err != nil {
		t.Fatalf("NewSimpleDataset failed: %v", err)
	}

	loader, err := NewDataLoader(dataset, 3, false, 0)
	if err != nil {
		t.Fatalf("NewDataLoader failed: %v", err)
	}

	batch, err := loader.Next()
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}

	if batch.Labels != nil {
		t.Error("expected nil labels for unlabeled dataset")
	}

	vals, err := batch.Data.GetFloat64Data()
	if err != nil {
		t.Fatalf("GetFloat64Data failed: %v", err)
	}
	expected := []float64{0, 0, 1, 2, 2, 4}
	for i, want := range expected {
		if vals[i] != want {
			t.Errorf("batch value %d: got %v, want %v", i, vals[i], want)
		}
	}
}

func TestDataLoaderShuffleChangesOrder(t *testing.T) {
	data := makeSamples(t, 32)
	dataset, err := NewSimpleDataset(data, nil)
	if err != nil {
		t.Fatalf("NewSimpleDataset failed: %v", err)
	}

	loader, err := NewDataLoader(dataset, 32, true, 7)
	if err != nil {
		t.Fatalf("NewDataLoader failed: %v", err)
	}

	loader.Reset()
	first, err := loader.Next()
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	loader.Reset()
	second, err := loader.Next()
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}

	firstVals, _ := first.Data.GetFloat64Data()
	secondVals, _ := second.Data.GetFloat64Data()

	same := true
	for i := range firstVals {
		if firstVals[i] != secondVals[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("expected different sample order after reshuffling")
	}
}

func TestDataLoaderValidation(t *testing.T) {
	data := makeSamples(t, 4)
	dataset, err := NewSimpleDataset(data, nil)
	if err != nil {
		t.Fatalf("NewSimpleDataset failed: %v", err)
	}

	t.Run("ZeroBatchSize", func(t *testing.T) {
		if _, err := NewDataLoader(dataset, 0, false, 0); err == nil {
			t.Error("expected error for zero batch size")
		}
	})

	t.Run("NilDataset", func(t *testing.T) {
		if _, err := NewDataLoader(nil, 4, false, 0); err == nil {
			t.Error("expected error for nil dataset")
		}
	})
}

func TestSimpleDatasetValidation(t *testing.T) {
	data := makeSamples(t, 3)

	t.Run("Empty", func(t *testing.T) {
		if _, err := NewSimpleDataset(nil, nil); err == nil {
			t.Error("expected error for empty dataset")
		}
	})

	t.Run("LengthMismatch", func(t *testing.T) {
		if _, err := NewSimpleDataset(data, data[:2]); err == nil {
			t.Error("expected error for mismatched labels")
		}
	})

	t.Run("OutOfRange", func(t *testing.T) {
		ds, err := NewSimpleDataset(data, nil)
		if err != nil {
			t.Fatalf("NewSimpleDataset failed: %v", err)
		}
		if _, _, err := ds.Get(3); err == nil {
			t.Error("expected error for out-of-range index")
		}
	})
}

func TestSequenceDatasetOneHot(t *testing.T) {
	sequences := [][]int{{0, 2, 1}}
	ds, err := NewSequenceDataset(sequences, []float64{0.5}, 3, tensor.Float64)
	if err != nil {
		t.Fatalf("NewSequenceDataset failed: %v", err)
	}

	data, label, err := ds.Get(0)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	vals, _ := data.GetFloat64Data()
	expected := []float64{
		1, 0, 0, // residue 0
		0, 0, 1, // residue 2
		0, 1, 0, // residue 1
	}
	for i, want := range expected {
		if vals[i] != want {
			t.Errorf("one-hot value %d: got %v, want %v", i, vals[i], want)
		}
	}

	labelVals, _ := label.GetFloat64Data()
	if labelVals[0] != 0.5 {
		t.Errorf("label: got %v, want 0.5", labelVals[0])
	}
}

func TestSequenceDatasetValidation(t *testing.T) {
	t.Run("RaggedSequences", func(t *testing.T) {
		if _, err := NewSequenceDataset([][]int{{0, 1}, {0}}, nil, 2, tensor.Float64); err == nil {
			t.Error("expected error for ragged sequences")
		}
	})

	t.Run("ResidueOutOfAlphabet", func(t *testing.T) {
		if _, err := NewSequenceDataset([][]int{{0, 5}}, nil, 3, tensor.Float64); err == nil {
			t.Error("expected error for residue index beyond alphabet")
		}
	})
}
