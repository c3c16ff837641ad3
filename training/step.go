package training

import (
	"fmt"

	"github.com/proteindesign/protrain/model"
	"github.com/proteindesign/protrain/optimizer"
	"github.com/proteindesign/protrain/tensor"
)

// TrainingStep draws one batch from the cycler, computes the loss,
// backpropagates, and applies a single optimizer update. When the batch
// carries no labels the input doubles as the reconstruction target.
// Returns the scalar loss value for the batch.
func TrainingStep(m model.Model, cycler *DataCycler, opt optimizer.Optimizer) (float64, error) {
	batch, err := cycler.Next()
	if err != nil {
		return 0, fmt.Errorf("failed to draw training batch: %v", err)
	}

	target := batch.Labels
	if target == nil {
		target = batch.Data
	}

	loss, err := m.Loss(batch.Data, target)
	if err != nil {
		return 0, fmt.Errorf("loss computation failed: %v", err)
	}

	opt.ZeroGrad()
	if err := loss.Backward(); err != nil {
		return 0, fmt.Errorf("backward pass failed: %v", err)
	}
	if err := opt.Step(); err != nil {
		return 0, fmt.Errorf("optimizer step failed: %v", err)
	}

	value, err := loss.ScalarFloat64()
	if err != nil {
		return 0, fmt.Errorf("failed to read loss value: %v", err)
	}
	return value, nil
}

// ValidationStep draws one batch from the cycler and computes the loss
// without building the autograd graph or touching gradients.
func ValidationStep(m model.Model, cycler *DataCycler) (float64, error) {
	batch, err := cycler.Next()
	if err != nil {
		return 0, fmt.Errorf("failed to draw validation batch: %v", err)
	}

	return evaluateBatch(m, batch)
}

// ValidationPass runs one full pass over the validation loader and
// returns the mean batch loss.
func ValidationPass(m model.Model, loader *DataLoader) (float64, error) {
	loader.Reset()

	var total float64
	var count int

	for loader.HasNext() {
		batch, err := loader.Next()
		if err != nil {
			return 0, fmt.Errorf("failed to draw validation batch: %v", err)
		}
		if batch == nil {
			break
		}

		value, err := evaluateBatch(m, batch)
		if err != nil {
			return 0, err
		}
		total += value
		count++
	}

	if count == 0 {
		return 0, fmt.Errorf("validation loader produced no batches")
	}
	return total / float64(count), nil
}

func evaluateBatch(m model.Model, batch *Batch) (float64, error) {
	target := batch.Labels
	if target == nil {
		target = batch.Data
	}

	var loss *tensor.Tensor
	err := tensor.NoGrad(func() error {
		var lossErr error
		loss, lossErr = m.Loss(batch.Data, target)
		return lossErr
	})
	if err != nil {
		return 0, fmt.Errorf("loss computation failed: %v", err)
	}

	value, err := loss.ScalarFloat64()
	if err != nil {
		return 0, fmt.Errorf("failed to read loss value: %v", err)
	}
	return value, nil
}
