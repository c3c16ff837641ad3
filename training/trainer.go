package training

import (
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/proteindesign/protrain/checkpoints"
	"github.com/proteindesign/protrain/device"
	"github.com/proteindesign/protrain/model"
	"github.com/proteindesign/protrain/optimizer"
	"github.com/proteindesign/protrain/tensor"
)

// ValidationMode selects how the validation loss for a step is measured.
type ValidationMode int

const (
	// ValidatePerBatch scores one validation batch per training step.
	// Cheap but noisy; a lucky batch can win the checkpoint.
	ValidatePerBatch ValidationMode = iota

	// ValidateFullPass scores the entire validation set per training
	// step. Stable but proportionally more expensive.
	ValidateFullPass
)

// TrainerConfig holds training configuration
type TrainerConfig struct {
	Steps          int  // Total optimization steps to run
	BatchSize      int  // Samples per batch
	ProgressEvery  int  // Steps between progress bar updates
	Shuffle        bool // Reshuffle sample order each epoch
	Seed           int64
	ValidationMode ValidationMode

	CheckpointPath   string // Where the best-model checkpoint is written
	CheckpointFormat checkpoints.CheckpointFormat
	Description      string

	// BaseLR seeds the scheduler. Zero means use the optimizer's
	// current learning rate.
	BaseLR float64
}

// DefaultTrainerConfig returns the standard training configuration
func DefaultTrainerConfig() TrainerConfig {
	return TrainerConfig{
		Steps:            1000,
		BatchSize:        32,
		ProgressEvery:    10,
		Shuffle:          true,
		Seed:             1,
		ValidationMode:   ValidatePerBatch,
		CheckpointPath:   "best_model.json",
		CheckpointFormat: checkpoints.FormatJSON,
	}
}

// TrainResult summarizes a completed training run
type TrainResult struct {
	Steps            int
	BestStep         int
	BestValLoss      float64
	FinalTrainLoss   float64
	TrainLossHistory []float64
	ValLossHistory   []float64
	RunID            string
	Elapsed          time.Duration
}

// Trainer drives the step-budgeted training loop: draw a batch, update
// the model, score validation, and keep the checkpoint of the best
// validation loss seen so far.
type Trainer struct {
	model     model.Model
	optimizer optimizer.Optimizer
	scheduler LRScheduler
	collector *VisualizationCollector
	saver     *checkpoints.CheckpointSaver
	out       io.Writer
}

// NewTrainer creates a trainer for the given model. A nil optimizer
// selects Adam with its default configuration; a nil scheduler selects
// the cyclic schedule oscillating between 1e-4 and 1e-3.
func NewTrainer(m model.Model, opt optimizer.Optimizer, sched LRScheduler) (*Trainer, error) {
	if m == nil {
		return nil, fmt.Errorf("model cannot be nil")
	}

	// Promote parameters to float64 before the optimizer captures
	// state sizes.
	if err := m.Double(); err != nil {
		return nil, fmt.Errorf("failed to promote model to float64: %v", err)
	}

	if opt == nil {
		var err error
		opt, err = optimizer.NewAdam(optimizer.DefaultAdamConfig(), m.Parameters())
		if err != nil {
			return nil, fmt.Errorf("failed to create default optimizer: %v", err)
		}
	}
	if sched == nil {
		sched = NewCyclicLRScheduler(1e-4, 1e-3, 2000)
	}

	return &Trainer{
		model:     m,
		optimizer: opt,
		scheduler: sched,
		collector: NewVisualizationCollector("protrain"),
		out:       os.Stdout,
	}, nil
}

// SetOutput redirects trainer console output, mainly for tests
func (t *Trainer) SetOutput(w io.Writer) {
	t.out = w
}

// Collector returns the visualization collector for this trainer
func (t *Trainer) Collector() *VisualizationCollector {
	return t.collector
}

// Train runs the step-budgeted loop over the training set, scoring the
// validation set every step. Whenever the validation loss strictly
// improves on the best seen so far, the model is checkpointed to
// config.CheckpointPath, overwriting any previous checkpoint. After the
// final step the best checkpoint is loaded back into the model, so the
// returned model state is the best validator, not the last iterate.
//
// With Steps == 0 no checkpoint file is written and the model is left
// untouched.
func (t *Trainer) Train(trainSet, valSet Dataset, config TrainerConfig) (*TrainResult, error) {
	if trainSet == nil {
		return nil, fmt.Errorf("training dataset cannot be nil")
	}
	if valSet == nil {
		return nil, fmt.Errorf("validation dataset cannot be nil")
	}
	if config.Steps < 0 {
		return nil, fmt.Errorf("step count cannot be negative, got %d", config.Steps)
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 32
	}
	if config.ProgressEvery <= 0 {
		config.ProgressEvery = 10
	}
	if config.CheckpointPath == "" {
		config.CheckpointPath = "best_model.json"
	}
	if config.BaseLR <= 0 {
		config.BaseLR = t.optimizer.GetLR()
	}

	t.saver = checkpoints.NewCheckpointSaver(config.CheckpointFormat)

	meta := checkpoints.NewMetadata(config.Description)
	result := &TrainResult{RunID: meta.RunID}

	if config.Steps == 0 {
		return result, nil
	}

	fmt.Fprintf(t.out, "Training on %s\n", device.Active())
	fmt.Fprintf(t.out, "Training on %d examples\n", trainSet.Len())
	fmt.Fprintf(t.out, "Validating on %d examples\n", valSet.Len())
	PrintModelSummary(t.out, fmt.Sprintf("Model (%T)", t.model), t.model)

	trainLoader, err := NewDataLoader(trainSet, config.BatchSize, config.Shuffle, config.Seed)
	if err != nil {
		return nil, fmt.Errorf("failed to create training loader: %v", err)
	}
	valLoader, err := NewDataLoader(valSet, config.BatchSize, config.Shuffle, config.Seed+1)
	if err != nil {
		return nil, fmt.Errorf("failed to create validation loader: %v", err)
	}

	trainCycler, err := NewDataCycler(trainLoader)
	if err != nil {
		return nil, err
	}
	valCycler, err := NewDataCycler(valLoader)
	if err != nil {
		return nil, err
	}

	t.collector.Enable()
	progress := NewProgressBar(fmt.Sprintf("Training (%s)", t.scheduler.GetName()), config.Steps)
	progress.SetOutput(t.out)

	bestValLoss := math.Inf(1)
	bestStep := 0
	start := time.Now()

	for step := 1; step <= config.Steps; step++ {
		t.optimizer.SetLR(t.scheduler.GetLR(step, config.BaseLR))

		trainLoss, err := TrainingStep(t.model, trainCycler, t.optimizer)
		if err != nil {
			return nil, fmt.Errorf("training step %d failed: %v", step, err)
		}

		var valLoss float64
		switch config.ValidationMode {
		case ValidateFullPass:
			valLoss, err = ValidationPass(t.model, valLoader)
		default:
			valLoss, err = ValidationStep(t.model, valCycler)
		}
		if err != nil {
			return nil, fmt.Errorf("validation at step %d failed: %v", step, err)
		}

		result.TrainLossHistory = append(result.TrainLossHistory, trainLoss)
		result.ValLossHistory = append(result.ValLossHistory, valLoss)
		t.collector.RecordTrainingStep(step, trainLoss, t.optimizer.GetLR())
		t.collector.RecordValidationStep(step, valLoss)

		if valLoss < bestValLoss {
			bestValLoss = valLoss
			bestStep = step
			if err := t.saveCheckpoint(config, meta, step, bestValLoss); err != nil {
				return nil, fmt.Errorf("failed to save checkpoint at step %d: %v", step, err)
			}
		}

		if step%config.ProgressEvery == 0 || step == config.Steps {
			progress.Update(step, map[string]float64{
				"loss":     trainLoss,
				"val_loss": valLoss,
				"best":     bestValLoss,
			})
		}
	}

	progress.Finish()

	// Restore the best validator before handing the model back.
	if err := t.restoreBest(config.CheckpointPath); err != nil {
		return nil, fmt.Errorf("failed to restore best checkpoint: %v", err)
	}

	result.Steps = config.Steps
	result.BestStep = bestStep
	result.BestValLoss = bestValLoss
	result.FinalTrainLoss = result.TrainLossHistory[len(result.TrainLossHistory)-1]
	result.Elapsed = time.Since(start)

	fmt.Fprintf(t.out, "Best validation loss %.6f at step %d (checkpoint: %s)\n",
		bestValLoss, bestStep, config.CheckpointPath)

	return result, nil
}

func (t *Trainer) saveCheckpoint(config TrainerConfig, meta checkpoints.CheckpointMetadata, step int, bestValLoss float64) error {
	weights, err := checkpoints.ExtractWeights(t.model.Parameters())
	if err != nil {
		return err
	}

	optState, err := t.optimizer.GetState()
	if err != nil {
		return err
	}

	meta.CreatedAt = time.Now().UTC()

	checkpoint := &checkpoints.Checkpoint{
		Weights: weights,
		TrainingState: checkpoints.TrainingState{
			Step:         step,
			BestValLoss:  bestValLoss,
			LearningRate: t.optimizer.GetLR(),
			TotalSteps:   config.Steps,
		},
		OptimizerState: optState,
		Metadata:       meta,
	}

	return t.saver.SaveCheckpoint(checkpoint, config.CheckpointPath)
}

func (t *Trainer) restoreBest(path string) error {
	checkpoint, err := t.saver.LoadCheckpoint(path)
	if err != nil {
		return err
	}
	return checkpoints.LoadWeights(checkpoint.Weights, t.model.Parameters())
}

// EvaluateRegression runs the model over a dataset and computes
// regression metrics on the flattened predictions. Regression data is
// also recorded on the trainer's collector for plotting.
func (t *Trainer) EvaluateRegression(dataset Dataset, batchSize int) (*RegressionMetrics, error) {
	loader, err := NewDataLoader(dataset, batchSize, false, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to create evaluation loader: %v", err)
	}

	var predictions, trueValues []float64

	for loader.HasNext() {
		batch, err := loader.Next()
		if err != nil {
			return nil, fmt.Errorf("failed to draw evaluation batch: %v", err)
		}
		if batch == nil {
			break
		}

		target := batch.Labels
		if target == nil {
			target = batch.Data
		}

		var pred *tensor.Tensor
		fwdErr := tensor.NoGrad(func() error {
			var err error
			pred, err = t.model.Forward(batch.Data)
			return err
		})
		if fwdErr != nil {
			return nil, fmt.Errorf("prediction failed: %v", fwdErr)
		}

		predVals, err := flattenValues(pred)
		if err != nil {
			return nil, err
		}
		predictions = append(predictions, predVals...)

		targetVals, err := flattenValues(target)
		if err != nil {
			return nil, err
		}
		trueValues = append(trueValues, targetVals...)
	}

	metrics, err := CalculateRegressionMetrics(predictions, trueValues)
	if err != nil {
		return nil, err
	}

	t.collector.RecordRegressionData(predictions, trueValues)
	return metrics, nil
}

func flattenValues(t *tensor.Tensor) ([]float64, error) {
	switch t.DType {
	case tensor.Float32:
		src, err := t.GetFloat32Data()
		if err != nil {
			return nil, err
		}
		out := make([]float64, len(src))
		for i, v := range src {
			out[i] = float64(v)
		}
		return out, nil
	case tensor.Float64:
		src, err := t.GetFloat64Data()
		if err != nil {
			return nil, err
		}
		out := make([]float64, len(src))
		copy(out, src)
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported dtype for evaluation: %s", t.DType)
	}
}
