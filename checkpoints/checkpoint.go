// Package checkpoints persists model state to disk. A checkpoint carries
// the full parameter set, the training progress at the time of writing,
// optional optimizer state, and run metadata. Every save fully overwrites
// the target path; there is no versioning and no partial write visible to
// callers.
package checkpoints

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/proteindesign/protrain/tensor"
)

// CheckpointFormat defines the serialization format.
type CheckpointFormat int

const (
	FormatJSON CheckpointFormat = iota
	FormatBinary
)

func (cf CheckpointFormat) String() string {
	switch cf {
	case FormatJSON:
		return "JSON"
	case FormatBinary:
		return "Binary"
	default:
		return "Unknown"
	}
}

// Checkpoint represents a complete model state.
type Checkpoint struct {
	Weights []WeightTensor `json:"weights"`

	TrainingState TrainingState `json:"training_state"`

	OptimizerState *OptimizerState `json:"optimizer_state,omitempty"`

	Metadata CheckpointMetadata `json:"metadata"`
}

// WeightTensor represents a model parameter tensor with its data.
type WeightTensor struct {
	Name  string    `json:"name"`
	Shape []int     `json:"shape"`
	Data  []float64 `json:"data"`
	Type  string    `json:"type"` // "weight", "bias", etc.
}

// TrainingState captures training progress at save time.
type TrainingState struct {
	Step         int     `json:"step"`
	BestValLoss  float64 `json:"best_val_loss"`
	LearningRate float64 `json:"learning_rate"`
	TotalSteps   int     `json:"total_steps"`
}

// OptimizerState captures optimizer-specific state (momentum, variance, etc.).
type OptimizerState struct {
	Type       string             `json:"type"` // "Adam", "SGD", etc.
	Parameters map[string]float64 `json:"parameters"`
	StateData  []OptimizerTensor  `json:"state_data"`
}

// OptimizerTensor represents an optimizer state tensor.
type OptimizerTensor struct {
	Name      string    `json:"name"`
	Shape     []int     `json:"shape"`
	Data      []float64 `json:"data"`
	StateType string    `json:"state_type"` // "momentum", "variance", "m", "v", etc.
}

// CheckpointMetadata contains checkpoint metadata.
type CheckpointMetadata struct {
	RunID       string    `json:"run_id"`
	Version     string    `json:"version"`
	Framework   string    `json:"framework"`
	CreatedAt   time.Time `json:"created_at"`
	Description string    `json:"description,omitempty"`
}

// NewMetadata creates metadata for a fresh training run.
func NewMetadata(description string) CheckpointMetadata {
	return CheckpointMetadata{
		RunID:       uuid.NewString(),
		Version:     "1.0.0",
		Framework:   "protrain",
		CreatedAt:   time.Now().UTC(),
		Description: description,
	}
}

// CheckpointSaver handles saving model checkpoints in various formats.
type CheckpointSaver struct {
	format CheckpointFormat
}

// NewCheckpointSaver creates a new checkpoint saver for the specified format.
func NewCheckpointSaver(format CheckpointFormat) *CheckpointSaver {
	return &CheckpointSaver{
		format: format,
	}
}

// SaveCheckpoint saves a complete model checkpoint.
func (cs *CheckpointSaver) SaveCheckpoint(checkpoint *Checkpoint, path string) error {
	if checkpoint.Metadata.Framework == "" {
		checkpoint.Metadata = NewMetadata(checkpoint.Metadata.Description)
	}

	switch cs.format {
	case FormatJSON:
		return cs.saveJSON(checkpoint, path)
	case FormatBinary:
		return cs.saveBinary(checkpoint, path)
	default:
		return fmt.Errorf("unsupported checkpoint format: %s", cs.format.String())
	}
}

// LoadCheckpoint loads a model checkpoint.
func (cs *CheckpointSaver) LoadCheckpoint(path string) (*Checkpoint, error) {
	switch cs.format {
	case FormatJSON:
		return cs.loadJSON(path)
	case FormatBinary:
		return cs.loadBinary(path)
	default:
		return nil, fmt.Errorf("unsupported checkpoint format: %s", cs.format.String())
	}
}

func (cs *CheckpointSaver) saveJSON(checkpoint *Checkpoint, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create checkpoint file: %v", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(checkpoint); err != nil {
		return fmt.Errorf("failed to encode checkpoint: %v", err)
	}

	return nil
}

func (cs *CheckpointSaver) loadJSON(path string) (*Checkpoint, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint file: %v", err)
	}
	defer file.Close()

	var checkpoint Checkpoint
	decoder := json.NewDecoder(file)

	if err := decoder.Decode(&checkpoint); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %v", err)
	}

	return &checkpoint, nil
}

func (cs *CheckpointSaver) saveBinary(checkpoint *Checkpoint, path string) error {
	data, err := marshalCheckpoint(checkpoint)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %v", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write checkpoint file: %v", err)
	}

	return nil
}

func (cs *CheckpointSaver) loadBinary(path string) (*Checkpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint file: %v", err)
	}

	checkpoint, err := unmarshalCheckpoint(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint: %v", err)
	}

	return checkpoint, nil
}

// ExtractWeights copies parameter tensors into serializable weight records.
// Parameters are named positionally; 2D tensors are tagged as weights,
// 1D tensors as biases.
func ExtractWeights(params []*tensor.Tensor) ([]WeightTensor, error) {
	weights := make([]WeightTensor, 0, len(params))

	for i, param := range params {
		data, err := toFloat64(param)
		if err != nil {
			return nil, fmt.Errorf("failed to extract data for parameter %d: %v", i, err)
		}

		kind := "weight"
		if len(param.Shape) == 1 {
			kind = "bias"
		}

		weights = append(weights, WeightTensor{
			Name:  fmt.Sprintf("param_%d.%s", i, kind),
			Shape: append([]int(nil), param.Shape...),
			Data:  data,
			Type:  kind,
		})
	}

	return weights, nil
}

// LoadWeights copies weight records back into parameter tensors. Records
// must match the parameter list in order and shape.
func LoadWeights(weights []WeightTensor, params []*tensor.Tensor) error {
	if len(weights) != len(params) {
		return fmt.Errorf("weight count mismatch: %d weights, %d parameters", len(weights), len(params))
	}

	for i, param := range params {
		weight := weights[i]

		if len(param.Shape) != len(weight.Shape) {
			return fmt.Errorf("shape mismatch for %s: tensor %v vs weight %v",
				weight.Name, param.Shape, weight.Shape)
		}
		for j, dim := range param.Shape {
			if dim != weight.Shape[j] {
				return fmt.Errorf("dimension mismatch for %s at index %d: tensor %d vs weight %d",
					weight.Name, j, dim, weight.Shape[j])
			}
		}

		if err := setFloat64(param, weight.Data); err != nil {
			return fmt.Errorf("failed to load data for %s: %v", weight.Name, err)
		}
	}

	return nil
}

func toFloat64(t *tensor.Tensor) ([]float64, error) {
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
		return nil, fmt.Errorf("unsupported dtype for checkpointing: %s", t.DType)
	}
}

func setFloat64(t *tensor.Tensor, data []float64) error {
	if len(data) != t.NumElems {
		return fmt.Errorf("data length %d does not match tensor size %d", len(data), t.NumElems)
	}

	switch t.DType {
	case tensor.Float32:
		dst, err := t.GetFloat32Data()
		if err != nil {
			return err
		}
		for i, v := range data {
			dst[i] = float32(v)
		}
		return nil
	case tensor.Float64:
		dst, err := t.GetFloat64Data()
		if err != nil {
			return err
		}
		copy(dst, data)
		return nil
	default:
		return fmt.Errorf("unsupported dtype for checkpointing: %s", t.DType)
	}
}
