package training

import (
	"encoding/json"
	"fmt"
	"time"
)

// PlotType represents different types of plots that can be generated
type PlotType string

const (
	// Training plots
	TrainingCurves       PlotType = "training_curves"
	LearningRateSchedule PlotType = "learning_rate_schedule"

	// Regression plots
	RegressionScatter PlotType = "regression_scatter"
	ResidualPlot      PlotType = "residual_plot"
)

// PlotData represents the universal JSON format for the sidecar plotting service
type PlotData struct {
	// Metadata
	PlotType  PlotType  `json:"plot_type"`
	Title     string    `json:"title"`
	Timestamp time.Time `json:"timestamp"`
	ModelName string    `json:"model_name"`

	// Data series - flexible structure for different plot types
	Series []SeriesData `json:"series"`

	// Plot configuration
	Config PlotConfig `json:"config"`

	// Metrics metadata
	Metrics map[string]interface{} `json:"metrics,omitempty"`
}

// SeriesData represents a single data series in a plot
type SeriesData struct {
	Name  string                 `json:"name"`
	Type  string                 `json:"type"` // "line", "scatter"
	Data  []DataPoint            `json:"data"`
	Style map[string]interface{} `json:"style,omitempty"`
}

// DataPoint represents a single data point
type DataPoint struct {
	X interface{} `json:"x"`
	Y interface{} `json:"y"`
}

// PlotConfig contains plot-specific configuration
type PlotConfig struct {
	XAxisLabel  string `json:"x_axis_label"`
	YAxisLabel  string `json:"y_axis_label"`
	XAxisScale  string `json:"x_axis_scale"` // "linear", "log"
	YAxisScale  string `json:"y_axis_scale"` // "linear", "log"
	ShowLegend  bool   `json:"show_legend"`
	ShowGrid    bool   `json:"show_grid"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Interactive bool   `json:"interactive"`
}

// VisualizationCollector handles data collection for plotting
type VisualizationCollector struct {
	modelName string
	enabled   bool

	// Training data
	steps          []int
	trainingLoss   []float64
	valSteps       []int
	validationLoss []float64
	learningRates  []float64

	// Regression data
	predictions []float64
	trueValues  []float64
	residuals   []float64
}

// NewVisualizationCollector creates a new visualization collector
func NewVisualizationCollector(modelName string) *VisualizationCollector {
	return &VisualizationCollector{
		modelName:      modelName,
		enabled:        false,
		steps:          make([]int, 0),
		trainingLoss:   make([]float64, 0),
		valSteps:       make([]int, 0),
		validationLoss: make([]float64, 0),
		learningRates:  make([]float64, 0),
		predictions:    make([]float64, 0),
		trueValues:     make([]float64, 0),
		residuals:      make([]float64, 0),
	}
}

// Enable enables visualization data collection
func (vc *VisualizationCollector) Enable() {
	vc.enabled = true
}

// Disable disables visualization data collection
func (vc *VisualizationCollector) Disable() {
	vc.enabled = false
}

// IsEnabled returns whether visualization is enabled
func (vc *VisualizationCollector) IsEnabled() bool {
	return vc.enabled
}

// RecordTrainingStep records training metrics for a single step
func (vc *VisualizationCollector) RecordTrainingStep(step int, loss, learningRate float64) {
	if !vc.enabled {
		return
	}

	vc.steps = append(vc.steps, step)
	vc.trainingLoss = append(vc.trainingLoss, loss)
	vc.learningRates = append(vc.learningRates, learningRate)
}

// RecordValidationStep records the validation loss observed at a step
func (vc *VisualizationCollector) RecordValidationStep(step int, loss float64) {
	if !vc.enabled {
		return
	}

	vc.valSteps = append(vc.valSteps, step)
	vc.validationLoss = append(vc.validationLoss, loss)
}

// RecordRegressionData records regression predictions and true values
func (vc *VisualizationCollector) RecordRegressionData(predictions, trueValues []float64) {
	if !vc.enabled {
		return
	}

	vc.predictions = predictions
	vc.trueValues = trueValues

	vc.residuals = make([]float64, len(predictions))
	for i := range predictions {
		vc.residuals[i] = predictions[i] - trueValues[i]
	}
}

// GenerateTrainingCurvesPlot generates the loss-versus-step plot data
func (vc *VisualizationCollector) GenerateTrainingCurvesPlot() PlotData {
	trainSeries := SeriesData{
		Name: "Training Loss",
		Type: "line",
		Data: make([]DataPoint, len(vc.trainingLoss)),
		Style: map[string]interface{}{
			"color":      "#FF6B6B",
			"line_width": 2,
		},
	}
	for i, loss := range vc.trainingLoss {
		trainSeries.Data[i] = DataPoint{
			X: vc.steps[i],
			Y: loss,
		}
	}

	series := []SeriesData{trainSeries}

	if len(vc.validationLoss) > 0 {
		valSeries := SeriesData{
			Name: "Validation Loss",
			Type: "line",
			Data: make([]DataPoint, len(vc.validationLoss)),
			Style: map[string]interface{}{
				"color":      "#FF9F43",
				"line_width": 2,
				"line_style": "dashed",
			},
		}
		for i, loss := range vc.validationLoss {
			valSeries.Data[i] = DataPoint{
				X: vc.valSteps[i],
				Y: loss,
			}
		}
		series = append(series, valSeries)
	}

	return PlotData{
		PlotType:  TrainingCurves,
		Title:     fmt.Sprintf("Training Curves - %s", vc.modelName),
		Timestamp: time.Now(),
		ModelName: vc.modelName,
		Series:    series,
		Config: PlotConfig{
			XAxisLabel:  "Step",
			YAxisLabel:  "Loss",
			XAxisScale:  "linear",
			YAxisScale:  "linear",
			ShowLegend:  true,
			ShowGrid:    true,
			Width:       800,
			Height:      600,
			Interactive: true,
		},
	}
}

// GenerateLearningRateSchedulePlot generates learning rate schedule plot data
func (vc *VisualizationCollector) GenerateLearningRateSchedulePlot() PlotData {
	series := []SeriesData{
		{
			Name: "Learning Rate",
			Type: "line",
			Data: make([]DataPoint, len(vc.learningRates)),
			Style: map[string]interface{}{
				"color":      "#6C5CE7",
				"line_width": 2,
			},
		},
	}

	for i, lr := range vc.learningRates {
		series[0].Data[i] = DataPoint{
			X: vc.steps[i],
			Y: lr,
		}
	}

	return PlotData{
		PlotType:  LearningRateSchedule,
		Title:     fmt.Sprintf("Learning Rate Schedule - %s", vc.modelName),
		Timestamp: time.Now(),
		ModelName: vc.modelName,
		Series:    series,
		Config: PlotConfig{
			XAxisLabel:  "Step",
			YAxisLabel:  "Learning Rate",
			XAxisScale:  "linear",
			YAxisScale:  "log",
			ShowLegend:  true,
			ShowGrid:    true,
			Width:       800,
			Height:      400,
			Interactive: true,
		},
	}
}

// GenerateRegressionScatterPlot generates regression scatter plot data
func (vc *VisualizationCollector) GenerateRegressionScatterPlot() PlotData {
	if len(vc.predictions) == 0 {
		return PlotData{}
	}

	scatterData := make([]DataPoint, len(vc.predictions))
	for i := range vc.predictions {
		scatterData[i] = DataPoint{
			X: vc.trueValues[i],
			Y: vc.predictions[i],
		}
	}

	// Perfect prediction line
	minVal := vc.trueValues[0]
	maxVal := vc.trueValues[0]
	for _, val := range vc.trueValues {
		if val < minVal {
			minVal = val
		}
		if val > maxVal {
			maxVal = val
		}
	}

	series := []SeriesData{
		{
			Name: "Predictions",
			Type: "scatter",
			Data: scatterData,
			Style: map[string]interface{}{
				"color": "#4ECDC4",
				"alpha": 0.6,
			},
		},
		{
			Name: "Perfect Prediction",
			Type: "line",
			Data: []DataPoint{
				{X: minVal, Y: minVal},
				{X: maxVal, Y: maxVal},
			},
			Style: map[string]interface{}{
				"color":      "#FF6B6B",
				"line_width": 2,
				"line_style": "dashed",
			},
		},
	}

	return PlotData{
		PlotType:  RegressionScatter,
		Title:     fmt.Sprintf("Regression Scatter Plot - %s", vc.modelName),
		Timestamp: time.Now(),
		ModelName: vc.modelName,
		Series:    series,
		Config: PlotConfig{
			XAxisLabel:  "True Values",
			YAxisLabel:  "Predicted Values",
			XAxisScale:  "linear",
			YAxisScale:  "linear",
			ShowLegend:  true,
			ShowGrid:    true,
			Width:       600,
			Height:      600,
			Interactive: true,
		},
	}
}

// GenerateResidualPlot generates residual plot data
func (vc *VisualizationCollector) GenerateResidualPlot() PlotData {
	if len(vc.residuals) == 0 {
		return PlotData{}
	}

	residualData := make([]DataPoint, len(vc.residuals))
	for i := range vc.residuals {
		residualData[i] = DataPoint{
			X: vc.predictions[i],
			Y: vc.residuals[i],
		}
	}

	minPred := vc.predictions[0]
	maxPred := vc.predictions[0]
	for _, pred := range vc.predictions {
		if pred < minPred {
			minPred = pred
		}
		if pred > maxPred {
			maxPred = pred
		}
	}

	series := []SeriesData{
		{
			Name: "Residuals",
			Type: "scatter",
			Data: residualData,
			Style: map[string]interface{}{
				"color": "#FF9F43",
				"alpha": 0.6,
			},
		},
		{
			Name: "Zero Line",
			Type: "line",
			Data: []DataPoint{
				{X: minPred, Y: 0.0},
				{X: maxPred, Y: 0.0},
			},
			Style: map[string]interface{}{
				"color":      "#95A5A6",
				"line_width": 1,
				"line_style": "dashed",
			},
		},
	}

	return PlotData{
		PlotType:  ResidualPlot,
		Title:     fmt.Sprintf("Residual Plot - %s", vc.modelName),
		Timestamp: time.Now(),
		ModelName: vc.modelName,
		Series:    series,
		Config: PlotConfig{
			XAxisLabel:  "Predicted Values",
			YAxisLabel:  "Residuals",
			XAxisScale:  "linear",
			YAxisScale:  "linear",
			ShowLegend:  true,
			ShowGrid:    true,
			Width:       600,
			Height:      600,
			Interactive: true,
		},
	}
}

// TrainingLoss returns the recorded per-step training losses
func (vc *VisualizationCollector) TrainingLoss() []float64 {
	return vc.trainingLoss
}

// ValidationLoss returns the recorded validation losses
func (vc *VisualizationCollector) ValidationLoss() []float64 {
	return vc.validationLoss
}

// ToJSON converts plot data to JSON string
func (pd PlotData) ToJSON() (string, error) {
	jsonData, err := json.MarshalIndent(pd, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal plot data to JSON: %w", err)
	}
	return string(jsonData), nil
}

// Clear resets all collected data
func (vc *VisualizationCollector) Clear() {
	vc.steps = vc.steps[:0]
	vc.trainingLoss = vc.trainingLoss[:0]
	vc.valSteps = vc.valSteps[:0]
	vc.validationLoss = vc.validationLoss[:0]
	vc.learningRates = vc.learningRates[:0]
	vc.predictions = vc.predictions[:0]
	vc.trueValues = vc.trueValues[:0]
	vc.residuals = vc.residuals[:0]
}
