package training

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// RegressionMetrics holds comprehensive regression evaluation metrics
type RegressionMetrics struct {
	MAE      float64 // Mean Absolute Error
	MSE      float64 // Mean Squared Error
	RMSE     float64 // Root Mean Squared Error
	R2       float64 // R-squared
	NMAE     float64 // Normalized Mean Absolute Error
	Pearson  float64 // Pearson correlation coefficient
	Spearman float64 // Spearman rank correlation coefficient
}

// CalculateRegressionMetrics computes comprehensive regression metrics
// for paired prediction and true-value slices.
func CalculateRegressionMetrics(predictions, trueValues []float64) (*RegressionMetrics, error) {
	if len(predictions) != len(trueValues) {
		return nil, fmt.Errorf("predictions and true values must have the same length: got %d and %d",
			len(predictions), len(trueValues))
	}
	if len(predictions) == 0 {
		return nil, fmt.Errorf("cannot compute metrics over empty slices")
	}

	n := float64(len(predictions))
	meanTrue := stat.Mean(trueValues, nil)

	sumAbsErr := 0.0
	sumSqErr := 0.0
	sumSqTotal := 0.0
	minTrue := math.Inf(1)
	maxTrue := math.Inf(-1)

	for i := range predictions {
		diff := predictions[i] - trueValues[i]
		sumAbsErr += math.Abs(diff)
		sumSqErr += diff * diff
		sumSqTotal += (trueValues[i] - meanTrue) * (trueValues[i] - meanTrue)

		if trueValues[i] < minTrue {
			minTrue = trueValues[i]
		}
		if trueValues[i] > maxTrue {
			maxTrue = trueValues[i]
		}
	}

	mae := sumAbsErr / n
	mse := sumSqErr / n
	rmse := math.Sqrt(mse)

	r2 := 0.0
	if sumSqTotal > 0 {
		r2 = 1.0 - (sumSqErr / sumSqTotal)
	}

	// Normalized MAE (scale by range)
	nmae := 0.0
	if maxTrue > minTrue {
		nmae = mae / (maxTrue - minTrue)
	}

	return &RegressionMetrics{
		MAE:      mae,
		MSE:      mse,
		RMSE:     rmse,
		R2:       r2,
		NMAE:     nmae,
		Pearson:  pearsonCorrelation(predictions, trueValues),
		Spearman: spearmanCorrelation(predictions, trueValues),
	}, nil
}

func pearsonCorrelation(a, b []float64) float64 {
	r := stat.Correlation(a, b, nil)
	if math.IsNaN(r) {
		return 0
	}
	return r
}

// spearmanCorrelation is the Pearson correlation of the rank-transformed
// values, with tied values assigned their average rank.
func spearmanCorrelation(a, b []float64) float64 {
	return pearsonCorrelation(rankValues(a), rankValues(b))
}

func rankValues(values []float64) []float64 {
	order := make([]int, len(values))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool {
		return values[order[i]] < values[order[j]]
	})

	ranks := make([]float64, len(values))
	for i := 0; i < len(order); {
		j := i
		for j+1 < len(order) && values[order[j+1]] == values[order[i]] {
			j++
		}
		// Average rank across the tie group (1-based ranks)
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ranks[order[k]] = avg
		}
		i = j + 1
	}
	return ranks
}
