package training

import (
	"math"
)

// LRScheduler defines the interface for learning rate scheduling strategies.
// Schedulers are pure functions of the step count so that a restored
// training run resumes on the exact same schedule.
type LRScheduler interface {
	// GetLR returns the learning rate for the given step
	GetLR(step int, baseLR float64) float64

	// GetName returns the scheduler name for logging
	GetName() string
}

// CyclicLRScheduler cycles the learning rate between a lower and an upper
// bound following a triangular waveform.
type CyclicLRScheduler struct {
	BaseLR     float64 // Lower bound of the cycle
	MaxLR      float64 // Upper bound of the cycle
	StepSizeUp int     // Steps in the increasing half of a cycle
}

// NewCyclicLRScheduler creates a triangular cyclic learning rate scheduler
func NewCyclicLRScheduler(baseLR, maxLR float64, stepSizeUp int) *CyclicLRScheduler {
	if baseLR <= 0 {
		baseLR = 1e-4
	}
	if maxLR <= baseLR {
		maxLR = baseLR * 10
	}
	if stepSizeUp <= 0 {
		stepSizeUp = 2000
	}
	return &CyclicLRScheduler{
		BaseLR:     baseLR,
		MaxLR:      maxLR,
		StepSizeUp: stepSizeUp,
	}
}

// GetLR returns the learning rate for the given step. The cycle bounds
// are fixed at construction, so the baseLR argument is ignored.
func (s *CyclicLRScheduler) GetLR(step int, baseLR float64) float64 {
	// Triangular waveform: rise from BaseLR to MaxLR over StepSizeUp
	// steps, then fall back symmetrically.
	cycle := math.Floor(1 + float64(step)/float64(2*s.StepSizeUp))
	x := math.Abs(float64(step)/float64(s.StepSizeUp) - 2*cycle + 1)
	return s.BaseLR + (s.MaxLR-s.BaseLR)*math.Max(0, 1-x)
}

func (s *CyclicLRScheduler) GetName() string {
	return "CyclicLR"
}

// WarmupAnnealScheduler linearly warms the learning rate up from zero,
// then anneals it with inverse square root decay.
type WarmupAnnealScheduler struct {
	WarmupSteps int
}

// NewWarmupAnnealScheduler creates a warmup-then-anneal scheduler
func NewWarmupAnnealScheduler(warmupSteps int) *WarmupAnnealScheduler {
	if warmupSteps <= 0 {
		warmupSteps = 4000
	}
	return &WarmupAnnealScheduler{
		WarmupSteps: warmupSteps,
	}
}

func (s *WarmupAnnealScheduler) GetLR(step int, baseLR float64) float64 {
	if step < 1 {
		step = 1
	}
	warmup := float64(s.WarmupSteps)
	scale := math.Min(float64(step)/warmup, math.Sqrt(warmup/float64(step)))
	return baseLR * scale
}

func (s *WarmupAnnealScheduler) GetName() string {
	return "WarmupAnneal"
}

// CosineAnnealingScheduler implements step-based cosine annealing
type CosineAnnealingScheduler struct {
	TMax   int     // Steps from baseLR down to EtaMin
	EtaMin float64 // Minimum learning rate
}

// NewCosineAnnealingScheduler creates a cosine annealing scheduler
func NewCosineAnnealingScheduler(tMax int, etaMin float64) *CosineAnnealingScheduler {
	if tMax <= 0 {
		tMax = 1000
	}
	if etaMin < 0 {
		etaMin = 0
	}
	return &CosineAnnealingScheduler{
		TMax:   tMax,
		EtaMin: etaMin,
	}
}

func (s *CosineAnnealingScheduler) GetLR(step int, baseLR float64) float64 {
	if step >= s.TMax {
		return s.EtaMin
	}

	return s.EtaMin + (baseLR-s.EtaMin)*(1+math.Cos(math.Pi*float64(step)/float64(s.TMax)))/2
}

func (s *CosineAnnealingScheduler) GetName() string {
	return "CosineAnnealingLR"
}

// StepLRScheduler reduces the learning rate by a factor every StepSize steps
type StepLRScheduler struct {
	StepSize int     // Steps between LR reductions
	Gamma    float64 // Multiplicative factor of LR decay
}

// NewStepLRScheduler creates a step learning rate scheduler
func NewStepLRScheduler(stepSize int, gamma float64) *StepLRScheduler {
	if stepSize <= 0 {
		stepSize = 1000
	}
	if gamma <= 0 || gamma >= 1 {
		gamma = 0.1
	}
	return &StepLRScheduler{
		StepSize: stepSize,
		Gamma:    gamma,
	}
}

func (s *StepLRScheduler) GetLR(step int, baseLR float64) float64 {
	times := step / s.StepSize
	return baseLR * math.Pow(s.Gamma, float64(times))
}

func (s *StepLRScheduler) GetName() string {
	return "StepLR"
}

// NoOpScheduler maintains a constant learning rate (default behavior)
type NoOpScheduler struct{}

func (s *NoOpScheduler) GetLR(step int, baseLR float64) float64 {
	return baseLR
}

func (s *NoOpScheduler) GetName() string {
	return "ConstantLR"
}
