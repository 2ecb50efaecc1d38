package solver

import (
	"fmt"

	G "gorgonia.org/gorgonia"
)

// AdamConfig describes a configuration of the Adam solver
type AdamConfig struct {
	StepSize float64
	Epsilon  float64 // Smoothing factor
	Beta1    float64
	Beta2    float64
	Batch    int
}

// NewDefaultAdam returns a new Adam Optimizer with the momentum used to
// train adversarial networks, β₁ = 0.5
func NewDefaultAdam(stepSize float64) (*Optimizer, error) {
	return NewAdam(AdamConfig{
		StepSize: stepSize,
		Epsilon:  1e-8,
		Beta1:    0.5,
		Beta2:    0.999,
		Batch:    1,
	})
}

// NewAdam returns a new Adam Optimizer
func NewAdam(c AdamConfig) (*Optimizer, error) {
	if c.StepSize <= 0 {
		return nil, fmt.Errorf("newAdam: step size must be positive "+
			"\n\thave(%v)", c.StepSize)
	}
	if c.Beta1 < 0 || c.Beta1 >= 1 || c.Beta2 < 0 || c.Beta2 >= 1 {
		return nil, fmt.Errorf("newAdam: betas must be in [0, 1) "+
			"\n\thave(%v, %v)", c.Beta1, c.Beta2)
	}
	if c.Batch <= 0 {
		c.Batch = 1
	}
	return New(c), nil
}

// Create returns a new Gorgonia Adam Solver as described by the
// AdamConfig
func (a AdamConfig) Create() G.Solver {
	solver := G.NewAdamSolver(
		G.WithLearnRate(a.StepSize),
		G.WithEps(a.Epsilon),
		G.WithBeta1(a.Beta1),
		G.WithBeta2(a.Beta2),
		G.WithBatchSize(float64(a.Batch)),
	)
	return solver
}
