package solver

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
	G "gorgonia.org/gorgonia"
)

// Hook transforms the gradients of a model before a Solver step
type Hook interface {
	Name() string
	Apply([]G.ValueGrad) error
}

// GradientClipping rescales all gradients of a model so that their
// global L2 norm is at most Threshold
type GradientClipping struct {
	Threshold float64
}

// Name returns the name of the hook
func (GradientClipping) Name() string {
	return "GradientClipping"
}

// Apply implements the Hook interface
func (c GradientClipping) Apply(model []G.ValueGrad) error {
	grads := make([][]float64, len(model))
	var sqNorm float64
	for i := range model {
		g, err := gradient(model[i])
		if err != nil {
			return fmt.Errorf("apply: %v", err)
		}
		norm := floats.Norm(g, 2)
		sqNorm += norm * norm
		grads[i] = g
	}

	norm := math.Sqrt(sqNorm)
	if norm == 0 || norm <= c.Threshold {
		return nil
	}
	rate := c.Threshold / norm
	for _, g := range grads {
		floats.Scale(rate, g)
	}
	return nil
}

// NonbiasWeightDecay adds Rate times each weight to its gradient. Bias
// nodes, those whose name ends in "/b", are not decayed.
type NonbiasWeightDecay struct {
	Rate float64
}

// Name returns the name of the hook
func (NonbiasWeightDecay) Name() string {
	return "NonbiasWeightDecay"
}

// Apply implements the Hook interface
func (d NonbiasWeightDecay) Apply(model []G.ValueGrad) error {
	for i := range model {
		if IsBias(model[i]) {
			continue
		}
		g, err := gradient(model[i])
		if err != nil {
			return fmt.Errorf("apply: %v", err)
		}
		p, ok := model[i].Value().Data().([]float64)
		if !ok {
			return fmt.Errorf("apply: expected float64 weights, have %T",
				model[i].Value().Data())
		}
		floats.AddScaled(g, d.Rate, p)
	}
	return nil
}

// IsBias returns whether a learnable is a bias node
func IsBias(v G.ValueGrad) bool {
	named, ok := v.(interface{ Name() string })
	return ok && strings.HasSuffix(named.Name(), "/b")
}

// gradient returns the float64 gradient data of v, which is modified
// in place by hooks
func gradient(v G.ValueGrad) ([]float64, error) {
	grad, err := v.Grad()
	if err != nil {
		return nil, err
	}
	g, ok := grad.Data().([]float64)
	if !ok {
		return nil, fmt.Errorf("gradient: expected float64 gradient, have %T",
			grad.Data())
	}
	return g, nil
}
