// Package solver implements optimizers that update the learnables of
// Gorgonia models.
//
// An Optimizer wraps a Gorgonia Solver. It is bound to exactly one
// model with Setup, after which update hooks may be registered. On each
// Update, the hooks transform the model's gradients in registration
// order before the wrapped Solver steps.
package solver

import (
	"errors"
	"fmt"

	G "gorgonia.org/gorgonia"
)

var (
	// ErrAlreadySetup is returned when an Optimizer is bound to a
	// second model
	ErrAlreadySetup = errors.New("optimizer already set up")

	// ErrNotSetup is returned when an Optimizer is used before being
	// bound to a model
	ErrNotSetup = errors.New("optimizer not set up")
)

// Model is a model whose learnables can be updated
type Model interface {
	Model() []G.ValueGrad
}

// Config implements a Gorgonia Solver configuration and can be used to
// create Gorgonia Solvers they describe.
type Config interface {
	Create() G.Solver
}

// Optimizer updates the learnables of a single model
type Optimizer struct {
	G.Solver
	Config

	model Model
	hooks []Hook
}

// New returns a new Optimizer that steps the Solver described by c
func New(c Config) *Optimizer {
	return &Optimizer{
		Solver: c.Create(),
		Config: c,
	}
}

// Setup binds the Optimizer to model
func (o *Optimizer) Setup(model Model) error {
	if o.model != nil {
		return fmt.Errorf("setup: %w", ErrAlreadySetup)
	}
	if model == nil {
		return fmt.Errorf("setup: nil model")
	}
	o.model = model
	return nil
}

// IsSetup returns whether the Optimizer has been bound to a model
func (o *Optimizer) IsSetup() bool {
	return o.model != nil
}

// AddHook appends a hook to the Optimizer's hooks
func (o *Optimizer) AddHook(h Hook) error {
	if o.model == nil {
		return fmt.Errorf("addHook: %w", ErrNotSetup)
	}
	o.hooks = append(o.hooks, h)
	return nil
}

// Hooks returns the hooks of the Optimizer in registration order
func (o *Optimizer) Hooks() []Hook {
	hooks := make([]Hook, len(o.hooks))
	copy(hooks, o.hooks)
	return hooks
}

// Update applies the hooks to the gradients of the model in
// registration order and then steps the Solver
func (o *Optimizer) Update() error {
	if o.model == nil {
		return fmt.Errorf("update: %w", ErrNotSetup)
	}

	model := o.model.Model()
	for _, h := range o.hooks {
		if err := h.Apply(model); err != nil {
			return fmt.Errorf("update: hook %v: %w", h.Name(), err)
		}
	}
	return o.Solver.Step(model)
}
