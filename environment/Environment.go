// Package environment outlines the interfaces and structs needed to
// implement concrete environments
package environment

import (
	"errors"

	"github.com/samuelfneumann/spiral/timestep"
	"gonum.org/v1/gonum/mat"
)

// ErrInvalidAction is returned when an action does not match the
// action specification of an environment.
var ErrInvalidAction = errors.New("invalid action")

// Ender determines when an episode should end
type Ender interface {
	// End checks whether the argument TimeStep ends the episode. If so,
	// End marks the TimeStep as timestep.Last and returns true.
	End(*timestep.TimeStep) bool
}

// Environment implements a simulated environment which an agent acts
// in.
//
// An Environment owns its own internal state. Reset must be called
// before the first Step of each episode.
type Environment interface {
	Reset() (timestep.TimeStep, error)
	Step(action mat.Vector) (timestep.TimeStep, bool, error)
	LastTimeStep() timestep.TimeStep

	ObservationSpec() Spec
	ActionSpec() Spec
	DiscountSpec() Spec
}

// Parameterized is an Environment whose actions are a fixed number of
// continuous parameters, such as the strengths of image edits.
type Parameterized interface {
	Environment

	// NumParameters returns the number of parameters in each action
	NumParameters() int
}

// Closer is an Environment that holds resources which must be
// released once the environment is no longer used.
type Closer interface {
	Environment
	Close() error
}
