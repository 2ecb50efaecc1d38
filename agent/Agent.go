// Package agent defines an agent interface
package agent

import (
	"github.com/samuelfneumann/spiral/timestep"
	"gonum.org/v1/gonum/mat"
)

// Agent determines the implementation details of an agent or algorithm
//
// An Agent is composed of a Learner, which learns weights, and a Policy
// which chooses actions in each state. The Policy chooses which actions
// are taken, and the Learner uses these actions to update the Policy.
type Agent interface {
	Learner
	Policy
}

// Learner implements a learning algorithm that defines how weights are
// updated.
type Learner interface {
	// Step performs a single update to the learner if one is due
	Step() error

	// Observe records that an action lead to some timestep
	Observe(action mat.Vector, nextObs timestep.TimeStep) error

	// ObserveFirst records the first timestep in an episode
	ObserveFirst(timestep.TimeStep) error

	// EndEpisode performs cleanup at the end of an episode
	EndEpisode() error
}

// Policy represents a policy that an agent can have.
//
// Policies determine how agents select actions. The Policy and Learner
// of an Agent should have pointers to the same weights so that any
// changes the learner makes to the weights are reflected in the actions
// the Policy chooses
type Policy interface {
	SelectAction(t timestep.TimeStep) (*mat.VecDense, error)
	Eval()        // Set policy to evaluation mode
	Train()       // Set policy to training mode
	IsEval() bool // Indicates if in evaluation mode
}

// Scorer is an Agent that scores the final observation of each episode
type Scorer interface {
	Agent

	// LastScore returns the score of the most recently ended episode
	LastScore() float64
}

// Saver is an Agent whose weights can be saved to a directory
type Saver interface {
	Save(dir string) error
}
