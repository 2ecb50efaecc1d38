// Package experiment implements functionality for running an experiment
package experiment

import (
	"github.com/samuelfneumann/spiral/agent"
	"github.com/samuelfneumann/spiral/environment"
	"github.com/samuelfneumann/spiral/experiment/trackers"
)

// Interface Experiment outlines structs that can run experiments.
// Experiments send each environment TimeStep to Trackers, which cache
// the data they need in RAM until Save() is called, usually after the
// experiment has been run. The Run() method runs all episodes until
// the maximum timestep limit is reached. The RunEpisode() method runs
// a single episode.
type Experiment interface {
	Run() error

	// RunEpisode returns whether or not the step limit was reached
	RunEpisode() (bool, error)

	// Save all tracked data to disk
	Save() error

	// Adds a new Tracker to the (possibly already running) experiment.
	// Useful if you want to track data only after a specified event.
	Register(t trackers.Tracker)
}

// StepHook is called after every environment step of an experiment
// with the total number of steps taken so far
type StepHook interface {
	Call(env environment.Environment, agent agent.Agent, step int) error
}

// StepHookFunc adapts a function to the StepHook interface
type StepHookFunc func(environment.Environment, agent.Agent, int) error

// Call implements the StepHook interface
func (f StepHookFunc) Call(env environment.Environment, agent agent.Agent,
	step int) error {
	return f(env, agent, step)
}
