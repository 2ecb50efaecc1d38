package trackers

import (
	"errors"
	"fmt"

	ts "github.com/samuelfneumann/spiral/timestep"
)

// ErrNotSequential is returned when a Tracker is given timesteps out
// of order
var ErrNotSequential = errors.New("timesteps are not sequential")

// Return tracks and saves the episodic return in an experiment. When
// an environment returns a TimeStep, this Tracker will extract the
// reward and accumulate the return for each episode in the experiment.
//
// Note: An episode must finish for this Tracker to save its data.
// If the last episode in an experiment does not finish, that episode's
// return will not be saved.
type Return struct {
	lastTimeStep   int
	currentReturn  float64
	episodeReturns []float64
	filename       string
}

// NewReturn creates and returns a new *Return Tracker. An empty
// filename keeps the data in memory only.
func NewReturn(filename string) *Return {
	return &Return{
		lastTimeStep: -1,
		filename:     filename,
	}
}

// Track tracks the rewards seen on a timestep. By calling this method
// on every timestep, the Tracker will store all rewards seen in the
// episode, and save the cumulative reward for that episode as the
// episodic return. A first timestep starts a new episode, discarding
// the return of an unfinished one.
func (r *Return) Track(step ts.TimeStep) error {
	if step.First() {
		r.currentReturn = 0
		r.lastTimeStep = step.Number
		return nil
	}

	if r.lastTimeStep+1 != step.Number {
		return fmt.Errorf("track: %w: timestep %v --> timestep %v",
			ErrNotSequential, r.lastTimeStep, step.Number)
	}

	r.currentReturn += step.Reward
	r.lastTimeStep = step.Number
	if step.Last() {
		r.episodeReturns = append(r.episodeReturns, r.currentReturn)
		r.currentReturn = 0.0
		r.lastTimeStep = -1
	}
	return nil
}

// Data returns the returns of all finished episodes
func (r *Return) Data() []float64 {
	return append([]float64{}, r.episodeReturns...)
}

// Save saves the data tracked by the Return Tracker to disk.
func (r *Return) Save() error {
	if r.filename == "" {
		return nil
	}
	if err := save(r.filename, r.episodeReturns); err != nil {
		return fmt.Errorf("save: %w", err)
	}
	return nil
}
