package experiment

import (
	"fmt"

	"github.com/samuelfneumann/spiral/agent"
	env "github.com/samuelfneumann/spiral/environment"
	"github.com/samuelfneumann/spiral/experiment/trackers"
	"github.com/samuelfneumann/spiral/logging"
	ts "github.com/samuelfneumann/spiral/timestep"
	"go.uber.org/zap"
)

// Online is an Experiment that trains an agent online. Step hooks are
// called after every step, and if an evaluation environment is set the
// agent is periodically evaluated on it.
type Online struct {
	env.Environment
	agent.Agent
	maxSteps     int
	currentSteps int
	trackers     []trackers.Tracker
	hooks        []StepHook
	logger       *zap.Logger

	evalEnv       env.Environment
	evalInterval  int
	evalEpisodes  int
	maxEpisodeLen int
	evalDue       bool
	evaluations   []EvaluationStats
}

// NewOnline creates and returns a new online experiment on a given
// environment with a given agent. The steps parameter determines how
// many timesteps the experiment is run for, the hooks are called after
// each step, and the t parameter is a slice of trackers.Tracker which
// determine what data is saved.
func NewOnline(e env.Environment, a agent.Agent, steps int,
	hooks []StepHook, logger *zap.Logger, t ...trackers.Tracker) *Online {
	return &Online{
		Environment: e,
		Agent:       a,
		maxSteps:    steps,
		trackers:    t,
		hooks:       hooks,
		logger:      logging.OrNop(logger),
	}
}

// EvaluateEvery makes the experiment evaluate the agent on e for
// episodes episodes of at most maxEpisodeLen steps each, every interval
// training steps. Evaluation waits until the current training episode
// has ended. A non-positive interval disables evaluation.
func (o *Online) EvaluateEvery(e env.Environment, interval, episodes,
	maxEpisodeLen int) {
	o.evalEnv = e
	o.evalInterval = interval
	o.evalEpisodes = episodes
	o.maxEpisodeLen = maxEpisodeLen
}

// Register registers a trackers.Tracker with the experiment so that
// data generated during the experiment can be tracked and saved
func (o *Online) Register(t trackers.Tracker) {
	o.trackers = append(o.trackers, t)
}

// Steps returns the number of steps taken so far
func (o *Online) Steps() int {
	return o.currentSteps
}

// Evaluations returns the results of all evaluations run so far
func (o *Online) Evaluations() []EvaluationStats {
	return o.evaluations
}

// RunEpisode runs a single episode of the experiment
func (o *Online) RunEpisode() (bool, error) {
	step, err := o.Environment.Reset()
	if err != nil {
		return false, fmt.Errorf("runEpisode: %w", err)
	}
	if err := o.Agent.ObserveFirst(step); err != nil {
		return false, fmt.Errorf("runEpisode: %w", err)
	}
	if err := o.track(step); err != nil {
		return false, fmt.Errorf("runEpisode: %w", err)
	}

	// Run the next timestep
	for !step.Last() && o.currentSteps < o.maxSteps {
		o.currentSteps++

		// Select action, step in environment
		action, err := o.Agent.SelectAction(step)
		if err != nil {
			return false, fmt.Errorf("runEpisode: %w", err)
		}
		step, _, err = o.Environment.Step(action)
		if err != nil {
			return false, fmt.Errorf("runEpisode: %w", err)
		}

		// Cache the environment step in each Tracker
		if err := o.track(step); err != nil {
			return false, fmt.Errorf("runEpisode: %w", err)
		}

		// Observe the timestep and step the agent
		if err := o.Agent.Observe(action, step); err != nil {
			return false, fmt.Errorf("runEpisode: %w", err)
		}
		if err := o.Agent.Step(); err != nil {
			return false, fmt.Errorf("runEpisode: %w", err)
		}

		for _, hook := range o.hooks {
			if err := hook.Call(o.Environment, o.Agent,
				o.currentSteps); err != nil {
				return false, fmt.Errorf("runEpisode: %w", err)
			}
		}
		if o.evalInterval > 0 && o.currentSteps%o.evalInterval == 0 {
			o.evalDue = true
		}
	}

	if err := o.Agent.EndEpisode(); err != nil {
		return false, fmt.Errorf("runEpisode: %w", err)
	}
	if err := o.Agent.Step(); err != nil {
		return false, fmt.Errorf("runEpisode: %w", err)
	}

	if o.evalDue && o.evalEnv != nil {
		o.evalDue = false
		stats, err := RunEvaluationEpisodes(o.evalEnv, o.Agent, 0,
			o.evalEpisodes, o.maxEpisodeLen, o.logger)
		if err != nil {
			return false, fmt.Errorf("runEpisode: %w", err)
		}
		o.evaluations = append(o.evaluations, stats)
		o.logger.Info("evaluation",
			zap.Int("step", o.currentSteps),
			zap.Float64("mean", stats.Mean),
			zap.Float64("median", stats.Median))
	}

	// Return whether or not the max timestep limit has been reached
	return o.currentSteps >= o.maxSteps, nil
}

// Run runs the entire experiment for all timesteps
func (o *Online) Run() error {
	for {
		ended, err := o.RunEpisode()
		if err != nil {
			return fmt.Errorf("run: %w", err)
		}
		if ended {
			return nil
		}
	}
}

// Save saves all the data cached by the Trackers to disk
func (o *Online) Save() error {
	for _, t := range o.trackers {
		if err := t.Save(); err != nil {
			return fmt.Errorf("save: %w", err)
		}
	}
	return nil
}

// track tracks the current timestep by caching its data in each Tracker
func (o *Online) track(t ts.TimeStep) error {
	for _, tracker := range o.trackers {
		if err := tracker.Track(t); err != nil {
			return err
		}
	}
	return nil
}
