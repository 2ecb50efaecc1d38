package experiment

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/samuelfneumann/spiral/agent"
	"github.com/samuelfneumann/spiral/environment"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ErrEvaluationLength is returned when an evaluation is not given
// exactly one of a step budget or an episode count
var ErrEvaluationLength = errors.New("exactly one of nSteps and " +
	"nEpisodes must be positive")

// EvaluationStats holds the results of evaluation episodes
type EvaluationStats struct {
	// Returns holds the undiscounted return of each episode
	Returns []float64

	// Lengths holds the number of steps of each episode
	Lengths []int

	// Scores holds the agent's score of each episode, if the agent
	// is an agent.Scorer
	Scores []float64

	Mean, Median, Stdev, Min, Max float64
}

// Episodes returns the number of evaluated episodes
func (e EvaluationStats) Episodes() int {
	return len(e.Returns)
}

// RunEvaluationEpisodes runs agent in env in evaluation mode. Exactly
// one of nSteps and nEpisodes must be positive: evaluation stops once
// nSteps total steps have been taken or nEpisodes episodes have ended.
// An episode ends when the environment ends it or after maxEpisodeLen
// steps, if maxEpisodeLen is positive. If all steps are used by a
// single unfinished episode, its return is reported.
//
// The agent's previous mode is restored when evaluation finishes.
func RunEvaluationEpisodes(env environment.Environment, a agent.Agent,
	nSteps, nEpisodes, maxEpisodeLen int,
	logger *zap.Logger) (EvaluationStats, error) {
	if (nSteps > 0) == (nEpisodes > 0) {
		return EvaluationStats{}, fmt.Errorf("runEvaluationEpisodes: %w "+
			"\n\thave(nSteps=%v, nEpisodes=%v)", ErrEvaluationLength, nSteps,
			nEpisodes)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if !a.IsEval() {
		a.Eval()
		defer a.Train()
	}
	scorer, canScore := a.(agent.Scorer)

	var stats EvaluationStats
	var timestep, episodeLen int
	var episodeReturn float64
	reset, terminate := true, false

	for !terminate {
		if reset {
			step, err := env.Reset()
			if err != nil {
				return stats, fmt.Errorf("runEvaluationEpisodes: %w", err)
			}
			if err := a.ObserveFirst(step); err != nil {
				return stats, fmt.Errorf("runEvaluationEpisodes: %w", err)
			}
			episodeLen, episodeReturn = 0, 0
		}

		action, err := a.SelectAction(env.LastTimeStep())
		if err != nil {
			return stats, fmt.Errorf("runEvaluationEpisodes: %w", err)
		}
		step, done, err := env.Step(action)
		if err != nil {
			return stats, fmt.Errorf("runEvaluationEpisodes: %w", err)
		}
		if err := a.Observe(action, step); err != nil {
			return stats, fmt.Errorf("runEvaluationEpisodes: %w", err)
		}

		episodeReturn += step.Reward
		episodeLen++
		timestep++

		reset = done || step.Last() ||
			(maxEpisodeLen > 0 && episodeLen >= maxEpisodeLen)
		if nSteps > 0 {
			terminate = timestep >= nSteps
		}

		if reset || terminate {
			if err := a.EndEpisode(); err != nil {
				return stats, fmt.Errorf("runEvaluationEpisodes: %w", err)
			}
		}
		if reset || (terminate && len(stats.Returns) == 0) {
			stats.Returns = append(stats.Returns, episodeReturn)
			stats.Lengths = append(stats.Lengths, episodeLen)
			fields := []zap.Field{
				zap.Int("episode", len(stats.Returns)-1),
				zap.Int("length", episodeLen),
				zap.Float64("return", episodeReturn),
			}
			if canScore {
				stats.Scores = append(stats.Scores, scorer.LastScore())
				fields = append(fields, zap.Float64("score",
					scorer.LastScore()))
			}
			logger.Info("evaluation episode", fields...)
		}
		if nEpisodes > 0 {
			terminate = len(stats.Returns) >= nEpisodes
		}
	}

	stats.summarize()
	return stats, nil
}

// summarize computes the summary statistics of the returns
func (e *EvaluationStats) summarize() {
	if len(e.Returns) == 0 {
		return
	}

	sorted := append([]float64{}, e.Returns...)
	sort.Float64s(sorted)

	e.Mean = stat.Mean(sorted, nil)
	e.Median = stat.Quantile(0.5, stat.Empirical, sorted, nil)
	e.Min = floats.Min(sorted)
	e.Max = floats.Max(sorted)
	if len(sorted) > 1 {
		e.Stdev = stat.StdDev(sorted, nil)
	}
	if math.IsNaN(e.Stdev) {
		e.Stdev = 0
	}
}
