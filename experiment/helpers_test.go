package experiment

import (
	"errors"

	"github.com/samuelfneumann/spiral/environment"
	ts "github.com/samuelfneumann/spiral/timestep"
	"gonum.org/v1/gonum/mat"
)

// counter is an environment whose episodes last length steps, with a
// reward of 1 on every step
type counter struct {
	length int
	last   ts.TimeStep
	resets int
	steps  int
	fail   error
}

func (c *counter) Reset() (ts.TimeStep, error) {
	c.resets++
	c.last = ts.New(ts.First, 0, 1, mat.NewVecDense(1, nil), 0)
	return c.last, nil
}

func (c *counter) Step(mat.Vector) (ts.TimeStep, bool, error) {
	if c.fail != nil {
		return ts.TimeStep{}, false, c.fail
	}
	c.steps++
	n := c.last.Number + 1
	t := ts.Mid
	if n >= c.length {
		t = ts.Last
	}
	c.last = ts.New(t, 1, 1, mat.NewVecDense(1, []float64{float64(n)}), n)
	return c.last, t == ts.Last, nil
}

func (c *counter) LastTimeStep() ts.TimeStep { return c.last }

func (c *counter) ObservationSpec() environment.Spec {
	return environment.NewBoxSpec(1, environment.Observation, 0, 100)
}

func (c *counter) ActionSpec() environment.Spec {
	return environment.NewBoxSpec(1, environment.Action, -1, 1)
}

func (c *counter) DiscountSpec() environment.Spec {
	return environment.NewBoxSpec(1, environment.Discount, 1, 1)
}

// scripted is an agent that records its calls
type scripted struct {
	eval       bool
	evalCalls  int
	firsts     int
	observes   int
	ends       int
	steps      int
	score      float64
	selectErr  error
	selectMode []bool
}

var errScripted = errors.New("scripted failure")

func (s *scripted) SelectAction(ts.TimeStep) (*mat.VecDense, error) {
	s.selectMode = append(s.selectMode, s.eval)
	if s.selectErr != nil {
		return nil, s.selectErr
	}
	return mat.NewVecDense(1, nil), nil
}

func (s *scripted) Eval()        { s.eval = true; s.evalCalls++ }
func (s *scripted) Train()       { s.eval = false }
func (s *scripted) IsEval() bool { return s.eval }

func (s *scripted) Step() error { s.steps++; return nil }

func (s *scripted) Observe(mat.Vector, ts.TimeStep) error {
	s.observes++
	return nil
}

func (s *scripted) ObserveFirst(ts.TimeStep) error {
	s.firsts++
	return nil
}

func (s *scripted) EndEpisode() error {
	s.ends++
	s.score = float64(s.ends) / 2
	return nil
}

func (s *scripted) LastScore() float64 { return s.score }
