// Package photoenhance implements the photo enhancement environment.
//
// An episode starts from a photo resized to a square canvas. On each
// step the agent chooses the strengths of a fixed set of global edits
// (see Edits), which are applied to the canvas in order. The episode
// ends after a fixed number of steps. The environment gives no reward;
// the agent judges the final canvas itself.
package photoenhance

import (
	"errors"
	"fmt"
	"image"

	"github.com/samuelfneumann/spiral/environment"
	ts "github.com/samuelfneumann/spiral/timestep"
	"github.com/samuelfneumann/spiral/utils/imageutils"
	"gonum.org/v1/gonum/mat"
)

// Errors returned by the environment
var (
	ErrBatchSize = errors.New("only a batch size of 1 is supported")
	ErrNotReset  = errors.New("environment must be reset before stepping")
)

// Config configures a photo enhancement environment
type Config struct {
	BatchSize       int
	MaxEpisodeSteps int
	ImSize          int
	FileName        string
	Discount        float64
}

// Validate returns an error describing whether or not the
// configuration is valid.
func (c Config) Validate() error {
	if c.BatchSize != 1 {
		return fmt.Errorf("validate: %w (have %v)", ErrBatchSize,
			c.BatchSize)
	}
	if c.MaxEpisodeSteps < 1 {
		return fmt.Errorf("validate: episodes must have a positive number "+
			"of steps \n\twant(>0) \n\thave(%v)", c.MaxEpisodeSteps)
	}
	if c.ImSize < 1 {
		return fmt.Errorf("validate: image size must be positive "+
			"\n\twant(>0) \n\thave(%v)", c.ImSize)
	}
	return nil
}

// Env is the photo enhancement environment
type Env struct {
	config   Config
	original []float64
	canvas   []float64
	ender    environment.StepLimit

	lastStep ts.TimeStep
	started  bool

	observationSpec environment.Spec
	actionSpec      environment.Spec
	discountSpec    environment.Spec
}

// New loads the photo named in the configuration and returns an
// environment editing it.
func New(c Config) (*Env, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("new: %w", err)
	}

	img, err := imageutils.Load(c.FileName, c.ImSize)
	if err != nil {
		return nil, fmt.Errorf("new: %w", err)
	}
	return newEnv(c, imageutils.ToVector(img))
}

// NewFromImage returns an environment editing img. The FileName of
// the configuration is ignored.
func NewFromImage(img image.Image, c Config) (*Env, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("newFromImage: %w", err)
	}
	return newEnv(c, imageutils.ToVector(imageutils.Resize(img, c.ImSize)))
}

func newEnv(c Config, original []float64) (*Env, error) {
	if c.Discount == 0 {
		c.Discount = 1.0
	}

	features := imageutils.Len(c.ImSize)
	if len(original) != features {
		return nil, fmt.Errorf("new: invalid canvas size \n\twant(%v) "+
			"\n\thave(%v)", features, len(original))
	}

	return &Env{
		config:   c,
		original: original,
		canvas:   make([]float64, features),
		ender:    environment.NewStepLimit(c.MaxEpisodeSteps),

		observationSpec: environment.NewBoxSpec(features,
			environment.Observation, 0, 1),
		actionSpec: environment.NewBoxSpec(len(Edits),
			environment.Action, -1, 1),
		discountSpec: environment.NewBoxSpec(1, environment.Discount,
			c.Discount, c.Discount),
	}, nil
}

// NumParameters returns the number of edit strengths in an action
func (e *Env) NumParameters() int {
	return len(Edits)
}

// ImSize returns the side length of the square canvas
func (e *Env) ImSize() int {
	return e.config.ImSize
}

// Reset restores the original photo and starts a new episode
func (e *Env) Reset() (ts.TimeStep, error) {
	copy(e.canvas, e.original)
	e.started = true
	e.lastStep = ts.New(ts.First, 0, e.config.Discount, e.observation(), 0)
	return e.lastStep, nil
}

// Step applies the edits in action to the canvas. The returned boolean
// is true when the episode has ended.
func (e *Env) Step(action mat.Vector) (ts.TimeStep, bool, error) {
	if !e.started || e.lastStep.Last() {
		return ts.TimeStep{}, false, fmt.Errorf("step: %w", ErrNotReset)
	}
	if action.Len() != len(Edits) {
		return ts.TimeStep{}, false, fmt.Errorf("step: %w: want %v "+
			"parameters, have %v", environment.ErrInvalidAction,
			len(Edits), action.Len())
	}
	if !e.actionSpec.Contains(action) {
		return ts.TimeStep{}, false, fmt.Errorf("step: %w: strengths must "+
			"lie in [-1, 1]", environment.ErrInvalidAction)
	}

	for i, edit := range Edits {
		edit(e.canvas, action.AtVec(i))
	}

	step := ts.New(ts.Mid, 0, e.config.Discount, e.observation(),
		e.lastStep.Number+1)
	done := e.ender.End(&step)
	e.lastStep = step

	return step, done, nil
}

// LastTimeStep returns the last TimeStep the environment produced
func (e *Env) LastTimeStep() ts.TimeStep {
	return e.lastStep
}

// Canvas returns a copy of the current canvas
func (e *Env) Canvas() []float64 {
	canvas := make([]float64, len(e.canvas))
	copy(canvas, e.canvas)
	return canvas
}

// SaveImage writes the current canvas to path as a PNG
func (e *Env) SaveImage(path string) error {
	return imageutils.SavePNG(path, e.canvas, e.config.ImSize)
}

// ObservationSpec returns the observation specification of the
// environment
func (e *Env) ObservationSpec() environment.Spec {
	return e.observationSpec
}

// ActionSpec returns the action specification of the environment
func (e *Env) ActionSpec() environment.Spec {
	return e.actionSpec
}

// DiscountSpec returns the discount specification of the environment
func (e *Env) DiscountSpec() environment.Spec {
	return e.discountSpec
}

func (e *Env) observation() *mat.VecDense {
	return mat.NewVecDense(len(e.canvas), e.Canvas())
}
