// Package harness assembles a SPIRAL session from a resolved
// configuration and runs its evaluation.
//
// A session is built in a fixed order: the problem is dispatched, the
// generator weight path is checked, a sample environment is made, then
// the models, dataset, optimizers, generator weights, schedule, agent
// and step hook follow. Model weights are drawn from a source seeded
// with the configured seed.
package harness

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/samuelfneumann/spiral/agent/spiral"
	"github.com/samuelfneumann/spiral/config"
	"github.com/samuelfneumann/spiral/dataset"
	"github.com/samuelfneumann/spiral/environment"
	"github.com/samuelfneumann/spiral/environment/photoenhance"
	"github.com/samuelfneumann/spiral/experiment"
	"github.com/samuelfneumann/spiral/experiment/checkpointer"
	"github.com/samuelfneumann/spiral/experiment/trackers"
	"github.com/samuelfneumann/spiral/initwfn"
	"github.com/samuelfneumann/spiral/logging"
	"github.com/samuelfneumann/spiral/network"
	"github.com/samuelfneumann/spiral/solver"
	"go.uber.org/zap"
)

// Errors returned while assembling a session
var (
	ErrNoGeneratorWeights = errors.New("no generator weights given")
	ErrNotTestMode        = errors.New("environment only supports test mode")
)

// GradientClipThreshold is the global gradient norm both optimizers
// clip to
const GradientClipThreshold = 40

// EnvMaker makes the environment of process processIdx. The test flag
// requests an evaluation environment.
type EnvMaker func(processIdx int, test bool) (environment.Parameterized,
	error)

// PhotoEnhancementMaker returns the EnvMaker of the photo enhancement
// problem, which edits the photo at fileName. It only makes test
// environments.
func PhotoEnhancementMaker(c config.Config, fileName string) EnvMaker {
	return func(processIdx int, test bool) (environment.Parameterized,
		error) {
		if !test {
			return nil, fmt.Errorf("makeEnv: %w", ErrNotTestMode)
		}
		env, err := photoenhance.New(photoenhance.Config{
			BatchSize:       1,
			MaxEpisodeSteps: c.MaxEpisodeSteps,
			ImSize:          c.ImSize,
			FileName:        fileName,
		})
		if err != nil {
			return nil, fmt.Errorf("makeEnv: %w", err)
		}
		return env, nil
	}
}

// Options holds the command line options of a run
type Options struct {
	ConfigPath    string
	LoadGenerator string
	FileName      string
	OutImage      string
	Profile       bool
	ProfilePath   string
}

// Option configures optional parts of a Session
type Option func(*Session)

// WithEnvMaker replaces the EnvMaker selected by the problem
func WithEnvMaker(m EnvMaker) Option {
	return func(s *Session) {
		s.makeEnv = m
	}
}

// WithLogger sets the logger of the Session
func WithLogger(logger *zap.Logger) Option {
	return func(s *Session) {
		s.logger = logging.OrNop(logger)
	}
}

// Session holds everything assembled for a run
type Session struct {
	ID       string
	Config   config.Config
	Options  Options
	Schedule config.Schedule

	Generator     *network.Generator
	Discriminator *network.Discriminator
	GenOpt        *solver.Optimizer
	DisOpt        *solver.Optimizer
	Dataset       dataset.Dataset
	Agent         *spiral.SPIRAL
	StepHook      *checkpointer.StepHook

	makeEnv   EnvMaker
	sampleEnv environment.Parameterized
	logger    *zap.Logger
}

var runtimeOnce sync.Once

// ConfigureRuntime restricts the process to a single OS thread running
// Go code at a time. It only has an effect on its first call.
func ConfigureRuntime() {
	runtimeOnce.Do(func() {
		runtime.GOMAXPROCS(1)
	})
}

// New assembles a Session. On error, everything assembled so far is
// released.
func New(c config.Config, opts Options, options ...Option) (*Session,
	error) {
	s := &Session{
		ID:      uuid.NewString(),
		Config:  c,
		Options: opts,
		logger:  zap.NewNop(),
	}
	for _, opt := range options {
		opt(s)
	}
	s.logger = s.logger.With(zap.String("run_id", s.ID))

	if err := s.assemble(); err != nil {
		if closeErr := s.Close(); closeErr != nil {
			err = multierror.Append(err, closeErr)
		}
		return nil, fmt.Errorf("new: %w", err)
	}
	return s, nil
}

// assemble builds the parts of the Session in order
func (s *Session) assemble() error {
	c := s.Config

	switch c.Problem {
	case config.PhotoEnhancement:
		if s.makeEnv == nil {
			s.makeEnv = PhotoEnhancementMaker(c, s.Options.FileName)
		}
	default:
		return c.Problem.Validate()
	}

	if s.Options.LoadGenerator == "" {
		return ErrNoGeneratorWeights
	}

	var err error
	s.sampleEnv, err = s.makeEnv(0, true)
	if err != nil {
		return err
	}

	init, err := initwfn.Parse(c.WeightInit, c.Seed)
	if err != nil {
		return err
	}
	s.Generator, err = network.NewGenerator(c.ImSize,
		s.sampleEnv.NumParameters(), c.LStages, c.Conditional,
		init.InitWFn())
	if err != nil {
		return err
	}
	s.Discriminator, err = network.NewDiscriminator(c.ImSize, c.Conditional,
		init.InitWFn())
	if err != nil {
		return err
	}

	s.Dataset, err = dataset.NewPhotoEnhancement(c.DatasetDir, c.ImSize)
	if err != nil {
		return err
	}

	s.GenOpt, s.DisOpt, err = SetupOptimizers(c, s.Generator,
		s.Discriminator)
	if err != nil {
		return err
	}

	if err := network.LoadNPZ(s.Options.LoadGenerator,
		s.Generator); err != nil {
		return err
	}
	s.logger.Info("loaded generator weights",
		zap.String("path", s.Options.LoadGenerator))

	s.Schedule = config.Derive(c)

	s.Agent, err = spiral.New(s.Generator, s.Discriminator, s.GenOpt,
		s.DisOpt, s.Dataset, AgentConfig(c), spiral.WithLogger(s.logger))
	if err != nil {
		return err
	}

	s.StepHook = checkpointer.NewStepHook(c.MaxEpisodeSteps,
		s.Schedule.SaveInterval, "", s.Agent, s.logger)

	s.logger.Debug("session assembled",
		zap.Int("steps", s.Schedule.Steps),
		zap.Int("save_interval", s.Schedule.SaveInterval),
		zap.Int("eval_interval", s.Schedule.EvalInterval))
	return nil
}

// AgentConfig returns the SPIRAL agent configuration of a run. The
// demo writes no output directory and acts deterministically.
func AgentConfig(c config.Config) spiral.Config {
	return spiral.Config{
		Conditional:           c.Conditional,
		RewardMode:            spiral.RewardMode(c.RewardMode),
		ImSize:                c.ImSize,
		MaxEpisodeSteps:       c.MaxEpisodeSteps,
		RolloutN:              c.RolloutN,
		Gamma:                 c.Gamma,
		Alpha:                 c.Alpha,
		Beta:                  c.Beta,
		LStages:               c.LStages,
		UUpdate:               c.UUpdate,
		GPLambda:              c.GPLambda,
		NSaveFinalObsInterval: c.NSaveFinalObsInterval,
		OutDir:                "",
		ActDeterministically:  true,
		Seed:                  c.Seed,
	}
}

// SetupOptimizers returns Adam optimizers set up on the generator and
// discriminator. Both clip gradients, and both decay non-bias weights
// when the configured weight decay is positive.
func SetupOptimizers(c config.Config, gen solver.Model,
	dis solver.Model) (*solver.Optimizer, *solver.Optimizer, error) {
	genOpt, err := newOptimizer(c, gen)
	if err != nil {
		return nil, nil, fmt.Errorf("setupOptimizers: generator: %w", err)
	}
	disOpt, err := newOptimizer(c, dis)
	if err != nil {
		return nil, nil, fmt.Errorf("setupOptimizers: discriminator: %w",
			err)
	}
	return genOpt, disOpt, nil
}

func newOptimizer(c config.Config, model solver.Model) (*solver.Optimizer,
	error) {
	opt, err := solver.NewDefaultAdam(c.LR)
	if err != nil {
		return nil, err
	}
	if err := opt.Setup(model); err != nil {
		return nil, err
	}
	if err := opt.AddHook(solver.GradientClipping{
		Threshold: GradientClipThreshold,
	}); err != nil {
		return nil, err
	}
	if c.WeightDecay > 0 {
		if err := opt.AddHook(solver.NonbiasWeightDecay{
			Rate: c.WeightDecay,
		}); err != nil {
			return nil, err
		}
	}
	return opt, nil
}

// Evaluate runs one evaluation episode capped at a single step on a
// new test environment. If an output image is set, the final canvas is
// written to it.
func (s *Session) Evaluate() (stats experiment.EvaluationStats,
	err error) {
	env, err := s.makeEnv(0, true)
	if err != nil {
		return stats, fmt.Errorf("evaluate: %w", err)
	}
	defer func() {
		if closeErr := closeEnv(env); closeErr != nil {
			err = multierror.Append(err, fmt.Errorf("evaluate: %w",
				closeErr))
		}
	}()

	stats, err = experiment.RunEvaluationEpisodes(env, s.Agent, 0, 1, 1,
		s.logger)
	if err != nil {
		return stats, fmt.Errorf("evaluate: %w", err)
	}

	if s.Options.OutImage != "" {
		saver, ok := env.(interface{ SaveImage(string) error })
		if !ok {
			return stats, fmt.Errorf("evaluate: environment %T cannot save "+
				"images", env)
		}
		if err := saver.SaveImage(s.Options.OutImage); err != nil {
			return stats, fmt.Errorf("evaluate: %w", err)
		}
		s.logger.Info("saved enhanced image",
			zap.String("path", s.Options.OutImage))
	}
	return stats, nil
}

// NewTrainer returns an online experiment training the session's agent
// on env for the scheduled number of steps, evaluating on evalEnv at
// the scheduled interval. The step hook is called after every step.
func (s *Session) NewTrainer(env, evalEnv environment.Environment,
	t ...trackers.Tracker) *experiment.Online {
	o := experiment.NewOnline(env, s.Agent, s.Schedule.Steps,
		[]experiment.StepHook{s.StepHook}, s.logger, t...)
	if evalEnv != nil {
		o.EvaluateEvery(evalEnv, s.Schedule.EvalInterval, 1,
			s.Schedule.MaxEpisodeLen)
	}
	return o
}

// Logger returns the logger of the Session
func (s *Session) Logger() *zap.Logger {
	return s.logger
}

// Close releases the models and the sample environment
func (s *Session) Close() error {
	var result *multierror.Error
	if s.sampleEnv != nil {
		if err := closeEnv(s.sampleEnv); err != nil {
			result = multierror.Append(result, err)
		}
		s.sampleEnv = nil
	}
	if s.Generator != nil {
		if err := s.Generator.Close(); err != nil {
			result = multierror.Append(result, err)
		}
		s.Generator = nil
	}
	if s.Discriminator != nil {
		if err := s.Discriminator.Close(); err != nil {
			result = multierror.Append(result, err)
		}
		s.Discriminator = nil
	}
	return result.ErrorOrNil()
}

func closeEnv(env environment.Environment) error {
	if c, ok := env.(environment.Closer); ok {
		return c.Close()
	}
	return nil
}
