// Package spiral implements the SPIRAL agent: a generator policy that
// edits a canvas over an episode, trained with REINFORCE on a reward
// computed from the final canvas, and a discriminator that provides the
// adversarial reward.
package spiral

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/samuelfneumann/spiral/dataset"
	"github.com/samuelfneumann/spiral/logging"
	"github.com/samuelfneumann/spiral/network"
	"github.com/samuelfneumann/spiral/solver"
	ts "github.com/samuelfneumann/spiral/timestep"
	"github.com/samuelfneumann/spiral/utils/floatutils"
	"github.com/samuelfneumann/spiral/utils/imageutils"
	"go.uber.org/zap"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// ErrNoEpisode is returned when the agent observes a step before the
// first step of an episode
var ErrNoEpisode = errors.New("no episode in progress")

// Filenames of saved weights
const (
	GeneratorFile     = "generator.npz"
	DiscriminatorFile = "discriminator.npz"
)

// episode stores the interaction of a single training episode
type episode struct {
	inputs    [][]float64
	actions   [][]float64
	rewards   []float64
	condition []float64
	final     []float64
}

// SPIRAL implements the SPIRAL agent
type SPIRAL struct {
	config Config
	logger *zap.Logger

	generator     *network.Generator
	discriminator *network.Discriminator
	genOpt        *solver.Optimizer
	disOpt        *solver.Optimizer
	dataset       dataset.Dataset

	rng   *rand.Rand
	noise distuv.Normal
	eval  bool

	prevStep     ts.TimeStep
	started      bool
	current      *episode
	rollout      []*episode
	pending      bool
	episodes     int
	updates      int
	baseline     float64
	lastScore    float64
	warnedNoData bool
}

// Option configures optional parts of a SPIRAL agent
type Option func(*SPIRAL)

// WithLogger sets the logger of the agent
func WithLogger(logger *zap.Logger) Option {
	return func(s *SPIRAL) {
		s.logger = logging.OrNop(logger)
	}
}

// New returns a new SPIRAL agent. Both optimizers must already be set
// up on their models. A zero StdDev or BaselineDecay selects the
// package default.
func New(gen *network.Generator, dis *network.Discriminator, genOpt,
	disOpt *solver.Optimizer, data dataset.Dataset, c Config,
	opts ...Option) (*SPIRAL, error) {
	if c.StdDev == 0 {
		c.StdDev = DefaultStdDev
	}
	if c.BaselineDecay == 0 {
		c.BaselineDecay = DefaultBaselineDecay
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("new: %w", err)
	}

	if gen == nil || dis == nil {
		return nil, fmt.Errorf("new: %w: generator and discriminator are "+
			"required", ErrInvalidConfig)
	}
	genSpec := gen.Spec()
	if genSpec.ImSize != c.ImSize || genSpec.LStages != c.LStages ||
		genSpec.Conditional != c.Conditional {
		return nil, fmt.Errorf("new: %w: generator does not match "+
			"configuration \n\twant(imsize=%v L_stages=%v conditional=%v) "+
			"\n\thave(%+v)", ErrInvalidConfig, c.ImSize, c.LStages,
			c.Conditional, genSpec)
	}
	disSpec := dis.Spec()
	if disSpec.ImSize != c.ImSize || disSpec.Conditional != c.Conditional {
		return nil, fmt.Errorf("new: %w: discriminator does not match "+
			"configuration \n\twant(imsize=%v conditional=%v) \n\thave(%+v)",
			ErrInvalidConfig, c.ImSize, c.Conditional, disSpec)
	}
	if genOpt == nil || !genOpt.IsSetup() || disOpt == nil ||
		!disOpt.IsSetup() {
		return nil, fmt.Errorf("new: %w", solver.ErrNotSetup)
	}

	source := rand.NewSource(c.Seed)
	s := &SPIRAL{
		config:        c,
		logger:        zap.NewNop(),
		generator:     gen,
		discriminator: dis,
		genOpt:        genOpt,
		disOpt:        disOpt,
		dataset:       data,
		rng:           rand.New(source),
		noise: distuv.Normal{
			Mu:    0,
			Sigma: c.StdDev,
			Src:   source,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Config returns the configuration of the agent
func (s *SPIRAL) Config() Config {
	return s.config
}

// Eval sets the agent into evaluation mode
func (s *SPIRAL) Eval() { s.eval = true }

// Train sets the agent into training mode
func (s *SPIRAL) Train() { s.eval = false }

// IsEval returns whether the agent is in evaluation mode
func (s *SPIRAL) IsEval() bool { return s.eval }

// LastScore returns the score of the final canvas of the most recently
// ended episode
func (s *SPIRAL) LastScore() float64 {
	return s.lastScore
}

// Episodes returns the number of episodes the agent has ended
func (s *SPIRAL) Episodes() int {
	return s.episodes
}

// Updates returns the number of rollout groups the agent has trained on
func (s *SPIRAL) Updates() int {
	return s.updates
}

// SelectAction returns the edit strengths to apply at timestep t. In
// evaluation mode with ActDeterministically set, the generator's means
// are returned. Otherwise, actions are sampled from a Gaussian around
// the means and clipped to [-1, 1].
func (s *SPIRAL) SelectAction(t ts.TimeStep) (*mat.VecDense, error) {
	if !s.started {
		return nil, fmt.Errorf("selectAction: %w", ErrNoEpisode)
	}

	means, err := s.generator.Act(s.generatorInput(t.Observation))
	if err != nil {
		return nil, fmt.Errorf("selectAction: %w", err)
	}

	if !(s.eval && s.config.ActDeterministically) {
		for i := range means {
			means[i] += s.noise.Rand()
		}
	}
	action := mat.NewVecDense(len(means), means)
	floatutils.ClipVec(action, -1, 1)
	return action, nil
}

// ObserveFirst records the first timestep of an episode. Its
// observation is the condition of the episode.
func (s *SPIRAL) ObserveFirst(t ts.TimeStep) error {
	if !t.First() {
		s.logger.Warn("observeFirst called on a timestep that is not first",
			zap.Int("step", t.Number))
	}
	if t.Observation == nil {
		return fmt.Errorf("observeFirst: nil observation")
	}

	s.prevStep = t
	s.started = true
	s.current = &episode{condition: copyVector(t.Observation)}
	return nil
}

// Observe records that action lead to nextStep
func (s *SPIRAL) Observe(action mat.Vector, nextStep ts.TimeStep) error {
	if !s.started {
		return fmt.Errorf("observe: %w", ErrNoEpisode)
	}

	if !s.eval {
		s.current.inputs = append(s.current.inputs,
			s.generatorInput(s.prevStep.Observation))
		s.current.actions = append(s.current.actions, copyVector(action))
		s.current.rewards = append(s.current.rewards, nextStep.Reward)
	}
	s.prevStep = nextStep
	return nil
}

// EndEpisode scores the final canvas of the episode. In training mode,
// the score is added to the reward of the last step and the episode is
// stored for the next update.
func (s *SPIRAL) EndEpisode() error {
	if !s.started {
		return fmt.Errorf("endEpisode: %w", ErrNoEpisode)
	}
	s.started = false

	final := copyVector(s.prevStep.Observation)
	score, err := s.score(final, s.current.condition)
	if err != nil {
		return fmt.Errorf("endEpisode: %w", err)
	}
	s.lastScore = score
	s.episodes++

	if err := s.saveFinalObs(final); err != nil {
		return fmt.Errorf("endEpisode: %w", err)
	}

	if s.eval || len(s.current.rewards) == 0 {
		return nil
	}
	s.current.final = final
	s.current.rewards[len(s.current.rewards)-1] += score
	s.rollout = append(s.rollout, s.current)
	s.pending = len(s.rollout) >= s.config.RolloutN
	return nil
}

// Step trains the agent on the stored rollout once RolloutN episodes
// have ended. The generator takes one REINFORCE step per stored
// timestep; every UUpdate rollouts the discriminator is also updated.
// Step does nothing in evaluation mode.
func (s *SPIRAL) Step() error {
	if s.eval || !s.pending {
		return nil
	}

	if err := s.updateGenerator(); err != nil {
		return fmt.Errorf("step: %w", err)
	}
	s.updates++

	if s.config.RewardMode.Adversarial() &&
		s.updates%s.config.UUpdate == 0 {
		if err := s.updateDiscriminator(); err != nil {
			return fmt.Errorf("step: %w", err)
		}
	}

	s.rollout = s.rollout[:0]
	s.pending = false
	return nil
}

// updateGenerator performs the REINFORCE updates of the generator with
// discounted returns minus a running baseline
func (s *SPIRAL) updateGenerator() error {
	variance := s.config.StdDev * s.config.StdDev
	returns := make([]float64, 0, len(s.rollout))

	var loss float64
	for _, ep := range s.rollout {
		g := discountedReturns(ep.rewards, s.config.Gamma)
		returns = append(returns, g[0])

		for t := range ep.inputs {
			coef := (g[t] - s.baseline) / (2 * variance)
			l, err := s.generator.Update(ep.inputs[t], ep.actions[t], coef,
				s.genOpt)
			if err != nil {
				return fmt.Errorf("updateGenerator: %w", err)
			}
			loss += l
		}
	}

	mean := stat.Mean(returns, nil)
	decay := s.config.BaselineDecay
	s.baseline = decay*s.baseline + (1-decay)*mean

	s.logger.Debug("generator update",
		zap.Int("update", s.updates+1),
		zap.Float64("mean_return", mean),
		zap.Float64("baseline", s.baseline),
		zap.Float64("loss", loss))
	return nil
}

// updateDiscriminator performs one critic update per stored episode
// against a real photo sampled from the dataset
func (s *SPIRAL) updateDiscriminator() error {
	if s.dataset == nil || s.dataset.Len() == 0 {
		if !s.warnedNoData {
			s.logger.Warn("no target photos, skipping discriminator updates")
			s.warnedNoData = true
		}
		return nil
	}

	penalty := s.config.GPLambda * DriftScale
	for _, ep := range s.rollout {
		target, err := s.dataset.Sample(s.rng)
		if err != nil {
			return fmt.Errorf("updateDiscriminator: %w", err)
		}
		if len(target) != len(ep.final) {
			return fmt.Errorf("updateDiscriminator: target photo has %v "+
				"values, canvas has %v", len(target), len(ep.final))
		}

		loss, err := s.discriminator.Update(
			s.discriminatorInput(target, ep.condition),
			s.discriminatorInput(ep.final, ep.condition),
			penalty,
			s.disOpt,
		)
		if err != nil {
			return fmt.Errorf("updateDiscriminator: %w", err)
		}
		s.logger.Debug("discriminator update", zap.Float64("loss", loss))
	}
	return nil
}

// score computes the reward of a final canvas
func (s *SPIRAL) score(final, condition []float64) (float64, error) {
	c := s.config
	var score float64

	if c.RewardMode.Adversarial() {
		critic, err := s.discriminator.Score(s.discriminatorInput(final,
			condition))
		if err != nil {
			return 0, err
		}

		if c.RewardMode == DCGAN {
			score = c.Alpha * logSigmoid(critic)
		} else {
			score = c.Alpha * critic
		}
		if !c.Conditional {
			return score, nil
		}
	}
	return score - c.Beta*floatutils.MSE(final, condition), nil
}

// Save writes the weights of the generator and discriminator to dir
func (s *SPIRAL) Save(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("save: %w", err)
	}
	if err := network.SaveNPZ(filepath.Join(dir, GeneratorFile),
		s.generator); err != nil {
		return fmt.Errorf("save: %w", err)
	}
	if err := network.SaveNPZ(filepath.Join(dir, DiscriminatorFile),
		s.discriminator); err != nil {
		return fmt.Errorf("save: %w", err)
	}
	s.logger.Info("saved agent", zap.String("dir", dir))
	return nil
}

// saveFinalObs writes the final canvas as a PNG every
// NSaveFinalObsInterval episodes if an output directory is set
func (s *SPIRAL) saveFinalObs(final []float64) error {
	interval := s.config.NSaveFinalObsInterval
	if s.config.OutDir == "" || interval <= 0 || s.episodes%interval != 0 {
		return nil
	}

	if err := os.MkdirAll(s.config.OutDir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(s.config.OutDir,
		fmt.Sprintf("%d_final_obs.png", s.episodes))
	return imageutils.SavePNG(path, final, s.config.ImSize)
}

// generatorInput returns the generator input for an observation
func (s *SPIRAL) generatorInput(obs mat.Vector) []float64 {
	input := copyVector(obs)
	if s.config.Conditional && s.current != nil {
		input = append(input, s.current.condition...)
	}
	return input
}

// discriminatorInput returns the discriminator input for an image
func (s *SPIRAL) discriminatorInput(img, condition []float64) []float64 {
	input := make([]float64, len(img), 2*len(img))
	copy(input, img)
	if s.config.Conditional {
		input = append(input, condition...)
	}
	return input
}

// discountedReturns returns the discounted return from each step
func discountedReturns(rewards []float64, gamma float64) []float64 {
	returns := make([]float64, len(rewards))
	var g float64
	for t := len(rewards) - 1; t >= 0; t-- {
		g = rewards[t] + gamma*g
		returns[t] = g
	}
	return returns
}

// logSigmoid returns log(1 / (1 + exp(-x)))
func logSigmoid(x float64) float64 {
	if x >= 0 {
		return -math.Log1p(math.Exp(-x))
	}
	return x - math.Log1p(math.Exp(x))
}

func copyVector(v mat.Vector) []float64 {
	out := make([]float64, v.Len())
	for i := range out {
		out[i] = v.AtVec(i)
	}
	return out
}
