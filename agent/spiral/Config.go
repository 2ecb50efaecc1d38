package spiral

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is returned when a Config fails validation
var ErrInvalidConfig = errors.New("invalid agent configuration")

// RewardMode determines how the final canvas of an episode is scored
type RewardMode string

// Available reward modes
const (
	// WGANGP scores the canvas with the critic value alpha * D(x)
	WGANGP RewardMode = "wgangp"

	// DCGAN scores the canvas with alpha * log(sigmoid(D(x)))
	DCGAN RewardMode = "dcgan"

	// L2 scores the canvas with -beta * mse(x, condition)
	L2 RewardMode = "l2"
)

// Adversarial returns whether the reward mode uses the discriminator
func (r RewardMode) Adversarial() bool {
	return r == WGANGP || r == DCGAN
}

// Validate returns an error if r is not a known reward mode
func (r RewardMode) Validate() error {
	switch r {
	case WGANGP, DCGAN, L2:
		return nil
	}
	return fmt.Errorf("validate: %w: unknown reward mode %q",
		ErrInvalidConfig, string(r))
}

// Default values of the fixed agent settings
const (
	DefaultStdDev        = 0.25
	DefaultBaselineDecay = 0.9

	// DriftScale weights gp_lambda in the discriminator's drift penalty
	DriftScale = 1e-3
)

// Config describes the hyperparameters of a SPIRAL agent
type Config struct {
	Conditional           bool
	RewardMode            RewardMode
	ImSize                int
	MaxEpisodeSteps       int
	RolloutN              int
	Gamma                 float64
	Alpha                 float64
	Beta                  float64
	LStages               int
	UUpdate               int
	GPLambda              float64
	NSaveFinalObsInterval int
	OutDir                string
	ActDeterministically  bool

	// StdDev is the standard deviation of the Gaussian policy around
	// the generator's means
	StdDev float64

	// BaselineDecay is the decay of the running reward baseline
	BaselineDecay float64

	// Seed seeds action sampling and dataset sampling
	Seed uint64
}

// Validate returns an error if the Config is not valid
func (c Config) Validate() error {
	if err := c.RewardMode.Validate(); err != nil {
		return fmt.Errorf("validate: %w", err)
	}

	positive := []struct {
		name  string
		value int
	}{
		{"imsize", c.ImSize},
		{"max_episode_steps", c.MaxEpisodeSteps},
		{"rollout_n", c.RolloutN},
		{"L_stages", c.LStages},
		{"U_update", c.UUpdate},
	}
	for _, p := range positive {
		if p.value <= 0 {
			return fmt.Errorf("validate: %w: %v must be positive \n\thave(%v)",
				ErrInvalidConfig, p.name, p.value)
		}
	}

	if c.Gamma < 0 || c.Gamma > 1 {
		return fmt.Errorf("validate: %w: gamma must be in [0, 1] "+
			"\n\thave(%v)", ErrInvalidConfig, c.Gamma)
	}
	if c.Alpha < 0 || c.Beta < 0 || c.GPLambda < 0 {
		return fmt.Errorf("validate: %w: alpha, beta and gp_lambda must be "+
			"non-negative \n\thave(%v, %v, %v)", ErrInvalidConfig, c.Alpha,
			c.Beta, c.GPLambda)
	}
	if c.StdDev <= 0 {
		return fmt.Errorf("validate: %w: standard deviation must be "+
			"positive \n\thave(%v)", ErrInvalidConfig, c.StdDev)
	}
	if c.BaselineDecay < 0 || c.BaselineDecay >= 1 {
		return fmt.Errorf("validate: %w: baseline decay must be in [0, 1) "+
			"\n\thave(%v)", ErrInvalidConfig, c.BaselineDecay)
	}
	return nil
}
