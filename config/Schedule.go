package config

// Schedule holds the step counts derived from a Config. All counts are
// in environment steps summed over processes.
type Schedule struct {
	MaxEpisodeLen int // Steps in one rollout of rollout_n episodes
	Steps         int // Total training steps
	SaveInterval  int // Steps between checkpoints
	EvalInterval  int // Steps between evaluations
}

// Derive computes the Schedule of a Config. Derive does not validate
// its inputs: a zero or negative multiplier produces a zero or
// negative interval, which consumers treat as never firing.
func Derive(c Config) Schedule {
	maxEpisodeLen := c.MaxEpisodeSteps * c.RolloutN

	return Schedule{
		MaxEpisodeLen: maxEpisodeLen,
		Steps:         c.Processes * c.NUpdate * maxEpisodeLen,
		SaveInterval:  c.Processes * c.NSaveInterval * maxEpisodeLen,
		EvalInterval:  c.Processes * c.NEvalInterval * maxEpisodeLen,
	}
}
