package trackers

import (
	"fmt"

	"github.com/samuelfneumann/spiral/timestep"
)

// EpisodeLength tracks and saves the lengths of episodes in an
// experiment.
// Note that an episode must finish for this Tracker to save its data.
// If the last episode in an experiment does not finish, that episode's
// length will not be saved.
type EpisodeLength struct {
	episodeLengths []int
	filename       string
}

// NewEpisodeLength returns a new EpisodeLength Tracker which will save
// its data at the specified location filename. An empty filename keeps
// the data in memory only.
func NewEpisodeLength(filename string) *EpisodeLength {
	return &EpisodeLength{filename: filename}
}

// Track caches the episode length if the timestep passed to it is the
// last timestep in the episode.
func (e *EpisodeLength) Track(t timestep.TimeStep) error {
	if t.Last() {
		e.episodeLengths = append(e.episodeLengths, t.Number)
	}
	return nil
}

// Data returns the lengths of all finished episodes
func (e *EpisodeLength) Data() []int {
	return append([]int{}, e.episodeLengths...)
}

// Save saves the data tracked by the EpisodeLength Tracker to disk.
func (e *EpisodeLength) Save() error {
	if e.filename == "" {
		return nil
	}
	if err := save(e.filename, e.episodeLengths); err != nil {
		return fmt.Errorf("save: %w", err)
	}
	return nil
}
