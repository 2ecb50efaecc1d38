package checkpointer

import (
	"fmt"

	"github.com/samuelfneumann/spiral/agent"
	"github.com/samuelfneumann/spiral/environment"
	"github.com/samuelfneumann/spiral/logging"
	"go.uber.org/zap"
)

// StepHook saves a checkpoint every saveInterval steps and logs the
// agent's last score every maxEpisodeSteps steps. With no output
// directory nothing is saved. A non-positive interval never fires.
type StepHook struct {
	maxEpisodeSteps int
	saveInterval    int
	outDir          string
	saver           Saver
	logger          *zap.Logger
}

// NewStepHook returns a new StepHook. If saver is nil, the agent
// passed to Call is saved if it implements Saver.
func NewStepHook(maxEpisodeSteps, saveInterval int, outDir string,
	saver Saver, logger *zap.Logger) *StepHook {
	return &StepHook{
		maxEpisodeSteps: maxEpisodeSteps,
		saveInterval:    saveInterval,
		outDir:          outDir,
		saver:           saver,
		logger:          logging.OrNop(logger),
	}
}

// MaxEpisodeSteps returns the number of steps between score logs
func (s *StepHook) MaxEpisodeSteps() int {
	return s.maxEpisodeSteps
}

// SaveInterval returns the number of steps between checkpoints
func (s *StepHook) SaveInterval() int {
	return s.saveInterval
}

// OutDir returns the directory checkpoints are saved in
func (s *StepHook) OutDir() string {
	return s.outDir
}

// Call implements the experiment.StepHook interface
func (s *StepHook) Call(env environment.Environment, a agent.Agent,
	step int) error {
	if s.maxEpisodeSteps > 0 && step%s.maxEpisodeSteps == 0 {
		if scorer, ok := a.(agent.Scorer); ok {
			s.logger.Debug("episode boundary", zap.Int("step", step),
				zap.Float64("last_score", scorer.LastScore()))
		}
	}

	if s.outDir == "" || s.saveInterval <= 0 || step%s.saveInterval != 0 {
		return nil
	}

	saver := s.saver
	if saver == nil {
		var ok bool
		if saver, ok = a.(Saver); !ok {
			return fmt.Errorf("call: agent %T cannot be saved", a)
		}
	}

	dir := CheckpointDir(s.outDir, step)
	if err := saver.Save(dir); err != nil {
		return fmt.Errorf("call: %w", err)
	}
	s.logger.Info("saved checkpoint", zap.Int("step", step),
		zap.String("dir", dir))
	return nil
}
