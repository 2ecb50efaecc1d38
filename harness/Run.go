package harness

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/samuelfneumann/spiral/config"
	"github.com/samuelfneumann/spiral/experiment"
	"github.com/samuelfneumann/spiral/logging"
	"github.com/samuelfneumann/spiral/utils/profiling"
	"go.uber.org/zap"
)

// Run loads the configuration named in opts, assembles a Session and
// evaluates it. With opts.Profile set, the evaluation is CPU profiled.
func Run(opts Options, logger *zap.Logger,
	options ...Option) (stats experiment.EvaluationStats, err error) {
	logger = logging.OrNop(logger)

	c, err := config.Load(opts.ConfigPath)
	if err != nil {
		return stats, fmt.Errorf("run: %w", err)
	}
	if dump, err := c.YAML(); err == nil {
		logger.Debug("configuration", zap.String("config", dump))
	}

	options = append([]Option{WithLogger(logger)}, options...)
	s, err := New(c, opts, options...)
	if err != nil {
		return stats, fmt.Errorf("run: %w", err)
	}
	defer func() {
		if closeErr := s.Close(); closeErr != nil {
			err = multierror.Append(err, closeErr)
		}
	}()

	if opts.Profile {
		stop, profErr := profiling.Start(opts.ProfilePath)
		if profErr != nil {
			return stats, fmt.Errorf("run: %w", profErr)
		}
		defer func() {
			if stopErr := stop(); stopErr != nil {
				err = multierror.Append(err, stopErr)
			}
		}()
	}

	stats, err = s.Evaluate()
	if err != nil {
		return stats, fmt.Errorf("run: %w", err)
	}
	return stats, nil
}
