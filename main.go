package main

import (
	"fmt"
	"os"

	"github.com/samuelfneumann/spiral/harness"
	"github.com/samuelfneumann/spiral/logging"
	"github.com/samuelfneumann/spiral/utils/profiling"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const defaultConfig = "settings/photo_enhancement.yaml"

var (
	profile       bool
	loadGenerator string
	loggerLevel   int
	fileName      string
	outImage      string
)

func rootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "spiral [config]",
		Short:         "Enhance a photo with a pretrained SPIRAL generator",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath := defaultConfig
			if len(args) == 1 {
				configPath = args[0]
			}
			return run(harness.Options{
				ConfigPath:    configPath,
				LoadGenerator: loadGenerator,
				FileName:      fileName,
				OutImage:      outImage,
				Profile:       profile,
				ProfilePath:   profiling.DefaultPath,
			})
		},
	}

	cmd.Flags().BoolVar(&profile, "profile", false,
		"write a CPU profile of the evaluation")
	cmd.Flags().StringVar(&loadGenerator, "load_generator",
		"generator_weights_for_demo.npz", "generator weight snapshot")
	cmd.Flags().IntVar(&loggerLevel, "logger_level", 20,
		"logging severity (10 debug, 20 info, 30 warning, 40 error)")
	cmd.Flags().StringVar(&fileName, "file_name", "images/demo_2.jpeg",
		"photo to enhance")
	cmd.Flags().StringVar(&outImage, "out_image", "",
		"where to write the enhanced photo")
	return cmd
}

func run(opts harness.Options) error {
	harness.ConfigureRuntime()

	logger, err := logging.New(loggerLevel)
	if err != nil {
		return fmt.Errorf("could not create logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("arguments",
		zap.String("config", opts.ConfigPath),
		zap.Bool("profile", opts.Profile),
		zap.String("load_generator", opts.LoadGenerator),
		zap.Int("logger_level", loggerLevel),
		zap.String("file_name", opts.FileName),
		zap.String("out_image", opts.OutImage))

	stats, err := harness.Run(opts, logger)
	if err != nil {
		logger.Error("run failed", zap.Error(err))
		return err
	}
	logger.Info("evaluation",
		zap.Int("episodes", stats.Episodes()),
		zap.Float64("mean", stats.Mean),
		zap.Float64("median", stats.Median),
		zap.Float64("stdev", stats.Stdev),
		zap.Float64s("scores", stats.Scores))
	return nil
}

func main() {
	if err := rootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
