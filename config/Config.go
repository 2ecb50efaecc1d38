// Package config loads and validates the YAML configuration of a
// SPIRAL run and derives its step schedule.
package config

import (
	"errors"
	"fmt"
	"math"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Errors returned when resolving a configuration
var (
	ErrMissingKey = errors.New("missing configuration key")
	ErrNotNumeric = errors.New("configuration value is not numeric")
	ErrNotInteger = errors.New("configuration value is not an integer")
	ErrNegative   = errors.New("configuration value is negative")
)

// Reward modes understood by the SPIRAL agent
const (
	WGANGP = "wgangp"
	DCGAN  = "dcgan"
	L2     = "l2"
)

// Config is the resolved configuration of a run. A Config is a plain
// value; nothing modifies it after Resolve returns.
type Config struct {
	Problem Problem `mapstructure:"problem" yaml:"problem"`
	Seed    uint64  `mapstructure:"seed" yaml:"seed"`

	ImSize          int  `mapstructure:"imsize" yaml:"imsize"`
	MaxEpisodeSteps int  `mapstructure:"max_episode_steps" yaml:"max_episode_steps"`
	RolloutN        int  `mapstructure:"rollout_n" yaml:"rollout_n"`
	LStages         int  `mapstructure:"l_stages" yaml:"L_stages"`
	Conditional     bool `mapstructure:"conditional" yaml:"conditional"`

	Gamma    float64 `mapstructure:"gamma" yaml:"gamma"`
	Alpha    float64 `mapstructure:"alpha" yaml:"alpha"`
	Beta     float64 `mapstructure:"beta" yaml:"beta"`
	GPLambda float64 `mapstructure:"gp_lambda" yaml:"gp_lambda"`

	RewardMode string `mapstructure:"reward_mode" yaml:"reward_mode"`
	UUpdate    int    `mapstructure:"u_update" yaml:"U_update"`

	LR          float64 `mapstructure:"lr" yaml:"lr"`
	WeightDecay float64 `mapstructure:"weight_decay" yaml:"weight_decay"`

	Processes             int `mapstructure:"processes" yaml:"processes"`
	NUpdate               int `mapstructure:"n_update" yaml:"n_update"`
	NSaveInterval         int `mapstructure:"n_save_interval" yaml:"n_save_interval"`
	NEvalInterval         int `mapstructure:"n_eval_interval" yaml:"n_eval_interval"`
	NSaveFinalObsInterval int `mapstructure:"n_save_final_obs_interval" yaml:"n_save_final_obs_interval"`

	DatasetDir string `mapstructure:"dataset_dir" yaml:"dataset_dir,omitempty"`
	WeightInit string `mapstructure:"weight_init" yaml:"weight_init,omitempty"`
}

// IntegerKeys are the keys which must hold integers
var IntegerKeys = []string{
	"seed",
	"imsize",
	"max_episode_steps",
	"rollout_n",
	"L_stages",
	"U_update",
	"processes",
	"n_update",
	"n_save_interval",
	"n_eval_interval",
	"n_save_final_obs_interval",
}

// FloatKeys are the keys which must hold numbers
var FloatKeys = []string{
	"gamma",
	"alpha",
	"beta",
	"gp_lambda",
	"lr",
	"weight_decay",
}

// Load reads the YAML configuration at path and resolves it
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("load: could not read %v: %w", path, err)
	}
	return Resolve(v)
}

// FromMap resolves a configuration given as a mapping
func FromMap(m map[string]interface{}) (Config, error) {
	v := viper.New()
	if err := v.MergeConfigMap(m); err != nil {
		return Config{}, fmt.Errorf("fromMap: %w", err)
	}
	return Resolve(v)
}

// Resolve validates the configuration held by v and decodes it.
//
// The problem is checked first, so that a configuration for an
// unsupported problem is rejected before anything else is inspected.
// Every numeric key must then be present and hold a number, and the
// seed must not be negative.
func Resolve(v *viper.Viper) (Config, error) {
	if !v.IsSet("problem") {
		return Config{}, fmt.Errorf("resolve: %w: problem", ErrMissingKey)
	}
	problem, err := ParseProblem(v.GetString("problem"))
	if err != nil {
		return Config{}, fmt.Errorf("resolve: %w", err)
	}

	for _, key := range IntegerKeys {
		if err := checkNumeric(v, key, true); err != nil {
			return Config{}, fmt.Errorf("resolve: %w", err)
		}
	}
	for _, key := range FloatKeys {
		if err := checkNumeric(v, key, false); err != nil {
			return Config{}, fmt.Errorf("resolve: %w", err)
		}
	}

	if seed := v.GetFloat64("seed"); seed < 0 {
		return Config{}, fmt.Errorf("resolve: %w: seed = %v", ErrNegative,
			seed)
	}

	v.SetDefault("reward_mode", WGANGP)
	v.SetDefault("conditional", false)

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("resolve: could not decode "+
			"configuration: %w", err)
	}
	c.Problem = problem

	return c, nil
}

// checkNumeric returns an error if key is missing from v or does not
// hold a number. If integer is true the number must be integral.
func checkNumeric(v *viper.Viper, key string, integer bool) error {
	if !v.IsSet(key) {
		return fmt.Errorf("%w: %v", ErrMissingKey, key)
	}

	var f float64
	switch val := v.Get(key).(type) {
	case int:
		return nil
	case int64:
		return nil
	case int32:
		return nil
	case uint64:
		return nil
	case uint32:
		return nil
	case uint:
		return nil
	case float64:
		f = val
	case float32:
		f = float64(val)
	default:
		return fmt.Errorf("%w: %v = %v (%T)", ErrNotNumeric, key, val, val)
	}

	if integer && f != math.Trunc(f) {
		return fmt.Errorf("%w: %v = %v", ErrNotInteger, key, f)
	}
	return nil
}

// YAML renders the configuration as YAML
func (c Config) YAML() (string, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("yaml: %w", err)
	}
	return string(out), nil
}
