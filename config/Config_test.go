package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"gopkg.in/yaml.v3"
)

func validMap() map[string]interface{} {
	return map[string]interface{}{
		"problem":                   "photo_enhancement",
		"seed":                      1,
		"imsize":                    16,
		"max_episode_steps":         20,
		"rollout_n":                 5,
		"L_stages":                  2,
		"U_update":                  1,
		"conditional":               true,
		"reward_mode":               "wgangp",
		"gamma":                     0.99,
		"alpha":                     1.0,
		"beta":                      0.5,
		"gp_lambda":                 10.0,
		"lr":                        1e-4,
		"weight_decay":              0.0,
		"processes":                 4,
		"n_update":                  10,
		"n_save_interval":           2,
		"n_eval_interval":           1,
		"n_save_final_obs_interval": 3,
	}
}

func TestResolve(t *testing.T) {
	Convey("Given a configuration mapping", t, func() {
		m := validMap()

		Convey("When every key is valid", func() {
			c, err := FromMap(m)

			Convey("It resolves without transformation", func() {
				So(err, ShouldBeNil)
				So(c.Problem, ShouldEqual, PhotoEnhancement)
				So(c.Seed, ShouldEqual, uint64(1))
				So(c.ImSize, ShouldEqual, 16)
				So(c.LStages, ShouldEqual, 2)
				So(c.UUpdate, ShouldEqual, 1)
				So(c.Conditional, ShouldBeTrue)
				So(c.Gamma, ShouldEqual, 0.99)
				So(c.LR, ShouldEqual, 1e-4)
				So(c.NSaveFinalObsInterval, ShouldEqual, 3)
			})
		})

		Convey("When the problem is not supported", func() {
			m["problem"] = "pong"
			// Unsupported problems are rejected before the remaining
			// keys are inspected
			delete(m, "imsize")
			_, err := FromMap(m)

			So(errors.Is(err, ErrUnsupportedProblem), ShouldBeTrue)
		})

		Convey("When the problem is missing", func() {
			delete(m, "problem")
			_, err := FromMap(m)

			So(errors.Is(err, ErrMissingKey), ShouldBeTrue)
		})

		Convey("When a numeric key is missing", func() {
			delete(m, "rollout_n")
			_, err := FromMap(m)

			So(errors.Is(err, ErrMissingKey), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "rollout_n")
		})

		Convey("When a numeric key holds a string", func() {
			m["lr"] = "fast"
			_, err := FromMap(m)

			So(errors.Is(err, ErrNotNumeric), ShouldBeTrue)
		})

		Convey("When an integer key holds a fraction", func() {
			m["processes"] = 1.5
			_, err := FromMap(m)

			So(errors.Is(err, ErrNotInteger), ShouldBeTrue)
		})

		Convey("When the seed is negative", func() {
			m["seed"] = -1
			_, err := FromMap(m)

			So(errors.Is(err, ErrNegative), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "seed")
		})

		Convey("When the seed is zero", func() {
			m["seed"] = 0
			c, err := FromMap(m)

			So(err, ShouldBeNil)
			So(c.Seed, ShouldEqual, uint64(0))
		})

		Convey("When optional keys are absent", func() {
			delete(m, "reward_mode")
			delete(m, "conditional")
			c, err := FromMap(m)

			So(err, ShouldBeNil)
			So(c.RewardMode, ShouldEqual, WGANGP)
			So(c.Conditional, ShouldBeFalse)
		})
	})
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	out, err := yaml.Marshal(validMap())
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if c.MaxEpisodeSteps != 20 {
		t.Errorf("max_episode_steps: want(20) have(%v)", c.MaxEpisodeSteps)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected an error loading a missing file")
	}
}

func TestLoadDefaultSettings(t *testing.T) {
	c, err := Load(filepath.Join("..", "settings", "photo_enhancement.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if c.Problem != PhotoEnhancement {
		t.Errorf("problem: want(%v) have(%v)", PhotoEnhancement, c.Problem)
	}
}

func TestYAML(t *testing.T) {
	c, err := FromMap(validMap())
	if err != nil {
		t.Fatal(err)
	}
	out, err := c.YAML()
	if err != nil {
		t.Fatal(err)
	}

	var back Config
	if err := yaml.Unmarshal([]byte(out), &back); err != nil {
		t.Fatal(err)
	}
	if back != c {
		t.Errorf("yaml: want(%+v) have(%+v)", c, back)
	}
}

func TestProblemValidate(t *testing.T) {
	for _, p := range Problems {
		if err := p.Validate(); err != nil {
			t.Errorf("%v: unexpected error %v", p, err)
		}
	}

	if _, err := ParseProblem("photo"); !errors.Is(err, ErrUnsupportedProblem) {
		t.Errorf("want ErrUnsupportedProblem, have %v", err)
	}
}
