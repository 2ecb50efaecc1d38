package photoenhance

import (
	"errors"
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/fogleman/gg"
	"github.com/samuelfneumann/spiral/environment"
	"gonum.org/v1/gonum/mat"
)

func grey(size int) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 128, G: 96, B: 64, A: 255})
		}
	}
	return img
}

func newTestEnv(t *testing.T, steps int) *Env {
	t.Helper()
	env, err := NewFromImage(grey(8), Config{
		BatchSize:       1,
		MaxEpisodeSteps: steps,
		ImSize:          4,
	})
	if err != nil {
		t.Fatal(err)
	}
	return env
}

func TestNewValidates(t *testing.T) {
	tests := []struct {
		name   string
		config Config
	}{
		{"batch", Config{BatchSize: 2, MaxEpisodeSteps: 1, ImSize: 4}},
		{"steps", Config{BatchSize: 1, MaxEpisodeSteps: 0, ImSize: 4}},
		{"size", Config{BatchSize: 1, MaxEpisodeSteps: 1, ImSize: 0}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if _, err := NewFromImage(grey(4), test.config); err == nil {
				t.Error("expected a validation error")
			}
		})
	}

	_, err := NewFromImage(grey(4), tests[0].config)
	if !errors.Is(err, ErrBatchSize) {
		t.Errorf("want ErrBatchSize, have %v", err)
	}
}

func TestNewLoadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "photo.png")
	if err := gg.SavePNG(path, grey(16)); err != nil {
		t.Fatal(err)
	}

	env, err := New(Config{
		BatchSize:       1,
		MaxEpisodeSteps: 2,
		ImSize:          4,
		FileName:        path,
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := env.ObservationSpec().Shape.Len(); got != 4*4*3 {
		t.Errorf("observation length: want(%v) have(%v)", 4*4*3, got)
	}

	_, err = New(Config{
		BatchSize:       1,
		MaxEpisodeSteps: 2,
		ImSize:          4,
		FileName:        filepath.Join(t.TempDir(), "missing.jpeg"),
	})
	if err == nil {
		t.Error("expected an error for a missing photo")
	}
}

func TestEpisode(t *testing.T) {
	env := newTestEnv(t, 2)

	if env.NumParameters() != len(Edits) {
		t.Errorf("parameters: want(%v) have(%v)", len(Edits),
			env.NumParameters())
	}

	if _, _, err := env.Step(mat.NewVecDense(len(Edits), nil)); !errors.Is(err, ErrNotReset) {
		t.Errorf("step before reset: want ErrNotReset, have %v", err)
	}

	first, err := env.Reset()
	if err != nil {
		t.Fatal(err)
	}
	if !first.First() || first.Number != 0 {
		t.Errorf("reset: unexpected timestep %v", first)
	}

	action := mat.NewVecDense(len(Edits), []float64{1, 0, 0, 0, 0})
	step, done, err := env.Step(action)
	if err != nil {
		t.Fatal(err)
	}
	if done || step.Last() {
		t.Error("episode ended early")
	}
	if step.Observation.AtVec(0) <= first.Observation.AtVec(0) {
		t.Error("exposure did not brighten the canvas")
	}

	step, done, err = env.Step(action)
	if err != nil {
		t.Fatal(err)
	}
	if !done || !step.Last() || step.Number != 2 {
		t.Errorf("episode should end after two steps: %v", step)
	}

	if _, _, err := env.Step(action); !errors.Is(err, ErrNotReset) {
		t.Errorf("step after episode end: want ErrNotReset, have %v", err)
	}

	again, _ := env.Reset()
	if !mat.Equal(again.Observation, first.Observation) {
		t.Error("reset did not restore the original photo")
	}
}

func TestInvalidAction(t *testing.T) {
	env := newTestEnv(t, 1)
	env.Reset()

	tests := []mat.Vector{
		mat.NewVecDense(2, nil),
		mat.NewVecDense(len(Edits), []float64{2, 0, 0, 0, 0}),
	}
	for _, action := range tests {
		if _, _, err := env.Step(action); !errors.Is(err, environment.ErrInvalidAction) {
			t.Errorf("want ErrInvalidAction, have %v", err)
		}
	}
}

func TestEditsZeroStrengthIsIdentity(t *testing.T) {
	canvas := []float64{0.2, 0.4, 0.6, 0.8, 0.1, 0.3}
	for i, edit := range Edits {
		c := append([]float64(nil), canvas...)
		edit(c, 0)
		for j := range c {
			if diff := c[j] - canvas[j]; diff > 1e-12 || diff < -1e-12 {
				t.Errorf("%v: zero strength changed index %v", EditNames[i], j)
			}
		}
	}
}

func TestSaveImage(t *testing.T) {
	env := newTestEnv(t, 1)
	env.Reset()

	path := filepath.Join(t.TempDir(), "out.png")
	if err := env.SaveImage(path); err != nil {
		t.Fatal(err)
	}
	if _, err := gg.LoadImage(path); err != nil {
		t.Errorf("saved image could not be loaded: %v", err)
	}
}
