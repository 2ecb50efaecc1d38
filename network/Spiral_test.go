package network

import (
	"errors"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/samuelfneumann/spiral/initwfn"
	G "gorgonia.org/gorgonia"
)

// vanilla applies gradients of a model with plain gradient descent
type vanilla struct {
	solver G.Solver
	model  []G.ValueGrad
	calls  int
}

func newVanilla(model []G.ValueGrad) *vanilla {
	return &vanilla{
		solver: G.NewVanillaSolver(G.WithLearnRate(0.01)),
		model:  model,
	}
}

func (v *vanilla) Update() error {
	v.calls++
	return v.solver.Step(v.model)
}

// glorot returns a GlorotU initializer seeded with seed
func glorot(t *testing.T, seed uint64) G.InitWFn {
	t.Helper()
	w, err := initwfn.New(initwfn.GlorotU, 1.0, seed)
	if err != nil {
		t.Fatal(err)
	}
	return w.InitWFn()
}

func newTestGenerator(t *testing.T, seed uint64, imsize int,
	conditional bool) *Generator {
	t.Helper()
	gen, err := NewGenerator(imsize, 5, 2, conditional, glorot(t, seed))
	if err != nil {
		t.Fatalf("newGenerator: %v", err)
	}
	t.Cleanup(func() { gen.Close() })
	return gen
}

func ramp(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i%7) / 7.0
	}
	return out
}

func TestGeneratorSpec(t *testing.T) {
	gen := newTestGenerator(t, 1, 2, true)
	spec := gen.Spec()

	if spec.Features() != 2*2*2*3 {
		t.Errorf("features: want(%v) have(%v)", 24, spec.Features())
	}
	if spec.NumParameters != 5 || spec.LStages != 2 || !spec.Conditional {
		t.Errorf("unexpected spec %+v", spec)
	}

	// Two hidden stages and an output layer, each with weights and bias
	if n := len(gen.Learnables()); n != 6 {
		t.Errorf("learnables: want(6) have(%v)", n)
	}
	if name := gen.Learnables()[0].Name(); name != "generator/l0/W" {
		t.Errorf("first learnable: want(generator/l0/W) have(%v)", name)
	}
	if name := gen.Learnables()[5].Name(); name != "generator/l2/b" {
		t.Errorf("last learnable: want(generator/l2/b) have(%v)", name)
	}
}

func TestGeneratorInvalid(t *testing.T) {
	tests := []struct {
		name                    string
		imsize, params, lStages int
	}{
		{"ZeroImSize", 0, 5, 1},
		{"ZeroParameters", 4, 0, 1},
		{"ZeroStages", 4, 5, 0},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := NewGenerator(test.imsize, test.params, test.lStages,
				false, glorot(t, 1))
			if err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestGeneratorAct(t *testing.T) {
	gen := newTestGenerator(t, 2, 2, false)
	input := ramp(gen.Spec().Features())

	means, err := gen.Act(input)
	if err != nil {
		t.Fatalf("act: %v", err)
	}
	if len(means) != 5 {
		t.Fatalf("means: want(5) have(%v)", len(means))
	}
	for i, m := range means {
		if m < -1 || m > 1 {
			t.Errorf("mean %v out of [-1, 1]: %v", i, m)
		}
	}

	again, err := gen.Act(input)
	if err != nil {
		t.Fatalf("act: %v", err)
	}
	for i := range means {
		if means[i] != again[i] {
			t.Errorf("act is not repeatable at %v: %v != %v", i, means[i],
				again[i])
		}
	}

	if _, err := gen.Act(input[1:]); err == nil {
		t.Error("expected an error for a short input")
	}
}

func TestGeneratorDeterministic(t *testing.T) {
	first := newTestGenerator(t, 42, 2, false)
	second := newTestGenerator(t, 42, 2, false)

	if first.Spec() != second.Spec() {
		t.Fatalf("specs differ: %+v != %+v", first.Spec(), second.Spec())
	}

	input := ramp(first.Spec().Features())
	a, err := first.Act(input)
	if err != nil {
		t.Fatal(err)
	}
	b, err := second.Act(input)
	if err != nil {
		t.Fatal(err)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("means differ at %v: %v != %v", i, a[i], b[i])
		}
	}

	other, err := newTestGenerator(t, 43, 2, false).Act(input)
	if err != nil {
		t.Fatal(err)
	}
	same := true
	for i := range a {
		same = same && a[i] == other[i]
	}
	if same {
		t.Error("different seeds gave the same means")
	}
}

func TestGeneratorUpdate(t *testing.T) {
	gen := newTestGenerator(t, 3, 2, false)
	input := ramp(gen.Spec().Features())
	before, err := gen.Act(input)
	if err != nil {
		t.Fatal(err)
	}

	target := []float64{0.5, -0.5, 0.25, -0.25, 0}
	updater := newVanilla(gen.Model())
	losses := make([]float64, 5)
	for i := range losses {
		losses[i], err = gen.Update(input, target, 1.0, updater)
		if err != nil {
			t.Fatalf("update: %v", err)
		}
	}
	if losses[4] >= losses[0] {
		t.Errorf("loss did not decrease: first(%v) last(%v)", losses[0],
			losses[4])
	}
	if updater.calls != 5 {
		t.Errorf("updater calls: want(5) have(%v)", updater.calls)
	}

	after, err := gen.Act(input)
	if err != nil {
		t.Fatal(err)
	}
	var changed bool
	for i := range before {
		changed = changed || before[i] != after[i]
	}
	if !changed {
		t.Error("update did not change the generator")
	}

	if _, err := gen.Update(input, target[1:], 1.0, updater); err == nil {
		t.Error("expected an error for a short action")
	}
}

func TestDiscriminator(t *testing.T) {
	dis, err := NewDiscriminator(2, false, glorot(t, 4))
	if err != nil {
		t.Fatalf("newDiscriminator: %v", err)
	}
	defer dis.Close()

	features := dis.Spec().Features()
	if features != 12 {
		t.Fatalf("features: want(12) have(%v)", features)
	}
	real := ramp(features)
	fake := make([]float64, features)

	realScore, err := dis.Score(real)
	if err != nil {
		t.Fatal(err)
	}
	fakeScore, err := dis.Score(fake)
	if err != nil {
		t.Fatal(err)
	}

	updater := newVanilla(dis.Model())
	for i := 0; i < 10; i++ {
		if _, err := dis.Update(real, fake, 0.01, updater); err != nil {
			t.Fatalf("update: %v", err)
		}
	}

	newReal, err := dis.Score(real)
	if err != nil {
		t.Fatal(err)
	}
	newFake, err := dis.Score(fake)
	if err != nil {
		t.Fatal(err)
	}
	if newReal-newFake <= realScore-fakeScore {
		t.Errorf("critic gap did not grow: before(%v) after(%v)",
			realScore-fakeScore, newReal-newFake)
	}

	if _, err := dis.Update(real, fake[1:], 0, updater); err == nil {
		t.Error("expected an error for inputs of different lengths")
	}
}

func TestWeightsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "generator.npz")
	source := newTestGenerator(t, 5, 2, true)
	if err := SaveNPZ(path, source); err != nil {
		t.Fatalf("saveNPZ: %v", err)
	}

	dest := newTestGenerator(t, 6, 2, true)
	if err := LoadNPZ(path, dest); err != nil {
		t.Fatalf("loadNPZ: %v", err)
	}

	input := ramp(source.Spec().Features())
	want, err := source.Act(input)
	if err != nil {
		t.Fatal(err)
	}
	have, err := dest.Act(input)
	if err != nil {
		t.Fatal(err)
	}
	for i := range want {
		if math.Abs(want[i]-have[i]) > 1e-12 {
			t.Errorf("means differ at %v: want(%v) have(%v)", i, want[i],
				have[i])
		}
	}
}

func TestLoadNPZErrors(t *testing.T) {
	dir := t.TempDir()
	gen := newTestGenerator(t, 7, 2, false)

	t.Run("MissingFile", func(t *testing.T) {
		err := LoadNPZ(filepath.Join(dir, "missing.npz"), gen)
		if err == nil {
			t.Fatal("expected an error")
		}
		if !strings.Contains(err.Error(), "missing.npz") {
			t.Errorf("error does not name the path: %v", err)
		}
	})

	t.Run("SizeMismatch", func(t *testing.T) {
		path := filepath.Join(dir, "large.npz")
		large := newTestGenerator(t, 7, 3, false)
		if err := SaveNPZ(path, large); err != nil {
			t.Fatal(err)
		}
		if err := LoadNPZ(path, gen); !errors.Is(err, ErrWeightSize) {
			t.Errorf("want(%v) have(%v)", ErrWeightSize, err)
		}
	})

	t.Run("MissingArray", func(t *testing.T) {
		path := filepath.Join(dir, "discriminator.npz")
		dis, err := NewDiscriminator(2, false, glorot(t, 7))
		if err != nil {
			t.Fatal(err)
		}
		defer dis.Close()
		if err := SaveNPZ(path, dis); err != nil {
			t.Fatal(err)
		}
		if err := LoadNPZ(path, gen); err == nil {
			t.Error("expected an error")
		}
	})
}

func TestDiscriminatorLoadSyncs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "discriminator.npz")

	source, err := NewDiscriminator(2, false, glorot(t, 8))
	if err != nil {
		t.Fatal(err)
	}
	defer source.Close()
	if err := SaveNPZ(path, source); err != nil {
		t.Fatal(err)
	}

	dest, err := NewDiscriminator(2, false, glorot(t, 9))
	if err != nil {
		t.Fatal(err)
	}
	defer dest.Close()
	if err := LoadNPZ(path, dest); err != nil {
		t.Fatal(err)
	}

	input := ramp(12)
	want, err := source.Score(input)
	if err != nil {
		t.Fatal(err)
	}
	have, err := dest.Score(input)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(want-have) > 1e-12 {
		t.Errorf("scores differ: want(%v) have(%v)", want, have)
	}
}
