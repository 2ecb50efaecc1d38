package experiment

import (
	"testing"

	"github.com/samuelfneumann/spiral/agent"
	"github.com/samuelfneumann/spiral/environment"
	"github.com/samuelfneumann/spiral/experiment/trackers"
)

func TestOnlineRun(t *testing.T) {
	env := &counter{length: 3}
	a := &scripted{}

	var hookSteps []int
	hook := StepHookFunc(func(_ environment.Environment, _ agent.Agent,
		step int) error {
		hookSteps = append(hookSteps, step)
		return nil
	})

	returns := trackers.NewReturn("")
	lengths := trackers.NewEpisodeLength("")
	o := NewOnline(env, a, 7, []StepHook{hook}, nil, returns)
	o.Register(lengths)

	if err := o.Run(); err != nil {
		t.Fatal(err)
	}
	if o.Steps() != 7 || env.steps != 7 {
		t.Errorf("steps: want(7) have(%v, %v)", o.Steps(), env.steps)
	}
	if len(hookSteps) != 7 || hookSteps[0] != 1 || hookSteps[6] != 7 {
		t.Errorf("hook steps: want(1..7) have(%v)", hookSteps)
	}

	// Two complete episodes and one cut short by the step limit
	if env.resets != 3 || a.ends != 3 {
		t.Errorf("resets: want(3) have(%v), ends: want(3) have(%v)",
			env.resets, a.ends)
	}
	if r := returns.Data(); len(r) != 2 || r[0] != 3 {
		t.Errorf("returns: want([3 3]) have(%v)", r)
	}
	if l := lengths.Data(); len(l) != 2 || l[1] != 3 {
		t.Errorf("lengths: want([3 3]) have(%v)", l)
	}
	if err := o.Save(); err != nil {
		t.Errorf("save: %v", err)
	}
}

func TestOnlineEvaluation(t *testing.T) {
	env := &counter{length: 2}
	evalEnv := &counter{length: 2}
	a := &scripted{}

	o := NewOnline(env, a, 8, nil, nil)
	o.EvaluateEvery(evalEnv, 4, 2, 0)
	if err := o.Run(); err != nil {
		t.Fatal(err)
	}

	evaluations := o.Evaluations()
	if len(evaluations) != 2 {
		t.Fatalf("evaluations: want(2) have(%v)", len(evaluations))
	}
	for _, stats := range evaluations {
		if stats.Episodes() != 2 {
			t.Errorf("evaluation episodes: want(2) have(%v)",
				stats.Episodes())
		}
	}
	if evalEnv.resets != 4 {
		t.Errorf("evaluation resets: want(4) have(%v)", evalEnv.resets)
	}
	if a.IsEval() {
		t.Error("agent left in evaluation mode")
	}
}

func TestOnlineHookError(t *testing.T) {
	env := &counter{length: 3}
	a := &scripted{}
	hook := StepHookFunc(func(environment.Environment, agent.Agent,
		int) error {
		return errScripted
	})

	o := NewOnline(env, a, 5, []StepHook{hook}, nil)
	if err := o.Run(); err == nil {
		t.Error("expected the hook error")
	}
}
