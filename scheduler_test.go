package gans_go

import (
	"testing"
)

// informalSchedule Unrolls schedule the straightforward way: every generator iteration is preceded by a run of critic updates
func informalSchedule(s CriticScheduler, n int) []Update {
	updates := make([]Update, 0, n+s.DHighIters+s.DIters)
	for genIter := 0; len(updates) < n; genIter++ {
		iters := s.DIters
		if s.DHighIters > 0 && (genIter < s.DInitialHighRounds || genIter%s.DStepHighRounds == 0) {
			iters = s.DHighIters
		}
		for i := 0; i < iters-1; i++ {
			updates = append(updates, UpdateDiscriminator)
		}
		updates = append(updates, UpdateJoint)
	}
	return updates[:n]
}

func jointSteps(s StepScheduler, from, to int) []int {
	steps := []int{}
	for step := from; step < to; step++ {
		if s.Decide(step) == UpdateJoint {
			steps = append(steps, step)
		}
	}
	return steps
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestCriticSchedulerPhases(t *testing.T) {
	s := CriticScheduler{DIters: 3, DHighIters: 5, DInitialHighRounds: 2, DStepHighRounds: 10}
	if err := s.Validate(); err != nil {
		t.Error(err)
		return
	}
	if s.InitialSteps() != 10 {
		t.Errorf("Initial steps should be 10, but got %d", s.InitialSteps())
	}
	if s.PassingSteps() != 34 {
		t.Errorf("Passing steps should be 34, but got %d", s.PassingSteps())
	}
	if s.BlockSteps() != 32 {
		t.Errorf("Block steps should be 32, but got %d", s.BlockSteps())
	}
	phases := map[int]Phase{0: PhaseWarmup, 9: PhaseWarmup, 10: PhaseTransition, 33: PhaseTransition, 34: PhaseSteady, 1000: PhaseSteady}
	for step, want := range phases {
		if got := s.Phase(step); got != want {
			t.Errorf("Phase at step %d should be '%s', but got '%s'", step, want, got)
		}
	}

	warmup := jointSteps(s, 0, 10)
	if !equalInts(warmup, []int{4, 9}) {
		t.Errorf("Generator should be updated at steps [4 9] during warmup, but got %v", warmup)
	}
	transition := jointSteps(s, 10, 34)
	if !equalInts(transition, []int{12, 15, 18, 21, 24, 27, 30, 33}) {
		t.Errorf("Generator should be updated every 3rd step during transition, but got %v", transition)
	}
	block := jointSteps(s, 34, 66)
	want := []int{38, 41, 44, 47, 50, 53, 56, 59, 62, 65}
	if !equalInts(block, want) {
		t.Errorf("First steady block should update generator at %v, but got %v", want, block)
	}
	// Blocks repeat
	next := jointSteps(s, 66, 98)
	for i := range want {
		want[i] += 32
	}
	if !equalInts(next, want) {
		t.Errorf("Second steady block should update generator at %v, but got %v", want, next)
	}
}

func TestCriticSchedulerInformalLoop(t *testing.T) {
	cases := []CriticScheduler{
		{DIters: 3, DHighIters: 5, DInitialHighRounds: 2, DStepHighRounds: 10},
		{DIters: 5, DHighIters: 100, DInitialHighRounds: 25, DStepHighRounds: 500},
		{DIters: 5, DHighIters: 20, DInitialHighRounds: 12, DStepHighRounds: 10},
		{DIters: 2, DHighIters: 7, DInitialHighRounds: 10, DStepHighRounds: 10},
		{DIters: 4, DHighIters: 6, DInitialHighRounds: 0, DStepHighRounds: 7},
		{DIters: 5, DHighIters: 1, DInitialHighRounds: 3, DStepHighRounds: 4},
		{DIters: 5, DHighIters: 0, DInitialHighRounds: 25, DStepHighRounds: 500},
		{DIters: 1, DHighIters: 3, DInitialHighRounds: 2, DStepHighRounds: 5},
	}
	const n = 5000
	for _, s := range cases {
		if err := s.Validate(); err != nil {
			t.Error(err)
			continue
		}
		expected := informalSchedule(s, n)
		for step := 0; step < n; step++ {
			if got := s.Decide(step); got != expected[step] {
				t.Errorf("Scheduler %+v: step %d should be '%s', but got '%s'", s, step, expected[step], got)
				break
			}
		}
	}
}

func TestCriticSchedulerNoBursts(t *testing.T) {
	s := CriticScheduler{DIters: 5, DHighIters: 0, DInitialHighRounds: 25, DStepHighRounds: 500}
	for step := 0; step < 100; step++ {
		want := UpdateDiscriminator
		if (step+1)%5 == 0 {
			want = UpdateJoint
		}
		if got := s.Decide(step); got != want {
			t.Errorf("Step %d should be '%s', but got '%s'", step, want, got)
		}
		if s.Phase(step) != PhaseSteady {
			t.Errorf("Schedule without bursts should be steady at step %d", step)
		}
	}
	// Plain ratio must not divide by zero for single-step steady block
	s = CriticScheduler{DIters: 1, DHighIters: 0, DInitialHighRounds: 0, DStepHighRounds: 1}
	if s.Decide(7) != UpdateJoint {
		t.Errorf("d_iters = 1 should update generator every step")
	}
}

func TestCriticSchedulerResume(t *testing.T) {
	s := CriticScheduler{DIters: 3, DHighIters: 5, DInitialHighRounds: 2, DStepHighRounds: 10}
	full := make([]Update, 200)
	for step := range full {
		full[step] = s.Decide(step)
	}
	// Restarted process sees exactly the same decisions
	restored := CriticScheduler{DIters: 3, DHighIters: 5, DInitialHighRounds: 2, DStepHighRounds: 10}
	for _, resumeAt := range []int{0, 7, 10, 33, 34, 65, 66, 150} {
		for step := resumeAt; step < len(full); step++ {
			if got := restored.Decide(step); got != full[step] {
				t.Errorf("Resumed at %d: step %d should be '%s', but got '%s'", resumeAt, step, full[step], got)
				break
			}
		}
	}
}

func TestCriticSchedulerValidate(t *testing.T) {
	bad := []CriticScheduler{
		{DIters: 0, DHighIters: 5, DInitialHighRounds: 2, DStepHighRounds: 10},
		{DIters: 3, DHighIters: -1, DInitialHighRounds: 2, DStepHighRounds: 10},
		{DIters: 3, DHighIters: 5, DInitialHighRounds: -2, DStepHighRounds: 10},
		{DIters: 3, DHighIters: 5, DInitialHighRounds: 2, DStepHighRounds: 0},
	}
	for _, s := range bad {
		if err := s.Validate(); err == nil {
			t.Errorf("Scheduler %+v should be rejected", s)
		}
	}
}

func TestJointScheduler(t *testing.T) {
	s := JointScheduler{}
	for step := 0; step < 10; step++ {
		if s.Decide(step) != UpdateJoint {
			t.Errorf("Joint scheduler should update both parts at step %d", step)
		}
	}
}
