package gans_go

import (
	"fmt"
)

// Update Kind of optimization performed at a step
type Update uint16

const (
	// UpdateDiscriminator Only discriminator (critic) parameters are updated
	UpdateDiscriminator = Update(iota)
	// UpdateJoint Both discriminator and generator parameters are updated against the same weights snapshot
	UpdateJoint
)

func (u Update) String() string {
	switch u {
	case UpdateDiscriminator:
		return "discriminator"
	case UpdateJoint:
		return "joint"
	default:
		return fmt.Sprintf("update(%d)", uint16(u))
	}
}

// StepScheduler Decides which update to run at global step. Decision must depend on step only.
type StepScheduler interface {
	Decide(step int) Update
}

// JointScheduler Updates both parts every step
type JointScheduler struct{}

// Decide See StepScheduler
func (JointScheduler) Decide(step int) Update {
	return UpdateJoint
}

// Phase Phase of critic schedule
type Phase uint16

const (
	PhaseWarmup = Phase(iota)
	PhaseTransition
	PhaseSteady
)

func (p Phase) String() string {
	switch p {
	case PhaseWarmup:
		return "warmup"
	case PhaseTransition:
		return "transition"
	case PhaseSteady:
		return "steady"
	default:
		return fmt.Sprintf("phase(%d)", uint16(p))
	}
}

// CriticScheduler Variable critic/generator updates ratio
//
// DIters - critic updates per generator update in steady state
// DHighIters - critic updates per generator update during bursts (0 disables bursts)
// DInitialHighRounds - number of bursts at the very beginning
// DStepHighRounds - burst is repeated every DStepHighRounds generator updates
//
type CriticScheduler struct {
	DIters             int `json:"d_iters"`
	DHighIters         int `json:"d_high_iters"`
	DInitialHighRounds int `json:"d_initial_high_rounds"`
	DStepHighRounds    int `json:"d_step_high_rounds"`
}

// Validate Checks scheduler parameters
func (s CriticScheduler) Validate() error {
	if s.DIters <= 0 {
		return fmt.Errorf("d_iters must be positive, but got %d", s.DIters)
	}
	if s.DHighIters < 0 {
		return fmt.Errorf("d_high_iters can't be negative, but got %d", s.DHighIters)
	}
	if s.DInitialHighRounds < 0 {
		return fmt.Errorf("d_initial_high_rounds can't be negative, but got %d", s.DInitialHighRounds)
	}
	if s.DStepHighRounds <= 0 {
		return fmt.Errorf("d_step_high_rounds must be positive, but got %d", s.DStepHighRounds)
	}
	return nil
}

// InitialSteps Number of steps in warmup phase
func (s CriticScheduler) InitialSteps() int {
	return s.DHighIters * s.DInitialHighRounds
}

// PassingSteps Step where steady phase starts
func (s CriticScheduler) PassingSteps() int {
	r := s.DStepHighRounds
	return s.InitialSteps() + ((r-s.DInitialHighRounds%r)%r)*s.DIters
}

// BlockSteps Length of steady block: one burst plus DStepHighRounds-1 regular rounds
func (s CriticScheduler) BlockSteps() int {
	return s.DHighIters + (s.DStepHighRounds-1)*s.DIters
}

// Phase Returns phase of the schedule at step
func (s CriticScheduler) Phase(step int) Phase {
	if s.DHighIters == 0 {
		return PhaseSteady
	}
	if step < s.InitialSteps() {
		return PhaseWarmup
	}
	if step < s.PassingSteps() {
		return PhaseTransition
	}
	return PhaseSteady
}

// Decide See StepScheduler. Scheduler must be valid.
func (s CriticScheduler) Decide(step int) Update {
	if s.DHighIters == 0 {
		return decision((step+1)%s.DIters == 0)
	}
	switch s.Phase(step) {
	case PhaseWarmup:
		return decision((step+1)%s.DHighIters == 0)
	case PhaseTransition:
		p := (step - s.InitialSteps()) % s.DIters
		return decision((p+1)%s.DIters == 0)
	default:
		b := (step - s.PassingSteps()) % s.BlockSteps()
		return decision(b+1 >= s.DHighIters && (b+1-s.DHighIters)%s.DIters == 0)
	}
}

func decision(updateGenerator bool) Update {
	if updateGenerator {
		return UpdateJoint
	}
	return UpdateDiscriminator
}
