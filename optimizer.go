package gans_go

import (
	"fmt"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
)

// AdamConfig Parameters of Adam solver
type AdamConfig struct {
	LearningRate float64 `json:"learning_rate"`
	Beta1        float64 `json:"beta1"`
	Beta2        float64 `json:"beta2"`
}

// Validate Checks solver parameters
func (cfg AdamConfig) Validate() error {
	if cfg.LearningRate <= 0 {
		return fmt.Errorf("Learning rate must be positive, but got %v", cfg.LearningRate)
	}
	if cfg.Beta1 < 0 || cfg.Beta1 >= 1 {
		return fmt.Errorf("Beta1 must be in [0, 1), but got %v", cfg.Beta1)
	}
	if cfg.Beta2 < 0 || cfg.Beta2 >= 1 {
		return fmt.Errorf("Beta2 must be in [0, 1), but got %v", cfg.Beta2)
	}
	return nil
}

// Optimizer Adam solver restricted to single parameter group
type Optimizer struct {
	group  *ParameterGroup
	solver *gorgonia.AdamSolver
}

// NewOptimizer Creates optimizer for provided group
func NewOptimizer(group *ParameterGroup, cfg AdamConfig) (*Optimizer, error) {
	if group == nil {
		return nil, fmt.Errorf("Parameter group is nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("Bad solver configuration for group '%s'", group.Name))
	}
	return &Optimizer{
		group:  group,
		solver: gorgonia.NewAdamSolver(gorgonia.WithLearnRate(cfg.LearningRate), gorgonia.WithBeta1(cfg.Beta1), gorgonia.WithBeta2(cfg.Beta2)),
	}, nil
}

// Group Returns parameter group of optimizer
func (o *Optimizer) Group() *ParameterGroup {
	return o.group
}

// Update Applies single gradient step to the group's parameters and commits its normalization statistics.
// Gradients must be computed already (tape machine has been run).
func (o *Optimizer) Update() error {
	if len(o.group.Params) > 0 {
		if err := o.solver.Step(gorgonia.NodesToValueGrads(o.group.Params)); err != nil {
			return errors.Wrap(err, fmt.Sprintf("Can't do solver step for group '%s'", o.group.Name))
		}
	}
	if err := o.group.CommitStatistics(); err != nil {
		return errors.Wrap(err, fmt.Sprintf("Can't update statistics of group '%s'", o.group.Name))
	}
	return nil
}

// OptimizerPair Independent generator and discriminator optimizers
type OptimizerPair struct {
	Generator     *Optimizer
	Discriminator *Optimizer
}

// NewOptimizerPair Creates optimizers for generator and discriminator groups
func NewOptimizerPair(generator, discriminator *ParameterGroup, gCfg, dCfg AdamConfig) (*OptimizerPair, error) {
	gOpt, err := NewOptimizer(generator, gCfg)
	if err != nil {
		return nil, err
	}
	dOpt, err := NewOptimizer(discriminator, dCfg)
	if err != nil {
		return nil, err
	}
	return &OptimizerPair{Generator: gOpt, Discriminator: dOpt}, nil
}

// Apply Steps discriminator and, for joint updates, generator.
// Both losses must have been evaluated before calling Apply.
func (p *OptimizerPair) Apply(update Update) error {
	if err := p.Discriminator.Update(); err != nil {
		return err
	}
	if update != UpdateJoint {
		return nil
	}
	return p.Generator.Update()
}
