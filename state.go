package gans_go

import (
	"fmt"
)

// TrainingState Global step bookkeeping passed through training loop
//
// Step - number of completed training iterations. Single source of truth for scheduling and checkpoint naming
// NumBatches - number of batches per epoch
//
type TrainingState struct {
	Step       int
	NumBatches int
}

// NewTrainingState Creates state for provided step and number of batches per epoch
func NewTrainingState(step, numBatches int) (*TrainingState, error) {
	if numBatches <= 0 {
		return nil, fmt.Errorf("Number of batches must be positive, but got %d (is number of examples less than batch size?)", numBatches)
	}
	if step < 0 {
		return nil, fmt.Errorf("Step can't be negative, but got %d", step)
	}
	return &TrainingState{Step: step, NumBatches: numBatches}, nil
}

// StartEpoch Epoch where the step lives
func (s TrainingState) StartEpoch() int {
	return s.Step / s.NumBatches
}

// StartIdx Batch index of the step inside its epoch
func (s TrainingState) StartIdx() int {
	return s.Step % s.NumBatches
}
