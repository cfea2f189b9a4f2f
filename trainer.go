package gans_go

import (
	"fmt"
	"log"
	"math"
	"os"

	"github.com/LdDl/gans-go/summary"
	"github.com/pkg/errors"
)

// ErrNonFinite Returned when training step produced NaN or infinite metric
var ErrNonFinite = fmt.Errorf("non-finite loss")

// StepResult Outcome of single training step
//
// Update - what has been updated
// Metrics - losses and accuracies of the step (used for running averages)
// Records - summary records of the step (may be empty)
//
type StepResult struct {
	Update  Update
	Metrics []Metric
	Records []summary.Record
}

// Model Trainable GAN variant
type Model interface {
	Name() string
	NumBatches() int
	Scheduler() StepScheduler
	// TrainStep Runs optimization on batch idx
	TrainStep(idx int, update Update) (*StepResult, error)
	Save(dir string, step int) error
	// Load Restores parameters. Negative step means the latest checkpoint
	Load(dir string, step int) (int, error)
}

// FinalSaver Models which want checkpoint after the last epoch regardless of save step
type FinalSaver interface {
	FinalSave() bool
}

// SampleSchedule Decides whether to sample after step has been completed
type SampleSchedule interface {
	Due(step int) bool
}

// EveryN Sample every N steps
type EveryN int

// Due See SampleSchedule
func (n EveryN) Due(step int) bool {
	return n > 0 && step%int(n) == 0
}

// AtSteps Sample at explicit steps
type AtSteps map[int]struct{}

// NewAtSteps Creates schedule from steps list
func NewAtSteps(steps ...int) AtSteps {
	s := make(AtSteps, len(steps))
	for _, step := range steps {
		s[step] = struct{}{}
	}
	return s
}

// Due See SampleSchedule
func (s AtSteps) Due(step int) bool {
	_, ok := s[step]
	return ok
}

// SampleFunc Called with completed step number
type SampleFunc func(m Model, step int) error

// TrainOptions Options of training loop
//
// NumEpochs - number of epochs
// Resume - try to restore parameters from CheckpointDir
// ResumeStep - step to restore, negative means the latest one
// CheckpointDir - where to save checkpoints. Empty disables saving
// SaveStep - save every SaveStep steps (0 disables periodic saving)
// SampleStep, SampleFn - sampling schedule and callback
// Summary - summary sink (may be nil)
// Progress - progress reporter (may be nil)
// Logger - logger (default one writes to stderr)
//
type TrainOptions struct {
	NumEpochs     int
	Resume        bool
	ResumeStep    int
	CheckpointDir string
	SaveStep      int
	SampleStep    SampleSchedule
	SampleFn      SampleFunc
	Summary       summary.Writer
	Progress      Progress
	Logger        *log.Logger
}

// DefaultLogger Returns logger used when none is provided
func DefaultLogger() *log.Logger {
	return log.New(os.Stderr, "[gans] ", log.LstdFlags)
}

// Train Runs training loop and returns final state
func Train(m Model, opts TrainOptions) (*TrainingState, error) {
	logger := opts.Logger
	if logger == nil {
		logger = DefaultLogger()
	}
	state, err := NewTrainingState(0, m.NumBatches())
	if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("Can't train model '%s'", m.Name()))
	}
	scheduler := m.Scheduler()
	if scheduler == nil {
		return nil, fmt.Errorf("Model '%s' has no step scheduler", m.Name())
	}

	if opts.Resume && opts.CheckpointDir != "" {
		step, err := m.Load(opts.CheckpointDir, opts.ResumeStep)
		if err != nil {
			logger.Printf("Can't resume '%s' from '%s': %s. Starting from scratch\n", m.Name(), opts.CheckpointDir, err)
		} else {
			state.Step = step
			logger.Printf("Model '%s' has been restored at step %d (epoch #%d, batch #%d)\n", m.Name(), step, state.StartEpoch()+1, state.StartIdx())
		}
	}

	for epoch := state.StartEpoch(); epoch < opts.NumEpochs; epoch++ {
		startIdx := state.StartIdx()
		averages := NewAverages()
		if opts.Progress != nil {
			opts.Progress.Start(fmt.Sprintf("Epoch #%d", epoch+1), m.NumBatches()-startIdx)
		}
		for idx := startIdx; idx < m.NumBatches(); idx++ {
			update := scheduler.Decide(state.Step)
			result, err := m.TrainStep(idx, update)
			if err != nil {
				return state, errors.Wrap(err, fmt.Sprintf("Can't do %s update at step %d", update, state.Step))
			}
			for _, metric := range result.Metrics {
				if math.IsNaN(metric.Value) || math.IsInf(metric.Value, 0) {
					return state, errors.Wrap(ErrNonFinite, fmt.Sprintf("%s=%v at step %d", metric.Name, metric.Value, state.Step))
				}
			}
			averages.Add(result.Metrics...)
			if opts.Summary != nil && len(result.Records) > 0 {
				if err := summary.Write(opts.Summary, state.Step, result.Records); err != nil {
					return state, errors.Wrap(err, "Can't write summary")
				}
			}
			state.Step++

			if opts.CheckpointDir != "" && opts.SaveStep > 0 && state.Step%opts.SaveStep == 0 {
				if err := m.Save(opts.CheckpointDir, state.Step); err != nil {
					return state, errors.Wrap(err, fmt.Sprintf("Can't save checkpoint at step %d", state.Step))
				}
			}
			if opts.SampleFn != nil && opts.SampleStep != nil && opts.SampleStep.Due(state.Step) {
				if err := opts.SampleFn(m, state.Step); err != nil {
					return state, errors.Wrap(err, fmt.Sprintf("Can't sample at step %d", state.Step))
				}
			}
			if opts.Progress != nil {
				opts.Progress.Step(averages)
			}
		}
		if opts.Progress != nil {
			opts.Progress.Finish()
		}
		logger.Printf("Epoch #%d of '%s': %s\n", epoch+1, m.Name(), averages)
	}

	if fs, ok := m.(FinalSaver); ok && fs.FinalSave() && opts.CheckpointDir != "" {
		if err := m.Save(opts.CheckpointDir, state.Step); err != nil {
			return state, errors.Wrap(err, fmt.Sprintf("Can't save final checkpoint at step %d", state.Step))
		}
	}
	return state, nil
}
