package gans_go

import (
	"fmt"
	"io"
	"log"
	"math"
	"testing"

	"github.com/LdDl/gans-go/summary"
	"github.com/pkg/errors"
)

type fakeModel struct {
	numBatches int
	scheduler  StepScheduler
	finalSave  bool

	loadStep int
	loadErr  error
	nanAt    int

	steps   int
	indices []int
	updates []Update
	saved   []int
}

func newFakeModel(numBatches int) *fakeModel {
	return &fakeModel{numBatches: numBatches, scheduler: JointScheduler{}, nanAt: -1}
}

func (m *fakeModel) Name() string             { return "fake" }
func (m *fakeModel) NumBatches() int          { return m.numBatches }
func (m *fakeModel) Scheduler() StepScheduler { return m.scheduler }
func (m *fakeModel) FinalSave() bool          { return m.finalSave }

func (m *fakeModel) TrainStep(idx int, update Update) (*StepResult, error) {
	m.indices = append(m.indices, idx)
	m.updates = append(m.updates, update)
	loss := float64(idx)
	if m.steps == m.nanAt {
		loss = math.NaN()
	}
	m.steps++
	return &StepResult{
		Update:  update,
		Metrics: []Metric{{Name: "loss", Value: loss}},
		Records: []summary.Record{summary.Scalar("loss", loss)},
	}, nil
}

func (m *fakeModel) Save(dir string, step int) error {
	m.saved = append(m.saved, step)
	return nil
}

func (m *fakeModel) Load(dir string, step int) (int, error) {
	if m.loadErr != nil {
		return 0, m.loadErr
	}
	return m.loadStep, nil
}

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func TestTrainFromScratch(t *testing.T) {
	m := newFakeModel(10)
	m.finalSave = true
	sampled := []int{}
	mem := summary.NewMemory()
	state, err := Train(m, TrainOptions{
		NumEpochs:     3,
		CheckpointDir: "checkpoints",
		SaveStep:      4,
		SampleStep:    EveryN(10),
		SampleFn: func(_ Model, step int) error {
			sampled = append(sampled, step)
			return nil
		},
		Summary: mem,
		Logger:  quietLogger(),
	})
	if err != nil {
		t.Error(err)
		return
	}
	if state.Step != 30 {
		t.Errorf("Final step should be 30, but got %d", state.Step)
	}
	if !equalInts(m.saved, []int{4, 8, 12, 16, 20, 24, 28, 30}) {
		t.Errorf("Checkpoints should be saved every 4 steps and after the last one, but got %v", m.saved)
	}
	if !equalInts(sampled, []int{10, 20, 30}) {
		t.Errorf("Samples should be taken at [10 20 30], but got %v", sampled)
	}
	points := mem.Scalars("loss")
	if len(points) != 30 {
		t.Errorf("Summary should have 30 loss records, but got %d", len(points))
		return
	}
	for i, p := range points {
		if p.Step != i {
			t.Errorf("Record #%d should be written at step %d, but got %d", i, i, p.Step)
		}
	}
}

func TestTrainResume(t *testing.T) {
	m := newFakeModel(10)
	m.loadStep = 25
	m.scheduler = CriticScheduler{DIters: 3, DHighIters: 5, DInitialHighRounds: 2, DStepHighRounds: 10}
	sampled := []int{}
	state, err := Train(m, TrainOptions{
		NumEpochs:     3,
		Resume:        true,
		ResumeStep:    -1,
		CheckpointDir: "checkpoints",
		SaveStep:      4,
		SampleStep:    NewAtSteps(3, 27, 29),
		SampleFn: func(_ Model, step int) error {
			sampled = append(sampled, step)
			return nil
		},
		Logger: quietLogger(),
	})
	if err != nil {
		t.Error(err)
		return
	}
	if state.Step != 30 {
		t.Errorf("Final step should be 30, but got %d", state.Step)
	}
	if !equalInts(m.indices, []int{5, 6, 7, 8, 9}) {
		t.Errorf("Training should continue from batch #5 of the third epoch, but got batches %v", m.indices)
	}
	for i, u := range m.updates {
		step := 25 + i
		if want := m.scheduler.Decide(step); u != want {
			t.Errorf("Update at step %d should be '%s', but got '%s'", step, want, u)
		}
	}
	if !equalInts(m.saved, []int{28}) {
		t.Errorf("Only checkpoint at step 28 should be saved, but got %v", m.saved)
	}
	if !equalInts(sampled, []int{27, 29}) {
		t.Errorf("Samples should be taken at [27 29], but got %v", sampled)
	}
}

func TestTrainResumeFailure(t *testing.T) {
	m := newFakeModel(4)
	m.loadErr = fmt.Errorf("no checkpoints")
	state, err := Train(m, TrainOptions{
		NumEpochs:     1,
		Resume:        true,
		ResumeStep:    -1,
		CheckpointDir: "checkpoints",
		Logger:        quietLogger(),
	})
	if err != nil {
		t.Error(err)
		return
	}
	if state.Step != 4 {
		t.Errorf("Training should start from scratch and end at step 4, but got %d", state.Step)
	}
	if len(m.saved) != 0 {
		t.Errorf("Model without final save should not be saved, but got %v", m.saved)
	}
}

func TestTrainNonFinite(t *testing.T) {
	m := newFakeModel(10)
	m.nanAt = 3
	state, err := Train(m, TrainOptions{NumEpochs: 1, Logger: quietLogger()})
	if err == nil {
		t.Errorf("NaN loss should stop training")
		return
	}
	if errors.Cause(err) != ErrNonFinite {
		t.Errorf("Error should be caused by ErrNonFinite, but got %v", err)
	}
	if state.Step != 3 {
		t.Errorf("Step should stay at 3 after failed step, but got %d", state.Step)
	}
}

func TestTrainNoBatches(t *testing.T) {
	m := newFakeModel(0)
	if _, err := Train(m, TrainOptions{NumEpochs: 1, Logger: quietLogger()}); err == nil {
		t.Errorf("Model without batches should not be trained")
	}
	if len(m.indices) != 0 {
		t.Errorf("No steps should be done, but got %d", len(m.indices))
	}
}

func TestSampleSchedules(t *testing.T) {
	if EveryN(0).Due(10) {
		t.Errorf("EveryN(0) should never be due")
	}
	if !EveryN(5).Due(15) || EveryN(5).Due(16) {
		t.Errorf("EveryN(5) should be due on multiples of 5 only")
	}
	at := NewAtSteps(1, 100)
	if !at.Due(100) || at.Due(50) {
		t.Errorf("AtSteps should be due on listed steps only")
	}
}

func TestAverages(t *testing.T) {
	avg := NewAverages()
	avg.Add(Metric{Name: "b", Value: 1}, Metric{Name: "a", Value: 2})
	avg.Add(Metric{Name: "b", Value: 3})
	if avg.Get("b") != 2 {
		t.Errorf("Average of 'b' should be 2, but got %v", avg.Get("b"))
	}
	if avg.Get("missing") != 0 {
		t.Errorf("Average of unknown metric should be 0, but got %v", avg.Get("missing"))
	}
	if avg.String() != "b=2.0000 a=2.0000" {
		t.Errorf("Averages should be printed in order of first appearance, but got '%s'", avg.String())
	}
	var ra RunningAverage
	for _, v := range []float64{1, 2, 3, 4} {
		ra.Add(v)
	}
	if ra.Average() != 2.5 || ra.Count() != 4 {
		t.Errorf("Running average should be 2.5 of 4 values, but got %v of %d", ra.Average(), ra.Count())
	}
}
