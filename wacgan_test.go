package gans_go

import (
	"testing"

	"github.com/LdDl/gans-go/checkpoint"
	"github.com/LdDl/gans-go/summary"
	"gorgonia.org/tensor"
)

// twoBlobs Returns n examples of two classes centered at (-2, 0) and (2, 0)
func twoBlobs(n int) (*TrainSet, error) {
	data := make([]float64, 0, 2*n)
	labels := make([]int, n)
	for i := 0; i < n; i++ {
		class := i % 2
		offset := float64(i%7-3) * 0.1
		center := -2.0
		if class == 1 {
			center = 2.0
		}
		data = append(data, center+offset, offset/2)
		labels[i] = class
	}
	return NewTrainSet(tensor.New(tensor.WithShape(n, 2), tensor.WithBacking(data)), labels)
}

func smallWACGANConfig() WACGANConfig {
	cfg := DefaultWACGANConfig()
	cfg.BatchSize = 16
	cfg.ZDim = 4
	cfg.NumClasses = 2
	cfg.Scheduler = CriticScheduler{DIters: 2, DHighIters: 0, DInitialHighRounds: 0, DStepHighRounds: 1}
	cfg.Generator.Dim = 8
	cfg.Discriminator.Dim = 8
	return cfg
}

func metricNames(metrics []Metric) map[string]struct{} {
	names := make(map[string]struct{}, len(metrics))
	for _, m := range metrics {
		names[m.Name] = struct{}{}
	}
	return names
}

func TestWACGANTrainStep(t *testing.T) {
	data, err := twoBlobs(64)
	if err != nil {
		t.Error(err)
		return
	}
	m, err := NewWACGAN(smallWACGANConfig(), data, nil, nil)
	if err != nil {
		t.Error(err)
		return
	}
	if len(m.gGroup.Statistics) != 2 {
		t.Errorf("Default generator should have 2 normalized layers, but got %d", len(m.gGroup.Statistics))
	}

	gBefore, dBefore := snapshot(t, m.gGroup), snapshot(t, m.dGroup)
	result, err := m.TrainStep(0, UpdateDiscriminator)
	if err != nil {
		t.Error(err)
		return
	}
	if changed := changedKeys(gBefore, snapshot(t, m.gGroup)); len(changed) != 0 {
		t.Errorf("Critic-only step should not change generator, but these differ: %v", changed)
	}
	if changed := changedKeys(dBefore, snapshot(t, m.dGroup)); len(changed) == 0 {
		t.Errorf("Critic-only step should change critic")
	}
	names := metricNames(result.Metrics)
	if _, ok := names["d_c_accuracy"]; !ok {
		t.Errorf("Critic-only step should report d_c_accuracy, but got %v", result.Metrics)
	}
	if _, ok := names["g_total_loss"]; ok {
		t.Errorf("Critic-only step should not report generator losses")
	}
	if len(result.Records) != 0 {
		t.Errorf("Critic-only step should not produce summary records, but got %d", len(result.Records))
	}

	result, err = m.TrainStep(1, UpdateJoint)
	if err != nil {
		t.Error(err)
		return
	}
	gAfter := snapshot(t, m.gGroup)
	changed := changedKeys(gBefore, gAfter)
	if len(changed) == 0 {
		t.Errorf("Joint step should change generator")
	}
	if !hasMovingStatistics(gAfter) {
		t.Errorf("Joint step should update generator's running statistics, changed keys are %v", changed)
	}
	names = metricNames(result.Metrics)
	for _, name := range []string{"d_total_loss", "d_c_accuracy", "g_total_loss", "g_c_accuracy"} {
		if _, ok := names[name]; !ok {
			t.Errorf("Joint step should report %s, but got %v", name, result.Metrics)
		}
	}
	if len(result.Records) == 0 {
		t.Errorf("Joint step should produce summary records")
	}

	z := m.sampler.Z(5)
	c := []int{0, 1, 0, 1, 1}
	a, err := m.Sample(z, c)
	if err != nil {
		t.Error(err)
		return
	}
	if !a.Shape().Eq(tensor.Shape{5, 2}) {
		t.Errorf("Samples should have shape (5, 2), but got %v", a.Shape())
	}
	b, err := m.Sample(z, c)
	if err != nil {
		t.Error(err)
		return
	}
	if !equalDense(a, b) {
		t.Errorf("Sampling twice with the same codes should give the same samples")
	}
	if changed := changedKeys(gAfter, snapshot(t, m.gGroup)); len(changed) != 0 {
		t.Errorf("Sampling should not change generator, but these differ: %v", changed)
	}
}

func TestWACGANTrainResume(t *testing.T) {
	data, err := twoBlobs(64)
	if err != nil {
		t.Error(err)
		return
	}
	cfg := smallWACGANConfig()
	m, err := NewWACGAN(cfg, data, nil, nil)
	if err != nil {
		t.Error(err)
		return
	}
	dir := t.TempDir()
	mem := summary.NewMemory()
	state, err := Train(m, TrainOptions{
		NumEpochs:     1,
		CheckpointDir: dir,
		Summary:       mem,
		Logger:        quietLogger(),
	})
	if err != nil {
		t.Error(err)
		return
	}
	if state.Step != 4 {
		t.Errorf("Final step should be 4, but got %d", state.Step)
	}
	// Steps #1 and #3 are joint ones
	if len(mem.Scalars("g_total_loss")) != 2 {
		t.Errorf("Summary should have 2 g_total_loss records, but got %d", len(mem.Scalars("g_total_loss")))
	}
	if len(mem.Scalars("d_total_loss")) != 2 {
		t.Errorf("Summary should have 2 d_total_loss records, but got %d", len(mem.Scalars("d_total_loss")))
	}
	steps, err := checkpoint.Steps(dir, cfg.Name)
	if err != nil {
		t.Error(err)
		return
	}
	if !equalInts(steps, []int{4}) {
		t.Errorf("Only final checkpoint should be saved, but got %v", steps)
	}

	restored, err := NewWACGAN(cfg, data, nil, nil)
	if err != nil {
		t.Error(err)
		return
	}
	step, err := restored.Load(dir, -1)
	if err != nil {
		t.Error(err)
		return
	}
	if step != 4 {
		t.Errorf("Latest checkpoint should be at step 4, but got %d", step)
	}
	if changed := changedKeys(snapshot(t, m.gGroup), snapshot(t, restored.gGroup)); len(changed) != 0 {
		t.Errorf("Restored generator should have the same values, but these differ: %v", changed)
	}
	if changed := changedKeys(snapshot(t, m.dGroup), snapshot(t, restored.dGroup)); len(changed) != 0 {
		t.Errorf("Restored critic should have the same values, but these differ: %v", changed)
	}
	z := m.sampler.Z(cfg.BatchSize)
	c, err := m.sampler.Classes(cfg.BatchSize)
	if err != nil {
		t.Error(err)
		return
	}
	a, err := m.Sample(z, c)
	if err != nil {
		t.Error(err)
		return
	}
	b, err := restored.Sample(z, c)
	if err != nil {
		t.Error(err)
		return
	}
	if !equalDense(a, b) {
		t.Errorf("Restored generator should produce the same samples")
	}
}

func TestWACGANRejectsBadLabels(t *testing.T) {
	data, err := NewTrainSet(tensor.New(tensor.WithShape(2, 2), tensor.WithBacking([]float64{0, 0, 1, 1})), []int{0, 2})
	if err != nil {
		t.Error(err)
		return
	}
	if _, err = NewWACGAN(smallWACGANConfig(), data, nil, nil); err == nil {
		t.Errorf("Label out of class range should be rejected")
	}
}
