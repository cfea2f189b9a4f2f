package gans_go

import (
	"math"
	"strings"
	"testing"

	"github.com/LdDl/gans-go/checkpoint"
	"github.com/LdDl/gans-go/summary"
	"gonum.org/v1/gonum/stat/distuv"
	"gorgonia.org/tensor"
)

func smallGANConfig() GANConfig {
	cfg := DefaultGANConfig()
	cfg.BatchSize = 16
	cfg.ZDim = 4
	cfg.Generator = NetworkConfig{Dim: 8, NumLayers: 3, Activation: "relu", BatchNorm: true}
	cfg.Discriminator = NetworkConfig{Dim: 8, NumLayers: 2, Activation: "lrelu", OutputActivation: "sigmoid"}
	return cfg
}

// snapshot Returns copy of current parameters and statistics of the group
func snapshot(t *testing.T, pg *ParameterGroup) map[string][]float64 {
	values, err := pg.Values()
	if err != nil {
		t.Fatal(err)
	}
	copied := make(map[string][]float64, len(values))
	for k, v := range values {
		copied[k] = append([]float64{}, v.Data().([]float64)...)
	}
	return copied
}

// changedKeys Returns keys whose values differ between snapshots
func changedKeys(before, after map[string][]float64) []string {
	changed := []string{}
	for k, a := range before {
		b, ok := after[k]
		if !ok || len(a) != len(b) {
			changed = append(changed, k)
			continue
		}
		for i := range a {
			if math.Abs(a[i]-b[i]) > 1e-12 {
				changed = append(changed, k)
				break
			}
		}
	}
	return changed
}

func equalDense(a, b *tensor.Dense) bool {
	if !a.Shape().Eq(b.Shape()) {
		return false
	}
	aData, bData := a.Data().([]float64), b.Data().([]float64)
	for i := range aData {
		if math.Abs(aData[i]-bData[i]) > 1e-9 {
			return false
		}
	}
	return true
}

func hasMovingStatistics(values map[string][]float64) bool {
	for k, v := range values {
		if !strings.HasSuffix(k, "_moving_mean") {
			continue
		}
		for _, x := range v {
			if x != 0 {
				return true
			}
		}
	}
	return false
}

func TestGANTrainSampleResume(t *testing.T) {
	uniform := distuv.Uniform{Min: -math.Pi, Max: math.Pi}
	data, err := GenerateTrainingSet(64, uniform.Rand, math.Sin)
	if err != nil {
		t.Error(err)
		return
	}
	cfg := smallGANConfig()
	m, err := NewGAN(cfg, data, nil, nil)
	if err != nil {
		t.Error(err)
		return
	}
	if m.NumBatches() != 4 {
		t.Errorf("GAN should have 4 batches per epoch, but got %d", m.NumBatches())
	}
	dir := t.TempDir()
	mem := summary.NewMemory()
	state, err := Train(m, TrainOptions{
		NumEpochs:     1,
		CheckpointDir: dir,
		SaveStep:      2,
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
	steps, err := checkpoint.Steps(dir, cfg.Name)
	if err != nil {
		t.Error(err)
		return
	}
	if !equalInts(steps, []int{2, 4}) {
		t.Errorf("Checkpoints should be saved at [2 4], but got %v", steps)
	}
	if len(mem.Scalars("d_total_loss")) != 4 {
		t.Errorf("Summary should have 4 d_total_loss records, but got %d", len(mem.Scalars("d_total_loss")))
	}

	samples, err := m.SampleN(20)
	if err != nil {
		t.Error(err)
		return
	}
	if !samples.Shape().Eq(tensor.Shape{20, 2}) {
		t.Errorf("Samples should have shape (20, 2), but got %v", samples.Shape())
	}

	restored, err := NewGAN(cfg, data, nil, nil)
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
	trained := snapshot(t, m.gGroup)
	if !hasMovingStatistics(trained) {
		t.Errorf("Generator's running statistics should be updated by training")
	}
	if changed := changedKeys(trained, snapshot(t, restored.gGroup)); len(changed) != 0 {
		t.Errorf("Restored generator should have the same values, but these differ: %v", changed)
	}
	z := restored.sampler.Z(cfg.BatchSize)
	a, err := m.Sample(z)
	if err != nil {
		t.Error(err)
		return
	}
	again, err := m.Sample(z)
	if err != nil {
		t.Error(err)
		return
	}
	if !equalDense(a, again) {
		t.Errorf("Sampling twice with the same codes should give the same samples")
	}
	b, err := restored.Sample(z)
	if err != nil {
		t.Error(err)
		return
	}
	if !equalDense(a, b) {
		t.Errorf("Restored generator should produce the same samples")
	}
	if changed := changedKeys(trained, snapshot(t, m.gGroup)); len(changed) != 0 {
		t.Errorf("Sampling should not change generator, but these differ: %v", changed)
	}
}
