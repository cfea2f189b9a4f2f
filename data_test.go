package gans_go

import (
	"os"
	"path/filepath"
	"testing"

	"gorgonia.org/tensor"
)

func TestLatentSampler(t *testing.T) {
	s := LatentSampler{Dim: 3, StdDev: 1, NumClasses: 4}
	z := s.Z(5)
	if !z.Shape().Eq(tensor.Shape{5, 3}) {
		t.Errorf("Latent vectors should have shape (5, 3), but got %v", z.Shape())
	}
	classes, err := s.Classes(100)
	if err != nil {
		t.Error(err)
		return
	}
	for i, c := range classes {
		if c < 0 || c >= 4 {
			t.Errorf("Class #%d should be in [0, 4), but got %d", i, c)
		}
	}
	for i, e := range s.Epsilon(100) {
		if e < 0 || e >= 1 {
			t.Errorf("Coefficient #%d should be in [0, 1), but got %v", i, e)
		}
	}
	input, err := s.ConditionalInput(z, []int{0, 1, 2, 3, 0})
	if err != nil {
		t.Error(err)
		return
	}
	if !input.Shape().Eq(tensor.Shape{5, 7}) {
		t.Errorf("Conditional input should have shape (5, 7), but got %v", input.Shape())
		return
	}
	values := input.Data().([]float64)[2*7 : 3*7]
	if values[3] != 0 || values[4] != 0 || values[5] != 1 || values[6] != 0 {
		t.Errorf("Third row should end with one-hot [0 0 1 0], but got %v", values[3:])
	}
	if _, err = s.ConditionalInput(z, []int{0}); err == nil {
		t.Errorf("Wrong number of classes should be rejected")
	}
	if _, err = (LatentSampler{Dim: 3, StdDev: 1}).Classes(1); err == nil {
		t.Errorf("Unconditional sampler should not sample classes")
	}
}

func TestTrainSet(t *testing.T) {
	data := make([]float64, 0, 14)
	for i := 0; i < 7; i++ {
		data = append(data, float64(i), float64(-i))
	}
	ts, err := NewTrainSet(tensor.New(tensor.WithShape(7, 2), tensor.WithBacking(data)), []int{0, 1, 0, 1, 0, 1, 0})
	if err != nil {
		t.Error(err)
		return
	}
	if ts.Features() != 2 {
		t.Errorf("Train set should have 2 features, but got %d", ts.Features())
	}
	if ts.NumBatches(3) != 2 {
		t.Errorf("Train set of 7 examples should have 2 batches of 3, but got %d", ts.NumBatches(3))
	}
	batch, err := ts.Batch(1, 3)
	if err != nil {
		t.Error(err)
		return
	}
	want := []float64{3, -3, 4, -4, 5, -5}
	got := batch.Data().([]float64)
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Batch element #%d should be %v, but got %v", i, want[i], got[i])
		}
	}
	got[0] = 100
	if data[6] != 3 {
		t.Errorf("Batch should not share memory with train set")
	}
	classes, err := ts.Classes(1, 3)
	if err != nil {
		t.Error(err)
		return
	}
	if !equalInts(classes, []int{1, 0, 1}) {
		t.Errorf("Batch classes should be [1 0 1], but got %v", classes)
	}
	if _, err = ts.Batch(2, 3); err == nil {
		t.Errorf("Incomplete batch should not be returned")
	}
	if _, err = NewTrainSet(tensor.New(tensor.WithShape(7, 2), tensor.WithBacking(data)), []int{0}); err == nil {
		t.Errorf("Labels count mismatch should be rejected")
	}
}

func TestLabelEncode(t *testing.T) {
	labels, classes := LabelEncode([]string{"dog", "cat", "dog", "bird"})
	if len(classes) != 3 || classes[0] != "bird" || classes[1] != "cat" || classes[2] != "dog" {
		t.Errorf("Classes should be [bird cat dog], but got %v", classes)
	}
	if !equalInts(labels, []int{2, 1, 2, 0}) {
		t.Errorf("Labels should be [2 1 2 0], but got %v", labels)
	}
}

func TestAccuracy(t *testing.T) {
	scores := tensor.New(tensor.WithShape(3, 2), tensor.WithBacking([]float64{0.9, 0.1, 0.2, 0.8, 0.6, 0.4}))
	acc, err := Accuracy(scores, []int{0, 1, 1})
	if err != nil {
		t.Error(err)
		return
	}
	if acc != 2.0/3.0 {
		t.Errorf("Accuracy should be 2/3, but got %v", acc)
	}
	if _, err = Accuracy(scores, []int{0, 1, 1, 0}); err == nil {
		t.Errorf("Scores which can't be split by labels should be rejected")
	}
}

func TestConfigs(t *testing.T) {
	if err := DefaultGANConfig().Validate(); err != nil {
		t.Error(err)
	}
	if err := DefaultDiscoGANConfig().Validate(); err != nil {
		t.Error(err)
	}
	wacgan := DefaultWACGANConfig()
	if err := wacgan.Validate(); err == nil {
		t.Errorf("WACGAN without classes should be rejected")
	}
	wacgan.NumClasses = 3
	if err := wacgan.Validate(); err != nil {
		t.Error(err)
	}

	cfg := DefaultGANConfig()
	cfg.DLabelSmooth = 1
	if err := cfg.Validate(); err == nil {
		t.Errorf("Label smoothing of 1 should be rejected")
	}
	cfg = DefaultGANConfig()
	cfg.Generator.Activation = "swish-ish"
	if err := cfg.Validate(); err == nil {
		t.Errorf("Unknown activation should be rejected")
	}
	cfg = DefaultGANConfig()
	cfg.DOptimizer.Beta2 = 1
	if err := cfg.Validate(); err == nil {
		t.Errorf("Beta2 of 1 should be rejected")
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wacgan.json")
	content := `{"num_classes": 5, "batch_size": 64, "scheduler": {"d_iters": 3, "d_high_iters": 10, "d_initial_high_rounds": 5, "d_step_high_rounds": 100}}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Error(err)
		return
	}
	cfg := DefaultWACGANConfig()
	if err := LoadConfig(path, &cfg); err != nil {
		t.Error(err)
		return
	}
	if cfg.NumClasses != 5 || cfg.BatchSize != 64 {
		t.Errorf("Fields from file should override defaults, but got num_classes=%d batch_size=%d", cfg.NumClasses, cfg.BatchSize)
	}
	if cfg.Scheduler.DHighIters != 10 {
		t.Errorf("Nested scheduler should be overridden, but got %+v", cfg.Scheduler)
	}
	if cfg.ZDim != 10 || cfg.Name != "iWACGAN" {
		t.Errorf("Missing fields should keep defaults, but got z_dim=%d name='%s'", cfg.ZDim, cfg.Name)
	}
	if err := cfg.Validate(); err != nil {
		t.Error(err)
	}

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte(`{"batch_sise": 64}`), 0644); err != nil {
		t.Error(err)
		return
	}
	if err := LoadConfig(bad, &cfg); err == nil {
		t.Errorf("Unknown field should be rejected")
	}
	if err := LoadConfig(filepath.Join(dir, "missing.json"), &cfg); err == nil {
		t.Errorf("Missing file should be reported")
	}
}

func TestRandDense(t *testing.T) {
	u := UniformRandDense(10, 3, -1, 1)
	if !u.Shape().Eq(tensor.Shape{10, 3}) {
		t.Errorf("Uniform tensor should have shape (10, 3), but got %v", u.Shape())
	}
	for i, v := range u.Data().([]float64) {
		if v < -1 || v >= 1 {
			t.Errorf("Value #%d should be in [-1, 1), but got %v", i, v)
		}
	}
	n := NormRandDense(4, 2, 5, 0.001)
	for i, v := range n.Data().([]float64) {
		if v < 4.9 || v > 5.1 {
			t.Errorf("Value #%d should be close to 5, but got %v", i, v)
		}
	}
}
