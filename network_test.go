package gans_go

import (
	"math"
	"testing"

	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

func TestNetworkFwd(t *testing.T) {
	g := gorgonia.NewGraph()
	net := &Network{
		Name: "net",
		Layers: []*Layer{
			{Type: LayerReshape, ReshapeDims: []int{2, 2, 3}},
			{Type: LayerFlatten},
			NewLinearLayer(g, "net_fc1", 6, 3, Rectify),
			NewLinearLayer(g, "net_fc2", 3, 1, NoActivation),
		},
	}
	if len(net.Learnables()) != 4 {
		t.Errorf("Network should have 4 learnables, but got %d", len(net.Learnables()))
	}
	if len(net.Weights()) != 2 {
		t.Errorf("Network should regularize 2 weights, but got %d", len(net.Weights()))
	}
	input := matrixNode(g, "input", 2, 6, []float64{1, 2, 3, 4, 5, 6, -1, -2, -3, -4, -5, -6})
	fwd, err := net.Fwd(input, 2)
	if err != nil {
		t.Error(err)
		return
	}
	if len(fwd.Features) != 3 {
		t.Errorf("Every layer except the last one should give features, but got %d", len(fwd.Features))
	}
	if !fwd.Out.Shape().Eq(tensor.Shape{2, 1}) {
		t.Errorf("Output should have shape (2, 1), but got %v", fwd.Out.Shape())
	}
	// Second pass reuses parameters
	again, err := net.Fwd(input, 2)
	if err != nil {
		t.Error(err)
		return
	}
	if len(net.Learnables()) != 4 {
		t.Errorf("Passes should not create parameters, but got %d learnables", len(net.Learnables()))
	}
	vm := gorgonia.NewTapeMachine(g)
	defer vm.Close()
	if err = vm.RunAll(); err != nil {
		t.Error(err)
		return
	}
	a := fwd.Out.Value().Data().([]float64)
	b := again.Out.Value().Data().([]float64)
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("Passes over the same input should give the same output, but got %v and %v", a, b)
			break
		}
	}

	if _, err = (&Network{Name: "empty"}).Fwd(input, 2); err == nil {
		t.Errorf("Network without layers should be rejected")
	}
}

func TestNetworkShadow(t *testing.T) {
	g := gorgonia.NewGraph()
	net := &Network{
		Name:   "d",
		Layers: []*Layer{NewLinearLayer(g, "d_fc1", 2, 1, Sigmoid)},
	}
	other := gorgonia.NewGraph()
	shadow, err := net.Shadow(other, "_frozen")
	if err != nil {
		t.Error(err)
		return
	}
	original := net.Layers[0].WeightNode
	copied := shadow.Layers[0].WeightNode
	if copied.Name() != "d_fc1_w_frozen" {
		t.Errorf("Shadow weight should be named 'd_fc1_w_frozen', but got '%s'", copied.Name())
	}
	if copied.Graph() != other {
		t.Errorf("Shadow weight should live on the other graph")
	}
	// Values are shared, so in-place updates are seen by the copy
	original.Value().Data().([]float64)[0] = 42
	if copied.Value().Data().([]float64)[0] != 42 {
		t.Errorf("Shadow should see updated value, but got %v", copied.Value().Data())
	}

	bn := &Network{Layers: []*Layer{NewBatchNormLayer(g, "g_bn", 2, Rectify)}}
	bnShadow, err := bn.Shadow(other, "_sample")
	if err != nil {
		t.Error(err)
		return
	}
	if bnShadow.Layers[0].Statistics != bn.Layers[0].Statistics {
		t.Errorf("Shadow should share running statistics")
	}
}

func TestBatchNormLayer(t *testing.T) {
	g := gorgonia.NewGraph()
	layer := NewBatchNormLayer(g, "g_bn", 2, NoActivation)
	net := &Network{Name: "bn", Layers: []*Layer{layer}}
	input := matrixNode(g, "input", 4, 2, []float64{1, 0, 2, 0, 3, 2, 4, 2})
	train, err := net.Fwd(input, 4)
	if err != nil {
		t.Error(err)
		return
	}
	infer, err := net.Infer(input, 4)
	if err != nil {
		t.Error(err)
		return
	}
	vm := gorgonia.NewTapeMachine(g)
	defer vm.Close()
	if err = runMachine(vm); err != nil {
		t.Error(err)
		return
	}
	eps := layer.Epsilon
	// Column #0 has mean 2.5 and variance 1.25, column #1 has mean 1 and variance 1
	trained := train.Out.Value().Data().([]float64)
	if want := (1 - 2.5) / math.Sqrt(1.25+eps); math.Abs(trained[0]-want) > tolerance {
		t.Errorf("Training pass should normalize by batch moments: want %v, got %v", want, trained[0])
	}
	if want := (2 - 1) / math.Sqrt(1+eps); math.Abs(trained[5]-want) > tolerance {
		t.Errorf("Training pass should normalize by batch moments: want %v, got %v", want, trained[5])
	}
	inferred := infer.Out.Value().Data().([]float64)
	if want := 1 / math.Sqrt(1+eps); math.Abs(inferred[0]-want) > tolerance {
		t.Errorf("Inference pass should use initial statistics: want %v, got %v", want, inferred[0])
	}
	if layer.Statistics.Mean.Data().([]float64)[0] != 0 {
		t.Errorf("Running mean should not change before commit")
	}

	if err = layer.Statistics.Commit(); err != nil {
		t.Error(err)
		return
	}
	mean := layer.Statistics.Mean.Data().([]float64)
	variance := layer.Statistics.Variance.Data().([]float64)
	if math.Abs(mean[0]-0.25) > tolerance || math.Abs(variance[0]-1.025) > tolerance {
		t.Errorf("Running moments of column #0 should be (0.25, 1.025), but got (%v, %v)", mean[0], variance[0])
	}
	if err = runMachine(vm); err != nil {
		t.Error(err)
		return
	}
	inferred = infer.Out.Value().Data().([]float64)
	if want := (1 - 0.25) / math.Sqrt(1.025+eps); math.Abs(inferred[0]-want) > tolerance {
		t.Errorf("Inference pass should use committed statistics: want %v, got %v", want, inferred[0])
	}
	// Inference passes don't produce batch moments
	if err = layer.Statistics.Commit(); err != nil {
		t.Error(err)
		return
	}
	if math.Abs(layer.Statistics.Mean.Data().([]float64)[0]-(0.9*0.25+0.1*2.5)) > tolerance {
		t.Errorf("Second commit should apply moments of the second run, but got %v", layer.Statistics.Mean.Data())
	}
}

func TestNetworkConvolution(t *testing.T) {
	g := gorgonia.NewGraph()
	data := make([]float64, 16)
	for i := range data {
		data[i] = float64(i + 1)
	}
	input := gorgonia.NewTensor(g, gorgonia.Float64, 4, gorgonia.WithShape(1, 1, 4, 4), gorgonia.WithName("image"),
		gorgonia.WithValue(tensor.New(tensor.WithShape(1, 1, 4, 4), tensor.WithBacking(data))))
	kernel := gorgonia.NewTensor(g, gorgonia.Float64, 4, gorgonia.WithShape(1, 1, 2, 2), gorgonia.WithName("conv_w"),
		gorgonia.WithValue(tensor.New(tensor.WithShape(1, 1, 2, 2), tensor.WithBacking([]float64{1, 1, 1, 1}))))
	net := &Network{
		Name: "cnn",
		Layers: []*Layer{
			{Type: LayerConvolutional, WeightNode: kernel, KernelHeight: 2, KernelWidth: 2, Padding: []int{0, 0}, Stride: []int{1, 1}, Dilation: []int{1, 1}},
			{Type: LayerMaxpool, KernelHeight: 2, KernelWidth: 2, Padding: []int{0, 0}, Stride: []int{1, 1}},
			{Type: LayerFlatten},
		},
	}
	if len(net.Weights()) != 1 {
		t.Errorf("Convolution kernel should be regularized, but got %d weights", len(net.Weights()))
	}
	fwd, err := net.Fwd(input, 1)
	if err != nil {
		t.Error(err)
		return
	}
	if !fwd.Out.Shape().Eq(tensor.Shape{1, 4}) {
		t.Errorf("Output should have shape (1, 4), but got %v", fwd.Out.Shape())
		return
	}
	vm := gorgonia.NewTapeMachine(g)
	defer vm.Close()
	if err = runMachine(vm); err != nil {
		t.Error(err)
		return
	}
	// Sums of 2x2 windows are 16i+4j+14, max over 2x2 windows of them picks the bottom right one
	want := []float64{34, 38, 50, 54}
	got := fwd.Out.Value().Data().([]float64)
	for i := range want {
		if math.Abs(got[i]-want[i]) > tolerance {
			t.Errorf("Output should be %v, but got %v", want, got)
			break
		}
	}
}

func TestActivationByName(t *testing.T) {
	for _, name := range []string{"", "none", "linear", "relu", "lrelu", "sigmoid", "tanh", "softmax"} {
		if _, err := ActivationByName(name); err != nil {
			t.Errorf("Activation '%s' should be supported: %s", name, err)
		}
	}
	if _, err := ActivationByName("gelu-ish"); err == nil {
		t.Errorf("Unknown activation should be rejected")
	}
}
