package gans_go

import (
	"fmt"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
)

// GeneratorBuilder Constructs generator networks with fresh parameters on provided graph.
// Parameters are reused by calling Fwd of returned network several times.
type GeneratorBuilder interface {
	BuildGenerator(g *gorgonia.ExprGraph, name string, inputSize, outputSize int) (*GeneratorNet, error)
}

// GeneratorNet Abstraction for generator part of GAN
type GeneratorNet struct {
	private *Network
}

// Generator Constructor for GeneratorNet
func Generator(name string, layers ...*Layer) *GeneratorNet {
	return &GeneratorNet{private: &Network{
		Name:   name,
		Layers: layers,
	}}
}

// Name Returns name of generator
func (net *GeneratorNet) Name() string {
	return net.private.Name
}

// Learnables Returns learnables nodes
func (net *GeneratorNet) Learnables() gorgonia.Nodes {
	return net.private.Learnables()
}

// Weights Returns nodes which are subject of L2 regularization
func (net *GeneratorNet) Weights() gorgonia.Nodes {
	return net.private.Weights()
}

// Statistics Returns running statistics of generator's batch normalization layers
func (net *GeneratorNet) Statistics() []*NormStatistics {
	return net.private.Statistics()
}

// Fwd Initializates feedforward for provided input and returns generated samples node
//
// input - Input node (latent codes, optionally concatenated with condition)
// batchSize - batch size. If it's >= 2 then broadcast function will be applied
//
func (net *GeneratorNet) Fwd(input *gorgonia.Node, batchSize int) (*gorgonia.Node, error) {
	fwd, err := net.private.Fwd(input, batchSize)
	if err != nil {
		return nil, errors.Wrap(err, "[Generator]")
	}
	return fwd.Out, nil
}

// Infer Same as Fwd, but batch normalization layers use running statistics
func (net *GeneratorNet) Infer(input *gorgonia.Node, batchSize int) (*gorgonia.Node, error) {
	fwd, err := net.private.Infer(input, batchSize)
	if err != nil {
		return nil, errors.Wrap(err, "[Generator]")
	}
	return fwd.Out, nil
}

// Shadow Returns copy of generator living on graph g. Parameters and statistics are shared with original one.
func (net *GeneratorNet) Shadow(g *gorgonia.ExprGraph, suffix string) (*GeneratorNet, error) {
	copied, err := net.private.Shadow(g, suffix)
	if err != nil {
		return nil, errors.Wrap(err, "[Generator]")
	}
	return &GeneratorNet{private: copied}, nil
}

// Group Returns parameter group of generator
func (net *GeneratorNet) Group() *ParameterGroup {
	return &ParameterGroup{
		Name:        net.Name(),
		Params:      net.Learnables(),
		Regularized: net.Weights(),
		Statistics:  net.Statistics(),
	}
}

// MLPGenerator Builds fully connected generators: NumLayers-1 hidden layers of size Dim followed by output layer.
//
// Hidden - activation of hidden layers (Rectify if nil)
// Output - activation of output layer (no activation if nil)
// BatchNorm - put batch normalization between hidden linear layers and their activations
// SkipFirstBatch - do not normalize the first hidden layer
//
type MLPGenerator struct {
	Dim            int
	NumLayers      int
	Hidden         ActivationFunc
	Output         ActivationFunc
	BatchNorm      bool
	SkipFirstBatch bool
}

// BuildGenerator See GeneratorBuilder
func (b MLPGenerator) BuildGenerator(g *gorgonia.ExprGraph, name string, inputSize, outputSize int) (*GeneratorNet, error) {
	if b.NumLayers <= 0 {
		return nil, fmt.Errorf("Generator '%s' must have positive number of layers, but got %d", name, b.NumLayers)
	}
	if b.NumLayers > 1 && b.Dim <= 0 {
		return nil, fmt.Errorf("Generator '%s' must have positive hidden dimension, but got %d", name, b.Dim)
	}
	if inputSize <= 0 || outputSize <= 0 {
		return nil, fmt.Errorf("Generator '%s' must have positive input and output sizes, but got %d and %d", name, inputSize, outputSize)
	}
	hidden := b.Hidden
	if hidden == nil {
		hidden = Rectify
	}
	layers := make([]*Layer, 0, 2*b.NumLayers)
	prev := inputSize
	for i := 0; i < b.NumLayers-1; i++ {
		layerName := fmt.Sprintf("%s_fc%d", name, i+1)
		if b.BatchNorm && !(b.SkipFirstBatch && i == 0) {
			layers = append(layers, NewLinearLayer(g, layerName, prev, b.Dim, NoActivation))
			layers = append(layers, NewBatchNormLayer(g, layerName+"_bn", b.Dim, hidden))
		} else {
			layers = append(layers, NewLinearLayer(g, layerName, prev, b.Dim, hidden))
		}
		prev = b.Dim
	}
	layers = append(layers, NewLinearLayer(g, fmt.Sprintf("%s_fc%d", name, b.NumLayers), prev, outputSize, b.Output))
	return Generator(name, layers...), nil
}
