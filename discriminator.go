package gans_go

import (
	"fmt"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
)

// DiscriminatorBuilder Constructs discriminators (critics) with fresh parameters on provided graph.
// numClasses == 0 means no auxiliary classifier head.
type DiscriminatorBuilder interface {
	BuildDiscriminator(g *gorgonia.ExprGraph, name string, inputSize, numClasses int) (*DiscriminatorNet, error)
}

// DiscriminatorNet Abstraction for discriminator part of GAN.
//
// trunk - hidden layers, their activated outputs are features
// critic - head producing single logit (or critic value) per sample
// classes - optional head producing per-class logits
// criticActivation, classActivation - activations applied on heads' logits
//
type DiscriminatorNet struct {
	name             string
	trunk            *Network
	critic           *Layer
	classes          *Layer
	criticActivation ActivationFunc
	classActivation  ActivationFunc
}

// DiscriminatorOutput Result of single discriminator pass
type DiscriminatorOutput struct {
	Logits           *gorgonia.Node
	Activations      *gorgonia.Node
	ClassLogits      *gorgonia.Node
	ClassActivations *gorgonia.Node
	Features         []*gorgonia.Node
}

// Discriminator Constructor for DiscriminatorNet
//
// trunk - may be nil (then features are empty and heads are applied on input directly)
// classes - may be nil (no auxiliary classifier)
// criticActivation - e.g. Sigmoid for classic GAN, nil (no activation) for Wasserstein critic
//
func Discriminator(name string, trunk []*Layer, critic, classes *Layer, criticActivation ActivationFunc) *DiscriminatorNet {
	if criticActivation == nil {
		criticActivation = NoActivation
	}
	net := &DiscriminatorNet{
		name:             name,
		critic:           critic,
		classes:          classes,
		criticActivation: criticActivation,
		classActivation:  Softmax,
	}
	if len(trunk) > 0 {
		net.trunk = &Network{Name: name, Layers: trunk}
	}
	return net
}

// Name Returns name of discriminator
func (net *DiscriminatorNet) Name() string {
	return net.name
}

// Conditional Returns true if discriminator has auxiliary classifier head
func (net *DiscriminatorNet) Conditional() bool {
	return net.classes != nil
}

func (net *DiscriminatorNet) layers() []*Layer {
	layers := []*Layer{}
	if net.trunk != nil {
		layers = append(layers, net.trunk.Layers...)
	}
	layers = append(layers, net.critic)
	if net.classes != nil {
		layers = append(layers, net.classes)
	}
	return layers
}

// Learnables Returns learnables nodes
func (net *DiscriminatorNet) Learnables() gorgonia.Nodes {
	return (&Network{Layers: net.layers()}).Learnables()
}

// Weights Returns nodes which are subject of L2 regularization
func (net *DiscriminatorNet) Weights() gorgonia.Nodes {
	return (&Network{Layers: net.layers()}).Weights()
}

// Statistics Returns running statistics of discriminator's batch normalization layers
func (net *DiscriminatorNet) Statistics() []*NormStatistics {
	return (&Network{Layers: net.layers()}).Statistics()
}

// Group Returns parameter group of discriminator
func (net *DiscriminatorNet) Group() *ParameterGroup {
	return &ParameterGroup{
		Name:        net.name,
		Params:      net.Learnables(),
		Regularized: net.Weights(),
		Statistics:  net.Statistics(),
	}
}

// Fwd Initializates feedforward for provided input
//
// input - Input node
// batchSize - batch size. If it's >= 2 then broadcast function will be applied
//
func (net *DiscriminatorNet) Fwd(input *gorgonia.Node, batchSize int) (*DiscriminatorOutput, error) {
	if net.critic == nil {
		return nil, fmt.Errorf("[Discriminator %s] critic head is nil", net.name)
	}
	out := &DiscriminatorOutput{}
	hidden := input
	if net.trunk != nil {
		fwd, err := net.trunk.Fwd(input, batchSize)
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("[Discriminator %s]", net.name))
		}
		out.Features = append(fwd.Features, fwd.Out)
		hidden = fwd.Out
	}
	var err error
	out.Logits, err = net.critic.Fwd(batchSize, hidden)
	if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("[Discriminator %s] Can't feedforward critic head", net.name))
	}
	out.Activations, err = net.criticActivation(out.Logits)
	if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("[Discriminator %s] Can't activate critic head", net.name))
	}
	if net.classes == nil {
		return out, nil
	}
	out.ClassLogits, err = net.classes.Fwd(batchSize, hidden)
	if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("[Discriminator %s] Can't feedforward classifier head", net.name))
	}
	out.ClassActivations, err = net.classActivation(out.ClassLogits, Options{Axis: []int{1}})
	if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("[Discriminator %s] Can't activate classifier head", net.name))
	}
	return out, nil
}

// Shadow Returns copy of discriminator living on graph g and sharing parameter values with original one.
// Used to evaluate generator's losses against frozen discriminator.
func (net *DiscriminatorNet) Shadow(g *gorgonia.ExprGraph, suffix string) (*DiscriminatorNet, error) {
	copied := &DiscriminatorNet{
		name:             net.name + suffix,
		criticActivation: net.criticActivation,
		classActivation:  net.classActivation,
	}
	var err error
	if net.trunk != nil {
		copied.trunk, err = net.trunk.Shadow(g, suffix)
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("[Discriminator %s] Can't share trunk", net.name))
		}
	}
	copied.critic, err = net.critic.shadow(g, suffix)
	if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("[Discriminator %s] Can't share critic head", net.name))
	}
	if net.classes != nil {
		copied.classes, err = net.classes.shadow(g, suffix)
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("[Discriminator %s] Can't share classifier head", net.name))
		}
	}
	return copied, nil
}

// MLPDiscriminator Builds fully connected discriminators: NumLayers-1 hidden layers of size Dim followed by heads.
//
// Hidden - activation of hidden layers (LeakyRectify if nil)
// CriticActivation - activation applied on critic logits (nil means raw critic values)
// SkipLastBiases - critic head without bias
//
type MLPDiscriminator struct {
	Dim              int
	NumLayers        int
	Hidden           ActivationFunc
	CriticActivation ActivationFunc
	SkipLastBiases   bool
}

// BuildDiscriminator See DiscriminatorBuilder
func (b MLPDiscriminator) BuildDiscriminator(g *gorgonia.ExprGraph, name string, inputSize, numClasses int) (*DiscriminatorNet, error) {
	if b.NumLayers <= 0 {
		return nil, fmt.Errorf("Discriminator '%s' must have positive number of layers, but got %d", name, b.NumLayers)
	}
	if b.NumLayers > 1 && b.Dim <= 0 {
		return nil, fmt.Errorf("Discriminator '%s' must have positive hidden dimension, but got %d", name, b.Dim)
	}
	if inputSize <= 0 {
		return nil, fmt.Errorf("Discriminator '%s' must have positive input size, but got %d", name, inputSize)
	}
	if numClasses < 0 {
		return nil, fmt.Errorf("Discriminator '%s' can't have negative number of classes", name)
	}
	hidden := b.Hidden
	if hidden == nil {
		hidden = LeakyRectify
	}
	trunk := make([]*Layer, 0, b.NumLayers-1)
	prev := inputSize
	for i := 0; i < b.NumLayers-1; i++ {
		trunk = append(trunk, NewLinearLayer(g, fmt.Sprintf("%s_fc%d", name, i+1), prev, b.Dim, hidden))
		prev = b.Dim
	}
	critic := NewLinearLayer(g, name+"_outputs_d", prev, 1, NoActivation)
	if b.SkipLastBiases {
		critic.BiasNode = nil
	}
	var classes *Layer
	if numClasses > 0 {
		classes = NewLinearLayer(g, name+"_outputs_c", prev, numClasses, NoActivation)
	}
	return Discriminator(name, trunk, critic, classes, b.CriticActivation), nil
}
