package gans_go

import (
	"fmt"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
)

// Network Abstraction for neural network.
//
// Name - prefix for names of nodes produced by feedforward
// Layers - simple sequence of layers
//
// Network is stateless regarding its inputs: every call of Fwd builds new nodes on top of the same learnables,
// so calling Fwd several times is how parameters are reused between passes (real/fake/interpolated inputs).
type Network struct {
	Name   string
	Layers []*Layer
	passes int
}

// Forward Result of single feedforward pass.
//
// Out - activated output of the last layer
// Features - activated outputs of every layer except the last one (in order). Used by feature matching.
//
type Forward struct {
	Out      *gorgonia.Node
	Features []*gorgonia.Node
}

// Learnables Returns learnables nodes
func (net *Network) Learnables() gorgonia.Nodes {
	learnables := make(gorgonia.Nodes, 0, 2*len(net.Layers))
	for _, l := range net.Layers {
		if l != nil {
			learnables = append(learnables, l.Learnables()...)
		}
	}
	return learnables
}

// Weights Returns weight nodes of linear and convolutional layers (the ones which are subject of L2 regularization)
func (net *Network) Weights() gorgonia.Nodes {
	weights := make(gorgonia.Nodes, 0, len(net.Layers))
	for _, l := range net.Layers {
		if l == nil || l.WeightNode == nil {
			continue
		}
		if l.Type == LayerLinear || l.Type == LayerConvolutional {
			weights = append(weights, l.WeightNode)
		}
	}
	return weights
}

// Statistics Returns running statistics of batch normalization layers
func (net *Network) Statistics() []*NormStatistics {
	stats := []*NormStatistics{}
	for _, l := range net.Layers {
		if l != nil && l.Statistics != nil {
			stats = append(stats, l.Statistics)
		}
	}
	return stats
}

// Fwd Initializates feedforward for provided input
//
// input - Input node
// batchSize - batch size. If it's >= 2 then broadcast function will be applied
//
func (net *Network) Fwd(input *gorgonia.Node, batchSize int) (*Forward, error) {
	return net.forward(input, batchSize, false)
}

// Infer Same as Fwd, but batch normalization layers use running statistics. Used by sampling.
func (net *Network) Infer(input *gorgonia.Node, batchSize int) (*Forward, error) {
	return net.forward(input, batchSize, true)
}

func (net *Network) forward(input *gorgonia.Node, batchSize int, inference bool) (*Forward, error) {
	networkName := "network"
	if net.Name != "" {
		networkName = net.Name
	}
	if len(net.Layers) == 0 {
		return nil, fmt.Errorf("Network must have one layer atleast")
	}
	pass := net.passes
	net.passes++

	result := &Forward{
		Features: make([]*gorgonia.Node, 0, len(net.Layers)-1),
	}
	lastActivatedLayer := input
	for i := range net.Layers {
		if net.Layers[i] == nil {
			return nil, fmt.Errorf("Network's layer #%d is nil", i)
		}
		// Feedforward input through i-th layer
		layerNonActivated, err := net.Layers[i].forward(batchSize, lastActivatedLayer, inference)
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("[%s, Layer #%d] Can't feedforward input before activation", networkName, i))
		}
		gorgonia.WithName(fmt.Sprintf("%s_p%d_%d", networkName, pass, i))(layerNonActivated)
		activation := net.Layers[i].Activation
		if activation == nil {
			activation = NoActivation
		}
		// Activate i-th layer's output
		layerActivated, err := activation(layerNonActivated)
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("Can't apply activation function to non-activated output of %s's layer #%d", networkName, i))
		}
		if layerActivated != layerNonActivated {
			gorgonia.WithName(fmt.Sprintf("%s_p%d_activated_%d", networkName, pass, i))(layerActivated)
		}
		if i < len(net.Layers)-1 {
			result.Features = append(result.Features, layerActivated)
		}
		lastActivatedLayer = layerActivated
	}
	result.Out = lastActivatedLayer
	return result, nil
}

// Shadow Returns copy of the network which lives on graph g and shares parameter values with original one.
// Learnables of the copy are not meant to be trained: they are reflection of original parameters.
func (net *Network) Shadow(g *gorgonia.ExprGraph, suffix string) (*Network, error) {
	copied := &Network{
		Name:   net.Name + suffix,
		Layers: make([]*Layer, len(net.Layers)),
	}
	for i, l := range net.Layers {
		if l == nil {
			return nil, fmt.Errorf("Network's layer #%d is nil", i)
		}
		shadowed, err := l.shadow(g, suffix)
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("[%s, Layer #%d] Can't share layer", net.Name, i))
		}
		copied.Layers[i] = shadowed
	}
	return copied, nil
}
