package gans_go

import (
	"fmt"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Layer Just an alias to Weight+Bias+ActivationFunction combo
//
// For LayerBatchNorm WeightNode and BiasNode hold scale (gamma) and shift (beta) of shape (1, size),
// Statistics holds running moments used by inference passes.
type Layer struct {
	WeightNode *gorgonia.Node
	BiasNode   *gorgonia.Node
	Activation ActivationFunc
	Type       LayerType

	KernelHeight int
	KernelWidth  int
	Padding      []int
	Stride       []int
	Dilation     []int
	ReshapeDims  []int

	Epsilon    float64
	Statistics *NormStatistics
}

type LayerType uint16

const (
	LayerLinear = LayerType(iota)
	LayerFlatten
	LayerConvolutional
	LayerMaxpool
	LayerReshape
	LayerBatchNorm
)

func (lt LayerType) String() string {
	switch lt {
	case LayerLinear:
		return "linear"
	case LayerFlatten:
		return "flatten"
	case LayerConvolutional:
		return "conv2d"
	case LayerMaxpool:
		return "maxpool2d"
	case LayerReshape:
		return "reshape"
	case LayerBatchNorm:
		return "batchnorm"
	default:
		return fmt.Sprintf("layer(%d)", uint16(lt))
	}
}

var (
	allowedNoWeights = []LayerType{LayerMaxpool, LayerFlatten, LayerReshape, LayerBatchNorm}
)

const (
	defaultBatchNormMomentum = 0.9
	defaultBatchNormEpsilon  = 1e-5
)

func noWeightsAllowed(checkType LayerType) bool {
	return checkLayerType(checkType, allowedNoWeights...)
}

func checkLayerType(checkType LayerType, t ...LayerType) bool {
	for _, typeOf := range t {
		if checkType == typeOf {
			return true
		}
	}
	return false
}

// Fwd Feedforward input through the layer in training mode. Activation is not applied here.
//
// batchSize - batch size. If it's >= 2 then broadcast function will be applied for bias
//
func (l *Layer) Fwd(batchSize int, input *gorgonia.Node) (*gorgonia.Node, error) {
	return l.forward(batchSize, input, false)
}

// Infer Same as Fwd, but batch normalization uses running statistics instead of batch ones
func (l *Layer) Infer(batchSize int, input *gorgonia.Node) (*gorgonia.Node, error) {
	return l.forward(batchSize, input, true)
}

func (l *Layer) forward(batchSize int, input *gorgonia.Node, inference bool) (*gorgonia.Node, error) {
	if l.WeightNode == nil && !noWeightsAllowed(l.Type) {
		return nil, fmt.Errorf("Layer of type '%s' has nil weight node", l.Type)
	}
	var out *gorgonia.Node
	var err error
	switch l.Type {
	case LayerLinear:
		tOp, err := gorgonia.Transpose(l.WeightNode)
		if err != nil {
			return nil, errors.Wrap(err, "Can't transpose weights")
		}
		out, err = gorgonia.Mul(input, tOp)
		if err != nil {
			return nil, errors.Wrap(err, "Can't multiply input and weights")
		}
	case LayerConvolutional:
		out, err = gorgonia.Conv2d(input, l.WeightNode, tensor.Shape{l.KernelHeight, l.KernelWidth}, l.Padding, l.Stride, l.Dilation)
		if err != nil {
			return nil, errors.Wrap(err, "Can't convolve[2D] input by kernel")
		}
	case LayerMaxpool:
		out, err = gorgonia.MaxPool2D(input, tensor.Shape{l.KernelHeight, l.KernelWidth}, l.Padding, l.Stride)
		if err != nil {
			return nil, errors.Wrap(err, "Can't maxpool[2D] input by kernel")
		}
	case LayerFlatten:
		out, err = gorgonia.Reshape(input, tensor.Shape{batchSize, input.Shape().TotalSize() / batchSize})
		if err != nil {
			return nil, errors.Wrap(err, "Can't flatten input")
		}
	case LayerReshape:
		out, err = gorgonia.Reshape(input, l.ReshapeDims)
		if err != nil {
			return nil, errors.Wrap(err, "Can't reshape input")
		}
	case LayerBatchNorm:
		return l.batchNorm(input, inference)
	default:
		return nil, fmt.Errorf("Layer type '%d' (uint16) is not handled", l.Type)
	}
	if l.BiasNode == nil {
		return out, nil
	}
	if batchSize < 2 {
		out, err = gorgonia.Add(out, l.BiasNode)
		if err != nil {
			return nil, errors.Wrap(err, "Can't add bias to non-activated output")
		}
		return out, nil
	}
	out, err = gorgonia.BroadcastAdd(out, l.BiasNode, nil, []byte{0})
	if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("Can't add [in broadcast term with batch_size = %d] bias to non-activated output", batchSize))
	}
	return out, nil
}

// batchNorm Normalizes (batch, size) input by batch moments or, for inference, by running ones
func (l *Layer) batchNorm(input *gorgonia.Node, inference bool) (*gorgonia.Node, error) {
	if l.Statistics == nil || l.WeightNode == nil || l.BiasNode == nil {
		return nil, fmt.Errorf("Batch normalization layer must have scale, shift and statistics")
	}
	size := l.Statistics.Size()
	if input.Dims() != 2 || input.Shape()[1] != size {
		return nil, fmt.Errorf("Batch normalization expects input of shape (batch, %d), but got %v", size, input.Shape())
	}
	epsilon := l.Epsilon
	if epsilon == 0 {
		epsilon = defaultBatchNormEpsilon
	}
	g := input.Graph()
	var mean, variance *gorgonia.Node
	var err error
	if inference {
		mean = gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(1, size), gorgonia.WithName(l.Statistics.Name+"_moving_mean"), gorgonia.WithValue(l.Statistics.Mean))
		variance = gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(1, size), gorgonia.WithName(l.Statistics.Name+"_moving_variance"), gorgonia.WithValue(l.Statistics.Variance))
	} else {
		mean, err = rowMean(input, size)
		if err != nil {
			return nil, errors.Wrap(err, "Can't evaluate batch mean")
		}
	}
	centered, err := gorgonia.BroadcastSub(input, mean, nil, []byte{0})
	if err != nil {
		return nil, errors.Wrap(err, "Can't center input")
	}
	if !inference {
		squared, err := gorgonia.Square(centered)
		if err != nil {
			return nil, errors.Wrap(err, "Can't square centered input")
		}
		variance, err = rowMean(squared, size)
		if err != nil {
			return nil, errors.Wrap(err, "Can't evaluate batch variance")
		}
		l.Statistics.track(mean, variance)
	}
	shifted, err := gorgonia.Add(variance, gorgonia.NewConstant(epsilon))
	if err != nil {
		return nil, errors.Wrap(err, "Can't add epsilon to variance")
	}
	std, err := gorgonia.Sqrt(shifted)
	if err != nil {
		return nil, errors.Wrap(err, "Can't evaluate standard deviation")
	}
	normalized, err := gorgonia.BroadcastHadamardDiv(centered, std, nil, []byte{0})
	if err != nil {
		return nil, errors.Wrap(err, "Can't normalize input")
	}
	scaled, err := gorgonia.BroadcastHadamardProd(normalized, l.WeightNode, nil, []byte{0})
	if err != nil {
		return nil, errors.Wrap(err, "Can't scale normalized input")
	}
	out, err := gorgonia.BroadcastAdd(scaled, l.BiasNode, nil, []byte{0})
	if err != nil {
		return nil, errors.Wrap(err, "Can't shift normalized input")
	}
	return out, nil
}

// rowMean Returns mean of (batch, size) matrix along batch axis as (1, size) matrix
func rowMean(x *gorgonia.Node, size int) (*gorgonia.Node, error) {
	mean, err := gorgonia.Mean(x, 0)
	if err != nil {
		return nil, err
	}
	return gorgonia.Reshape(mean, tensor.Shape{1, size})
}

// Learnables Returns trainable nodes of the layer
func (l *Layer) Learnables() gorgonia.Nodes {
	learnables := make(gorgonia.Nodes, 0, 2)
	if l.WeightNode != nil {
		learnables = append(learnables, l.WeightNode)
	}
	if l.BiasNode != nil {
		learnables = append(learnables, l.BiasNode)
	}
	return learnables
}

// NewLinearLayer Creates fully connected layer with weights of shape (outputs, inputs) and bias of shape (1, outputs).
// Weights are initialized by Glorot normal init, bias by zeroes.
func NewLinearLayer(g *gorgonia.ExprGraph, name string, inputs, outputs int, activation ActivationFunc) *Layer {
	w := gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(outputs, inputs), gorgonia.WithName(name+"_w"), gorgonia.WithInit(gorgonia.GlorotN(1.0)))
	b := gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(1, outputs), gorgonia.WithName(name+"_b"), gorgonia.WithInit(gorgonia.Zeroes()))
	if activation == nil {
		activation = NoActivation
	}
	return &Layer{
		WeightNode: w,
		BiasNode:   b,
		Type:       LayerLinear,
		Activation: activation,
	}
}

// NewBatchNormLayer Creates batch normalization layer for inputs of shape (batch, size) with scale initialized by ones and shift by zeroes.
// Activation is applied after normalization.
func NewBatchNormLayer(g *gorgonia.ExprGraph, name string, size int, activation ActivationFunc) *Layer {
	gamma := gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(1, size), gorgonia.WithName(name+"_gamma"), gorgonia.WithInit(gorgonia.Ones()))
	beta := gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(1, size), gorgonia.WithName(name+"_beta"), gorgonia.WithInit(gorgonia.Zeroes()))
	if activation == nil {
		activation = NoActivation
	}
	return &Layer{
		WeightNode: gamma,
		BiasNode:   beta,
		Type:       LayerBatchNorm,
		Activation: activation,
		Epsilon:    defaultBatchNormEpsilon,
		Statistics: NewNormStatistics(name, size, defaultBatchNormMomentum),
	}
}

// shadow Returns copy of the layer living on graph g. Weight and bias nodes of the copy are bound to the same values,
// so updates of original layer are seen by the copy (and vice versa). Normalization statistics are shared as well.
func (l *Layer) shadow(g *gorgonia.ExprGraph, suffix string) (*Layer, error) {
	copied := &Layer{
		Activation:   l.Activation,
		Type:         l.Type,
		KernelHeight: l.KernelHeight,
		KernelWidth:  l.KernelWidth,
		Padding:      l.Padding,
		Stride:       l.Stride,
		Dilation:     l.Dilation,
		ReshapeDims:  l.ReshapeDims,
		Epsilon:      l.Epsilon,
		Statistics:   l.Statistics,
	}
	if l.WeightNode != nil {
		copied.WeightNode = shareNode(g, l.WeightNode, suffix)
	}
	if l.BiasNode != nil {
		copied.BiasNode = shareNode(g, l.BiasNode, suffix)
	}
	return copied, nil
}

func shareNode(g *gorgonia.ExprGraph, n *gorgonia.Node, suffix string) *gorgonia.Node {
	return gorgonia.NewTensor(g, n.Dtype(), n.Dims(), gorgonia.WithShape(n.Shape()...), gorgonia.WithName(n.Name()+suffix), gorgonia.WithValue(n.Value()))
}
