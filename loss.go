package gans_go

import (
	"fmt"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

type LossReduction uint16

const (
	LossReductionSum = LossReduction(iota)
	LossReductionMean
)

func reduce(n *gorgonia.Node, reduction []LossReduction) (*gorgonia.Node, error) {
	reductionDefault := LossReductionMean
	if len(reduction) != 0 {
		reductionDefault = reduction[0]
	}
	switch reductionDefault {
	case LossReductionSum:
		return gorgonia.Sum(n)
	case LossReductionMean:
		return gorgonia.Mean(n)
	default:
		return nil, fmt.Errorf("Reduction type %d is not supported", reductionDefault)
	}
}

// MSELoss See ref. https://en.wikipedia.org/wiki/Mean_squared_error
// Default reduction is 'mean'
func MSELoss(a, b *gorgonia.Node, reduction ...LossReduction) (*gorgonia.Node, error) {
	sub, err := gorgonia.Sub(a, b)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (A-B)")
	}
	sqr, err := gorgonia.Square(sub)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (x^2)")
	}
	return reduce(sqr, reduction)
}

// CrossEntropyLoss See ref. https://en.wikipedia.org/wiki/Cross_entropy#Cross-entropy_loss_function_and_logistic_regression
// A - probabilities, B - targets.
// Default reduction is 'mean'
func CrossEntropyLoss(a, b *gorgonia.Node, reduction ...LossReduction) (*gorgonia.Node, error) {
	log, err := gorgonia.Log(a)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do log(A)")
	}
	neg, err := gorgonia.Neg(log)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do -1*x")
	}
	hprod, err := gorgonia.HadamardProd(neg, b)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (x.*B)")
	}
	return reduce(hprod, reduction)
}

// BinaryCrossEntropyLoss See ref. https://en.wikipedia.org/wiki/Cross_entropy#Cross-entropy_loss_function_and_logistic_regression
// Pretty the same as CrossEntropyLoss. BUT for C=2, where C - number of classes:
// -[B*log(A) + (1-B)*log(1-A)]
// Default reduction is 'mean'
func BinaryCrossEntropyLoss(a, b *gorgonia.Node, reduction ...LossReduction) (*gorgonia.Node, error) {
	logMain, err := gorgonia.Log(a)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do log(A)")
	}
	hprodMain, err := gorgonia.HadamardProd(logMain, b)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (x.*B)")
	}
	one := gorgonia.NewConstant(1.0)
	subA, err := gorgonia.Sub(one, a)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (1-A)")
	}
	logBin, err := gorgonia.Log(subA)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do log(1-A)")
	}
	subB, err := gorgonia.Sub(one, b)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (1-B)")
	}
	hprodBin, err := gorgonia.HadamardProd(logBin, subB)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (x.*(1-B))")
	}
	sum, err := gorgonia.Add(hprodMain, hprodBin)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (x+y)")
	}
	neg, err := gorgonia.Neg(sum)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do -1*x")
	}
	return reduce(neg, reduction)
}

// L1Loss See ref. https://en.wikipedia.org/wiki/Least_absolute_deviations
// Default reduction is 'mean'
func L1Loss(a, b *gorgonia.Node, reduction ...LossReduction) (*gorgonia.Node, error) {
	sub, err := gorgonia.Sub(a, b)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (A-B)")
	}
	abs, err := gorgonia.Abs(sub)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do |x|")
	}
	return reduce(abs, reduction)
}

// HuberLoss See ref. https://en.wikipedia.org/wiki/Huber_loss
// This is actually Pseudo Huber Loss - see ref. https://en.wikipedia.org/wiki/Huber_loss#Pseudo-Huber_loss_function
// Default reduction is 'mean'
func HuberLoss(a, b *gorgonia.Node, delta float64, reduction ...LossReduction) (*gorgonia.Node, error) {
	deltaScalar := gorgonia.NewConstant(delta)
	sqrDelta := gorgonia.NewConstant(delta * delta)
	oneScalar := gorgonia.NewConstant(1.0)

	sub, err := gorgonia.Sub(a, b)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (A-B)")
	}
	div, err := gorgonia.Div(sub, deltaScalar)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (X/delta)")
	}
	sqr, err := gorgonia.Square(div)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (x^2)")
	}
	addOneScalar, err := gorgonia.Add(oneScalar, sqr)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (1.+X)")
	}
	sqrt, err := gorgonia.Sqrt(addOneScalar)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do sqrt(x)")
	}
	subOneScalar, err := gorgonia.Sub(sqrt, oneScalar)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (X.-1)")
	}
	scaled, err := gorgonia.Mul(sqrDelta, subOneScalar)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (delta^2*x)")
	}
	return reduce(scaled, reduction)
}

// ReconstructionLoss Distance between real samples and their reconstructions, reduced to scalar
type ReconstructionLoss func(real, recon *gorgonia.Node) (*gorgonia.Node, error)

// ReconstructionLossByName Returns reconstruction loss registered under provided name
//
// "" or "mse" - MSELoss
// "l1" - L1Loss
// "huber" - HuberLoss with delta = 1
// "bce" - BinaryCrossEntropyLoss, reconstructions must be in (0, 1)
// "ce" - CrossEntropyLoss, reconstructions must be positive
//
func ReconstructionLossByName(name string) (ReconstructionLoss, error) {
	switch name {
	case "", "mse":
		return func(real, recon *gorgonia.Node) (*gorgonia.Node, error) {
			return MSELoss(real, recon)
		}, nil
	case "l1":
		return func(real, recon *gorgonia.Node) (*gorgonia.Node, error) {
			return L1Loss(real, recon)
		}, nil
	case "huber":
		return func(real, recon *gorgonia.Node) (*gorgonia.Node, error) {
			return HuberLoss(real, recon, 1.0)
		}, nil
	case "bce":
		return func(real, recon *gorgonia.Node) (*gorgonia.Node, error) {
			return BinaryCrossEntropyLoss(recon, real)
		}, nil
	case "ce":
		return func(real, recon *gorgonia.Node) (*gorgonia.Node, error) {
			return CrossEntropyLoss(recon, real)
		}, nil
	default:
		return nil, fmt.Errorf("Reconstruction loss '%s' is not supported", name)
	}
}

// SigmoidCrossEntropyWithLogits Numerically stable sigmoid cross entropy: max(x,0) - x*z + log(1+exp(-|x|))
// x - logits, z - labels (same shape). Reduction is 'mean'.
func SigmoidCrossEntropyWithLogits(logits, labels *gorgonia.Node) (*gorgonia.Node, error) {
	relu, err := gorgonia.Rectify(logits)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do max(x,0)")
	}
	xz, err := gorgonia.HadamardProd(logits, labels)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (x.*z)")
	}
	abs, err := gorgonia.Abs(logits)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do |x|")
	}
	negAbs, err := gorgonia.Neg(abs)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do -|x|")
	}
	exp, err := gorgonia.Exp(negAbs)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do exp(-|x|)")
	}
	log1p, err := gorgonia.Log1p(exp)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do log(1+exp(-|x|))")
	}
	sub, err := gorgonia.Sub(relu, xz)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do max(x,0)-x*z")
	}
	loss, err := gorgonia.Add(sub, log1p)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (x+y)")
	}
	return gorgonia.Mean(loss)
}

// SoftmaxCrossEntropyWithLogits -sum(labels*log(softmax(logits)), axis=1) averaged over batch.
// Both nodes must be of shape (batch, numClasses).
func SoftmaxCrossEntropyWithLogits(logits, labels *gorgonia.Node) (*gorgonia.Node, error) {
	if logits.Dims() != 2 {
		return nil, fmt.Errorf("Logits must be matrix (batch, classes), but got %d dims", logits.Dims())
	}
	softmax, err := gorgonia.SoftMax(logits, 1)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do softmax(x)")
	}
	log, err := gorgonia.Log(softmax)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do log(softmax(x))")
	}
	hprod, err := gorgonia.HadamardProd(labels, log)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (z.*log(softmax(x)))")
	}
	perSample, err := gorgonia.Sum(hprod, 1)
	if err != nil {
		return nil, errors.Wrap(err, "Can't sum along classes")
	}
	mean, err := gorgonia.Mean(perSample)
	if err != nil {
		return nil, errors.Wrap(err, "Can't average along batch")
	}
	return gorgonia.Neg(mean)
}

// FeatureMatchingLoss Sum of per-pair mean squared errors between two equal-length sequences of activations.
// Returns nil node (zero loss) for empty sequences.
func FeatureMatchingLoss(real, fake []*gorgonia.Node) (*gorgonia.Node, error) {
	if len(real) != len(fake) {
		return nil, fmt.Errorf("Feature matching needs equal number of real and fake features, but got %d and %d", len(real), len(fake))
	}
	terms := make([]*gorgonia.Node, 0, len(real))
	for i := range real {
		mse, err := MSELoss(real[i], fake[i])
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("Can't match features #%d", i))
		}
		terms = append(terms, mse)
	}
	return SumLosses(terms...)
}

// GradientPenalty lambda * mean((||dD(xHat)/dxHat||_2 - 1)^2)
//
// criticOut - critic values for xHat, shape (batch, 1)
// xHat - input node (interpolated samples), first dimension is batch; norm is taken over the rest dimensions
//
func GradientPenalty(criticOut, xHat *gorgonia.Node, lambda float64) (*gorgonia.Node, error) {
	if xHat.Dims() < 2 {
		return nil, fmt.Errorf("Interpolated samples must have batch dimension and at least one more, but got %d dims", xHat.Dims())
	}
	total, err := gorgonia.Sum(criticOut)
	if err != nil {
		return nil, errors.Wrap(err, "Can't sum critic values")
	}
	grads, err := gorgonia.Grad(total, xHat)
	if err != nil {
		return nil, errors.Wrap(err, "Can't differentiate critic with respect to interpolated samples")
	}
	sqr, err := gorgonia.Square(grads[0])
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (grad^2)")
	}
	axes := make([]int, 0, xHat.Dims()-1)
	for i := 1; i < xHat.Dims(); i++ {
		axes = append(axes, i)
	}
	sumSqr, err := gorgonia.Sum(sqr, axes...)
	if err != nil {
		return nil, errors.Wrap(err, "Can't sum squared gradients per sample")
	}
	norm, err := gorgonia.Sqrt(sumSqr)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do sqrt(x)")
	}
	diff, err := gorgonia.Sub(norm, gorgonia.NewConstant(1.0))
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (||grad||-1)")
	}
	diffSqr, err := gorgonia.Square(diff)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (x^2)")
	}
	mean, err := gorgonia.Mean(diffSqr)
	if err != nil {
		return nil, errors.Wrap(err, "Can't average penalty")
	}
	return gorgonia.Mul(mean, gorgonia.NewConstant(lambda))
}

// L2Regularization scale * sum(w^2)/2 over all provided nodes. Returns nil node (zero loss) when there is nothing to regularize.
func L2Regularization(params gorgonia.Nodes, scale float64) (*gorgonia.Node, error) {
	if len(params) == 0 || scale == 0 {
		return nil, nil
	}
	terms := make([]*gorgonia.Node, 0, len(params))
	for _, w := range params {
		sqr, err := gorgonia.Square(w)
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("Can't do (%s^2)", w.Name()))
		}
		sum, err := gorgonia.Sum(sqr)
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("Can't sum (%s^2)", w.Name()))
		}
		terms = append(terms, sum)
	}
	total, err := SumLosses(terms...)
	if err != nil {
		return nil, err
	}
	return gorgonia.Mul(total, gorgonia.NewConstant(scale/2.0))
}

// SumLosses Adds scalar loss terms. Nil terms are treated as zero, nil is returned when every term is nil.
func SumLosses(terms ...*gorgonia.Node) (*gorgonia.Node, error) {
	var total *gorgonia.Node
	for i, t := range terms {
		if t == nil {
			continue
		}
		if total == nil {
			total = t
			continue
		}
		var err error
		total, err = gorgonia.Add(total, t)
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("Can't add loss term #%d", i))
		}
	}
	return total, nil
}

// SmoothedRealLabels Returns (n, 1) tensor filled with 1-smooth (exactly 1 when smooth <= 0). One-sided label smoothing.
func SmoothedRealLabels(n int, smooth float64) *tensor.Dense {
	value := 1.0
	if smooth > 0 {
		value = 1.0 - smooth
	}
	data := make([]float64, n)
	for i := range data {
		data[i] = value
	}
	return tensor.New(tensor.WithShape(n, 1), tensor.WithBacking(data))
}

// ZeroLabels Returns (n, 1) tensor filled with zeroes
func ZeroLabels(n int) *tensor.Dense {
	return tensor.New(tensor.WithShape(n, 1), tensor.WithBacking(make([]float64, n)))
}

// OneHot Returns (len(labels), numClasses) tensor with one-hot encoded labels
func OneHot(labels []int, numClasses int) (*tensor.Dense, error) {
	return SmoothOneHot(labels, numClasses, 0)
}

// SmoothOneHot (1-smooth)*onehot + smooth/numClasses. Smoothing mass is spread uniformly across all classes.
func SmoothOneHot(labels []int, numClasses int, smooth float64) (*tensor.Dense, error) {
	if numClasses <= 0 {
		return nil, fmt.Errorf("Number of classes must be positive, but got %d", numClasses)
	}
	if smooth < 0 {
		smooth = 0
	}
	off := smooth / float64(numClasses)
	on := 1.0 - smooth + off
	data := make([]float64, len(labels)*numClasses)
	for i, c := range labels {
		if c < 0 || c >= numClasses {
			return nil, fmt.Errorf("Label %d at position %d is out of range [0, %d)", c, i, numClasses)
		}
		row := data[i*numClasses : (i+1)*numClasses]
		for j := range row {
			row[j] = off
		}
		row[c] = on
	}
	return tensor.New(tensor.WithShape(len(labels), numClasses), tensor.WithBacking(data)), nil
}

// Interpolate Returns real*eps + fake*(1-eps) where eps is taken per sample (per row)
//
// real, fake - tensors of the same shape, first dimension is batch
// eps - batch-sized coefficients in [0, 1]
//
func Interpolate(real, fake *tensor.Dense, eps []float64) (*tensor.Dense, error) {
	if !real.Shape().Eq(fake.Shape()) {
		return nil, fmt.Errorf("Real and fake samples must have same shape, but got %v and %v", real.Shape(), fake.Shape())
	}
	batchSize := real.Shape()[0]
	if len(eps) != batchSize {
		return nil, fmt.Errorf("Need %d interpolation coefficients, but got %d", batchSize, len(eps))
	}
	realData, ok := real.Data().([]float64)
	if !ok {
		return nil, fmt.Errorf("Real samples must be float64, but got %v", real.Dtype())
	}
	fakeData, ok := fake.Data().([]float64)
	if !ok {
		return nil, fmt.Errorf("Fake samples must be float64, but got %v", fake.Dtype())
	}
	rowSize := len(realData) / batchSize
	data := make([]float64, len(realData))
	for i := 0; i < batchSize; i++ {
		for j := i * rowSize; j < (i+1)*rowSize; j++ {
			data[j] = realData[j]*eps[i] + fakeData[j]*(1-eps[i])
		}
	}
	return tensor.New(tensor.WithShape(real.Shape().Clone()...), tensor.WithBacking(data)), nil
}
