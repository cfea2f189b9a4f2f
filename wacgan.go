package gans_go

import (
	"fmt"

	"github.com/LdDl/gans-go/summary"
	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// WACGAN Improved Wasserstein GAN with auxiliary classifier.
//
// Critic produces raw values, Lipschitz constraint is approximated by gradient penalty on interpolated samples.
// Generator input is latent vector concatenated with one-hot encoded class.
//
type WACGAN struct {
	cfg       WACGANConfig
	data      *TrainSet
	sampler   LatentSampler
	batchSize int
	features  int

	generator     *GeneratorNet
	discriminator *DiscriminatorNet

	gGraph *gorgonia.ExprGraph
	dGraph *gorgonia.ExprGraph
	sGraph *gorgonia.ExprGraph

	// generator graph inputs
	z *gorgonia.Node
	c *gorgonia.Node
	// discriminator graph inputs
	xReal *gorgonia.Node
	xFake *gorgonia.Node
	xHat  *gorgonia.Node
	y     *gorgonia.Node
	// sampling graph input
	zS *gorgonia.Node

	gVM       gorgonia.VM
	dVM       gorgonia.VM
	forwardVM gorgonia.VM
	sampleVM  gorgonia.VM

	gRead       readout
	dRead       readout
	forwardRead *gorgonia.Value
	sampleRead  *gorgonia.Value

	gGroup     *ParameterGroup
	dGroup     *ParameterGroup
	partition  Partition
	optimizers *OptimizerPair
}

var (
	wacganGeneratorScalars     = []string{"g_loss", "g_c_loss", "g_reg_loss", "g_total_loss"}
	wacganDiscriminatorHists   = []string{"d_real", "d_fake", "d_c_real", "d_c_fake"}
	wacganDiscriminatorScalars = []string{"d_loss", "d_loss_real", "d_loss_fake", "d_grad_loss", "d_c_loss", "d_reg_loss", "d_total_loss"}
)

// NewWACGAN Creates WACGAN for provided labeled train set
//
// cfg - hyperparameters (NumClasses must be set)
// data - examples of shape (N, features) with labels in [0, NumClasses)
// gb, db - network builders. If nil then MLP builders from cfg are used
//
func NewWACGAN(cfg WACGANConfig, data *TrainSet, gb GeneratorBuilder, db DiscriminatorBuilder) (*WACGAN, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if data == nil {
		return nil, fmt.Errorf("Train set is nil")
	}
	if data.Labels == nil {
		return nil, fmt.Errorf("Train set of conditional model must have labels")
	}
	for i, label := range data.Labels {
		if label < 0 || label >= cfg.NumClasses {
			return nil, fmt.Errorf("Label %d of example #%d is out of range [0, %d)", label, i, cfg.NumClasses)
		}
	}
	var err error
	if gb == nil {
		if gb, err = cfg.Generator.GeneratorBuilder(); err != nil {
			return nil, err
		}
	}
	if db == nil {
		if db, err = cfg.Discriminator.DiscriminatorBuilder(); err != nil {
			return nil, err
		}
	}
	m := &WACGAN{
		cfg:       cfg,
		data:      data,
		sampler:   LatentSampler{Dim: cfg.ZDim, StdDev: cfg.ZStdDev, NumClasses: cfg.NumClasses},
		batchSize: cfg.BatchSize,
		features:  data.Features(),
		gGraph:    gorgonia.NewGraph(),
		dGraph:    gorgonia.NewGraph(),
		sGraph:    gorgonia.NewGraph(),
	}
	if err = m.buildCritic(db); err != nil {
		return nil, err
	}
	if err = m.buildGenerator(gb); err != nil {
		return nil, err
	}
	m.partition, err = NewPartition(m.gGroup, m.dGroup)
	if err != nil {
		return nil, errors.Wrap(err, "Bad parameters partition")
	}
	m.optimizers, err = NewOptimizerPair(m.gGroup, m.dGroup, cfg.GOptimizer, cfg.DOptimizer)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (m *WACGAN) buildCritic(db DiscriminatorBuilder) error {
	var err error
	m.discriminator, err = db.BuildDiscriminator(m.dGraph, "discriminator", m.features, m.cfg.NumClasses)
	if err != nil {
		return errors.Wrap(err, "Can't build critic")
	}
	if !m.discriminator.Conditional() {
		return fmt.Errorf("Critic '%s' has no classifier head", m.discriminator.Name())
	}
	m.xReal = gorgonia.NewMatrix(m.dGraph, gorgonia.Float64, gorgonia.WithShape(m.batchSize, m.features), gorgonia.WithName("x"))
	m.xFake = gorgonia.NewMatrix(m.dGraph, gorgonia.Float64, gorgonia.WithShape(m.batchSize, m.features), gorgonia.WithName("x_g"))
	m.xHat = gorgonia.NewMatrix(m.dGraph, gorgonia.Float64, gorgonia.WithShape(m.batchSize, m.features), gorgonia.WithName("x_hat"))
	m.y = gorgonia.NewMatrix(m.dGraph, gorgonia.Float64, gorgonia.WithShape(m.batchSize, m.cfg.NumClasses), gorgonia.WithName("labels_c_real"))

	dReal, err := m.discriminator.Fwd(m.xReal, m.batchSize)
	if err != nil {
		return errors.Wrap(err, "Can't feedforward real samples")
	}
	dFake, err := m.discriminator.Fwd(m.xFake, m.batchSize)
	if err != nil {
		return errors.Wrap(err, "Can't feedforward generated samples")
	}
	dHat, err := m.discriminator.Fwd(m.xHat, m.batchSize)
	if err != nil {
		return errors.Wrap(err, "Can't feedforward interpolated samples")
	}

	dLossReal, err := gorgonia.Mean(dReal.Logits)
	if err != nil {
		return errors.Wrap(err, "Can't define d_loss_real")
	}
	dLossFake, err := gorgonia.Mean(dFake.Logits)
	if err != nil {
		return errors.Wrap(err, "Can't define d_loss_fake")
	}
	dLoss, err := gorgonia.Sub(dLossFake, dLossReal)
	if err != nil {
		return errors.Wrap(err, "Can't define d_loss")
	}
	dGrad, err := GradientPenalty(dHat.Logits, m.xHat, m.cfg.DLambda)
	if err != nil {
		return errors.Wrap(err, "Can't define d_grad_loss")
	}
	dCLoss, err := SoftmaxCrossEntropyWithLogits(dReal.ClassLogits, m.y)
	if err != nil {
		return errors.Wrap(err, "Can't define d_c_loss")
	}
	m.dGroup = m.discriminator.Group()
	dReg, err := L2Regularization(m.dGroup.Regularized, m.cfg.RegConst)
	if err != nil {
		return errors.Wrap(err, "Can't define d_reg_loss")
	}
	dTotal, err := SumLosses(dLoss, dCLoss, dGrad, dReg)
	if err != nil {
		return errors.Wrap(err, "Can't define d_total_loss")
	}
	// Penalty has been differentiated already, so the total loss goes last
	if _, err = gorgonia.Grad(dTotal, m.dGroup.Params...); err != nil {
		return errors.Wrap(err, "Can't differentiate d_total_loss")
	}
	m.dRead.add("d_real", dReal.Activations)
	m.dRead.add("d_fake", dFake.Activations)
	m.dRead.add("d_c_real", dReal.ClassActivations)
	m.dRead.add("d_c_fake", dFake.ClassActivations)
	m.dRead.add("d_loss", dLoss)
	m.dRead.add("d_loss_real", dLossReal)
	m.dRead.add("d_loss_fake", dLossFake)
	m.dRead.add("d_grad_loss", dGrad)
	m.dRead.add("d_c_loss", dCLoss)
	m.dRead.add("d_reg_loss", dReg)
	m.dRead.add("d_total_loss", dTotal)
	m.dVM = gorgonia.NewTapeMachine(m.dGraph, gorgonia.BindDualValues(m.dGroup.Params...))
	return nil
}

func (m *WACGAN) buildGenerator(gb GeneratorBuilder) error {
	var err error
	inputSize := m.cfg.ZDim + m.cfg.NumClasses
	m.generator, err = gb.BuildGenerator(m.gGraph, "generator", inputSize, m.features)
	if err != nil {
		return errors.Wrap(err, "Can't build generator")
	}
	m.z = gorgonia.NewMatrix(m.gGraph, gorgonia.Float64, gorgonia.WithShape(m.batchSize, inputSize), gorgonia.WithName("z"))
	m.c = gorgonia.NewMatrix(m.gGraph, gorgonia.Float64, gorgonia.WithShape(m.batchSize, m.cfg.NumClasses), gorgonia.WithName("c"))
	fake, err := m.generator.Fwd(m.z, m.batchSize)
	if err != nil {
		return errors.Wrap(err, "Can't feedforward latent vectors")
	}
	frozen, err := m.discriminator.Shadow(m.gGraph, "_frozen")
	if err != nil {
		return errors.Wrap(err, "Can't share critic with generator graph")
	}
	gD, err := frozen.Fwd(fake, m.batchSize)
	if err != nil {
		return errors.Wrap(err, "Can't feedforward generated samples through frozen critic")
	}
	meanFake, err := gorgonia.Mean(gD.Logits)
	if err != nil {
		return errors.Wrap(err, "Can't average critic values")
	}
	gLoss, err := gorgonia.Neg(meanFake)
	if err != nil {
		return errors.Wrap(err, "Can't define g_loss")
	}
	gCLoss, err := SoftmaxCrossEntropyWithLogits(gD.ClassLogits, m.c)
	if err != nil {
		return errors.Wrap(err, "Can't define g_c_loss")
	}
	m.gGroup = m.generator.Group()
	gReg, err := L2Regularization(m.gGroup.Regularized, m.cfg.RegConst)
	if err != nil {
		return errors.Wrap(err, "Can't define g_reg_loss")
	}
	gTotal, err := SumLosses(gLoss, gCLoss, gReg)
	if err != nil {
		return errors.Wrap(err, "Can't define g_total_loss")
	}
	if _, err = gorgonia.Grad(gTotal, m.gGroup.Params...); err != nil {
		return errors.Wrap(err, "Can't differentiate g_total_loss")
	}
	m.gRead.add("z", m.z)
	m.gRead.add("g_c_fake", gD.ClassActivations)
	m.gRead.add("g_loss", gLoss)
	m.gRead.add("g_c_loss", gCLoss)
	m.gRead.add("g_reg_loss", gReg)
	m.gRead.add("g_total_loss", gTotal)
	// Generated samples are read by both machines: the full one and forward-only one (critic-only steps)
	m.forwardRead = new(gorgonia.Value)
	forwardOut := gorgonia.Read(fake, m.forwardRead)
	m.gVM = gorgonia.NewTapeMachine(m.gGraph, gorgonia.BindDualValues(m.gGroup.Params...))
	m.forwardVM = gorgonia.NewTapeMachine(m.gGraph.SubgraphRoots(forwardOut))

	sampling, err := m.generator.Shadow(m.sGraph, "_sample")
	if err != nil {
		return errors.Wrap(err, "Can't share generator with sampling graph")
	}
	m.zS = gorgonia.NewMatrix(m.sGraph, gorgonia.Float64, gorgonia.WithShape(m.batchSize, inputSize), gorgonia.WithName("z"))
	sampleOut, err := sampling.Infer(m.zS, m.batchSize)
	if err != nil {
		return errors.Wrap(err, "Can't define sampling")
	}
	m.sampleRead = new(gorgonia.Value)
	gorgonia.Read(sampleOut, m.sampleRead)
	m.sampleVM = gorgonia.NewTapeMachine(m.sGraph)
	return nil
}

// Name See Model
func (m *WACGAN) Name() string {
	return m.cfg.Name
}

// NumBatches See Model
func (m *WACGAN) NumBatches() int {
	return m.data.NumBatches(m.batchSize)
}

// Scheduler See Model
func (m *WACGAN) Scheduler() StepScheduler {
	return m.cfg.Scheduler
}

// FinalSave See FinalSaver
func (m *WACGAN) FinalSave() bool {
	return true
}

// Partition Returns parameter groups of generator and critic
func (m *WACGAN) Partition() Partition {
	return m.partition
}

// Optimizers Returns optimizers of generator and critic
func (m *WACGAN) Optimizers() *OptimizerPair {
	return m.optimizers
}

// TrainStep See Model. Generator losses, accuracy and summary records are produced by joint steps only.
func (m *WACGAN) TrainStep(idx int, update Update) (*StepResult, error) {
	batch, err := m.data.Batch(idx, m.batchSize)
	if err != nil {
		return nil, err
	}
	labels, err := m.data.Classes(idx, m.batchSize)
	if err != nil {
		return nil, err
	}
	c, err := m.sampler.Classes(m.batchSize)
	if err != nil {
		return nil, err
	}
	input, err := m.sampler.ConditionalInput(m.sampler.Z(m.batchSize), c)
	if err != nil {
		return nil, errors.Wrap(err, "Can't prepare generator input")
	}
	if err = gorgonia.Let(m.z, input); err != nil {
		return nil, errors.Wrap(err, "Can't init generator input")
	}
	joint := update == UpdateJoint
	if joint {
		cOneHot, err := OneHot(c, m.cfg.NumClasses)
		if err != nil {
			return nil, err
		}
		if err = gorgonia.Let(m.c, cOneHot); err != nil {
			return nil, errors.Wrap(err, "Can't init sampled classes")
		}
		if err = runMachine(m.gVM); err != nil {
			return nil, errors.Wrap(err, "Can't run generator machine")
		}
	} else {
		if err = runMachine(m.forwardVM); err != nil {
			return nil, errors.Wrap(err, "Can't run generator forward machine")
		}
	}
	fake, ok := (*m.forwardRead).(*tensor.Dense)
	if !ok {
		return nil, fmt.Errorf("Generated samples are not dense tensor (got %T)", *m.forwardRead)
	}
	fake = fake.Clone().(*tensor.Dense)

	realClasses, err := SmoothOneHot(labels, m.cfg.NumClasses, m.cfg.DLabelSmooth)
	if err != nil {
		return nil, err
	}
	xHat, err := Interpolate(batch, fake, m.sampler.Epsilon(m.batchSize))
	if err != nil {
		return nil, errors.Wrap(err, "Can't interpolate samples")
	}
	for _, in := range []struct {
		node  *gorgonia.Node
		value *tensor.Dense
	}{
		{m.xReal, batch}, {m.xFake, fake}, {m.xHat, xHat}, {m.y, realClasses},
	} {
		if err = gorgonia.Let(in.node, in.value); err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("Can't init '%s'", in.node.Name()))
		}
	}
	if err = runMachine(m.dVM); err != nil {
		return nil, errors.Wrap(err, "Can't run critic machine")
	}
	if err = m.optimizers.Apply(update); err != nil {
		return nil, err
	}

	result := &StepResult{Update: update}
	dMetrics, err := m.dRead.metrics("d_total_loss")
	if err != nil {
		return nil, err
	}
	dRealClasses, err := m.dRead.value("d_c_real")
	if err != nil {
		return nil, err
	}
	dAccuracy, err := Accuracy(dRealClasses, labels)
	if err != nil {
		return nil, errors.Wrap(err, "Can't evaluate d_c_accuracy")
	}
	result.Metrics = append(dMetrics, Metric{Name: "d_c_accuracy", Value: dAccuracy})
	if !joint {
		return result, nil
	}

	gMetrics, err := m.gRead.metrics("g_total_loss")
	if err != nil {
		return nil, err
	}
	gFakeClasses, err := m.gRead.value("g_c_fake")
	if err != nil {
		return nil, err
	}
	gAccuracy, err := Accuracy(gFakeClasses, c)
	if err != nil {
		return nil, errors.Wrap(err, "Can't evaluate g_c_accuracy")
	}
	result.Metrics = append(result.Metrics, gMetrics[0], Metric{Name: "g_c_accuracy", Value: gAccuracy})

	gRecords, err := m.gRead.records([]string{"z"}, wacganGeneratorScalars)
	if err != nil {
		return nil, err
	}
	classes := make([]float64, len(c))
	for i := range c {
		classes[i] = float64(c[i])
	}
	gRecords = append(gRecords, summary.Values("c", classes), summary.Values("g", fake.Data().([]float64)))
	dRecords, err := m.dRead.records(wacganDiscriminatorHists, wacganDiscriminatorScalars)
	if err != nil {
		return nil, err
	}
	result.Records = append(gRecords, dRecords...)
	return result, nil
}

// Sample Generates samples of classes c from latent vectors z of shape (n, z_dim)
func (m *WACGAN) Sample(z *tensor.Dense, c []int) (*tensor.Dense, error) {
	input, err := m.sampler.ConditionalInput(z, c)
	if err != nil {
		return nil, errors.Wrap(err, "Can't prepare generator input")
	}
	out, err := generate(m.sampleVM, m.zS, []*gorgonia.Value{m.sampleRead}, m.batchSize, input)
	if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("Can't sample from '%s'", m.cfg.Name))
	}
	return out[0], nil
}

// SampleN Generates n samples of random classes from random latent vectors. Returns samples and their classes.
func (m *WACGAN) SampleN(n int) (*tensor.Dense, []int, error) {
	c, err := m.sampler.Classes(n)
	if err != nil {
		return nil, nil, err
	}
	samples, err := m.Sample(m.sampler.Z(n), c)
	if err != nil {
		return nil, nil, err
	}
	return samples, c, nil
}

// SampleDefault Generates batch of samples from training-time latent and class distributions
func (m *WACGAN) SampleDefault() (*tensor.Dense, []int, error) {
	return m.SampleN(m.batchSize)
}

// Save See Model
func (m *WACGAN) Save(dir string, step int) error {
	return saveModel(dir, m.cfg.Name, step, m.partition)
}

// Load See Model
func (m *WACGAN) Load(dir string, step int) (int, error) {
	return loadModel(dir, m.cfg.Name, step, m.partition)
}

// Accuracy Share of rows of scores (n, classes) whose argmax equals label
func Accuracy(scores gorgonia.Value, labels []int) (float64, error) {
	data, err := valuesOf(scores)
	if err != nil {
		return 0, err
	}
	if len(labels) == 0 {
		return 0, fmt.Errorf("No labels provided")
	}
	if len(data)%len(labels) != 0 {
		return 0, fmt.Errorf("Scores of %d values can't be split into %d rows", len(data), len(labels))
	}
	k := len(data) / len(labels)
	correct := 0
	for i, label := range labels {
		row := data[i*k : (i+1)*k]
		best := 0
		for j := range row {
			if row[j] > row[best] {
				best = j
			}
		}
		if best == label {
			correct++
		}
	}
	return float64(correct) / float64(len(labels)), nil
}
