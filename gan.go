package gans_go

import (
	"fmt"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// GAN Vanilla generative adversarial network.
//
// Generator's losses are evaluated on generator graph against frozen copy (shadow) of discriminator,
// discriminator's losses are evaluated on discriminator graph where generated samples are plain inputs.
// That way every optimizer sees gradients of its own partition only.
// Sampling runs on separate graph where generator copy normalizes by running statistics.
//
type GAN struct {
	cfg       GANConfig
	data      *TrainSet
	sampler   LatentSampler
	batchSize int

	generator     *GeneratorNet
	discriminator *DiscriminatorNet

	gGraph *gorgonia.ExprGraph
	dGraph *gorgonia.ExprGraph
	sGraph *gorgonia.ExprGraph

	z     *gorgonia.Node
	zS    *gorgonia.Node
	fake  *gorgonia.Node
	xReal *gorgonia.Node
	xFake *gorgonia.Node

	gVM      gorgonia.VM
	dVM      gorgonia.VM
	sampleVM gorgonia.VM

	gRead      readout
	dRead      readout
	sampleRead *gorgonia.Value

	gGroup     *ParameterGroup
	dGroup     *ParameterGroup
	partition  Partition
	optimizers *OptimizerPair
}

var (
	ganHistograms = []string{"z", "g", "d_real", "d_fake"}
	ganScalars    = []string{"g_loss", "g_reg_loss", "g_total_loss", "d_loss", "d_loss_real", "d_loss_fake", "d_reg_loss", "d_total_loss"}
)

// NewGAN Creates vanilla GAN for provided train set
//
// cfg - hyperparameters
// data - examples of shape (N, features)
// gb, db - network builders. If nil then MLP builders from cfg are used
//
func NewGAN(cfg GANConfig, data *TrainSet, gb GeneratorBuilder, db DiscriminatorBuilder) (*GAN, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if data == nil {
		return nil, fmt.Errorf("Train set is nil")
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
	m := &GAN{
		cfg:       cfg,
		data:      data,
		sampler:   LatentSampler{Dim: cfg.ZDim, StdDev: cfg.ZStdDev},
		batchSize: cfg.BatchSize,
		gGraph:    gorgonia.NewGraph(),
		dGraph:    gorgonia.NewGraph(),
		sGraph:    gorgonia.NewGraph(),
	}
	features := data.Features()

	// Discriminator graph
	m.discriminator, err = db.BuildDiscriminator(m.dGraph, "discriminator", features, 0)
	if err != nil {
		return nil, errors.Wrap(err, "Can't build discriminator")
	}
	m.xReal = gorgonia.NewMatrix(m.dGraph, gorgonia.Float64, gorgonia.WithShape(m.batchSize, features), gorgonia.WithName("x"))
	m.xFake = gorgonia.NewMatrix(m.dGraph, gorgonia.Float64, gorgonia.WithShape(m.batchSize, features), gorgonia.WithName("x_g"))
	dReal, err := m.discriminator.Fwd(m.xReal, m.batchSize)
	if err != nil {
		return nil, errors.Wrap(err, "Can't feedforward real samples")
	}
	dFake, err := m.discriminator.Fwd(m.xFake, m.batchSize)
	if err != nil {
		return nil, errors.Wrap(err, "Can't feedforward generated samples")
	}
	realLabels := labelNode(m.dGraph, "labels_real", SmoothedRealLabels(m.batchSize, cfg.DLabelSmooth))
	fakeLabels := labelNode(m.dGraph, "labels_fake", ZeroLabels(m.batchSize))
	dLossReal, err := SigmoidCrossEntropyWithLogits(dReal.Logits, realLabels)
	if err != nil {
		return nil, errors.Wrap(err, "Can't define d_loss_real")
	}
	dLossFake, err := SigmoidCrossEntropyWithLogits(dFake.Logits, fakeLabels)
	if err != nil {
		return nil, errors.Wrap(err, "Can't define d_loss_fake")
	}
	dLoss, err := SumLosses(dLossReal, dLossFake)
	if err != nil {
		return nil, errors.Wrap(err, "Can't define d_loss")
	}
	m.dGroup = m.discriminator.Group()
	dReg, err := L2Regularization(m.dGroup.Regularized, cfg.RegConst)
	if err != nil {
		return nil, errors.Wrap(err, "Can't define d_reg_loss")
	}
	dTotal, err := SumLosses(dLoss, dReg)
	if err != nil {
		return nil, errors.Wrap(err, "Can't define d_total_loss")
	}
	if _, err = gorgonia.Grad(dTotal, m.dGroup.Params...); err != nil {
		return nil, errors.Wrap(err, "Can't differentiate d_total_loss")
	}
	m.dRead.add("d_real", dReal.Activations)
	m.dRead.add("d_fake", dFake.Activations)
	m.dRead.add("d_loss_real", dLossReal)
	m.dRead.add("d_loss_fake", dLossFake)
	m.dRead.add("d_loss", dLoss)
	m.dRead.add("d_reg_loss", dReg)
	m.dRead.add("d_total_loss", dTotal)
	m.dVM = gorgonia.NewTapeMachine(m.dGraph, gorgonia.BindDualValues(m.dGroup.Params...))

	// Generator graph
	m.generator, err = gb.BuildGenerator(m.gGraph, "generator", cfg.ZDim, features)
	if err != nil {
		return nil, errors.Wrap(err, "Can't build generator")
	}
	m.z = gorgonia.NewMatrix(m.gGraph, gorgonia.Float64, gorgonia.WithShape(m.batchSize, cfg.ZDim), gorgonia.WithName("z"))
	m.fake, err = m.generator.Fwd(m.z, m.batchSize)
	if err != nil {
		return nil, errors.Wrap(err, "Can't feedforward latent vectors")
	}
	frozen, err := m.discriminator.Shadow(m.gGraph, "_frozen")
	if err != nil {
		return nil, errors.Wrap(err, "Can't share discriminator with generator graph")
	}
	gD, err := frozen.Fwd(m.fake, m.batchSize)
	if err != nil {
		return nil, errors.Wrap(err, "Can't feedforward generated samples through frozen discriminator")
	}
	onesLabels := labelNode(m.gGraph, "labels_ones", SmoothedRealLabels(m.batchSize, 0))
	gLoss, err := SigmoidCrossEntropyWithLogits(gD.Logits, onesLabels)
	if err != nil {
		return nil, errors.Wrap(err, "Can't define g_loss")
	}
	m.gGroup = m.generator.Group()
	gReg, err := L2Regularization(m.gGroup.Regularized, cfg.RegConst)
	if err != nil {
		return nil, errors.Wrap(err, "Can't define g_reg_loss")
	}
	gTotal, err := SumLosses(gLoss, gReg)
	if err != nil {
		return nil, errors.Wrap(err, "Can't define g_total_loss")
	}
	if _, err = gorgonia.Grad(gTotal, m.gGroup.Params...); err != nil {
		return nil, errors.Wrap(err, "Can't differentiate g_total_loss")
	}
	m.gRead.add("z", m.z)
	m.gRead.add("g", m.fake)
	m.gRead.add("g_loss", gLoss)
	m.gRead.add("g_reg_loss", gReg)
	m.gRead.add("g_total_loss", gTotal)
	m.gVM = gorgonia.NewTapeMachine(m.gGraph, gorgonia.BindDualValues(m.gGroup.Params...))

	// Sampling graph
	sampling, err := m.generator.Shadow(m.sGraph, "_sample")
	if err != nil {
		return nil, errors.Wrap(err, "Can't share generator with sampling graph")
	}
	m.zS = gorgonia.NewMatrix(m.sGraph, gorgonia.Float64, gorgonia.WithShape(m.batchSize, cfg.ZDim), gorgonia.WithName("z"))
	sampleOut, err := sampling.Infer(m.zS, m.batchSize)
	if err != nil {
		return nil, errors.Wrap(err, "Can't define sampling")
	}
	m.sampleRead = new(gorgonia.Value)
	gorgonia.Read(sampleOut, m.sampleRead)
	m.sampleVM = gorgonia.NewTapeMachine(m.sGraph)

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

// Name See Model
func (m *GAN) Name() string {
	return m.cfg.Name
}

// NumBatches See Model
func (m *GAN) NumBatches() int {
	return m.data.NumBatches(m.batchSize)
}

// Scheduler See Model. Both parts are updated every step.
func (m *GAN) Scheduler() StepScheduler {
	return JointScheduler{}
}

// FinalSave See FinalSaver
func (m *GAN) FinalSave() bool {
	return true
}

// Partition Returns parameter groups of generator and discriminator
func (m *GAN) Partition() Partition {
	return m.partition
}

// Optimizers Returns optimizers of generator and discriminator
func (m *GAN) Optimizers() *OptimizerPair {
	return m.optimizers
}

// TrainStep See Model
func (m *GAN) TrainStep(idx int, update Update) (*StepResult, error) {
	batch, err := m.data.Batch(idx, m.batchSize)
	if err != nil {
		return nil, err
	}
	if err = gorgonia.Let(m.z, m.sampler.Z(m.batchSize)); err != nil {
		return nil, errors.Wrap(err, "Can't init latent vectors")
	}
	if err = runMachine(m.gVM); err != nil {
		return nil, errors.Wrap(err, "Can't run generator machine")
	}
	fake, err := m.gRead.dense("g")
	if err != nil {
		return nil, err
	}
	if err = gorgonia.Let(m.xReal, batch); err != nil {
		return nil, errors.Wrap(err, "Can't init real samples")
	}
	if err = gorgonia.Let(m.xFake, fake); err != nil {
		return nil, errors.Wrap(err, "Can't init generated samples")
	}
	if err = runMachine(m.dVM); err != nil {
		return nil, errors.Wrap(err, "Can't run discriminator machine")
	}
	if err = m.optimizers.Apply(update); err != nil {
		return nil, err
	}
	result := &StepResult{Update: update}
	gMetrics, err := m.gRead.metrics("g_total_loss")
	if err != nil {
		return nil, err
	}
	dMetrics, err := m.dRead.metrics("d_total_loss")
	if err != nil {
		return nil, err
	}
	result.Metrics = append(gMetrics, dMetrics...)
	gRecords, err := m.gRead.records(ganHistograms[:2], ganScalars[:3])
	if err != nil {
		return nil, err
	}
	dRecords, err := m.dRead.records(ganHistograms[2:], ganScalars[3:])
	if err != nil {
		return nil, err
	}
	result.Records = append(gRecords, dRecords...)
	return result, nil
}

// Sample Generates samples from provided latent vectors of shape (n, z_dim)
func (m *GAN) Sample(z *tensor.Dense) (*tensor.Dense, error) {
	out, err := generate(m.sampleVM, m.zS, []*gorgonia.Value{m.sampleRead}, m.batchSize, z)
	if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("Can't sample from '%s'", m.cfg.Name))
	}
	return out[0], nil
}

// SampleN Generates n samples from random latent vectors
func (m *GAN) SampleN(n int) (*tensor.Dense, error) {
	return m.Sample(m.sampler.Z(n))
}

// SampleDefault Generates batch of samples from training-time latent distribution
func (m *GAN) SampleDefault() (*tensor.Dense, error) {
	return m.SampleN(m.batchSize)
}

// Save See Model
func (m *GAN) Save(dir string, step int) error {
	return saveModel(dir, m.cfg.Name, step, m.partition)
}

// Load See Model
func (m *GAN) Load(dir string, step int) (int, error) {
	return loadModel(dir, m.cfg.Name, step, m.partition)
}
