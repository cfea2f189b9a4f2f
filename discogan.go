package gans_go

import (
	"fmt"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// DiscoGAN Translation between two domains by pair of generators and pair of discriminators.
//
// x_generator translates Y into X, y_generator translates X into Y. Round trips (X -> Y -> X and Y -> X -> Y)
// give reconstructions. Both generators share single optimizer, so do both discriminators.
//
type DiscoGAN struct {
	cfg       DiscoGANConfig
	dataX     *TrainSet
	dataY     *TrainSet
	batchSize int
	lastIdx   int
	reconLoss ReconstructionLoss

	xGenerator     *GeneratorNet
	yGenerator     *GeneratorNet
	xDiscriminator *DiscriminatorNet
	yDiscriminator *DiscriminatorNet

	gGraph *gorgonia.ExprGraph
	dGraph *gorgonia.ExprGraph
	sGraph *gorgonia.ExprGraph

	// generator graph inputs
	x *gorgonia.Node
	y *gorgonia.Node
	// discriminator graph inputs
	dX  *gorgonia.Node
	dY  *gorgonia.Node
	dXG *gorgonia.Node
	dYG *gorgonia.Node
	// sampling graph inputs
	xS *gorgonia.Node
	yS *gorgonia.Node

	gVM       gorgonia.VM
	dVM       gorgonia.VM
	sampleXVM gorgonia.VM
	sampleYVM gorgonia.VM

	gRead    readout
	dRead    readout
	sampleXG *gorgonia.Value
	sampleYR *gorgonia.Value
	sampleYG *gorgonia.Value
	sampleXR *gorgonia.Value

	gGroup     *ParameterGroup
	dGroup     *ParameterGroup
	partition  Partition
	optimizers *OptimizerPair
}

var (
	discoGANGeneratorHistograms     = []string{"x", "y", "x_g", "y_g", "x_g_recon", "y_g_recon"}
	discoGANDiscriminatorHistograms = []string{"x_d_real", "y_d_real", "x_d_fake", "y_d_fake"}
)

// discoDomain Generator-side losses of single domain
type discoDomain struct {
	gLoss     *gorgonia.Node
	reconLoss *gorgonia.Node
}

// NewDiscoGAN Creates DiscoGAN for provided domains
//
// cfg - hyperparameters
// dataX, dataY - examples of X and Y domains (unpaired), shapes (N, features_x) and (M, features_y)
// gb, db - network builders. If nil then MLP builders from cfg are used
//
func NewDiscoGAN(cfg DiscoGANConfig, dataX, dataY *TrainSet, gb GeneratorBuilder, db DiscriminatorBuilder) (*DiscoGAN, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if dataX == nil || dataY == nil {
		return nil, fmt.Errorf("Train sets of both domains are required")
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
	reconLoss, err := ReconstructionLossByName(cfg.ReconLoss)
	if err != nil {
		return nil, err
	}
	m := &DiscoGAN{
		cfg:       cfg,
		reconLoss: reconLoss,
		dataX:     dataX,
		dataY:     dataY,
		batchSize: cfg.BatchSize,
		gGraph:    gorgonia.NewGraph(),
		dGraph:    gorgonia.NewGraph(),
		sGraph:    gorgonia.NewGraph(),
	}
	fx, fy := dataX.Features(), dataY.Features()

	if err = m.buildDiscriminators(db, fx, fy); err != nil {
		return nil, err
	}
	if err = m.buildGenerators(gb, fx, fy); err != nil {
		return nil, err
	}

	m.partition, err = NewPartition(m.xGenerator.Group(), m.yGenerator.Group(), m.xDiscriminator.Group(), m.yDiscriminator.Group())
	if err != nil {
		return nil, errors.Wrap(err, "Bad parameters partition")
	}
	m.gGroup = MergeGroups("generator", m.partition[0], m.partition[1])
	m.dGroup = MergeGroups("discriminator", m.partition[2], m.partition[3])
	m.optimizers, err = NewOptimizerPair(m.gGroup, m.dGroup, cfg.GOptimizer, cfg.DOptimizer)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (m *DiscoGAN) buildDiscriminators(db DiscriminatorBuilder, fx, fy int) error {
	var err error
	m.xDiscriminator, err = db.BuildDiscriminator(m.dGraph, "x_discriminator", fx, 0)
	if err != nil {
		return errors.Wrap(err, "Can't build discriminator of X")
	}
	m.yDiscriminator, err = db.BuildDiscriminator(m.dGraph, "y_discriminator", fy, 0)
	if err != nil {
		return errors.Wrap(err, "Can't build discriminator of Y")
	}
	m.dX = gorgonia.NewMatrix(m.dGraph, gorgonia.Float64, gorgonia.WithShape(m.batchSize, fx), gorgonia.WithName("x"))
	m.dY = gorgonia.NewMatrix(m.dGraph, gorgonia.Float64, gorgonia.WithShape(m.batchSize, fy), gorgonia.WithName("y"))
	m.dXG = gorgonia.NewMatrix(m.dGraph, gorgonia.Float64, gorgonia.WithShape(m.batchSize, fx), gorgonia.WithName("x_g"))
	m.dYG = gorgonia.NewMatrix(m.dGraph, gorgonia.Float64, gorgonia.WithShape(m.batchSize, fy), gorgonia.WithName("y_g"))

	// Same smoothed labels for both domains
	realLabels := labelNode(m.dGraph, "labels_real", SmoothedRealLabels(m.batchSize, m.cfg.DLabelSmooth))
	fakeLabels := labelNode(m.dGraph, "labels_fake", ZeroLabels(m.batchSize))

	terms := []*gorgonia.Node{}
	for _, domain := range []struct {
		prefix string
		net    *DiscriminatorNet
		real   *gorgonia.Node
		fake   *gorgonia.Node
	}{
		{"x", m.xDiscriminator, m.dX, m.dXG},
		{"y", m.yDiscriminator, m.dY, m.dYG},
	} {
		dReal, err := domain.net.Fwd(domain.real, m.batchSize)
		if err != nil {
			return errors.Wrap(err, fmt.Sprintf("Can't feedforward real samples of %s", domain.prefix))
		}
		dFake, err := domain.net.Fwd(domain.fake, m.batchSize)
		if err != nil {
			return errors.Wrap(err, fmt.Sprintf("Can't feedforward generated samples of %s", domain.prefix))
		}
		lossReal, err := SigmoidCrossEntropyWithLogits(dReal.Logits, realLabels)
		if err != nil {
			return errors.Wrap(err, fmt.Sprintf("Can't define %s_d_loss_real", domain.prefix))
		}
		lossFake, err := SigmoidCrossEntropyWithLogits(dFake.Logits, fakeLabels)
		if err != nil {
			return errors.Wrap(err, fmt.Sprintf("Can't define %s_d_loss_fake", domain.prefix))
		}
		reg, err := L2Regularization(domain.net.Weights(), m.cfg.RegConst)
		if err != nil {
			return errors.Wrap(err, fmt.Sprintf("Can't define %s_d_reg_loss", domain.prefix))
		}
		terms = append(terms, lossReal, lossFake, reg)
		m.dRead.add(domain.prefix+"_d_real", dReal.Activations)
		m.dRead.add(domain.prefix+"_d_fake", dFake.Activations)
	}
	dTotal, err := SumLosses(terms...)
	if err != nil {
		return errors.Wrap(err, "Can't define d_total_loss")
	}
	params := append(m.xDiscriminator.Learnables(), m.yDiscriminator.Learnables()...)
	if _, err = gorgonia.Grad(dTotal, params...); err != nil {
		return errors.Wrap(err, "Can't differentiate d_total_loss")
	}
	m.dRead.add("d_total_loss", dTotal)
	m.dVM = gorgonia.NewTapeMachine(m.dGraph, gorgonia.BindDualValues(params...))
	return nil
}

func (m *DiscoGAN) buildGenerators(gb GeneratorBuilder, fx, fy int) error {
	var err error
	m.xGenerator, err = gb.BuildGenerator(m.gGraph, "x_generator", fy, fx)
	if err != nil {
		return errors.Wrap(err, "Can't build generator of X")
	}
	m.yGenerator, err = gb.BuildGenerator(m.gGraph, "y_generator", fx, fy)
	if err != nil {
		return errors.Wrap(err, "Can't build generator of Y")
	}
	m.x = gorgonia.NewMatrix(m.gGraph, gorgonia.Float64, gorgonia.WithShape(m.batchSize, fx), gorgonia.WithName("x"))
	m.y = gorgonia.NewMatrix(m.gGraph, gorgonia.Float64, gorgonia.WithShape(m.batchSize, fy), gorgonia.WithName("y"))

	xG, err := m.xGenerator.Fwd(m.y, m.batchSize)
	if err != nil {
		return errors.Wrap(err, "Can't translate Y into X")
	}
	yG, err := m.yGenerator.Fwd(m.x, m.batchSize)
	if err != nil {
		return errors.Wrap(err, "Can't translate X into Y")
	}
	xRecon, err := m.xGenerator.Fwd(yG, m.batchSize)
	if err != nil {
		return errors.Wrap(err, "Can't reconstruct X")
	}
	yRecon, err := m.yGenerator.Fwd(xG, m.batchSize)
	if err != nil {
		return errors.Wrap(err, "Can't reconstruct Y")
	}

	xFrozen, err := m.xDiscriminator.Shadow(m.gGraph, "_frozen")
	if err != nil {
		return errors.Wrap(err, "Can't share discriminator of X with generator graph")
	}
	yFrozen, err := m.yDiscriminator.Shadow(m.gGraph, "_frozen")
	if err != nil {
		return errors.Wrap(err, "Can't share discriminator of Y with generator graph")
	}
	ones := labelNode(m.gGraph, "labels_ones", SmoothedRealLabels(m.batchSize, 0))

	xDomain, err := m.domainLosses("x", xFrozen, m.x, xG, xRecon, ones)
	if err != nil {
		return err
	}
	yDomain, err := m.domainLosses("y", yFrozen, m.y, yG, yRecon, ones)
	if err != nil {
		return err
	}
	xReg, err := L2Regularization(m.xGenerator.Weights(), m.cfg.RegConst)
	if err != nil {
		return errors.Wrap(err, "Can't define x_g_reg_loss")
	}
	yReg, err := L2Regularization(m.yGenerator.Weights(), m.cfg.RegConst)
	if err != nil {
		return errors.Wrap(err, "Can't define y_g_reg_loss")
	}
	gTotal, err := SumLosses(xDomain.gLoss, yDomain.gLoss, xDomain.reconLoss, yDomain.reconLoss, xReg, yReg)
	if err != nil {
		return errors.Wrap(err, "Can't define g_total_loss")
	}
	params := append(m.xGenerator.Learnables(), m.yGenerator.Learnables()...)
	if _, err = gorgonia.Grad(gTotal, params...); err != nil {
		return errors.Wrap(err, "Can't differentiate g_total_loss")
	}
	m.gRead.add("x", m.x)
	m.gRead.add("y", m.y)
	m.gRead.add("x_g", xG)
	m.gRead.add("y_g", yG)
	m.gRead.add("x_g_recon", xRecon)
	m.gRead.add("y_g_recon", yRecon)
	m.gRead.add("g_total_loss", gTotal)
	m.gVM = gorgonia.NewTapeMachine(m.gGraph, gorgonia.BindDualValues(params...))
	return m.buildSampling(fx, fy)
}

// buildSampling Defines translations on sampling graph where generators normalize by running statistics
func (m *DiscoGAN) buildSampling(fx, fy int) error {
	xGenerator, err := m.xGenerator.Shadow(m.sGraph, "_sample")
	if err != nil {
		return errors.Wrap(err, "Can't share generator of X with sampling graph")
	}
	yGenerator, err := m.yGenerator.Shadow(m.sGraph, "_sample")
	if err != nil {
		return errors.Wrap(err, "Can't share generator of Y with sampling graph")
	}
	m.xS = gorgonia.NewMatrix(m.sGraph, gorgonia.Float64, gorgonia.WithShape(m.batchSize, fx), gorgonia.WithName("x"))
	m.yS = gorgonia.NewMatrix(m.sGraph, gorgonia.Float64, gorgonia.WithShape(m.batchSize, fy), gorgonia.WithName("y"))
	xG, err := xGenerator.Infer(m.yS, m.batchSize)
	if err != nil {
		return errors.Wrap(err, "Can't define translation of Y into X")
	}
	yRecon, err := yGenerator.Infer(xG, m.batchSize)
	if err != nil {
		return errors.Wrap(err, "Can't define reconstruction of Y")
	}
	yG, err := yGenerator.Infer(m.xS, m.batchSize)
	if err != nil {
		return errors.Wrap(err, "Can't define translation of X into Y")
	}
	xRecon, err := xGenerator.Infer(yG, m.batchSize)
	if err != nil {
		return errors.Wrap(err, "Can't define reconstruction of X")
	}
	m.sampleXG, m.sampleYR = new(gorgonia.Value), new(gorgonia.Value)
	m.sampleXVM = gorgonia.NewTapeMachine(m.sGraph.SubgraphRoots(gorgonia.Read(xG, m.sampleXG), gorgonia.Read(yRecon, m.sampleYR)))
	m.sampleYG, m.sampleXR = new(gorgonia.Value), new(gorgonia.Value)
	m.sampleYVM = gorgonia.NewTapeMachine(m.sGraph.SubgraphRoots(gorgonia.Read(yG, m.sampleYG), gorgonia.Read(xRecon, m.sampleXR)))
	return nil
}

// domainLosses Defines adversarial and reconstruction losses of generator producing samples of single domain
//
// frozen - frozen discriminator of domain
// real - real samples of domain
// fake - samples translated from the other domain
// recon - real samples after round trip
//
func (m *DiscoGAN) domainLosses(prefix string, frozen *DiscriminatorNet, real, fake, recon, ones *gorgonia.Node) (*discoDomain, error) {
	dReal, err := frozen.Fwd(real, m.batchSize)
	if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("Can't feedforward real samples of %s through frozen discriminator", prefix))
	}
	dFake, err := frozen.Fwd(fake, m.batchSize)
	if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("Can't feedforward translated samples of %s through frozen discriminator", prefix))
	}
	dRecon, err := frozen.Fwd(recon, m.batchSize)
	if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("Can't feedforward reconstructed samples of %s through frozen discriminator", prefix))
	}

	pixels, err := m.reconLoss(real, recon)
	if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("Can't define pixel loss of %s", prefix))
	}
	reconFeats, err := FeatureMatchingLoss(dReal.Features, dRecon.Features)
	if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("Can't define reconstruction feature matching loss of %s", prefix))
	}
	reconLoss, err := SumLosses(pixels, reconFeats)
	if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("Can't define %s_recon_loss", prefix))
	}

	adversarial, err := SigmoidCrossEntropyWithLogits(dFake.Logits, ones)
	if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("Can't define adversarial loss of %s", prefix))
	}
	fakeFeats, err := FeatureMatchingLoss(dReal.Features, dFake.Features)
	if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("Can't define feature matching loss of %s", prefix))
	}
	gLoss, err := SumLosses(adversarial, fakeFeats)
	if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("Can't define %s_g_loss", prefix))
	}
	return &discoDomain{gLoss: gLoss, reconLoss: reconLoss}, nil
}

// Name See Model
func (m *DiscoGAN) Name() string {
	return m.cfg.Name
}

// NumBatches See Model. Domains are iterated in lockstep, so the smaller one limits epoch.
func (m *DiscoGAN) NumBatches() int {
	nx, ny := m.dataX.NumBatches(m.batchSize), m.dataY.NumBatches(m.batchSize)
	if nx < ny {
		return nx
	}
	return ny
}

// Scheduler See Model. Both parts are updated every step.
func (m *DiscoGAN) Scheduler() StepScheduler {
	return JointScheduler{}
}

// FinalSave See FinalSaver. DiscoGAN is saved on save-step boundaries only.
func (m *DiscoGAN) FinalSave() bool {
	return false
}

// Partition Returns parameter groups: x_generator, y_generator, x_discriminator, y_discriminator
func (m *DiscoGAN) Partition() Partition {
	return m.partition
}

// Optimizers Returns optimizers of both generators and both discriminators
func (m *DiscoGAN) Optimizers() *OptimizerPair {
	return m.optimizers
}

// TrainStep See Model
func (m *DiscoGAN) TrainStep(idx int, update Update) (*StepResult, error) {
	batchX, err := m.dataX.Batch(idx, m.batchSize)
	if err != nil {
		return nil, errors.Wrap(err, "Can't take batch of X")
	}
	batchY, err := m.dataY.Batch(idx, m.batchSize)
	if err != nil {
		return nil, errors.Wrap(err, "Can't take batch of Y")
	}
	m.lastIdx = idx
	if err = gorgonia.Let(m.x, batchX); err != nil {
		return nil, errors.Wrap(err, "Can't init samples of X")
	}
	if err = gorgonia.Let(m.y, batchY); err != nil {
		return nil, errors.Wrap(err, "Can't init samples of Y")
	}
	if err = runMachine(m.gVM); err != nil {
		return nil, errors.Wrap(err, "Can't run generators machine")
	}
	xG, err := m.gRead.dense("x_g")
	if err != nil {
		return nil, err
	}
	yG, err := m.gRead.dense("y_g")
	if err != nil {
		return nil, err
	}
	for _, input := range []struct {
		node  *gorgonia.Node
		value *tensor.Dense
	}{
		{m.dX, batchX}, {m.dY, batchY}, {m.dXG, xG}, {m.dYG, yG},
	} {
		if err = gorgonia.Let(input.node, input.value); err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("Can't init '%s'", input.node.Name()))
		}
	}
	if err = runMachine(m.dVM); err != nil {
		return nil, errors.Wrap(err, "Can't run discriminators machine")
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
	gRecords, err := m.gRead.records(discoGANGeneratorHistograms, []string{"g_total_loss"})
	if err != nil {
		return nil, err
	}
	dRecords, err := m.dRead.records(discoGANDiscriminatorHistograms, []string{"d_total_loss"})
	if err != nil {
		return nil, err
	}
	result.Records = append(gRecords, dRecords...)
	return result, nil
}

// SampleX Translates samples of Y into X. Returns input, translated samples and input after round trip.
func (m *DiscoGAN) SampleX(y *tensor.Dense) ([]*tensor.Dense, error) {
	out, err := generate(m.sampleXVM, m.yS, []*gorgonia.Value{m.sampleXG, m.sampleYR}, m.batchSize, y)
	if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("Can't translate Y into X by '%s'", m.cfg.Name))
	}
	return append([]*tensor.Dense{y}, out...), nil
}

// SampleY Translates samples of X into Y. Returns input, translated samples and input after round trip.
func (m *DiscoGAN) SampleY(x *tensor.Dense) ([]*tensor.Dense, error) {
	out, err := generate(m.sampleYVM, m.xS, []*gorgonia.Value{m.sampleYG, m.sampleXR}, m.batchSize, x)
	if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("Can't translate X into Y by '%s'", m.cfg.Name))
	}
	return append([]*tensor.Dense{x}, out...), nil
}

// SampleXDefault Translates the most recent training batch of Y into X
func (m *DiscoGAN) SampleXDefault() ([]*tensor.Dense, error) {
	y, err := m.dataY.Batch(m.lastIdx, m.batchSize)
	if err != nil {
		return nil, err
	}
	return m.SampleX(y)
}

// SampleYDefault Translates the most recent training batch of X into Y
func (m *DiscoGAN) SampleYDefault() ([]*tensor.Dense, error) {
	x, err := m.dataX.Batch(m.lastIdx, m.batchSize)
	if err != nil {
		return nil, err
	}
	return m.SampleY(x)
}

// Save See Model
func (m *DiscoGAN) Save(dir string, step int) error {
	return saveModel(dir, m.cfg.Name, step, m.partition)
}

// Load See Model
func (m *DiscoGAN) Load(dir string, step int) (int, error) {
	return loadModel(dir, m.cfg.Name, step, m.partition)
}
