package gans_go

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pkg/errors"
)

// NetworkConfig Description of fully connected network
//
// Dim - size of hidden layers
// NumLayers - number of layers including the output one
// Activation - name of hidden activation (see ActivationByName)
// OutputActivation - name of output activation ("" or "none" for raw outputs)
// BatchNorm - normalize hidden layers (generators only)
// SkipFirstBatch - do not normalize the first hidden layer
// SkipLastBiases - no bias in the output layer (discriminators only)
//
type NetworkConfig struct {
	Dim              int    `json:"dim"`
	NumLayers        int    `json:"num_layers"`
	Activation       string `json:"activation"`
	OutputActivation string `json:"output_activation"`
	BatchNorm        bool   `json:"batch_norm"`
	SkipFirstBatch   bool   `json:"skip_first_batch"`
	SkipLastBiases   bool   `json:"skip_last_biases"`
}

// Validate Checks network description
func (nc NetworkConfig) Validate() error {
	if nc.NumLayers <= 0 {
		return fmt.Errorf("num_layers must be positive, but got %d", nc.NumLayers)
	}
	if nc.NumLayers > 1 && nc.Dim <= 0 {
		return fmt.Errorf("dim must be positive, but got %d", nc.Dim)
	}
	if _, err := ActivationByName(nc.Activation); err != nil {
		return err
	}
	if _, err := ActivationByName(nc.OutputActivation); err != nil {
		return err
	}
	return nil
}

// GeneratorBuilder Returns MLP generator builder for the description
func (nc NetworkConfig) GeneratorBuilder() (MLPGenerator, error) {
	if err := nc.Validate(); err != nil {
		return MLPGenerator{}, errors.Wrap(err, "Bad generator configuration")
	}
	hidden, _ := ActivationByName(nc.Activation)
	output, _ := ActivationByName(nc.OutputActivation)
	return MLPGenerator{
		Dim:            nc.Dim,
		NumLayers:      nc.NumLayers,
		Hidden:         hidden,
		Output:         output,
		BatchNorm:      nc.BatchNorm,
		SkipFirstBatch: nc.SkipFirstBatch,
	}, nil
}

// DiscriminatorBuilder Returns MLP discriminator builder for the description
func (nc NetworkConfig) DiscriminatorBuilder() (MLPDiscriminator, error) {
	if err := nc.Validate(); err != nil {
		return MLPDiscriminator{}, errors.Wrap(err, "Bad discriminator configuration")
	}
	hidden, _ := ActivationByName(nc.Activation)
	output, _ := ActivationByName(nc.OutputActivation)
	return MLPDiscriminator{
		Dim:              nc.Dim,
		NumLayers:        nc.NumLayers,
		Hidden:           hidden,
		CriticActivation: output,
		SkipLastBiases:   nc.SkipLastBiases,
	}, nil
}

// GANConfig Hyperparameters of vanilla GAN
type GANConfig struct {
	Name          string        `json:"name"`
	BatchSize     int           `json:"batch_size"`
	ZDim          int           `json:"z_dim"`
	ZStdDev       float64       `json:"z_stddev"`
	RegConst      float64       `json:"reg_const"`
	DLabelSmooth  float64       `json:"d_label_smooth"`
	GOptimizer    AdamConfig    `json:"g_optimizer"`
	DOptimizer    AdamConfig    `json:"d_optimizer"`
	Generator     NetworkConfig `json:"generator"`
	Discriminator NetworkConfig `json:"discriminator"`
}

// DefaultGANConfig Returns default hyperparameters of vanilla GAN
func DefaultGANConfig() GANConfig {
	adam := AdamConfig{LearningRate: 0.0002, Beta1: 0.5, Beta2: 0.999}
	return GANConfig{
		Name:          "GAN",
		BatchSize:     128,
		ZDim:          10,
		ZStdDev:       1.0,
		RegConst:      5e-5,
		DLabelSmooth:  0.25,
		GOptimizer:    adam,
		DOptimizer:    adam,
		Generator:     NetworkConfig{Dim: 32, NumLayers: 3, Activation: "relu", BatchNorm: true},
		Discriminator: NetworkConfig{Dim: 32, NumLayers: 3, Activation: "lrelu", OutputActivation: "sigmoid"},
	}
}

// Validate Checks hyperparameters
func (cfg GANConfig) Validate() error {
	if cfg.Name == "" {
		return fmt.Errorf("name can't be empty")
	}
	if cfg.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be positive, but got %d", cfg.BatchSize)
	}
	if cfg.ZDim <= 0 {
		return fmt.Errorf("z_dim must be positive, but got %d", cfg.ZDim)
	}
	if cfg.ZStdDev <= 0 {
		return fmt.Errorf("z_stddev must be positive, but got %v", cfg.ZStdDev)
	}
	if err := validateCommon(cfg.RegConst, cfg.DLabelSmooth, cfg.GOptimizer, cfg.DOptimizer, cfg.Generator, cfg.Discriminator); err != nil {
		return errors.Wrap(err, fmt.Sprintf("Bad configuration of '%s'", cfg.Name))
	}
	return nil
}

// DiscoGANConfig Hyperparameters of DiscoGAN
//
// ReconLoss - distance between samples and their round trips (see ReconstructionLossByName)
//
type DiscoGANConfig struct {
	Name          string        `json:"name"`
	BatchSize     int           `json:"batch_size"`
	ReconLoss     string        `json:"recon_loss"`
	RegConst      float64       `json:"reg_const"`
	DLabelSmooth  float64       `json:"d_label_smooth"`
	GOptimizer    AdamConfig    `json:"g_optimizer"`
	DOptimizer    AdamConfig    `json:"d_optimizer"`
	Generator     NetworkConfig `json:"generator"`
	Discriminator NetworkConfig `json:"discriminator"`
}

// DefaultDiscoGANConfig Returns default hyperparameters of DiscoGAN
func DefaultDiscoGANConfig() DiscoGANConfig {
	adam := AdamConfig{LearningRate: 0.0002, Beta1: 0.5, Beta2: 0.999}
	return DiscoGANConfig{
		Name:          "DiscoGAN",
		BatchSize:     128,
		ReconLoss:     "mse",
		RegConst:      5e-5,
		DLabelSmooth:  0.25,
		GOptimizer:    adam,
		DOptimizer:    adam,
		Generator:     NetworkConfig{Dim: 32, NumLayers: 3, Activation: "relu", BatchNorm: true, SkipFirstBatch: true},
		Discriminator: NetworkConfig{Dim: 32, NumLayers: 3, Activation: "lrelu", OutputActivation: "sigmoid"},
	}
}

// Validate Checks hyperparameters
func (cfg DiscoGANConfig) Validate() error {
	if cfg.Name == "" {
		return fmt.Errorf("name can't be empty")
	}
	if cfg.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be positive, but got %d", cfg.BatchSize)
	}
	if _, err := ReconstructionLossByName(cfg.ReconLoss); err != nil {
		return err
	}
	if err := validateCommon(cfg.RegConst, cfg.DLabelSmooth, cfg.GOptimizer, cfg.DOptimizer, cfg.Generator, cfg.Discriminator); err != nil {
		return errors.Wrap(err, fmt.Sprintf("Bad configuration of '%s'", cfg.Name))
	}
	return nil
}

// WACGANConfig Hyperparameters of improved Wasserstein auxiliary classifier GAN
//
// NumClasses - number of classes of conditional generation
// DLambda - weight of gradient penalty
// Scheduler - critic/generator updates ratio
//
type WACGANConfig struct {
	Name          string          `json:"name"`
	BatchSize     int             `json:"batch_size"`
	ZDim          int             `json:"z_dim"`
	ZStdDev       float64         `json:"z_stddev"`
	NumClasses    int             `json:"num_classes"`
	RegConst      float64         `json:"reg_const"`
	DLambda       float64         `json:"d_lambda"`
	DLabelSmooth  float64         `json:"d_label_smooth"`
	GOptimizer    AdamConfig      `json:"g_optimizer"`
	DOptimizer    AdamConfig      `json:"d_optimizer"`
	Scheduler     CriticScheduler `json:"scheduler"`
	Generator     NetworkConfig   `json:"generator"`
	Discriminator NetworkConfig   `json:"discriminator"`
}

// DefaultWACGANConfig Returns default hyperparameters of WACGAN. NumClasses has to be set by caller.
func DefaultWACGANConfig() WACGANConfig {
	adam := AdamConfig{LearningRate: 1e-4, Beta1: 0.5, Beta2: 0.9}
	return WACGANConfig{
		Name:         "iWACGAN",
		BatchSize:    128,
		ZDim:         10,
		ZStdDev:      1.0,
		RegConst:     5e-5,
		DLambda:      10.0,
		DLabelSmooth: 0.25,
		GOptimizer:   adam,
		DOptimizer:   adam,
		Scheduler: CriticScheduler{
			DIters:             5,
			DHighIters:         0,
			DInitialHighRounds: 25,
			DStepHighRounds:    500,
		},
		Generator:     NetworkConfig{Dim: 32, NumLayers: 3, Activation: "relu", BatchNorm: true},
		Discriminator: NetworkConfig{Dim: 32, NumLayers: 3, Activation: "lrelu"},
	}
}

// Validate Checks hyperparameters
func (cfg WACGANConfig) Validate() error {
	if cfg.Name == "" {
		return fmt.Errorf("name can't be empty")
	}
	if cfg.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be positive, but got %d", cfg.BatchSize)
	}
	if cfg.ZDim <= 0 {
		return fmt.Errorf("z_dim must be positive, but got %d", cfg.ZDim)
	}
	if cfg.ZStdDev <= 0 {
		return fmt.Errorf("z_stddev must be positive, but got %v", cfg.ZStdDev)
	}
	if cfg.NumClasses <= 0 {
		return fmt.Errorf("num_classes must be positive, but got %d", cfg.NumClasses)
	}
	if cfg.DLambda < 0 {
		return fmt.Errorf("d_lambda can't be negative, but got %v", cfg.DLambda)
	}
	if err := cfg.Scheduler.Validate(); err != nil {
		return errors.Wrap(err, fmt.Sprintf("Bad scheduler of '%s'", cfg.Name))
	}
	if err := validateCommon(cfg.RegConst, cfg.DLabelSmooth, cfg.GOptimizer, cfg.DOptimizer, cfg.Generator, cfg.Discriminator); err != nil {
		return errors.Wrap(err, fmt.Sprintf("Bad configuration of '%s'", cfg.Name))
	}
	return nil
}

func validateCommon(regConst, smooth float64, gOpt, dOpt AdamConfig, generator, discriminator NetworkConfig) error {
	if regConst < 0 {
		return fmt.Errorf("reg_const can't be negative, but got %v", regConst)
	}
	if smooth < 0 || smooth >= 1 {
		return fmt.Errorf("d_label_smooth must be in [0, 1), but got %v", smooth)
	}
	if err := gOpt.Validate(); err != nil {
		return errors.Wrap(err, "g_optimizer")
	}
	if err := dOpt.Validate(); err != nil {
		return errors.Wrap(err, "d_optimizer")
	}
	if err := generator.Validate(); err != nil {
		return errors.Wrap(err, "generator")
	}
	if err := discriminator.Validate(); err != nil {
		return errors.Wrap(err, "discriminator")
	}
	return nil
}

// LoadConfig Overrides fields of cfg by JSON file contents. Fields missing in the file keep their values.
//
// path - path to JSON file
// cfg - pointer to one of configuration structs (usually filled by Default*Config)
//
func LoadConfig(path string, cfg interface{}) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "Can't open configuration file")
	}
	defer f.Close()
	decoder := json.NewDecoder(f)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(cfg); err != nil {
		return errors.Wrap(err, fmt.Sprintf("Can't decode configuration file '%s'", path))
	}
	return nil
}
