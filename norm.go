package gans_go

import (
	"fmt"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// NormStatistics Running statistics of batch normalization layer
//
// Name - prefix of checkpoint keys ("<name>_moving_mean", "<name>_moving_variance")
// Mean, Variance - running moments of shape (1, size). Inference passes read them directly.
// Momentum - share of old value kept by every update
//
// Training passes only register their batch moments. Running moments move towards them
// when Commit is called, which happens after the owning group has been updated.
type NormStatistics struct {
	Name     string
	Mean     *tensor.Dense
	Variance *tensor.Dense
	Momentum float64

	batches []batchMoments
}

type batchMoments struct {
	mean     *gorgonia.Value
	variance *gorgonia.Value
}

// NewNormStatistics Returns statistics of given size with zero mean and unit variance
func NewNormStatistics(name string, size int, momentum float64) *NormStatistics {
	variance := make([]float64, size)
	for i := range variance {
		variance[i] = 1
	}
	return &NormStatistics{
		Name:     name,
		Mean:     tensor.New(tensor.WithShape(1, size), tensor.WithBacking(make([]float64, size))),
		Variance: tensor.New(tensor.WithShape(1, size), tensor.WithBacking(variance)),
		Momentum: momentum,
	}
}

// Size Returns number of normalized features
func (s *NormStatistics) Size() int {
	return s.Mean.Shape()[1]
}

// track Registers batch moments of a training pass. Must be called before tape machine is created.
func (s *NormStatistics) track(mean, variance *gorgonia.Node) {
	m, v := new(gorgonia.Value), new(gorgonia.Value)
	gorgonia.Read(mean, m)
	gorgonia.Read(variance, v)
	s.batches = append(s.batches, batchMoments{mean: m, variance: v})
}

// Commit Moves running moments towards batch moments computed since the previous commit.
// Passes are applied in order of their creation.
func (s *NormStatistics) Commit() error {
	mean := s.Mean.Data().([]float64)
	variance := s.Variance.Data().([]float64)
	for i, b := range s.batches {
		if *b.mean == nil || *b.variance == nil {
			continue
		}
		batchMean, err := valuesOf(*b.mean)
		if err != nil {
			return errors.Wrap(err, fmt.Sprintf("Can't read batch mean #%d of '%s'", i, s.Name))
		}
		batchVariance, err := valuesOf(*b.variance)
		if err != nil {
			return errors.Wrap(err, fmt.Sprintf("Can't read batch variance #%d of '%s'", i, s.Name))
		}
		if len(batchMean) != len(mean) || len(batchVariance) != len(variance) {
			return fmt.Errorf("Batch moments #%d of '%s' have %d values, but %d are expected", i, s.Name, len(batchMean), len(mean))
		}
		for j := range mean {
			mean[j] = s.Momentum*mean[j] + (1-s.Momentum)*batchMean[j]
			variance[j] = s.Momentum*variance[j] + (1-s.Momentum)*batchVariance[j]
		}
		*b.mean, *b.variance = nil, nil
	}
	return nil
}

// Values Returns running moments keyed for checkpoints
func (s *NormStatistics) Values() map[string]*tensor.Dense {
	return map[string]*tensor.Dense{
		s.Name + "_moving_mean":     s.Mean,
		s.Name + "_moving_variance": s.Variance,
	}
}
