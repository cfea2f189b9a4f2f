package gans_go

import (
	"fmt"

	"gonum.org/v1/gonum/stat/distuv"
	"gorgonia.org/tensor"
)

// LatentSampler Draws generator inputs
//
// Dim - size of latent vector
// Mean, StdDev - parameters of normal distribution of latent vectors
// NumClasses - number of classes for conditional generation (0 for unconditional)
//
type LatentSampler struct {
	Dim        int
	Mean       float64
	StdDev     float64
	NumClasses int
}

// Z Returns (n, Dim) tensor of normally distributed latent vectors
func (s LatentSampler) Z(n int) *tensor.Dense {
	dist := distuv.Normal{Mu: s.Mean, Sigma: s.StdDev}
	data := make([]float64, n*s.Dim)
	for i := range data {
		data[i] = dist.Rand()
	}
	return tensor.New(tensor.WithShape(n, s.Dim), tensor.WithBacking(data))
}

// Classes Returns n uniformly distributed class labels in [0, NumClasses)
func (s LatentSampler) Classes(n int) ([]int, error) {
	if s.NumClasses <= 0 {
		return nil, fmt.Errorf("Sampler is not conditional")
	}
	dist := distuv.Uniform{Min: 0, Max: float64(s.NumClasses)}
	labels := make([]int, n)
	for i := range labels {
		c := int(dist.Rand())
		// Rand() might return Max exactly due to rounding
		if c >= s.NumClasses {
			c = s.NumClasses - 1
		}
		labels[i] = c
	}
	return labels, nil
}

// Epsilon Returns n interpolation coefficients uniformly distributed in [0, 1)
func (s LatentSampler) Epsilon(n int) []float64 {
	dist := distuv.Uniform{Min: 0, Max: 1}
	eps := make([]float64, n)
	for i := range eps {
		eps[i] = dist.Rand()
	}
	return eps
}

// ConditionalInput Returns generator input made of latent vectors concatenated with one-hot encoded classes
//
// z - (n, Dim) latent vectors
// classes - n class labels
//
func (s LatentSampler) ConditionalInput(z *tensor.Dense, classes []int) (*tensor.Dense, error) {
	if z.Dims() != 2 {
		return nil, fmt.Errorf("Latent vectors must be matrix, but got shape %v", z.Shape())
	}
	n := z.Shape()[0]
	if len(classes) != n {
		return nil, fmt.Errorf("Need %d class labels, but got %d", n, len(classes))
	}
	onehot, err := OneHot(classes, s.NumClasses)
	if err != nil {
		return nil, err
	}
	return z.Hstack(onehot)
}
