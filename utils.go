package gans_go

import (
	"fmt"
	"image/color"
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat/distuv"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// NormRandDense Return reference to tensor.Dense filled with normally distributed float64 values
//
// batchSize - Simply batch size
// n - Number of elements in each batch
// mean, stddev - parameters of distribution
// Resulting dense will have batchSize*n elements
//
func NormRandDense(batchSize, n int, mean, stddev float64) *tensor.Dense {
	return LatentSampler{Dim: n, Mean: mean, StdDev: stddev}.Z(batchSize)
}

// UniformRandDense Return reference to tensor.Dense filled with pseudo-random float64 values in range [min,max)
//
// batchSize - Simply batch size
// n - Number of elements in each batch
// Resulting dense will have batchSize*n elements
//
func UniformRandDense(batchSize, n int, min, max float64) *tensor.Dense {
	dist := distuv.Uniform{Min: min, Max: max}
	data := make([]float64, batchSize*n)
	for i := range data {
		data[i] = dist.Rand()
	}
	return tensor.New(tensor.WithShape(batchSize, n), tensor.WithBacking(data))
}

type ReferenceFunction func(float64) float64
type ArgumentFunction func() float64

// GenerateTrainingSet Generates (numSamples, 2) set of points (x, y(x))
func GenerateTrainingSet(numSamples int, xFunc ArgumentFunction, yFunc ReferenceFunction) (*TrainSet, error) {
	dataXAxis := make([]float64, numSamples)
	dataYAxis := make([]float64, numSamples)
	for i := range dataXAxis {
		dataXAxis[i] = xFunc()
		dataYAxis[i] = yFunc(dataXAxis[i])
	}
	inputTensor := tensor.New(tensor.WithShape(numSamples, 1), tensor.WithBacking(dataXAxis))
	outputTensor := tensor.New(tensor.WithShape(numSamples, 1), tensor.WithBacking(dataYAxis))
	hstack, err := inputTensor.Hstack(outputTensor)
	if err != nil {
		return nil, err
	}
	return NewTrainSet(hstack, nil)
}

// LabelEncode Maps string labels to class indices. Classes are sorted names of unique labels.
func LabelEncode(sl []string) ([]int, []string) {
	unique := make(map[string]struct{})
	for _, s := range sl {
		unique[s] = struct{}{}
	}
	classes := make([]string, 0, len(unique))
	for k := range unique {
		classes = append(classes, k)
	}
	sort.Strings(classes)
	idx := make(map[string]int, len(classes))
	for i, c := range classes {
		idx[c] = i
	}
	labels := make([]int, len(sl))
	for i, s := range sl {
		labels[i] = idx[s]
	}
	return labels, classes
}

// PlotXY Plot chart for input y(x)
func PlotXY(x, y tensor.Tensor, fname string) error {
	if x.Dims() != 1 {
		return fmt.Errorf("X must have one dimension, but got %d", x.Dims())
	}
	if y.Dims() != 1 {
		return fmt.Errorf("Y(X) must have one dimension, but got %d", y.Dims())
	}
	if x.DataSize() != y.DataSize() {
		return fmt.Errorf("X and Y(X) must have same number of elements, but X has %d elements and Y(X) has %d elements", x.DataSize(), y.DataSize())
	}
	scatterData := make(plotter.XYs, x.DataSize())
	for i := 0; i < x.DataSize(); i++ {
		xval, err := x.At(i)
		if err != nil {
			return errors.Wrap(err, "Can't select X-value")
		}
		yval, err := y.At(i)
		if err != nil {
			return errors.Wrap(err, "Can't select Y(x)-value")
		}
		// Do no cast interfaces{} to any type when you are not sure about types
		scatterData[i].X = xval.(float64)
		scatterData[i].Y = yval.(float64)
	}
	scatter, err := plotter.NewScatter(scatterData)
	if err != nil {
		return errors.Wrap(err, "Can't init new scatter")
	}
	scatter.GlyphStyle.Color = color.RGBA{R: 255, B: 128, A: 255}
	p := plot.New()
	p.X.Label.Text = "X"
	p.Y.Label.Text = "Y"
	p.Add(plotter.NewGrid())
	p.Add(scatter)
	// Save the plot to a PNG file.
	if err := p.Save(4*vg.Inch, 4*vg.Inch, fname); err != nil {
		return errors.Wrap(err, "Can't save plot")
	}
	return nil
}

// PlotSamples Plot chart for two-dimensional samples of shape (n, 2): first column is X, second one is Y
func PlotSamples(samples *tensor.Dense, fname string) error {
	if samples.Dims() != 2 || samples.Shape()[1] != 2 {
		return fmt.Errorf("Samples must have shape (n, 2), but got %v", samples.Shape())
	}
	x, err := samples.Slice(nil, gorgonia.S(0))
	if err != nil {
		return errors.Wrap(err, "Can't slice X column")
	}
	y, err := samples.Slice(nil, gorgonia.S(1))
	if err != nil {
		return errors.Wrap(err, "Can't slice Y column")
	}
	return PlotXY(x.Materialize(), y.Materialize(), fname)
}
