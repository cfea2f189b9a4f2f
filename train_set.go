package gans_go

import (
	"fmt"

	"gorgonia.org/tensor"
)

// TrainSet Examples to train on
//
// TrainData - (DataLength, features...) tensor of examples
// Labels - class of every example (may be nil for unconditional models)
// DataLength - number of examples
//
type TrainSet struct {
	TrainData  *tensor.Dense
	Labels     []int
	DataLength int
}

// NewTrainSet Creates train set. Labels are optional, but when provided there must be a label per example.
func NewTrainSet(data *tensor.Dense, labels []int) (*TrainSet, error) {
	if data == nil || data.Dims() < 2 {
		return nil, fmt.Errorf("Train data must have batch dimension and at least one more")
	}
	n := data.Shape()[0]
	if labels != nil && len(labels) != n {
		return nil, fmt.Errorf("Train set has %d examples, but %d labels", n, len(labels))
	}
	return &TrainSet{
		TrainData:  data,
		Labels:     labels,
		DataLength: n,
	}, nil
}

// Features Number of values per example
func (ts *TrainSet) Features() int {
	return ts.TrainData.Shape().TotalSize() / ts.DataLength
}

// NumBatches Number of full batches. Remainder examples are dropped.
func (ts *TrainSet) NumBatches(batchSize int) int {
	if batchSize <= 0 {
		return 0
	}
	return ts.DataLength / batchSize
}

// Batch Returns copy of idx-th batch of examples
func (ts *TrainSet) Batch(idx, batchSize int) (*tensor.Dense, error) {
	if idx < 0 || idx >= ts.NumBatches(batchSize) {
		return nil, fmt.Errorf("Batch #%d is out of range [0, %d)", idx, ts.NumBatches(batchSize))
	}
	data, ok := ts.TrainData.Data().([]float64)
	if !ok {
		return nil, fmt.Errorf("Train data must be float64, but got %v", ts.TrainData.Dtype())
	}
	features := ts.Features()
	batch := make([]float64, batchSize*features)
	copy(batch, data[idx*batchSize*features:(idx+1)*batchSize*features])
	shape := ts.TrainData.Shape().Clone()
	shape[0] = batchSize
	return tensor.New(tensor.WithShape(shape...), tensor.WithBacking(batch)), nil
}

// Classes Returns labels of idx-th batch
func (ts *TrainSet) Classes(idx, batchSize int) ([]int, error) {
	if ts.Labels == nil {
		return nil, fmt.Errorf("Train set has no labels")
	}
	if idx < 0 || idx >= ts.NumBatches(batchSize) {
		return nil, fmt.Errorf("Batch #%d is out of range [0, %d)", idx, ts.NumBatches(batchSize))
	}
	return ts.Labels[idx*batchSize : (idx+1)*batchSize], nil
}
