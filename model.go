package gans_go

import (
	"fmt"

	"github.com/LdDl/gans-go/checkpoint"
	"github.com/LdDl/gans-go/summary"
	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// readout Values extracted from graph at runtime (see gorgonia.Read)
type readout struct {
	tags   []string
	values []*gorgonia.Value
}

// add Registers node to be read under tag. Must be called before tape machine is created.
func (r *readout) add(tag string, n *gorgonia.Node) {
	if n == nil {
		return
	}
	v := new(gorgonia.Value)
	gorgonia.Read(n, v)
	r.tags = append(r.tags, tag)
	r.values = append(r.values, v)
}

// value Returns last read value for tag
func (r *readout) value(tag string) (gorgonia.Value, error) {
	for i, t := range r.tags {
		if t == tag {
			if *r.values[i] == nil {
				return nil, fmt.Errorf("Value '%s' has not been computed yet", tag)
			}
			return *r.values[i], nil
		}
	}
	return nil, fmt.Errorf("Value '%s' is not registered", tag)
}

// scalar Returns last read value for tag as float64 (0 for tags which have never been registered, e.g. missing regularization)
func (r *readout) scalar(tag string) (float64, error) {
	registered := false
	for _, t := range r.tags {
		if t == tag {
			registered = true
			break
		}
	}
	if !registered {
		return 0, nil
	}
	v, err := r.value(tag)
	if err != nil {
		return 0, err
	}
	return scalarOf(v)
}

// dense Returns copy of last read value for tag
func (r *readout) dense(tag string) (*tensor.Dense, error) {
	v, err := r.value(tag)
	if err != nil {
		return nil, err
	}
	t, ok := v.(*tensor.Dense)
	if !ok {
		return nil, fmt.Errorf("Value '%s' is not dense tensor (got %T)", tag, v)
	}
	return t.Clone().(*tensor.Dense), nil
}

// records Builds summary records: histograms for histTags and scalars for scalarTags
func (r *readout) records(histTags, scalarTags []string) ([]summary.Record, error) {
	records := make([]summary.Record, 0, len(histTags)+len(scalarTags))
	for _, tag := range histTags {
		v, err := r.value(tag)
		if err != nil {
			return nil, err
		}
		values, err := valuesOf(v)
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("Can't extract values of '%s'", tag))
		}
		records = append(records, summary.Values(tag, values))
	}
	for _, tag := range scalarTags {
		v, err := r.scalar(tag)
		if err != nil {
			return nil, err
		}
		records = append(records, summary.Scalar(tag, v))
	}
	return records, nil
}

func scalarOf(v gorgonia.Value) (float64, error) {
	switch data := v.Data().(type) {
	case float64:
		return data, nil
	case []float64:
		if len(data) == 1 {
			return data[0], nil
		}
		return 0, fmt.Errorf("Value is not scalar: it has %d elements", len(data))
	default:
		return 0, fmt.Errorf("Value is not float64 (got %T)", data)
	}
}

func valuesOf(v gorgonia.Value) ([]float64, error) {
	switch data := v.Data().(type) {
	case float64:
		return []float64{data}, nil
	case []float64:
		values := make([]float64, len(data))
		copy(values, data)
		return values, nil
	default:
		return nil, fmt.Errorf("Value is not float64 (got %T)", data)
	}
}

// runMachine Runs whole program of tape machine once
func runMachine(vm gorgonia.VM) error {
	defer vm.Reset()
	return vm.RunAll()
}

// generate Feeds x through forward-only machine in batch-sized chunks. The last chunk is padded by zeroes.
//
// vm - machine computing outputs from input
// input - input node of shape (batchSize, k)
// outputs - values read by machine
// x - (n, k) tensor
//
// Returns one (n, ...) tensor per output
func generate(vm gorgonia.VM, input *gorgonia.Node, outputs []*gorgonia.Value, batchSize int, x *tensor.Dense) ([]*tensor.Dense, error) {
	if x.Dims() != 2 || x.Shape()[1] != input.Shape()[1] {
		return nil, fmt.Errorf("Input must have shape (n, %d), but got %v", input.Shape()[1], x.Shape())
	}
	data, ok := x.Data().([]float64)
	if !ok {
		return nil, fmt.Errorf("Input must be float64, but got %v", x.Dtype())
	}
	n, k := x.Shape()[0], x.Shape()[1]
	results := make([][]float64, len(outputs))
	shapes := make([]tensor.Shape, len(outputs))
	for start := 0; start < n; start += batchSize {
		rows := batchSize
		if start+rows > n {
			rows = n - start
		}
		chunk := make([]float64, batchSize*k)
		copy(chunk, data[start*k:(start+rows)*k])
		if err := gorgonia.Let(input, tensor.New(tensor.WithShape(batchSize, k), tensor.WithBacking(chunk))); err != nil {
			return nil, errors.Wrap(err, "Can't init input value")
		}
		if err := runMachine(vm); err != nil {
			return nil, errors.Wrap(err, "Can't run sampling machine")
		}
		for i, out := range outputs {
			values, err := valuesOf(*out)
			if err != nil {
				return nil, errors.Wrap(err, fmt.Sprintf("Can't read output #%d", i))
			}
			rowSize := len(values) / batchSize
			if results[i] == nil {
				results[i] = make([]float64, 0, n*rowSize)
				shapes[i] = (*out).Shape().Clone()
				shapes[i][0] = n
			}
			results[i] = append(results[i], values[:rows*rowSize]...)
		}
	}
	tensors := make([]*tensor.Dense, len(outputs))
	for i := range outputs {
		tensors[i] = tensor.New(tensor.WithShape(shapes[i]...), tensor.WithBacking(results[i]))
	}
	return tensors, nil
}

func saveModel(dir, name string, step int, partition Partition) error {
	values, err := partition.Values()
	if err != nil {
		return errors.Wrap(err, fmt.Sprintf("Can't collect parameters of '%s'", name))
	}
	return checkpoint.Save(dir, name, step, values)
}

func loadModel(dir, name string, step int, partition Partition) (int, error) {
	values, err := partition.Values()
	if err != nil {
		return 0, errors.Wrap(err, fmt.Sprintf("Can't collect parameters of '%s'", name))
	}
	return checkpoint.Load(dir, name, step, values)
}

// labelNode Constant-like input node holding labels tensor
func labelNode(g *gorgonia.ExprGraph, name string, t *tensor.Dense) *gorgonia.Node {
	return gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(t.Shape()...), gorgonia.WithName(name), gorgonia.WithValue(t))
}

// metric Reads scalar tag into metric
func (r *readout) metric(tag string) (Metric, error) {
	v, err := r.scalar(tag)
	if err != nil {
		return Metric{}, err
	}
	return Metric{Name: tag, Value: v}, nil
}

// metrics Reads scalar tags into metrics
func (r *readout) metrics(tags ...string) ([]Metric, error) {
	metrics := make([]Metric, 0, len(tags))
	for _, tag := range tags {
		m, err := r.metric(tag)
		if err != nil {
			return nil, err
		}
		metrics = append(metrics, m)
	}
	return metrics, nil
}
