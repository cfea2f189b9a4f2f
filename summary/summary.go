// Package summary provides append-only sinks for training records (scalars, histograms and images) tagged with global step.
package summary

import (
	"fmt"
	"image"
	"math"
	"path/filepath"
	"sort"
	"time"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Writer Sink for step-tagged records. Steps must not go backwards.
type Writer interface {
	Scalar(step int, tag string, value float64) error
	Histogram(step int, tag string, values []float64) error
	Image(step int, tag string, img image.Image) error
	Close() error
}

// ErrStepOrder Returned when record's step is less than step of previous record
var ErrStepOrder = fmt.Errorf("summary step goes backwards")

var errClosed = fmt.Errorf("summary writer is closed")

// Kind Kind of record
type Kind uint8

const (
	KindScalar = Kind(iota)
	KindHistogram
	KindImage
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindHistogram:
		return "histogram"
	case KindImage:
		return "image"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Record Single record produced by training step. Step is assigned by the training loop.
type Record struct {
	Kind   Kind
	Tag    string
	Value  float64
	Values []float64
	Image  image.Image
}

// Scalar Creates scalar record
func Scalar(tag string, value float64) Record {
	return Record{Kind: KindScalar, Tag: tag, Value: value}
}

// Values Creates histogram record
func Values(tag string, values []float64) Record {
	return Record{Kind: KindHistogram, Tag: tag, Values: values}
}

// Picture Creates image record
func Picture(tag string, img image.Image) Record {
	return Record{Kind: KindImage, Tag: tag, Image: img}
}

// Write Writes records to writer with provided step
func Write(w Writer, step int, records []Record) error {
	for _, r := range records {
		var err error
		switch r.Kind {
		case KindScalar:
			err = w.Scalar(step, r.Tag, r.Value)
		case KindHistogram:
			err = w.Histogram(step, r.Tag, r.Values)
		case KindImage:
			err = w.Image(step, r.Tag, r.Image)
		default:
			err = fmt.Errorf("Record kind '%s' is not handled", r.Kind)
		}
		if err != nil {
			return errors.Wrap(err, fmt.Sprintf("Can't write %s '%s' at step %d", r.Kind, r.Tag, step))
		}
	}
	return nil
}

// RunPath Returns per-run database path: <logDir>/<name>/<name>_<timestamp>.sqlite
func RunPath(logDir, name string, now time.Time) string {
	return filepath.Join(logDir, name, fmt.Sprintf("%s_%s.sqlite", name, now.Format("20060102T150405")))
}

// DefaultBins Number of histogram buckets
const DefaultBins = 30

// Histogram Summary of values distribution
//
// Dividers - len(Buckets)+1 bucket bounds, Buckets - number of values in every bucket
//
type Histogram struct {
	Count    int       `json:"count"`
	Min      float64   `json:"min"`
	Max      float64   `json:"max"`
	Mean     float64   `json:"mean"`
	StdDev   float64   `json:"stddev"`
	Dividers []float64 `json:"dividers"`
	Buckets  []float64 `json:"buckets"`
}

// NewHistogram Computes histogram of values with provided number of buckets
func NewHistogram(values []float64, bins int) (*Histogram, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("Can't build histogram of empty values")
	}
	if bins <= 0 {
		return nil, fmt.Errorf("Number of buckets must be positive, but got %d", bins)
	}
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("Value #%d is not finite", i)
		}
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	h := &Histogram{
		Count: len(sorted),
		Min:   sorted[0],
		Max:   sorted[len(sorted)-1],
		Mean:  stat.Mean(sorted, nil),
	}
	if len(sorted) > 1 {
		h.StdDev = stat.StdDev(sorted, nil)
	}
	// Upper divider must be strictly greater than max value
	upper := h.Max + 1e-9*math.Max(1, math.Abs(h.Max))
	if h.Min == h.Max {
		upper = h.Max + 1
	}
	h.Dividers = make([]float64, bins+1)
	floats.Span(h.Dividers, h.Min, upper)
	h.Buckets = stat.Histogram(nil, h.Dividers, sorted, nil)
	return h, nil
}

// stepGuard Keeps steps non-decreasing
type stepGuard struct {
	last    int
	started bool
}

func (g *stepGuard) check(step int) error {
	if step < 0 {
		return fmt.Errorf("Step can't be negative, but got %d", step)
	}
	if g.started && step < g.last {
		return errors.Wrap(ErrStepOrder, fmt.Sprintf("step %d after step %d", step, g.last))
	}
	g.last = step
	g.started = true
	return nil
}
