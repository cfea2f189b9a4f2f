package summary

import (
	"image"
)

// Entry Record stored by Memory
type Entry struct {
	Step      int
	Kind      Kind
	Tag       string
	Value     float64
	Histogram *Histogram
	Image     image.Image
}

// Point Scalar value at step
type Point struct {
	Step  int
	Value float64
}

// Memory In-memory writer. Useful for tests and short runs.
type Memory struct {
	Entries []Entry
	guard   stepGuard
	closed  bool
}

// NewMemory Creates empty in-memory writer
func NewMemory() *Memory {
	return &Memory{}
}

// Scalar See Writer
func (m *Memory) Scalar(step int, tag string, value float64) error {
	if err := m.accept(step); err != nil {
		return err
	}
	m.Entries = append(m.Entries, Entry{Step: step, Kind: KindScalar, Tag: tag, Value: value})
	return nil
}

// Histogram See Writer
func (m *Memory) Histogram(step int, tag string, values []float64) error {
	h, err := NewHistogram(values, DefaultBins)
	if err != nil {
		return err
	}
	if err := m.accept(step); err != nil {
		return err
	}
	m.Entries = append(m.Entries, Entry{Step: step, Kind: KindHistogram, Tag: tag, Histogram: h})
	return nil
}

// Image See Writer
func (m *Memory) Image(step int, tag string, img image.Image) error {
	if err := m.accept(step); err != nil {
		return err
	}
	m.Entries = append(m.Entries, Entry{Step: step, Kind: KindImage, Tag: tag, Image: img})
	return nil
}

// Close See Writer
func (m *Memory) Close() error {
	m.closed = true
	return nil
}

// Scalars Returns scalar values of tag in order of writing
func (m *Memory) Scalars(tag string) []Point {
	points := []Point{}
	for _, e := range m.Entries {
		if e.Kind == KindScalar && e.Tag == tag {
			points = append(points, Point{Step: e.Step, Value: e.Value})
		}
	}
	return points
}

func (m *Memory) accept(step int) error {
	if m.closed {
		return errClosed
	}
	return m.guard.check(step)
}
