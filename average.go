package gans_go

import (
	"fmt"
	"strings"
)

// RunningAverage Incremental mean of a metric
type RunningAverage struct {
	mean  float64
	count int
}

// Add Adds value to average
func (a *RunningAverage) Add(v float64) {
	a.count++
	a.mean += (v - a.mean) / float64(a.count)
}

// Average Returns current average (0 when nothing has been added)
func (a *RunningAverage) Average() float64 {
	return a.mean
}

// Count Returns number of added values
func (a *RunningAverage) Count() int {
	return a.count
}

// Metric Named value produced by training step
type Metric struct {
	Name  string
	Value float64
}

// Averages Running averages of named metrics in order of first appearance
type Averages struct {
	names  []string
	values map[string]*RunningAverage
}

// NewAverages Creates empty set of averages
func NewAverages() *Averages {
	return &Averages{values: make(map[string]*RunningAverage)}
}

// Add Adds metrics values
func (a *Averages) Add(metrics ...Metric) {
	for _, m := range metrics {
		avg, ok := a.values[m.Name]
		if !ok {
			avg = &RunningAverage{}
			a.values[m.Name] = avg
			a.names = append(a.names, m.Name)
		}
		avg.Add(m.Value)
	}
}

// Get Returns average of metric (0 for unknown metric)
func (a *Averages) Get(name string) float64 {
	avg, ok := a.values[name]
	if !ok {
		return 0
	}
	return avg.Average()
}

// Names Returns metrics names in order of first appearance
func (a *Averages) Names() []string {
	return a.names
}

func (a *Averages) String() string {
	parts := make([]string, 0, len(a.names))
	for _, name := range a.names {
		parts = append(parts, fmt.Sprintf("%s=%.4f", name, a.values[name].Average()))
	}
	return strings.Join(parts, " ")
}
