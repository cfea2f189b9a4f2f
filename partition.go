package gans_go

import (
	"fmt"

	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// ParameterGroup Named set of trainable nodes optimized independently from other groups
//
// Name - name of group (e.g. "generator", "y_discriminator")
// Params - trainable nodes in stable order
// Regularized - subset of Params which are subject of L2 regularization
// Statistics - running statistics of batch normalization layers. They are updated along with Params only.
//
type ParameterGroup struct {
	Name        string
	Params      gorgonia.Nodes
	Regularized gorgonia.Nodes
	Statistics  []*NormStatistics
}

// CommitStatistics Moves running statistics of the group towards the latest batch moments
func (pg *ParameterGroup) CommitStatistics() error {
	for _, s := range pg.Statistics {
		if err := s.Commit(); err != nil {
			return err
		}
	}
	return nil
}

// Values Returns current values of parameters and running statistics keyed by name
func (pg *ParameterGroup) Values() (map[string]*tensor.Dense, error) {
	values := make(map[string]*tensor.Dense, len(pg.Params)+2*len(pg.Statistics))
	for _, n := range pg.Params {
		dense, ok := n.Value().(*tensor.Dense)
		if !ok {
			return nil, fmt.Errorf("Parameter '%s' of group '%s' has no dense value (got %T)", n.Name(), pg.Name, n.Value())
		}
		values[n.Name()] = dense
	}
	for _, s := range pg.Statistics {
		for k, v := range s.Values() {
			if _, ok := values[k]; ok {
				return nil, fmt.Errorf("Statistics '%s' of group '%s' clash with parameter name", k, pg.Name)
			}
			values[k] = v
		}
	}
	return values, nil
}

// MergeGroups Returns group uniting parameters of provided groups. Used when several networks are optimized by single solver.
func MergeGroups(name string, groups ...*ParameterGroup) *ParameterGroup {
	merged := &ParameterGroup{Name: name}
	for _, pg := range groups {
		merged.Params = append(merged.Params, pg.Params...)
		merged.Regularized = append(merged.Regularized, pg.Regularized...)
		merged.Statistics = append(merged.Statistics, pg.Statistics...)
	}
	return merged
}

// Partition Disjoint parameter groups of a model
type Partition []*ParameterGroup

// NewPartition Validates and returns partition
//
// Groups must have unique non-empty names, every parameter must belong to exactly one group
// and parameter and statistics names must be unique across the partition (they are used as checkpoint keys).
//
func NewPartition(groups ...*ParameterGroup) (Partition, error) {
	groupNames := make(map[string]struct{}, len(groups))
	owners := make(map[*gorgonia.Node]string)
	paramNames := make(map[string]string)
	for i, pg := range groups {
		if pg == nil {
			return nil, fmt.Errorf("Parameter group #%d is nil", i)
		}
		if pg.Name == "" {
			return nil, fmt.Errorf("Parameter group #%d has empty name", i)
		}
		if _, ok := groupNames[pg.Name]; ok {
			return nil, fmt.Errorf("Duplicate parameter group name '%s'", pg.Name)
		}
		groupNames[pg.Name] = struct{}{}
		for _, n := range pg.Params {
			if owner, ok := owners[n]; ok {
				return nil, fmt.Errorf("Parameter '%s' belongs to both '%s' and '%s' groups", n.Name(), owner, pg.Name)
			}
			if owner, ok := paramNames[n.Name()]; ok {
				return nil, fmt.Errorf("Parameter name '%s' is used in both '%s' and '%s' groups", n.Name(), owner, pg.Name)
			}
			owners[n] = pg.Name
			paramNames[n.Name()] = pg.Name
		}
		for _, st := range pg.Statistics {
			for k := range st.Values() {
				if owner, ok := paramNames[k]; ok {
					return nil, fmt.Errorf("Statistics name '%s' is used in both '%s' and '%s' groups", k, owner, pg.Name)
				}
				paramNames[k] = pg.Name
			}
		}
		for _, n := range pg.Regularized {
			if owners[n] != pg.Name {
				return nil, fmt.Errorf("Regularized node '%s' is not a parameter of group '%s'", n.Name(), pg.Name)
			}
		}
	}
	return Partition(groups), nil
}

// Group Returns group by name or nil
func (p Partition) Group(name string) *ParameterGroup {
	for _, pg := range p {
		if pg.Name == name {
			return pg
		}
	}
	return nil
}

// Values Returns current values of all parameters and statistics keyed by name
func (p Partition) Values() (map[string]*tensor.Dense, error) {
	values := make(map[string]*tensor.Dense)
	for _, pg := range p {
		groupValues, err := pg.Values()
		if err != nil {
			return nil, err
		}
		for k, v := range groupValues {
			values[k] = v
		}
	}
	return values, nil
}
