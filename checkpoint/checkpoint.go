// Package checkpoint stores parameter tensors of a model keyed by global step.
//
// Layout:
//
//	<dir>/checkpoint               index of saved steps per model name (protobuf)
//	<dir>/<name>-<step>/manifest   step, model name and parameter shapes (protobuf)
//	<dir>/<name>-<step>/<param>.npy parameter values
//
package checkpoint

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
	"gorgonia.org/tensor"
)

const (
	indexFile    = "checkpoint"
	manifestFile = "manifest"
)

// ErrNoCheckpoint Returned when there is nothing to load
var ErrNoCheckpoint = fmt.Errorf("no checkpoint found")

// Dir Returns directory of checkpoint for provided model name and step
func Dir(dir, name string, step int) string {
	return filepath.Join(dir, fmt.Sprintf("%s-%d", name, step))
}

func fileName(param string) string {
	return strings.NewReplacer("/", "_", "\\", "_", ":", "_").Replace(param) + ".npy"
}

// Save Writes parameters and step. Existing checkpoint with the same step is replaced.
func Save(dir, name string, step int, params map[string]*tensor.Dense) error {
	if step < 0 {
		return fmt.Errorf("Step can't be negative, but got %d", step)
	}
	if name == "" {
		return fmt.Errorf("Model name is empty")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, fmt.Sprintf("Can't create checkpoint directory '%s'", dir))
	}
	tmp, err := os.MkdirTemp(dir, ".tmp-")
	if err != nil {
		return errors.Wrap(err, "Can't create temporary checkpoint directory")
	}
	defer os.RemoveAll(tmp)

	names := make([]string, 0, len(params))
	for k := range params {
		names = append(names, k)
	}
	sort.Strings(names)
	shapes := make(map[string]interface{}, len(names))
	for _, k := range names {
		if err := writeNpy(filepath.Join(tmp, fileName(k)), params[k]); err != nil {
			return errors.Wrap(err, fmt.Sprintf("Can't save parameter '%s'", k))
		}
		shape := make([]interface{}, 0, params[k].Dims())
		for _, d := range params[k].Shape() {
			shape = append(shape, d)
		}
		shapes[k] = shape
	}
	manifest, err := structpb.NewStruct(map[string]interface{}{
		"name":   name,
		"step":   step,
		"shapes": shapes,
	})
	if err != nil {
		return errors.Wrap(err, "Can't build manifest")
	}
	if err := writeProto(filepath.Join(tmp, manifestFile), manifest); err != nil {
		return errors.Wrap(err, "Can't write manifest")
	}

	target := Dir(dir, name, step)
	if err := os.RemoveAll(target); err != nil {
		return errors.Wrap(err, fmt.Sprintf("Can't replace checkpoint '%s'", target))
	}
	if err := os.Rename(tmp, target); err != nil {
		return errors.Wrap(err, fmt.Sprintf("Can't move checkpoint to '%s'", target))
	}

	idx, err := readIndex(dir)
	if err != nil && !os.IsNotExist(errors.Cause(err)) {
		return errors.Wrap(err, "Can't read checkpoint index")
	}
	if idx == nil {
		idx = newIndex()
	}
	idx.add(name, step)
	return writeIndex(dir, idx)
}

// Load Copies stored values into provided tensors and returns restored step.
// Negative step means the latest checkpoint. Every provided parameter must be present in checkpoint with the same shape.
func Load(dir, name string, step int, params map[string]*tensor.Dense) (int, error) {
	if step < 0 {
		latest, err := Latest(dir, name)
		if err != nil {
			return 0, err
		}
		step = latest
	}
	path := Dir(dir, name, step)
	manifest := &structpb.Struct{}
	if err := readProto(filepath.Join(path, manifestFile), manifest); err != nil {
		if os.IsNotExist(errors.Cause(err)) {
			return 0, errors.Wrap(ErrNoCheckpoint, fmt.Sprintf("step %d in '%s'", step, dir))
		}
		return 0, errors.Wrap(err, fmt.Sprintf("Can't read manifest of '%s'", path))
	}
	fields := manifest.GetFields()
	if got := fields["name"].GetStringValue(); got != name {
		return 0, fmt.Errorf("Checkpoint '%s' belongs to model '%s', not '%s'", path, got, name)
	}
	savedStep := int(fields["step"].GetNumberValue())
	if savedStep != step {
		return 0, fmt.Errorf("Checkpoint '%s' holds step %d, but %d was requested", path, savedStep, step)
	}

	// Read everything first so failed load doesn't leave parameters half-restored
	loaded := make(map[string]*tensor.Dense, len(params))
	for k, dst := range params {
		src := &tensor.Dense{}
		if err := readNpy(filepath.Join(path, fileName(k)), src); err != nil {
			return 0, errors.Wrap(err, fmt.Sprintf("Can't load parameter '%s'", k))
		}
		if !src.Shape().Eq(dst.Shape()) {
			return 0, fmt.Errorf("Parameter '%s' has shape %v in checkpoint, but %v is expected", k, src.Shape(), dst.Shape())
		}
		if src.Dtype() != dst.Dtype() {
			return 0, fmt.Errorf("Parameter '%s' has type %v in checkpoint, but %v is expected", k, src.Dtype(), dst.Dtype())
		}
		loaded[k] = src
	}
	for k, src := range loaded {
		if err := tensor.Copy(params[k], src); err != nil {
			return 0, errors.Wrap(err, fmt.Sprintf("Can't restore parameter '%s'", k))
		}
	}
	return step, nil
}

// Latest Returns the most recent step saved for model name
func Latest(dir, name string) (int, error) {
	steps, err := Steps(dir, name)
	if err != nil {
		return 0, err
	}
	if len(steps) == 0 {
		return 0, errors.Wrap(ErrNoCheckpoint, fmt.Sprintf("model '%s' in '%s'", name, dir))
	}
	return steps[len(steps)-1], nil
}

// Steps Returns steps saved for model name in ascending order
func Steps(dir, name string) ([]int, error) {
	idx, err := readIndex(dir)
	if err != nil {
		if os.IsNotExist(errors.Cause(err)) {
			return nil, errors.Wrap(ErrNoCheckpoint, dir)
		}
		return nil, errors.Wrap(err, "Can't read checkpoint index")
	}
	return idx.steps(name), nil
}

func writeNpy(path string, t *tensor.Dense) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := t.WriteNpy(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func readNpy(path string, t *tensor.Dense) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return t.ReadNpy(f)
}

func writeProto(path string, m proto.Message) error {
	data, err := proto.Marshal(m)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func readProto(path string, m proto.Message) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return proto.Unmarshal(data, m)
}
