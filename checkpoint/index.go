package checkpoint

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/types/known/structpb"
)

// index Saved steps per model name, sorted ascending
type index struct {
	models map[string][]int
}

func newIndex() *index {
	return &index{models: make(map[string][]int)}
}

func (idx *index) add(name string, step int) {
	for _, s := range idx.models[name] {
		if s == step {
			return
		}
	}
	steps := append(idx.models[name], step)
	sort.Ints(steps)
	idx.models[name] = steps
}

func (idx *index) steps(name string) []int {
	steps := make([]int, len(idx.models[name]))
	copy(steps, idx.models[name])
	return steps
}

func readIndex(dir string) (*index, error) {
	msg := &structpb.Struct{}
	if err := readProto(filepath.Join(dir, indexFile), msg); err != nil {
		return nil, err
	}
	idx := newIndex()
	for name, entry := range msg.GetFields()["models"].GetStructValue().GetFields() {
		steps := []int{}
		for _, v := range entry.GetStructValue().GetFields()["steps"].GetListValue().GetValues() {
			steps = append(steps, int(v.GetNumberValue()))
		}
		sort.Ints(steps)
		idx.models[name] = steps
	}
	return idx, nil
}

func writeIndex(dir string, idx *index) error {
	models := make(map[string]interface{}, len(idx.models))
	for name, entries := range idx.models {
		steps := make([]interface{}, 0, len(entries))
		for _, s := range entries {
			steps = append(steps, s)
		}
		latest := 0
		if len(entries) > 0 {
			latest = entries[len(entries)-1]
		}
		models[name] = map[string]interface{}{
			"latest": latest,
			"steps":  steps,
		}
	}
	msg, err := structpb.NewStruct(map[string]interface{}{
		"models": models,
	})
	if err != nil {
		return errors.Wrap(err, "Can't build checkpoint index")
	}
	tmp := filepath.Join(dir, indexFile+".tmp")
	if err := writeProto(tmp, msg); err != nil {
		return errors.Wrap(err, "Can't write checkpoint index")
	}
	return os.Rename(tmp, filepath.Join(dir, indexFile))
}
