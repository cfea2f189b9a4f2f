package summary

import (
	"image"
	"image/color"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
)

func TestHistogram(t *testing.T) {
	h, err := NewHistogram([]float64{4, 1, 2, 3}, 3)
	if err != nil {
		t.Error(err)
		return
	}
	if h.Count != 4 || h.Min != 1 || h.Max != 4 {
		t.Errorf("Wrong bounds: count %d, min %v, max %v", h.Count, h.Min, h.Max)
	}
	if math.Abs(h.Mean-2.5) > 1e-12 {
		t.Errorf("Mean should be 2.5, but got %v", h.Mean)
	}
	if len(h.Dividers) != 4 || len(h.Buckets) != 3 {
		t.Errorf("Wrong number of dividers (%d) or buckets (%d)", len(h.Dividers), len(h.Buckets))
		return
	}
	total := 0.0
	for _, b := range h.Buckets {
		total += b
	}
	if total != 4 {
		t.Errorf("Every value should be counted once, but total is %v", total)
	}

	single, err := NewHistogram([]float64{7}, 5)
	if err != nil {
		t.Error(err)
		return
	}
	if single.StdDev != 0 || single.Buckets[0] != 1 {
		t.Errorf("Single value histogram is wrong: %+v", single)
	}

	if _, err := NewHistogram(nil, 5); err == nil {
		t.Errorf("Empty values should be rejected")
	}
	if _, err := NewHistogram([]float64{1, math.NaN()}, 5); err == nil {
		t.Errorf("NaN should be rejected")
	}
}

func TestMemoryOrder(t *testing.T) {
	w := NewMemory()
	records := []Record{Scalar("d_loss", 0.5), Values("z", []float64{0.1, -0.2, 0.3})}
	for _, step := range []int{0, 1, 1, 5} {
		if err := Write(w, step, records); err != nil {
			t.Errorf("Step %d: %s", step, err)
		}
	}
	err := w.Scalar(4, "d_loss", 0.1)
	if errors.Cause(err) != ErrStepOrder {
		t.Errorf("Step going backwards should be rejected with ErrStepOrder, but got %v", err)
	}
	points := w.Scalars("d_loss")
	if len(points) != 4 {
		t.Errorf("Should be 4 points, but got %d", len(points))
		return
	}
	for i, step := range []int{0, 1, 1, 5} {
		if points[i].Step != step {
			t.Errorf("Point #%d should have step %d, but got %d", i, step, points[i].Step)
		}
	}
	w.Close()
	if err := w.Scalar(6, "d_loss", 0.1); err == nil {
		t.Errorf("Closed writer should reject records")
	}
}

func TestSQLite(t *testing.T) {
	path := RunPath(t.TempDir(), "wacgan", time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC))
	if filepath.Base(path) != "wacgan_20200102T030405.sqlite" {
		t.Errorf("Wrong run file name: %s", filepath.Base(path))
	}
	w, err := NewSQLite(path)
	if err != nil {
		t.Error(err)
		return
	}
	img := image.NewGray(image.Rect(0, 0, 2, 2))
	img.SetGray(1, 1, color.Gray{Y: 255})
	for step := 0; step < 3; step++ {
		err := Write(w, step, []Record{
			Scalar("g_loss", float64(step)),
			Values("g", []float64{1, 2, 3}),
			Picture("samples", img),
		})
		if err != nil {
			t.Error(err)
			return
		}
	}
	if err := w.Scalar(1, "g_loss", 0); errors.Cause(err) != ErrStepOrder {
		t.Errorf("Step going backwards should be rejected with ErrStepOrder, but got %v", err)
	}
	points, err := w.Scalars("g_loss")
	if err != nil {
		t.Error(err)
		return
	}
	if len(points) != 3 {
		t.Errorf("Should be 3 points, but got %d", len(points))
		return
	}
	for i, p := range points {
		if p.Step != i || p.Value != float64(i) {
			t.Errorf("Point #%d is wrong: %+v", i, p)
		}
	}
	if err := w.Close(); err != nil {
		t.Error(err)
		return
	}

	// Reopened database continues after the last step
	reopened, err := NewSQLite(path)
	if err != nil {
		t.Error(err)
		return
	}
	defer reopened.Close()
	if err := reopened.Scalar(1, "g_loss", 0); errors.Cause(err) != ErrStepOrder {
		t.Errorf("Reopened writer should reject steps before the last stored step, but got %v", err)
	}
	if err := reopened.Scalar(2, "g_loss", 2); err != nil {
		t.Error(err)
	}
}
